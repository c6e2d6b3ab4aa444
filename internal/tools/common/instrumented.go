package common

import (
	"context"
	"errors"

	"github.com/mark3labs/mcp-go/mcp"
	"go.opentelemetry.io/otel/attribute"

	"github.com/teemow/inboxbridge/internal/instrumentation"
	"github.com/teemow/inboxbridge/internal/logging"
	"github.com/teemow/inboxbridge/internal/server"
)

// ToolHandler is the mcp-go tool handler signature.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// remoteIDArgs are the arguments that name a single remote object.
var remoteIDArgs = []string{"emailId", "eventId"}

// InstrumentedToolHandler wraps a tool handler with a trace span, tool
// metrics and an audit record. service is the Google service the tool
// talks to.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("gmail_search_emails", google.ServiceGmail, sc, handler))
func InstrumentedToolHandler(toolName, service string, sc *server.ServerContext, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			attribute.String(instrumentation.SpanAttrService, service),
			attribute.Bool(instrumentation.SpanAttrReadOnly, sc.ReadOnly()),
		)

		invocation := instrumentation.NewToolInvocation(toolName).
			WithService(service).
			WithSpanContext(ctx)
		if id := remoteID(request); id != "" {
			invocation.WithRemoteID(id)
		}

		logging.WithTool(sc.Logger(), toolName).Debug("tool invoked", logging.Service(service))

		result, err := handler(ctx, request)

		failure := err
		if failure == nil && result != nil && result.IsError {
			failure = resultError(result)
		}
		invocation.Complete(failure == nil, failure)
		instrumentation.EndSpan(span, failure)

		sc.Metrics().RecordToolInvocation(ctx, toolName, invocation.Status(), invocation.Duration)
		sc.AuditLogger().LogToolInvocation(ctx, invocation)

		return result, err
	}
}

func remoteID(request mcp.CallToolRequest) string {
	args := request.GetArguments()
	for _, name := range remoteIDArgs {
		if v, ok := args[name].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

// resultError turns an error result into an error carrying its message.
func resultError(result *mcp.CallToolResult) error {
	env, err := DecodeEnvelope(result)
	if err != nil || env.Message == "" {
		return errors.New("tool returned an error result")
	}
	return errors.New(env.Message)
}
