package instrumentation

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// ToolInvocation is the audit record of one MCP tool call.
//
// RemoteID may identify a message or event of the account owner and is
// only logged when the AuditLogger is configured to include remote ids.
type ToolInvocation struct {
	Tool     string
	Service  string
	RemoteID string

	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string

	TraceID string
	SpanID  string
}

// NewToolInvocation starts timing an invocation of tool.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{Tool: tool, StartTime: time.Now()}
}

// WithService sets the Google service the tool talks to.
func (ti *ToolInvocation) WithService(service string) *ToolInvocation {
	ti.Service = service
	return ti
}

// WithRemoteID sets the message or event id the call targeted.
func (ti *ToolInvocation) WithRemoteID(id string) *ToolInvocation {
	ti.RemoteID = id
	return ti
}

// WithSpanContext copies the trace and span id from ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	sc := trace.SpanContextFromContext(ctx)
	if sc.IsValid() {
		ti.TraceID = sc.TraceID().String()
		ti.SpanID = sc.SpanID().String()
	}
	return ti
}

// Complete stops the timer and records the outcome.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// Status returns StatusSuccess or StatusError.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns the record as slog attributes. Remote ids are only
// included when withRemoteID is set.
func (ti *ToolInvocation) LogAttrs(withRemoteID bool) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.Service != "" {
		attrs = append(attrs, slog.String("service", ti.Service))
	}
	if withRemoteID && ti.RemoteID != "" {
		attrs = append(attrs, slog.String("remote_id", ti.RemoteID))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID), slog.String("span_id", ti.SpanID))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// AuditLogger writes one structured record per tool invocation.
type AuditLogger struct {
	logger           *slog.Logger
	enabled          bool
	includeRemoteIDs bool
}

// NewAuditLogger creates an AuditLogger. A nil logger means
// slog.Default().
func NewAuditLogger(logger *slog.Logger, config AuditConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:           logger.With(slog.String("component", "audit")),
		enabled:          config.Enabled,
		includeRemoteIDs: config.IncludeRemoteIDs,
	}
}

// LogToolInvocation logs ti at info level on success and warn level on
// failure.
func (al *AuditLogger) LogToolInvocation(ctx context.Context, ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}
	level := slog.LevelInfo
	msg := "tool_executed"
	if !ti.Success {
		level = slog.LevelWarn
		msg = "tool_failed"
	}
	al.logger.LogAttrs(ctx, level, msg, ti.LogAttrs(al.includeRemoteIDs)...)
}
