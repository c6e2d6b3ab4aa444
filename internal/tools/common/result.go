package common

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxbridge/internal/google"
)

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the JSON document every tool returns as its text content.
type Envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// Success wraps data in a success envelope.
func Success(data any, message string) *mcp.CallToolResult {
	return envelopeResult(Envelope{Status: StatusSuccess, Data: data, Message: message})
}

// Failure returns an error envelope. The result has IsError set so MCP
// hosts can tell it apart without parsing the text.
func Failure(message string) *mcp.CallToolResult {
	return envelopeResult(Envelope{Status: StatusError, Message: message})
}

// ErrorResult maps err onto an error envelope with a message suited to
// the error kind.
func ErrorResult(err error) *mcp.CallToolResult {
	return Failure(ErrorMessage(err))
}

// ErrorMessage renders err for the MCP host.
func ErrorMessage(err error) string {
	var (
		cfgErr    *google.ConfigurationError
		authErr   *google.AuthenticationError
		valErr    *google.ValidationError
		remoteErr *google.RemoteAPIError
		schemaErr *google.SchemaError
	)
	switch {
	case errors.As(err, &cfgErr):
		return fmt.Sprintf("Configuration error: %v", cfgErr)
	case errors.As(err, &authErr):
		return fmt.Sprintf("Authentication failed: %v. Run 'inboxbridge auth login' to authorize.", authErr)
	case errors.As(err, &valErr):
		return valErr.Error()
	case errors.As(err, &remoteErr) && remoteErr.NotFound():
		return fmt.Sprintf("Not found: %v", remoteErr)
	case errors.As(err, &remoteErr):
		return fmt.Sprintf("Google API error: %v", remoteErr)
	case errors.As(err, &schemaErr):
		return fmt.Sprintf("Unexpected response from Google: %v", schemaErr)
	default:
		return err.Error()
	}
}

func envelopeResult(env Envelope) *mcp.CallToolResult {
	text, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		text, _ = json.Marshal(Envelope{Status: StatusError, Message: fmt.Sprintf("failed to encode result: %v", err)})
		return mcp.NewToolResultError(string(text))
	}
	if env.Status == StatusError {
		return mcp.NewToolResultError(string(text))
	}
	return mcp.NewToolResultText(string(text))
}

// DecodeEnvelope parses the envelope of a result produced by this
// package.
func DecodeEnvelope(result *mcp.CallToolResult) (Envelope, error) {
	var env Envelope
	if result == nil || len(result.Content) == 0 {
		return env, errors.New("empty tool result")
	}
	tc, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return env, fmt.Errorf("unexpected content type %T", result.Content[0])
	}
	if err := json.Unmarshal([]byte(tc.Text), &env); err != nil {
		return env, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}
