package common

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/inboxbridge/internal/google"
)

// RequiredString returns a non-blank string argument.
func RequiredString(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.GetArguments()[name].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", &google.ValidationError{Field: name, Message: "is required"}
	}
	return v, nil
}

// PresentString returns a string argument that must be supplied but may
// be empty.
func PresentString(request mcp.CallToolRequest, name string) (string, error) {
	v, ok := request.GetArguments()[name].(string)
	if !ok {
		return "", &google.ValidationError{Field: name, Message: "is required"}
	}
	return v, nil
}

// OptionalString returns a string argument or "".
func OptionalString(request mcp.CallToolRequest, name string) string {
	v, _ := request.GetArguments()[name].(string)
	return v
}

// OptionalInt returns an integer argument or def when it is absent.
// JSON numbers arrive as float64; numeric strings are accepted too.
func OptionalInt(request mcp.CallToolRequest, name string, def int) (int, error) {
	raw, ok := request.GetArguments()[name]
	if !ok || raw == nil {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		if v != math.Trunc(v) {
			return 0, &google.ValidationError{Field: name, Message: fmt.Sprintf("must be an integer (got %v)", v)}
		}
		return int(v), nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case string:
		if strings.TrimSpace(v) == "" {
			return def, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, &google.ValidationError{Field: name, Message: fmt.Sprintf("must be an integer (got %q)", v)}
		}
		return n, nil
	default:
		return 0, &google.ValidationError{Field: name, Message: fmt.Sprintf("must be a number (got %T)", raw)}
	}
}
