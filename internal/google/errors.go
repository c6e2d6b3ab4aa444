package google

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrFlowCancelled is returned by an interactive flow when the user
// denied access or the context was cancelled.
var ErrFlowCancelled = errors.New("authorization cancelled")

// ConfigurationError reports missing or unusable OAuth client
// configuration. It is fatal and never retried.
type ConfigurationError struct {
	Path string
	Err  error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("authorization configuration %q unusable: %v", e.Path, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// AuthenticationError reports that no valid credential could be
// produced, typically because the interactive flow failed.
type AuthenticationError struct {
	Reason string
	Err    error
}

func (e *AuthenticationError) Error() string {
	if e.Err == nil {
		return "authentication failed: " + e.Reason
	}
	return fmt.Sprintf("authentication failed: %s: %v", e.Reason, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// RemoteAPIError wraps a failed Google API call with the operation name
// and the remote object id, if one was involved.
type RemoteAPIError struct {
	Service   string
	Operation string
	RemoteID  string
	Err       error
}

func (e *RemoteAPIError) Error() string {
	target := e.Operation
	if e.RemoteID != "" {
		target = fmt.Sprintf("%s(%s)", e.Operation, e.RemoteID)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Service, target, e.Err)
}

func (e *RemoteAPIError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status reported by the API, or 0 when the
// call failed before a response arrived.
func (e *RemoteAPIError) StatusCode() int {
	var apiErr *googleapi.Error
	if errors.As(e.Err, &apiErr) {
		return apiErr.Code
	}
	return 0
}

// NotFound reports whether the remote object does not exist.
func (e *RemoteAPIError) NotFound() bool {
	return e.StatusCode() == http.StatusNotFound
}

// ValidationError reports an input that violates a field constraint.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// SchemaError reports a remote payload that lacks a field the bridge
// relies on.
type SchemaError struct {
	Operation string
	RemoteID  string
	Field     string
}

func (e *SchemaError) Error() string {
	if e.RemoteID != "" {
		return fmt.Sprintf("unexpected %s response for %s: missing %s", e.Operation, e.RemoteID, e.Field)
	}
	return fmt.Sprintf("unexpected %s response: missing %s", e.Operation, e.Field)
}
