package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxbridge/internal/logging"
	"github.com/teemow/inboxbridge/internal/server"
)

// AuthStatusURI is the URI of the authentication status resource.
const AuthStatusURI = "auth://status"

// AuthStatus is the auth://status document.
type AuthStatus struct {
	CredentialsFileExists bool     `json:"credentials_file_exists"`
	TokenFileExists       bool     `json:"token_file_exists"`
	Authenticated         bool     `json:"authenticated"`
	State                 string   `json:"state"`
	Message               string   `json:"message"`
	Expiry                string   `json:"expiry,omitempty"`
	Scopes                []string `json:"scopes,omitempty"`
}

// RegisterAuthResources registers the authentication status resource.
func RegisterAuthResources(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	statusResource := mcp.NewResource(
		AuthStatusURI,
		"Authentication Status",
		mcp.WithResourceDescription("Whether Google credentials are present and usable, without triggering authorization"),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(statusResource, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleAuthStatus(ctx, request, sc)
	})

	return nil
}

// BuildAuthStatus inspects the credential manager without changing it.
func BuildAuthStatus(sc *server.ServerContext) AuthStatus {
	st, err := sc.Manager().Status()
	status := AuthStatus{
		CredentialsFileExists: st.CredentialsFileExists,
		TokenFileExists:       st.TokenFileExists,
	}
	if err != nil {
		sc.Logger().Warn("failed to inspect credential", logging.Operation("auth.status"), logging.Err(err))
		status.State = "unknown"
		status.Message = fmt.Sprintf("Error checking token: %v", err)
		return status
	}

	status.Authenticated = st.Authenticated()
	status.State = st.State.String()
	status.Message = st.Message()
	status.Scopes = st.Scopes
	if !st.Expiry.IsZero() {
		status.Expiry = st.Expiry.UTC().Format(time.RFC3339)
	}
	return status
}

func handleAuthStatus(_ context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(BuildAuthStatus(sc), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth status: %w", err)
	}

	return []mcp.ResourceContents{
		&mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
