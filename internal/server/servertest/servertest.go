// Package servertest builds ServerContexts whose Google clients talk to
// an in-process fake API.
package servertest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/server"
)

// AccessToken is the bearer token the fake API receives.
const AccessToken = "test-access-token"

// NewServerContext returns a ServerContext with a valid stored
// credential. Gmail and Calendar requests are served by backend.
func NewServerContext(t testing.TB, backend http.Handler, readOnly bool) *server.ServerContext {
	t.Helper()
	return newServerContext(t, backend, readOnly, &oauth2.Token{
		AccessToken:  AccessToken,
		TokenType:    "Bearer",
		RefreshToken: "test-refresh-token",
		Expiry:       time.Now().Add(time.Hour),
	})
}

// NewUnauthenticated returns a ServerContext with neither a token file
// nor a client secrets file, so every client request fails with a
// ConfigurationError.
func NewUnauthenticated(t testing.TB, backend http.Handler) *server.ServerContext {
	t.Helper()
	return newServerContext(t, backend, false, nil)
}

func newServerContext(t testing.TB, backend http.Handler, readOnly bool, tok *oauth2.Token) *server.ServerContext {
	t.Helper()
	dir := t.TempDir()

	store := google.NewFileStore(filepath.Join(dir, "token.json"), nil)
	if tok != nil {
		if err := store.Save(&google.Credential{Token: tok, Scopes: google.RequiredScopes}); err != nil {
			t.Fatalf("save token: %v", err)
		}
	}

	manager, err := google.NewManager(google.ManagerConfig{
		Store:             store,
		ClientSecretsFile: filepath.Join(dir, "credentials.json"),
	})
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	if backend == nil {
		backend = http.NotFoundHandler()
	}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	sc, err := server.NewServerContext(context.Background(), server.Options{
		Manager:       manager,
		ReadOnly:      readOnly,
		ClientOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	})
	if err != nil {
		t.Fatalf("NewServerContext() error = %v", err)
	}
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}
