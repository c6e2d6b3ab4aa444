package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/google"
)

// fakeGoogle answers the Gmail profile call and remembers the bearer
// tokens it saw.
type fakeGoogle struct {
	mu      sync.Mutex
	bearers []string
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.bearers = append(f.bearers, r.Header.Get("Authorization"))
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"emailAddress":"user@example.com"}`))
}

func (f *fakeGoogle) lastBearer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.bearers) == 0 {
		return ""
	}
	return f.bearers[len(f.bearers)-1]
}

func validToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		TokenType:    "Bearer",
		RefreshToken: "refresh-1",
		Expiry:       time.Now().Add(time.Hour),
	}
}

type fixture struct {
	store   *google.FileStore
	manager *google.Manager
	backend *fakeGoogle
	sc      *ServerContext
}

// newFixture builds a ServerContext whose clients talk to a local fake.
// A nil token leaves the token file absent.
func newFixture(t *testing.T, tok *oauth2.Token) *fixture {
	t.Helper()
	dir := t.TempDir()

	store := google.NewFileStore(filepath.Join(dir, "token.json"), nil)
	if tok != nil {
		require.NoError(t, store.Save(&google.Credential{Token: tok, Scopes: google.RequiredScopes}))
	}

	manager, err := google.NewManager(google.ManagerConfig{
		Store:             store,
		ClientSecretsFile: filepath.Join(dir, "credentials.json"),
	})
	require.NoError(t, err)

	backend := &fakeGoogle{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	sc, err := NewServerContext(context.Background(), Options{
		Manager:       manager,
		ClientOptions: []option.ClientOption{option.WithEndpoint(srv.URL + "/")},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sc.Shutdown() })

	return &fixture{store: store, manager: manager, backend: backend, sc: sc}
}
