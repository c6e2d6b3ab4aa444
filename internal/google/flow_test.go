package google

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// tokenEndpoint fakes the Google token endpoint for the code exchange.
func tokenEndpoint(t *testing.T, wantCode string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.Form.Get("grant_type") != "authorization_code" || r.Form.Get("code") != wantCode {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		assert.NotEmpty(t, r.Form.Get("code_verifier"))
		assert.Contains(t, r.Form.Get("redirect_uri"), "/callback")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token":  "fresh-access",
			"refresh_token": "fresh-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testOAuthConfig(tokenURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     "cid",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/o/oauth2/auth",
			TokenURL: tokenURL,
		},
		Scopes: RequiredScopes,
	}
}

// browserStub plays the user: it inspects the consent URL and follows
// the redirect with the given query.
type browserStub struct {
	t        *testing.T
	query    func(state string) string
	consent  url.Values
	redirect string
}

func (b *browserStub) open(raw string) error {
	u, err := url.Parse(raw)
	require.NoError(b.t, err)
	b.consent = u.Query()
	b.redirect = b.consent.Get("redirect_uri")

	resp, err := http.Get(b.redirect + b.query(b.consent.Get("state")))
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func newTestFlow(t *testing.T, opts FlowOptions, stub *browserStub) *LocalServerFlow {
	t.Helper()
	opts.OpenBrowser = true
	if opts.Out == nil {
		opts.Out = &bytes.Buffer{}
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	f := NewLocalServerFlow(opts)
	f.openBrowser = stub.open
	return f
}

func TestLocalServerFlow_Authorize(t *testing.T) {
	endpoint := tokenEndpoint(t, "the-code")
	stub := &browserStub{t: t, query: func(state string) string {
		return "?code=the-code&state=" + url.QueryEscape(state)
	}}
	out := &bytes.Buffer{}
	flow := newTestFlow(t, FlowOptions{Out: out}, stub)

	tok, err := flow.Authorize(context.Background(), testOAuthConfig(endpoint.URL))
	require.NoError(t, err)

	assert.Equal(t, "fresh-access", tok.AccessToken)
	assert.Equal(t, "fresh-refresh", tok.RefreshToken)
	assert.Equal(t, "offline", stub.consent.Get("access_type"))
	assert.Equal(t, "S256", stub.consent.Get("code_challenge_method"))
	assert.Empty(t, stub.consent.Get("prompt"), "consent is not forced by default")
	assert.NotEmpty(t, stub.consent.Get("state"))
	assert.Contains(t, out.String(), "accounts.example.com")
}

func TestLocalServerFlow_ForceConsent(t *testing.T) {
	endpoint := tokenEndpoint(t, "c")
	stub := &browserStub{t: t, query: func(state string) string {
		return "?code=c&state=" + url.QueryEscape(state)
	}}
	flow := newTestFlow(t, FlowOptions{ForceConsent: true}, stub)

	_, err := flow.Authorize(context.Background(), testOAuthConfig(endpoint.URL))
	require.NoError(t, err)
	assert.Equal(t, "consent", stub.consent.Get("prompt"))
}

func TestLocalServerFlow_ReleasesPort(t *testing.T) {
	endpoint := tokenEndpoint(t, "c")
	stub := &browserStub{t: t, query: func(state string) string {
		return "?code=c&state=" + url.QueryEscape(state)
	}}
	flow := newTestFlow(t, FlowOptions{}, stub)

	_, err := flow.Authorize(context.Background(), testOAuthConfig(endpoint.URL))
	require.NoError(t, err)

	u, err := url.Parse(stub.redirect)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	require.NoError(t, err, "callback port still bound after authorization")
	l.Close()
}

func TestLocalServerFlow_UserDenies(t *testing.T) {
	stub := &browserStub{t: t, query: func(state string) string {
		return "?error=access_denied&state=" + url.QueryEscape(state)
	}}
	flow := newTestFlow(t, FlowOptions{}, stub)

	_, err := flow.Authorize(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"))
	assert.ErrorIs(t, err, ErrFlowCancelled)
}

func TestLocalServerFlow_ExchangeFailure(t *testing.T) {
	endpoint := tokenEndpoint(t, "expected-code")
	stub := &browserStub{t: t, query: func(state string) string {
		return "?code=other-code&state=" + url.QueryEscape(state)
	}}
	flow := newTestFlow(t, FlowOptions{}, stub)

	_, err := flow.Authorize(context.Background(), testOAuthConfig(endpoint.URL))
	assert.Error(t, err)
}

func TestLocalServerFlow_Timeout(t *testing.T) {
	flow := NewLocalServerFlow(FlowOptions{Timeout: 30 * time.Millisecond, Out: &bytes.Buffer{}})

	_, err := flow.Authorize(context.Background(), testOAuthConfig("http://127.0.0.1:1/token"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestManager_WithLocalServerFlow(t *testing.T) {
	endpoint := tokenEndpoint(t, "the-code")
	stub := &browserStub{t: t, query: func(state string) string {
		return "?code=the-code&state=" + url.QueryEscape(state)
	}}
	store := NewFileStore(t.TempDir()+"/token.json", nil)

	m, err := NewManager(ManagerConfig{
		Store:             store,
		ClientSecretsFile: writeClientSecrets(t, endpoint.URL),
		Flow:              newTestFlow(t, FlowOptions{}, stub),
	})
	require.NoError(t, err)

	cred, err := m.Obtain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fresh-access", cred.Token.AccessToken)

	saved, err := store.Load()
	require.NoError(t, err)
	assert.True(t, cred.Equal(saved))
	assert.Equal(t, "test-client.apps.googleusercontent.com", saved.ClientID)
	assert.Equal(t, endpoint.URL, saved.TokenURI)
}

func TestTokenEndpointRefresher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "rt", r.Form.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new","token_type":"Bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	tok, err := TokenEndpointRefresher{}.Refresh(context.Background(), testOAuthConfig(srv.URL), "rt")
	require.NoError(t, err)
	assert.Equal(t, "new", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
}
