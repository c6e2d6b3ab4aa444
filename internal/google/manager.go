package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"slices"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/teemow/inboxbridge/internal/logging"
)

// Result values reported to AuthMetrics.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// AuthMetrics receives credential lifecycle events. It is satisfied by
// *instrumentation.Metrics.
type AuthMetrics interface {
	RecordOAuthAuth(ctx context.Context, result string)
	RecordOAuthTokenRefresh(ctx context.Context, result string)
}

// Refresher exchanges a refresh token for a new access token.
type Refresher interface {
	Refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error)
}

// TokenEndpointRefresher refreshes against the OAuth token endpoint in
// cfg.
type TokenEndpointRefresher struct{}

// Refresh implements Refresher.
func (TokenEndpointRefresher) Refresh(ctx context.Context, cfg *oauth2.Config, refreshToken string) (*oauth2.Token, error) {
	// An empty access token forces the token source to hit the endpoint.
	return cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
}

// ManagerConfig configures a Manager. Everything the manager needs is
// passed here; it reads no environment variables.
type ManagerConfig struct {
	Store Store

	// ClientSecretsFile is the OAuth client configuration. It is only
	// required when a refresh needs a client identity the stored
	// credential lacks, or when interactive authorization is needed.
	ClientSecretsFile string

	// Scopes requested on authorization. Defaults to RequiredScopes.
	Scopes []string

	// Flow runs interactive authorization. A nil Flow makes
	// NeedsInteractiveAuth fail with AuthenticationError.
	Flow InteractiveFlow

	// Refresher defaults to TokenEndpointRefresher.
	Refresher Refresher

	// HTTPClient, when set, is used for token endpoint calls.
	HTTPClient *http.Client

	Metrics AuthMetrics
	Logger  *slog.Logger
	Now     func() time.Time
}

// Manager produces valid credentials on demand.
//
// Obtain walks the credential states: a valid credential is returned as
// is, an expired one with a refresh token is refreshed exactly once, and
// anything else goes through the interactive flow. A credential minted by
// refresh or by the flow is saved before Obtain returns.
type Manager struct {
	// flowMu serializes refreshes and interactive flows, which may wait
	// minutes for the browser. mu guards current, stale and generation
	// and is never held across a refresh or a flow.
	flowMu sync.Mutex
	mu     sync.Mutex

	store       Store
	secretsPath string
	scopes      []string
	flow        InteractiveFlow
	refresher   Refresher
	httpClient  *http.Client
	metrics     AuthMetrics
	logger      *slog.Logger
	now         func() time.Time

	current    *Credential
	stale      bool
	generation uint64
}

// NewManager creates a Manager.
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Store == nil {
		return nil, errors.New("credential store is required")
	}
	m := &Manager{
		store:       cfg.Store,
		secretsPath: cfg.ClientSecretsFile,
		scopes:      cfg.Scopes,
		flow:        cfg.Flow,
		refresher:   cfg.Refresher,
		httpClient:  cfg.HTTPClient,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger,
		now:         cfg.Now,
	}
	if len(m.scopes) == 0 {
		m.scopes = slices.Clone(RequiredScopes)
	}
	if m.refresher == nil {
		m.refresher = TokenEndpointRefresher{}
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m, nil
}

// Obtain returns a valid credential, never an expired one.
//
// It fails with *ConfigurationError when interactive authorization is
// needed but the client secrets file is missing (no flow is started),
// and with *AuthenticationError when the flow fails.
func (m *Manager) Obtain(ctx context.Context) (*Credential, error) {
	if cred := m.validCurrent(); cred != nil {
		return cred, nil
	}

	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	// Another caller may have finished a refresh or flow meanwhile.
	if cred := m.validCurrent(); cred != nil {
		return cred, nil
	}
	now := m.now()

	logger := logging.WithOperation(m.logger, "auth.obtain")

	// NoCredential: consult the store, which another process (auth login)
	// may have updated since the last call.
	loaded, err := m.store.Load()
	if err != nil {
		return nil, err
	}

	state := loaded.State(now)
	logger.Debug("loaded credential", logging.State(state), logging.Path(m.store.Path()))

	switch state {
	case StateValid:
		if !HasScopes(loaded.Scopes, m.scopes) {
			logger.Warn("stored credential lacks required scopes; run auth login with force consent to re-grant")
		}
		m.adopt(loaded)
		return loaded, nil

	case StateRefreshable:
		refreshed, err := m.refresh(ctx, loaded)
		if err == nil {
			return m.commit(refreshed)
		}
		logger.Warn("token refresh failed, falling back to interactive authorization", logging.Err(err))
	}

	return m.authorize(ctx, loaded)
}

// Reauthorize runs the interactive flow even when the stored credential
// is still usable. The auth login command uses it to re-grant scopes or
// obtain a new refresh token.
func (m *Manager) Reauthorize(ctx context.Context) (*Credential, error) {
	m.flowMu.Lock()
	defer m.flowMu.Unlock()

	loaded, err := m.store.Load()
	if err != nil {
		return nil, err
	}
	return m.authorize(ctx, loaded)
}

// refresh performs the single refresh attempt.
func (m *Manager) refresh(ctx context.Context, cred *Credential) (*Credential, error) {
	cfg, err := LoadClientConfig(m.secretsPath, m.scopes)
	if err != nil {
		cfg = clientConfigFromCredential(cred, m.scopes)
		if cfg == nil {
			return nil, err
		}
	}

	tok, err := m.refresher.Refresh(m.tokenContext(ctx), cfg, cred.Token.RefreshToken)
	if err != nil {
		m.recordRefresh(ctx, ResultFailure)
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	m.recordRefresh(ctx, ResultSuccess)

	if tok.RefreshToken == "" {
		tok.RefreshToken = cred.Token.RefreshToken
	}
	next := &Credential{
		Token:        tok,
		Scopes:       cred.Scopes,
		ClientID:     cred.ClientID,
		ClientSecret: cred.ClientSecret,
		TokenURI:     cred.TokenURI,
	}
	return next.withClient(cfg), nil
}

// authorize runs the interactive flow. prev, if any, donates its refresh
// token when Google does not issue a new one (no forced consent).
func (m *Manager) authorize(ctx context.Context, prev *Credential) (*Credential, error) {
	logger := logging.WithOperation(m.logger, "auth.interactive")

	cfg, err := LoadClientConfig(m.secretsPath, m.scopes)
	if err != nil {
		logger.Error("cannot start interactive authorization", logging.Path(m.secretsPath), logging.Err(err))
		m.recordAuth(ctx, ResultFailure)
		return nil, err
	}
	if m.flow == nil {
		m.recordAuth(ctx, ResultFailure)
		return nil, &AuthenticationError{Reason: "interactive authorization is not available"}
	}

	tok, err := m.flow.Authorize(m.tokenContext(ctx), cfg)
	if err != nil {
		logger.Error("interactive authorization failed", logging.Err(err))
		m.recordAuth(ctx, ResultFailure)
		return nil, &AuthenticationError{Reason: "interactive authorization failed", Err: err}
	}
	if tok == nil || tok.AccessToken == "" {
		m.recordAuth(ctx, ResultFailure)
		return nil, &AuthenticationError{Reason: "authorization returned no access token"}
	}
	m.recordAuth(ctx, ResultSuccess)

	if tok.RefreshToken == "" && prev != nil && prev.Token != nil {
		tok.RefreshToken = prev.Token.RefreshToken
	}
	cred := &Credential{Token: tok, Scopes: slices.Clone(m.scopes)}
	return m.commit(cred.withClient(cfg))
}

// commit writes cred through to the store and makes it current.
func (m *Manager) commit(cred *Credential) (*Credential, error) {
	if err := m.store.Save(cred); err != nil {
		return nil, fmt.Errorf("persist credential: %w", err)
	}
	m.adopt(cred)
	return cred, nil
}

// validCurrent returns the in-memory credential if it can be used as is.
func (m *Manager) validCurrent() *Credential {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stale || m.current.State(m.now()) != StateValid {
		return nil
	}
	return m.current
}

func (m *Manager) adopt(cred *Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.Equal(cred) {
		m.generation++
	}
	m.current = cred
	m.stale = false
}

func (m *Manager) tokenContext(ctx context.Context) context.Context {
	if m.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
}

func (m *Manager) recordRefresh(ctx context.Context, result string) {
	if m.metrics != nil {
		m.metrics.RecordOAuthTokenRefresh(ctx, result)
	}
}

func (m *Manager) recordAuth(ctx context.Context, result string) {
	if m.metrics != nil {
		m.metrics.RecordOAuthAuth(ctx, result)
	}
}

// Generation increases every time a different credential becomes
// current. Holders of objects built from an older credential should
// rebuild them.
func (m *Manager) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

// Forget marks the in-memory credential stale so the next Obtain re-reads
// the store. The generation only moves if the store holds something
// different.
func (m *Manager) Forget() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale = true
}

// StoreChanged reports whether the store holds a credential other than
// the in-memory one. It lets file watchers ignore the writes this
// Manager made itself.
func (m *Manager) StoreChanged() (bool, error) {
	loaded, err := m.store.Load()
	if err != nil {
		return true, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.current.Equal(loaded), nil
}

// TokenSource returns an oauth2.TokenSource that calls Obtain for every
// token, so API clients never hold on to an expired credential. ctx
// should outlive the clients using the source.
func (m *Manager) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &managerTokenSource{ctx: ctx, m: m}
}

type managerTokenSource struct {
	ctx context.Context
	m   *Manager
}

func (s *managerTokenSource) Token() (*oauth2.Token, error) {
	cred, err := s.m.Obtain(s.ctx)
	if err != nil {
		return nil, err
	}
	return cred.Token, nil
}

// Status describes the credential situation without changing it.
type Status struct {
	State                 CredentialState
	TokenFile             string
	TokenFileExists       bool
	CredentialsFile       string
	CredentialsFileExists bool
	Expiry                time.Time
	Scopes                []string
}

// Authenticated reports whether tools can run without user interaction.
func (s Status) Authenticated() bool {
	return s.State == StateValid || s.State == StateRefreshable
}

// Message is a human readable summary of s.
func (s Status) Message() string {
	switch {
	case s.State == StateValid:
		return "Authenticated and ready."
	case s.State == StateRefreshable:
		return "Access token expired; it will be refreshed on next use."
	case !s.CredentialsFileExists:
		return fmt.Sprintf("Not authenticated and client secrets file %s is missing. Download it from the Google Cloud console.", s.CredentialsFile)
	default:
		return "Not authenticated. Run 'inboxbridge auth login' to authorize."
	}
}

// Status inspects the store and the client secrets file. It does not
// wait for a refresh or interactive flow in progress.
func (m *Manager) Status() (Status, error) {
	st := Status{
		TokenFile:             m.store.Path(),
		TokenFileExists:       fileExists(m.store.Path()),
		CredentialsFile:       m.secretsPath,
		CredentialsFileExists: fileExists(m.secretsPath),
	}

	cred := m.validCurrent()
	if cred == nil {
		loaded, err := m.store.Load()
		if err != nil {
			return st, err
		}
		cred = loaded
	}

	st.State = cred.State(m.now())
	if cred != nil && cred.Token != nil {
		st.Expiry = cred.Token.Expiry
		st.Scopes = cred.Scopes
	}
	return st, nil
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
