package google

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/teemow/inboxbridge/internal/logging"
)

// InteractiveFlow obtains a fresh token with user involvement.
type InteractiveFlow interface {
	Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error)
}

// FlowOptions configures a LocalServerFlow.
type FlowOptions struct {
	// CallbackHost and CallbackPort select the loopback listener. Port 0
	// picks an ephemeral port.
	CallbackHost string
	CallbackPort int

	// ForceConsent adds prompt=consent so Google always shows the consent
	// screen and issues a new refresh token.
	ForceConsent bool

	// Timeout bounds the wait for the browser callback.
	Timeout time.Duration

	// OpenBrowser launches the system browser with the consent URL.
	OpenBrowser bool

	// Out receives the consent URL. Defaults to stderr, since stdout may
	// carry the MCP stdio stream.
	Out io.Writer

	Logger *slog.Logger
}

// LocalServerFlow is the installed-app authorization code flow with
// PKCE and a loopback redirect.
type LocalServerFlow struct {
	opts        FlowOptions
	openBrowser func(string) error
}

var _ InteractiveFlow = (*LocalServerFlow)(nil)

// NewLocalServerFlow creates a flow with the given options.
func NewLocalServerFlow(opts FlowOptions) *LocalServerFlow {
	if opts.CallbackHost == "" {
		opts.CallbackHost = "localhost"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.Out == nil {
		opts.Out = os.Stderr
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &LocalServerFlow{opts: opts, openBrowser: OpenBrowser}
}

// Authorize runs one authorization round trip. The callback listener is
// bound for the duration of the call only.
func (f *LocalServerFlow) Authorize(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	logger := logging.WithOperation(f.opts.Logger, "auth.interactive")

	state := uuid.NewString()
	srv := NewCallbackServer(f.opts.CallbackHost, f.opts.CallbackPort, state)
	if err := srv.Start(); err != nil {
		return nil, fmt.Errorf("start callback listener: %w", err)
	}
	defer func() {
		if err := srv.Stop(); err != nil {
			logger.Debug("callback listener shutdown", logging.Err(err))
		}
	}()

	conf := *cfg
	conf.RedirectURL = srv.RedirectURI()

	verifier := oauth2.GenerateVerifier()
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.S256ChallengeOption(verifier),
	}
	if f.opts.ForceConsent {
		opts = append(opts, oauth2.ApprovalForce)
	}
	authURL := conf.AuthCodeURL(state, opts...)

	fmt.Fprintf(f.opts.Out, "Open the following URL in your browser to authorize inboxbridge:\n\n%s\n\n", authURL)
	if f.opts.OpenBrowser {
		if err := f.openBrowser(authURL); err != nil {
			logger.Debug("could not open browser", logging.Err(err))
		}
	}
	logger.Info("waiting for authorization callback",
		slog.String("redirect_uri", conf.RedirectURL),
		slog.Bool("force_consent", f.opts.ForceConsent))

	waitCtx, cancel := context.WithTimeout(ctx, f.opts.Timeout)
	defer cancel()

	code, err := srv.WaitForCode(waitCtx)
	if err != nil {
		return nil, err
	}

	tok, err := conf.Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}
