package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"google.golang.org/api/option"

	"github.com/teemow/inboxbridge/internal/calendar"
	"github.com/teemow/inboxbridge/internal/gmail"
	"github.com/teemow/inboxbridge/internal/google"
	"github.com/teemow/inboxbridge/internal/instrumentation"
	"github.com/teemow/inboxbridge/internal/logging"
)

// ErrShutdown is returned for client requests after Shutdown.
var ErrShutdown = errors.New("server is shutting down")

// Options configures a ServerContext.
type Options struct {
	// Manager supplies credentials. Required.
	Manager *google.Manager

	Logger *slog.Logger

	// ReadOnly hides the send and create tools.
	ReadOnly bool

	// ClientOptions are appended to every Google API client, after the
	// token source. Tests use them to point clients at a fake endpoint.
	ClientOptions []option.ClientOption
}

// memoized is a client built for one credential generation.
type memoized[T any] struct {
	client     *T
	generation uint64
}

// ServerContext is the service factory shared by all tool handlers.
//
// Every client request first obtains a credential from the Manager, so
// authentication errors surface immediately. Clients are memoized per
// service and rebuilt when the Manager's credential generation changes
// or Invalidate is called.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	manager    *google.Manager
	logger     *slog.Logger
	readOnly   bool
	clientOpts []option.ClientOption

	mu          sync.RWMutex
	gmail       memoized[gmail.Client]
	calendar    memoized[calendar.Client]
	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger
	shutdown    bool
}

// NewServerContext creates a ServerContext. Its clients live until
// Shutdown or until ctx is cancelled.
func NewServerContext(ctx context.Context, opts Options) (*ServerContext, error) {
	if opts.Manager == nil {
		return nil, errors.New("credential manager is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		manager:    opts.Manager,
		logger:     logger,
		readOnly:   opts.ReadOnly,
		clientOpts: opts.ClientOptions,
	}, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Manager returns the credential manager.
func (sc *ServerContext) Manager() *google.Manager {
	return sc.manager
}

// Logger returns the server logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// ReadOnly reports whether write tools are disabled.
func (sc *ServerContext) ReadOnly() bool {
	return sc.readOnly
}

// GmailClient returns a Gmail client bound to the current credential.
func (sc *ServerContext) GmailClient(ctx context.Context) (*gmail.Client, error) {
	return memoizedClient(ctx, sc, google.ServiceGmail, &sc.gmail, gmail.NewClient)
}

// CalendarClient returns a Calendar client bound to the current
// credential.
func (sc *ServerContext) CalendarClient(ctx context.Context) (*calendar.Client, error) {
	return memoizedClient(ctx, sc, google.ServiceCalendar, &sc.calendar, calendar.NewClient)
}

type clientFactory[T any] func(context.Context, *slog.Logger, google.APIMetrics, ...option.ClientOption) (*T, error)

func memoizedClient[T any](ctx context.Context, sc *ServerContext, service string, slot *memoized[T], build clientFactory[T]) (*T, error) {
	if sc.IsShutdown() {
		return nil, ErrShutdown
	}

	if _, err := sc.manager.Obtain(ctx); err != nil {
		return nil, err
	}
	generation := sc.manager.Generation()

	sc.mu.Lock()
	defer sc.mu.Unlock()

	if slot.client != nil && slot.generation == generation {
		return slot.client, nil
	}

	opts := append([]option.ClientOption{
		option.WithTokenSource(sc.manager.TokenSource(sc.ctx)),
	}, sc.clientOpts...)

	c, err := build(sc.ctx, sc.logger, sc.apiMetricsLocked(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s client: %w", service, err)
	}
	if slot.client != nil {
		sc.logger.Debug("rebuilt client for new credential", logging.Service(service), slog.Uint64("generation", generation))
	}
	slot.client = c
	slot.generation = generation
	return c, nil
}

// apiMetricsLocked keeps a nil recorder a nil interface.
func (sc *ServerContext) apiMetricsLocked() google.APIMetrics {
	if sc.metrics == nil {
		return nil
	}
	return sc.metrics
}

// Invalidate drops all memoized clients and makes the Manager re-read
// the token file on next use.
func (sc *ServerContext) Invalidate() {
	sc.manager.Forget()

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.gmail = memoized[gmail.Client]{}
	sc.calendar = memoized[calendar.Client]{}
}

// ReloadCredentials invalidates cached state after the token file
// changed outside this process. A store that still holds the current
// credential, such as after this process saved a refresh, is ignored.
// trigger labels the reload metric.
func (sc *ServerContext) ReloadCredentials(ctx context.Context, trigger string) {
	if changed, err := sc.manager.StoreChanged(); err == nil && !changed {
		sc.logger.Debug("token file holds the current credential, keeping clients", slog.String("trigger", trigger))
		return
	}
	sc.Invalidate()
	sc.Metrics().RecordCredentialReload(ctx, trigger)
}

// SetMetrics sets the metrics recorder used by tools and API clients.
// Clients built earlier keep their recorder until rebuilt.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the tool audit logger.
func (sc *ServerContext) SetAuditLogger(al *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = al
}

// AuditLogger returns the tool audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than
// once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
