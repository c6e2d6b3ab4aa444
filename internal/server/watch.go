package server

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/teemow/inboxbridge/internal/logging"
)

// DefaultWatchDebounce coalesces the burst of events an atomic file
// replace produces.
const DefaultWatchDebounce = 200 * time.Millisecond

// TokenWatcher calls OnChange when the token file is created, written,
// replaced or removed, e.g. by "inboxbridge auth login" running in
// another terminal.
//
// The parent directory is watched rather than the file, so the watch
// survives the file being replaced by rename.
type TokenWatcher struct {
	path     string
	onChange func()
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
}

// NewTokenWatcher starts watching path. The parent directory must exist.
func NewTokenWatcher(path string, onChange func(), logger *slog.Logger) (*TokenWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token file path: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	return &TokenWatcher{
		path:     abs,
		onChange: onChange,
		debounce: DefaultWatchDebounce,
		logger:   logger.With(logging.Path(abs)),
		watcher:  watcher,
	}, nil
}

// Run delivers change notifications until ctx is done, then closes the
// watcher.
func (w *TokenWatcher) Run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			w.logger.Debug("token file event", slog.String("op", ev.Op.String()))
			timer.Reset(w.debounce)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("token file watch error", logging.Err(err))

		case <-timer.C:
			w.logger.Info("token file changed, dropping cached credential")
			w.onChange()
		}
	}
}

func (w *TokenWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Has(fsnotify.Create) || ev.Has(fsnotify.Write) || ev.Has(fsnotify.Rename) || ev.Has(fsnotify.Remove)
}
