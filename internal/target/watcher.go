package target

import (
	"context"
	"io"
	"log/slog"
	"time"

	"surveyreview/internal/progress"
)

// DefaultPollInterval is how often a Watcher checks liveness.
const DefaultPollInterval = time.Second

// Watcher reports when a surface goes away.
type Watcher struct {
	surface       Surface
	reporter      progress.Reporter
	interval      time.Duration
	toastDuration time.Duration
	logger        *slog.Logger
}

// NewWatcher creates a Watcher polling every interval. A non-positive interval
// uses DefaultPollInterval.
func NewWatcher(s Surface, reporter progress.Reporter, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Watcher{
		surface:       s,
		reporter:      reporter,
		interval:      interval,
		toastDuration: progress.DefaultToastDuration,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// SetLogger sets the diagnostics logger.
func (w *Watcher) SetLogger(l *slog.Logger) {
	if l != nil {
		w.logger = l
	}
}

// SetToastDuration sets how long the closed-window toast stays up.
func (w *Watcher) SetToastDuration(d time.Duration) {
	w.toastDuration = d
}

// Watch polls the surface until it dies or ctx ends.
//
// The closed status and toast are reported once, as soon as an opened surface
// is found dead, including on the very first check. Watch returns nil in that
// case and ctx.Err() on cancellation. A surface that was never opened yields
// ErrNotOpen.
func (w *Watcher) Watch(ctx context.Context) error {
	if !w.surface.Opened() {
		return ErrNotOpen
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if !w.surface.IsAlive() {
			w.logger.Info("surface closed", "url", w.surface.URL())
			w.reporter.OnStatusChange("Website window closed", progress.StatusError)
			w.reporter.OnToast("Website window was closed", progress.ToastWarning, w.toastDuration)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
