package target

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"surveyreview/internal/progress"
	"surveyreview/internal/sequencer"
)

var (
	// ErrNoActiveSurface is returned when an operation needs a live surface.
	ErrNoActiveSurface = errors.New("no active website window")

	// ErrNoSavedState is returned by ReturnToOriginal before SaveState succeeded.
	ErrNoSavedState = errors.New("no saved window state, save state first")

	// ErrSurfaceUnavailable is returned when the saved surface has closed.
	ErrSurfaceUnavailable = errors.New("saved window is no longer available")
)

// SessionTiming holds the pauses used when returning to the original surface.
type SessionTiming struct {
	FocusWait     time.Duration
	ApplyClick    time.Duration
	ToastDuration time.Duration
	BlockedToast  time.Duration
}

// DefaultSessionTiming returns 1s focus wait, 800ms Apply click, 3s toasts
// and a 5s toast for launch failures.
func DefaultSessionTiming() SessionTiming {
	return SessionTiming{
		FocusWait:     time.Second,
		ApplyClick:    800 * time.Millisecond,
		ToastDuration: progress.DefaultToastDuration,
		BlockedToast:  5 * time.Second,
	}
}

// Session tracks the surface and the one saved as the original.
type Session struct {
	surface  Surface
	reporter progress.Reporter
	clock    sequencer.Clock
	timing   SessionTiming
	logger   *slog.Logger

	mu       sync.Mutex
	original Surface
}

// NewSession creates a Session for s.
func NewSession(s Surface, reporter progress.Reporter) *Session {
	if reporter == nil {
		reporter = progress.Discard
	}
	return &Session{
		surface:  s,
		reporter: reporter,
		clock:    sequencer.RealClock{},
		timing:   DefaultSessionTiming(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func (s *Session) SetClock(c sequencer.Clock) {
	s.clock = c
}

func (s *Session) SetTiming(t SessionTiming) {
	s.timing = t
}

func (s *Session) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Surface returns the managed surface.
func (s *Session) Surface() Surface {
	return s.surface
}

// Open opens the surface and reports the result. A launch failure reports the
// URL so it can be opened by hand.
func (s *Session) Open(ctx context.Context) error {
	s.reporter.OnStatusChange("Opening website...", progress.StatusLoading)

	err := s.surface.Open(ctx)
	switch {
	case err == nil:
		s.logger.Info("surface opened", "url", s.surface.URL())
		s.reporter.OnStatusChange("Website opened", progress.StatusReady)
		s.reporter.OnToast("Website opened in new window. You can now use the automation controls.",
			progress.ToastSuccess, s.timing.ToastDuration)
		return nil
	case errors.Is(err, ErrLaunchBlocked):
		s.logger.Warn("surface launch blocked", "url", s.surface.URL(), "error", err)
		s.reporter.OnStatusChange("Popup blocked", progress.StatusError)
		s.reporter.OnToast(fmt.Sprintf("Popup blocked! Open manually: %s", s.surface.URL()),
			progress.ToastError, s.timing.BlockedToast)
		return err
	default:
		s.reporter.OnStatusChange("Error opening website", progress.StatusError)
		s.reporter.OnToast(fmt.Sprintf("Error: %v", err), progress.ToastError, s.timing.ToastDuration)
		return err
	}
}

// SaveState records the live surface as the original.
func (s *Session) SaveState() error {
	if !s.surface.IsAlive() {
		s.reporter.OnStatusChange("Error saving state", progress.StatusError)
		s.reporter.OnToast(fmt.Sprintf("Error: %v", ErrNoActiveSurface), progress.ToastError, s.timing.ToastDuration)
		return ErrNoActiveSurface
	}

	s.mu.Lock()
	s.original = s.surface
	s.mu.Unlock()

	s.reporter.OnStatusChange("State saved", progress.StatusReady)
	s.reporter.OnToast("Current window state saved successfully", progress.ToastSuccess, s.timing.ToastDuration)
	s.reporter.OnLog("Window state saved successfully", progress.SeveritySuccess)
	return nil
}

// HasSavedState reports whether SaveState has succeeded.
func (s *Session) HasSavedState() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.original != nil
}

// ReturnToOriginal focuses the saved surface, waits, and simulates clicking Apply.
func (s *Session) ReturnToOriginal(ctx context.Context) error {
	s.mu.Lock()
	original := s.original
	s.mu.Unlock()

	if original == nil {
		return s.returnFailed(ErrNoSavedState)
	}

	s.reporter.OnStatusChange("Switching to original window...", progress.StatusLoading)

	if !original.IsAlive() {
		return s.returnFailed(ErrSurfaceUnavailable)
	}
	if err := original.Focus(); err != nil {
		return s.returnFailed(fmt.Errorf("focusing original window: %w", err))
	}
	if err := s.clock.Sleep(ctx, s.timing.FocusWait); err != nil {
		return err
	}

	s.reporter.OnLog("Clicking Apply button...", progress.SeverityInfo)
	if err := s.clock.Sleep(ctx, s.timing.ApplyClick); err != nil {
		s.reporter.OnStatusChange("Error clicking Apply button", progress.StatusError)
		s.reporter.OnToast(fmt.Sprintf("Apply button error: %v", err), progress.ToastWarning, s.timing.ToastDuration)
		s.reporter.OnLog(fmt.Sprintf("Error clicking Apply button: %v", err), progress.SeverityError)
		return err
	}
	s.reporter.OnLog("Apply button clicked successfully", progress.SeveritySuccess)

	s.reporter.OnStatusChange("Returned to original window", progress.StatusReady)
	s.reporter.OnToast("Switched to original window and clicked Apply", progress.ToastSuccess, s.timing.ToastDuration)
	s.reporter.OnLog("Returned to original window and clicked Apply button", progress.SeveritySuccess)
	return nil
}

func (s *Session) returnFailed(err error) error {
	s.logger.Warn("return to original failed", "error", err)
	s.reporter.OnStatusChange("Error switching to original", progress.StatusError)
	s.reporter.OnToast(err.Error(), progress.ToastError, s.timing.ToastDuration)
	s.reporter.OnLog(fmt.Sprintf("Error: %v", err), progress.SeverityError)
	return err
}

// Refresh reloads the surface when it is alive.
func (s *Session) Refresh() error {
	if !s.surface.IsAlive() {
		s.reporter.OnToast("No active website window to refresh", progress.ToastWarning, s.timing.ToastDuration)
		return ErrNoActiveSurface
	}
	if err := s.surface.Reload(); err != nil {
		s.reporter.OnToast(fmt.Sprintf("Error: %v", err), progress.ToastError, s.timing.ToastDuration)
		return fmt.Errorf("reloading website: %w", err)
	}
	s.reporter.OnToast("Website refreshed", progress.ToastSuccess, s.timing.ToastDuration)
	return nil
}
