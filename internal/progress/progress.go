// Package progress defines the reporting contract between the iteration
// sequencer and whatever presents its output.
//
// The sequencer never touches a terminal or a window. It pushes progress,
// log lines, status changes and toasts through a [Reporter]. Presentation
// layers implement Reporter; [Fanout] lets several of them observe one run, and
// [Journal] keeps an in-memory copy for reports and tests.
package progress

import (
	"fmt"
	"time"
)

// Severity classifies a log line.
type Severity string

// Log severities.
const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// StatusKind classifies the status indicator.
type StatusKind string

// Status indicator kinds.
const (
	StatusReady   StatusKind = "ready"
	StatusLoading StatusKind = "loading"
	StatusError   StatusKind = "error"
)

// ToastKind classifies a transient notification.
type ToastKind string

// Toast kinds.
const (
	ToastSuccess ToastKind = "success"
	ToastWarning ToastKind = "warning"
	ToastError   ToastKind = "error"
)

// DefaultToastDuration is how long a toast stays up unless the caller says otherwise.
const DefaultToastDuration = 3 * time.Second

// LogEntry is one line of the append-only progress log.
type LogEntry struct {
	Time     time.Time `yaml:"time"`
	Message  string    `yaml:"message"`
	Severity Severity  `yaml:"severity"`
}

// String renders the entry the way the progress log shows it.
func (e LogEntry) String() string {
	return fmt.Sprintf("%s: %s", e.Time.Format(time.TimeOnly), e.Message)
}

// Reporter receives run events.
//
// Implementations are called synchronously from the goroutine driving the run
// and must not block for long.
type Reporter interface {
	OnProgress(current, total int)
	OnLog(message string, severity Severity)
	OnStatusChange(text string, kind StatusKind)
	OnToast(message string, kind ToastKind, duration time.Duration)
}

// Fanout forwards every event to each reporter in order. Nil entries are skipped.
type Fanout []Reporter

func (f Fanout) OnProgress(current, total int) {
	for _, r := range f {
		if r != nil {
			r.OnProgress(current, total)
		}
	}
}

func (f Fanout) OnLog(message string, severity Severity) {
	for _, r := range f {
		if r != nil {
			r.OnLog(message, severity)
		}
	}
}

func (f Fanout) OnStatusChange(text string, kind StatusKind) {
	for _, r := range f {
		if r != nil {
			r.OnStatusChange(text, kind)
		}
	}
}

func (f Fanout) OnToast(message string, kind ToastKind, duration time.Duration) {
	for _, r := range f {
		if r != nil {
			r.OnToast(message, kind, duration)
		}
	}
}

// Discard drops every event.
var Discard Reporter = discard{}

type discard struct{}

func (discard) OnProgress(int, int) {}

func (discard) OnLog(string, Severity) {}

func (discard) OnStatusChange(string, StatusKind) {}

func (discard) OnToast(string, ToastKind, time.Duration) {}

var (
	_ Reporter = Fanout(nil)
	_ Reporter = (*Journal)(nil)
)
