package progress

import (
	"sync"
	"time"
)

// Toast is a recorded toast notification.
type Toast struct {
	Message  string
	Kind     ToastKind
	Duration time.Duration
}

// Status is a recorded status change.
type Status struct {
	Text string
	Kind StatusKind
}

// Journal records every event it receives. It is safe for concurrent use; all
// accessors return copies.
type Journal struct {
	mu       sync.RWMutex
	now      func() time.Time
	entries  []LogEntry
	statuses []Status
	toasts   []Toast
	current  int
	total    int
	updates  [][2]int
}

// NewJournal creates an empty Journal stamped with the wall clock.
func NewJournal() *Journal {
	return &Journal{now: time.Now}
}

// NewJournalWithClock creates a Journal that stamps entries with now.
func NewJournalWithClock(now func() time.Time) *Journal {
	return &Journal{now: now}
}

func (j *Journal) OnProgress(current, total int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.current, j.total = current, total
	j.updates = append(j.updates, [2]int{current, total})
}

func (j *Journal) OnLog(message string, severity Severity) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, LogEntry{Time: j.now(), Message: message, Severity: severity})
}

func (j *Journal) OnStatusChange(text string, kind StatusKind) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.statuses = append(j.statuses, Status{Text: text, Kind: kind})
}

func (j *Journal) OnToast(message string, kind ToastKind, duration time.Duration) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.toasts = append(j.toasts, Toast{Message: message, Kind: kind, Duration: duration})
}

// Entries returns the log in append order.
func (j *Journal) Entries() []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]LogEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// EntriesWithSeverity returns the log lines of one severity.
func (j *Journal) EntriesWithSeverity(severity Severity) []LogEntry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []LogEntry
	for _, e := range j.entries {
		if e.Severity == severity {
			out = append(out, e)
		}
	}
	return out
}

// Progress returns the most recent (current, total) pair.
func (j *Journal) Progress() (current, total int) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.current, j.total
}

// ProgressUpdates returns every (current, total) pair in the order received.
func (j *Journal) ProgressUpdates() [][2]int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([][2]int, len(j.updates))
	copy(out, j.updates)
	return out
}

// Statuses returns every status change in order.
func (j *Journal) Statuses() []Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Status, len(j.statuses))
	copy(out, j.statuses)
	return out
}

// LastStatus returns the most recent status change, if any.
func (j *Journal) LastStatus() (Status, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.statuses) == 0 {
		return Status{}, false
	}
	return j.statuses[len(j.statuses)-1], true
}

// Toasts returns every toast in order.
func (j *Journal) Toasts() []Toast {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Toast, len(j.toasts))
	copy(out, j.toasts)
	return out
}

// Len returns the number of recorded events of any kind.
func (j *Journal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return len(j.entries) + len(j.statuses) + len(j.toasts) + len(j.updates)
}
