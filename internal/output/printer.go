// Package output renders run events in the terminal.
//
// [Printer] implements [progress.Reporter] with lipgloss styling: a status dot,
// a progress bar, severity-coloured log lines and boxed toasts. It also prints
// the step catalog, dry-run plans and run summaries for the CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"surveyreview/internal/progress"
	"surveyreview/internal/sequencer"
	"surveyreview/internal/workflow"
)

// DefaultProgressWidth is the progress bar width in cells.
const DefaultProgressWidth = 30

// Printer writes formatted run events to a writer. It is safe for concurrent use.
type Printer struct {
	mu         sync.Mutex
	out        io.Writer
	renderer   *lipgloss.Renderer
	styles     styles
	timestamps bool
	barWidth   int
	now        func() time.Time
}

// NewPrinter creates a Printer that writes to stdout.
func NewPrinter() *Printer {
	return NewPrinterWithWriter(os.Stdout)
}

// NewPrinterWithWriter creates a Printer that writes to w. Colour support is
// detected from w, so buffers get plain text.
func NewPrinterWithWriter(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:        w,
		renderer:   r,
		styles:     newStyles(r, true),
		timestamps: true,
		barWidth:   DefaultProgressWidth,
		now:        time.Now,
	}
}

// SetColor enables or disables styling.
func (p *Printer) SetColor(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.styles = newStyles(p.renderer, enabled)
}

// SetTimestamps controls the time prefix on log lines.
func (p *Printer) SetTimestamps(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timestamps = enabled
}

// SetProgressWidth sets the progress bar width. Zero hides the bar.
func (p *Printer) SetProgressWidth(width int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.barWidth = width
}

// SetClock replaces the time source used for log prefixes.
func (p *Printer) SetClock(now func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.now = now
}

func (p *Printer) println(s string) {
	fmt.Fprintln(p.out, s)
}

// OnProgress prints the counter and bar.
func (p *Printer) OnProgress(current, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	counter := p.styles.counter.Render(fmt.Sprintf("%d/%d", current, total))
	line := fmt.Sprintf("Progress %s", counter)
	if p.barWidth > 0 {
		line += " " + p.styles.bar.Render(ProgressBar(current, total, p.barWidth))
	}
	line += fmt.Sprintf(" %3.0f%%", Percent(current, total))
	p.println(line)
}

// OnLog prints one progress log line.
func (p *Printer) OnLog(message string, severity progress.Severity) {
	p.mu.Lock()
	defer p.mu.Unlock()

	text := message
	if p.timestamps {
		text = fmt.Sprintf("%s: %s", p.now().Format(time.TimeOnly), message)
	}
	p.println(p.styles.severity(severity).Render(text))
}

// OnStatusChange prints the status indicator.
func (p *Printer) OnStatusChange(text string, kind progress.StatusKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	dot := p.styles.statusDot(kind).Render("●")
	p.println(fmt.Sprintf("%s %s", dot, p.styles.statusText.Render(text)))
}

// OnToast prints a boxed notification. The terminal has no timed dismissal,
// so duration is not rendered.
func (p *Printer) OnToast(message string, kind progress.ToastKind, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(p.styles.toast(kind).Render(fmt.Sprintf("%s %s", toastIcon(kind), message)))
}

// Steps prints the step catalog with delay tiers.
func (p *Printer) Steps(steps []workflow.Step) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(p.styles.header.Render("Review workflow steps"))
	for i, s := range steps {
		marker := ""
		if s.Flaky {
			marker = " " + p.styles.warning.Render("(may need retries)")
		}
		p.println(fmt.Sprintf("%2d. %-24s %-12s %s%s",
			i+1, s.Name, s.Delay.String(), p.styles.muted.Render(s.Label), marker))
	}
}

// Plan prints a dry-run preview.
func (p *Printer) Plan(plan sequencer.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.println(p.styles.header.Render(fmt.Sprintf("Dry run: %d iterations x %d steps", plan.Iterations, len(plan.Steps))))
	p.println(fmt.Sprintf("Estimated duration: %s - %s", roundSeconds(plan.Shortest), roundSeconds(plan.Longest)))
}

// Summary prints the outcome of a finished run.
func (p *Printer) Summary(result sequencer.RunResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s %s\n", result.RunID, result.Outcome)
	fmt.Fprintf(&b, "Iterations: %d/%d run, %d succeeded, %d failed\n",
		result.IterationsRun, result.Total, result.Succeeded, len(result.Failures))
	for _, f := range result.Failures {
		fmt.Fprintf(&b, "  - %s\n", f.Error())
	}
	fmt.Fprintf(&b, "Elapsed: %s", roundSeconds(result.Elapsed()))

	style := p.styles.summaryOK
	if result.Outcome != sequencer.OutcomeCompleted || len(result.Failures) > 0 {
		style = p.styles.summaryWarn
	}
	p.println(style.Render(b.String()))
}

// Text prints a plain line.
func (p *Printer) Text(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.println(fmt.Sprintf(format, args...))
}

// ProgressBar renders a fixed-width bar for current/total.
func ProgressBar(current, total, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if total > 0 {
		filled = current * width / total
	}
	filled = max(0, min(filled, width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Percent returns current/total as a percentage; zero when total is zero.
func Percent(current, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(current) / float64(total) * 100
}

func toastIcon(kind progress.ToastKind) string {
	switch kind {
	case progress.ToastSuccess:
		return "✔"
	case progress.ToastError:
		return "✖"
	default:
		return "⚠"
	}
}

func roundSeconds(d time.Duration) time.Duration {
	return d.Round(100 * time.Millisecond)
}

var _ progress.Reporter = (*Printer)(nil)
