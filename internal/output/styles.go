package output

import (
	"github.com/charmbracelet/lipgloss"

	"surveyreview/internal/progress"
)

var (
	colorGreen  = lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#3fb950"}
	colorYellow = lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#d29922"}
	colorRed    = lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#f85149"}
	colorBlue   = lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#58a6ff"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#6e7781", Dark: "#8b949e"}
)

type styles struct {
	info, success, warning, failure lipgloss.Style

	dotReady, dotLoading, dotError lipgloss.Style
	statusText                     lipgloss.Style

	toastBase lipgloss.Style
	toastOK   lipgloss.Style
	toastWarn lipgloss.Style
	toastErr  lipgloss.Style

	counter, bar, header, muted lipgloss.Style
	summaryOK, summaryWarn      lipgloss.Style
}

func newStyles(r *lipgloss.Renderer, color bool) styles {
	plain := r.NewStyle()
	if !color {
		box := plain.Border(lipgloss.NormalBorder()).Padding(0, 1)
		return styles{
			info: plain, success: plain, warning: plain, failure: plain,
			dotReady: plain, dotLoading: plain, dotError: plain,
			statusText: plain,
			toastBase:  box, toastOK: box, toastWarn: box, toastErr: box,
			counter: plain, bar: plain, header: plain, muted: plain,
			summaryOK: box, summaryWarn: box,
		}
	}

	toastBase := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	summary := r.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	return styles{
		info:    r.NewStyle(),
		success: r.NewStyle().Foreground(colorGreen),
		warning: r.NewStyle().Foreground(colorYellow),
		failure: r.NewStyle().Foreground(colorRed).Bold(true),

		dotReady:   r.NewStyle().Foreground(colorGreen),
		dotLoading: r.NewStyle().Foreground(colorBlue),
		dotError:   r.NewStyle().Foreground(colorRed),
		statusText: r.NewStyle().Bold(true),

		toastBase: toastBase,
		toastOK:   toastBase.BorderForeground(colorGreen),
		toastWarn: toastBase.BorderForeground(colorYellow),
		toastErr:  toastBase.BorderForeground(colorRed),

		counter: r.NewStyle().Bold(true),
		bar:     r.NewStyle().Foreground(colorBlue),
		header:  r.NewStyle().Bold(true).Underline(true),
		muted:   r.NewStyle().Foreground(colorMuted),

		summaryOK:   summary.BorderForeground(colorGreen),
		summaryWarn: summary.BorderForeground(colorYellow),
	}
}

func (s styles) severity(sev progress.Severity) lipgloss.Style {
	switch sev {
	case progress.SeveritySuccess:
		return s.success
	case progress.SeverityWarning:
		return s.warning
	case progress.SeverityError:
		return s.failure
	default:
		return s.info
	}
}

func (s styles) statusDot(kind progress.StatusKind) lipgloss.Style {
	switch kind {
	case progress.StatusLoading:
		return s.dotLoading
	case progress.StatusError:
		return s.dotError
	default:
		return s.dotReady
	}
}

func (s styles) toast(kind progress.ToastKind) lipgloss.Style {
	switch kind {
	case progress.ToastSuccess:
		return s.toastOK
	case progress.ToastWarning:
		return s.toastWarn
	case progress.ToastError:
		return s.toastErr
	default:
		return s.toastBase
	}
}
