package reporter

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/event"
	"github.com/dkoosis/prettytest/pkg/names"
	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/trace"
)

// unknownOutcome stands in for an outcome kind the engine does not know.
const unknownOutcome = "could not run for an unknown reason"

// formatReport builds the report for a non-passing outcome. It returns false
// for passes, which produce no report.
func (e *Engine) formatReport(id event.Identity, o event.Outcome) (string, bool) {
	if o.Kind == event.Pass {
		return "", false
	}

	display := names.Display(id)
	th := e.theme
	pivot, frames := e.classifier.Classify(o.Backtrace, o.Kind)
	if n := trace.Malformed(frames); n > 0 {
		e.log.WithFields(logrus.Fields{
			"test":      display,
			"malformed": n,
		}).Debug("backtrace has unparsable frames")
	}

	var lines []string
	switch o.Kind {
	case event.Skip:
		lines = append(lines, th.Skip.Render("[SKIPPED] "+display))
		if msg := trimMessage(o.Message); msg != "" {
			lines = append(lines, msg)
		}
		if pivot >= 0 {
			lines = append(lines, trace.RenderFrame(frames[pivot], th))
		}
	case event.Failure:
		lines = append(lines, problemReport("[FAILURE] ", display, o, th.Failure)...)
		if t := trace.Render(frames, th); t != "" {
			lines = append(lines, t)
		}
	default:
		lines = append(lines, problemReport("[ERROR] ", display, o, th.Error)...)
		if t := trace.Render(frames, th); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n"), true
}

func problemReport(tag, display string, o event.Outcome, style lipgloss.Style) []string {
	return []string{
		style.Render(tag + display),
		render.Lines(style, exceptionLine(o)),
	}
}

// exceptionLine renders "Kind: message", or just the kind when the runner
// gave no message.
func exceptionLine(o event.Outcome) string {
	kind := o.ExceptionKind
	if kind == "" {
		switch o.Kind {
		case event.Failure:
			kind = "Failure"
		case event.Error:
			kind = "Error"
		default:
			kind = "Unknown"
		}
	}
	msg := trimMessage(o.Message)
	if o.Kind != event.Failure && o.Kind != event.Error && msg == "" {
		msg = unknownOutcome
	}
	if msg == "" {
		return kind
	}
	return kind + ": " + msg
}

func trimMessage(s string) string {
	return strings.TrimRight(s, " \t\r\n")
}
