// Package status renders the single-line progress summary that the engine
// redraws in place while a run is in progress.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/dkoosis/prettytest/pkg/render"
)

// Terminal control sequences used around the status line.
const (
	EraseLine = "\x1b[2K\r"
	WrapOff   = "\x1b[?7l"
	WrapOn    = "\x1b[?7h"
)

// RunState is the running tally for one run.
type RunState struct {
	StartedAt  time.Time
	Total      int
	Completed  int
	Assertions int
	Errors     int
	Failures   int
	Skips      int
}

// Percent returns floor(100*Completed/Total), or 0 when nothing is expected.
func (s RunState) Percent() int {
	if s.Total <= 0 {
		return 0
	}
	return 100 * s.Completed / s.Total
}

// Failed reports whether any test failed or errored.
func (s RunState) Failed() bool {
	return s.Errors+s.Failures > 0
}

// Options configures a Renderer.
type Options struct {
	// Interactive brackets the line with auto-wrap off/on so an over-long
	// line never scrolls the terminal.
	Interactive bool
	// Width is the terminal width in cells; 0 disables label truncation.
	Width int
	Theme render.Theme
	// Now defaults to time.Now.
	Now func() time.Time
}

// Renderer formats RunState snapshots. It keeps no state between calls.
type Renderer struct {
	now         func() time.Time
	interactive bool
	width       int
	theme       render.Theme
}

// New creates a Renderer.
func New(opts Options) *Renderer {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Renderer{
		now:         now,
		interactive: opts.Interactive,
		width:       opts.Width,
		theme:       opts.Theme,
	}
}

// Interactive reports whether the renderer targets a live terminal.
func (r *Renderer) Interactive() bool {
	return r.interactive
}

// Erase returns the sequence that clears the current line and returns the
// cursor to column 0.
func (r *Renderer) Erase() string {
	return EraseLine
}

// Elapsed returns the time since state.StartedAt by the renderer's clock.
func (r *Renderer) Elapsed(state RunState) time.Duration {
	if state.StartedAt.IsZero() {
		return 0
	}
	d := r.now().Sub(state.StartedAt)
	if d < 0 {
		return 0
	}
	return d
}

// Render formats the status line for state, followed by label when it is
// non-empty. The result never ends in a newline.
func (r *Renderer) Render(state RunState, label string) string {
	th := r.theme
	segments := []struct {
		text  string
		style lipgloss.Style
	}{
		{fmt.Sprintf("(%.1fs) ", r.Elapsed(state).Seconds()), th.Elapsed},
		{fmt.Sprintf("%s/%s tests (%d%%)", humanize.Comma(int64(state.Completed)), humanize.Comma(int64(state.Total)), state.Percent()), th.Tests},
		{", ", th.Elapsed},
		{humanize.Comma(int64(state.Assertions)) + " assertions", th.Assertions},
		{", ", th.Elapsed},
		{humanize.Comma(int64(state.Errors)) + " errors", th.Error},
		{", ", th.Elapsed},
		{humanize.Comma(int64(state.Failures)) + " failures", th.Failure},
		{", ", th.Elapsed},
		{humanize.Comma(int64(state.Skips)) + " skips", th.Skip},
	}

	var plainWidth int
	var sb strings.Builder
	if r.interactive {
		sb.WriteString(WrapOff)
	}
	for _, seg := range segments {
		plainWidth += runewidth.StringWidth(seg.text)
		sb.WriteString(seg.style.Render(seg.text))
	}
	if label = r.fitLabel(label, plainWidth); label != "" {
		sb.WriteString(" ")
		sb.WriteString(th.Label.Render(label))
	}
	if r.interactive {
		sb.WriteString(WrapOn)
	}
	return sb.String()
}

// fitLabel truncates label to the cells left after used+1 on an interactive
// terminal of known width.
func (r *Renderer) fitLabel(label string, used int) string {
	label = strings.Join(strings.Fields(label), " ")
	if label == "" || !r.interactive || r.width <= 0 {
		return label
	}
	avail := r.width - used - 1
	if avail <= 0 {
		return ""
	}
	if runewidth.StringWidth(label) <= avail {
		return label
	}
	return runewidth.Truncate(label, avail, "…")
}
