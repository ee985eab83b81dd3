// Package render holds the lipgloss themes used for status lines, trace
// frames and failure reports.
package render

import "github.com/charmbracelet/lipgloss"

// Theme defines the styles for terminal rendering. Styles are applied to
// single lines only; multi-line text is styled line by line.
type Theme struct {
	Name string

	// Frame origins
	Project    lipgloss.Style
	Dependency lipgloss.Style
	Runtime    lipgloss.Style
	Unknown    lipgloss.Style
	Pivot      lipgloss.Style

	// Report headers and verdicts
	Pass    lipgloss.Style
	Skip    lipgloss.Style
	Failure lipgloss.Style
	Error   lipgloss.Style

	// Status line segments
	Elapsed    lipgloss.Style
	Tests      lipgloss.Style
	Assertions lipgloss.Style
	Label      lipgloss.Style

	Markers ThemeMarkers
}

// ThemeMarkers defines the text markers for a theme.
type ThemeMarkers struct {
	Pivot string // prefix of the frame that matters
	Plain string // prefix of every other frame; same width as Pivot
}

func defaultMarkers() ThemeMarkers {
	return ThemeMarkers{Pivot: "-> ", Plain: "   "}
}

// base returns a style bound to r that leaves tabs alone, so runner messages
// keep their own indentation.
func base(r *lipgloss.Renderer) lipgloss.Style {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return r.NewStyle().TabWidth(lipgloss.NoTabConversion)
}

// DefaultTheme returns the classic ANSI palette: white project frames, cyan
// dependencies, magenta runtime, red failures, yellow skips.
func DefaultTheme(r *lipgloss.Renderer) Theme {
	b := base(r)
	return Theme{
		Name:       "default",
		Project:    b.Foreground(lipgloss.Color("7")),
		Dependency: b.Foreground(lipgloss.Color("6")),
		Runtime:    b.Foreground(lipgloss.Color("5")),
		Unknown:    b,
		Pivot:      b.Bold(true),
		Pass:       b.Foreground(lipgloss.Color("2")),
		Skip:       b.Foreground(lipgloss.Color("3")),
		Failure:    b.Foreground(lipgloss.Color("1")),
		Error:      b.Foreground(lipgloss.Color("1")),
		Elapsed:    b.Foreground(lipgloss.Color("7")),
		Tests:      b.Foreground(lipgloss.Color("2")),
		Assertions: b.Foreground(lipgloss.Color("6")),
		Label:      b.Foreground(lipgloss.Color("7")),
		Markers:    defaultMarkers(),
	}
}

// OrcaTheme returns a muted, professional theme.
func OrcaTheme(r *lipgloss.Renderer) Theme {
	b := base(r)
	return Theme{
		Name:       "orca",
		Project:    b.Foreground(lipgloss.Color("252")),
		Dependency: b.Foreground(lipgloss.Color("75")),  // pale blue
		Runtime:    b.Foreground(lipgloss.Color("245")), // lighter gray
		Unknown:    b.Foreground(lipgloss.Color("242")),
		Pivot:      b.Bold(true),
		Pass:       b.Foreground(lipgloss.Color("108")), // sage green
		Skip:       b.Foreground(lipgloss.Color("179")), // muted gold
		Failure:    b.Foreground(lipgloss.Color("167")), // muted red
		Error:      b.Foreground(lipgloss.Color("167")),
		Elapsed:    b.Foreground(lipgloss.Color("245")),
		Tests:      b.Foreground(lipgloss.Color("108")),
		Assertions: b.Foreground(lipgloss.Color("75")),
		Label:      b.Foreground(lipgloss.Color("245")),
		Markers:    defaultMarkers(),
	}
}

// MonoTheme returns a theme that emits no escape sequences at all.
func MonoTheme() Theme {
	b := lipgloss.NewStyle().TabWidth(lipgloss.NoTabConversion)
	return Theme{
		Name:       "mono",
		Project:    b,
		Dependency: b,
		Runtime:    b,
		Unknown:    b,
		Pivot:      b,
		Pass:       b,
		Skip:       b,
		Failure:    b,
		Error:      b,
		Elapsed:    b,
		Tests:      b,
		Assertions: b,
		Label:      b,
		Markers:    defaultMarkers(),
	}
}

// ThemeNames lists the built-in theme names.
func ThemeNames() []string {
	return []string{"default", "orca", "mono"}
}

// ThemeByName returns a theme by name bound to r, defaulting to DefaultTheme.
func ThemeByName(name string, r *lipgloss.Renderer) Theme {
	switch name {
	case "orca":
		return OrcaTheme(r)
	case "mono":
		return MonoTheme()
	default:
		return DefaultTheme(r)
	}
}

// Lines applies style to every line of text separately. lipgloss pads
// multi-line blocks to a common width, which would add trailing spaces to
// runner messages.
func Lines(style lipgloss.Style, text string) string {
	if text == "" {
		return ""
	}
	out := make([]byte, 0, len(text)+16)
	start := 0
	for i := 0; i <= len(text); i++ {
		if i == len(text) || text[i] == '\n' {
			line := text[start:i]
			if line != "" {
				out = append(out, style.Render(line)...)
			}
			if i < len(text) {
				out = append(out, '\n')
			}
			start = i + 1
		}
	}
	return string(out)
}
