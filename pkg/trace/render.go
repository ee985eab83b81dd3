package trace

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dkoosis/prettytest/pkg/render"
)

// Render formats frames one per line. Framework frames are skipped and
// output stops at the entry point so runtime bootstrap frames below the
// user's code are not shown. Frames with no project code are all rendered.
func Render(frames []Frame, theme render.Theme) string {
	entry := entryPoint(frames)
	lines := make([]string, 0, len(frames))
	for i, f := range frames {
		if f.Origin != OriginFramework {
			lines = append(lines, RenderFrame(f, theme))
		}
		if i == entry {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// RenderFrame formats one frame as "prefix [label] rel:line method".
// Unknown origins render "prefix path:line method" and malformed frames
// render their raw text.
func RenderFrame(f Frame, theme render.Theme) string {
	prefix := theme.Markers.Plain
	if f.Pivot {
		prefix = theme.Markers.Pivot
	}

	var sb strings.Builder
	sb.WriteString(prefix)
	switch {
	case !f.Parsed:
		sb.WriteString(strings.TrimSpace(f.Raw))
	case f.Origin == OriginUnknown:
		sb.WriteString(f.Path)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(f.Line))
	default:
		sb.WriteString("[")
		sb.WriteString(f.Label)
		sb.WriteString("] ")
		sb.WriteString(f.Rel)
		sb.WriteString(":")
		sb.WriteString(strconv.Itoa(f.Line))
	}
	if f.Parsed && f.Method != "" {
		sb.WriteString(" ")
		sb.WriteString(f.Method)
	}

	style := originStyle(f.Origin, theme)
	if f.Pivot {
		style = theme.Pivot.Inherit(style)
	}
	return style.Render(sb.String())
}

func originStyle(o Origin, theme render.Theme) lipgloss.Style {
	switch o {
	case OriginProject:
		return theme.Project
	case OriginDependency:
		return theme.Dependency
	case OriginRuntime:
		return theme.Runtime
	default:
		return theme.Unknown
	}
}
