package render

import (
	"io"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/muesli/termenv"
	"github.com/stretchr/testify/assert"
)

func TestThemeByName_FallsBackToDefault(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	for _, name := range ThemeNames() {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, name, ThemeByName(name, r).Name)
		})
	}
	assert.Equal(t, "default", ThemeByName("neon", r).Name)
}

func TestTheme_AlignsMarkers(t *testing.T) {
	for _, name := range ThemeNames() {
		m := ThemeByName(name, nil).Markers
		assert.Equal(t, lipgloss.Width(m.Pivot), lipgloss.Width(m.Plain), name)
	}
}

func TestMonoTheme_EmitsNoEscapes(t *testing.T) {
	th := MonoTheme()
	assert.Equal(t, "boom", th.Failure.Render("boom"))
	assert.Equal(t, "cart.rb:3", th.Project.Render("cart.rb:3"))
}

func TestLines_StylesEachLine(t *testing.T) {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.ANSI)
	style := r.NewStyle().Foreground(lipgloss.Color("1"))

	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"single line", "expected 1"},
		{"multi line", "expected 1\nactual 2"},
		{"blank line kept", "a\n\nb"},
		{"trailing newline", "a\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Lines(style, tt.text)
			assert.Equal(t, tt.text, ansi.Strip(got))
		})
	}

	assert.Equal(t, "a  b", Lines(MonoTheme().Failure, "a  b"), "mono style leaves text untouched")
}
