package magetasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/charmbracelet/lipgloss"
	"github.com/magefile/mage/sh"
	"golang.org/x/term"

	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/adapter/gotest"
	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/reporter"
)

// errTestsFailed is returned when the run finished with failures or errors.
var errTestsFailed = errors.New("tests failed")

// TestAll runs all tests through the prettytest reporter.
func TestAll() error {
	PrintH2Header("Tests")
	return reportGoTest(context.Background(), "./...")
}

// TestCoverage runs tests with coverage.
func TestCoverage() error {
	PrintH2Header("Test Coverage")

	if err := reportGoTest(context.Background(), "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	if err := sh.RunV("go", "tool", "cover", "-func=coverage.out"); err != nil {
		PrintWarning("coverage summary unavailable: " + err.Error())
	}

	PrintSuccess("Coverage report generated")
	return nil
}

// TestRace runs tests with race detector.
func TestRace() error {
	PrintH2Header("Race Detector")
	return reportGoTest(context.Background(), "-race", "./...")
}

// reportGoTest runs go test -json with args and streams its events into
// a reporter on Out.
func reportGoTest(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "go", append([]string{"test", "-json"}, args...)...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting go test: %w", err)
	}

	passed, reportErr := renderTestStream(ctx, stdout, Out, isTerminal(Out))
	// Drain so go test never blocks on a full pipe after a report error.
	_, _ = io.Copy(io.Discard, stdout)
	// go test exits non-zero on failures the report already shows.
	waitErr := cmd.Wait()
	switch {
	case reportErr != nil:
		return reportErr
	case !passed:
		return errTestsFailed
	case waitErr != nil:
		return fmt.Errorf("go test: %w", waitErr)
	}
	return nil
}

// renderTestStream reports a go test -json stream read from r to w and
// reports whether every test passed.
func renderTestStream(ctx context.Context, r io.Reader, w io.Writer, interactive bool) (bool, error) {
	theme := render.MonoTheme()
	if interactive {
		theme = render.DefaultTheme(lipgloss.NewRenderer(w))
	}
	eng := reporter.New(w, reporter.Config{
		Interactive: interactive,
		Width:       terminalWidth(w),
		Theme:       theme,
	})
	opts := []adapter.Option{}
	if ProjectRoot != "" {
		opts = append(opts, adapter.WithRoot(ProjectRoot))
	}
	if _, err := gotest.Run(ctx, r, eng, opts...); err != nil {
		return false, err
	}
	return eng.Passed(), nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func terminalWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width > 0 {
			return width
		}
	}
	return 80
}
