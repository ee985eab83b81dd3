// prettytest renders a live, readable report of a running test suite.
//
// Usage:
//
//	go test -json ./... | prettytest
//	node --test --test-reporter=tap | prettytest
//	bundle exec rake test | prettytest events
//
// Accepts three input formats on stdin, detected from the first line:
//   - the prettytest events protocol (NDJSON lifecycle events)
//   - go test -json
//   - TAP 13/14
//
// Exit codes: 0 when every test passed, 1 when any failed or errored,
// 2 for usage or input errors, 130 when interrupted.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dkoosis/prettytest/internal/config"
	"github.com/dkoosis/prettytest/internal/detect"
	"github.com/dkoosis/prettytest/internal/logging"
	"github.com/dkoosis/prettytest/internal/version"
	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/adapter/events"
	"github.com/dkoosis/prettytest/pkg/adapter/gotest"
	"github.com/dkoosis/prettytest/pkg/adapter/tap"
	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/trace"
)

// Exit codes.
const (
	exitPassed      = 0
	exitFailed      = 1
	exitUsage       = 2
	exitInterrupted = 130
)

// peekLimit bounds how much input is buffered to detect the format.
const peekLimit = 64 * 1024

var adapters = map[detect.Format]adapter.RunFunc{
	detect.Events:     events.Run,
	detect.GoTestJSON: gotest.Run,
	detect.TAP:        tap.Run,
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries the streams and flag values shared by every command.
type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	flags       config.CliFlags
	debugConfig bool
	code        int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(stderr, "prettytest: %v\n", err)
		if a.code == exitPassed {
			a.code = exitUsage
		}
	}
	return a.code
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "prettytest",
		Short: "Live, readable test reports",
		Long: `prettytest reads a test run from stdin and reports it as it happens:
a status line with running tallies, and a report for every failure, error
and skip with the backtrace frame that matters highlighted.

The input format is detected from the first line unless a subcommand or
--format names it.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.markSet(cmd)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.report(cmd.Context(), detect.Unknown)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.ConfigPath, "config", "", "config file path (default .prettytest.yaml, then the user config dir)")
	pf.StringVar(&a.flags.Root, "root", "", "project root for classifying backtrace frames (default working directory)")
	pf.StringVar(&a.flags.Theme, "theme", config.DefaultTheme, "theme ("+strings.Join(render.ThemeNames(), ", ")+")")
	pf.BoolVar(&a.flags.NoColor, "no-color", false, "disable colors")
	pf.BoolVar(&a.flags.CI, "ci", false, "CI mode: no colors, no live status redraws")
	pf.BoolVar(&a.flags.NoLabel, "no-label", false, "hide the in-progress test name in the status line")
	pf.StringVar(&a.flags.LogLevel, "log-level", config.DefaultLogLevel, "diagnostics log level ("+strings.Join(logging.Levels(), ", ")+")")
	pf.BoolVar(&a.debugConfig, "debug-config", false, "print the resolved configuration and where each value came from")
	root.Flags().StringVar(&a.flags.Format, "format", config.DefaultFormat, "input format ("+strings.Join(config.Formats, ", ")+")")

	for _, f := range []detect.Format{detect.Events, detect.GoTestJSON, detect.TAP} {
		root.AddCommand(a.adapterCmd(f))
	}
	root.AddCommand(a.versionCmd())
	return root
}

var adapterHelp = map[detect.Format]string{
	detect.Events:     "Read the prettytest events protocol (NDJSON lifecycle events)",
	detect.GoTestJSON: "Read go test -json output",
	detect.TAP:        "Read Test Anything Protocol output",
}

func (a *app) adapterCmd(f detect.Format) *cobra.Command {
	return &cobra.Command{
		Use:   f.String(),
		Short: adapterHelp[f],
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.report(cmd.Context(), f)
		},
	}
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprint(cmd.OutOrStdout(), version.Get().String())
			return err
		},
	}
}

// markSet records which flags the user passed explicitly, so unset flags
// do not mask environment or file values.
func (a *app) markSet(cmd *cobra.Command) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	a.flags.RootSet = changed("root")
	a.flags.ThemeSet = changed("theme")
	a.flags.FormatSet = changed("format")
	a.flags.LogLevelSet = changed("log-level")
	a.flags.NoColorSet = changed("no-color")
	a.flags.CISet = changed("ci")
	a.flags.NoLabelSet = changed("no-label")
}

// report runs one adapter over stdin. forced is detect.Unknown when the
// format comes from configuration or detection.
func (a *app) report(ctx context.Context, forced detect.Format) error {
	cfg, err := config.ResolveConfig(a.flags)
	if err != nil {
		return err
	}
	log := logging.New(a.stderr, cfg.LogLevel)
	log.WithFields(logrus.Fields{"file": cfg.File, "root": cfg.Root}).Debug("configuration resolved")
	if a.debugConfig {
		if err := cfg.Describe(a.stderr); err != nil {
			return err
		}
	}

	br := bufio.NewReaderSize(a.stdin, peekLimit)
	format, err := a.format(forced, cfg, br)
	if err != nil {
		return err
	}
	log.WithField("format", format).Debug("input format selected")

	classifier, err := trace.New(cfg.Root, cfg.Frames)
	if err != nil {
		return fmt.Errorf("frame patterns: %w", err)
	}

	eng := reporter.New(a.stdout, reporter.Config{
		Interactive: cfg.Interactive(isTTYWriter(a.stdout)),
		Width:       termWidth(a.stdout),
		Theme:       a.theme(cfg),
		Classifier:  classifier,
		Logger:      log,
		HideLabel:   !cfg.Label,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	// Close the underlying reader on cancel to unblock the adapter's scanner.
	// bufio.Reader doesn't implement io.Closer, so the adapter can't close it itself.
	if c, ok := a.stdin.(io.Closer); ok {
		stopClose := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stopClose()
	}

	stats, runErr := adapters[format](ctx, br, eng, adapter.WithLogger(log), adapter.WithRoot(cfg.Root))
	log.WithFields(logrus.Fields{
		"events":    stats.Events,
		"ignored":   stats.Ignored,
		"malformed": stats.Malformed,
	}).Debug("input processed")
	if stats.Malformed > 0 {
		log.WithField("lines", stats.Malformed).Warn("skipped malformed input")
	}

	switch {
	case ctx.Err() != nil && errors.Is(runErr, context.Canceled):
		a.code = exitInterrupted
		return nil
	case runErr != nil:
		return runErr
	case eng.Passed():
		a.code = exitPassed
	default:
		a.code = exitFailed
	}
	return nil
}

// format picks the adapter: a subcommand first, then a configured format,
// then detection from the first line of input.
func (a *app) format(forced detect.Format, cfg *config.ResolvedConfig, br *bufio.Reader) (detect.Format, error) {
	if forced != detect.Unknown {
		return forced, nil
	}
	if cfg.Format != config.DefaultFormat {
		if f, ok := detect.Parse(cfg.Format); ok {
			return f, nil
		}
		return detect.Unknown, fmt.Errorf("unknown format %q", cfg.Format)
	}

	peeked := peekFirstLine(br)
	if len(bytes.TrimSpace(peeked)) == 0 {
		return detect.Unknown, errors.New("no input on stdin")
	}
	f := detect.Sniff(peeked)
	if f == detect.Unknown {
		return detect.Unknown, errors.New("unrecognized input format (expected events, go test -json or TAP)")
	}
	return f, nil
}

func (a *app) theme(cfg *config.ResolvedConfig) render.Theme {
	if cfg.NoColor {
		return render.MonoTheme()
	}
	return render.ThemeByName(cfg.Theme, lipgloss.NewRenderer(a.stdout))
}

// peekFirstLine returns buffered input up to and including the first
// non-blank line without consuming it. It blocks only until that line has
// arrived, so a live stream starts reporting at once.
func peekFirstLine(br *bufio.Reader) []byte {
	n := 1
	for {
		b, err := br.Peek(n)
		if err != nil {
			return b
		}
		trimmed := bytes.TrimLeft(b, " \t\r\n")
		if bytes.IndexByte(trimmed, '\n') >= 0 || n >= br.Size() {
			return b
		}
		n = max(n+1, br.Buffered())
		n = min(n, br.Size())
	}
}

// isTTYWriter reports whether w is a terminal.
func isTTYWriter(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// termWidth returns the terminal width for w, defaulting to 80.
func termWidth(w io.Writer) int {
	if f, ok := w.(*os.File); ok {
		if tw, _, err := term.GetSize(int(f.Fd())); err == nil && tw > 0 {
			return tw
		}
	}
	return 80
}
