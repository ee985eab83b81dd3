// Package reporter turns test lifecycle events into terminal output: a live
// status line, one report per non-passing test and a final verdict.
//
// An Engine is driven synchronously by a single adapter goroutine and is the
// only writer to its sink.
package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/event"
	"github.com/dkoosis/prettytest/pkg/names"
	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/status"
	"github.com/dkoosis/prettytest/pkg/trace"
)

// Verdict lines written by Finish.
const (
	VerdictPassed = "----- PASSED! -----"
	VerdictFailed = "----- FAILED! -----"
)

// Config holds engine construction options. The zero value renders a
// non-interactive, uncolored report classified against the working directory.
type Config struct {
	// Interactive enables in-place status redraws. Leave false for pipes,
	// files and CI logs.
	Interactive bool
	// Width is the terminal width used to fit the status label.
	Width int
	// Theme defaults to render.MonoTheme when its Name is empty.
	Theme render.Theme
	// Classifier defaults to trace.Default(working directory).
	Classifier *trace.Classifier
	// Logger receives diagnostics. Defaults to a discarding logger.
	Logger logrus.FieldLogger
	// Now defaults to time.Now.
	Now func() time.Time
	// HideLabel omits the in-progress test name from the status line.
	HideLabel bool
}

// Engine owns the RunState of one run.
type Engine struct {
	tw         *termWriter
	status     *status.Renderer
	classifier *trace.Classifier
	theme      render.Theme
	log        logrus.FieldLogger
	now        func() time.Time
	hideLabel  bool

	phase Phase
	run   status.RunState
	label string
}

// New creates an engine writing to out.
func New(out io.Writer, cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	log = log.WithField("component", "reporter")

	theme := cfg.Theme
	if theme.Name == "" {
		theme = render.MonoTheme()
	}
	classifier := cfg.Classifier
	if classifier == nil {
		wd, err := os.Getwd()
		if err != nil {
			log.WithError(err).Debug("no working directory, project frames disabled")
		}
		classifier = trace.Default(wd)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Engine{
		tw: newTermWriter(out, log),
		status: status.New(status.Options{
			Interactive: cfg.Interactive,
			Width:       cfg.Width,
			Theme:       theme,
			Now:         now,
		}),
		classifier: classifier,
		theme:      theme,
		log:        log,
		now:        now,
		hideLabel:  cfg.HideLabel,
	}
}

func (e *Engine) require(op string, want Phase) error {
	if e.phase != want {
		return &UsageError{Op: op, State: e.phase}
	}
	return nil
}

// Start begins the run. The expected total is the sum of every suite's
// runnable test count; negative counts are ignored.
func (e *Engine) Start(suites []event.Suite) error {
	if err := e.require("Start", NotStarted); err != nil {
		return err
	}
	total := 0
	for _, s := range suites {
		if s.RunnableTests > 0 {
			total += s.RunnableTests
		}
	}
	e.run = status.RunState{StartedAt: e.now(), Total: total}
	e.phase = Running
	e.log.WithFields(logrus.Fields{"suites": len(suites), "total": total}).Debug("run started")
	e.redraw()
	return nil
}

// Expect raises the expected total by n for sources that discover tests as
// they run.
func (e *Engine) Expect(n int) error {
	if err := e.require("Expect", Running); err != nil {
		return err
	}
	if n <= 0 {
		return nil
	}
	e.run.Total += n
	e.redraw()
	return nil
}

// BeginSuite shows the suite as the in-progress label.
func (e *Engine) BeginSuite(name string) error {
	if err := e.require("BeginSuite", Running); err != nil {
		return err
	}
	e.label = names.Suite(name)
	e.redraw()
	return nil
}

// BeginTest shows the test as the in-progress label.
func (e *Engine) BeginTest(id event.Identity) error {
	if err := e.require("BeginTest", Running); err != nil {
		return err
	}
	e.label = names.Display(id)
	e.redraw()
	return nil
}

// EndSuite clears the in-progress label.
func (e *Engine) EndSuite(string) error {
	if err := e.require("EndSuite", Running); err != nil {
		return err
	}
	e.label = ""
	e.redraw()
	return nil
}

// Record accounts for one finished test and writes its report, if any.
func (e *Engine) Record(id event.Identity, assertions int, o event.Outcome) error {
	if err := e.require("Record", Running); err != nil {
		return err
	}

	e.run.Completed++
	if e.run.Completed > e.run.Total {
		e.log.WithFields(logrus.Fields{
			"completed": e.run.Completed,
			"total":     e.run.Total,
		}).Debug("more tests completed than expected, raising total")
		e.run.Total = e.run.Completed
	}
	if assertions > 0 {
		e.run.Assertions += assertions
	}

	switch o.Kind {
	case event.Pass:
	case event.Skip:
		e.run.Skips++
	case event.Failure:
		e.run.Failures++
	default:
		e.run.Errors++
	}

	if report, ok := e.formatReport(id, o); ok {
		e.tw.PrintLine(report)
		e.tw.PrintLine("")
	}
	e.label = ""
	e.redraw()
	return nil
}

// Finish writes the final status line and the verdict and ends the run. It
// returns the first error the sink reported during the run.
func (e *Engine) Finish() error {
	if err := e.require("Finish", Running); err != nil {
		return err
	}

	e.tw.PrintLine(e.status.Render(e.run, ""))
	verdict := e.theme.Pass.Render(VerdictPassed)
	if e.run.Failed() {
		verdict = e.theme.Failure.Render(VerdictFailed)
	}
	e.tw.PrintLine("  " + verdict)

	e.phase = Finished
	e.log.WithFields(logrus.Fields{
		"completed": e.run.Completed,
		"errors":    e.run.Errors,
		"failures":  e.run.Failures,
		"skips":     e.run.Skips,
		"elapsed":   e.status.Elapsed(e.run).String(),
	}).Debug("run finished")

	if err := e.tw.Err(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// redraw repaints the status line on interactive sinks.
func (e *Engine) redraw() {
	if !e.status.Interactive() {
		return
	}
	label := e.label
	if e.hideLabel {
		label = ""
	}
	e.tw.DrawStatus(e.status.Render(e.run, label))
}

// Phase returns the lifecycle phase.
func (e *Engine) Phase() Phase {
	return e.phase
}

// State returns a snapshot of the run tally.
func (e *Engine) State() status.RunState {
	return e.run
}

// Passed reports whether no test failed or errored so far.
func (e *Engine) Passed() bool {
	return !e.run.Failed()
}
