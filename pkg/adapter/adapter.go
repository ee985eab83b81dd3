// Package adapter holds what the protocol adapters under it share: options,
// counters and run completion. Each adapter translates one input protocol
// into reporter.Engine calls and owns nothing else.
package adapter

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/reporter"
)

// RunFunc is the entry point every adapter exposes: read r until EOF or
// cancellation, drive eng, and finish the run.
type RunFunc func(ctx context.Context, r io.Reader, eng *reporter.Engine, opts ...Option) (Stats, error)

// Stats counts what an adapter made of its input.
type Stats struct {
	Events    int // input records translated into engine calls
	Ignored   int // well-formed records with nothing to report
	Malformed int // records that could not be understood
}

// Options are shared adapter settings.
type Options struct {
	Log  logrus.FieldLogger
	Root string // project root; used to resolve relative file references
}

// Option configures an adapter run.
type Option func(*Options)

// WithLogger sets the diagnostics logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *Options) { o.Log = log }
}

// WithRoot sets the project root.
func WithRoot(root string) Option {
	return func(o *Options) { o.Root = root }
}

// Resolve applies opts over defaults and tags the logger with component.
func Resolve(component string, opts []Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	if o.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.Log = l
	}
	o.Log = o.Log.WithField("component", component)
	if o.Root == "" {
		if wd, err := os.Getwd(); err == nil {
			o.Root = wd
		}
	}
	return o
}

// EnsureStarted starts eng with no suites if nothing has started it yet.
// Streaming protocols may begin without a header.
func EnsureStarted(eng *reporter.Engine) error {
	if eng.Phase() != reporter.NotStarted {
		return nil
	}
	return eng.Start(nil)
}

// Complete finishes a run that is still open, so a verdict is always
// written even when input ends early or fails. runErr comes first in the
// returned error.
func Complete(eng *reporter.Engine, runErr error) error {
	startErr := EnsureStarted(eng)
	var finErr error
	if eng.Phase() == reporter.Running {
		finErr = eng.Finish()
	}
	return errors.Join(runErr, startErr, finErr)
}
