// Package events reads the prettytest lifecycle protocol: newline-delimited
// JSON objects that map one to one onto reporter.Engine calls. A plugin inside
// a foreign test framework (a minitest reporter, a pytest hook) emits it.
//
//	{"event":"start","suites":[{"name":"UserAccountTest","tests":3}]}
//	{"event":"suite","suite":"UserAccountTest"}
//	{"event":"test","suite":"UserAccountTest","test":"test_saves"}
//	{"event":"result","suite":"UserAccountTest","test":"test_saves","assertions":2,"outcome":"pass"}
//	{"event":"result","suite":"UserAccountTest","test":"test_rejects_blank_email","assertions":1,
//	 "outcome":"failure","kind":"Minitest::Assertion","message":"Expected false to be truthy.",
//	 "backtrace":["/app/test/user_account_test.rb:12:in 'test_rejects_blank_email'"]}
//	{"event":"suite_end","suite":"UserAccountTest"}
//	{"event":"finish"}
//
// Events that arrive before "start" begin the run implicitly, and input that
// ends without "finish" still finishes it.
package events

import (
	"context"
	"fmt"
	"io"

	"github.com/mattn/go-runewidth"
	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/event"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/stream"
)

// Event names.
const (
	Start    = "start"
	Suite    = "suite"
	Test     = "test"
	Result   = "result"
	SuiteEnd = "suite_end"
	Finish   = "finish"
)

// Message is one line of the protocol.
type Message struct {
	Event      string      `json:"event"`
	Suites     []SuiteInfo `json:"suites,omitempty"`
	Suite      string      `json:"suite,omitempty"`
	Test       string      `json:"test,omitempty"`
	Assertions int         `json:"assertions,omitempty"`
	Outcome    string      `json:"outcome,omitempty"`
	Kind       string      `json:"kind,omitempty"`
	Message    string      `json:"message,omitempty"`
	Backtrace  []string    `json:"backtrace,omitempty"`
}

// SuiteInfo is one entry of a start message's suite enumeration.
type SuiteInfo struct {
	Name  string `json:"name"`
	Tests int    `json:"tests"`
}

// Run reads protocol messages from r and drives eng until EOF, a "finish"
// message or cancellation.
func Run(ctx context.Context, r io.Reader, eng *reporter.Engine, opts ...adapter.Option) (adapter.Stats, error) {
	o := adapter.Resolve("events", opts)
	t := &translator{eng: eng, log: o.Log}

	onBad := func(line []byte, err error) {
		t.log.WithError(err).WithField("line", truncate(string(line))).Debug("skipping malformed line")
	}
	malformed, err := stream.JSON(ctx, r, onBad, t.handle)
	t.stats.Malformed += malformed
	return t.stats, adapter.Complete(eng, err)
}

type translator struct {
	eng   *reporter.Engine
	log   logrus.FieldLogger
	stats adapter.Stats
}

func (t *translator) handle(m Message) error {
	if m.Event != Start && m.Event != Finish {
		if err := adapter.EnsureStarted(t.eng); err != nil {
			return err
		}
	}

	var err error
	switch m.Event {
	case Start:
		err = t.start(m)
	case Suite:
		err = t.eng.BeginSuite(m.Suite)
	case Test:
		err = t.eng.BeginTest(event.Identity{Suite: m.Suite, Test: m.Test})
	case Result:
		err = t.eng.Record(event.Identity{Suite: m.Suite, Test: m.Test}, m.Assertions, t.outcome(m))
	case SuiteEnd:
		err = t.eng.EndSuite(m.Suite)
	case Finish:
		if t.eng.Phase() == reporter.Finished {
			t.stats.Ignored++
			return nil
		}
		if err = adapter.EnsureStarted(t.eng); err == nil {
			err = t.eng.Finish()
		}
	default:
		t.stats.Malformed++
		t.log.WithField("event", m.Event).Debug("skipping unknown event")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s event: %w", m.Event, err)
	}
	t.stats.Events++
	return nil
}

// start begins the run, or raises the total when the run was already begun
// implicitly.
func (t *translator) start(m Message) error {
	suites := make([]event.Suite, 0, len(m.Suites))
	for _, s := range m.Suites {
		suites = append(suites, event.Suite{Name: s.Name, RunnableTests: s.Tests})
	}
	if t.eng.Phase() != reporter.Running {
		return t.eng.Start(suites)
	}
	t.log.Debug("start after the run began, adding its tests to the total")
	n := 0
	for _, s := range suites {
		if s.RunnableTests > 0 {
			n += s.RunnableTests
		}
	}
	return t.eng.Expect(n)
}

func (t *translator) outcome(m Message) event.Outcome {
	kind, ok := event.ParseKind(m.Outcome)
	if !ok {
		t.log.WithField("outcome", m.Outcome).Warn("unknown outcome, reporting as error")
		return event.Errored("UnknownOutcome", fmt.Sprintf("runner reported outcome %q", m.Outcome), m.Backtrace)
	}
	return event.Outcome{
		Kind:          kind,
		ExceptionKind: m.Kind,
		Message:       m.Message,
		Backtrace:     m.Backtrace,
	}
}

func truncate(s string) string {
	const limit = 120
	return runewidth.Truncate(s, limit, "...")
}
