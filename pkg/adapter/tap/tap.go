// Package tap reports a Test Anything Protocol stream (versions 13 and 14)
// through the engine.
//
//	TAP version 14
//	1..2
//	# Subtest: cart
//	    1..1
//	    not ok 1 - removes items
//	      ---
//	      message: expected 0 items
//	      at: test/cart.test.js:18:5
//	      ...
//	not ok 1 - cart
//	ok 2 - totals # SKIP needs pricing service
//
// Every test point counts as a test, including the point that closes a
// subtest. Plans raise the expected total. Indented "# Subtest:" blocks
// become suites.
package tap

import (
	"context"
	"errors"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/event"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/stream"
)

// Exception kinds for outcomes built from TAP.
const (
	KindBailOut = "BailOut"
	KindYAML    = "MalformedDiagnostic"
)

const subtestsFailed = "one or more subtests failed"

var (
	versionRe = regexp.MustCompile(`^TAP version (\d+)$`)
	planRe    = regexp.MustCompile(`^1\.\.(\d+)(?:\s*#\s*(.*))?$`)
	resultRe  = regexp.MustCompile(`^(ok|not ok)\b\s*(\d+)?\s*(?:-\s*)?(.*)$`)
	// "# SKIP reason" or "# TODO reason" at the end of a test point.
	directiveRe = regexp.MustCompile(`(?i)^(.*?)\s*#\s*(skip|todo)\S*(?:\s+(.*))?$`)
	subtestRe   = regexp.MustCompile(`^#\s*Subtest:\s*(.*)$`)
	bailRe      = regexp.MustCompile(`^Bail out!\s*(.*)$`)
	// Test::More prints "#   at t/cart.t line 12." below a failure.
	perlAtRe = regexp.MustCompile(`^at (\S+) line (\d+)\.?$`)
	// Run summaries such as "# tests 3" or "# Looks like you failed 1 test of 2."
	summaryRe = regexp.MustCompile(`^(?:(?:tests|suites|pass|fail|skip|todo|cancelled|duration_ms)\s+\d|Looks like )`)
)

var errBailOut = errors.New("bail out")

// Run reads TAP from r and drives eng until EOF, "Bail out!" or cancellation.
func Run(ctx context.Context, r io.Reader, eng *reporter.Engine, opts ...adapter.Option) (adapter.Stats, error) {
	o := adapter.Resolve("tap", opts)
	t := &translator{
		eng:     eng,
		log:     o.Log,
		resolve: resolver(o.Root),
		suites:  []string{""},
		seen:    []int{0},
	}

	err := stream.Lines(ctx, r, func(line []byte) error {
		return t.handle(string(line))
	})
	if errors.Is(err, errBailOut) {
		err = nil
	}
	if err == nil {
		err = t.flush()
	}
	return t.stats, adapter.Complete(eng, err)
}

// point is a test point waiting for the diagnostics that may follow it.
type point struct {
	depth     int
	indent    int
	id        event.Identity
	ok        bool
	directive string // "skip", "todo" or ""
	reason    string
	closes    bool // the point summarizes a subtest
	childFail bool
	comments  []string
	yaml      []string
	hasYAML   bool
}

type translator struct {
	eng     *reporter.Engine
	log     logrus.FieldLogger
	stats   adapter.Stats
	resolve func(string) string

	suites  []string // subtest name per depth; suites[0] is the top level
	seen    []int    // test points recorded per depth
	failed  []bool   // a point at this depth failed
	pending *point
	inYAML  bool

	// A "# Subtest:" line names the subtest whose lines follow it. Producers
	// print it at either the parent's or the child's indentation.
	nextSuite string
	nextDepth int
	hasNext   bool
}

func indentOf(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func (t *translator) handle(raw string) error {
	indent := indentOf(raw)
	line := strings.TrimSpace(raw)

	if t.inYAML {
		switch {
		case line == "...":
			t.inYAML = false
			return nil
		case line != "" && indent <= t.pending.indent:
			// Unterminated block; the line belongs to the stream again.
			t.inYAML = false
		default:
			t.pending.yaml = append(t.pending.yaml, cutIndent(raw, t.pending.indent+2))
			return nil
		}
	}
	if p := t.pending; p != nil {
		switch {
		case line == "---" && indent > p.indent && !p.hasYAML:
			p.hasYAML = true
			t.inYAML = true
			return nil
		case strings.HasPrefix(line, "#") && indent == p.indent && !p.ok:
			c := strings.TrimSpace(strings.TrimPrefix(line, "#"))
			if !subtestRe.MatchString(line) && !summaryRe.MatchString(c) {
				p.comments = append(p.comments, c)
				return nil
			}
		}
	}
	if err := t.flush(); err != nil {
		return err
	}
	if line == "" {
		return nil
	}
	if err := adapter.EnsureStarted(t.eng); err != nil {
		return err
	}

	depth := indent / 4
	switch {
	case versionRe.MatchString(line):
		t.stats.Ignored++
	case planRe.MatchString(line):
		return t.plan(depth, planRe.FindStringSubmatch(line))
	case subtestRe.MatchString(line):
		t.nextSuite = strings.TrimSpace(subtestRe.FindStringSubmatch(line)[1])
		t.nextDepth = depth
		t.hasNext = true
		t.stats.Ignored++
	case resultRe.MatchString(line):
		return t.testPoint(depth, indent, resultRe.FindStringSubmatch(line))
	case bailRe.MatchString(line):
		return t.bail(strings.TrimSpace(bailRe.FindStringSubmatch(line)[1]))
	case strings.HasPrefix(line, "#"), strings.HasPrefix(line, "pragma "):
		t.stats.Ignored++
	default:
		t.stats.Malformed++
		t.log.WithField("line", line).Debug("skipping non-TAP line")
	}
	return nil
}

// cutIndent drops up to n columns of leading space.
func cutIndent(s string, n int) string {
	i := 0
	for i < len(s) && i < n && s[i] == ' ' {
		i++
	}
	return s[i:]
}

// at grows the per-depth state so depth is addressable.
func (t *translator) at(depth int) {
	for len(t.suites) <= depth {
		t.suites = append(t.suites, "")
		t.seen = append(t.seen, 0)
	}
	for len(t.failed) <= depth {
		t.failed = append(t.failed, false)
	}
}

// suiteAt is the innermost subtest enclosing depth.
func (t *translator) suiteAt(depth int) string {
	for d := min(depth, len(t.suites)-1); d > 0; d-- {
		if t.suites[d] != "" {
			return t.suites[d]
		}
	}
	return t.suites[0]
}

// plan raises the total by the points the plan announces that have not
// already been recorded, so leading and trailing plans count the same.
func (t *translator) plan(depth int, m []string) error {
	if err := t.openSubtest(depth); err != nil {
		return err
	}
	t.at(depth)
	n, err := strconv.Atoi(m[1])
	if err != nil {
		t.stats.Malformed++
		return nil
	}
	t.stats.Events++
	if n == 0 && m[2] != "" {
		t.log.WithField("reason", strings.TrimSpace(m[2])).Debug("plan skips all tests")
	}
	return t.eng.Expect(n - t.seen[depth])
}

// openSubtest begins the subtest named by the last "# Subtest:" line once
// the first line inside it arrives at depth.
func (t *translator) openSubtest(depth int) error {
	if !t.hasNext {
		return nil
	}
	t.hasNext = false
	if depth == 0 || depth < t.nextDepth {
		return nil
	}
	t.at(depth)
	if t.suites[depth] != "" {
		return nil
	}
	t.suites[depth] = t.nextSuite
	t.seen[depth] = 0
	t.failed[depth] = false
	t.stats.Events++
	return t.eng.BeginSuite(t.nextSuite)
}

func (t *translator) testPoint(depth, indent int, m []string) error {
	if err := t.openSubtest(depth); err != nil {
		return err
	}
	t.at(depth + 1)
	p := &point{
		depth:  depth,
		indent: indent,
		ok:     m[1] == "ok",
	}
	desc := m[3]
	if d := directiveRe.FindStringSubmatch(desc); d != nil {
		desc = d[1]
		p.directive = strings.ToLower(d[2])
		p.reason = strings.TrimSpace(d[3])
	}
	if i := strings.Index(desc, " # "); i >= 0 {
		desc = desc[:i] // "# time=12ms" and similar annotations
	}
	desc = strings.TrimSpace(desc)
	unnamed := desc == ""
	if unnamed {
		desc = strings.TrimSpace("test " + m[2])
	}

	// A point closes the subtest one level down when that subtest is open.
	if child := depth + 1; child < len(t.suites) && t.suites[child] != "" {
		p.closes = true
		p.childFail = t.failed[child]
		if unnamed {
			desc = t.suites[child]
		}
		if err := t.eng.EndSuite(t.suites[child]); err != nil {
			return err
		}
		t.suites = t.suites[:child]
		t.seen = t.seen[:child]
		t.failed = t.failed[:child]
	}

	p.id = event.Identity{Suite: t.suiteAt(depth), Test: desc}
	t.pending = p
	return t.eng.BeginTest(p.id)
}

// flush records the pending test point.
func (t *translator) flush() error {
	p := t.pending
	if p == nil {
		return nil
	}
	t.pending = nil
	t.inYAML = false
	if err := adapter.EnsureStarted(t.eng); err != nil {
		return err
	}

	t.at(p.depth)
	t.seen[p.depth]++
	o := t.outcome(p)
	if o.Kind == event.Failure || o.Kind == event.Error {
		t.failed[p.depth] = true
	}
	t.stats.Events++
	return t.eng.Record(p.id, 0, o)
}

func (t *translator) outcome(p *point) event.Outcome {
	var diag diagnostic
	if len(p.yaml) > 0 {
		d, err := parseDiagnostic(p.yaml)
		if err != nil {
			t.log.WithError(err).WithField("test", p.id.Test).Warn("unreadable diagnostic block")
			return event.Errored(KindYAML, err.Error(), nil)
		}
		diag = d
	}

	switch {
	case p.directive == "skip", p.directive == "todo":
		reason := p.reason
		if p.directive == "todo" {
			reason = strings.TrimSpace("TODO " + reason)
		}
		return event.Skipped(reason, diag.frames(t.resolve))
	case p.ok:
		return event.Passed()
	}

	msg := diag.message()
	bt := diag.frames(t.resolve)
	if msg == "" {
		msg, bt = t.commentMessage(p.comments, bt)
	}
	if msg == "" {
		if p.closes && p.childFail {
			msg = subtestsFailed
		} else {
			msg = "test point not ok"
		}
	}
	if strings.EqualFold(diag.Severity, "error") {
		return event.Errored(diag.Type, msg, bt)
	}
	return event.Failed(diag.Type, msg, bt)
}

// commentMessage reads the "# ..." lines a producer printed below a failing
// point. "at FILE line N" lines become frames.
func (t *translator) commentMessage(comments, bt []string) (string, []string) {
	var msgs []string
	for _, c := range comments {
		if m := perlAtRe.FindStringSubmatch(c); m != nil {
			bt = append(bt, t.resolve(m[1])+":"+m[2])
			continue
		}
		if c != "" {
			msgs = append(msgs, c)
		}
	}
	return strings.Join(msgs, "\n"), bt
}

// bail reports the abort as an error and stops reading.
func (t *translator) bail(reason string) error {
	if reason == "" {
		reason = "test run aborted"
	}
	t.log.WithField("reason", reason).Warn("producer bailed out")
	t.stats.Events++
	id := event.Identity{Suite: t.suiteAt(len(t.suites) - 1), Test: "bail out"}
	if err := t.eng.Expect(1); err != nil {
		return err
	}
	if err := t.eng.Record(id, 0, event.Errored(KindBailOut, reason, nil)); err != nil {
		return err
	}
	return errBailOut
}
