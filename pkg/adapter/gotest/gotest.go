// Package gotest reports a `go test -json` stream through the engine. Each
// package is a suite and every test and subtest counts as a test. Failure
// output is mined for the locations go test, testify and the runtime print,
// so reports point at the line that matters.
package gotest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/mod/modfile"

	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/event"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/testjson"
)

// Run reads go test -json events from r and drives eng.
func Run(ctx context.Context, r io.Reader, eng *reporter.Engine, opts ...adapter.Option) (adapter.Stats, error) {
	o := adapter.Resolve("gotest", opts)
	t := newTranslator(eng, o)

	onBad := func(line []byte, err error) {
		t.log.WithError(err).WithField("bytes", len(line)).Debug("skipping non-JSON line")
	}
	malformed, err := testjson.Stream(ctx, r, onBad, t.handle)
	t.stats.Malformed += malformed
	if err == nil {
		err = t.flush()
	}
	return t.stats, adapter.Complete(eng, err)
}

// pkgState tracks one package between its start and its final result.
type pkgState struct {
	results int             // tests that reported pass, fail or skip
	pending map[string]bool // tests that ran but have not reported yet
	failed  map[string]bool // tests with a failed subtest
}

type translator struct {
	eng   *reporter.Engine
	log   logrus.FieldLogger
	stats adapter.Stats

	root    string
	modPath string

	pkgs   map[string]*pkgState
	output map[string][]string // keyed by bufKey(pkg, test)
	build  map[string][]string // build output keyed by import path
}

func newTranslator(eng *reporter.Engine, o adapter.Options) *translator {
	t := &translator{
		eng:    eng,
		log:    o.Log,
		root:   o.Root,
		pkgs:   make(map[string]*pkgState),
		output: make(map[string][]string),
		build:  make(map[string][]string),
	}
	t.modPath = modulePath(o.Root)
	if t.modPath == "" {
		t.log.WithField("root", o.Root).Debug("no go.mod at root, file references stay relative")
	}
	return t
}

// modulePath reads the module path from root/go.mod, or returns "".
func modulePath(root string) string {
	if root == "" {
		return ""
	}
	data, err := os.ReadFile(filepath.Join(root, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// bufKey returns the output buffer key for a package/test pair.
func bufKey(pkg, test string) string {
	return pkg + "\x00" + test
}

// shortPkg returns the last path segment of a package name.
func shortPkg(pkg string) string {
	if i := strings.LastIndex(pkg, "/"); i >= 0 {
		return pkg[i+1:]
	}
	return pkg
}

// pkgDir maps an import path inside the main module to its directory.
func (t *translator) pkgDir(pkg string) string {
	switch {
	case t.modPath == "":
		return ""
	case pkg == t.modPath:
		return t.root
	}
	rest, ok := strings.CutPrefix(pkg, t.modPath+"/")
	if !ok {
		return ""
	}
	return filepath.Join(t.root, filepath.FromSlash(rest))
}

func (t *translator) resolver(pkg string) resolveFunc {
	dir := t.pkgDir(pkg)
	return func(file string) string {
		if filepath.IsAbs(file) || dir == "" {
			return file
		}
		return filepath.Join(dir, file)
	}
}

func (t *translator) pkg(name string) *pkgState {
	p, ok := t.pkgs[name]
	if !ok {
		p = &pkgState{pending: make(map[string]bool), failed: make(map[string]bool)}
		t.pkgs[name] = p
	}
	return p
}

// handle processes a single test event according to the event matrix.
func (t *translator) handle(e testjson.TestEvent) error {
	if !e.Known() {
		t.stats.Malformed++
		t.log.WithField("action", e.Action).Debug("skipping unknown action")
		return nil
	}
	if err := adapter.EnsureStarted(t.eng); err != nil {
		return err
	}

	var err error
	switch e.Action {
	case testjson.ActionStart:
		t.pkg(e.Package)
		err = t.eng.BeginSuite(e.Package)
	case testjson.ActionRun:
		t.pkg(e.Package).pending[e.Test] = true
		if err = t.eng.Expect(1); err == nil {
			err = t.eng.BeginTest(event.Identity{Suite: e.Package, Test: e.Test})
		}
	case testjson.ActionOutput:
		t.addOutput(e)
		t.stats.Ignored++
		return nil
	case testjson.ActionBuildOutput:
		if out := strings.TrimRight(e.Output, "\n"); out != "" {
			t.build[e.ImportPath] = append(t.build[e.ImportPath], out)
		}
		t.stats.Ignored++
		return nil
	case testjson.ActionPass, testjson.ActionFail, testjson.ActionSkip:
		if e.IsPackage() {
			err = t.endPackage(e)
		} else {
			err = t.endTest(e)
		}
	default: // pause, cont, bench, build-fail
		t.stats.Ignored++
		return nil
	}
	if err != nil {
		return err
	}
	t.stats.Events++
	return nil
}

func (t *translator) addOutput(e testjson.TestEvent) {
	out := strings.TrimRight(e.Output, "\n")
	if out == "" {
		return
	}
	key := bufKey(e.Package, e.Test)
	t.output[key] = append(t.output[key], out)
}

func (t *translator) endTest(e testjson.TestEvent) error {
	p := t.pkg(e.Package)
	delete(p.pending, e.Test)
	p.results++

	key := bufKey(e.Package, e.Test)
	lines := t.output[key]
	delete(t.output, key)

	id := event.Identity{Suite: e.Package, Test: e.Test}
	var o event.Outcome
	switch e.Action {
	case testjson.ActionPass:
		o = event.Passed()
	case testjson.ActionSkip:
		o = skipOutcome(lines, t.resolver(e.Package))
	default:
		o = failureOutcome(lines, t.resolver(e.Package), p.failed[e.Test])
		if i := strings.LastIndex(e.Test, "/"); i > 0 {
			p.failed[e.Test[:i]] = true
		}
	}
	return t.eng.Record(id, 0, o)
}

// endPackage reports what the package's own result adds beyond its tests:
// build failures, failures outside any test and tests that never finished.
func (t *translator) endPackage(e testjson.TestEvent) error {
	p := t.pkg(e.Package)
	key := bufKey(e.Package, "")
	lines := t.output[key]
	delete(t.output, key)

	if e.Action == testjson.ActionFail {
		if err := t.recordPending(e.Package, p); err != nil {
			return err
		}
		if e.FailedBuild != "" || p.results == 0 || hasPanic(lines) {
			if e.FailedBuild != "" {
				lines = append(t.build[e.FailedBuild], lines...)
				delete(t.build, e.FailedBuild)
			}
			if err := t.recordPackage(e.Package, packageOutcome(lines, e.FailedBuild != "")); err != nil {
				return err
			}
		}
	}

	delete(t.pkgs, e.Package)
	return t.eng.EndSuite(e.Package)
}

func (t *translator) recordPackage(pkg string, o event.Outcome) error {
	t.log.WithFields(logrus.Fields{
		"package": shortPkg(pkg),
		"kind":    o.ExceptionKind,
	}).Debug("package failed outside its tests")
	if err := t.eng.Expect(1); err != nil {
		return err
	}
	return t.eng.Record(event.Identity{Suite: pkg}, 0, o)
}

// recordPending reports tests that started but never finished, typically
// because the test binary panicked or timed out.
func (t *translator) recordPending(pkg string, p *pkgState) error {
	names := make([]string, 0, len(p.pending))
	for name := range p.pending {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		key := bufKey(pkg, name)
		o := failureOutcome(t.output[key], t.resolver(pkg), false)
		if o.Kind != event.Error {
			o = event.Errored(KindUnfinished, "test did not report a result", o.Backtrace)
		}
		delete(t.output, key)
		delete(p.pending, name)
		if err := t.eng.Record(event.Identity{Suite: pkg, Test: name}, 0, o); err != nil {
			return err
		}
	}
	return nil
}

// flush closes packages the stream left open, as when go test is killed.
func (t *translator) flush() error {
	names := make([]string, 0, len(t.pkgs))
	for name := range t.pkgs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p := t.pkgs[name]
		if len(p.pending) == 0 {
			continue
		}
		if err := adapter.EnsureStarted(t.eng); err != nil {
			return err
		}
		if err := t.recordPending(name, p); err != nil {
			return err
		}
	}
	return nil
}

func hasPanic(lines []string) bool {
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "panic: ") {
			return true
		}
	}
	return false
}
