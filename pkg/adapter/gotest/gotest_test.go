package gotest

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/prettytest/pkg/adapter"
	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/testjson"
	"github.com/dkoosis/prettytest/pkg/trace"
)

const cartPkg = "example.com/shop/cart"

// moduleRoot creates a module directory whose go.mod declares example.com/shop.
func moduleRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/shop\n\ngo 1.24\n"), 0o600))
	return root
}

func ev(e testjson.TestEvent) string {
	if e.Package == "" && e.ImportPath == "" {
		e.Package = cartPkg
	}
	b, err := json.Marshal(e)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func stream(events ...testjson.TestEvent) string {
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = ev(e)
	}
	return strings.Join(lines, "\n") + "\n"
}

func runGoTest(t *testing.T, root, input string) (*reporter.Engine, adapter.Stats, string) {
	t.Helper()
	var buf bytes.Buffer
	eng := reporter.New(&buf, reporter.Config{
		Theme:      render.MonoTheme(),
		Classifier: trace.Default(root),
		Now:        func() time.Time { return time.Unix(0, 0) },
	})
	stats, err := Run(context.Background(), strings.NewReader(input), eng, adapter.WithRoot(root))
	require.NoError(t, err)
	return eng, stats, buf.String()
}

func TestRun_ReportsFailuresAndSkips(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	input := stream(
		testjson.TestEvent{Action: "start"},
		testjson.TestEvent{Action: "run", Test: "TestAddItem"},
		testjson.TestEvent{Action: "output", Test: "TestAddItem", Output: "=== RUN   TestAddItem\n"},
		testjson.TestEvent{Action: "output", Test: "TestAddItem", Output: "--- PASS: TestAddItem (0.00s)\n"},
		testjson.TestEvent{Action: "pass", Test: "TestAddItem"},
		testjson.TestEvent{Action: "run", Test: "TestRemoveItem"},
		testjson.TestEvent{Action: "output", Test: "TestRemoveItem", Output: "    cart_test.go:18: expected 0 items, got 1\n"},
		testjson.TestEvent{Action: "fail", Test: "TestRemoveItem"},
		testjson.TestEvent{Action: "run", Test: "TestTotal"},
		testjson.TestEvent{Action: "run", Test: "TestTotal/with_discount"},
		testjson.TestEvent{Action: "output", Test: "TestTotal/with_discount", Output: "    cart_test.go:40: needs pricing service\n"},
		testjson.TestEvent{Action: "skip", Test: "TestTotal/with_discount"},
		testjson.TestEvent{Action: "pass", Test: "TestTotal"},
		testjson.TestEvent{Action: "output", Output: "FAIL\n"},
		testjson.TestEvent{Action: "fail", Elapsed: 0.01},
	)

	eng, stats, out := runGoTest(t, root, input)

	st := eng.State()
	assert.Equal(t, 4, st.Total)
	assert.Equal(t, 4, st.Completed)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 1, st.Skips)
	assert.Zero(t, st.Errors)
	assert.Equal(t, 10, stats.Events)
	assert.Equal(t, 5, stats.Ignored)

	assert.Contains(t, out, "[FAILURE] Cart: remove item\nFailure: expected 0 items, got 1\n-> [cart] cart_test.go:18\n")
	assert.Contains(t, out, "[SKIPPED] Cart: total / with discount\nneeds pricing service\n-> [cart] cart_test.go:40\n")
	assert.True(t, strings.HasSuffix(out, "  ----- FAILED! -----\n"))
}

func TestRun_ReportsParentOfFailedSubtest(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	input := stream(
		testjson.TestEvent{Action: "start"},
		testjson.TestEvent{Action: "run", Test: "TestTotal"},
		testjson.TestEvent{Action: "run", Test: "TestTotal/empty"},
		testjson.TestEvent{Action: "output", Test: "TestTotal/empty", Output: "        cart_test.go:51: total = 3, want 0\n"},
		testjson.TestEvent{Action: "output", Test: "TestTotal/empty", Output: "    --- FAIL: TestTotal/empty (0.00s)\n"},
		testjson.TestEvent{Action: "fail", Test: "TestTotal/empty"},
		testjson.TestEvent{Action: "output", Test: "TestTotal", Output: "--- FAIL: TestTotal (0.00s)\n"},
		testjson.TestEvent{Action: "fail", Test: "TestTotal"},
		testjson.TestEvent{Action: "fail"},
	)

	eng, _, out := runGoTest(t, root, input)

	assert.Equal(t, 2, eng.State().Failures)
	assert.Contains(t, out, "[FAILURE] Cart: total / empty\nFailure: total = 3, want 0\n")
	assert.Contains(t, out, "[FAILURE] Cart: total\nFailure: "+subtestsFailed+"\n")
}

func TestRun_ReportsBuildFailure(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	importPath := cartPkg + " [" + cartPkg + ".test]"
	input := stream(
		testjson.TestEvent{Action: "build-output", ImportPath: importPath, Output: "# " + cartPkg + "\n"},
		testjson.TestEvent{Action: "build-output", ImportPath: importPath, Output: "cart/cart.go:12:5: undefined: total\n"},
		testjson.TestEvent{Action: "build-fail", ImportPath: importPath},
		testjson.TestEvent{Action: "start"},
		testjson.TestEvent{Action: "output", Output: "FAIL\t" + cartPkg + " [build failed]\n"},
		testjson.TestEvent{Action: "fail", FailedBuild: importPath},
	)

	eng, _, out := runGoTest(t, root, input)

	st := eng.State()
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 1, st.Total)
	assert.Contains(t, out, "[ERROR] Cart\nBuildFailure: # example.com/shop/cart\ncart/cart.go:12:5: undefined: total\n")
	assert.False(t, eng.Passed())
}

func TestRun_ReportsTestsKilledByPackagePanic(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	input := stream(
		testjson.TestEvent{Action: "start"},
		testjson.TestEvent{Action: "run", Test: "TestSlow"},
		testjson.TestEvent{Action: "output", Test: "TestSlow", Output: "=== RUN   TestSlow\n"},
		testjson.TestEvent{Action: "output", Output: "panic: test timed out after 1s\n"},
		testjson.TestEvent{Action: "output", Output: "goroutine 5 [running]:\n"},
		testjson.TestEvent{Action: "output", Output: "example.com/shop/cart.TestSlow(0xc000003380)\n"},
		testjson.TestEvent{Action: "output", Output: "\t" + filepath.Join(root, "cart", "slow_test.go") + ":9 +0x1d\n"},
		testjson.TestEvent{Action: "fail"},
	)

	eng, _, out := runGoTest(t, root, input)

	assert.Equal(t, 2, eng.State().Errors)
	assert.Contains(t, out, "[ERROR] Cart: slow\nUnfinished: test did not report a result\n")
	assert.Contains(t, out, "[ERROR] Cart\npanic: test timed out after 1s\n-> [cart] slow_test.go:9 in 'example.com/shop/cart.TestSlow'\n")
}

func TestRun_ClosesOpenTests_When_StreamEnds(t *testing.T) {
	t.Parallel()

	root := moduleRoot(t)
	input := stream(
		testjson.TestEvent{Action: "start"},
		testjson.TestEvent{Action: "run", Test: "TestA"},
	)

	eng, _, out := runGoTest(t, root, input)

	assert.Equal(t, reporter.Finished, eng.Phase())
	assert.Equal(t, 1, eng.State().Errors)
	assert.Contains(t, out, "[ERROR] Cart: a\n")
}

func TestRun_KeepsRelativePaths_When_NoGoMod(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	input := stream(
		testjson.TestEvent{Action: "run", Test: "TestX"},
		testjson.TestEvent{Action: "output", Test: "TestX", Output: "    x_test.go:3: nope\n"},
		testjson.TestEvent{Action: "fail", Test: "TestX"},
	)

	_, _, out := runGoTest(t, root, input)
	assert.Contains(t, out, "Failure: nope\n   x_test.go:3\n")
}

func TestRun_CountsUnknownActions(t *testing.T) {
	t.Parallel()

	input := "not json\n" + stream(testjson.TestEvent{Action: "teleport"}, testjson.TestEvent{Action: "pause", Test: "TestA"})
	_, stats, _ := runGoTest(t, moduleRoot(t), input)

	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Ignored)
}

func TestPkgDir(t *testing.T) {
	t.Parallel()

	tr := &translator{root: "/src/shop", modPath: "example.com/shop"}
	assert.Equal(t, "/src/shop", tr.pkgDir("example.com/shop"))
	assert.Equal(t, filepath.Join("/src/shop", "cart", "internal"), tr.pkgDir("example.com/shop/cart/internal"))
	assert.Empty(t, tr.pkgDir("example.com/shopping"))
	assert.Empty(t, tr.pkgDir("github.com/other/mod"))
}
