package events

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/reporter"
	"github.com/dkoosis/prettytest/pkg/trace"
)

func newEngine(buf *bytes.Buffer) *reporter.Engine {
	return reporter.New(buf, reporter.Config{
		Theme:      render.MonoTheme(),
		Classifier: trace.Default("/app"),
		Now:        func() time.Time { return time.Unix(0, 0) },
	})
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n") + "\n"
}

func TestRun_DrivesEngineThroughLifecycle(t *testing.T) {
	t.Parallel()

	input := lines(
		`{"event":"start","suites":[{"name":"UserAccountTest","tests":3}]}`,
		`{"event":"suite","suite":"UserAccountTest"}`,
		`{"event":"test","suite":"UserAccountTest","test":"test_saves"}`,
		`{"event":"result","suite":"UserAccountTest","test":"test_saves","assertions":2,"outcome":"pass"}`,
		`{"event":"result","suite":"UserAccountTest","test":"test_rejects_blank_email","assertions":1,"outcome":"failure","kind":"Minitest::Assertion","message":"Expected false to be truthy.","backtrace":["/gems/minitest-5.20.0/lib/minitest/assertions.rb:183:in 'assert'","/app/test/user_account_test.rb:12:in 'test_rejects_blank_email'"]}`,
		`{"event":"result","suite":"UserAccountTest","test":"test_later","outcome":"skip","message":"not yet","backtrace":["/app/test/user_account_test.rb:20:in 'test_later'"]}`,
		`{"event":"suite_end","suite":"UserAccountTest"}`,
		`{"event":"finish"}`,
	)

	var buf bytes.Buffer
	eng := newEngine(&buf)
	stats, err := Run(context.Background(), strings.NewReader(input), eng)
	require.NoError(t, err)

	assert.Equal(t, 8, stats.Events)
	assert.Zero(t, stats.Malformed)
	assert.Equal(t, reporter.Finished, eng.Phase())

	st := eng.State()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 3, st.Completed)
	assert.Equal(t, 3, st.Assertions)
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, 1, st.Skips)

	out := buf.String()
	assert.Contains(t, out, "[FAILURE] User Account: rejects blank email\n")
	assert.Contains(t, out, "Minitest::Assertion: Expected false to be truthy.\n")
	assert.Contains(t, out, "-> [test] user_account_test.rb:12 in 'test_rejects_blank_email'\n")
	assert.NotContains(t, out, "assertions.rb")
	assert.Contains(t, out, "[SKIPPED] User Account: later\nnot yet\n")
	assert.True(t, strings.HasSuffix(out, "  ----- FAILED! -----\n"))
}

func TestRun_FinishesRun_When_InputEndsEarly(t *testing.T) {
	t.Parallel()

	input := lines(
		`{"event":"start","suites":[{"name":"A","tests":2}]}`,
		`{"event":"result","suite":"A","test":"test_one","outcome":"pass"}`,
	)

	var buf bytes.Buffer
	eng := newEngine(&buf)
	_, err := Run(context.Background(), strings.NewReader(input), eng)
	require.NoError(t, err)

	assert.Equal(t, reporter.Finished, eng.Phase())
	assert.Contains(t, buf.String(), "1/2 tests (50%)")
	assert.Contains(t, buf.String(), "----- PASSED! -----")
}

func TestRun_StartsImplicitly_When_NoStartEvent(t *testing.T) {
	t.Parallel()

	input := lines(
		`{"event":"result","suite":"A","test":"test_one","outcome":"error","kind":"RuntimeError","message":"boom"}`,
		`{"event":"start","suites":[{"name":"B","tests":4}]}`,
	)

	var buf bytes.Buffer
	eng := newEngine(&buf)
	_, err := Run(context.Background(), strings.NewReader(input), eng)
	require.NoError(t, err)

	st := eng.State()
	assert.Equal(t, 1, st.Errors)
	assert.Equal(t, 5, st.Total)
	assert.Contains(t, buf.String(), "RuntimeError: boom")
}

func TestRun_CountsMalformedAndUnknownLines(t *testing.T) {
	t.Parallel()

	input := lines(
		`{"event":"start","suites":[]}`,
		`garbage`,
		`{"event":"teleport"}`,
		`{"event":"finish"}`,
		`{"event":"finish"}`,
	)

	var buf bytes.Buffer
	stats, err := Run(context.Background(), strings.NewReader(input), newEngine(&buf))
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 2, stats.Malformed)
	assert.Equal(t, 1, stats.Ignored)
}

func TestRun_ReportsUnknownOutcomeAsError(t *testing.T) {
	t.Parallel()

	input := lines(`{"event":"result","suite":"A","test":"test_x","outcome":"exploded"}`)

	var buf bytes.Buffer
	eng := newEngine(&buf)
	_, err := Run(context.Background(), strings.NewReader(input), eng)
	require.NoError(t, err)

	assert.Equal(t, 1, eng.State().Errors)
	assert.Contains(t, buf.String(), `UnknownOutcome: runner reported outcome "exploded"`)
}

func TestRun_ReturnsUsageError_When_EventsFollowFinish(t *testing.T) {
	t.Parallel()

	input := lines(
		`{"event":"start","suites":[]}`,
		`{"event":"finish"}`,
		`{"event":"test","suite":"A","test":"test_late"}`,
	)

	var buf bytes.Buffer
	_, err := Run(context.Background(), strings.NewReader(input), newEngine(&buf))
	require.Error(t, err)
	assert.ErrorIs(t, err, reporter.ErrUsage)
	assert.Contains(t, err.Error(), "test event")
}

func TestRun_FinishesRun_When_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	eng := newEngine(&buf)
	_, err := Run(ctx, strings.NewReader(lines(`{"event":"start","suites":[]}`)), eng)

	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.Equal(t, reporter.Finished, eng.Phase())
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	t.Parallel()

	short := `{"event":"ok"}`
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("ü", 200)
	got := truncate(long)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Less(t, utf8.RuneCountInString(got), 200)
}
