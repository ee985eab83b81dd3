package main

import (
	"bufio"
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate keeps user config and CI variables out of the run.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("HOME", filepath.Join(dir, "home"))
	for _, key := range []string{
		"PRETTYTEST_ROOT", "PRETTYTEST_THEME", "PRETTYTEST_FORMAT", "PRETTYTEST_LOG_LEVEL",
		"PRETTYTEST_NO_COLOR", "NO_COLOR", "PRETTYTEST_CI", "CI", "PRETTYTEST_LABEL",
	} {
		t.Setenv(key, "")
	}
	return dir
}

func runCLI(t *testing.T, input string, args ...string) (int, string, string) {
	t.Helper()
	root := isolate(t)
	args = append(args, "--root", root, "--no-color")
	var stdout, stderr bytes.Buffer
	code := run(args, strings.NewReader(input), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_ReportsGoTestJSON(t *testing.T) {
	input := strings.Join([]string{
		`{"Time":"2024-01-01T00:00:00Z","Action":"start","Package":"example.com/pkg/handler"}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"run","Package":"example.com/pkg/handler","Test":"TestCreateUser_Valid"}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"pass","Package":"example.com/pkg/handler","Test":"TestCreateUser_Valid","Elapsed":0.1}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"run","Package":"example.com/pkg/handler","Test":"TestCreateUser_InvalidEmail"}`,
		`{"Time":"2024-01-01T00:00:00Z","Action":"output","Package":"example.com/pkg/handler","Test":"TestCreateUser_InvalidEmail","Output":"    handler_test.go:45: expected error \"invalid email\", got nil\n"}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"fail","Package":"example.com/pkg/handler","Test":"TestCreateUser_InvalidEmail","Elapsed":0.3}`,
		`{"Time":"2024-01-01T00:00:01Z","Action":"fail","Package":"example.com/pkg/handler","Elapsed":1.2}`,
	}, "\n") + "\n"

	code, stdout, stderr := runCLI(t, input)

	assert.Equal(t, exitFailed, code, stderr)
	assert.Contains(t, stdout, "[FAILURE] Handler: create user invalid email\n")
	assert.Contains(t, stdout, `Failure: expected error "invalid email", got nil`)
	assert.Contains(t, stdout, "2/2 tests (100%)")
	assert.True(t, strings.HasSuffix(stdout, "  ----- FAILED! -----\n"))
	assert.NotContains(t, stdout, "\x1b[")
}

func TestRun_ReportsPassingTAP(t *testing.T) {
	code, stdout, stderr := runCLI(t, "TAP version 13\n1..2\nok 1 - adds\nok 2 - removes\n")

	assert.Equal(t, exitPassed, code, stderr)
	assert.Contains(t, stdout, "2/2 tests (100%), 0 assertions, 0 errors, 0 failures, 0 skips")
	assert.True(t, strings.HasSuffix(stdout, "  ----- PASSED! -----\n"))
}

func TestRun_UsesSubcommandFormat(t *testing.T) {
	input := strings.Join([]string{
		`{"event":"start","suites":[{"name":"UserAccountTest","tests":1}]}`,
		`{"event":"result","suite":"UserAccountTest","test":"test_saves","assertions":2,"outcome":"pass"}`,
		`{"event":"finish"}`,
	}, "\n") + "\n"

	code, stdout, stderr := runCLI(t, input, "events")

	assert.Equal(t, exitPassed, code, stderr)
	assert.Contains(t, stdout, "1/1 tests (100%), 2 assertions")
}

func TestRun_UsesFormatFlag(t *testing.T) {
	code, stdout, _ := runCLI(t, "not ok 1 - broken\n", "--format", "tap")

	assert.Equal(t, exitFailed, code)
	assert.Contains(t, stdout, "[FAILURE] broken\n")
}

func TestRun_FailsWithoutInput(t *testing.T) {
	code, _, stderr := runCLI(t, "")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "prettytest: no input on stdin")
}

func TestRun_FailsForUnknownInput(t *testing.T) {
	code, stdout, stderr := runCLI(t, "hello world\n")

	assert.Equal(t, exitUsage, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "unrecognized input format")
}

func TestRun_RejectsInvalidTheme(t *testing.T) {
	code, _, stderr := runCLI(t, "ok 1\n", "--theme", "neon")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, `invalid theme "neon"`)
}

func TestRun_RejectsUnknownFlag(t *testing.T) {
	code, _, stderr := runCLI(t, "ok 1\n", "--colour")

	assert.Equal(t, exitUsage, code)
	assert.Contains(t, stderr, "unknown flag")
}

func TestRun_PrintsResolvedConfig(t *testing.T) {
	code, _, stderr := runCLI(t, "ok 1\n", "--debug-config", "--theme", "orca")

	assert.Equal(t, exitPassed, code)
	assert.Contains(t, stderr, "config file: (none)")
	assert.Regexp(t, `theme\s+orca\s+\(cli\)`, stderr)
	assert.Regexp(t, `no_color\s+true\s+\(cli\)`, stderr)
}

func TestRun_WarnsAboutMalformedInput(t *testing.T) {
	code, _, stderr := runCLI(t, "ok 1\nnpm WARN deprecated\n")

	assert.Equal(t, exitPassed, code)
	assert.Contains(t, stderr, "skipped malformed input")
	assert.Contains(t, stderr, "lines=1")
}

func TestRun_PrintsVersion(t *testing.T) {
	isolate(t)
	var stdout, stderr bytes.Buffer
	code := run([]string{"version"}, strings.NewReader(""), &stdout, &stderr)

	assert.Equal(t, exitPassed, code)
	assert.True(t, strings.HasPrefix(stdout.String(), "prettytest "))
	assert.Contains(t, stdout.String(), "commit:")
}

func TestPeekFirstLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "stops after first line", input: "ok 1\nok 2\n", want: "ok 1\n"},
		{name: "skips blank lines", input: "\n\n  ok 1\nok 2\n", want: "\n\n  ok 1\n"},
		{name: "returns partial line at EOF", input: "1..3", want: "1..3"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			br := bufio.NewReaderSize(oneByteReader{strings.NewReader(tt.input)}, 16)
			got := peekFirstLine(br)
			assert.Equal(t, tt.want, string(got))

			rest := new(bytes.Buffer)
			_, err := rest.ReadFrom(br)
			require.NoError(t, err)
			assert.Equal(t, tt.input, rest.String(), "peeking must not consume input")
		})
	}
}

// oneByteReader returns at most one byte per Read, like a slow pipe.
type oneByteReader struct{ r *strings.Reader }

func (o oneByteReader) Read(p []byte) (int, error) {
	if len(p) > 1 {
		p = p[:1]
	}
	return o.r.Read(p)
}
