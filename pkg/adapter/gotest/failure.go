package gotest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dkoosis/prettytest/pkg/event"
)

// Exception kinds for outcomes built from go test output.
const (
	KindPanic        = "panic"
	KindBuildFailure = "BuildFailure"
	KindPackage      = "PackageFailure"
	KindUnfinished   = "Unfinished"
)

const subtestsFailed = "one or more subtests failed"

var (
	// "    cart_test.go:18: expected 2 items" as printed by t.Error and friends.
	locationLine = regexp.MustCompile(`^(\s*)(\S+\.go):(\d+): ?(.*)$`)
	// "        \tError Trace:\t/abs/cart_test.go:18" in testify's labeled output.
	testifyField = regexp.MustCompile(`^\s*\t([A-Za-z][A-Za-z ]*):\s*\t(.*)$`)
	testifyMore  = regexp.MustCompile(`^\s*\t\s*\t(.*)$`)
	// "\t/usr/local/go/src/runtime/panic.go:770 +0x132" in a goroutine dump.
	goroutineFrame = regexp.MustCompile(`^\s*(\S+\.go):(\d+)(?:\s+\+0x[0-9a-fA-F]+)?\s*$`)
	inGoroutine    = regexp.MustCompile(` in goroutine \d+$`)
)

// resolveFunc turns a file reference from test output into a path the
// classifier can place.
type resolveFunc func(file string) string

// isBoilerplate reports go test framing lines that carry no failure detail.
func isBoilerplate(s string) bool {
	trimmed := strings.TrimSpace(s)
	return trimmed == "" ||
		strings.HasPrefix(trimmed, "=== ") ||
		strings.HasPrefix(trimmed, "--- PASS") ||
		strings.HasPrefix(trimmed, "--- FAIL") ||
		strings.HasPrefix(trimmed, "--- SKIP")
}

func meaningful(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if !isBoilerplate(l) {
			out = append(out, l)
		}
	}
	return out
}

// failureOutcome builds the outcome for a failed test from its output.
func failureOutcome(lines []string, resolve resolveFunc, childFailed bool) event.Outcome {
	lines = meaningful(lines)
	if o, ok := panicOutcome(lines); ok {
		return o
	}
	if o, ok := testifyOutcome(lines); ok {
		return o
	}
	msg, bt := locatedMessages(lines, resolve)
	if msg == "" {
		switch {
		case childFailed:
			msg = subtestsFailed
		default:
			msg = "test failed without output"
		}
	}
	return event.Failed("", msg, bt)
}

// skipOutcome builds the outcome for a skipped test: the t.Skip message and
// its location.
func skipOutcome(lines []string, resolve resolveFunc) event.Outcome {
	msg, bt := locatedMessages(meaningful(lines), resolve)
	return event.Skipped(msg, bt)
}

// locatedMessages collects "file.go:N: text" messages with their continuation
// lines. Locations become backtrace frames in the order they were logged.
// Output without any location is returned verbatim.
func locatedMessages(lines []string, resolve resolveFunc) (string, []string) {
	var (
		msgs   []string
		bt     []string
		seen   = make(map[string]bool)
		indent = -1
	)
	for _, l := range lines {
		if m := locationLine.FindStringSubmatch(l); m != nil {
			indent = len(m[1])
			frame := resolve(m[2]) + ":" + m[3]
			if !seen[frame] {
				seen[frame] = true
				bt = append(bt, frame)
			}
			msgs = append(msgs, strings.TrimRight(m[4], " "))
			continue
		}
		if indent >= 0 && leadingSpace(l) > indent && len(msgs) > 0 {
			msgs[len(msgs)-1] += "\n" + strings.TrimSpace(l)
			continue
		}
		msgs = append(msgs, strings.TrimSpace(l))
	}
	return strings.TrimSpace(strings.Join(msgs, "\n")), bt
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t"))
}

// testifyOutcome reads testify's labeled failure blocks. The first block's
// Error Trace is the backtrace; every block contributes its Error and
// Messages fields to the message.
func testifyOutcome(lines []string) (event.Outcome, bool) {
	var (
		found   bool
		field   string
		bt      []string
		msgs    []string
		traceOf = 0 // blocks whose trace was collected
	)
	for _, l := range lines {
		if m := testifyField.FindStringSubmatch(l); m != nil {
			field = strings.TrimSpace(m[1])
			value := strings.TrimRight(m[2], " ")
			switch field {
			case "Error Trace":
				found = true
				traceOf++
				if traceOf == 1 && value != "" {
					bt = append(bt, value)
				}
			case "Error", "Messages":
				msgs = append(msgs, value)
			}
			continue
		}
		if m := testifyMore.FindStringSubmatch(l); m != nil && field != "" {
			value := strings.TrimRight(m[1], " ")
			switch field {
			case "Error Trace":
				if traceOf == 1 && value != "" {
					bt = append(bt, value)
				}
			case "Error", "Messages":
				if len(msgs) > 0 {
					msgs[len(msgs)-1] += "\n" + value
				}
			}
			continue
		}
		field = ""
	}
	if !found {
		return event.Outcome{}, false
	}
	return event.Failed("", strings.TrimSpace(strings.Join(msgs, "\n")), bt), true
}

// panicOutcome turns "panic: ..." plus the goroutine dump into an Error whose
// backtrace frames read "path:line:in 'func'", newest first.
func panicOutcome(lines []string) (event.Outcome, bool) {
	start := -1
	for i, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l), "panic: ") {
			start = i
			break
		}
	}
	if start < 0 {
		return event.Outcome{}, false
	}

	msg := strings.TrimPrefix(strings.TrimSpace(lines[start]), "panic: ")
	msg = strings.TrimSuffix(msg, " [recovered]")
	return event.Errored(KindPanic, msg, goroutineTrace(lines[start+1:])), true
}

// goroutineTrace normalizes the frames of a goroutine dump. Each frame is a
// function line followed by a tab-indented "file:line +0xoff" line.
func goroutineTrace(lines []string) []string {
	var bt []string
	fn := ""
	for _, l := range lines {
		if m := goroutineFrame.FindStringSubmatch(l); m != nil {
			frame := m[1] + ":" + m[2]
			if fn != "" {
				frame += fmt.Sprintf(":in '%s'", fn)
			}
			bt = append(bt, frame)
			fn = ""
			continue
		}
		fn = funcName(strings.TrimSpace(l))
	}
	return bt
}

// funcName strips the argument list from a goroutine dump function line.
//
//	cart.(*Cart).Add(0xc000010000, {0x4f2d1a, 0x3})  -> cart.(*Cart).Add
//	created by testing.(*T).Run in goroutine 1         -> testing.(*T).Run
func funcName(s string) string {
	if strings.HasPrefix(s, "goroutine ") || strings.HasPrefix(s, "panic: ") || s == "" {
		return ""
	}
	if rest, ok := strings.CutPrefix(s, "created by "); ok {
		return inGoroutine.ReplaceAllString(rest, "")
	}
	if !strings.HasSuffix(s, ")") {
		return s
	}
	depth := 0
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return s[:i]
			}
		}
	}
	return s
}

// packageOutcome describes a package that failed outside any test.
func packageOutcome(lines []string, failedBuild bool) event.Outcome {
	lines = meaningful(lines)
	if o, ok := panicOutcome(lines); ok {
		return o
	}
	kept := make([]string, 0, len(lines))
	for _, l := range lines {
		t := strings.TrimSpace(l)
		if t == "FAIL" || strings.HasPrefix(t, "FAIL\t") || strings.HasPrefix(t, "ok ") ||
			strings.HasPrefix(t, "exit status ") {
			continue
		}
		kept = append(kept, strings.TrimRight(l, " "))
	}
	msg := strings.TrimSpace(strings.Join(kept, "\n"))
	if failedBuild {
		if msg == "" {
			msg = "build failed"
		}
		return event.Errored(KindBuildFailure, msg, nil)
	}
	if msg == "" {
		msg = "package failed outside of any test"
	}
	return event.Errored(KindPackage, msg, nil)
}
