// Package event defines the lifecycle data that adapters hand to the
// reporting engine: test identities, suite enumerations and outcomes.
package event

// Kind identifies the result of one test execution.
type Kind int

const (
	Pass Kind = iota
	Skip
	Failure // assertion-style expectation violation
	Error   // unexpected exception or panic
)

// String returns the lower-case name used by the events protocol.
func (k Kind) String() string {
	switch k {
	case Pass:
		return "pass"
	case Skip:
		return "skip"
	case Failure:
		return "failure"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// ParseKind maps a protocol outcome name onto a Kind.
// Returns false for names it does not recognize.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "pass", "passed", "ok":
		return Pass, true
	case "skip", "skipped":
		return Skip, true
	case "failure", "fail", "failed":
		return Failure, true
	case "error", "errored":
		return Error, true
	default:
		return Pass, false
	}
}

// Identity names a test as supplied by the runner, e.g.
// {Suite: "UserAccountTest", Test: "test_rejects_blank_email"}.
type Identity struct {
	Suite string
	Test  string
}

// Suite is one entry of the runner's suite enumeration.
type Suite struct {
	Name          string
	RunnableTests int
}

// Outcome is the tagged result of a single test. ExceptionKind, Message and
// Backtrace are opaque runner data and are only meaningful for non-passing kinds.
type Outcome struct {
	Kind          Kind
	ExceptionKind string
	Message       string
	Backtrace     []string // newest frame first, preserved as given
}

// Passed returns a passing outcome.
func Passed() Outcome {
	return Outcome{Kind: Pass}
}

// Skipped returns a skip outcome.
func Skipped(message string, backtrace []string) Outcome {
	return Outcome{Kind: Skip, Message: message, Backtrace: backtrace}
}

// Failed returns an assertion failure outcome.
func Failed(exceptionKind, message string, backtrace []string) Outcome {
	return Outcome{Kind: Failure, ExceptionKind: exceptionKind, Message: message, Backtrace: backtrace}
}

// Errored returns an unexpected error outcome.
func Errored(exceptionKind, message string, backtrace []string) Outcome {
	return Outcome{Kind: Error, ExceptionKind: exceptionKind, Message: message, Backtrace: backtrace}
}
