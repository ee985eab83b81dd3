package reporter

import (
	"errors"
	"fmt"
)

// ErrUsage is matched by every *UsageError.
var ErrUsage = errors.New("reporter: call out of order")

// Phase is the engine's lifecycle position.
type Phase int

const (
	NotStarted Phase = iota
	Running
	Finished
)

func (p Phase) String() string {
	switch p {
	case NotStarted:
		return "not started"
	case Running:
		return "running"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// UsageError reports an engine method called in the wrong phase. The engine
// state is left untouched.
type UsageError struct {
	Op    string
	State Phase
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("reporter: %s called while %s", e.Op, e.State)
}

func (e *UsageError) Unwrap() error {
	return ErrUsage
}
