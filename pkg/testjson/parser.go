package testjson

import (
	"context"
	"io"

	"github.com/dkoosis/prettytest/pkg/stream"
)

// ProcessFunc handles one event. A non-nil error stops the stream.
type ProcessFunc func(TestEvent) error

// Stream parses go test -json events line by line and calls fn for each one.
// Stops on EOF, when ctx is cancelled or when fn fails. Returns the number of
// malformed lines skipped and any error.
//
// Cancellation closes r if it implements io.Closer; see stream.Lines.
func Stream(ctx context.Context, r io.Reader, onBad func(line []byte, err error), fn ProcessFunc) (int, error) {
	return stream.JSON(ctx, r, onBad, func(e TestEvent) error {
		return fn(e)
	})
}
