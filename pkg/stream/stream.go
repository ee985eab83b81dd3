// Package stream reads line-oriented test output (NDJSON or plain text) with
// context cancellation, handing each line to a callback as it arrives.
package stream

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// MaxLineSize bounds a single input line. Verbose test output can produce
// long lines, so it is well above bufio's default.
const MaxLineSize = 1024 * 1024

// scanResult carries a scanned line or terminal error from the scanner goroutine.
type scanResult struct {
	line []byte
	err  error
}

// Lines calls fn for each line of r, without its line terminator. It stops at
// EOF, when ctx is cancelled, or when fn returns an error, which is returned
// unchanged.
//
// The scanner runs in a background goroutine. On cancel, Lines closes r if it
// implements io.Closer to unblock the scanner; otherwise the caller must close
// the underlying reader to avoid leaking the goroutine.
func Lines(ctx context.Context, r io.Reader, fn func(line []byte) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), MaxLineSize)

	lines := make(chan scanResult)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			// Copy bytes; the scanner reuses its buffer.
			cp := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- scanResult{line: cp}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case lines <- scanResult{err: err}:
			case <-ctx.Done():
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			if c, ok := r.(io.Closer); ok {
				_ = c.Close()
			}
			return ctx.Err()
		case res, ok := <-lines:
			if !ok {
				return nil
			}
			if res.err != nil {
				return fmt.Errorf("scanning input: %w", res.err)
			}
			if err := fn(res.line); err != nil {
				return err
			}
		}
	}
}

// JSON decodes every non-empty line of r as a T and calls fn with it. Lines
// that are not valid JSON for T are skipped and counted in malformed; onBad,
// when non-nil, sees each of them.
func JSON[T any](ctx context.Context, r io.Reader, onBad func(line []byte, err error), fn func(T) error) (malformed int, err error) {
	err = Lines(ctx, r, func(line []byte) error {
		if len(line) == 0 {
			return nil
		}
		var v T
		if uerr := json.Unmarshal(line, &v); uerr != nil {
			malformed++
			if onBad != nil {
				onBad(line, uerr)
			}
			return nil
		}
		return fn(v)
	})
	return malformed, err
}
