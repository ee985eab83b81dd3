package reporter

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/status"
)

// termWriter is the single point of output for an engine. Nothing else
// writes to the sink, so a status redraw can never interleave with a report.
type termWriter struct {
	out      io.Writer
	log      logrus.FieldLogger
	statusOn bool  // a status line is on screen and must be erased first
	err      error // first write error; later writes are dropped
}

func newTermWriter(out io.Writer, log logrus.FieldLogger) *termWriter {
	return &termWriter{out: out, log: log}
}

func (w *termWriter) write(s string) {
	if w.err != nil || s == "" {
		return
	}
	if _, err := io.WriteString(w.out, s); err != nil {
		w.err = err
		w.log.WithError(err).Warn("output sink write failed, dropping further output")
	}
}

// PrintLine erases any status line and writes s followed by a newline.
func (w *termWriter) PrintLine(s string) {
	w.EraseStatus()
	w.write(s + "\n")
}

// EraseStatus clears the status line. No-op when none is shown.
func (w *termWriter) EraseStatus() {
	if !w.statusOn {
		return
	}
	w.write(status.EraseLine)
	w.statusOn = false
}

// DrawStatus replaces the status line with line, which must not end in a
// newline.
func (w *termWriter) DrawStatus(line string) {
	w.EraseStatus()
	w.write(line)
	w.statusOn = true
}

// Err returns the first write error, if any.
func (w *termWriter) Err() error {
	return w.err
}
