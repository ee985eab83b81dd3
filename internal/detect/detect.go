// Package detect sniffs stdin to determine the input format.
package detect

import (
	"bytes"
	"encoding/json"
	"regexp"

	"github.com/dkoosis/prettytest/pkg/testjson"
)

// Format represents a recognized input format.
type Format int

const (
	Unknown    Format = iota
	Events            // prettytest lifecycle protocol, NDJSON
	GoTestJSON        // go test -json NDJSON stream
	TAP               // Test Anything Protocol
)

// String returns the adapter name for the format.
func (f Format) String() string {
	switch f {
	case Events:
		return "events"
	case GoTestJSON:
		return "gotest"
	case TAP:
		return "tap"
	default:
		return "unknown"
	}
}

// Parse maps an adapter name onto a Format.
func Parse(name string) (Format, bool) {
	for _, f := range []Format{Events, GoTestJSON, TAP} {
		if f.String() == name {
			return f, true
		}
	}
	return Unknown, false
}

var tapLine = regexp.MustCompile(`^(?:TAP version \d+|1\.\.\d+|ok\b|not ok\b|# Subtest:|Bail out!)`)

// Sniff examines the first bytes of input to determine format.
// Returns the detected format. Input must contain at least the first line.
func Sniff(data []byte) Format {
	data = bytes.TrimLeft(data, " \t\r\n")
	if len(data) == 0 {
		return Unknown
	}

	first := data
	if i := bytes.IndexByte(first, '\n'); i >= 0 {
		first = first[:i]
	}
	first = bytes.TrimRight(first, " \t\r")

	if first[0] == '{' {
		switch {
		case isEvents(first):
			return Events
		case isGoTestJSON(first):
			return GoTestJSON
		}
		return Unknown
	}
	if tapLine.Match(first) {
		return TAP
	}
	return Unknown
}

func isEvents(line []byte) bool {
	var probe struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(line, &probe); err != nil {
		return false
	}
	return probe.Event != ""
}

func isGoTestJSON(line []byte) bool {
	var e testjson.TestEvent
	if err := json.Unmarshal(line, &e); err != nil {
		return false
	}
	return e.Action != "" && e.Known()
}
