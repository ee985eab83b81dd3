// Package testjson models the go test -json event stream.
package testjson

import "time"

// Actions reported by go test -json (see go doc test2json).
const (
	ActionStart       = "start"
	ActionRun         = "run"
	ActionPause       = "pause"
	ActionCont        = "cont"
	ActionPass        = "pass"
	ActionFail        = "fail"
	ActionSkip        = "skip"
	ActionOutput      = "output"
	ActionBench       = "bench"
	ActionBuildOutput = "build-output"
	ActionBuildFail   = "build-fail"
)

// TestEvent represents a single event from go test -json output.
type TestEvent struct {
	Time        time.Time `json:"Time"`
	Action      string    `json:"Action"`
	Package     string    `json:"Package"`
	Test        string    `json:"Test"`
	Elapsed     float64   `json:"Elapsed"`
	Output      string    `json:"Output"`
	ImportPath  string    `json:"ImportPath"`  // build-output, build-fail
	FailedBuild string    `json:"FailedBuild"` // package fail caused by a build failure
}

// IsPackage reports whether the event concerns the package as a whole.
func (e TestEvent) IsPackage() bool {
	return e.Test == ""
}

// Known reports whether Action is one go test -json emits.
func (e TestEvent) Known() bool {
	switch e.Action {
	case ActionStart, ActionRun, ActionPause, ActionCont, ActionPass, ActionFail,
		ActionSkip, ActionOutput, ActionBench, ActionBuildOutput, ActionBuildFail:
		return true
	default:
		return false
	}
}
