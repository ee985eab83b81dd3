// Package magetasks provides the build tasks behind prettytest's Magefile.
//
// Tasks are grouped the way the Magefile exposes them: build and clean,
// lint, test and the combined quality check. Test tasks run go test -json
// and report it through prettytest's own gotest adapter, so the build
// exercises the reporter on every run.
package magetasks
