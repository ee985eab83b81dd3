// Package trace classifies raw backtraces: it tags every frame with the
// origin of its source file, selects the single frame that matters for a
// failure, and renders the result for the terminal.
package trace

import (
	"strconv"
	"strings"
)

// Origin classifies where a frame's source file lives.
type Origin int

const (
	OriginUnknown Origin = iota
	OriginProject
	OriginDependency
	OriginRuntime
	OriginFramework // test/report machinery; never rendered
)

func (o Origin) String() string {
	switch o {
	case OriginProject:
		return "project"
	case OriginDependency:
		return "dependency"
	case OriginRuntime:
		return "runtime"
	case OriginFramework:
		return "framework"
	default:
		return "unknown"
	}
}

// Frame is one classified backtrace entry.
type Frame struct {
	Raw    string
	Path   string
	Line   int
	Method string
	Origin Origin
	Label  string // project top-level dir, gem or module name, runtime install
	Rel    string // path below Label
	Parsed bool
	Pivot  bool
}

// ParseFrame splits "path:line[:method]". Windows drive prefixes are kept
// with the path. The line may be followed by whitespace and trailing noise
// ("file.go:42 +0x1d"). ok is false when no integer line number is present.
func ParseFrame(raw string) (path string, line int, method string, ok bool) {
	s := strings.TrimSpace(raw)

	var drive string
	if len(s) >= 3 && s[1] == ':' && (s[2] == '\\' || s[2] == '/') && isASCIILetter(s[0]) {
		drive = s[:2]
		s = s[2:]
	}

	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 || parts[0] == "" {
		return "", 0, "", false
	}

	digits := parts[1]
	if i := strings.IndexAny(digits, " \t"); i >= 0 {
		digits = digits[:i]
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return "", 0, "", false
	}

	if len(parts) == 3 {
		method = strings.TrimSpace(parts[2])
	}
	return drive + parts[0], n, method, true
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
