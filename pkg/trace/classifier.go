package trace

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/dkoosis/prettytest/pkg/event"
)

// Classifier tags frames relative to a project root. It holds no per-trace
// state and is safe for concurrent use.
type Classifier struct {
	root     string // slash-separated, no trailing slash; empty disables project matching
	patterns compiled
}

// New creates a classifier for root using the default patterns plus extra.
func New(root string, extra Patterns) (*Classifier, error) {
	c, err := DefaultPatterns().Merge(extra).compile()
	if err != nil {
		return nil, err
	}
	return &Classifier{root: normalizeRoot(root), patterns: c}, nil
}

// Default creates a classifier for root with the built-in patterns only.
func Default(root string) *Classifier {
	c, err := New(root, Patterns{})
	if err != nil {
		// Built-in patterns are fixed; failing here is a programming error.
		panic(err)
	}
	return c
}

func normalizeRoot(root string) string {
	if root == "" {
		return ""
	}
	root = filepath.ToSlash(filepath.Clean(root))
	if root != "/" {
		root = strings.TrimSuffix(root, "/")
	}
	return root
}

// Root returns the project root frames are classified against.
func (c *Classifier) Root() string {
	return c.root
}

// Under reports whether path lies below the project root.
func (c *Classifier) Under(path string) bool {
	if c.root == "" {
		return false
	}
	p := filepath.ToSlash(path)
	if c.root == "/" {
		return strings.HasPrefix(p, "/")
	}
	return strings.HasPrefix(p, c.root+"/")
}

// Frame parses and tags a single raw frame.
func (c *Classifier) Frame(raw string) Frame {
	f := Frame{Raw: raw}
	path, line, method, ok := ParseFrame(raw)
	if !ok {
		return f
	}
	f.Path, f.Line, f.Method, f.Parsed = path, line, method, true

	p := filepath.ToSlash(path)
	switch {
	case c.Under(p):
		f.Origin = OriginProject
		f.Label, f.Rel = c.projectLabel(p)
	case matchLocation(c.patterns.framework, p, &f):
		f.Origin = OriginFramework
	case matchLocation(c.patterns.dependency, p, &f):
		f.Origin = OriginDependency
	case matchLocation(c.patterns.runtime, p, &f):
		f.Origin = OriginRuntime
	default:
		f.Origin = OriginUnknown
	}
	return f
}

// projectLabel splits a project path into its top-level directory and the
// rest. Files directly in the root are labelled with the root's base name.
func (c *Classifier) projectLabel(p string) (label, rel string) {
	rest := strings.TrimPrefix(p, c.root)
	rest = strings.TrimPrefix(rest, "/")
	if i := strings.Index(rest, "/"); i > 0 {
		return rest[:i], rest[i+1:]
	}
	return filepath.Base(c.root), rest
}

func matchLocation(res []*regexp.Regexp, p string, f *Frame) bool {
	for _, re := range res {
		if m := re.FindStringSubmatch(p); m != nil {
			f.Label, f.Rel = m[1], m[2]
			return true
		}
	}
	return false
}

// Classify tags every frame of backtrace (newest first) and selects the
// pivot for kind. pivot is -1 when no frame qualifies.
//
//   - Failure: the caller of the oldest assertion frame; falls back to the
//     Error rule when no assertion frame exists.
//   - Error: the newest frame inside the project root.
//   - Skip: the location returned by Locate.
func (c *Classifier) Classify(backtrace []string, kind event.Kind) (pivot int, frames []Frame) {
	frames = make([]Frame, len(backtrace))
	for i, raw := range backtrace {
		frames[i] = c.Frame(raw)
	}

	pivot = -1
	switch kind {
	case event.Failure:
		pivot = c.assertionCaller(frames)
		if pivot < 0 {
			pivot = firstProject(frames)
		}
	case event.Error:
		pivot = firstProject(frames)
	case event.Skip:
		pivot = Locate(frames)
	}
	if pivot >= 0 {
		frames[pivot].Pivot = true
	}
	return pivot, frames
}

func (c *Classifier) assertionCaller(frames []Frame) int {
	idx := -1
	for i := len(frames) - 1; i >= 0; i-- {
		if c.isAssertion(frames[i].Raw) {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(frames) {
		return -1
	}
	caller := frames[idx+1]
	if !caller.Parsed || caller.Origin == OriginFramework {
		return -1
	}
	return idx + 1
}

func (c *Classifier) isAssertion(raw string) bool {
	for _, re := range c.patterns.assertion {
		if re.MatchString(raw) {
			return true
		}
	}
	return false
}

func firstProject(frames []Frame) int {
	for i, f := range frames {
		if f.Parsed && f.Origin == OriginProject {
			return i
		}
	}
	return -1
}

// entryPoint is the oldest project frame: where the run entered user code.
func entryPoint(frames []Frame) int {
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Parsed && frames[i].Origin == OriginProject {
			return i
		}
	}
	return -1
}

// Locate returns the single frame used to place a skip: the first project
// frame, else the first parsed frame that is not framework machinery.
func Locate(frames []Frame) int {
	if i := firstProject(frames); i >= 0 {
		return i
	}
	for i, f := range frames {
		if f.Parsed && f.Origin != OriginFramework {
			return i
		}
	}
	return -1
}

// Malformed counts frames that could not be parsed.
func Malformed(frames []Frame) int {
	n := 0
	for _, f := range frames {
		if !f.Parsed {
			n++
		}
	}
	return n
}
