package tap

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// diagnostic is the YAML block that may follow a test point. Producers
// disagree on field names and shapes, so loosely typed fields stay nodes.
type diagnostic struct {
	Message   string    `yaml:"message"`
	Severity  string    `yaml:"severity"`
	Type      string    `yaml:"type"`
	At        yaml.Node `yaml:"at"`
	Stack     yaml.Node `yaml:"stack"`
	Backtrace []string  `yaml:"backtrace"`
	Expected  yaml.Node `yaml:"expected"`
	Actual    yaml.Node `yaml:"actual"`
	Wanted    yaml.Node `yaml:"wanted"`
	Found     yaml.Node `yaml:"found"`
}

// location is the mapping form of "at" used by node-tap.
type location struct {
	File     string `yaml:"file"`
	Line     int    `yaml:"line"`
	Function string `yaml:"function"`
}

func parseDiagnostic(lines []string) (diagnostic, error) {
	var d diagnostic
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &d); err != nil {
		return diagnostic{}, fmt.Errorf("decoding YAML diagnostic: %w", err)
	}
	return d, nil
}

// message joins the message with any expected/actual pair.
func (d diagnostic) message() string {
	parts := []string{strings.TrimSpace(d.Message)}
	want, got := nodeText(&d.Expected), nodeText(&d.Actual)
	if want == "" && got == "" {
		want, got = nodeText(&d.Wanted), nodeText(&d.Found)
	}
	if want != "" || got != "" {
		parts = append(parts, "expected: "+want, "actual:   "+got)
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// frames returns the backtrace, newest first: the "at" location followed by
// the stack or backtrace entries.
func (d diagnostic) frames(resolve func(string) string) []string {
	var out []string
	add := func(f string) {
		if f == "" {
			return
		}
		for _, seen := range out {
			if seen == f {
				return
			}
		}
		out = append(out, f)
	}

	switch d.At.Kind {
	case yaml.ScalarNode:
		add(normalizeFrame(d.At.Value, resolve))
	case yaml.MappingNode:
		var loc location
		if err := d.At.Decode(&loc); err == nil && loc.File != "" {
			f := resolve(loc.File)
			if loc.Line > 0 {
				f += ":" + strconv.Itoa(loc.Line)
			}
			if loc.Function != "" {
				f += ":in '" + loc.Function + "'"
			}
			add(f)
		}
	}

	var stack []string
	switch d.Stack.Kind {
	case yaml.ScalarNode:
		stack = strings.Split(d.Stack.Value, "\n")
	case yaml.SequenceNode:
		_ = d.Stack.Decode(&stack)
	}
	stack = append(stack, d.Backtrace...)
	for _, s := range stack {
		add(normalizeFrame(s, resolve))
	}
	return out
}

var (
	// "at fn (file:line:col)" as in JavaScript stacks.
	parenFrame = regexp.MustCompile(`^(?:at\s+)?(.*?)\s*\(([^()]+?):(\d+)(?::\d+)?\)$`)
	// "at file:line:col" without a function.
	bareFrame = regexp.MustCompile(`^(?:at\s+)?(\S+?):(\d+)(?::\d+)?$`)
)

// normalizeFrame rewrites JavaScript-style frames to "file:line:in 'fn'".
// Anything else is kept as given.
func normalizeFrame(s string, resolve func(string) string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if m := parenFrame.FindStringSubmatch(s); m != nil {
		f := resolve(m[2]) + ":" + m[3]
		if fn := strings.TrimSpace(m[1]); fn != "" {
			f += ":in '" + fn + "'"
		}
		return f
	}
	if m := bareFrame.FindStringSubmatch(s); m != nil {
		return resolve(m[1]) + ":" + m[2]
	}
	return s
}

func nodeText(n *yaml.Node) string {
	switch n.Kind {
	case 0:
		return ""
	case yaml.ScalarNode:
		return n.Value
	default:
		b, err := yaml.Marshal(n)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(b))
	}
}

// resolver joins relative paths onto root. References with a scheme, such
// as "node:internal/..." or "file:///...", are left alone.
func resolver(root string) func(string) string {
	return func(p string) string {
		if root == "" || filepath.IsAbs(p) || strings.Contains(p, ":") {
			return p
		}
		return filepath.Join(root, p)
	}
}
