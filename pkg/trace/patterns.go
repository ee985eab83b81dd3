package trace

import (
	"fmt"
	"regexp"
)

// Patterns are the regular expressions used to tag frames. Location patterns
// (Framework, Dependency, Runtime) are matched against the frame path and
// must capture two groups: the label and the path below it. Assertion
// patterns are matched against the raw frame text.
type Patterns struct {
	Framework  []string `yaml:"framework"`
	Dependency []string `yaml:"dependency"`
	Runtime    []string `yaml:"runtime"`
	Assertion  []string `yaml:"assertion"`
}

// DefaultPatterns covers RubyGems, the Go module cache, node_modules and
// Python site-packages as dependencies; Ruby, Go and Python installs as
// runtimes; minitest, Go's testing package and this module as framework.
func DefaultPatterns() Patterns {
	return Patterns{
		Framework: []string{
			`/gems/((?:minitap|minitest)-[^/]+)/(.+)$`,
			`/src/(testing)/(.+)$`,
			`/(github\.com/dkoosis/prettytest)(?:@[^/]+)?/(.+)$`,
		},
		Dependency: []string{
			`/gems/([^/]+)/(.+)$`,
			`/pkg/mod/(.+?@[^/]+)/(.+)$`,
			`/node_modules/((?:@[^/]+/)?[^/]+)/(.+)$`,
			`/(?:site|dist)-packages/([^/]+)/(.+)$`,
		},
		Runtime: []string{
			`/(ruby-[^/]+)/(.+)$`,
			`/rubies/([^/]+)/(.+)$`,
			`/(go[^/]*)/src/(.+)$`,
			`/lib/(python\d[^/]*)/(.+)$`,
		},
		Assertion: []string{
			`:in .(?:[\w:]+[#.])?(assert|refute|flunk|pass|fail|must|wont)`,
			`testify/(?:assert|require)\.`,
		},
	}
}

// Merge returns p with extra's patterns appended.
func (p Patterns) Merge(extra Patterns) Patterns {
	return Patterns{
		Framework:  append(append([]string(nil), p.Framework...), extra.Framework...),
		Dependency: append(append([]string(nil), p.Dependency...), extra.Dependency...),
		Runtime:    append(append([]string(nil), p.Runtime...), extra.Runtime...),
		Assertion:  append(append([]string(nil), p.Assertion...), extra.Assertion...),
	}
}

// Count returns the number of patterns across all kinds.
func (p Patterns) Count() int {
	return len(p.Framework) + len(p.Dependency) + len(p.Runtime) + len(p.Assertion)
}

// Empty reports whether p holds no patterns.
func (p Patterns) Empty() bool {
	return p.Count() == 0
}

type compiled struct {
	framework  []*regexp.Regexp
	dependency []*regexp.Regexp
	runtime    []*regexp.Regexp
	assertion  []*regexp.Regexp
}

// Validate reports the first pattern that does not compile or lacks the
// capture groups it needs.
func (p Patterns) Validate() error {
	_, err := p.compile()
	return err
}

func (p Patterns) compile() (compiled, error) {
	var c compiled
	var err error
	if c.framework, err = compileLocation("framework", p.Framework); err != nil {
		return c, err
	}
	if c.dependency, err = compileLocation("dependency", p.Dependency); err != nil {
		return c, err
	}
	if c.runtime, err = compileLocation("runtime", p.Runtime); err != nil {
		return c, err
	}
	for _, expr := range p.Assertion {
		re, err := regexp.Compile(expr)
		if err != nil {
			return c, fmt.Errorf("assertion pattern %q: %w", expr, err)
		}
		c.assertion = append(c.assertion, re)
	}
	return c, nil
}

func compileLocation(kind string, exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%s pattern %q: %w", kind, expr, err)
		}
		if re.NumSubexp() < 2 {
			return nil, fmt.Errorf("%s pattern %q: needs two capture groups (label, path)", kind, expr)
		}
		out = append(out, re)
	}
	return out, nil
}
