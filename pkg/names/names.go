// Package names turns machine-style suite and test identifiers into
// readable phrases, e.g. "UserAccountTest" -> "User Account" and
// "test_rejects_blank_email" -> "rejects blank email".
package names

import (
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/dkoosis/prettytest/pkg/event"
)

var (
	suiteSeparators = regexp.MustCompile(`::|_`)
	testPrefix      = regexp.MustCompile(`(?i)\btest`)
	testSuffix      = regexp.MustCompile(`(?i)test\b`)
	acronymBoundary = regexp.MustCompile(`([A-Z]+)([A-Z][a-z])`)
	camelBoundary   = regexp.MustCompile(`([a-z\d])([A-Z])`)
	underscores     = regexp.MustCompile(`_+`)
	spaces          = regexp.MustCompile(`\s+`)

	rubyTestPrefix = regexp.MustCompile(`^test_+`)
	bareTestPrefix = regexp.MustCompile(`^test([^A-Za-z])`)
	goTestPrefix   = regexp.MustCompile(`^Test([A-Z\d_])`)
)

// Pretty is the display form of an event.Identity.
type Pretty struct {
	Suite string
	Test  string
}

// Of prettifies both halves of id.
func Of(id event.Identity) Pretty {
	return Pretty{Suite: Suite(id.Suite), Test: Test(id.Test)}
}

// String renders "Suite: test", or just the test when the suite is empty.
func (p Pretty) String() string {
	switch {
	case p.Suite == "":
		return p.Test
	case p.Test == "":
		return p.Suite
	default:
		return p.Suite + ": " + p.Test
	}
}

// Display is shorthand for Of(id).String().
func Display(id event.Identity) string {
	return Of(id).String()
}

// Suite prettifies a suite or class name: hierarchy separators and
// underscores become spaces, the word "test" is removed as a whole word or
// as a prefix/suffix fragment, words are capitalized and camel case is split.
// Import paths ("example.com/shop/cart") keep only their last element.
func Suite(raw string) string {
	s := raw
	if i := strings.LastIndex(s, "/"); i >= 0 && i < len(s)-1 {
		s = s[i+1:]
	}
	s = suiteSeparators.ReplaceAllString(s, " ")
	s = testPrefix.ReplaceAllString(s, "")
	s = testSuffix.ReplaceAllString(s, "")
	s = capitalizeWords(s)
	s = acronymBoundary.ReplaceAllString(s, "$1 $2")
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	s = collapse(s)
	if s == "" {
		return fallback(raw)
	}
	return s
}

// Test prettifies a test method name. Ruby-style "test_" prefixes are
// stripped, underscores become spaces and a capitalized first word is
// lower-cased. Go-style "TestXxx" names lose the
// "Test" prefix and are split on camel case with capitalized words
// lower-cased; acronyms keep their case. Subtest separators are kept as " / ".
func Test(raw string) string {
	parts := strings.Split(raw, "/")
	out := make([]string, 0, len(parts))
	for i, part := range parts {
		p := testSegment(part, i == 0)
		if p != "" {
			out = append(out, p)
		}
	}
	s := strings.Join(out, " / ")
	if s == "" {
		return fallback(raw)
	}
	return s
}

func testSegment(raw string, top bool) string {
	s := raw
	if top {
		if m := goTestPrefix.FindStringSubmatchIndex(s); m != nil {
			return goWords(s[m[2]:])
		}
		stripped := rubyTestPrefix.ReplaceAllString(s, "")
		stripped = bareTestPrefix.ReplaceAllString(stripped, "$1")
		if stripped != s {
			return lowerFirstWord(collapse(underscores.ReplaceAllString(stripped, " ")))
		}
	}
	s = underscores.ReplaceAllString(s, " ")
	return collapse(s)
}

// lowerFirstWord lower-cases the first word of s when it is capitalized.
// Acronyms keep their case.
func lowerFirstWord(s string) string {
	first, rest, _ := strings.Cut(s, " ")
	if !isCapitalized(first) {
		return s
	}
	if rest == "" {
		return toLower(first)
	}
	return toLower(first) + " " + rest
}

// capitalizeWords upper-cases the first rune of every space-separated word.
func capitalizeWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		if unicode.IsLower(r) {
			words[i] = string(unicode.ToUpper(r)) + w[size:]
		}
	}
	return strings.Join(words, " ")
}

// cases.Caser is not safe for concurrent use, so instances are pooled.
var lowerPool = sync.Pool{
	New: func() any {
		c := cases.Lower(language.Und)
		return &c
	},
}

func toLower(s string) string {
	c, ok := lowerPool.Get().(*cases.Caser)
	if !ok || c == nil {
		return cases.Lower(language.Und).String(s)
	}
	defer lowerPool.Put(c)
	return c.String(s)
}

// goWords splits a camel-case Go identifier into display words.
func goWords(s string) string {
	s = underscores.ReplaceAllString(s, " ")
	s = acronymBoundary.ReplaceAllString(s, "$1 $2")
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	words := strings.Fields(s)
	for i, w := range words {
		if isCapitalized(w) {
			words[i] = toLower(w)
		}
	}
	return strings.Join(words, " ")
}

// isCapitalized reports whether w has an upper-case first letter followed
// only by non-upper-case runes ("Email", not "HTTP").
func isCapitalized(w string) bool {
	for i, r := range w {
		if i == 0 {
			if !unicode.IsUpper(r) {
				return false
			}
			continue
		}
		if unicode.IsUpper(r) {
			return false
		}
	}
	return w != ""
}

func collapse(s string) string {
	return strings.TrimSpace(spaces.ReplaceAllString(s, " "))
}

// fallback applies only the safe separator normalization. It is used when
// the full rules would reduce a name to nothing.
func fallback(raw string) string {
	s := collapse(underscores.ReplaceAllString(raw, " "))
	if s == "" {
		return raw
	}
	return s
}
