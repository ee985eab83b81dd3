// Package config handles configuration loading and merging for prettytest.
//
// # Configuration Precedence
//
// Configuration values are resolved in the following order (highest to lowest priority):
//
//  1. CLI flags (--root, --theme, --no-color, --ci, --no-label, --format, --log-level)
//  2. Environment variables (PRETTYTEST_ROOT, PRETTYTEST_THEME, PRETTYTEST_NO_COLOR,
//     NO_COLOR, PRETTYTEST_CI, CI, PRETTYTEST_FORMAT, PRETTYTEST_LOG_LEVEL)
//  3. YAML config file (.prettytest.yaml in the working directory or
//     ~/.config/prettytest/config.yaml, or the file named by --config)
//  4. Hardcoded defaults
//
// Every resolved value records the source it came from.
//
// # CI Mode Behavior
//
// When CI mode is enabled (via --ci flag, CI=true env var, or ci: true in YAML):
//   - Colors are disabled (monochrome output)
//   - The live status line is never redrawn; only the final tally is written
//
// # Frame Patterns
//
// The frames key appends regular expressions to the built-in frame
// classification:
//
//	frames:
//	  framework:
//	    - '/(spec_helper)/(.+)$'
//	  assertion:
//	    - 'expect\('
//
// Location patterns must capture two groups: the label and the path below it.
package config
