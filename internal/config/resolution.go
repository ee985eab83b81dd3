package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/dkoosis/prettytest/pkg/render"
	"github.com/dkoosis/prettytest/pkg/trace"
)

// Source names where a resolved value came from.
type Source string

const (
	SourceCLI     Source = "cli"
	SourceEnv     Source = "env"
	SourceFile    Source = "file"
	SourceDefault Source = "default"
)

// Formats accepted by the format setting.
var Formats = []string{"auto", "events", "gotest", "tap"}

// CliFlags holds the values of command-line flags. The *Set fields record
// whether the user passed the flag explicitly.
type CliFlags struct {
	ConfigPath string
	Root       string
	Theme      string
	Format     string
	LogLevel   string
	NoColor    bool
	CI         bool
	NoLabel    bool

	RootSet     bool
	ThemeSet    bool
	FormatSet   bool
	LogLevelSet bool
	NoColorSet  bool
	CISet       bool
	NoLabelSet  bool
}

// ResolvedConfig holds the final configuration after applying all priority rules.
type ResolvedConfig struct {
	Root     string
	Theme    string
	Format   string
	LogLevel logrus.Level
	NoColor  bool
	CI       bool
	Label    bool
	Frames   trace.Patterns

	// File is the config file that was read, or "".
	File string
	// Sources maps each setting's YAML key to the source of its value.
	Sources map[string]Source
}

// Interactive reports whether the live status line may be redrawn on a
// terminal.
func (c *ResolvedConfig) Interactive(isTTY bool) bool {
	return isTTY && !c.CI
}

// ResolveConfig resolves configuration from all sources with explicit
// priority order: CLI > environment > file > defaults.
func ResolveConfig(flags CliFlags) (*ResolvedConfig, error) {
	file, path, err := loadConfig(flags.ConfigPath)
	if err != nil {
		return nil, err
	}

	r := &ResolvedConfig{
		File:    path,
		Frames:  file.Frames,
		Sources: map[string]Source{"frames": SourceDefault},
	}
	if path != "" && !file.Frames.Empty() {
		r.Sources["frames"] = SourceFile
	}

	r.Root, r.Sources["root"] = resolveString(flags.Root, flags.RootSet, "PRETTYTEST_ROOT", file.Root, "")
	r.Theme, r.Sources["theme"] = resolveString(flags.Theme, flags.ThemeSet, "PRETTYTEST_THEME", file.Theme, DefaultTheme)
	r.Format, r.Sources["format"] = resolveString(flags.Format, flags.FormatSet, "PRETTYTEST_FORMAT", file.Format, DefaultFormat)

	var level string
	level, r.Sources["log_level"] = resolveString(flags.LogLevel, flags.LogLevelSet, "PRETTYTEST_LOG_LEVEL", file.LogLevel, DefaultLogLevel)

	r.NoColor, r.Sources["no_color"] = resolveBool(flags.NoColor, flags.NoColorSet, file.NoColor, false, "PRETTYTEST_NO_COLOR")
	r.CI, r.Sources["ci"] = resolveBool(flags.CI, flags.CISet, file.CI, false, "PRETTYTEST_CI", "CI")
	r.Label, r.Sources["label"] = resolveBool(!flags.NoLabel, flags.NoLabelSet, file.Label, true, "PRETTYTEST_LABEL")

	// A non-empty NO_COLOR disables color whatever its value (no-color.org).
	if src := r.Sources["no_color"]; src != SourceCLI && src != SourceEnv && os.Getenv("NO_COLOR") != "" {
		r.NoColor, r.Sources["no_color"] = true, SourceEnv
	}
	if r.CI {
		r.NoColor = true
	}

	// A relative root in a config file is relative to that file.
	if r.Sources["root"] == SourceFile && !filepath.IsAbs(r.Root) {
		r.Root = filepath.Join(filepath.Dir(path), r.Root)
	}
	if r.Root == "" {
		if r.Root, err = os.Getwd(); err != nil {
			return nil, fmt.Errorf("resolving project root: %w", err)
		}
	}
	if r.Root, err = filepath.Abs(r.Root); err != nil {
		return nil, fmt.Errorf("resolving project root: %w", err)
	}

	if r.LogLevel, err = logrus.ParseLevel(level); err != nil {
		return nil, fmt.Errorf("config validation failed: log_level: %w", err)
	}
	if err := validateResolvedConfig(r); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return r, nil
}

// resolveString picks the first set value among CLI, env and file.
func resolveString(cli string, cliSet bool, envKey, file, def string) (string, Source) {
	if cliSet {
		return cli, SourceCLI
	}
	if v := os.Getenv(envKey); v != "" {
		return v, SourceEnv
	}
	if file != "" {
		return file, SourceFile
	}
	return def, SourceDefault
}

func resolveBool(cli, cliSet bool, file *bool, def bool, envKeys ...string) (bool, Source) {
	if cliSet {
		return cli, SourceCLI
	}
	if v := getEnvBool(envKeys...); v != nil {
		return *v, SourceEnv
	}
	if file != nil {
		return *file, SourceFile
	}
	return def, SourceDefault
}

// getEnvBool reads a boolean from environment variables, trying multiple keys.
// Returns nil if none are set to a parsable value.
func getEnvBool(keys ...string) *bool {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			if b, err := strconv.ParseBool(val); err == nil {
				return &b
			}
		}
	}
	return nil
}

// validateResolvedConfig returns an error for values no component accepts.
func validateResolvedConfig(cfg *ResolvedConfig) error {
	if !slices.Contains(render.ThemeNames(), cfg.Theme) {
		return fmt.Errorf("invalid theme %q (must be one of %v)", cfg.Theme, render.ThemeNames())
	}
	if !slices.Contains(Formats, cfg.Format) {
		return fmt.Errorf("invalid format %q (must be one of %v)", cfg.Format, Formats)
	}
	if err := cfg.Frames.Validate(); err != nil {
		return fmt.Errorf("frames: %w", err)
	}
	return nil
}

// Describe writes every resolved setting with its source, one per line.
func (c *ResolvedConfig) Describe(w io.Writer) error {
	file := c.File
	if file == "" {
		file = "(none)"
	}
	rows := []struct {
		key   string
		value any
	}{
		{"root", c.Root},
		{"theme", c.Theme},
		{"format", c.Format},
		{"log_level", c.LogLevel},
		{"no_color", c.NoColor},
		{"ci", c.CI},
		{"label", c.Label},
		{"frames", c.Frames.Count()},
	}
	if _, err := fmt.Fprintf(w, "config file: %s\n", file); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintf(w, "%-10s %-40v (%s)\n", row.key, row.value, c.Sources[row.key]); err != nil {
			return err
		}
	}
	return nil
}
