package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dkoosis/prettytest/pkg/trace"
)

// File is the shape of .prettytest.yaml. Pointer fields distinguish "unset"
// from an explicit false.
type File struct {
	Root     string         `yaml:"root,omitempty"`
	Theme    string         `yaml:"theme,omitempty"`
	NoColor  *bool          `yaml:"no_color,omitempty"`
	CI       *bool          `yaml:"ci,omitempty"`
	Label    *bool          `yaml:"label,omitempty"`
	LogLevel string         `yaml:"log_level,omitempty"`
	Format   string         `yaml:"format,omitempty"`
	Frames   trace.Patterns `yaml:"frames,omitempty"`
}

// Constants for default values.
const (
	DefaultTheme    = "default"
	DefaultFormat   = "auto"
	DefaultLogLevel = "warn"

	LocalFileName = ".prettytest.yaml"
	userFileName  = "config.yaml"
	appDirName    = "prettytest"
)

// LoadFile reads and decodes the config file at path. Unknown keys are an
// error so typos surface instead of silently doing nothing.
func LoadFile(path string) (File, error) {
	f, err := os.Open(path)
	if err != nil {
		return File{}, fmt.Errorf("reading config file: %w", err)
	}
	defer f.Close()

	var cfg File
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("decoding config file %s: %w", path, err)
	}
	return cfg, nil
}

// findConfigFile returns the config file to use, or "" when there is none.
// It checks the working directory first, then the user config directory.
func findConfigFile() string {
	if _, err := os.Stat(LocalFileName); err == nil {
		return LocalFileName
	}

	configHome, err := os.UserConfigDir()
	if err != nil || configHome == "" || configHome == "/" {
		return ""
	}
	xdgPath := filepath.Join(configHome, appDirName, userFileName)
	if _, err := os.Stat(xdgPath); err == nil {
		return xdgPath
	}
	return ""
}

// loadConfig resolves the file layer. An explicit path must exist; a
// discovered one that vanished in between is treated as absent.
func loadConfig(explicit string) (File, string, error) {
	path := explicit
	if path == "" {
		path = findConfigFile()
	}
	if path == "" {
		return File{}, "", nil
	}
	cfg, err := LoadFile(path)
	if err != nil {
		if explicit == "" && errors.Is(err, fs.ErrNotExist) {
			return File{}, "", nil
		}
		return File{}, "", err
	}
	return cfg, path, nil
}
