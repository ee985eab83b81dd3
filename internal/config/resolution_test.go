package config

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveConfig_ReturnsDefaults_When_NothingSet(t *testing.T) {
	dir := isolate(t)

	cfg, err := ResolveConfig(CliFlags{})
	require.NoError(t, err)

	assert.Equal(t, DefaultTheme, cfg.Theme)
	assert.Equal(t, DefaultFormat, cfg.Format)
	assert.Equal(t, logrus.WarnLevel, cfg.LogLevel)
	assert.False(t, cfg.NoColor)
	assert.False(t, cfg.CI)
	assert.True(t, cfg.Label)
	assert.Empty(t, cfg.File)
	assert.Equal(t, SourceDefault, cfg.Sources["theme"])
	assert.Equal(t, SourceDefault, cfg.Sources["root"])

	wd, err := filepath.EvalSymlinks(dir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(cfg.Root)
	require.NoError(t, err)
	assert.Equal(t, wd, got)
}

func TestResolveConfig_PriorityOrder(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		env        map[string]string
		flags      CliFlags
		wantTheme  string
		wantSource Source
	}{
		{
			name:       "file over default",
			file:       "theme: orca\n",
			wantTheme:  "orca",
			wantSource: SourceFile,
		},
		{
			name:       "env over file",
			file:       "theme: orca\n",
			env:        map[string]string{"PRETTYTEST_THEME": "mono"},
			wantTheme:  "mono",
			wantSource: SourceEnv,
		},
		{
			name:       "cli over env",
			file:       "theme: orca\n",
			env:        map[string]string{"PRETTYTEST_THEME": "mono"},
			flags:      CliFlags{Theme: "default", ThemeSet: true},
			wantTheme:  "default",
			wantSource: SourceCLI,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			writeFile(t, filepath.Join(dir, LocalFileName), tt.file)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := ResolveConfig(tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTheme, cfg.Theme)
			assert.Equal(t, tt.wantSource, cfg.Sources["theme"])
			assert.Equal(t, LocalFileName, cfg.File)
		})
	}
}

func TestResolveConfig_ResolvesBooleans(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalFileName), "no_color: true\nlabel: false\n")
	t.Setenv("PRETTYTEST_NO_COLOR", "false")

	cfg, err := ResolveConfig(CliFlags{})
	require.NoError(t, err)
	assert.False(t, cfg.NoColor)
	assert.Equal(t, SourceEnv, cfg.Sources["no_color"])
	assert.False(t, cfg.Label)
	assert.Equal(t, SourceFile, cfg.Sources["label"])

	cfg, err = ResolveConfig(CliFlags{NoLabel: false, NoLabelSet: true})
	require.NoError(t, err)
	assert.True(t, cfg.Label)
	assert.Equal(t, SourceCLI, cfg.Sources["label"])
}

func TestResolveConfig_HonorsNoColorConvention(t *testing.T) {
	isolate(t)
	t.Setenv("NO_COLOR", "yes")

	cfg, err := ResolveConfig(CliFlags{})
	require.NoError(t, err)
	assert.True(t, cfg.NoColor)
	assert.Equal(t, SourceEnv, cfg.Sources["no_color"])

	cfg, err = ResolveConfig(CliFlags{NoColor: false, NoColorSet: true})
	require.NoError(t, err)
	assert.False(t, cfg.NoColor)
}

func TestResolveConfig_CIImpliesNoColor(t *testing.T) {
	isolate(t)
	t.Setenv("CI", "true")

	cfg, err := ResolveConfig(CliFlags{})
	require.NoError(t, err)
	assert.True(t, cfg.CI)
	assert.True(t, cfg.NoColor)
	assert.False(t, cfg.Interactive(true))
}

func TestResolveConfig_ResolvesRootRelativeToConfigFile(t *testing.T) {
	dir := isolate(t)
	cfgPath := filepath.Join(dir, "conf", "prettytest.yaml")
	writeFile(t, cfgPath, "root: ../app\n")

	cfg, err := ResolveConfig(CliFlags{ConfigPath: cfgPath})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app"), cfg.Root)
	assert.Equal(t, cfgPath, cfg.File)
	assert.Equal(t, SourceFile, cfg.Sources["root"])
}

func TestResolveConfig_FailsForMissingExplicitFile(t *testing.T) {
	dir := isolate(t)

	_, err := ResolveConfig(CliFlags{ConfigPath: filepath.Join(dir, "missing.yaml")})
	require.Error(t, err)
}

func TestResolveConfig_Validation(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		flags   CliFlags
		wantErr string
	}{
		{name: "unknown theme", flags: CliFlags{Theme: "neon", ThemeSet: true}, wantErr: `invalid theme "neon"`},
		{name: "unknown format", file: "format: junit\n", wantErr: `invalid format "junit"`},
		{name: "bad log level", flags: CliFlags{LogLevel: "loud", LogLevelSet: true}, wantErr: "log_level"},
		{name: "pattern without groups", file: "frames:\n  framework:\n    - '/vendor/'\n", wantErr: "two capture groups"},
		{name: "pattern does not compile", file: "frames:\n  assertion:\n    - 'expect('\n", wantErr: "assertion pattern"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := isolate(t)
			if tt.file != "" {
				writeFile(t, filepath.Join(dir, LocalFileName), tt.file)
			}

			_, err := ResolveConfig(tt.flags)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "config validation failed")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestResolvedConfig_Describe(t *testing.T) {
	dir := isolate(t)
	writeFile(t, filepath.Join(dir, LocalFileName), "theme: orca\n")

	cfg, err := ResolveConfig(CliFlags{Format: "tap", FormatSet: true})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Describe(&buf))
	out := buf.String()
	assert.Contains(t, out, "config file: "+LocalFileName+"\n")
	assert.Regexp(t, `theme\s+orca\s+\(file\)`, out)
	assert.Regexp(t, `format\s+tap\s+\(cli\)`, out)
	assert.Regexp(t, `log_level\s+warning\s+\(default\)`, out)
}
