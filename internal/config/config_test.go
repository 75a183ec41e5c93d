package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdir moves into a fresh directory so that no stray .env is loaded.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadConfig_Defaults(t *testing.T) {
	dir := chdir(t)
	cfg, err := LoadConfig(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_File(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  ext: [h, .hpp]
  exclude: ["third_party/**"]
  single_class: true
  max_lines: 40
parser:
  frontend: treesitter
  interesting: [Animal]
output:
  format: png
log:
  level: debug
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, []string{".h", ".hpp"}, cfg.Scan.Exts)
	assert.True(t, cfg.Scan.SingleClass)
	assert.Equal(t, 40, cfg.Scan.MaxLines)
	assert.Equal(t, "treesitter", cfg.Parser.Frontend)
	assert.Equal(t, 8, cfg.Parser.MaxTemplateDepth, "unset keys keep defaults")
	assert.Equal(t, []string{"Animal"}, cfg.Parser.InterestingClasses)
	assert.Equal(t, "png", cfg.Output.Format)
	require.NoError(t, cfg.Validate())

	level, err := cfg.SlogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	opts := cfg.CrawlerOptions()
	assert.Equal(t, []string{"third_party/**"}, opts.Exclude)
	assert.Equal(t, 40, opts.MaxLines)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GENEALOGIC_FORMAT=pdf\n"), 0o644))
	t.Setenv("GENEALOGIC_EXT", "hh,hxx")
	t.Setenv("GENEALOGIC_FRONTEND", "treesitter")
	t.Setenv("GENEALOGIC_LOG_LEVEL", "warn")
	t.Setenv("GENEALOGIC_MAX_LINES", "12")
	t.Cleanup(func() { os.Unsetenv("GENEALOGIC_FORMAT") })

	cfg, err := LoadConfig(filepath.Join(dir, "none.yaml"))
	require.NoError(t, err)
	assert.Equal(t, []string{".hh", ".hxx"}, cfg.Scan.Exts)
	assert.Equal(t, "treesitter", cfg.Parser.Frontend)
	assert.Equal(t, "pdf", cfg.Output.Format)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, 12, cfg.Scan.MaxLines)
}

func TestLoadConfig_Malformed(t *testing.T) {
	dir := chdir(t)
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan: [unclosed"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	t.Setenv("GENEALOGIC_MAX_LINES", "many")
	_, err = LoadConfig(filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"Format", func(c *Config) { c.Output.Format = "gif" }, ErrInvalidFormat},
		{"Frontend", func(c *Config) { c.Parser.Frontend = "clang" }, ErrInvalidFrontend},
		{"Max Lines", func(c *Config) { c.Scan.MaxLines = 0 }, ErrInvalidLimit},
		{"Template Depth", func(c *Config) { c.Parser.MaxTemplateDepth = -1 }, ErrInvalidLimit},
		{"Log Level", func(c *Config) { c.Log.Level = "loud" }, ErrInvalidLogLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}
