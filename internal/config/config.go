package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"genealogic/internal/crawler"
	"genealogic/internal/extractor"
)

const DefaultPath = "genealogic.yaml"

var (
	ErrInvalidFormat   = errors.New("invalid output format")
	ErrInvalidFrontend = errors.New("invalid frontend")
	ErrInvalidLimit    = errors.New("invalid line limit")
	ErrInvalidLogLevel = errors.New("invalid log level")
)

// Formats lists the accepted values of Output.Format.
var Formats = []string{"svg", "png", "pdf", "dot", "mermaid", "json"}

type Config struct {
	Scan struct {
		Exts        []string `yaml:"ext"`
		Exclude     []string `yaml:"exclude"`
		SingleClass bool     `yaml:"single_class"`
		MaxLines    int      `yaml:"max_lines"`
	} `yaml:"scan"`
	Parser struct {
		Frontend           string   `yaml:"frontend"`
		MaxTemplateDepth   int      `yaml:"max_template_depth"`
		SkipInvalid        bool     `yaml:"skip_invalid"`
		InterestingClasses []string `yaml:"interesting"`
	} `yaml:"parser"`
	Output struct {
		Dir    string `yaml:"dir"`
		Format string `yaml:"format"`
		NoOpen bool   `yaml:"no_open"`
	} `yaml:"output"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text or json
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Scan.Exts = []string{crawler.DefaultExt}
	cfg.Scan.MaxLines = crawler.DefaultMaxLines
	cfg.Parser.Frontend = extractor.FrontendNative
	cfg.Parser.MaxTemplateDepth = 8
	cfg.Output.Dir = "."
	cfg.Output.Format = "svg"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return &cfg
}

// LoadConfig reads path over the defaults. A missing file is not an error.
// Environment variables, including those from a .env file, override the
// file.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	// 2. Load YAML config
	cfg := Default()
	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(file, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	// 3. Override with Environment Variables if present
	if ext := os.Getenv("GENEALOGIC_EXT"); ext != "" {
		cfg.Scan.Exts = strings.Split(ext, ",")
	}
	if frontend := os.Getenv("GENEALOGIC_FRONTEND"); frontend != "" {
		cfg.Parser.Frontend = frontend
	}
	if format := os.Getenv("GENEALOGIC_FORMAT"); format != "" {
		cfg.Output.Format = format
	}
	if level := os.Getenv("GENEALOGIC_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if lines := os.Getenv("GENEALOGIC_MAX_LINES"); lines != "" {
		n, err := strconv.Atoi(lines)
		if err != nil {
			return nil, fmt.Errorf("GENEALOGIC_MAX_LINES: %w", err)
		}
		cfg.Scan.MaxLines = n
	}

	for i, ext := range cfg.Scan.Exts {
		cfg.Scan.Exts[i] = crawler.NormalizeExt(ext)
	}
	return cfg, nil
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	if !contains(Formats, c.Output.Format) {
		return fmt.Errorf("%w %q (want one of %s)", ErrInvalidFormat, c.Output.Format, strings.Join(Formats, ", "))
	}
	switch c.Parser.Frontend {
	case extractor.FrontendNative, extractor.FrontendTreeSitter:
	default:
		return fmt.Errorf("%w %q", ErrInvalidFrontend, c.Parser.Frontend)
	}
	if c.Scan.MaxLines <= 0 {
		return fmt.Errorf("%w: max_lines must be positive, got %d", ErrInvalidLimit, c.Scan.MaxLines)
	}
	if c.Parser.MaxTemplateDepth <= 0 {
		return fmt.Errorf("%w: max_template_depth must be positive, got %d", ErrInvalidLimit, c.Parser.MaxTemplateDepth)
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel maps Log.Level to a slog level.
func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidLogLevel, c.Log.Level)
	}
	return level, nil
}

// CrawlerOptions returns the scan settings in crawler form.
func (c *Config) CrawlerOptions() crawler.Options {
	return crawler.Options{
		Exts:        append([]string(nil), c.Scan.Exts...),
		Exclude:     append([]string(nil), c.Scan.Exclude...),
		SingleClass: c.Scan.SingleClass,
		MaxLines:    c.Scan.MaxLines,
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
