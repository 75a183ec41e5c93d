package crawler

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultExt         = ".h"
	DefaultMaxLines    = 100
	DefaultConcurrency = 64
)

// Options controls which headers are collected and how much of each is read.
type Options struct {
	// Exts are the file extensions to collect; DefaultExt when empty.
	Exts []string

	// Exclude holds doublestar patterns matched against slash-separated
	// paths relative to the scan root, e.g. "third_party/**".
	Exclude []string

	// SingleClass reads only the first MaxLines lines of each file, for
	// trees with one class per header.
	SingleClass bool
	MaxLines    int

	Concurrency int
}

// Source is one header read from disk.
type Source struct {
	Path    string
	Content []byte

	// Truncated is set when SingleClass cut the file short.
	Truncated bool
}

// Crawler scans a directory for C++ headers.
type Crawler struct {
	opts    Options
	ignored []string
	logger  *slog.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(opts Options, logger *slog.Logger) *Crawler {
	if len(opts.Exts) == 0 {
		opts.Exts = []string{DefaultExt}
	}
	for i, ext := range opts.Exts {
		opts.Exts[i] = NormalizeExt(ext)
	}
	if opts.MaxLines <= 0 {
		opts.MaxLines = DefaultMaxLines
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		opts:    opts,
		ignored: []string{".git", "node_modules"},
		logger:  logger,
	}
}

// NormalizeExt gives an extension a leading dot: "hpp" becomes ".hpp".
func NormalizeExt(ext string) string {
	ext = strings.TrimSpace(ext)
	if ext == "" || strings.HasPrefix(ext, ".") {
		return ext
	}
	return "." + ext
}

// Discover returns the matching headers under root in lexical order.
func (c *Crawler) Discover(root string) ([]string, error) {
	for _, p := range c.opts.Exclude {
		if !doublestar.ValidatePattern(p) {
			return nil, &PatternError{Pattern: p}
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path == root {
				return nil
			}
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			if c.excluded(rel) {
				return filepath.SkipDir
			}
			return nil
		}

		if !c.matchesExt(d.Name()) || c.excluded(rel) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	return paths, nil
}

// Wants reports whether Discover would collect path when scanning root.
func (c *Crawler) Wants(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		for _, ign := range c.ignored {
			if part == ign {
				return false
			}
		}
	}
	return c.matchesExt(filepath.Base(path)) && !c.excluded(rel)
}

func (c *Crawler) matchesExt(name string) bool {
	for _, ext := range c.opts.Exts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func (c *Crawler) excluded(rel string) bool {
	for _, p := range c.opts.Exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Read loads paths concurrently. Unreadable files are logged and skipped;
// the result keeps the order of paths.
func (c *Crawler) Read(ctx context.Context, paths []string) ([]Source, error) {
	results := make([]*Source, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.opts.Concurrency)
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			src, err := c.readFile(path)
			if err != nil {
				c.logger.Warn("skipping unreadable header", "path", path, "error", err)
				return nil
			}
			results[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]Source, 0, len(results))
	for _, src := range results {
		if src != nil {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (c *Crawler) readFile(path string) (*Source, error) {
	if !c.opts.SingleClass {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return &Source{Path: path, Content: data}, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sb strings.Builder
	r := bufio.NewReader(f)
	for lines := 0; lines < c.opts.MaxLines; lines++ {
		line, err := r.ReadString('\n')
		sb.WriteString(line)
		if errors.Is(err, io.EOF) {
			return &Source{Path: path, Content: []byte(sb.String())}, nil
		}
		if err != nil {
			return nil, err
		}
	}
	_, err = r.Peek(1)
	return &Source{Path: path, Content: []byte(sb.String()), Truncated: err == nil}, nil
}

// ScanProject discovers and reads every header under root, then hands them
// to onSource in path order. An error from onSource stops the scan.
func (c *Crawler) ScanProject(ctx context.Context, root string, onSource func(Source) error) (int, error) {
	paths, err := c.Discover(root)
	if err != nil {
		return 0, err
	}
	c.logger.Debug("discovered headers", "root", root, "count", len(paths))

	sources, err := c.Read(ctx, paths)
	if err != nil {
		return 0, err
	}
	for _, src := range sources {
		if err := onSource(src); err != nil {
			return len(paths), err
		}
	}
	return len(paths), nil
}

// PatternError reports a malformed exclude pattern.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "crawler: invalid exclude pattern " + e.Pattern
}
