// Package pipeline runs one analysis batch: parse every header, build the
// hierarchy graph, resolve overrides, and index the result for queries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"genealogic/internal/crawler"
	"genealogic/internal/extractor"
	"genealogic/internal/graph"
	"genealogic/internal/query"
	"genealogic/internal/resolver"
)

type Options struct {
	Frontend         string
	Interesting      []string
	MaxTemplateDepth int

	// SkipInvalid drops headers that fail to tokenize or parse instead of
	// aborting the batch. Useful with truncated single-class reads.
	SkipInvalid bool

	Logger *slog.Logger
}

// FileError is a header dropped because SkipInvalid was set.
type FileError struct {
	Path string
	Err  error
}

// Analysis is the outcome of one batch. Nothing in it is modified after
// Analyze returns.
type Analysis struct {
	Declarations []extractor.ClassDeclaration
	Graph        *graph.Graph
	Result       *resolver.Result
	Query        *query.Engine
	Stages       []resolver.StageResult

	Files   int
	Skipped []FileError
	Elapsed time.Duration
}

type Pipeline struct {
	opts      Options
	extractor *extractor.Extractor
	logger    *slog.Logger
}

func New(opts Options) (*Pipeline, error) {
	ext, err := extractor.NewExtractor(opts.Frontend)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{opts: opts, extractor: ext, logger: logger}, nil
}

// Analyze runs the batch over in-memory sources. The first lexical or
// syntax error aborts it unless SkipInvalid is set; a cycle always does.
func (p *Pipeline) Analyze(ctx context.Context, sources []crawler.Source) (*Analysis, error) {
	start := time.Now()
	a := &Analysis{Files: len(sources)}

	if err := p.parseStage(ctx, sources, a); err != nil {
		return nil, err
	}
	if err := p.buildStage(a); err != nil {
		return nil, err
	}
	if err := p.resolveStage(a); err != nil {
		return nil, err
	}
	a.Query = query.New(a.Graph, a.Result)
	a.Elapsed = time.Since(start)

	p.logger.Info("analysis complete",
		"files", a.Files,
		"classes", len(a.Declarations),
		"nodes", a.Graph.Len(),
		"facts", len(a.Result.Facts),
		"diagnostics", len(a.Result.Diagnostics),
		"elapsed", a.Elapsed)
	return a, nil
}

// AnalyzeDir crawls root and analyzes every header found.
func (p *Pipeline) AnalyzeDir(ctx context.Context, root string, opts crawler.Options) (*Analysis, error) {
	c := crawler.NewCrawler(opts, p.logger)
	var sources []crawler.Source
	found, err := c.ScanProject(ctx, root, func(src crawler.Source) error {
		sources = append(sources, src)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	if found == 0 {
		return nil, fmt.Errorf("%w under %s", ErrNoHeaders, root)
	}
	return p.Analyze(ctx, sources)
}

// ErrNoHeaders is returned by AnalyzeDir when nothing matched.
var ErrNoHeaders = errors.New("no header files found")

func (p *Pipeline) parseStage(ctx context.Context, sources []crawler.Source, a *Analysis) error {
	for _, src := range sources {
		decls, err := p.extractor.ExtractSource(ctx, src.Path, src.Content)
		if err != nil {
			if ctx.Err() != nil || !p.opts.SkipInvalid {
				return err
			}
			p.logger.Warn("skipping invalid header", "path", src.Path, "truncated", src.Truncated, "error", err)
			a.Skipped = append(a.Skipped, FileError{Path: src.Path, Err: err})
			continue
		}
		a.Declarations = append(a.Declarations, decls...)
	}
	p.logger.Debug("parsed headers",
		"frontend", p.extractor.Frontend(),
		"files", len(sources),
		"skipped", len(a.Skipped),
		"classes", len(a.Declarations))
	return nil
}

func (p *Pipeline) buildStage(a *Analysis) error {
	var opts []graph.Option
	if len(p.opts.Interesting) > 0 {
		opts = append(opts, graph.WithInteresting(p.opts.Interesting...))
	}
	if p.opts.MaxTemplateDepth > 0 {
		opts = append(opts, graph.WithMaxInstantiationDepth(p.opts.MaxTemplateDepth))
	}
	g, err := graph.Build(a.Declarations, opts...)
	if err != nil {
		return err
	}
	a.Graph = g
	p.logger.Debug("built hierarchy",
		"nodes", g.Len(),
		"edges", len(g.Edges()),
		"external", len(g.Nodes(graph.NodeExternal)),
		"duplicates", len(g.Duplicates()))
	return nil
}

func (p *Pipeline) resolveStage(a *Analysis) error {
	res, stages := resolver.NewDefaultChain().Run(a.Graph)
	a.Result = res
	a.Stages = stages
	for _, s := range stages {
		p.logger.Debug("resolver stage",
			"stage", s.Resolver,
			"attempted", s.Stats.Attempted,
			"resolved", s.Stats.Resolved,
			"skipped", s.Stats.Skipped,
			"diagnostics", s.DiagnosticsAfter-s.DiagnosticsBefore)
		if s.Err != nil {
			return fmt.Errorf("resolver stage %s: %w", s.Resolver, s.Err)
		}
	}
	return nil
}
