package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"genealogic/internal/config"
	"genealogic/internal/crawler"
	"genealogic/internal/pipeline"
	"genealogic/internal/ux"
)

// errDiagnostics makes check exit non-zero once the findings are printed.
var errDiagnostics = errors.New("diagnostics reported")

// app carries what every command needs once flags and config are loaded.
type app struct {
	out    io.Writer
	errOut io.Writer

	configPath  string
	logLevel    string
	frontend    string
	exts        []string
	exclude     []string
	singleClass bool
	maxLines    int
	plain       bool

	cfg     *config.Config
	logger  *slog.Logger
	printer *ux.Printer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{out: os.Stdout, errOut: os.Stderr}
	if err := newRootCmd(a).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errDiagnostics) {
			if a.printer != nil {
				a.printer.Error(err.Error())
			} else {
				fmt.Fprintln(os.Stderr, err)
			}
		}
		stop()
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "genealogic",
		Short:         "C++ class hierarchy analyzer",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.out)
	root.SetErr(a.errOut)

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", config.DefaultPath, "Path to the configuration file")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.frontend, "frontend", "", "Declaration parser: native or treesitter")
	pf.StringSliceVarP(&a.exts, "ext", "e", nil, "Header file extensions (default .h)")
	pf.StringSliceVar(&a.exclude, "exclude", nil, "Glob patterns of paths to skip")
	pf.BoolVar(&a.singleClass, "single-class", false, "Read only the first lines of each header (one class per header)")
	pf.IntVar(&a.maxLines, "max-lines", 0, "Lines read per header in single-class mode (default 100)")
	pf.BoolVar(&a.plain, "plain", false, "Plain output without colors or boxes")

	root.AddCommand(
		newTreeCmd(a),
		newOverridesCmd(a),
		newCheckCmd(a),
		newExportCmd(a),
		newWatchCmd(a),
		newImpactCmd(a),
		newInspectCmd(a),
	)
	return root
}

// setup loads the configuration and lets explicitly set flags override it.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("frontend") {
		cfg.Parser.Frontend = a.frontend
	}
	if flags.Changed("ext") {
		cfg.Scan.Exts = nil
		for _, ext := range a.exts {
			cfg.Scan.Exts = append(cfg.Scan.Exts, crawler.NormalizeExt(ext))
		}
	}
	if flags.Changed("exclude") {
		cfg.Scan.Exclude = a.exclude
	}
	if flags.Changed("single-class") {
		cfg.Scan.SingleClass = a.singleClass
	}
	if flags.Changed("max-lines") {
		cfg.Scan.MaxLines = a.maxLines
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := cfg.SlogLevel()
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Log.Format, "json") {
		handler = slog.NewJSONHandler(a.errOut, opts)
	} else {
		handler = slog.NewTextHandler(a.errOut, opts)
	}

	a.cfg = cfg
	a.logger = slog.New(handler)
	a.printer = ux.NewPrinter(a.out, a.errOut, a.plain)
	return nil
}

func (a *app) pipeline() (*pipeline.Pipeline, error) {
	return pipeline.New(pipeline.Options{
		Frontend:         a.cfg.Parser.Frontend,
		Interesting:      a.cfg.Parser.InterestingClasses,
		MaxTemplateDepth: a.cfg.Parser.MaxTemplateDepth,
		// Truncated reads routinely cut a class in half.
		SkipInvalid: a.cfg.Parser.SkipInvalid || a.cfg.Scan.SingleClass,
		Logger:      a.logger,
	})
}

func (a *app) analyze(cmd *cobra.Command, dir string) (*pipeline.Analysis, error) {
	p, err := a.pipeline()
	if err != nil {
		return nil, err
	}
	analysis, err := p.AnalyzeDir(cmd.Context(), dir, a.cfg.CrawlerOptions())
	if err != nil {
		if errors.Is(err, pipeline.ErrNoHeaders) {
			return nil, fmt.Errorf("no %s files found in %s", strings.Join(a.cfg.Scan.Exts, ", "), dir)
		}
		return nil, err
	}
	for _, skipped := range analysis.Skipped {
		a.printer.Warning(fmt.Sprintf("skipped %s: %v", skipped.Path, skipped.Err))
	}
	return analysis, nil
}
