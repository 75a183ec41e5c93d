package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"genealogic/internal/analysis"
	"genealogic/internal/config"
	"genealogic/internal/crawler"
	"genealogic/internal/generator"
	"genealogic/internal/git"
	"genealogic/internal/graph"
	"genealogic/internal/pipeline"
	"genealogic/internal/resolver"
	"genealogic/internal/retrieval"
)

func newTreeCmd(a *app) *cobra.Command {
	var (
		outDir string
		format string
		noOpen bool
		depth  int
	)
	cmd := &cobra.Command{
		Use:   "tree <base-class> <directory>",
		Short: "Render the inheritance tree below a base class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, dir := args[0], args[1]
			cfg := a.cfg
			if cmd.Flags().Changed("output") {
				cfg.Output.Dir = outDir
			}
			if cmd.Flags().Changed("format") {
				cfg.Output.Format = format
			}
			if cmd.Flags().Changed("no-open") {
				cfg.Output.NoOpen = noOpen
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			a.printer.Header(base, dir, strings.Join(cfg.Scan.Exts, ", "))
			image := isImageFormat(cfg.Output.Format)
			hasDot := generator.HasDot()
			if image && !hasDot {
				a.printer.Warning("Graphviz 'dot' not found in PATH. Tree will be shown in console only. Install Graphviz to render image output.")
			}

			result, err := a.analyze(cmd, dir)
			if err != nil {
				return err
			}
			a.printer.ScanResult(result.Files, len(result.Graph.Edges()))

			t, err := retrieval.DescendantTree(result.Graph, base, retrieval.Config{MaxDepth: depth})
			if errors.Is(err, graph.ErrNodeNotFound) {
				return fmt.Errorf("class '%s' not found in any inheritance relationship", base)
			}
			if err != nil {
				return err
			}
			if len(t.Root.Children) == 0 {
				a.printer.Warning(fmt.Sprintf("No classes inherit from '%s'", base))
				return nil
			}
			a.printer.TreePreview(t)

			var path string
			switch {
			case image && !hasDot:
				a.printer.Warning("Skipping image rendering (Graphviz not installed)")
				return nil
			case image:
				path = generator.OutputPath(cfg.Output.Dir, base, cfg.Output.Format)
				src := (&generator.DOTGenerator{}).GenerateTree(t)
				if err := generator.Render(cmd.Context(), src, path, cfg.Output.Format); err != nil {
					return err
				}
			default:
				path, err = writeTreeArtifact(cfg, result, t, base)
				if err != nil {
					return err
				}
			}
			a.printer.Rendered(path)
			if image && !cfg.Output.NoOpen {
				openFile(path, a.logger)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "output", "o", "", "Output directory (default: current directory)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "Output format: "+strings.Join(config.Formats, ", "))
	cmd.Flags().BoolVar(&noOpen, "no-open", false, "Don't open the result after rendering")
	cmd.Flags().IntVar(&depth, "depth", 0, "Stop the tree below this depth (0 for unlimited)")
	return cmd
}

func isImageFormat(format string) bool {
	for _, f := range generator.RenderFormats {
		if f == format {
			return true
		}
	}
	return false
}

// writeTreeArtifact writes the text formats next to where the image would go.
func writeTreeArtifact(cfg *config.Config, result *pipeline.Analysis, t *retrieval.Tree, base string) (string, error) {
	switch cfg.Output.Format {
	case "dot":
		path := generator.OutputPath(cfg.Output.Dir, base, "dot")
		return path, writeFile(path, (&generator.DOTGenerator{}).GenerateTree(t))
	case "mermaid":
		path := generator.OutputPath(cfg.Output.Dir, base, "mmd")
		return path, writeFile(path, (&generator.MermaidGenerator{Members: true}).GenerateTree(result.Graph, t))
	default:
		path := generator.OutputPath(cfg.Output.Dir, base, "json")
		return path, generator.NewReport(result.Graph, result.Result).Save(path)
	}
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func newOverridesCmd(a *app) *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "overrides <directory> [class]",
		Short: "List which methods override which ancestor declarations",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			q := result.Query

			if len(args) == 1 {
				a.printer.Overrides(result.Result.Facts)
				bindings, _ := q.StaticBindings("")
				a.printer.StaticBindings(bindings)
				return nil
			}

			class := args[1]
			if method != "" {
				chain, err := q.OverrideChain(class, method)
				if err != nil {
					return err
				}
				parts := []string{resolver.MethodRef{Class: class, Key: method}.String()}
				for _, ref := range chain {
					parts = append(parts, ref.String())
				}
				a.printer.Info(strings.Join(parts, " -> "))
				return nil
			}

			facts, err := q.Overrides(class)
			if err != nil {
				return err
			}
			a.printer.Overrides(facts)
			bindings, err := q.StaticBindings(class)
			if err != nil {
				return err
			}
			a.printer.StaticBindings(bindings)
			return nil
		},
	}
	cmd.Flags().StringVar(&method, "method", "", `Print the override chain of one signature, e.g. "speak() const"`)
	return cmd
}

func newCheckCmd(a *app) *cobra.Command {
	var kinds []string
	cmd := &cobra.Command{
		Use:   "check <directory>",
		Short: "Report override diagnostics; exits non-zero when any are found",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			filter := make([]resolver.DiagnosticKind, 0, len(kinds))
			for _, k := range kinds {
				filter = append(filter, resolver.DiagnosticKind(k))
			}
			diags := result.Query.Diagnostics(filter...)
			if len(diags) == 0 {
				a.printer.Success(fmt.Sprintf("%d classes checked, no diagnostics", len(result.Declarations)))
				return nil
			}
			a.printer.Diagnostics(diags)
			a.printer.Error(fmt.Sprintf("%d diagnostics in %d classes", len(diags), len(result.Declarations)))
			return errDiagnostics
		},
	}
	cmd.Flags().StringSliceVar(&kinds, "kind", nil, "Only report these diagnostic kinds")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	var (
		format  string
		output  string
		members bool
	)
	cmd := &cobra.Command{
		Use:   "export <directory>",
		Short: "Export the whole hierarchy as JSON, Mermaid or DOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.analyze(cmd, args[0])
			if err != nil {
				return err
			}

			var content string
			switch format {
			case "json":
				var sb strings.Builder
				if err := generator.NewReport(result.Graph, result.Result).Encode(&sb); err != nil {
					return err
				}
				content = sb.String()
			case "mermaid":
				content = (&generator.MermaidGenerator{Members: members}).GenerateClassDiagram(result.Graph)
			case "dot":
				content = (&generator.DOTGenerator{}).GenerateGraph(result.Graph)
			default:
				return fmt.Errorf("%w %q (want json, mermaid or dot)", config.ErrInvalidFormat, format)
			}

			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), content)
				return err
			}
			if err := writeFile(output, content); err != nil {
				return err
			}
			a.printer.Success("Exported to " + output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "Export format: json, mermaid or dot")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().BoolVar(&members, "members", false, "Include member functions in Mermaid diagrams")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var debounce time.Duration
	cmd := &cobra.Command{
		Use:   "watch <base-class> <directory>",
		Short: "Re-analyze whenever headers change and print the affected classes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, dir := args[0], args[1]
			p, err := a.pipeline()
			if err != nil {
				return err
			}
			a.printer.Header(base, dir, strings.Join(a.cfg.Scan.Exts, ", "))
			a.printer.Info("Watching for changes, press Ctrl+C to stop")

			return p.Watch(cmd.Context(), dir, a.cfg.CrawlerOptions(), debounce, func(u pipeline.Update) {
				if u.Err != nil {
					a.printer.Error(u.Err.Error())
					return
				}
				if u.Impact != nil {
					printImpact(a, u.Changed, u.Impact)
				}
				a.printer.ScanResult(u.Analysis.Files, len(u.Analysis.Graph.Edges()))
				t, err := retrieval.DescendantTree(u.Analysis.Graph, base, retrieval.DefaultConfig())
				if err != nil {
					a.printer.Warning(fmt.Sprintf("Class '%s' not found in any inheritance relationship", base))
					return
				}
				a.printer.TreePreview(t)
				a.printer.Diagnostics(u.Analysis.Result.Diagnostics)
			})
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", pipeline.DefaultDebounce, "Quiet period before a batch of changes is analyzed")
	return cmd
}

func newImpactCmd(a *app) *cobra.Command {
	var since string
	cmd := &cobra.Command{
		Use:   "impact <directory>",
		Short: "List classes affected by headers changed since a git revision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			changes, err := git.ChangedFiles(cmd.Context(), dir, since)
			if err != nil {
				return err
			}
			c := crawler.NewCrawler(a.cfg.CrawlerOptions(), a.logger)
			var headers []string
			var touched []analysis.Change
			for _, ch := range changes {
				if c.Wants(dir, ch.Path) {
					headers = append(headers, ch.Path)
					touched = append(touched, analysis.Change{Path: ch.Path, Lines: ch.ChangedLines})
				}
			}
			if len(headers) == 0 {
				a.printer.Success("No header changes detected.")
				return nil
			}

			result, err := a.analyze(cmd, dir)
			if err != nil {
				return err
			}
			report := analysis.NewAnalyzer(result.Graph).AnalyzeChanges(result.Graph, touched)
			printImpact(a, headers, report)
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "HEAD", "Git revision to diff against")
	return cmd
}

func printImpact(a *app, changed []string, r *analysis.ImpactReport) {
	a.printer.Info(fmt.Sprintf("%d headers changed", len(changed)))
	if r.Empty() {
		a.printer.Success("No classes affected")
		return
	}
	list := func(label string, ids []string) {
		if len(ids) > 0 {
			a.printer.Info(fmt.Sprintf("%s: %s", label, strings.Join(ids, ", ")))
		}
	}
	list("Added", r.Added)
	list("Removed", r.Removed)
	list("Directly affected", r.DirectlyAffected)
	list("Indirectly affected", r.IndirectlyAffected)
}

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <directory> <class>",
		Short: "Show the ancestors, virtual functions and descendants of one class",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := a.analyze(cmd, args[0])
			if err != nil {
				return err
			}
			q := result.Query
			class := args[1]

			ancestors, err := q.AllBases(class)
			if err != nil {
				return err
			}
			for _, anc := range ancestors {
				access, _, err := q.EffectiveAccess(class, anc.Node.ID)
				if err != nil {
					return err
				}
				count, err := q.SubobjectCount(class, anc.Node.ID)
				if err != nil {
					return err
				}
				line := fmt.Sprintf("base %s (depth %d, %s", anc.Node.ID, anc.Depth, access)
				if anc.Virtual {
					line += ", virtual"
				}
				if count > 1 {
					line += fmt.Sprintf(", %d subobjects", count)
				}
				a.printer.Info(line + ")")
			}

			virtuals, err := q.Virtuals(class)
			if err != nil {
				return err
			}
			for _, v := range virtuals {
				line := fmt.Sprintf("virtual %s from %s", v.Ref.Key, v.Ref.Class)
				switch {
				case v.Pure:
					line += " (pure)"
				case v.Final:
					line += " (final)"
				}
				a.printer.Info(line)
			}

			derived, err := q.AllDerived(class)
			if err != nil {
				return err
			}
			for _, n := range derived {
				a.printer.Info("derived " + n.ID)
			}
			return nil
		},
	}
}
