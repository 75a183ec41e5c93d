package generator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
	"genealogic/internal/resolver"
)

const ReportVersion = "v1"

type ReportClass struct {
	ID       string                      `json:"id"`
	Kind     graph.NodeKind              `json:"kind"`
	File     string                      `json:"file,omitempty"`
	Line     int                         `json:"line,omitempty"`
	Template string                      `json:"template,omitempty"`
	Final    bool                        `json:"final,omitempty"`
	Methods  []extractor.MethodSignature `json:"methods,omitempty"`
}

type ReportEdge struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Kind    graph.EdgeKind `json:"kind"`
	Access  string         `json:"access"`
	Virtual bool           `json:"virtual,omitempty"`
}

type ReportSummary struct {
	Classes     int                             `json:"classes"`
	Edges       int                             `json:"edges"`
	External    int                             `json:"external"`
	Facts       int                             `json:"facts"`
	Diagnostics map[resolver.DiagnosticKind]int `json:"diagnostics"`
	Shape       graph.Metrics                   `json:"shape"`
}

// Report is the machine-readable form of one analysis.
type Report struct {
	Version     string                   `json:"version"`
	GeneratedAt string                   `json:"generated_at"`
	Classes     []ReportClass            `json:"classes"`
	Edges       []ReportEdge             `json:"edges"`
	Facts       []resolver.OverrideFact  `json:"facts"`
	Bindings    []resolver.StaticBinding `json:"static_bindings"`
	Diagnostics []resolver.Diagnostic    `json:"diagnostics"`
	Summary     ReportSummary            `json:"summary"`
}

// NewReport snapshots the graph and resolver result. A nil result yields
// empty fact lists.
func NewReport(g *graph.Graph, res *resolver.Result) *Report {
	r := &Report{
		Version:     ReportVersion,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Classes:     []ReportClass{},
		Edges:       []ReportEdge{},
		Facts:       []resolver.OverrideFact{},
		Bindings:    []resolver.StaticBinding{},
		Diagnostics: []resolver.Diagnostic{},
		Summary:     ReportSummary{Diagnostics: map[resolver.DiagnosticKind]int{}},
	}

	for _, n := range g.Nodes() {
		c := ReportClass{
			ID:       n.ID,
			Kind:     n.Kind,
			Template: n.Template,
			Final:    n.Final(),
			Methods:  n.Methods,
		}
		if n.Decl != nil {
			c.File = n.Decl.File
			c.Line = n.Decl.Line
		}
		r.Classes = append(r.Classes, c)
	}
	for _, e := range g.Edges() {
		r.Edges = append(r.Edges, ReportEdge{
			From:    e.From,
			To:      e.To,
			Kind:    e.Kind,
			Access:  e.Access.String(),
			Virtual: e.Virtual,
		})
	}
	if res != nil {
		r.Facts = append(r.Facts, res.Facts...)
		r.Bindings = append(r.Bindings, res.Bindings...)
		r.Diagnostics = append(r.Diagnostics, res.Diagnostics...)
	}
	for _, d := range r.Diagnostics {
		r.Summary.Diagnostics[d.Kind]++
	}
	r.Summary.Shape = g.Metrics()
	r.Summary.External = r.Summary.Shape.Nodes[graph.NodeExternal]
	r.Summary.Classes = len(r.Classes)
	r.Summary.Edges = len(r.Edges)
	r.Summary.Facts = len(r.Facts)
	return r
}

// Encode writes the report as indented JSON.
func (r *Report) Encode(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}

// Save writes the report to path, creating its directory when missing.
func (r *Report) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	defer f.Close()
	return r.Encode(f)
}
