package analysis

import (
	"path/filepath"
	"sort"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
)

// ImpactReport summarizes the classes affected by header changes.
type ImpactReport struct {
	// DirectlyAffected are classes declared in a changed file, including
	// instantiations of templates declared there.
	DirectlyAffected []string

	// IndirectlyAffected are classes that inherit from a directly affected
	// or removed class.
	IndirectlyAffected []string

	Added   []string
	Removed []string
}

// Empty reports whether the changes touched no class at all.
func (r *ImpactReport) Empty() bool {
	return len(r.DirectlyAffected)+len(r.IndirectlyAffected)+len(r.Added)+len(r.Removed) == 0
}

// Analyzer performs impact analysis on the hierarchy graph.
type Analyzer struct {
	g *graph.Graph
}

// NewAnalyzer creates a new analyzer.
func NewAnalyzer(g *graph.Graph) *Analyzer {
	return &Analyzer{g: g}
}

// Change is one changed file. Lines are the touched lines of the new
// version; nil means the whole file changed.
type Change struct {
	Path  string
	Lines []int
}

// AnalyzeImpact identifies which classes are affected by changes to the
// given files. prev is the graph before the change and may be nil.
func (a *Analyzer) AnalyzeImpact(prev *graph.Graph, changedFiles []string) *ImpactReport {
	changes := make([]Change, len(changedFiles))
	for i, f := range changedFiles {
		changes[i] = Change{Path: f}
	}
	return a.AnalyzeChanges(prev, changes)
}

// AnalyzeChanges is AnalyzeImpact narrowed to line ranges: a class in a
// changed file is directly affected only when a touched line falls within
// its definition.
func (a *Analyzer) AnalyzeChanges(prev *graph.Graph, changes []Change) *ImpactReport {
	report := &ImpactReport{}

	changed := make(map[string][]int, len(changes))
	whole := make(map[string]bool)
	for _, c := range changes {
		path := filepath.Clean(c.Path)
		if c.Lines == nil {
			whole[path] = true
		}
		changed[path] = append(changed[path], c.Lines...)
	}

	before := declaredIDs(prev)
	after := declaredIDs(a.g)
	for id := range after {
		if !before[id] && prev != nil {
			report.Added = append(report.Added, id)
		}
	}
	for id := range before {
		if !after[id] {
			report.Removed = append(report.Removed, id)
		}
	}

	// 1. Find Direct Impacts
	direct := make(map[string]bool)
	for _, n := range a.g.Nodes(graph.NodeDeclared, graph.NodeTemplate) {
		path := filepath.Clean(n.Decl.File)
		if lines, ok := changed[path]; ok && (whole[path] || touches(n.Decl, lines)) {
			direct[n.ID] = true
		}
	}
	for _, n := range a.g.Nodes(graph.NodeInstantiation) {
		if direct[n.Template] {
			direct[n.ID] = true
		}
	}

	// 2. Find Indirect Impacts (derived classes)
	seeds := make([]string, 0, len(direct)+len(report.Removed))
	for id := range direct {
		seeds = append(seeds, id)
	}
	seeds = append(seeds, report.Removed...)

	indirect := make(map[string]bool)
	var walk func(id string)
	walk = func(id string) {
		n, ok := a.g.Node(id)
		if !ok {
			return
		}
		for _, e := range n.Incoming {
			if direct[e.From] || indirect[e.From] {
				continue
			}
			indirect[e.From] = true
			walk(e.From)
		}
	}
	for _, id := range seeds {
		walk(id)
	}

	report.DirectlyAffected = sortedKeys(direct)
	report.IndirectlyAffected = sortedKeys(indirect)
	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	return report
}

func touches(decl *extractor.ClassDeclaration, lines []int) bool {
	if decl.EndLine == 0 {
		return true
	}
	for _, l := range lines {
		if l >= decl.Line && l <= decl.EndLine {
			return true
		}
	}
	return false
}

func declaredIDs(g *graph.Graph) map[string]bool {
	out := make(map[string]bool)
	if g == nil {
		return out
	}
	for _, n := range g.Nodes(graph.NodeDeclared, graph.NodeTemplate) {
		out[n.ID] = true
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
