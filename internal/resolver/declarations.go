package resolver

import (
	"fmt"

	"genealogic/internal/graph"
)

// DeclarationResolver reports classes defined more than once in a batch.
type DeclarationResolver struct{}

func NewDeclarationResolver() *DeclarationResolver {
	return &DeclarationResolver{}
}

func (r *DeclarationResolver) Name() string {
	return "declarations"
}

func (r *DeclarationResolver) Resolve(g *graph.Graph, res *Result) (ResolveStats, error) {
	dups := g.Duplicates()
	for _, d := range dups {
		res.Diagnostics = append(res.Diagnostics, Diagnostic{
			Kind:    DuplicateDeclaration,
			Class:   d.ID,
			Message: fmt.Sprintf("%s is defined more than once (kept %s, ignored %s)", d.ID, d.Kept, d.Ignored),
		})
	}
	return ResolveStats{
		Attempted: g.Len() + len(dups),
		Resolved:  g.Len(),
		Skipped:   len(dups),
	}, nil
}
