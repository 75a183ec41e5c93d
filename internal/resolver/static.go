package resolver

import (
	"bitbucket.org/creachadair/stringset"

	"genealogic/internal/graph"
)

// StaticResolver records a StaticBinding for every static self-reference
// edge. Those bases dispatch at compile time, so they never produce
// override facts.
type StaticResolver struct{}

func NewStaticResolver() *StaticResolver {
	return &StaticResolver{}
}

func (r *StaticResolver) Name() string {
	return "static"
}

func (r *StaticResolver) Resolve(g *graph.Graph, res *Result) (ResolveStats, error) {
	var stats ResolveStats
	for _, n := range g.TopologicalOrder() {
		for _, e := range n.Outgoing {
			if !e.StaticSelfReference() {
				continue
			}
			stats.Attempted++
			b := StaticBinding{Class: n.ID, Base: e.To}
			base, ok := g.Node(e.To)
			if !ok || base.External() {
				stats.Skipped++
				res.Bindings = append(res.Bindings, b)
				continue
			}
			stats.Resolved++
			b.Template = base.Template

			own := stringset.New()
			for _, m := range n.Methods {
				own.Add(m.Name)
			}
			seen := stringset.New()
			for _, m := range base.Methods {
				if m.Destructor || seen.Contains(m.Name) {
					continue
				}
				seen.Add(m.Name)
				b.Methods = append(b.Methods, m.Name)
				if own.Contains(m.Name) {
					b.Redeclared = append(b.Redeclared, m.Name)
				}
			}
			res.Bindings = append(res.Bindings, b)
		}
	}
	return stats, nil
}
