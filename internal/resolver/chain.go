package resolver

import "genealogic/internal/graph"

type ResolveStats struct {
	Attempted int
	Resolved  int
	Skipped   int
}

// GraphResolver is one stage of override resolution. Stages read the graph
// and add to the shared result; later stages may rely on earlier ones.
type GraphResolver interface {
	Name() string
	Resolve(g *graph.Graph, res *Result) (ResolveStats, error)
}

type StageResult struct {
	Resolver          string
	Stats             ResolveStats
	DiagnosticsBefore int
	DiagnosticsAfter  int
	FactCount         int
	Err               error
}

type ResolverChain struct {
	resolvers []GraphResolver
}

func NewResolverChain(resolvers ...GraphResolver) *ResolverChain {
	return &ResolverChain{resolvers: resolvers}
}

// NewDefaultChain runs duplicate reporting, dynamic override resolution and
// CRTP binding, in that order.
func NewDefaultChain() *ResolverChain {
	return NewResolverChain(NewDeclarationResolver(), NewVirtualResolver(), NewStaticResolver())
}

// Run executes every stage against g. It stops at the first stage that
// fails; the returned result holds whatever the completed stages produced.
func (c *ResolverChain) Run(g *graph.Graph) (*Result, []StageResult) {
	res := newResult()
	if g == nil {
		return res, nil
	}

	var out []StageResult
	for _, r := range c.resolvers {
		before := len(res.Diagnostics)
		stats, err := r.Resolve(g, res)
		out = append(out, StageResult{
			Resolver:          r.Name(),
			Stats:             stats,
			DiagnosticsBefore: before,
			DiagnosticsAfter:  len(res.Diagnostics),
			FactCount:         len(res.Facts),
			Err:               err,
		})
		if err != nil {
			break
		}
	}
	return res, out
}

// Resolve runs the default chain and returns its result, or the error of
// the first failing stage.
func Resolve(g *graph.Graph) (*Result, error) {
	res, stages := NewDefaultChain().Run(g)
	for _, s := range stages {
		if s.Err != nil {
			return res, s.Err
		}
	}
	return res, nil
}
