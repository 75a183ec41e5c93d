package resolver

import (
	"errors"
	"testing"

	"genealogic/internal/graph"
)

type fakeResolver struct {
	name string
	fn   func(g *graph.Graph, res *Result) (ResolveStats, error)
}

func (f fakeResolver) Name() string { return f.name }
func (f fakeResolver) Resolve(g *graph.Graph, res *Result) (ResolveStats, error) {
	return f.fn(g, res)
}

func TestResolverChain_Run(t *testing.T) {
	g := mustBuild(t, "class A { public: virtual void f(); };")

	r1 := fakeResolver{
		name: "r1",
		fn: func(g *graph.Graph, res *Result) (ResolveStats, error) {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{Kind: HiddenVirtual, Class: "A"}, Diagnostic{Kind: HiddenVirtual, Class: "A"})
			return ResolveStats{Attempted: 2, Resolved: 1, Skipped: 1}, nil
		},
	}
	r2 := fakeResolver{
		name: "r2",
		fn: func(g *graph.Graph, res *Result) (ResolveStats, error) {
			res.Facts = append(res.Facts, OverrideFact{Class: "A", Base: "B"})
			return ResolveStats{Attempted: 1, Resolved: 1, Skipped: 0}, nil
		},
	}

	chain := NewResolverChain(r1, r2)
	res, results := chain.Run(g)

	if len(results) != 2 {
		t.Fatalf("expected 2 stage results, got %d", len(results))
	}
	if results[0].Resolver != "r1" || results[1].Resolver != "r2" {
		t.Fatalf("unexpected resolver order: %+v", results)
	}
	if results[0].DiagnosticsBefore != 0 || results[0].DiagnosticsAfter != 2 {
		t.Fatalf("unexpected diagnostics transition for r1: %+v", results[0])
	}
	if results[1].DiagnosticsBefore != 2 || results[1].FactCount != 1 {
		t.Fatalf("unexpected transition for r2: %+v", results[1])
	}
	if len(res.Facts) != 1 || len(res.Diagnostics) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestResolverChain_StopsOnError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	failing := fakeResolver{
		name: "failing",
		fn: func(g *graph.Graph, res *Result) (ResolveStats, error) {
			calls++
			return ResolveStats{}, boom
		},
	}
	never := fakeResolver{
		name: "never",
		fn: func(g *graph.Graph, res *Result) (ResolveStats, error) {
			calls++
			return ResolveStats{}, nil
		},
	}

	_, results := NewResolverChain(failing, never).Run(mustBuild(t, "class A {};"))
	if len(results) != 1 || !errors.Is(results[0].Err, boom) {
		t.Fatalf("expected a single failed stage, got %+v", results)
	}
	if calls != 1 {
		t.Fatalf("expected later stages to be skipped, got %d calls", calls)
	}
}

func TestResolverChain_NilGraph(t *testing.T) {
	res, results := NewDefaultChain().Run(nil)
	if res == nil || results != nil {
		t.Fatalf("expected empty result for nil graph, got %+v %+v", res, results)
	}
}

func TestNewDefaultChain_Stages(t *testing.T) {
	_, results := NewDefaultChain().Run(mustBuild(t, "class A {};"))
	var names []string
	for _, r := range results {
		names = append(names, r.Resolver)
	}
	want := []string{"declarations", "virtual", "static"}
	if len(names) != len(want) {
		t.Fatalf("stages = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("stages = %v, want %v", names, want)
		}
	}
}
