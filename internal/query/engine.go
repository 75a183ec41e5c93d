// Package query answers read-only questions about a built hierarchy and
// its resolved overrides. An Engine is safe for concurrent use.
package query

import (
	"bitbucket.org/creachadair/stringset"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
	"genealogic/internal/resolver"
)

// Ancestor is one class reachable through base lists.
type Ancestor struct {
	Node *graph.Node

	// Depth is the length of the shortest path; direct bases have depth 1.
	Depth int

	// Via is the edge that first reached the ancestor in breadth-first order.
	Via *graph.Edge

	// Virtual is set when some path reaches the ancestor through a virtual
	// base specifier.
	Virtual bool
}

type Engine struct {
	g   *graph.Graph
	res *resolver.Result

	byClass  map[string][]resolver.OverrideFact
	byTarget map[resolver.MethodRef][]resolver.OverrideFact
	byKey    map[string][]resolver.OverrideFact
}

// New indexes a graph and its resolver result. A nil result behaves like
// one with no facts.
func New(g *graph.Graph, res *resolver.Result) *Engine {
	if res == nil {
		res = &resolver.Result{}
	}
	e := &Engine{
		g:        g,
		res:      res,
		byClass:  make(map[string][]resolver.OverrideFact),
		byTarget: make(map[resolver.MethodRef][]resolver.OverrideFact),
		byKey:    make(map[string][]resolver.OverrideFact),
	}
	for _, f := range res.Facts {
		e.byClass[f.Class] = append(e.byClass[f.Class], f)
		e.byTarget[f.Target()] = append(e.byTarget[f.Target()], f)
		e.byKey[f.Method.Key()] = append(e.byKey[f.Method.Key()], f)
	}
	return e
}

// Graph returns the underlying graph.
func (e *Engine) Graph() *graph.Graph {
	return e.g
}

// Node fetches a class by ID or unambiguous unqualified name.
func (e *Engine) Node(name string) (*graph.Node, error) {
	return e.g.Lookup(name)
}

// Nodes lists the classes of the given kinds, or all of them.
func (e *Engine) Nodes(kinds ...graph.NodeKind) []*graph.Node {
	return e.g.Nodes(kinds...)
}

// Bases returns the direct base edges of name in declaration order.
func (e *Engine) Bases(name string) ([]*graph.Edge, error) {
	n, err := e.g.Lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]*graph.Edge(nil), n.Outgoing...), nil
}

// AllBases returns every ancestor of name once, breadth first.
func (e *Engine) AllBases(name string) ([]Ancestor, error) {
	n, err := e.g.Lookup(name)
	if err != nil {
		return nil, err
	}
	index := make(map[string]int)
	var out []Ancestor
	type item struct {
		node    *graph.Node
		depth   int
		virtual bool
	}
	queue := []item{{node: n}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range cur.node.Outgoing {
			base, ok := e.g.Node(edge.To)
			if !ok {
				continue
			}
			virtual := cur.virtual || edge.Virtual
			if i, seen := index[base.ID]; seen {
				if virtual && !out[i].Virtual {
					out[i].Virtual = true
					queue = append(queue, item{node: base, depth: out[i].Depth, virtual: true})
				}
				continue
			}
			index[base.ID] = len(out)
			out = append(out, Ancestor{Node: base, Depth: cur.depth + 1, Via: edge, Virtual: virtual})
			queue = append(queue, item{node: base, depth: cur.depth + 1, virtual: virtual})
		}
	}
	return out, nil
}

// Derived returns the edges of classes that name name as a direct base.
func (e *Engine) Derived(name string) ([]*graph.Edge, error) {
	n, err := e.g.Lookup(name)
	if err != nil {
		return nil, err
	}
	return append([]*graph.Edge(nil), n.Incoming...), nil
}

// AllDerived returns every class that inherits from name, breadth first.
func (e *Engine) AllDerived(name string) ([]*graph.Node, error) {
	n, err := e.g.Lookup(name)
	if err != nil {
		return nil, err
	}
	seen := stringset.New(n.ID)
	var out []*graph.Node
	queue := []*graph.Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, edge := range cur.Incoming {
			if seen.Contains(edge.From) {
				continue
			}
			seen.Add(edge.From)
			d, ok := e.g.Node(edge.From)
			if !ok {
				continue
			}
			out = append(out, d)
			queue = append(queue, d)
		}
	}
	return out, nil
}

// IsBaseOf reports whether base is a direct or transitive base of derived,
// at any access level. A class is not its own base.
func (e *Engine) IsBaseOf(base, derived string) (bool, error) {
	b, err := e.g.Lookup(base)
	if err != nil {
		return false, err
	}
	ancestors, err := e.AllBases(derived)
	if err != nil {
		return false, err
	}
	for _, a := range ancestors {
		if a.Node.ID == b.ID {
			return true, nil
		}
	}
	return false, nil
}

// Overrides lists the override facts of methods declared on class.
func (e *Engine) Overrides(class string) ([]resolver.OverrideFact, error) {
	n, err := e.g.Lookup(class)
	if err != nil {
		return nil, err
	}
	return append([]resolver.OverrideFact(nil), e.byClass[n.ID]...), nil
}

// OverridesOf lists the override facts, across all classes, whose
// overriding method has the given signature key, e.g. "speak() const".
func (e *Engine) OverridesOf(key string) []resolver.OverrideFact {
	return append([]resolver.OverrideFact(nil), e.byKey[key]...)
}

// Overriders lists the facts that directly override the given declaration.
func (e *Engine) Overriders(ref resolver.MethodRef) []resolver.OverrideFact {
	return append([]resolver.OverrideFact(nil), e.byTarget[ref]...)
}

// OverrideChain returns the ancestor declarations the method overrides,
// most specific first. Several bases at one level are listed in base order.
func (e *Engine) OverrideChain(class, key string) ([]resolver.MethodRef, error) {
	n, err := e.g.Lookup(class)
	if err != nil {
		return nil, err
	}
	start := resolver.MethodRef{Class: n.ID, Key: key}
	seen := map[resolver.MethodRef]bool{start: true}
	var chain []resolver.MethodRef
	queue := []resolver.MethodRef{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, f := range e.byClass[cur.Class] {
			if f.Method.Key() != cur.Key {
				continue
			}
			t := f.Target()
			if seen[t] {
				continue
			}
			seen[t] = true
			chain = append(chain, t)
			queue = append(queue, t)
		}
	}
	return chain, nil
}

// InheritedVirtuals lists the virtual functions class receives from its
// bases, before its own declarations apply.
func (e *Engine) InheritedVirtuals(class string) ([]resolver.VirtualEntry, error) {
	n, err := e.g.Lookup(class)
	if err != nil {
		return nil, err
	}
	return e.res.Inherited(n.ID), nil
}

// Virtuals lists the virtual functions class exposes, resolved to their
// final overriders within class.
func (e *Engine) Virtuals(class string) ([]resolver.VirtualEntry, error) {
	n, err := e.g.Lookup(class)
	if err != nil {
		return nil, err
	}
	return e.res.Virtuals(n.ID), nil
}

// StaticBindings lists the CRTP bindings of class, or of every class when
// class is empty.
func (e *Engine) StaticBindings(class string) ([]resolver.StaticBinding, error) {
	if class == "" {
		return append([]resolver.StaticBinding(nil), e.res.Bindings...), nil
	}
	n, err := e.g.Lookup(class)
	if err != nil {
		return nil, err
	}
	var out []resolver.StaticBinding
	for _, b := range e.res.Bindings {
		if b.Class == n.ID {
			out = append(out, b)
		}
	}
	return out, nil
}

// Diagnostics returns the batch diagnostics of the given kinds, or all of
// them when no kind is named.
func (e *Engine) Diagnostics(kinds ...resolver.DiagnosticKind) []resolver.Diagnostic {
	var out []resolver.Diagnostic
	for _, d := range e.res.Diagnostics {
		if len(kinds) == 0 || hasKind(kinds, d.Kind) {
			out = append(out, d)
		}
	}
	return out
}

func hasKind(kinds []resolver.DiagnosticKind, k resolver.DiagnosticKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// EffectiveAccess returns the access at which base's members are reachable
// through derived: along one path the most restrictive specifier applies,
// across paths the most permissive. The bool is false when base is not an
// ancestor of derived.
func (e *Engine) EffectiveAccess(derived, base string) (extractor.Access, bool, error) {
	d, err := e.g.Lookup(derived)
	if err != nil {
		return 0, false, err
	}
	b, err := e.g.Lookup(base)
	if err != nil {
		return 0, false, err
	}
	best := make(map[string]extractor.Access)
	var walk func(n *graph.Node, acc extractor.Access)
	walk = func(n *graph.Node, acc extractor.Access) {
		for _, edge := range n.Outgoing {
			next := acc
			if edge.Access > next {
				next = edge.Access
			}
			if prev, ok := best[edge.To]; ok && prev <= next {
				continue
			}
			best[edge.To] = next
			if to, ok := e.g.Node(edge.To); ok {
				walk(to, next)
			}
		}
	}
	walk(d, extractor.AccessPublic)
	acc, ok := best[b.ID]
	return acc, ok, nil
}

// SubobjectCount returns how many distinct base subobjects of base a
// derived object contains. Virtual bases are shared, so a virtual diamond
// gives 1 and a plain diamond gives 2.
func (e *Engine) SubobjectCount(derived, base string) (int, error) {
	d, err := e.g.Lookup(derived)
	if err != nil {
		return 0, err
	}
	b, err := e.g.Lookup(base)
	if err != nil {
		return 0, err
	}
	memo := make(map[string]*layout)
	top := e.layout(d, memo)
	count := top.direct[b.ID]
	for _, v := range top.virtual.Elements() {
		if v == b.ID {
			count++
		}
		if vn, ok := e.g.Node(v); ok {
			count += e.layout(vn, memo).direct[b.ID]
		}
	}
	return count, nil
}

// layout counts the non-virtual base subobjects of a class and collects its
// virtual bases at any depth.
type layout struct {
	direct  map[string]int
	virtual stringset.Set
}

func (e *Engine) layout(n *graph.Node, memo map[string]*layout) *layout {
	if l, ok := memo[n.ID]; ok {
		return l
	}
	l := &layout{direct: make(map[string]int), virtual: stringset.New()}
	for _, edge := range n.Outgoing {
		base, ok := e.g.Node(edge.To)
		if !ok {
			continue
		}
		sub := e.layout(base, memo)
		if edge.Virtual {
			l.virtual.Add(base.ID)
		} else {
			l.direct[base.ID]++
			for id, c := range sub.direct {
				l.direct[id] += c
			}
		}
		l.virtual.Add(sub.virtual.Elements()...)
	}
	memo[n.ID] = l
	return l
}
