// Package graph models a batch of class declarations as a directed acyclic
// graph of classes and inheritance edges.
//
// A Graph is built once by Build and never mutated afterwards, so it may be
// read from any number of goroutines without locking.
package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Graph holds the classes of one analysis batch.
type Graph struct {
	nodes      map[string]*Node
	order      []string
	topo       []*Node
	duplicates []Duplicate

	// byName indexes declared and template nodes by unqualified name.
	byName map[string][]string
}

func newGraph() *Graph {
	return &Graph{
		nodes:  make(map[string]*Node),
		byName: make(map[string][]string),
	}
}

func (g *Graph) add(n *Node) {
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
	if n.Kind == NodeDeclared || n.Kind == NodeTemplate {
		g.byName[n.Name] = append(g.byName[n.Name], n.ID)
	}
}

// Len returns the number of nodes of every kind.
func (g *Graph) Len() int {
	return len(g.order)
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Lookup resolves a class name to a node: exact ID first, then a unique
// declared class with that unqualified name or qualified suffix.
func (g *Graph) Lookup(name string) (*Node, error) {
	name = strings.TrimPrefix(strings.TrimSpace(name), "::")
	if n, ok := g.nodes[name]; ok {
		return n, nil
	}
	if n := g.uniqueByName(name); n != nil {
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, name)
}

// uniqueByName finds the single declared class whose qualified ID ends in
// name. Ambiguous names resolve to nothing.
func (g *Graph) uniqueByName(name string) *Node {
	short := name
	if i := strings.LastIndex(name, "::"); i >= 0 {
		short = name[i+2:]
	}
	var match *Node
	for _, id := range g.byName[short] {
		if id != name && !strings.HasSuffix(id, "::"+name) {
			continue
		}
		if match != nil {
			return nil
		}
		match = g.nodes[id]
	}
	return match
}

// Nodes returns nodes in creation order, optionally restricted to kinds.
func (g *Graph) Nodes(kinds ...NodeKind) []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		n := g.nodes[id]
		if len(kinds) == 0 || hasKind(kinds, n.Kind) {
			out = append(out, n)
		}
	}
	return out
}

func hasKind(kinds []NodeKind, k NodeKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Edges returns every edge, grouped by derived class in creation order and
// then by base-list position.
func (g *Graph) Edges() []*Edge {
	var out []*Edge
	for _, id := range g.order {
		out = append(out, g.nodes[id].Outgoing...)
	}
	return out
}

// TopologicalOrder returns all nodes with every base before its derived
// classes. The order is deterministic for a given input.
func (g *Graph) TopologicalOrder() []*Node {
	return append([]*Node(nil), g.topo...)
}

// Duplicates lists classes defined more than once. The first definition
// seen is the one in the graph.
func (g *Graph) Duplicates() []Duplicate {
	return append([]Duplicate(nil), g.duplicates...)
}

// IDs returns all node IDs sorted.
func (g *Graph) IDs() []string {
	ids := append([]string(nil), g.order...)
	sort.Strings(ids)
	return ids
}

// sortTopologically orders nodes bases-first with a depth-first post-order
// walk. It assumes the graph is acyclic.
func (g *Graph) sortTopologically() {
	visited := make(map[string]bool, len(g.order))
	g.topo = g.topo[:0]
	var visit func(n *Node)
	visit = func(n *Node) {
		if visited[n.ID] {
			return
		}
		visited[n.ID] = true
		for _, e := range n.Outgoing {
			visit(g.nodes[e.To])
		}
		g.topo = append(g.topo, n)
	}
	for _, id := range g.order {
		visit(g.nodes[id])
	}
}

// findCycle runs a depth-first search tracking the active path and returns
// the first cycle found.
func (g *Graph) findCycle() *CycleError {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(g.order))
	var path []string
	var found *CycleError

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = gray
		path = append(path, id)
		for _, e := range g.nodes[id].Outgoing {
			switch color[e.To] {
			case gray:
				start := 0
				for i, p := range path {
					if p == e.To {
						start = i
						break
					}
				}
				classes := append([]string(nil), path[start:]...)
				found = &CycleError{Classes: append(classes, e.To)}
				return true
			case white:
				if visit(e.To) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white && visit(id) {
			return found
		}
	}
	return nil
}
