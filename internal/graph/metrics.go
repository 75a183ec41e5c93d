package graph

import "sort"

// Metrics summarizes the shape of a hierarchy.
type Metrics struct {
	Nodes map[NodeKind]int `json:"nodes"`
	Edges map[EdgeKind]int `json:"edges"`

	// MaxDepth is the longest chain of bases above any class.
	MaxDepth int `json:"max_depth"`

	// MultipleBases lists classes with more than one direct base, sorted.
	MultipleBases []string `json:"multiple_bases,omitempty"`
}

func (g *Graph) Metrics() Metrics {
	m := Metrics{
		Nodes: make(map[NodeKind]int),
		Edges: make(map[EdgeKind]int),
	}
	if g == nil {
		return m
	}

	depth := make(map[string]int, len(g.topo))
	for _, n := range g.topo {
		m.Nodes[n.Kind]++
		d := 0
		for _, e := range n.Outgoing {
			m.Edges[e.Kind]++
			if depth[e.To]+1 > d {
				d = depth[e.To] + 1
			}
		}
		depth[n.ID] = d
		if d > m.MaxDepth {
			m.MaxDepth = d
		}
		if len(n.Outgoing) > 1 {
			m.MultipleBases = append(m.MultipleBases, n.ID)
		}
	}
	sort.Strings(m.MultipleBases)
	return m
}
