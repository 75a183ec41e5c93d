package retrieval

import (
	"sort"

	"bitbucket.org/creachadair/stringset"

	"genealogic/internal/graph"
)

// Config controls how descendant trees are extracted.
type Config struct {
	// MaxDepth stops the walk below this depth; 0 means unlimited.
	MaxDepth int

	// AllowedKinds restricts which edges are followed; nil follows all.
	AllowedKinds map[graph.EdgeKind]bool
}

func DefaultConfig() Config {
	return Config{
		MaxDepth:     0,
		AllowedKinds: nil,
	}
}

// TreeNode is one class in a descendant tree. A class with several bases
// appears once, under the first of them the walk reached.
type TreeNode struct {
	ID    string
	Name  string
	Kind  graph.NodeKind
	Depth int

	// Via is the edge from this class to its tree parent; nil at the root.
	Via *graph.Edge

	// ExtraParents are the other direct bases of the class, sorted.
	ExtraParents []string

	Children []*TreeNode
}

// Tree is the retrieval result used by rendering.
type Tree struct {
	Root *TreeNode

	// Edges connect every pair of classes in the tree, including bases the
	// tree itself does not show as parents.
	Edges []*graph.Edge
}

// DescendantTree walks breadth first from root to every class that
// inherits from it. Children are sorted by ID and each class is visited
// once.
func DescendantTree(g *graph.Graph, root string, cfg Config) (*Tree, error) {
	start, err := g.Lookup(root)
	if err != nil {
		return nil, err
	}

	top := &TreeNode{ID: start.ID, Name: start.Name, Kind: start.Kind}
	visited := stringset.New(start.ID)
	queue := []*TreeNode{top}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cfg.MaxDepth > 0 && cur.Depth >= cfg.MaxDepth {
			continue
		}

		n, _ := g.Node(cur.ID)
		incoming := append([]*graph.Edge(nil), n.Incoming...)
		sort.SliceStable(incoming, func(i, j int) bool {
			return incoming[i].From < incoming[j].From
		})
		for _, e := range incoming {
			if !edgeAllowed(e, cfg) || visited.Contains(e.From) {
				continue
			}
			visited.Add(e.From)
			child, ok := g.Node(e.From)
			if !ok {
				continue
			}
			tn := &TreeNode{
				ID:           child.ID,
				Name:         child.Name,
				Kind:         child.Kind,
				Depth:        cur.Depth + 1,
				Via:          e,
				ExtraParents: extraParents(child, cur.ID),
			}
			cur.Children = append(cur.Children, tn)
			queue = append(queue, tn)
		}
	}

	var edges []*graph.Edge
	for _, id := range visited.Elements() {
		n, _ := g.Node(id)
		for _, e := range n.Outgoing {
			if visited.Contains(e.To) && edgeAllowed(e, cfg) {
				edges = append(edges, e)
			}
		}
	}
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].To == edges[j].To {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})

	return &Tree{Root: top, Edges: edges}, nil
}

func extraParents(n *graph.Node, parent string) []string {
	var out []string
	for _, e := range n.Outgoing {
		if e.To != parent {
			out = append(out, e.To)
		}
	}
	sort.Strings(out)
	return out
}

func edgeAllowed(e *graph.Edge, cfg Config) bool {
	if len(cfg.AllowedKinds) == 0 {
		return true
	}
	return cfg.AllowedKinds[e.Kind]
}

// Count returns the number of classes in the tree, root included.
func (t *Tree) Count() int {
	return countNodes(t.Root)
}

func countNodes(n *TreeNode) int {
	if n == nil {
		return 0
	}
	total := 1
	for _, c := range n.Children {
		total += countNodes(c)
	}
	return total
}

// Walk visits the tree depth first in child order.
func (t *Tree) Walk(fn func(n *TreeNode)) {
	var walk func(*TreeNode)
	walk = func(n *TreeNode) {
		fn(n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	if t.Root != nil {
		walk(t.Root)
	}
}

// IDs returns the classes in the tree, sorted.
func (t *Tree) IDs() []string {
	var out []string
	t.Walk(func(n *TreeNode) { out = append(out, n.ID) })
	sort.Strings(out)
	return out
}
