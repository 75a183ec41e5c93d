package generator

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
	"genealogic/internal/retrieval"
)

// MermaidGenerator renders hierarchies as Mermaid class diagrams.
type MermaidGenerator struct {
	// Fenced wraps the diagram in a ```mermaid block for Markdown.
	Fenced bool

	// Members lists each class's member functions.
	Members bool
}

// GenerateClassDiagram renders every class in the graph.
func (m *MermaidGenerator) GenerateClassDiagram(g *graph.Graph) string {
	return m.render(g.Nodes(), g.Edges(), "")
}

// GenerateTree renders the classes of a descendant tree with the root
// highlighted.
func (m *MermaidGenerator) GenerateTree(g *graph.Graph, t *retrieval.Tree) string {
	var nodes []*graph.Node
	t.Walk(func(tn *retrieval.TreeNode) {
		if n, ok := g.Node(tn.ID); ok {
			nodes = append(nodes, n)
		}
	})
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return m.render(nodes, t.Edges, t.Root.ID)
}

func (m *MermaidGenerator) render(nodes []*graph.Node, edges []*graph.Edge, root string) string {
	ids := mermaidIDs(nodes)

	var sb strings.Builder
	if m.Fenced {
		sb.WriteString("```mermaid\n")
	}
	sb.WriteString("classDiagram\n")

	for _, n := range nodes {
		sb.WriteString(fmt.Sprintf("    class %s[%q] {\n", ids[n.ID], mermaidText(n.ID)))
		if a := annotation(n); a != "" {
			sb.WriteString(fmt.Sprintf("        <<%s>>\n", a))
		}
		if m.Members {
			for _, method := range n.Methods {
				sb.WriteString("        " + mermaidMember(method) + "\n")
			}
		}
		sb.WriteString("    }\n")
	}

	for _, e := range edges {
		from, to := ids[e.From], ids[e.To]
		if from == "" || to == "" {
			continue
		}
		arrow := "<|--"
		if e.StaticSelfReference() {
			arrow = "<|.."
		}
		line := fmt.Sprintf("    %s %s %s", to, arrow, from)
		if label := edgeLabel(e); label != "" {
			line += " : " + label
		}
		sb.WriteString(line + "\n")
	}

	if id := ids[root]; id != "" {
		sb.WriteString(fmt.Sprintf("    style %s fill:%s,stroke:%s,color:%s\n", id, rootFill, rootStroke, rootFont))
	}

	if m.Fenced {
		sb.WriteString("```\n")
	}
	return sb.String()
}

func annotation(n *graph.Node) string {
	switch n.Kind {
	case graph.NodeExternal:
		return "external"
	case graph.NodeTemplate:
		return "template"
	}
	for _, method := range n.Methods {
		if method.Virtuality == extractor.PureVirtual {
			return "abstract"
		}
	}
	return ""
}

func mermaidMember(method extractor.MethodSignature) string {
	var sb strings.Builder
	switch method.Access {
	case extractor.AccessPublic:
		sb.WriteByte('+')
	case extractor.AccessProtected:
		sb.WriteByte('#')
	case extractor.AccessPrivate:
		sb.WriteByte('-')
	}
	sb.WriteString(mermaidText(method.Name))
	sb.WriteByte('(')
	sb.WriteString(mermaidText(strings.Join(method.Params, ", ")))
	sb.WriteByte(')')
	switch {
	case method.Virtuality == extractor.PureVirtual:
		sb.WriteByte('*')
	case method.Static:
		sb.WriteByte('$')
	}
	if method.ReturnType != "" {
		sb.WriteByte(' ')
		sb.WriteString(mermaidText(method.ReturnType))
	}
	return sb.String()
}

// edgeLabel is empty for plain public inheritance.
func edgeLabel(e *graph.Edge) string {
	var parts []string
	if e.StaticSelfReference() {
		parts = append(parts, "CRTP")
	}
	if e.Virtual {
		parts = append(parts, "virtual")
	}
	if e.Access != extractor.AccessPublic {
		parts = append(parts, e.Access.String())
	}
	return strings.Join(parts, " ")
}

// mermaidText swaps angle brackets for the tildes Mermaid uses for generics.
func mermaidText(v string) string {
	return strings.NewReplacer("<", "~", ">", "~", `"`, "'").Replace(v)
}

// mermaidIDs assigns every node a distinct identifier.
func mermaidIDs(nodes []*graph.Node) map[string]string {
	ids := make(map[string]string, len(nodes))
	taken := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		base := sanitizeMermaidID(n.ID)
		id := base
		for i := 2; taken[id]; i++ {
			id = fmt.Sprintf("%s_%d", base, i)
		}
		taken[id] = true
		ids[n.ID] = id
	}
	return ids
}

var invalidMermaidID = regexp.MustCompile(`[^A-Za-z0-9_]+`)

func sanitizeMermaidID(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimRight(invalidMermaidID.ReplaceAllString(v, "_"), "_")
	if v == "" {
		return "node"
	}
	if v[0] >= '0' && v[0] <= '9' {
		v = "n_" + v
	}
	return v
}
