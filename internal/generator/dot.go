package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"genealogic/internal/graph"
	"genealogic/internal/retrieval"
)

const (
	rootFill   = "#89b4fa"
	rootStroke = "#74c7ec"
	rootFont   = "#1e1e2e"
)

// ErrDotNotFound is returned by Render when Graphviz is not installed.
var ErrDotNotFound = errors.New("graphviz dot executable not found")

// RenderFormats are the image formats Render accepts.
var RenderFormats = []string{"svg", "png", "pdf"}

var graphAttrs = [][2]string{
	{"rankdir", "TB"},
	{"splines", "ortho"},
	{"nodesep", "0.6"},
	{"ranksep", "0.8"},
	{"bgcolor", "#1e1e2e"},
	{"pad", "0.5"},
}

var nodeAttrs = [][2]string{
	{"shape", "record"},
	{"style", "filled,rounded"},
	{"fillcolor", "#313244"},
	{"fontcolor", "#cdd6f4"},
	{"fontname", "Consolas"},
	{"fontsize", "11"},
	{"color", "#585b70"},
	{"penwidth", "1.5"},
}

var edgeAttrs = [][2]string{
	{"color", "#89b4fa"},
	{"arrowhead", "vee"},
	{"arrowsize", "0.8"},
	{"penwidth", "1.2"},
}

var rootAttrs = [][2]string{
	{"fillcolor", rootFill},
	{"fontcolor", rootFont},
	{"penwidth", "2.5"},
	{"color", rootStroke},
}

// DOTGenerator writes Graphviz sources. Edges point from base to derived.
type DOTGenerator struct{}

// GenerateTree renders the classes of a descendant tree with the root
// highlighted.
func (d *DOTGenerator) GenerateTree(t *retrieval.Tree) string {
	kinds := make(map[string]graph.NodeKind)
	t.Walk(func(n *retrieval.TreeNode) { kinds[n.ID] = n.Kind })
	return d.render(kinds, t.Edges, t.Root.ID)
}

// GenerateGraph renders every class in the graph.
func (d *DOTGenerator) GenerateGraph(g *graph.Graph) string {
	kinds := make(map[string]graph.NodeKind, g.Len())
	for _, n := range g.Nodes() {
		kinds[n.ID] = n.Kind
	}
	return d.render(kinds, g.Edges(), "")
}

func (d *DOTGenerator) render(kinds map[string]graph.NodeKind, edges []*graph.Edge, root string) string {
	var sb strings.Builder
	sb.WriteString("digraph InheritanceTree {\n")
	sb.WriteString("    graph " + dotAttrList(graphAttrs) + ";\n")
	sb.WriteString("    node " + dotAttrList(nodeAttrs) + ";\n")
	sb.WriteString("    edge " + dotAttrList(edgeAttrs) + ";\n")

	names := make([]string, 0, len(kinds))
	for id := range kinds {
		names = append(names, id)
	}
	sort.Strings(names)
	for _, id := range names {
		attrs := [][2]string{{"label", recordLabel(id)}}
		switch {
		case id == root:
			attrs = append(attrs, rootAttrs...)
		case kinds[id] == graph.NodeExternal:
			attrs = append(attrs, [2]string{"style", "filled,dashed,rounded"})
		}
		sb.WriteString(fmt.Sprintf("    %s %s;\n", dotQuote(id), dotAttrList(attrs)))
	}

	for _, e := range edges {
		line := fmt.Sprintf("    %s -> %s", dotQuote(e.To), dotQuote(e.From))
		var attrs [][2]string
		if e.StaticSelfReference() {
			attrs = append(attrs, [2]string{"style", "dashed"})
		}
		if label := edgeLabel(e); label != "" {
			attrs = append(attrs, [2]string{"label", label}, [2]string{"fontcolor", "#a6adc8"})
		}
		if len(attrs) > 0 {
			line += " " + dotAttrList(attrs)
		}
		sb.WriteString(line + ";\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func dotAttrList(attrs [][2]string) string {
	parts := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		parts = append(parts, kv[0]+"="+dotQuote(kv[1]))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func dotQuote(v string) string {
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

// recordLabel escapes the characters record shapes treat as field syntax.
func recordLabel(v string) string {
	return strings.NewReplacer("{", `\{`, "}", `\}`, "|", `\|`, "<", `\<`, ">", `\>`).Replace(v)
}

// OutputPath returns where Render writes the image for base.
func OutputPath(dir, base, format string) string {
	return filepath.Join(dir, sanitizeFileName(base)+"_inheritance."+format)
}

func sanitizeFileName(v string) string {
	return strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", `\`, "_", " ", "", ",", "_", "*", "_").Replace(v)
}

// HasDot reports whether the Graphviz dot executable is on PATH.
func HasDot() bool {
	_, err := exec.LookPath("dot")
	return err == nil
}

// Render runs dot over src and writes the image to path, creating its
// directory when missing.
func Render(ctx context.Context, src, path, format string) error {
	if !validRenderFormat(format) {
		return fmt.Errorf("unsupported render format %q", format)
	}
	bin, err := exec.LookPath("dot")
	if err != nil {
		return ErrDotNotFound
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	cmd := exec.CommandContext(ctx, bin, "-T"+format, "-o", path)
	cmd.Stdin = strings.NewReader(src)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("dot failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func validRenderFormat(format string) bool {
	for _, f := range RenderFormats {
		if f == format {
			return true
		}
	}
	return false
}
