// Package ux renders genealogic's terminal output.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"

	"genealogic/internal/resolver"
	"genealogic/internal/retrieval"
)

// Palette shared with the rendered Graphviz output.
var (
	ColorAccent  = lipgloss.Color("#89b4fa")
	ColorSky     = lipgloss.Color("#74c7ec")
	ColorMauve   = lipgloss.Color("#cba6f7")
	ColorText    = lipgloss.Color("#cdd6f4")
	ColorMuted   = lipgloss.Color("#6c7086")
	ColorSuccess = lipgloss.Color("#a6e3a1")
	ColorWarning = lipgloss.Color("#f9e2af")
	ColorError   = lipgloss.Color("#f38ba8")
)

var Styles = struct {
	Title   lipgloss.Style
	Muted   lipgloss.Style
	Bold    lipgloss.Style
	Class   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Guide   lipgloss.Style
	Panel   lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorMauve),
	Muted:   lipgloss.NewStyle().Foreground(ColorMuted),
	Bold:    lipgloss.NewStyle().Bold(true),
	Class:   lipgloss.NewStyle().Bold(true).Foreground(ColorSky),
	Success: lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Bold(true).Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Bold(true).Foreground(ColorError),
	Guide:   lipgloss.NewStyle().Foreground(ColorAccent),
	Panel: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorAccent).
		Padding(1, 2),
}

type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "!"
	IconError   Icon = "✗"
)

func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled output. In plain mode it writes unstyled lines
// suitable for scripts.
type Printer struct {
	out   io.Writer
	err   io.Writer
	plain bool
}

func NewPrinter(out, errOut io.Writer, plain bool) *Printer {
	return &Printer{out: out, err: errOut, plain: plain}
}

// Header prints the banner with the run's parameters.
func (p *Printer) Header(base, dir, ext string) {
	if p.plain {
		fmt.Fprintf(p.out, "base=%s dir=%s ext=%s\n", base, dir, ext)
		return
	}
	var sb strings.Builder
	sb.WriteString(Styles.Title.Render("Genealogic"))
	sb.WriteString(Styles.Muted.Render(" - C++ Inheritance Tree Visualizer"))
	sb.WriteString("\n\n")
	if base != "" {
		sb.WriteString(Styles.Muted.Render("  Base class:  ") + Styles.Class.Render(base) + "\n")
	}
	sb.WriteString(Styles.Muted.Render("  Directory:   ") + Styles.Bold.Render(dir) + "\n")
	sb.WriteString(Styles.Muted.Render("  Extension:   ") + Styles.Bold.Render(ext))
	fmt.Fprintln(p.out, Styles.Panel.Render(sb.String()))
}

// ScanResult summarizes how many headers were read and how many
// inheritance edges they declared.
func (p *Printer) ScanResult(files, relationships int) {
	if p.plain {
		fmt.Fprintf(p.out, "scanned=%d relationships=%d\n", files, relationships)
		return
	}
	fmt.Fprintf(p.out, "  %s %s %s %s %s %s\n",
		Styles.Muted.Render("Scanned"), Styles.Bold.Render(fmt.Sprint(files)), Styles.Muted.Render("files,"),
		Styles.Muted.Render("found"), Styles.Bold.Render(fmt.Sprint(relationships)), Styles.Muted.Render("inheritance relationships"))
}

// TreePreview prints the descendant tree. Classes with more than one base
// carry a "(+ ...)" note naming the bases not shown as their parent.
func (p *Printer) TreePreview(t *retrieval.Tree) {
	if p.plain {
		fmt.Fprintf(p.out, "classes=%d\n", t.Count())
		t.Walk(func(n *retrieval.TreeNode) {
			fmt.Fprintf(p.out, "%s%s\n", strings.Repeat("  ", n.Depth), plainLabel(n))
		})
		return
	}
	fmt.Fprintln(p.out)
	fmt.Fprintf(p.out, "  %s %s %s\n\n",
		Styles.Muted.Render("Inheritance tree:"), Styles.Bold.Render(fmt.Sprint(t.Count())), Styles.Muted.Render("classes"))

	root := tree.Root(Styles.Class.Render(t.Root.ID)).
		EnumeratorStyle(Styles.Guide)
	addChildren(root, t.Root)
	fmt.Fprintln(p.out, root.String())
	fmt.Fprintln(p.out)
}

func addChildren(parent *tree.Tree, n *retrieval.TreeNode) {
	for _, c := range n.Children {
		label := c.ID
		if len(c.ExtraParents) > 0 {
			label += " " + Styles.Muted.Render("(+ "+strings.Join(c.ExtraParents, ", ")+")")
		}
		if len(c.Children) == 0 {
			parent.Child(label)
			continue
		}
		sub := tree.Root(label).EnumeratorStyle(Styles.Guide)
		addChildren(sub, c)
		parent.Child(sub)
	}
}

func plainLabel(n *retrieval.TreeNode) string {
	if len(n.ExtraParents) == 0 {
		return n.ID
	}
	return n.ID + " (+ " + strings.Join(n.ExtraParents, ", ") + ")"
}

// Rendered reports where an image was written.
func (p *Printer) Rendered(path string) {
	p.Success("Rendered to " + path)
}

func (p *Printer) Success(msg string) {
	if p.plain {
		fmt.Fprintf(p.out, "OK: %s\n", msg)
		return
	}
	fmt.Fprintf(p.out, "  %s %s\n", IconSuccess.Render(), msg)
}

func (p *Printer) Warning(msg string) {
	if p.plain {
		fmt.Fprintf(p.err, "WARN: %s\n", msg)
		return
	}
	fmt.Fprintf(p.err, "  %s %s\n", IconWarning.Render(), msg)
}

func (p *Printer) Error(msg string) {
	if p.plain {
		fmt.Fprintf(p.err, "ERROR: %s\n", msg)
		return
	}
	fmt.Fprintf(p.err, "  %s %s\n", IconError.Render(), msg)
}

// Info prints a secondary line.
func (p *Printer) Info(msg string) {
	if p.plain {
		fmt.Fprintln(p.out, msg)
		return
	}
	fmt.Fprintf(p.out, "  %s\n", Styles.Muted.Render(msg))
}

// Overrides lists override facts one per line.
func (p *Printer) Overrides(facts []resolver.OverrideFact) {
	for _, f := range facts {
		verb := "overrides"
		if f.Implements {
			verb = "implements"
		}
		if p.plain {
			fmt.Fprintf(p.out, "%s %s %s\n", f.Ref(), verb, f.Target())
			continue
		}
		fmt.Fprintf(p.out, "  %s %s %s\n",
			Styles.Class.Render(f.Ref().String()), Styles.Muted.Render(verb), Styles.Bold.Render(f.Target().String()))
	}
}

// StaticBindings lists the CRTP bases of each class.
func (p *Printer) StaticBindings(bindings []resolver.StaticBinding) {
	for _, b := range bindings {
		line := fmt.Sprintf("%s binds %s statically", b.Class, b.Base)
		if len(b.Redeclared) > 0 {
			line += " (redeclares " + strings.Join(b.Redeclared, ", ") + ")"
		}
		p.Info(line)
	}
}

// Diagnostics prints each diagnostic as a warning.
func (p *Printer) Diagnostics(diags []resolver.Diagnostic) {
	for _, d := range diags {
		p.Warning(fmt.Sprintf("[%s] %s", d.Kind, d.Message))
	}
}
