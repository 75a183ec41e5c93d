package resolver

import (
	"fmt"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"genealogic/internal/extractor"
	"genealogic/internal/graph"
)

// VirtualResolver computes, bases first, the virtual functions every class
// inherits and the override facts its own declarations produce.
type VirtualResolver struct{}

func NewVirtualResolver() *VirtualResolver {
	return &VirtualResolver{}
}

func (r *VirtualResolver) Name() string {
	return "virtual"
}

func (r *VirtualResolver) Resolve(g *graph.Graph, res *Result) (ResolveStats, error) {
	var stats ResolveStats
	for _, n := range g.TopologicalOrder() {
		inherited := inherit(res, n)
		res.inherited[n.ID] = inherited
		res.effective[n.ID] = resolveNode(g, res, n, inherited, &stats)
	}
	return stats, nil
}

// inherit merges the exposed virtuals of n's direct bases. Entries reached
// along several paths are kept once. A static self-reference base passes on
// only what it inherited itself: functions it introduces bind at compile
// time, while its overrides of inherited virtuals stay visible.
func inherit(res *Result, n *graph.Node) []VirtualEntry {
	var out []VirtualEntry
	seen := make(map[MethodRef]bool)
	for _, e := range n.Outgoing {
		for _, v := range res.effective[e.To] {
			if e.StaticSelfReference() && introducedOn(v, e.To) {
				continue
			}
			if seen[v.Ref] {
				continue
			}
			seen[v.Ref] = true
			v.Shared = v.Shared || e.Virtual
			out = append(out, v)
		}
	}
	return dominant(out)
}

func introducedOn(v VirtualEntry, class string) bool {
	for _, r := range v.Roots {
		if r.Class != class {
			return false
		}
	}
	return true
}

// dominant drops shared declarations that another inherited entry already
// overrides. A virtual base subobject exists once, so only its most derived
// overrider stays visible.
func dominant(entries []VirtualEntry) []VirtualEntry {
	hidden := make(map[MethodRef]bool)
	for _, v := range entries {
		for _, r := range v.dominates {
			hidden[r] = true
		}
	}
	if len(hidden) == 0 {
		return entries
	}
	out := make([]VirtualEntry, 0, len(entries))
	for _, v := range entries {
		if v.Shared && hidden[v.Ref] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func resolveNode(g *graph.Graph, res *Result, n *graph.Node, inherited []VirtualEntry, stats *ResolveStats) []VirtualEntry {
	byKey := make(map[string][]VirtualEntry)
	for _, v := range inherited {
		byKey[v.Ref.Key] = append(byKey[v.Ref.Key], v)
	}
	// A generic template with dependent bases cannot know what it overrides.
	generic := n.Kind == graph.NodeTemplate && len(n.Dependent) > 0

	replaced := make(map[string]VirtualEntry)
	var introduced []VirtualEntry
	for _, m := range n.Methods {
		if m.Static {
			continue
		}
		key := m.Key()
		if _, done := replaced[key]; done {
			continue
		}
		stats.Attempted++
		ref := MethodRef{Class: n.ID, Key: key}

		matches := byKey[key]
		if len(matches) == 0 {
			if m.Virtuality == extractor.VirtualOverride && !generic {
				stats.Skipped++
				res.Diagnostics = append(res.Diagnostics, danglingOverride(g, n, key))
			}
			if m.Virtuality.IsVirtual() {
				replaced[key] = VirtualEntry{}
				introduced = append(introduced, VirtualEntry{
					Ref:    ref,
					Method: m,
					Roots:  []MethodRef{ref},
					Pure:   m.Virtuality == extractor.PureVirtual,
					Final:  m.Final,
				})
			}
			continue
		}

		stats.Resolved++
		roots := make([][]MethodRef, 0, len(matches))
		var dominates [][]MethodRef
		for _, v := range matches {
			dominates = append(dominates, v.dominates)
			if v.Shared {
				dominates = append(dominates, []MethodRef{v.Ref})
			}
			res.Facts = append(res.Facts, OverrideFact{
				Class:      n.ID,
				Method:     m,
				Base:       v.Ref.Class,
				BaseMethod: v.Method,
				Implements: v.Pure,
			})
			roots = append(roots, v.Roots)
			if v.Final {
				res.Diagnostics = append(res.Diagnostics, Diagnostic{
					Kind:       OverridesFinal,
					Class:      n.ID,
					Method:     key,
					Candidates: []MethodRef{v.Ref},
					Message:    fmt.Sprintf("%s overrides final function %s", ref, v.Ref),
				})
			}
		}
		if !m.Destructor && unrelated(matches) {
			cands := make([]MethodRef, len(matches))
			for i, v := range matches {
				cands[i] = v.Ref
			}
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Kind:       AmbiguousOverride,
				Class:      n.ID,
				Method:     key,
				Candidates: cands,
				Message:    fmt.Sprintf("%s overrides %s from unrelated bases", ref, joinRefs(cands)),
			})
		}
		replaced[key] = VirtualEntry{
			Ref:    ref,
			Method: m,
			Roots:  unionRefs(roots...),
			Pure:   m.Virtuality == extractor.PureVirtual,
			Final:  m.Final,

			dominates: unionRefs(dominates...),
		}
	}

	if !generic {
		res.Diagnostics = append(res.Diagnostics, hiddenVirtuals(n, inherited)...)
	}

	var effective []VirtualEntry
	emitted := stringset.New()
	for _, v := range inherited {
		over, ok := replaced[v.Ref.Key]
		if !ok {
			effective = append(effective, v)
			continue
		}
		if !emitted.Contains(v.Ref.Key) {
			emitted.Add(v.Ref.Key)
			effective = append(effective, over)
		}
	}
	return append(effective, introduced...)
}

// unrelated reports whether two of the inherited declarations share no
// root, i.e. they come from independent hierarchies.
func unrelated(matches []VirtualEntry) bool {
	for i := range matches {
		for j := i + 1; j < len(matches); j++ {
			if !intersects(matches[i].Roots, matches[j].Roots) {
				return true
			}
		}
	}
	return false
}

func danglingOverride(g *graph.Graph, n *graph.Node, key string) Diagnostic {
	d := Diagnostic{
		Kind:       DanglingOverride,
		Class:      n.ID,
		Method:     key,
		Unresolved: externalAncestors(g, n),
	}
	d.Message = fmt.Sprintf("%s::%s is marked override but no base class declares it virtual", n.ID, key)
	if len(d.Unresolved) > 0 {
		d.Message += fmt.Sprintf(" (unresolved bases: %s)", strings.Join(d.Unresolved, ", "))
	}
	return d
}

// hiddenVirtuals reports inherited virtuals that share a name with one of
// n's methods but are not overridden by any of them.
func hiddenVirtuals(n *graph.Node, inherited []VirtualEntry) []Diagnostic {
	keys := stringset.New()
	for _, m := range n.Methods {
		keys.Add(m.Key())
	}
	var out []Diagnostic
	reported := stringset.New()
	for _, m := range n.Methods {
		if m.Destructor || reported.Contains(m.Name) {
			continue
		}
		var hidden []MethodRef
		for _, v := range inherited {
			if v.Method.Name == m.Name && !keys.Contains(v.Ref.Key) {
				hidden = append(hidden, v.Ref)
			}
		}
		if len(hidden) == 0 {
			continue
		}
		reported.Add(m.Name)
		out = append(out, Diagnostic{
			Kind:       HiddenVirtual,
			Class:      n.ID,
			Method:     m.Key(),
			Candidates: hidden,
			Message:    fmt.Sprintf("%s::%s hides inherited virtual %s", n.ID, m.Key(), joinRefs(hidden)),
		})
	}
	return out
}

func externalAncestors(g *graph.Graph, n *graph.Node) []string {
	found := stringset.New()
	seen := stringset.New()
	var walk func(*graph.Node)
	walk = func(n *graph.Node) {
		for _, e := range n.Outgoing {
			if seen.Contains(e.To) {
				continue
			}
			seen.Add(e.To)
			base, ok := g.Node(e.To)
			if !ok {
				continue
			}
			if base.External() {
				found.Add(base.ID)
			}
			walk(base)
		}
	}
	walk(n)
	return found.Elements()
}

func joinRefs(refs []MethodRef) string {
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = r.String()
	}
	return strings.Join(parts, ", ")
}
