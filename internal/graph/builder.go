package graph

import (
	"fmt"
	"regexp"
	"strings"

	"bitbucket.org/creachadair/stringset"

	"genealogic/internal/extractor"
)

const defaultMaxInstantiationDepth = 8

// Option configures Build.
type Option func(*builder)

// WithInteresting restricts the graph to the named classes and everything
// they inherit from. Names resolve like Graph.Lookup.
func WithInteresting(names ...string) Option {
	return func(b *builder) {
		b.interesting = append(b.interesting, names...)
	}
}

// WithMaxInstantiationDepth bounds how many template instantiations may be
// nested through base lists.
func WithMaxInstantiationDepth(n int) Option {
	return func(b *builder) {
		if n > 0 {
			b.maxDepth = n
		}
	}
}

type builder struct {
	g           *Graph
	interesting []string
	maxDepth    int
}

// Build turns a batch of declarations into a graph. It fails with a
// *CycleError when inheritance is cyclic.
func Build(decls []extractor.ClassDeclaration, opts ...Option) (*Graph, error) {
	b := &builder{g: newGraph(), maxDepth: defaultMaxInstantiationDepth}
	for _, opt := range opts {
		opt(b)
	}

	var declared []*Node
	for i := range decls {
		d := &decls[i]
		id := d.QualifiedName()
		if prev, ok := b.g.nodes[id]; ok {
			b.g.duplicates = append(b.g.duplicates, Duplicate{ID: id, Kept: location(prev.Decl), Ignored: location(d)})
			continue
		}
		kind := NodeDeclared
		if d.IsTemplate() {
			kind = NodeTemplate
		}
		n := &Node{ID: id, Name: d.Name, Namespace: d.Namespace, Kind: kind, Decl: d, Methods: d.Methods}
		b.g.add(n)
		declared = append(declared, n)
	}

	for _, n := range declared {
		if err := b.link(n, n.Decl.Bases, n.Namespace, 0); err != nil {
			return nil, err
		}
	}

	if cycle := b.g.findCycle(); cycle != nil {
		return nil, cycle
	}
	if len(b.interesting) > 0 {
		if err := b.prune(); err != nil {
			return nil, err
		}
	}
	b.g.sortTopologically()
	return b.g, nil
}

// link creates n's outgoing edges from its base list.
func (b *builder) link(n *Node, bases []extractor.BaseSpecifier, ns string, depth int) error {
	params := stringset.New()
	if n.Kind == NodeTemplate {
		params.Add(n.Decl.TemplateParams...)
	}
	for i, base := range bases {
		if mentionsAny(base.Type, params) {
			n.Dependent = append(n.Dependent, base)
			continue
		}
		target, err := b.resolve(base.Type, ns, depth)
		if err != nil {
			return fmt.Errorf("resolving base %s of %s: %w", base.Type, n.ID, err)
		}
		e := &Edge{
			From:     n.ID,
			To:       target.ID,
			Kind:     EdgeInherits,
			Access:   base.Access,
			Virtual:  base.Virtual,
			Index:    i,
			Base:     base.Type,
			Bindings: target.Bindings,
		}
		if base.SelfReference && b.refersTo(base.Type.Args, ns, n.ID) {
			e.Kind = EdgeStaticSelfReference
		}
		n.Outgoing = append(n.Outgoing, e)
		target.Incoming = append(target.Incoming, e)
	}
	return nil
}

func mentionsAny(ref extractor.TypeReference, names stringset.Set) bool {
	if names.Len() == 0 {
		return false
	}
	if names.Contains(ref.Name) {
		return true
	}
	for _, a := range ref.Args {
		if mentionsAny(a, names) {
			return true
		}
	}
	return false
}

// lookup resolves name from within namespace ns, innermost scope first.
func (b *builder) lookup(name, ns string) *Node {
	if strings.HasPrefix(name, "::") {
		name, ns = name[2:], ""
	}
	for scope := ns; ; {
		id := name
		if scope != "" {
			id = scope + "::" + name
		}
		if n, ok := b.g.nodes[id]; ok {
			return n
		}
		if scope == "" {
			break
		}
		if i := strings.LastIndex(scope, "::"); i >= 0 {
			scope = scope[:i]
		} else {
			scope = ""
		}
	}
	return b.g.uniqueByName(name)
}

// canonical rewrites a reference so every resolvable name is replaced by
// its node ID. The result's String is the ID of the class it denotes.
func (b *builder) canonical(ref extractor.TypeReference, ns string) extractor.TypeReference {
	out := ref
	if n := b.lookup(ref.Name, ns); n != nil {
		out.Name = n.ID
	} else {
		out.Name = strings.TrimPrefix(ref.Name, "::")
	}
	if ref.Args != nil {
		out.Args = make([]extractor.TypeReference, len(ref.Args))
		for i, a := range ref.Args {
			out.Args[i] = b.canonical(a, ns)
		}
	}
	return out
}

// refersTo reports whether any template argument, at any depth, resolves
// to the class with the given ID.
func (b *builder) refersTo(args []extractor.TypeReference, ns, id string) bool {
	for _, a := range args {
		c := b.canonical(a, ns)
		if c.Name == id || (extractor.TypeReference{Name: c.Name, Args: c.Args}).String() == id {
			return true
		}
		if b.refersTo(a.Args, ns, id) {
			return true
		}
	}
	return false
}

// resolve finds or creates the node a base reference denotes.
func (b *builder) resolve(ref extractor.TypeReference, ns string, depth int) (*Node, error) {
	ref.Prefix, ref.Suffix = "", strings.TrimSuffix(ref.Suffix, "...")
	if !ref.IsTemplate() {
		if n := b.lookup(ref.Name, ns); n != nil {
			return n, nil
		}
		return b.external(strings.TrimPrefix(ref.Name, "::"), ref.BaseName()), nil
	}

	c := b.canonical(ref, ns)
	tmpl := b.lookup(ref.Name, ns)
	if tmpl != nil && tmpl.Kind == NodeTemplate {
		c = b.withDefaults(c, tmpl)
	}
	id := c.String()
	if n, ok := b.g.nodes[id]; ok {
		return n, nil
	}

	if tmpl == nil || tmpl.Kind != NodeTemplate {
		return b.external(id, ref.BaseName()+c.String()[len(c.Name):]), nil
	}
	if depth >= b.maxDepth {
		return nil, fmt.Errorf("%w: %s", ErrInstantiationDepth, id)
	}

	bindings := make(map[string]extractor.TypeReference, len(tmpl.Decl.TemplateParams))
	for i, p := range tmpl.Decl.TemplateParams {
		if i < len(c.Args) {
			bindings[p] = c.Args[i]
		}
	}

	inst := &Node{
		ID:        id,
		Name:      tmpl.Name + c.String()[len(c.Name):],
		Namespace: tmpl.Namespace,
		Kind:      NodeInstantiation,
		Decl:      tmpl.Decl,
		Template:  tmpl.ID,
		Bindings:  bindings,
		Methods:   substituteMethods(tmpl.Decl.Methods, bindings),
	}
	b.g.add(inst)

	unbound := stringset.New()
	for _, p := range tmpl.Decl.TemplateParams {
		if _, ok := bindings[p]; !ok {
			unbound.Add(p)
		}
	}
	var bases []extractor.BaseSpecifier
	for _, base := range tmpl.Decl.Bases {
		if mentionsAny(base.Type, unbound) {
			inst.Dependent = append(inst.Dependent, base)
			continue
		}
		base.Type = base.Type.Substitute(bindings)
		bases = append(bases, base)
	}
	if err := b.linkInstance(inst, bases, tmpl.Namespace, depth+1); err != nil {
		return nil, err
	}
	return inst, nil
}

// withDefaults appends the default arguments a reference leaves out, so
// Box<int> and Box<int, Alloc> name the same instantiation. Defaults may
// refer to earlier parameters.
func (b *builder) withDefaults(c extractor.TypeReference, tmpl *Node) extractor.TypeReference {
	params := tmpl.Decl.TemplateParams
	defaults := tmpl.Decl.TemplateDefaults
	if len(defaults) == 0 || len(c.Args) >= len(params) {
		return c
	}
	bindings := make(map[string]extractor.TypeReference, len(params))
	for i, a := range c.Args {
		bindings[params[i]] = a
	}
	args := append([]extractor.TypeReference{}, c.Args...)
	for _, p := range params[len(c.Args):] {
		def, ok := defaults[p]
		if !ok {
			break
		}
		arg := b.canonical(def.Substitute(bindings), tmpl.Namespace)
		bindings[p] = arg
		args = append(args, arg)
	}
	c.Args = args
	return c
}

func (b *builder) linkInstance(inst *Node, bases []extractor.BaseSpecifier, ns string, depth int) error {
	for _, base := range bases {
		target, err := b.resolve(base.Type, ns, depth)
		if err != nil {
			return err
		}
		index := 0
		for i := range inst.Decl.Bases {
			if inst.Decl.Bases[i].Offset == base.Offset {
				index = i
			}
		}
		e := &Edge{
			From:     inst.ID,
			To:       target.ID,
			Kind:     EdgeInherits,
			Access:   base.Access,
			Virtual:  base.Virtual,
			Index:    index,
			Base:     base.Type,
			Bindings: target.Bindings,
		}
		if b.refersTo(base.Type.Args, ns, inst.ID) {
			e.Kind = EdgeStaticSelfReference
		}
		inst.Outgoing = append(inst.Outgoing, e)
		target.Incoming = append(target.Incoming, e)
	}
	return nil
}

func (b *builder) external(id, name string) *Node {
	if n, ok := b.g.nodes[id]; ok {
		return n
	}
	n := &Node{ID: id, Name: name, Kind: NodeExternal}
	if i := strings.LastIndex(id, "::"); i >= 0 && !strings.Contains(id, "<") {
		n.Namespace = id[:i]
	}
	b.g.add(n)
	return n
}

// substituteText replaces whole-word template parameter names in a type
// spelling, e.g. "const T&" with T bound to int gives "const int&".
func substituteText(s string, bindings map[string]extractor.TypeReference) string {
	for param, arg := range bindings {
		if strings.Contains(s, param) {
			re := regexp.MustCompile(`\b` + regexp.QuoteMeta(param) + `\b`)
			s = re.ReplaceAllLiteralString(s, arg.String())
		}
	}
	return s
}

func substituteMethods(methods []extractor.MethodSignature, bindings map[string]extractor.TypeReference) []extractor.MethodSignature {
	if len(methods) == 0 {
		return nil
	}
	out := make([]extractor.MethodSignature, len(methods))
	for i, m := range methods {
		m.ReturnType = substituteText(m.ReturnType, bindings)
		params := make([]string, len(m.Params))
		for j, p := range m.Params {
			params[j] = substituteText(p, bindings)
		}
		m.Params = params
		out[i] = m
	}
	return out
}

// prune keeps only the interesting classes and their ancestors.
func (b *builder) prune() error {
	keep := stringset.New()
	var walk func(n *Node)
	walk = func(n *Node) {
		if keep.Contains(n.ID) {
			return
		}
		keep.Add(n.ID)
		for _, e := range n.Outgoing {
			walk(b.g.nodes[e.To])
		}
	}
	for _, name := range b.interesting {
		n, err := b.g.Lookup(name)
		if err != nil {
			return err
		}
		walk(n)
	}

	order := b.g.order[:0]
	for _, id := range b.g.order {
		if keep.Contains(id) {
			order = append(order, id)
			continue
		}
		delete(b.g.nodes, id)
	}
	b.g.order = order

	for name, ids := range b.g.byName {
		kept := ids[:0]
		for _, id := range ids {
			if keep.Contains(id) {
				kept = append(kept, id)
			}
		}
		if len(kept) == 0 {
			delete(b.g.byName, name)
		} else {
			b.g.byName[name] = kept
		}
	}

	for _, id := range b.g.order {
		n := b.g.nodes[id]
		incoming := n.Incoming[:0]
		for _, e := range n.Incoming {
			if keep.Contains(e.From) {
				incoming = append(incoming, e)
			}
		}
		n.Incoming = incoming
	}
	return nil
}
