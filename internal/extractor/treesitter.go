package extractor

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"

	"genealogic/internal/lexer"
)

// TreeSitterFrontend extracts declarations from a tree-sitter C++ parse.
// Base types and member declarators are handed to the native parser so both
// frontends agree on type references and signature keys.
type TreeSitterFrontend struct{}

func (f *TreeSitterFrontend) Name() string {
	return FrontendTreeSitter
}

func (f *TreeSitterFrontend) Extract(ctx context.Context, file string, src []byte) ([]ClassDeclaration, error) {
	p := sitter.NewParser()
	p.SetLanguage(cpp.GetLanguage())
	tree, err := p.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", file, err)
	}

	root := tree.RootNode()
	if root.HasError() {
		return nil, syntaxError(file, root, src)
	}

	w := &sitterWalker{file: file, src: src}
	w.walkScope(root)
	return w.decls, nil
}

type sitterWalker struct {
	file  string
	src   []byte
	ns    []string
	decls []ClassDeclaration
}

func (w *sitterWalker) text(n *sitter.Node) string {
	return n.Content(w.src)
}

func (w *sitterWalker) walkScope(scope *sitter.Node) {
	for i := 0; i < int(scope.NamedChildCount()); i++ {
		child := scope.NamedChild(i)
		switch child.Type() {
		case "namespace_definition":
			name := ""
			if n := child.ChildByFieldName("name"); n != nil && !isInline(child) {
				name = w.text(n)
			}
			if body := child.ChildByFieldName("body"); body != nil {
				w.ns = append(w.ns, name)
				w.walkScope(body)
				w.ns = w.ns[:len(w.ns)-1]
			}
		case "linkage_specification":
			if body := child.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
				w.walkScope(body)
			}
		case "template_declaration":
			params := w.templateParams(child.ChildByFieldName("parameters"))
			for j := 0; j < int(child.NamedChildCount()); j++ {
				if inner := classNode(child.NamedChild(j)); inner != nil {
					w.addClass(inner, params)
				}
			}
		default:
			if n := classNode(child); n != nil {
				w.addClass(n, nil)
			}
		}
	}
}

func isInline(n *sitter.Node) bool {
	return n.ChildCount() > 0 && n.Child(0).Type() == "inline"
}

// classNode unwraps a class or struct specifier, including one used as the
// type of a declaration such as "struct S {...} s;".
func classNode(n *sitter.Node) *sitter.Node {
	switch n.Type() {
	case "class_specifier", "struct_specifier":
		return n
	case "declaration":
		if t := n.ChildByFieldName("type"); t != nil {
			return classNode(t)
		}
	}
	return nil
}

func (w *sitterWalker) templateParams(list *sitter.Node) *templateHead {
	if list == nil {
		return &templateHead{params: []string{}}
	}
	groups := make([][]lexer.Token, 0, list.NamedChildCount())
	for i := 0; i < int(list.NamedChildCount()); i++ {
		toks, err := lexer.Tokenize(w.text(list.NamedChild(i)))
		if err != nil {
			groups = append(groups, nil)
			continue
		}
		groups = append(groups, toks[:len(toks)-1])
	}
	return newTemplateHead(w.file, groups)
}

func (w *sitterWalker) addClass(n *sitter.Node, tmpl *templateHead) {
	nameNode := n.ChildByFieldName("name")
	body := n.ChildByFieldName("body")
	if nameNode == nil || body == nil || nameNode.Type() == "template_type" {
		// anonymous, forward declared or specialized
		return
	}

	decl := ClassDeclaration{
		Name:      w.text(nameNode),
		Namespace: strings.Join(nonEmpty(w.ns), "::"),
		Key:       "class",
		File:      w.file,
		Offset:    int(n.StartByte()),
		Line:      int(n.StartPoint().Row) + 1,
		EndLine:   int(n.EndPoint().Row) + 1,
	}
	if tmpl != nil {
		decl.TemplateParams, decl.TemplateDefaults = tmpl.params, tmpl.defaults
	}
	if n.Type() == "struct_specifier" {
		decl.Key = "struct"
	}
	if nameNode.Type() == "qualified_identifier" || strings.Contains(decl.Name, "::") {
		i := strings.LastIndex(decl.Name, "::")
		decl.Namespace = strings.Trim(decl.Namespace+"::"+decl.Name[:i], ":")
		decl.Name = decl.Name[i+2:]
	}

	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "virtual_specifier":
			decl.Final = decl.Final || w.text(child) == "final"
		case "base_class_clause":
			decl.Bases = w.bases(child, decl)
		}
	}

	w.members(body, &decl)
	w.decls = append(w.decls, decl)
}

func (w *sitterWalker) bases(clause *sitter.Node, decl ClassDeclaration) []BaseSpecifier {
	var out []BaseSpecifier
	current := BaseSpecifier{Access: decl.DefaultAccess(), Offset: -1}
	for i := 0; i < int(clause.ChildCount()); i++ {
		child := clause.Child(i)
		if current.Offset < 0 {
			current.Offset = int(child.StartByte())
		}
		switch child.Type() {
		case ":", "attribute_declaration":
			current.Offset = -1
		case ",":
			current = BaseSpecifier{Access: decl.DefaultAccess(), Offset: -1}
		case "access_specifier":
			if a, ok := ParseAccess(w.text(child)); ok {
				current.Access = a
			}
		case "virtual":
			current.Virtual = true
		case "...":
			if len(out) > 0 {
				out[len(out)-1].Type.Suffix += "..."
			}
		default:
			if !child.IsNamed() {
				continue
			}
			ref, err := ParseTypeReference(w.file, w.text(child))
			if err != nil {
				ref = TypeReference{Name: w.text(child)}
			}
			current.Type = ref
			current.SelfReference = ref.Mentions(decl.Name)
			out = append(out, current)
		}
	}
	return out
}

func (w *sitterWalker) members(body *sitter.Node, decl *ClassDeclaration) {
	access := decl.DefaultAccess()
	for i := 0; i < int(body.NamedChildCount()); i++ {
		child := body.NamedChild(i)
		if child.Type() == "template_declaration" && child.NamedChildCount() > 0 {
			child = child.NamedChild(int(child.NamedChildCount()) - 1)
		}
		switch child.Type() {
		case "access_specifier":
			if a, ok := ParseAccess(strings.TrimSuffix(strings.TrimSpace(w.text(child)), ":")); ok {
				access = a
			}
			continue
		case "field_declaration", "declaration":
			if t := child.ChildByFieldName("type"); t != nil && strings.HasSuffix(t.Type(), "_specifier") && t.ChildByFieldName("body") != nil {
				// nested type definition
				continue
			}
		case "function_definition":
		default:
			continue
		}

		if m, ok := w.method(child, decl.Name); ok {
			m.Access = access
			decl.Methods = append(decl.Methods, m)
		}
	}
}

func (w *sitterWalker) method(n *sitter.Node, className string) (MethodSignature, bool) {
	end := n.EndByte()
	if b := n.ChildByFieldName("body"); b != nil {
		end = b.StartByte()
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "field_initializer_list" && c.StartByte() < end {
			end = c.StartByte()
		}
	}
	toks, err := lexer.Tokenize(string(w.src[n.StartByte():end]))
	if err != nil {
		return MethodSignature{}, false
	}
	toks = toks[:len(toks)-1]
	if k := len(toks); k > 0 && toks[k-1].Is(";") {
		toks = toks[:k-1]
	}
	m, ok := parseMethod(toks, className)
	if !ok {
		return m, false
	}
	m.Offset = int(n.StartByte())
	m.Line = int(n.StartPoint().Row) + 1
	return m, true
}

func nonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// syntaxError locates the first ERROR or missing node in the tree.
func syntaxError(file string, root *sitter.Node, src []byte) error {
	var bad *sitter.Node
	var visit func(n *sitter.Node) bool
	visit = func(n *sitter.Node) bool {
		if n.Type() == "ERROR" || n.IsMissing() {
			bad = n
			return true
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c.HasError() || c.IsMissing() {
				if visit(c) {
					return true
				}
			}
		}
		return false
	}
	if !visit(root) {
		bad = root
	}

	found := "end of input"
	if bad.IsMissing() {
		found = "missing " + bad.Type()
	} else if text := strings.TrimSpace(bad.Content(src)); text != "" {
		if len(text) > 40 {
			text = text[:40]
		}
		found = fmt.Sprintf("%q", text)
	}
	return &ParseError{
		File:     file,
		Offset:   int(bad.StartByte()),
		Line:     int(bad.StartPoint().Row) + 1,
		Column:   int(bad.StartPoint().Column) + 1,
		Expected: "valid declaration",
		Found:    found,
	}
}
