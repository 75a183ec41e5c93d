package extractor

import (
	"fmt"
	"strings"

	"genealogic/internal/lexer"
)

// ParseError reports malformed declaration syntax.
type ParseError struct {
	File     string
	Offset   int
	Line     int
	Column   int
	Expected string
	Found    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error in %s at %d:%d (offset %d): expected %s, found %s",
		e.File, e.Line, e.Column, e.Offset, e.Expected, e.Found)
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

type parser struct {
	file   string
	tokens []lexer.Token
	pos    int
	ns     []string
	decls  []ClassDeclaration
}

// Parse extracts every top-level class and struct definition from src.
// Classes inside namespace and extern "C" blocks count as top-level;
// nested classes do not. The first syntax error aborts the whole file.
func Parse(file, src string) ([]ClassDeclaration, error) {
	tokens, err := lexer.Tokenize(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	p := &parser{file: file, tokens: tokens}
	if err := p.parseScope(false); err != nil {
		return nil, err
	}
	return p.decls, nil
}

func newSubParser(file string, toks []lexer.Token) *parser {
	end := lexer.Token{Kind: lexer.EOF}
	if n := len(toks); n > 0 {
		last := toks[n-1]
		end.Offset, end.Line, end.Column = last.Offset+len(last.Text), last.Line, last.Column+len(last.Text)
	}
	buf := make([]lexer.Token, 0, len(toks)+1)
	buf = append(buf, toks...)
	return &parser{file: file, tokens: append(buf, end)}
}

// --- cursor helpers ---

func (p *parser) cur() lexer.Token {
	return p.peek(0)
}

func (p *parser) peek(n int) lexer.Token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *parser) advance() lexer.Token {
	t := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atEOF() bool {
	return p.cur().Kind == lexer.EOF
}

// check matches punctuators, keywords and contextual identifiers by spelling.
func (p *parser) check(text string) bool {
	t := p.cur()
	return t.Is(text) || t.IsWord(text)
}

func (p *parser) accept(text string) bool {
	if p.check(text) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) expect(text string) error {
	if !p.accept(text) {
		return p.errorf("'" + text + "'")
	}
	return nil
}

func (p *parser) errorf(expected string) *ParseError {
	t := p.cur()
	return &ParseError{
		File:     p.file,
		Offset:   t.Offset,
		Line:     t.Line,
		Column:   t.Column,
		Expected: expected,
		Found:    t.String(),
	}
}

func (p *parser) namespace() string {
	var parts []string
	for _, n := range p.ns {
		if n != "" {
			parts = append(parts, n)
		}
	}
	return strings.Join(parts, "::")
}

// --- scopes ---

func (p *parser) parseScope(nested bool) error {
	for {
		switch {
		case p.atEOF():
			if nested {
				return p.errorf("'}'")
			}
			return nil
		case p.check("}"):
			if !nested {
				return p.errorf("declaration")
			}
			p.advance()
			return nil
		case p.check(";"):
			p.advance()
		case p.check("namespace") || (p.check("inline") && p.peek(1).IsWord("namespace")):
			if err := p.parseNamespace(); err != nil {
				return err
			}
		case p.check("extern") && p.peek(1).Kind == lexer.Literal && p.peek(2).Is("{"):
			p.advance()
			p.advance()
			p.advance()
			p.ns = append(p.ns, "")
			if err := p.parseScope(true); err != nil {
				return err
			}
			p.ns = p.ns[:len(p.ns)-1]
		case p.check("template"):
			head, err := p.parseTemplateHeader()
			if err != nil {
				return err
			}
			if p.check("class") || p.check("struct") {
				if err := p.parseClass(head); err != nil {
					return err
				}
				continue
			}
			if err := p.skipStatement(); err != nil {
				return err
			}
		case p.check("class") || p.check("struct"):
			if err := p.parseClass(nil); err != nil {
				return err
			}
		default:
			if err := p.skipStatement(); err != nil {
				return err
			}
		}
	}
}

func (p *parser) parseNamespace() error {
	inline := p.accept("inline")
	p.advance() // namespace
	var name []string
	for p.cur().Kind == lexer.Identifier || p.check("::") || p.check("inline") {
		t := p.advance()
		if t.Kind == lexer.Identifier {
			name = append(name, t.Text)
		}
	}
	if p.check("=") {
		return p.skipStatement()
	}
	if err := p.expect("{"); err != nil {
		return err
	}
	scope := strings.Join(name, "::")
	if inline {
		scope = ""
	}
	p.ns = append(p.ns, scope)
	if err := p.parseScope(true); err != nil {
		return err
	}
	p.ns = p.ns[:len(p.ns)-1]
	return nil
}

// skipStatement consumes one declaration or statement the parser does not
// model: up to a top-level ';', or through a top-level braced block.
func (p *parser) skipStatement() error {
	var stack []string
	var prev lexer.Token
	for !p.atEOF() {
		t := p.cur()
		if len(stack) == 0 {
			switch {
			case t.Is(";"):
				p.advance()
				return nil
			case t.Is("}"):
				return nil
			case prev.Is(")") && (t.Is("class") || t.Is("struct") || t.Is("namespace") || t.Is("template")):
				// a macro invocation without a trailing semicolon
				return nil
			}
		}
		if want, ok := closers[t.Text]; ok && t.Kind == lexer.Punct {
			stack = append(stack, want)
		} else if t.Kind == lexer.Punct && (t.Text == ")" || t.Text == "]" || t.Text == "}") {
			if len(stack) == 0 || stack[len(stack)-1] != t.Text {
				return p.errorf(describeClose(stack))
			}
			stack = stack[:len(stack)-1]
			if len(stack) == 0 && t.Text == "}" {
				p.advance()
				p.accept(";")
				return nil
			}
		}
		prev = p.advance()
	}
	if len(stack) > 0 {
		return p.errorf(describeClose(stack))
	}
	return nil
}

func describeClose(stack []string) string {
	if len(stack) == 0 {
		return "declaration"
	}
	return "'" + stack[len(stack)-1] + "'"
}

// skipGroup consumes a balanced group starting at an opener.
func (p *parser) skipGroup() ([]lexer.Token, error) {
	open := p.cur()
	want, ok := closers[open.Text]
	if !ok {
		return nil, p.errorf("'(', '[' or '{'")
	}
	stack := []string{want}
	toks := []lexer.Token{p.advance()}
	for len(stack) > 0 {
		t := p.cur()
		if t.Kind == lexer.EOF {
			return nil, p.errorf(describeClose(stack))
		}
		if w, ok := closers[t.Text]; ok && t.Kind == lexer.Punct {
			stack = append(stack, w)
		} else if t.Kind == lexer.Punct && (t.Text == ")" || t.Text == "]" || t.Text == "}") {
			if stack[len(stack)-1] != t.Text {
				return nil, p.errorf(describeClose(stack))
			}
			stack = stack[:len(stack)-1]
		}
		toks = append(toks, p.advance())
	}
	return toks, nil
}

// skipAngles consumes a balanced template argument list starting at '<'.
func (p *parser) skipAngles() ([]lexer.Token, error) {
	if !p.check("<") {
		return nil, p.errorf("'<'")
	}
	toks := []lexer.Token{p.advance()}
	depth := 1
	for depth > 0 {
		t := p.cur()
		switch {
		case t.Kind == lexer.EOF:
			return nil, p.errorf("'>'")
		case t.Is("(") || t.Is("[") || t.Is("{"):
			group, err := p.skipGroup()
			if err != nil {
				return nil, err
			}
			toks = append(toks, group...)
			continue
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
		case t.Is(";") || t.Is("}"):
			return nil, p.errorf("'>'")
		}
		toks = append(toks, p.advance())
	}
	return toks, nil
}

// --- templates ---

// templateHead is what a "template <...>" header declares.
type templateHead struct {
	params   []string
	defaults map[string]TypeReference
}

// parseTemplateHeader consumes "template <...>". An explicit specialization
// header yields no parameters.
func (p *parser) parseTemplateHeader() (*templateHead, error) {
	if err := p.expect("template"); err != nil {
		return nil, err
	}
	if !p.check("<") {
		// explicit instantiation: template class Foo<int>;
		return &templateHead{params: []string{}}, nil
	}
	toks, err := p.skipAngles()
	if err != nil {
		return nil, err
	}
	return newTemplateHead(p.file, splitTopLevel(toks[1:len(toks)-1])), nil
}

func newTemplateHead(file string, groups [][]lexer.Token) *templateHead {
	h := &templateHead{params: []string{}}
	for i, group := range groups {
		name := templateParamName(group, i)
		h.params = append(h.params, name)
		if eq := indexTopLevel(group, "="); eq >= 0 && eq+1 < len(group) {
			if h.defaults == nil {
				h.defaults = make(map[string]TypeReference)
			}
			h.defaults[name] = typeRefFromTokens(file, group[eq+1:])
		}
	}
	return h
}

func templateParamName(group []lexer.Token, index int) string {
	if eq := indexTopLevel(group, "="); eq >= 0 {
		group = group[:eq]
	}
	if n := len(group); n > 0 && group[n-1].Kind == lexer.Identifier {
		return group[n-1].Text
	}
	// unnamed parameter such as "typename" or "int"
	return fmt.Sprintf("$%d", index)
}

// --- classes ---

func (p *parser) parseClass(tmpl *templateHead) error {
	head := p.advance()
	decl := ClassDeclaration{
		Key:    head.Text,
		File:   p.file,
		Offset: head.Offset,
		Line:   head.Line,
	}
	if tmpl != nil {
		decl.TemplateParams, decl.TemplateDefaults = tmpl.params, tmpl.defaults
	}

	var qualifier []string
	for {
		t := p.cur()
		switch {
		case t.Is("[") && p.peek(1).Is("["):
			if _, err := p.skipGroup(); err != nil {
				return err
			}
			continue
		case t.Is("{"):
			// anonymous class; the trailing declarators follow the body
			return p.skipStatement()
		case t.Kind == lexer.Identifier || t.IsWord("alignas"):
			next := p.peek(1)
			if next.Is("(") {
				p.advance()
				if _, err := p.skipGroup(); err != nil {
					return err
				}
				continue
			}
			if next.Kind == lexer.Identifier && next.Text != "final" {
				// export macro such as API_EXPORT
				p.advance()
				continue
			}
			p.advance()
			if next.Is("::") {
				qualifier = append(qualifier, t.Text)
				p.advance()
				continue
			}
			decl.Name = t.Text
		default:
			return p.errorf("class name")
		}
		break
	}

	decl.Namespace = p.namespace()
	if len(qualifier) > 0 {
		decl.Namespace = strings.Trim(decl.Namespace+"::"+strings.Join(qualifier, "::"), ":")
	}

	switch {
	case p.check("<"):
		// partial or explicit specialization, not modeled
		return p.skipStatement()
	case p.check(";"):
		p.advance()
		return nil
	case p.cur().Kind == lexer.Identifier && !p.check("final"), p.check("*"), p.check("&"):
		// elaborated type in a variable or function declaration
		return p.skipStatement()
	}

	if p.accept("final") {
		decl.Final = true
	}

	if p.accept(":") {
		for {
			base, err := p.parseBaseSpecifier(decl)
			if err != nil {
				return err
			}
			decl.Bases = append(decl.Bases, base)
			if p.accept(",") {
				continue
			}
			if p.check("{") {
				break
			}
			return p.errorf("',' or '{'")
		}
	}

	if !p.check("{") {
		return p.errorf("'{', ':' or ';'")
	}
	if err := p.parseBody(&decl); err != nil {
		return err
	}

	switch {
	case p.accept(";"):
	case p.cur().Kind == lexer.Identifier || p.check("*") || p.check("&"):
		if err := p.skipStatement(); err != nil {
			return err
		}
	default:
		return p.errorf("';' after class definition")
	}

	p.decls = append(p.decls, decl)
	return nil
}

func (p *parser) parseBaseSpecifier(decl ClassDeclaration) (BaseSpecifier, error) {
	base := BaseSpecifier{Access: decl.DefaultAccess(), Offset: p.cur().Offset}
	var sawAccess, sawVirtual bool
	for {
		if p.check("[") && p.peek(1).Is("[") {
			if _, err := p.skipGroup(); err != nil {
				return base, err
			}
			continue
		}
		if p.check("virtual") {
			if sawVirtual {
				return base, p.errorf("base class name")
			}
			sawVirtual = true
			base.Virtual = true
			p.advance()
			continue
		}
		if a, ok := ParseAccess(p.cur().Text); ok && p.cur().Kind == lexer.Keyword {
			if sawAccess {
				return base, p.errorf("base class name")
			}
			sawAccess = true
			base.Access = a
			p.advance()
			continue
		}
		break
	}

	if p.check("{") || p.check(",") || p.atEOF() {
		return base, p.errorf("base class name")
	}
	ref, err := p.parseTypeRef()
	if err != nil {
		return base, err
	}
	if p.accept("...") {
		ref.Suffix += "..."
	}
	base.Type = ref
	base.SelfReference = ref.Mentions(decl.Name)
	return base, nil
}

// --- type references ---

var builtinTypeWords = map[string]bool{
	"void": true, "bool": true, "char": true, "int": true, "float": true, "double": true,
	"long": true, "short": true, "unsigned": true, "signed": true, "auto": true,
	"wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
}

// parseTypeRef reads a possibly qualified, possibly templated type name.
func (p *parser) parseTypeRef() (TypeReference, error) {
	var ref TypeReference
	var prefix []string
	for p.check("const") || p.check("volatile") || p.check("typename") ||
		p.check("class") || p.check("struct") || p.check("enum") {
		t := p.advance()
		if t.Text == "const" || t.Text == "volatile" {
			prefix = append(prefix, t.Text)
		}
	}
	ref.Prefix = strings.Join(prefix, " ")

	t := p.cur()
	switch {
	case t.Kind == lexer.Literal:
		ref.Name = p.advance().Text
		return ref, nil
	case t.Kind == lexer.Keyword && builtinTypeWords[t.Text]:
		var words []string
		for p.cur().Kind == lexer.Keyword && builtinTypeWords[p.cur().Text] {
			words = append(words, p.advance().Text)
		}
		ref.Name = strings.Join(words, " ")
	case t.IsWord("decltype"):
		p.advance()
		group, err := p.skipGroup()
		if err != nil {
			return ref, err
		}
		ref.Name = "decltype" + joinTokens(group)
	case t.Kind == lexer.Identifier || t.Is("::"):
		var name strings.Builder
		if p.accept("::") {
			name.WriteString("::")
		}
		for {
			id := p.cur()
			if id.Kind != lexer.Identifier {
				return ref, p.errorf("type name")
			}
			p.advance()
			name.WriteString(id.Text)
			ref.Args = nil
			if p.check("<") {
				args, err := p.parseTemplateArgs()
				if err != nil {
					return ref, err
				}
				ref.Args = args
			}
			if p.check("::") && p.peek(1).Kind == lexer.Identifier {
				p.advance()
				if ref.Args != nil {
					name.WriteString(TypeReference{Args: ref.Args}.String())
				}
				name.WriteString("::")
				continue
			}
			break
		}
		ref.Name = name.String()
	default:
		return ref, p.errorf("type name")
	}

	var suffix strings.Builder
	for {
		switch {
		case p.check("*") || p.check("&") || p.check("&&"):
			suffix.WriteString(p.advance().Text)
		case p.check("const") || p.check("volatile"):
			suffix.WriteByte(' ')
			suffix.WriteString(p.advance().Text)
		case p.check("[") || p.check("("):
			group, err := p.skipGroup()
			if err != nil {
				return ref, err
			}
			suffix.WriteString(joinTokens(group))
		default:
			ref.Suffix = suffix.String()
			return ref, nil
		}
	}
}

// parseTemplateArgs reads "<...>" into argument references. Arguments that
// are not type names keep their spelling as Name.
func (p *parser) parseTemplateArgs() ([]TypeReference, error) {
	toks, err := p.skipAngles()
	if err != nil {
		return nil, err
	}
	args := []TypeReference{}
	for _, group := range splitTopLevel(toks[1 : len(toks)-1]) {
		args = append(args, typeRefFromTokens(p.file, group))
	}
	return args, nil
}

func typeRefFromTokens(file string, toks []lexer.Token) TypeReference {
	sub := newSubParser(file, toks)
	ref, err := sub.parseTypeRef()
	if err == nil && sub.atEOF() {
		return ref
	}
	return TypeReference{Name: joinTokens(toks)}
}

// ParseTypeReference parses a standalone type spelling such as
// "Base<Derived, int>". Used by frontends that locate bases themselves.
func ParseTypeReference(file, text string) (TypeReference, error) {
	toks, err := lexer.Tokenize(text)
	if err != nil {
		return TypeReference{}, err
	}
	sub := &parser{file: file, tokens: toks}
	ref, err := sub.parseTypeRef()
	if err != nil {
		return ref, err
	}
	if sub.accept("...") {
		ref.Suffix += "..."
	}
	if !sub.atEOF() {
		return ref, sub.errorf("end of type")
	}
	return ref, nil
}

// --- token utilities ---

// splitTopLevel splits on commas outside any bracket or angle nesting.
func splitTopLevel(toks []lexer.Token) [][]lexer.Token {
	var groups [][]lexer.Token
	var current []lexer.Token
	depth := 0
	for _, t := range toks {
		if t.Kind == lexer.Punct {
			switch t.Text {
			case "(", "[", "{", "<":
				depth++
			case ")", "]", "}", ">":
				depth--
			case ",":
				if depth == 0 {
					groups = append(groups, current)
					current = nil
					continue
				}
			}
		}
		current = append(current, t)
	}
	if len(current) > 0 || len(groups) > 0 {
		groups = append(groups, current)
	}
	return groups
}

func indexTopLevel(toks []lexer.Token, text string) int {
	depth := 0
	for i, t := range toks {
		if t.Kind != lexer.Punct {
			continue
		}
		switch t.Text {
		case "(", "[", "{", "<":
			depth++
		case ")", "]", "}", ">":
			depth--
		default:
			if depth == 0 && t.Text == text {
				return i
			}
		}
	}
	return -1
}

func wordish(t lexer.Token) bool {
	return t.Kind == lexer.Identifier || t.Kind == lexer.Keyword || t.Kind == lexer.Literal
}

// joinTokens renders tokens canonically: words are separated by one space,
// punctuation is packed, and commas are followed by a space.
func joinTokens(toks []lexer.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 {
			prev := toks[i-1]
			switch {
			case prev.Is(","):
				sb.WriteByte(' ')
			case wordish(t) && (wordish(prev) || prev.Is(">") || prev.Is("*") || prev.Is("&") || prev.Is("&&")):
				sb.WriteByte(' ')
			}
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}
