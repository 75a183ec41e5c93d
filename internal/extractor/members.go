package extractor

import (
	"strings"
	"unicode"

	"genealogic/internal/lexer"
)

var methodSpecifiers = map[string]bool{
	"inline": true, "explicit": true, "constexpr": true, "consteval": true,
	"mutable": true, "extern": true,
}

// parseBody reads a class body from '{' through the matching '}', recording
// member function signatures and tracking access labels.
func (p *parser) parseBody(decl *ClassDeclaration) error {
	if err := p.expect("{"); err != nil {
		return err
	}
	access := decl.DefaultAccess()
	for {
		t := p.cur()
		if t.Kind == lexer.Keyword && isAccessLabel(p) {
			// "public:" and Qt-style "public slots:"
			access, _ = ParseAccess(t.Text)
			for !p.check(":") {
				p.advance()
			}
			p.advance()
			continue
		}

		switch {
		case t.Kind == lexer.EOF:
			return p.errorf("'}'")
		case t.Is("}"):
			decl.EndLine = p.advance().Line
			return nil
		case t.Is(";"):
			p.advance()
		case t.Is("template"):
			if _, err := p.parseTemplateHeader(); err != nil {
				return err
			}
		case t.Is("class") || t.Is("struct") || t.Is("union") || t.Is("enum") ||
			t.Is("using") || t.Is("typedef") || t.Is("friend") || t.Is("static_assert"):
			if _, err := p.collectMember(); err != nil {
				return err
			}
		default:
			toks, err := p.collectMember()
			if err != nil {
				return err
			}
			if m, ok := parseMethod(toks, decl.Name); ok {
				m.Access = access
				decl.Methods = append(decl.Methods, m)
			}
		}
	}
}

// collectMember consumes one member declaration and returns its tokens
// without the trailing ';', function body or constructor initializers.
func (p *parser) collectMember() ([]lexer.Token, error) {
	var toks []lexer.Token
	sawParams := false
	for {
		t := p.cur()
		switch {
		case t.Kind == lexer.EOF:
			return nil, p.errorf("';'")
		case t.Is(";"):
			p.advance()
			return toks, nil
		case t.Is("}"):
			return nil, p.errorf("';'")
		case len(toks) > 0 && t.Kind == lexer.Keyword && isAccessLabel(p):
			// macro noise such as Q_OBJECT before an access label
			return toks, nil
		case t.Is(":") && sawParams:
			p.advance()
			if err := p.skipInitializers(); err != nil {
				return nil, err
			}
			return toks, nil
		case t.Is("{"):
			if sawParams {
				if _, err := p.skipGroup(); err != nil {
					return nil, err
				}
				return toks, nil
			}
			// brace initializer of a data member
			if _, err := p.skipGroup(); err != nil {
				return nil, err
			}
		case t.Is("(") || t.Is("["):
			group, err := p.skipGroup()
			if err != nil {
				return nil, err
			}
			if t.Is("(") {
				sawParams = true
			}
			toks = append(toks, group...)
		case t.Is(")") || t.Is("]"):
			return nil, p.errorf("declaration")
		default:
			toks = append(toks, p.advance())
		}
	}
}

func isAccessLabel(p *parser) bool {
	if _, ok := ParseAccess(p.cur().Text); !ok {
		return false
	}
	n := 1
	for p.peek(n).Kind == lexer.Identifier {
		n++
	}
	return p.peek(n).Is(":")
}

// skipInitializers consumes a constructor's member initializer list and the
// body that follows it.
func (p *parser) skipInitializers() error {
	complete := false
	for {
		t := p.cur()
		switch {
		case t.Kind == lexer.EOF:
			return p.errorf("'{'")
		case t.Is("{") && complete:
			_, err := p.skipGroup()
			return err
		case t.Is("(") || t.Is("{"):
			if _, err := p.skipGroup(); err != nil {
				return err
			}
			complete = true
		case t.Is("<"):
			if _, err := p.skipAngles(); err != nil {
				return err
			}
		case t.Is(";") || t.Is("}"):
			return p.errorf("'{'")
		default:
			complete = t.Is("...") && complete
			p.advance()
		}
	}
}

// parseMethod interprets member tokens as a member function declaration.
// Data members, constructors and anything else report false.
func parseMethod(toks []lexer.Token, className string) (MethodSignature, bool) {
	m := MethodSignature{Params: []string{}}
	if len(toks) == 0 {
		return m, false
	}
	m.Offset, m.Line = toks[0].Offset, toks[0].Line

	toks = skipLeadingMacro(toks)

	nameStart, paramsAt := -1, -1
	depth := 0
	for i := 0; i < len(toks) && paramsAt < 0; i++ {
		t := toks[i]
		switch {
		case t.Is("<") && i > 0 && toks[i-1].Kind == lexer.Identifier:
			depth++
		case t.Is(">") && depth > 0:
			depth--
		case depth > 0:
		case t.Is("operator"):
			j := i + 1
			if j+1 < len(toks) && toks[j].Is("(") && toks[j+1].Is(")") {
				j += 2
			}
			for j < len(toks) && !toks[j].Is("(") {
				j++
			}
			if j >= len(toks) {
				return m, false
			}
			m.Name = "operator" + operatorSpelling(toks[i+1:j])
			nameStart, paramsAt = i, j
		case t.Is("="):
			return m, false
		case t.Is("(") && i > 0 && toks[i-1].Kind == lexer.Identifier:
			nameStart, paramsAt = i-1, i
			m.Name = toks[i-1].Text
			if i >= 2 && toks[i-2].Is("~") {
				nameStart = i - 2
				m.Name = "~" + m.Name
				m.Destructor = true
			}
		case t.Is("("):
			// function pointer member or other declarator
			return m, false
		}
	}
	if paramsAt < 0 {
		return m, false
	}
	if !m.Destructor && m.Name == className {
		return m, false
	}

	closeAt := matchClose(toks, paramsAt)
	if closeAt < 0 {
		return m, false
	}

	virtualKw := false
	var ret []lexer.Token
	for i := 0; i < nameStart; i++ {
		t := toks[i]
		switch {
		case t.Is("virtual"):
			virtualKw = true
		case t.Is("static"):
			m.Static = true
		case t.Kind == lexer.Keyword && methodSpecifiers[t.Text]:
		case t.Is("[") && i+1 < nameStart && toks[i+1].Is("["):
			end := matchClose(toks, i)
			if end < 0 {
				return m, false
			}
			i = end
		default:
			ret = append(ret, t)
		}
	}
	m.ReturnType = joinTokens(ret)

	for _, group := range splitTopLevel(toks[paramsAt+1 : closeAt]) {
		if typ := paramType(group); typ != "" {
			m.Params = append(m.Params, typ)
		}
	}
	if len(m.Params) == 1 && m.Params[0] == "void" {
		m.Params = []string{}
	}

	pure := false
	post := toks[closeAt+1:]
	for i := 0; i < len(post); i++ {
		t := post[i]
		switch {
		case t.Is("const"):
			m.Const = true
		case t.Is("&") || t.Is("&&"):
			m.RefQualifier = t.Text
		case t.Is("noexcept") || t.Is("throw"):
			if i+1 < len(post) && post[i+1].Is("(") {
				if end := matchClose(post, i+1); end > 0 {
					i = end
				}
			}
		case t.Is("->"):
			j := i + 1
			for j < len(post) && !post[j].IsWord("override") && !post[j].IsWord("final") && !post[j].Is("=") {
				j++
			}
			m.ReturnType = joinTokens(post[i+1 : j])
			i = j - 1
		case t.IsWord("override"):
			m.Override = true
		case t.IsWord("final"):
			m.Final = true
		case t.Is("="):
			if i+1 < len(post) && post[i+1].Kind == lexer.Literal && post[i+1].Text == "0" {
				pure = true
			}
			i = len(post)
		case t.IsWord("requires"):
			i = len(post)
		}
	}

	switch {
	case pure:
		m.Virtuality = PureVirtual
	case m.Override || (m.Final && !virtualKw):
		m.Virtuality = VirtualOverride
	case virtualKw:
		m.Virtuality = Virtual
	default:
		m.Virtuality = NonVirtual
	}
	return m, true
}

// skipLeadingMacro drops an ALL_CAPS(...) invocation that opens the member.
func skipLeadingMacro(toks []lexer.Token) []lexer.Token {
	for len(toks) > 2 && toks[0].Kind == lexer.Identifier && isMacroName(toks[0].Text) && toks[1].Is("(") {
		end := matchClose(toks, 1)
		if end < 0 || end == len(toks)-1 {
			return toks
		}
		toks = toks[end+1:]
	}
	return toks
}

func isMacroName(s string) bool {
	if len(s) < 2 {
		return false
	}
	upper := false
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case r == '_' || unicode.IsDigit(r):
		default:
			return false
		}
	}
	return upper
}

func operatorSpelling(toks []lexer.Token) string {
	s := joinTokens(toks)
	if len(toks) > 0 && wordish(toks[0]) {
		return " " + s
	}
	return strings.ReplaceAll(s, " ", "")
}

// matchClose returns the index of the bracket closing toks[open].
func matchClose(toks []lexer.Token, open int) int {
	want, ok := closers[toks[open].Text]
	if !ok {
		return -1
	}
	stack := []string{want}
	for i := open + 1; i < len(toks); i++ {
		t := toks[i]
		if t.Kind != lexer.Punct {
			continue
		}
		if w, ok := closers[t.Text]; ok {
			stack = append(stack, w)
			continue
		}
		if t.Text == stack[len(stack)-1] {
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return i
			}
		}
	}
	return -1
}

var typeOnlyWords = map[string]bool{
	"const": true, "volatile": true, "typename": true, "struct": true,
	"class": true, "enum": true, "union": true,
}

// paramType reduces a parameter declaration to its canonical type spelling,
// dropping the parameter name and any default argument.
func paramType(toks []lexer.Token) string {
	if eq := indexTopLevel(toks, "="); eq >= 0 {
		toks = toks[:eq]
	}
	var arrays string
	for len(toks) > 0 && toks[len(toks)-1].Is("]") {
		open := -1
		for i := len(toks) - 1; i >= 0; i-- {
			if toks[i].Is("[") {
				open = i
				break
			}
		}
		if open < 0 {
			break
		}
		arrays = "[]" + arrays
		toks = toks[:open]
	}
	if n := len(toks); n >= 2 && toks[n-1].Kind == lexer.Identifier {
		prev := toks[n-2]
		typed := false
		for _, t := range toks[:n-1] {
			if (wordish(t) && !typeOnlyWords[t.Text]) || t.Is(">") {
				typed = true
			}
		}
		// after an elaborated keyword the identifier is the type itself
		elaborated := typeOnlyWords[prev.Text] && !prev.Is("const") && !prev.Is("volatile")
		if typed && !prev.Is("::") && !elaborated {
			toks = toks[:n-1]
		}
	}
	return joinTokens(westConst(toks)) + arrays
}

// westConst moves cv-qualifiers written after the base type to the front,
// so "Foo const&" and "const Foo&" spell the same type. Qualifiers after the
// first declarator operator apply to it and stay in place.
func westConst(toks []lexer.Token) []lexer.Token {
	depth, end := 0, len(toks)
scan:
	for i, t := range toks {
		switch {
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
		case depth == 0 && (t.Is("*") || t.Is("&") || t.Is("&&") || t.Is("(")):
			end = i
			break scan
		}
	}

	var isConst, isVolatile bool
	rest := make([]lexer.Token, 0, len(toks))
	var cv []lexer.Token
	depth = 0
	for _, t := range toks[:end] {
		switch {
		case t.Is("<"):
			depth++
		case t.Is(">"):
			depth--
		case depth == 0 && t.Is("const"):
			if !isConst {
				isConst = true
				cv = append([]lexer.Token{t}, cv...)
			}
			continue
		case depth == 0 && t.Is("volatile"):
			if !isVolatile {
				isVolatile = true
				cv = append(cv, t)
			}
			continue
		}
		rest = append(rest, t)
	}
	out := append(cv, rest...)
	return append(out, toks[end:]...)
}
