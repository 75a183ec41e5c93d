package lexer

import "fmt"

// Kind classifies a token.
type Kind int

const (
	EOF Kind = iota
	Identifier
	Keyword
	Punct
	Literal
)

func (k Kind) String() string {
	switch k {
	case EOF:
		return "end of input"
	case Identifier:
		return "identifier"
	case Keyword:
		return "keyword"
	case Punct:
		return "punctuation"
	case Literal:
		return "literal"
	default:
		return "unknown"
	}
}

// Token is one lexical token. Text is the raw source span.
type Token struct {
	Kind   Kind
	Text   string
	Offset int
	Line   int
	Column int
}

// Is reports whether the token is a punctuator or keyword spelled text.
func (t Token) Is(text string) bool {
	return (t.Kind == Punct || t.Kind == Keyword) && t.Text == text
}

// IsWord reports whether the token is an identifier or keyword spelled text.
// Contextual keywords like override and final lex as identifiers.
func (t Token) IsWord(text string) bool {
	return (t.Kind == Identifier || t.Kind == Keyword) && t.Text == text
}

func (t Token) String() string {
	if t.Kind == EOF {
		return t.Kind.String()
	}
	return fmt.Sprintf("%s %q", t.Kind, t.Text)
}

var keywords = map[string]bool{
	"class": true, "struct": true, "union": true, "enum": true,
	"public": true, "private": true, "protected": true,
	"virtual": true, "const": true, "volatile": true, "static": true,
	"inline": true, "explicit": true, "friend": true, "mutable": true,
	"constexpr": true, "consteval": true, "extern": true, "noexcept": true,
	"template": true, "typename": true, "typedef": true, "using": true,
	"namespace": true, "operator": true, "default": true, "delete": true,
	"throw": true, "static_assert": true, "decltype": true, "alignas": true,
	"void": true, "bool": true, "char": true, "int": true, "float": true,
	"double": true, "long": true, "short": true, "unsigned": true, "signed": true,
	"auto": true, "wchar_t": true, "char8_t": true, "char16_t": true, "char32_t": true,
}

// IsKeyword reports whether word is a reserved C++ keyword known to the lexer.
func IsKeyword(word string) bool {
	return keywords[word]
}
