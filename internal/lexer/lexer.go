// Package lexer tokenizes C++ header text.
//
// Comments, whitespace and preprocessor directives are dropped. Newlines carry
// no meaning, so declarations may be laid out across any number of lines.
package lexer

import (
	"fmt"
	"strings"
)

// LexError reports a malformed token stream.
type LexError struct {
	Offset int
	Line   int
	Column int
	Reason string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d (offset %d): %s", e.Line, e.Column, e.Offset, e.Reason)
}

var combined = []string{"::", "->", "...", "&&", "||", "==", "!=", "++", "--"}

// Lexer produces tokens lazily. Reset restarts it from the beginning of input.
type Lexer struct {
	input  string
	pos    int
	line   int
	column int
}

// New creates a lexer over src.
func New(src string) *Lexer {
	l := &Lexer{input: src}
	l.Reset()
	return l
}

// Reset rewinds the lexer to the start of its input.
func (l *Lexer) Reset() {
	l.pos = 0
	l.line = 1
	l.column = 1
}

// Tokenize drains a fresh lexer over src. The last token is always EOF.
func Tokenize(src string) ([]Token, error) {
	l := New(src)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			return tokens, nil
		}
	}
}

// Next returns the next token. After EOF every call returns EOF again.
func (l *Lexer) Next() (Token, error) {
	for {
		if err := l.skipSpaceAndComments(); err != nil {
			return Token{}, err
		}
		if l.pos >= len(l.input) {
			return Token{Kind: EOF, Offset: l.pos, Line: l.line, Column: l.column}, nil
		}
		if l.input[l.pos] == '#' && l.atLineStart() {
			if err := l.skipDirective(); err != nil {
				return Token{}, err
			}
			continue
		}
		break
	}

	start, line, col := l.pos, l.line, l.column
	ch := l.input[l.pos]
	emit := func(kind Kind) Token {
		return Token{Kind: kind, Text: l.input[start:l.pos], Offset: start, Line: line, Column: col}
	}

	switch {
	case isRawStringStart(l.input[l.pos:]):
		if err := l.readRawString(); err != nil {
			return Token{}, err
		}
		return emit(Literal), nil
	case ch == '"' || ch == '\'':
		if err := l.readQuoted(ch); err != nil {
			return Token{}, err
		}
		return emit(Literal), nil
	case isIdentStart(ch):
		for l.pos < len(l.input) && isIdentPart(l.input[l.pos]) {
			l.advance()
		}
		tok := emit(Identifier)
		if keywords[tok.Text] {
			tok.Kind = Keyword
		}
		return tok, nil
	case isDigit(ch) || (ch == '.' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1])):
		l.readNumber()
		return emit(Literal), nil
	}

	for _, op := range combined {
		if strings.HasPrefix(l.input[l.pos:], op) {
			for range op {
				l.advance()
			}
			return emit(Punct), nil
		}
	}
	l.advance()
	return emit(Punct), nil
}

func (l *Lexer) advance() {
	if l.pos >= len(l.input) {
		return
	}
	if l.input[l.pos] == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	l.pos++
}

func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

func (l *Lexer) errorf(offset, line, col int, format string, args ...any) *LexError {
	return &LexError{Offset: offset, Line: line, Column: col, Reason: fmt.Sprintf(format, args...)}
}

func (l *Lexer) skipSpaceAndComments() error {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v':
			l.advance()
		case ch == '\\' && (l.peek(1) == '\n' || (l.peek(1) == '\r' && l.peek(2) == '\n')):
			l.advance()
		case ch == '/' && l.peek(1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		case ch == '/' && l.peek(1) == '*':
			start, line, col := l.pos, l.line, l.column
			l.advance()
			l.advance()
			closed := false
			for l.pos < len(l.input) {
				if l.input[l.pos] == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return l.errorf(start, line, col, "unterminated block comment")
			}
		default:
			return nil
		}
	}
	return nil
}

// atLineStart reports whether only whitespace precedes pos on its line.
func (l *Lexer) atLineStart() bool {
	for i := l.pos - 1; i >= 0; i-- {
		switch l.input[i] {
		case '\n':
			return true
		case ' ', '\t', '\r':
			continue
		default:
			return false
		}
	}
	return true
}

func (l *Lexer) skipDirective() error {
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		switch {
		case l.input[l.pos] == '\\' && l.peek(1) == '\n':
			l.advance()
			l.advance()
		case l.input[l.pos] == '"' || l.input[l.pos] == '\'':
			l.skipDirectiveLiteral(l.input[l.pos])
		case l.input[l.pos] == '/' && l.peek(1) == '/':
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.advance()
			}
		case l.input[l.pos] == '/' && l.peek(1) == '*':
			start, line, col := l.pos, l.line, l.column
			end := strings.Index(l.input[l.pos+2:], "*/")
			if end < 0 {
				return l.errorf(start, line, col, "unterminated block comment")
			}
			stop := l.pos + 2 + end + 2
			for l.pos < stop {
				l.advance()
			}
		default:
			l.advance()
		}
	}
	return nil
}

// skipDirectiveLiteral passes over a quoted literal inside a directive. An
// unterminated quote ends at the line break, as in `#error don't`.
func (l *Lexer) skipDirectiveLiteral(quote byte) {
	l.advance()
	for l.pos < len(l.input) && l.input[l.pos] != '\n' {
		switch l.input[l.pos] {
		case '\\':
			l.advance()
			if l.pos < len(l.input) {
				l.advance()
			}
		case quote:
			l.advance()
			return
		default:
			l.advance()
		}
	}
}

func (l *Lexer) readQuoted(quote byte) error {
	start, line, col := l.pos, l.line, l.column
	l.advance()
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case ch == '\\':
			l.advance()
			l.advance()
		case ch == quote:
			l.advance()
			return nil
		case ch == '\n':
			return l.errorf(start, line, col, "unterminated %s literal", quoteName(quote))
		default:
			l.advance()
		}
	}
	return l.errorf(start, line, col, "unterminated %s literal", quoteName(quote))
}

func quoteName(q byte) string {
	if q == '\'' {
		return "character"
	}
	return "string"
}

// isRawStringStart matches R"( as well as the u8R, uR, UR and LR prefixes.
func isRawStringStart(s string) bool {
	for _, p := range []string{`R"`, `u8R"`, `uR"`, `UR"`, `LR"`} {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func (l *Lexer) readRawString() error {
	start, line, col := l.pos, l.line, l.column
	for l.input[l.pos] != '"' {
		l.advance()
	}
	l.advance()
	open := strings.IndexByte(l.input[l.pos:], '(')
	if open < 0 || open > 16 {
		return l.errorf(start, line, col, "malformed raw string delimiter")
	}
	delim := l.input[l.pos : l.pos+open]
	terminator := ")" + delim + `"`
	end := strings.Index(l.input[l.pos+open+1:], terminator)
	if end < 0 {
		return l.errorf(start, line, col, "unterminated raw string literal")
	}
	stop := l.pos + open + 1 + end + len(terminator)
	for l.pos < stop {
		l.advance()
	}
	return nil
}

func (l *Lexer) readNumber() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		switch {
		case isIdentPart(ch) || ch == '.':
			l.advance()
		case ch == '\'' && isIdentPart(l.peek(1)):
			// digit separator, as in 1'000
			l.advance()
		case (ch == '+' || ch == '-') && l.pos > 0 && strings.ContainsRune("eEpP", rune(l.input[l.pos-1])):
			l.advance()
		default:
			return
		}
	}
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}
