package pdc

import (
	"fmt"
	"strings"
)

const eof = -1

// Lexer turns source text into a token stream. It keeps the same cursor
// discipline as BaseParser (Peek/Any advance one rune at a
// time and track line/column as they go) but produces a materialized
// []Token instead of backtrackable PEG primitives, since pd's recursive
// descent parser never needs to re-lex.
type Lexer struct {
	input []rune
	cur int
	line int
	col int
	file string

	// hasPrev/prevKind/prevText track the last token next() produced,
	// so a leading `-` can be disambiguated between a signed integer
	// literal and a binary subtraction operator by what came before it,
	// never by the whitespace surrounding it.
	hasPrev bool
	prevKind TokenKind
	prevText string
}

func NewLexer(source string) *Lexer {
	return &Lexer{input: []rune(source), line: 1, col: 1}
}

func (l *Lexer) SetFile(name string) { l.file = name }

func (l *Lexer) loc() Location {
	return Location{Line: l.line, Column: l.col, Cursor: l.cur}
}

func (l *Lexer) peek() rune {
	if l.cur >= len(l.input) {
		return eof
	}
	return l.input[l.cur]
}

func (l *Lexer) peekAt(off int) rune {
	if l.cur+off >= len(l.input) {
		return eof
	}
	return l.input[l.cur+off]
}

func (l *Lexer) advance() rune {
	c := l.peek()
	if c == eof {
		return eof
	}
	l.cur++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

// Tokenize() runs the lexer to completion, returning every token including
// a trailing TokEOF, or the first lex-error encountered.
func (l *Lexer) Tokenize() ([]Token, error) {
	var toks []Token
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks, nil
		}
	}
}

func (l *Lexer) skipTrivia() error {
	for {
		c := l.peek()
		switch {
			case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
			case c == '/' && l.peekAt(1) == '/':
			for l.peek() != '\n' && l.peek() != eof {
				l.advance()
			}
			case c == '/' && l.peekAt(1) == '*':
			start := l.loc()
			l.advance()
			l.advance()
			closed := false
			for l.peek() != eof {
				if l.peek() == '*' && l.peekAt(1) == '/' {
					l.advance()
					l.advance()
					closed = true
					break
				}
				l.advance()
			}
			if !closed {
				return &Diagnostic{Kind: KindLexError, Message: "unterminated block comment", Span: NewSpan(start, l.loc())}
			}
			default:
			return nil
		}
	}
}

// longestPunct is tried longest-match-first; see
var longestPunct = []string{
	"==", "!=", "<=", ">=", "&&", "||", "->", "=>", "::", "..",
	"+", "-", "*", "/", "%", "=", "<", ">", "&", "|", "!", "?",
	"(", ")", "{", "}", "[", "]", ",", ";", ":", ".", "'", "$",
}

func (l *Lexer) next() (Token, error) {
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	start := l.loc()
	c := l.peek()
	if c == eof {
		return Token{Kind: TokEOF, Span: NewSpan(start, start)}, nil
	}

	var tok Token
	var err error
	switch {
		case isIdentStart(c):
		tok, err = l.lexIdentOrKeyword(start)
		case isDigit(c):
		tok, err = l.lexInteger(start)
		case c == '-' && isDigit(l.peekAt(1)) && !l.precedesBinaryMinus():
		tok, err = l.lexInteger(start)
		case c == '"':
		tok, err = l.lexString(start)
		default:
		tok, err = l.lexPunct(start)
	}
	if err != nil {
		return Token{}, err
	}
	l.hasPrev, l.prevKind, l.prevText = true, tok.Kind, tok.Text
	return tok, nil
}

// precedesBinaryMinus reports whether the token just produced can end
// an expression, meaning a following `-` is subtraction and must lex
// as its own punctuation token rather than fusing with the digits
// after it into a signed integer literal. Depends only on the previous
// token's kind/text, never on whitespace, so `a-1` and `a - 1` and
// `a -1` all lex identically.
func (l *Lexer) precedesBinaryMinus() bool {
	if !l.hasPrev {
		return false
	}
	switch l.prevKind {
		case TokIdentifier, TokInteger, TokString:
		return true
		case TokKeyword:
		return l.prevText == "true" || l.prevText == "false"
		case TokPunct:
		switch l.prevText {
			case ")", "]", "}":
			return true
		}
		return false
	}
	return false
}

func isIdentStart(c rune) bool { return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isIdentCont(c rune) bool { return isIdentStart(c) || isDigit(c) }
func isDigit(c rune) bool { return c >= '0' && c <= '9' }

func (l *Lexer) lexIdentOrKeyword(start Location) (Token, error) {
	var sb strings.Builder
	for isIdentCont(l.peek()) {
		sb.WriteRune(l.advance())
	}
	text := sb.String()
	kind := TokIdentifier
	if isKeyword(text) {
		kind = TokKeyword
	}
	return Token{Kind: kind, Text: text, Span: NewSpan(start, l.loc())}, nil
}

func (l *Lexer) lexInteger(start Location) (Token, error) {
	var sb strings.Builder
	if l.peek() == '-' {
		sb.WriteRune(l.advance())
	}
	for isDigit(l.peek()) {
		sb.WriteRune(l.advance())
	}
	text := sb.String()
	var v int64
	neg := false
	for i, r := range text {
		if i == 0 && r == '-' {
			neg = true
			continue
		}
		v = v*10 + int64(r-'0')
	}
	if neg {
		v = -v
	}
	return Token{Kind: TokInteger, Text: text, Int: v, Span: NewSpan(start, l.loc())}, nil
}

func (l *Lexer) lexString(start Location) (Token, error) {
	l.advance() // opening quote
	var sb strings.Builder
	for {
		c := l.peek()
		if c == eof {
			return Token{}, &Diagnostic{Kind: KindLexError, Message: "unterminated string literal", Span: NewSpan(start, l.loc())}
		}
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' {
			l.advance()
			esc := l.advance()
			switch esc {
				case 'n':
				sb.WriteRune('\n')
				case 't':
				sb.WriteRune('\t')
				case 'r':
				sb.WriteRune('\r')
				case '\\':
				sb.WriteRune('\\')
				case '"':
				sb.WriteRune('"')
				default:
				return Token{}, &Diagnostic{
					Kind: KindLexError,
					Message: fmt.Sprintf("unknown escape sequence `\\%c`", esc),
					Span: NewSpan(start, l.loc()),
				}
			}
			continue
		}
		sb.WriteRune(l.advance())
	}
	return Token{Kind: TokString, Str: sb.String(), Text: sb.String(), Span: NewSpan(start, l.loc())}, nil
}

func (l *Lexer) lexPunct(start Location) (Token, error) {
	for _, p := range longestPunct {
		if l.matchLiteral(p) {
			for range []rune(p) {
				l.advance()
			}
			return Token{Kind: TokPunct, Text: p, Span: NewSpan(start, l.loc())}, nil
		}
	}
	bad := l.advance()
	return Token{}, &Diagnostic{
		Kind: KindLexError,
		Message: fmt.Sprintf("unrecognized character `%c`", bad),
		Span: NewSpan(start, l.loc()),
	}
}

func (l *Lexer) matchLiteral(s string) bool {
	for i, r := range []rune(s) {
		if l.peekAt(i) != r {
			return false
		}
	}
	return true
}
