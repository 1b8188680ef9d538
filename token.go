package pdc

import "fmt"

// TokenKind is the closed set of lexical categories recognized by the
// lexer.
type TokenKind int

const (
	TokIdentifier TokenKind = iota
	TokInteger
	TokString
	TokKeyword
	TokPunct
	TokEOF
)

func (k TokenKind) String() string {
	switch k {
		case TokIdentifier:
		return "identifier"
		case TokInteger:
		return "integer"
		case TokString:
		return "string"
		case TokKeyword:
		return "keyword"
		case TokPunct:
		return "punctuation"
		case TokEOF:
		return "eof"
		default:
		return "unknown"
	}
}

// Token is one lexical unit: a kind tag, its literal text, and the span
// it occupies in the source. Keywords and punctuation carry their exact
// spelling in Text so the parser can switch on it directly.
type Token struct {
	Kind TokenKind
	Text string
	Int int64 // populated when Kind == TokInteger
	Str string // populated when Kind == TokString (unescaped)
	Span Span
}

func (t Token) String() string {
	return fmt.Sprintf("%s(%q)@%s", t.Kind, t.Text, t.Span)
}

// keywords is the exact-match reservation table.
var keywords = map[string]bool{
	"fn": true, "struct": true, "enum": true, "trait": true, "impl": true,
	"type": true, "macro": true, "import": true, "pub": true, "async": true,
	"await": true, "let": true, "mut": true, "return": true, "if": true,
	"else": true, "while": true, "for": true, "in": true, "break": true,
	"continue": true, "match": true, "unsafe": true, "true": true, "false": true,
	"i32": true, "i64": true, "u32": true, "u64": true, "bool": true,
	"String": true, "unit": true,
}

func isKeyword(s string) bool { return keywords[s] }
