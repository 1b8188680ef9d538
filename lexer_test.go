package pdc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewLexer(src).Tokenize()
	require.NoError(t, err)
	return toks
}

// kinds returns every non-EOF token's kind/text pair for terse
// assertions.
func kindsAndText(toks []Token) [][2]string {
	var out [][2]string
	for _, tok := range toks {
		if tok.Kind == TokEOF {
			continue
		}
		out = append(out, [2]string{tok.Kind.String(), tok.Text})
	}
	return out
}

// A `-` directly after an identifier is subtraction, not a sign fused
// onto the following digits — regardless of the whitespace around it.
func TestLexerMinusAfterIdentIsSubtractionNoSpace(t *testing.T) {
	toks := tokenize(t, "a-1")
	require.Len(t, toks, 4) // a, -, 1, EOF
	assert.Equal(t, TokIdentifier, toks[0].Kind)
	assert.Equal(t, TokPunct, toks[1].Kind)
	assert.Equal(t, "-", toks[1].Text)
	assert.Equal(t, TokInteger, toks[2].Kind)
	assert.Equal(t, int64(1), toks[2].Int)
}

func TestLexerMinusAfterIdentIsSubtractionWithSpace(t *testing.T) {
	assert.Equal(t, kindsAndText(tokenize(t, "a-1")), kindsAndText(tokenize(t, "a - 1")))
	assert.Equal(t, kindsAndText(tokenize(t, "a-1")), kindsAndText(tokenize(t, "a -1")))
}

// A `-` after a closing bracket is also subtraction: `f()-1` calls f
// then subtracts, it does not call f with a missing operand followed
// by a stray negative literal.
func TestLexerMinusAfterClosingParenIsSubtraction(t *testing.T) {
	toks := tokenize(t, "f()-1")
	var sawMinusPunct bool
	for _, tok := range toks {
		if tok.Kind == TokPunct && tok.Text == "-" {
			sawMinusPunct = true
		}
	}
	assert.True(t, sawMinusPunct)
}

// A `-` at the start of input, or right after an operator/opening
// bracket/keyword, still fuses into a signed integer literal.
func TestLexerLeadingMinusIsSignedLiteral(t *testing.T) {
	toks := tokenize(t, "-1")
	require.Len(t, toks, 2)
	assert.Equal(t, TokInteger, toks[0].Kind)
	assert.Equal(t, int64(-1), toks[0].Int)
}

func TestLexerMinusAfterOperatorIsSignedLiteral(t *testing.T) {
	toks := tokenize(t, "1 + -1")
	require.Len(t, toks, 4) // 1, +, -1, EOF
	assert.Equal(t, TokInteger, toks[2].Kind)
	assert.Equal(t, int64(-1), toks[2].Int)
}

func TestLexerMinusAfterOpenParenIsSignedLiteral(t *testing.T) {
	toks := tokenize(t, "(-1)")
	require.Len(t, toks, 4) // (, -1, ), EOF
	assert.Equal(t, TokInteger, toks[1].Kind)
	assert.Equal(t, int64(-1), toks[1].Int)
}

func TestLexerMinusAfterReturnKeywordIsSignedLiteral(t *testing.T) {
	toks := tokenize(t, "return -1;")
	assert.Equal(t, TokInteger, toks[1].Kind)
	assert.Equal(t, int64(-1), toks[1].Int)
}
