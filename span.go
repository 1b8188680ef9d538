package pdc

import "fmt"

// Location is a single point in the source: a byte cursor plus the
// line/column it was found at. Lines and columns are 1-indexed.
type Location struct {
	Line int
	Column int
	Cursor int
}

func (l Location) String() string {
	return fmt.Sprintf("%d:%d", l.Line, l.Column)
}

// Span is a half-open byte range with its resolved start/end locations.
// Every AST node and token carries one; diagnostics cite it.
type Span struct {
	Start Location
	End Location
}

func NewSpan(start, end Location) Span {
	return Span{Start: start, End: end}
}

func (s Span) String() string {
	if s.Start.Line == s.End.Line {
		return fmt.Sprintf("%d:%d..%d", s.Start.Line, s.Start.Column, s.End.Column)
	}
	return fmt.Sprintf("%d:%d..%d:%d", s.Start.Line, s.Start.Column, s.End.Line, s.End.Column)
}

// Merge returns the smallest span covering both s and o.
func (s Span) Merge(o Span) Span {
	start, end := s.Start, o.End
	if o.Start.Cursor < s.Start.Cursor {
		start = o.Start
	}
	if s.End.Cursor > o.End.Cursor {
		end = s.End
	}
	return Span{Start: start, End: end}
}

// Excerpt returns the line of `source` the span starts on, plus a caret
// line pointing at the span's start column. Grounded on the plain-text
// rendering half of grammar_ast_printer.go's theming split: colors are a
// driver concern out of scope here, so this only ever emits the bare
// excerpt + caret.
func (s Span) Excerpt(source string) string {
	line := lineAt(source, s.Start.Line)
	caret := ""
	for i := 1; i < s.Start.Column; i++ {
		caret += " "
	}
	caret += "^"
	return line + "\n" + caret
}

func lineAt(source string, line int) string {
	cur := 1
	start := 0
	for i := 0; i < len(source); i++ {
		if cur == line {
			break
		}
		if source[i] == '\n' {
			cur++
			start = i + 1
		}
	}
	end := start
	for end < len(source) && source[end] != '\n' {
		end++
	}
	return source[start:end]
}
