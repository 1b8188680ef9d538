package pdc

import "fmt"

// MacroExpander expands `name!(tokens)` invocations against the macro
// declarations collected from a Program, by pattern-matching the
// invocation's token stream against the macro's declared pattern,
// substituting into the macro body, and re-lexing/re-parsing the result
// in the calling context.
//
// Grounded on grammar_compiler.go pipeline-stage shape (one
// pass that walks the already-parsed tree and rewrites nodes in place),
// generalized from PEG rule inlining to token-level macro substitution.
type MacroExpander struct {
	macros map[string]*Macro
}

func NewMacroExpander(prog *Program) *MacroExpander {
	m := &MacroExpander{macros: make(map[string]*Macro)}
	for _, item := range prog.Items {
		if mac, ok := item.(*Macro); ok {
			m.macros[mac.NameV] = mac
		}
	}
	return m
}

// ExpandProgram rewrites every MacroInvokeExpr reachable from an item's
// body, in place, until none remain. A program with no macros is
// returned unchanged.
func (m *MacroExpander) ExpandProgram(prog *Program) error {
	for _, item := range prog.Items {
		switch it := item.(type) {
			case *Function:
			expanded, err := m.expandStmts(it.Body)
			if err != nil {
				return err
			}
			it.Body = expanded
			case *Impl:
			for _, fn := range it.Methods {
				expanded, err := m.expandStmts(fn.Body)
				if err != nil {
					return err
				}
				fn.Body = expanded
			}
		}
	}
	return nil
}

func (m *MacroExpander) expandStmts(stmts []Stmt) ([]Stmt, error) {
	out := make([]Stmt, len(stmts))
	for i, s := range stmts {
		es, err := m.expandStmt(s)
		if err != nil {
			return nil, err
		}
		out[i] = es
	}
	return out, nil
}

func (m *MacroExpander) expandStmt(s Stmt) (Stmt, error) {
	var err error
	switch n := s.(type) {
		case *ExprStmt:
		n.Expr, err = m.expandExpr(n.Expr)
		case *ReturnStmt:
		if n.Value != nil {
			n.Value, err = m.expandExpr(n.Value)
		}
		case *LetStmt:
		n.Init, err = m.expandExpr(n.Init)
		case *AssignStmt:
		if err = m.expandExprInPlace(&n.Target); err == nil {
			err = m.expandExprInPlace(&n.Value)
		}
		case *IfStmt:
		if n.Cond, err = m.expandExpr(n.Cond); err == nil {
			if n.Then, err = m.expandStmts(n.Then); err == nil && n.Else != nil {
				n.Else, err = m.expandStmts(n.Else)
			}
		}
		case *WhileStmt:
		if n.Cond, err = m.expandExpr(n.Cond); err == nil {
			n.Body, err = m.expandStmts(n.Body)
		}
		case *ForStmt:
		if n.Iterable, err = m.expandExpr(n.Iterable); err == nil {
			n.Body, err = m.expandStmts(n.Body)
		}
		case *MatchStmt:
		if n.Scrutinee, err = m.expandExpr(n.Scrutinee); err == nil {
			for i := range n.Arms {
				if n.Arms[i].Body, err = m.expandStmts(n.Arms[i].Body); err != nil {
					break
				}
			}
		}
		case *UnsafeStmt:
		n.Body, err = m.expandStmts(n.Body)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *MacroExpander) expandExprInPlace(e *Expr) error {
	ex, err := m.expandExpr(*e)
	if err != nil {
		return err
	}
	*e = ex
	return nil
}

func (m *MacroExpander) expandExpr(e Expr) (Expr, error) {
	switch n := e.(type) {
		case *MacroInvokeExpr:
		result, err := m.expandInvocation(n)
		if err != nil {
			return nil, err
		}
		return m.expandExpr(result)
		case *CallExpr:
		if err := m.expandExprInPlace(&n.Callee); err != nil {
			return nil, err
		}
		for i := range n.Args {
			if err := m.expandExprInPlace(&n.Args[i]); err != nil {
				return nil, err
			}
		}
		case *BinaryExpr:
		if err := m.expandExprInPlace(&n.Left); err != nil {
			return nil, err
		}
		if err := m.expandExprInPlace(&n.Right); err != nil {
			return nil, err
		}
		case *UnaryExpr:
		return n, m.expandExprInPlace(&n.Operand)
		case *IndexExpr:
		if err := m.expandExprInPlace(&n.Array); err != nil {
			return nil, err
		}
		return n, m.expandExprInPlace(&n.Index)
		case *FieldAccessExpr:
		return n, m.expandExprInPlace(&n.Object)
		case *StructLiteralExpr:
		for i := range n.Fields {
			if err := m.expandExprInPlace(&n.Fields[i].Value); err != nil {
				return nil, err
			}
		}
		case *ReferenceExpr:
		return n, m.expandExprInPlace(&n.Inner)
		case *DerefExpr:
		return n, m.expandExprInPlace(&n.Inner)
		case *QuestionExpr:
		return n, m.expandExprInPlace(&n.Inner)
		case *AwaitExpr:
		return n, m.expandExprInPlace(&n.Inner)
		case *ArrayLiteralExpr:
		for i := range n.Elems {
			if err := m.expandExprInPlace(&n.Elems[i]); err != nil {
				return nil, err
			}
		}
		case *ArrayRepeatExpr:
		if err := m.expandExprInPlace(&n.Value); err != nil {
			return nil, err
		}
		return n, m.expandExprInPlace(&n.Count)
	}
	return e, nil
}

// bindings holds what a macro invocation's tokens matched against its
// pattern: single captures bind one token run each; repeated captures
// (those nested inside a `$(...)` group) bind one token run per
// repetition.
type bindings struct {
	single map[string][]Token
	repeated map[string][][]Token
}

func newBindings() *bindings {
	return &bindings{single: make(map[string][]Token), repeated: make(map[string][][]Token)}
}

func (m *MacroExpander) expandInvocation(inv *MacroInvokeExpr) (Expr, error) {
	mac, ok := m.macros[inv.Name]
	if !ok {
		return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("no macro named `%s!`", inv.Name), Span: inv.sp}
	}
	b := newBindings()
	rest, err := matchPattern(mac.Pattern, inv.Tokens, b)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("`%s!` invocation has trailing tokens that do not match its pattern", inv.Name), Span: inv.sp}
	}

	out, err := substitute(mac.Body, b)
	if err != nil {
		return nil, err
	}

	// The substituted tokens are handed to the parser as they are; they
	// are not re-serialized to text or re-lexed.
	p := NewParser(append(out, Token{Kind: TokEOF}))
	return p.parseExpr()
}

// matchPattern consumes a prefix of toks matching elems and returns the
// unconsumed remainder.
func matchPattern(elems []PatternElem, toks []Token, b *bindings) ([]Token, error) {
	for _, elem := range elems {
		var err error
		toks, err = matchOne(elem, toks, b)
		if err != nil {
			return nil, err
		}
	}
	return toks, nil
}

func matchOne(elem PatternElem, toks []Token, b *bindings) ([]Token, error) {
	switch {
		case elem.Literal != "":
		if len(toks) == 0 || toks[0].Text != elem.Literal {
			return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("expected literal token `%s` in macro invocation", elem.Literal)}
		}
		return toks[1:], nil
		case elem.Capture != nil:
		run, rest, err := captureOne(elem.Capture.Kind, toks)
		if err != nil {
			return nil, err
		}
		b.single[elem.Capture.Name] = run
		return rest, nil
		case elem.Repeat != nil:
		return matchRepeat(*elem.Repeat, toks, b)
	}
	return toks, nil
}

// captureOne consumes one capture's worth of tokens according to kind.
// identifier/literal/tt captures consume exactly one token (or one
// balanced group for tt); expr/stmt/ty/pat captures consume a balanced
// token run up to (but not including) the next top-level comma or
// closing delimiter, since those are the only separators pd macro
// patterns use between captures.
func captureOne(kind CaptureKind, toks []Token) ([]Token, []Token, error) {
	if len(toks) == 0 {
		return nil, nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: "macro invocation ended while a capture was still expected"}
	}
	switch kind {
		case CaptureIdentifier:
		if toks[0].Kind != TokIdentifier {
			return nil, nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("expected an identifier capture, found %q", toks[0].Text)}
		}
		return toks[:1], toks[1:], nil
		case CaptureLiteral:
		if toks[0].Kind != TokInteger && toks[0].Kind != TokString &&
		!(toks[0].Kind == TokKeyword && (toks[0].Text == "true" || toks[0].Text == "false")) {
			return nil, nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("expected a literal capture, found %q", toks[0].Text)}
		}
		return toks[:1], toks[1:], nil
		case CaptureTokenTree:
		if isOpenDelim(toks[0].Text) {
			return captureBalancedGroup(toks)
		}
		return toks[:1], toks[1:], nil
		default: // expr, stmt, ty, pat: a balanced run stopping at top-level `,` or a closer
		i := 0
		depth := 0
		for i < len(toks) {
			t := toks[i]
			if depth == 0 && (t.Text == "," || isCloseDelim(t.Text)) {
				break
			}
			if isOpenDelim(t.Text) {
				depth++
			} else if isCloseDelim(t.Text) {
				depth--
			}
			i++
		}
		if i == 0 {
			return nil, nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: "expected a capture but found none"}
		}
		return toks[:i], toks[i:], nil
	}
}

func isOpenDelim(s string) bool { return s == "(" || s == "[" || s == "{" }
func isCloseDelim(s string) bool { return s == ")" || s == "]" || s == "}" }

func captureBalancedGroup(toks []Token) ([]Token, []Token, error) {
	open := toks[0].Text
	closer := map[string]string{"(": ")", "[": "]", "{": "}"}[open]
	depth := 0
	for i, t := range toks {
		if t.Text == open {
			depth++
		} else if t.Text == closer {
			depth--
			if depth == 0 {
				return toks[:i+1], toks[i+1:], nil
			}
		}
	}
	return nil, nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("unbalanced `%s` in macro invocation", open)}
}

// matchRepeat matches the inner elems zero or more times, separated by
// Separator (if any), against toks, recording each iteration's captures
// under their names in b.repeated.
func matchRepeat(r RepeatSpec, toks []Token, b *bindings) ([]Token, error) {
	count := 0
	for {
		if r.Separator != "" && count > 0 {
			if len(toks) == 0 || toks[0].Text != r.Separator {
				break
			}
		}
		attempt := toks
		if r.Separator != "" && count > 0 {
			attempt = toks[1:]
		}
		iter := newBindings()
		rest, err := matchPatternBestEffort(r.Elems, attempt, iter)
		if err != nil {
			break
		}
		toks = rest
		count++
		for name, run := range iter.single {
			b.repeated[name] = append(b.repeated[name], run)
		}
	}
	if r.Quant == QuantOneOrMore && count == 0 {
		return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: "macro repetition requires at least one repetition but found none"}
	}
	return toks, nil
}

// matchPatternBestEffort is matchPattern under the name matchRepeat uses:
// matchRepeat treats its error as "stop repeating" rather than as a hard
// match failure.
func matchPatternBestEffort(elems []PatternElem, toks []Token, b *bindings) ([]Token, error) {
	return matchPattern(elems, toks, b)
}

// substitute walks a macro body's token stream, replacing `$name`
// references with their bound tokens and expanding `$(...)<sep><quant>`
// groups once per recorded repetition.
func substitute(body []Token, b *bindings) ([]Token, error) {
	var out []Token
	for i := 0; i < len(body); i++ {
		t := body[i]
		if t.Text == "$" && i+1 < len(body) {
			next := body[i+1]
			if next.Text == "(" {
				depth := 1
				j := i + 2
				for j < len(body) && depth > 0 {
					if body[j].Text == "(" {
						depth++
					} else if body[j].Text == ")" {
						depth--
					}
					j++
				}
				inner := body[i+2 : j-1]
				sep := ""
				k := j
				if k < len(body) && body[k].Text != "*" && body[k].Text != "+" && body[k].Text != "?" {
					sep = body[k].Text
					k++
				}
				// Skip the quantifier token itself.
				if k < len(body) {
					k++
				}
				n := repeatCountFor(inner, b)
				for rep := 0; rep < n; rep++ {
					if rep > 0 && sep != "" {
						out = append(out, Token{Kind: TokPunct, Text: sep})
					}
					sub := bindingsForRepetition(b, rep)
					expanded, err := substitute(inner, sub)
					if err != nil {
						return nil, err
					}
					out = append(out, expanded...)
				}
				i = k - 1
				continue
			}
			if next.Kind == TokIdentifier {
				run, ok := b.single[next.Text]
				if !ok {
					return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("macro body references unbound capture `$%s`", next.Text)}
				}
				out = append(out, run...)
				i++
				continue
			}
		}
		out = append(out, t)
	}
	return out, nil
}

func repeatCountFor(inner []Token, b *bindings) int {
	for _, t := range inner {
		if t.Kind == TokIdentifier {
			if reps, ok := b.repeated[t.Text]; ok {
				return len(reps)
			}
		}
	}
	return 0
}

func bindingsForRepetition(b *bindings, idx int) *bindings {
	sub := newBindings()
	for name, runs := range b.repeated {
		if idx < len(runs) {
			sub.single[name] = runs[idx]
		}
	}
	for name, run := range b.single {
		sub.single[name] = run
	}
	return sub
}
