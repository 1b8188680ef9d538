package pdc

import "fmt"

// Parser is a recursive-descent parser with precedence climbing over the
// expression grammar. Grounded on the reference code's
// grammar_parser.go shape (a token-cursor struct with one method per
// production) generalized from PEG-grammar syntax to pd's Rust-like
// surface syntax.
type Parser struct {
	toks []Token
	pos int
}

func NewParser(toks []Token) *Parser {
	return &Parser{toks: toks}
}

// ParseSource is a convenience entry point: lex then parse.
func ParseSource(source string) (*Program, error) {
	lx := NewLexer(source)
	toks, err := lx.Tokenize()
	if err != nil {
		return nil, err
	}
	return NewParser(toks).ParseProgram()
}

func (p *Parser) cur() Token { return p.toks[p.pos] }
func (p *Parser) atEOF() bool { return p.cur().Kind == TokEOF }

func (p *Parser) peekIs(kind TokenKind, text string) bool {
	t := p.cur()
	return t.Kind == kind && (text == "" || t.Text == text)
}

func (p *Parser) peekPunct(text string) bool { return p.peekIs(TokPunct, text) }
func (p *Parser) peekKeyword(text string) bool { return p.peekIs(TokKeyword, text) }

func (p *Parser) advance() Token {
	t := p.cur()
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) expectPunct(text string) (Token, error) {
	if p.peekPunct(text) {
		return p.advance(), nil
	}
	return p.unexpected(text)
}

func (p *Parser) expectKeyword(text string) (Token, error) {
	if p.peekKeyword(text) {
		return p.advance(), nil
	}
	return p.unexpected(text)
}

func (p *Parser) expectIdent() (string, Span, error) {
	if p.cur().Kind == TokIdentifier {
		t := p.advance()
		return t.Text, t.Span, nil
	}
	_, err := p.unexpected("identifier")
	return "", Span{}, err
}

func (p *Parser) unexpected(expected string) (Token, error) {
	t := p.cur()
	if t.Kind == TokEOF {
		return Token{}, &Diagnostic{
			Kind: KindUnexpectedEOF,
			Message: fmt.Sprintf("unexpected end of input, expected %s", expected),
			Span: t.Span,
		}
	}
	return Token{}, &Diagnostic{
		Kind: KindUnexpectedToken,
		Message: fmt.Sprintf("expected %s but found %q", expected, t.Text),
		Span: t.Span,
	}
}

// ---- Program / Imports / Items ----

func (p *Parser) ParseProgram() (*Program, error) {
	start := p.cur().Span
	var imports []*Import
	for p.peekKeyword("import") {
		im, err := p.parseImport()
		if err != nil {
			return nil, err
		}
		imports = append(imports, im)
	}

	var items []Item
	for !p.atEOF() {
		item, err := p.parseItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	end := start
	if len(items) > 0 {
		end = items[len(items)-1].Span()
	}
	return &Program{Imports: imports, Items: items, sp: start.Merge(end)}, nil
}

func (p *Parser) parseImport() (*Import, error) {
	start, err := p.expectKeyword("import")
	if err != nil {
		return nil, err
	}
	var path []string
	for {
		name, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		path = append(path, name)
		if p.peekPunct("::") {
			p.advance()
			continue
		}
		break
	}

	im := &Import{Path: path}
	switch {
		case p.peekPunct("*"):
		p.advance()
		im.Wildcard = true
		case p.peekPunct("{"):
		p.advance()
		for !p.peekPunct("}") {
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			im.Items = append(im.Items, name)
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		if _, err := p.expectPunct("}"); err != nil {
			return nil, err
		}
	}

	if p.peekKeyword("as") || p.peekIs(TokIdentifier, "as") {
		p.advance()
		alias, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		im.Alias = alias
	}

	end, err := p.expectPunct(";")
	if err != nil {
		return nil, err
	}
	im.sp = start.Span.Merge(end.Span)
	return im, nil
}

func (p *Parser) parseItem() (Item, error) {
	vis := Private
	start := p.cur().Span
	if p.peekKeyword("pub") {
		p.advance()
		vis = Public
	}

	switch {
		case p.peekKeyword("fn"):
		return p.parseFunction(vis, start, false)
		case p.peekKeyword("async"):
		p.advance()
		if !p.peekKeyword("fn") {
			return nil, &Diagnostic{Kind: KindUnexpectedToken, Message: "`async` is only legal before `fn`", Span: p.cur().Span}
		}
		return p.parseFunction(vis, start, true)
		case p.peekKeyword("unsafe"):
		p.advance()
		if !p.peekKeyword("fn") {
			return nil, &Diagnostic{Kind: KindUnexpectedToken, Message: "`unsafe` before an item is only legal before `fn`", Span: p.cur().Span}
		}
		fn, err := p.parseFunction(vis, start, false)
		if err != nil {
			return nil, err
		}
		fn.IsUnsafe = true
		return fn, nil
		case p.peekKeyword("struct"):
		return p.parseStruct(vis, start)
		case p.peekKeyword("enum"):
		return p.parseEnum(vis, start)
		case p.peekKeyword("trait"):
		return p.parseTrait(vis, start)
		case p.peekKeyword("impl"):
		return p.parseImpl(vis, start)
		case p.peekKeyword("type"):
		return p.parseTypeAlias(vis, start)
		case p.peekKeyword("macro"):
		return p.parseMacro(vis, start)
		default:
		return nil, &Diagnostic{Kind: KindUnexpectedToken, Message: "expected an item (fn, struct, enum, trait, impl, type, or macro)", Span: p.cur().Span}
	}
}

// parseParamLists parses the trailing `<'a, T, const N: i32>` clause
// shared by Function/Struct/Enum/TypeAlias, returning lifetimes, type
// params, and const params separately.
func (p *Parser) parseParamLists() ([]string, []string, []ConstParam, error) {
	var lifetimes, typeParams []string
	var constParams []ConstParam
	if !p.peekPunct("<") {
		return nil, nil, nil, nil
	}
	p.advance()
	for !p.peekPunct(">") {
		switch {
			case p.peekPunct("'"):
			p.advance()
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, nil, nil, err
			}
			lifetimes = append(lifetimes, "'"+name)
			case p.peekIs(TokIdentifier, "const"):
			p.advance()
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, nil, nil, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return nil, nil, nil, err
			}
			ty, err := p.parseType()
			if err != nil {
				return nil, nil, nil, err
			}
			constParams = append(constParams, ConstParam{Name: name, Type: ty})
			default:
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, nil, nil, err
			}
			typeParams = append(typeParams, name)
		}
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(">"); err != nil {
		return nil, nil, nil, err
	}
	return lifetimes, typeParams, constParams, nil
}

func (p *Parser) parseFunction(vis Visibility, start Span, isAsync bool) (*Function, error) {
	if _, err := p.expectKeyword("fn"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	lifetimes, typeParams, constParams, err := p.parseParamLists()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	var params []Param
	for !p.peekPunct(")") {
		mutable := false
		if p.peekKeyword("mut") {
			p.advance()
			mutable = true
		}
		pname, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		pty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		params = append(params, Param{Name: pname, Type: pty, Mutable: mutable})
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}

	var ret TypeExpr
	if p.peekPunct("->") {
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}

	body, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	return &Function{
		NameV: name, VisV: vis, Lifetimes: lifetimes, TypeParams: typeParams,
		ConstParams: constParams, Params: params, Return: ret, Body: body,
		IsAsync: isAsync, sp: start.Merge(end),
	}, nil
}

func (p *Parser) parseBlock() ([]Stmt, Span, error) {
	open, err := p.expectPunct("{")
	if err != nil {
		return nil, Span{}, err
	}
	var stmts []Stmt
	for !p.peekPunct("}") {
		s, err := p.parseStatement()
		if err != nil {
			return nil, Span{}, err
		}
		stmts = append(stmts, s)
	}
	close, err := p.expectPunct("}")
	if err != nil {
		return nil, Span{}, err
	}
	return stmts, open.Span.Merge(close.Span), nil
}

func (p *Parser) parseStruct(vis Visibility, start Span) (*Struct, error) {
	if _, err := p.expectKeyword("struct"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	lifetimes, typeParams, constParams, err := p.parseParamLists()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var fields []Field
	for !p.peekPunct("}") {
		fname, fsp, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		fty, err := p.parseType()
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: fname, Type: fty, sp: fsp.Merge(fty.Span())})
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return &Struct{
		NameV: name, VisV: vis, Lifetimes: lifetimes, TypeParams: typeParams,
		ConstParams: constParams, Fields: fields, sp: start.Merge(end.Span),
	}, nil
}

func (p *Parser) parseEnum(vis Visibility, start Span) (*Enum, error) {
	if _, err := p.expectKeyword("enum"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	lifetimes, typeParams, constParams, err := p.parseParamLists()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var variants []Variant
	for !p.peekPunct("}") {
		v, err := p.parseVariant()
		if err != nil {
			return nil, err
		}
		variants = append(variants, v)
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return &Enum{
		NameV: name, VisV: vis, Lifetimes: lifetimes, TypeParams: typeParams,
		ConstParams: constParams, Variants: variants, sp: start.Merge(end.Span),
	}, nil
}

func (p *Parser) parseVariant() (Variant, error) {
	name, vsp, err := p.expectIdent()
	if err != nil {
		return Variant{}, err
	}
	switch {
		case p.peekPunct("("):
		p.advance()
		var tys []TypeExpr
		for !p.peekPunct(")") {
			ty, err := p.parseType()
			if err != nil {
				return Variant{}, err
			}
			tys = append(tys, ty)
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		end, err := p.expectPunct(")")
		if err != nil {
			return Variant{}, err
		}
		return Variant{Name: name, Shape: VariantTuple, Tuple: tys, sp: vsp.Merge(end.Span)}, nil
		case p.peekPunct("{"):
		p.advance()
		var fields []Field
		for !p.peekPunct("}") {
			fname, fsp, err := p.expectIdent()
			if err != nil {
				return Variant{}, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return Variant{}, err
			}
			fty, err := p.parseType()
			if err != nil {
				return Variant{}, err
			}
			fields = append(fields, Field{Name: fname, Type: fty, sp: fsp.Merge(fty.Span())})
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		end, err := p.expectPunct("}")
		if err != nil {
			return Variant{}, err
		}
		return Variant{Name: name, Shape: VariantNamed, Fields: fields, sp: vsp.Merge(end.Span)}, nil
		default:
		return Variant{Name: name, Shape: VariantUnit, sp: vsp}, nil
	}
}

func (p *Parser) parseTrait(vis Visibility, start Span) (*Trait, error) {
	if _, err := p.expectKeyword("trait"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	_, typeParams, _, err := p.parseParamLists()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var methods []TraitMethod
	for !p.peekPunct("}") {
		m, err := p.parseTraitMethod()
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return &Trait{NameV: name, VisV: vis, TypeParams: typeParams, Methods: methods, sp: start.Merge(end.Span)}, nil
}

func (p *Parser) parseTraitMethod() (TraitMethod, error) {
	start := p.cur().Span
	isAsync := false
	if p.peekKeyword("async") {
		p.advance()
		isAsync = true
	}
	if _, err := p.expectKeyword("fn"); err != nil {
		return TraitMethod{}, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return TraitMethod{}, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return TraitMethod{}, err
	}
	var params []Param
	for !p.peekPunct(")") {
		mutable := false
		if p.peekKeyword("mut") {
			p.advance()
			mutable = true
		}
		pname, _, err := p.expectIdent()
		if err != nil {
			return TraitMethod{}, err
		}
		if _, err := p.expectPunct(":"); err != nil {
			return TraitMethod{}, err
		}
		pty, err := p.parseType()
		if err != nil {
			return TraitMethod{}, err
		}
		params = append(params, Param{Name: pname, Type: pty, Mutable: mutable})
		if p.peekPunct(",") {
			p.advance()
			continue
		}
		break
	}
	if _, err := p.expectPunct(")"); err != nil {
		return TraitMethod{}, err
	}
	var ret TypeExpr
	if p.peekPunct("->") {
		p.advance()
		ret, err = p.parseType()
		if err != nil {
			return TraitMethod{}, err
		}
	}
	end := start
	var defaultBody []Stmt
	if p.peekPunct("{") {
		var bsp Span
		defaultBody, bsp, err = p.parseBlock()
		if err != nil {
			return TraitMethod{}, err
		}
		end = bsp
	} else {
		t, err := p.expectPunct(";")
		if err != nil {
			return TraitMethod{}, err
		}
		end = t.Span
	}
	return TraitMethod{NameV: name, Params: params, Return: ret, Default: defaultBody, IsAsync: isAsync, sp: start.Merge(end)}, nil
}

func (p *Parser) parseImpl(vis Visibility, start Span) (*Impl, error) {
	if _, err := p.expectKeyword("impl"); err != nil {
		return nil, err
	}
	first, err := p.parseType()
	if err != nil {
		return nil, err
	}
	traitName := ""
	target := first
	if p.peekKeyword("for") || p.peekIs(TokIdentifier, "for") {
		p.advance()
		traitName = TypeString(first)
		target, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var methods []*Function
	for !p.peekPunct("}") {
		mstart := p.cur().Span
		isAsync := false
		if p.peekKeyword("async") {
			p.advance()
			isAsync = true
		}
		m, err := p.parseFunction(Public, mstart, isAsync)
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return &Impl{VisV: vis, Trait: traitName, TargetType: target, Methods: methods, sp: start.Merge(end.Span)}, nil
}

func (p *Parser) parseTypeAlias(vis Visibility, start Span) (*TypeAlias, error) {
	if _, err := p.expectKeyword("type"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	_, typeParams, _, err := p.parseParamLists()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	rhs, err := p.parseType()
	if err != nil {
		return nil, err
	}
	end, err := p.expectPunct(";")
	if err != nil {
		return nil, err
	}
	return &TypeAlias{NameV: name, VisV: vis, TypeParams: typeParams, RHS: rhs, sp: start.Merge(end.Span)}, nil
}

func (p *Parser) parseMacro(vis Visibility, start Span) (*Macro, error) {
	if _, err := p.expectKeyword("macro"); err != nil {
		return nil, err
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("("); err != nil {
		return nil, err
	}
	pattern, err := p.parseMacroPattern()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("=>"); err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var body []Token
	depth := 1
	for depth > 0 {
		if p.atEOF() {
			return nil, &Diagnostic{Kind: KindUnexpectedEOF, Message: "unterminated macro body", Span: p.cur().Span}
		}
		t := p.advance()
		switch t.Text {
			case "{":
			depth++
			case "}":
			depth--
			if depth == 0 {
				return &Macro{NameV: name, VisV: vis, Pattern: pattern, Body: body, sp: start.Merge(t.Span)}, nil
			}
		}
		body = append(body, t)
	}
	return nil, &Diagnostic{Kind: KindUnexpectedEOF, Message: "unterminated macro body", Span: p.cur().Span}
}

// parseMacroPattern parses a sequence of pattern elements until `)`
// : literal tokens, `$name:kind` captures, and
// `$(...)<sep><quant>` repetitions. Nested repetitions are rejected.
func (p *Parser) parseMacroPattern() ([]PatternElem, error) {
	return p.parseMacroPatternElems(false)
}

func (p *Parser) parseMacroPatternElems(insideRepeat bool) ([]PatternElem, error) {
	var elems []PatternElem
	for !p.peekPunct(")") {
		if p.peekPunct("$") {
			p.advance()
			if p.peekPunct("(") {
				if insideRepeat {
					return nil, &Diagnostic{Kind: KindMacroMatchFailure, Message: "nested macro repetitions are not supported", Span: p.cur().Span}
				}
				p.advance()
				inner, err := p.parseMacroPatternElems(true)
				if err != nil {
					return nil, err
				}
				if _, err := p.expectPunct(")"); err != nil {
					return nil, err
				}
				sep := ""
				if !p.peekPunct("*") && !p.peekPunct("+") && !p.peekPunct("?") {
					sep = p.advance().Text
				}
				quant := QuantZeroOrMore
				switch {
					case p.peekPunct("*"):
					p.advance()
					quant = QuantZeroOrMore
					case p.peekPunct("+"):
					p.advance()
					quant = QuantOneOrMore
					case p.peekPunct("?"):
					p.advance()
					quant = QuantZeroOrOne
				}
				elems = append(elems, PatternElem{Repeat: &RepeatSpec{Elems: inner, Separator: sep, Quant: quant}})
				continue
			}
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			kindName, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			kind, err := captureKindFromName(kindName)
			if err != nil {
				return nil, err
			}
			elems = append(elems, PatternElem{Capture: &CaptureSpec{Name: name, Kind: kind}})
			continue
		}
		if insideRepeat && p.peekPunct(")") {
			break
		}
		t := p.advance()
		elems = append(elems, PatternElem{Literal: t.Text})
	}
	return elems, nil
}

func captureKindFromName(name string) (CaptureKind, error) {
	switch name {
		case "ident":
		return CaptureIdentifier, nil
		case "literal":
		return CaptureLiteral, nil
		case "expr":
		return CaptureExpression, nil
		case "stmt":
		return CaptureStatement, nil
		case "ty":
		return CaptureType, nil
		case "pat":
		return CapturePattern, nil
		case "tt":
		return CaptureTokenTree, nil
		default:
		return 0, &Diagnostic{Kind: KindMacroMatchFailure, Message: fmt.Sprintf("unknown macro capture kind %q", name)}
	}
}

// ---- Types ----

func (p *Parser) parseType() (TypeExpr, error) {
	start := p.cur().Span
	switch {
		case p.peekPunct("&"):
		p.advance()
		lifetime := ""
		if p.peekPunct("'") {
			p.advance()
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			lifetime = "'" + name
		}
		mutable := false
		if p.peekKeyword("mut") {
			p.advance()
			mutable = true
		}
		inner, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return &ReferenceType{Lifetime: lifetime, Mutable: mutable, Inner: inner, sp: start.Merge(inner.Span())}, nil
		case p.peekPunct("["):
		p.advance()
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(";"); err != nil {
			return nil, err
		}
		var size ArraySize
		if p.cur().Kind == TokInteger {
			size.Literal = p.advance().Int
		} else {
			name, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			size.ConstRef = name
		}
		end, err := p.expectPunct("]")
		if err != nil {
			return nil, err
		}
		return &ArrayType{Elem: elem, Size: size, sp: start.Merge(end.Span)}, nil
		case p.peekPunct("("):
		p.advance()
		end, err := p.expectPunct(")")
		if err != nil {
			return nil, err
		}
		return &UnitType{sp: start.Merge(end.Span)}, nil
		case p.peekKeyword("bool"):
		t := p.advance()
		return &BoolType{sp: t.Span}, nil
		case p.peekKeyword("String"):
		t := p.advance()
		return &StringType{sp: t.Span}, nil
		case p.peekKeyword("i32"), p.peekKeyword("i64"), p.peekKeyword("u32"), p.peekKeyword("u64"):
		t := p.advance()
		return &IntType{Width: intWidthFromName(t.Text), sp: t.Span}, nil
		default:
		name, nsp, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if name == "Future" && p.peekPunct("<") {
			p.advance()
			out, err := p.parseType()
			if err != nil {
				return nil, err
			}
			end, err := p.expectPunct(">")
			if err != nil {
				return nil, err
			}
			return &FutureType{Output: out, sp: nsp.Merge(end.Span)}, nil
		}
		if p.peekPunct("<") {
			p.advance()
			var args []GenericArg
			for !p.peekPunct(">") {
				if p.cur().Kind == TokInteger {
					args = append(args, GenericArg{Const: p.advance().Int, IsConstArg: true})
				} else if p.cur().Kind == TokIdentifier && isAllUpper(p.cur().Text) {
					// An uppercase-only identifier inside <...> is a
					// const argument reference.
					args = append(args, GenericArg{Const: 0, IsConstArg: true, Type: &CustomType{NameV: p.advance().Text}})
				} else {
					ty, err := p.parseType()
					if err != nil {
						return nil, err
					}
					args = append(args, GenericArg{Type: ty})
				}
				if p.peekPunct(",") {
					p.advance()
					continue
				}
				break
			}
			end, err := p.expectPunct(">")
			if err != nil {
				return nil, err
			}
			return &GenericType{NameV: name, Args: args, sp: nsp.Merge(end.Span)}, nil
		}
		// Disambiguated later by the checker using the in-scope type
		// parameter set (: TypeParam vs Custom).
		return &CustomType{NameV: name, sp: nsp}, nil
	}
}

func isAllUpper(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r >= 'a' && r <= 'z' {
			return false
		}
	}
	return true
}

func intWidthFromName(name string) IntWidth {
	switch name {
		case "i32":
		return I32
		case "i64":
		return I64
		case "u32":
		return U32
		default:
		return U64
	}
}

// ---- Statements ----

func (p *Parser) parseStatement() (Stmt, error) {
	start := p.cur().Span
	switch {
		case p.peekKeyword("let"):
		return p.parseLet(start)
		case p.peekKeyword("return"):
		p.advance()
		if p.peekPunct(";") {
			end := p.advance()
			return &ReturnStmt{sp: start.Merge(end.Span)}, nil
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expectPunct(";")
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: val, sp: start.Merge(end.Span)}, nil
		case p.peekKeyword("if"):
		return p.parseIf()
		case p.peekKeyword("while"):
		return p.parseWhile()
		case p.peekKeyword("for"):
		return p.parseFor()
		case p.peekKeyword("break"):
		p.advance()
		end, err := p.expectPunct(";")
		if err != nil {
			return nil, err
		}
		return &BreakStmt{sp: start.Merge(end.Span)}, nil
		case p.peekKeyword("continue"):
		p.advance()
		end, err := p.expectPunct(";")
		if err != nil {
			return nil, err
		}
		return &ContinueStmt{sp: start.Merge(end.Span)}, nil
		case p.peekKeyword("match"):
		return p.parseMatch()
		case p.peekKeyword("unsafe"):
		p.advance()
		body, end, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &UnsafeStmt{Body: body, sp: start.Merge(end)}, nil
		default:
		return p.parseExprOrAssignStatement()
	}
}

func (p *Parser) parseLet(start Span) (Stmt, error) {
	p.advance()
	mutable := false
	if p.peekKeyword("mut") {
		p.advance()
		mutable = true
	}
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	var annotation TypeExpr
	if p.peekPunct(":") {
		p.advance()
		annotation, err = p.parseType()
		if err != nil {
			return nil, err
		}
	}
	if _, err := p.expectPunct("="); err != nil {
		return nil, err
	}
	init, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	end, err := p.expectPunct(";")
	if err != nil {
		return nil, err
	}
	return &LetStmt{Name: name, Annotation: annotation, Init: init, Mutable: mutable, sp: start.Merge(end.Span)}, nil
}

func (p *Parser) parseIf() (Stmt, error) {
	start := p.cur().Span
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	then, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var elseBody []Stmt
	if p.peekKeyword("else") {
		p.advance()
		if p.peekKeyword("if") {
			elif, err := p.parseIf()
			if err != nil {
				return nil, err
			}
			elseBody = []Stmt{elif}
			end = elif.Span()
		} else {
			var esp Span
			elseBody, esp, err = p.parseBlock()
			if err != nil {
				return nil, err
			}
			end = esp
		}
	}
	return &IfStmt{Cond: cond, Then: then, Else: elseBody, sp: start.Merge(end)}, nil
}

func (p *Parser) parseWhile() (Stmt, error) {
	start := p.cur().Span
	p.advance()
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &WhileStmt{Cond: cond, Body: body, sp: start.Merge(end)}, nil
}

func (p *Parser) parseFor() (Stmt, error) {
	start := p.cur().Span
	p.advance()
	name, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectKeyword("in"); err != nil {
		if !p.peekIs(TokIdentifier, "in") {
			return nil, err
		}
		p.advance()
	}
	iter, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	body, end, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ForStmt{Binding: name, Iterable: iter, Body: body, sp: start.Merge(end)}, nil
}

func (p *Parser) parseMatch() (Stmt, error) {
	start := p.cur().Span
	p.advance()
	scrutinee, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if _, err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	var arms []MatchArm
	for !p.peekPunct("}") {
		arm, err := p.parseMatchArm()
		if err != nil {
			return nil, err
		}
		arms = append(arms, arm)
		if p.peekPunct(",") {
			p.advance()
		}
	}
	end, err := p.expectPunct("}")
	if err != nil {
		return nil, err
	}
	return &MatchStmt{Scrutinee: scrutinee, Arms: arms, sp: start.Merge(end.Span)}, nil
}

func (p *Parser) parseMatchArm() (MatchArm, error) {
	start := p.cur().Span
	pat, err := p.parsePattern()
	if err != nil {
		return MatchArm{}, err
	}
	if _, err := p.expectPunct("=>"); err != nil {
		return MatchArm{}, err
	}
	var body []Stmt
	var end Span
	if p.peekPunct("{") {
		body, end, err = p.parseBlock()
		if err != nil {
			return MatchArm{}, err
		}
	} else {
		e, err := p.parseExpr()
		if err != nil {
			return MatchArm{}, err
		}
		body = []Stmt{&ExprStmt{Expr: e, sp: e.Span()}}
		end = e.Span()
	}
	return MatchArm{Pattern: pat, Body: body, sp: start.Merge(end)}, nil
}

func (p *Parser) parsePattern() (Pattern, error) {
	start := p.cur().Span
	if p.peekIs(TokIdentifier, "_") {
		p.advance()
		return &WildcardPattern{sp: start}, nil
	}
	name, nsp, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if !p.peekPunct("::") {
		return &IdentifierPattern{Name: name, sp: nsp}, nil
	}
	p.advance()
	variant, _, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ep := &EnumPattern{Enum: name, Variant: variant, sp: nsp}
	switch {
		case p.peekPunct("("):
		p.advance()
		for !p.peekPunct(")") {
			sub, err := p.parsePattern()
			if err != nil {
				return nil, err
			}
			ep.Tuple = append(ep.Tuple, sub)
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		end, err := p.expectPunct(")")
		if err != nil {
			return nil, err
		}
		ep.Shape = SubPatternTuple
		ep.sp = ep.sp.Merge(end.Span)
		case p.peekPunct("{"):
		p.advance()
		for !p.peekPunct("}") {
			fname, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			sub := Pattern(&IdentifierPattern{Name: fname})
			if p.peekPunct(":") {
				p.advance()
				sub, err = p.parsePattern()
				if err != nil {
					return nil, err
				}
			}
			ep.Named = append(ep.Named, NamedSubPattern{Field: fname, Pattern: sub})
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		end, err := p.expectPunct("}")
		if err != nil {
			return nil, err
		}
		ep.Shape = SubPatternNamed
		ep.sp = ep.sp.Merge(end.Span)
	}
	return ep, nil
}

// parseExprOrAssignStatement implements the assignment-disambiguation
// rule of : parse an expression, and if `=` follows (and it
// isn't `==`), require the LHS to be a valid assignment target.
func (p *Parser) parseExprOrAssignStatement() (Stmt, error) {
	start := p.cur().Span
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peekPunct("=") {
		if !isAssignTarget(e) {
			return nil, &Diagnostic{Kind: KindUnexpectedToken, Message: "left-hand side of `=` is not assignable", Span: e.Span()}
		}
		p.advance()
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expectPunct(";")
		if err != nil {
			return nil, err
		}
		return &AssignStmt{Target: e, Value: val, sp: start.Merge(end.Span)}, nil
	}
	end, err := p.expectPunct(";")
	if err != nil {
		return nil, err
	}
	return &ExprStmt{Expr: e, sp: start.Merge(end.Span)}, nil
}

func isAssignTarget(e Expr) bool {
	switch e.(type) {
		case *IdentExpr, *IndexExpr, *FieldAccessExpr, *DerefExpr:
		return true
		default:
		return false
	}
}

// ---- Expressions: precedence climbing ----
// range < or < and < equality < comparison < additive < multiplicative
// < unary < postfix

func (p *Parser) parseExpr() (Expr, error) { return p.parseRange() }

func (p *Parser) parseRange() (Expr, error) {
	left, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.peekPunct("..") {
		p.advance()
		right, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		return &RangeExpr{Start: left, End: right, sp: left.Span().Merge(right.Span())}, nil
	}
	return left, nil
}

func (p *Parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("||") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpOr, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("&&") {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: OpAnd, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseEquality() (Expr, error) {
	left, err := p.parseComparison()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("==") || p.peekPunct("!=") {
		op := OpEq
		if p.cur().Text == "!=" {
			op = OpNe
		}
		p.advance()
		right, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("<") || p.peekPunct("<=") || p.peekPunct(">") || p.peekPunct(">=") {
		var op BinOp
		switch p.cur().Text {
			case "<":
			op = OpLt
			case "<=":
			op = OpLe
			case ">":
			op = OpGt
			default:
			op = OpGe
		}
		p.advance()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("+") || p.peekPunct("-") {
		op := OpAdd
		if p.cur().Text == "-" {
			op = OpSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.peekPunct("*") || p.peekPunct("/") || p.peekPunct("%") {
		var op BinOp
		switch p.cur().Text {
			case "*":
			op = OpMul
			case "/":
			op = OpDiv
			default:
			op = OpMod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right, sp: left.Span().Merge(right.Span())}
	}
	return left, nil
}

func (p *Parser) parseUnary() (Expr, error) {
	start := p.cur().Span
	switch {
		case p.peekPunct("-"):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNeg, Operand: operand, sp: start.Merge(operand.Span())}, nil
		case p.peekPunct("!"):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: OpNot, Operand: operand, sp: start.Merge(operand.Span())}, nil
		case p.peekPunct("&"):
		p.advance()
		mutable := false
		if p.peekKeyword("mut") {
			p.advance()
			mutable = true
		}
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ReferenceExpr{Mutable: mutable, Inner: operand, sp: start.Merge(operand.Span())}, nil
		case p.peekPunct("*"):
		p.advance()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &DerefExpr{Inner: operand, sp: start.Merge(operand.Span())}, nil
		default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() (Expr, error) {
	e, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
			case p.peekPunct("("):
			p.advance()
			var args []Expr
			for !p.peekPunct(")") {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.peekPunct(",") {
					p.advance()
					continue
				}
				break
			}
			end, err := p.expectPunct(")")
			if err != nil {
				return nil, err
			}
			e = &CallExpr{Callee: e, Args: args, sp: e.Span().Merge(end.Span)}
			case p.peekPunct("["):
			p.advance()
			idx, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			end, err := p.expectPunct("]")
			if err != nil {
				return nil, err
			}
			e = &IndexExpr{Array: e, Index: idx, sp: e.Span().Merge(end.Span)}
			case p.peekPunct("."):
			p.advance()
			if p.peekIs(TokIdentifier, "await") || p.peekKeyword("await") {
				end := p.advance()
				e = &AwaitExpr{Inner: e, sp: e.Span().Merge(end.Span)}
				continue
			}
			name, nsp, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			e = &FieldAccessExpr{Object: e, Field: name, sp: e.Span().Merge(nsp)}
			case p.peekPunct("?"):
			end := p.advance()
			e = &QuestionExpr{Inner: e, sp: e.Span().Merge(end.Span)}
			case p.peekPunct("!") && isCallLike(e):
			// macro-invoke postfix, e.g. `vec!(1, 2, 3)`
			p.advance()
			name := exprIdentName(e)
			if _, err := p.expectPunct("("); err != nil {
				return nil, err
			}
			var toks []Token
			depth := 1
			for depth > 0 {
				if p.atEOF() {
					return nil, &Diagnostic{Kind: KindUnexpectedEOF, Message: "unterminated macro invocation", Span: p.cur().Span}
				}
				t := p.advance()
				if t.Text == "(" {
					depth++
				}
				if t.Text == ")" {
					depth--
					if depth == 0 {
						e = &MacroInvokeExpr{Name: name, Tokens: toks, sp: e.Span().Merge(t.Span)}
						break
					}
				}
				toks = append(toks, t)
			}
			default:
			return e, nil
		}
	}
}

func isCallLike(e Expr) bool {
	_, ok := e.(*IdentExpr)
	return ok
}

func exprIdentName(e Expr) string {
	if id, ok := e.(*IdentExpr); ok {
		return id.Name
	}
	return ""
}

// parsePrimary recognizes literals, identifiers, struct literals,
// parenthesized expressions, and array literals/repeats.
func (p *Parser) parsePrimary() (Expr, error) {
	start := p.cur().Span
	switch {
		case p.cur().Kind == TokInteger:
		t := p.advance()
		return &LiteralExpr{Kind: LitInt, Int: t.Int, sp: t.Span}, nil
		case p.cur().Kind == TokString:
		t := p.advance()
		return &LiteralExpr{Kind: LitString, Str: t.Str, sp: t.Span}, nil
		case p.peekKeyword("true"):
		t := p.advance()
		return &LiteralExpr{Kind: LitBool, Bool: true, sp: t.Span}, nil
		case p.peekKeyword("false"):
		t := p.advance()
		return &LiteralExpr{Kind: LitBool, Bool: false, sp: t.Span}, nil
		case p.peekPunct("("):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
		case p.peekPunct("["):
		return p.parseArrayLiteralOrRepeat(start)
		case p.cur().Kind == TokIdentifier:
		return p.parseIdentLed(start)
		default:
		_, err := p.unexpected("an expression")
		return nil, err
	}
}

func (p *Parser) parseArrayLiteralOrRepeat(start Span) (Expr, error) {
	p.advance()
	if p.peekPunct("]") {
		end := p.advance()
		return &ArrayLiteralExpr{sp: start.Merge(end.Span)}, nil
	}
	first, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.peekPunct(";") {
		p.advance()
		count, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		end, err := p.expectPunct("]")
		if err != nil {
			return nil, err
		}
		return &ArrayRepeatExpr{Value: first, Count: count, sp: start.Merge(end.Span)}, nil
	}
	elems := []Expr{first}
	for p.peekPunct(",") {
		p.advance()
		if p.peekPunct("]") {
			break
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		elems = append(elems, e)
	}
	end, err := p.expectPunct("]")
	if err != nil {
		return nil, err
	}
	return &ArrayLiteralExpr{Elems: elems, sp: start.Merge(end.Span)}, nil
}

// parseIdentLed handles: plain identifiers, `Enum::Variant[(...)|{...}]`,
// and struct literals. Per `Name {` is only a struct literal
// when the brace is followed by `}` or `identifier :`.
func (p *Parser) parseIdentLed(start Span) (Expr, error) {
	name, nsp, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	if p.peekPunct("::") {
		p.advance()
		variant, _, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		ctor := &EnumCtorExpr{Enum: name, Variant: variant, sp: nsp}
		switch {
			case p.peekPunct("("):
			p.advance()
			for !p.peekPunct(")") {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				ctor.Tuple = append(ctor.Tuple, arg)
				if p.peekPunct(",") {
					p.advance()
					continue
				}
				break
			}
			end, err := p.expectPunct(")")
			if err != nil {
				return nil, err
			}
			ctor.sp = ctor.sp.Merge(end.Span)
			case p.looksLikeStructLiteralBrace():
			p.advance()
			for !p.peekPunct("}") {
				fname, _, err := p.expectIdent()
				if err != nil {
					return nil, err
				}
				if _, err := p.expectPunct(":"); err != nil {
					return nil, err
				}
				val, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				ctor.Named = append(ctor.Named, StructFieldInit{Name: fname, Value: val})
				if p.peekPunct(",") {
					p.advance()
					continue
				}
				break
			}
			end, err := p.expectPunct("}")
			if err != nil {
				return nil, err
			}
			ctor.sp = ctor.sp.Merge(end.Span)
		}
		return ctor, nil
	}

	if p.peekPunct("{") && p.looksLikeStructLiteralBrace() {
		p.advance()
		lit := &StructLiteralExpr{NameV: name, sp: nsp}
		for !p.peekPunct("}") {
			fname, _, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			if _, err := p.expectPunct(":"); err != nil {
				return nil, err
			}
			val, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			lit.Fields = append(lit.Fields, StructFieldInit{Name: fname, Value: val})
			if p.peekPunct(",") {
				p.advance()
				continue
			}
			break
		}
		end, err := p.expectPunct("}")
		if err != nil {
			return nil, err
		}
		lit.sp = lit.sp.Merge(end.Span)
		return lit, nil
	}

	return &IdentExpr{Name: name, sp: nsp}, nil
}

// looksLikeStructLiteralBrace implements disambiguation rule
// without consuming tokens: `{` is a struct literal opener only if
// followed by `}` or `identifier :`.
func (p *Parser) looksLikeStructLiteralBrace() bool {
	if !p.peekPunct("{") {
		return false
	}
	next := p.toks[p.pos+1]
	if next.Kind == TokPunct && next.Text == "}" {
		return true
	}
	if next.Kind == TokIdentifier {
		after := p.toks[p.pos+2]
		return after.Kind == TokPunct && after.Text == ":"
	}
	return false
}
