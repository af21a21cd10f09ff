package lite

import (
	"birdeels/internal/compiler"
)

type file struct {
	pkg     []token
	imports []*importStmt
	stmts   []stmt
}

// parser is a recursive descent parser over a token slice. Once it consumes
// the probe marker it sets stop and unwinds, accepting the unit as if it
// ended there.
type parser struct {
	toks []token
	i    int
	stop bool
}

func parse(tokens []token) (*file, error) {
	p := &parser{toks: tokens}
	return p.file()
}

func (p *parser) cur() token { return p.toks[p.i] }

func (p *parser) peekKind(ahead int) tokenKind {
	if p.i+ahead >= len(p.toks) {
		return tokEOF
	}
	return p.toks[p.i+ahead].kind
}

func (p *parser) at(kind tokenKind) bool { return p.cur().kind == kind }

func (p *parser) next() token {
	t := p.toks[p.i]
	if t.kind != tokEOF {
		p.i++
	}
	return t
}

func (p *parser) accept(kind tokenKind) (token, bool) {
	if p.at(kind) {
		return p.next(), true
	}
	return token{}, false
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	if p.at(kind) {
		return p.next(), nil
	}
	return token{}, p.errorf("expected %s, found %s", what, p.cur())
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return errorAt(compiler.CompileError, t.line, t.col, format, args...)
}

func (p *parser) skipNewlines() {
	for p.at(tokNewline) {
		p.next()
	}
}

// endOfStatement requires a line break unless the marker stopped parsing.
func (p *parser) endOfStatement() error {
	if p.stop || p.at(tokEOF) {
		return nil
	}
	if _, err := p.expect(tokNewline, "end of line"); err != nil {
		return err
	}
	p.skipNewlines()
	return nil
}

func (p *parser) file() (*file, error) {
	f := &file{}
	p.skipNewlines()
	if _, ok := p.accept(tokPackage); ok {
		path, err := p.dotted()
		if err != nil {
			return nil, err
		}
		f.pkg = path
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
	}
	for !p.stop && !p.at(tokEOF) {
		if p.at(tokImport) {
			imp, err := p.importStmt()
			if err != nil {
				return nil, err
			}
			f.imports = append(f.imports, imp)
		} else {
			s, err := p.topLevel()
			if err != nil {
				return nil, err
			}
			if s != nil {
				f.stmts = append(f.stmts, s)
			}
		}
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (p *parser) dotted() ([]token, error) {
	first, err := p.expect(tokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	path := []token{first}
	for p.at(tokDot) && p.peekKind(1) == tokIdent {
		p.next()
		path = append(path, p.next())
	}
	return path, nil
}

func (p *parser) importStmt() (*importStmt, error) {
	imp := &importStmt{kw: p.next()}
	path, err := p.dotted()
	if err != nil {
		return nil, err
	}
	imp.path = path
	if _, ok := p.accept(tokColon); ok {
		sym, err := p.expect(tokIdent, "imported name")
		if err != nil {
			return nil, err
		}
		imp.symbol = &sym
	}
	return imp, nil
}

func (p *parser) topLevel() (stmt, error) {
	switch p.cur().kind {
	case tokFunction, tokVirtual:
		return p.function()
	case tokClass:
		return p.class()
	case tokFuncType:
		return p.funcType()
	}
	return p.statement()
}

func (p *parser) statement() (stmt, error) {
	switch p.cur().kind {
	case tokDim, tokVal:
		return p.dim()
	case tokReturn:
		ret := &returnStmt{kw: p.next()}
		if !p.at(tokNewline) && !p.at(tokEOF) && !p.at(tokEnd) {
			value, err := p.expr()
			if err != nil {
				return nil, err
			}
			ret.value = value
		}
		return ret, nil
	}
	x, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.stop {
		return &exprStmt{x: x}, nil
	}
	if op, ok := p.accept(tokAssign); ok {
		value, err := p.expr()
		if err != nil {
			return nil, err
		}
		return &assignStmt{target: x, op: op, value: value}, nil
	}
	return &exprStmt{x: x}, nil
}

func (p *parser) dim() (*dimStmt, error) {
	d := &dimStmt{kw: p.next()}
	d.isVal = d.kw.kind == tokVal
	name, err := p.expect(tokIdent, "variable name")
	if err != nil {
		return nil, err
	}
	d.name = name
	if _, ok := p.accept(tokAs); ok {
		if d.typ, err = p.typeRef(); err != nil {
			return nil, err
		}
	}
	if _, ok := p.accept(tokAssign); ok {
		if d.init, err = p.expr(); err != nil {
			return nil, err
		}
	}
	if d.typ == nil && d.init == nil && !p.stop {
		return nil, errorAt(compiler.CompileError, name.line, name.col, "variable %s needs a type or an initial value", name.text)
	}
	if d.isVal && d.init == nil && !p.stop {
		return nil, errorAt(compiler.CompileError, name.line, name.col, "val %s needs an initial value", name.text)
	}
	return d, nil
}

func (p *parser) typeRef() (*typeRef, error) {
	if p.at(tokMarker) {
		return nil, p.errorf("expected type name, found %s", p.cur())
	}
	path, err := p.dotted()
	if err != nil {
		return nil, err
	}
	t := &typeRef{path: path}
	for p.at(tokLBracket) && p.peekKind(1) == tokRBracket {
		p.next()
		p.next()
		t.dims++
	}
	return t, nil
}

func (p *parser) params() ([]param, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var params []param
	for !p.at(tokRParen) {
		if len(params) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		name, err := p.expect(tokIdent, "parameter name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokAs, "'as'"); err != nil {
			return nil, err
		}
		typ, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		params = append(params, param{name: name, typ: typ})
	}
	p.next()
	return params, nil
}

func (p *parser) signature() (token, []param, *typeRef, error) {
	name, err := p.expect(tokIdent, "function name")
	if err != nil {
		return token{}, nil, nil, err
	}
	params, err := p.params()
	if err != nil {
		return token{}, nil, nil, err
	}
	var ret *typeRef
	if _, ok := p.accept(tokAs); ok {
		if ret, err = p.typeRef(); err != nil {
			return token{}, nil, nil, err
		}
	}
	return name, params, ret, nil
}

func (p *parser) function() (*funcDecl, error) {
	fn := &funcDecl{}
	if _, ok := p.accept(tokVirtual); ok {
		fn.virtual = true
	}
	kw, err := p.expect(tokFunction, "'function'")
	if err != nil {
		return nil, err
	}
	fn.kw = kw
	if fn.name, fn.params, fn.ret, err = p.signature(); err != nil {
		return nil, err
	}
	if err := p.endOfStatement(); err != nil {
		return nil, err
	}
	for !p.stop && !p.at(tokEnd) {
		if p.at(tokEOF) {
			return nil, p.errorf("missing 'end' of function %s", fn.name.text)
		}
		s, err := p.statement()
		if err != nil {
			return nil, err
		}
		fn.body = append(fn.body, s)
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
	}
	if !p.stop {
		p.next()
		p.accept(tokFunction)
	}
	return fn, nil
}

func (p *parser) class() (*classDecl, error) {
	c := &classDecl{kw: p.next()}
	name, err := p.expect(tokIdent, "class name")
	if err != nil {
		return nil, err
	}
	c.name = name
	if err := p.endOfStatement(); err != nil {
		return nil, err
	}
	for !p.stop && !p.at(tokEnd) {
		switch p.cur().kind {
		case tokEOF:
			return nil, p.errorf("missing 'end' of class %s", c.name.text)
		case tokPublic, tokPrivate:
			p.next()
		}
		switch p.cur().kind {
		case tokFunction, tokVirtual:
			m, err := p.function()
			if err != nil {
				return nil, err
			}
			c.methods = append(c.methods, m)
		case tokIdent:
			fname := p.next()
			if _, err := p.expect(tokAs, "'as'"); err != nil {
				return nil, err
			}
			typ, err := p.typeRef()
			if err != nil {
				return nil, err
			}
			c.fields = append(c.fields, fieldDecl{name: fname, typ: typ})
		default:
			return nil, p.errorf("expected field or method, found %s", p.cur())
		}
		if err := p.endOfStatement(); err != nil {
			return nil, err
		}
	}
	if !p.stop {
		p.next()
		p.accept(tokClass)
	}
	return c, nil
}

func (p *parser) funcType() (*funcTypeDecl, error) {
	ft := &funcTypeDecl{kw: p.next()}
	var err error
	if ft.name, ft.params, ft.ret, err = p.signature(); err != nil {
		return nil, err
	}
	return ft, nil
}

var precedence = map[tokenKind]int{
	tokEq:      1,
	tokLess:    1,
	tokGreater: 1,
	tokPlus:    2,
	tokMinus:   2,
	tokStar:    3,
	tokSlash:   3,
}

func (p *parser) expr() (expr, error) {
	return p.binary(1)
}

func (p *parser) binary(minPrec int) (expr, error) {
	left, err := p.unary()
	if err != nil {
		return nil, err
	}
	for !p.stop {
		prec, ok := precedence[p.cur().kind]
		if !ok || prec < minPrec {
			break
		}
		op := p.next()
		right, err := p.binary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = &binaryExpr{op: op, l: left, r: right}
	}
	return left, nil
}

func (p *parser) unary() (expr, error) {
	if p.at(tokMinus) {
		op := p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		zero := &literalExpr{tok: token{kind: tokInt, text: "0", line: op.line, col: op.col, end: op.end}}
		return &binaryExpr{op: op, l: zero, r: x}, nil
	}
	return p.postfix()
}

func (p *parser) postfix() (expr, error) {
	x, err := p.primary()
	if err != nil {
		return nil, err
	}
	for !p.stop {
		switch p.cur().kind {
		case tokDot:
			p.next()
			if p.at(tokMarker) {
				p.stop = true
				return &memberExpr{x: x, name: p.next()}, nil
			}
			name, err := p.expect(tokIdent, "member name")
			if err != nil {
				return nil, err
			}
			x = &memberExpr{x: x, name: name}
		case tokLParen:
			if x, err = p.call(x); err != nil {
				return nil, err
			}
		case tokLBracket:
			p.next()
			index, err := p.expr()
			if err != nil {
				return nil, err
			}
			if p.stop {
				return index, nil
			}
			rb, err := p.expect(tokRBracket, "']'")
			if err != nil {
				return nil, err
			}
			x = &indexExpr{x: x, index: index, rbracket: rb}
		default:
			return x, nil
		}
	}
	return x, nil
}

func (p *parser) call(fn expr) (expr, error) {
	p.next()
	c := &callExpr{fn: fn, marker: -1}
	for {
		p.skipNewlines()
		if rp, ok := p.accept(tokRParen); ok {
			c.rparen = rp
			return c, nil
		}
		if len(c.args) > 0 {
			if _, err := p.expect(tokComma, "',' or ')'"); err != nil {
				return nil, err
			}
			p.skipNewlines()
		}
		if p.at(tokMarker) {
			c.marker = len(c.args)
			c.rparen = p.next()
			p.stop = true
			return c, nil
		}
		arg, err := p.expr()
		if err != nil {
			return nil, err
		}
		c.args = append(c.args, arg)
		if p.at(tokMarker) {
			c.marker = len(c.args) - 1
			c.rparen = p.next()
			p.stop = true
			return c, nil
		}
		if p.stop {
			// The marker sits inside this argument.
			c.rparen = arg.last()
			return c, nil
		}
	}
}

func (p *parser) primary() (expr, error) {
	t := p.cur()
	switch t.kind {
	case tokIdent:
		return &identExpr{tok: p.next()}, nil
	case tokInt, tokFloat, tokString, tokTrue, tokFalse:
		return &literalExpr{tok: p.next()}, nil
	case tokThis:
		return &thisExpr{tok: p.next()}, nil
	case tokMarker:
		p.stop = true
		return &markerExpr{tok: p.next()}, nil
	case tokNew:
		n := &newExpr{kw: p.next()}
		typ, err := p.typeRef()
		if err != nil {
			return nil, err
		}
		n.typ = typ
		if p.at(tokDot) && p.peekKind(1) == tokMarker {
			p.next()
			p.next()
			n.marker = true
			p.stop = true
		}
		return n, nil
	case tokLParen:
		p.next()
		x, err := p.expr()
		if err != nil {
			return nil, err
		}
		if p.stop {
			return x, nil
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return x, nil
	}
	return nil, p.errorf("unexpected %s", t)
}
