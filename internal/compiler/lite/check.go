package lite

import (
	"birdeels/internal/compiler"
	"birdeels/internal/metadata"
)

// autoCompletionMsg ends a compile that reached the probe marker.
const autoCompletionMsg = "auto-completion position reached"

type checker struct {
	resolver     compiler.Resolver
	libraryRoots []string

	modules       map[string]*loadedModule
	moduleImports []*loadedModule
	importNames   []string
	tree          *importNode
	trees         map[*compiler.ImportTree]*importNode
	imported      metadata.Names
	resolutions   []compiler.Resolution

	globals *scope
	// declaration order of what this unit declares
	classes   []*compiler.Class
	protos    []*compiler.Prototype
	functions []*compiler.Prototype
	dims      []*dimStmt
	funcDecls map[*compiler.Prototype]*compiler.SourcePos
	classOf   map[*classDecl]*compiler.Class
	protoOf   map[*funcDecl]*compiler.Prototype
	dimSyms   map[*dimStmt]*symbol

	owners      map[*compiler.Class]string
	protoOwners map[*compiler.Prototype]string

	this *compiler.Class
	auto *compiler.AutoCompletion
}

var printProto = &compiler.Prototype{
	Name:   "print",
	Params: []compiler.Param{{Name: "value", Type: compiler.ResolvedType{Base: compiler.TypeString}}},
}

func newChecker(resolver compiler.Resolver, libraryRoots []string) *checker {
	c := &checker{
		resolver:     resolver,
		libraryRoots: libraryRoots,
		modules:      make(map[string]*loadedModule),
		tree:         newImportNode(),
		trees:        make(map[*compiler.ImportTree]*importNode),
		globals:      newScope(nil),
		funcDecls:    make(map[*compiler.Prototype]*compiler.SourcePos),
		classOf:      make(map[*classDecl]*compiler.Class),
		protoOf:      make(map[*funcDecl]*compiler.Prototype),
		dimSyms:      make(map[*dimStmt]*symbol),
		owners:       make(map[*compiler.Class]string),
		protoOwners:  make(map[*compiler.Prototype]string),
	}
	c.globals.define("print", &symbol{kind: symFunc, typ: funcType(printProto)})
	return c
}

func (c *checker) run(f *file) ([]*compiler.Node, error) {
	if err := c.resolveImports(f.imports); err != nil {
		return nil, err
	}
	if err := c.declare(f.stmts); err != nil {
		return nil, err
	}
	var nodes []*compiler.Node
	for _, s := range f.stmts {
		n, err := c.topLevel(s)
		if n != nil {
			nodes = append(nodes, n)
		}
		if err != nil {
			return nodes, err
		}
	}
	return nodes, nil
}

// declare registers every top-level declaration so that bodies may refer
// to declarations further down.
func (c *checker) declare(stmts []stmt) error {
	for _, s := range stmts {
		var name token
		switch s := s.(type) {
		case *classDecl:
			name = s.name
		case *funcTypeDecl:
			name = s.name
		case *funcDecl:
			name = s.name
		case *dimStmt:
			name = s.name
		default:
			continue
		}
		if sym, ok := c.globals.names[name.text]; ok && sym.decl != nil {
			return errorAt(compiler.CompileError, name.line, name.col, "%s redeclared", name.text)
		}
		c.globals.define(name.text, &symbol{kind: symVar, decl: declAt(name)})
	}
	for _, s := range stmts {
		switch s := s.(type) {
		case *classDecl:
			cls := &compiler.Class{Name: s.name.text, Decl: s.name.pos()}
			c.globals.define(cls.Name, &symbol{kind: symClass, typ: classType(cls), decl: declAt(s.name)})
			c.classes = append(c.classes, cls)
			c.classOf[s] = cls
		case *funcTypeDecl:
			proto := &compiler.Prototype{Name: s.name.text, TypeName: s.name.text}
			c.globals.define(proto.Name, &symbol{kind: symFuncType, typ: funcType(proto), decl: declAt(s.name)})
			c.protos = append(c.protos, proto)
			c.funcDecls[proto] = declAt(s.name)
		}
	}
	pi := 0
	for _, s := range stmts {
		switch s := s.(type) {
		case *classDecl:
			cls := c.classOf[s]
			for _, fd := range s.fields {
				typ, err := c.resolveType(fd.typ)
				if err != nil {
					return err
				}
				cls.Fields = append(cls.Fields, compiler.Field{Name: fd.name.text, Type: typ, Decl: fd.name.pos()})
			}
			for _, m := range s.methods {
				proto, err := c.prototype(m.name.text, m.params, m.ret)
				if err != nil {
					return err
				}
				cls.Methods = append(cls.Methods, compiler.Method{Name: m.name.text, Proto: proto, Virtual: m.virtual, Decl: m.name.pos()})
			}
		case *funcTypeDecl:
			proto := c.protos[pi]
			pi++
			full, err := c.prototype(s.name.text, s.params, s.ret)
			if err != nil {
				return err
			}
			proto.Params, proto.Return = full.Params, full.Return
		case *funcDecl:
			proto, err := c.prototype(s.name.text, s.params, s.ret)
			if err != nil {
				return err
			}
			c.globals.define(proto.Name, &symbol{kind: symFunc, typ: funcType(proto), decl: declAt(s.name)})
			c.functions = append(c.functions, proto)
			c.funcDecls[proto] = declAt(s.name)
			c.protoOf[s] = proto
		case *dimStmt:
			sym := &symbol{kind: symVar, decl: declAt(s.name), constant: s.isVal, pending: s}
			if s.typ != nil {
				typ, err := c.resolveType(s.typ)
				if err != nil {
					return err
				}
				sym.typ = typ
				sym.pending = nil
			}
			c.globals.define(s.name.text, sym)
			c.dims = append(c.dims, s)
			c.dimSyms[s] = sym
		}
	}
	return nil
}

func (c *checker) prototype(name string, params []param, ret *typeRef) (*compiler.Prototype, error) {
	proto := &compiler.Prototype{Name: name}
	for _, p := range params {
		typ, err := c.resolveType(p.typ)
		if err != nil {
			return nil, err
		}
		proto.Params = append(proto.Params, compiler.Param{Name: p.name.text, Type: typ})
	}
	if ret != nil {
		typ, err := c.resolveType(ret)
		if err != nil {
			return nil, err
		}
		proto.Return = typ
	}
	return proto, nil
}

func (c *checker) resolveType(ref *typeRef) (compiler.ResolvedType, error) {
	var typ compiler.ResolvedType
	first := ref.path[0]
	if len(ref.path) == 1 {
		if base, ok := compiler.PrimitiveType(first.text); ok {
			typ = compiler.ResolvedType{Base: base}
		} else if sym, ok := c.globals.lookup(first.text); ok && (sym.kind == symClass || sym.kind == symFuncType) {
			typ = sym.typ
		} else {
			return typ, errorAt(compiler.CompileError, first.line, first.col, "unknown type %s", first.text)
		}
	} else {
		node := c.tree
		for _, seg := range ref.path[:len(ref.path)-1] {
			next, ok := node.children[seg.text]
			if !ok {
				return typ, errorAt(compiler.CompileError, seg.line, seg.col, "unknown module in type %s", ref.name())
			}
			node = next
		}
		last := ref.last()
		switch {
		case node.mod == nil:
			return typ, errorAt(compiler.CompileError, last.line, last.col, "unknown type %s", ref.name())
		case hasClass(node.mod, last.text):
			typ = classType(c.moduleClass(node.mod, last.text))
		case hasFuncType(node.mod, last.text):
			typ = funcType(c.moduleProto(node.mod, last.text))
		default:
			return typ, errorAt(compiler.CompileError, last.line, last.col, "unknown type %s", ref.name())
		}
	}
	typ.IndexLevel = ref.dims
	return typ, nil
}

func (c *checker) topLevel(s stmt) (*compiler.Node, error) {
	switch s := s.(type) {
	case *funcDecl:
		return c.functionBody(s, c.protoOf[s], nil)
	case *classDecl:
		cls := c.classOf[s]
		n := &compiler.Node{Pos: s.name.pos()}
		for i, m := range s.methods {
			child, err := c.functionBody(m, cls.Methods[i].Proto, cls)
			if child != nil {
				n.Children = append(n.Children, child)
			}
			if err != nil {
				return n, err
			}
		}
		return n, nil
	case *funcTypeDecl:
		return &compiler.Node{Pos: s.name.pos()}, nil
	case *dimStmt:
		return c.dimIn(c.globals, s, c.dimSyms[s])
	}
	return c.statement(c.globals, s)
}

func (c *checker) functionBody(fn *funcDecl, proto *compiler.Prototype, this *compiler.Class) (*compiler.Node, error) {
	n := &compiler.Node{Pos: fn.name.pos()}
	local := newScope(c.globals)
	for i, p := range fn.params {
		local.define(p.name.text, &symbol{kind: symVar, typ: proto.Params[i].Type, decl: declAt(p.name)})
	}
	c.this = this
	defer func() { c.this = nil }()
	for _, s := range fn.body {
		child, err := c.statement(local, s)
		if child != nil {
			n.Children = append(n.Children, child)
		}
		if err != nil {
			return n, err
		}
	}
	return n, nil
}

func (c *checker) statement(sc *scope, s stmt) (*compiler.Node, error) {
	switch s := s.(type) {
	case *dimStmt:
		sym := &symbol{kind: symVar, decl: declAt(s.name), constant: s.isVal, pending: s}
		if s.typ != nil {
			typ, err := c.resolveType(s.typ)
			if err != nil {
				return nil, err
			}
			sym.typ = typ
			sym.pending = nil
		}
		n, err := c.dimIn(sc, s, sym)
		sc.define(s.name.text, sym)
		return n, err
	case *returnStmt:
		n := &compiler.Node{Pos: s.kw.pos()}
		if s.value != nil {
			child, _, err := c.expr(sc, s.value)
			if child != nil {
				n.Children = append(n.Children, child)
			}
			if err != nil {
				return n, err
			}
		}
		return n, nil
	case *assignStmt:
		n := &compiler.Node{Pos: s.op.pos()}
		target, _, err := c.expr(sc, s.target)
		if target != nil {
			n.Children = append(n.Children, target)
		}
		if err != nil {
			return n, err
		}
		if id, ok := s.target.(*identExpr); ok {
			if sym, _ := sc.lookup(id.tok.text); sym != nil && sym.constant {
				return n, errorAt(compiler.CompileError, id.tok.line, id.tok.col, "cannot assign to val %s", id.tok.text)
			}
		}
		switch s.target.(type) {
		case *identExpr, *memberExpr, *indexExpr:
		default:
			first := firstOf(s.target)
			return n, errorAt(compiler.CompileError, first.line, first.col, "cannot assign to this expression")
		}
		value, _, err := c.expr(sc, s.value)
		if value != nil {
			n.Children = append(n.Children, value)
		}
		return n, err
	case *exprStmt:
		n, _, err := c.expr(sc, s.x)
		return n, err
	}
	first := s.first()
	return nil, errorAt(compiler.CompileError, first.line, first.col, "declaration not allowed here")
}

func (c *checker) dimIn(sc *scope, s *dimStmt, sym *symbol) (*compiler.Node, error) {
	n := &compiler.Node{Pos: s.name.pos()}
	if s.init == nil {
		return n, nil
	}
	child, typ, err := c.expr(sc, s.init)
	if child != nil {
		n.Children = append(n.Children, child)
	}
	if err != nil {
		return n, err
	}
	if sym.pending != nil {
		sym.typ = typ
		sym.pending = nil
	}
	return n, nil
}

func (c *checker) reachedMarker(tok token, ac *compiler.AutoCompletion) error {
	c.auto = ac
	return errorAt(compiler.CompileError, tok.line, tok.col, autoCompletionMsg)
}

func (c *checker) expr(sc *scope, e expr) (*compiler.Node, compiler.ResolvedType, error) {
	var none compiler.ResolvedType
	switch e := e.(type) {
	case *literalExpr:
		n := &compiler.Node{Pos: e.tok.pos()}
		switch e.tok.kind {
		case tokInt:
			return n, compiler.ResolvedType{Base: compiler.TypeInt}, nil
		case tokFloat:
			return n, compiler.ResolvedType{Base: compiler.TypeDouble}, nil
		case tokString:
			return n, compiler.ResolvedType{Base: compiler.TypeString}, nil
		}
		return n, compiler.ResolvedType{Base: compiler.TypeBoolean}, nil

	case *thisExpr:
		n := &compiler.Node{Pos: e.tok.pos()}
		if c.this == nil {
			return n, none, errorAt(compiler.CompileError, e.tok.line, e.tok.col, "'this' outside of a class")
		}
		return n, classType(c.this), nil

	case *identExpr:
		return c.ident(sc, e.tok)

	case *markerExpr:
		return nil, none, errorAt(compiler.CompileError, e.tok.line, e.tok.col, "unexpected %s", e.tok)

	case *memberExpr:
		return c.member(sc, e)

	case *callExpr:
		return c.call(sc, e)

	case *indexExpr:
		n := &compiler.Node{Pos: e.rbracket.pos()}
		x, typ, err := c.expr(sc, e.x)
		if x != nil {
			n.Children = append(n.Children, x)
		}
		if err != nil {
			return n, none, err
		}
		idx, _, err := c.expr(sc, e.index)
		if idx != nil {
			n.Children = append(n.Children, idx)
		}
		if err != nil {
			return n, none, err
		}
		if !typ.IsArray() {
			first := firstOf(e.x)
			return n, none, errorAt(compiler.CompileError, first.line, first.col, "cannot index a value of type %s", typ)
		}
		return n, typ.Elem(), nil

	case *newExpr:
		last := e.typ.last()
		n := &compiler.Node{Pos: last.pos()}
		typ, err := c.resolveType(e.typ)
		if err != nil {
			return n, none, err
		}
		if e.marker {
			return n, typ, c.reachedMarker(last, &compiler.AutoCompletion{Kind: compiler.CompleteNew, Type: typ})
		}
		if typ.Base != compiler.TypeClass && !typ.IsArray() {
			return n, none, errorAt(compiler.CompileError, last.line, last.col, "cannot create a value of type %s", typ)
		}
		return n, typ, nil

	case *binaryExpr:
		n := &compiler.Node{Pos: e.op.pos()}
		l, lt, err := c.expr(sc, e.l)
		if l != nil {
			n.Children = append(n.Children, l)
		}
		if err != nil {
			return n, none, err
		}
		r, _, err := c.expr(sc, e.r)
		if r != nil {
			n.Children = append(n.Children, r)
		}
		if err != nil {
			return n, none, err
		}
		switch e.op.kind {
		case tokEq, tokLess, tokGreater:
			return n, compiler.ResolvedType{Base: compiler.TypeBoolean}, nil
		}
		return n, lt, nil
	}
	return nil, none, nil
}

func (c *checker) ident(sc *scope, tok token) (*compiler.Node, compiler.ResolvedType, error) {
	var none compiler.ResolvedType
	n := &compiler.Node{Pos: tok.pos()}
	sym, ok := sc.lookup(tok.text)
	if !ok {
		return n, none, errorAt(compiler.CompileError, tok.line, tok.col, "unknown identifier %s", tok.text)
	}
	switch sym.kind {
	case symVar:
		n.Kind = compiler.NodeLocalVar
		n.Decl = sym.decl
		return n, sym.typ, nil
	case symFunc:
		n.Kind = compiler.NodeResolvedFunc
		n.Decl = sym.decl
		return n, sym.typ, nil
	case symModule:
		return n, c.tree.child(tok.text).typ(c), nil
	}
	return n, none, errorAt(compiler.CompileError, tok.line, tok.col, "type %s used as a value", tok.text)
}

func arrayMember(name string) (*compiler.Prototype, bool) {
	switch name {
	case "length":
		return &compiler.Prototype{Name: name, Return: compiler.ResolvedType{Base: compiler.TypeInt}}, true
	case "get_raw":
		return &compiler.Prototype{Name: name, Return: compiler.ResolvedType{Base: compiler.TypePointer}}, true
	}
	return nil, false
}

func (c *checker) member(sc *scope, e *memberExpr) (*compiler.Node, compiler.ResolvedType, error) {
	var none compiler.ResolvedType
	n := &compiler.Node{Pos: e.name.pos()}
	x, typ, err := c.expr(sc, e.x)
	if x != nil {
		n.Children = append(n.Children, x)
	}
	if err != nil {
		return n, none, err
	}
	if e.name.kind == tokMarker {
		return n, none, c.reachedMarker(e.name, &compiler.AutoCompletion{Kind: compiler.CompleteMember, Type: typ})
	}
	name := e.name.text
	fail := func(format string, args ...any) (*compiler.Node, compiler.ResolvedType, error) {
		return n, none, errorAt(compiler.CompileError, e.name.line, e.name.col, format, args...)
	}

	switch {
	case typ.IsArray():
		if proto, ok := arrayMember(name); ok {
			return n, funcType(proto), nil
		}
		return fail("array has no member %s", name)

	case typ.Base == compiler.TypeClass && typ.Class != nil:
		if f, ok := typ.Class.Field(name); ok {
			decl := f.Decl
			n.Kind = compiler.NodeMember
			n.Member = &compiler.Member{Kind: compiler.MemberField, Decl: &decl}
			return n, f.Type, nil
		}
		if m, ok := typ.Class.Method(name); ok {
			decl := m.Decl
			kind := compiler.MemberFunction
			if m.Virtual {
				kind = compiler.MemberVirtualFunction
			}
			n.Kind = compiler.NodeMember
			n.Member = &compiler.Member{Kind: kind, Decl: &decl}
			return n, funcType(m.Proto), nil
		}
		return fail("class %s has no member %s", typ.Class.Name, name)

	case typ.Base == compiler.TypeModule && typ.Import != nil:
		node := c.trees[typ.Import]
		if child, ok := node.children[name]; ok {
			return n, child.typ(c), nil
		}
		if node.mod == nil {
			return fail("unknown module %s", name)
		}
		m := node.mod
		if v, ok := m.symbols.Variable(name); ok {
			n.Kind = compiler.NodeMember
			n.Member = &compiler.Member{Kind: compiler.MemberImportedDim, Decl: m.declPos(v.Line, v.Pos)}
			return n, c.metaType(v.Type, m), nil
		}
		if f, ok := m.symbols.Function(name); ok {
			n.Kind = compiler.NodeMember
			n.Member = &compiler.Member{Kind: compiler.MemberImportedFunction, Decl: m.declPos(f.Line, f.Pos)}
			return n, funcType(c.metaProto(f, m)), nil
		}
		if hasClass(m, name) || hasFuncType(m, name) {
			return fail("type %s used as a value", name)
		}
		return fail("module %s has no member %s", m.name, name)
	}
	return fail("a value of type %s has no members", typ)
}

func (c *checker) call(sc *scope, e *callExpr) (*compiler.Node, compiler.ResolvedType, error) {
	var none compiler.ResolvedType
	n := &compiler.Node{Pos: e.rparen.pos()}
	fn, typ, err := c.expr(sc, e.fn)
	if fn != nil {
		n.Children = append(n.Children, fn)
	}
	if err != nil {
		return n, none, err
	}
	for i, a := range e.args {
		if i == e.marker {
			break
		}
		arg, _, err := c.expr(sc, a)
		if arg != nil {
			n.Children = append(n.Children, arg)
		}
		if err != nil {
			return n, none, err
		}
	}
	if e.marker >= 0 {
		return n, none, c.reachedMarker(e.rparen, &compiler.AutoCompletion{
			Kind:            compiler.CompleteParameter,
			Type:            typ,
			ParameterNumber: e.marker,
		})
	}
	first := firstOf(e.fn)
	if typ.Base != compiler.TypeFunction || typ.IsArray() || typ.Proto == nil {
		return n, none, errorAt(compiler.CompileError, first.line, first.col, "a value of type %s is not callable", typ)
	}
	if len(e.args) != len(typ.Proto.Params) {
		return n, none, errorAt(compiler.CompileError, e.rparen.line, e.rparen.col,
			"%s expects %d arguments, got %d", typ.Proto.Name, len(typ.Proto.Params), len(e.args))
	}
	return n, typ.Proto.Return, nil
}
