package lite

// typeRef is a written type: a possibly qualified name plus array
// dimensions.
type typeRef struct {
	path []token
	dims int
}

func (t *typeRef) last() token { return t.path[len(t.path)-1] }

func (t *typeRef) name() string {
	s := ""
	for i, p := range t.path {
		if i > 0 {
			s += "."
		}
		s += p.text
	}
	return s
}

type param struct {
	name token
	typ  *typeRef
}

type stmt interface{ first() token }

type expr interface{ last() token }

type importStmt struct {
	kw     token
	path   []token
	symbol *token
}

type dimStmt struct {
	kw    token
	name  token
	typ   *typeRef
	init  expr
	isVal bool
}

type funcDecl struct {
	kw      token
	name    token
	params  []param
	ret     *typeRef
	body    []stmt
	virtual bool
}

type fieldDecl struct {
	name token
	typ  *typeRef
}

type classDecl struct {
	kw      token
	name    token
	fields  []fieldDecl
	methods []*funcDecl
}

type funcTypeDecl struct {
	kw     token
	name   token
	params []param
	ret    *typeRef
}

type returnStmt struct {
	kw    token
	value expr
}

type exprStmt struct{ x expr }

type assignStmt struct {
	target expr
	op     token
	value  expr
}

func (s *importStmt) first() token   { return s.kw }
func (s *dimStmt) first() token      { return s.kw }
func (s *funcDecl) first() token     { return s.kw }
func (s *classDecl) first() token    { return s.kw }
func (s *funcTypeDecl) first() token { return s.kw }
func (s *returnStmt) first() token   { return s.kw }
func (s *exprStmt) first() token     { return firstOf(s.x) }
func (s *assignStmt) first() token   { return firstOf(s.target) }

type identExpr struct{ tok token }

type literalExpr struct{ tok token }

type thisExpr struct{ tok token }

type callExpr struct {
	fn     expr
	args   []expr
	rparen token
	// marker is the index of the argument holding the probe marker, or -1.
	marker int
}

type memberExpr struct {
	x    expr
	name token
}

type indexExpr struct {
	x        expr
	index    expr
	rbracket token
}

type newExpr struct {
	kw     token
	typ    *typeRef
	marker bool
}

type binaryExpr struct {
	op   token
	l, r expr
}

type markerExpr struct{ tok token }

func (e *identExpr) last() token   { return e.tok }
func (e *literalExpr) last() token { return e.tok }
func (e *thisExpr) last() token    { return e.tok }
func (e *callExpr) last() token    { return e.rparen }
func (e *memberExpr) last() token  { return e.name }
func (e *indexExpr) last() token   { return e.rbracket }
func (e *newExpr) last() token     { return e.typ.last() }
func (e *binaryExpr) last() token  { return e.op }
func (e *markerExpr) last() token  { return e.tok }

func firstOf(e expr) token {
	switch e := e.(type) {
	case *callExpr:
		return firstOf(e.fn)
	case *memberExpr:
		return firstOf(e.x)
	case *indexExpr:
		return firstOf(e.x)
	case *newExpr:
		return e.kw
	case *binaryExpr:
		return firstOf(e.l)
	}
	return e.last()
}
