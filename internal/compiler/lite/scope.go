package lite

import "birdeels/internal/compiler"

type symbolKind int

const (
	symVar symbolKind = iota
	symFunc
	symClass
	symFuncType
	symModule
)

type symbol struct {
	kind     symbolKind
	typ      compiler.ResolvedType
	decl     *compiler.SourcePos
	constant bool
	imported bool
	// global dims are declared up front but typed when their statement runs
	pending *dimStmt
}

type scope struct {
	parent *scope
	names  map[string]*symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: make(map[string]*symbol)}
}

func (s *scope) lookup(name string) (*symbol, bool) {
	for ; s != nil; s = s.parent {
		if sym, ok := s.names[name]; ok {
			return sym, true
		}
	}
	return nil, false
}

func (s *scope) define(name string, sym *symbol) {
	s.names[name] = sym
}

func declAt(t token) *compiler.SourcePos {
	p := t.pos()
	return &p
}
