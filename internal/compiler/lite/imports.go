package lite

import (
	"errors"
	"os"
	"sort"

	"birdeels/internal/compiler"
	"birdeels/internal/metadata"
	"birdeels/internal/module"
)

// loadedModule is an imported module's symbol table plus the compiler
// types built from it on demand.
type loadedModule struct {
	name      module.Name
	symbols   *metadata.Symbols
	sourceIdx int
	classes   map[string]*compiler.Class
	protos    map[string]*compiler.Prototype
}

// importNode is one node of the import tree. view is the exported
// compiler.ImportTree handed out through ResolvedType.
type importNode struct {
	children map[string]*importNode
	mod      *loadedModule
	view     *compiler.ImportTree
}

func newImportNode() *importNode {
	return &importNode{children: make(map[string]*importNode)}
}

func (n *importNode) child(seg string) *importNode {
	c, ok := n.children[seg]
	if !ok {
		c = newImportNode()
		n.children[seg] = c
	}
	return c
}

func (n *importNode) typ(c *checker) compiler.ResolvedType {
	if n.view == nil {
		n.view = &compiler.ImportTree{}
		c.trees[n.view] = n
	}
	subs := make([]string, 0, len(n.children))
	for name := range n.children {
		subs = append(subs, name)
	}
	sort.Strings(subs)
	n.view.Submodules = subs
	if n.mod != nil {
		n.view.Module = n.mod.summary()
	}
	return compiler.ResolvedType{Base: compiler.TypeModule, Import: n.view}
}

func (m *loadedModule) summary() *compiler.ImportedModule {
	declared := m.symbols.Declared()
	return &compiler.ImportedModule{
		Name:              m.name.Key(),
		Classes:           declared.Classes,
		Variables:         declared.Variables,
		Functions:         declared.Functions,
		FuncTypes:         declared.FunctionTypes,
		ImportedClasses:   m.symbols.Imported.Classes,
		ImportedVariables: m.symbols.Imported.Variables,
		ImportedFunctions: m.symbols.Imported.Functions,
		ImportedFuncTypes: m.symbols.Imported.FunctionTypes,
	}
}

func (m *loadedModule) declPos(line, pos int) *compiler.SourcePos {
	return &compiler.SourcePos{
		SourceIdx:  m.sourceIdx,
		SourcePath: m.symbols.SourceFile,
		Line:       line,
		Pos:        pos,
	}
}

// load finds a module's metadata: the resolver's first phase, then the
// compiler's own library roots. It reports false when both miss.
func (c *checker) load(name module.Name) (*loadedModule, bool, error) {
	if m, ok := c.modules[name.Key()]; ok {
		return m, true, nil
	}
	var data []byte
	if c.resolver != nil {
		res := c.resolver.Resolve(name, false)
		if res.Kind == compiler.Cached {
			data = res.Metadata
		}
	}
	if data == nil {
		for _, root := range c.libraryRoots {
			raw, err := os.ReadFile(name.Path(root, metadata.Extension))
			if err == nil {
				data = raw
				break
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, false, err
			}
		}
	}
	if data == nil {
		return nil, false, nil
	}
	symbols, err := metadata.Decode(data)
	if err != nil {
		return nil, false, err
	}
	m := &loadedModule{
		name:      name,
		symbols:   symbols,
		sourceIdx: len(c.modules),
		classes:   make(map[string]*compiler.Class),
		protos:    make(map[string]*compiler.Prototype),
	}
	c.modules[name.Key()] = m
	return m, true, nil
}

// resolveImports loads every import. Imports that neither phase one nor the
// library roots satisfy get a second-chance resolution, recorded for the
// caller; the first of them becomes the compile error.
func (c *checker) resolveImports(imports []*importStmt) error {
	var failed *importStmt
	for _, imp := range imports {
		name := make(module.Name, len(imp.path))
		for i, t := range imp.path {
			name[i] = t.text
		}
		c.importNames = append(c.importNames, name.Key())

		m, ok, err := c.load(name)
		if err != nil {
			return errorAt(compiler.CompileError, imp.path[0].line, imp.path[0].col, "loading module %s: %v", name, err)
		}
		if !ok {
			if c.resolver != nil {
				c.resolutions = append(c.resolutions, c.resolver.Resolve(name, true))
			}
			if failed == nil {
				failed = imp
			}
			continue
		}

		if imp.symbol != nil {
			if err := c.importSymbol(m, *imp.symbol); err != nil {
				return err
			}
			continue
		}

		node := c.tree
		for _, seg := range name {
			node = node.child(seg)
		}
		node.mod = m
		if _, exists := c.globals.names[name[0]]; !exists {
			c.globals.define(name[0], &symbol{kind: symModule, imported: true})
		}
		c.moduleImports = append(c.moduleImports, m)
	}
	if failed != nil {
		first := failed.path[0]
		return errorAt(compiler.CompileError, first.line, first.col, "cannot find module %s", dottedTokens(failed.path))
	}
	return nil
}

func dottedTokens(path []token) string {
	s := ""
	for i, t := range path {
		if i > 0 {
			s += "."
		}
		s += t.text
	}
	return s
}

func (c *checker) importSymbol(m *loadedModule, sym token) error {
	name := sym.text
	switch {
	case hasClass(m, name):
		cls := c.moduleClass(m, name)
		c.globals.define(name, &symbol{kind: symClass, typ: classType(cls), decl: &cls.Decl, imported: true})
		c.imported.Classes = append(c.imported.Classes, name)
	case hasFuncType(m, name):
		proto := c.moduleProto(m, name)
		c.globals.define(name, &symbol{kind: symFuncType, typ: funcType(proto), imported: true})
		c.imported.FunctionTypes = append(c.imported.FunctionTypes, name)
	default:
		if v, ok := m.symbols.Variable(name); ok {
			c.globals.define(name, &symbol{
				kind:     symVar,
				typ:      c.metaType(v.Type, m),
				decl:     m.declPos(v.Line, v.Pos),
				imported: true,
			})
			c.imported.Variables = append(c.imported.Variables, name)
			return nil
		}
		if f, ok := m.symbols.Function(name); ok {
			c.globals.define(name, &symbol{
				kind:     symFunc,
				typ:      funcType(c.metaProto(f, m)),
				decl:     m.declPos(f.Line, f.Pos),
				imported: true,
			})
			c.imported.Functions = append(c.imported.Functions, name)
			return nil
		}
		return errorAt(compiler.CompileError, sym.line, sym.col, "module %s has no symbol %s", m.name, name)
	}
	return nil
}

func hasClass(m *loadedModule, name string) bool {
	_, ok := m.symbols.Class(name)
	return ok
}

func hasFuncType(m *loadedModule, name string) bool {
	_, ok := m.symbols.FunctionType(name)
	return ok
}

// moduleClass builds (once) the compiler view of an imported class. The
// class is registered before its members so self references terminate.
func (c *checker) moduleClass(m *loadedModule, name string) *compiler.Class {
	if cls, ok := m.classes[name]; ok {
		return cls
	}
	mc, ok := m.symbols.Class(name)
	if !ok {
		cls := &compiler.Class{Name: name}
		m.classes[name] = cls
		return cls
	}
	cls := &compiler.Class{Name: name, Decl: *m.declPos(mc.Line, mc.Pos)}
	m.classes[name] = cls
	c.owners[cls] = m.name.Key()
	for _, f := range mc.Fields {
		cls.Fields = append(cls.Fields, compiler.Field{
			Name: f.Name,
			Type: c.metaType(f.Type, m),
			Decl: *m.declPos(f.Line, f.Pos),
		})
	}
	for i := range mc.Methods {
		f := &mc.Methods[i]
		cls.Methods = append(cls.Methods, compiler.Method{
			Name:    f.Name,
			Proto:   c.metaProto(f, m),
			Virtual: f.Virtual,
			Decl:    *m.declPos(f.Line, f.Pos),
		})
	}
	return cls
}

func (c *checker) moduleProto(m *loadedModule, name string) *compiler.Prototype {
	if p, ok := m.protos[name]; ok {
		return p
	}
	ft, ok := m.symbols.FunctionType(name)
	if !ok {
		return &compiler.Prototype{TypeName: name}
	}
	p := c.metaProto(ft, m)
	p.TypeName = name
	m.protos[name] = p
	c.protoOwners[p] = m.name.Key()
	return p
}

func (c *checker) metaProto(f *metadata.Function, m *loadedModule) *compiler.Prototype {
	p := &compiler.Prototype{Name: f.Name, Return: c.metaType(f.Return, m)}
	for _, a := range f.Args {
		p.Params = append(p.Params, compiler.Param{Name: a.Name, Type: c.metaType(a.Type, m)})
	}
	return p
}

// metaType turns an exported type name back into a resolved type. Types
// from modules that are not loaded degrade to member-less classes.
func (c *checker) metaType(t metadata.Type, owner *loadedModule) compiler.ResolvedType {
	var rt compiler.ResolvedType
	if base, ok := compiler.PrimitiveType(t.Name); ok || t.Name == "" {
		rt = compiler.ResolvedType{Base: base}
	} else {
		m := owner
		if t.Module != "" {
			m = c.modules[t.Module]
		}
		switch {
		case m != nil && hasFuncType(m, t.Name):
			rt = funcType(c.moduleProto(m, t.Name))
		case m != nil:
			rt = classType(c.moduleClass(m, t.Name))
		default:
			rt = classType(&compiler.Class{Name: t.Name})
		}
	}
	rt.IndexLevel = t.Dims
	return rt
}

func classType(cls *compiler.Class) compiler.ResolvedType {
	return compiler.ResolvedType{Base: compiler.TypeClass, Class: cls}
}

func funcType(p *compiler.Prototype) compiler.ResolvedType {
	return compiler.ResolvedType{Base: compiler.TypeFunction, Proto: p}
}
