package lite

import (
	"birdeels/internal/compiler"
	"birdeels/internal/metadata"
)

// export builds the symbol table written to .bmm files.
func (c *checker) export(pkg, sourceFile string) *metadata.Symbols {
	s := &metadata.Symbols{
		Package:    pkg,
		SourceFile: sourceFile,
		Imports:    c.importNames,
		Imported:   c.imported,
	}
	for _, cls := range c.classes {
		mc := metadata.Class{Name: cls.Name, Line: cls.Decl.Line, Pos: cls.Decl.Pos}
		for _, f := range cls.Fields {
			mc.Fields = append(mc.Fields, metadata.Variable{
				Name: f.Name,
				Type: c.exportType(f.Type),
				Line: f.Decl.Line,
				Pos:  f.Decl.Pos,
			})
		}
		for _, m := range cls.Methods {
			fn := c.exportProto(m.Proto, m.Decl)
			fn.Virtual = m.Virtual
			mc.Methods = append(mc.Methods, fn)
		}
		s.Classes = append(s.Classes, mc)
	}
	for _, d := range c.dims {
		sym := c.dimSyms[d]
		s.Variables = append(s.Variables, metadata.Variable{
			Name: d.name.text,
			Type: c.exportType(sym.typ),
			Line: d.name.line,
			Pos:  d.name.end,
		})
	}
	for _, p := range c.functions {
		s.Functions = append(s.Functions, c.exportProto(p, *c.funcDecls[p]))
	}
	for _, p := range c.protos {
		fn := c.exportProto(p, *c.funcDecls[p])
		s.FunctionTypes = append(s.FunctionTypes, fn)
	}
	return s
}

func (c *checker) exportProto(p *compiler.Prototype, decl compiler.SourcePos) metadata.Function {
	fn := metadata.Function{
		Name:   p.Name,
		Return: c.exportType(p.Return),
		Line:   decl.Line,
		Pos:    decl.Pos,
	}
	for _, a := range p.Params {
		fn.Args = append(fn.Args, metadata.Variable{Name: a.Name, Type: c.exportType(a.Type)})
	}
	return fn
}

func (c *checker) exportType(t compiler.ResolvedType) metadata.Type {
	mt := metadata.Type{Dims: t.IndexLevel}
	switch t.Base {
	case compiler.TypeClass:
		if t.Class != nil {
			mt.Name = t.Class.Name
			mt.Module = c.owners[t.Class]
		}
	case compiler.TypeFunction:
		if t.Proto != nil && t.Proto.TypeName != "" {
			mt.Name = t.Proto.TypeName
			mt.Module = c.protoOwners[t.Proto]
		}
	case compiler.TypeModule:
	default:
		mt.Name = compiler.ResolvedType{Base: t.Base}.String()
	}
	return mt
}
