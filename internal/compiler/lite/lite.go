// Package lite is a compact front-end for a subset of Birdee: packages,
// imports, dim/val, functions, classes with fields and methods, function
// types, calls, member access, indexing and arithmetic.
//
// It implements compiler.Compiler so the language server can run without
// the upstream compiler. Node positions follow the upstream convention: the
// 1-based line and column of the last character of the token ending the
// node.
package lite

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"

	"birdeels/internal/compiler"
	"birdeels/internal/module"

	"github.com/tliron/commonlog"
)

var ErrNoUnit = errors.New("lite: no successfully compiled unit")

var log = commonlog.GetLogger("birdeels.lite")

type Option func(*Compiler)

// WithLibraryRoots adds directories searched for precompiled .bmm files
// before an import falls back to the resolver's second chance.
func WithLibraryRoots(roots ...string) Option {
	return func(c *Compiler) {
		c.libraryRoots = append(c.libraryRoots, roots...)
	}
}

type unit struct {
	name           module.Name
	toplevel       []*compiler.Node
	auto           *compiler.AutoCompletion
	metadata       []byte
	classes        []string
	importedClass  []string
	funcTypes      []string
	importedFTypes []string
}

type Compiler struct {
	libraryRoots []string
	unit         unit
}

var _ compiler.Compiler = (*Compiler)(nil)

func New(opts ...Option) *Compiler {
	c := &Compiler{}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLibraryRoots replaces the library roots.
func (c *Compiler) SetLibraryRoots(roots ...string) {
	c.libraryRoots = roots
}

func (c *Compiler) Compile(req compiler.Request) ([]compiler.Resolution, error) {
	c.unit = unit{}

	tokens, err := tokenize(req.Source)
	if err != nil {
		return nil, err
	}
	f, err := parse(tokens)
	if err != nil {
		return nil, err
	}

	c.unit.name = packageName(f, req.Path)
	ch := newChecker(req.Resolver, c.libraryRoots)
	nodes, err := ch.run(f)
	c.unit.toplevel = nodes
	c.unit.auto = ch.auto
	c.unit.classes, c.unit.funcTypes = ch.declaredTypeNames()
	c.unit.importedClass, c.unit.importedFTypes = ch.importedTypeNames()
	if err != nil {
		log.Debugf("compile of %s failed: %v", req.Path, err)
		return ch.resolutions, err
	}

	md, err := ch.export(c.unit.name.Key(), req.Path).Encode()
	if err != nil {
		return ch.resolutions, err
	}
	c.unit.metadata = md
	return ch.resolutions, nil
}

// packageName is the declared package or, without one, the file's base
// name.
func packageName(f *file, path string) module.Name {
	if len(f.pkg) > 0 {
		name := make(module.Name, len(f.pkg))
		for i, t := range f.pkg {
			name[i] = t.text
		}
		return name
	}
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" || base == "." {
		return nil
	}
	return module.Name{base}
}

func (c *Compiler) Clear() {
	c.unit = unit{}
}

func (c *Compiler) ModuleName() module.Name { return c.unit.name }

func (c *Compiler) Metadata() ([]byte, error) {
	if c.unit.metadata == nil {
		return nil, ErrNoUnit
	}
	return c.unit.metadata, nil
}

func (c *Compiler) TopLevel() []*compiler.Node { return c.unit.toplevel }

func (c *Compiler) AutoCompletion() *compiler.AutoCompletion { return c.unit.auto }

func (c *Compiler) Classes(imported bool) []string {
	if imported {
		return c.unit.importedClass
	}
	return c.unit.classes
}

func (c *Compiler) FuncTypes(imported bool) []string {
	if imported {
		return c.unit.importedFTypes
	}
	return c.unit.funcTypes
}

func (ch *checker) declaredTypeNames() (classes, funcTypes []string) {
	for _, cls := range ch.classes {
		classes = append(classes, cls.Name)
	}
	for _, p := range ch.protos {
		funcTypes = append(funcTypes, p.Name)
	}
	return classes, funcTypes
}

// importedTypeNames lists symbol-imported types by plain name and the
// types of module imports by qualified name.
func (ch *checker) importedTypeNames() (classes, funcTypes []string) {
	classes = append(classes, ch.imported.Classes...)
	funcTypes = append(funcTypes, ch.imported.FunctionTypes...)
	for _, m := range ch.moduleImports {
		prefix := m.name.Key() + "."
		declared := m.symbols.Declared()
		for _, name := range declared.Classes {
			classes = append(classes, prefix+name)
		}
		for _, name := range declared.FunctionTypes {
			funcTypes = append(funcTypes, prefix+name)
		}
	}
	sort.Strings(classes)
	sort.Strings(funcTypes)
	return classes, funcTypes
}
