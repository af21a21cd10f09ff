// Package compiler describes the surface the language server needs from a
// Birdee compiler front-end: compile a unit, read back its syntax tree and
// exported metadata, and resolve imports through a caller supplied Resolver.
package compiler

import (
	"fmt"

	"birdeels/internal/module"
)

// ProbeMarker is spliced into a copy of the buffer at the cursor. A compiler
// that reaches it records an AutoCompletion node for the enclosing construct.
const ProbeMarker = "$"

// ErrorKind distinguishes lexical from semantic failures.
type ErrorKind int

const (
	TokenizerError ErrorKind = iota
	CompileError
)

func (k ErrorKind) String() string {
	switch k {
	case TokenizerError:
		return "tokenizer error"
	case CompileError:
		return "compile error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is the single failure a compile attempt can report. Line is zero
// based; Pos is one less than the zero based column of the offending
// character.
type Error struct {
	Kind ErrorKind
	Line int
	Pos  int
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s at %d:%d: %s", e.Kind, e.Line, e.Pos, e.Msg)
}

// Request is one compile of one unit.
type Request struct {
	// Path of the unit, used to label positions in exported metadata.
	Path     string
	Source   string
	Resolver Resolver
}

// Compiler is a stateful front-end holding one live compilation unit.
// Implementations are not safe for concurrent use.
type Compiler interface {
	// Compile replaces the live unit with a fresh compile of req. It returns
	// the second-chance resolutions asked of req.Resolver, in order, and
	// a *Error when the unit fails.
	Compile(req Request) ([]Resolution, error)
	// Clear resets the live unit to empty.
	Clear()
	ModuleName() module.Name
	// Metadata is the exported symbol table of the last successful compile.
	Metadata() ([]byte, error)
	TopLevel() []*Node
	// AutoCompletion is the node recorded at ProbeMarker, if any.
	AutoCompletion() *AutoCompletion
	// Classes lists class names visible in the live unit, either declared
	// in it or imported into it.
	Classes(imported bool) []string
	FuncTypes(imported bool) []string
}
