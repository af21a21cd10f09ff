package compiler

import "strings"

// CurrentSource is the SourceIdx of positions inside the unit being compiled.
const CurrentSource = -1

// SourcePos is a 1-based position. Line and Pos of a node refer to the last
// character of the token that ends it.
type SourcePos struct {
	SourceIdx  int
	SourcePath string
	Line       int
	Pos        int
}

func (p SourcePos) IsCurrent() bool { return p.SourceIdx == CurrentSource }

type NodeKind int

const (
	NodeOther NodeKind = iota
	NodeLocalVar
	NodeResolvedFunc
	NodeMember
)

func (k NodeKind) String() string {
	switch k {
	case NodeLocalVar:
		return "local-var"
	case NodeResolvedFunc:
		return "resolved-func"
	case NodeMember:
		return "member"
	}
	return "other"
}

type MemberKind int

const (
	MemberField MemberKind = iota
	MemberFunction
	MemberVirtualFunction
	MemberImportedDim
	MemberImportedFunction
)

func (k MemberKind) String() string {
	switch k {
	case MemberField:
		return "field"
	case MemberFunction:
		return "function"
	case MemberVirtualFunction:
		return "virtual-function"
	case MemberImportedDim:
		return "imported-dim"
	case MemberImportedFunction:
		return "imported-function"
	}
	return "unknown"
}

// Member is the resolution of a member access.
type Member struct {
	Kind MemberKind
	Decl *SourcePos
}

// Node is one syntax tree node. Kind selects which of Decl and Member is
// meaningful: LocalVar and ResolvedFunc carry Decl, Member carries Member.
// Decl is nil for builtins.
type Node struct {
	Kind     NodeKind
	Pos      SourcePos
	Decl     *SourcePos
	Member   *Member
	Children []*Node
}

type BasicType int

const (
	TypeVoid BasicType = iota
	TypeBoolean
	TypeByte
	TypeInt
	TypeUInt
	TypeLong
	TypeULong
	TypeFloat
	TypeDouble
	TypePointer
	TypeString
	TypeClass
	TypeFunction
	TypeModule
)

var basicNames = map[BasicType]string{
	TypeVoid:    "void",
	TypeBoolean: "boolean",
	TypeByte:    "byte",
	TypeInt:     "int",
	TypeUInt:    "uint",
	TypeLong:    "long",
	TypeULong:   "ulong",
	TypeFloat:   "float",
	TypeDouble:  "double",
	TypePointer: "pointer",
	TypeString:  "string",
}

// PrimitiveNames lists the primitive type keywords offered after "as " and
// "new ".
var PrimitiveNames = []string{"byte", "int", "uint", "long", "ulong", "float", "double", "pointer"}

// PrimitiveType looks up a primitive or builtin type name.
func PrimitiveType(name string) (BasicType, bool) {
	for t, n := range basicNames {
		if n == name {
			return t, true
		}
	}
	return TypeVoid, false
}

// ResolvedType is a fully resolved expression type. IndexLevel counts array
// dimensions; a non-zero IndexLevel makes the value an array regardless of
// Base.
type ResolvedType struct {
	Base       BasicType
	IndexLevel int
	Class      *Class
	Proto      *Prototype
	Import     *ImportTree
}

func (t ResolvedType) IsArray() bool { return t.IndexLevel > 0 }

// Elem drops one array dimension.
func (t ResolvedType) Elem() ResolvedType {
	if t.IndexLevel > 0 {
		t.IndexLevel--
	}
	return t
}

func (t ResolvedType) String() string {
	var b strings.Builder
	switch t.Base {
	case TypeClass:
		if t.Class != nil {
			b.WriteString(t.Class.Name)
		} else {
			b.WriteString("class")
		}
	case TypeFunction:
		if t.Proto != nil && t.Proto.TypeName != "" {
			b.WriteString(t.Proto.TypeName)
		} else {
			b.WriteString("function")
		}
	case TypeModule:
		b.WriteString("module")
	default:
		b.WriteString(basicNames[t.Base])
	}
	for i := 0; i < t.IndexLevel; i++ {
		b.WriteString("[]")
	}
	return b.String()
}

type Field struct {
	Name string
	Type ResolvedType
	Decl SourcePos
}

type Method struct {
	Name    string
	Proto   *Prototype
	Virtual bool
	Decl    SourcePos
}

type Class struct {
	Name    string
	Fields  []Field
	Methods []Method
	Decl    SourcePos
}

func (c *Class) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

func (c *Class) Method(name string) (Method, bool) {
	for _, m := range c.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return Method{}, false
}

type Param struct {
	Name string
	Type ResolvedType
}

// Prototype is a function signature. Name is the declared function name,
// TypeName the functype name when the prototype came from one.
type Prototype struct {
	Name     string
	TypeName string
	Params   []Param
	Return   ResolvedType
}

// ImportTree is one node of the tree built from a unit's imports. Module is
// set on nodes that are themselves imported modules.
type ImportTree struct {
	Submodules []string
	Module     *ImportedModule
}

// ImportedModule lists what an imported module declares and what it
// imported itself.
type ImportedModule struct {
	Name              string
	Classes           []string
	Variables         []string
	Functions         []string
	FuncTypes         []string
	ImportedClasses   []string
	ImportedVariables []string
	ImportedFunctions []string
	ImportedFuncTypes []string
}

type AutoCompletionKind int

const (
	// CompleteMember: "expr.$"
	CompleteMember AutoCompletionKind = iota
	// CompleteNew: "new T.$"
	CompleteNew
	// CompleteParameter: "f(a, $"
	CompleteParameter
)

// AutoCompletion is recorded when a compile reaches ProbeMarker. Type is the
// type of the expression left of the marker; for CompleteParameter it is
// the callee and ParameterNumber the zero based argument index.
type AutoCompletion struct {
	Kind            AutoCompletionKind
	Type            ResolvedType
	ParameterNumber int
}
