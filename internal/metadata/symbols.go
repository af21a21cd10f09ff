package metadata

import (
	"encoding/json"
	"fmt"
)

// Type names a type in exported metadata. Module is empty for primitives
// and for types declared by the exporting module itself.
type Type struct {
	Name   string `json:"name"`
	Dims   int    `json:"dims,omitempty"`
	Module string `json:"module,omitempty"`
}

type Variable struct {
	Name string `json:"name"`
	Type Type   `json:"type"`
	Line int    `json:"line"`
	Pos  int    `json:"pos"`
}

type Function struct {
	Name    string     `json:"name"`
	Args    []Variable `json:"args"`
	Return  Type       `json:"return"`
	Virtual bool       `json:"virtual,omitempty"`
	Line    int        `json:"line"`
	Pos     int        `json:"pos"`
}

type Class struct {
	Name    string     `json:"name"`
	Fields  []Variable `json:"fields"`
	Methods []Function `json:"methods"`
	Line    int        `json:"line"`
	Pos     int        `json:"pos"`
}

// Template is a function template. Anonymous templates have no name.
type Template struct {
	Name string `json:"name,omitempty"`
	Line int    `json:"line"`
	Pos  int    `json:"pos"`
}

// Names groups symbol names by category.
type Names struct {
	Classes       []string `json:"Classes"`
	Variables     []string `json:"Variables"`
	Functions     []string `json:"Functions"`
	FunctionTypes []string `json:"FunctionTypes"`
}

// Symbols is the content of a .bmm file.
type Symbols struct {
	Package           string     `json:"Package"`
	SourceFile        string     `json:"SourceFile"`
	Imports           []string   `json:"Imports"`
	Classes           []Class    `json:"Classes"`
	Variables         []Variable `json:"Variables"`
	Functions         []Function `json:"Functions"`
	FunctionTemplates []Template `json:"FunctionTemplates"`
	FunctionTypes     []Function `json:"FunctionTypes"`
	Imported          Names      `json:"Imported"`
}

func Decode(data []byte) (*Symbols, error) {
	var s Symbols
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &s, nil
}

type named struct {
	Name string `json:"name"`
}

// DecodeNames reads only the names of the declared symbols, so it accepts
// any .bmm whose records carry a name whatever the shape of their other
// fields.
func DecodeNames(data []byte) (Names, error) {
	var s struct {
		Classes           []named `json:"Classes"`
		Variables         []named `json:"Variables"`
		Functions         []named `json:"Functions"`
		FunctionTemplates []named `json:"FunctionTemplates"`
		FunctionTypes     []named `json:"FunctionTypes"`
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return Names{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var n Names
	for _, c := range s.Classes {
		n.Classes = append(n.Classes, c.Name)
	}
	for _, v := range s.Variables {
		n.Variables = append(n.Variables, v.Name)
	}
	for _, f := range s.Functions {
		n.Functions = append(n.Functions, f.Name)
	}
	for _, t := range s.FunctionTemplates {
		if t.Name != "" {
			n.Functions = append(n.Functions, t.Name)
		}
	}
	for _, f := range s.FunctionTypes {
		n.FunctionTypes = append(n.FunctionTypes, f.Name)
	}
	return n, nil
}

func (s *Symbols) Encode() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// Declared returns the names the module declares itself. Anonymous
// templates are skipped.
func (s *Symbols) Declared() Names {
	var n Names
	for _, c := range s.Classes {
		n.Classes = append(n.Classes, c.Name)
	}
	for _, v := range s.Variables {
		n.Variables = append(n.Variables, v.Name)
	}
	for _, f := range s.Functions {
		n.Functions = append(n.Functions, f.Name)
	}
	for _, t := range s.FunctionTemplates {
		if t.Name != "" {
			n.Functions = append(n.Functions, t.Name)
		}
	}
	for _, f := range s.FunctionTypes {
		n.FunctionTypes = append(n.FunctionTypes, f.Name)
	}
	return n
}

func (s *Symbols) Class(name string) (*Class, bool) {
	for i := range s.Classes {
		if s.Classes[i].Name == name {
			return &s.Classes[i], true
		}
	}
	return nil, false
}

func (s *Symbols) Variable(name string) (*Variable, bool) {
	for i := range s.Variables {
		if s.Variables[i].Name == name {
			return &s.Variables[i], true
		}
	}
	return nil, false
}

func (s *Symbols) Function(name string) (*Function, bool) {
	for i := range s.Functions {
		if s.Functions[i].Name == name {
			return &s.Functions[i], true
		}
	}
	return nil, false
}

func (s *Symbols) FunctionType(name string) (*Function, bool) {
	for i := range s.FunctionTypes {
		if s.FunctionTypes[i].Name == name {
			return &s.FunctionTypes[i], true
		}
	}
	return nil, false
}
