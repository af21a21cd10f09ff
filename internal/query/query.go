// Package query maps an editor cursor onto the compiler's syntax tree.
package query

import (
	"sort"

	"birdeels/internal/compiler"
	"birdeels/internal/resolver"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// Cursor is a 0-based editor position plus the length of its line, both
// counted in runes like the compiler's columns.
type Cursor struct {
	Line       int
	Character  int
	LineLength int
}

type candidate struct {
	node     *compiler.Node
	distance int
	order    int
}

// Window returns the top-level statements worth visiting for a cursor:
// the first statement starting at or after the cursor line, two before it
// and one after it. A cursor past every statement gets the last one.
func Window(top []*compiler.Node, line int) []*compiler.Node {
	if len(top) == 0 {
		return nil
	}
	idx := len(top)
	for i, n := range top {
		if n.Pos.Line >= line+1 {
			idx = i
			break
		}
	}
	if idx == len(top) {
		return top[len(top)-1:]
	}
	from, to := max(idx-2, 0), min(idx+2, len(top))
	return top[from:to]
}

// Candidates lists the nodes at or after the cursor, nearest first. Nodes
// reported at column 1 of the following line count as well; the compiler
// places the end of some expressions there, and their distance is what is
// left of the cursor line.
func Candidates(top []*compiler.Node, cur Cursor) []*compiler.Node {
	var found []candidate
	order := 0

	for _, stmt := range Window(top, cur.Line) {
		stack := []*compiler.Node{stmt}
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if n == nil {
				continue
			}

			switch {
			case n.Pos.Line == cur.Line+1 && n.Pos.Pos >= cur.Character+1:
				found = append(found, candidate{n, n.Pos.Pos - cur.Character - 1, order})
				order++
			case n.Pos.Line == cur.Line+2 && n.Pos.Pos == 1:
				found = append(found, candidate{n, cur.LineLength - cur.Character - 1, order})
				order++
			}

			for i := len(n.Children) - 1; i >= 0; i-- {
				stack = append(stack, n.Children[i])
			}
		}
	}

	sort.SliceStable(found, func(i, j int) bool {
		return found[i].distance < found[j].distance
	})
	nodes := make([]*compiler.Node, len(found))
	for i, c := range found {
		nodes[i] = c.node
	}
	return nodes
}

// Declaration returns where a node's referent is declared, if the node is
// a reference the compiler resolved.
func Declaration(n *compiler.Node) (compiler.SourcePos, bool) {
	switch n.Kind {
	case compiler.NodeLocalVar, compiler.NodeResolvedFunc:
		if n.Decl != nil {
			return *n.Decl, true
		}
	case compiler.NodeMember:
		if n.Member == nil || n.Member.Decl == nil {
			return compiler.SourcePos{}, false
		}
		switch n.Member.Kind {
		case compiler.MemberField,
			compiler.MemberFunction,
			compiler.MemberVirtualFunction,
			compiler.MemberImportedDim,
			compiler.MemberImportedFunction:
			return *n.Member.Decl, true
		}
	}
	return compiler.SourcePos{}, false
}

// Definition picks the first candidate with a known declaration and
// translates it into an editor location. Positions in other files are
// reported against their file URI.
func Definition(top []*compiler.Node, cur Cursor, current protocol.DocumentUri) (protocol.Location, bool) {
	for _, n := range Candidates(top, cur) {
		pos, ok := Declaration(n)
		if !ok {
			continue
		}
		uri := current
		if !pos.IsCurrent() {
			if pos.SourcePath == "" {
				continue
			}
			uri = resolver.PathToURI(pos.SourcePath)
		}
		return Location(uri, pos), true
	}
	return protocol.Location{}, false
}

// Location converts a 1-based compiler position to an editor range
// covering the character it points at.
func Location(uri protocol.DocumentUri, pos compiler.SourcePos) protocol.Location {
	line := protocol.UInteger(max(pos.Line-1, 0))
	char := protocol.UInteger(max(pos.Pos-1, 0))
	return protocol.Location{
		URI: uri,
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: char},
			End:   protocol.Position{Line: line, Character: char + 1},
		},
	}
}
