package analysis

import (
	"strings"

	"birdeels/internal/compiler"
	"birdeels/internal/module"
	"birdeels/internal/orchestrator"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

var arrayMembers = []protocol.CompletionItem{
	item("get_raw", protocol.CompletionItemKindFunction),
	item("length", protocol.CompletionItemKindFunction),
}

// Complete dispatches on the trigger character and the text before the
// cursor. A nil result means there is nothing to offer.
func (a *Analyzer) Complete(req Request) []protocol.CompletionItem {
	before := req.before()
	importCode, isImport := trimImport(before)

	switch req.Trigger {
	case " ":
		if isImport && importCode == "" {
			return a.ImportPaths(nil)
		}
		if strings.HasSuffix(before, "as ") || strings.HasSuffix(before, "new ") {
			return a.TypeNames(req.URI)
		}
		return nil

	case ".", ":":
		if isImport {
			if req.Trigger == ":" {
				return a.ImportSymbols(module.Parse(strings.TrimSuffix(importCode, ":")))
			}
			return a.ImportPaths(module.Parse(importCode))
		}
		return a.Members(req)
	}
	return nil
}

// TypeNames lists the primitive types and every class and function type
// visible in the document's last known good state.
func (a *Analyzer) TypeNames(uri protocol.DocumentUri) []protocol.CompletionItem {
	out := items(compiler.PrimitiveNames, protocol.CompletionItemKindClass)
	a.orch.Exclusive(func(u *orchestrator.Unit) error {
		u.SwitchToLastKnownGood(uri)
		c := u.Compiler()
		for _, imported := range []bool{true, false} {
			out = append(out, items(c.Classes(imported), protocol.CompletionItemKindClass)...)
		}
		for _, imported := range []bool{true, false} {
			out = append(out, items(c.FuncTypes(imported), protocol.CompletionItemKindFunction)...)
		}
		return nil
	})
	return out
}

// Members probes the document and lists what can follow the expression
// before the cursor.
func (a *Analyzer) Members(req Request) []protocol.CompletionItem {
	var ac *compiler.AutoCompletion
	a.orch.Exclusive(func(u *orchestrator.Unit) error {
		ac = req.probe(u)
		return nil
	})
	if ac == nil {
		log.Debugf("no completion node for %s at %d:%d", req.URI, req.Position.Line, req.Position.Character)
		return nil
	}
	switch ac.Kind {
	case compiler.CompleteNew:
		return constructors(ac.Type)
	case compiler.CompleteMember:
		return members(ac.Type)
	}
	return nil
}

func constructors(t compiler.ResolvedType) []protocol.CompletionItem {
	if t.IsArray() || t.Base != compiler.TypeClass || t.Class == nil {
		return nil
	}
	out := make([]protocol.CompletionItem, 0, len(t.Class.Methods))
	for _, m := range t.Class.Methods {
		out = append(out, item(m.Name, protocol.CompletionItemKindFunction))
	}
	return out
}

func members(t compiler.ResolvedType) []protocol.CompletionItem {
	if t.IsArray() {
		return arrayMembers
	}
	switch {
	case t.Base == compiler.TypeClass && t.Class != nil:
		out := make([]protocol.CompletionItem, 0, len(t.Class.Fields)+len(t.Class.Methods))
		for _, f := range t.Class.Fields {
			out = append(out, item(f.Name, protocol.CompletionItemKindField))
		}
		for _, m := range t.Class.Methods {
			out = append(out, item(m.Name, protocol.CompletionItemKindFunction))
		}
		return out

	case t.Base == compiler.TypeModule && t.Import != nil:
		if len(t.Import.Submodules) > 0 {
			return items(t.Import.Submodules, protocol.CompletionItemKindModule)
		}
		m := t.Import.Module
		if m == nil {
			return nil
		}
		var out []protocol.CompletionItem
		out = append(out, items(m.Classes, protocol.CompletionItemKindClass)...)
		out = append(out, items(m.Variables, protocol.CompletionItemKindVariable)...)
		out = append(out, items(m.Functions, protocol.CompletionItemKindFunction)...)
		out = append(out, items(m.FuncTypes, protocol.CompletionItemKindClass)...)
		out = append(out, items(m.ImportedClasses, protocol.CompletionItemKindClass)...)
		out = append(out, items(m.ImportedVariables, protocol.CompletionItemKindVariable)...)
		out = append(out, items(m.ImportedFunctions, protocol.CompletionItemKindFunction)...)
		out = append(out, items(m.ImportedFuncTypes, protocol.CompletionItemKindClass)...)
		return out
	}
	return nil
}
