package analysis

import (
	"fmt"
	"strings"

	"birdeels/internal/compiler"
	"birdeels/internal/manager"
	"birdeels/internal/orchestrator"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// SignatureHelp probes the document and describes the call whose argument
// list holds the cursor.
func (a *Analyzer) SignatureHelp(req Request) *protocol.SignatureHelp {
	var ac *compiler.AutoCompletion
	a.orch.Exclusive(func(u *orchestrator.Unit) error {
		ac = req.probe(u)
		return nil
	})
	if ac == nil || ac.Kind != compiler.CompleteParameter {
		return nil
	}
	return Signature(ac)
}

// Signature renders "function name(a as T, b as U) as R" and the span of
// every parameter in it, counted in UTF-16 code units.
func Signature(ac *compiler.AutoCompletion) *protocol.SignatureHelp {
	t := ac.Type
	if t.Base != compiler.TypeFunction || t.IsArray() || t.Proto == nil {
		return nil
	}
	proto := t.Proto

	var label strings.Builder
	label.WriteString("function " + proto.Name + "(")
	offset := manager.UTF16Len(label.String())

	params := make([]protocol.ParameterInformation, 0, len(proto.Params))
	for i, p := range proto.Params {
		if i > 0 {
			label.WriteString(", ")
			offset += 2
		}
		part := fmt.Sprintf("%s as %s", p.Name, p.Type)
		end := offset + manager.UTF16Len(part)
		params = append(params, protocol.ParameterInformation{
			Label: [2]protocol.UInteger{protocol.UInteger(offset), protocol.UInteger(end)},
		})
		label.WriteString(part)
		offset = end
	}
	fmt.Fprintf(&label, ") as %s", proto.Return)

	active := protocol.UInteger(ac.ParameterNumber)
	zero := protocol.UInteger(0)
	return &protocol.SignatureHelp{
		Signatures: []protocol.SignatureInformation{{
			Label:      label.String(),
			Parameters: params,
		}},
		ActiveSignature: &zero,
		ActiveParameter: &active,
	}
}
