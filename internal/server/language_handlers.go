package server

import (
	"unicode/utf8"

	"birdeels/internal/analysis"
	"birdeels/internal/manager"
	"birdeels/internal/orchestrator"
	"birdeels/internal/query"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// textDocumentCompletion only answers requests raised by a trigger
// character; invoked completion yields nothing.
func (s *Server) textDocumentCompletion(
	context *glsp.Context,
	params *protocol.CompletionParams,
) (any, error) {
	if s.analyzer == nil || params.Context == nil {
		return nil, nil
	}
	if params.Context.TriggerKind != protocol.CompletionTriggerKindTriggerCharacter ||
		params.Context.TriggerCharacter == nil {
		return nil, nil
	}
	req, err := s.request(params.TextDocument.URI, params.Position, *params.Context.TriggerCharacter)
	if err != nil {
		return nil, err
	}
	items := s.analyzer.Complete(req)
	if items == nil {
		return nil, nil
	}
	return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
}

func (s *Server) textDocumentSignatureHelp(
	context *glsp.Context,
	params *protocol.SignatureHelpParams,
) (*protocol.SignatureHelp, error) {
	if s.analyzer == nil {
		return nil, nil
	}
	trigger := ""
	if params.Context != nil && params.Context.TriggerCharacter != nil {
		trigger = *params.Context.TriggerCharacter
	}
	req, err := s.request(params.TextDocument.URI, params.Position, trigger)
	if err != nil {
		return nil, err
	}
	return s.analyzer.SignatureHelp(req), nil
}

// textDocumentDefinition compiles the buffer as it is now and searches the
// statements around the cursor. A buffer that does not compile has no
// definitions.
func (s *Server) textDocumentDefinition(
	context *glsp.Context,
	params *protocol.DefinitionParams,
) (any, error) {
	if s.orch == nil {
		return nil, nil
	}
	uri := params.TextDocument.URI
	doc, err := s.manager.GetDocument(uri)
	if err != nil {
		return nil, err
	}
	line := manager.Line(doc, int(params.Position.Line))
	cur := query.Cursor{
		Line:       int(params.Position.Line),
		Character:  manager.RuneColumn(line, int(params.Position.Character)),
		LineLength: utf8.RuneCountInString(line),
	}

	var location protocol.Location
	var found bool
	s.orch.Exclusive(func(u *orchestrator.Unit) error {
		if !u.Compile(uri, doc) {
			return nil
		}
		location, found = query.Definition(u.Compiler().TopLevel(), cur, uri)
		return nil
	})
	if !found {
		return nil, nil
	}
	return location, nil
}

func (s *Server) request(uri protocol.DocumentUri, pos protocol.Position, trigger string) (analysis.Request, error) {
	doc, err := s.manager.GetDocument(uri)
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{URI: uri, Text: doc, Position: pos, Trigger: trigger}, nil
}
