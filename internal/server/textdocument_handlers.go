package server

import (
	"fmt"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func (s *Server) textDocumentDidOpen(
	context *glsp.Context,
	params *protocol.DidOpenTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	s.manager.UpdateDocument(uri, params.TextDocument.Text)
	return s.compile(uri, params.TextDocument.Text)
}

func (s *Server) textDocumentDidChange(
	context *glsp.Context,
	params *protocol.DidChangeTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	text, err := s.manager.ApplyChanges(uri, params.ContentChanges)
	if err != nil {
		return fmt.Errorf("unexpected error during edit: %w", err)
	}
	return s.compile(uri, text)
}

func (s *Server) textDocumentDidSave(
	context *glsp.Context,
	params *protocol.DidSaveTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	var text string
	if params.Text != nil {
		text = *params.Text
		s.manager.UpdateDocument(uri, text)
	} else {
		doc, err := s.manager.GetDocument(uri)
		if err != nil {
			return err
		}
		text = doc
	}
	return s.compile(uri, text)
}

func (s *Server) textDocumentDidClose(
	context *glsp.Context,
	params *protocol.DidCloseTextDocumentParams,
) error {
	uri := params.TextDocument.URI
	s.manager.Release(uri)
	if s.orch != nil {
		s.orch.Forget(uri)
	}
	return nil
}

// compile refreshes the document's diagnostic. The outcome itself reaches
// the client through the notifier.
func (s *Server) compile(uri, text string) error {
	if s.orch == nil {
		return fmt.Errorf("server not initialized")
	}
	if !s.orch.Compile(uri, text) {
		log.Debugf("%s does not compile", uri)
	}
	return nil
}
