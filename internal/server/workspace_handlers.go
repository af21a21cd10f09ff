package server

import (
	"birdeels/internal/resolver"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

const maxSymbolResults = 128

// workspaceSymbol looks up modules by name, tolerating up to two typos.
func (s *Server) workspaceSymbol(
	context *glsp.Context,
	params *protocol.WorkspaceSymbolParams,
) ([]protocol.SymbolInformation, error) {
	if s.store == nil {
		return nil, nil
	}
	records, err := s.store.Modules()
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(records))
	uris := make(map[string]protocol.DocumentUri, len(records))
	for _, rec := range records {
		if rec.SourcePath == "" {
			continue
		}
		names = append(names, rec.Name)
		uris[rec.Name] = resolver.PathToURI(rec.SourcePath)
	}

	var hits []string
	if params.Query == "" {
		hits = names[:min(len(names), maxSymbolResults)]
	} else {
		k := 2 // tolerate up to 2 typos
		hits = filterByBitapFuzzyParallel(params.Query, names, k, maxSymbolResults)
	}

	var symbols []protocol.SymbolInformation
	for _, h := range hits {
		symbols = append(symbols, protocol.SymbolInformation{
			Name:     h,
			Kind:     protocol.SymbolKindModule,
			Location: protocol.Location{URI: uris[h]},
		})
	}
	return symbols, nil
}

func (s *Server) workspaceExecuteCommand(
	context *glsp.Context,
	params *protocol.ExecuteCommandParams,
) (any, error) {
	if params.Command == ShowImportGraphCommand {
		return nil, s.showImportGraph(context)
	}
	log.Warningf("unknown command %q", params.Command)
	return nil, nil
}

// showImportGraph starts the graph viewer on first use and asks the client
// to open it.
func (s *Server) showImportGraph(context *glsp.Context) error {
	addr, err := s.hub.Serve(":0")
	if err != nil {
		return err
	}
	log.Infof("import graph at %s", addr)
	var result protocol.ShowDocumentResult
	context.Call(
		"window/showDocument",
		protocol.ShowDocumentParams{
			URI:      protocol.URI(addr),
			External: &protocol.True,
		},
		&result,
	)
	if !result.Success {
		log.Warningf("client did not open %s", addr)
	}
	return nil
}
