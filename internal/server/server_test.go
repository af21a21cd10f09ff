package server

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"birdeels/internal/compiler/lite"
	"birdeels/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

type notification struct {
	method string
	params any
}

type testHelper struct {
	root   string
	server *Server
	ctx    *glsp.Context

	mu    sync.Mutex
	sent  []notification
	calls []notification
}

func setupTest(t *testing.T, files map[string]string) *testHelper {
	t.Helper()
	t.Setenv("BIRDEE_HOME", "")
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	h := &testHelper{root: root, server: New(lite.New())}
	h.ctx = &glsp.Context{}
	h.ctx.Notify = func(method string, params any) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, notification{method, params})
	}
	h.ctx.Call = func(method string, params any, result any) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.calls = append(h.calls, notification{method, params})
		if r, ok := result.(*protocol.ShowDocumentResult); ok {
			r.Success = true
		}
	}

	rootURI := resolver.PathToURI(root)
	result, err := h.server.initialize(h.ctx, &protocol.InitializeParams{RootURI: &rootURI})
	require.NoError(t, err)
	initResult, ok := result.(protocol.InitializeResult)
	require.True(t, ok)
	require.NotNil(t, initResult.Capabilities.CompletionProvider)
	assert.Equal(t, []string{" ", ".", ":"}, initResult.Capabilities.CompletionProvider.TriggerCharacters)

	t.Cleanup(func() {
		assert.NoError(t, h.server.shutdown(h.ctx))
	})
	return h
}

func (h *testHelper) uri(name string) protocol.DocumentUri {
	return resolver.PathToURI(filepath.Join(h.root, name))
}

func (h *testHelper) open(t *testing.T, name, text string) protocol.DocumentUri {
	t.Helper()
	uri := h.uri(name)
	err := h.server.textDocumentDidOpen(h.ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: uri, LanguageID: "birdee", Version: 1, Text: text},
	})
	require.NoError(t, err)
	return uri
}

// lastDiagnostics is the most recent diagnostic list published for uri.
func (h *testHelper) lastDiagnostics(t *testing.T, uri protocol.DocumentUri) []protocol.Diagnostic {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.sent) - 1; i >= 0; i-- {
		if h.sent[i].method != "textDocument/publishDiagnostics" {
			continue
		}
		params := h.sent[i].params.(protocol.PublishDiagnosticsParams)
		if params.URI == uri {
			return params.Diagnostics
		}
	}
	t.Fatalf("no diagnostics published for %s", uri)
	return nil
}

func position(line, char int) protocol.TextDocumentPositionParams {
	return protocol.TextDocumentPositionParams{
		Position: protocol.Position{Line: protocol.UInteger(line), Character: protocol.UInteger(char)},
	}
}

const geoSource = `class Point
  x as int
end
dim origin = new Point
`

func TestDiagnostics(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.open(t, "main.bdm", "dim a = 1\ndim b = 2\ndim c = a + zz\n")

	diagnostics := h.lastDiagnostics(t, uri)
	require.Len(t, diagnostics, 1)
	d := diagnostics[0]
	assert.Equal(t, protocol.Position{Line: 2, Character: 12}, d.Range.Start)
	assert.Equal(t, protocol.Position{Line: 2, Character: 13}, d.Range.End)
	require.NotNil(t, d.Severity)
	assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)

	err := h.server.textDocumentDidChange(h.ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: uri},
			Version:                2,
		},
		ContentChanges: []any{
			protocol.TextDocumentContentChangeEvent{
				Range: &protocol.Range{
					Start: protocol.Position{Line: 2, Character: 12},
					End:   protocol.Position{Line: 2, Character: 14},
				},
				Text: "b",
			},
		},
	})
	require.NoError(t, err)
	assert.Empty(t, h.lastDiagnostics(t, uri))
}

func TestDependencyFailureIsShownAsMessage(t *testing.T) {
	h := setupTest(t, map[string]string{"broken.bdm": "dim a = zz\n"})
	uri := h.open(t, "main.bdm", "import broken\n")

	require.Len(t, h.lastDiagnostics(t, uri), 1)

	h.mu.Lock()
	defer h.mu.Unlock()
	var messages []string
	for _, n := range h.sent {
		if n.method == "window/showMessage" {
			messages = append(messages, n.params.(protocol.ShowMessageParams).Message)
		}
	}
	require.Len(t, messages, 1)
	assert.Contains(t, messages[0], "broken.bdm")
}

func TestDefinition(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.open(t, "main.bdm", "val x = 5\nprint(x)\n")

	params := &protocol.DefinitionParams{TextDocumentPositionParams: position(1, 6)}
	params.TextDocument.URI = uri
	result, err := h.server.textDocumentDefinition(h.ctx, params)
	require.NoError(t, err)
	loc, ok := result.(protocol.Location)
	require.True(t, ok)
	assert.Equal(t, uri, loc.URI)
	assert.Equal(t, protocol.Position{Line: 0, Character: 4}, loc.Range.Start)

	params = &protocol.DefinitionParams{TextDocumentPositionParams: position(1, 7)}
	params.TextDocument.URI = uri
	result, err = h.server.textDocumentDefinition(h.ctx, params)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestDefinitionAfterAstralCharacter(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.open(t, "main.bdm", "val x = 5\nfunction pair(a as int, b as int) as int\n  return b\nend\ndim r = pair(\"😀\", x)\n")

	// x sits at rune 18 and UTF-16 unit 19.
	params := &protocol.DefinitionParams{TextDocumentPositionParams: position(4, 19)}
	params.TextDocument.URI = uri
	result, err := h.server.textDocumentDefinition(h.ctx, params)
	require.NoError(t, err)
	loc, ok := result.(protocol.Location)
	require.True(t, ok)
	assert.Equal(t, protocol.Position{Line: 0, Character: 4}, loc.Range.Start)
}

func TestCompletion(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	uri := h.open(t, "main.bdm", "import ")

	space := " "
	params := &protocol.CompletionParams{
		TextDocumentPositionParams: position(0, 7),
		Context: &protocol.CompletionContext{
			TriggerKind:      protocol.CompletionTriggerKindTriggerCharacter,
			TriggerCharacter: &space,
		},
	}
	params.TextDocument.URI = uri
	result, err := h.server.textDocumentCompletion(h.ctx, params)
	require.NoError(t, err)
	list, ok := result.(protocol.CompletionList)
	require.True(t, ok)
	var labels []string
	for _, item := range list.Items {
		labels = append(labels, item.Label)
	}
	assert.Contains(t, labels, "geo")

	t.Run("Invoked", func(t *testing.T) {
		params.Context = &protocol.CompletionContext{TriggerKind: protocol.CompletionTriggerKindInvoked}
		result, err := h.server.textDocumentCompletion(h.ctx, params)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestSignatureHelp(t *testing.T) {
	h := setupTest(t, nil)
	text := "function add(a as int, b as int) as int\n  return a + b\nend\nadd(1, "
	uri := h.open(t, "main.bdm", text)

	comma := ","
	params := &protocol.SignatureHelpParams{
		TextDocumentPositionParams: position(3, 7),
		Context: &protocol.SignatureHelpContext{
			TriggerKind:      protocol.SignatureHelpTriggerKindTriggerCharacter,
			TriggerCharacter: &comma,
		},
	}
	params.TextDocument.URI = uri
	help, err := h.server.textDocumentSignatureHelp(h.ctx, params)
	require.NoError(t, err)
	require.NotNil(t, help)
	require.Len(t, help.Signatures, 1)
	assert.Equal(t, "function add(a as int, b as int) as int", help.Signatures[0].Label)
	require.NotNil(t, help.ActiveParameter)
	assert.Equal(t, protocol.UInteger(1), *help.ActiveParameter)
}

func TestWorkspaceSymbol(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	h.open(t, "main.bdm", "import geo\ndim p = geo.origin\n")

	symbols, err := h.server.workspaceSymbol(h.ctx, &protocol.WorkspaceSymbolParams{Query: "geo"})
	require.NoError(t, err)
	require.NotEmpty(t, symbols)
	assert.Equal(t, "geo", symbols[0].Name)
	assert.Equal(t, h.uri("geo.bdm"), symbols[0].Location.URI)
	assert.Equal(t, protocol.SymbolKindModule, symbols[0].Kind)

	symbols, err = h.server.workspaceSymbol(h.ctx, &protocol.WorkspaceSymbolParams{Query: "nothing-like-it"})
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestShutdownFlushesCache(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	h.open(t, "main.bdm", "import geo\n")

	require.NoError(t, h.server.shutdown(h.ctx))
	assert.FileExists(t, filepath.Join(h.root, ".birdeels", "cache", "geo.bmm"))
	assert.FileExists(t, filepath.Join(h.root, ".birdeels", "cache", "main.bmm"))
}

func TestImportGraphFollowsCompiles(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	h.open(t, "main.bdm", "import geo\n")

	graph := h.server.hub.Snapshot()
	labels := map[int]string{}
	for _, n := range graph.Nodes {
		labels[n.ID] = n.Label
	}
	var edges []string
	for _, l := range graph.Links {
		edges = append(edges, labels[l.Source]+"->"+labels[l.Target])
	}
	assert.Contains(t, edges, "main->geo")
}

func TestShowImportGraphOpensViewer(t *testing.T) {
	h := setupTest(t, nil)
	_, err := h.server.workspaceExecuteCommand(h.ctx, &protocol.ExecuteCommandParams{Command: ShowImportGraphCommand})
	require.NoError(t, err)

	h.mu.Lock()
	defer h.mu.Unlock()
	require.Len(t, h.calls, 1)
	assert.Equal(t, "window/showDocument", h.calls[0].method)
	params := h.calls[0].params.(protocol.ShowDocumentParams)
	assert.True(t, strings.HasPrefix(params.URI, "http://"))
	require.NotNil(t, params.External)
	assert.True(t, *params.External)
}

func TestShutdownStopsFlushing(t *testing.T) {
	h := setupTest(t, nil)
	require.NoError(t, h.server.shutdown(h.ctx))

	done := make(chan struct{})
	go func() {
		h.server.flushing.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("flush routine still running after shutdown")
	}
}
