package server

import (
	"sync"

	"birdeels/internal/compiler"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// notifier forwards compile outcomes to the client.
type notifier struct {
	mu     sync.Mutex
	notify glsp.NotifyFunc
}

func (n *notifier) bind(notify glsp.NotifyFunc) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notify = notify
}

func (n *notifier) send(method string, params any) {
	n.mu.Lock()
	notify := n.notify
	n.mu.Unlock()
	if notify == nil {
		log.Debugf("dropping %s before initialize", method)
		return
	}
	notify(method, params)
}

// PublishDiagnostics replaces the document's diagnostics with the one
// describing err, or with none when err is nil.
func (n *notifier) PublishDiagnostics(uri string, err *compiler.Error) {
	diagnostics := []protocol.Diagnostic{}
	if err != nil {
		diagnostics = append(diagnostics, diagnostic(err))
	}
	n.send("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func (n *notifier) ShowMessage(message string) {
	n.send("window/showMessage", protocol.ShowMessageParams{
		Type:    protocol.MessageTypeInfo,
		Message: message,
	})
}

// diagnostic maps a compiler error at (line, pos) to the editor range
// (line, pos+1)-(line, pos+2).
func diagnostic(err *compiler.Error) protocol.Diagnostic {
	severity := protocol.DiagnosticSeverityError
	source := Name
	line := protocol.UInteger(max(err.Line, 0))
	col := protocol.UInteger(max(err.Pos+1, 0))
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: line, Character: col},
			End:   protocol.Position{Line: line, Character: col + 1},
		},
		Severity: &severity,
		Source:   &source,
		Message:  err.Msg,
	}
}
