// Package analysis answers completion and signature-help requests. Both
// classify the text around the cursor and, for expressions, probe the
// compiler with a marker spliced in at the cursor.
package analysis

import (
	"sort"
	"strings"

	"birdeels/internal/compiler"
	"birdeels/internal/manager"
	"birdeels/internal/orchestrator"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("birdeels.analysis")

const importKeyword = "import "

// Request is a position in a document together with the document's text
// and the character that triggered the request, if any.
type Request struct {
	URI      protocol.DocumentUri
	Text     string
	Position protocol.Position
	Trigger  string
}

// before is the cursor line up to the cursor.
func (r Request) before() string {
	line := manager.Line(r.Text, int(r.Position.Line))
	lineStart := manager.PositionToOffset(r.Text, protocol.Position{Line: r.Position.Line})
	cursor := manager.PositionToOffset(r.Text, r.Position) - lineStart
	if cursor > len(line) {
		cursor = len(line)
	}
	if cursor < 0 {
		cursor = 0
	}
	return line[:cursor]
}

// probe compiles the document with the marker at the cursor.
func (r Request) probe(u *orchestrator.Unit) *compiler.AutoCompletion {
	return u.Probe(r.URI, manager.Splice(r.Text, r.Position, compiler.ProbeMarker))
}

type Analyzer struct {
	orch *orchestrator.Orchestrator
}

func New(orch *orchestrator.Orchestrator) *Analyzer {
	return &Analyzer{orch: orch}
}

func item(label string, kind protocol.CompletionItemKind) protocol.CompletionItem {
	return protocol.CompletionItem{Label: label, Kind: &kind}
}

func items(names []string, kind protocol.CompletionItemKind) []protocol.CompletionItem {
	out := make([]protocol.CompletionItem, 0, len(names))
	for _, name := range names {
		out = append(out, item(name, kind))
	}
	return out
}

func sortedKeys(m map[string]protocol.CompletionItem) []protocol.CompletionItem {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]protocol.CompletionItem, len(keys))
	for i, k := range keys {
		out[i] = m[k]
	}
	return out
}

func trimImport(before string) (string, bool) {
	stripped := strings.TrimSpace(before)
	if stripped == strings.TrimSpace(importKeyword) {
		return "", true
	}
	if !strings.HasPrefix(stripped, importKeyword) {
		return "", false
	}
	return strings.TrimSpace(stripped[len(importKeyword):]), true
}
