package manager

import (
	"fmt"
	"sync"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

// DocumentManager holds the editor's view of every open document.
type DocumentManager struct {
	mu   sync.Mutex
	docs map[string]string
}

// NewDocumentManager creates an initialized DocumentManager.
func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		docs: make(map[string]string),
	}
}

// GetDocument returns the current text for a URI.
func (dm *DocumentManager) GetDocument(uri string) (string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, ok := dm.docs[uri]
	if !ok {
		return "", fmt.Errorf("document not loaded for %s", uri)
	}
	return doc, nil
}

// UpdateDocument replaces the text for a URI.
func (dm *DocumentManager) UpdateDocument(uri string, content string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.docs[uri] = content
}

// ApplyChanges applies a didChange batch in order and returns the new text.
// Both ranged and whole-document events are accepted.
func (dm *DocumentManager) ApplyChanges(uri string, changes []any) (string, error) {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	doc, ok := dm.docs[uri]
	if !ok {
		return "", fmt.Errorf("no document for %s", uri)
	}
	for _, raw := range changes {
		switch change := raw.(type) {
		case protocol.TextDocumentContentChangeEvent:
			if change.Range == nil {
				doc = change.Text
				continue
			}
			doc = ApplyTextEdit(*change.Range, change.Text, doc)
		case protocol.TextDocumentContentChangeEventWhole:
			doc = change.Text
		default:
			return "", fmt.Errorf("unexpected change event type %T", raw)
		}
	}
	dm.docs[uri] = doc
	return doc, nil
}

// Release forgets a URI.
func (dm *DocumentManager) Release(uri string) {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	delete(dm.docs, uri)
}

// URIs lists the open documents.
func (dm *DocumentManager) URIs() []string {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	uris := make([]string, 0, len(dm.docs))
	for uri := range dm.docs {
		uris = append(uris, uri)
	}
	return uris
}
