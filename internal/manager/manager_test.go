package manager

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func rng(sl, sc, el, ec protocol.UInteger) *protocol.Range {
	return &protocol.Range{
		Start: protocol.Position{Line: sl, Character: sc},
		End:   protocol.Position{Line: el, Character: ec},
	}
}

func TestApplyChanges(t *testing.T) {
	dm := NewDocumentManager()
	uri := "file:///src/main.bdm"

	_, err := dm.ApplyChanges(uri, nil)
	assert.Error(t, err)

	dm.UpdateDocument(uri, "dim a = 1\ndim b = 2\n")
	doc, err := dm.ApplyChanges(uri, []any{
		protocol.TextDocumentContentChangeEvent{Range: rng(0, 8, 0, 9), Text: "42"},
		protocol.TextDocumentContentChangeEvent{Range: rng(1, 0, 1, 0), Text: "val c = 3\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "dim a = 42\nval c = 3\ndim b = 2\n", doc)

	doc, err = dm.ApplyChanges(uri, []any{protocol.TextDocumentContentChangeEventWhole{Text: "print(1)\n"}})
	require.NoError(t, err)
	assert.Equal(t, "print(1)\n", doc)

	stored, err := dm.GetDocument(uri)
	require.NoError(t, err)
	assert.Equal(t, doc, stored)

	_, err = dm.ApplyChanges(uri, []any{42})
	assert.Error(t, err)

	dm.Release(uri)
	_, err = dm.GetDocument(uri)
	assert.Error(t, err)
}

func TestPositionToOffset(t *testing.T) {
	doc := "héllo\n😀x = 1\n"

	tests := []struct {
		name string
		pos  protocol.Position
		want int
	}{
		{"start", protocol.Position{Line: 0, Character: 0}, 0},
		{"after two byte rune", protocol.Position{Line: 0, Character: 2}, 3},
		{"second line", protocol.Position{Line: 1, Character: 0}, 7},
		{"after surrogate pair", protocol.Position{Line: 1, Character: 2}, 11},
		{"inside surrogate pair", protocol.Position{Line: 1, Character: 1}, 7},
		{"past end of line", protocol.Position{Line: 0, Character: 99}, 6},
		{"past last line", protocol.Position{Line: 9, Character: 0}, len(doc)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PositionToOffset(doc, tt.pos))
		})
	}
}

func TestSpliceAndLine(t *testing.T) {
	doc := "dim p = q\r\np.\n"
	assert.Equal(t, "dim p = q", Line(doc, 0))
	assert.Equal(t, "p.", Line(doc, 1))
	assert.Equal(t, "", Line(doc, 7))

	assert.Equal(t, "dim p = q\r\np.$\n", Splice(doc, protocol.Position{Line: 1, Character: 2}, "$"))
	assert.Equal(t, 3, UTF16Len("a😀"))
}

func TestRuneColumn(t *testing.T) {
	line := `f("😀", x)`
	assert.Equal(t, 0, RuneColumn(line, 0))
	assert.Equal(t, 3, RuneColumn(line, 3))
	assert.Equal(t, 4, RuneColumn(line, 5))
	assert.Equal(t, 7, RuneColumn(line, 8))
	assert.Equal(t, 10, RuneColumn(line, 11), "past the end")
}
