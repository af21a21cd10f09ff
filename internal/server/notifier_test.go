package server

import (
	"testing"

	"birdeels/internal/compiler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

func TestDiagnosticRange(t *testing.T) {
	tests := []struct {
		name       string
		err        compiler.Error
		start, end protocol.Position
	}{
		{"column 10", compiler.Error{Line: 3, Pos: 10, Msg: "bad"},
			protocol.Position{Line: 3, Character: 11}, protocol.Position{Line: 3, Character: 12}},
		{"first column", compiler.Error{Line: 0, Pos: -1, Msg: "bad"},
			protocol.Position{Line: 0, Character: 0}, protocol.Position{Line: 0, Character: 1}},
		{"no position", compiler.Error{Line: -1, Pos: -5, Msg: "bad"},
			protocol.Position{Line: 0, Character: 0}, protocol.Position{Line: 0, Character: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diagnostic(&tt.err)
			assert.Equal(t, tt.start, d.Range.Start)
			assert.Equal(t, tt.end, d.Range.End)
			assert.Equal(t, "bad", d.Message)
			require.NotNil(t, d.Severity)
			assert.Equal(t, protocol.DiagnosticSeverityError, *d.Severity)
		})
	}
}
