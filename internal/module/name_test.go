package module

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Name
	}{
		{"", nil},
		{"a", Name{"a"}},
		{"a.b.c", Name{"a", "b", "c"}},
		{"a.b.", Name{"a", "b"}},
		{" a . b ", Name{"a", "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.in))
		})
	}
}

func TestNamePath(t *testing.T) {
	n := Name{"a", "b", "c"}
	assert.Equal(t, filepath.Join("root", "a", "b", "c.bmm"), n.Path("root", ".bmm"))
	assert.Equal(t, filepath.Join("root", "a", "b", "c"), n.Dir("root"))
	assert.Equal(t, "root", Name{}.Path("root", ".bmm"))
	assert.Equal(t, "a.b.c", n.Key())
}

func TestHasPrefix(t *testing.T) {
	n := Name{"a", "b", "c"}
	assert.True(t, n.HasPrefix(nil))
	assert.True(t, n.HasPrefix(Name{"a", "b"}))
	assert.True(t, n.HasPrefix(n))
	assert.False(t, n.HasPrefix(Name{"a", "c"}))
	assert.False(t, n.HasPrefix(Name{"a", "b", "c", "d"}))
	assert.True(t, n.Equal(Parse("a.b.c")))
}
