package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterByBitapFuzzy(t *testing.T) {
	names := []string{"main", "geometry", "util.geo", "geo", "graphics.shapes", "Geodesy"}

	tests := []struct {
		name    string
		pattern string
		want    []string
	}{
		{"exact substring", "geo", []string{"geo", "Geodesy", "geometry", "util.geo"}},
		{"one typo", "geomtry", []string{"geometry"}},
		{"two typos", "grapics.shaps", []string{"graphics.shapes"}},
		{"short queries are exact", "gxo", nil},
		{"no match", "network", nil},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filterByBitapFuzzyParallel(tt.pattern, names, 2, 128))
		})
	}
}

func TestFilterByBitapFuzzyLimit(t *testing.T) {
	names := []string{"a.mod", "b.mod", "c.mod", "d.mod"}
	got := filterByBitapFuzzyParallel("mod", names, 2, 2)
	assert.Equal(t, []string{"a.mod", "b.mod"}, got)
}

func TestBitapErrorCount(t *testing.T) {
	masks := func(p string) map[rune]uint64 {
		m := map[rune]uint64{}
		for i, r := range p {
			m[r] |= 1 << uint(i)
		}
		return m
	}
	assert.Equal(t, 0, bitapFuzzyMatch("resolver", masks("solve"), 5, 2))
	assert.Equal(t, 1, bitapFuzzyMatch("resolver", masks("solbe"), 5, 2))
	assert.Equal(t, 1, bitapFuzzyMatch("resolver", masks("solvve"), 6, 2))
	assert.Equal(t, 1, bitapFuzzyMatch("resolver", masks("slve"), 4, 2))
	assert.Equal(t, -1, bitapFuzzyMatch("resolver", masks("xyzzy"), 5, 2))
}
