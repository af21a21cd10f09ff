// Package module names Birdee modules and maps them onto the file system.
package module

import (
	"path/filepath"
	"strings"
)

// Name is a dotted Birdee module name split into its segments.
type Name []string

// Parse splits a dotted module name. Empty segments are dropped, so both
// "" and "a.b." parse without error.
func Parse(dotted string) Name {
	var name Name
	for _, seg := range strings.Split(dotted, ".") {
		seg = strings.TrimSpace(seg)
		if seg != "" {
			name = append(name, seg)
		}
	}
	return name
}

// Key is the canonical map key of the name.
func (n Name) Key() string {
	return strings.Join(n, ".")
}

func (n Name) String() string {
	return n.Key()
}

func (n Name) Equal(other Name) bool {
	if len(n) != len(other) {
		return false
	}
	for i := range n {
		if n[i] != other[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix is a leading subsequence of n.
func (n Name) HasPrefix(prefix Name) bool {
	if len(prefix) > len(n) {
		return false
	}
	return n[:len(prefix)].Equal(prefix)
}

// Path maps the name below root: one directory per segment except the
// last, which gets ext appended.
func (n Name) Path(root, ext string) string {
	if len(n) == 0 {
		return root
	}
	parts := append([]string{root}, n[:len(n)-1]...)
	parts = append(parts, n[len(n)-1]+ext)
	return filepath.Join(parts...)
}

// Dir maps the name to a directory below root.
func (n Name) Dir(root string) string {
	return filepath.Join(append([]string{root}, n...)...)
}
