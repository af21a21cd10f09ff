package scanner

import (
	"bufio"
	"bytes"
	"strings"
)

// Imports lists the modules a source file imports, read from its import
// lines without compiling it. Symbol imports ("import a.b:name") count as
// imports of a.b.
func Imports(document []byte) []string {
	var imports []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(bytes.NewReader(document))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}
		rest, ok := strings.CutPrefix(line, "import ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(strings.TrimSpace(rest), ":")
		name = strings.TrimSpace(name)
		if name != "" && !seen[name] {
			seen[name] = true
			imports = append(imports, name)
		}
	}
	return imports
}
