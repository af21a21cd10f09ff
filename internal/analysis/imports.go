package analysis

import (
	"os"
	"strings"

	"birdeels/internal/metadata"
	"birdeels/internal/module"
	"birdeels/internal/orchestrator"

	protocol "github.com/tliron/glsp/protocol_3_16"
)

type searchDir struct {
	root string
	ext  string
}

// ImportPaths lists the segments that can follow prefix in an import. A
// segment that ends a module name is a module; one with more segments
// below it is a folder. Cached modules come first, then the cache
// directory, the source roots and the library.
func (a *Analyzer) ImportPaths(prefix module.Name) []protocol.CompletionItem {
	found := make(map[string]protocol.CompletionItem)
	var dirs []searchDir

	a.orch.Exclusive(func(u *orchestrator.Unit) error {
		cache := u.Cache()
		for _, name := range cache.Names() {
			if len(name) <= len(prefix) || !name.HasPrefix(prefix) {
				continue
			}
			seg := name[len(prefix)]
			if _, ok := found[seg]; ok {
				continue
			}
			kind := protocol.CompletionItemKindFolder
			if len(name) == len(prefix)+1 {
				kind = protocol.CompletionItemKindModule
			}
			found[seg] = item(seg, kind)
		}

		if cache.Root() != "" {
			dirs = append(dirs, searchDir{cache.Root(), metadata.Extension})
		}
		if exts := u.SourceExtensions(); len(exts) > 0 {
			for _, root := range u.SourceRoots() {
				dirs = append(dirs, searchDir{root, exts[0]})
			}
		}
		if cache.Library() != "" {
			dirs = append(dirs, searchDir{cache.Library(), metadata.Extension})
		}
		return nil
	})

	for _, d := range dirs {
		scanNext(found, prefix.Dir(d.root), d.ext)
	}
	return sortedKeys(found)
}

// scanNext adds the subdirectories of dir and its files carrying ext.
func scanNext(found map[string]protocol.CompletionItem, dir string, ext string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if e.IsDir() {
			if _, ok := found[name]; !ok {
				found[name] = item(name, protocol.CompletionItemKindFolder)
			}
			continue
		}
		if !strings.HasSuffix(name, ext) {
			continue
		}
		name = strings.TrimSuffix(name, ext)
		if _, ok := found[name]; !ok && name != "" {
			found[name] = item(name, protocol.CompletionItemKindModule)
		}
	}
}

// ImportSymbols lists what a module exports, for "import mod:name".
func (a *Analyzer) ImportSymbols(name module.Name) []protocol.CompletionItem {
	if len(name) == 0 {
		return nil
	}
	var names metadata.Names
	var found bool
	a.orch.Exclusive(func(u *orchestrator.Unit) error {
		var err error
		names, err = u.Cache().Declared(name)
		if err != nil {
			log.Debugf("import completion for %s: %v", name, err)
		}
		found = err == nil
		return nil
	})
	if !found {
		return nil
	}

	var out []protocol.CompletionItem
	out = append(out, items(names.Classes, protocol.CompletionItemKindClass)...)
	out = append(out, items(names.Variables, protocol.CompletionItemKindVariable)...)
	out = append(out, items(names.Functions, protocol.CompletionItemKindFunction)...)
	out = append(out, items(names.FunctionTypes, protocol.CompletionItemKindFunction)...)
	return out
}
