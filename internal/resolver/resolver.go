// Package resolver locates Birdee modules: in the metadata cache first and
// then as source files below the configured source roots.
package resolver

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"birdeels/internal/compiler"
	"birdeels/internal/metadata"
	"birdeels/internal/module"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

var log = commonlog.GetLogger("birdeels.resolver")

// Resolver implements compiler.Resolver in two phases. Phase one only
// consults the in-memory cache. Phase two looks for a source file with each
// extension in order and never reports partial metadata.
type Resolver struct {
	cache      *metadata.Cache
	roots      []string
	extensions []string
}

func New(cache *metadata.Cache, roots []string, extensions []string) *Resolver {
	return &Resolver{cache: cache, roots: roots, extensions: extensions}
}

func (r *Resolver) Configure(roots []string, extensions []string) {
	r.roots = roots
	r.extensions = extensions
}

func (r *Resolver) Roots() []string { return r.roots }

func (r *Resolver) Extensions() []string { return r.extensions }

func (r *Resolver) Resolve(name module.Name, secondChance bool) compiler.Resolution {
	if !secondChance {
		if data, ok := r.cache.Cached(name); ok {
			return compiler.Resolution{Kind: compiler.Cached, Name: name, Metadata: data}
		}
		return compiler.Resolution{Kind: compiler.NotCached, Name: name}
	}
	if path, ok := FindSource(r.roots, name, r.extensions); ok {
		log.Debugf("module %s needs source %s", name, path)
		return compiler.Resolution{Kind: compiler.NeedsSource, Name: name, SourcePath: path}
	}
	log.Debugf("module %s not found", name)
	return compiler.Resolution{Kind: compiler.Missing, Name: name}
}

// FindSource tries every extension, in order, below every root.
func FindSource(roots []string, name module.Name, extensions []string) (string, bool) {
	if len(name) == 0 {
		return "", false
	}
	for _, ext := range extensions {
		for _, root := range roots {
			candidate := name.Path(root, ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, true
			}
		}
	}
	return "", false
}

// ModuleName derives the module name of a source file below root.
func ModuleName(root, path string) (module.Name, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, false
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	return module.Name(strings.Split(filepath.ToSlash(rel), "/")), true
}

// IgnoreDir reports whether a directory is hidden from scans.
func IgnoreDir(path string) bool {
	base := filepath.Base(path)
	return len(base) > 1 && strings.HasPrefix(base, ".")
}

// URIToPath converts a file URI to a file system path. Anything that does
// not parse as a file URI is returned unchanged.
func URIToPath(uri protocol.DocumentUri) string {
	u, err := url.Parse(string(uri))
	if err != nil || u.Scheme != "file" {
		return string(uri)
	}
	return filepath.FromSlash(u.Path)
}

// PathToURI converts an absolute path to a file URI.
func PathToURI(path string) protocol.DocumentUri {
	u := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Clean(path))}
	return protocol.DocumentUri(u.String())
}
