// Package metadata stores the exported symbol tables of compiled modules.
//
// Lookups go through three tiers: the in-memory map filled by successful
// compiles, the workspace cache root and the shared library root. Only the
// in-memory tier is ever written during a session; the on-disk tiers are
// read as fallbacks and the cache root is rewritten by Flush.
package metadata

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"birdeels/internal/module"

	"github.com/tliron/commonlog"
)

// Extension of metadata files.
const Extension = ".bmm"

var (
	ErrNotFound  = errors.New("metadata: module not found")
	ErrMalformed = errors.New("metadata: malformed symbol table")
)

var log = commonlog.GetLogger("birdeels.metadata")

type entry struct {
	name module.Name
	data []byte
}

// Cache is not safe for concurrent use. The orchestrator serializes every
// access inside its exclusive region.
type Cache struct {
	mem     map[string]entry
	root    string
	library string
}

func NewCache(root, library string) *Cache {
	return &Cache{
		mem:     make(map[string]entry),
		root:    root,
		library: library,
	}
}

// SetRoots changes the on-disk tiers. The in-memory tier is kept.
func (c *Cache) SetRoots(root, library string) {
	c.root = root
	c.library = library
}

func (c *Cache) Root() string    { return c.root }
func (c *Cache) Library() string { return c.library }

// Cached looks at the in-memory tier only.
func (c *Cache) Cached(name module.Name) ([]byte, bool) {
	e, ok := c.mem[name.Key()]
	if !ok {
		return nil, false
	}
	return e.data, true
}

// Get falls back from memory to the cache root and then to the library
// root. Disk hits are returned without being promoted into memory.
func (c *Cache) Get(name module.Name) ([]byte, error) {
	if data, ok := c.Cached(name); ok {
		return data, nil
	}
	for _, root := range []string{c.root, c.library} {
		if root == "" {
			continue
		}
		data, err := os.ReadFile(name.Path(root, Extension))
		if err == nil {
			return data, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			log.Warningf("reading metadata of %s: %v", name, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Declared returns the names a module exports without decoding the rest of
// its metadata.
func (c *Cache) Declared(name module.Name) (Names, error) {
	data, err := c.Get(name)
	if err != nil {
		return Names{}, err
	}
	return DecodeNames(data)
}

// Put replaces the in-memory entry of name.
func (c *Cache) Put(name module.Name, data []byte) {
	c.mem[name.Key()] = entry{name: append(module.Name(nil), name...), data: data}
}

// Names lists the in-memory entries ordered by key.
func (c *Cache) Names() []module.Name {
	names := make([]module.Name, 0, len(c.mem))
	for _, e := range c.mem {
		names = append(names, e.name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i].Key() < names[j].Key() })
	return names
}

func (c *Cache) Len() int { return len(c.mem) }

// Flush writes every in-memory entry below the cache root.
func (c *Cache) Flush() error {
	if c.root == "" {
		return nil
	}
	var errs []error
	for _, name := range c.Names() {
		target := name.Path(c.root, Extension)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			errs = append(errs, fmt.Errorf("creating directory for %s: %w", name, err))
			continue
		}
		if err := os.WriteFile(target, c.mem[name.Key()].data, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing %s: %w", target, err))
		}
	}
	log.Infof("flushed %d modules to %s", len(c.mem), c.root)
	return errors.Join(errs...)
}
