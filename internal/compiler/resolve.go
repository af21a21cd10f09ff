package compiler

import "birdeels/internal/module"

// ResolutionKind is the outcome of asking for a module's metadata.
type ResolutionKind int

const (
	// NotCached: phase one found nothing in memory.
	NotCached ResolutionKind = iota
	// Cached carries metadata from the in-memory cache.
	Cached
	// NeedsSource names a source file that must be compiled first.
	NeedsSource
	// Missing means no cached metadata and no source file.
	Missing
)

func (k ResolutionKind) String() string {
	switch k {
	case NotCached:
		return "not-cached"
	case Cached:
		return "cached"
	case NeedsSource:
		return "needs-source"
	case Missing:
		return "missing"
	}
	return "unknown"
}

type Resolution struct {
	Kind       ResolutionKind
	Name       module.Name
	Metadata   []byte
	SourcePath string
}

// Resolver answers import lookups during a compile. The first call for an
// import uses secondChance=false. A compiler that cannot satisfy the import
// by other means asks again with secondChance=true and hands the answer
// back to its caller.
type Resolver interface {
	Resolve(name module.Name, secondChance bool) Resolution
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(name module.Name, secondChance bool) Resolution

func (f ResolverFunc) Resolve(name module.Name, secondChance bool) Resolution {
	return f(name, secondChance)
}
