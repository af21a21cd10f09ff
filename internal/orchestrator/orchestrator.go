// Package orchestrator decides when and what to compile. It owns the
// compiler's single live unit, resolves dependencies by compiling them from
// source until the requested unit compiles, keeps the metadata cache
// current and reports the outcome as diagnostics.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"birdeels/internal/compiler"
	"birdeels/internal/metadata"
	"birdeels/internal/module"
	"birdeels/internal/resolver"

	"github.com/tliron/commonlog"
)

var log = commonlog.GetLogger("birdeels.orchestrator")

// Notifier receives compile outcomes. A nil error clears the document's
// diagnostic.
type Notifier interface {
	PublishDiagnostics(uri string, err *compiler.Error)
	ShowMessage(message string)
}

// KnownGoodStore persists what should survive a restart.
type KnownGoodStore interface {
	SaveKnownGood(uri, source string) error
	KnownGood(uri string) (string, error)
	RecordCompile(name, sourcePath string, imports []string) error
}

// CompiledModule describes a unit whose metadata was just cached.
type CompiledModule struct {
	Name       module.Name
	SourcePath string
	Imports    []string
}

type record struct {
	source    string
	attempted bool
	ok        bool
	knownGood *string
}

type Option func(*Orchestrator)

func WithNotifier(n Notifier) Option {
	return func(o *Orchestrator) { o.notifier = n }
}

func WithStore(s KnownGoodStore) Option {
	return func(o *Orchestrator) { o.store = s }
}

// WithCompileHook registers fn to run, inside the exclusive region, after
// every unit whose metadata gets cached.
func WithCompileHook(fn func(CompiledModule)) Option {
	return func(o *Orchestrator) { o.hooks = append(o.hooks, fn) }
}

type Orchestrator struct {
	mu       sync.Mutex
	compiler compiler.Compiler
	cache    *metadata.Cache
	resolver *resolver.Resolver
	notifier Notifier
	store    KnownGoodStore
	hooks    []func(CompiledModule)

	records map[string]*record
	// live is the document whose text the compiler's unit holds, or "".
	live string
}

func New(c compiler.Compiler, cache *metadata.Cache, res *resolver.Resolver, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		compiler: c,
		cache:    cache,
		resolver: res,
		records:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Unit is the view of the orchestrator handed to code running inside the
// exclusive region.
type Unit struct {
	o *Orchestrator
}

// Exclusive runs fn while holding the region that guards the compiler,
// the metadata cache and the attempt records.
func (o *Orchestrator) Exclusive(fn func(u *Unit) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return fn(&Unit{o: o})
}

// Compile is Unit.Compile in its own exclusive region.
func (o *Orchestrator) Compile(uri, text string) bool {
	var ok bool
	o.Exclusive(func(u *Unit) error {
		ok = u.Compile(uri, text)
		return nil
	})
	return ok
}

// Configure swaps the directories used for resolution and caching.
func (o *Orchestrator) Configure(sourceRoots, extensions []string, cacheRoot, libraryRoot string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resolver.Configure(sourceRoots, extensions)
	o.cache.SetRoots(cacheRoot, libraryRoot)
	o.live = ""
}

// Flush writes the metadata cache to disk.
func (o *Orchestrator) Flush() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cache.Flush()
}

// Shutdown flushes the cache. The orchestrator stays usable.
func (o *Orchestrator) Shutdown() error {
	if err := o.Flush(); err != nil {
		log.Errorf("flushing metadata cache: %v", err)
		return err
	}
	return nil
}

func (u *Unit) Compiler() compiler.Compiler { return u.o.compiler }

func (u *Unit) Cache() *metadata.Cache { return u.o.cache }

func (u *Unit) SourceRoots() []string { return u.o.resolver.Roots() }

func (u *Unit) SourceExtensions() []string { return u.o.resolver.Extensions() }

// Compile compiles text as the content of uri and reports success. A
// repeated call for the document owning the live unit with identical text
// returns the previous result without compiling. Success clears the
// document's diagnostic and makes text its last known good source; failure
// publishes the compiler's error.
func (u *Unit) Compile(uri, text string) bool {
	o := u.o
	ctx, span := startCompileSpan(context.Background(), "compile", uri)
	defer span.End()

	rec := o.record(uri)
	if o.live == uri && rec.attempted && rec.source == text {
		recordMemoHit(ctx)
		return rec.ok
	}

	start := time.Now()
	rec.source = text
	rec.attempted = true
	o.live = uri
	err := o.fixedPoint(resolver.URIToPath(uri), text, true)
	rec.ok = err == nil
	recordCompile(ctx, "compile", time.Since(start), rec.ok)

	if rec.ok {
		good := text
		rec.knownGood = &good
		if o.store != nil {
			if err := o.store.SaveKnownGood(uri, text); err != nil {
				log.Warningf("saving known-good source of %s: %v", uri, err)
			}
		}
		o.publish(uri, nil)
		return true
	}

	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		if o.compiler.AutoCompletion() == nil {
			o.publish(uri, cerr)
		}
	} else {
		log.Errorf("compiling %s: %v", uri, err)
	}
	return false
}

// Probe compiles a throwaway variant of the document, typically the buffer
// with compiler.ProbeMarker spliced in, and returns the auto-completion
// node it produced. Nothing about the probe is recorded for the document
// and its own metadata is never cached.
func (u *Unit) Probe(uri, text string) *compiler.AutoCompletion {
	o := u.o
	ctx, span := startCompileSpan(context.Background(), "probe", uri)
	defer span.End()

	start := time.Now()
	o.live = ""
	err := o.fixedPoint(resolver.URIToPath(uri), text, false)
	recordCompile(ctx, "probe", time.Since(start), err == nil)
	return o.compiler.AutoCompletion()
}

// SwitchToLastKnownGood recompiles the document's last source that
// compiled, from memory or the store. Without one the live unit is
// cleared. Diagnostics are left alone.
func (u *Unit) SwitchToLastKnownGood(uri string) bool {
	o := u.o
	rec := o.record(uri)
	var source string
	switch {
	case rec.knownGood != nil:
		source = *rec.knownGood
	case o.store != nil:
		stored, err := o.store.KnownGood(uri)
		if err != nil {
			o.clear()
			return false
		}
		source = stored
		rec.knownGood = &stored
	default:
		o.clear()
		return false
	}

	if o.live == uri && rec.attempted && rec.source == source && rec.ok {
		return true
	}
	rec.source = source
	rec.attempted = true
	o.live = uri
	rec.ok = o.fixedPoint(resolver.URIToPath(uri), source, true) == nil
	return rec.ok
}

func (o *Orchestrator) clear() {
	o.compiler.Clear()
	o.live = ""
}

func (o *Orchestrator) record(uri string) *record {
	rec, ok := o.records[uri]
	if !ok {
		rec = &record{}
		o.records[uri] = rec
	}
	return rec
}

// Forget drops what is remembered about a document.
func (o *Orchestrator) Forget(uri string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.records[uri]
	if !ok {
		return
	}
	// the known-good source stays for fallback queries after a reopen
	rec.attempted = false
	if o.live == uri {
		o.live = ""
	}
}

func (o *Orchestrator) publish(uri string, err *compiler.Error) {
	if o.notifier != nil {
		o.notifier.PublishDiagnostics(uri, err)
	}
}

func (o *Orchestrator) showMessage(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	log.Warning(msg)
	if o.notifier != nil {
		o.notifier.ShowMessage(msg)
	}
}

// fixedPoint compiles text until it succeeds or cannot make progress. Each
// round compiles the dependencies the compiler could not find in the cache
// and retries. It stops with the unit's own error when a dependency is
// missing, fails, is already being compiled higher up (a cycle), or when a
// round has nothing left to compile.
func (o *Orchestrator) fixedPoint(path, text string, cacheUnit bool) error {
	visiting := map[string]bool{filepath.Clean(path): true}
	return o.compileWithDeps(path, text, nil, cacheUnit, visiting, []string{filepath.Base(path)})
}

// compileWithDeps compiles one unit. A dependency is cached under the name
// it was imported by; name is nil for the top unit, which goes by the
// compiler's module name.
func (o *Orchestrator) compileWithDeps(path, text string, name module.Name, cacheUnit bool, visiting map[string]bool, chain []string) error {
	for {
		resolutions, err := o.compiler.Compile(compiler.Request{Path: path, Source: text, Resolver: o.resolver})
		if err == nil {
			if cacheUnit {
				o.cacheLiveUnit(name, path)
			}
			return nil
		}

		deps, recompilable := dependencies(resolutions)
		if !recompilable || len(deps) == 0 {
			return err
		}

		compiled := 0
		for _, dep := range deps {
			// An earlier dependency may have compiled this one already.
			if _, ok := o.cache.Cached(dep.Name); ok {
				continue
			}
			key := filepath.Clean(dep.SourcePath)
			if visiting[key] {
				o.showMessage("circular module dependency: %s -> %s",
					strings.Join(chain, " -> "), dep.Name)
				return err
			}
			source, rerr := os.ReadFile(dep.SourcePath)
			if rerr != nil {
				o.showMessage("While compiling %s, an error occurs: %v", dep.SourcePath, rerr)
				return err
			}

			visiting[key] = true
			derr := o.compileWithDeps(dep.SourcePath, string(source), dep.Name, true, visiting, append(chain, dep.Name.Key()))
			delete(visiting, key)
			recordDependency(context.Background(), derr == nil)
			if derr != nil {
				o.showMessage("While compiling %s, an error occurs: %s", dep.SourcePath, message(derr))
				return err
			}
			if _, ok := o.cache.Cached(dep.Name); ok {
				compiled++
			}
		}

		// A round that caches nothing new ends the loop.
		if compiled == 0 {
			log.Warningf("no dependency of %s was newly cached, giving up", path)
			return err
		}
	}
}

// dependencies picks the sources to compile from the second-chance
// resolutions. A missing module makes the attempt non-recompilable.
func dependencies(resolutions []compiler.Resolution) ([]compiler.Resolution, bool) {
	var deps []compiler.Resolution
	seen := make(map[string]bool)
	for _, r := range resolutions {
		switch r.Kind {
		case compiler.Missing:
			return nil, false
		case compiler.NeedsSource:
			if !seen[r.Name.Key()] {
				seen[r.Name.Key()] = true
				deps = append(deps, r)
			}
		}
	}
	return deps, true
}

func message(err error) string {
	var cerr *compiler.Error
	if errors.As(err, &cerr) {
		return cerr.Msg
	}
	return err.Error()
}

func (o *Orchestrator) cacheLiveUnit(name module.Name, path string) {
	if len(name) == 0 {
		name = o.compiler.ModuleName()
	}
	if len(name) == 0 {
		return
	}
	md, err := o.compiler.Metadata()
	if err != nil {
		log.Warningf("reading metadata of %s: %v", name, err)
		return
	}
	o.cache.Put(name, md)

	var imports []string
	if symbols, err := metadata.Decode(md); err == nil {
		imports = symbols.Imports
	}
	if o.store != nil {
		if err := o.store.RecordCompile(name.Key(), path, imports); err != nil {
			log.Warningf("recording compile of %s: %v", name, err)
		}
	}
	for _, hook := range o.hooks {
		hook(CompiledModule{Name: name, SourcePath: path, Imports: imports})
	}
}
