package server

import (
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"birdeels/internal/analysis"
	"birdeels/internal/config"
	"birdeels/internal/metadata"
	"birdeels/internal/module"
	"birdeels/internal/orchestrator"
	"birdeels/internal/resolver"
	"birdeels/internal/scanner"
	"birdeels/internal/store"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// libraryRooted is implemented by compilers that read precompiled
// metadata from library directories on their own.
type libraryRooted interface {
	SetLibraryRoots(roots ...string)
}

func (s *Server) initialize(
	context *glsp.Context,
	params *protocol.InitializeParams,
) (any, error) {
	s.notifier.bind(context.Notify)

	// Root
	root, hasRoot := workspaceRoot(params)
	s.root = root
	log.Infof("Root is %s", root)

	// Config: base, then the project file, then the client's options.
	cfg, err := config.LoadProjectFile(s.config, root)
	if err != nil {
		log.Warningf("ignoring project file: %v", err)
		cfg = s.config
	}
	if params.InitializationOptions != nil {
		overlaid, err := config.Overlay(cfg, params.InitializationOptions)
		if err != nil {
			return nil, err
		}
		cfg = overlaid
	}
	s.config = cfg
	log.Infof("Config: %+v", cfg)

	// Known-good store. A session without one still works, it just
	// forgets everything on exit.
	statePath := cfg.StatePath(root)
	if !hasRoot {
		stateBaseDir, err := getXDGStateHome(Name)
		if err == nil {
			statePath = filepath.Join(stateBaseDir, url.PathEscape(root), "state.db")
		}
	}
	opts := []orchestrator.Option{
		orchestrator.WithNotifier(s.notifier),
		orchestrator.WithCompileHook(s.compiled),
	}
	if st, err := store.Open(statePath); err != nil {
		log.Errorf("opening state store %s: %v", statePath, err)
	} else {
		s.store = st
		opts = append(opts, orchestrator.WithStore(st))
	}

	sourceRoot := cfg.SourceRootPath(root)
	s.cache = metadata.NewCache(cfg.CachePath(root), cfg.LibraryPath())
	s.resolver = resolver.New(s.cache, []string{sourceRoot}, cfg.SourceExtensions)
	if lc, ok := s.compiler.(libraryRooted); ok {
		lc.SetLibraryRoots(libraryRoots(s.cache)...)
	}
	s.orch = orchestrator.New(s.compiler, s.cache, s.resolver, opts...)
	s.analyzer = analysis.New(s.orch)

	s.restoreGraph()
	s.indexing.Add(1)
	go func() {
		defer s.indexing.Done()
		s.index(sourceRoot, cfg.SourceExtensions)
	}()

	// Start cache flush routine.
	interval := time.Duration(cfg.FlushInterval)
	if interval <= 0 {
		interval = time.Duration(config.Default().FlushInterval)
	}
	s.ticker = time.NewTicker(interval)
	s.stop = make(chan struct{})
	s.flushing.Add(1)
	go func(ticker *time.Ticker, stop <-chan struct{}) {
		defer s.flushing.Done()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				log.Debugf("Flushing metadata cache to %s", s.cache.Root())
				if err := s.orch.Flush(); err != nil {
					log.Errorf("Error during cache flush: %v", err)
				}
			}
		}
	}(s.ticker, s.stop)

	syncKind := protocol.TextDocumentSyncKindIncremental

	capabilities := s.handler.CreateServerCapabilities()
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &protocol.True,
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &protocol.True},
	}
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{" ", ".", ":"},
	}
	capabilities.SignatureHelpProvider = &protocol.SignatureHelpOptions{
		TriggerCharacters:   []string{"(", ","},
		RetriggerCharacters: []string{","},
	}
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{ShowImportGraphCommand},
	}

	version := Version
	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    Name,
			Version: &version,
		},
	}, nil
}

func (s *Server) initialized(
	context *glsp.Context,
	params *protocol.InitializedParams,
) error {
	log.Info("Client initialized.")
	return nil
}

func (s *Server) shutdown(context *glsp.Context) error {
	if s.ticker != nil {
		s.ticker.Stop()
		close(s.stop)
		s.flushing.Wait()
		s.ticker = nil
	}
	if s.orch == nil {
		return nil
	}
	err := s.orch.Shutdown()
	s.indexing.Wait()
	if s.store != nil {
		if cerr := s.store.Close(); cerr != nil {
			log.Errorf("closing state store: %v", cerr)
		}
		s.store = nil
	}
	return err
}

func (s *Server) workspaceDidChangeConfiguration(
	context *glsp.Context,
	params *protocol.DidChangeConfigurationParams,
) error {
	if s.orch == nil {
		return nil
	}
	cfg, err := config.FromSettings(s.config, params.Settings)
	if err != nil {
		return err
	}
	s.config = cfg
	s.orch.Configure(
		[]string{cfg.SourceRootPath(s.root)},
		cfg.SourceExtensions,
		cfg.CachePath(s.root),
		cfg.LibraryPath(),
	)
	return s.orch.Exclusive(func(u *orchestrator.Unit) error {
		if lc, ok := u.Compiler().(libraryRooted); ok {
			lc.SetLibraryRoots(libraryRoots(u.Cache())...)
		}
		return nil
	})
}

// compiled feeds every freshly cached module into the import graph.
func (s *Server) compiled(m orchestrator.CompiledModule) {
	s.hub.SetModule(m.Name.Key(), m.Imports)
}

// restoreGraph seeds the import graph with what earlier sessions compiled.
func (s *Server) restoreGraph() {
	if s.store == nil {
		return
	}
	records, err := s.store.Modules()
	if err != nil {
		log.Errorf("restoring import graph: %v", err)
		return
	}
	for _, rec := range records {
		if !rec.CompiledAt.IsZero() {
			s.hub.SetModule(rec.Name, rec.Imports)
		}
	}
}

// index walks the source root, registering every module found. Files not
// modified since their last recorded compile are skipped; restoreGraph
// already knows their imports.
func (s *Server) index(root string, extensions []string) {
	st := s.store
	skip := func(path string, info fs.FileInfo) bool {
		if st == nil {
			return false
		}
		name, ok := resolver.ModuleName(root, path)
		if !ok {
			return true
		}
		rec, err := st.Module(name.Key())
		if err != nil {
			return false
		}
		return rec.SourcePath == path && rec.CompiledAt.After(info.ModTime())
	}
	callback := func(name module.Name, path string, document []byte) {
		if st != nil {
			if err := st.IndexModule(name.Key(), path); err != nil {
				log.Warningf("indexing %s: %v", path, err)
			}
		}
		s.hub.SetModule(name.Key(), scanner.Imports(document))
	}
	start := time.Now()
	scanner.Scan(root, extensions, skip, callback)
	log.Infof("Indexed %s in %s", root, time.Since(start))
}

func workspaceRoot(params *protocol.InitializeParams) (string, bool) {
	if params.RootURI != nil && *params.RootURI != "" {
		return resolver.URIToPath(*params.RootURI), true
	}
	if params.RootPath != nil && *params.RootPath != "" {
		return *params.RootPath, true
	}
	wd, err := os.Getwd()
	if err != nil {
		return ".", false
	}
	return wd, false
}

// libraryRoots is where the compiler looks for precompiled modules. The
// workspace cache is not among them: its entries may be older than their
// sources.
func libraryRoots(cache *metadata.Cache) []string {
	if cache.Library() == "" {
		return nil
	}
	return []string{cache.Library()}
}
