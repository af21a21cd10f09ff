package server

import (
	"sync"
	"time"

	"birdeels/internal/analysis"
	"birdeels/internal/compiler"
	"birdeels/internal/config"
	"birdeels/internal/graph"
	"birdeels/internal/manager"
	"birdeels/internal/metadata"
	"birdeels/internal/orchestrator"
	"birdeels/internal/resolver"
	"birdeels/internal/store"

	"github.com/tliron/commonlog"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"
)

const Name = "birdeels"

// Version will be set during the build process using ldflags
var Version = "(dev) v0.0.0"

// ShowImportGraphCommand opens the module import graph in a browser.
const ShowImportGraphCommand = "birdee.showImportGraph"

var log = commonlog.GetLogger("birdeels.server")

// Server is one editor session. Everything a handler touches hangs off it.
type Server struct {
	root     string
	handler  *protocol.Handler
	config   config.Config
	compiler compiler.Compiler
	notifier *notifier
	manager  *manager.DocumentManager
	cache    *metadata.Cache
	resolver *resolver.Resolver
	orch     *orchestrator.Orchestrator
	analyzer *analysis.Analyzer
	store    *store.Store
	hub      *graph.Hub
	ticker   *time.Ticker
	stop     chan struct{}
	flushing sync.WaitGroup
	indexing sync.WaitGroup
}

type Option func(*Server)

// WithConfig replaces the defaults that the project file and the client's
// options are layered on.
func WithConfig(cfg config.Config) Option {
	return func(s *Server) {
		s.config = cfg
	}
}

// New creates a session around c. It becomes usable after initialize.
func New(c compiler.Compiler, opts ...Option) *Server {
	s := &Server{
		compiler: c,
		config:   config.Default(),
		notifier: &notifier{},
		manager:  manager.NewDocumentManager(),
		hub:      graph.NewHub(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = &protocol.Handler{
		Initialize:                      s.initialize,
		Initialized:                     s.initialized,
		Shutdown:                        s.shutdown,
		TextDocumentDidOpen:             s.textDocumentDidOpen,
		TextDocumentDidChange:           s.textDocumentDidChange,
		TextDocumentDidSave:             s.textDocumentDidSave,
		TextDocumentDidClose:            s.textDocumentDidClose,
		TextDocumentCompletion:          s.textDocumentCompletion,
		TextDocumentSignatureHelp:       s.textDocumentSignatureHelp,
		TextDocumentDefinition:          s.textDocumentDefinition,
		WorkspaceDidChangeConfiguration: s.workspaceDidChangeConfiguration,
		WorkspaceSymbol:                 s.workspaceSymbol,
		WorkspaceExecuteCommand:         s.workspaceExecuteCommand,
	}
	return s
}

// Handler exposes the protocol handler, mostly for tests.
func (s *Server) Handler() *protocol.Handler {
	return s.handler
}

func NewServer(c compiler.Compiler, opts ...Option) (*server.Server, error) {
	ls := New(c, opts...)
	return server.NewServer(ls.handler, Name, false), nil
}
