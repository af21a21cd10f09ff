package orchestrator

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"birdeels/internal/compiler"
	"birdeels/internal/compiler/lite"
	"birdeels/internal/metadata"
	"birdeels/internal/module"
	"birdeels/internal/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type published struct {
	uri string
	err *compiler.Error
}

type fakeNotifier struct {
	diagnostics []published
	errors      []string
}

func (n *fakeNotifier) PublishDiagnostics(uri string, err *compiler.Error) {
	n.diagnostics = append(n.diagnostics, published{uri, err})
}

func (n *fakeNotifier) ShowMessage(message string) {
	n.errors = append(n.errors, message)
}

type fakeStore struct {
	knownGood map[string]string
	compiled  map[string][]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{knownGood: map[string]string{}, compiled: map[string][]string{}}
}

func (s *fakeStore) SaveKnownGood(uri, source string) error {
	s.knownGood[uri] = source
	return nil
}

func (s *fakeStore) KnownGood(uri string) (string, error) {
	src, ok := s.knownGood[uri]
	if !ok {
		return "", os.ErrNotExist
	}
	return src, nil
}

func (s *fakeStore) RecordCompile(name, sourcePath string, imports []string) error {
	s.compiled[name] = imports
	return nil
}

// countingCompiler counts calls into the wrapped compiler.
type countingCompiler struct {
	*lite.Compiler
	calls int
	units []string
}

func (c *countingCompiler) Compile(req compiler.Request) ([]compiler.Resolution, error) {
	c.calls++
	c.units = append(c.units, strings.TrimSuffix(filepath.Base(req.Path), ".bdm"))
	return c.Compiler.Compile(req)
}

// stuckCompiler keeps asking for a module no matter what is cached.
type stuckCompiler struct {
	*countingCompiler
	unit string
	dep  compiler.Resolution
}

func (c *stuckCompiler) Compile(req compiler.Request) ([]compiler.Resolution, error) {
	if filepath.Base(req.Path) != c.unit {
		return c.countingCompiler.Compile(req)
	}
	c.calls++
	c.units = append(c.units, strings.TrimSuffix(c.unit, ".bdm"))
	return []compiler.Resolution{c.dep}, &compiler.Error{Kind: compiler.CompileError, Msg: "cannot find module b"}
}

type testHelper struct {
	root     string
	orch     *Orchestrator
	compiler *countingCompiler
	cache    *metadata.Cache
	notifier *fakeNotifier
	store    *fakeStore
}

func setupTest(t *testing.T, files map[string]string) *testHelper {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}

	h := &testHelper{
		root:     root,
		compiler: &countingCompiler{Compiler: lite.New()},
		cache:    metadata.NewCache(filepath.Join(root, ".cache"), ""),
		notifier: &fakeNotifier{},
		store:    newFakeStore(),
	}
	res := resolver.New(h.cache, []string{root}, []string{".bdm", ".txt"})
	h.orch = New(h.compiler, h.cache, res, WithNotifier(h.notifier), WithStore(h.store))
	return h
}

func (h *testHelper) uri(name string) string {
	return resolver.PathToURI(filepath.Join(h.root, name))
}

const geoSource = `class Point
  x as int
end
dim origin = new Point
`

func TestCompileWithDependencies(t *testing.T) {
	h := setupTest(t, map[string]string{
		"geo.bdm":       geoSource,
		"util/strs.txt": "function twice(a as int) as int\n  return a + a\nend\n",
	})

	uri := h.uri("main.bdm")
	ok := h.orch.Compile(uri, "import geo\nimport util.strs\ndim p = geo.origin\nprint(util.strs.twice(p.x))\n")
	require.True(t, ok, h.notifier.errors)

	_, cached := h.cache.Cached(module.Name{"geo"})
	assert.True(t, cached)
	_, cached = h.cache.Cached(module.Name{"util", "strs"})
	assert.True(t, cached, "fallback extension")
	_, cached = h.cache.Cached(module.Name{"main"})
	assert.True(t, cached)

	assert.Equal(t, []string{"geo", "util.strs"}, h.store.compiled["main"])
	assert.Contains(t, h.store.knownGood, uri)

	require.NotEmpty(t, h.notifier.diagnostics)
	last := h.notifier.diagnostics[len(h.notifier.diagnostics)-1]
	assert.Equal(t, uri, last.uri)
	assert.Nil(t, last.err)
	assert.Empty(t, h.notifier.errors)
}

func TestCompileIsMemoized(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.uri("main.bdm")

	require.True(t, h.orch.Compile(uri, "dim a = 1\n"))
	require.Equal(t, 1, h.compiler.calls)
	require.True(t, h.orch.Compile(uri, "dim a = 1\n"))
	assert.Equal(t, 1, h.compiler.calls)

	require.False(t, h.orch.Compile(uri, "dim a = zz\n"))
	require.False(t, h.orch.Compile(uri, "dim a = zz\n"))
	assert.Equal(t, 2, h.compiler.calls)

	require.True(t, h.orch.Compile(h.uri("other.bdm"), "dim a = 1\n"))
	require.True(t, h.orch.Compile(uri, "dim a = 1\n"))
	assert.Equal(t, 4, h.compiler.calls)
}

func TestMissingModule(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.uri("main.bdm")

	require.False(t, h.orch.Compile(uri, "import nowhere\n"))
	require.Len(t, h.notifier.diagnostics, 1)
	d := h.notifier.diagnostics[0]
	assert.Equal(t, uri, d.uri)
	require.NotNil(t, d.err)
	assert.Contains(t, d.err.Msg, "cannot find module nowhere")
	assert.Equal(t, 0, d.err.Line)
	assert.Equal(t, 1, h.compiler.calls)
}

func TestSharedDependencyCompiledOnce(t *testing.T) {
	h := setupTest(t, map[string]string{
		"a.bdm": "import b\ndim x = 1\n",
		"b.bdm": "dim y = 1\n",
	})

	require.True(t, h.orch.Compile(h.uri("main.bdm"), "import a\nimport b\nprint(a.x)\n"), h.notifier.errors)
	assert.Equal(t, []string{"main", "a", "b", "a", "main"}, h.compiler.units)
	assert.Equal(t, []string{"b"}, h.store.compiled["a"])
}

func TestDependencyLoopStopsWithoutProgress(t *testing.T) {
	h := setupTest(t, map[string]string{"b.bdm": "dim y = 1\n"})
	stuck := &stuckCompiler{
		countingCompiler: h.compiler,
		unit:             "main.bdm",
		dep: compiler.Resolution{
			Kind:       compiler.NeedsSource,
			Name:       module.Name{"b"},
			SourcePath: filepath.Join(h.root, "b.bdm"),
		},
	}
	res := resolver.New(h.cache, []string{h.root}, []string{".bdm"})
	h.orch = New(stuck, h.cache, res, WithNotifier(h.notifier), WithStore(h.store))

	require.False(t, h.orch.Compile(h.uri("main.bdm"), "import b\n"))
	assert.Equal(t, []string{"main", "b", "main"}, h.compiler.units)
	_, cached := h.cache.Cached(module.Name{"b"})
	assert.True(t, cached)

	require.Len(t, h.notifier.diagnostics, 1)
	assert.Contains(t, h.notifier.diagnostics[0].err.Msg, "cannot find module b")
}

func TestCircularDependency(t *testing.T) {
	h := setupTest(t, map[string]string{
		"a.bdm": "import b\n",
		"b.bdm": "import a\n",
	})

	require.False(t, h.orch.Compile(h.uri("main.bdm"), "import a\n"))
	require.NotEmpty(t, h.notifier.errors)
	assert.Contains(t, h.notifier.errors[0], "circular module dependency")
	assert.Contains(t, h.notifier.errors[0], "main.bdm -> a -> b -> a")

	require.Len(t, h.notifier.diagnostics, 1)
	assert.Contains(t, h.notifier.diagnostics[0].err.Msg, "cannot find module a")
}

func TestFailingDependency(t *testing.T) {
	h := setupTest(t, map[string]string{
		"bad.bdm": "dim x = zz\n",
	})

	require.False(t, h.orch.Compile(h.uri("main.bdm"), "import bad\n"))
	require.Len(t, h.notifier.errors, 1)
	assert.Contains(t, h.notifier.errors[0], "While compiling")
	assert.Contains(t, h.notifier.errors[0], "bad.bdm")

	_, cached := h.cache.Cached(module.Name{"bad"})
	assert.False(t, cached)
}

func TestSwitchToLastKnownGood(t *testing.T) {
	h := setupTest(t, nil)
	uri := h.uri("main.bdm")
	good := "dim a = 1\ndim b = a\n"

	require.True(t, h.orch.Compile(uri, good))
	require.False(t, h.orch.Compile(uri, "dim a = \n"))

	err := h.orch.Exclusive(func(u *Unit) error {
		require.True(t, u.SwitchToLastKnownGood(uri))
		assert.Len(t, u.Compiler().TopLevel(), 2)
		return nil
	})
	require.NoError(t, err)

	t.Run("FromStore", func(t *testing.T) {
		h2 := setupTest(t, nil)
		h2.store.knownGood[uri] = good
		h2.orch.Exclusive(func(u *Unit) error {
			assert.True(t, u.SwitchToLastKnownGood(uri))
			assert.Len(t, u.Compiler().TopLevel(), 2)
			return nil
		})
		assert.Empty(t, h2.notifier.diagnostics)
	})

	t.Run("NothingKnown", func(t *testing.T) {
		h3 := setupTest(t, nil)
		h3.orch.Exclusive(func(u *Unit) error {
			assert.False(t, u.SwitchToLastKnownGood(uri))
			assert.Empty(t, u.Compiler().TopLevel())
			return nil
		})
	})
}

func TestProbe(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	uri := h.uri("main.bdm")

	var ac *compiler.AutoCompletion
	h.orch.Exclusive(func(u *Unit) error {
		ac = u.Probe(uri, "import geo\ndim p = geo.origin\np.$\n")
		return nil
	})
	require.NotNil(t, ac)
	assert.Equal(t, compiler.CompleteMember, ac.Kind)
	require.NotNil(t, ac.Type.Class)
	assert.Equal(t, "Point", ac.Type.Class.Name)

	assert.Empty(t, h.notifier.diagnostics)
	_, cached := h.cache.Cached(module.Name{"main"})
	assert.False(t, cached)
	_, cached = h.cache.Cached(module.Name{"geo"})
	assert.True(t, cached)
}

func TestFlush(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	require.True(t, h.orch.Compile(h.uri("main.bdm"), "import geo\n"))
	require.NoError(t, h.orch.Shutdown())

	_, err := os.Stat(filepath.Join(h.root, ".cache", "geo.bmm"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(h.root, ".cache", "main.bmm"))
	assert.NoError(t, err)
}

func TestCompileHook(t *testing.T) {
	h := setupTest(t, map[string]string{"geo.bdm": geoSource})
	var seen []string
	h.orch.hooks = append(h.orch.hooks, func(m CompiledModule) {
		seen = append(seen, m.Name.Key())
	})
	require.True(t, h.orch.Compile(h.uri("main.bdm"), "import geo\n"))
	assert.Equal(t, []string{"geo", "main"}, seen)
}
