package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"birdeels/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testHelper struct {
	store *store.Store
	path  string
}

func setupTest(t *testing.T) *testHelper {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "birdeels_store_test_*")
	require.NoError(t, err)

	s, err := store.Open(filepath.Join(tmpDir, "state", "state.db"))
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create test store: %v", err)
	}
	return &testHelper{store: s, path: tmpDir}
}

func (h *testHelper) cleanup(t *testing.T) {
	t.Helper()
	if err := h.store.Close(); err != nil {
		t.Errorf("Failed to close store: %v", err)
	}
	if err := os.RemoveAll(h.path); err != nil {
		t.Errorf("Failed to remove test directory: %v", err)
	}
}

func TestKnownGood(t *testing.T) {
	h := setupTest(t)
	defer h.cleanup(t)

	t.Run("missing", func(t *testing.T) {
		_, err := h.store.KnownGood("file:///a.bdm")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("save and overwrite", func(t *testing.T) {
		require.NoError(t, h.store.SaveKnownGood("file:///a.bdm", "dim a = 1\n"))
		require.NoError(t, h.store.SaveKnownGood("file:///a.bdm", "dim a = 2\n"))

		source, err := h.store.KnownGood("file:///a.bdm")
		require.NoError(t, err)
		assert.Equal(t, "dim a = 2\n", source)
	})
}

func TestModuleIndex(t *testing.T) {
	h := setupTest(t)
	defer h.cleanup(t)

	require.NoError(t, h.store.IndexModule("a.b", "/src/a/b.bdm"))

	rec, err := h.store.Module("a.b")
	require.NoError(t, err)
	assert.True(t, rec.CompiledAt.IsZero())
	assert.Empty(t, rec.Imports)

	require.NoError(t, h.store.RecordCompile("main", "/src/main.bdm", []string{"a.b", "c"}))
	require.NoError(t, h.store.RecordCompile("main", "/src/main.bdm", []string{"a.b"}))

	rec, err = h.store.Module("main")
	require.NoError(t, err)
	assert.False(t, rec.CompiledAt.IsZero())
	assert.Equal(t, []string{"a.b"}, rec.Imports)

	importers, err := h.store.Importers("a.b")
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, importers)

	all, err := h.store.Modules()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a.b", all[0].Name)
	assert.Equal(t, "main", all[1].Name)

	_, err = h.store.Module("nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestClosedStore(t *testing.T) {
	h := setupTest(t)
	require.NoError(t, h.store.Close())
	defer os.RemoveAll(h.path)

	assert.ErrorIs(t, h.store.SaveKnownGood("u", "s"), store.ErrClosed)
	_, err := h.store.Modules()
	assert.ErrorIs(t, err, store.ErrClosed)
}
