package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"birdeels/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestVersion(t *testing.T) {
	assert.Contains(t, run(t, "version"), "birdeels LSP server version")
}

func TestDump(t *testing.T) {
	root := t.TempDir()
	t.Setenv("BIRDEE_HOME", "")
	path := filepath.Join(root, ".birdeels", "cache", "geo", "shapes.bmm")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(`{"Classes":[{"name":"Point"}]}`), 0o644))

	out := run(t, "dump", "--root", root, "geo.shapes")
	assert.Contains(t, out, `"name": "Point"`)
}

func TestModules(t *testing.T) {
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, ".birdeels", "state.db"))
	require.NoError(t, err)
	require.NoError(t, st.IndexModule("geo", filepath.Join(root, "geo.bdm")))
	require.NoError(t, st.RecordCompile("main", filepath.Join(root, "main.bdm"), []string{"geo"}))
	require.NoError(t, st.Close())

	out := run(t, "modules", "--root", root)
	assert.Contains(t, out, "geo\t"+filepath.Join(root, "geo.bdm")+"\tnever compiled")
	assert.Contains(t, out, "\timports geo\n")
	assert.Contains(t, out, "\timported by main\n")
}
