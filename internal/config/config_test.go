package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	cfg, err = Load(map[string]any{"sourceRoot": "src", "flushInterval": "30s"})
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.SourceRoot)
	assert.Equal(t, ".birdeels/cache", cfg.LSPCache)
	assert.Equal(t, Duration(30*time.Second), cfg.FlushInterval)

	_, err = Load(map[string]any{"flushInterval": "soon"})
	assert.Error(t, err)
}

func TestFromSettings(t *testing.T) {
	base := Default()
	settings := map[string]any{
		SettingsSection: map[string]any{"sourceRoot": "/abs/src", "lspCache": "tmp/cache"},
		"other":         map[string]any{"sourceRoot": "ignored"},
	}
	cfg, err := FromSettings(base, settings)
	require.NoError(t, err)
	assert.Equal(t, "/abs/src", cfg.SourceRootPath("/ws"))
	assert.Equal(t, filepath.Join("/ws", "tmp/cache"), cfg.CachePath("/ws"))

	cfg, err = FromSettings(base, map[string]any{"other": 1})
	require.NoError(t, err)
	assert.Equal(t, base, cfg)

	cfg, err = FromSettings(base, nil)
	require.NoError(t, err)
	assert.Equal(t, base, cfg)
}

func TestLoadProjectFile(t *testing.T) {
	root := t.TempDir()
	cfg, err := LoadProjectFile(Default(), root)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	content := "sourceRoot: src\nsourceExtensions: [.bdm]\nflushInterval: 1m\n"
	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte(content), 0o644))
	cfg, err = LoadProjectFile(Default(), root)
	require.NoError(t, err)
	assert.Equal(t, "src", cfg.SourceRoot)
	assert.Equal(t, []string{".bdm"}, cfg.SourceExtensions)
	assert.Equal(t, Duration(time.Minute), cfg.FlushInterval)
	assert.Equal(t, filepath.Join(root, ".birdeels", "state.db"), cfg.StatePath(root))

	require.NoError(t, os.WriteFile(filepath.Join(root, ProjectFile), []byte("sourceRoot: [\n"), 0o644))
	_, err = LoadProjectFile(Default(), root)
	assert.Error(t, err)
}

func TestLoadFromJSON(t *testing.T) {
	cfg, err := LoadFromJSON(strings.NewReader(`{"librarySubdir": "lib"}`))
	require.NoError(t, err)
	assert.Equal(t, "lib", cfg.LibrarySubdir)
	assert.Equal(t, "BIRDEE_HOME", cfg.LibraryEnv)
}

func TestLibraryPath(t *testing.T) {
	t.Setenv("BIRDEE_HOME", "")
	assert.Equal(t, "", Default().LibraryPath())

	t.Setenv("BIRDEE_HOME", "/opt/birdee")
	assert.Equal(t, filepath.Join("/opt/birdee", "blib"), Default().LibraryPath())
}
