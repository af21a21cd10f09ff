package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectFile is read from the workspace root before editor settings.
const ProjectFile = ".birdeels.yaml"

// SettingsSection is the key of the server's section in
// workspace/didChangeConfiguration settings.
const SettingsSection = "birdeeLanguageServer"

type Config struct {
	// SourceRoot and LSPCache are relative to the workspace root unless
	// absolute.
	SourceRoot       string   `json:"sourceRoot"       yaml:"sourceRoot"`
	LSPCache         string   `json:"lspCache"         yaml:"lspCache"`
	SourceExtensions []string `json:"sourceExtensions" yaml:"sourceExtensions"`
	LibraryEnv       string   `json:"libraryEnv"       yaml:"libraryEnv"`
	LibrarySubdir    string   `json:"librarySubdir"    yaml:"librarySubdir"`
	StateDir         string   `json:"stateDir"         yaml:"stateDir"`
	FlushInterval    Duration `json:"flushInterval"    yaml:"flushInterval"`
}

var defaultConfig = Config{
	SourceRoot:       ".",
	LSPCache:         ".birdeels/cache",
	SourceExtensions: []string{".bdm", ".txt"},
	LibraryEnv:       "BIRDEE_HOME",
	LibrarySubdir:    "blib",
	StateDir:         ".birdeels",
	FlushInterval:    Duration(5 * time.Minute),
}

func Default() Config {
	cfg := defaultConfig
	cfg.SourceExtensions = append([]string(nil), defaultConfig.SourceExtensions...)
	return cfg
}

// Load overlays v, any JSON-marshalable value, on the defaults.
func Load(v any) (Config, error) {
	return Overlay(Default(), v)
}

// Overlay overlays v on base. Only fields present in v overwrite.
func Overlay(base Config, v any) (Config, error) {
	if v == nil {
		return base, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal source: %w", err)
	}
	cfg := base
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal into Config: %w", err)
	}
	return cfg, nil
}

// FromSettings overlays the server's section of a didChangeConfiguration
// payload on base. Payloads without the section leave base unchanged.
func FromSettings(base Config, settings any) (Config, error) {
	m, ok := settings.(map[string]any)
	if !ok {
		return base, nil
	}
	section, ok := m[SettingsSection]
	if !ok {
		return base, nil
	}
	return Overlay(base, section)
}

// LoadFromJSON reads JSON from r into a Config.
func LoadFromJSON(r io.Reader) (Config, error) {
	cfg := Default()

	decoder := json.NewDecoder(r)
	if err := decoder.Decode(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// LoadProjectFile overlays the workspace's project file on base. A missing
// file is not an error.
func LoadProjectFile(base Config, workspaceRoot string) (Config, error) {
	data, err := os.ReadFile(filepath.Join(workspaceRoot, ProjectFile))
	if errors.Is(err, os.ErrNotExist) {
		return base, nil
	}
	if err != nil {
		return base, err
	}
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return base, fmt.Errorf("failed to parse %s: %w", ProjectFile, err)
	}
	return cfg, nil
}

func resolve(root, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// SourceRootPath is the absolute source root for a workspace root.
func (c Config) SourceRootPath(workspaceRoot string) string {
	return resolve(workspaceRoot, c.SourceRoot)
}

// CachePath is the directory .bmm files are flushed to.
func (c Config) CachePath(workspaceRoot string) string {
	return resolve(workspaceRoot, c.LSPCache)
}

// StatePath is the location of the known-good store.
func (c Config) StatePath(workspaceRoot string) string {
	return filepath.Join(resolve(workspaceRoot, c.StateDir), "state.db")
}

// LibraryPath is the shared library root, or "" when the environment does
// not name one.
func (c Config) LibraryPath() string {
	home := os.Getenv(c.LibraryEnv)
	if home == "" {
		return ""
	}
	return filepath.Join(home, c.LibrarySubdir)
}

// Duration reads "5m"-style strings from JSON and YAML.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}
