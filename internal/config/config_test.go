package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/markdown-ticket/mdt/internal/config"
)

func writeGlobalConfig(t *testing.T, dir, content string) {
	t.Helper()

	mdtDir := filepath.Join(dir, "mdt")

	mkdirErr := os.MkdirAll(mdtDir, 0o750)
	if mkdirErr != nil {
		t.Fatalf("mkdir: %v", mkdirErr)
	}

	writeErr := os.WriteFile(filepath.Join(mdtDir, "config.json"), []byte(content), 0o600)
	if writeErr != nil {
		t.Fatalf("write config: %v", writeErr)
	}
}

func TestLoadGlobal_MissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	configHome := t.TempDir()
	env := map[string]string{"XDG_CONFIG_HOME": configHome, "HOME": "/home/someone"}

	cfg, err := config.LoadGlobal(env)
	if err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}

	wantRegistry := filepath.Join(configHome, "mdt", "projects")
	if cfg.RegistryDir != wantRegistry {
		t.Errorf("RegistryDir = %q, want %q", cfg.RegistryDir, wantRegistry)
	}

	if diff := cmp.Diff([]string{"/home/someone"}, cfg.SearchRoots); diff != "" {
		t.Errorf("SearchRoots mismatch (-want +got):\n%s", diff)
	}

	if !cfg.AutoDiscoverEnabled() {
		t.Error("AutoDiscoverEnabled = false by default")
	}

	if cfg.TTL() != config.DefaultCacheTTLSeconds {
		t.Errorf("TTL = %d", cfg.TTL())
	}

	if cfg.Depth() != config.DefaultSearchDepth {
		t.Errorf("Depth = %d", cfg.Depth())
	}
}

func TestLoadGlobal_ParsesJSONCWithComments(t *testing.T) {
	t.Parallel()

	configHome := t.TempDir()
	writeGlobalConfig(t, configHome, `{
		// discovery knobs
		"searchRoots": ["/projects"],
		"searchDepth": 2,
		"cacheTTLSeconds": 5,
		"autoDiscover": false, // trailing comma tolerated below
		"excludeDirs": ["scratch"],
	}`)

	cfg, err := config.LoadGlobal(map[string]string{"XDG_CONFIG_HOME": configHome})
	if err != nil {
		t.Fatalf("LoadGlobal failed: %v", err)
	}

	if cfg.AutoDiscoverEnabled() {
		t.Error("AutoDiscoverEnabled = true, want false")
	}

	if cfg.Depth() != 2 || cfg.TTL() != 5 {
		t.Errorf("Depth = %d, TTL = %d", cfg.Depth(), cfg.TTL())
	}

	if diff := cmp.Diff([]string{"scratch"}, cfg.Excluded()); diff != "" {
		t.Errorf("Excluded mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadGlobal_MalformedFileIsAnError(t *testing.T) {
	t.Parallel()

	configHome := t.TempDir()
	writeGlobalConfig(t, configHome, `{"searchDepth": }`)

	_, err := config.LoadGlobal(map[string]string{"XDG_CONFIG_HOME": configHome})
	if !errors.Is(err, config.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestLoadGlobal_NoHomeNoXDG(t *testing.T) {
	t.Parallel()

	_, err := config.LoadGlobal(map[string]string{})
	if !errors.Is(err, config.ErrNoConfigDir) {
		t.Fatalf("error = %v, want ErrNoConfigDir", err)
	}
}

func TestLoadProjectConfig_AppliesDefaultsAndUppercasesCode(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeErr := os.WriteFile(filepath.Join(root, config.ProjectConfigFileName), []byte(`
[project]
name = "Markdown Ticket"
code = "mdt"
`), 0o600)
	if writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	cfg, err := config.LoadProjectConfig(root)
	if err != nil {
		t.Fatalf("LoadProjectConfig failed: %v", err)
	}

	if cfg == nil {
		t.Fatal("config = nil for a valid file")
	}

	if cfg.Project.Code != "MDT" {
		t.Errorf("Code = %q, want MDT", cfg.Project.Code)
	}

	if cfg.Project.TicketsPath != config.DefaultTicketsPath {
		t.Errorf("TicketsPath = %q", cfg.Project.TicketsPath)
	}

	if cfg.Project.StartNumber != config.DefaultStartNumber ||
		cfg.Project.NumberWidth != config.DefaultNumberWidth ||
		cfg.Project.CounterFile != config.DefaultCounterFile {
		t.Errorf("defaults not applied: %+v", cfg.Project)
	}

	if !cfg.IsActive() {
		t.Error("IsActive = false by default")
	}
}

func TestLoadProjectConfig_NotAProject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string // empty means no file at all
	}{
		{name: "no config file"},
		{name: "missing code", content: "[project]\nname = \"X\"\n"},
		{name: "missing name", content: "[project]\ncode = \"X\"\n"},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			root := t.TempDir()

			if tt.content != "" {
				writeErr := os.WriteFile(filepath.Join(root, config.ProjectConfigFileName), []byte(tt.content), 0o600)
				if writeErr != nil {
					t.Fatalf("write: %v", writeErr)
				}
			}

			cfg, err := config.LoadProjectConfig(root)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if cfg != nil {
				t.Errorf("config = %+v, want nil", cfg)
			}
		})
	}
}

func TestLoadProjectConfig_BrokenTOMLIsAnError(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	writeErr := os.WriteFile(filepath.Join(root, config.ProjectConfigFileName), []byte("[project\nname="), 0o600)
	if writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	_, err := config.LoadProjectConfig(root)
	if !errors.Is(err, config.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func TestRegistryEntry_RoundTrip(t *testing.T) {
	t.Parallel()

	registryDir := filepath.Join(t.TempDir(), "projects")
	entry := config.NewRegistryEntry("/work/my-app", mustTime(t, "2025-06-01T12:00:00Z"))

	writeErr := config.WriteRegistryEntry(registryDir, "my-app", entry)
	if writeErr != nil {
		t.Fatalf("WriteRegistryEntry failed: %v", writeErr)
	}

	loaded, loadErr := config.LoadRegistryEntry(filepath.Join(registryDir, "my-app.toml"))
	if loadErr != nil {
		t.Fatalf("LoadRegistryEntry failed: %v", loadErr)
	}

	if diff := cmp.Diff(entry, loaded); diff != "" {
		t.Errorf("entry mismatch (-want +got):\n%s", diff)
	}

	if !loaded.IsActive() {
		t.Error("IsActive = false by default")
	}
}

func TestLoadRegistryEntry_RequiresPath(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "broken.toml")

	writeErr := os.WriteFile(path, []byte("[project]\nactive = true\n"), 0o600)
	if writeErr != nil {
		t.Fatalf("write: %v", writeErr)
	}

	_, err := config.LoadRegistryEntry(path)
	if !errors.Is(err, config.ErrConfigInvalid) {
		t.Fatalf("error = %v, want ErrConfigInvalid", err)
	}
}

func mustTime(t *testing.T, value string) (parsed time.Time) {
	t.Helper()

	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse time: %v", err)
	}

	return parsed
}
