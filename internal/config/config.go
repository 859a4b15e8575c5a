// Package config loads the global tool configuration and per-project
// configuration files.
//
// The global config is JSONC at $XDG_CONFIG_HOME/mdt/config.json (or
// ~/.config/mdt/config.json) and carries discovery knobs. Per-project
// configuration is a small TOML file at the project root; its presence is
// what marks a directory as a project.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config errors.
var (
	ErrConfigInvalid = errors.New("invalid config file")
	ErrNoConfigDir   = errors.New("cannot determine config directory")
)

// Defaults for discovery knobs.
const (
	DefaultSearchDepth     = 3
	DefaultCacheTTLSeconds = 30
)

// defaultExcludeDirs are directory names skipped during auto-discovery, on
// top of any dotted directory.
var defaultExcludeDirs = []string{
	"node_modules", "vendor", "target", "dist", "build", "out",
	"__pycache__", "venv", ".git",
}

// Global holds the tool-wide configuration.
type Global struct {
	// RegistryDir holds one registration file per explicitly registered
	// project. Default: <config dir>/projects.
	RegistryDir string `json:"registryDir,omitempty"`

	// AutoDiscover enables the recursive filesystem scan.
	AutoDiscover *bool `json:"autoDiscover,omitempty"`

	// SearchRoots are the roots scanned during auto-discovery.
	// Default: [$HOME].
	SearchRoots []string `json:"searchRoots,omitempty"`

	// SearchDepth bounds the recursive scan. Default 3.
	SearchDepth int `json:"searchDepth,omitempty"`

	// CacheTTLSeconds is the discovery cache lifetime. Default 30.
	CacheTTLSeconds int `json:"cacheTTLSeconds,omitempty"`

	// ExcludeDirs replaces the default scan exclusion list when set.
	ExcludeDirs []string `json:"excludeDirs,omitempty"`

	// LogDir enables file logging when set.
	LogDir string `json:"logDir,omitempty"`

	// LogLevel is debug|info|warn|error. Default info.
	LogLevel string `json:"logLevel,omitempty"`
}

// AutoDiscoverEnabled reports whether the scan is enabled (default true).
func (g *Global) AutoDiscoverEnabled() bool {
	return g.AutoDiscover == nil || *g.AutoDiscover
}

// TTL returns CacheTTLSeconds with the default applied.
func (g *Global) TTL() int {
	if g.CacheTTLSeconds <= 0 {
		return DefaultCacheTTLSeconds
	}

	return g.CacheTTLSeconds
}

// Depth returns SearchDepth with the default applied.
func (g *Global) Depth() int {
	if g.SearchDepth <= 0 {
		return DefaultSearchDepth
	}

	return g.SearchDepth
}

// Excluded returns the scan exclusion list with the default applied.
func (g *Global) Excluded() []string {
	if len(g.ExcludeDirs) > 0 {
		return g.ExcludeDirs
	}

	return defaultExcludeDirs
}

// configDir resolves the mdt config directory from the environment.
// Uses $XDG_CONFIG_HOME/mdt if set, otherwise ~/.config/mdt.
func configDir(env map[string]string) (string, error) {
	if xdg := env["XDG_CONFIG_HOME"]; xdg != "" {
		return filepath.Join(xdg, "mdt"), nil
	}

	if home := env["HOME"]; home != "" {
		return filepath.Join(home, ".config", "mdt"), nil
	}

	return "", ErrNoConfigDir
}

// LoadGlobal loads the global config. A missing file yields defaults; a
// malformed file is an error so the caller can decide whether to degrade.
// All defaults are applied before returning, including RegistryDir and
// SearchRoots.
func LoadGlobal(env map[string]string) (*Global, error) {
	dir, err := configDir(env)
	if err != nil {
		return nil, err
	}

	cfg := &Global{}

	path := filepath.Join(dir, "config.json")

	data, readErr := os.ReadFile(path)
	if readErr == nil {
		parseErr := parseGlobal(data, cfg)
		if parseErr != nil {
			return nil, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, parseErr)
		}
	} else if !os.IsNotExist(readErr) {
		return nil, fmt.Errorf("reading config %s: %w", path, readErr)
	}

	if cfg.RegistryDir == "" {
		cfg.RegistryDir = filepath.Join(dir, "projects")
	}

	if len(cfg.SearchRoots) == 0 {
		if home := env["HOME"]; home != "" {
			cfg.SearchRoots = []string{home}
		}
	}

	return cfg, nil
}

// parseGlobal standardizes JSONC to JSON and unmarshals it.
func parseGlobal(data []byte, cfg *Global) error {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("invalid JSONC: %w", err)
	}

	unmarshalErr := json.Unmarshal(standardized, cfg)
	if unmarshalErr != nil {
		return fmt.Errorf("invalid JSON: %w", unmarshalErr)
	}

	return nil
}
