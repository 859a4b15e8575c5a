package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/natefinch/atomic"
)

// ProjectConfigFileName marks a directory as a project root.
const ProjectConfigFileName = ".mdt-config.toml"

// Per-project defaults.
const (
	DefaultTicketsPath = "docs/CRs"
	DefaultStartNumber = 1
	DefaultCounterFile = ".mdt-next"
	DefaultNumberWidth = 3
)

// ProjectConfig is the parsed per-project configuration file.
type ProjectConfig struct {
	Project ProjectSection `toml:"project"`
}

// ProjectSection is the [project] table.
type ProjectSection struct {
	Name        string `toml:"name"`
	Code        string `toml:"code"`
	ID          string `toml:"id,omitempty"`
	TicketsPath string `toml:"ticketsPath,omitempty"`
	StartNumber int    `toml:"startNumber,omitempty"`
	NumberWidth int    `toml:"numberWidth,omitempty"`
	CounterFile string `toml:"counterFile,omitempty"`
	Description string `toml:"description,omitempty"`
	Repository  string `toml:"repository,omitempty"`
	Active      *bool  `toml:"active,omitempty"`
}

// IsActive reports whether the project is active (default true).
func (p *ProjectConfig) IsActive() bool {
	return p.Project.Active == nil || *p.Project.Active
}

// LoadProjectConfig parses the project config file inside root. Following
// the discovery failure policy, a missing file or one lacking the two
// mandatory fields (name, code) returns (nil, nil) rather than an error;
// only unreadable or syntactically broken files report what went wrong so
// the caller can log and skip them.
func LoadProjectConfig(root string) (*ProjectConfig, error) {
	path := filepath.Join(root, ProjectConfigFileName)

	data, readErr := os.ReadFile(path)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading project config %s: %w", path, readErr)
	}

	var cfg ProjectConfig

	decodeErr := toml.Unmarshal(data, &cfg)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, decodeErr)
	}

	if strings.TrimSpace(cfg.Project.Name) == "" || strings.TrimSpace(cfg.Project.Code) == "" {
		return nil, nil
	}

	cfg.Project.Code = strings.ToUpper(strings.TrimSpace(cfg.Project.Code))

	if cfg.Project.TicketsPath == "" {
		cfg.Project.TicketsPath = DefaultTicketsPath
	}

	if cfg.Project.StartNumber <= 0 {
		cfg.Project.StartNumber = DefaultStartNumber
	}

	if cfg.Project.NumberWidth <= 0 {
		cfg.Project.NumberWidth = DefaultNumberWidth
	}

	if cfg.Project.CounterFile == "" {
		cfg.Project.CounterFile = DefaultCounterFile
	}

	return &cfg, nil
}

// RegistryEntry is one registration file under the registry directory,
// named <project id>.toml.
type RegistryEntry struct {
	Project  RegistryProject  `toml:"project"`
	Metadata RegistryMetadata `toml:"metadata"`
}

// RegistryProject is the [project] table of a registration.
type RegistryProject struct {
	Path   string `toml:"path"`
	Active *bool  `toml:"active,omitempty"`
}

// RegistryMetadata is the [metadata] table of a registration.
type RegistryMetadata struct {
	DateRegistered string `toml:"dateRegistered,omitempty"`
	LastAccessed   string `toml:"lastAccessed,omitempty"`
	Version        string `toml:"version,omitempty"`
}

// IsActive reports whether the registration is active (default true).
func (e *RegistryEntry) IsActive() bool {
	return e.Project.Active == nil || *e.Project.Active
}

// LoadRegistryEntry parses a single registration file.
func LoadRegistryEntry(path string) (*RegistryEntry, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("reading registry entry %s: %w", path, readErr)
	}

	var entry RegistryEntry

	decodeErr := toml.Unmarshal(data, &entry)
	if decodeErr != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, decodeErr)
	}

	if entry.Project.Path == "" {
		return nil, fmt.Errorf("%w %s: missing project.path", ErrConfigInvalid, path)
	}

	return &entry, nil
}

// WriteRegistryEntry writes a registration file atomically, creating the
// registry directory if needed.
func WriteRegistryEntry(registryDir, projectID string, entry *RegistryEntry) error {
	mkdirErr := os.MkdirAll(registryDir, 0o750)
	if mkdirErr != nil {
		return fmt.Errorf("creating registry dir: %w", mkdirErr)
	}

	var builder strings.Builder

	encodeErr := toml.NewEncoder(&builder).Encode(entry)
	if encodeErr != nil {
		return fmt.Errorf("encoding registry entry: %w", encodeErr)
	}

	path := filepath.Join(registryDir, projectID+".toml")

	writeErr := atomic.WriteFile(path, strings.NewReader(builder.String()))
	if writeErr != nil {
		return fmt.Errorf("writing registry entry: %w", writeErr)
	}

	return nil
}

// NewRegistryEntry builds a registration for a project root with metadata
// stamped at now.
func NewRegistryEntry(root string, now time.Time) *RegistryEntry {
	stamp := now.UTC().Format(time.RFC3339)

	return &RegistryEntry{
		Project: RegistryProject{Path: root},
		Metadata: RegistryMetadata{
			DateRegistered: stamp,
			LastAccessed:   stamp,
			Version:        "1.0",
		},
	}
}
