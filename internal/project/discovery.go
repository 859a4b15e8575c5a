package project

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/markdown-ticket/mdt/internal/clock"
	"github.com/markdown-ticket/mdt/internal/config"
	"github.com/markdown-ticket/mdt/internal/logging"
)

// Discovery resolves projects with a TTL cache over the registry and scan
// results. It never fails outright: callers always get a (possibly empty)
// project list, and individual broken entries are logged and skipped.
type Discovery struct {
	cfg *config.Global
	clk clock.Clock
	log *slog.Logger

	mu       sync.RWMutex
	cached   []Project
	cachedAt time.Time
}

// NewDiscovery creates a Discovery over the given global config.
func NewDiscovery(cfg *config.Global, clk clock.Clock) *Discovery {
	return &Discovery{
		cfg: cfg,
		clk: clk,
		log: logging.ForComponent(logging.CompDiscovery),
	}
}

// RegistryDir returns the registry directory being watched and scanned.
func (d *Discovery) RegistryDir() string {
	return d.cfg.RegistryDir
}

// GetAllProjects returns the known projects, recomputing when the cache is
// older than the configured TTL. Within the TTL window callers receive the
// identical cached slice.
func (d *Discovery) GetAllProjects() []Project {
	ttl := time.Duration(d.cfg.TTL()) * time.Second

	d.mu.RLock()
	if d.cached != nil && d.clk.Now().Sub(d.cachedAt) < ttl {
		projects := d.cached
		d.mu.RUnlock()

		return projects
	}
	d.mu.RUnlock()

	// Recompute outside the lock so slow filesystem scans never stall
	// readers or watcher callbacks. Concurrent recomputes are harmless;
	// last store wins.
	projects := d.discover()

	d.mu.Lock()
	d.cached = projects
	d.cachedAt = d.clk.Now()
	d.mu.Unlock()

	return projects
}

// GetProject finds a project by id or code, case-insensitively.
func (d *Discovery) GetProject(idOrCode string) (*Project, bool) {
	needle := strings.ToLower(idOrCode)

	for _, proj := range d.GetAllProjects() {
		if strings.ToLower(proj.ID) == needle || strings.ToLower(proj.Code) == needle {
			found := proj

			return &found, true
		}
	}

	return nil, false
}

// GetProjectConfig parses the project config inside root. Returns nil when
// the file is absent, malformed, or lacks the mandatory fields; the parse
// problem is logged, never surfaced, per the discovery failure policy.
func (d *Discovery) GetProjectConfig(root string) *config.ProjectConfig {
	cfg, err := config.LoadProjectConfig(root)
	if err != nil {
		d.log.Warn("unreadable project config", slog.String("root", root), slog.String("error", err.Error()))

		return nil
	}

	return cfg
}

// ClearCache forces the next GetAllProjects call to recompute. Called by
// the watch hub on registry directory events.
func (d *Discovery) ClearCache() {
	d.mu.Lock()
	d.cached = nil
	d.cachedAt = time.Time{}
	d.mu.Unlock()
}

// Register writes a registry entry for root under the given project id and
// invalidates the cache.
func (d *Discovery) Register(projectID, root string) error {
	entry := config.NewRegistryEntry(root, d.clk.Now())

	writeErr := config.WriteRegistryEntry(d.cfg.RegistryDir, projectID, entry)
	if writeErr != nil {
		return writeErr
	}

	d.ClearCache()

	return nil
}

// TouchLastAccessed stamps a registration's lastAccessed metadata.
// Best-effort: failures are logged only.
func (d *Discovery) TouchLastAccessed(projectID string) {
	path := filepath.Join(d.cfg.RegistryDir, projectID+".toml")

	entry, err := config.LoadRegistryEntry(path)
	if err != nil {
		d.log.Debug("touch skipped", slog.String("project", projectID), slog.String("error", err.Error()))

		return
	}

	entry.Metadata.LastAccessed = d.clk.Now().UTC().Format(time.RFC3339)

	writeErr := config.WriteRegistryEntry(d.cfg.RegistryDir, projectID, entry)
	if writeErr != nil {
		d.log.Debug("touch failed", slog.String("project", projectID), slog.String("error", writeErr.Error()))
	}
}

// discover recomputes the full project list: registry entries first, then
// the bounded scan, with registered entries winning every collision.
func (d *Discovery) discover() []Project {
	registered := d.readRegistry()

	byPath := make(map[string]bool, len(registered))
	byID := make(map[string]bool, len(registered))

	for _, proj := range registered {
		byPath[filepath.Clean(proj.Path)] = true
		byID[strings.ToLower(proj.ID)] = true
	}

	projects := registered

	if d.cfg.AutoDiscoverEnabled() {
		seenCodes := make(map[string]bool)

		for _, candidate := range d.scan() {
			if byPath[filepath.Clean(candidate.Path)] || byID[strings.ToLower(candidate.ID)] {
				continue // registered wins
			}

			// Two id-less projects must not share a code; first found wins.
			code := strings.ToLower(candidate.Code)
			if seenCodes[code] {
				d.log.Warn("duplicate project code, dropping",
					slog.String("code", candidate.Code), slog.String("path", candidate.Path))

				continue
			}

			seenCodes[code] = true
			byID[strings.ToLower(candidate.ID)] = true
			projects = append(projects, candidate)
		}
	}

	return projects
}

// readRegistry loads every registration file and resolves it against the
// project config at its target path.
func (d *Discovery) readRegistry() []Project {
	entries, readErr := os.ReadDir(d.cfg.RegistryDir)
	if readErr != nil {
		if !os.IsNotExist(readErr) {
			d.log.Warn("cannot read registry dir", slog.String("error", readErr.Error()))
		}

		return nil
	}

	var projects []Project

	for _, dirEntry := range entries {
		name := dirEntry.Name()
		if dirEntry.IsDir() || !strings.HasSuffix(name, ".toml") {
			continue
		}

		projectID := strings.TrimSuffix(name, ".toml")

		entry, entryErr := config.LoadRegistryEntry(filepath.Join(d.cfg.RegistryDir, name))
		if entryErr != nil {
			d.log.Warn("skipping registry entry", slog.String("entry", name), slog.String("error", entryErr.Error()))

			continue
		}

		proj, ok := d.resolve(entry.Project.Path, projectID, SourceRegistered)
		if !ok {
			continue
		}

		proj.Active = proj.Active && entry.IsActive()
		projects = append(projects, proj)
	}

	return projects
}

// scan walks the configured search roots up to the depth bound, collecting
// every directory that carries a project config file.
func (d *Discovery) scan() []Project {
	var found []Project

	for _, root := range d.cfg.SearchRoots {
		d.scanDir(root, d.cfg.Depth(), &found)
	}

	return found
}

// scanDir visits one directory level. Unreadable directories are skipped so
// a permission hole never aborts the scan.
func (d *Discovery) scanDir(dir string, depth int, found *[]Project) {
	if depth < 0 {
		return
	}

	proj, ok := d.resolve(dir, "", SourceAutoDiscovered)
	if ok {
		*found = append(*found, proj)

		// A project root never contains nested projects worth scanning.
		return
	}

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		d.log.Debug("scan skipping dir", slog.String("dir", dir), slog.String("error", readErr.Error()))

		return
	}

	for _, dirEntry := range entries {
		if !dirEntry.IsDir() || d.excluded(dirEntry.Name()) {
			continue
		}

		d.scanDir(filepath.Join(dir, dirEntry.Name()), depth-1, found)
	}
}

// excluded reports whether a directory name is skipped during the scan.
func (d *Discovery) excluded(name string) bool {
	if strings.HasPrefix(name, ".") {
		return true
	}

	for _, excluded := range d.cfg.Excluded() {
		if name == excluded {
			return true
		}
	}

	return false
}

// resolve builds a Project from the config file inside root. registeredID
// is the registry file name for registered projects, empty for discovered
// ones. Returns false when root has no usable project config or the
// explicit id contradicts the directory name.
func (d *Discovery) resolve(root, registeredID string, source Source) (Project, bool) {
	absRoot, absErr := filepath.Abs(root)
	if absErr != nil {
		absRoot = root
	}

	cfg := d.GetProjectConfig(absRoot)
	if cfg == nil {
		if registeredID != "" {
			d.log.Warn("registered project has no usable config", slog.String("project", registeredID), slog.String("root", absRoot))
		}

		return Project{}, false
	}

	dirName := filepath.Base(absRoot)

	// An explicit id that disagrees with the directory name marks a stale
	// worktree copy; drop it rather than shadowing the real project.
	if cfg.Project.ID != "" && !strings.EqualFold(cfg.Project.ID, dirName) {
		d.log.Warn("project id does not match directory, skipping",
			slog.String("id", cfg.Project.ID), slog.String("dir", dirName))

		return Project{}, false
	}

	projectID := cfg.Project.ID
	if projectID == "" {
		projectID = registeredID
	}

	if projectID == "" {
		projectID = dirName
	}

	return Project{
		ID:          projectID,
		Code:        cfg.Project.Code,
		Name:        cfg.Project.Name,
		Path:        absRoot,
		TicketsPath: cfg.Project.TicketsPath,
		CounterFile: cfg.Project.CounterFile,
		StartNumber: cfg.Project.StartNumber,
		NumberWidth: cfg.Project.NumberWidth,
		Active:      cfg.IsActive(),
		Source:      source,
		Description: cfg.Project.Description,
	}, true
}
