// Package mdt ties the pieces of the tracker together behind one handle:
// global configuration, project discovery, per-project ticket stores, the
// markdown section engine, and the filesystem watch hub.
package mdt

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/markdown-ticket/mdt/internal/clock"
	"github.com/markdown-ticket/mdt/internal/config"
	"github.com/markdown-ticket/mdt/internal/logging"
	"github.com/markdown-ticket/mdt/internal/project"
	"github.com/markdown-ticket/mdt/internal/section"
	"github.com/markdown-ticket/mdt/internal/ticket"
	"github.com/markdown-ticket/mdt/internal/watch"
)

// Options configure Open. The zero value is usable: process environment,
// real clock, no filesystem watching.
type Options struct {
	// Env overrides the process environment for config resolution. Nil
	// means os.Environ.
	Env map[string]string

	// Clock overrides the time source. Nil means the real clock.
	Clock clock.Clock

	// Watch starts the filesystem watch hub. Without it Subscribe returns
	// nil and events are never produced.
	Watch bool
}

// Tracker is the top-level handle. Safe for concurrent use.
type Tracker struct {
	cfg  *config.Global
	clk  clock.Clock
	disc *project.Discovery
	hub  *watch.Hub

	mu     sync.Mutex
	stores map[string]*ticket.Store // project id -> store
}

// Open loads the global config, installs logging, and builds the tracker.
func Open(opts Options) (*Tracker, error) {
	env := opts.Env
	if env == nil {
		env = environMap()
	}

	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	cfg, cfgErr := config.LoadGlobal(env)
	if cfgErr != nil {
		return nil, cfgErr
	}

	logging.Init(logging.Config{LogDir: cfg.LogDir, Level: cfg.LogLevel})

	tracker := &Tracker{
		cfg:    cfg,
		clk:    clk,
		disc:   project.NewDiscovery(cfg, clk),
		stores: make(map[string]*ticket.Store),
	}

	if opts.Watch {
		tracker.hub = watch.NewHub(tracker.disc, clk, tracker.invalidate)

		startErr := tracker.hub.Start()
		if startErr != nil {
			return nil, fmt.Errorf("starting watch hub: %w", startErr)
		}
	}

	return tracker, nil
}

// Close stops the watch hub if one is running.
func (t *Tracker) Close() {
	if t.hub != nil {
		t.hub.Stop()
	}
}

func environMap() map[string]string {
	env := make(map[string]string)

	for _, kv := range os.Environ() {
		if idx := strings.IndexByte(kv, '='); idx > 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}

	return env
}

// ListProjects returns every known project, registered entries first.
func (t *Tracker) ListProjects() []project.Project {
	return t.disc.GetAllProjects()
}

// GetProject finds a project by id or code, case-insensitively.
func (t *Tracker) GetProject(idOrCode string) (*project.Project, error) {
	proj, ok := t.disc.GetProject(idOrCode)
	if !ok {
		return nil, &ticket.NotFoundError{Kind: "project", Key: idOrCode}
	}

	return proj, nil
}

// RegisterProject validates that root carries a project config and writes
// a registry entry for it under projectID.
func (t *Tracker) RegisterProject(projectID, root string) error {
	cfg, cfgErr := config.LoadProjectConfig(root)
	if cfgErr != nil {
		return cfgErr
	}

	if cfg == nil {
		return fmt.Errorf("no %s with name and code at %s", config.ProjectConfigFileName, root)
	}

	return t.disc.Register(projectID, root)
}

// GetProjectConfig parses the project config inside root. Nil when the
// directory is not a project.
func (t *Tracker) GetProjectConfig(root string) *config.ProjectConfig {
	return t.disc.GetProjectConfig(root)
}

// ClearProjectCache forces the next project lookup to rescan.
func (t *Tracker) ClearProjectCache() {
	t.disc.ClearCache()
}

// store returns the ticket store for a project key, creating it on first
// access. First access to a registered project also stamps its
// lastAccessed metadata.
func (t *Tracker) store(idOrCode string) (*ticket.Store, error) {
	proj, err := t.GetProject(idOrCode)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if store, ok := t.stores[proj.ID]; ok {
		return store, nil
	}

	store := ticket.NewStore(*proj, t.clk)
	t.stores[proj.ID] = store

	if proj.Source == project.SourceRegistered {
		t.disc.TouchLastAccessed(proj.ID)
	}

	return store, nil
}

// invalidate drops the cached document at path in the affected project's
// store. Wired into the watch hub.
func (t *Tracker) invalidate(projectID, path string) {
	t.mu.Lock()
	store, ok := t.stores[projectID]
	t.mu.Unlock()

	if ok {
		store.Invalidate(path)
	}
}

// ListTickets enumerates a project's tickets, newest number first.
func (t *Tracker) ListTickets(projectKey string, filter *ticket.Filter) ([]*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	return store.List(filter)
}

// GetTicket returns one ticket by code, case-insensitively.
func (t *Tracker) GetTicket(projectKey, code string) (*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	return store.Get(code)
}

// CreateTicket allocates the next number and writes the document.
func (t *Tracker) CreateTicket(projectKey string, params ticket.CreateParams) (*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	return store.Create(params)
}

// UpdateTicketStatus applies a state-machine-checked status change.
func (t *Tracker) UpdateTicketStatus(projectKey, code string, to ticket.Status) (*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	return store.UpdateStatus(code, to)
}

// UpdateTicketAttrs patches optional header fields.
func (t *Tracker) UpdateTicketAttrs(projectKey, code string, attrs ticket.Attrs) (*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	return store.UpdateAttrs(code, attrs)
}

// DeleteTicket removes a ticket document. Returns false when no document
// matched the code.
func (t *Tracker) DeleteTicket(projectKey, code string) (bool, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return false, err
	}

	return store.Delete(code)
}

// NextTicketNumber previews the number the next create would allocate.
func (t *Tracker) NextTicketNumber(projectKey string) (int, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return 0, err
	}

	return store.NextNumber()
}

// ListSections returns the header outline of a ticket's body.
func (t *Tracker) ListSections(projectKey, code string) ([]section.Section, error) {
	doc, err := t.GetTicket(projectKey, code)
	if err != nil {
		return nil, err
	}

	return section.List(doc.Content), nil
}

// GetSection returns the content span below the matched header.
func (t *Tracker) GetSection(projectKey, code, identifier string) (string, error) {
	doc, err := t.GetTicket(projectKey, code)
	if err != nil {
		return "", err
	}

	return section.Get(doc.Content, identifier)
}

// ReplaceSection swaps the matched section's content and writes the
// document back.
func (t *Tracker) ReplaceSection(projectKey, code, identifier, content string) (*ticket.Ticket, error) {
	return t.editSection(projectKey, code, func(body string) (string, error) {
		return section.Replace(body, identifier, content)
	})
}

// AppendSection adds content at the end of the matched section.
func (t *Tracker) AppendSection(projectKey, code, identifier, content string) (*ticket.Ticket, error) {
	return t.editSection(projectKey, code, func(body string) (string, error) {
		return section.Append(body, identifier, content)
	})
}

// PrependSection adds content right below the matched header.
func (t *Tracker) PrependSection(projectKey, code, identifier, content string) (*ticket.Ticket, error) {
	return t.editSection(projectKey, code, func(body string) (string, error) {
		return section.Prepend(body, identifier, content)
	})
}

// editSection runs one body transformation and persists the result. The
// header block is untouched apart from the lastModified stamp applied by
// the store.
func (t *Tracker) editSection(projectKey, code string, edit func(body string) (string, error)) (*ticket.Ticket, error) {
	store, err := t.store(projectKey)
	if err != nil {
		return nil, err
	}

	doc, getErr := store.Get(code)
	if getErr != nil {
		return nil, getErr
	}

	body, editErr := edit(doc.Content)
	if editErr != nil {
		return nil, editErr
	}

	return store.ReplaceBody(doc.Code, body)
}

// Subscribe registers a live event consumer. Returns nil when the tracker
// was opened without Watch.
func (t *Tracker) Subscribe() *watch.Subscriber {
	if t.hub == nil {
		return nil
	}

	return t.hub.Subscribe()
}

// Unsubscribe removes a subscriber and closes its channel.
func (t *Tracker) Unsubscribe(sub *watch.Subscriber) {
	if t.hub != nil && sub != nil {
		t.hub.Unsubscribe(sub)
	}
}

// Events returns the watch hub's replay log, oldest first.
func (t *Tracker) Events() []watch.Event {
	if t.hub == nil {
		return nil
	}

	return t.hub.Events()
}
