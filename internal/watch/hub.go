package watch

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/markdown-ticket/mdt/internal/clock"
	"github.com/markdown-ticket/mdt/internal/logging"
	"github.com/markdown-ticket/mdt/internal/project"
	"github.com/markdown-ticket/mdt/internal/ticket"
)

// debounceWindow collapses editor save sequences (typically delete +
// create within a few milliseconds) into one logical event.
const debounceWindow = 100 * time.Millisecond

// heartbeatInterval paces the keepalive pushed to all subscribers so
// transport layers can prune dead connections.
const heartbeatInterval = 30 * time.Second

// InvalidateFunc is the cache-invalidation hook called before an event is
// broadcast, so subscribers re-reading through the store see fresh data.
type InvalidateFunc func(projectID, path string)

// Hub owns the filesystem watchers, the debounce state, the bounded event
// log, and the subscriber set.
type Hub struct {
	disc       *project.Discovery
	clk        clock.Clock
	log        *slog.Logger
	invalidate InvalidateFunc

	watcher *fsnotify.Watcher
	ring    *eventRing
	stopCh  chan struct{}
	wg      sync.WaitGroup

	subMu       sync.RWMutex
	subscribers map[*Subscriber]struct{}

	mu          sync.Mutex
	pending     map[string]clock.Timer // debounce key -> armed timer
	watchedDirs map[string]string      // tickets dir -> project id
}

// NewHub creates a Hub. invalidate may be nil when no store cache needs
// hooking up (tests).
func NewHub(disc *project.Discovery, clk clock.Clock, invalidate InvalidateFunc) *Hub {
	return &Hub{
		disc:        disc,
		clk:         clk,
		log:         logging.ForComponent(logging.CompWatch),
		invalidate:  invalidate,
		ring:        newEventRing(ringCapacity),
		stopCh:      make(chan struct{}),
		subscribers: make(map[*Subscriber]struct{}),
		pending:     make(map[string]clock.Timer),
		watchedDirs: make(map[string]string),
	}
}

// Start attaches the watchers and launches the event loop and heartbeat.
func (h *Hub) Start() error {
	watcher, watchErr := fsnotify.NewWatcher()
	if watchErr != nil {
		return watchErr
	}

	h.watcher = watcher

	registryErr := watcher.Add(h.disc.RegistryDir())
	if registryErr != nil {
		// The registry dir may not exist yet; discovery still works.
		h.log.Warn("cannot watch registry dir", slog.String("error", registryErr.Error()))
	}

	h.syncProjectWatches()

	h.wg.Add(2)
	go h.loop()
	go h.heartbeatLoop()

	return nil
}

// Stop shuts the watchers down and waits for the loops to exit.
// Subscribers are not closed; callers unsubscribe them explicitly.
func (h *Hub) Stop() {
	close(h.stopCh)

	if h.watcher != nil {
		_ = h.watcher.Close()
	}

	h.wg.Wait()

	h.mu.Lock()
	for key, timer := range h.pending {
		timer.Stop()
		delete(h.pending, key)
	}
	h.mu.Unlock()
}

// Events returns the replay log, oldest first.
func (h *Hub) Events() []Event {
	return h.ring.snapshot()
}

// syncProjectWatches attaches a watcher to every known project's ticket
// directory that is not already watched.
func (h *Hub) syncProjectWatches() {
	for _, proj := range h.disc.GetAllProjects() {
		dir := proj.TicketsDir()

		h.mu.Lock()
		_, watched := h.watchedDirs[dir]
		if !watched {
			h.watchedDirs[dir] = proj.ID
		}
		h.mu.Unlock()

		if watched {
			continue
		}

		addErr := h.watcher.Add(dir)
		if addErr != nil {
			h.log.Debug("cannot watch tickets dir", slog.String("dir", dir), slog.String("error", addErr.Error()))
		}
	}
}

// loop consumes raw fsnotify events. Heavy work (re-parsing, cache
// invalidation) happens after debounce settlement, never inline here.
func (h *Hub) loop() {
	defer h.wg.Done()

	for {
		select {
		case <-h.stopCh:
			return
		case fsEvent, ok := <-h.watcher.Events:
			if !ok {
				return
			}

			h.dispatch(fsEvent)
		case watchErr, ok := <-h.watcher.Errors:
			if !ok {
				return
			}

			h.log.Warn("watcher error", slog.String("error", watchErr.Error()))
		}
	}
}

// heartbeatLoop pushes a periodic heartbeat to all subscribers.
func (h *Hub) heartbeatLoop() {
	defer h.wg.Done()

	ticker := h.clk.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C():
			h.broadcast(Event{Type: TypeHeartbeat, Timestamp: h.clk.Now()})
		}
	}
}

// dispatch classifies a raw event and arms (or re-arms) its debounce
// timer. Events are keyed by (op, path, project) so distinct operations
// on the same path settle independently.
func (h *Hub) dispatch(fsEvent fsnotify.Event) {
	dir := filepath.Dir(fsEvent.Name)

	if dir == filepath.Clean(h.disc.RegistryDir()) {
		h.dispatchRegistry(fsEvent)

		return
	}

	h.mu.Lock()
	projectID, watched := h.watchedDirs[dir]
	h.mu.Unlock()

	if !watched || !strings.HasSuffix(fsEvent.Name, ".md") {
		return
	}

	op, relevant := fileOp(fsEvent.Op)
	if !relevant {
		return
	}

	event := Event{
		Type:      TypeFileChange,
		Op:        op,
		Path:      fsEvent.Name,
		Filename:  filepath.Base(fsEvent.Name),
		ProjectID: projectID,
	}

	h.arm(string(op)+"|"+fsEvent.Name+"|"+projectID, func() { h.settleFile(event) })
}

// dispatchRegistry translates registry file events into semantic
// project-* events, debounced like ticket events.
func (h *Hub) dispatchRegistry(fsEvent fsnotify.Event) {
	name := filepath.Base(fsEvent.Name)
	if !strings.HasSuffix(name, ".toml") {
		return
	}

	projectID := strings.TrimSuffix(name, ".toml")

	var eventType EventType

	switch {
	case fsEvent.Op.Has(fsnotify.Create):
		eventType = TypeProjectCreated
	case fsEvent.Op.Has(fsnotify.Write):
		eventType = TypeProjectUpdated
	case fsEvent.Op.Has(fsnotify.Remove) || fsEvent.Op.Has(fsnotify.Rename):
		eventType = TypeProjectDeleted
	default:
		return
	}

	h.arm(string(eventType)+"|"+fsEvent.Name, func() { h.settleRegistry(eventType, projectID) })
}

// arm starts (or restarts) the debounce timer for key.
func (h *Hub) arm(key string, settle func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if timer, armed := h.pending[key]; armed {
		timer.Stop()
	}

	h.pending[key] = h.clk.AfterFunc(debounceWindow, func() {
		h.mu.Lock()
		delete(h.pending, key)
		h.mu.Unlock()

		settle()
	})
}

// settleFile finishes a debounced ticket-file event: invalidate the
// cached copy, best-effort re-parse the header for the payload, then
// record and broadcast.
func (h *Hub) settleFile(event Event) {
	event.Timestamp = h.clk.Now()

	if h.invalidate != nil {
		h.invalidate(event.ProjectID, event.Path)
	}

	if event.Op == OpAdd || event.Op == OpChange {
		parsed, parseErr := ticket.ParseFile(event.Path)
		if parseErr != nil {
			// Degrade to an event without a payload; never block the
			// broadcast on a half-written file.
			h.log.Debug("event payload parse failed", slog.String("path", event.Path), slog.String("error", parseErr.Error()))
		} else {
			event.Ticket = &TicketSummary{
				Code:     parsed.Code,
				Title:    parsed.Title,
				Status:   string(parsed.Status),
				Type:     string(parsed.Type),
				Priority: string(parsed.Priority),
			}
		}
	}

	h.ring.push(event)
	h.broadcast(event)
}

// settleRegistry finishes a debounced registry event: drop the discovery
// cache, refresh project watches, then record and broadcast with an
// idempotent event id.
func (h *Hub) settleRegistry(eventType EventType, projectID string) {
	h.disc.ClearCache()

	if eventType != TypeProjectDeleted {
		h.syncProjectWatches()
	}

	event := Event{
		Type:      eventType,
		ProjectID: projectID,
		EventID:   uuid.NewString(),
		Timestamp: h.clk.Now(),
	}

	h.ring.push(event)
	h.broadcast(event)
}

// fileOp maps fsnotify operations onto the logical event kinds.
func fileOp(op fsnotify.Op) (FileOp, bool) {
	switch {
	case op.Has(fsnotify.Create):
		return OpAdd, true
	case op.Has(fsnotify.Write):
		return OpChange, true
	case op.Has(fsnotify.Remove) || op.Has(fsnotify.Rename):
		return OpUnlink, true
	default:
		return "", false
	}
}
