// Package watch keeps the in-memory view and live subscribers consistent
// with the on-disk truth: one filesystem watcher per project ticket
// directory plus one on the registry directory, debounced into logical
// events, recorded in a bounded log, and fanned out to subscribers.
package watch

import (
	"time"
)

// EventType is the envelope type of a broadcast event.
type EventType string

// EventType values.
const (
	TypeFileChange     EventType = "file-change"
	TypeProjectCreated EventType = "project-created"
	TypeProjectUpdated EventType = "project-updated"
	TypeProjectDeleted EventType = "project-deleted"
	TypeConnection     EventType = "connection"
	TypeHeartbeat      EventType = "heartbeat"
)

// FileOp is the logical operation behind a file-change event.
type FileOp string

// FileOp values.
const (
	OpAdd    FileOp = "add"
	OpChange FileOp = "change"
	OpUnlink FileOp = "unlink"
)

// TicketSummary carries best-effort parsed header fields on file-change
// events. Nil when the document could not be parsed at event time.
type TicketSummary struct {
	Code     string `json:"code"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
}

// Event is one entry of the change feed.
type Event struct {
	Type EventType `json:"type"`

	// Op, Path, and Filename are set for file-change events.
	Op       FileOp `json:"eventKind,omitempty"`
	Path     string `json:"-"`
	Filename string `json:"filename,omitempty"`

	// ProjectID identifies the affected project.
	ProjectID string `json:"projectId,omitempty"`

	// EventID is an idempotent identifier carried by project-* events.
	EventID string `json:"eventId,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Ticket is the best-effort parsed summary for add/change events.
	Ticket *TicketSummary `json:"ticket,omitempty"`
}
