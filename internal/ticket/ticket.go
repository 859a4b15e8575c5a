// Package ticket implements CRUD over ticket documents within a project,
// including number allocation and the status state machine.
package ticket

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/markdown-ticket/mdt/internal/headerblock"
)

// Status is a ticket lifecycle state.
type Status string

// Status values. Superseded, Deprecated, and Duplicate are terminal.
const (
	StatusProposed             Status = "Proposed"
	StatusApproved             Status = "Approved"
	StatusInProgress           Status = "In Progress"
	StatusImplemented          Status = "Implemented"
	StatusRejected             Status = "Rejected"
	StatusOnHold               Status = "On Hold"
	StatusPartiallyImplemented Status = "Partially Implemented"
	StatusSuperseded           Status = "Superseded"
	StatusDeprecated           Status = "Deprecated"
	StatusDuplicate            Status = "Duplicate"
)

// Type classifies a change request.
type Type string

// Type values.
const (
	TypeFeatureEnhancement Type = "Feature Enhancement"
	TypeBugFix             Type = "Bug Fix"
	TypeTechnicalDebt      Type = "Technical Debt"
	TypeArchitecture       Type = "Architecture"
	TypeDocumentation      Type = "Documentation"
)

// Priority orders tickets by urgency.
type Priority string

// Priority values.
const (
	PriorityLow      Priority = "Low"
	PriorityMedium   Priority = "Medium"
	PriorityHigh     Priority = "High"
	PriorityCritical Priority = "Critical"
)

var (
	validStatuses = []Status{
		StatusProposed, StatusApproved, StatusInProgress, StatusImplemented,
		StatusRejected, StatusOnHold, StatusPartiallyImplemented,
		StatusSuperseded, StatusDeprecated, StatusDuplicate,
	}
	validTypes = []Type{
		TypeFeatureEnhancement, TypeBugFix, TypeTechnicalDebt,
		TypeArchitecture, TypeDocumentation,
	}
	validPriorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}
)

// IsValidStatus checks membership in the status enum.
func IsValidStatus(s Status) bool {
	for _, valid := range validStatuses {
		if s == valid {
			return true
		}
	}

	return false
}

// IsValidType checks membership in the type enum.
func IsValidType(t Type) bool {
	for _, valid := range validTypes {
		if t == valid {
			return true
		}
	}

	return false
}

// IsValidPriority checks membership in the priority enum.
func IsValidPriority(p Priority) bool {
	for _, valid := range validPriorities {
		if p == valid {
			return true
		}
	}

	return false
}

// Header keys of a ticket document. Mandatory keys are always written;
// optional keys are omitted when empty.
const (
	KeyCode                = "code"
	KeyTitle               = "title"
	KeyStatus              = "status"
	KeyDateCreated         = "dateCreated"
	KeyType                = "type"
	KeyPriority            = "priority"
	KeyPhaseEpic           = "phaseEpic"
	KeyAssignee            = "assignee"
	KeyRelatedTickets      = "relatedTickets"
	KeyDependsOn           = "dependsOn"
	KeyBlocks              = "blocks"
	KeyImplementationDate  = "implementationDate"
	KeyImplementationNotes = "implementationNotes"
	KeyLastModified        = "lastModified"
)

// Ticket is a parsed ticket document.
type Ticket struct {
	Code                string
	Title               string
	Status              Status
	Type                Type
	Priority            Priority
	DateCreated         time.Time
	LastModified        time.Time
	PhaseEpic           string
	Assignee            string
	RelatedTickets      []string
	DependsOn           []string
	Blocks              []string
	ImplementationDate  time.Time
	ImplementationNotes string

	// Content is the markdown body below the header block.
	Content string

	// Path is the document's location on disk.
	Path string
}

// Number returns the numeric suffix of the ticket code, or -1 when the
// code has no parseable number.
func (t *Ticket) Number() int {
	return codeNumber(t.Code)
}

// codeNumber extracts the numeric suffix from a PROJECT-NNN code.
func codeNumber(code string) int {
	idx := strings.LastIndexByte(code, '-')
	if idx < 0 {
		return -1
	}

	num, err := strconv.Atoi(code[idx+1:])
	if err != nil {
		return -1
	}

	return num
}

// fromBlock builds a Ticket from a parsed header block. fileTime supplies
// the dateCreated/lastModified fallback when the header omits them.
// Enum fields are carried as-is so hand-edited documents with off-enum
// values stay readable; create and update paths validate separately.
func fromBlock(block *headerblock.Block, body []byte, path string, fileTime time.Time) (*Ticket, error) {
	code := block.String(KeyCode)
	title := block.String(KeyTitle)
	status := block.String(KeyStatus)
	ticketType := block.String(KeyType)
	priority := block.String(KeyPriority)

	if code == "" || title == "" || status == "" || ticketType == "" || priority == "" {
		return nil, &ParseError{Path: path, Err: errMissingMandatoryKeys}
	}

	ticket := &Ticket{
		Code:                code,
		Title:               title,
		Status:              Status(status),
		Type:                Type(ticketType),
		Priority:            Priority(priority),
		PhaseEpic:           block.String(KeyPhaseEpic),
		Assignee:            block.String(KeyAssignee),
		RelatedTickets:      block.List(KeyRelatedTickets),
		DependsOn:           block.List(KeyDependsOn),
		Blocks:              block.List(KeyBlocks),
		ImplementationNotes: block.String(KeyImplementationNotes),
		Content:             string(body),
		Path:                path,
	}

	if created, ok := block.Time(KeyDateCreated); ok {
		ticket.DateCreated = created
	} else {
		ticket.DateCreated = fileTime
	}

	if modified, ok := block.Time(KeyLastModified); ok {
		ticket.LastModified = modified
	} else {
		ticket.LastModified = fileTime
	}

	if implemented, ok := block.Time(KeyImplementationDate); ok {
		ticket.ImplementationDate = implemented
	}

	return ticket, nil
}

// newBlock renders a ticket into a fresh header block in canonical key
// order. Used for creation only; updates mutate the parsed block in place
// so unknown keys survive.
func newBlock(ticket *Ticket) *headerblock.Block {
	block := &headerblock.Block{}

	block.Set(KeyCode, ticket.Code)
	block.Set(KeyTitle, ticket.Title)
	block.Set(KeyStatus, string(ticket.Status))
	block.Set(KeyDateCreated, ticket.DateCreated.UTC().Format(time.RFC3339))
	block.Set(KeyType, string(ticket.Type))
	block.Set(KeyPriority, string(ticket.Priority))
	block.Set(KeyPhaseEpic, ticket.PhaseEpic)
	block.Set(KeyAssignee, ticket.Assignee)
	block.SetList(KeyRelatedTickets, ticket.RelatedTickets)
	block.SetList(KeyDependsOn, ticket.DependsOn)
	block.SetList(KeyBlocks, ticket.Blocks)

	if !ticket.ImplementationDate.IsZero() {
		block.Set(KeyImplementationDate, ticket.ImplementationDate.UTC().Format(time.RFC3339))
	}

	block.Set(KeyImplementationNotes, ticket.ImplementationNotes)
	block.Set(KeyLastModified, ticket.LastModified.UTC().Format(time.RFC3339))

	return block
}

// maxSlugLength bounds slug-derived filenames.
const maxSlugLength = 50

var (
	slugStripRe    = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSpaceRe    = regexp.MustCompile(`\s+`)
	slugCollapseRe = regexp.MustCompile(`-+`)
)

// Slug derives a filename-safe identifier from a title: lowercase, strip
// everything outside [a-z0-9\s-], whitespace runs become single hyphens,
// repeated hyphens collapse, leading/trailing hyphens are trimmed, and the
// result is truncated to 50 characters.
func Slug(title string) string {
	slug := strings.ToLower(title)
	slug = slugStripRe.ReplaceAllString(slug, "")
	slug = slugSpaceRe.ReplaceAllString(slug, "-")
	slug = slugCollapseRe.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")

	if len(slug) > maxSlugLength {
		slug = strings.TrimRight(slug[:maxSlugLength], "-")
	}

	return slug
}

// Filename derives the document filename for a code and title.
func Filename(code, title string) string {
	slug := Slug(title)
	if slug == "" {
		return code + ".md"
	}

	return fmt.Sprintf("%s-%s.md", code, slug)
}
