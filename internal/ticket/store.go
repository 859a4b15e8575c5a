package ticket

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/atomic"

	"github.com/markdown-ticket/mdt/internal/clock"
	"github.com/markdown-ticket/mdt/internal/headerblock"
	"github.com/markdown-ticket/mdt/internal/logging"
	"github.com/markdown-ticket/mdt/internal/project"
)

// Store provides CRUD over the ticket documents of a single project. It
// keeps an in-memory cache of parsed documents keyed by path, invalidated
// by mtime/size changes and by the watch hub on filesystem events. Safe
// for concurrent use.
type Store struct {
	proj   project.Project
	clk    clock.Clock
	log    *slog.Logger
	codeRe *regexp.Regexp

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// cacheEntry is one parsed document plus the file identity it was parsed
// from.
type cacheEntry struct {
	ticket *Ticket
	mtime  time.Time
	size   int64
}

// NewStore creates a Store for the given project.
func NewStore(proj project.Project, clk clock.Clock) *Store {
	return &Store{
		proj:   proj,
		clk:    clk,
		log:    logging.ForComponent(logging.CompStore),
		codeRe: regexp.MustCompile(`^` + regexp.QuoteMeta(proj.Code) + `-(\d+)`),
		cache:  make(map[string]cacheEntry),
	}
}

// Project returns the project this store is bound to.
func (s *Store) Project() project.Project {
	return s.proj
}

// Filter restricts List results. Each field accepts a set; an empty set
// means no restriction on that field.
type Filter struct {
	Statuses      []Status
	Types         []Type
	Priorities    []Priority
	CreatedAfter  time.Time
	CreatedBefore time.Time
}

func (f *Filter) matches(ticket *Ticket) bool {
	if f == nil {
		return true
	}

	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, ticket.Status) {
		return false
	}

	if len(f.Types) > 0 && !slices.Contains(f.Types, ticket.Type) {
		return false
	}

	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, ticket.Priority) {
		return false
	}

	if !f.CreatedAfter.IsZero() && ticket.DateCreated.Before(f.CreatedAfter) {
		return false
	}

	if !f.CreatedBefore.IsZero() && ticket.DateCreated.After(f.CreatedBefore) {
		return false
	}

	return true
}

// List enumerates the project's ticket documents, skipping unreadable ones.
// Results are sorted by numeric code suffix descending, ties broken by
// reverse lexicographic code comparison. A missing tickets directory is an
// empty project, not an error.
func (s *Store) List(filter *Filter) ([]*Ticket, error) {
	dir := s.proj.TicketsDir()

	entries, readErr := os.ReadDir(dir)
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading tickets dir %s: %w", dir, readErr)
	}

	tickets := make([]*Ticket, 0, len(entries))

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}

		ticket, loadErr := s.load(filepath.Join(dir, entry.Name()))
		if loadErr != nil {
			// A single broken document never aborts the listing.
			s.log.Warn("skipping unreadable ticket", slog.String("error", loadErr.Error()))

			continue
		}

		if filter.matches(ticket) {
			tickets = append(tickets, ticket)
		}
	}

	slices.SortFunc(tickets, func(a, b *Ticket) int {
		if diff := b.Number() - a.Number(); diff != 0 {
			return diff
		}

		return strings.Compare(b.Code, a.Code)
	})

	return tickets, nil
}

// Get returns the ticket whose code matches case-insensitively, or a
// NotFoundError. An unpadded numeric suffix resolves to the padded code,
// so APP-7 finds APP-007.
func (s *Store) Get(code string) (*Ticket, error) {
	tickets, listErr := s.List(nil)
	if listErr != nil {
		return nil, listErr
	}

	number := s.codeSuffix(code)

	for _, ticket := range tickets {
		if strings.EqualFold(ticket.Code, code) {
			return ticket, nil
		}

		if number > 0 && ticket.Number() == number {
			return ticket, nil
		}
	}

	return nil, &NotFoundError{Kind: "ticket", Key: s.proj.Code + "/" + code}
}

// codeSuffix extracts the numeric suffix when code names this project,
// zero-padded or not. Returns 0 when code belongs to another project or
// carries no number.
func (s *Store) codeSuffix(code string) int {
	idx := strings.LastIndexByte(code, '-')
	if idx < 0 || !strings.EqualFold(code[:idx], s.proj.Code) {
		return 0
	}

	num, parseErr := strconv.Atoi(code[idx+1:])
	if parseErr != nil || num <= 0 {
		return 0
	}

	return num
}

// load parses the document at path, reusing the cached copy when the file
// identity (mtime, size) is unchanged.
func (s *Store) load(path string) (*Ticket, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	s.mu.RLock()
	entry, hit := s.cache[path]
	s.mu.RUnlock()

	if hit && entry.mtime.Equal(info.ModTime()) && entry.size == info.Size() {
		return entry.ticket, nil
	}

	ticket, parseErr := parseFile(path, info.ModTime())
	if parseErr != nil {
		return nil, parseErr
	}

	s.mu.Lock()
	s.cache[path] = cacheEntry{ticket: ticket, mtime: info.ModTime(), size: info.Size()}
	s.mu.Unlock()

	return ticket, nil
}

// parseFile reads and parses one ticket document.
func parseFile(path string, fileTime time.Time) (*Ticket, error) {
	data, readErr := os.ReadFile(path)
	if readErr != nil {
		return nil, fmt.Errorf("reading ticket %s: %w", path, readErr)
	}

	block, body, blockErr := headerblock.Parse(data)
	if blockErr != nil {
		return nil, &ParseError{Path: path, Err: blockErr}
	}

	return fromBlock(block, body, path, fileTime)
}

// ParseFile parses a single document without touching the cache. The watch
// hub uses it for best-effort event payloads.
func ParseFile(path string) (*Ticket, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		return nil, fmt.Errorf("stat %s: %w", path, statErr)
	}

	return parseFile(path, info.ModTime())
}

// Invalidate drops the cached copy of path. Called by the watch hub when
// the filesystem reports a change.
func (s *Store) Invalidate(path string) {
	s.mu.Lock()
	delete(s.cache, path)
	s.mu.Unlock()
}

// CreateParams are the inputs for Create. Title and Type are required;
// Status defaults to Proposed and Priority to Medium.
type CreateParams struct {
	Title               string
	Type                Type
	Status              Status
	Priority            Priority
	Content             string
	PhaseEpic           string
	Assignee            string
	RelatedTickets      []string
	DependsOn           []string
	Blocks              []string
	ImplementationNotes string
}

// Create allocates the next number, writes the document, and persists the
// advanced counter. Number allocation is serialized by a file lock on the
// counter so concurrent creates never double-issue.
func (s *Store) Create(params CreateParams) (*Ticket, error) {
	if strings.TrimSpace(params.Title) == "" {
		return nil, &ValidationError{Field: "title", Msg: "must not be empty"}
	}

	if !IsValidType(params.Type) {
		return nil, &ValidationError{Field: "type", Msg: string(params.Type) + " is not a known type"}
	}

	if params.Status == "" {
		params.Status = StatusProposed
	} else if !IsValidStatus(params.Status) {
		return nil, &ValidationError{Field: "status", Msg: string(params.Status) + " is not a known status"}
	}

	if params.Priority == "" {
		params.Priority = PriorityMedium
	} else if !IsValidPriority(params.Priority) {
		return nil, &ValidationError{Field: "priority", Msg: string(params.Priority) + " is not a known priority"}
	}

	dir := s.proj.TicketsDir()

	mkdirErr := os.MkdirAll(dir, dirPerms)
	if mkdirErr != nil {
		return nil, fmt.Errorf("creating tickets directory: %w", mkdirErr)
	}

	now := s.clk.Now()

	var created *Ticket

	lockErr := withLock(s.proj.CounterPath(), func() error {
		number, numErr := s.nextNumberLocked()
		if numErr != nil {
			return numErr
		}

		code := s.formatCode(number)

		ticket := &Ticket{
			Code:                code,
			Title:               params.Title,
			Status:              params.Status,
			Type:                params.Type,
			Priority:            params.Priority,
			DateCreated:         now,
			LastModified:        now,
			PhaseEpic:           params.PhaseEpic,
			Assignee:            params.Assignee,
			RelatedTickets:      params.RelatedTickets,
			DependsOn:           params.DependsOn,
			Blocks:              params.Blocks,
			ImplementationNotes: params.ImplementationNotes,
			Content:             ensureTitleHeading(params.Content, params.Title),
		}
		ticket.Path = filepath.Join(dir, Filename(code, params.Title))

		if _, statErr := os.Stat(ticket.Path); statErr == nil {
			return fmt.Errorf("ticket file already exists: %s", ticket.Path)
		}

		doc := headerblock.Compose(newBlock(ticket), []byte(ticket.Content))

		writeErr := atomic.WriteFile(ticket.Path, bytes.NewReader(doc))
		if writeErr != nil {
			return fmt.Errorf("writing ticket file: %w", writeErr)
		}

		counterErr := writeCounter(s.proj.CounterPath(), number+1)
		if counterErr != nil {
			return counterErr
		}

		created = ticket

		return nil
	})
	if lockErr != nil {
		return nil, lockErr
	}

	s.cacheTicket(created)

	return created, nil
}

// headingRe matches an H1 line anywhere in a body.
var headingRe = regexp.MustCompile(`(?m)^# `)

// ensureTitleHeading prepends an H1 derived from the title when the body
// has none.
func ensureTitleHeading(content, title string) string {
	if headingRe.MatchString(content) {
		return content
	}

	heading := "# " + title + "\n"
	if content == "" {
		return heading
	}

	return heading + "\n" + content
}

// NextNumber previews the number the next Create would allocate.
func (s *Store) NextNumber() (int, error) {
	return s.nextNumberLocked()
}

// nextNumberLocked computes max(scanned max + 1, counter). The counter is
// the lower bound; the scan tolerates manually created files and counter
// desync.
func (s *Store) nextNumberLocked() (int, error) {
	scanMax, scanErr := s.scanMaxNumber()
	if scanErr != nil {
		return 0, scanErr
	}

	counter := readCounter(s.proj.CounterPath(), s.proj.StartNumber)

	return max(scanMax+1, counter), nil
}

// scanMaxNumber finds the highest numbered document on disk, or 0.
func (s *Store) scanMaxNumber() (int, error) {
	entries, readErr := os.ReadDir(s.proj.TicketsDir())
	if readErr != nil {
		if os.IsNotExist(readErr) {
			return 0, nil
		}

		return 0, fmt.Errorf("scanning tickets dir: %w", readErr)
	}

	maxNum := 0

	for _, entry := range entries {
		match := s.codeRe.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}

		num, parseErr := strconv.Atoi(match[1])
		if parseErr == nil && num > maxNum {
			maxNum = num
		}
	}

	return maxNum, nil
}

// formatCode builds PROJECT-NNN with the project's zero-padding width.
func (s *Store) formatCode(number int) string {
	return fmt.Sprintf("%s-%0*d", s.proj.Code, s.proj.NumberWidth, number)
}

// cacheTicket stores a freshly written ticket under its path.
func (s *Store) cacheTicket(ticket *Ticket) {
	info, statErr := os.Stat(ticket.Path)
	if statErr != nil {
		return
	}

	s.mu.Lock()
	s.cache[ticket.Path] = cacheEntry{ticket: ticket, mtime: info.ModTime(), size: info.Size()}
	s.mu.Unlock()
}
