package ticket

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/natefinch/atomic"

	"github.com/markdown-ticket/mdt/internal/headerblock"
)

// UpdateStatus moves the ticket to a new status, validated against the
// transition table. Entering Implemented stamps implementationDate when it
// is not already set. Returns the updated ticket.
func (s *Store) UpdateStatus(code string, to Status) (*Ticket, error) {
	current, getErr := s.Get(code)
	if getErr != nil {
		return nil, getErr
	}

	mutateErr := s.mutate(current.Path, func(block *headerblock.Block) error {
		from := Status(block.String(KeyStatus))

		transitionErr := checkTransition(current.Code, from, to)
		if transitionErr != nil {
			return transitionErr
		}

		block.Set(KeyStatus, string(to))

		if to == StatusImplemented && block.String(KeyImplementationDate) == "" {
			block.Set(KeyImplementationDate, s.clk.Now().UTC().Format(time.RFC3339))
		}

		return nil
	})
	if mutateErr != nil {
		return nil, mutateErr
	}

	return s.Get(code)
}

// Attrs are the fields mutable through UpdateAttrs. Pointer fields are
// applied when non-nil (empty string clears the key); slice fields are
// applied when non-nil (empty slice clears the key). Everything outside
// this whitelist — code, title, type, status, content, timestamps — is
// immutable here by design.
type Attrs struct {
	PhaseEpic           *string
	Assignee            *string
	RelatedTickets      []string
	DependsOn           []string
	Blocks              []string
	ImplementationDate  *time.Time
	ImplementationNotes *string
}

// UpdateAttrs applies a whitelisted attribute update. Returns the updated
// ticket.
func (s *Store) UpdateAttrs(code string, attrs Attrs) (*Ticket, error) {
	current, getErr := s.Get(code)
	if getErr != nil {
		return nil, getErr
	}

	mutateErr := s.mutate(current.Path, func(block *headerblock.Block) error {
		setString(block, KeyPhaseEpic, attrs.PhaseEpic)
		setString(block, KeyAssignee, attrs.Assignee)
		setList(block, KeyRelatedTickets, attrs.RelatedTickets)
		setList(block, KeyDependsOn, attrs.DependsOn)
		setList(block, KeyBlocks, attrs.Blocks)
		setString(block, KeyImplementationNotes, attrs.ImplementationNotes)

		if attrs.ImplementationDate != nil {
			if attrs.ImplementationDate.IsZero() {
				block.Delete(KeyImplementationDate)
			} else {
				block.Set(KeyImplementationDate, attrs.ImplementationDate.UTC().Format(time.RFC3339))
			}
		}

		return nil
	})
	if mutateErr != nil {
		return nil, mutateErr
	}

	return s.Get(code)
}

func setString(block *headerblock.Block, key string, value *string) {
	if value == nil {
		return
	}

	if *value == "" {
		block.Delete(key)

		return
	}

	block.Set(key, *value)
}

func setList(block *headerblock.Block, key string, items []string) {
	if items == nil {
		return
	}

	if len(items) == 0 {
		block.Delete(key)

		return
	}

	block.SetList(key, items)
}

// ReplaceBody swaps the markdown body of a ticket, leaving the header
// block untouched. Used by the section engine's write-back path.
func (s *Store) ReplaceBody(code string, body string) (*Ticket, error) {
	current, getErr := s.Get(code)
	if getErr != nil {
		return nil, getErr
	}

	mutateErr := s.mutateDocument(current.Path, func(_ *headerblock.Block, _ []byte) ([]byte, error) {
		return []byte(body), nil
	})
	if mutateErr != nil {
		return nil, mutateErr
	}

	return s.Get(code)
}

// mutate applies a header-only edit to the document at path.
func (s *Store) mutate(path string, edit func(*headerblock.Block) error) error {
	return s.mutateDocument(path, func(block *headerblock.Block, body []byte) ([]byte, error) {
		editErr := edit(block)
		if editErr != nil {
			return nil, editErr
		}

		return body, nil
	})
}

// mutateDocument is the shared read-modify-write path: re-read the file
// under the document lock, let edit adjust the parsed block and body,
// stamp lastModified, and write back atomically. Unknown header keys pass
// through untouched because the parsed block is mutated in place, never
// rebuilt.
func (s *Store) mutateDocument(path string, edit func(*headerblock.Block, []byte) ([]byte, error)) error {
	writeErr := withLock(path, func() error {
		data, readErr := os.ReadFile(path)
		if readErr != nil {
			return fmt.Errorf("reading ticket %s: %w", path, readErr)
		}

		block, body, blockErr := headerblock.Parse(data)
		if blockErr != nil {
			return &ParseError{Path: path, Err: blockErr}
		}

		newBody, editErr := edit(block, body)
		if editErr != nil {
			return editErr
		}

		block.Set(KeyLastModified, s.clk.Now().UTC().Format(time.RFC3339))

		return writeDocument(path, block, newBody)
	})

	s.Invalidate(path)

	return writeErr
}

// writeDocument composes and atomically replaces the document at path.
func writeDocument(path string, block *headerblock.Block, body []byte) error {
	doc := headerblock.Compose(block, body)

	writeErr := atomic.WriteFile(path, bytes.NewReader(doc))
	if writeErr != nil {
		return fmt.Errorf("writing ticket %s: %w", path, writeErr)
	}

	return nil
}

// Delete removes the ticket's document. Returns whether a document was
// found. Deletion is unconditional: any status, type, or dependency links
// may be removed.
func (s *Store) Delete(code string) (bool, error) {
	current, getErr := s.Get(code)
	if getErr != nil {
		if IsNotFound(getErr) {
			return false, nil
		}

		return false, getErr
	}

	removeErr := os.Remove(current.Path)
	if removeErr != nil {
		return false, fmt.Errorf("deleting ticket %s: %w", current.Path, removeErr)
	}

	s.Invalidate(current.Path)

	return true, nil
}
