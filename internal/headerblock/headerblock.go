// Package headerblock parses and serializes the structured key/value
// preamble at the top of ticket and registry documents.
//
// The format is intentionally minimal so parsing stays deterministic and a
// document edited by hand round-trips without surprises:
//
//	---
//	code: MDT-004
//	title: Fix: counter desync after manual edits
//	status: Proposed
//	relatedTickets: MDT-001, MDT-002
//	---
//
// Each line inside the delimiters is "key: value". Values are raw text to
// the end of the line, so titles containing colons need no quoting.
// Multi-valued fields are comma-joined. Unknown keys are preserved in their
// original order by the serializer, never reordered or dropped.
package headerblock

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Delimiter is the line that opens and closes a header block.
const Delimiter = "---"

// maxBlockLines bounds the header block to guard against parsing an entire
// unrelated document as a never-closed block.
const maxBlockLines = 200

// Parse errors.
var (
	ErrMissingOpenDelimiter  = errors.New("missing opening --- delimiter")
	ErrMissingCloseDelimiter = errors.New("missing closing --- delimiter")
	ErrMalformedLine         = errors.New("malformed header line")
	ErrBlockTooLarge         = errors.New("header block exceeds line limit")
)

// entry is one key/value pair in document order.
type entry struct {
	key   string
	value string
}

// Block is an ordered set of header key/value pairs. The zero value is
// usable as an empty block.
type Block struct {
	entries []entry
}

// Parse splits src into its header block and body. The opening delimiter
// must be the first line; the body starts immediately after the closing
// delimiter line with a single leading blank line trimmed.
func Parse(src []byte) (*Block, []byte, error) {
	reader := bufio.NewReader(bytes.NewReader(src))

	first, err := readLine(reader)
	if err != nil || strings.TrimRight(first, "\r") != Delimiter {
		return nil, nil, ErrMissingOpenDelimiter
	}

	block := &Block{}
	consumed := len(first) + 1
	closed := false

	for lineNum := 2; ; lineNum++ {
		if lineNum > maxBlockLines {
			return nil, nil, ErrBlockTooLarge
		}

		line, readErr := readLine(reader)
		if readErr != nil {
			break
		}

		consumed += len(line) + 1
		trimmed := strings.TrimRight(line, "\r")

		if trimmed == Delimiter {
			closed = true

			break
		}

		if strings.TrimSpace(trimmed) == "" {
			continue
		}

		key, value, ok := splitLine(trimmed)
		if !ok {
			return nil, nil, fmt.Errorf("%w (line %d): %q", ErrMalformedLine, lineNum, trimmed)
		}

		block.Set(key, value)
	}

	if !closed {
		return nil, nil, ErrMissingCloseDelimiter
	}

	body := src
	if consumed < len(src) {
		body = src[consumed:]
	} else {
		body = nil
	}

	// A single blank separator line belongs to the framing, not the body.
	if bytes.HasPrefix(body, []byte("\n")) {
		body = body[1:]
	} else if bytes.HasPrefix(body, []byte("\r\n")) {
		body = body[2:]
	}

	return block, body, nil
}

// readLine returns the next line without its trailing newline. io.EOF with
// a non-empty remainder is returned as a final line.
func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil {
		if line == "" {
			return "", err
		}

		// Last line without trailing newline. Account for the missing
		// newline by padding nothing; callers track consumed bytes with
		// +1 per line, so report the raw text and let Parse overshoot
		// harmlessly past the end of src.
		return line, nil
	}

	return strings.TrimSuffix(line, "\n"), nil
}

// splitLine parses "key: value". The key must start with a letter and
// contain only letters and digits; the value is everything after the first
// colon, trimmed.
func splitLine(line string) (string, string, bool) {
	key, value, found := strings.Cut(line, ":")
	if !found {
		return "", "", false
	}

	key = strings.TrimSpace(key)
	if !validKey(key) {
		return "", "", false
	}

	return key, strings.TrimSpace(value), true
}

func validKey(key string) bool {
	if key == "" {
		return false
	}

	for idx, r := range key {
		isLetter := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		if idx == 0 && !isLetter {
			return false
		}

		if !isLetter && (r < '0' || r > '9') {
			return false
		}
	}

	return true
}

// Get returns the raw value for key.
func (b *Block) Get(key string) (string, bool) {
	for _, e := range b.entries {
		if e.key == key {
			return e.value, true
		}
	}

	return "", false
}

// String returns the value for key, or "" when absent.
func (b *Block) String(key string) string {
	value, _ := b.Get(key)

	return value
}

// Int returns the integer value for key.
// Returns (0, false) if the key is missing or not an integer.
func (b *Block) Int(key string) (int, bool) {
	value, ok := b.Get(key)
	if !ok {
		return 0, false
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}

	return parsed, true
}

// timeFormats are accepted dateCreated/lastModified layouts, most specific
// first. Documents written by the store use RFC3339; hand-edited documents
// often carry bare dates.
var timeFormats = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

// Time returns the timestamp value for key.
// Returns (zero, false) if the key is missing or unparseable.
func (b *Block) Time(key string) (time.Time, bool) {
	value, ok := b.Get(key)
	if !ok || value == "" {
		return time.Time{}, false
	}

	for _, layout := range timeFormats {
		parsed, err := time.Parse(layout, value)
		if err == nil {
			return parsed, true
		}
	}

	return time.Time{}, false
}

// List returns the comma-joined value for key split into trimmed items,
// with empty items dropped. A missing key returns nil.
func (b *Block) List(key string) []string {
	value, ok := b.Get(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	items := make([]string, 0, len(parts))

	for _, part := range parts {
		item := strings.TrimSpace(part)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

// Set updates key in place when present, otherwise appends it. Order of
// existing keys is never disturbed.
func (b *Block) Set(key, value string) {
	for idx, e := range b.entries {
		if e.key == key {
			b.entries[idx].value = value

			return
		}
	}

	b.entries = append(b.entries, entry{key: key, value: value})
}

// SetList sets key to the comma-joined form of items.
func (b *Block) SetList(key string, items []string) {
	b.Set(key, strings.Join(items, ", "))
}

// Delete removes key. Returns whether it was present.
func (b *Block) Delete(key string) bool {
	for idx, e := range b.entries {
		if e.key == key {
			b.entries = append(b.entries[:idx], b.entries[idx+1:]...)

			return true
		}
	}

	return false
}

// Keys returns the keys in document order.
func (b *Block) Keys() []string {
	keys := make([]string, 0, len(b.entries))
	for _, e := range b.entries {
		keys = append(keys, e.key)
	}

	return keys
}

// Len returns the number of entries.
func (b *Block) Len() int {
	return len(b.entries)
}

// Serialize renders the block back to its delimited form. Entries with
// empty values are omitted entirely (optional keys are never emitted
// blank), all others appear in their original order.
func (b *Block) Serialize() []byte {
	var builder bytes.Buffer

	builder.WriteString(Delimiter)
	builder.WriteByte('\n')

	for _, e := range b.entries {
		if e.value == "" {
			continue
		}

		builder.WriteString(e.key)
		builder.WriteString(": ")
		builder.WriteString(e.value)
		builder.WriteByte('\n')
	}

	builder.WriteString(Delimiter)
	builder.WriteByte('\n')

	return builder.Bytes()
}

// Compose joins a header block and a body back into a full document with a
// single blank separator line.
func Compose(block *Block, body []byte) []byte {
	out := block.Serialize()
	out = append(out, '\n')

	return append(out, body...)
}
