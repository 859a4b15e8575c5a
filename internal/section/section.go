// Package section parses a ticket body into its header hierarchy and
// performs targeted edits on a named sub-section without disturbing the
// rest of the document.
//
// Operations work on the markdown body only; callers strip the header
// block first. All edits are byte-local to the target section's owned
// span: the span runs from just after the header line to just before the
// next header at the same or shallower level.
package section

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// markdownParserInstance is initialized once and reused. The parser
// configuration never changes and a goldmark parser is safe to share;
// per-call state lives in the reader.
var (
	markdownParserInstance goldmark.Markdown
	markdownParserOnce     sync.Once
)

func getMarkdownParser() goldmark.Markdown {
	markdownParserOnce.Do(func() {
		markdownParserInstance = goldmark.New()
	})

	return markdownParserInstance
}

// Section is one header-delimited node of the body.
type Section struct {
	// HeaderText is the header line without its marker characters.
	HeaderText string

	// HeaderLevel is the ATX level, 1..6.
	HeaderLevel int

	// HierarchicalPath is the ancestor chain joined with " > ",
	// e.g. "1. Description > 1.1 Background".
	HierarchicalPath string

	// Preview is a short single-line excerpt of the owned content.
	Preview string

	// ContentLength is the byte length of the owned span.
	ContentLength int

	headerStart  int // byte offset of the header line
	headerEnd    int // byte offset just past the header line's newline
	contentStart int // == headerEnd
	contentEnd   int // byte offset of the next same-or-shallower header
}

// previewLength bounds the excerpt shown by List.
const previewLength = 60

// parseSections scans body for ATX headings via the markdown AST, so
// marker characters inside fenced code blocks are never mistaken for
// headers, and derives each section's owned byte span.
func parseSections(body []byte) []Section {
	reader := text.NewReader(body)
	doc := getMarkdownParser().Parser().Parse(reader)

	var sections []Section

	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || node.Kind() != ast.KindHeading {
			return ast.WalkContinue, nil
		}

		heading, ok := node.(*ast.Heading)
		if !ok || heading.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}

		segment := heading.Lines().At(0)
		lineStart := lineStartBefore(body, segment.Start)

		// Setext headings have no marker prefix; the document format
		// uses ATX only, so anything else is ordinary text to us.
		if lineStart >= len(body) || body[lineStart] != '#' {
			return ast.WalkContinue, nil
		}

		lineEnd := lineEndAfter(body, heading.Lines().At(heading.Lines().Len()-1).Stop)

		sections = append(sections, Section{
			HeaderText:  headerText(body[lineStart:lineEnd]),
			HeaderLevel: heading.Level,
			headerStart: lineStart,
			headerEnd:   lineEnd,
		})

		return ast.WalkContinue, nil
	})

	resolveSpans(body, sections)
	buildPaths(sections)

	for idx := range sections {
		span := body[sections[idx].contentStart:sections[idx].contentEnd]
		sections[idx].ContentLength = len(span)
		sections[idx].Preview = preview(span)
	}

	return sections
}

// resolveSpans assigns each section's owned span: from past its header
// line to the next header at the same or shallower level, or end of body.
func resolveSpans(body []byte, sections []Section) {
	for idx := range sections {
		sections[idx].contentStart = sections[idx].headerEnd
		sections[idx].contentEnd = len(body)

		for next := idx + 1; next < len(sections); next++ {
			if sections[next].HeaderLevel <= sections[idx].HeaderLevel {
				sections[idx].contentEnd = sections[next].headerStart

				break
			}
		}
	}
}

// buildPaths derives each section's hierarchical path from the header
// stack in document order.
func buildPaths(sections []Section) {
	type frame struct {
		level int
		text  string
	}

	var stack []frame

	for idx := range sections {
		level := sections[idx].HeaderLevel

		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}

		parts := make([]string, 0, len(stack)+1)
		for _, ancestor := range stack {
			parts = append(parts, ancestor.text)
		}

		parts = append(parts, sections[idx].HeaderText)
		sections[idx].HierarchicalPath = strings.Join(parts, " > ")

		stack = append(stack, frame{level: level, text: sections[idx].HeaderText})
	}
}

// lineStartBefore backtracks from offset to the start of its line.
func lineStartBefore(body []byte, offset int) int {
	if offset > len(body) {
		offset = len(body)
	}

	idx := bytes.LastIndexByte(body[:offset], '\n')

	return idx + 1
}

// lineEndAfter advances from offset past the end of its line, including
// the newline.
func lineEndAfter(body []byte, offset int) int {
	idx := bytes.IndexByte(body[offset:], '\n')
	if idx < 0 {
		return len(body)
	}

	return offset + idx + 1
}

// headerText strips the ATX markers and trailing newline from a raw
// header line.
func headerText(line []byte) string {
	trimmed := strings.TrimRight(string(line), "\r\n")
	trimmed = strings.TrimLeft(trimmed, "#")

	return strings.TrimSpace(trimmed)
}

// preview collapses a content span to a short single-line excerpt.
func preview(span []byte) string {
	collapsed := strings.Join(strings.Fields(string(span)), " ")
	if len(collapsed) > previewLength {
		collapsed = collapsed[:previewLength] + "..."
	}

	return collapsed
}

// List returns the flattened header tree of body in document order.
func List(body string) []Section {
	return parseSections([]byte(body))
}

// Get returns the owned content of the section matching identifier.
func Get(body, identifier string) (string, error) {
	raw := []byte(body)

	target, err := resolve(raw, identifier)
	if err != nil {
		return "", err
	}

	return string(raw[target.contentStart:target.contentEnd]), nil
}

// Replace substitutes the target section's entire owned span with
// newContent. The header line and everything outside the span are
// untouched.
func Replace(body, identifier, newContent string) (string, error) {
	raw := []byte(body)

	target, err := resolve(raw, identifier)
	if err != nil {
		return "", err
	}

	return splice(raw, target.contentStart, target.contentEnd, normalizeInsert(newContent)), nil
}

// Append inserts extra at the end of the target section's owned span,
// just before the next header.
func Append(body, identifier, extra string) (string, error) {
	raw := []byte(body)

	target, err := resolve(raw, identifier)
	if err != nil {
		return "", err
	}

	return splice(raw, target.contentEnd, target.contentEnd, normalizeInsert(extra)), nil
}

// Prepend inserts extra immediately after the target header line, before
// the section's existing content.
func Prepend(body, identifier, extra string) (string, error) {
	raw := []byte(body)

	target, err := resolve(raw, identifier)
	if err != nil {
		return "", err
	}

	return splice(raw, target.contentStart, target.contentStart, normalizeInsert(extra)), nil
}

// splice replaces raw[start:end] with insert.
func splice(raw []byte, start, end int, insert string) string {
	var builder strings.Builder

	builder.Grow(len(raw) - (end - start) + len(insert))
	builder.Write(raw[:start])
	builder.WriteString(insert)
	builder.Write(raw[end:])

	return builder.String()
}

// normalizeInsert guarantees inserted text ends at a line boundary so the
// following header always starts on its own line.
func normalizeInsert(content string) string {
	if content == "" || strings.HasSuffix(content, "\n") {
		return content
	}

	return content + "\n"
}
