package section

import (
	"fmt"
	"regexp"
	"strings"
)

// NotFoundError reports that no section header matched the identifier.
type NotFoundError struct {
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no section matches %q", e.Identifier)
}

// AmbiguousError reports that more than one header matched; Paths lists
// every match's full hierarchical path so the caller can disambiguate.
type AmbiguousError struct {
	Identifier string
	Paths      []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("section %q is ambiguous, matches: %s",
		e.Identifier, strings.Join(e.Paths, "; "))
}

// numericPrefixRe strips ordered labels like "1.", "2.3.", "1.1" from a
// header, e.g. "1.1 Background" -> "Background".
var numericPrefixRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+`)

// normalize reduces an identifier or header to its comparable form: strip
// leading marker characters, strip the numeric-dot prefix, casefold.
func normalize(text string) string {
	trimmed := strings.TrimSpace(text)
	trimmed = strings.TrimLeft(trimmed, "#")
	trimmed = strings.TrimSpace(trimmed)
	trimmed = numericPrefixRe.ReplaceAllString(trimmed, "")

	return strings.ToLower(trimmed)
}

// normalizePath normalizes each component of a hierarchical path.
func normalizePath(path string) string {
	parts := strings.Split(path, " > ")
	for idx, part := range parts {
		parts[idx] = normalize(part)
	}

	return strings.Join(parts, " > ")
}

// stripMarkup removes a leading ATX marker from an identifier written in
// exact header markup form ("## 1. Description").
func stripMarkup(identifier string) string {
	trimmed := strings.TrimSpace(identifier)
	trimmed = strings.TrimLeft(trimmed, "#")

	return strings.TrimSpace(trimmed)
}

// resolve finds the single section matching identifier. Identifiers are
// accepted in three forms: bare text ("Description"), numbered label
// ("1. Description"), or exact header markup ("## 1. Description").
//
// Exact (case-insensitive) matches on the labelled header text are tried
// first so a numbered label can address one of several same-named
// sections; only then does the numeric-prefix-insensitive match run.
func resolve(body []byte, identifier string) (*Section, error) {
	sections := parseSections(body)
	label := stripMarkup(identifier)

	var exact []*Section

	for idx := range sections {
		if strings.EqualFold(sections[idx].HeaderText, label) {
			exact = append(exact, &sections[idx])
		}
	}

	if len(exact) == 1 {
		return exact[0], nil
	}

	if len(exact) > 1 {
		return nil, &AmbiguousError{Identifier: identifier, Paths: paths(exact)}
	}

	normalized := normalize(identifier)
	normalizedAsPath := normalizePath(label)

	var loose []*Section

	for idx := range sections {
		if normalize(sections[idx].HeaderText) == normalized ||
			normalizePath(sections[idx].HierarchicalPath) == normalizedAsPath {
			loose = append(loose, &sections[idx])
		}
	}

	switch len(loose) {
	case 0:
		return nil, &NotFoundError{Identifier: identifier}
	case 1:
		return loose[0], nil
	default:
		return nil, &AmbiguousError{Identifier: identifier, Paths: paths(loose)}
	}
}

func paths(sections []*Section) []string {
	out := make([]string, 0, len(sections))
	for _, sec := range sections {
		out = append(out, sec.HierarchicalPath)
	}

	return out
}
