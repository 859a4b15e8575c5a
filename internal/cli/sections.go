package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/markdown-ticket/mdt"
)

func cmdSections(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt sections <project> <code>")
		fprintln(out)
		fprintln(out, "List the header outline of a ticket's body.")

		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("%w: sections <project> <code>", errUsage)
	}

	sections, listErr := tracker.ListSections(args[0], args[1])
	if listErr != nil {
		return listErr
	}

	for _, sec := range sections {
		indent := strings.Repeat("  ", sec.HeaderLevel-1)
		fprintf(out, "%s%s (%d bytes)\n", indent, sec.HeaderText, sec.ContentLength)
	}

	return nil
}

func cmdSection(in io.Reader, out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt section <op> <project> <code> <section> [content]")
		fprintln(out)
		fprintln(out, "Operations: get, replace, append, prepend. Sections are matched")
		fprintln(out, "by header text, numbered label, or exact header markup. When")
		fprintln(out, "content is omitted for a write it is read from stdin.")

		return nil
	}

	if len(args) < 4 {
		return fmt.Errorf("%w: section <op> <project> <code> <section> [content]", errUsage)
	}

	op, projectKey, code, identifier := args[0], args[1], args[2], args[3]

	if op == "get" {
		content, getErr := tracker.GetSection(projectKey, code, identifier)
		if getErr != nil {
			return getErr
		}

		fprintln(out, content)

		return nil
	}

	content, contentErr := sectionContent(in, args[4:])
	if contentErr != nil {
		return contentErr
	}

	var opErr error

	switch op {
	case "replace":
		_, opErr = tracker.ReplaceSection(projectKey, code, identifier, content)
	case "append":
		_, opErr = tracker.AppendSection(projectKey, code, identifier, content)
	case "prepend":
		_, opErr = tracker.PrependSection(projectKey, code, identifier, content)
	default:
		return fmt.Errorf("%w: unknown section operation %q", errUsage, op)
	}

	if opErr != nil {
		return opErr
	}

	fprintln(out, "updated", code)

	return nil
}

// sectionContent takes the content from the trailing arguments, or reads
// all of stdin when none were given.
func sectionContent(in io.Reader, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	data, readErr := io.ReadAll(in)
	if readErr != nil {
		return "", fmt.Errorf("reading content from stdin: %w", readErr)
	}

	return string(data), nil
}
