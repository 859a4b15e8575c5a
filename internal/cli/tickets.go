package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/markdown-ticket/mdt"
	"github.com/markdown-ticket/mdt/internal/ticket"
)

func cmdList(out io.Writer, tracker *mdt.Tracker, args []string) error {
	flagSet := flag.NewFlagSet("list", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	statuses := flagSet.StringSlice("status", nil, "Filter by status (repeatable)")
	types := flagSet.StringSlice("type", nil, "Filter by type (repeatable)")
	priorities := flagSet.StringSlice("priority", nil, "Filter by priority (repeatable)")
	asJSON := flagSet.Bool("json", false, "Print tickets as JSON")

	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt list <project> [flags]")
		fprintln(out)
		flagSet.SetOutput(out)
		flagSet.PrintDefaults()

		return nil
	}

	parseErr := flagSet.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("%w: %v", errUsage, parseErr)
	}

	if flagSet.NArg() != 1 {
		return fmt.Errorf("%w: list <project> [flags]", errUsage)
	}

	filter := &ticket.Filter{}
	for _, s := range *statuses {
		filter.Statuses = append(filter.Statuses, ticket.Status(s))
	}

	for _, t := range *types {
		filter.Types = append(filter.Types, ticket.Type(t))
	}

	for _, p := range *priorities {
		filter.Priorities = append(filter.Priorities, ticket.Priority(p))
	}

	tickets, listErr := tracker.ListTickets(flagSet.Arg(0), filter)
	if listErr != nil {
		return listErr
	}

	if *asJSON {
		return printJSON(out, tickets)
	}

	for _, doc := range tickets {
		fprintf(out, "%-12s %-22s %-8s %s\n", doc.Code, doc.Status, doc.Priority, doc.Title)
	}

	return nil
}

func cmdShow(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt show <project> <code>")

		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("%w: show <project> <code>", errUsage)
	}

	doc, getErr := tracker.GetTicket(args[0], args[1])
	if getErr != nil {
		return getErr
	}

	// Print the document as it sits on disk, header block included.
	data, readErr := os.ReadFile(doc.Path)
	if readErr != nil {
		return readErr
	}

	_, writeErr := out.Write(data)

	return writeErr
}

func cmdCreate(in io.Reader, out io.Writer, tracker *mdt.Tracker, args []string) error {
	flagSet := flag.NewFlagSet("create", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	ticketType := flagSet.StringP("type", "t", string(ticket.TypeFeatureEnhancement), "Ticket type")
	priority := flagSet.StringP("priority", "p", "", "Priority (Low|Medium|High|Critical)")
	status := flagSet.StringP("status", "s", "", "Initial status")
	content := flagSet.StringP("content", "c", "", "Markdown body")
	phase := flagSet.String("phase", "", "Phase or epic")
	assignee := flagSet.StringP("assignee", "a", "", "Assignee")

	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt create <project> [title] [flags]")
		fprintln(out)
		fprintln(out, "Create a ticket. Prompts for the title when omitted.")
		fprintln(out)
		flagSet.SetOutput(out)
		flagSet.PrintDefaults()

		return nil
	}

	parseErr := flagSet.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("%w: %v", errUsage, parseErr)
	}

	if flagSet.NArg() < 1 {
		return fmt.Errorf("%w: create <project> [title] [flags]", errUsage)
	}

	title := strings.Join(flagSet.Args()[1:], " ")
	if strings.TrimSpace(title) == "" {
		prompted, promptErr := promptTitle(in)
		if promptErr != nil {
			return promptErr
		}

		title = prompted
	}

	doc, createErr := tracker.CreateTicket(flagSet.Arg(0), ticket.CreateParams{
		Title:     title,
		Type:      ticket.Type(*ticketType),
		Status:    ticket.Status(*status),
		Priority:  ticket.Priority(*priority),
		Content:   *content,
		PhaseEpic: *phase,
		Assignee:  *assignee,
	})
	if createErr != nil {
		return createErr
	}

	fprintln(out, doc.Code)

	return nil
}

// promptTitle asks for the title interactively. On a terminal it uses a
// readline prompt; otherwise it reads one line from in.
func promptTitle(in io.Reader) (string, error) {
	if file, ok := in.(*os.File); !ok || file != os.Stdin || !liner.TerminalSupported() {
		var title string

		_, scanErr := fmt.Fscanln(in, &title)
		if scanErr != nil {
			return "", fmt.Errorf("%w: title is required", errUsage)
		}

		return title, nil
	}

	prompt := liner.NewLiner()
	defer prompt.Close()

	prompt.SetCtrlCAborts(true)

	title, promptErr := prompt.Prompt("Title: ")
	if promptErr != nil {
		return "", fmt.Errorf("%w: title is required", errUsage)
	}

	return title, nil
}

func cmdStatus(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt status <project> <code> <status>")

		return nil
	}

	if len(args) != 3 {
		return fmt.Errorf("%w: status <project> <code> <status>", errUsage)
	}

	doc, updateErr := tracker.UpdateTicketStatus(args[0], args[1], ticket.Status(args[2]))
	if updateErr != nil {
		return updateErr
	}

	fprintf(out, "%s -> %s\n", doc.Code, doc.Status)

	return nil
}

func cmdSet(out io.Writer, tracker *mdt.Tracker, args []string) error {
	flagSet := flag.NewFlagSet("set", flag.ContinueOnError)
	flagSet.SetOutput(io.Discard)

	phase := flagSet.String("phase", "", "Phase or epic (empty clears)")
	assignee := flagSet.String("assignee", "", "Assignee (empty clears)")
	related := flagSet.StringSlice("related", nil, "Related ticket codes")
	dependsOn := flagSet.StringSlice("depends-on", nil, "Dependency ticket codes")
	blocks := flagSet.StringSlice("blocks", nil, "Blocked ticket codes")
	notes := flagSet.String("notes", "", "Implementation notes (empty clears)")
	implemented := flagSet.String("implemented", "", "Implementation date, YYYY-MM-DD")

	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt set <project> <code> [flags]")
		fprintln(out)
		fprintln(out, "Patch optional header fields. Only flags given on the command")
		fprintln(out, "line change; an explicitly empty value clears the field.")
		fprintln(out)
		flagSet.SetOutput(out)
		flagSet.PrintDefaults()

		return nil
	}

	parseErr := flagSet.Parse(args)
	if parseErr != nil {
		return fmt.Errorf("%w: %v", errUsage, parseErr)
	}

	if flagSet.NArg() != 2 {
		return fmt.Errorf("%w: set <project> <code> [flags]", errUsage)
	}

	var attrs ticket.Attrs

	if flagSet.Changed("phase") {
		attrs.PhaseEpic = phase
	}

	if flagSet.Changed("assignee") {
		attrs.Assignee = assignee
	}

	if flagSet.Changed("related") {
		attrs.RelatedTickets = *related
	}

	if flagSet.Changed("depends-on") {
		attrs.DependsOn = *dependsOn
	}

	if flagSet.Changed("blocks") {
		attrs.Blocks = *blocks
	}

	if flagSet.Changed("notes") {
		attrs.ImplementationNotes = notes
	}

	if flagSet.Changed("implemented") {
		when, timeErr := time.Parse("2006-01-02", *implemented)
		if timeErr != nil {
			return fmt.Errorf("%w: --implemented wants YYYY-MM-DD", errUsage)
		}

		attrs.ImplementationDate = &when
	}

	doc, updateErr := tracker.UpdateTicketAttrs(flagSet.Arg(0), flagSet.Arg(1), attrs)
	if updateErr != nil {
		return updateErr
	}

	fprintln(out, "updated", doc.Code)

	return nil
}

func cmdDelete(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt delete <project> <code>")

		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("%w: delete <project> <code>", errUsage)
	}

	removed, deleteErr := tracker.DeleteTicket(args[0], args[1])
	if deleteErr != nil {
		return deleteErr
	}

	if removed {
		fprintln(out, "deleted", args[1])
	} else {
		fprintln(out, "nothing to delete:", args[1])
	}

	return nil
}

func cmdNext(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt next <project>")

		return nil
	}

	if len(args) != 1 {
		return fmt.Errorf("%w: next <project>", errUsage)
	}

	number, nextErr := tracker.NextTicketNumber(args[0])
	if nextErr != nil {
		return nextErr
	}

	fprintln(out, number)

	return nil
}

func printJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")

	return encoder.Encode(v)
}
