package cli

import (
	"fmt"
	"io"

	"github.com/markdown-ticket/mdt"
)

func cmdProjects(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt projects")
		fprintln(out)
		fprintln(out, "List every registered and auto-discovered project.")

		return nil
	}

	for _, proj := range tracker.ListProjects() {
		active := ""
		if !proj.Active {
			active = " (inactive)"
		}

		fprintf(out, "%-16s %-8s %-10s %s%s\n", proj.ID, proj.Code, proj.Source, proj.Path, active)
	}

	return nil
}

func cmdRegister(out io.Writer, tracker *mdt.Tracker, args []string) error {
	if hasHelpFlag(args) {
		fprintln(out, "Usage: mdt register <id> <path>")
		fprintln(out)
		fprintln(out, "Register the project at <path> under <id>. The directory must")
		fprintln(out, "carry a project config file with a name and code.")

		return nil
	}

	if len(args) != 2 {
		return fmt.Errorf("%w: register <id> <path>", errUsage)
	}

	registerErr := tracker.RegisterProject(args[0], args[1])
	if registerErr != nil {
		return registerErr
	}

	fprintln(out, "registered", args[0])

	return nil
}
