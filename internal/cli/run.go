// Package cli implements the mdt command line interface.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/markdown-ticket/mdt"
	"github.com/markdown-ticket/mdt/internal/section"
	"github.com/markdown-ticket/mdt/internal/ticket"
)

// Exit codes.
const (
	exitOK         = 0
	exitError      = 1
	exitUsage      = 2
	exitNotFound   = 3
	exitTransition = 4
)

const helpFlag = "--help"

// errUsage marks command line mistakes; they exit with code 2.
var errUsage = errors.New("usage")

// Run is the main entry point. Returns the process exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	if len(args) < 2 || args[1] == "-h" || args[1] == helpFlag {
		printUsage(out)

		return exitOK
	}

	cmd := args[1]
	rest := args[2:]

	tracker, openErr := mdt.Open(mdt.Options{Env: env, Watch: cmd == "watch"})
	if openErr != nil {
		fprintln(errOut, "error:", openErr)

		return exitError
	}
	defer tracker.Close()

	var cmdErr error

	switch cmd {
	case "projects":
		cmdErr = cmdProjects(out, tracker, rest)
	case "register":
		cmdErr = cmdRegister(out, tracker, rest)
	case "list":
		cmdErr = cmdList(out, tracker, rest)
	case "show":
		cmdErr = cmdShow(out, tracker, rest)
	case "create":
		cmdErr = cmdCreate(in, out, tracker, rest)
	case "status":
		cmdErr = cmdStatus(out, tracker, rest)
	case "set":
		cmdErr = cmdSet(out, tracker, rest)
	case "delete":
		cmdErr = cmdDelete(out, tracker, rest)
	case "next":
		cmdErr = cmdNext(out, tracker, rest)
	case "sections":
		cmdErr = cmdSections(out, tracker, rest)
	case "section":
		cmdErr = cmdSection(in, out, tracker, rest)
	case "watch":
		cmdErr = cmdWatch(out, tracker, sigCh)
	default:
		fprintln(errOut, "error: unknown command:", cmd)
		printUsage(errOut)

		return exitUsage
	}

	if cmdErr != nil {
		fprintln(errOut, "error:", cmdErr)

		return exitCode(cmdErr)
	}

	return exitOK
}

// exitCode maps an error to its exit code class.
func exitCode(err error) int {
	if errors.Is(err, errUsage) {
		return exitUsage
	}

	var sectionNotFound *section.NotFoundError
	if ticket.IsNotFound(err) || errors.As(err, &sectionNotFound) {
		return exitNotFound
	}

	var transition *ticket.InvalidTransitionError
	if errors.As(err, &transition) {
		return exitTransition
	}

	return exitError
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func fprintf(w io.Writer, format string, a ...any) {
	_, _ = fmt.Fprintf(w, format, a...)
}

func hasHelpFlag(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == helpFlag {
			return true
		}
	}

	return false
}

func printUsage(w io.Writer) {
	fprintln(w, `mdt - markdown ticket tracker

Usage: mdt <command> [args]

Commands:
  projects                          List known projects
  register <id> <path>              Register a project directory
  list <project> [flags]            List tickets, newest first
  show <project> <code>             Print one ticket document
  create <project> [title] [flags]  Create a ticket, prints its code
  status <project> <code> <status>  Change a ticket's status
  set <project> <code> [flags]      Patch optional ticket fields
  delete <project> <code>           Delete a ticket document
  next <project>                    Preview the next ticket number
  sections <project> <code>         List a ticket's section outline
  section <op> <project> <code> <section> [content]
                                    get|replace|append|prepend a section
  watch                             Stream change events as JSON lines`)
}
