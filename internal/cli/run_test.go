package cli_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/markdown-ticket/mdt/internal/cli"
)

// runCLI invokes the command line with an isolated config home and returns
// stdout, stderr, and the exit code.
func runCLI(t *testing.T, env map[string]string, stdin string, args ...string) (string, string, int) {
	t.Helper()

	var out, errOut bytes.Buffer

	argv := append([]string{"mdt"}, args...)
	code := cli.Run(strings.NewReader(stdin), &out, &errOut, argv, env, make(chan os.Signal))

	return out.String(), errOut.String(), code
}

// newTestEnv builds an environment with empty config home and a registered
// project, returning the env and the project root.
func newTestEnv(t *testing.T) (map[string]string, string) {
	t.Helper()

	configHome := t.TempDir()
	home := t.TempDir()

	env := map[string]string{
		"XDG_CONFIG_HOME": configHome,
		"HOME":            home,
	}

	root := filepath.Join(home, "my-app")

	mkdirErr := os.MkdirAll(root, 0o750)
	if mkdirErr != nil {
		t.Fatalf("mkdir: %v", mkdirErr)
	}

	cfg := "[project]\nname = \"My App\"\ncode = \"APP\"\n"

	writeErr := os.WriteFile(filepath.Join(root, ".mdt-config.toml"), []byte(cfg), 0o600)
	if writeErr != nil {
		t.Fatalf("write project config: %v", writeErr)
	}

	return env, root
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	out, _, code := runCLI(t, env, "")
	if code != 0 {
		t.Fatalf("exit = %d, want 0", code)
	}

	if !strings.Contains(out, "Usage: mdt") {
		t.Errorf("usage missing:\n%s", out)
	}
}

func TestRun_UnknownCommandIsUsageError(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	_, errOut, code := runCLI(t, env, "", "frobnicate")
	if code != 2 {
		t.Fatalf("exit = %d, want 2", code)
	}

	if !strings.Contains(errOut, "unknown command") {
		t.Errorf("stderr:\n%s", errOut)
	}
}

func TestRun_TicketLifecycle(t *testing.T) {
	t.Parallel()

	env, root := newTestEnv(t)

	_, errOut, code := runCLI(t, env, "", "register", "my-app", root)
	if code != 0 {
		t.Fatalf("register exit = %d: %s", code, errOut)
	}

	out, errOut, code := runCLI(t, env, "", "projects")
	if code != 0 || !strings.Contains(out, "my-app") {
		t.Fatalf("projects exit = %d, out:\n%s\nerr:\n%s", code, out, errOut)
	}

	out, errOut, code = runCLI(t, env, "", "create", "my-app", "Add", "dark", "mode",
		"--type", "Feature Enhancement", "--content", "# Add dark mode\n\n## 1. Description\n\nToggle.\n")
	if code != 0 {
		t.Fatalf("create exit = %d: %s", code, errOut)
	}

	ticketCode := strings.TrimSpace(out)
	if ticketCode != "APP-001" {
		t.Fatalf("created code = %q, want APP-001", ticketCode)
	}

	out, _, code = runCLI(t, env, "", "list", "my-app")
	if code != 0 || !strings.Contains(out, "APP-001") {
		t.Fatalf("list exit = %d, out:\n%s", code, out)
	}

	out, _, code = runCLI(t, env, "", "show", "APP", ticketCode)
	if code != 0 || !strings.Contains(out, "title: Add dark mode") {
		t.Fatalf("show exit = %d, out:\n%s", code, out)
	}

	out, _, code = runCLI(t, env, "", "next", "my-app")
	if code != 0 || strings.TrimSpace(out) != "2" {
		t.Fatalf("next exit = %d, out = %q", code, out)
	}

	out, _, code = runCLI(t, env, "", "status", "my-app", ticketCode, "Approved")
	if code != 0 || !strings.Contains(out, "Approved") {
		t.Fatalf("status exit = %d, out:\n%s", code, out)
	}

	out, _, code = runCLI(t, env, "", "sections", "my-app", ticketCode)
	if code != 0 || !strings.Contains(out, "1. Description") {
		t.Fatalf("sections exit = %d, out:\n%s", code, out)
	}

	_, _, code = runCLI(t, env, "", "section", "replace", "my-app", ticketCode, "Description", "A theme toggle.")
	if code != 0 {
		t.Fatalf("section replace exit = %d", code)
	}

	out, _, code = runCLI(t, env, "", "section", "get", "my-app", ticketCode, "1. Description")
	if code != 0 || !strings.Contains(out, "A theme toggle.") {
		t.Fatalf("section get exit = %d, out:\n%s", code, out)
	}

	out, _, code = runCLI(t, env, "", "delete", "my-app", ticketCode)
	if code != 0 || !strings.Contains(out, "deleted") {
		t.Fatalf("delete exit = %d, out:\n%s", code, out)
	}
}

func TestRun_NotFoundExitCode(t *testing.T) {
	t.Parallel()

	env, root := newTestEnv(t)

	_, _, code := runCLI(t, env, "", "register", "my-app", root)
	if code != 0 {
		t.Fatalf("register exit = %d", code)
	}

	_, _, code = runCLI(t, env, "", "show", "my-app", "APP-999")
	if code != 3 {
		t.Errorf("missing ticket exit = %d, want 3", code)
	}

	_, _, code = runCLI(t, env, "", "list", "no-such-project")
	if code != 3 {
		t.Errorf("missing project exit = %d, want 3", code)
	}
}

func TestRun_InvalidTransitionExitCode(t *testing.T) {
	t.Parallel()

	env, root := newTestEnv(t)

	_, _, code := runCLI(t, env, "", "register", "my-app", root)
	if code != 0 {
		t.Fatalf("register exit = %d", code)
	}

	out, _, code := runCLI(t, env, "", "create", "my-app", "Stuck ticket", "--type", "Bug Fix")
	if code != 0 {
		t.Fatalf("create exit = %d", code)
	}

	ticketCode := strings.TrimSpace(out)

	_, errOut, code := runCLI(t, env, "", "status", "my-app", ticketCode, "Implemented")
	if code != 4 {
		t.Fatalf("invalid transition exit = %d, want 4: %s", code, errOut)
	}

	if !strings.Contains(errOut, "Approved") {
		t.Errorf("error does not name the allowed states:\n%s", errOut)
	}
}

func TestRun_CreateReadsTitleFromStdinWhenMissing(t *testing.T) {
	t.Parallel()

	env, root := newTestEnv(t)

	_, _, code := runCLI(t, env, "", "register", "my-app", root)
	if code != 0 {
		t.Fatalf("register exit = %d", code)
	}

	out, errOut, code := runCLI(t, env, "Prompted\n", "create", "my-app", "--type", "Bug Fix")
	if code != 0 {
		t.Fatalf("create exit = %d: %s", code, errOut)
	}

	if strings.TrimSpace(out) != "APP-001" {
		t.Fatalf("out = %q", out)
	}
}

func TestRun_RegisterRejectsNonProjectDir(t *testing.T) {
	t.Parallel()

	env, _ := newTestEnv(t)

	_, errOut, code := runCLI(t, env, "", "register", "empty", t.TempDir())
	if code != 1 {
		t.Fatalf("exit = %d, want 1: %s", code, errOut)
	}
}
