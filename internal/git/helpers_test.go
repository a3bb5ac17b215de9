package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testRoots = Roots{".kanban", "tickets"}

var testClock = func() time.Time {
	return time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
}

// --- scripted runner ---

type fakeResponse struct {
	out string
	err error
}

// fakeRunner answers commands from a script keyed by the joined arguments.
// Queued responses are consumed in order; the last one repeats. Unscripted
// commands succeed with empty output.
type fakeRunner struct {
	responses map[string][]fakeResponse
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string][]fakeResponse)}
}

func (f *fakeRunner) on(cmd, out string, err error) *fakeRunner {
	f.responses[cmd] = append(f.responses[cmd], fakeResponse{out: out, err: err})
	return f
}

func (f *fakeRunner) Run(_ context.Context, args ...string) (string, error) {
	key := strings.Join(args, " ")
	f.calls = append(f.calls, key)
	queue := f.responses[key]
	if len(queue) == 0 {
		return "", nil
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	return resp.out, resp.err
}

func (f *fakeRunner) called(cmd string) bool {
	for _, c := range f.calls {
		if c == cmd {
			return true
		}
	}
	return false
}

func cmdErr(cmd, diagnostic string) error {
	return &CommandError{Args: strings.Fields(cmd), Diagnostic: diagnostic}
}

func newFakeCoordinator(f *fakeRunner) *Coordinator {
	return NewCoordinator(NewClient(f), testRoots, WithClock(testClock))
}

// --- real repositories ---

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	out, err := exec.Command("git", append([]string{"-C", dir}, args...)...).CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// configureUser sets an identity so commits work on CI.
func configureUser(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "config", "user.email", "test@test.com")
	runGit(t, dir, "config", "user.name", "Test")
	runGit(t, dir, "config", "commit.gpgsign", "false")
}

// initTestRepo creates a git repo in dir with a user config.
func initTestRepo(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "init", "-b", "main")
	configureUser(t, dir)
}

func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func commitFile(t *testing.T, dir, rel, content, msg string) {
	t.Helper()
	writeFile(t, dir, rel, content)
	runGit(t, dir, "add", rel)
	runGit(t, dir, "commit", "-m", msg)
}

// isolatedRunner returns a runner that cannot discover repositories above dir.
func isolatedRunner(dir string) *ExecRunner {
	r := NewRunner(dir)
	r.Env = []string{"GIT_CEILING_DIRECTORIES=" + filepath.Dir(dir)}
	return r
}

func newRealCoordinator(dir string, r Runner) *Coordinator {
	if r == nil {
		r = isolatedRunner(dir)
	}
	return NewCoordinator(NewClient(r), testRoots, WithClock(testClock))
}

// syncFixture is a bare remote seeded with a board, plus two clones of it.
type syncFixture struct {
	remote string
	local  string
	other  string
}

func newSyncFixture(t *testing.T) *syncFixture {
	t.Helper()
	base := t.TempDir()
	f := &syncFixture{
		remote: filepath.Join(base, "remote.git"),
		local:  filepath.Join(base, "local"),
		other:  filepath.Join(base, "other"),
	}

	runGit(t, base, "init", "--bare", "-b", "main", f.remote)

	seed := filepath.Join(base, "seed")
	require.NoError(t, os.MkdirAll(seed, 0o755))
	initTestRepo(t, seed)
	writeFile(t, seed, ".kanban/config.json", "{\"boards\":[]}\n")
	writeFile(t, seed, "tickets/main/T-1-first.md", "first\n")
	runGit(t, seed, "add", ".")
	runGit(t, seed, "commit", "-m", "seed")
	runGit(t, seed, "remote", "add", "origin", f.remote)
	runGit(t, seed, "push", "-u", "origin", "main")

	for _, dir := range []string{f.local, f.other} {
		runGit(t, base, "clone", f.remote, dir)
		configureUser(t, dir)
	}
	return f
}

func (f *syncFixture) remoteHead(t *testing.T) string {
	t.Helper()
	return runGit(t, f.remote, "rev-parse", "main")
}

// hookRunner runs a callback before the first invocation of a subcommand.
type hookRunner struct {
	Runner
	before map[string]func()
}

func (h *hookRunner) Run(ctx context.Context, args ...string) (string, error) {
	sub := subcommand(args)
	if fn, ok := h.before[sub]; ok {
		delete(h.before, sub)
		fn()
	}
	return h.Runner.Run(ctx, args...)
}
