package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Defaults for ExecRunner.
const (
	DefaultBinary         = "git"
	DefaultMaxOutput      = 10 * 1024 * 1024
	DefaultNetworkTimeout = 2 * time.Minute
	DefaultLocalTimeout   = 30 * time.Second
)

// networkSubcommands talk to a remote and get the longer timeout.
var networkSubcommands = map[string]bool{
	"fetch": true,
	"pull":  true,
	"push":  true,
}

// CommandError is returned when a git subcommand exits non-zero, times out,
// or produces more output than the runner allows.
type CommandError struct {
	Args       []string
	Diagnostic string // stderr, or the process error when stderr is empty
	Output     string // stdout captured before the failure
	Err        error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("git %s: %s", strings.Join(e.Args, " "), e.Diagnostic)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes a single git subcommand against a repository.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// ExecRunner implements Runner by shelling out to the git binary.
type ExecRunner struct {
	Binary         string
	Dir            string
	MaxOutput      int
	NetworkTimeout time.Duration
	LocalTimeout   time.Duration
	Env            []string // appended to the process environment
}

// NewRunner returns an ExecRunner rooted at dir with default limits.
func NewRunner(dir string) *ExecRunner {
	return &ExecRunner{
		Binary:         DefaultBinary,
		Dir:            dir,
		MaxOutput:      DefaultMaxOutput,
		NetworkTimeout: DefaultNetworkTimeout,
		LocalTimeout:   DefaultLocalTimeout,
	}
}

// cappedBuffer refuses writes past limit and remembers that it did.
type cappedBuffer struct {
	buf      bytes.Buffer
	limit    int
	overflow bool
}

var errOutputLimit = errors.New("output limit exceeded")

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.limit > 0 && b.buf.Len()+len(p) > b.limit {
		b.overflow = true
		return 0, errOutputLimit
	}
	return b.buf.Write(p)
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}

func subcommand(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func (r *ExecRunner) timeoutFor(args []string) time.Duration {
	if networkSubcommands[subcommand(args)] {
		return r.NetworkTimeout
	}
	return r.LocalTimeout
}

// Run executes git with args in r.Dir and returns trimmed stdout.
func (r *ExecRunner) Run(ctx context.Context, args ...string) (string, error) {
	timeout := r.timeoutFor(args)
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	binary := r.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = r.Dir
	// Never block on a credential prompt.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	cmd.Env = append(cmd.Env, r.Env...)

	stdout := &cappedBuffer{limit: r.MaxOutput}
	stderr := &cappedBuffer{limit: r.MaxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	slog.Debug("git", "args", args, "dir", r.Dir, "duration", time.Since(start), "error", err)
	if err == nil && !stdout.overflow {
		return strings.TrimSpace(stdout.String()), nil
	}

	cerr := &CommandError{Args: args, Output: strings.TrimSpace(stdout.String()), Err: err}
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		cerr.Diagnostic = fmt.Sprintf("git %s timed out after %s", subcommand(args), timeout)
		cerr.Err = ctx.Err()
	case stdout.overflow || stderr.overflow:
		cerr.Diagnostic = fmt.Sprintf("git %s output exceeded %d bytes", subcommand(args), r.MaxOutput)
		cerr.Err = errOutputLimit
	default:
		cerr.Diagnostic = strings.TrimSpace(stderr.String())
		if cerr.Diagnostic == "" {
			cerr.Diagnostic = err.Error()
		}
	}
	return "", cerr
}
