package git

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// UpstreamRef is the revision that names the configured upstream of HEAD.
const UpstreamRef = "@{upstream}"

// NameStatus is one line of `git diff --name-status` output.
type NameStatus struct {
	Status string
	Path   string
}

// Client defines the git operations the status and sync code need.
// Every method runs against the repository the underlying Runner is bound to.
type Client interface {
	IsRepo(ctx context.Context) bool
	CurrentBranch(ctx context.Context) (string, error)
	AheadBehind(ctx context.Context) (ahead, behind int, err error)
	StagedChanges(ctx context.Context) ([]NameStatus, error)
	UnstagedChanges(ctx context.Context) ([]NameStatus, error)
	UntrackedFiles(ctx context.Context) ([]string, error)
	Fetch(ctx context.Context) error
	Add(ctx context.Context, path string) error
	Commit(ctx context.Context, message string) error
	PullRebase(ctx context.Context) error
	RebaseAbort(ctx context.Context) error
	Push(ctx context.Context) error
	GitDir(ctx context.Context) (string, error)
}

// RealClient implements Client on top of a Runner.
type RealClient struct {
	runner Runner
}

// NewClient returns a RealClient that issues commands through r.
func NewClient(r Runner) *RealClient {
	return &RealClient{runner: r}
}

func (c *RealClient) IsRepo(ctx context.Context) bool {
	_, err := c.GitDir(ctx)
	return err == nil
}

func (c *RealClient) GitDir(ctx context.Context) (string, error) {
	return c.runner.Run(ctx, "rev-parse", "--git-dir")
}

func (c *RealClient) CurrentBranch(ctx context.Context) (string, error) {
	return c.runner.Run(ctx, "rev-parse", "--abbrev-ref", "HEAD")
}

func (c *RealClient) AheadBehind(ctx context.Context) (int, int, error) {
	out, err := c.runner.Run(ctx, "rev-list", "--left-right", "--count", UpstreamRef+"...HEAD")
	if err != nil {
		return 0, 0, err
	}
	return ParseAheadBehind(out)
}

func (c *RealClient) StagedChanges(ctx context.Context) ([]NameStatus, error) {
	out, err := c.runner.Run(ctx, "diff", "--cached", "--name-status")
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(out), nil
}

func (c *RealClient) UnstagedChanges(ctx context.Context) ([]NameStatus, error) {
	out, err := c.runner.Run(ctx, "diff", "--name-status")
	if err != nil {
		return nil, err
	}
	return ParseNameStatus(out), nil
}

func (c *RealClient) UntrackedFiles(ctx context.Context) ([]string, error) {
	out, err := c.runner.Run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

func (c *RealClient) Fetch(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "fetch")
	return err
}

func (c *RealClient) Add(ctx context.Context, path string) error {
	_, err := c.runner.Run(ctx, "add", path)
	return err
}

func (c *RealClient) Commit(ctx context.Context, message string) error {
	_, err := c.runner.Run(ctx, "commit", "-m", message)
	return err
}

func (c *RealClient) PullRebase(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "pull", "--rebase")
	return err
}

func (c *RealClient) RebaseAbort(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "rebase", "--abort")
	return err
}

func (c *RealClient) Push(ctx context.Context) error {
	_, err := c.runner.Run(ctx, "push")
	return err
}

// ParseAheadBehind parses `rev-list --left-right --count <upstream>...HEAD`
// output. The left column counts upstream-only commits (behind), the right
// column HEAD-only commits (ahead).
func ParseAheadBehind(output string) (ahead, behind int, err error) {
	fields := strings.Fields(output)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected rev-list output: %q", output)
	}
	behind, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("parse behind count: %w", err)
	}
	ahead, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse ahead count: %w", err)
	}
	return ahead, behind, nil
}

// ParseNameStatus parses `git diff --name-status` output. Renames and copies
// carry two paths; the destination is reported.
func ParseNameStatus(output string) []NameStatus {
	var entries []NameStatus
	for _, line := range splitLines(output) {
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		entries = append(entries, NameStatus{
			Status: parts[0],
			Path:   parts[len(parts)-1],
		})
	}
	return entries
}

func splitLines(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimRight(line, "\r"); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
