package git

import (
	"context"
	"log/slog"
	"strings"
	"time"
)

// Summaries reported by Sync.
const (
	SummaryUpToDate       = "Already up to date"
	SummaryConflict       = "Sync conflict detected. Please resolve manually."
	SummaryRejected       = "Push rejected. Someone else pushed changes."
	SummaryFailed         = "Sync failed"
	SummaryNotARepository = "Not a git repository"
)

// CommitMessagePrefix precedes the ISO date in sync commit messages.
const CommitMessagePrefix = "Sync tickets "

// SyncOutcome reports what one Sync call did.
type SyncOutcome struct {
	Succeeded     bool   `json:"success"`
	Summary       string `json:"message"`
	Pulled        bool   `json:"pulled"`
	Committed     bool   `json:"committed"`
	Pushed        bool   `json:"pushed"`
	FailureDetail string `json:"error,omitempty"`
}

// Coordinator computes repository status and runs the sync protocol over a
// fixed set of tracked roots. Callers must not run two Sync calls against the
// same working tree at once.
type Coordinator struct {
	git   Client
	roots Roots
	now   func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock overrides the clock used for commit messages.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator returns a Coordinator over gc that tracks roots.
func NewCoordinator(gc Client, roots Roots, opts ...Option) *Coordinator {
	c := &Coordinator{git: gc, roots: roots, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Roots returns the tracked roots.
func (c *Coordinator) Roots() Roots {
	return c.roots
}

// CommitMessage returns the sync commit message for t.
func CommitMessage(t time.Time) string {
	return CommitMessagePrefix + t.Format("2006-01-02")
}

// Sync fetches, commits tracked changes, rebases onto upstream when behind,
// and pushes when ahead. It always returns an outcome; failures are reported
// through Succeeded and FailureDetail.
//
// Once started the sequence runs to a terminal state even if ctx is
// cancelled; per-command timeouts in the Runner still apply.
func (c *Coordinator) Sync(ctx context.Context) SyncOutcome {
	ctx = context.WithoutCancel(ctx)
	var out SyncOutcome

	if !c.git.IsRepo(ctx) {
		out.Summary = SummaryNotARepository
		out.FailureDetail = ErrNotARepository.Error()
		return out
	}

	if err := c.git.Fetch(ctx); err != nil {
		return failed(out, err)
	}

	if status := c.collect(ctx); status.HasChanges() {
		out.Committed = c.commit(ctx)
	}

	if _, behind := c.divergence(ctx); behind > 0 {
		if err := c.git.PullRebase(ctx); err != nil {
			if IsConflict(err) {
				if abortErr := c.git.RebaseAbort(ctx); abortErr != nil {
					slog.Error("rebase abort failed", "error", Diagnostic(abortErr))
				}
				out.Summary = SummaryConflict
				out.FailureDetail = Diagnostic(err)
				return out
			}
			return failed(out, err)
		}
		out.Pulled = true
	}

	if ahead, _ := c.divergence(ctx); ahead > 0 || out.Committed {
		if err := c.git.Push(ctx); err != nil {
			if IsRejected(err) {
				out.Summary = SummaryRejected
				out.FailureDetail = Diagnostic(err)
				return out
			}
			return failed(out, err)
		}
		out.Pushed = true
	}

	out.Succeeded = true
	out.Summary = summarize(out)
	return out
}

// commit stages every tracked root and commits. Missing roots and an empty
// commit are expected and only logged.
func (c *Coordinator) commit(ctx context.Context) bool {
	for _, root := range c.roots {
		if err := c.git.Add(ctx, root); err != nil {
			slog.Debug("skip tracked root", "root", root, "error", Diagnostic(err))
		}
	}
	if err := c.git.Commit(ctx, CommitMessage(c.now())); err != nil {
		slog.Debug("nothing committed", "error", Diagnostic(err))
		return false
	}
	return true
}

func failed(out SyncOutcome, err error) SyncOutcome {
	out.Succeeded = false
	out.Summary = SummaryFailed
	out.FailureDetail = Diagnostic(err)
	return out
}

func summarize(out SyncOutcome) string {
	var steps []string
	if out.Pulled {
		steps = append(steps, "pulled")
	}
	if out.Committed {
		steps = append(steps, "committed")
	}
	if out.Pushed {
		steps = append(steps, "pushed")
	}
	if len(steps) == 0 {
		return SummaryUpToDate
	}
	return "Synced: " + strings.Join(steps, ", ")
}
