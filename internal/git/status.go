package git

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
)

// UnknownBranch is reported when the current branch cannot be determined.
const UnknownBranch = "unknown"

// ChangeKind classifies a changed path.
type ChangeKind string

const (
	ChangeModified  ChangeKind = "modified"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeUntracked ChangeKind = "untracked"
	ChangeStaged    ChangeKind = "staged"
)

// TrackedFile is a changed path under one of the tracked roots.
type TrackedFile struct {
	Path string     `json:"path"`
	Kind ChangeKind `json:"status"`
}

// Roots is the allow-list of top-level paths that sync stages and reports.
type Roots []string

// Contains reports whether path equals a root or lies beneath one.
func (r Roots) Contains(path string) bool {
	for _, root := range r {
		root = strings.TrimSuffix(root, "/")
		if path == root || strings.HasPrefix(path, root+"/") {
			return true
		}
	}
	return false
}

// RepositoryStatus is a snapshot of the working tree relative to its upstream.
type RepositoryStatus struct {
	Branch string
	Ahead  int
	Behind int
	Files  []TrackedFile
}

// HasChanges reports whether any tracked file changed.
func (s RepositoryStatus) HasChanges() bool {
	return len(s.Files) > 0
}

func (s RepositoryStatus) count(kind ChangeKind) int {
	n := 0
	for _, f := range s.Files {
		if f.Kind == kind {
			n++
		}
	}
	return n
}

func (s RepositoryStatus) Modified() int  { return s.count(ChangeModified) }
func (s RepositoryStatus) Deleted() int   { return s.count(ChangeDeleted) }
func (s RepositoryStatus) Untracked() int { return s.count(ChangeUntracked) }
func (s RepositoryStatus) Staged() int    { return s.count(ChangeStaged) }

// MarshalJSON includes the derived counts alongside the raw fields.
func (s RepositoryStatus) MarshalJSON() ([]byte, error) {
	files := s.Files
	if files == nil {
		files = []TrackedFile{}
	}
	return json.Marshal(struct {
		Branch     string        `json:"branch"`
		Ahead      int           `json:"ahead"`
		Behind     int           `json:"behind"`
		Modified   int           `json:"modified"`
		Deleted    int           `json:"deleted"`
		Untracked  int           `json:"untracked"`
		Staged     int           `json:"staged"`
		HasChanges bool          `json:"hasChanges"`
		Files      []TrackedFile `json:"files"`
	}{
		Branch:     s.Branch,
		Ahead:      s.Ahead,
		Behind:     s.Behind,
		Modified:   s.Modified(),
		Deleted:    s.Deleted(),
		Untracked:  s.Untracked(),
		Staged:     s.Staged(),
		HasChanges: s.HasChanges(),
		Files:      files,
	})
}

// Status returns a snapshot of the repository. ok is false when the
// workspace is not a git repository; the returned status is then the empty
// default. Individual query failures never abort the snapshot.
func (c *Coordinator) Status(ctx context.Context) (status RepositoryStatus, ok bool) {
	if !c.git.IsRepo(ctx) {
		return RepositoryStatus{Branch: UnknownBranch}, false
	}
	return c.collect(ctx), true
}

func (c *Coordinator) collect(ctx context.Context) RepositoryStatus {
	status := RepositoryStatus{Branch: c.branch(ctx)}
	status.Ahead, status.Behind = c.divergence(ctx)
	status.Files = c.changedFiles(ctx)
	return status
}

// Branch returns the current branch, or UnknownBranch.
func (c *Coordinator) Branch(ctx context.Context) string {
	return c.branch(ctx)
}

func (c *Coordinator) branch(ctx context.Context) string {
	branch, err := c.git.CurrentBranch(ctx)
	if err != nil || branch == "" {
		slog.Debug("current branch unavailable", "error", err)
		return UnknownBranch
	}
	return branch
}

// divergence returns ahead/behind counts, or zeros when no upstream exists.
func (c *Coordinator) divergence(ctx context.Context) (ahead, behind int) {
	ahead, behind, err := c.git.AheadBehind(ctx)
	if err != nil {
		slog.Debug("no upstream divergence", "error", Diagnostic(err))
		return 0, 0
	}
	return ahead, behind
}

func (c *Coordinator) changedFiles(ctx context.Context) []TrackedFile {
	var files []TrackedFile

	staged, err := c.git.StagedChanges(ctx)
	if err != nil {
		slog.Warn("list staged changes", "error", Diagnostic(err))
	}
	for _, e := range staged {
		if c.roots.Contains(e.Path) {
			files = append(files, TrackedFile{Path: e.Path, Kind: ChangeStaged})
		}
	}

	unstaged, err := c.git.UnstagedChanges(ctx)
	if err != nil {
		slog.Warn("list unstaged changes", "error", Diagnostic(err))
	}
	for _, e := range unstaged {
		if !c.roots.Contains(e.Path) {
			continue
		}
		kind := ChangeModified
		if e.Status == "D" {
			kind = ChangeDeleted
		}
		files = append(files, TrackedFile{Path: e.Path, Kind: kind})
	}

	untracked, err := c.git.UntrackedFiles(ctx)
	if err != nil {
		slog.Warn("list untracked files", "error", Diagnostic(err))
	}
	for _, p := range untracked {
		if c.roots.Contains(p) {
			files = append(files, TrackedFile{Path: p, Kind: ChangeUntracked})
		}
	}

	return files
}
