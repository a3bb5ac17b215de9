package git

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoots_Contains(t *testing.T) {
	roots := Roots{".kanban", "tickets/"}
	assert.True(t, roots.Contains(".kanban/config.json"))
	assert.True(t, roots.Contains("tickets"))
	assert.True(t, roots.Contains("tickets/main/T-1.md"))
	assert.False(t, roots.Contains("README.md"))
	assert.False(t, roots.Contains("ticketsArchive/a.md"))
	assert.False(t, roots.Contains(".kanbanrc"))
}

func TestStatus_NotARepository(t *testing.T) {
	f := newFakeRunner().on("rev-parse --git-dir", "", cmdErr("rev-parse --git-dir", "fatal: not a git repository"))
	c := newFakeCoordinator(f)

	status, ok := c.Status(context.Background())
	assert.False(t, ok)
	assert.Equal(t, UnknownBranch, status.Branch)
	assert.False(t, status.HasChanges())
	assert.Equal(t, []string{"rev-parse --git-dir"}, f.calls)
}

func TestStatus_ClassifiesAndFilters(t *testing.T) {
	f := newFakeRunner().
		on("rev-parse --abbrev-ref HEAD", "main", nil).
		on("rev-list --left-right --count @{upstream}...HEAD", "2\t1", nil).
		on("diff --cached --name-status", "M\ttickets/main/a.md\nA\tsrc/main.go", nil).
		on("diff --name-status", "M\ttickets/main/a.md\nD\t.kanban/config.json\nM\tREADME.md", nil).
		on("ls-files --others --exclude-standard", "tickets/main/new.md\nnotes.txt", nil)
	c := newFakeCoordinator(f)

	status, ok := c.Status(context.Background())
	require.True(t, ok)
	assert.Equal(t, "main", status.Branch)
	assert.Equal(t, 1, status.Ahead)
	assert.Equal(t, 2, status.Behind)
	assert.Equal(t, []TrackedFile{
		{Path: "tickets/main/a.md", Kind: ChangeStaged},
		{Path: "tickets/main/a.md", Kind: ChangeModified},
		{Path: ".kanban/config.json", Kind: ChangeDeleted},
		{Path: "tickets/main/new.md", Kind: ChangeUntracked},
	}, status.Files)
	assert.Equal(t, 1, status.Staged())
	assert.Equal(t, 1, status.Modified())
	assert.Equal(t, 1, status.Deleted())
	assert.Equal(t, 1, status.Untracked())
	assert.True(t, status.HasChanges())
}

func TestStatus_QueryFailuresAreBestEffort(t *testing.T) {
	f := newFakeRunner().
		on("rev-parse --abbrev-ref HEAD", "", cmdErr("rev-parse --abbrev-ref HEAD", "fatal: ambiguous argument 'HEAD'")).
		on("rev-list --left-right --count @{upstream}...HEAD", "", cmdErr("rev-list", "fatal: no upstream configured for branch 'main'")).
		on("diff --cached --name-status", "", cmdErr("diff --cached", "fatal: bad revision 'HEAD'")).
		on("ls-files --others --exclude-standard", "tickets/main/a.md", nil)
	c := newFakeCoordinator(f)

	status, ok := c.Status(context.Background())
	require.True(t, ok)
	assert.Equal(t, UnknownBranch, status.Branch)
	assert.Zero(t, status.Ahead)
	assert.Zero(t, status.Behind)
	assert.Equal(t, []TrackedFile{{Path: "tickets/main/a.md", Kind: ChangeUntracked}}, status.Files)
}

func TestStatus_RealRepository(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "tickets/main/a.md", "a\n", "init")
	commitFile(t, dir, "tickets/main/b.md", "b\n", "b")
	commitFile(t, dir, "README.md", "readme\n", "readme")

	// a.md: staged then modified again; b.md: deleted; c.md: untracked.
	writeFile(t, dir, "tickets/main/a.md", "a2\n")
	runGit(t, dir, "add", "tickets/main/a.md")
	writeFile(t, dir, "tickets/main/a.md", "a3\n")
	require.NoError(t, os.Remove(filepath.Join(dir, "tickets/main/b.md")))
	writeFile(t, dir, "tickets/main/c.md", "c\n")
	// Noise outside the tracked roots.
	writeFile(t, dir, "README.md", "changed\n")
	writeFile(t, dir, "scratch.txt", "x\n")

	status, ok := newRealCoordinator(dir, nil).Status(context.Background())
	require.True(t, ok)

	assert.Equal(t, "main", status.Branch)
	assert.Zero(t, status.Ahead, "no upstream configured")
	assert.Zero(t, status.Behind, "no upstream configured")
	assert.ElementsMatch(t, []TrackedFile{
		{Path: "tickets/main/a.md", Kind: ChangeStaged},
		{Path: "tickets/main/a.md", Kind: ChangeModified},
		{Path: "tickets/main/b.md", Kind: ChangeDeleted},
		{Path: "tickets/main/c.md", Kind: ChangeUntracked},
	}, status.Files)
	assert.Equal(t, len(status.Files), status.Staged()+status.Modified()+status.Deleted()+status.Untracked())
}

func TestStatus_AllowListIsolation(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "README.md", "readme\n", "init")
	writeFile(t, dir, "README.md", "changed\n")
	writeFile(t, dir, "docs/notes.md", "notes\n")

	status, ok := newRealCoordinator(dir, nil).Status(context.Background())
	require.True(t, ok)
	assert.Empty(t, status.Files)
	assert.False(t, status.HasChanges())
}

func TestStatus_RealNotARepository(t *testing.T) {
	dir := t.TempDir()
	_, ok := newRealCoordinator(dir, nil).Status(context.Background())
	assert.False(t, ok)
}

func TestRepositoryStatus_MarshalJSON(t *testing.T) {
	status := RepositoryStatus{
		Branch: "main",
		Ahead:  1,
		Files: []TrackedFile{
			{Path: "tickets/a.md", Kind: ChangeModified},
			{Path: "tickets/b.md", Kind: ChangeUntracked},
		},
	}
	data, err := json.Marshal(status)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "main", got["branch"])
	assert.Equal(t, float64(1), got["ahead"])
	assert.Equal(t, float64(1), got["modified"])
	assert.Equal(t, float64(1), got["untracked"])
	assert.Equal(t, true, got["hasChanges"])
	assert.Len(t, got["files"], 2)

	empty, err := json.Marshal(RepositoryStatus{Branch: UnknownBranch})
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"files":[]`)
}
