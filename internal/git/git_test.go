package git

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAheadBehind(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantAhead  int
		wantBehind int
		wantErr    bool
	}{
		{name: "tab separated", input: "3\t5", wantAhead: 5, wantBehind: 3},
		{name: "even", input: "0\t0"},
		{name: "spaces", input: "1 2", wantAhead: 2, wantBehind: 1},
		{name: "empty", input: "", wantErr: true},
		{name: "garbage", input: "x\ty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ahead, behind, err := ParseAheadBehind(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantAhead, ahead)
			assert.Equal(t, tt.wantBehind, behind)
		})
	}
}

func TestParseNameStatus(t *testing.T) {
	input := "M\ttickets/main/a.md\nD\ttickets/main/b.md\nR100\told.md\ttickets/main/new.md\n\n"
	entries := ParseNameStatus(input)
	require.Len(t, entries, 3)
	assert.Equal(t, NameStatus{Status: "M", Path: "tickets/main/a.md"}, entries[0])
	assert.Equal(t, NameStatus{Status: "D", Path: "tickets/main/b.md"}, entries[1])
	assert.Equal(t, "tickets/main/new.md", entries[2].Path)
}

func TestParseNameStatus_Empty(t *testing.T) {
	assert.Nil(t, ParseNameStatus(""))
}

func TestRealClient_Primitives(t *testing.T) {
	dir := t.TempDir()
	initTestRepo(t, dir)
	commitFile(t, dir, "tickets/main/a.md", "a\n", "init")

	c := NewClient(isolatedRunner(dir))
	ctx := context.Background()

	assert.True(t, c.IsRepo(ctx))

	branch, err := c.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "main", branch)

	_, _, err = c.AheadBehind(ctx)
	assert.Error(t, err, "no upstream configured")

	writeFile(t, dir, "tickets/main/b.md", "b\n")
	untracked, err := c.UntrackedFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tickets/main/b.md"}, untracked)

	require.NoError(t, c.Add(ctx, "tickets"))
	staged, err := c.StagedChanges(ctx)
	require.NoError(t, err)
	assert.Equal(t, []NameStatus{{Status: "A", Path: "tickets/main/b.md"}}, staged)

	require.NoError(t, c.Commit(ctx, CommitMessage(testClock())))
	assert.Equal(t, "Sync tickets 2026-10-18", runGit(t, dir, "log", "-1", "--format=%s"))

	err = c.Commit(ctx, "again")
	assert.Error(t, err, "nothing to commit")
}

func TestRealClient_IsRepo_NotARepository(t *testing.T) {
	dir := t.TempDir()
	c := NewClient(isolatedRunner(dir))
	assert.False(t, c.IsRepo(context.Background()))
}
