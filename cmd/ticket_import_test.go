package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/llm"
	"github.com/joescharf/kanban/internal/models"
)

func testBoard() *models.Board {
	return &models.Board{ID: "board_1", Name: "Main", Slug: "main", Columns: models.DefaultColumns()}
}

func TestParseMarkdownTickets(t *testing.T) {
	t.Run("headings select columns", func(t *testing.T) {
		md := `# Sprint notes

1. Write the onboarding guide
2. Urgent: restore nightly backups

## In Progress

- Sync button broken on mobile
  Happens on iOS only.
  Since the last release.

## Someday

* Nice to have: dark mode
`
		tickets := parseMarkdownTickets(md, testBoard())
		require.Len(t, tickets, 4)

		assert.Equal(t, "backlog", tickets[0].Status)
		assert.Equal(t, "Write the onboarding guide", tickets[0].Title)
		assert.Equal(t, "medium", tickets[0].Priority)

		assert.Equal(t, "high", tickets[1].Priority)

		assert.Equal(t, "in-progress", tickets[2].Status)
		assert.Equal(t, "Happens on iOS only.\nSince the last release.", tickets[2].Body)

		assert.Equal(t, "backlog", tickets[3].Status, "unknown heading falls back to first column")
		assert.Equal(t, "low", tickets[3].Priority)
	})

	t.Run("checkbox items and plain text", func(t *testing.T) {
		md := "Some intro text.\n- [ ] Add avatars\n3) Fix typo\n1.5 not a list item\n"
		tickets := parseMarkdownTickets(md, testBoard())
		require.Len(t, tickets, 2)
		assert.Equal(t, "Add avatars", tickets[0].Title)
		assert.Equal(t, "Fix typo", tickets[1].Title)
	})

	t.Run("empty", func(t *testing.T) {
		assert.Empty(t, parseMarkdownTickets("", testBoard()))
	})
}

func TestFromExtracted(t *testing.T) {
	out := fromExtracted([]llm.ExtractedTicket{
		{Title: "Crash on save", Body: "stack trace"},
		{Title: "Docs", Priority: "low"},
	}, testBoard())

	require.Len(t, out, 2)
	assert.Equal(t, "high", out[0].Priority, "missing priority is classified")
	assert.Equal(t, "backlog", out[0].Status)
	assert.Equal(t, "low", out[1].Priority)
}

func TestTicketImportRun(t *testing.T) {
	dir := testEnv(t)
	resetTicketFlags(t)

	file := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(file, []byte("## Review\n1. Check the release notes\n2. Verify sync\n"), 0o644))

	require.NoError(t, ticketImportRun(file))

	s, err := getStore()
	require.NoError(t, err)
	tickets, err := s.ListTickets(context.Background(), "main")
	require.NoError(t, err)
	require.Len(t, tickets, 2)
	for _, tk := range tickets {
		assert.Equal(t, "review", tk.Status)
	}
}

func TestTicketImportRun_EmptyFile(t *testing.T) {
	dir := testEnv(t)
	resetTicketFlags(t)

	file := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(file, []byte("  \n"), 0o644))

	err := ticketImportRun(file)
	assert.ErrorContains(t, err, "file is empty")
}
