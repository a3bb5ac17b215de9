package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/models"
)

func TestMarshalTicket_RoundTrip(t *testing.T) {
	created := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	order := 3
	in := &models.Ticket{
		ID:        "T-1",
		Board:     "main",
		Title:     "Fix: colons and \"quotes\"",
		Status:    "backlog",
		Owner:     "user_1",
		Priority:  "high",
		Order:     &order,
		Body:      "Some *markdown*\n\n---\n\nwith a rule",
		CreatedAt: created,
		UpdatedAt: created.Add(time.Hour),
		Comments: []models.Comment{
			{ID: "c_1", Author: "user_1", Text: "looks good", CreatedAt: created},
		},
	}

	data, err := MarshalTicket(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), "2026-10-18T09:30:00.000Z")

	out, err := UnmarshalTicket(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Title, out.Title)
	assert.Equal(t, in.Body, out.Body)
	assert.Equal(t, 3, *out.Order)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, in.UpdatedAt.Equal(out.UpdatedAt))
	require.Len(t, out.Comments, 1)
	assert.Equal(t, "looks good", out.Comments[0].Text)
}

func TestMarshalTicket_OmitsOptionalFields(t *testing.T) {
	data, err := MarshalTicket(&models.Ticket{ID: "T-1", Board: "main", Title: "x", Status: "done"})
	require.NoError(t, err)
	s := string(data)
	assert.NotContains(t, s, "owner:")
	assert.NotContains(t, s, "priority:")
	assert.NotContains(t, s, "order:")
	assert.NotContains(t, s, "comments:")
	assert.Equal(t, "---\n", s[len(s)-4:])
}

func TestUnmarshalTicket_ForeignFile(t *testing.T) {
	data := "---\r\nid: T-LX2ABC\r\nboard: main\r\ntitle: Written elsewhere\r\nstatus: review\r\n" +
		"createdAt: '2024-12-01T10:00:00.000Z'\r\nupdatedAt: 2024-12-02T10:00:00.000Z\r\n---\r\n\r\nBody text\r\n"

	tk, err := UnmarshalTicket([]byte(data))
	require.NoError(t, err)
	assert.Equal(t, "T-LX2ABC", tk.ID)
	assert.Equal(t, "review", tk.Status)
	assert.Equal(t, "Body text", tk.Body)
	assert.Equal(t, 2024, tk.CreatedAt.Year())
	assert.Equal(t, 2, tk.UpdatedAt.Day())
	assert.NotNil(t, tk.Comments)
}

func TestUnmarshalTicket_Errors(t *testing.T) {
	tests := map[string]string{
		"no frontmatter": "just markdown",
		"unterminated":   "---\nid: T-1\n",
		"no id":          "---\ntitle: x\n---\n",
		"bad yaml":       "---\nid: [\n---\n",
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalTicket([]byte(data))
			assert.Error(t, err)
		})
	}
}
