package store

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Fix login bug", "fix-login-bug"},
		{"  Leading & trailing!! ", "leading-trailing"},
		{"Ünïcode stays out", "n-code-stays-out"},
		{"already-slugged-123", "already-slugged-123"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
}

func TestSlugify_Truncates(t *testing.T) {
	got := Slugify(strings.Repeat("abc ", 30))
	assert.Len(t, got, maxSlugLen)
}

func TestTicketFilename(t *testing.T) {
	assert.Equal(t, "T-1-add-sync-button.md", TicketFilename("T-1", "Add sync button"))
}

func TestNewTicketID(t *testing.T) {
	now := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)
	a := NewTicketID(now)
	b := NewTicketID(now)
	assert.True(t, strings.HasPrefix(a, "T-"))
	assert.Len(t, a, 2+26)
	assert.NotEqual(t, a, b)
}
