package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildDraftPrompt(t *testing.T) {
	t.Run("with notes and priorities", func(t *testing.T) {
		system, user := buildDraftPrompt("Add sync button", "should show ahead/behind", []string{"high", "low"})

		assert.Contains(t, system, `"body"`)
		assert.Contains(t, system, `"priority"`)
		assert.Contains(t, system, "JSON")

		assert.Contains(t, user, "Allowed priorities: high, low")
		assert.Contains(t, user, "Ticket title: Add sync button")
		assert.Contains(t, user, "should show ahead/behind")
	})

	t.Run("title only", func(t *testing.T) {
		_, user := buildDraftPrompt("Dark mode", "", nil)
		assert.NotContains(t, user, "Allowed priorities")
		assert.NotContains(t, user, "Notes:")
		assert.Contains(t, user, "Dark mode")
	})
}

func TestBuildExtractPrompt(t *testing.T) {
	content := strings.Repeat("- item\n", 500)
	system, user := buildExtractPrompt(content, []string{"medium"})
	assert.Contains(t, system, "JSON array")
	assert.Contains(t, user, "Allowed priorities: medium")
	assert.Contains(t, user, content)
}

func TestStripFence(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFence("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFence("  {\"a\":1}  "))
}

func TestParseDraft(t *testing.T) {
	d, err := parseDraft(`{"body":"  Do it.\n\n### Acceptance criteria\n- [ ] done  ","priority":"high"}`, []string{"high", "low"})
	require.NoError(t, err)
	assert.Equal(t, "high", d.Priority)
	assert.True(t, strings.HasPrefix(d.Body, "Do it."))

	d, err = parseDraft(`{"body":"x","priority":"urgent"}`, []string{"high", "low"})
	require.NoError(t, err)
	assert.Empty(t, d.Priority, "unknown priority dropped")

	_, err = parseDraft("not json", nil)
	assert.ErrorContains(t, err, "parse LLM response")
}
