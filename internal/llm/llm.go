package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// Draft is a generated ticket body with a suggested priority.
type Draft struct {
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// ExtractedTicket is one ticket found in free-form notes.
type ExtractedTicket struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}

// Client wraps the Anthropic API for ticket drafting.
type Client struct {
	api   *anthropic.Client
	model anthropic.Model
}

// NewClient creates an LLM client with the given API key and model.
func NewClient(apiKey, model string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	client := anthropic.NewClient(opts...)
	return &Client{
		api:   &client,
		model: anthropic.Model(model),
	}
}

// buildDraftPrompt constructs the system and user prompts for drafting a
// ticket body from a title and rough notes.
func buildDraftPrompt(title, notes string, priorities []string) (system string, user string) {
	system = `You write tickets for a kanban board. Given a ticket title and optional rough notes, return a JSON object with exactly two fields:

- "body": a Markdown ticket body. Start with one or two sentences describing the work, then a "### Acceptance criteria" heading followed by a short checklist ("- [ ] ...").
- "priority": the most fitting priority id from the allowed list.

Rules:
- Return valid JSON only, no markdown fencing or explanation
- Keep the body under 200 words
- Do not repeat the title as a heading
- If notes are empty, infer what you can from the title alone`

	var sb strings.Builder
	if len(priorities) > 0 {
		sb.WriteString("Allowed priorities: ")
		sb.WriteString(strings.Join(priorities, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Ticket title: ")
	sb.WriteString(title)
	sb.WriteString("\n")
	if notes != "" {
		sb.WriteString("\nNotes:\n")
		sb.WriteString(notes)
		sb.WriteString("\n")
	}
	user = sb.String()
	return
}

// buildExtractPrompt constructs the prompts for splitting notes into tickets.
func buildExtractPrompt(content string, priorities []string) (system string, user string) {
	system = `You extract kanban tickets from markdown notes. Return ONLY a JSON array of objects with these fields:
- "title": concise ticket title
- "body": the original text from the input that relates to this ticket (preserve formatting and sub-bullets)
- "priority": the most fitting priority id from the allowed list

Rules:
- Each numbered/bulleted top-level item is one ticket
- Never create placeholder tickets like "N/A"
- Return valid JSON only, no markdown fencing or explanation`

	var sb strings.Builder
	if len(priorities) > 0 {
		sb.WriteString("Allowed priorities: ")
		sb.WriteString(strings.Join(priorities, ", "))
		sb.WriteString("\n\n")
	}
	sb.WriteString("Extract tickets from this markdown:\n\n")
	sb.WriteString(content)
	user = sb.String()
	return
}

// DraftTicket asks the model for a ticket body and priority.
func (c *Client) DraftTicket(ctx context.Context, title, notes string, priorities []string) (*Draft, error) {
	system, user := buildDraftPrompt(title, notes, priorities)
	text, err := c.complete(ctx, system, user, 2048)
	if err != nil {
		return nil, err
	}
	return parseDraft(text, priorities)
}

// ExtractTickets splits markdown notes into tickets.
func (c *Client) ExtractTickets(ctx context.Context, content string, priorities []string) ([]ExtractedTicket, error) {
	system, user := buildExtractPrompt(content, priorities)
	text, err := c.complete(ctx, system, user, 4096)
	if err != nil {
		return nil, err
	}
	var tickets []ExtractedTicket
	if err := json.Unmarshal([]byte(text), &tickets); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	return tickets, nil
}

func (c *Client) complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	msg, err := c.api.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic API call: %w", err)
	}

	for _, block := range msg.Content {
		if block.Type == "text" && block.Text != "" {
			return stripFence(block.Text), nil
		}
	}
	return "", fmt.Errorf("no text content in API response")
}

// stripFence removes a surrounding markdown code fence, if present.
func stripFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		lines := strings.SplitN(text, "\n", 2)
		if len(lines) > 1 {
			text = lines[1]
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		text = strings.TrimSpace(text)
	}
	return text
}

// parseDraft decodes a draft and drops a priority outside the allowed list.
func parseDraft(text string, priorities []string) (*Draft, error) {
	var d Draft
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return nil, fmt.Errorf("parse LLM response as JSON: %w\nraw response: %s", err, text)
	}
	d.Body = strings.TrimSpace(d.Body)
	if len(priorities) > 0 && !contains(priorities, d.Priority) {
		d.Priority = ""
	}
	return &d, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
