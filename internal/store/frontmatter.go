package store

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/joescharf/kanban/internal/models"
)

// timeLayout matches JavaScript's Date.toISOString so files written by other
// tools round-trip unchanged.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

var fence = []byte("---")

type commentMeta struct {
	ID        string `yaml:"id"`
	Author    string `yaml:"author"`
	Text      string `yaml:"text"`
	CreatedAt string `yaml:"createdAt"`
}

type ticketMeta struct {
	ID        string        `yaml:"id"`
	Board     string        `yaml:"board"`
	Title     string        `yaml:"title"`
	Status    string        `yaml:"status"`
	CreatedAt string        `yaml:"createdAt"`
	UpdatedAt string        `yaml:"updatedAt"`
	Owner     string        `yaml:"owner,omitempty"`
	Priority  string        `yaml:"priority,omitempty"`
	Order     *int          `yaml:"order,omitempty"`
	Comments  []commentMeta `yaml:"comments,omitempty"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MarshalTicket renders t as Markdown with a YAML frontmatter header.
func MarshalTicket(t *models.Ticket) ([]byte, error) {
	meta := ticketMeta{
		ID:        t.ID,
		Board:     t.Board,
		Title:     t.Title,
		Status:    t.Status,
		CreatedAt: formatTime(t.CreatedAt),
		UpdatedAt: formatTime(t.UpdatedAt),
		Owner:     t.Owner,
		Priority:  t.Priority,
		Order:     t.Order,
	}
	for _, c := range t.Comments {
		meta.Comments = append(meta.Comments, commentMeta{
			ID:        c.ID,
			Author:    c.Author,
			Text:      c.Text,
			CreatedAt: formatTime(c.CreatedAt),
		})
	}

	header, err := yaml.Marshal(&meta)
	if err != nil {
		return nil, fmt.Errorf("marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.Write(fence)
	buf.WriteByte('\n')
	buf.Write(header)
	buf.Write(fence)
	buf.WriteByte('\n')
	if body := strings.TrimSpace(t.Body); body != "" {
		buf.WriteString(body)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// UnmarshalTicket parses a ticket file. The body is returned trimmed.
func UnmarshalTicket(data []byte) (*models.Ticket, error) {
	header, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}

	var meta ticketMeta
	if err := yaml.Unmarshal(header, &meta); err != nil {
		return nil, fmt.Errorf("parse frontmatter: %w", err)
	}
	if meta.ID == "" {
		return nil, errors.New("frontmatter has no id")
	}

	t := &models.Ticket{
		ID:        meta.ID,
		Board:     meta.Board,
		Title:     meta.Title,
		Status:    meta.Status,
		Owner:     meta.Owner,
		Priority:  meta.Priority,
		Order:     meta.Order,
		Body:      strings.TrimSpace(string(body)),
		Comments:  []models.Comment{},
		CreatedAt: parseTime(meta.CreatedAt),
		UpdatedAt: parseTime(meta.UpdatedAt),
	}
	for _, c := range meta.Comments {
		t.Comments = append(t.Comments, models.Comment{
			ID:        c.ID,
			Author:    c.Author,
			Text:      c.Text,
			CreatedAt: parseTime(c.CreatedAt),
		})
	}
	return t, nil
}

// splitFrontmatter separates the YAML header from the Markdown body.
func splitFrontmatter(data []byte) (header, body []byte, err error) {
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(data, fence) {
		return nil, nil, errors.New("missing frontmatter")
	}
	rest := data[len(fence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, nil, errors.New("missing frontmatter")
	}
	rest = rest[nl+1:]

	for offset := 0; offset <= len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		line := rest[offset:]
		next := len(rest)
		if end >= 0 {
			line = rest[offset : offset+end]
			next = offset + end + 1
		}
		if bytes.Equal(bytes.TrimRight(line, " \t"), fence) {
			return rest[:offset], rest[next:], nil
		}
		if end < 0 {
			break
		}
		offset = next
	}
	return nil, nil, errors.New("unterminated frontmatter")
}
