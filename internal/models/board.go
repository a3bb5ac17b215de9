package models

// Column is one lane of a board. Its ID doubles as the ticket status.
type Column struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

// Priority is a named urgency level with a display color.
type Priority struct {
	ID    string `json:"id" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Color string `json:"color" validate:"required"`
}

// User is someone tickets can be assigned to.
type User struct {
	ID     string `json:"id" validate:"required"`
	Name   string `json:"name" validate:"required"`
	Avatar string `json:"avatar,omitempty"`
}

// Board groups tickets under an ordered set of columns.
type Board struct {
	ID      string   `json:"id" validate:"required"`
	Name    string   `json:"name" validate:"required"`
	Slug    string   `json:"slug" validate:"required,slug"`
	Columns []Column `json:"columns" validate:"min=1,dive"`
}

// HasColumn reports whether id names one of the board's columns.
func (b *Board) HasColumn(id string) bool {
	for _, c := range b.Columns {
		if c.ID == id {
			return true
		}
	}
	return false
}

// RemovedColumns returns the columns of b that are absent from next.
func (b *Board) RemovedColumns(next []Column) []Column {
	var removed []Column
	for _, c := range b.Columns {
		found := false
		for _, n := range next {
			if n.ID == c.ID {
				found = true
				break
			}
		}
		if !found {
			removed = append(removed, c)
		}
	}
	return removed
}

// Config is the contents of .kanban/config.json.
type Config struct {
	Boards     []Board    `json:"boards" validate:"dive"`
	Priorities []Priority `json:"priorities" validate:"dive"`
	Users      []User     `json:"users" validate:"dive"`
}

// BoardBySlug returns the board with the given slug, or nil.
func (c *Config) BoardBySlug(slug string) *Board {
	for i := range c.Boards {
		if c.Boards[i].Slug == slug {
			return &c.Boards[i]
		}
	}
	return nil
}

// BoardByID returns the board with the given ID, or nil.
func (c *Config) BoardByID(id string) *Board {
	for i := range c.Boards {
		if c.Boards[i].ID == id {
			return &c.Boards[i]
		}
	}
	return nil
}

// DefaultColumns are used for new boards created without explicit columns.
func DefaultColumns() []Column {
	return []Column{
		{ID: "backlog", Name: "Backlog"},
		{ID: "in-progress", Name: "In Progress"},
		{ID: "review", Name: "Review"},
		{ID: "done", Name: "Done"},
	}
}

// DefaultConfig is written when a workspace has no configuration yet.
func DefaultConfig() *Config {
	return &Config{
		Boards: []Board{
			{ID: "board_1", Name: "Main", Slug: "main", Columns: DefaultColumns()},
		},
		Priorities: []Priority{
			{ID: "critical", Name: "Critical", Color: "#ef4444"},
			{ID: "high", Name: "High", Color: "#f97316"},
			{ID: "medium", Name: "Medium", Color: "#eab308"},
			{ID: "low", Name: "Low", Color: "#3b82f6"},
		},
		Users: []User{
			{ID: "user_1", Name: "Owner"},
		},
	}
}
