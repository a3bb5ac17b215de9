package models

import "time"

// Comment is a note attached to a ticket.
type Comment struct {
	ID        string    `json:"id" validate:"required"`
	Author    string    `json:"author" validate:"required"`
	Text      string    `json:"text" validate:"required"`
	CreatedAt time.Time `json:"createdAt"`
}

// Ticket is a card on a board, stored as tickets/<board>/<ID>-<slug>.md.
type Ticket struct {
	ID        string    `json:"id"`
	Board     string    `json:"board"`
	Title     string    `json:"title"`
	Status    string    `json:"status"` // column ID
	Owner     string    `json:"owner,omitempty"`
	Priority  string    `json:"priority,omitempty"`
	Order     *int      `json:"order,omitempty"`
	Body      string    `json:"body"`
	Comments  []Comment `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Filename string `json:"-"`
}
