package store

import (
	"context"
	"errors"

	"github.com/joescharf/kanban/internal/models"
)

var (
	// ErrNotFound is returned when a board or ticket does not exist.
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when creating a board whose slug is taken.
	ErrExists = errors.New("already exists")
	// ErrInvalid wraps validation failures.
	ErrInvalid = errors.New("invalid")
)

// CreateBoardInput describes a new board. An empty slug is derived from the
// name; nil columns get the default set.
type CreateBoardInput struct {
	Name    string          `json:"name" validate:"required"`
	Slug    string          `json:"slug,omitempty" validate:"omitempty,slug"`
	Columns []models.Column `json:"columns,omitempty" validate:"omitempty,dive"`
}

// UpdateBoardInput renames a board or replaces its columns. Zero fields are
// left unchanged.
type UpdateBoardInput struct {
	ID      string          `json:"id" validate:"required"`
	Name    string          `json:"name,omitempty"`
	Columns []models.Column `json:"columns,omitempty" validate:"omitempty,dive"`
}

// CreateTicketInput describes a new ticket.
type CreateTicketInput struct {
	Board    string `json:"board" validate:"required"`
	Title    string `json:"title" validate:"required"`
	Status   string `json:"status" validate:"required"`
	Owner    string `json:"owner,omitempty"`
	Priority string `json:"priority" validate:"required"`
	Body     string `json:"body,omitempty"`
}

// UpdateTicketInput carries a partial ticket update. Nil fields are left
// unchanged; an empty Owner or Priority clears it.
type UpdateTicketInput struct {
	Title    *string          `json:"title,omitempty" validate:"omitnil,min=1"`
	Status   *string          `json:"status,omitempty" validate:"omitnil,min=1"`
	Owner    *string          `json:"owner,omitempty"`
	Priority *string          `json:"priority,omitempty"`
	Body     *string          `json:"body,omitempty"`
	Order    *int             `json:"order,omitempty"`
	Comments []models.Comment `json:"comments,omitempty" validate:"omitempty,dive"`
}

// Store persists boards and tickets inside a workspace.
type Store interface {
	// Config
	Init(ctx context.Context) (*models.Config, error)
	Config(ctx context.Context) (*models.Config, error)
	UpdatePriorities(ctx context.Context, priorities []models.Priority) error
	UpdateUsers(ctx context.Context, users []models.User) error

	// Boards
	Board(ctx context.Context, id string) (*models.Board, error)
	BoardBySlug(ctx context.Context, slug string) (*models.Board, error)
	CreateBoard(ctx context.Context, in CreateBoardInput) (*models.Board, error)
	UpdateBoard(ctx context.Context, in UpdateBoardInput) (*models.Board, error)
	DeleteBoard(ctx context.Context, id string) error

	// Tickets
	ListTickets(ctx context.Context, board string) ([]*models.Ticket, error)
	GetTicket(ctx context.Context, board, id string) (*models.Ticket, error)
	CreateTicket(ctx context.Context, in CreateTicketInput) (*models.Ticket, error)
	UpdateTicket(ctx context.Context, board, id string, in UpdateTicketInput) (*models.Ticket, error)
	DeleteTicket(ctx context.Context, board, id string) error
	MoveTickets(ctx context.Context, board, fromStatus, toStatus string) (int, error)

	// TrackedRoots lists the workspace-relative paths the store writes to.
	TrackedRoots() []string
}
