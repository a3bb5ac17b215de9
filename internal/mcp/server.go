package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/llm"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/syncer"
)

// SyncService runs status and sync against the workspace repository.
type SyncService interface {
	Status(ctx context.Context) (git.RepositoryStatus, bool)
	Sync(ctx context.Context) (git.SyncOutcome, error)
}

// Server wraps the kanban data layer and exposes it as MCP tools.
type Server struct {
	store store.Store
	sync  SyncService
	llm   *llm.Client
	now   func() time.Time
}

// NewServer creates the MCP server wrapper. llmc may be nil, in which case
// the draft tool is not registered.
func NewServer(s store.Store, sync SyncService, llmc *llm.Client) *Server {
	return &Server{store: s, sync: sync, llm: llmc, now: time.Now}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("kanban", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listBoardsTool())
	srv.AddTool(s.listTicketsTool())
	srv.AddTool(s.getTicketTool())
	srv.AddTool(s.createTicketTool())
	srv.AddTool(s.updateTicketTool())
	srv.AddTool(s.commentTool())
	srv.AddTool(s.gitStatusTool())
	srv.AddTool(s.syncTool())
	if s.llm != nil {
		srv.AddTool(s.draftTicketTool())
	}

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.MCPServer())
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// optString returns a pointer to the named argument, or nil when absent.
func optString(request mcp.CallToolRequest, name string) *string {
	args := request.GetArguments()
	v, ok := args[name].(string)
	if !ok {
		return nil
	}
	return &v
}

// ---------------------------------------------------------------------------
// Boards and tickets
// ---------------------------------------------------------------------------

// kanban_list_boards
func (s *Server) listBoardsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_list_boards",
		mcp.WithDescription("List boards with their columns, plus the configured priorities and users. Column ids are the valid ticket statuses of a board."),
	)
	return tool, s.handleListBoards
}

func (s *Server) handleListBoards(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read config: %v", err)), nil
	}
	return jsonResult(cfg)
}

// kanban_list_tickets
func (s *Server) listTicketsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_list_tickets",
		mcp.WithDescription("List the tickets of a board, optionally filtered by status. Returns a JSON array of tickets without comments."),
		mcp.WithString("board", mcp.Required(), mcp.Description("Board slug")),
		mcp.WithString("status", mcp.Description("Column id to filter by")),
		mcp.WithString("owner", mcp.Description("Owner user id to filter by")),
	)
	return tool, s.handleListTickets
}

type ticketSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Status   string `json:"status"`
	Priority string `json:"priority"`
	Owner    string `json:"owner,omitempty"`
	Comments int    `json:"comments"`
}

func (s *Server) handleListTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireString("board")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: board"), nil
	}
	status := request.GetString("status", "")
	owner := request.GetString("owner", "")

	tickets, err := s.store.ListTickets(ctx, board)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list tickets: %v", err)), nil
	}

	out := make([]ticketSummary, 0, len(tickets))
	for _, t := range tickets {
		if status != "" && t.Status != status {
			continue
		}
		if owner != "" && t.Owner != owner {
			continue
		}
		out = append(out, ticketSummary{
			ID:       t.ID,
			Title:    t.Title,
			Status:   t.Status,
			Priority: t.Priority,
			Owner:    t.Owner,
			Comments: len(t.Comments),
		})
	}
	return jsonResult(out)
}

// kanban_get_ticket
func (s *Server) getTicketTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_get_ticket",
		mcp.WithDescription("Get one ticket including its Markdown body and comments."),
		mcp.WithString("board", mcp.Required(), mcp.Description("Board slug")),
		mcp.WithString("ticket_id", mcp.Required(), mcp.Description("Ticket ID (T-...)")),
	)
	return tool, s.handleGetTicket
}

func (s *Server) handleGetTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireString("board")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: board"), nil
	}
	id, err := request.RequireString("ticket_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ticket_id"), nil
	}
	t, err := s.store.GetTicket(ctx, board, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ticket not found: %s", id)), nil
	}
	return jsonResult(t)
}

// kanban_create_ticket
func (s *Server) createTicketTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_create_ticket",
		mcp.WithDescription("Create a ticket on a board. Returns the created ticket as JSON."),
		mcp.WithString("board", mcp.Required(), mcp.Description("Board slug")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Ticket title")),
		mcp.WithString("status", mcp.Description("Column id (default: the board's first column)")),
		mcp.WithString("priority", mcp.Description("Priority id (default: medium)")),
		mcp.WithString("owner", mcp.Description("Owner user id")),
		mcp.WithString("body", mcp.Description("Markdown body")),
	)
	return tool, s.handleCreateTicket
}

func (s *Server) handleCreateTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	boardSlug, err := request.RequireString("board")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: board"), nil
	}
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}

	board, err := s.store.BoardBySlug(ctx, boardSlug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("board not found: %s", boardSlug)), nil
	}

	in := store.CreateTicketInput{
		Board:    board.Slug,
		Title:    title,
		Status:   request.GetString("status", board.Columns[0].ID),
		Priority: request.GetString("priority", "medium"),
		Owner:    request.GetString("owner", ""),
		Body:     request.GetString("body", ""),
	}
	t, err := s.store.CreateTicket(ctx, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create ticket: %v", err)), nil
	}
	return jsonResult(t)
}

// kanban_update_ticket
func (s *Server) updateTicketTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_update_ticket",
		mcp.WithDescription("Update a ticket. Provide at least one field to change. Moving a ticket means setting its status to another column id. Returns the updated ticket as JSON."),
		mcp.WithString("board", mcp.Required(), mcp.Description("Board slug")),
		mcp.WithString("ticket_id", mcp.Required(), mcp.Description("Ticket ID (T-...)")),
		mcp.WithString("title", mcp.Description("New title")),
		mcp.WithString("status", mcp.Description("New column id")),
		mcp.WithString("priority", mcp.Description("New priority id")),
		mcp.WithString("owner", mcp.Description("New owner user id; empty clears it")),
		mcp.WithString("body", mcp.Description("New Markdown body")),
	)
	return tool, s.handleUpdateTicket
}

func (s *Server) handleUpdateTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireString("board")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: board"), nil
	}
	id, err := request.RequireString("ticket_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ticket_id"), nil
	}

	in := store.UpdateTicketInput{
		Title:    optString(request, "title"),
		Status:   optString(request, "status"),
		Priority: optString(request, "priority"),
		Owner:    optString(request, "owner"),
		Body:     optString(request, "body"),
	}
	if in.Title == nil && in.Status == nil && in.Priority == nil && in.Owner == nil && in.Body == nil {
		return mcp.NewToolResultError("no fields to update"), nil
	}

	t, err := s.store.UpdateTicket(ctx, board, id, in)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return mcp.NewToolResultError(fmt.Sprintf("ticket not found: %s", id)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("failed to update ticket: %v", err)), nil
	}
	return jsonResult(t)
}

// kanban_comment
func (s *Server) commentTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_comment",
		mcp.WithDescription("Append a comment to a ticket. Returns the updated ticket as JSON."),
		mcp.WithString("board", mcp.Required(), mcp.Description("Board slug")),
		mcp.WithString("ticket_id", mcp.Required(), mcp.Description("Ticket ID (T-...)")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Comment text")),
		mcp.WithString("author", mcp.Description("Author user id")),
	)
	return tool, s.handleComment
}

func (s *Server) handleComment(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	board, err := request.RequireString("board")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: board"), nil
	}
	id, err := request.RequireString("ticket_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: ticket_id"), nil
	}
	text, err := request.RequireString("text")
	if err != nil || text == "" {
		return mcp.NewToolResultError("missing required parameter: text"), nil
	}

	t, err := s.store.GetTicket(ctx, board, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ticket not found: %s", id)), nil
	}
	now := s.now().UTC()
	comments := append(t.Comments, models.Comment{
		ID:        store.NewCommentID(now),
		Author:    request.GetString("author", ""),
		Text:      text,
		CreatedAt: now,
	})
	t, err = s.store.UpdateTicket(ctx, board, id, store.UpdateTicketInput{Comments: comments})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add comment: %v", err)), nil
	}
	return jsonResult(t)
}

// kanban_draft_ticket
func (s *Server) draftTicketTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_draft_ticket",
		mcp.WithDescription("Draft a ticket body and suggested priority from a title and rough notes using the configured LLM. Nothing is saved."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Ticket title")),
		mcp.WithString("notes", mcp.Description("Rough notes to expand")),
	)
	return tool, s.handleDraftTicket
}

func (s *Server) handleDraftTicket(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := request.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: title"), nil
	}
	cfg, err := s.store.Config(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read config: %v", err)), nil
	}
	priorities := make([]string, 0, len(cfg.Priorities))
	for _, p := range cfg.Priorities {
		priorities = append(priorities, p.ID)
	}
	draft, err := s.llm.DraftTicket(ctx, title, request.GetString("notes", ""), priorities)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("draft failed: %v", err)), nil
	}
	return jsonResult(draft)
}

// ---------------------------------------------------------------------------
// Git
// ---------------------------------------------------------------------------

// kanban_git_status
func (s *Server) gitStatusTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_git_status",
		mcp.WithDescription("Report the workspace branch, commits ahead/behind upstream, and changed files under the tracked ticket roots."),
	)
	return tool, s.handleGitStatus
}

func (s *Server) handleGitStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, ok := s.sync.Status(ctx)
	if !ok {
		return mcp.NewToolResultError(git.SummaryNotARepository), nil
	}
	return jsonResult(status)
}

// kanban_sync
func (s *Server) syncTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("kanban_sync",
		mcp.WithDescription("Commit ticket changes, rebase onto the upstream branch and push. A conflict aborts the rebase and leaves local work untouched. Returns the sync outcome as JSON."),
	)
	return tool, s.handleSync
}

func (s *Server) handleSync(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	out, err := s.sync.Sync(ctx)
	if err != nil {
		if errors.Is(err, syncer.ErrBusy) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("sync failed: %v", err)), nil
	}
	result, err := jsonResult(out)
	if err == nil && !out.Succeeded {
		result.IsError = true
	}
	return result, err
}
