package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joescharf/kanban/internal/events"
	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/history"
	"github.com/joescharf/kanban/internal/llm"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/syncer"
)

const maxBodyBytes = 1 << 20

// SyncService is the git side of the API.
type SyncService interface {
	Status(ctx context.Context) (git.RepositoryStatus, bool)
	Sync(ctx context.Context) (git.SyncOutcome, error)
}

// HistoryLister lists recorded sync runs.
type HistoryLister interface {
	List(ctx context.Context, limit int) ([]*history.Run, error)
}

// Server provides the REST API handlers.
type Server struct {
	store   store.Store
	sync    SyncService
	prefs   *prefs.Store
	bus     *events.Bus
	history HistoryLister
	llm     *llm.Client

	boardActions map[string]boardAction
}

// Option configures optional collaborators of a Server.
type Option func(*Server)

// WithPreferences serves /api/preferences from ps.
func WithPreferences(ps *prefs.Store) Option { return func(s *Server) { s.prefs = ps } }

// WithEvents streams bus events on /api/events.
func WithEvents(bus *events.Bus) Option { return func(s *Server) { s.bus = bus } }

// WithHistory serves /api/git/history.
func WithHistory(h HistoryLister) Option { return func(s *Server) { s.history = h } }

// WithLLM enables ticket drafting. The client may be nil.
func WithLLM(c *llm.Client) Option { return func(s *Server) { s.llm = c } }

// NewServer creates a new API server.
func NewServer(st store.Store, sync SyncService, opts ...Option) *Server {
	s := &Server{store: st, sync: sync}
	for _, opt := range opts {
		opt(s)
	}
	s.boardActions = map[string]boardAction{
		"create":       s.createBoard,
		"update":       s.updateBoard,
		"delete":       s.deleteBoard,
		"updateConfig": s.updateConfig,
	}
	return s
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/boards", s.getBoards)
	mux.HandleFunc("POST /api/boards", s.postBoards)

	mux.HandleFunc("GET /api/tickets", s.listTickets)
	mux.HandleFunc("POST /api/tickets", s.createTicket)
	mux.HandleFunc("POST /api/tickets/draft", s.draftTicket)
	mux.HandleFunc("GET /api/tickets/{id}", s.getTicket)
	mux.HandleFunc("PUT /api/tickets/{id}", s.updateTicket)
	mux.HandleFunc("DELETE /api/tickets/{id}", s.deleteTicket)

	mux.HandleFunc("GET /api/git/status", s.gitStatus)
	mux.HandleFunc("POST /api/git/sync", s.gitSync)
	mux.HandleFunc("GET /api/git/history", s.gitHistory)

	mux.HandleFunc("GET /api/preferences", s.getPreferences)
	mux.HandleFunc("PUT /api/preferences", s.putPreferences)

	mux.HandleFunc("GET /api/events", s.streamEvents)

	return corsMiddleware(mux)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeStoreError maps store sentinel errors to HTTP status codes.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalid), errors.Is(err, prefs.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrExists):
		writeError(w, http.StatusConflict, err.Error())
	default:
		slog.Error("api request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

func boardParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	board := r.URL.Query().Get("board")
	if board == "" {
		writeError(w, http.StatusBadRequest, "Board slug is required")
		return "", false
	}
	return board, true
}

// --- Boards ---

// boardAction handles one value of the "action" field of POST /api/boards.
type boardAction func(ctx context.Context, body []byte) (any, error)

func (s *Server) getBoards(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Init(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) postBoards(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var cmd struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal(body, &cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	action, ok := s.boardActions[cmd.Action]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid action")
		return
	}
	result, err := action(r.Context(), body)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeAction(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return errors.Join(store.ErrInvalid, err)
	}
	return nil
}

func (s *Server) createBoard(ctx context.Context, body []byte) (any, error) {
	var in store.CreateBoardInput
	if err := decodeAction(body, &in); err != nil {
		return nil, err
	}
	return s.store.CreateBoard(ctx, in)
}

func (s *Server) updateBoard(ctx context.Context, body []byte) (any, error) {
	var in store.UpdateBoardInput
	if err := decodeAction(body, &in); err != nil {
		return nil, err
	}
	return s.store.UpdateBoard(ctx, in)
}

func (s *Server) deleteBoard(ctx context.Context, body []byte) (any, error) {
	var in struct {
		ID string `json:"id"`
	}
	if err := decodeAction(body, &in); err != nil {
		return nil, err
	}
	if err := s.store.DeleteBoard(ctx, in.ID); err != nil {
		return nil, err
	}
	return map[string]bool{"success": true}, nil
}

func (s *Server) updateConfig(ctx context.Context, body []byte) (any, error) {
	var in configUpdate
	if err := decodeAction(body, &in); err != nil {
		return nil, err
	}
	if in.Priorities != nil {
		if err := s.store.UpdatePriorities(ctx, *in.Priorities); err != nil {
			return nil, err
		}
	}
	if in.Users != nil {
		if err := s.store.UpdateUsers(ctx, *in.Users); err != nil {
			return nil, err
		}
	}
	return s.store.Config(ctx)
}

// --- Tickets ---

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request) {
	board, ok := boardParam(w, r)
	if !ok {
		return
	}
	tickets, err := s.store.ListTickets(r.Context(), board)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tickets": tickets})
}

func (s *Server) createTicket(w http.ResponseWriter, r *http.Request) {
	var in store.CreateTicketInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ticket, err := s.store.CreateTicket(r.Context(), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ticket)
}

func (s *Server) getTicket(w http.ResponseWriter, r *http.Request) {
	board, ok := boardParam(w, r)
	if !ok {
		return
	}
	ticket, err := s.store.GetTicket(r.Context(), board, r.PathValue("id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) updateTicket(w http.ResponseWriter, r *http.Request) {
	board, ok := boardParam(w, r)
	if !ok {
		return
	}
	var in store.UpdateTicketInput
	if !decodeJSON(w, r, &in) {
		return
	}
	ticket, err := s.store.UpdateTicket(r.Context(), board, r.PathValue("id"), in)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (s *Server) deleteTicket(w http.ResponseWriter, r *http.Request) {
	board, ok := boardParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteTicket(r.Context(), board, r.PathValue("id")); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) draftTicket(w http.ResponseWriter, r *http.Request) {
	if s.llm == nil {
		writeError(w, http.StatusServiceUnavailable, "LLM not configured (set ANTHROPIC_API_KEY)")
		return
	}
	var in struct {
		Title string `json:"title"`
		Notes string `json:"notes"`
	}
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeError(w, http.StatusBadRequest, "Title is required")
		return
	}
	cfg, err := s.store.Config(r.Context())
	if err != nil {
		writeStoreError(w, err)
		return
	}
	draft, err := s.llm.DraftTicket(r.Context(), in.Title, in.Notes, priorityIDs(cfg.Priorities))
	if err != nil {
		writeError(w, http.StatusBadGateway, "LLM draft failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, draft)
}

// --- Git ---

func (s *Server) gitStatus(w http.ResponseWriter, r *http.Request) {
	status, ok := s.sync.Status(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, git.SummaryNotARepository)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) gitSync(w http.ResponseWriter, r *http.Request) {
	out, err := s.sync.Sync(r.Context())
	if err != nil {
		if errors.Is(err, syncer.ErrBusy) {
			writeJSON(w, http.StatusConflict, git.SyncOutcome{Summary: "Sync already in progress", FailureDetail: err.Error()})
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !out.Succeeded {
		writeJSON(w, http.StatusBadRequest, out)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) gitHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "sync history not enabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	runs, err := s.history.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]historyEntry, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, newHistoryEntry(run))
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- Preferences ---

func (s *Server) getPreferences(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		writeJSON(w, http.StatusOK, prefs.Default())
		return
	}
	writeJSON(w, http.StatusOK, s.prefs.Get())
}

func (s *Server) putPreferences(w http.ResponseWriter, r *http.Request) {
	if s.prefs == nil {
		writeError(w, http.StatusServiceUnavailable, "preferences not configured")
		return
	}
	var u prefs.Update
	if !decodeJSON(w, r, &u) {
		return
	}
	p, err := s.prefs.Set(u)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
