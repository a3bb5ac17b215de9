package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/events"
	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/history"
	"github.com/joescharf/kanban/internal/models"
	"github.com/joescharf/kanban/internal/prefs"
	"github.com/joescharf/kanban/internal/store"
	"github.com/joescharf/kanban/internal/syncer"
)

type fakeSync struct {
	status git.RepositoryStatus
	isRepo bool
	out    git.SyncOutcome
	err    error
}

func (f *fakeSync) Status(ctx context.Context) (git.RepositoryStatus, bool) {
	return f.status, f.isRepo
}

func (f *fakeSync) Sync(ctx context.Context) (git.SyncOutcome, error) {
	return f.out, f.err
}

type fakeHistory struct {
	runs  []*history.Run
	limit int
}

func (f *fakeHistory) List(ctx context.Context, limit int) ([]*history.Run, error) {
	f.limit = limit
	return f.runs, nil
}

func setupTestServer(t *testing.T, opts ...Option) (*Server, *store.FileStore, *fakeSync) {
	t.Helper()
	st := store.NewFileStore(t.TempDir())
	_, err := st.Init(context.Background())
	require.NoError(t, err)
	fs := &fakeSync{isRepo: true}
	return NewServer(st, fs, opts...), st, fs
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	srv.Router().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestGetBoards(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "GET", "/api/boards", "")
	assert.Equal(t, http.StatusOK, w.Code)

	cfg := decode[models.Config](t, w)
	require.Len(t, cfg.Boards, 1)
	assert.Equal(t, "main", cfg.Boards[0].Slug)
	assert.NotEmpty(t, cfg.Priorities)
}

func TestPostBoards_Create(t *testing.T) {
	srv, st, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/boards", `{"action":"create","name":"Road Map"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	board := decode[models.Board](t, w)
	assert.Equal(t, "road-map", board.Slug)

	_, err := st.BoardBySlug(context.Background(), "road-map")
	assert.NoError(t, err)

	w = doRequest(t, srv, "POST", "/api/boards", `{"action":"create","name":"Road Map"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPostBoards_UpdateAndDelete(t *testing.T) {
	srv, st, _ := setupTestServer(t)
	ctx := context.Background()
	board, err := st.CreateBoard(ctx, store.CreateBoardInput{Name: "Ops"})
	require.NoError(t, err)

	w := doRequest(t, srv, "POST", "/api/boards", `{"action":"update","id":"`+board.ID+`","name":"Operations"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Operations", decode[models.Board](t, w).Name)

	w = doRequest(t, srv, "POST", "/api/boards", `{"action":"delete","id":"`+board.ID+`"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"success": true}, decode[map[string]bool](t, w))

	w = doRequest(t, srv, "POST", "/api/boards", `{"action":"delete","id":"`+board.ID+`"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostBoards_UpdateConfig(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/boards",
		`{"action":"updateConfig","users":[{"id":"u1","name":"Ada"}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cfg := decode[models.Config](t, w)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "Ada", cfg.Users[0].Name)
	assert.NotEmpty(t, cfg.Priorities, "priorities left unchanged")
}

func TestPostBoards_InvalidAction(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/boards", `{"action":"explode"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid action", decode[map[string]string](t, w)["error"])

	w = doRequest(t, srv, "POST", "/api/boards", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTickets_CRUD(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/tickets",
		`{"board":"main","title":"Fix login","status":"backlog","priority":"high","body":"Steps"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[models.Ticket](t, w)
	assert.True(t, strings.HasPrefix(created.ID, "T-"))

	w = doRequest(t, srv, "GET", "/api/tickets?board=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Tickets []models.Ticket `json:"tickets"`
	}](t, w)
	require.Len(t, list.Tickets, 1)
	assert.Equal(t, "Fix login", list.Tickets[0].Title)

	w = doRequest(t, srv, "PUT", "/api/tickets/"+created.ID+"?board=main", `{"status":"done"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "done", decode[models.Ticket](t, w).Status)

	w = doRequest(t, srv, "GET", "/api/tickets/"+created.ID+"?board=main", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Steps", decode[models.Ticket](t, w).Body)

	w = doRequest(t, srv, "DELETE", "/api/tickets/"+created.ID+"?board=main", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = doRequest(t, srv, "GET", "/api/tickets/"+created.ID+"?board=main", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTickets_Validation(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "GET", "/api/tickets", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, "POST", "/api/tickets", `{"board":"main","status":"backlog","priority":"high"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, "POST", "/api/tickets", `{`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftTicket_NoLLM(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "POST", "/api/tickets/draft", `{"title":"x"}`)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGitStatus(t *testing.T) {
	srv, _, fs := setupTestServer(t)
	fs.status = git.RepositoryStatus{
		Branch: "main",
		Ahead:  1,
		Files:  []git.TrackedFile{{Path: "tickets/main/a.md", Kind: git.ChangeUntracked}},
	}

	w := doRequest(t, srv, "GET", "/api/git/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "main", body["branch"])
	assert.Equal(t, float64(1), body["ahead"])
	assert.Equal(t, float64(1), body["untracked"])
	assert.Equal(t, true, body["hasChanges"])
}

func TestGitStatus_NotARepository(t *testing.T) {
	srv, _, fs := setupTestServer(t)
	fs.isRepo = false

	w := doRequest(t, srv, "GET", "/api/git/status", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Not a git repository", decode[map[string]string](t, w)["error"])
}

func TestGitSync(t *testing.T) {
	tests := []struct {
		name     string
		out      git.SyncOutcome
		err      error
		wantCode int
	}{
		{
			name:     "success",
			out:      git.SyncOutcome{Succeeded: true, Summary: "Synced", Committed: true, Pushed: true},
			wantCode: http.StatusOK,
		},
		{
			name:     "conflict",
			out:      git.SyncOutcome{Summary: git.SummaryConflict, FailureDetail: "CONFLICT"},
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "busy",
			err:      syncer.ErrBusy,
			wantCode: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, fs := setupTestServer(t)
			fs.out, fs.err = tt.out, tt.err

			w := doRequest(t, srv, "POST", "/api/git/sync", "")
			require.Equal(t, tt.wantCode, w.Code, w.Body.String())
			if tt.err == nil {
				assert.Equal(t, tt.out, decode[git.SyncOutcome](t, w))
			}
		})
	}
}

func TestGitHistory(t *testing.T) {
	h := &fakeHistory{runs: []*history.Run{{
		ID:          "01J",
		StartedAt:   time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		Branch:      "main",
		SyncOutcome: git.SyncOutcome{Succeeded: true, Summary: "Synced", Pushed: true},
	}}}
	srv, _, _ := setupTestServer(t, WithHistory(h))

	w := doRequest(t, srv, "GET", "/api/git/history?limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, h.limit)

	entries := decode[[]historyEntry](t, w)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(1500), entries[0].DurationMS)
	assert.True(t, entries[0].Pushed)

	w = doRequest(t, srv, "GET", "/api/git/history?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferences(t *testing.T) {
	ps := prefs.NewStore(filepath.Join(t.TempDir(), "prefs.json"), nil)
	srv, _, _ := setupTestServer(t, WithPreferences(ps))

	w := doRequest(t, srv, "GET", "/api/preferences", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, prefs.Default(), decode[prefs.Preferences](t, w))

	w = doRequest(t, srv, "PUT", "/api/preferences", `{"colorTheme":"teal","snow":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[prefs.Preferences](t, w)
	assert.Equal(t, prefs.ThemeTeal, got.ColorTheme)
	assert.False(t, got.Snow)
	assert.True(t, got.HolidayEffects)

	w = doRequest(t, srv, "PUT", "/api/preferences", `{"colorTheme":"neon"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCORS_Preflight(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "OPTIONS", "/api/boards", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestStreamEvents(t *testing.T) {
	bus := events.NewBus(events.DefaultBuffer)
	srv, _, _ := setupTestServer(t, WithEvents(bus))
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	line, err := reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": connected\n", line)
	_, err = reader.ReadString('\n')
	require.NoError(t, err)

	bus.Publish(events.Event{Type: events.PreferencesChanged, Data: prefs.Default()})

	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "event: preferences.changed\n", line)
	line, err = reader.ReadString('\n')
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(line, "data: "))
	assert.Contains(t, line, `"colorTheme":"green"`)
}

func TestStreamEvents_Disabled(t *testing.T) {
	srv, _, _ := setupTestServer(t)

	w := doRequest(t, srv, "GET", "/api/events", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
