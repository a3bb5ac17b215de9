package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joescharf/kanban/internal/models"
)

// Workspace-relative locations owned by the store.
const (
	KanbanDir  = ".kanban"
	ConfigFile = "config.json"
	TicketsDir = "tickets"
)

// FileStore keeps the board configuration in .kanban/config.json and each
// ticket as a Markdown file under tickets/<board>/.
type FileStore struct {
	root string
	now  func() time.Time

	mu sync.Mutex
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithClock overrides the clock used for timestamps and IDs.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) { s.now = now }
}

// NewFileStore returns a store rooted at the workspace directory root.
func NewFileStore(root string, opts ...Option) *FileStore {
	s := &FileStore{root: root, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the workspace directory.
func (s *FileStore) Root() string { return s.root }

// TrackedRoots implements Store.
func (s *FileStore) TrackedRoots() []string {
	return []string{KanbanDir, TicketsDir}
}

func (s *FileStore) configPath() string {
	return filepath.Join(s.root, KanbanDir, ConfigFile)
}

func (s *FileStore) boardDir(slug string) string {
	return filepath.Join(s.root, TicketsDir, slug)
}

// --- config ---

// Init writes the default configuration when none exists and returns the
// current one.
func (s *FileStore) Init(ctx context.Context) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.configPath()); err == nil {
		return s.readConfig(), nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat config: %w", err)
	}

	cfg := models.DefaultConfig()
	if err := s.writeConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.ensureBoardDir("main"); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Config returns the board configuration. A missing or invalid file yields
// the default configuration.
func (s *FileStore) Config(ctx context.Context) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readConfig(), nil
}

func (s *FileStore) readConfig() *models.Config {
	data, err := os.ReadFile(s.configPath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("read config, using defaults", "path", s.configPath(), "error", err)
		}
		return models.DefaultConfig()
	}
	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		slog.Warn("parse config, using defaults", "path", s.configPath(), "error", err)
		return models.DefaultConfig()
	}
	if err := Validate(&cfg); err != nil {
		slog.Warn("invalid config, using defaults", "path", s.configPath(), "error", err)
		return models.DefaultConfig()
	}
	return &cfg
}

func (s *FileStore) writeConfig(cfg *models.Config) error {
	if cfg.Boards == nil {
		cfg.Boards = []models.Board{}
	}
	if cfg.Priorities == nil {
		cfg.Priorities = []models.Priority{}
	}
	if cfg.Users == nil {
		cfg.Users = []models.User{}
	}
	if err := Validate(cfg); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.configPath()), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return writeFileAtomic(s.configPath(), append(data, '\n'))
}

// UpdatePriorities replaces the priority list.
func (s *FileStore) UpdatePriorities(ctx context.Context, priorities []models.Priority) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readConfig()
	cfg.Priorities = priorities
	return s.writeConfig(cfg)
}

// UpdateUsers replaces the user list.
func (s *FileStore) UpdateUsers(ctx context.Context, users []models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readConfig()
	cfg.Users = users
	return s.writeConfig(cfg)
}

// --- boards ---

func (s *FileStore) Board(ctx context.Context, id string) (*models.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.readConfig().BoardByID(id)
	if b == nil {
		return nil, fmt.Errorf("board %s: %w", id, ErrNotFound)
	}
	return b, nil
}

func (s *FileStore) BoardBySlug(ctx context.Context, slug string) (*models.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boardBySlug(slug)
}

func (s *FileStore) boardBySlug(slug string) (*models.Board, error) {
	b := s.readConfig().BoardBySlug(slug)
	if b == nil {
		return nil, fmt.Errorf("board %q: %w", slug, ErrNotFound)
	}
	return b, nil
}

// CreateBoard adds a board and creates its tickets directory.
func (s *FileStore) CreateBoard(ctx context.Context, in CreateBoardInput) (*models.Board, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}
	slug := in.Slug
	if slug == "" {
		slug = Slugify(in.Name)
	}
	if slug == "" {
		return nil, fmt.Errorf("%w: cannot derive a slug from %q", ErrInvalid, in.Name)
	}
	columns := in.Columns
	if len(columns) == 0 {
		columns = models.DefaultColumns()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readConfig()
	if cfg.BoardBySlug(slug) != nil {
		return nil, fmt.Errorf("board %q: %w", slug, ErrExists)
	}
	board := models.Board{
		ID:      newBoardID(s.now()),
		Name:    in.Name,
		Slug:    slug,
		Columns: columns,
	}
	cfg.Boards = append(cfg.Boards, board)
	if err := s.writeConfig(cfg); err != nil {
		return nil, err
	}
	if err := s.ensureBoardDir(slug); err != nil {
		return nil, err
	}
	return &board, nil
}

// UpdateBoard renames a board or replaces its columns. Tickets in removed
// columns move to the first column of the new set.
func (s *FileStore) UpdateBoard(ctx context.Context, in UpdateBoardInput) (*models.Board, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readConfig()
	board := cfg.BoardByID(in.ID)
	if board == nil {
		return nil, fmt.Errorf("board %s: %w", in.ID, ErrNotFound)
	}

	if len(in.Columns) > 0 {
		target := in.Columns[0].ID
		for _, removed := range board.RemovedColumns(in.Columns) {
			n, err := s.moveTickets(board.Slug, removed.ID, target)
			if err != nil {
				return nil, fmt.Errorf("move tickets out of %s: %w", removed.ID, err)
			}
			if n > 0 {
				slog.Debug("moved tickets from removed column", "board", board.Slug, "from", removed.ID, "to", target, "count", n)
			}
		}
		board.Columns = in.Columns
	}
	if in.Name != "" {
		board.Name = in.Name
	}

	if err := s.writeConfig(cfg); err != nil {
		return nil, err
	}
	updated := *board
	return &updated, nil
}

// DeleteBoard removes a board from the configuration. Its tickets directory
// is left on disk.
func (s *FileStore) DeleteBoard(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := s.readConfig()
	for i, b := range cfg.Boards {
		if b.ID == id {
			cfg.Boards = append(cfg.Boards[:i], cfg.Boards[i+1:]...)
			return s.writeConfig(cfg)
		}
	}
	return fmt.Errorf("board %s: %w", id, ErrNotFound)
}

func (s *FileStore) ensureBoardDir(slug string) error {
	if err := os.MkdirAll(s.boardDir(slug), 0o755); err != nil {
		return fmt.Errorf("create tickets dir: %w", err)
	}
	return nil
}

// --- tickets ---

// ListTickets returns every parseable ticket of a board in file name order.
// Unreadable files are logged and skipped.
func (s *FileStore) ListTickets(ctx context.Context, board string) ([]*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.boardBySlug(board); err != nil {
		return nil, err
	}
	return s.listTickets(board)
}

func (s *FileStore) listTickets(board string) ([]*models.Ticket, error) {
	if err := s.ensureBoardDir(board); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.boardDir(board))
	if err != nil {
		return nil, fmt.Errorf("read tickets dir: %w", err)
	}

	tickets := []*models.Ticket{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(s.boardDir(board), e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			slog.Warn("read ticket", "path", path, "error", err)
			continue
		}
		t, err := UnmarshalTicket(data)
		if err != nil {
			slog.Warn("parse ticket", "path", path, "error", err)
			continue
		}
		t.Filename = e.Name()
		tickets = append(tickets, t)
	}
	return tickets, nil
}

func (s *FileStore) GetTicket(ctx context.Context, board, id string) (*models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.boardBySlug(board); err != nil {
		return nil, err
	}
	return s.getTicket(board, id)
}

func (s *FileStore) getTicket(board, id string) (*models.Ticket, error) {
	tickets, err := s.listTickets(board)
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("ticket %s in board %q: %w", id, board, ErrNotFound)
}

// CreateTicket writes a new ticket file. The status must name a column of
// the board.
func (s *FileStore) CreateTicket(ctx context.Context, in CreateTicketInput) (*models.Ticket, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	board, err := s.boardBySlug(in.Board)
	if err != nil {
		return nil, err
	}
	if !board.HasColumn(in.Status) {
		return nil, fmt.Errorf("%w: status %q is not a column of board %q", ErrInvalid, in.Status, in.Board)
	}
	if err := s.ensureBoardDir(in.Board); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t := &models.Ticket{
		ID:        NewTicketID(now),
		Board:     in.Board,
		Title:     in.Title,
		Status:    in.Status,
		Owner:     in.Owner,
		Priority:  in.Priority,
		Body:      strings.TrimSpace(in.Body),
		Comments:  []models.Comment{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.writeTicket(t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTicket applies a partial update. A title change renames the file:
// the new file is written before the old one is removed.
func (s *FileStore) UpdateTicket(ctx context.Context, board, id string, in UpdateTicketInput) (*models.Ticket, error) {
	if err := Validate(&in); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boardBySlug(board)
	if err != nil {
		return nil, err
	}
	if in.Status != nil && !b.HasColumn(*in.Status) {
		return nil, fmt.Errorf("%w: status %q is not a column of board %q", ErrInvalid, *in.Status, board)
	}
	t, err := s.getTicket(board, id)
	if err != nil {
		return nil, err
	}

	if in.Title != nil {
		t.Title = *in.Title
	}
	if in.Status != nil {
		t.Status = *in.Status
	}
	if in.Owner != nil {
		t.Owner = *in.Owner
	}
	if in.Priority != nil {
		t.Priority = *in.Priority
	}
	if in.Body != nil {
		t.Body = strings.TrimSpace(*in.Body)
	}
	if in.Order != nil {
		order := *in.Order
		t.Order = &order
	}
	if in.Comments != nil {
		t.Comments = in.Comments
	}
	t.UpdatedAt = s.now().UTC()

	if err := s.writeTicket(t); err != nil {
		return nil, err
	}
	return t, nil
}

// DeleteTicket removes a ticket file.
func (s *FileStore) DeleteTicket(ctx context.Context, board, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.boardBySlug(board); err != nil {
		return err
	}
	t, err := s.getTicket(board, id)
	if err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(s.boardDir(board), t.Filename)); err != nil {
		return fmt.Errorf("delete ticket: %w", err)
	}
	return nil
}

// MoveTickets sets every ticket with status fromStatus to toStatus and
// returns how many moved. toStatus must be a column of the board.
func (s *FileStore) MoveTickets(ctx context.Context, board, fromStatus, toStatus string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.boardBySlug(board)
	if err != nil {
		return 0, err
	}
	if !b.HasColumn(toStatus) {
		return 0, fmt.Errorf("%w: status %q is not a column of board %q", ErrInvalid, toStatus, board)
	}
	return s.moveTickets(board, fromStatus, toStatus)
}

func (s *FileStore) moveTickets(board, fromStatus, toStatus string) (int, error) {
	tickets, err := s.listTickets(board)
	if err != nil {
		return 0, err
	}
	moved := 0
	for _, t := range tickets {
		if t.Status != fromStatus {
			continue
		}
		t.Status = toStatus
		t.UpdatedAt = s.now().UTC()
		if err := s.writeTicket(t); err != nil {
			return moved, err
		}
		moved++
	}
	return moved, nil
}

func (s *FileStore) writeTicket(t *models.Ticket) error {
	data, err := MarshalTicket(t)
	if err != nil {
		return err
	}
	name := TicketFilename(t.ID, t.Title)
	if err := writeFileAtomic(filepath.Join(s.boardDir(t.Board), name), data); err != nil {
		return err
	}
	if t.Filename != "" && t.Filename != name {
		if err := os.Remove(filepath.Join(s.boardDir(t.Board), t.Filename)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("remove renamed ticket file", "file", t.Filename, "error", err)
		}
	}
	t.Filename = name
	return nil
}

// writeFileAtomic replaces path via a temp file in the same directory.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)
