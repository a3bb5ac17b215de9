// Package syncer serializes sync runs and records their outcomes.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joescharf/kanban/internal/events"
	"github.com/joescharf/kanban/internal/git"
	"github.com/joescharf/kanban/internal/history"
)

// ErrBusy is returned when another sync is already running.
var ErrBusy = errors.New("sync already in progress")

// Coordinator is the part of *git.Coordinator the service drives.
type Coordinator interface {
	Status(ctx context.Context) (git.RepositoryStatus, bool)
	Sync(ctx context.Context) git.SyncOutcome
	Branch(ctx context.Context) string
}

// Locker is a cross-process exclusive lock.
type Locker interface {
	Acquire() error
	Release() error
}

// Recorder stores completed runs.
type Recorder interface {
	Record(ctx context.Context, r *history.Run) error
}

// Service runs at most one sync at a time, in this process and (with a
// Locker) across processes. Status waits for a running sync to finish.
type Service struct {
	coord   Coordinator
	lock    Locker
	history Recorder
	pub     events.Publisher
	now     func() time.Time

	// running is set for the duration of a sync; mu serializes git access.
	running atomic.Bool
	mu      sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithLock adds a cross-process lock around each sync.
func WithLock(l Locker) Option { return func(s *Service) { s.lock = l } }

// WithHistory records every completed sync.
func WithHistory(r Recorder) Option { return func(s *Service) { s.history = r } }

// WithEvents publishes events.SyncCompleted after every sync.
func WithEvents(p events.Publisher) Option { return func(s *Service) { s.pub = p } }

// WithClock overrides the clock used to time runs.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// New returns a Service over coord.
func New(coord Coordinator, opts ...Option) *Service {
	s := &Service{coord: coord, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the repository status; ok is false outside a repository.
func (s *Service) Status(ctx context.Context) (git.RepositoryStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.coord.Status(ctx)
}

// Sync runs one sync. It fails with ErrBusy, without touching the
// repository, when another sync holds the in-process or the file lock.
// A status read in progress only delays it.
func (s *Service) Sync(ctx context.Context) (git.SyncOutcome, error) {
	if !s.running.CompareAndSwap(false, true) {
		return git.SyncOutcome{}, ErrBusy
	}
	defer s.running.Store(false)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lock != nil {
		if err := s.lock.Acquire(); err != nil {
			return git.SyncOutcome{}, fmt.Errorf("%w: %w", ErrBusy, err)
		}
		defer func() {
			if err := s.lock.Release(); err != nil {
				slog.Warn("release sync lock", "error", err)
			}
		}()
	}

	ctx = context.WithoutCancel(ctx)
	started := s.now()
	out := s.coord.Sync(ctx)
	run := &history.Run{
		StartedAt:   started,
		Duration:    s.now().Sub(started),
		SyncOutcome: out,
	}
	slog.Debug("sync finished", "success", out.Succeeded, "summary", out.Summary, "duration", run.Duration)

	if s.history != nil {
		run.Branch = s.coord.Branch(ctx)
		if err := s.history.Record(ctx, run); err != nil {
			slog.Warn("record sync run", "error", err)
		}
	}
	if s.pub != nil {
		s.pub.Publish(events.Event{Type: events.SyncCompleted, Data: out})
	}
	return out, nil
}
