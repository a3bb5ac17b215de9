// Package lock guards sync against concurrent runs from separate processes
// with a PID file inside the git directory.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FileName is the lock file created inside the git directory.
const FileName = "kanban-sync.lock"

// ErrHeld matches any HeldError with errors.Is.
var ErrHeld = errors.New("sync already in progress")

// HeldError reports the process that currently holds the lock.
type HeldError struct {
	PID int
}

func (e *HeldError) Error() string {
	return fmt.Sprintf("sync already in progress (pid %d)", e.PID)
}

func (e *HeldError) Is(target error) bool { return target == ErrHeld }

// PIDFile is an exclusive lock backed by a file holding the owner's PID.
type PIDFile struct {
	Path string
}

// New returns a lock at path.
func New(path string) *PIDFile {
	return &PIDFile{Path: path}
}

// ForGitDir returns the sync lock for a repository's git directory.
func ForGitDir(gitDir string) *PIDFile {
	return New(filepath.Join(gitDir, FileName))
}

// Acquire takes the lock for the current process. A lock left behind by a
// process that is no longer alive is reclaimed.
func (p *PIDFile) Acquire() error {
	for attempt := 0; attempt < 2; attempt++ {
		err := p.create(os.Getpid())
		if err == nil {
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create lock file: %w", err)
		}

		pid, running := p.IsRunning()
		if running {
			return &HeldError{PID: pid}
		}
		slog.Warn("removing stale sync lock", "path", p.Path, "pid", pid)
		if err := os.Remove(p.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale lock: %w", err)
		}
	}
	return fmt.Errorf("acquire %s: lost race with another process", p.Path)
}

func (p *PIDFile) create(pid int) error {
	f, err := os.OpenFile(p.Path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(strconv.Itoa(pid) + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(p.Path)
		return err
	}
	return f.Close()
}

// Release removes the lock if the current process holds it.
func (p *PIDFile) Release() error {
	pid, err := p.Read()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if pid != os.Getpid() {
		return fmt.Errorf("lock held by pid %d, not %d", pid, os.Getpid())
	}
	return os.Remove(p.Path)
}

// Read returns the PID recorded in the lock file.
func (p *PIDFile) Read() (int, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid lock file content: %w", err)
	}
	return pid, nil
}

// IsRunning reports the recorded PID and whether that process is alive.
func (p *PIDFile) IsRunning() (int, bool) {
	pid, err := p.Read()
	if err != nil {
		return 0, false
	}
	return pid, processAlive(pid)
}
