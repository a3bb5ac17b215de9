// Package prefs stores display preferences and notifies observers when they
// change.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/joescharf/kanban/internal/events"
)

// Theme is a board accent color.
type Theme string

const (
	ThemeGreen  Theme = "green"
	ThemeBlue   Theme = "blue"
	ThemePurple Theme = "purple"
	ThemeRose   Theme = "rose"
	ThemeOrange Theme = "orange"
	ThemeAmber  Theme = "amber"
	ThemeTeal   Theme = "teal"
)

// Themes lists every valid theme in display order.
var Themes = []Theme{ThemeGreen, ThemeBlue, ThemePurple, ThemeRose, ThemeOrange, ThemeAmber, ThemeTeal}

// Preferences are per-user display settings.
type Preferences struct {
	ColorTheme     Theme `json:"colorTheme" validate:"oneof=green blue purple rose orange amber teal"`
	HolidayEffects bool  `json:"holidayEffects"`
	Snow           bool  `json:"snow"`
}

// Default returns the preferences used before anything is saved.
func Default() Preferences {
	return Preferences{ColorTheme: ThemeGreen, HolidayEffects: true, Snow: true}
}

// Update is a partial change; nil fields are left as they are.
type Update struct {
	ColorTheme     *Theme `json:"colorTheme,omitempty"`
	HolidayEffects *bool  `json:"holidayEffects,omitempty"`
	Snow           *bool  `json:"snow,omitempty"`
}

// ErrInvalid wraps rejected preference values.
var ErrInvalid = errors.New("invalid preferences")

var validate = validator.New()

// Store persists preferences as JSON and publishes events.PreferencesChanged
// after every successful Set.
type Store struct {
	path string
	pub  events.Publisher

	mu sync.Mutex
}

// NewStore returns a store backed by path. pub may be nil.
func NewStore(path string, pub events.Publisher) *Store {
	return &Store{path: path, pub: pub}
}

// Get returns the saved preferences, or the defaults when nothing usable is
// saved. Fields missing from the file keep their default values.
func (s *Store) Get() Preferences {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() Preferences {
	p := Default()
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("read preferences", "path", s.path, "error", err)
		}
		return p
	}
	if err := json.Unmarshal(data, &p); err != nil {
		slog.Warn("parse preferences, using defaults", "path", s.path, "error", err)
		return Default()
	}
	if err := validate.Struct(p); err != nil {
		slog.Warn("invalid theme in preferences", "path", s.path, "theme", p.ColorTheme)
		p.ColorTheme = ThemeGreen
	}
	return p
}

// Set applies u, saves the result and notifies subscribers.
func (s *Store) Set(u Update) (Preferences, error) {
	s.mu.Lock()
	p := s.read()
	if u.ColorTheme != nil {
		p.ColorTheme = *u.ColorTheme
	}
	if u.HolidayEffects != nil {
		p.HolidayEffects = *u.HolidayEffects
	}
	if u.Snow != nil {
		p.Snow = *u.Snow
	}
	if err := validate.Struct(p); err != nil {
		s.mu.Unlock()
		return Preferences{}, fmt.Errorf("%w: color theme %q is not one of %v", ErrInvalid, p.ColorTheme, Themes)
	}
	err := s.write(p)
	s.mu.Unlock()
	if err != nil {
		return Preferences{}, err
	}

	if s.pub != nil {
		s.pub.Publish(events.Event{Type: events.PreferencesChanged, Data: p})
	}
	return p, nil
}

func (s *Store) write(p Preferences) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	if err := os.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write preferences: %w", err)
	}
	return nil
}

// ParseTheme validates a theme name.
func ParseTheme(s string) (Theme, error) {
	for _, t := range Themes {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: unknown theme %q", ErrInvalid, s)
}
