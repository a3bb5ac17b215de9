package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/kanban/internal/events"
)

func ptr[T any](v T) *T { return &v }

func TestGet_Defaults(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "prefs.json"), nil)
	assert.Equal(t, Default(), s.Get())
}

func TestSet_PersistsAndMerges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.json")
	s := NewStore(path, nil)

	p, err := s.Set(Update{ColorTheme: ptr(ThemeTeal)})
	require.NoError(t, err)
	assert.Equal(t, Preferences{ColorTheme: ThemeTeal, HolidayEffects: true, Snow: true}, p)

	p, err = s.Set(Update{Snow: ptr(false)})
	require.NoError(t, err)
	assert.Equal(t, ThemeTeal, p.ColorTheme)
	assert.False(t, p.Snow)

	reopened := NewStore(path, nil)
	assert.Equal(t, p, reopened.Get())
}

func TestSet_RejectsUnknownTheme(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	s := NewStore(path, nil)

	_, err := s.Set(Update{ColorTheme: ptr(Theme("neon"))})
	assert.ErrorIs(t, err, ErrInvalid)
	assert.NoFileExists(t, path)
}

func TestSet_NotifiesSubscribers(t *testing.T) {
	bus := events.NewBus(1)
	ch, unsub := bus.Subscribe()
	defer unsub()

	s := NewStore(filepath.Join(t.TempDir(), "prefs.json"), bus)
	_, err := s.Set(Update{HolidayEffects: ptr(false)})
	require.NoError(t, err)

	select {
	case e := <-ch:
		assert.Equal(t, events.PreferencesChanged, e.Type)
		p, ok := e.Data.(Preferences)
		require.True(t, ok)
		assert.False(t, p.HolidayEffects)
	case <-time.After(time.Second):
		t.Fatal("no preferences.changed event")
	}
}

func TestGet_CorruptFileFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	assert.Equal(t, Default(), NewStore(path, nil).Get())

	require.NoError(t, os.WriteFile(path, []byte(`{"colorTheme":"neon","snow":false}`), 0o644))
	p := NewStore(path, nil).Get()
	assert.Equal(t, ThemeGreen, p.ColorTheme)
	assert.False(t, p.Snow)
}

func TestParseTheme(t *testing.T) {
	th, err := ParseTheme("amber")
	require.NoError(t, err)
	assert.Equal(t, ThemeAmber, th)

	_, err = ParseTheme("Amber")
	assert.ErrorIs(t, err, ErrInvalid)
}
