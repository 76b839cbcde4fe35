// Package theme manages the light/dark presentation theme: a two-state
// machine with a persisted manual preference, an OS-preference fallback and
// change broadcasting for other components and tabs.
package theme

import (
	"log/slog"
	"sync"
)

// Theme is one of the two presentation themes.
type Theme string

const (
	Light Theme = "light"
	Dark  Theme = "dark"
)

// StorageKey is the fixed key the preference is persisted under.
const StorageKey = "eventhub-theme"

// Valid reports whether t is a known theme.
func (t Theme) Valid() bool {
	return t == Light || t == Dark
}

// other flips between the two themes.
func (t Theme) other() Theme {
	if t == Light {
		return Dark
	}
	return Light
}

// Store persists the manual theme preference.
type Store interface {
	// Load returns the persisted theme and whether one exists.
	Load() (Theme, bool, error)
	Save(Theme) error
}

// Publisher broadcasts a theme change to other processes and tabs.
type Publisher interface {
	PublishThemeChanged(t Theme) error
}

// Manager owns the process-wide theme value.
//
// The initial state is the persisted preference when present, else the
// OS-reported preference. A manual toggle persists and broadcasts; an
// OS-preference change transitions only while no manual preference has
// been made. Cross-tab updates arrive through ApplyExternal and are not
// re-persisted or re-published.
type Manager struct {
	mu      sync.Mutex
	current Theme
	manual  bool
	store   Store
	pub     Publisher
	subs    []func(Theme)
	logger  *slog.Logger
}

// NewManager builds a Manager seeded from the store, falling back to the
// OS preference. pub may be nil.
func NewManager(store Store, systemPref Theme, pub Publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if !systemPref.Valid() {
		systemPref = Light
	}
	m := &Manager{current: systemPref, store: store, pub: pub, logger: logger}

	if store != nil {
		saved, ok, err := store.Load()
		if err != nil {
			logger.Warn("loading theme preference failed", "error", err)
		} else if ok && saved.Valid() {
			m.current = saved
			m.manual = true
		}
	}
	return m
}

// Current returns the active theme.
func (m *Manager) Current() Theme {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Toggle flips the theme as a manual preference and returns the new value.
func (m *Manager) Toggle() Theme {
	m.mu.Lock()
	next := m.current.other()
	m.mu.Unlock()
	m.Set(next)
	return next
}

// Set applies a manual theme choice: persist, notify subscribers,
// broadcast.
func (m *Manager) Set(t Theme) {
	if !t.Valid() {
		return
	}
	m.mu.Lock()
	m.current = t
	m.manual = true
	store, pub := m.store, m.pub
	subs := append(([]func(Theme))(nil), m.subs...)
	m.mu.Unlock()

	if store != nil {
		if err := store.Save(t); err != nil {
			m.logger.Warn("persisting theme preference failed", "error", err)
		}
	}
	for _, fn := range subs {
		fn(t)
	}
	if pub != nil {
		if err := pub.PublishThemeChanged(t); err != nil {
			m.logger.Warn("broadcasting theme change failed", "error", err)
		}
	}
}

// SystemChanged reports an OS-preference change. It is ignored once a
// manual preference exists.
func (m *Manager) SystemChanged(t Theme) {
	if !t.Valid() {
		return
	}
	m.mu.Lock()
	if m.manual || m.current == t {
		m.mu.Unlock()
		return
	}
	m.current = t
	subs := append(([]func(Theme))(nil), m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// ApplyExternal applies a theme received from another tab or process. It
// updates local state and subscribers without persisting or re-publishing,
// so broadcasts cannot loop.
func (m *Manager) ApplyExternal(t Theme) {
	if !t.Valid() {
		return
	}
	m.mu.Lock()
	if m.current == t {
		m.mu.Unlock()
		return
	}
	m.current = t
	subs := append(([]func(Theme))(nil), m.subs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
}

// Subscribe registers a change callback. Callbacks run synchronously on
// the transitioning goroutine.
func (m *Manager) Subscribe(fn func(Theme)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
