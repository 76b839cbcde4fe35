// Package mapview builds the interactive map out of upstream events: marker
// lifecycle, clustering, the heatmap layer, user geolocation and the filter
// pass. One Map corresponds to one page container; active maps live in an
// explicit Registry keyed by container id.
package mapview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"eventhub-gateway/internal/filter"
	"eventhub-gateway/internal/geo"
	"eventhub-gateway/internal/model"
)

// DefaultRadiusKm is applied to the radius filter after a successful
// geolocation.
const DefaultRadiusKm = 10

// locatedZoom is the zoom level used when recentering on the user.
const locatedZoom = 13

// Options configures a map session.
type Options struct {
	Center            geo.Point
	Zoom              int
	ClusteringEnabled bool
	HeatmapEnabled    bool
}

// DefaultOptions returns the map defaults: Moscow city centre, city-level
// zoom, clustering and heatmap on.
func DefaultOptions() Options {
	return Options{
		Center:            geo.Point{Lat: 55.76, Lon: 37.64},
		Zoom:              10,
		ClusteringEnabled: true,
		HeatmapEnabled:    true,
	}
}

// EventSource supplies the event list for rendering.
type EventSource interface {
	MapEvents(ctx context.Context) ([]model.Event, error)
}

// Tracker receives marker interaction analytics.
type Tracker interface {
	TrackView(ctx context.Context, eventID int) error
	TrackClick(ctx context.Context, eventID int) error
}

// NoticeLevel classifies a user-facing notice.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

// Notice is a dismissible inline message shown over the map.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Map holds the render state for one map container. All methods are safe for
// concurrent use.
type Map struct {
	mu sync.Mutex

	containerID string
	opts        Options
	registry    *Registry
	logger      *slog.Logger
	tracker     Tracker

	markers      []*Marker
	state        filter.State
	userLocation *geo.Point
	center       geo.Point
	zoom         int
	notices      []Notice
	destroyed    bool

	// now is swappable for tests.
	now func() time.Time
}

func newMap(containerID string, opts Options, reg *Registry, logger *slog.Logger) *Map {
	return &Map{
		containerID: containerID,
		opts:        opts,
		registry:    reg,
		logger:      logger.With("container", containerID),
		center:      opts.Center,
		zoom:        opts.Zoom,
		now:         time.Now,
	}
}

// ContainerID returns the page container this map is bound to.
func (m *Map) ContainerID() string { return m.containerID }

// SetTracker attaches an interaction tracker. A nil tracker disables
// analytics.
func (m *Map) SetTracker(t Tracker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tracker = t
}

// Render replaces all markers with one per event that has valid coordinates.
// Events without coordinates are skipped and logged. The current filter
// state is re-applied to the fresh markers.
func (m *Map) Render(events []model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return
	}

	m.markers = m.markers[:0]
	for i := range events {
		e := events[i]
		if !e.HasCoordinates() {
			m.logger.Warn("event missing coordinates, skipping", "event_id", e.ID, "title", e.Title)
			continue
		}
		m.markers = append(m.markers, newMarker(e))
	}
	m.applyFiltersLocked()
}

// LoadEvents renders the upstream event list. A transport failure degrades
// to an inline warning plus the built-in demo dataset instead of an empty
// map.
func (m *Map) LoadEvents(ctx context.Context, src EventSource) {
	events, err := src.MapEvents(ctx)
	if err != nil {
		m.logger.Error("loading events failed", "error", err)
		m.pushNotice(NoticeWarning, "Не удалось загрузить мероприятия")
		m.Render(model.DemoEvents())
		return
	}
	m.Render(events)
}

// SetState replaces the filter state and re-runs the visibility pass,
// returning the number of visible markers.
func (m *Map) SetState(s filter.State) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	loc := m.userLocation
	m.state = s
	if s.UserLocation == nil {
		m.state.UserLocation = loc
	} else {
		m.userLocation = s.UserLocation
	}
	return m.applyFiltersLocked()
}

// State returns a copy of the current filter state.
func (m *Map) State() filter.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ApplyFilters recomputes marker visibility and returns the visible count.
func (m *Map) ApplyFilters() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyFiltersLocked()
}

func (m *Map) applyFiltersLocked() int {
	now := m.now()
	visible := 0
	for _, mk := range m.markers {
		mk.Visible = filter.VisibleAt(&mk.Event, &m.state, now)
		if mk.Visible {
			visible++
		}
	}
	return visible
}

// ResetFilters deactivates every filter, forgets the user location and
// restores the initial viewport.
func (m *Map) ResetFilters() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = filter.State{}
	m.userLocation = nil
	m.center = m.opts.Center
	m.zoom = m.opts.Zoom
	m.applyFiltersLocked()
}

// Markers returns a snapshot copy of all markers, visible or not. Copies
// keep later filter and highlight passes from racing with callers still
// holding the slice.
func (m *Map) Markers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Marker, len(m.markers))
	for i, mk := range m.markers {
		out[i] = *mk
	}
	return out
}

// VisibleMarkers returns snapshot copies of the markers passing the current
// filters.
func (m *Map) VisibleMarkers() []Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Marker, 0, len(m.markers))
	for _, mk := range m.markers {
		if mk.Visible {
			out = append(out, *mk)
		}
	}
	return out
}

// Viewport returns the current map centre and zoom.
func (m *Map) Viewport() (geo.Point, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.center, m.zoom
}

// UserLocation returns the located user position, or nil.
func (m *Map) UserLocation() *geo.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userLocation
}

// OpenBalloon reports a balloon open on a marker: it tracks the view and
// returns the balloon content view model.
func (m *Map) OpenBalloon(ctx context.Context, eventID int) (*BalloonView, bool) {
	mk, ok := m.markerByID(eventID)
	if !ok {
		return nil, false
	}
	m.track(ctx, eventID, false)
	v := NewBalloonView(&mk.Event)
	return &v, true
}

// ClickMarker reports a marker click: it tracks the click and returns the
// sidebar content view model for the detail panel.
func (m *Map) ClickMarker(ctx context.Context, eventID int) (*SidebarView, bool) {
	mk, ok := m.markerByID(eventID)
	if !ok {
		return nil, false
	}
	m.track(ctx, eventID, true)
	v := NewSidebarView(&mk.Event)
	return &v, true
}

// HighlightMarker swaps a marker's icon to the highlight preset, used while
// the matching calendar entry or sidebar card is focused. Returns false when
// no marker exists for the event.
func (m *Map) HighlightMarker(eventID int) bool {
	mk, ok := m.markerByID(eventID)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mk.Preset = HighlightPreset
	return true
}

// UnhighlightMarker restores the marker's type-derived icon preset.
func (m *Map) UnhighlightMarker(eventID int) bool {
	mk, ok := m.markerByID(eventID)
	if !ok {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	mk.Preset = PresetFor(&mk.Event)
	return true
}

// UserMarker returns the marker for the located user position, or nil when
// geolocation has not run.
func (m *Map) UserMarker() *Marker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userLocation == nil {
		return nil
	}
	return &Marker{
		Coords:  *m.userLocation,
		Preset:  UserPreset,
		Hint:    "Ваше местоположение",
		Visible: true,
	}
}

func (m *Map) markerByID(eventID int) (*Marker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mk := range m.markers {
		if mk.Event.ID == eventID {
			return mk, true
		}
	}
	return nil, false
}

// track is fire and forget: analytics failures never surface to the user.
func (m *Map) track(ctx context.Context, eventID int, click bool) {
	m.mu.Lock()
	tracker := m.tracker
	m.mu.Unlock()
	if tracker == nil {
		return
	}
	var err error
	if click {
		err = tracker.TrackClick(ctx, eventID)
	} else {
		err = tracker.TrackView(ctx, eventID)
	}
	if err != nil {
		m.logger.Warn("interaction tracking failed", "event_id", eventID, "error", err)
	}
}

// Notices drains and returns the pending inline notices.
func (m *Map) Notices() []Notice {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.notices
	m.notices = nil
	return out
}

func (m *Map) pushNotice(level NoticeLevel, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notices = append(m.notices, Notice{Level: level, Message: message})
}

// Destroy releases the map and removes it from the registry. It is
// idempotent and safe to call on a map that never finished initializing.
func (m *Map) Destroy() {
	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}
	m.destroyed = true
	m.markers = nil
	m.userLocation = nil
	m.notices = nil
	reg := m.registry
	m.mu.Unlock()

	if reg != nil {
		reg.remove(m.containerID)
	}
}

// Destroyed reports whether Destroy has been called.
func (m *Map) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}
