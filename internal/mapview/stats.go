package mapview

import "time"

// Stats summarises the rendered events for the counter display next to the
// map.
type Stats struct {
	Total           int            `json:"total"`
	WithCoordinates int            `json:"with_coordinates"`
	Visible         int            `json:"visible"`
	Today           int            `json:"today"`
	ByCategory      map[string]int `json:"by_category"`
	UserLocated     bool           `json:"user_located"`
}

// Stats recomputes the counter values from the current markers.
func (m *Map) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	s := Stats{
		Total:           len(m.markers),
		WithCoordinates: len(m.markers),
		ByCategory:      make(map[string]int),
		UserLocated:     m.userLocation != nil,
	}
	for _, mk := range m.markers {
		if mk.Visible {
			s.Visible++
		}
		if sameCalendarDay(mk.Event.StartsAt(), now) {
			s.Today++
		}
		category := mk.Event.CategoryName
		if category == "" {
			category = "Другое"
		}
		s.ByCategory[category]++
	}
	return s
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
