package mapview

import "eventhub-gateway/internal/model"

// MaxHeatmapWeight caps the density weight of a single event.
const MaxHeatmapWeight = 5

// HeatmapPoint is one weighted point of the density overlay.
type HeatmapPoint struct {
	Lat    float64 `json:"lat"`
	Lon    float64 `json:"lon"`
	Weight int     `json:"weight"`
}

// HeatmapWeight scores how strongly an event contributes to the heatmap:
// base 1, bumped by registration volume, high rating and the trending
// badge, capped at MaxHeatmapWeight.
func HeatmapWeight(e *model.Event) int {
	weight := 1
	if e.RegistrationsCount > 50 {
		weight += 2
	}
	if e.RegistrationsCount > 100 {
		weight += 3
	}
	if e.AverageRating > 4.5 {
		weight += 1
	}
	if e.HasBadge("trending") {
		weight += 2
	}
	if weight > MaxHeatmapWeight {
		weight = MaxHeatmapWeight
	}
	return weight
}

// HeatmapPoints builds the heatmap layer data from the rendered markers.
// Events without coordinates never reach the marker list, so every marker
// contributes a point.
func (m *Map) HeatmapPoints() []HeatmapPoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.opts.HeatmapEnabled {
		return nil
	}
	points := make([]HeatmapPoint, 0, len(m.markers))
	for _, mk := range m.markers {
		points = append(points, HeatmapPoint{
			Lat:    mk.Coords.Lat,
			Lon:    mk.Coords.Lon,
			Weight: HeatmapWeight(&mk.Event),
		})
	}
	return points
}
