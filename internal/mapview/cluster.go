package mapview

import (
	"math"
	"sort"

	"eventhub-gateway/internal/geo"
)

// clusterZoomThreshold is the zoom level at and above which markers are no
// longer grouped.
const clusterZoomThreshold = 16

// Cluster groups nearby visible markers into a single icon below the zoom
// threshold.
type Cluster struct {
	Center  geo.Point `json:"center"`
	Count   int       `json:"count"`
	Icon    string    `json:"icon"`
	// Markers are snapshot copies taken under the map lock.
	Markers []Marker `json:"markers"`
}

// Cluster icons by tier, smallest groups first.
var clusterIcons = []string{
	"/static/events/img/cluster1.png",
	"/static/events/img/cluster2.png",
	"/static/events/img/cluster3.png",
}

func clusterIcon(count int) string {
	switch {
	case count < 10:
		return clusterIcons[0]
	case count < 50:
		return clusterIcons[1]
	default:
		return clusterIcons[2]
	}
}

// Clusters repaints the cluster layer for the given zoom: visible markers
// are grouped by grid cell, and cells with a single marker stay individual
// markers (Count == 1). At or above the zoom threshold, or with clustering
// disabled, every visible marker is its own cluster.
func (m *Map) Clusters(zoom int) []Cluster {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.opts.ClusteringEnabled || zoom >= clusterZoomThreshold {
		out := make([]Cluster, 0, len(m.markers))
		for _, mk := range m.markers {
			if mk.Visible {
				out = append(out, Cluster{Center: mk.Coords, Count: 1, Markers: []Marker{*mk}})
			}
		}
		return out
	}

	cell := cellSize(zoom)
	grid := make(map[[2]int][]Marker)
	for _, mk := range m.markers {
		if !mk.Visible {
			continue
		}
		key := [2]int{
			int(math.Floor(mk.Coords.Lat / cell)),
			int(math.Floor(mk.Coords.Lon / cell)),
		}
		grid[key] = append(grid[key], *mk)
	}

	out := make([]Cluster, 0, len(grid))
	for _, group := range grid {
		c := Cluster{Count: len(group), Markers: group}
		for _, mk := range group {
			c.Center.Lat += mk.Coords.Lat
			c.Center.Lon += mk.Coords.Lon
		}
		c.Center.Lat /= float64(len(group))
		c.Center.Lon /= float64(len(group))
		if c.Count > 1 {
			c.Icon = clusterIcon(c.Count)
		}
		out = append(out, c)
	}

	// Stable output order for the API response.
	sort.Slice(out, func(i, j int) bool {
		if out[i].Center.Lat != out[j].Center.Lat {
			return out[i].Center.Lat < out[j].Center.Lat
		}
		return out[i].Center.Lon < out[j].Center.Lon
	})
	return out
}

// cellSize halves with every zoom step so clusters dissolve as the user
// zooms in.
func cellSize(zoom int) float64 {
	if zoom < 0 {
		zoom = 0
	}
	return 180 / math.Pow(2, float64(zoom))
}
