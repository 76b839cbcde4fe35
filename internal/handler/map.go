package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventhub-gateway/internal/filter"
	"eventhub-gateway/internal/geo"
	"eventhub-gateway/internal/mapview"
)

// knownContainers are the page elements a map can be mounted in: the main
// events map, the homepage mini map, the event detail map and the search
// results map. Arbitrary ids would let clients grow the registry without
// bound.
var knownContainers = map[string]bool{
	"map":              true,
	"mini-map":         true,
	"search-map":       true,
	DefaultContainerID: true,
}

// mapFor resolves the map addressed by the request, opening and loading it
// on first use. The ?container= query selects between the known map
// containers; the event detail map is the default. A false result means the
// error response was already written.
func (g *Gateway) mapFor(w http.ResponseWriter, r *http.Request) (*mapview.Map, bool) {
	containerID := r.URL.Query().Get("container")
	if containerID == "" {
		containerID = DefaultContainerID
	}
	if !knownContainers[containerID] {
		writeError(w, http.StatusBadRequest, "unknown map container")
		return nil, false
	}
	m, fresh := g.maps.Open(containerID, mapview.DefaultOptions())
	if fresh {
		m.SetTracker(g.upstream)
		m.LoadEvents(r.Context(), g.upstream)
	}
	return m, true
}

// markersResponse is the payload of GET /api/map/markers.
type markersResponse struct {
	Markers []mapview.Marker `json:"markers"`
	Stats   mapview.Stats    `json:"stats"`
	Notices []mapview.Notice `json:"notices,omitempty"`
}

// MapMarkers handles GET /api/map/markers
// Applies the filter query parameters and returns the visible markers with
// the filter statistics.
func (g *Gateway) MapMarkers(w http.ResponseWriter, r *http.Request) {
	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	m.SetState(filter.ParseQuery(r.URL.Query()))

	writeJSON(w, http.StatusOK, markersResponse{
		Markers: m.VisibleMarkers(),
		Stats:   m.Stats(),
		Notices: m.Notices(),
	})
}

// MapHeatmap handles GET /api/map/heatmap
// Returns the weighted heatmap points for the currently visible events.
func (g *Gateway) MapHeatmap(w http.ResponseWriter, r *http.Request) {
	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}

	points := m.HeatmapPoints()
	if points == nil {
		points = []mapview.HeatmapPoint{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"points": points})
}

// MapClusters handles GET /api/map/clusters?zoom=N
// Returns the marker clusters at the given zoom level.
func (g *Gateway) MapClusters(w http.ResponseWriter, r *http.Request) {
	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}

	_, zoom := m.Viewport()
	if raw := r.URL.Query().Get("zoom"); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid zoom")
			return
		}
		zoom = z
	}

	clusters := m.Clusters(zoom)
	if clusters == nil {
		clusters = []mapview.Cluster{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"clusters": clusters})
}

// MapStats handles GET /api/map/stats
func (g *Gateway) MapStats(w http.ResponseWriter, r *http.Request) {
	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m.Stats())
}

// MapReload handles POST /api/map/reload
// Refetches the event list from the upstream and rerenders the markers.
func (g *Gateway) MapReload(w http.ResponseWriter, r *http.Request) {
	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	m.LoadEvents(r.Context(), g.upstream)

	writeJSON(w, http.StatusOK, markersResponse{
		Markers: m.VisibleMarkers(),
		Stats:   m.Stats(),
		Notices: m.Notices(),
	})
}

// locateRequest carries the device position resolved by the page, or the
// geolocation error code when resolution failed.
type locateRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	ErrorCode int     `json:"error_code,omitempty"`
}

// reportedPosition adapts a page-resolved position to the locator flow.
type reportedPosition struct {
	point geo.Point
	fail  *mapview.PositionError
}

func (p reportedPosition) CurrentPosition(context.Context, mapview.PositionOptions) (geo.Point, error) {
	if p.fail != nil {
		return geo.Point{}, p.fail
	}
	return p.point, nil
}

// MapLocate handles POST /api/map/locate
// On success the user marker is placed, the viewport recentres and the
// radius filter activates. On failure the human-readable notice is returned
// and the map stays untouched.
func (g *Gateway) MapLocate(w http.ResponseWriter, r *http.Request) {
	var req locateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos := reportedPosition{point: geo.Point{Lat: req.Latitude, Lon: req.Longitude}}
	if req.ErrorCode != 0 {
		pos.fail = &mapview.PositionError{Code: mapview.PositionErrorCode(req.ErrorCode)}
	}

	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	err := m.LocateUser(r.Context(), pos)

	center, zoom := m.Viewport()
	resp := map[string]any{
		"located": err == nil,
		"center":  center,
		"zoom":    zoom,
		"notices": m.Notices(),
	}
	if err == nil {
		resp["markers"] = m.VisibleMarkers()
		resp["stats"] = m.Stats()
		resp["user_marker"] = m.UserMarker()
	}
	writeJSON(w, http.StatusOK, resp)
}

// MapHighlight handles POST /api/map/markers/{id}/highlight
// Swaps the marker to the highlight icon; DELETE restores the regular one.
func (g *Gateway) MapHighlight(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	if r.Method == http.MethodDelete {
		ok = m.UnhighlightMarker(id)
	} else {
		ok = m.HighlightMarker(id)
	}
	if !ok {
		writeError(w, http.StatusNotFound, "marker not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// MapBalloon handles GET /api/map/markers/{id}/balloon
// Returns the balloon content for a marker and records the view.
func (g *Gateway) MapBalloon(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	view, ok := m.OpenBalloon(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "marker not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MapMarkerClick handles POST /api/map/markers/{id}/click
// Returns the sidebar content for a marker and records the click.
func (g *Gateway) MapMarkerClick(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	m, ok := g.mapFor(w, r)
	if !ok {
		return
	}
	view, ok := m.ClickMarker(r.Context(), id)
	if !ok {
		writeError(w, http.StatusNotFound, "marker not found")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MapDestroy handles DELETE /api/map
// Tears the map down and releases its container registration.
func (g *Gateway) MapDestroy(w http.ResponseWriter, r *http.Request) {
	containerID := r.URL.Query().Get("container")
	if containerID == "" {
		containerID = DefaultContainerID
	}

	m, ok := g.maps.Get(containerID)
	if !ok {
		writeError(w, http.StatusNotFound, "map not found")
		return
	}
	m.Destroy()
	writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed"})
}
