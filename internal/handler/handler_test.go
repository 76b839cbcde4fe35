package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"eventhub-gateway/internal/mapview"
	"eventhub-gateway/internal/push"
	"eventhub-gateway/internal/theme"
	"eventhub-gateway/internal/upstream"
	"eventhub-gateway/internal/worker"
)

// upstreamStub runs a fake EventHub API for handler tests.
func upstreamStub(t *testing.T, failTracking bool) *httptest.Server {
	t.Helper()
	start := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	events := fmt.Sprintf(`[
		{"id":1,"title":"Концерт","latitude":55.75,"longitude":37.62,"price":500,"category":"music","category_name":"Музыка","start_date":%q},
		{"id":2,"title":"Выставка","latitude":55.76,"longitude":37.64,"price":0,"category":"art","category_name":"Искусство","start_date":%q}
	]`, start, start)

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/events/" || r.URL.Path == "/api/events/calendar/":
			fmt.Fprint(w, events)
		case strings.Contains(r.URL.Path, "/track_"):
			if failTracking {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case strings.Contains(r.URL.Path, "/favorite/"):
			fmt.Fprint(w, `{"status":"added"}`)
		case r.URL.Path == "/api/notifications/subscription/":
			// ok
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestRouter(t *testing.T, upstreamURL string) (*chi.Mux, *Gateway, *worker.MemoryQueue) {
	t.Helper()
	client, err := upstream.New(upstreamURL, "token")
	if err != nil {
		t.Fatal(err)
	}

	themes := theme.NewManager(nil, theme.Light, nil, nil)
	pushes := push.NewManager(
		push.NewEndpointService("https://push.example"),
		push.StaticPermission(push.PermissionGranted),
		client,
		nil,
		"vapid-key",
		nil,
	)
	queue := worker.NewMemoryQueue()
	syncer := worker.NewSyncer(queue, nil, nil)

	gw := NewGateway(mapview.NewRegistry(nil), client, upstreamURL, themes, pushes, syncer, nil, nil)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Route("/map", func(r chi.Router) {
			r.Get("/markers", gw.MapMarkers)
			r.Get("/markers/{id}/balloon", gw.MapBalloon)
			r.Post("/markers/{id}/click", gw.MapMarkerClick)
			r.Get("/heatmap", gw.MapHeatmap)
			r.Get("/clusters", gw.MapClusters)
			r.Get("/stats", gw.MapStats)
			r.Post("/locate", gw.MapLocate)
			r.Delete("/", gw.MapDestroy)
		})
		r.Get("/calendar/events", gw.CalendarEvents)
		r.Get("/calendar/feed.ics", gw.CalendarFeed)
		r.Route("/theme", func(r chi.Router) {
			r.Get("/", gw.GetTheme)
			r.Post("/", gw.SetTheme)
			r.Post("/toggle", gw.ToggleTheme)
		})
		r.Route("/push", func(r chi.Router) {
			r.Get("/status", gw.PushStatus)
			r.Post("/subscribe", gw.PushSubscribe)
			r.Post("/unsubscribe", gw.PushUnsubscribe)
		})
		r.Route("/events/{id}", func(r chi.Router) {
			r.Post("/view", gw.TrackView)
			r.Post("/favorite", gw.ToggleFavorite)
		})
	})
	return r, gw, queue
}

func TestMapMarkersAppliesFilters(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers?price=free", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Markers []struct {
			Event struct {
				ID int `json:"id"`
			} `json:"event"`
		} `json:"markers"`
		Stats mapview.Stats `json:"stats"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(resp.Markers) != 1 || resp.Markers[0].Event.ID != 2 {
		t.Errorf("price=free should keep only the free event, got %+v", resp.Markers)
	}
	if resp.Stats.Total != 2 || resp.Stats.Visible != 1 {
		t.Errorf("unexpected stats: %+v", resp.Stats)
	}
}

func TestMapHeatmap(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/heatmap", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Points []mapview.HeatmapPoint `json:"points"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Points) != 2 {
		t.Errorf("expected 2 heatmap points, got %d", len(resp.Points))
	}
}

func TestMapBalloonUnknownMarker(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers/99/balloon", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers/abc/balloon", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a non-numeric id, got %d", w.Code)
	}
}

func TestMapLocateFailureKeepsMap(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	body := strings.NewReader(`{"error_code":1}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/map/locate", body))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Located bool             `json:"located"`
		Notices []mapview.Notice `json:"notices"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Located {
		t.Error("permission denial must not locate the user")
	}
	if len(resp.Notices) != 1 || !strings.Contains(resp.Notices[0].Message, "геолокации запрещен") {
		t.Errorf("expected the permission notice, got %+v", resp.Notices)
	}
}

func TestMapLocateSuccess(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	body := strings.NewReader(`{"latitude":55.755,"longitude":37.625}`)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/map/locate", body))

	var resp struct {
		Located bool `json:"located"`
		Zoom    int  `json:"zoom"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Located || resp.Zoom != 13 {
		t.Errorf("expected located at zoom 13, got %+v", resp)
	}
}

func TestCalendarFeedContentType(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/feed.ics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/calendar") {
		t.Errorf("expected text/calendar, got %s", ct)
	}
	body := w.Body.String()
	for _, field := range []string{"BEGIN:VCALENDAR", "BEGIN:VEVENT", "SUMMARY:Концерт"} {
		if !strings.Contains(body, field) {
			t.Errorf("feed missing %s", field)
		}
	}
}

func TestCalendarEventsOpenEndedRange(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	// A lone lower bound is accepted and drops everything starting before it.
	cutoff := time.Now().Add(48 * time.Hour).UTC().Format(time.RFC3339)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/events?start="+cutoff, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("a lone start bound should be accepted, got %d: %s", w.Code, w.Body.String())
	}
	if body := strings.TrimSpace(w.Body.String()); body != "[]" {
		t.Errorf("expected no entries past the bound, got %s", body)
	}

	// A lone upper bound keeps everything starting before it.
	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/events?end="+cutoff, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("a lone end bound should be accepted, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "Концерт") || !strings.Contains(w.Body.String(), "Выставка") {
		t.Errorf("expected both entries inside the bound, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/calendar/events?start=garbage", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("a malformed bound should 400, got %d", w.Code)
	}
}

func TestThemeToggle(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/theme/", nil))
	if !strings.Contains(w.Body.String(), `"light"`) {
		t.Errorf("expected the light default, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/theme/toggle", nil))
	if !strings.Contains(w.Body.String(), `"dark"`) {
		t.Errorf("toggle should flip to dark, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/theme/", strings.NewReader(`{"theme":"sepia"}`)))
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid themes should 400, got %d", w.Code)
	}
}

func TestPushSubscribeLifecycle(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/push/subscribe", nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/push/status", nil))
	if !strings.Contains(w.Body.String(), `"subscribed"`) {
		t.Errorf("expected subscribed state, got %s", w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/push/unsubscribe", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/push/unsubscribe", nil))
	if w.Code != http.StatusConflict {
		t.Errorf("second unsubscribe should 409, got %d", w.Code)
	}
}

func TestTrackViewRelaysUpstream(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, queue := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events/1/view", nil))
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
	if queue.Len() != 0 {
		t.Error("successful relay must not queue")
	}
}

func TestTrackViewQueuesOnUpstreamFailure(t *testing.T) {
	srv := upstreamStub(t, true)
	defer srv.Close()
	router, _, queue := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events/1/view", nil))
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "queued") {
		t.Errorf("expected a queued status, got %s", w.Body.String())
	}
	if queue.Len() != 1 {
		t.Errorf("failed relay should queue exactly once, got %d", queue.Len())
	}
}

func TestToggleFavorite(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/events/2/favorite", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"added"`) {
		t.Errorf("expected the upstream status, got %s", w.Body.String())
	}
}

func TestMapRejectsUnknownContainers(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, gw, _ := newTestRouter(t, srv.URL)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers?container=evil-div", nil))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("an unknown container should 400, got %d", w.Code)
	}
	if got := len(gw.maps.Containers()); got != 0 {
		t.Errorf("rejected containers must not register maps, got %d", got)
	}

	// The known page containers still work.
	for _, id := range []string{"map", "mini-map", "search-map", "event-map"} {
		w = httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers?container="+id, nil))
		if w.Code != http.StatusOK {
			t.Errorf("container %s should be accepted, got %d", id, w.Code)
		}
	}
}

func TestMapDestroy(t *testing.T) {
	srv := upstreamStub(t, false)
	defer srv.Close()
	router, _, _ := newTestRouter(t, srv.URL)

	// Open the default map first.
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/map/markers", nil))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/map/", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/map/", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("destroying an absent map should 404, got %d", w.Code)
	}
}
