// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the gateway's map, calendar, theme and
// push layers.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/goccy/go-json"

	"eventhub-gateway/internal/mapview"
	"eventhub-gateway/internal/model"
	"eventhub-gateway/internal/push"
	"eventhub-gateway/internal/relay"
	"eventhub-gateway/internal/theme"
	"eventhub-gateway/internal/upstream"
	"eventhub-gateway/internal/worker"
)

// DefaultContainerID is the map container the page boots with.
const DefaultContainerID = "event-map"

// Gateway holds all HTTP handlers for the discovery API.
type Gateway struct {
	maps     *mapview.Registry
	upstream *upstream.Client
	// upstreamBase is used to compose replayable absolute URLs for the
	// sync queue.
	upstreamBase string
	themes       *theme.Manager
	pushes       *push.Manager
	syncer       *worker.Syncer
	hub          *relay.Hub
	logger       *slog.Logger
}

// NewGateway constructs a Gateway. syncer and hub may be nil; the
// corresponding fallbacks are then skipped.
func NewGateway(
	maps *mapview.Registry,
	client *upstream.Client,
	upstreamBase string,
	themes *theme.Manager,
	pushes *push.Manager,
	syncer *worker.Syncer,
	hub *relay.Hub,
	logger *slog.Logger,
) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		maps:         maps,
		upstream:     client,
		upstreamBase: upstreamBase,
		themes:       themes,
		pushes:       pushes,
		syncer:       syncer,
		hub:          hub,
		logger:       logger,
	}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(nil, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
