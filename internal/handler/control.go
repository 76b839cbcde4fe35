package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"eventhub-gateway/internal/push"
	"eventhub-gateway/internal/relay"
	"eventhub-gateway/internal/theme"
)

// ─── Theme ────────────────────────────────────────────────────────────────────

// GetTheme handles GET /api/theme
func (g *Gateway) GetTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"theme": string(g.themes.Current())})
}

// SetTheme handles POST /api/theme
// Sets an explicit theme choice; the preference is persisted and broadcast
// to every open tab.
func (g *Gateway) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Theme theme.Theme `json:"theme"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !req.Theme.Valid() {
		writeError(w, http.StatusBadRequest, "theme must be \"light\" or \"dark\"")
		return
	}

	g.themes.Set(req.Theme)
	writeJSON(w, http.StatusOK, map[string]string{"theme": string(req.Theme)})
}

// ToggleTheme handles POST /api/theme/toggle
func (g *Gateway) ToggleTheme(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"theme": string(g.themes.Toggle())})
}

// ─── Push subscriptions ───────────────────────────────────────────────────────

// PushStatus handles GET /api/push/status
func (g *Gateway) PushStatus(w http.ResponseWriter, r *http.Request) {
	state, sub := g.pushes.Status()
	resp := map[string]any{"state": string(state)}
	if sub != nil {
		resp["endpoint"] = sub.Endpoint
	}
	writeJSON(w, http.StatusOK, resp)
}

// PushSubscribe handles POST /api/push/subscribe
func (g *Gateway) PushSubscribe(w http.ResponseWriter, r *http.Request) {
	sub, err := g.pushes.Subscribe(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, push.ErrUnsupported):
			writeError(w, http.StatusNotImplemented, "push is not supported on this device")
		case errors.Is(err, push.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, "notification permission denied")
		default:
			writeError(w, http.StatusBadGateway, "subscription failed")
		}
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// PushUnsubscribe handles POST /api/push/unsubscribe
func (g *Gateway) PushUnsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := g.pushes.Unsubscribe(r.Context()); err != nil {
		if errors.Is(err, push.ErrNotSubscribed) {
			writeError(w, http.StatusConflict, "no active subscription")
			return
		}
		writeError(w, http.StatusBadGateway, "unsubscribe failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unsubscribed"})
}

// ─── Interaction relays ───────────────────────────────────────────────────────

// eventID parses the {id} route parameter.
func eventID(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "id"))
}

// relayOrQueue runs the upstream call; on failure the request is queued for
// background replay instead of being lost.
func (g *Gateway) relayOrQueue(w http.ResponseWriter, r *http.Request, path string, call func() error) {
	if err := call(); err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	} else if g.syncer == nil {
		g.logger.Error("[RELAY] Upstream call failed, no sync queue", "path", path, "error", err)
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	} else {
		g.logger.Warn("[RELAY] Upstream call failed, queueing for replay", "path", path, "error", err)
	}

	if _, err := g.syncer.Enqueue(r.Context(), http.MethodPost, g.upstreamBase+path, nil, ""); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// TrackView handles POST /api/events/{id}/view
func (g *Gateway) TrackView(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	path := fmt.Sprintf("/api/events/%d/track_view/", id)
	g.relayOrQueue(w, r, path, func() error { return g.upstream.TrackView(r.Context(), id) })
}

// TrackClick handles POST /api/events/{id}/click
func (g *Gateway) TrackClick(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}
	path := fmt.Sprintf("/api/events/%d/track_click/", id)
	g.relayOrQueue(w, r, path, func() error { return g.upstream.TrackClick(r.Context(), id) })
}

// ToggleFavorite handles POST /api/events/{id}/favorite
// Relays the toggle and reports the resulting state; a transport failure
// queues the toggle for background replay.
func (g *Gateway) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	id, err := eventID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid event id")
		return
	}

	status, err := g.upstream.ToggleFavorite(r.Context(), id)
	if err == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": status})
		return
	}
	if g.syncer == nil {
		writeError(w, http.StatusBadGateway, "upstream unavailable")
		return
	}

	g.logger.Warn("[RELAY] Favorite toggle failed, queueing for replay", "event_id", id, "error", err)
	path := fmt.Sprintf("/event/%d/favorite/", id)
	if _, err := g.syncer.Enqueue(r.Context(), http.MethodPost, g.upstreamBase+path, nil, ""); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to queue request")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ─── Worker relay ─────────────────────────────────────────────────────────────

// ServeWS handles GET /ws
// Connects a page to the relay hub. Messages a page sends are rebroadcast
// to every other open tab, which is how notification clicks and theme
// changes reach pages that did not originate them.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	if g.hub == nil {
		writeError(w, http.StatusNotImplemented, "relay disabled")
		return
	}
	err := relay.ServeWS(g.hub, w, r, func(msg relay.Message) {
		if err := g.hub.Publish(msg.Type, msg.Data); err != nil {
			g.logger.Error("[RELAY] Rebroadcast failed", "type", msg.Type, "error", err)
		}
	})
	if err != nil {
		g.logger.Error("[RELAY] Upgrade failed", "error", err)
	}
}
