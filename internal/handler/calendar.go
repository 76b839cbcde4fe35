package handler

import (
	"net/http"
	"time"

	"eventhub-gateway/internal/calendar"
)

// CalendarEvents handles GET /api/calendar/events
// Returns the calendar entries, optionally narrowed to the ?start=&end=
// RFC 3339 range the calendar widget is displaying.
func (g *Gateway) CalendarEvents(w http.ResponseWriter, r *http.Request) {
	events, err := g.upstream.CalendarEvents(r.Context())
	if err != nil {
		g.logger.Error("[CALENDAR] Upstream fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load calendar events")
		return
	}

	entries := calendar.Entries(events)

	// Either bound may be absent; a zero bound leaves that side open.
	q := r.URL.Query()
	var start, end time.Time
	if raw := q.Get("start"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid start")
			return
		}
		start = t
	}
	if raw := q.Get("end"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid end")
			return
		}
		end = t
	}
	if !start.IsZero() || !end.IsZero() {
		entries = calendar.Range(entries, start, end)
	}

	if entries == nil {
		entries = []calendar.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// CalendarFeed handles GET /api/calendar/feed.ics
// Streams the events as an iCalendar subscription feed.
func (g *Gateway) CalendarFeed(w http.ResponseWriter, r *http.Request) {
	events, err := g.upstream.CalendarEvents(r.Context())
	if err != nil {
		g.logger.Error("[CALENDAR] Upstream fetch failed", "error", err)
		writeError(w, http.StatusBadGateway, "failed to load calendar events")
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="eventhub.ics"`)
	calendar.WriteICS(w, calendar.Entries(events), time.Now().UTC())
}
