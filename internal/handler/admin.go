package handler

import (
	"errors"
	"net/http"
	"strconv"

	"eventhub-gateway/internal/repository"
)

// defaultDeadLetterLimit bounds the dead-letter listing when no ?limit= is
// given.
const defaultDeadLetterLimit = 50

// Admin exposes the operator endpoints backed directly by the repositories:
// the mirrored push subscriptions and the sync requests that never reached
// the upstream.
type Admin struct {
	subs        *repository.SubscriptionRepository
	deadLetters *repository.DeadLetterRepository
}

// NewAdmin constructs the admin handlers.
func NewAdmin(subs *repository.SubscriptionRepository, deadLetters *repository.DeadLetterRepository) *Admin {
	return &Admin{subs: subs, deadLetters: deadLetters}
}

// Subscriptions handles GET /api/admin/subscriptions
// Lists every mirrored subscription; ?endpoint= narrows it to one.
func (a *Admin) Subscriptions(w http.ResponseWriter, r *http.Request) {
	if endpoint := r.URL.Query().Get("endpoint"); endpoint != "" {
		sub, err := a.subs.GetByEndpoint(r.Context(), endpoint)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				writeError(w, http.StatusNotFound, "subscription not found")
				return
			}
			writeError(w, http.StatusInternalServerError, "failed to load subscription")
			return
		}
		writeJSON(w, http.StatusOK, sub)
		return
	}

	subs, err := a.subs.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list subscriptions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(subs), "subscriptions": subs})
}

// DeadLetters handles GET /api/admin/dead-letters?limit=N
func (a *Admin) DeadLetters(w http.ResponseWriter, r *http.Request) {
	limit := defaultDeadLetterLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	records, err := a.deadLetters.List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list dead letters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(records), "dead_letters": records})
}
