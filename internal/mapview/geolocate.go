package mapview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"eventhub-gateway/internal/geo"
)

// PositionErrorCode mirrors the browser geolocation error codes.
type PositionErrorCode int

const (
	PermissionDenied    PositionErrorCode = 1
	PositionUnavailable PositionErrorCode = 2
	PositionTimeout     PositionErrorCode = 3
)

// PositionError is a failed geolocation attempt.
type PositionError struct {
	Code PositionErrorCode
}

func (e *PositionError) Error() string {
	return fmt.Sprintf("geolocation error: code %d", e.Code)
}

// Message returns the user-facing text for the error code.
func (e *PositionError) Message() string {
	switch e.Code {
	case PermissionDenied:
		return "Доступ к геолокации запрещен. Разрешите доступ в настройках браузера."
	case PositionUnavailable:
		return "Информация о местоположении недоступна."
	case PositionTimeout:
		return "Время ожидания определения местоположения истекло."
	default:
		return "Не удалось определить ваше местоположение"
	}
}

// PositionOptions tunes a single-shot position request.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaximumAge   time.Duration
}

// DefaultPositionOptions matches the map's geolocation request: high
// accuracy, a 10 second timeout and a 60 second cached-position tolerance.
func DefaultPositionOptions() PositionOptions {
	return PositionOptions{
		HighAccuracy: true,
		Timeout:      10 * time.Second,
		MaximumAge:   60 * time.Second,
	}
}

// Locator resolves the device position once.
type Locator interface {
	CurrentPosition(ctx context.Context, opts PositionOptions) (geo.Point, error)
}

// LocateUser runs the geolocation flow: on success the user marker is
// placed, the viewport recenters, the radius filter gets its default and
// visibility is recomputed. On failure a human-readable notice is pushed
// and markers and filters stay untouched. The returned error is nil exactly
// when the position was resolved.
func (m *Map) LocateUser(ctx context.Context, locator Locator) error {
	opts := DefaultPositionOptions()
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	pos, err := locator.CurrentPosition(ctx, opts)
	if err != nil {
		var perr *PositionError
		if errors.Is(err, context.DeadlineExceeded) {
			perr = &PositionError{Code: PositionTimeout}
		} else if !errors.As(err, &perr) {
			perr = &PositionError{}
		}
		m.logger.Error("geolocation failed", "error", err)
		m.pushNotice(NoticeError, perr.Message())
		return perr
	}

	m.mu.Lock()
	m.userLocation = &pos
	m.state.UserLocation = &pos
	m.state.RadiusKm = DefaultRadiusKm
	m.center = pos
	m.zoom = locatedZoom
	m.applyFiltersLocked()
	m.mu.Unlock()

	m.pushNotice(NoticeSuccess,
		fmt.Sprintf("Ваше местоположение определено! Показаны мероприятия в радиусе %d км", DefaultRadiusKm))
	return nil
}
