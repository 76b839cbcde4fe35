// Package model defines the core domain types for the event discovery gateway.
package model

import "time"

// Event represents a discoverable event as served by the upstream EventHub API.
// The gateway never mutates events; it only reads fields to decide rendering
// and visibility.
type Event struct {
	ID                 int       `json:"id"`
	Title              string    `json:"title"`
	Description        string    `json:"description,omitempty"`
	ShortDescription   string    `json:"short_description,omitempty"`
	Location           string    `json:"location"`
	Latitude           float64   `json:"latitude,omitempty"`
	Longitude          float64   `json:"longitude,omitempty"`
	StartDate          time.Time `json:"start_date,omitempty"`
	Date               time.Time `json:"date,omitempty"`
	Price              float64   `json:"price"`
	Category           string    `json:"category,omitempty"`
	CategoryName       string    `json:"category_name,omitempty"`
	EventType          string    `json:"event_type,omitempty"`
	EventTypeName      string    `json:"event_type_name,omitempty"`
	OrganizerName      string    `json:"organizer_name,omitempty"`
	AverageRating      float64   `json:"average_rating,omitempty"`
	RegistrationsCount int       `json:"registrations_count,omitempty"`
	AvailableSpots     int       `json:"available_spots,omitempty"`
	Badges             []string  `json:"badges,omitempty"`
	URL                string    `json:"url,omitempty"`
}

// StartsAt returns the event start time. Two upstream serializers disagree on
// the field name; start_date is canonical and date is the fallback.
func (e *Event) StartsAt() time.Time {
	if !e.StartDate.IsZero() {
		return e.StartDate
	}
	return e.Date
}

// HasCoordinates reports whether the event can be placed on a map.
func (e *Event) HasCoordinates() bool {
	return e.Latitude != 0 && e.Longitude != 0
}

// HasBadge reports whether the event carries the given badge tag.
func (e *Event) HasBadge(badge string) bool {
	for _, b := range e.Badges {
		if b == badge {
			return true
		}
	}
	return false
}

// IsFree reports whether the event costs nothing.
func (e *Event) IsFree() bool {
	return e.Price == 0
}

// DetailURL returns the path of the event detail page.
func (e *Event) DetailURL() string {
	if e.URL != "" {
		return e.URL
	}
	return DetailPath(e.ID)
}

// PushSubscription is the opaque browser-issued push credential mirrored to
// the upstream server. At most one subscription exists per device.
type PushSubscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscriptionKeys carries the encryption material of a push subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
