// Package filter implements the multi-criteria visibility engine for map
// markers. Each filter is an independent predicate over an event; overall
// visibility is the logical AND of all active predicates, and an inactive
// filter always passes.
package filter

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"eventhub-gateway/internal/geo"
	"eventhub-gateway/internal/model"
)

// Kind identifies one of the supported filters.
type Kind string

const (
	KindCategory     Kind = "category"
	KindPrice        Kind = "price"
	KindDate         Kind = "date"
	KindSearch       Kind = "search"
	KindRadius       Kind = "radius"
	KindRating       Kind = "rating"
	KindParticipants Kind = "participants"
)

// Kinds lists every filter kind in evaluation order.
var Kinds = []Kind{
	KindCategory, KindPrice, KindDate, KindSearch,
	KindRadius, KindRating, KindParticipants,
}

// Price filter values.
const (
	PriceFree = "free"
	PricePaid = "paid"
)

// Date filter values.
const (
	DateToday = "today"
	DateWeek  = "week"
	DateMonth = "month"
)

// All disables a select-style filter.
const All = "all"

// State holds the current value of every filter. The zero value (or "all")
// of a field means that filter is inactive. State is mutated on control
// input and read synchronously during a visibility pass; it is never
// persisted.
type State struct {
	Category        string     `json:"category,omitempty"`
	Price           string     `json:"price,omitempty"`
	Date            string     `json:"date,omitempty"`
	Search          string     `json:"search,omitempty"`
	RadiusKm        float64    `json:"radius,omitempty"`
	MinRating       float64    `json:"rating,omitempty"`
	MinParticipants int        `json:"participants,omitempty"`
	UserLocation    *geo.Point `json:"user_location,omitempty"`
}

// predicate evaluates a single filter against an event. now anchors the
// date filter so a whole visibility pass shares one reference instant.
type predicate func(e *model.Event, s *State, now time.Time) bool

// predicates is the static dispatch table from filter kind to its check.
var predicates = map[Kind]predicate{
	KindCategory:     checkCategory,
	KindPrice:        checkPrice,
	KindDate:         checkDate,
	KindSearch:       checkSearch,
	KindRadius:       checkRadius,
	KindRating:       checkRating,
	KindParticipants: checkParticipants,
}

// Visible reports whether the event passes every active filter, evaluated
// against the current wall clock.
func Visible(e *model.Event, s *State) bool {
	return VisibleAt(e, s, time.Now())
}

// VisibleAt is Visible with an explicit reference time.
func VisibleAt(e *model.Event, s *State, now time.Time) bool {
	for _, kind := range Kinds {
		if !predicates[kind](e, s, now) {
			return false
		}
	}
	return true
}

// Apply returns the subset of events visible under the state, preserving
// input order. Evaluation is independent per event.
func Apply(events []model.Event, s *State, now time.Time) []model.Event {
	visible := make([]model.Event, 0, len(events))
	for i := range events {
		if VisibleAt(&events[i], s, now) {
			visible = append(visible, events[i])
		}
	}
	return visible
}

// Reset deactivates every filter but keeps the user location.
func (s *State) Reset() {
	loc := s.UserLocation
	*s = State{UserLocation: loc}
}

func checkCategory(e *model.Event, s *State, _ time.Time) bool {
	if s.Category == "" || s.Category == All {
		return true
	}
	return e.Category == s.Category
}

func checkPrice(e *model.Event, s *State, _ time.Time) bool {
	switch s.Price {
	case PriceFree:
		return e.Price == 0
	case PricePaid:
		return e.Price > 0
	default:
		return true
	}
}

func checkDate(e *model.Event, s *State, now time.Time) bool {
	if s.Date == "" || s.Date == All {
		return true
	}
	start := e.StartsAt()
	switch s.Date {
	case DateToday:
		return sameDay(start, now)
	case DateWeek:
		return !start.Before(now) && !start.After(now.Add(7*24*time.Hour))
	case DateMonth:
		return !start.Before(now) && !start.After(now.Add(30*24*time.Hour))
	default:
		return true
	}
}

func checkSearch(e *model.Event, s *State, _ time.Time) bool {
	term := strings.ToLower(strings.TrimSpace(s.Search))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), term) ||
		strings.Contains(strings.ToLower(e.Description), term) ||
		strings.Contains(strings.ToLower(e.Location), term)
}

// checkRadius passes unless both a radius and a user location are known;
// without a location there is nothing to measure from.
func checkRadius(e *model.Event, s *State, _ time.Time) bool {
	if s.RadiusKm <= 0 || s.UserLocation == nil {
		return true
	}
	d := geo.Distance(*s.UserLocation, geo.Point{Lat: e.Latitude, Lon: e.Longitude})
	return d <= s.RadiusKm
}

func checkRating(e *model.Event, s *State, _ time.Time) bool {
	if s.MinRating <= 0 {
		return true
	}
	return e.AverageRating >= s.MinRating
}

func checkParticipants(e *model.Event, s *State, _ time.Time) bool {
	if s.MinParticipants <= 0 {
		return true
	}
	return e.RegistrationsCount >= s.MinParticipants
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// ParseQuery builds a State from map control query parameters. Unknown or
// malformed values leave the corresponding filter inactive.
func ParseQuery(q url.Values) State {
	s := State{
		Category: q.Get("category"),
		Price:    q.Get("price"),
		Date:     q.Get("date"),
		Search:   q.Get("search"),
	}
	if v, err := strconv.ParseFloat(q.Get("radius"), 64); err == nil && v > 0 {
		s.RadiusKm = v
	}
	if v, err := strconv.ParseFloat(q.Get("rating"), 64); err == nil && v > 0 {
		s.MinRating = v
	}
	if v, err := strconv.Atoi(q.Get("participants")); err == nil && v > 0 {
		s.MinParticipants = v
	}
	lat, latErr := strconv.ParseFloat(q.Get("lat"), 64)
	lon, lonErr := strconv.ParseFloat(q.Get("lon"), 64)
	if latErr == nil && lonErr == nil {
		s.UserLocation = &geo.Point{Lat: lat, Lon: lon}
	}
	return s
}
