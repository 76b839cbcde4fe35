// Package calendar adapts upstream events into calendar widget entries and
// an iCalendar subscription feed.
package calendar

import (
	"fmt"
	"time"

	"eventhub-gateway/internal/model"
)

// defaultDuration pads events without an explicit end time.
const defaultDuration = 2 * time.Hour

// Entry is one calendar cell as the widget consumes it: title plus
// location in the cell body, a click navigates to the detail URL.
type Entry struct {
	ID            int           `json:"id"`
	Title         string        `json:"title"`
	Start         time.Time     `json:"start"`
	End           time.Time     `json:"end"`
	URL           string        `json:"url"`
	ClassName     string        `json:"className"`
	ExtendedProps ExtendedProps `json:"extendedProps"`
}

// ExtendedProps customizes the cell body and tooltip.
type ExtendedProps struct {
	Category  string `json:"category"`
	Price     string `json:"price"`
	Location  string `json:"location"`
	Organizer string `json:"organizer"`
}

// Entries maps events to calendar entries. Events without a start time
// cannot be placed in a cell and are dropped.
func Entries(events []model.Event) []Entry {
	entries := make([]Entry, 0, len(events))
	for i := range events {
		e := &events[i]
		start := e.StartsAt()
		if start.IsZero() {
			continue
		}
		entries = append(entries, Entry{
			ID:        e.ID,
			Title:     e.Title,
			Start:     start,
			End:       start.Add(defaultDuration),
			URL:       e.DetailURL(),
			ClassName: fmt.Sprintf("event-category-%s", e.Category),
			ExtendedProps: ExtendedProps{
				Category:  e.CategoryName,
				Price:     fmt.Sprintf("%g", e.Price),
				Location:  e.Location,
				Organizer: e.OrganizerName,
			},
		})
	}
	return entries
}

// Range filters entries to those starting inside [start, end]. A zero
// bound is open.
func Range(entries []Entry, start, end time.Time) []Entry {
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if !start.IsZero() && entry.Start.Before(start) {
			continue
		}
		if !end.IsZero() && entry.Start.After(end) {
			continue
		}
		out = append(out, entry)
	}
	return out
}
