package calendar

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"eventhub-gateway/internal/model"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func testEvents() []model.Event {
	return []model.Event{
		{
			ID: 1, Title: "Концерт в парке",
			StartDate:    time.Date(2025, 6, 15, 19, 0, 0, 0, time.UTC),
			Category:     "music",
			CategoryName: "Музыка",
			Price:        500,
			Location:     "Москва, Парк Горького",
			OrganizerName: "Городские события",
		},
		{
			ID: 2, Title: "Выставка",
			Date:     time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC),
			Category: "art",
			Price:    0,
		},
		{ID: 3, Title: "Без даты"},
	}
}

func TestEntriesDropEventsWithoutStart(t *testing.T) {
	entries := Entries(testEvents())
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	for _, entry := range entries {
		if entry.ID == 3 {
			t.Error("event without a start time should be dropped")
		}
	}
}

func TestEntryShape(t *testing.T) {
	entry := Entries(testEvents())[0]

	if entry.Title != "Концерт в парке" {
		t.Errorf("unexpected title: %s", entry.Title)
	}
	if entry.ClassName != "event-category-music" {
		t.Errorf("unexpected class name: %s", entry.ClassName)
	}
	if got := entry.End.Sub(entry.Start); got != 2*time.Hour {
		t.Errorf("entries without an end time should span 2h, got %s", got)
	}
	if entry.URL != "/event/1/" {
		t.Errorf("unexpected URL: %s", entry.URL)
	}
	if entry.ExtendedProps.Category != "Музыка" || entry.ExtendedProps.Price != "500" {
		t.Errorf("unexpected extended props: %+v", entry.ExtendedProps)
	}
}

func TestEntriesUseFallbackDateField(t *testing.T) {
	entries := Entries(testEvents())
	if entries[1].Start != time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC) {
		t.Errorf("fallback date field should anchor the entry, got %s", entries[1].Start)
	}
}

func TestRange(t *testing.T) {
	entries := Entries(testEvents())

	june := Range(entries,
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 6, 30, 23, 59, 59, 0, time.UTC))
	if len(june) != 1 || june[0].ID != 1 {
		t.Errorf("expected only the June entry, got %+v", june)
	}

	// Zero bounds are open.
	all := Range(entries, time.Time{}, time.Time{})
	if len(all) != 2 {
		t.Errorf("open range should keep every entry, got %d", len(all))
	}
}

func TestWriteICS(t *testing.T) {
	var buf bytes.Buffer
	WriteICS(&buf, Entries(testEvents()), testNow)
	body := buf.String()

	requiredFields := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//EventHub//Discovery Gateway//RU",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:EventHub",
		"X-WR-TIMEZONE:Europe/Moscow",
		"X-PUBLISHED-TTL:PT1H",
		"BEGIN:VEVENT",
		"END:VEVENT",
		"END:VCALENDAR",
	}
	for _, field := range requiredFields {
		if !strings.Contains(body, field) {
			t.Errorf("ICS output missing required field: %s", field)
		}
	}

	if !strings.Contains(body, "UID:event-1@eventhub") {
		t.Error("events need stable UIDs")
	}
	if !strings.Contains(body, "DTSTART:20250615T190000Z") {
		t.Error("missing UTC start timestamp")
	}
	if !strings.Contains(body, "DTEND:20250615T210000Z") {
		t.Error("missing UTC end timestamp")
	}
	if !strings.Contains(body, "DTSTAMP:20250610T120000Z") {
		t.Error("missing DTSTAMP")
	}
	if !strings.Contains(body, "SUMMARY:Концерт в парке") {
		t.Error("missing event summary")
	}
	if !strings.Contains(body, "LOCATION:Москва\\, Парк Горького") {
		t.Error("commas in LOCATION must be escaped")
	}

	if got := strings.Count(body, "BEGIN:VEVENT"); got != 2 {
		t.Errorf("expected 2 VEVENT blocks, got %d", got)
	}
}

func TestICSEscape(t *testing.T) {
	if got := icsEscape("a;b,c\nd\\e"); got != "a\\;b\\,c\\nd\\\\e" {
		t.Errorf("unexpected escape output: %s", got)
	}
}
