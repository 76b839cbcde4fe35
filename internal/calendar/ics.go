package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	icsProductID = "-//EventHub//Discovery Gateway//RU"
	icsTimezone  = "Europe/Moscow"
	icsCalName   = "EventHub"
)

// icsStamp formats a UTC timestamp the way ICS wants it.
func icsStamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}

// icsEscape guards SUMMARY/DESCRIPTION/LOCATION text per RFC 5545.
func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\n", "\\n")
	return r.Replace(s)
}

// WriteICS writes an iCalendar subscription feed for the entries. The feed
// is meant for calendar subscriptions: inline content, METHOD:PUBLISH, a
// refresh hint and stable UIDs so calendar apps can update entries in
// place.
func WriteICS(w io.Writer, entries []Entry, now time.Time) {
	fmt.Fprintln(w, "BEGIN:VCALENDAR")
	fmt.Fprintln(w, "VERSION:2.0")
	fmt.Fprintf(w, "PRODID:%s\n", icsProductID)
	fmt.Fprintln(w, "METHOD:PUBLISH")
	fmt.Fprintf(w, "X-WR-CALNAME:%s\n", icsCalName)
	fmt.Fprintf(w, "X-WR-TIMEZONE:%s\n", icsTimezone)
	fmt.Fprintln(w, "CALSCALE:GREGORIAN")
	fmt.Fprintln(w, "X-PUBLISHED-TTL:PT1H")

	for _, entry := range entries {
		fmt.Fprintln(w, "BEGIN:VEVENT")
		fmt.Fprintf(w, "UID:event-%d@eventhub\n", entry.ID)
		fmt.Fprintf(w, "DTSTAMP:%s\n", icsStamp(now))
		fmt.Fprintf(w, "DTSTART:%s\n", icsStamp(entry.Start))
		fmt.Fprintf(w, "DTEND:%s\n", icsStamp(entry.End))
		fmt.Fprintf(w, "SUMMARY:%s\n", icsEscape(entry.Title))
		fmt.Fprintf(w, "DESCRIPTION:%s\n", icsEscape(entry.ExtendedProps.Organizer))
		fmt.Fprintf(w, "LOCATION:%s\n", icsEscape(entry.ExtendedProps.Location))
		fmt.Fprintf(w, "URL:%s\n", entry.URL)
		fmt.Fprintln(w, "END:VEVENT")
	}

	fmt.Fprintln(w, "END:VCALENDAR")
}
