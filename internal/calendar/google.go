// Package calendar builds "add to calendar" links for event invitations.
package calendar

import (
	"net/url"
	"time"
)

const renderBase = "https://calendar.google.com/calendar/render"

// Entry describes one calendar event.
type Entry struct {
	Title       string
	Description string
	Location    string
	Start       time.Time
	End         time.Time
}

// GoogleLink returns a Google Calendar pre-filled event URL for the entry.
func GoogleLink(e Entry) string {
	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", e.Title)
	q.Set("dates", formatStamp(e.Start)+"/"+formatStamp(e.End))
	q.Set("details", e.Description)
	q.Set("location", e.Location)
	return renderBase + "?" + q.Encode()
}

func formatStamp(t time.Time) string {
	return t.UTC().Format("20060102T150405Z")
}
