package models

import "time"

// TimeLayout is the canonical rendering of a timestamp. It is used both to
// compare timestamps and to display them, so two instants that render the
// same are considered equal.
const TimeLayout = "2006-01-02 15:04:05 UTC"

// Event represents a single calendar event as seen in a feed, and the
// snapshot of it kept in the store. Optional text fields use "" for absent.
type Event struct {
	UID         string    // Stable identifier of one logical occurrence
	Group       string    // Feed/source tag; scopes deletion in the store
	Name        string    // Summary or title of the event
	Description string    // Optional
	AllDay      bool      // True for date-only events
	Begin       time.Time // Start of the event
	End         time.Time // End of the event
	URL         string    // Optional
	Location    string    // Optional
}

// FormatTime renders t in the canonical, second-granularity UTC form.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Truncate(time.Second).Format(TimeLayout)
}

// Clone returns a copy of e that can be mutated independently.
func (e *Event) Clone() *Event {
	c := *e
	return &c
}

// Apply copies every mutable field of src onto e. UID and Group are kept.
func (e *Event) Apply(src *Event) {
	e.Name = src.Name
	e.Description = src.Description
	e.AllDay = src.AllDay
	e.Begin = src.Begin
	e.End = src.End
	e.URL = src.URL
	e.Location = src.Location
}
