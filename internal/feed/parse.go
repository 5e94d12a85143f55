package feed

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"calwatch/internal/models"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"
)

var utf8BOM = []byte("\xEF\xBB\xBF")

// Parse decodes an iCalendar payload into events. Times without a zone are
// read in loc. origin seeds the identifiers generated for events that have
// no UID.
//
// A single malformed VEVENT fails the whole payload: skipping it would make
// the stored copy look deleted.
func Parse(body []byte, origin string, loc *time.Location) ([]models.Event, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if err := validateICal(body); err != nil {
		return nil, err
	}

	dec := ical.NewDecoder(bytes.NewReader(body))
	var events []models.Event
	for {
		cal, err := dec.Decode()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to decode calendar: %w", err)
		}
		parsed, err := eventsFromCalendar(cal, origin, loc)
		if err != nil {
			return nil, err
		}
		events = append(events, parsed...)
	}
	return events, nil
}

func eventsFromCalendar(cal *ical.Calendar, origin string, loc *time.Location) ([]models.Event, error) {
	var events []models.Event
	for _, comp := range cal.Children {
		if comp.Name != ical.CompEvent {
			continue
		}
		e, err := parseEvent(ical.Event{Component: comp}, origin, loc)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

func parseEvent(ve ical.Event, origin string, loc *time.Location) (models.Event, error) {
	var e models.Event
	var err error

	if e.Name, err = ve.Props.Text(ical.PropSummary); err != nil {
		return e, fmt.Errorf("invalid SUMMARY: %w", err)
	}
	if e.Description, err = ve.Props.Text(ical.PropDescription); err != nil {
		return e, fmt.Errorf("invalid DESCRIPTION in %q: %w", e.Name, err)
	}
	if e.Location, err = ve.Props.Text(ical.PropLocation); err != nil {
		return e, fmt.Errorf("invalid LOCATION in %q: %w", e.Name, err)
	}
	if p := ve.Props.Get(ical.PropURL); p != nil {
		e.URL = strings.TrimSpace(p.Value)
	}

	normalizeTimezones(ve.Component)
	start := ve.Props.Get(ical.PropDateTimeStart)
	if start == nil {
		return e, fmt.Errorf("event %q has no DTSTART", e.Name)
	}
	e.AllDay = start.ValueType() == ical.ValueDate
	if e.Begin, err = ve.DateTimeStart(loc); err != nil {
		return e, fmt.Errorf("invalid DTSTART in %q: %w", e.Name, err)
	}
	if e.End, err = ve.DateTimeEnd(loc); err != nil {
		return e, fmt.Errorf("invalid DTEND in %q: %w", e.Name, err)
	}

	if p := ve.Props.Get(ical.PropUID); p != nil {
		e.UID = strings.TrimSpace(p.Value)
	}
	if e.UID == "" {
		e.UID = fallbackUID(origin, e)
	}
	return e, nil
}

// fallbackUID derives a stable identifier for an event without a UID, so the
// same event maps to the same record on every fetch.
func fallbackUID(origin string, e models.Event) string {
	seed := origin + "|" + models.FormatTime(e.Begin) + "|" + e.Name
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(seed)).String()
}

// validateICal rejects payloads that are clearly not iCalendar, such as a
// login page served instead of the feed.
func validateICal(body []byte) error {
	trimmed := bytes.TrimSpace(body)
	upper := strings.ToUpper(string(trimmed[:min(len(trimmed), 64)]))
	if strings.HasPrefix(upper, "<!DOCTYPE") || strings.HasPrefix(upper, "<HTML") {
		return fmt.Errorf("received HTML instead of iCalendar data, check whether the URL requires authentication")
	}
	if !strings.HasPrefix(upper, "BEGIN:VCALENDAR") {
		return fmt.Errorf("invalid iCalendar payload, expected BEGIN:VCALENDAR, got %q", string(trimmed[:min(len(trimmed), 40)]))
	}
	return nil
}
