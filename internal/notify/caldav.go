package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"calwatch/internal/feed"
	"calwatch/internal/models"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
)

// CalDAVMirror keeps a CalDAV collection in step with the watched feed:
// created and updated events are written as <uid>.ics, deleted ones removed.
// A "/" in the UID is written as "_".
type CalDAVMirror struct {
	client   *webdav.Client
	endpoint string
	now      func() time.Time
}

// CalDAVCredentials authenticates caldav+http(s) endpoints.
type CalDAVCredentials struct {
	Username string
	Password string
}

// NewCalDAVMirror creates a mirror for the collection at endpoint, an
// http(s) URL ending in the collection path.
func NewCalDAVMirror(client *http.Client, endpoint string, creds CalDAVCredentials) (*CalDAVMirror, error) {
	webdavClient, err := webdav.NewClient(feed.AuthClient(client, creds.Username, creds.Password), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create webdav client: %w", err)
	}
	return &CalDAVMirror{client: webdavClient, endpoint: endpoint, now: time.Now}, nil
}

func (m *CalDAVMirror) Send(ctx context.Context, msg Message) error {
	name := strings.ReplaceAll(msg.Event.UID, "/", "_") + ".ics"

	if msg.Kind == models.Deleted {
		if err := m.client.RemoveAll(ctx, name); err != nil {
			return fmt.Errorf("failed to delete event on CalDAV server: %w", err)
		}
		return nil
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, "-//calwatch//EN")
	cal.Children = append(cal.Children, m.toICal(&msg.Event))

	writer, err := m.client.Create(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to create event on CalDAV server: %w", err)
	}
	if err := ical.NewEncoder(writer).Encode(cal); err != nil {
		writer.Close()
		return fmt.Errorf("failed to encode event to iCal format: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload event to CalDAV server: %w", err)
	}
	return nil
}

// toICal converts an Event to a VEVENT component.
func (m *CalDAVMirror) toICal(event *models.Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, event.UID)
	ve.Props.SetText(ical.PropSummary, event.Name)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, m.now().UTC())
	if event.AllDay {
		ve.Props.SetDate(ical.PropDateTimeStart, event.Begin)
		ve.Props.SetDate(ical.PropDateTimeEnd, event.End)
	} else {
		ve.Props.SetDateTime(ical.PropDateTimeStart, event.Begin.UTC())
		ve.Props.SetDateTime(ical.PropDateTimeEnd, event.End.UTC())
	}

	if event.Description != "" {
		ve.Props.SetText(ical.PropDescription, event.Description)
	}
	if event.Location != "" {
		ve.Props.SetText(ical.PropLocation, event.Location)
	}
	if event.URL != "" {
		ve.Props.SetText(ical.PropURL, event.URL)
	}
	return ve
}
