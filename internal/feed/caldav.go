package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"calwatch/internal/models"

	"github.com/emersion/go-webdav/caldav"
)

// basicAuthTransport adds Basic Auth and a user agent to each request.
type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

// AuthClient returns a copy of base that authenticates every request with
// Basic Auth. CalDAV servers such as iCloud require an app-specific password.
func AuthClient(base *http.Client, username, password string) *http.Client {
	if base == nil {
		base = http.DefaultClient
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Timeout: base.Timeout,
		Transport: &basicAuthTransport{
			Username:  username,
			Password:  password,
			Transport: transport,
		},
	}
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.Username != "" {
		req.SetBasicAuth(t.Username, t.Password)
	}
	req.Header.Set("User-Agent", "calwatch/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAV reads every VEVENT of one calendar collection on a CalDAV server.
type CalDAV struct {
	client       *caldav.Client
	endpoint     string
	calendarName string
	calendarPath string
	location     *time.Location
	logger       *slog.Logger
}

// NewCalDAV creates a CalDAV feed. When opts.Calendar is set the collection
// is looked up by display name on first fetch, otherwise the endpoint path is
// used as the collection.
func NewCalDAV(logger *slog.Logger, base *http.Client, endpoint string, opts CalDAVOptions, loc *time.Location) (*CalDAV, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid caldav endpoint: %w", err)
	}

	client, err := caldav.NewClient(AuthClient(base, opts.Username, opts.Password), endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}

	c := &CalDAV{
		client:       client,
		endpoint:     endpoint,
		calendarName: opts.Calendar,
		location:     loc,
		logger:       logger,
	}
	if opts.Calendar == "" {
		c.calendarPath = u.Path
	}
	return c, nil
}

func (c *CalDAV) Fetch(ctx context.Context) ([]models.Event, error) {
	redacted := models.RedactURL(c.endpoint)

	path, err := c.resolveCalendar(ctx)
	if err != nil {
		return nil, &models.FetchError{URL: redacted, Err: err}
	}

	c.logger.Info("Querying CalDAV calendar", "endpoint", redacted, "calendar", c.calendarName)
	query := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:     "VCALENDAR",
			AllProps: true,
			Comps: []caldav.CalendarCompRequest{{
				Name:     "VEVENT",
				AllProps: true,
			}},
		},
		CompFilter: caldav.CompFilter{
			Name:  "VCALENDAR",
			Comps: []caldav.CompFilter{{Name: "VEVENT"}},
		},
	}
	objects, err := c.client.QueryCalendar(ctx, path, query)
	if err != nil {
		return nil, &models.FetchError{URL: redacted, Err: fmt.Errorf("calendar query failed: %w", err)}
	}

	var events []models.Event
	for _, obj := range objects {
		if obj.Data == nil {
			continue
		}
		parsed, err := eventsFromCalendar(obj.Data, c.endpoint+obj.Path, c.location)
		if err != nil {
			return nil, &models.FetchError{URL: redacted, Err: fmt.Errorf("%s: %w", obj.Path, err)}
		}
		events = append(events, parsed...)
	}

	c.logger.Info("Events fetched", "endpoint", redacted, "objects", len(objects), "count", len(events))
	return events, nil
}

func (c *CalDAV) resolveCalendar(ctx context.Context) (string, error) {
	if c.calendarPath != "" {
		return c.calendarPath, nil
	}
	path, err := c.findCalendar(ctx, c.calendarName)
	if err != nil {
		return "", fmt.Errorf("could not find calendar '%s': %w", c.calendarName, err)
	}
	c.calendarPath = path
	c.logger.Info("Found CalDAV calendar", "calendar", c.calendarName, "path", path)
	return path, nil
}

// findCalendar discovers the user's calendars and returns the path of the one with the matching name.
func (c *CalDAV) findCalendar(ctx context.Context, name string) (string, error) {
	principalPath, err := c.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find principal path: %w", err)
	}

	homeSetPath, err := c.client.FindCalendarHomeSet(ctx, principalPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendar home set: %w", err)
	}

	calendars, err := c.client.FindCalendars(ctx, homeSetPath)
	if err != nil {
		return "", fmt.Errorf("failed to find calendars: %w", err)
	}

	for _, cal := range calendars {
		if cal.Name == name {
			return cal.Path, nil
		}
	}

	return "", fmt.Errorf("no calendar found with name '%s'", name)
}
