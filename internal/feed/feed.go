// Package feed retrieves calendar events from the supported feed kinds:
// iCalendar URLs, CalDAV collections and Google calendars.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"calwatch/internal/models"
)

// Source produces the complete current event set of one feed. Failures are
// reported as *models.FetchError.
type Source interface {
	Fetch(ctx context.Context) ([]models.Event, error)
}

// CalDAVOptions configures caldav+http(s) feeds.
type CalDAVOptions struct {
	Username string
	Password string
	Calendar string
}

// GoogleOptions configures google:// feeds.
type GoogleOptions struct {
	ClientID     string
	ClientSecret string
	Account      string
}

// Options describes the feed to build.
type Options struct {
	URL        string
	Location   *time.Location
	HTTPClient *http.Client
	CalDAV     CalDAVOptions
	Google     GoogleOptions
	Logger     *slog.Logger
}

// New returns the Source matching the scheme of opts.URL.
func New(ctx context.Context, opts Options) (Source, error) {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	raw := strings.TrimSpace(opts.URL)
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return nil, fmt.Errorf("feed URL %q has no scheme", models.RedactURL(raw))
	}

	switch strings.ToLower(scheme) {
	case "http", "https":
		return NewICS(opts.Logger, opts.HTTPClient, raw, opts.Location), nil
	case "webcal":
		return NewICS(opts.Logger, opts.HTTPClient, "https://"+rest, opts.Location), nil
	case "caldav+http", "caldav+https":
		endpoint := strings.TrimPrefix(strings.ToLower(scheme), "caldav+") + "://" + rest
		return NewCalDAV(opts.Logger, opts.HTTPClient, endpoint, opts.CalDAV, opts.Location)
	case "google":
		return NewGoogle(ctx, opts.Logger, rest, opts.Google, opts.Location)
	default:
		return nil, fmt.Errorf("unsupported feed scheme %q", scheme)
	}
}
