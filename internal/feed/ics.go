package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"calwatch/internal/models"
)

// maxFeedSize bounds the payload read from an ICS URL.
const maxFeedSize = 32 << 20

// ICS downloads an iCalendar file over HTTP.
type ICS struct {
	client   *http.Client
	url      string
	location *time.Location
	logger   *slog.Logger
}

func NewICS(logger *slog.Logger, client *http.Client, url string, loc *time.Location) *ICS {
	return &ICS{client: client, url: url, location: loc, logger: logger}
}

func (s *ICS) Fetch(ctx context.Context) ([]models.Event, error) {
	s.logger.Info("Fetching ICS", "url", models.RedactURL(s.url))

	body, err := s.download(ctx)
	if err != nil {
		return nil, &models.FetchError{URL: models.RedactURL(s.url), Err: err}
	}
	events, err := Parse(body, s.url, s.location)
	if err != nil {
		return nil, &models.FetchError{URL: models.RedactURL(s.url), Err: err}
	}

	s.logger.Info("Events fetched", "url", models.RedactURL(s.url), "count", len(events))
	return events, nil
}

func (s *ICS) download(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")
	req.Header.Set("User-Agent", "calwatch/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}
