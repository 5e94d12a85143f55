package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"calwatch/internal/models"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const (
	credentialsFile = "credentials.json"
	googlePageSize  = 250
)

// Google lists the events of one Google calendar.
type Google struct {
	service    *calendar.Service
	calendarID string
	location   *time.Location
	logger     *slog.Logger
}

// NewGoogle creates a Google Calendar feed for calendarID.
// It loads the token saved by the auth command for opts.Account; when no
// account is given and exactly one token file exists, that one is used.
func NewGoogle(ctx context.Context, logger *slog.Logger, calendarID string, opts GoogleOptions, loc *time.Location) (*Google, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("google feed URL needs a calendar ID, e.g. google://primary")
	}

	config, err := getOAuthConfig(opts.ClientID, opts.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to get OAuth config: %w", err)
	}

	account := opts.Account
	if account == "" {
		accounts, err := GetTokenAccounts()
		if err != nil {
			return nil, err
		}
		if len(accounts) != 1 {
			return nil, fmt.Errorf("found %d google accounts, set GOOGLE_ACCOUNT or run the 'auth' command", len(accounts))
		}
		account = accounts[0]
	}

	token, err := tokenFromFile(tokenFileName(account))
	if err != nil {
		return nil, fmt.Errorf("could not load token for account %s: %w. Please run the 'auth' command first", account, err)
	}

	service, err := calendar.NewService(ctx, option.WithHTTPClient(config.Client(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create calendar service: %w", err)
	}
	return newGoogle(logger, service, calendarID, loc), nil
}

func newGoogle(logger *slog.Logger, service *calendar.Service, calendarID string, loc *time.Location) *Google {
	return &Google{service: service, calendarID: calendarID, location: loc, logger: logger}
}

// Fetch lists every non-deleted event of the calendar. Recurring events are
// returned once, like in an iCalendar export.
func (g *Google) Fetch(ctx context.Context) ([]models.Event, error) {
	g.logger.Info("Fetching Google calendar", "calendarID", g.calendarID)

	var events []models.Event
	err := g.service.Events.List(g.calendarID).
		ShowDeleted(false).
		SingleEvents(false).
		MaxResults(googlePageSize).
		Pages(ctx, func(page *calendar.Events) error {
			for _, item := range page.Items {
				// Deleted occurrences of a recurring event are listed without a start.
				if item.Status == "cancelled" || item.Start == nil {
					g.logger.Debug("Skipping cancelled event", "id", item.Id, "uid", item.ICalUID)
					continue
				}
				e, err := g.toEvent(item)
				if err != nil {
					return err
				}
				events = append(events, e)
			}
			return nil
		})
	if err != nil {
		return nil, &models.FetchError{URL: "google://" + g.calendarID, Err: fmt.Errorf("failed to retrieve events: %w", err)}
	}

	g.logger.Info("Events fetched", "calendarID", g.calendarID, "count", len(events))
	return events, nil
}

// toEvent converts a Google Calendar event to the internal Event model.
func (g *Google) toEvent(item *calendar.Event) (models.Event, error) {
	e := models.Event{
		UID:         item.ICalUID,
		Name:        item.Summary,
		Description: item.Description,
		URL:         item.HtmlLink,
		Location:    item.Location,
	}
	if e.UID == "" {
		e.UID = item.Id
	}

	var err error
	if e.Begin, e.AllDay, err = g.parseTime(item.Start); err != nil {
		return e, fmt.Errorf("event %q: invalid start: %w", item.Summary, err)
	}
	if e.End, _, err = g.parseTime(item.End); err != nil {
		return e, fmt.Errorf("event %q: invalid end: %w", item.Summary, err)
	}
	return e, nil
}

func (g *Google) parseTime(dt *calendar.EventDateTime) (time.Time, bool, error) {
	if dt == nil {
		return time.Time{}, false, fmt.Errorf("missing time")
	}
	if dt.Date != "" {
		t, err := time.ParseInLocation(time.DateOnly, dt.Date, g.location)
		return t, true, err
	}
	t, err := time.Parse(time.RFC3339, dt.DateTime)
	return t, false, err
}

// DiscoverCalendars returns the ID and name of every calendar of the account.
func (g *Google) DiscoverCalendars(ctx context.Context) (map[string]string, error) {
	list, err := g.service.CalendarList.List().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}

	calendars := make(map[string]string, len(list.Items))
	for _, item := range list.Items {
		calendars[item.Id] = item.Summary
	}
	return calendars, nil
}

// GetOAuthConfigForAuthFlow is used by the auth command to get the config for the web flow.
func GetOAuthConfigForAuthFlow(clientID, clientSecret string) (*oauth2.Config, error) {
	return getOAuthConfig(clientID, clientSecret)
}

// getOAuthConfig reads credentials and returns an OAuth2 config.
// It prioritizes explicit client credentials over a local credentials.json file.
func getOAuthConfig(clientID, clientSecret string) (*oauth2.Config, error) {
	if clientID != "" && clientSecret != "" {
		return &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  "urn:ietf:wg:oauth:2.0:oob",
			Scopes:       []string{calendar.CalendarReadonlyScope},
			Endpoint:     google.Endpoint,
		}, nil
	}

	b, err := os.ReadFile(credentialsFile)
	if err != nil {
		if _, ok := err.(*fs.PathError); ok {
			return nil, fmt.Errorf("credentials.json not found. Please provide GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET env vars or place credentials.json in the working directory")
		}
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}

	config, err := google.ConfigFromJSON(b, calendar.CalendarReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file to config: %w", err)
	}
	config.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	return config, nil
}

// TokenFromWeb is called by the auth flow to retrieve a token.
func TokenFromWeb(ctx context.Context, config *oauth2.Config, authCode string) (*oauth2.Token, error) {
	return config.Exchange(ctx, authCode)
}

// SaveToken saves the token of account in the working directory and returns
// the file name.
func SaveToken(account string, token *oauth2.Token) (string, error) {
	path := tokenFileName(account)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return "", fmt.Errorf("unable to create token file: %w", err)
	}
	defer f.Close()
	if err := json.NewEncoder(f).Encode(token); err != nil {
		return "", fmt.Errorf("unable to write token file: %w", err)
	}
	return path, nil
}

func tokenFileName(account string) string {
	return "token-" + account + ".json"
}

// tokenFromFile retrieves a token from a local file.
func tokenFromFile(file string) (*oauth2.Token, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tok := &oauth2.Token{}
	err = json.NewDecoder(f).Decode(tok)
	return tok, err
}

// GetTokenAccounts lists the accounts that have a saved token.
func GetTokenAccounts() ([]string, error) {
	files, err := os.ReadDir(".")
	if err != nil {
		return nil, err
	}

	var accounts []string
	for _, file := range files {
		if strings.HasPrefix(file.Name(), "token-") && strings.HasSuffix(file.Name(), ".json") {
			accountName := strings.TrimSuffix(strings.TrimPrefix(file.Name(), "token-"), ".json")
			accounts = append(accounts, accountName)
		}
	}
	return accounts, nil
}
