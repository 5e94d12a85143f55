// Package notify renders reconciliation changes and delivers them to the
// configured endpoints.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"calwatch/internal/models"
)

// Sender delivers a rendered message to one endpoint.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type endpoint struct {
	name   string
	sender Sender
}

// Dispatcher fans every change out to all of its endpoints. Each delivery is
// independent: one failing endpoint does not stop the others.
type Dispatcher struct {
	endpoints []endpoint
	logger    *slog.Logger
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher(logger *slog.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Add registers sender under name; name is only used in logs and errors.
func (d *Dispatcher) Add(name string, sender Sender) {
	d.endpoints = append(d.endpoints, endpoint{name: name, sender: sender})
}

// Len returns the number of registered endpoints.
func (d *Dispatcher) Len() int { return len(d.endpoints) }

// Notify renders change and sends it to every endpoint. The returned error
// joins one *models.NotifyError per failed endpoint.
func (d *Dispatcher) Notify(ctx context.Context, change models.Change) error {
	msg := Render(change)
	var errs []error
	for _, ep := range d.endpoints {
		d.logger.Debug("Sending notification", "endpoint", ep.name, "kind", change.Kind.String(), "uid", change.Record.UID)
		if err := ep.sender.Send(ctx, msg); err != nil {
			errs = append(errs, &models.NotifyError{Endpoint: ep.name, Err: err})
		}
	}
	return errors.Join(errs...)
}

// Options carries what the endpoint constructors may need.
type Options struct {
	HTTPClient *http.Client
	SES        SESConfig
	CalDAV     CalDAVCredentials
	Logger     *slog.Logger
}

func (o Options) httpClient() *http.Client {
	if o.HTTPClient != nil {
		return o.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

// NewSender builds the Sender for one endpoint string:
//
//	http(s)://...   Discord-compatible webhook
//	mailto:address  e-mail through AWS SES
//	caldav+http(s)  mirror into a CalDAV collection
//	log:            log-only, nothing is sent
func NewSender(raw string, opts Options) (Sender, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "log:" || raw == "log":
		return NewLogSender(opts.Logger), nil
	case strings.HasPrefix(raw, "mailto:"):
		to := strings.TrimPrefix(raw, "mailto:")
		if to == "" {
			return nil, fmt.Errorf("mailto endpoint without address")
		}
		return NewSESSender(opts.SES, to)
	case strings.HasPrefix(raw, "caldav+https://"), strings.HasPrefix(raw, "caldav+http://"):
		return NewCalDAVMirror(opts.httpClient(), strings.TrimPrefix(raw, "caldav+"), opts.CalDAV)
	case strings.HasPrefix(raw, "https://"), strings.HasPrefix(raw, "http://"):
		return NewWebhook(opts.httpClient(), raw), nil
	default:
		return nil, fmt.Errorf("unsupported endpoint %q", models.RedactURL(raw))
	}
}

// LogSender only logs messages. It backs dry runs and the "log:" endpoint.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) Send(ctx context.Context, msg Message) error {
	args := []any{"title", msg.Title, "description", msg.Description}
	for _, f := range msg.Fields {
		args = append(args, f.Name, f.Value)
	}
	s.logger.Info("Notification (not sent)", args...)
	return nil
}
