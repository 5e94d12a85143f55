package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Color       int          `json:"color"`
	Timestamp   string       `json:"timestamp,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

// Webhook posts messages as Discord embeds to a webhook URL.
type Webhook struct {
	client *http.Client
	url    string
}

func NewWebhook(client *http.Client, url string) *Webhook {
	return &Webhook{client: client, url: url}
}

func (w *Webhook) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(toPayload(msg))
	if err != nil {
		return fmt.Errorf("failed to encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "calwatch/1.0")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook returned %s: %s", resp.Status, bytes.TrimSpace(snippet))
	}
	return nil
}

func toPayload(msg Message) webhookPayload {
	e := embed{
		Title:       msg.Title,
		Description: msg.Description,
		Color:       msg.Color,
	}
	if !msg.Timestamp.IsZero() {
		e.Timestamp = msg.Timestamp.UTC().Format(time.RFC3339)
	}
	for _, f := range msg.Fields {
		e.Fields = append(e.Fields, embedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	return webhookPayload{Embeds: []embed{e}}
}
