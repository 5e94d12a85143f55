package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwatch/internal/models"
)

func TestWebhook_Send(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	msg := Render(models.Change{Kind: models.Deleted, Record: sampleEvent()})
	require.NoError(t, NewWebhook(srv.Client(), srv.URL).Send(context.Background(), msg))

	require.Len(t, got.Embeds, 1)
	assert.Equal(t, "Event deleted", got.Embeds[0].Title)
	assert.Equal(t, ColorRed, got.Embeds[0].Color)
	assert.Equal(t, "2024-01-01T09:00:00Z", got.Embeds[0].Timestamp)
}

func TestWebhook_SendFieldsInline(t *testing.T) {
	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	msg := Render(models.Change{Kind: models.Created, Record: sampleEvent()})
	require.NoError(t, NewWebhook(srv.Client(), srv.URL).Send(context.Background(), msg))

	require.Len(t, got.Embeds[0].Fields, 6)
	assert.True(t, got.Embeds[0].Fields[0].Inline)
	assert.Equal(t, "Location", got.Embeds[0].Fields[5].Name)
}

func TestWebhook_SendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewWebhook(srv.Client(), srv.URL).Send(context.Background(), Render(models.Change{Kind: models.Created, Record: sampleEvent()}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "rate limited")
}
