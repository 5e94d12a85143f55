package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://discord.com/api/webhooks/123/secret", "https://discord.com/...(redacted)"},
		{"https://example.com/cal.ics?token=abcd", "https://example.com/...(redacted)"},
		{"mailto:ops@example.com", "mailto:...(redacted)"},
		{"not a url", "...(redacted)"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in), tt.in)
	}
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "", FormatTime(time.Time{}))
	ts := time.Date(2024, 1, 1, 10, 0, 0, 999, time.FixedZone("CET", 3600))
	assert.Equal(t, "2024-01-01 09:00:00 UTC", FormatTime(ts))
}
