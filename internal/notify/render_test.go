package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwatch/internal/models"
)

func sampleEvent() models.Event {
	begin := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return models.Event{UID: "a", Group: "team", Name: "Standup", Begin: begin, End: begin.Add(15 * time.Minute), Location: "Room 1"}
}

func TestRender_Created(t *testing.T) {
	msg := Render(models.Change{Kind: models.Created, Record: sampleEvent()})

	assert.Equal(t, "New event", msg.Title)
	assert.Equal(t, "Event Standup has been added", msg.Description)
	assert.Equal(t, ColorGreen, msg.Color)
	assert.Equal(t, []Field{
		{Name: "Description", Value: "-"},
		{Name: "All day", Value: "false"},
		{Name: "Begin", Value: "2024-01-01 09:00:00 UTC"},
		{Name: "End", Value: "2024-01-01 09:15:00 UTC"},
		{Name: "URL", Value: "-"},
		{Name: "Location", Value: "Room 1"},
	}, msg.Fields)
}

func TestRender_UpdatedKeepsDiffOrder(t *testing.T) {
	msg := Render(models.Change{
		Kind:   models.Updated,
		Record: sampleEvent(),
		Diff: []models.FieldChange{
			{Field: models.FieldName, Old: "Sync", New: "Standup", Pair: true},
			{Field: models.FieldBegin, Old: "2024-01-01 08:00:00 UTC", New: "2024-01-01 09:00:00 UTC", Pair: true},
			{Field: models.FieldURL, Old: "https://old", New: "", Pair: true},
			{Field: "note", New: "rescheduled"},
		},
	})

	assert.Equal(t, "Event updated", msg.Title)
	assert.Equal(t, ColorOrange, msg.Color)
	require.Len(t, msg.Fields, 4)
	assert.Equal(t, Field{Name: "Name", Value: "Sync -> Standup"}, msg.Fields[0])
	assert.Equal(t, Field{Name: "Begin", Value: "2024-01-01 08:00:00 UTC -> 2024-01-01 09:00:00 UTC"}, msg.Fields[1])
	assert.Equal(t, Field{Name: "URL", Value: "https://old -> -"}, msg.Fields[2])
	assert.Equal(t, Field{Name: "note", Value: "rescheduled"}, msg.Fields[3])
}

func TestRender_Deleted(t *testing.T) {
	msg := Render(models.Change{Kind: models.Deleted, Record: sampleEvent()})

	assert.Equal(t, "Event deleted", msg.Title)
	assert.Equal(t, "Event Standup has been deleted", msg.Description)
	assert.Equal(t, ColorRed, msg.Color)
	assert.Empty(t, msg.Fields)
	assert.Equal(t, sampleEvent().Begin, msg.Timestamp)
}
