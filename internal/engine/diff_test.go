package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calwatch/internal/models"
)

func baseEvent() *models.Event {
	begin := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	return &models.Event{
		UID:         "a",
		Group:       "team",
		Name:        "Standup",
		Description: "daily sync",
		Begin:       begin,
		End:         begin.Add(15 * time.Minute),
		URL:         "https://meet.example.com/a",
		Location:    "Room 1",
	}
}

func TestDiff_Equal(t *testing.T) {
	assert.Nil(t, Diff(baseEvent(), baseEvent()))
}

func TestDiff_OnlyLocation(t *testing.T) {
	incoming := baseEvent()
	incoming.Location = "Room 2"

	diff := Diff(incoming, baseEvent())
	require.Len(t, diff, 1)
	assert.Equal(t, models.FieldChange{Field: models.FieldLocation, Old: "Room 1", New: "Room 2", Pair: true}, diff[0])
}

func TestDiff_TimestampCanonicalization(t *testing.T) {
	paris := time.FixedZone("CET", 3600)

	incoming := baseEvent()
	// Same instants, different zone and sub-second noise.
	incoming.Begin = incoming.Begin.In(paris).Add(300 * time.Millisecond)
	incoming.End = incoming.End.In(paris)

	assert.Empty(t, Diff(incoming, baseEvent()))
}

func TestDiff_FieldOrder(t *testing.T) {
	incoming := baseEvent()
	incoming.Location = ""
	incoming.Name = "Daily Standup"
	incoming.End = incoming.End.Add(time.Hour)
	incoming.AllDay = true

	diff := Diff(incoming, baseEvent())

	fields := make([]string, 0, len(diff))
	for _, c := range diff {
		fields = append(fields, c.Field)
	}
	assert.Equal(t, []string{models.FieldName, models.FieldAllDay, models.FieldEnd, models.FieldLocation}, fields)
	assert.Equal(t, "false", diff[1].Old)
	assert.Equal(t, "true", diff[1].New)
	assert.Equal(t, "2024-01-01 09:15:00 UTC", diff[2].Old)
	assert.Equal(t, "2024-01-01 10:15:00 UTC", diff[2].New)
}

func TestNameFilter(t *testing.T) {
	f, err := NameFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)

	f, err = NameFilter("Team|Ops")
	require.NoError(t, err)
	assert.True(t, f(&models.Event{Name: "Team sync"}))
	assert.True(t, f(&models.Event{Name: "Ops review"}))
	assert.False(t, f(&models.Event{Name: "Weekly Team sync"}))

	_, err = NameFilter("(")
	assert.Error(t, err)
}
