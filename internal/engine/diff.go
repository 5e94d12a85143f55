package engine

import (
	"strconv"

	"calwatch/internal/models"
)

// Diff compares incoming against stored and returns one entry per differing
// field, in rendering order. It returns nil when nothing differs.
//
// Timestamps are compared in their canonical form, so a zone or sub-second
// difference between the feed and the store is not a change.
func Diff(incoming, stored *models.Event) []models.FieldChange {
	var diff []models.FieldChange
	add := func(field, old, new string) {
		if old != new {
			diff = append(diff, models.FieldChange{Field: field, Old: old, New: new, Pair: true})
		}
	}

	add(models.FieldName, stored.Name, incoming.Name)
	add(models.FieldDescription, stored.Description, incoming.Description)
	add(models.FieldAllDay, strconv.FormatBool(stored.AllDay), strconv.FormatBool(incoming.AllDay))
	add(models.FieldBegin, models.FormatTime(stored.Begin), models.FormatTime(incoming.Begin))
	add(models.FieldEnd, models.FormatTime(stored.End), models.FormatTime(incoming.End))
	add(models.FieldURL, stored.URL, incoming.URL)
	add(models.FieldLocation, stored.Location, incoming.Location)

	return diff
}
