package notify

import (
	"fmt"
	"strconv"
	"time"

	"calwatch/internal/models"
)

// Severity colours, as used by Discord embeds.
const (
	ColorGreen  = 0x2ecc71
	ColorOrange = 0xe67e22
	ColorRed    = 0xe74c3c
)

// emptyValue stands in for an absent optional field.
const emptyValue = "-"

// Field is one labelled line of a message.
type Field struct {
	Name  string
	Value string
}

// Message is a rendered change, independent of the delivery transport.
type Message struct {
	Kind        models.ChangeKind
	Title       string
	Description string
	Color       int
	Fields      []Field
	Timestamp   time.Time
	Event       models.Event
}

var labels = map[string]string{
	models.FieldName:        "Name",
	models.FieldDescription: "Description",
	models.FieldAllDay:      "All day",
	models.FieldBegin:       "Begin",
	models.FieldEnd:         "End",
	models.FieldURL:         "URL",
	models.FieldLocation:    "Location",
}

// Render turns a change into a Message. Updated changes get one field per
// diff entry, in diff order, formatted "old -> new".
func Render(change models.Change) Message {
	e := change.Record
	msg := Message{Kind: change.Kind, Event: e, Timestamp: e.Begin}

	switch change.Kind {
	case models.Created:
		msg.Title = "New event"
		msg.Description = fmt.Sprintf("Event %s has been added", e.Name)
		msg.Color = ColorGreen
		msg.Fields = []Field{
			{Name: labels[models.FieldDescription], Value: orEmpty(e.Description)},
			{Name: labels[models.FieldAllDay], Value: strconv.FormatBool(e.AllDay)},
			{Name: labels[models.FieldBegin], Value: orEmpty(models.FormatTime(e.Begin))},
			{Name: labels[models.FieldEnd], Value: orEmpty(models.FormatTime(e.End))},
			{Name: labels[models.FieldURL], Value: orEmpty(e.URL)},
			{Name: labels[models.FieldLocation], Value: orEmpty(e.Location)},
		}
	case models.Updated:
		msg.Title = "Event updated"
		msg.Description = fmt.Sprintf("Event %s has been updated", e.Name)
		msg.Color = ColorOrange
		for _, c := range change.Diff {
			msg.Fields = append(msg.Fields, Field{Name: label(c.Field), Value: formatChange(c)})
		}
	case models.Deleted:
		msg.Title = "Event deleted"
		msg.Description = fmt.Sprintf("Event %s has been deleted", e.Name)
		msg.Color = ColorRed
	}
	return msg
}

func formatChange(c models.FieldChange) string {
	if !c.Pair {
		return orEmpty(c.New)
	}
	return orEmpty(c.Old) + " -> " + orEmpty(c.New)
}

func label(field string) string {
	if l, ok := labels[field]; ok {
		return l
	}
	return field
}

func orEmpty(s string) string {
	if s == "" {
		return emptyValue
	}
	return s
}
