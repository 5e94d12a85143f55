package models

// ChangeKind tags a Change.
type ChangeKind int

const (
	Created ChangeKind = iota + 1
	Updated
	Deleted
)

func (k ChangeKind) String() string {
	switch k {
	case Created:
		return "created"
	case Updated:
		return "updated"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// Field names, listed in rendering order.
const (
	FieldName        = "name"
	FieldDescription = "description"
	FieldAllDay      = "allDay"
	FieldBegin       = "begin"
	FieldEnd         = "end"
	FieldURL         = "url"
	FieldLocation    = "location"
)

// FieldChange is one entry of a diff. Old and New hold canonical string
// forms. A change with Pair == false is a singleton and only New is set.
type FieldChange struct {
	Field string
	Old   string
	New   string
	Pair  bool
}

// Change is a notification about one record. Diff is only set for Updated.
type Change struct {
	Kind   ChangeKind
	Record Event
	Diff   []FieldChange
}
