package feed

import (
	"time"
	_ "time/tzdata"

	"github.com/emersion/go-ical"
)

// Windows zone names used by Outlook and Exchange exports, mapped to IANA.
var windowsToIANA = map[string]string{
	"Pacific Standard Time":          "America/Los_Angeles",
	"Mountain Standard Time":         "America/Denver",
	"US Mountain Standard Time":      "America/Phoenix",
	"Central Standard Time":          "America/Chicago",
	"Eastern Standard Time":          "America/New_York",
	"Atlantic Standard Time":         "America/Halifax",
	"Alaskan Standard Time":          "America/Anchorage",
	"Hawaiian Standard Time":         "Pacific/Honolulu",
	"E. South America Standard Time": "America/Sao_Paulo",
	"SA Pacific Standard Time":       "America/Bogota",
	"GMT Standard Time":              "Europe/London",
	"Greenwich Standard Time":        "Atlantic/Reykjavik",
	"W. Europe Standard Time":        "Europe/Berlin",
	"Romance Standard Time":          "Europe/Paris",
	"Central Europe Standard Time":   "Europe/Budapest",
	"Central European Standard Time": "Europe/Warsaw",
	"E. Europe Standard Time":        "Europe/Chisinau",
	"FLE Standard Time":              "Europe/Kiev",
	"Russian Standard Time":          "Europe/Moscow",
	"Israel Standard Time":           "Asia/Jerusalem",
	"Arabian Standard Time":          "Asia/Dubai",
	"India Standard Time":            "Asia/Kolkata",
	"China Standard Time":            "Asia/Shanghai",
	"Singapore Standard Time":        "Asia/Singapore",
	"Tokyo Standard Time":            "Asia/Tokyo",
	"Korea Standard Time":            "Asia/Seoul",
	"AUS Eastern Standard Time":      "Australia/Sydney",
	"New Zealand Standard Time":      "Pacific/Auckland",
	"UTC":                            "UTC",
}

// normalizeTimezones rewrites the TZID of the date properties of comp so
// go-ical can load it. Windows names are mapped to IANA; a TZID that is still
// unknown is dropped, so the value is read as floating time in the feed's
// primary zone.
func normalizeTimezones(comp *ical.Component) {
	for _, name := range []string{
		ical.PropDateTimeStart,
		ical.PropDateTimeEnd,
		ical.PropExceptionDates,
		ical.PropRecurrenceDates,
	} {
		for i := range comp.Props[name] {
			normalizeTZID(&comp.Props[name][i])
		}
	}
}

func normalizeTZID(prop *ical.Prop) {
	tzid := prop.Params.Get(ical.ParamTimezoneID)
	if tzid == "" {
		return
	}
	if iana, ok := windowsToIANA[tzid]; ok {
		tzid = iana
		prop.Params.Set(ical.ParamTimezoneID, tzid)
	}
	if _, err := time.LoadLocation(tzid); err != nil {
		delete(prop.Params, ical.ParamTimezoneID)
	}
}
