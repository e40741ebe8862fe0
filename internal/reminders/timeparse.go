package reminders

import (
	"fmt"
	"regexp"
	"time"
)

// DefaultTimezone is the reference zone for datetime inputs that carry no
// explicit offset.
const DefaultTimezone = "Europe/Madrid"

// naiveLayouts accepted for inputs without a zone marker.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// explicitZoneRE matches a trailing UTC designator or numeric offset.
var explicitZoneRE = regexp.MustCompile(`(?i)(Z|[+-]\d{2}:\d{2}|[+-]\d{4})$`)

// zonedLayouts accepted for inputs with an explicit zone marker.
var zonedLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05Z07:00",
}

// ParseNotifyTime normalizes a user-supplied datetime string to a UTC
// instant. Inputs with an explicit offset or zone marker are taken
// verbatim. Inputs without one are interpreted as wall-clock time in loc,
// resolving the zone's offset for the target date (so daylight-saving
// transitions come out right regardless of when the reminder is created).
func ParseNotifyTime(input string, loc *time.Location) (time.Time, error) {
	if input == "" {
		return time.Time{}, fmt.Errorf("empty datetime")
	}

	if explicitZoneRE.MatchString(input) {
		for _, layout := range zonedLayouts {
			if t, err := time.Parse(layout, input); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable datetime %q", input)
	}

	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, input, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable datetime %q (use YYYY-MM-DDTHH:mm(:ss), optionally with timezone)", input)
}
