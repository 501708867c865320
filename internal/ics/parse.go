package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "famcal/internal/log"
	"famcal/internal/model"
)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\,`, `,`, `\;`, `;`, `\n`, "\n", `\N`, "\n")

// Normalize parses a single ICS payload into canonical events anchored to
// loc (time.Local when nil).
//
//   - DTSTART typed as a bare date produces an all-day event at midnight of
//     that date in loc; a date-time is converted to loc.
//   - DTEND is converted the same way and left unset when absent.
//   - VEVENTs without a parseable DTSTART are logged and skipped.
//
// Recurrence rules are not expanded; only the first instance is returned.
func Normalize(src Source, body []byte, loc *time.Location) ([]model.Event, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	zones := collectZones(cal)
	vevents := cal.Events()
	events := make([]model.Event, 0, len(vevents))
	for _, ve := range vevents {
		ev, perr := normalizeVEvent(src, ve, loc, zones)
		if perr != nil {
			appLog.Warn("ics vevent skipped", "err", perr, "id", src.ID, "uid", propertyValue(ve.GetProperty(ical.ComponentPropertyUniqueId)))
			continue
		}
		events = append(events, ev)
	}

	appLog.Info("ics normalize completed", "id", src.ID, "url", redactURL(src.URL), "event_count", len(events), "vevent_count", len(vevents))
	return events, nil
}

func normalizeVEvent(src Source, ve *ical.VEvent, loc *time.Location, zones calendarZones) (model.Event, error) {
	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return model.Event{}, model.ErrNoStart
	}
	start, allDay, err := parseTimeProperty(startProp, loc, zones)
	if err != nil {
		return model.Event{}, fmt.Errorf("%w: %v", model.ErrNoStart, err)
	}

	var end *time.Time
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if t, _, err := parseTimeProperty(endProp, loc, zones); err == nil {
			end = &t
		}
	}

	return model.NewEvent(eventTitle(src, ve), start, end, allDay, src.ID)
}

// eventTitle uses SUMMARY, prefixed by the feed label. Blank summaries get
// the bare placeholder.
func eventTitle(src Source, ve *ical.VEvent) string {
	summary := sanitize(textUnescaper.Replace(propertyValue(ve.GetProperty(ical.ComponentPropertySummary))))
	if summary == "" {
		return model.UntitledPlaceholder
	}
	return src.Label + summary
}

// parseTimeProperty interprets a DTSTART/DTEND property. The boolean
// reports whether the value was a bare date.
func parseTimeProperty(prop *ical.IANAProperty, loc *time.Location, zones calendarZones) (time.Time, bool, error) {
	value := strings.TrimSpace(prop.Value)
	if value == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	if isDateValue(prop) {
		d, err := time.Parse("20060102", value[:min(len(value), 8)])
		if err != nil {
			return time.Time{}, true, err
		}
		return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc), true, nil
	}

	if strings.HasSuffix(value, "Z") {
		for _, layout := range []string{"20060102T150405Z", "20060102T1504Z"} {
			if t, err := time.Parse(layout, value); err == nil {
				return t.In(loc), false, nil
			}
		}
		return time.Time{}, false, fmt.Errorf("unable to parse time value %q", value)
	}

	wall, err := parseWallClock(value)
	if err != nil {
		return time.Time{}, false, err
	}

	// TZID resolves through Go's zone database first, then the feed's own
	// VTIMEZONE. Floating values and unknown zones are read in loc.
	if tzids, ok := prop.ICalParameters["TZID"]; ok && len(tzids) > 0 {
		tzid := strings.Trim(strings.TrimSpace(tzids[0]), `"`)
		if l, err := time.LoadLocation(tzid); err == nil {
			return inZone(wall, l).In(loc), false, nil
		}
		if z, ok := zones[tzid]; ok {
			return z.instant(wall).In(loc), false, nil
		}
		appLog.Debug("unknown TZID; reading as display zone", "tzid", tzid)
	}
	return inZone(wall, loc), false, nil
}

func inZone(wall time.Time, l *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(), wall.Hour(), wall.Minute(), wall.Second(), 0, l)
}

// isDateValue reports VALUE=DATE or a value without a time part.
func isDateValue(prop *ical.IANAProperty) bool {
	for _, v := range prop.ICalParameters["VALUE"] {
		if strings.EqualFold(strings.TrimSpace(v), "DATE") {
			return true
		}
	}
	return !strings.Contains(prop.Value, "T")
}

func propertyValue(prop *ical.IANAProperty) string {
	if prop == nil {
		return ""
	}
	return prop.Value
}

func sanitize(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
