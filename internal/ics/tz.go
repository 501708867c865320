package ics

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	appLog "famcal/internal/log"
)

// propertyGetter is implemented by the STANDARD and DAYLIGHT
// sub-components of a VTIMEZONE.
type propertyGetter interface {
	GetProperty(ical.ComponentProperty) *ical.IANAProperty
}

// observance is one STANDARD or DAYLIGHT block. Onsets are wall-clock
// times carried in UTC, the same way event values are read before a zone
// is applied.
type observance struct {
	offset int
	onsets *rrule.Set
	first  time.Time
}

// zoneDef is a VTIMEZONE as declared by the feed. Outlook and Exchange use
// Windows names ("Pacific Standard Time") that time.LoadLocation does not
// know, so the offsets come from the feed itself.
type zoneDef struct {
	id          string
	observances []observance
}

// calendarZones indexes the feed's VTIMEZONE components by TZID.
type calendarZones map[string]*zoneDef

func collectZones(cal *ical.Calendar) calendarZones {
	zones := calendarZones{}
	for _, vtz := range cal.Timezones() {
		id := strings.Trim(strings.TrimSpace(propertyValue(vtz.GetProperty(ical.ComponentPropertyTzid))), `"`)
		if id == "" {
			continue
		}
		def := &zoneDef{id: id}
		for _, sub := range vtz.Components {
			pg, ok := sub.(propertyGetter)
			if !ok {
				continue
			}
			obs, err := parseObservance(pg)
			if err != nil {
				appLog.Debug("vtimezone observance skipped", "tzid", id, "err", err)
				continue
			}
			def.observances = append(def.observances, obs)
		}
		if len(def.observances) > 0 {
			zones[id] = def
		}
	}
	return zones
}

func parseObservance(pg propertyGetter) (observance, error) {
	offset, err := parseUTCOffset(propertyValue(pg.GetProperty(ical.ComponentProperty(ical.PropertyTzoffsetto))))
	if err != nil {
		return observance{}, fmt.Errorf("TZOFFSETTO: %w", err)
	}
	start, err := parseWallClock(propertyValue(pg.GetProperty(ical.ComponentPropertyDtStart)))
	if err != nil {
		return observance{}, fmt.Errorf("DTSTART: %w", err)
	}

	var set rrule.Set
	set.RDate(start)
	if raw := propertyValue(pg.GetProperty(ical.ComponentPropertyRrule)); raw != "" {
		r, err := rrule.StrToRRule(raw)
		if err != nil {
			return observance{}, fmt.Errorf("RRULE: %w", err)
		}
		r.DTStart(start)
		set.RRule(r)
	}
	if rdate := pg.GetProperty(ical.ComponentPropertyRdate); rdate != nil {
		for _, v := range strings.Split(rdate.Value, ",") {
			if t, err := parseWallClock(v); err == nil {
				set.RDate(t)
			}
		}
	}

	return observance{offset: offset, onsets: &set, first: start}, nil
}

// offsetAt returns the UTC offset in effect at the given wall-clock time:
// the observance with the latest onset not after it. Before every onset the
// earliest declared observance applies.
func (z *zoneDef) offsetAt(wall time.Time) int {
	best := -1
	var bestOnset time.Time
	for i, obs := range z.observances {
		onset := obs.onsets.Before(wall, true)
		if onset.IsZero() {
			continue
		}
		if best < 0 || onset.After(bestOnset) {
			best, bestOnset = i, onset
		}
	}
	if best >= 0 {
		return z.observances[best].offset
	}

	earliest := 0
	for i, obs := range z.observances {
		if obs.first.Before(z.observances[earliest].first) {
			earliest = i
		}
	}
	return z.observances[earliest].offset
}

// instant converts a wall-clock time (carried in UTC) read in this zone to
// the real instant.
func (z *zoneDef) instant(wall time.Time) time.Time {
	return inZone(wall, time.FixedZone(z.id, z.offsetAt(wall)))
}

// parseUTCOffset parses "+HHMM", "-HHMM" or "+HHMMSS" into seconds east of UTC.
func parseUTCOffset(v string) (int, error) {
	v = strings.TrimSpace(v)
	if len(v) != 5 && len(v) != 7 {
		return 0, fmt.Errorf("bad utc offset %q", v)
	}
	sign := 1
	switch v[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("bad utc offset %q", v)
	}
	secs := 0
	for i, mul := range []int{3600, 60, 1} {
		lo := 1 + 2*i
		if lo >= len(v) {
			break
		}
		n, err := strconv.Atoi(v[lo : lo+2])
		if err != nil {
			return 0, fmt.Errorf("bad utc offset %q", v)
		}
		secs += n * mul
	}
	return sign * secs, nil
}

// parseWallClock reads a local date-time value ("20240610T090000") as a
// wall clock carried in UTC.
func parseWallClock(v string) (time.Time, error) {
	v = strings.TrimSuffix(strings.TrimSpace(v), "Z")
	for _, layout := range []string{"20060102T150405", "20060102T1504", "20060102"} {
		if t, err := time.ParseInLocation(layout, v, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse time value %q", v)
}
