// Package window partitions the normalized event list into the display
// buckets used by the dashboard and the static site.
package window

import (
	"sort"
	"strings"
	"time"

	"famcal/internal/model"
)

// DefaultHorizonDays is used when a caller passes a non-positive horizon.
const DefaultHorizonDays = 7

// DayGroup is one labelled day of upcoming events, in start order.
type DayGroup struct {
	Label  string        `json:"label"`
	Date   time.Time     `json:"date"`
	Events []model.Event `json:"events"`
}

// View is the result of partitioning events around a reference time.
type View struct {
	Now         time.Time `json:"now"`
	HorizonDays int       `json:"horizonDays"`

	Today []model.Event `json:"today"`
	// Upcoming maps a day label to that day's events.
	Upcoming map[string][]model.Event `json:"upcoming"`
	// Days holds the same upcoming events as ordered groups.
	Days []DayGroup `json:"-"`
}

// Select partitions events relative to now. Dates are compared in now's
// location. Today holds events starting on now's date; upcoming events start
// 1..horizonDays days later. Everything else, including past events, is in
// neither bucket. The input slice is not modified.
func Select(events []model.Event, now time.Time, horizonDays int) View {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	loc := now.Location()

	v := View{
		Now:         now,
		HorizonDays: horizonDays,
		Today:       []model.Event{},
		Upcoming:    map[string][]model.Event{},
		Days:        []DayGroup{},
	}

	sorted := Sorted(events)
	for _, ev := range sorted {
		offset := DaysBetween(now, ev.Start.In(loc))
		switch {
		case offset == 0:
			v.Today = append(v.Today, ev)
		case offset > 0 && offset <= horizonDays:
			label := GroupLabel(ev.Start.In(loc), horizonDays)
			if n := len(v.Days); n == 0 || v.Days[n-1].Label != label {
				v.Days = append(v.Days, DayGroup{Label: label, Date: startOfDay(ev.Start.In(loc))})
			}
			last := &v.Days[len(v.Days)-1]
			last.Events = append(last.Events, ev)
			v.Upcoming[label] = append(v.Upcoming[label], ev)
		}
	}

	return v
}

// Horizon returns the events starting from now's date through horizonDays
// days later, inclusive, sorted by start.
func Horizon(events []model.Event, now time.Time, horizonDays int) []model.Event {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	out := make([]model.Event, 0, len(events))
	for _, ev := range Sorted(events) {
		offset := DaysBetween(now, ev.Start.In(now.Location()))
		if offset >= 0 && offset <= horizonDays {
			out = append(out, ev)
		}
	}
	return out
}

// Sorted returns a copy of events ordered by start. All-day events carry
// their anchored midnight, so they sort ahead of same-day timed events;
// equal starts put all-day first, then order by title.
func Sorted(events []model.Event) []model.Event {
	out := make([]model.Event, len(events))
	copy(out, events)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.AllDay != b.AllDay {
			return a.AllDay
		}
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	})
	return out
}

// DaysBetween counts calendar days from ref's date to t's date, both taken
// in their own locations. It is DST-safe.
func DaysBetween(ref, t time.Time) int {
	a := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// GroupLabel names the upcoming bucket for t. Within a week the weekday
// name is unique; longer horizons add the date.
func GroupLabel(t time.Time, horizonDays int) string {
	if horizonDays <= 7 {
		return t.Format("Monday")
	}
	return DayLabel(t)
}

// DayLabel formats a day heading, e.g. "Monday Jun 10".
func DayLabel(t time.Time) string {
	return t.Format("Monday Jan 02")
}

// TimeLabel formats a 12-hour clock label without a leading zero, e.g.
// "9:05 AM". All-day events have no time label.
func TimeLabel(ev model.Event) string {
	if ev.AllDay {
		return ""
	}
	return ev.Start.Format("3:04 PM")
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
