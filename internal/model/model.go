package model

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// UntitledPlaceholder replaces blank source titles.
const UntitledPlaceholder = "Untitled"

// ErrNoStart is returned when an event has no determinable start.
var ErrNoStart = errors.New("event has no start time")

// Event is the canonical representation of a calendar entry regardless of
// which feed produced it.
//
// Start is always a concrete instant. For all-day events it is midnight of
// the event date in the display timezone. End is nil when the source did
// not carry one; when set it is never before Start.
type Event struct {
	Title  string
	Start  time.Time
	End    *time.Time
	AllDay bool
	Source string
}

// NewEvent builds a validated Event. A blank title becomes
// UntitledPlaceholder and an end before start is clamped to start.
func NewEvent(title string, start time.Time, end *time.Time, allDay bool, source string) (Event, error) {
	if start.IsZero() {
		return Event{}, ErrNoStart
	}

	title = strings.TrimSpace(title)
	if title == "" {
		title = UntitledPlaceholder
	}

	var endCopy *time.Time
	if end != nil && !end.IsZero() {
		e := *end
		if e.Before(start) {
			e = start
		}
		endCopy = &e
	}

	return Event{
		Title:  title,
		Start:  start,
		End:    endCopy,
		AllDay: allDay,
		Source: source,
	}, nil
}

// Key identifies an event for de-duplication across feeds.
type Key struct {
	Start int64
	Title string
}

// Key returns the (start instant, title) pair used to suppress duplicates.
func (e Event) Key() Key {
	return Key{Start: e.Start.UnixNano(), Title: e.Title}
}

// eventJSON is the wire shape of /events.json.
type eventJSON struct {
	Title  string     `json:"title"`
	Start  time.Time  `json:"start"`
	End    *time.Time `json:"end"`
	AllDay bool       `json:"allDay"`
	Source string     `json:"source"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Title:  e.Title,
		Start:  e.Start,
		End:    e.End,
		AllDay: e.AllDay,
		Source: e.Source,
	})
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var raw eventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev, err := NewEvent(raw.Title, raw.Start, raw.End, raw.AllDay, raw.Source)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
