package window

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

var cdt = time.FixedZone("CDT", -5*60*60)

func event(t *testing.T, title string, start time.Time, allDay bool) model.Event {
	t.Helper()
	ev, err := model.NewEvent(title, start, nil, allDay, "cozi")
	require.NoError(t, err)
	return ev
}

func titles(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Title)
	}
	return out
}

func TestSelect_ReferenceExample(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 8, 0, 0, 0, cdt) // Monday
	events := []model.Event{
		event(t, "Beyond horizon", time.Date(2024, 6, 20, 10, 0, 0, 0, cdt), false),
		event(t, "Field trip", time.Date(2024, 6, 11, 0, 0, 0, 0, cdt), true),
		event(t, "Recital", time.Date(2024, 6, 10, 14, 0, 0, 0, cdt), false),
	}

	v := Select(events, now, 7)

	assert.Equal(t, []string{"Recital"}, titles(v.Today))
	require.Len(t, v.Upcoming, 1)
	assert.Equal(t, []string{"Field trip"}, titles(v.Upcoming["Tuesday"]))
	require.Len(t, v.Days, 1)
	assert.Equal(t, "Tuesday", v.Days[0].Label)
}

func TestSelect_BucketsAreExclusive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 23, 30, 0, 0, cdt)
	events := []model.Event{
		event(t, "Yesterday", time.Date(2024, 6, 9, 10, 0, 0, 0, cdt), false),
		event(t, "Tonight", time.Date(2024, 6, 10, 23, 45, 0, 0, cdt), false),
		event(t, "Tomorrow", time.Date(2024, 6, 11, 0, 15, 0, 0, cdt), false),
		event(t, "Last day", time.Date(2024, 6, 17, 22, 0, 0, 0, cdt), false),
		event(t, "Day after", time.Date(2024, 6, 18, 0, 0, 0, 0, cdt), true),
	}

	v := Select(events, now, 7)

	assert.Equal(t, []string{"Tonight"}, titles(v.Today))
	assert.Equal(t, []string{"Tomorrow"}, titles(v.Upcoming["Tuesday"]))
	assert.Equal(t, []string{"Last day"}, titles(v.Upcoming["Monday"]))
	assert.Len(t, v.Upcoming, 2)
}

func TestSelect_ComparesDatesInReferenceZone(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 9, 0, 0, 0, cdt)
	// 03:00 UTC on the 11th is 22:00 CDT on the 10th.
	late := event(t, "Late show", time.Date(2024, 6, 11, 3, 0, 0, 0, time.UTC), false)

	v := Select([]model.Event{late}, now, 7)
	assert.Equal(t, []string{"Late show"}, titles(v.Today))
	assert.Empty(t, v.Upcoming)
}

func TestSelect_SortsWithinBuckets(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 6, 0, 0, 0, cdt)
	events := []model.Event{
		event(t, "Evening", time.Date(2024, 6, 10, 18, 0, 0, 0, cdt), false),
		event(t, "Morning", time.Date(2024, 6, 10, 7, 0, 0, 0, cdt), false),
		event(t, "Birthday", time.Date(2024, 6, 10, 0, 0, 0, 0, cdt), true),
		event(t, "Wed lunch", time.Date(2024, 6, 12, 12, 0, 0, 0, cdt), false),
		event(t, "Tue dinner", time.Date(2024, 6, 11, 18, 0, 0, 0, cdt), false),
	}

	v := Select(events, now, 7)
	assert.Equal(t, []string{"Birthday", "Morning", "Evening"}, titles(v.Today))
	require.Len(t, v.Days, 2)
	assert.Equal(t, "Tuesday", v.Days[0].Label)
	assert.Equal(t, "Wednesday", v.Days[1].Label)
	assert.True(t, v.Days[0].Date.Equal(time.Date(2024, 6, 11, 0, 0, 0, 0, cdt)))
}

func TestSelect_LongHorizonUsesDateLabels(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 6, 0, 0, 0, cdt)
	events := []model.Event{
		event(t, "First", time.Date(2024, 6, 11, 9, 0, 0, 0, cdt), false),
		event(t, "Second", time.Date(2024, 6, 18, 9, 0, 0, 0, cdt), false),
		event(t, "Out", time.Date(2024, 6, 25, 9, 0, 0, 0, cdt), false),
	}

	v := Select(events, now, 14)
	assert.Equal(t, []string{"First"}, titles(v.Upcoming["Tuesday Jun 11"]))
	assert.Equal(t, []string{"Second"}, titles(v.Upcoming["Tuesday Jun 18"]))
	assert.Len(t, v.Upcoming, 2)
}

func TestSelect_DefaultHorizonAndInputUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 6, 0, 0, 0, cdt)
	events := []model.Event{
		event(t, "B", time.Date(2024, 6, 12, 9, 0, 0, 0, cdt), false),
		event(t, "A", time.Date(2024, 6, 11, 9, 0, 0, 0, cdt), false),
	}

	v := Select(events, now, 0)
	assert.Equal(t, DefaultHorizonDays, v.HorizonDays)
	assert.Equal(t, []string{"B", "A"}, titles(events))
}

func TestHorizon_IncludesTodayThroughLastDay(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 10, 12, 0, 0, 0, cdt)
	events := []model.Event{
		event(t, "Out", time.Date(2024, 6, 18, 0, 0, 0, 0, cdt), true),
		event(t, "Last", time.Date(2024, 6, 17, 23, 0, 0, 0, cdt), false),
		event(t, "Earlier today", time.Date(2024, 6, 10, 7, 0, 0, 0, cdt), false),
		event(t, "Past", time.Date(2024, 6, 9, 7, 0, 0, 0, cdt), false),
	}

	assert.Equal(t, []string{"Earlier today", "Last"}, titles(Horizon(events, now, 7)))
}

func TestDaysBetween_AcrossDST(t *testing.T) {
	t.Parallel()

	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	ref := time.Date(2024, 3, 9, 23, 0, 0, 0, ny)
	assert.Equal(t, 1, DaysBetween(ref, time.Date(2024, 3, 10, 1, 0, 0, 0, ny)))
	assert.Equal(t, 2, DaysBetween(ref, time.Date(2024, 3, 11, 0, 0, 0, 0, ny)))
}

func TestLabels(t *testing.T) {
	t.Parallel()

	morning := event(t, "Run", time.Date(2024, 6, 10, 9, 5, 0, 0, cdt), false)
	afternoon := event(t, "Nap", time.Date(2024, 6, 10, 14, 0, 0, 0, cdt), false)
	allDay := event(t, "Holiday", time.Date(2024, 6, 10, 0, 0, 0, 0, cdt), true)

	assert.Equal(t, "9:05 AM", TimeLabel(morning))
	assert.Equal(t, "2:00 PM", TimeLabel(afternoon))
	assert.Equal(t, "", TimeLabel(allDay))
	assert.Equal(t, "Monday Jun 10", DayLabel(morning.Start))
}
