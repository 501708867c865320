package ics

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

var cdt = time.FixedZone("CDT", -5*60*60)

func calendar(vevents ...string) []byte {
	out := "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//famcal//test//EN\r\n"
	for _, v := range vevents {
		out += "BEGIN:VEVENT\r\n" + v + "END:VEVENT\r\n"
	}
	return []byte(out + "END:VCALENDAR\r\n")
}

func TestNormalize_BareDateIsAllDayAtLocalMidnight(t *testing.T) {
	t.Parallel()

	body := calendar("UID:a\r\nSUMMARY:Field trip\r\nDTSTART;VALUE=DATE:20240611\r\nDTEND;VALUE=DATE:20240612\r\n")

	events, err := Normalize(Source{ID: "cozi"}, body, cdt)
	require.NoError(t, err)
	require.Len(t, events, 1)

	ev := events[0]
	assert.True(t, ev.AllDay)
	assert.True(t, ev.Start.Equal(time.Date(2024, 6, 11, 0, 0, 0, 0, cdt)), "start %s", ev.Start)
	assert.Equal(t, cdt, ev.Start.Location())
	require.NotNil(t, ev.End)
	assert.True(t, ev.End.Equal(time.Date(2024, 6, 12, 0, 0, 0, 0, cdt)))
}

func TestNormalize_DateWithoutValueParamIsAllDay(t *testing.T) {
	t.Parallel()

	body := calendar("UID:a\r\nSUMMARY:Holiday\r\nDTSTART:20240704\r\n")

	events, err := Normalize(Source{ID: "cozi"}, body, cdt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, 0, events[0].Start.Hour())
}

func TestNormalize_DateTimeConvertedToLocalZone(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		start string
	}{
		{name: "utc", start: "DTSTART:20240610T190000Z\r\n"},
		{name: "floating", start: "DTSTART:20240610T140000\r\n"},
		{name: "tzid", start: "DTSTART;TZID=America/Chicago:20240610T140000\r\n"},
		{name: "quoted_tzid", start: "DTSTART;TZID=\"America/Chicago\":20240610T140000\r\n"},
	}

	want := time.Date(2024, 6, 10, 14, 0, 0, 0, cdt)
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			events, err := Normalize(Source{ID: "outlook"}, calendar("UID:x\r\nSUMMARY:Recital\r\n"+tc.start), cdt)
			require.NoError(t, err)
			require.Len(t, events, 1)

			ev := events[0]
			assert.False(t, ev.AllDay)
			assert.True(t, ev.Start.Equal(want), "start %s", ev.Start)
			assert.Equal(t, cdt, ev.Start.Location())
		})
	}
}

func TestNormalize_MissingEndLeftUnset(t *testing.T) {
	t.Parallel()

	events, err := Normalize(Source{ID: "cozi"}, calendar("UID:a\r\nSUMMARY:Pickup\r\nDTSTART:20240610T150000Z\r\n"), cdt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].End)
}

func TestNormalize_TitlesAndSourceTag(t *testing.T) {
	t.Parallel()

	body := calendar(
		"UID:a\r\nSUMMARY:Staff meeting\r\nDTSTART:20240610T150000Z\r\n",
		"UID:b\r\nDTSTART:20240610T160000Z\r\n",
		"UID:c\r\nSUMMARY:Lunch\\, with team\r\nDTSTART:20240610T170000Z\r\n",
	)

	events, err := Normalize(Source{ID: "outlook", Label: "NTC: "}, body, cdt)
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, "NTC: Staff meeting", events[0].Title)
	assert.Equal(t, model.UntitledPlaceholder, events[1].Title)
	assert.Equal(t, "NTC: Lunch, with team", events[2].Title)
	for _, ev := range events {
		assert.Equal(t, "outlook", ev.Source)
	}
}

func TestNormalize_SkipsEventsWithoutUsableStart(t *testing.T) {
	t.Parallel()

	body := calendar(
		"UID:a\r\nSUMMARY:No start\r\n",
		"UID:b\r\nSUMMARY:Garbage start\r\nDTSTART:not-a-date\r\n",
		"UID:c\r\nSUMMARY:Fine\r\nDTSTART:20240610T150000Z\r\n",
	)

	events, err := Normalize(Source{ID: "cozi"}, body, cdt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Fine", events[0].Title)
}

func TestNormalize_EmptyBody(t *testing.T) {
	t.Parallel()

	_, err := Normalize(Source{ID: "cozi"}, []byte("  \n"), cdt)
	assert.Error(t, err)
}
