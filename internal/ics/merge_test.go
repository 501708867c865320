package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"famcal/internal/model"
)

func mustEvent(t *testing.T, title string, start time.Time, source string) model.Event {
	t.Helper()
	ev, err := model.NewEvent(title, start, nil, false, source)
	require.NoError(t, err)
	return ev
}

func TestMerge_CollapsesSameStartAndTitle(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 10, 14, 0, 0, 0, cdt)
	cozi := []model.Event{
		mustEvent(t, "Recital", at, "cozi"),
		mustEvent(t, "Dentist", at.Add(time.Hour), "cozi"),
	}
	outlook := []model.Event{
		mustEvent(t, "Recital", at.UTC(), "outlook"),
		mustEvent(t, "Recital", at.Add(24*time.Hour), "outlook"),
	}

	merged := Merge(cozi, outlook)
	require.Len(t, merged, 3)
	assert.Equal(t, "cozi", merged[0].Source)
	assert.Equal(t, "Dentist", merged[1].Title)
	assert.True(t, merged[2].Start.Equal(at.Add(24*time.Hour)))
}

func TestMerge_DuplicatesWithinOneFeed(t *testing.T) {
	t.Parallel()

	at := time.Date(2024, 6, 10, 14, 0, 0, 0, cdt)
	merged := Merge([]model.Event{
		mustEvent(t, "Recital", at, "cozi"),
		mustEvent(t, "Recital", at, "cozi"),
	})
	assert.Len(t, merged, 1)
}

func TestMerge_Empty(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Merge())
	assert.Empty(t, Merge(nil, nil))
}
