package reminder

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func milestone(vaccine string, expected any, received bool) models.MilestoneData {
	return models.MilestoneData{Vaccine: vaccine, ExpectedDate: datex.From(expected), Received: received}
}

func TestClassify_Buckets(t *testing.T) {
	now := time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name string
		m    models.MilestoneData
		want Classification
	}{
		{"due today", milestone("A", "2024-03-10", false), Classification{DueToday: []string{"A"}}},
		{"due tomorrow", milestone("A", "2024-03-11", false), Classification{DueTomorrow: []string{"A"}}},
		{"overdue", milestone("A", "2024-03-05", false), Classification{Overdue: []string{"A"}}},
		{"received excluded", milestone("A", "2024-03-10", true), Classification{}},
		{"invalid date excluded", milestone("A", "not-a-date", false), Classification{}},
		{"missing date excluded", milestone("A", nil, false), Classification{}},
		{"future excluded", milestone("A", "2024-03-12", false), Classification{}},
		{"time of day ignored", milestone("A", "2024-03-10T23:59:00Z", false), Classification{DueToday: []string{"A"}}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify([]models.MilestoneData{tc.m}, now))
		})
	}
}

func useDeviceLocation(t *testing.T, loc *time.Location) {
	t.Helper()
	datex.SetLocation(loc)
	t.Cleanup(func() { datex.SetLocation(nil) })
}

func TestClassify_WestOfUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	baby, err := models.Decode[models.Baby]("b1", map[string]any{"parentId": "u1", "birthday": "2024-01-01"})
	require.NoError(t, err)
	set, err := models.NewMilestoneSet("m1", baby, day(2024, 1, 1))
	require.NoError(t, err)

	for _, now := range []time.Time{
		time.Date(2024, 2, 16, 10, 0, 0, 0, est),
		time.Date(2024, 2, 16, 23, 30, 0, 0, est),
	} {
		c := Classify(set.MilestoneData, now)
		assert.Contains(t, c.DueToday, "Pentavalent (1st dose)", "now %s", now)
		assert.Equal(t, []string{"BCG", "Hepatitis B"}, c.Overdue, "now %s", now)
	}
}

func TestClassify_DeviceLocationWestOfUTC(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)
	useDeviceLocation(t, est)

	baby, err := models.Decode[models.Baby]("b1", map[string]any{"birthday": "2024-01-01"})
	require.NoError(t, err)
	set, err := models.NewMilestoneSet("m1", baby, day(2024, 1, 1))
	require.NoError(t, err)

	// through the remote layout and back, as sync stores it
	doc, err := models.EncodeMilestoneSet(set)
	require.NoError(t, err)
	cached, err := models.DecodeMilestoneSet("m1", doc)
	require.NoError(t, err)

	now := time.Date(2024, 2, 16, 21, 0, 0, 0, est)
	c := Classify(cached.MilestoneData, now)
	assert.Contains(t, c.DueToday, "Pentavalent (1st dose)")
	assert.NotContains(t, c.Overdue, "Pentavalent (1st dose)")

	// a timestamp object for local midnight lands on the same day
	stamp := milestone("A", map[string]any{"seconds": float64(time.Date(2024, 2, 17, 5, 0, 0, 0, time.UTC).Unix())}, false)
	assert.Equal(t, []string{"A"}, Classify([]models.MilestoneData{stamp}, now).DueTomorrow)
}

func TestClassify_DeviceLocationEastOfUTC(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	useDeviceLocation(t, loc)

	// 2024-03-10 20:00 UTC is already March 11 in UTC+8
	m := milestone("A", map[string]any{"seconds": float64(time.Date(2024, 3, 10, 20, 0, 0, 0, time.UTC).Unix())}, false)

	now := time.Date(2024, 3, 11, 9, 0, 0, 0, loc)
	assert.Equal(t, []string{"A"}, Classify([]models.MilestoneData{m}, now).DueToday)
}

func TestClassify_DeduplicatesNames(t *testing.T) {
	now := day(2024, 3, 10)
	ms := []models.MilestoneData{
		milestone("BCG", "2024-01-01", false),
		milestone("BCG", "2024-01-02", false),
		milestone("OPV", "2024-01-03", false),
	}
	assert.Equal(t, []string{"BCG", "OPV"}, Classify(ms, now).Overdue)
}

func TestClassify_EndToEndSchedule(t *testing.T) {
	born := day(2024, 1, 1)
	ms := models.BuildMilestones(born, born)

	var picked []models.MilestoneData
	for _, m := range ms {
		if m.Vaccine == "BCG" || m.Vaccine == "Pentavalent (1st dose)" {
			picked = append(picked, m)
		}
	}
	require.Len(t, picked, 2)

	c := Classify(picked, day(2024, 2, 16))
	assert.Equal(t, []string{"BCG"}, c.Overdue)
	assert.Equal(t, []string{"Pentavalent (1st dose)"}, c.DueToday)
	assert.Empty(t, c.DueTomorrow)
}

func TestClassify_SourceIndependent(t *testing.T) {
	// the same entries decoded from a remote document and from a cache
	// value must classify identically
	born := day(2024, 1, 1)
	set := models.MilestoneSet{ID: "m1", BabyID: "b1", MilestoneData: models.BuildMilestones(born, born)}

	remoteShape, err := models.EncodeMilestoneSet(set)
	require.NoError(t, err)
	// the remote store hands out timestamp objects
	for _, e := range remoteShape["milestone"].([]any) {
		entry := e.(map[string]any)
		tm, err := datex.Normalize(entry["expectedDate"])
		require.NoError(t, err)
		entry["expectedDate"] = map[string]any{"seconds": float64(tm.Unix()), "nanoseconds": float64(0)}
	}
	fromRemote, err := models.DecodeMilestoneSet("m1", remoteShape)
	require.NoError(t, err)

	now := day(2024, 4, 16)
	assert.Equal(t, Classify(set.MilestoneData, now), Classify(fromRemote.MilestoneData, now))
}

func TestRenderMessage(t *testing.T) {
	assert.Equal(t, "", RenderMessage(Classification{}))
	assert.True(t, Classification{}.Empty())

	msg := RenderMessage(Classification{
		Overdue:     []string{"BCG", "Hepatitis B"},
		DueToday:    []string{"Pentavalent (1st dose)"},
		DueTomorrow: []string{"Oral Polio Vaccine (1st dose)"},
	})
	assert.Equal(t,
		"BCG, Hepatitis B is overdue.\n\n"+
			"Pentavalent (1st dose) is due today.\n\n"+
			"Oral Polio Vaccine (1st dose) is due tomorrow.",
		msg)

	assert.Equal(t, "OPV is due tomorrow.", RenderMessage(Classification{DueTomorrow: []string{"OPV"}}))
}
