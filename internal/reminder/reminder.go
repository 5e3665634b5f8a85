// Package reminder classifies vaccination milestones by due date and renders
// the reminder text shown to parents.
//
// Classify is a pure function of normalized milestone entries and the
// current time. It does not know whether its input came from the remote
// store or from the local cache, so both paths always agree.
package reminder

import (
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
)

// Title is the heading of a reminder notification.
const Title = "Vaccination reminder"

// Classification lists vaccine names per due bucket. Names are unique
// within a bucket and keep schedule order.
type Classification struct {
	Overdue     []string `json:"overdue"`
	DueToday    []string `json:"dueToday"`
	DueTomorrow []string `json:"dueTomorrow"`
}

// Empty reports whether nothing is due.
func (c Classification) Empty() bool {
	return len(c.Overdue) == 0 && len(c.DueToday) == 0 && len(c.DueTomorrow) == 0
}

// Classify buckets every unreceived milestone with a valid expected date by
// calendar date. The date of an expected instant is read in the zone it was
// normalized in, the date of now in now's location; time of day never
// matters. Future milestones and entries with an invalid date are left out.
func Classify(milestones []models.MilestoneData, now time.Time) Classification {
	today := datex.CivilDay(now)
	tomorrow := today.AddDate(0, 0, 1)

	var c Classification
	seen := map[*[]string]map[string]bool{}
	add := func(bucket *[]string, name string) {
		if seen[bucket] == nil {
			seen[bucket] = map[string]bool{}
		}
		if seen[bucket][name] {
			return
		}
		seen[bucket][name] = true
		*bucket = append(*bucket, name)
	}

	for _, m := range milestones {
		if m.Received {
			continue
		}
		expected, err := m.ExpectedDate.Time()
		if err != nil {
			continue
		}

		day := datex.CivilDay(expected)
		switch {
		case day.Equal(today):
			add(&c.DueToday, m.Vaccine)
		case day.Equal(tomorrow):
			add(&c.DueTomorrow, m.Vaccine)
		case day.Before(today):
			add(&c.Overdue, m.Vaccine)
		}
	}
	return c
}

// RenderMessage produces one paragraph per non-empty bucket, in the order
// overdue, due today, due tomorrow. It returns "" when nothing is due.
func RenderMessage(c Classification) string {
	var paragraphs []string
	for _, b := range []struct {
		names []string
		verb  string
	}{
		{c.Overdue, "is overdue"},
		{c.DueToday, "is due today"},
		{c.DueTomorrow, "is due tomorrow"},
	} {
		if len(b.names) == 0 {
			continue
		}
		paragraphs = append(paragraphs, strings.Join(b.names, ", ")+" "+b.verb+".")
	}
	return strings.Join(paragraphs, "\n\n")
}
