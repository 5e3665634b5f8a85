package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/push"
	"github.com/dmitrijs2005/vaxtrack/internal/reminder"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
)

// MilestoneSource yields the normalized milestone sets of a user. Both
// implementations decode through models.DecodeMilestoneSet, so entries from
// either source are identical.
type MilestoneSource interface {
	MilestoneSets(ctx context.Context, userID string) ([]models.MilestoneSet, error)
}

// CacheMilestoneSource reads the milestones namespace. An unreadable
// namespace is reported as empty.
type CacheMilestoneSource struct {
	Cache *cache.Cache
	Log   logging.Logger
}

func (s CacheMilestoneSource) MilestoneSets(ctx context.Context, userID string) ([]models.MilestoneSet, error) {
	sets, _, err := cache.Load[[]models.MilestoneSet](ctx, s.Cache, cache.Milestones)
	if err != nil {
		s.Log.Warn(ctx, "milestones unreadable", "error", err)
		return nil, nil
	}

	out := make([]models.MilestoneSet, 0, len(sets))
	for _, set := range sets {
		if set.ParentID != "" && set.ParentID != userID {
			continue
		}
		// cached values were produced by the same decoder; only ordering is
		// re-established
		models.SortMilestones(set.MilestoneData)
		out = append(out, set)
	}
	return out, nil
}

// RemoteMilestoneSource queries the milestones collection live.
type RemoteMilestoneSource struct {
	Store remote.Store
}

func (s RemoteMilestoneSource) MilestoneSets(ctx context.Context, userID string) ([]models.MilestoneSet, error) {
	docs, err := s.Store.Fetch(ctx, remote.Milestones, remote.Where("parentId", userID))
	if err != nil {
		return nil, err
	}
	return decodeMilestoneSets(docs)
}

// Reminder is the classification of one baby's schedule.
type Reminder struct {
	BabyID         string
	Classification reminder.Classification
	Message        string
}

type ReminderService struct {
	dispatcher  Dispatcher
	deviceToken string
	now         func() time.Time
}

func NewReminderService(d Dispatcher, deviceToken string) *ReminderService {
	return &ReminderService{dispatcher: d, deviceToken: deviceToken, now: func() time.Time {
		return time.Now().In(datex.Location())
	}}
}

// Compute classifies the milestones of babyID taken from src. A baby with
// several milestone sets is classified over all of their entries.
func (s *ReminderService) Compute(ctx context.Context, src MilestoneSource, userID, babyID string) (Reminder, error) {
	sets, err := src.MilestoneSets(ctx, userID)
	if err != nil {
		return Reminder{}, err
	}

	var entries []models.MilestoneData
	for _, set := range sets {
		if set.BabyID == babyID {
			entries = append(entries, set.MilestoneData...)
		}
	}
	models.SortMilestones(entries)

	c := reminder.Classify(entries, s.now())
	return Reminder{BabyID: babyID, Classification: c, Message: reminder.RenderMessage(c)}, nil
}

// Notify pushes r unless nothing is due. It reports whether a push was
// queued.
func (s *ReminderService) Notify(ctx context.Context, r Reminder) bool {
	if r.Message == "" || s.dispatcher == nil {
		return false
	}
	return s.dispatcher.Dispatch(ctx, push.Message{
		Token: s.deviceToken,
		Title: reminder.Title,
		Body:  r.Message,
		Data:  map[string]string{"babyId": r.BabyID},
	})
}
