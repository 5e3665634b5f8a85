package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
	"github.com/google/uuid"
)

var ErrInvalidBaby = errors.New("baby record incomplete")

type BabyService struct {
	store remote.Store
	cache *cache.Cache
	log   logging.Logger
	now   func() time.Time
	newID func() string
}

func NewBabyService(store remote.Store, c *cache.Cache, log logging.Logger) *BabyService {
	return &BabyService{store: store, cache: c, log: log, now: time.Now, newID: uuid.NewString}
}

// Register creates the baby and its milestone set remotely, then appends
// both to the cache. When the milestone set cannot be created the baby is
// removed again, so a retry does not register it twice. A cache failure is
// returned after the remote writes succeeded; the records still arrive with
// the next sync.
func (s *BabyService) Register(ctx context.Context, parentID string, baby models.Baby) (models.Baby, models.MilestoneSet, error) {
	if strings.TrimSpace(baby.FirstName) == "" || strings.TrimSpace(baby.LastName) == "" {
		return models.Baby{}, models.MilestoneSet{}, fmt.Errorf("%w: name required", ErrInvalidBaby)
	}
	if _, err := baby.Birthday.Time(); err != nil {
		return models.Baby{}, models.MilestoneSet{}, fmt.Errorf("%w: birthday: %w", ErrInvalidBaby, err)
	}

	now := s.now()
	baby.ID = s.newID()
	baby.ParentID = parentID
	baby.CreatedAt = datex.At(now)
	if baby.Card == nil {
		baby.Card = []models.CardEntry{}
	}

	set, err := models.NewMilestoneSet(s.newID(), baby, now)
	if err != nil {
		return models.Baby{}, models.MilestoneSet{}, err
	}

	data, err := models.Encode(baby)
	if err != nil {
		return models.Baby{}, models.MilestoneSet{}, err
	}
	if err := s.store.Put(ctx, remote.Babies, baby.ID, data); err != nil {
		return models.Baby{}, models.MilestoneSet{}, fmt.Errorf("create baby: %w", err)
	}

	setData, err := models.EncodeMilestoneSet(set)
	if err != nil {
		return models.Baby{}, models.MilestoneSet{}, err
	}
	if err := s.store.Put(ctx, remote.Milestones, set.ID, setData); err != nil {
		// a baby without its schedule must not survive; the caller retries
		if derr := s.store.Delete(ctx, remote.Babies, baby.ID); derr != nil {
			s.log.Warn(ctx, "orphan baby left behind", "baby", baby.ID, "error", derr)
		}
		return models.Baby{}, models.MilestoneSet{}, fmt.Errorf("create milestones: %w", err)
	}

	errB := cache.Modify(ctx, s.cache, cache.Babies, func(list *[]models.Baby) error {
		*list = upsert(*list, baby, babyKey)
		return nil
	})
	errM := cache.Modify(ctx, s.cache, cache.Milestones, func(list *[]models.MilestoneSet) error {
		*list = upsert(*list, set, setKey)
		return nil
	})
	return baby, set, errors.Join(errB, errM)
}
