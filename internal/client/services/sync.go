package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/metrics"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
)

// SyncReport summarizes one SyncAll run.
type SyncReport struct {
	UserID   string
	Synced   []string
	Failures []*SyncCollectionError
	Duration time.Duration
}

// Warnings joins the per-collection failures, or returns nil.
func (r *SyncReport) Warnings() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, len(r.Failures))
	for i, f := range r.Failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}

// Failed reports whether collection failed in this run.
func (r *SyncReport) Failed(collection string) bool {
	for _, f := range r.Failures {
		if f.Collection == collection {
			return true
		}
	}
	return false
}

type SyncService struct {
	store   remote.Store
	cache   *cache.Cache
	log     logging.Logger
	metrics metrics.Provider
}

func NewSyncService(store remote.Store, c *cache.Cache, log logging.Logger, m metrics.Provider) *SyncService {
	return &SyncService{store: store, cache: c, log: log, metrics: m}
}

type collectionSync struct {
	collection string
	namespace  cache.Namespace
	fetch      func(ctx context.Context, userID string) (any, error)
}

func (s *SyncService) collections() []collectionSync {
	return []collectionSync{
		{remote.Users, cache.Users, s.fetchUser},
		{remote.Babies, cache.Babies, s.fetchBabies},
		{remote.Milestones, cache.Milestones, s.fetchMilestones},
		{remote.Appointments, cache.Appointments, s.fetchAppointments},
		{remote.Notifications, cache.Notifications, s.fetchNotifications},
	}
}

// SyncAll refreshes every collection of userID concurrently. Each collection
// is fetched, normalized and written into its namespace independently; a
// collection that fails keeps its previous cached value and is listed in the
// report.
//
// The run succeeds when the user profile was stored. Otherwise it returns
// ErrUsersSyncFailed, or ErrNoOfflineData when every collection failed and
// the device has never cached a profile.
func (s *SyncService) SyncAll(ctx context.Context, userID string) (*SyncReport, error) {
	start := time.Now()
	cols := s.collections()

	results := make([]error, len(cols))
	var wg sync.WaitGroup
	for i, col := range cols {
		wg.Add(1)
		go func(i int, col collectionSync) {
			defer wg.Done()
			results[i] = s.syncOne(ctx, userID, col)
		}(i, col)
	}
	wg.Wait()

	report := &SyncReport{UserID: userID, Duration: time.Since(start)}
	for i, col := range cols {
		if results[i] == nil {
			report.Synced = append(report.Synced, col.collection)
			continue
		}
		ce := &SyncCollectionError{Collection: col.collection, Err: results[i]}
		report.Failures = append(report.Failures, ce)
		s.metrics.IncSyncFailures(col.collection)
		s.log.Warn(ctx, "collection sync failed", "collection", col.collection, "user", userID, "error", results[i])
	}
	s.metrics.ObserveSyncDuration(report.Duration)

	if !report.Failed(remote.Users) {
		s.log.Info(ctx, "sync finished", "user", userID, "synced", len(report.Synced), "failed", len(report.Failures))
		return report, nil
	}

	if len(report.Failures) == len(cols) {
		has, err := s.cache.Has(ctx, cache.Users)
		if err != nil || !has {
			return report, ErrNoOfflineData
		}
	}
	return report, fmt.Errorf("%w: %w", ErrUsersSyncFailed, report.Failures[0].Err)
}

func (s *SyncService) syncOne(ctx context.Context, userID string, col collectionSync) error {
	value, err := col.fetch(ctx, userID)
	if err != nil {
		return err
	}
	return s.cache.Write(ctx, col.namespace, value)
}

func (s *SyncService) fetchUser(ctx context.Context, userID string) (any, error) {
	doc, err := s.store.Get(ctx, remote.Users, userID)
	if err != nil {
		return nil, err
	}
	u, err := models.Decode[models.User](doc.ID, doc.Data)
	if err != nil {
		return nil, err
	}
	return []models.User{u}, nil
}

func (s *SyncService) fetchBabies(ctx context.Context, userID string) (any, error) {
	docs, err := s.store.Fetch(ctx, remote.Babies, remote.Where("parentId", userID))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, babyKey)
}

func (s *SyncService) fetchMilestones(ctx context.Context, userID string) (any, error) {
	docs, err := s.store.Fetch(ctx, remote.Milestones, remote.Where("parentId", userID))
	if err != nil {
		return nil, err
	}
	return decodeMilestoneSets(docs)
}

func (s *SyncService) fetchAppointments(ctx context.Context, userID string) (any, error) {
	docs, err := s.store.Fetch(ctx, remote.Appointments, remote.Where("parentId", userID))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, appointmentKey)
}

func (s *SyncService) fetchNotifications(ctx context.Context, userID string) (any, error) {
	docs, err := s.store.Fetch(ctx, remote.Notifications, remote.Where("receiverId", userID, models.BroadcastReceiver))
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, notificationKey)
}

func decodeMilestoneSets(docs []remote.Document) ([]models.MilestoneSet, error) {
	out := make([]models.MilestoneSet, 0, len(docs))
	for _, d := range docs {
		set, err := models.DecodeMilestoneSet(d.ID, d.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, set)
	}
	sortByID(out, setKey)
	return out, nil
}
