package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/identity"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
)

type LaunchState int

const (
	// LaunchAuthenticated: a cached profile is marked active.
	LaunchAuthenticated LaunchState = iota + 1
	// LaunchPublic: a cached profile exists but the user logged out.
	LaunchPublic
	// LaunchNoOfflineData: nothing was ever cached on this device.
	LaunchNoOfflineData
)

// SessionService gates the app between the authenticated and public flows.
// Offline, users.isActive stands in for a live session.
type SessionService struct {
	identity identity.Provider
	store    remote.Store
	cache    *cache.Cache
	sync     *SyncService
	log      logging.Logger
}

func NewSessionService(id identity.Provider, store remote.Store, c *cache.Cache, s *SyncService, log logging.Logger) *SessionService {
	return &SessionService{identity: id, store: store, cache: c, sync: s, log: log}
}

// OnlineLogin marks the signed-in user active on the server and snapshots
// all of their data. The first login of a user creates the profile.
func (s *SessionService) OnlineLogin(ctx context.Context) (string, *SyncReport, error) {
	uid, err := s.identity.UserID(ctx)
	if err != nil {
		return "", nil, err
	}

	err = s.store.Update(ctx, remote.Users, uid, map[string]any{"isActive": true})
	if errors.Is(err, remote.ErrNotFound) {
		err = s.store.Put(ctx, remote.Users, uid, map[string]any{"isActive": true})
	}
	if err != nil {
		return uid, nil, fmt.Errorf("activate user: %w", err)
	}

	report, err := s.sync.SyncAll(ctx, uid)
	return uid, report, err
}

// OfflineLaunch decides the flow from the cached profile alone. An
// unreadable profile counts as missing.
func (s *SessionService) OfflineLaunch(ctx context.Context) (LaunchState, models.User) {
	users, ok, err := cache.Load[[]models.User](ctx, s.cache, cache.Users)
	if err != nil {
		s.log.Warn(ctx, "cached profile unreadable", "error", err)
	}
	if err != nil || !ok || len(users) == 0 {
		return LaunchNoOfflineData, models.User{}
	}

	u := users[0]
	if u.IsActive {
		return LaunchAuthenticated, u
	}
	return LaunchPublic, u
}

// Logout marks the cached profile inactive and, when online, the remote one
// as well. An unreadable cached profile is removed instead.
func (s *SessionService) Logout(ctx context.Context, online bool) error {
	var uid string
	err := cache.Modify(ctx, s.cache, cache.Users, func(users *[]models.User) error {
		for i := range *users {
			(*users)[i].IsActive = false
			if uid == "" {
				uid = (*users)[i].ID
			}
		}
		return nil
	})
	if errors.Is(err, cache.ErrCacheRead) {
		s.log.Warn(ctx, "dropping unreadable cached profile", "error", err)
		return s.cache.Clear(ctx, cache.Users)
	}
	if err != nil {
		return err
	}

	if !online || uid == "" {
		return nil
	}
	if err := s.store.Update(ctx, remote.Users, uid, map[string]any{"isActive": false}); err != nil {
		s.log.Warn(ctx, "remote logout failed", "user", uid, "error", err)
		return fmt.Errorf("deactivate user: %w", err)
	}
	return nil
}
