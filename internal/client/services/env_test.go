package services

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/client/localdb"
	"github.com/dmitrijs2005/vaxtrack/internal/client/repositories/kvstore"
	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/metrics"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/push"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
	"github.com/stretchr/testify/require"
)

var born = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type testEnv struct {
	store *remote.MemoryStore
	repo  kvstore.Repository
	cache *cache.Cache
	sync  *SyncService
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := localdb.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := kvstore.NewSQLiteRepository(db)
	c := cache.New(repo, cache.WithMirror(cache.NewMirror(1)))
	store := remote.NewMemoryStore()
	return &testEnv{
		store: store,
		repo:  repo,
		cache: c,
		sync:  NewSyncService(store, c, logging.Nop(), metrics.Noop()),
	}
}

// reopen returns a cache over the same storage with a cold mirror, as after
// a process restart.
func (e *testEnv) reopen() *cache.Cache {
	return cache.New(e.repo)
}

func (e *testEnv) raw(t *testing.T) map[string][]byte {
	t.Helper()
	m, err := e.repo.List(context.Background())
	require.NoError(t, err)
	return m
}

func ts(t time.Time) map[string]any {
	return map[string]any{"seconds": t.Unix(), "nanoseconds": 0}
}

// seedRemote stores one user with two babies, their milestone sets, two
// appointments and notifications in the shapes the remote store uses.
func seedRemote(t *testing.T, s *remote.MemoryStore) {
	t.Helper()
	ctx := context.Background()

	put := func(col, id string, data map[string]any) {
		require.NoError(t, s.Put(ctx, col, id, data))
	}

	put(remote.Users, "u1", map[string]any{
		"email": "ana@example.com", "username": "ana", "firstName": "Ana", "lastName": "Lima", "isActive": true,
	})
	put(remote.Users, "u2", map[string]any{"email": "other@example.com"})

	put(remote.Babies, "b2", map[string]any{
		"parentId": "u1", "firstName": "Mia", "lastName": "Lima",
		"birthday": ts(born.AddDate(0, 2, 0)), "createdAt": "2024-03-01T08:00:00Z", "card": []any{},
	})
	put(remote.Babies, "b1", map[string]any{
		"parentId": "u1", "firstName": "Leo", "lastName": "Lima",
		"birthday": ts(born), "createdAt": ts(born), "card": []any{},
	})
	put(remote.Babies, "b9", map[string]any{"parentId": "u2", "firstName": "Zed"})

	for _, b := range []models.Baby{
		{ID: "b1", ParentID: "u1", FirstName: "Leo", LastName: "Lima", Birthday: datex.At(born)},
		{ID: "b2", ParentID: "u1", FirstName: "Mia", LastName: "Lima", Birthday: datex.At(born.AddDate(0, 2, 0))},
	} {
		set, err := models.NewMilestoneSet("m-"+b.ID, b, born)
		require.NoError(t, err)
		put(remote.Milestones, set.ID, remoteMilestones(t, set))
	}

	put(remote.Appointments, "a1", map[string]any{
		"parentId": "u1", "parentName": "Ana Lima", "babyFirstName": "Leo", "babyLastName": "Lima",
		"vaccine": "BCG", "scheduleDate": ts(born.AddDate(0, 0, 3)), "status": "pending",
		"createdAt": ts(born), "updatedAt": ts(born),
	})
	put(remote.Appointments, "a2", map[string]any{
		"parentId": "u1", "babyFirstName": "Leo", "babyLastName": "Lima",
		"vaccine": "Hepatitis B", "status": "history",
	})

	put(remote.Notifications, "n1", map[string]any{
		"receiverId": "u1", "subject": "Clinic", "message": "Open Monday", "isRead": false, "createdAt": ts(born),
	})
	put(remote.Notifications, "n2", map[string]any{
		"receiverId": "all", "subject": "Drive", "message": "Measles drive", "isRead": false,
	})
	put(remote.Notifications, "n3", map[string]any{"receiverId": "u2", "subject": "Not yours"})
}

// remoteMilestones encodes set in the remote layout with timestamp objects
// for every expected date.
func remoteMilestones(t *testing.T, set models.MilestoneSet) map[string]any {
	t.Helper()
	data, err := models.EncodeMilestoneSet(set)
	require.NoError(t, err)
	for _, e := range data["milestone"].([]any) {
		entry := e.(map[string]any)
		tm, err := datex.Normalize(entry["expectedDate"])
		require.NoError(t, err)
		entry["expectedDate"] = ts(tm)
	}
	return data
}

type fakeDispatcher struct {
	mu     sync.Mutex
	msgs   []push.Message
	reject bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, msg push.Message) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reject {
		return false
	}
	f.msgs = append(f.msgs, msg)
	return true
}

func (f *fakeDispatcher) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, m := range f.msgs {
		out = append(out, m.Title)
	}
	return out
}

// flakyStore fails selected writes once, then behaves like the wrapped store.
type flakyStore struct {
	remote.Store

	mu    sync.Mutex
	fails map[string]error
}

func newFlakyStore(s remote.Store) *flakyStore {
	return &flakyStore{Store: s, fails: map[string]error{}}
}

func (f *flakyStore) failNext(op, collection string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fails[op+" "+collection] = err
}

func (f *flakyStore) take(op, collection string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := op + " " + collection
	err := f.fails[key]
	delete(f.fails, key)
	return err
}

func (f *flakyStore) Put(ctx context.Context, collection, id string, data map[string]any) error {
	if err := f.take("put", collection); err != nil {
		return err
	}
	return f.Store.Put(ctx, collection, id, data)
}

func (f *flakyStore) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	if err := f.take("update", collection); err != nil {
		return err
	}
	return f.Store.Update(ctx, collection, id, fields)
}
