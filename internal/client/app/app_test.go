package app

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/client/config"
	"github.com/dmitrijs2005/vaxtrack/internal/client/localdb"
	"github.com/dmitrijs2005/vaxtrack/internal/client/repositories/kvstore"
	"github.com/dmitrijs2005/vaxtrack/internal/client/services"
	"github.com/dmitrijs2005/vaxtrack/internal/datex"
	"github.com/dmitrijs2005/vaxtrack/internal/identity"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/metrics"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/push"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingChannel struct {
	mu   sync.Mutex
	msgs []push.Message
}

func (r *recordingChannel) Send(_ context.Context, msg push.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingChannel) titles() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []string{}
	for _, m := range r.msgs {
		out = append(out, m.Title)
	}
	return out
}

type fixture struct {
	store *remote.MemoryStore
	repo  kvstore.Repository
	push  *recordingChannel
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := localdb.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return &fixture{
		store: remote.NewMemoryStore(),
		repo:  kvstore.NewSQLiteRepository(db),
		push:  &recordingChannel{},
	}
}

// newApp builds an App over the fixture's storage; each call behaves like a
// fresh process.
func (f *fixture) newApp(t *testing.T, userID string, m metrics.Provider) *App {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	d := push.NewDispatcher(f.push, logging.Nop(), 16)
	d.Start(ctx)

	a := New(Deps{
		Config:     &config.Config{DeviceToken: "device-1"},
		Log:        logging.Nop(),
		Metrics:    m,
		Store:      f.store,
		Cache:      cache.New(f.repo, cache.WithMirror(cache.NewMirror(1))),
		Identity:   identity.Static(userID),
		Dispatcher: d,
	})
	t.Cleanup(func() {
		a.Close()
		cancel()
	})
	return a
}

func (f *fixture) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	born := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, f.store.Put(ctx, remote.Users, "u1", map[string]any{"email": "ana@example.com", "isActive": true}))
	require.NoError(t, f.store.Put(ctx, remote.Babies, "b1", map[string]any{
		"parentId": "u1", "firstName": "Leo", "lastName": "Lima",
		"birthday": map[string]any{"seconds": born.Unix(), "nanoseconds": 0},
	}))

	set, err := models.NewMilestoneSet("m1", models.Baby{ID: "b1", ParentID: "u1", Birthday: datex.At(born)}, born)
	require.NoError(t, err)
	data, err := models.EncodeMilestoneSet(set)
	require.NoError(t, err)
	require.NoError(t, f.store.Put(ctx, remote.Milestones, "m1", data))

	require.NoError(t, f.store.Put(ctx, remote.Notifications, "n1", map[string]any{
		"receiverId": "u1", "subject": "Clinic", "message": "Open Monday",
	}))
}

func TestLaunch_WithoutOfflineData(t *testing.T) {
	f := newFixture(t)
	a := f.newApp(t, "", nil)

	assert.Equal(t, services.LaunchNoOfflineData, a.Launch(context.Background()))
	assert.Equal(t, ModeOffline, a.Mode())
}

func TestCheckOnline_LogsInSyncsAndWatches(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	a := f.newApp(t, "u1", nil)
	ctx := context.Background()

	a.CheckOnline(ctx)
	assert.Equal(t, ModeOnline, a.Mode())
	assert.Equal(t, "u1", a.UserID(ctx))

	out := a.Selection(ctx)
	assert.Equal(t, services.Selected, out.State)
	assert.Equal(t, "b1", out.BabyID)

	// the daily reminder and the personal notification are pushed
	require.Eventually(t, func() bool {
		return assert.ObjectsAreEqual([]string{"Clinic", "Vaccination reminder"}, sortedTitles(f.push))
	}, 2*time.Second, 10*time.Millisecond)

	r, err := a.Reminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b1", r.BabyID)
	assert.NotEmpty(t, r.Classification.Overdue)
}

func TestCheckOnline_OfflineUsesCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	a := f.newApp(t, "u1", nil)
	ctx := context.Background()

	a.CheckOnline(ctx)
	online, err := a.Reminders(ctx)
	require.NoError(t, err)

	f.store.SetOffline(true)
	a.CheckOnline(ctx)
	assert.Equal(t, ModeOffline, a.Mode())

	offline, err := a.Reminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, online, offline)

	// a restart without network restores the session from the cache
	restarted := f.newApp(t, "", nil)
	assert.Equal(t, services.LaunchAuthenticated, restarted.Launch(ctx))
	again, err := restarted.Reminders(ctx)
	require.NoError(t, err)
	assert.Equal(t, online, again)
}

func TestCheckOnline_WithoutSessionStaysLoggedOut(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	a := f.newApp(t, "", nil)
	ctx := context.Background()

	a.CheckOnline(ctx)
	assert.Equal(t, ModeOnline, a.Mode())
	assert.Empty(t, a.UserID(ctx))
	require.NoError(t, a.SyncNow(ctx))

	has, err := a.cache.Has(ctx, cache.Users)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestSetMode_ReportsOnlineMetric(t *testing.T) {
	f := newFixture(t)
	m := metrics.New(true)
	a := f.newApp(t, "u1", m)
	ctx := context.Background()
	f.seed(t)

	scrape := func() string {
		rec := httptest.NewRecorder()
		m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
		return rec.Body.String()
	}

	a.CheckOnline(ctx)
	assert.Contains(t, scrape(), "vaxtrack_online 1")

	f.store.SetOffline(true)
	a.CheckOnline(ctx)
	assert.Contains(t, scrape(), "vaxtrack_online 0")
}

func TestRegisterBabyAndLogout(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Put(context.Background(), remote.Users, "u1", map[string]any{"isActive": true}))
	a := f.newApp(t, "u1", nil)
	ctx := context.Background()

	a.CheckOnline(ctx)
	assert.Equal(t, services.AwaitingRegistration, a.Selection(ctx).State)

	b, err := a.RegisterBaby(ctx, models.Baby{
		FirstName: "Mia", LastName: "Lima", Birthday: datex.At(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	out := a.Selection(ctx)
	assert.Equal(t, services.Selected, out.State)
	assert.Equal(t, b.ID, out.BabyID)

	require.NoError(t, a.Logout(ctx))
	restarted := f.newApp(t, "", nil)
	assert.Equal(t, services.LaunchPublic, restarted.Launch(ctx))

	doc, err := f.store.Get(ctx, remote.Users, "u1")
	require.NoError(t, err)
	assert.Equal(t, false, doc.Data["isActive"])
}

func TestRun_StopsWithContext(t *testing.T) {
	f := newFixture(t)
	a := New(Deps{
		Config:   &config.Config{OnlineCheckInterval: 10 * time.Millisecond, SyncInterval: 20 * time.Millisecond},
		Store:    f.store,
		Cache:    cache.New(f.repo),
		Identity: identity.Static(""),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool { return a.Mode() == ModeOnline }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func sortedTitles(r *recordingChannel) []string {
	titles := r.titles()
	sort.Strings(titles)
	return titles
}

func TestBuild_EncryptedCacheWithMemoryStore(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		CacheDSN:        filepath.Join(t.TempDir(), "cache.db"),
		CachePassphrase: "pw",
		UserID:          "u1",
		MirrorSizeMB:    1,
		PushQueueSize:   4,
	}

	a, err := Build(ctx, cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	_, ok := a.store.(*remote.MemoryStore)
	assert.True(t, ok)

	a.CheckOnline(ctx)
	assert.Equal(t, "u1", a.UserID(ctx))
	assert.Equal(t, services.LaunchAuthenticated, a.Launch(ctx))
}

func TestBuild_AppliesDeviceTimeZone(t *testing.T) {
	t.Cleanup(func() { datex.SetLocation(nil) })

	cfg := &config.Config{
		CacheDSN:      filepath.Join(t.TempDir(), "cache.db"),
		PushQueueSize: 4,
		TimeZone:      "Local",
	}
	a, err := Build(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	t.Cleanup(a.Close)

	assert.Equal(t, time.Local, datex.Location())
	assert.Equal(t, time.Local, a.now().Location())

	cfg.TimeZone = "Mars/Olympus"
	_, err = Build(context.Background(), cfg, logging.Nop())
	require.Error(t, err)
}
