package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
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
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

const pingTimeout = 3 * time.Second

// Deps are the collaborators of an App.
type Deps struct {
	Config     *config.Config
	Log        logging.Logger
	Metrics    metrics.Provider
	Store      remote.Store
	Cache      *cache.Cache
	Identity   identity.Provider
	Dispatcher *push.Dispatcher
}

type App struct {
	cfg        *config.Config
	log        logging.Logger
	metrics    metrics.Provider
	store      remote.Store
	cache      *cache.Cache
	dispatcher *push.Dispatcher

	session      *services.SessionService
	sync         *services.SyncService
	selection    *services.SelectionResolver
	dedup        *services.DedupTracker
	watcher      *services.NotificationWatcher
	reminders    *services.ReminderService
	babies       *services.BabyService
	appointments *services.AppointmentService

	mu           sync.Mutex
	mode         Mode
	userID       string
	stopWatch    func()
	reminderDay  string
	now          func() time.Time
	closers      []func() error
	shutdownOnce sync.Once
}

func deviceNow() time.Time { return time.Now().In(datex.Location()) }

func New(d Deps) *App {
	if d.Log == nil {
		d.Log = logging.Nop()
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Noop()
	}
	if d.Dispatcher == nil {
		d.Dispatcher = push.NewDispatcher(push.LogChannel{Log: d.Log}, d.Log, 0)
	}

	syncSvc := services.NewSyncService(d.Store, d.Cache, d.Log, d.Metrics)
	dedup := services.NewDedupTracker(d.Cache, d.Log)

	return &App{
		cfg:          d.Config,
		log:          d.Log,
		metrics:      d.Metrics,
		store:        d.Store,
		cache:        d.Cache,
		dispatcher:   d.Dispatcher,
		session:      services.NewSessionService(d.Identity, d.Store, d.Cache, syncSvc, d.Log),
		sync:         syncSvc,
		selection:    services.NewSelectionResolver(d.Cache, d.Log),
		dedup:        dedup,
		watcher:      services.NewNotificationWatcher(d.Store, d.Cache, dedup, d.Dispatcher, d.Config.DeviceToken, d.Log, d.Metrics),
		reminders:    services.NewReminderService(d.Dispatcher, d.Config.DeviceToken),
		babies:       services.NewBabyService(d.Store, d.Cache, d.Log),
		appointments: services.NewAppointmentService(d.Store, d.Cache, d.Log),
		mode:         ModeOffline,
		now:          deviceNow,
	}
}

// Build opens the local cache and the remote store described by cfg and
// returns an App owning them.
func Build(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	datex.SetLocation(loc)

	m := metrics.New(cfg.MetricsEnabled)

	db, err := localdb.InitDatabase(ctx, cfg.CacheDSN)
	if err != nil {
		log.Error(ctx, "error initializing database", "error", err)
		return nil, err
	}
	closers := []func() error{db.Close}

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if closeStore != nil {
		closers = append(closers, closeStore)
	}

	var ch push.Channel = push.LogChannel{Log: log}
	if cfg.PushEndpoint != "" {
		ch = push.NewHTTPChannel(cfg.PushEndpoint, cfg.PushAPIKey, 5*time.Second)
	}

	repo, err := newRepository(ctx, db, cfg)
	if err != nil {
		for _, c := range closers {
			_ = c()
		}
		return nil, err
	}

	c := cache.New(repo,
		cache.WithMirror(cache.NewMirror(cfg.MirrorSizeMB)),
		cache.WithLogger(log),
		cache.WithMetrics(m),
	)

	a := New(Deps{
		Config:     cfg,
		Log:        log,
		Metrics:    m,
		Store:      store,
		Cache:      c,
		Identity:   identityFor(cfg),
		Dispatcher: push.NewDispatcher(ch, log, cfg.PushQueueSize),
	})
	a.closers = closers
	return a, nil
}

func newRepository(ctx context.Context, db *sql.DB, cfg *config.Config) (kvstore.Repository, error) {
	repo := kvstore.NewSQLiteRepository(db)
	if cfg.CachePassphrase == "" {
		return repo, nil
	}
	enc, err := kvstore.NewEncryptedRepository(ctx, repo, []byte(cfg.CachePassphrase))
	if err != nil {
		return nil, fmt.Errorf("open encrypted cache: %w", err)
	}
	return enc, nil
}

func openStore(ctx context.Context, cfg *config.Config) (remote.Store, func() error, error) {
	if cfg.RemoteDSN == "" {
		return remote.NewMemoryStore(), nil, nil
	}
	pg, err := remote.OpenPostgres(cfg.RemoteDSN, cfg.PollInterval)
	if err != nil {
		return nil, nil, fmt.Errorf("open remote store: %w", err)
	}
	if err := pg.RunMigrations(ctx); err != nil {
		_ = pg.Close()
		return nil, nil, fmt.Errorf("migrate remote store: %w", err)
	}
	return pg, pg.Close, nil
}

func identityFor(cfg *config.Config) identity.Provider {
	if cfg.Token != "" {
		return identity.NewTokenProvider([]byte(cfg.TokenSecret), cfg.Token)
	}
	return identity.Static(cfg.UserID)
}

// Mode reports whether the remote store was reachable at the last check.
func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// UserID is the user of the current online session, or the cached profile
// when offline.
func (a *App) UserID(ctx context.Context) string {
	a.mu.Lock()
	uid := a.userID
	a.mu.Unlock()
	if uid != "" {
		return uid
	}
	_, u := a.session.OfflineLaunch(ctx)
	return u.ID
}

// Launch decides the starting flow from the cache alone.
func (a *App) Launch(ctx context.Context) services.LaunchState {
	state, u := a.session.OfflineLaunch(ctx)
	switch state {
	case services.LaunchAuthenticated:
		a.log.Info(ctx, "offline session restored", "user", u.ID)
		a.resolveSelection(ctx)
		a.notifyReminders(ctx)
	case services.LaunchPublic:
		a.log.Info(ctx, "cached profile is logged out", "user", u.ID)
	default:
		a.log.Info(ctx, "no offline data on this device")
	}
	return state
}

// CheckOnline probes the remote store once and switches mode on a change.
func (a *App) CheckOnline(ctx context.Context) {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.store.Ping(pingCtx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}
	a.setMode(ctx, ModeOnline)
}

func (a *App) setMode(ctx context.Context, mode Mode) {
	a.mu.Lock()
	if a.mode == mode {
		a.mu.Unlock()
		return
	}
	a.mode = mode
	a.mu.Unlock()

	a.metrics.SetOnline(mode == ModeOnline)
	a.log.Info(ctx, "switched mode", "mode", string(mode))

	if mode == ModeOnline {
		a.enterOnline(ctx)
		return
	}
	a.stopWatching()
}

func (a *App) enterOnline(ctx context.Context) {
	uid, report, err := a.session.OnlineLogin(ctx)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthenticated) {
			a.log.Info(ctx, "online without a session")
			return
		}
		a.log.Warn(ctx, "online login failed", "error", err)
		if report == nil {
			// retried on the next check
			a.mu.Lock()
			a.mode = ModeOffline
			a.mu.Unlock()
			a.metrics.SetOnline(false)
			return
		}
	}

	a.mu.Lock()
	a.userID = uid
	a.mu.Unlock()

	a.afterSync(ctx, report)

	stop, err := a.watcher.Watch(ctx, uid)
	if err != nil {
		a.log.Warn(ctx, "notification watch failed", "error", err)
		return
	}
	a.mu.Lock()
	a.stopWatch = stop
	a.mu.Unlock()
}

func (a *App) stopWatching() {
	a.mu.Lock()
	stop := a.stopWatch
	a.stopWatch = nil
	a.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// SyncNow refreshes the snapshot of the current user. It is a no-op while
// offline or logged out.
func (a *App) SyncNow(ctx context.Context) error {
	a.mu.Lock()
	online, uid := a.mode == ModeOnline, a.userID
	a.mu.Unlock()
	if !online || uid == "" {
		return nil
	}

	report, err := a.sync.SyncAll(ctx, uid)
	a.afterSync(ctx, report)
	return err
}

func (a *App) afterSync(ctx context.Context, report *services.SyncReport) {
	if report != nil {
		if w := report.Warnings(); w != nil {
			a.log.Warn(ctx, "sync incomplete", "error", w)
		}
		a.log.Info(ctx, "sync finished", "user", report.UserID, "duration", report.Duration.String())
	}
	a.resolveSelection(ctx)
	a.notifyReminders(ctx)
}

func (a *App) resolveSelection(ctx context.Context) services.SelectionOutcome {
	out, err := a.selection.ResolveCached(ctx)
	if err != nil {
		a.log.Warn(ctx, "selection not persisted", "error", err)
	}
	if out.Stale {
		a.log.Info(ctx, "selected baby no longer available")
	}
	a.log.Debug(ctx, "selection resolved", "state", out.State.String(), "baby", out.BabyID)
	return out
}

// Selection returns the current selection outcome.
func (a *App) Selection(ctx context.Context) services.SelectionOutcome {
	return a.resolveSelection(ctx)
}

// Select makes babyID the active baby.
func (a *App) Select(ctx context.Context, babyID string) error {
	babies, _, err := cache.Load[[]models.Baby](ctx, a.cache, cache.Babies)
	if err != nil {
		return err
	}
	return a.selection.Choose(ctx, babyID, babies)
}

// Reminders classifies the schedule of the selected baby, from the remote
// store when online and from the cache otherwise.
func (a *App) Reminders(ctx context.Context) (services.Reminder, error) {
	baby, err := a.selection.Current(ctx)
	if err != nil {
		return services.Reminder{}, err
	}

	var src services.MilestoneSource = services.CacheMilestoneSource{Cache: a.cache, Log: a.log}
	if a.Mode() == ModeOnline {
		src = services.RemoteMilestoneSource{Store: a.store}
	}
	return a.reminders.Compute(ctx, src, a.UserID(ctx), baby.ID)
}

// notifyReminders pushes the reminder of the selected baby at most once per
// calendar day.
func (a *App) notifyReminders(ctx context.Context) {
	day := a.now().Format(time.DateOnly)
	a.mu.Lock()
	done := a.reminderDay == day
	a.mu.Unlock()
	if done {
		return
	}

	r, err := a.Reminders(ctx)
	if err != nil {
		a.log.Debug(ctx, "no reminder", "error", err)
		return
	}
	if r.Message == "" || a.reminders.Notify(ctx, r) {
		a.mu.Lock()
		a.reminderDay = day
		a.mu.Unlock()
	}
}

// RegisterBaby registers a baby for the current user.
func (a *App) RegisterBaby(ctx context.Context, baby models.Baby) (models.Baby, error) {
	uid := a.UserID(ctx)
	if uid == "" {
		return models.Baby{}, identity.ErrUnauthenticated
	}
	b, _, err := a.babies.Register(ctx, uid, baby)
	if err != nil && b.ID == "" {
		return models.Baby{}, err
	}
	a.resolveSelection(ctx)
	return b, err
}

// Appointments exposes appointment completion and deletion.
func (a *App) Appointments() *services.AppointmentService { return a.appointments }

// RecordTap remembers the notification the user opened last.
func (a *App) RecordTap(ctx context.Context, notificationID string) error {
	return a.watcher.RecordTap(ctx, notificationID)
}

// Logout ends the session locally and, when online, remotely.
func (a *App) Logout(ctx context.Context) error {
	a.stopWatching()
	err := a.session.Logout(ctx, a.Mode() == ModeOnline)

	a.mu.Lock()
	a.userID = ""
	a.mu.Unlock()
	a.dedup.Reset()
	return err
}
