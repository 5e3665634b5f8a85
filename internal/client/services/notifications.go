package services

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaxtrack/internal/client/cache"
	"github.com/dmitrijs2005/vaxtrack/internal/logging"
	"github.com/dmitrijs2005/vaxtrack/internal/metrics"
	"github.com/dmitrijs2005/vaxtrack/internal/models"
	"github.com/dmitrijs2005/vaxtrack/internal/push"
	"github.com/dmitrijs2005/vaxtrack/internal/remote"
)

// Dispatcher hands a message to the push channel without blocking.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg push.Message) bool
}

// NotificationWatcher delivers new notifications of one user as pushes.
//
// Personal notifications are flipped to isRead on the server after delivery
// and skipped when the server already reports them read. Broadcasts are
// shared by every user and stay untouched; for them the local dedup set is
// the only record of delivery.
type NotificationWatcher struct {
	store       remote.Store
	cache       *cache.Cache
	dedup       *DedupTracker
	dispatcher  Dispatcher
	deviceToken string
	log         logging.Logger
	metrics     metrics.Provider
}

func NewNotificationWatcher(store remote.Store, c *cache.Cache, dedup *DedupTracker, d Dispatcher,
	deviceToken string, log logging.Logger, m metrics.Provider) *NotificationWatcher {
	return &NotificationWatcher{
		store:       store,
		cache:       c,
		dedup:       dedup,
		dispatcher:  d,
		deviceToken: deviceToken,
		log:         log,
		metrics:     m,
	}
}

// Watch subscribes to the user's and broadcast notifications. The returned
// stop function cancels the subscription and waits for the loop to finish;
// it is safe to call more than once.
func (w *NotificationWatcher) Watch(ctx context.Context, userID string) (stop func(), err error) {
	sub, err := w.store.Listen(ctx, remote.Notifications, remote.Where("receiverId", userID, models.BroadcastReceiver))
	if err != nil {
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for snap := range sub.C() {
			if snap.Err != nil {
				w.log.Warn(ctx, "notification snapshot failed", "error", snap.Err)
				continue
			}
			w.Handle(ctx, snap.Documents)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.Cancel()
			<-done
		})
	}, nil
}

// Handle processes one snapshot and returns how many pushes were queued.
func (w *NotificationWatcher) Handle(ctx context.Context, docs []remote.Document) int {
	delivered := 0
	for _, doc := range docs {
		n, err := models.Decode[models.Notification](doc.ID, doc.Data)
		if err != nil {
			w.log.Warn(ctx, "notification undecodable", "id", doc.ID, "error", err)
			continue
		}
		if n.IsRead && !n.IsBroadcast() {
			continue
		}
		if !w.dedup.ShouldDeliver(ctx, n.ID) {
			w.metrics.IncNotificationsSkipped()
			continue
		}

		msg := push.Message{
			Token: w.deviceToken,
			Title: n.Subject,
			Body:  n.Message,
			Data:  map[string]string{"notificationId": n.ID},
		}
		if !w.dispatcher.Dispatch(ctx, msg) {
			// queue full: leave it unmarked so the next snapshot retries
			continue
		}
		delivered++
		w.metrics.IncNotificationsDelivered()

		if err := w.dedup.MarkDelivered(ctx, n.ID); err != nil {
			w.log.Warn(ctx, "delivery not recorded", "id", n.ID, "error", err)
		}
		if !n.IsBroadcast() {
			if err := w.store.Update(ctx, remote.Notifications, n.ID, map[string]any{"isRead": true}); err != nil {
				w.log.Warn(ctx, "isRead not updated", "id", n.ID, "error", err)
			}
		}
	}
	return delivered
}

// RecordTap remembers the notification the user opened last.
func (w *NotificationWatcher) RecordTap(ctx context.Context, notificationID string) error {
	return w.cache.Write(ctx, cache.LastNotificationTapped, notificationID)
}

// LastTapped returns the notification the user opened last, if any.
func (w *NotificationWatcher) LastTapped(ctx context.Context) (string, bool) {
	id, ok, err := cache.Load[string](ctx, w.cache, cache.LastNotificationTapped)
	if err != nil {
		return "", false
	}
	return id, ok
}
