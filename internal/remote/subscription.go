package remote

import (
	"context"
	"sync"
)

// Subscription is a live query. Snapshots arrive on C until Cancel is
// called or the listening context ends, after which C is closed.
type Subscription struct {
	ch   chan Snapshot
	done chan struct{}
	once sync.Once
	wg   sync.WaitGroup
}

func newSubscription() *Subscription {
	return &Subscription{
		ch:   make(chan Snapshot),
		done: make(chan struct{}),
	}
}

func (s *Subscription) C() <-chan Snapshot { return s.ch }

// Cancel stops the subscription. It is safe to call more than once and from
// several goroutines; once it returns no further snapshot is delivered.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		close(s.ch)
	})
}

func (s *Subscription) send(snap Snapshot) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.ch <- snap:
		return true
	case <-s.done:
		return false
	}
}

// run starts the producer: fetch once immediately, then again on every
// trigger. Unchanged results are not re-delivered.
func (s *Subscription) run(ctx context.Context, trigger <-chan struct{}, fetch func(ctx context.Context) ([]Document, error)) {
	ctx, stop := context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer stop()
		select {
		case <-ctx.Done():
			s.Cancel()
		case <-s.done:
		}
	}()

	go func() {
		defer s.wg.Done()

		var last string
		emit := func() bool {
			docs, err := fetch(ctx)
			if err != nil {
				return s.send(Snapshot{Err: err})
			}
			sig, err := signature(docs)
			if err == nil && sig == last {
				return true
			}
			last = sig
			return s.send(Snapshot{Documents: docs})
		}

		if !emit() {
			return
		}
		for {
			select {
			case <-s.done:
				return
			case _, ok := <-trigger:
				if !ok {
					return
				}
				if !emit() {
					return
				}
			}
		}
	}()
}
