package push

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/vaxtrack/internal/logging"
)

// Dispatcher decouples callers from the channel: Dispatch never blocks, and
// a single worker delivers queued messages in order.
type Dispatcher struct {
	ch    Channel
	log   logging.Logger
	queue chan Message
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewDispatcher(ch Channel, log logging.Logger, size int) *Dispatcher {
	if size <= 0 {
		size = 64
	}
	return &Dispatcher{ch: ch, log: log, queue: make(chan Message, size)}
}

// Start runs the worker until ctx ends or Close is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-d.queue:
				if !ok {
					return
				}
				if err := d.ch.Send(ctx, msg); err != nil {
					d.log.Warn(ctx, "push delivery failed", "title", msg.Title, "error", err)
				}
			}
		}
	}()
}

// Dispatch queues msg. It reports false when the queue is full or closed
// and the message was dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}

	select {
	case d.queue <- msg:
		return true
	default:
		d.log.Warn(ctx, "push queue full, message dropped", "title", msg.Title)
		return false
	}
}

// Close drains the queue and waits for the worker.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}
