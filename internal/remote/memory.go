package remote

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store. Values pass through their JSON form on
// the way in, so readers see the same shapes a networked store returns.
type MemoryStore struct {
	mu        sync.RWMutex
	data      map[string]map[string]map[string]any
	failures  map[string]error
	offline   bool
	listeners map[string][]chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:      map[string]map[string]map[string]any{},
		failures:  map[string]error{},
		listeners: map[string][]chan struct{}{},
	}
}

// FailCollection makes every read of collection return err until called
// again with a nil error.
func (s *MemoryStore) FailCollection(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, collection)
		return
	}
	s.failures[collection] = err
}

// SetOffline toggles the result of Ping.
func (s *MemoryStore) SetOffline(offline bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline = offline
}

func (s *MemoryStore) Fetch(_ context.Context, collection string, f Filter) ([]Document, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[collection]; err != nil {
		return nil, err
	}

	var docs []Document
	for id, data := range s.data[collection] {
		if !f.matches(data) {
			continue
		}
		cp, err := clone(data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{ID: id, Data: cp})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (s *MemoryStore) Get(_ context.Context, collection, id string) (Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.failures[collection]; err != nil {
		return Document{}, err
	}
	data, ok := s.data[collection][id]
	if !ok {
		return Document{}, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	cp, err := clone(data)
	if err != nil {
		return Document{}, err
	}
	return Document{ID: id, Data: cp}, nil
}

func (s *MemoryStore) Put(_ context.Context, collection, id string, data map[string]any) error {
	cp, err := clone(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[collection] == nil {
		s.data[collection] = map[string]map[string]any{}
	}
	s.data[collection][id] = cp
	s.notify(collection)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, collection, id string, fields map[string]any) error {
	cp, err := clone(fields)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.data[collection][id]
	if !ok {
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	for k, v := range cp {
		doc[k] = v
	}
	s.notify(collection)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[collection], id)
	s.notify(collection)
	return nil
}

func (s *MemoryStore) Listen(ctx context.Context, collection string, f Filter) (*Subscription, error) {
	if err := f.validate(); err != nil {
		return nil, err
	}
	trigger := make(chan struct{}, 1)

	s.mu.Lock()
	s.listeners[collection] = append(s.listeners[collection], trigger)
	s.mu.Unlock()

	sub := newSubscription()
	sub.run(ctx, trigger, func(ctx context.Context) ([]Document, error) {
		return s.Fetch(ctx, collection, f)
	})

	go func() {
		<-sub.done
		s.mu.Lock()
		defer s.mu.Unlock()
		ls := s.listeners[collection]
		for i, l := range ls {
			if l == trigger {
				s.listeners[collection] = append(ls[:i], ls[i+1:]...)
				break
			}
		}
	}()
	return sub, nil
}

func (s *MemoryStore) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.offline {
		return ErrUnavailable
	}
	return nil
}

// notify must be called with mu held.
func (s *MemoryStore) notify(collection string) {
	for _, l := range s.listeners[collection] {
		select {
		case l <- struct{}{}:
		default:
			// a change is already pending; the next fetch sees this one too
		}
	}
}
