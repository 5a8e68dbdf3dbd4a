package store

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local RecordStore. It backs tests and local
// development without a Redis or Postgres instance.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]byte
	subs    map[int]*memorySub
	nextSub int
}

type memorySub struct {
	prefix string
	ch     chan Event
	done   chan struct{}
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string][]byte),
		subs:    make(map[int]*memorySub),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) Read(_ context.Context, path string, out interface{}) error {
	s.mu.RLock()
	raw, ok := s.records[path]
	s.mu.RUnlock()
	if !ok {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return readErr(path, err)
	}
	return nil
}

func (s *MemoryStore) Write(_ context.Context, path string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return writeErr(path, err)
	}
	s.mu.Lock()
	s.records[path] = raw
	s.mu.Unlock()
	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *MemoryStore) Merge(ctx context.Context, path string, fields map[string]interface{}) error {
	s.mu.Lock()
	current := map[string]interface{}{}
	if raw, ok := s.records[path]; ok {
		if err := json.Unmarshal(raw, &current); err != nil {
			s.mu.Unlock()
			return readErr(path, err)
		}
	}
	for k, v := range fields {
		current[k] = v
	}
	raw, err := json.Marshal(current)
	if err != nil {
		s.mu.Unlock()
		return writeErr(path, err)
	}
	s.records[path] = raw
	s.mu.Unlock()
	s.notify(Event{Path: path, Value: raw})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	delete(s.records, path)
	s.mu.Unlock()
	s.notify(Event{Path: path, Deleted: true})
	return nil
}

func (s *MemoryStore) Append(ctx context.Context, prefix string, value interface{}) (string, error) {
	key := NewChildKey()
	if err := s.Write(ctx, Join(prefix, key), value); err != nil {
		return "", err
	}
	return key, nil
}

func (s *MemoryStore) List(_ context.Context, prefix string, fn func(path string, raw []byte) error) error {
	s.mu.RLock()
	paths := make([]string, 0)
	for p := range s.records {
		if strings.HasPrefix(p, prefix+"/") {
			paths = append(paths, p)
		}
	}
	sort.Strings(paths)
	snapshot := make(map[string][]byte, len(paths))
	for _, p := range paths {
		snapshot[p] = s.records[p]
	}
	s.mu.RUnlock()

	for _, p := range paths {
		if err := fn(p, snapshot[p]); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemoryStore) Subscribe(ctx context.Context, prefix string) (<-chan Event, func(), error) {
	sub := &memorySub{
		prefix: prefix,
		ch:     make(chan Event, 256),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = sub
	s.mu.Unlock()

	// Current records first, mirroring the redis backend.
	_ = s.List(ctx, prefix, func(path string, raw []byte) error {
		select {
		case sub.ch <- Event{Path: path, Value: raw}:
		default:
		}
		return nil
	})

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}

	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()

	return sub.ch, cancel, nil
}

func (s *MemoryStore) notify(ev Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if !strings.HasPrefix(ev.Path, sub.prefix+"/") {
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		default: // slow subscriber drops events rather than blocking writers
		}
	}
}
