package journal

import (
	"context"
	"errors"
	"sync"
)

// ErrConcurrencyConflict is returned when Append's expected version does
// not match the stream's current version.
var ErrConcurrencyConflict = errors.New("journal: stream version conflict")

// Filter narrows ReadAll results.
type Filter struct {
	Stream string
	Types  []EventType
}

// Store persists event streams. Append is atomic per call: either every
// event in the batch is written with consecutive versions or none are.
type Store interface {
	// Append writes events after verifying the stream is at
	// expectedVersion (-1 for a new stream). Returns the new version.
	Append(ctx context.Context, stream string, expectedVersion int, events []*Event) (int, error)

	// Read returns the events of a stream from fromVersion onward.
	Read(ctx context.Context, stream string, fromVersion int) ([]*Event, error)

	// ReadAll returns events across streams matching the filter, in
	// append order.
	ReadAll(ctx context.Context, f Filter) ([]*Event, error)

	// StreamVersion returns the stream's last version, -1 if absent.
	StreamVersion(ctx context.Context, stream string) (int, error)

	// DeleteStream removes a stream and its events.
	DeleteStream(ctx context.Context, stream string) error

	Close() error
}

// MemoryStore is an in-process Store for tests and ephemeral nodes.
type MemoryStore struct {
	mu      sync.RWMutex
	streams map[string][]*Event
	order   []*Event
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{streams: make(map[string][]*Event)}
}

func (s *MemoryStore) Append(_ context.Context, stream string, expectedVersion int, events []*Event) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := len(s.streams[stream]) - 1
	if current != expectedVersion {
		return 0, ErrConcurrencyConflict
	}

	version := current
	for _, e := range events {
		version++
		e.Stream = stream
		e.Version = version
		s.streams[stream] = append(s.streams[stream], e)
		s.order = append(s.order, e)
	}
	return version, nil
}

func (s *MemoryStore) Read(_ context.Context, stream string, fromVersion int) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.streams[stream]
	if fromVersion < 0 {
		fromVersion = 0
	}
	if fromVersion > len(all) {
		fromVersion = len(all)
	}
	out := make([]*Event, len(all)-fromVersion)
	copy(out, all[fromVersion:])
	return out, nil
}

func (s *MemoryStore) ReadAll(_ context.Context, f Filter) ([]*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Event
	for _, e := range s.order {
		if f.Stream != "" && e.Stream != f.Stream {
			continue
		}
		if len(f.Types) > 0 && !matchesType(e.Type, f.Types) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *MemoryStore) StreamVersion(_ context.Context, stream string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.streams[stream]) - 1, nil
}

func (s *MemoryStore) DeleteStream(_ context.Context, stream string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.streams, stream)
	kept := s.order[:0]
	for _, e := range s.order {
		if e.Stream != stream {
			kept = append(kept, e)
		}
	}
	s.order = kept
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}

func matchesType(t EventType, types []EventType) bool {
	for _, want := range types {
		if want == t {
			return true
		}
	}
	return false
}

var _ Store = (*MemoryStore)(nil)
