package trace

import (
	"fmt"
	"sync"
)

// Sink receives a request's entries once the request finishes. It is the
// hand-off point to whatever observability collaborator is configured.
type Sink interface {
	Flush(requestID string, entries []Entry) error
}

// Store is the process-wide trace registry keyed by request id. It is safe
// for concurrent use by any number of sessions.
type Store struct {
	mu     sync.Mutex
	logs   map[string]*Log
	order  []string
	sink   Sink
	retain int
}

// Option configures a Store.
type Option func(*Store)

// WithSink flushes each closed request to sink.
func WithSink(sink Sink) Option {
	return func(s *Store) { s.sink = sink }
}

// WithRetention keeps at most n finished traces in memory, evicting the
// oldest first. n <= 0 drops traces as soon as they are closed.
func WithRetention(n int) Option {
	return func(s *Store) { s.retain = n }
}

// NewStore returns an empty store. By default the last 256 finished traces
// are retained.
func NewStore(opts ...Option) *Store {
	s := &Store{
		logs:   make(map[string]*Log),
		retain: 256,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open returns the log for requestID, creating it when needed. Re-opening a
// closed request id starts a fresh log.
func (s *Store) Open(requestID string) *Log {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[requestID]; ok && !l.isClosed() {
		return l
	}
	l := &Log{requestID: requestID}
	if _, ok := s.logs[requestID]; !ok {
		s.order = append(s.order, requestID)
	}
	s.logs[requestID] = l
	return l
}

// Get returns a copy of the entries for requestID.
func (s *Store) Get(requestID string) ([]Entry, bool) {
	s.mu.Lock()
	l, ok := s.logs[requestID]
	s.mu.Unlock()
	if !ok {
		return nil, false
	}
	return l.Entries(), true
}

// Close marks the request finished, flushes it to the sink, and applies the
// retention limit.
func (s *Store) Close(requestID string) error {
	s.mu.Lock()
	l, ok := s.logs[requestID]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	entries := l.close()
	if s.retain <= 0 {
		s.removeLocked(requestID)
	} else {
		s.evictLocked()
	}
	sink := s.sink
	s.mu.Unlock()

	if sink == nil {
		return nil
	}
	if err := sink.Flush(requestID, entries); err != nil {
		return fmt.Errorf("flush trace %s: %w", requestID, err)
	}
	return nil
}

// Discard drops the trace for requestID without flushing it.
func (s *Store) Discard(requestID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.logs[requestID]; ok {
		l.close()
		s.removeLocked(requestID)
		return true
	}
	return false
}

// IDs lists known request ids, oldest first.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

func (s *Store) removeLocked(requestID string) {
	delete(s.logs, requestID)
	for i, id := range s.order {
		if id == requestID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *Store) evictLocked() {
	closed := 0
	for _, id := range s.order {
		if s.logs[id].isClosed() {
			closed++
		}
	}
	for i := 0; closed > s.retain && i < len(s.order); {
		id := s.order[i]
		if s.logs[id].isClosed() {
			s.removeLocked(id)
			closed--
			continue
		}
		i++
	}
}

func (l *Log) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}
