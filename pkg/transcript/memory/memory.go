// Package memory provides an in-memory transcript.Store. Records are lost
// when the process exits. Optional LRU eviction bounds the number of
// sessions kept.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"

	"github.com/rhuss/mcpchat/pkg/api"
	"github.com/rhuss/mcpchat/pkg/transcript"
)

// entry holds the records of one session.
type entry struct {
	records []transcript.Record
	lruElem *list.Element // position in LRU list
}

// Store is an in-memory transcript store with optional LRU eviction by
// session.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	lruList  *list.List // front = most recently written session
	maxSize  int        // sessions kept, 0 = unlimited
}

// Ensure Store implements transcript.Store at compile time.
var _ transcript.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently written session is
// evicted when a new session would exceed the limit.
func New(maxSize int) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		lruList:  list.New(),
		maxSize:  maxSize,
	}
}

// Archive stores rec under its session.
func (s *Store) Archive(_ context.Context, rec transcript.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[rec.SessionID]
	if !ok {
		if s.maxSize > 0 && len(s.sessions) >= s.maxSize {
			s.evictOldest()
		}
		e = &entry{lruElem: s.lruList.PushFront(rec.SessionID)}
		s.sessions[rec.SessionID] = e
	} else {
		s.lruList.MoveToFront(e.lruElem)
	}

	for _, existing := range e.records {
		if existing.Seq == rec.Seq {
			return transcript.ErrConflict
		}
	}

	// Copy so later changes to the caller's slice do not leak in.
	rec.Messages = append([]api.Message(nil), rec.Messages...)
	e.records = append(e.records, rec)
	return nil
}

// Records returns copies of a session's records ordered by Seq.
func (s *Store) Records(_ context.Context, sessionID string) ([]transcript.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.sessions[sessionID]
	if !ok {
		return []transcript.Record{}, nil
	}

	out := make([]transcript.Record, len(e.records))
	copy(out, e.records)
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Sessions returns the number of sessions currently held.
func (s *Store) Sessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently written session.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.sessions, id)
}
