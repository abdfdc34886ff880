package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/douania/lovable-github-friendship-flow-sub001/internal/metrics"
)

const persistTimeout = 5 * time.Second

type snapshotRecord[T any] struct {
	Key   string   `json:"key"`
	Entry Entry[T] `json:"entry"`
}

// snapshot lists entries least recently used first so a reload restores
// recency order.
type snapshot[T any] struct {
	seq     uint64
	Entries []snapshotRecord[T] `json:"entries"`
}

func (s *Store[T]) snapshotLocked() *snapshot[T] {
	if !s.cfg.Persist || s.backing == nil {
		return nil
	}
	s.persistSeq++
	snap := &snapshot[T]{seq: s.persistSeq, Entries: make([]snapshotRecord[T], 0, len(s.entries))}
	for el := s.order.Back(); el != nil; el = el.Prev() {
		it := el.Value.(*item[T])
		snap.Entries = append(snap.Entries, snapshotRecord[T]{Key: it.key, Entry: it.entry})
	}
	return snap
}

// persist writes snap unless a newer one was already written. Failures are
// logged and counted, never returned.
func (s *Store[T]) persist(snap *snapshot[T]) {
	if snap == nil {
		return
	}
	s.persistMu.Lock()
	defer s.persistMu.Unlock()
	if snap.seq <= s.written {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		metrics.CachePersistErrors.WithLabelValues(s.cfg.Key, "save").Inc()
		s.log.Warn("failed to encode cache snapshot", "error", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.backing.Set(ctx, s.cfg.Key, data); err != nil {
		metrics.CachePersistErrors.WithLabelValues(s.cfg.Key, "save").Inc()
		s.log.Warn("failed to persist cache snapshot", "error", err)
		return
	}
	s.written = snap.seq
}

// load restores the snapshot for cfg.Key, dropping expired entries and
// keeping at most MaxSize of the most recently used ones.
func (s *Store[T]) load() {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	data, found, err := s.backing.Get(ctx, s.cfg.Key)
	if err != nil {
		metrics.CachePersistErrors.WithLabelValues(s.cfg.Key, "load").Inc()
		s.log.Warn("failed to load cache snapshot", "error", err)
		return
	}
	if !found || len(data) == 0 {
		return
	}
	var snap snapshot[T]
	if err := json.Unmarshal(data, &snap); err != nil {
		metrics.CachePersistErrors.WithLabelValues(s.cfg.Key, "load").Inc()
		s.log.Warn("discarding unreadable cache snapshot", "error", err)
		return
	}

	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range snap.Entries {
		if rec.Entry.Expired(now) {
			continue
		}
		if el, ok := s.entries[rec.Key]; ok {
			s.removeElement(el)
		}
		s.entries[rec.Key] = s.order.PushFront(&item[T]{key: rec.Key, entry: rec.Entry})
		if len(s.entries) > s.cfg.MaxSize {
			s.removeElement(s.order.Back())
		}
	}
	s.log.Debug("restored cache snapshot", "entries", len(s.entries))
}
