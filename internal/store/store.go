// Package store persists the subscriber set as a plain JSON array of chat
// IDs, compatible with a hand-edited subscribers.json. Persistence failures
// are never fatal: the in-memory set stays authoritative for the rest of the
// process lifetime.
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"cfremind/pkg/logx"
)

type Store struct {
	path string
	log  logx.Logger

	mu  sync.Mutex
	ids map[int64]struct{}
}

// Open loads the subscriber set from path. A missing file, corrupt content,
// or any I/O error yields an empty set and a log line; Open never fails.
func Open(path string, log logx.Logger) *Store {
	s := &Store{path: path, log: log, ids: map[int64]struct{}{}}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Info("subscriber file not found; starting empty", logx.String("path", path))
		} else {
			log.Error("subscriber file unreadable; starting empty", logx.String("path", path), logx.Err(err))
		}
		return s
	}

	var list []int64
	if err := json.Unmarshal(b, &list); err != nil {
		log.Error("subscriber file corrupt; starting empty", logx.String("path", path), logx.Err(err))
		return s
	}
	for _, id := range list {
		s.ids[id] = struct{}{}
	}
	log.Info("subscribers loaded", logx.Int("count", len(s.ids)), logx.String("path", path))
	return s
}

// Add inserts id and persists. Returns false if id was already present.
func (s *Store) Add(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		return false
	}
	s.ids[id] = struct{}{}
	s.saveLocked()
	return true
}

// Remove deletes id and persists. Returns false if id was not present.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; !ok {
		return false
	}
	delete(s.ids, id)
	s.saveLocked()
	return true
}

func (s *Store) Contains(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Snapshot returns the current subscriber IDs in ascending order.
func (s *Store) Snapshot() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

func (s *Store) sortedLocked() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// saveLocked writes the full set via a temp file in the same directory plus
// an atomic rename, so a partial failure leaves the old content intact.
// Errors are logged, not propagated. Call with s.mu held.
func (s *Store) saveLocked() {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		s.log.Error("subscriber save failed (mkdir)", logx.String("dir", dir), logx.Err(err))
		return
	}

	b, err := json.Marshal(s.sortedLocked())
	if err != nil {
		s.log.Error("subscriber save failed (marshal)", logx.Err(err))
		return
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp_")
	if err != nil {
		s.log.Error("subscriber save failed (temp)", logx.Err(err))
		return
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		s.log.Error("subscriber save failed (write)", logx.Err(err))
		return
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		s.log.Error("subscriber save failed (close)", logx.Err(err))
		return
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		s.log.Error("subscriber save failed (rename)", logx.Err(err))
		return
	}
	s.log.Debug("subscribers saved", logx.Int("count", len(s.ids)))
}
