/*
Package statedb provides the key-value state store owned by one deployed
engine suite, with an in-memory write buffer, snapshot/rollback and atomic
batch commit. Repositories buffer writes through it; a usecase entry point
takes a snapshot, runs, and either commits or reverts, so a failing call
never persists partial state.
*/
package statedb

import (
	"errors"
	"sort"
	"sync"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("statedb: not found")

// KV is the backing key-value store.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	Keys(prefix []byte) ([][]byte, error)
	NewBatch() Batch
	Close() error
}

// Batch accumulates writes applied atomically by Write.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)
	Write() error
}

type snapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB layers a write buffer over a KV.
type StateDB struct {
	mu      sync.RWMutex
	kv      KV
	dirty   map[string][]byte
	deleted map[string]bool
	snaps   []snapshot
}

func New(kv KV) *StateDB {
	return &StateDB{
		kv:      kv,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

func (s *StateDB) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.deleted[key] {
		return nil, ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		cp := make([]byte, len(v))
		copy(cp, v)
		return cp, nil
	}
	return s.kv.Get([]byte(key))
}

func (s *StateDB) Put(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	delete(s.deleted, key)
	s.dirty[key] = cp
}

func (s *StateDB) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, key)
	s.deleted[key] = true
}

// Keys returns the sorted keys under prefix, merging the write buffer over
// the backing store.
func (s *StateDB) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, err := s.kv.Keys([]byte(prefix))
	if err != nil {
		return nil, err
	}
	merged := make(map[string]bool, len(stored))
	for _, k := range stored {
		merged[string(k)] = true
	}
	for k := range s.dirty {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			merged[k] = true
		}
	}
	for k := range s.deleted {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Snapshot saves the current write buffer and returns a snapshot id.
func (s *StateDB) Snapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := snapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snaps = append(s.snaps, snap)
	return len(s.snaps) - 1
}

// RevertToSnapshot restores the write buffer to a saved snapshot. The
// snapshot maps are deep-copied so later writes cannot corrupt them.
func (s *StateDB) RevertToSnapshot(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id < 0 || id >= len(s.snaps) {
		return
	}
	snap := s.snaps[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snaps = s.snaps[:id]
}

// Commit atomically flushes the write buffer to the backing store and
// clears it.
func (s *StateDB) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.kv.NewBatch()
	for k, v := range s.dirty {
		batch.Put([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snaps = nil
	return nil
}
