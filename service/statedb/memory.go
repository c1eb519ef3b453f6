package statedb

import (
	"strings"
	"sync"
)

// MemKV is a thread-safe in-memory KV, used by tests and by deployments
// that do not need durability.
type MemKV struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func NewMemKV() *MemKV {
	return &MemKV{data: make(map[string][]byte)}
}

func (m *MemKV) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *MemKV) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *MemKV) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *MemKV) Keys(prefix []byte) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p := string(prefix)
	var keys [][]byte
	for k := range m.data {
		if strings.HasPrefix(k, p) {
			keys = append(keys, []byte(k))
		}
	}
	return keys, nil
}

func (m *MemKV) NewBatch() Batch {
	return &memBatch{db: m}
}

func (m *MemKV) Close() error { return nil }

type memBatchOp struct {
	key   string
	value []byte // nil means delete
}

type memBatch struct {
	db  *MemKV
	ops []memBatchOp
}

func (b *memBatch) Put(key, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	b.ops = append(b.ops, memBatchOp{string(key), cp})
}

func (b *memBatch) Delete(key []byte) {
	b.ops = append(b.ops, memBatchOp{string(key), nil})
}

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.value == nil {
			delete(b.db.data, op.key)
		} else {
			b.db.data[op.key] = op.value
		}
	}
	return nil
}

// NewMem returns a StateDB backed by a fresh MemKV.
func NewMem() *StateDB {
	return New(NewMemKV())
}
