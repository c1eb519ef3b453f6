package statedb

import (
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
	"golang.org/x/xerrors"
)

// LevelKV implements KV on LevelDB.
type LevelKV struct {
	db *leveldb.DB
}

// NewLevelKV opens (or creates) a LevelDB database at path.
func NewLevelKV(path string) (*LevelKV, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, xerrors.Errorf("open leveldb %q: %w", path, err)
	}
	return &LevelKV{db: db}, nil
}

func (l *LevelKV) Get(key []byte) ([]byte, error) {
	val, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return val, err
}

func (l *LevelKV) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

func (l *LevelKV) Delete(key []byte) error {
	return l.db.Delete(key, nil)
}

func (l *LevelKV) Keys(prefix []byte) ([][]byte, error) {
	it := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer it.Release()

	var keys [][]byte
	for it.Next() {
		k := make([]byte, len(it.Key()))
		copy(k, it.Key())
		keys = append(keys, k)
	}
	return keys, it.Error()
}

func (l *LevelKV) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelKV) Close() error {
	return l.db.Close()
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Put(key, value []byte) {
	b.batch.Put(key, value)
}

func (b *levelBatch) Delete(key []byte) {
	b.batch.Delete(key)
}

func (b *levelBatch) Write() error {
	return b.db.Write(b.batch, nil)
}
