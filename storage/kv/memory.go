package kv

import (
	"bytes"
	"sort"
	"sync"
)

// memoryDB is the in-memory backend used by default in tests.
type memoryDB struct {
	mu sync.RWMutex
	data map[string][]byte
}

func NewMemoryDB() Database {
	return &memoryDB{data: make(map[string][]byte)}
}

func (m *memoryDB) Type() DBType { return Memory }

func (m *memoryDB) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[string(key)] = cp
	return nil
}

func (m *memoryDB) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}

func (m *memoryDB) Get(key []byte) ([]byte, error) {
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

func (m *memoryDB) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}

func (m *memoryDB) Close() error { return nil }

func (m *memoryDB) NewIterator(prefix []byte) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		if prefix == nil || bytes.HasPrefix([]byte(k), prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	entries := make([]kvPair, len(keys))
	for i, k := range keys {
		entries[i] = kvPair{key: []byte(k), value: m.data[k]}
	}
	return &memIterator{entries: entries, idx: -1}
}

type kvPair struct {
	key, value []byte
}

type memIterator struct {
	entries []kvPair
	idx int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.entries)
}

func (it *memIterator) Key() []byte { return it.entries[it.idx].key }
func (it *memIterator) Value() []byte { return it.entries[it.idx].value }
func (it *memIterator) Release() {}
func (it *memIterator) Error() error { return nil }

func (m *memoryDB) NewBatch() Batch {
	return &memBatch{db: m}
}

type memOp struct {
	del bool
	key []byte
	value []byte
}

type memBatch struct {
	db *memoryDB
	ops []memOp
	size int
}

func (b *memBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, memOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(value)
	return nil
}

func (b *memBatch) Delete(key []byte) error {
	b.ops = append(b.ops, memOp{del: true, key: append([]byte(nil), key...)})
	return nil
}

func (b *memBatch) ValueSize() int { return b.size }

func (b *memBatch) Write() error {
	b.db.mu.Lock()
	defer b.db.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			delete(b.db.data, string(op.key))
			continue
		}
		b.db.data[string(op.key)] = op.value
	}
	return nil
}

func (b *memBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}

// Snapshot returns an independent deep copy of the current contents.
func (m *memoryDB) Snapshot() (Database, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		vv := make([]byte, len(v))
		copy(vv, v)
		cp[k] = vv
	}
	return &memoryDB{data: cp}, nil
}
