// Package kv is the generic ordered key-value layer the blockchain
// storage engine (storage/chain) is built on. Two interchangeable
// persistent backends implement it (LevelDB, Badger), plus an
// in-memory one (memory.go); exactly one is active at
// runtime, through the Database/Batch/Iterator interfaces below.
package kv

import "io"

// DBType names which backend is active.
type DBType string

const (
	LevelDB DBType = "leveldb"
	Badger DBType = "badger"
	Memory DBType = "memory"
)

// Database is a single logical key space. The typed layer
// (storage/chain) prefixes each table's keys over one Database, so it
// composes namespacing without caring which backend it's ultimately
// writing to.
type Database interface {
	Type() DBType
	Put(key, value []byte) error
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	NewIterator(prefix []byte) Iterator
	NewBatch() Batch
	io.Closer
}

// Batch accumulates writes for one atomic commit.
type Batch interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	ValueSize() int
	Write() error
	Reset()
}

// Iterator walks a key range in order. Implementations must be safe to
// use from a single goroutine only; callers needing a consistent view
// across a longer operation should take a Snapshot first.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
	Error() error
}

// Snapshotter is implemented by backends that can hand out a
// consistent, independent read view without blocking concurrent
// writers.
type Snapshotter interface {
	Snapshot() (Database, error)
}

// Resizer is implemented by backends that require manual map sizing
// (e.g. an mmap-backed store): a write that would exceed the current
// map size returns ErrResizeNeeded from Put/Write, and Resize grows
// the map under exclusive access before the caller retries.
type Resizer interface {
	Resize(newSizeBytes int64) error
}
