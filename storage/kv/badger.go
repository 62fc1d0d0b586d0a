// Badger backend: a GC-ticker-plus-size-threshold background
// compaction loop behind the blockchain KV interface.
package kv

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger"

	"github.com/cuprate-go/cuprated/log"
)

var badgerLogger = log.NewModuleLogger(log.ModuleStorage)

const badgerGCThresholdBytes = int64(1 << 30)
const badgerGCInterval = time.Minute

type badgerDatabase struct {
	path string
	db *badger.DB
	gcTicker *time.Ticker
	stop chan struct{}
}

func OpenBadger(dir string) (Database, error) {
	if fi, err := os.Stat(dir); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("kv: badger dir %q is not a directory", dir)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("kv: creating badger dir %q: %w", dir, err)
		}
	} else {
		return nil, fmt.Errorf("kv: statting badger dir %q: %w", dir, err)
	}

	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kv: opening badger at %q: %w", dir, err)
	}

	bd := &badgerDatabase{
		path: dir,
		db: db,
		gcTicker: time.NewTicker(badgerGCInterval),
		stop: make(chan struct{}),
	}
	go bd.runValueLogGC()
	return bd, nil
}

func (bd *badgerDatabase) runValueLogGC() {
	_, lastSize := bd.db.Size()
	for {
		select {
		case <-bd.stop:
			bd.gcTicker.Stop()
			return
		case <-bd.gcTicker.C:
			_, curr := bd.db.Size()
			if curr-lastSize < badgerGCThresholdBytes {
				continue
			}
			if err := bd.db.RunValueLogGC(0.5); err != nil {
				badgerLogger.Error("value log gc failed", "err", err)
				continue
			}
			_, lastSize = bd.db.Size()
		}
	}
}

func (bd *badgerDatabase) Type() DBType { return Badger }

func (bd *badgerDatabase) Put(key, value []byte) error {
	return bd.db.Update(func(txn *badger.Txn) error {
			return txn.Set(key, value)
	})
}

func (bd *badgerDatabase) Has(key []byte) (bool, error) {
	var has bool
	err := bd.db.View(func(txn *badger.Txn) error {
			_, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				return nil
			}
			if err != nil {
				return err
			}
			has = true
			return nil
	})
	return has, err
}

func (bd *badgerDatabase) Get(key []byte) ([]byte, error) {
	var out []byte
	err := bd.db.View(func(txn *badger.Txn) error {
			item, err := txn.Get(key)
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			if err != nil {
				return err
			}
			v, err := item.Value()
			if err != nil {
				return err
			}
			out = append([]byte(nil), v...)
			return nil
	})
	return out, err
}

func (bd *badgerDatabase) Delete(key []byte) error {
	return bd.db.Update(func(txn *badger.Txn) error {
			return txn.Delete(key)
	})
}

func (bd *badgerDatabase) Close() error {
	close(bd.stop)
	return bd.db.Close()
}

func (bd *badgerDatabase) NewIterator(prefix []byte) Iterator {
	txn := bd.db.NewTransaction(false)
	opts := badger.DefaultIteratorOptions
	it := txn.NewIterator(opts)
	if prefix != nil {
		it.Seek(prefix)
	} else {
		it.Rewind()
	}
	return &badgerIterator{txn: txn, it: it, prefix: prefix, started: true}
}

type badgerIterator struct {
	txn *badger.Txn
	it *badger.Iterator
	prefix []byte
	started bool
	k, v []byte
}

func (i *badgerIterator) Next() bool {
	if !i.started {
		i.it.Next()
	}
	i.started = false
	if !i.it.ValidForPrefix(i.prefix) {
		return false
	}
	item := i.it.Item()
	i.k = item.KeyCopy(nil)
	v, err := item.ValueCopy(nil)
	if err != nil {
		return false
	}
	i.v = v
	return true
}

func (i *badgerIterator) Key() []byte { return i.k }
func (i *badgerIterator) Value() []byte { return i.v }
func (i *badgerIterator) Error() error { return nil }
func (i *badgerIterator) Release() {
	i.it.Close()
	i.txn.Discard()
}

func (bd *badgerDatabase) NewBatch() Batch {
	return &badgerBatch{db: bd.db}
}

type badgerOp struct {
	del bool
	key []byte
	value []byte
}

type badgerBatch struct {
	db *badger.DB
	ops []badgerOp
	size int
}

func (b *badgerBatch) Put(key, value []byte) error {
	b.ops = append(b.ops, badgerOp{key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
	b.size += len(key) + len(value)
	return nil
}

func (b *badgerBatch) Delete(key []byte) error {
	b.ops = append(b.ops, badgerOp{del: true, key: append([]byte(nil), key...)})
	b.size += len(key)
	return nil
}

func (b *badgerBatch) ValueSize() int { return b.size }

func (b *badgerBatch) Write() error {
	return b.db.Update(func(txn *badger.Txn) error {
			for _, op := range b.ops {
				if op.del {
					if err := txn.Delete(op.key); err != nil {
						return err
					}
					continue
				}
				if err := txn.Set(op.key, op.value); err != nil {
					return err
				}
			}
			return nil
	})
}

func (b *badgerBatch) Reset() {
	b.ops = b.ops[:0]
	b.size = 0
}
