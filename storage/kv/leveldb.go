// LevelDB backend: bloom filter and write buffer/cache tuning, plus a
// compaction-stats-to-metrics goroutine, behind the blockchain KV
// interface.
package kv

import (
	"sync"
	"time"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/storage/metrics"
)

var ldbLogger = log.NewModuleLogger(log.ModuleStorage)

const MinLevelDBCacheMB = 16
const MinLevelDBHandles = 16

func levelDBOptions(cacheMB, numHandles int) *opt.Options {
	return &opt.Options{
		OpenFilesCacheCapacity: numHandles,
		BlockCacheCapacity: cacheMB / 2 * opt.MiB,
		WriteBuffer: cacheMB / 4 * opt.MiB,
		Filter: filter.NewBloomFilter(10),
		DisableBufferPool: true,
	}
}

type levelDBDatabase struct {
	path string
	db *leveldb.DB

	meters *metrics.DBMeters
	quitLock sync.Mutex
	quitChan chan chan error
}

// OpenLevelDB opens (or creates and recovers) a LevelDB database at
// path, enforcing a cache/handle floor so a too-small config can't
// starve it.
func OpenLevelDB(path string, cacheMB, numHandles int) (Database, error) {
	if cacheMB < MinLevelDBCacheMB {
		cacheMB = MinLevelDBCacheMB
	}
	if numHandles < MinLevelDBHandles {
		numHandles = MinLevelDBHandles
	}

	db, err := leveldb.OpenFile(path, levelDBOptions(cacheMB, numHandles))
	if _, corrupted := err.(*errors.ErrCorrupted); corrupted {
		ldbLogger.Warn("recovering corrupted leveldb", "path", path)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, err
	}

	ld := &levelDBDatabase{path: path, db: db, meters: metrics.NewDBMeters("chaindata/leveldb/")}
	ld.startMetering(3 * time.Second)
	return ld, nil
}

func (ld *levelDBDatabase) Type() DBType { return LevelDB }

func (ld *levelDBDatabase) Put(key, value []byte) error { return ld.db.Put(key, value, nil) }

func (ld *levelDBDatabase) Has(key []byte) (bool, error) { return ld.db.Has(key, nil) }

func (ld *levelDBDatabase) Get(key []byte) ([]byte, error) {
	v, err := ld.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNotFound
	}
	return v, err
}

func (ld *levelDBDatabase) Delete(key []byte) error { return ld.db.Delete(key, nil) }

func (ld *levelDBDatabase) NewIterator(prefix []byte) Iterator {
	var rng *util.Range
	if prefix != nil {
		rng = util.BytesPrefix(prefix)
	}
	return &levelDBIterator{it: ld.db.NewIterator(rng, nil)}
}

type levelDBIterator struct{ it iterator.Iterator }

func (i *levelDBIterator) Next() bool { return i.it.Next() }
func (i *levelDBIterator) Key() []byte { return i.it.Key() }
func (i *levelDBIterator) Value() []byte { return i.it.Value() }
func (i *levelDBIterator) Release() { i.it.Release() }
func (i *levelDBIterator) Error() error { return i.it.Error() }

func (ld *levelDBDatabase) Close() error {
	ld.quitLock.Lock()
	defer ld.quitLock.Unlock()
	if ld.quitChan != nil {
		errc := make(chan error)
		ld.quitChan <- errc
		if err := <-errc; err != nil {
			ldbLogger.Error("metrics collection failed to stop cleanly", "err", err)
		}
		ld.quitChan = nil
	}
	return ld.db.Close()
}

func (ld *levelDBDatabase) NewBatch() Batch {
	return &levelDBBatch{db: ld.db, b: new(leveldb.Batch)}
}

type levelDBBatch struct {
	db *leveldb.DB
	b *leveldb.Batch
	size int
}

func (b *levelDBBatch) Put(key, value []byte) error {
	b.b.Put(key, value)
	b.size += len(key) + len(value)
	return nil
}

func (b *levelDBBatch) Delete(key []byte) error {
	b.b.Delete(key)
	b.size += len(key)
	return nil
}

func (b *levelDBBatch) ValueSize() int { return b.size }
func (b *levelDBBatch) Write() error { return b.db.Write(b.b, nil) }
func (b *levelDBBatch) Reset() { b.b.Reset(); b.size = 0 }

// startMetering runs a periodic compaction/IO stats collector,
// reporting into storage/metrics.
func (ld *levelDBDatabase) startMetering(refresh time.Duration) {
	ld.quitLock.Lock()
	ld.quitChan = make(chan chan error)
	ld.quitLock.Unlock()

	go func() {
		var prevCompRead, prevCompWrite int64
		var prevCompTime time.Duration
		var prevRead, prevWrite uint64

		s := new(leveldb.DBStats)
		var errc chan error
		for {
			if err := ld.db.Stats(s); err != nil {
				break
			}

			var currCompRead, currCompWrite int64
			var currCompTime time.Duration
			for i := range s.LevelDurations {
				currCompTime += s.LevelDurations[i]
				currCompRead += s.LevelRead[i]
				currCompWrite += s.LevelWrite[i]
			}
			ld.meters.CompactionTime.Mark(int64(currCompTime - prevCompTime))
			ld.meters.CompactionRead.Mark(currCompRead - prevCompRead)
			ld.meters.CompactionWrite.Mark(currCompWrite - prevCompWrite)
			prevCompTime, prevCompRead, prevCompWrite = currCompTime, currCompRead, currCompWrite

			ld.meters.DiskRead.Mark(int64(s.IORead - prevRead))
			ld.meters.DiskWrite.Mark(int64(s.IOWrite - prevWrite))
			prevRead, prevWrite = s.IORead, s.IOWrite

			select {
			case errc = <-ld.quitChan:
				errc <- nil
				return
			case <-time.After(refresh):
			}
		}
		if errc == nil {
			errc = <-ld.quitChan
		}
		errc <- nil
	}()
}
