package chain

import "github.com/cuprate-go/cuprated/storage/kv"

// namespaced prefixes an underlying kv.Database with a table name,
// faking multiple logical tables over one physical LevelDB/Badger
// instance when the backend isn't partitioned.
type namespaced struct {
	db kv.Database
	prefix []byte
}

func newTable(db kv.Database, t Table) *namespaced {
	return &namespaced{db: db, prefix: append([]byte(t), ':')}
}

func (n *namespaced) key(k []byte) []byte {
	out := make([]byte, 0, len(n.prefix)+len(k))
	out = append(out, n.prefix...)
	out = append(out, k...)
	return out
}

// strip removes this table's prefix from a key as returned by
// NewIterator, which walks the full, prefixed keyspace.
func (n *namespaced) strip(k []byte) []byte {
	if len(k) < len(n.prefix) {
		return k
	}
	return k[len(n.prefix):]
}

func (n *namespaced) Get(k []byte) ([]byte, error) { return n.db.Get(n.key(k)) }
func (n *namespaced) Has(k []byte) (bool, error) { return n.db.Has(n.key(k)) }
func (n *namespaced) Put(k, v []byte) error { return n.db.Put(n.key(k), v) }
func (n *namespaced) Delete(k []byte) error { return n.db.Delete(n.key(k)) }
func (n *namespaced) NewIterator() kv.Iterator { return n.db.NewIterator(n.prefix) }

// putBatch / delBatch stage a put/delete against a shared kv.Batch under this
// table's namespace, so many-table writes (e.g. PopBlocks touching
// block_infos + block_blobs + block_heights + key_images in one go)
// still land in a single backend commit.
func (n *namespaced) putBatch(b kv.Batch, k, v []byte) error { return b.Put(n.key(k), v) }
func (n *namespaced) delBatch(b kv.Batch, k []byte) error { return b.Delete(n.key(k)) }
