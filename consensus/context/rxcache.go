package context

import (
	"sync"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/consensus/rules"
	"github.com/cuprate-go/cuprated/types"
)

// rxCache is the small LRU of constructed RandomX VMs keyed by seed
// hash, built on common.Cache the
// same way it already wraps hashicorp/golang-lru for other fixed-size
// eviction caches in this tree. VMs are immutable and reference
// counted per "RandomX VMs are reference-counted and immutable";
// the factory closure is responsible for any such counting, this
// cache only owns the keyed-by-seed lookup.
type rxCache struct {
	mu sync.Mutex
	cache common.Cache
}

func newRXCache(size int) (*rxCache, error) {
	c, err := common.NewLRUCache(size)
	if err != nil {
		return nil, err
	}
	return &rxCache{cache: c}, nil
}

// get returns the cached VM for seedHash, constructing one via factory
// on a miss. Held under a mutex (not the Cache's own RWMutex) since VM
// construction can be slow and we don't want to block Snapshot readers
// who happen to share the lock; this is a narrowly-scoped lock around
// LRU bookkeeping only.
func (r *rxCache) get(seedHash types.Hash32, factory func(types.Hash32) rules.RandomXVM) rules.RandomXVM {
	key := common.Hash(seedHash)
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.cache.Get(key); ok {
		return v.(rules.RandomXVM)
	}
	vm := factory(seedHash)
	r.cache.Add(key, vm)
	return vm
}
