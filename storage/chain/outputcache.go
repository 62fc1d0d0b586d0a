package chain

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/cuprate-go/cuprated/types"
)

// outputCacheKey identifies one output row the same way the on-disk
// tables do: RingCT outputs by global index, pre-RCT outputs by
// (amount, index).
type outputCacheKey struct {
	amount uint64
	index uint64
}

// outputCache is an LRU in front of Store.Outputs, covering the same
// concern common.Cache wraps generically for the RandomX VM cache
// (common/cache.go) but specialized here with a two-field key rather
// than forcing callers through interface{} boxing on every ring-member
// resolution, which batches run millions of times during
// initial sync.
type outputCache struct {
	cache *lru.Cache
}

func newOutputCache(size int) (*outputCache, error) {
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &outputCache{cache: c}, nil
}

func (c *outputCache) get(k outputCacheKey) (types.OutputOnChain, bool) {
	v, ok := c.cache.Get(k)
	if !ok {
		return types.OutputOnChain{}, false
	}
	return v.(types.OutputOnChain), true
}

func (c *outputCache) add(k outputCacheKey, o types.OutputOnChain) {
	c.cache.Add(k, o)
}

// OutputsCached resolves req the same as Store.Outputs but consults cache
// first and populates it with whatever had to be fetched from disk.
func (s *Store) OutputsCached(cache *outputCache, req map[uint64][]uint64) map[uint64]map[uint64]types.OutputOnChain {
	out := make(map[uint64]map[uint64]types.OutputOnChain, len(req))
	miss := make(map[uint64][]uint64, len(req))

	for amount, indices := range req {
		m := make(map[uint64]types.OutputOnChain, len(indices))
		for _, idx := range indices {
			if o, ok := cache.get(outputCacheKey{amount, idx}); ok {
				m[idx] = o
				continue
			}
			miss[amount] = append(miss[amount], idx)
		}
		out[amount] = m
	}

	if len(miss) == 0 {
		return out
	}

	fetched := s.Outputs(miss)
	for amount, byIdx := range fetched {
		for idx, o := range byIdx {
			out[amount][idx] = o
			cache.add(outputCacheKey{amount, idx}, o)
		}
	}
	return out
}
