package chain

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/cuprate-go/cuprated/types"
)

// headerCache memoizes BlockInfo-by-height lookups: every validation
// re-reads the last DifficultyWindow+ShortTermWeightWindow heights'
// worth of headers, so an off-heap byte cache in front of the
// block_infos table saves a KV round trip on the hot path the
// context cache drives on every new block.
type headerCache struct {
	c *fastcache.Cache
}

func newHeaderCache(maxBytes int) *headerCache {
	return &headerCache{c: fastcache.New(maxBytes)}
}

func (h *headerCache) get(height uint64) (types.BlockInfo, bool) {
	v, ok := h.c.HasGet(nil, heightKey(height))
	if !ok {
		return types.BlockInfo{}, false
	}
	return decodeBlockInfo(v), true
}

func (h *headerCache) put(height uint64, bi types.BlockInfo) {
	h.c.Set(heightKey(height), encodeBlockInfo(bi))
}

func (h *headerCache) invalidateFrom(height uint64) {
	// fastcache has no range delete; entries beyond the new tip simply
	// age out, and a point invalidation as each is individually popped
	// keeps the common single-block-pop path precise.
	h.c.Del(heightKey(height))
}

// cachedBlockInfoByHeight first consults the header cache, falling back to
// the table and populating the cache on a miss.
func (s *Store) cachedBlockInfoByHeight(h *headerCache, height uint64) (types.BlockInfo, bool) {
	if bi, ok := h.get(height); ok {
		return bi, true
	}
	bi, ok := s.BlockInfoByHeight(height)
	if ok {
		h.put(height, bi)
	}
	return bi, ok
}
