// Package context implements the hot in-memory projection of the
// chain tail: difficulty and weight sliding windows, hard-fork
// state, and the RandomX VM/seed cache, refreshed after every commit
// so per-block validation stays O(1) amortized. Updates mutate the one
// live Cache in place under a sync.RWMutex; the Cache is not replaced
// wholesale on update. Readers take the read lock through Snapshot,
// which copies what they need into an independent types.Context value.
package context

import (
	"sync"

	"github.com/cuprate-go/cuprated/consensus/rules"
	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

var ctxLogger = log.NewModuleLogger(log.ModuleContext)

// BlockInfoSource is the narrow read surface the cache needs from
// storage to rebuild a window entry that fell outside the in-memory
// ring.
type BlockInfoSource interface {
	BlockInfoByHeight(height uint64) (types.BlockInfo, bool)
}

// Cache is the single-writer/many-reader context cache. All
// mutating methods (ApplyNewBlock, ApplyPop) must be called only by
// the blockchain manager's single task; Snapshot is safe from any
// goroutine since it reads the window under the read lock and returns
// a copy.
type Cache struct {
	np *params.NetworkParams
	store BlockInfoSource

	mu sync.RWMutex

	height uint64
	topHash types.Hash32
	hardFork params.HardFork

	// window holds exactly the tail needed for the largest lookback
	// (long-term weight, 100_000 entries); difficulty and short-term
	// weight read a suffix of it.
	window []windowEntry

	alreadyGenerated uint64

	rx *rxCache
}

type windowEntry struct {
	height uint64
	timestamp uint64
	weight uint64
	longTermWeight uint64
	cumulativeDiff types.CumulativeDifficulty
	hfVote params.HardFork
	// generatedCoins is the running supply total as of this height,
	// carried per-entry so a truncated window (alt-context overlay,
	// pop) can recover "already generated as of the new tail" without
	// a storage round trip.
	generatedCoins uint64
}

// New builds an empty cache; callers must call LoadFromStorage before
// the first Snapshot.
func New(np *params.NetworkParams, store BlockInfoSource) *Cache {
	rx, err := newRXCache(np.RandomXVMCacheSize)
	if err != nil {
		// RandomXVMCacheSize is validated non-positive only by
		// operator misconfiguration, not peer input; fail loudly at
		// startup rather than limping along with no VM cache.
		ctxLogger.Crit("failed to build RandomX VM cache", "err", err)
		return nil
	}
	return &Cache{np: np, store: store, rx: rx}
}

// LoadFromStorage rebuilds the cache's sliding windows from the
// storage tail at startup.
func (c *Cache) LoadFromStorage(height uint64, topHash types.Hash32, schedule []params.ForkActivation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.height = height
	c.topHash = topHash
	c.hardFork = params.ActiveHardFork(schedule, height)

	lookback := uint64(c.np.LongTermWeightWindow)
	lo := uint64(0)
	if height > lookback {
		lo = height - lookback
	}
	c.window = c.window[:0]
	for h := lo; h < height; h++ {
		bi, ok := c.store.BlockInfoByHeight(h)
		if !ok {
			break
		}
		c.window = append(c.window, windowEntry{
				height: h,
				timestamp: bi.Timestamp,
				weight: bi.Weight,
				longTermWeight: bi.LongTermWeight,
				cumulativeDiff: bi.CumulativeDiff,
				hfVote: bi.HFVersion,
				generatedCoins: bi.CumulativeGeneratedCoins,
		})
	}
	if len(c.window) > 0 {
		c.alreadyGenerated = c.window[len(c.window)-1].generatedCoins
	}
	return nil
}

// Snapshot returns the immutable value every validator reads. It copies
// the small suffixes the difficulty, short-term weight and timestamp
// rules need; the long-term weight median copies every entry's
// long-term weight.
func (c *Cache) Snapshot() types.Context {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Cache) snapshotLocked() types.Context {
	seedHeight := rules.SeedHeight(c.height, c.np)
	seed, _ := c.blockHashAt(seedHeight)
	nextSeedHeight := seedHeight + c.np.SeedHashEpoch
	nextSeed, _ := c.blockHashAt(nextSeedHeight)

	return types.Context{
		ChainHeight: c.height,
		TopHash: c.topHash,
		HardFork: c.hardFork,
		NextDifficulty: c.nextDifficultyLocked(),
		MedianWeightForReward: c.medianWeightLocked(c.np.ShortTermWeightWindow),
		EffectiveMedianForLongTermWeight: c.medianLongTermWeightLocked(),
		AlreadyGeneratedCoins: c.alreadyGenerated,
		RecentTimestamps: c.recentTimestampsLocked(),
		SeedHash: seed,
		NextSeedHash: nextSeed,
	}
}

// blockHashAt resolves a window height to its block hash. Window
// entries don't carry the hash itself (only weight/timestamp/diff),
// so this always goes through storage; every Snapshot calls it twice
// (current and next seed height) and the result is not cached.
func (c *Cache) blockHashAt(height uint64) (types.Hash32, bool) {
	bi, ok := c.store.BlockInfoByHeight(height)
	if !ok {
		return types.Hash32{}, false
	}
	return types.Hash32(bi.Hash), true
}

func (c *Cache) nextDifficultyLocked() uint64 {
	n := len(c.window)
	lag := c.np.DifficultyLag
	window := c.np.DifficultyWindow
	if n < lag+1 {
		if c.np.FixedDifficulty != 0 {
			return c.np.FixedDifficulty
		}
		return 1
	}
	hi := n - lag
	lo := hi - window
	if lo < 0 {
		lo = 0
	}
	slice := c.window[lo:hi]
	points := make([]rules.TimestampDifficultyPoint, len(slice))
	for i, e := range slice {
		points[i] = rules.TimestampDifficultyPoint{
			Timestamp: e.timestamp,
			CumulativeDiff: rules.NewUint256Pair(e.cumulativeDiff.Lo, e.cumulativeDiff.Hi),
		}
	}
	return rules.NextDifficulty(points, c.np)
}

func (c *Cache) medianWeightLocked(window int) uint64 {
	n := len(c.window)
	if n == 0 {
		return 0
	}
	lo := 0
	if n > window {
		lo = n - window
	}
	weights := make([]uint64, 0, n-lo)
	for _, e := range c.window[lo:] {
		weights = append(weights, e.weight)
	}
	return median(weights)
}

// recentTimestampsLocked returns the timestamps of the last
// TimestampCheckWindow window entries, oldest first.
func (c *Cache) recentTimestampsLocked() []uint64 {
	n := len(c.window)
	if n == 0 {
		return nil
	}
	window := c.np.TimestampCheckWindow
	lo := 0
	if n > window {
		lo = n - window
	}
	out := make([]uint64, 0, n-lo)
	for _, e := range c.window[lo:] {
		out = append(out, e.timestamp)
	}
	return out
}

func (c *Cache) medianLongTermWeightLocked() uint64 {
	n := len(c.window)
	if n == 0 {
		return 0
	}
	weights := make([]uint64, n)
	for i, e := range c.window {
		weights[i] = e.longTermWeight
	}
	return median(weights)
}

func median(vals []uint64) uint64 {
	if len(vals) == 0 {
		return 0
	}
	cp := append([]uint64(nil), vals...)
	for i := 1; i < len(cp); i++ {
		for j := i; j > 0 && cp[j-1] > cp[j]; j-- {
			cp[j-1], cp[j] = cp[j], cp[j-1]
		}
	}
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}

// ApplyNewBlock advances the cache after a successful main-chain
// commit; must be called by the manager
// immediately after the commit and before the next AddBlock is
// accepted.
func (c *Cache) ApplyNewBlock(d types.NewBlockData, schedule []params.ForkActivation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.alreadyGenerated += d.GeneratedCoins
	c.window = append(c.window, windowEntry{
			height: d.Height,
			timestamp: d.Timestamp,
			weight: d.Weight,
			longTermWeight: d.LongTermWeight,
			cumulativeDiff: d.CumulativeDiff,
			hfVote: d.Vote,
			generatedCoins: c.alreadyGenerated,
	})
	if over := len(c.window) - c.np.LongTermWeightWindow; over > 0 {
		c.window = c.window[over:]
	}

	c.height = d.Height + 1
	c.topHash = d.BlockHash
	c.hardFork = params.ActiveHardFork(schedule, c.height)
}

// ApplyPop is the inverse delta: drop the popped
// tail from the window, re-reading from storage when the window needs
// to be refilled from behind.
func (c *Cache) ApplyPop(n uint64, schedule []params.ForkActivation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n > c.height {
		n = c.height
	}
	newHeight := c.height - n

	cut := len(c.window)
	for cut > 0 && c.window[cut-1].height >= newHeight {
		cut--
	}
	c.window = c.window[:cut]

	lookback := uint64(c.np.LongTermWeightWindow)
	want := lookback
	if newHeight < want {
		want = newHeight
	}
	if uint64(len(c.window)) < want {
		refilled := make([]windowEntry, 0, want)
		for h := newHeight - want; h < newHeight; h++ {
			bi, ok := c.store.BlockInfoByHeight(h)
			if !ok {
				continue
			}
			refilled = append(refilled, windowEntry{
					height: h,
					timestamp: bi.Timestamp,
					weight: bi.Weight,
					longTermWeight: bi.LongTermWeight,
					cumulativeDiff: bi.CumulativeDiff,
					hfVote: bi.HFVersion,
					generatedCoins: bi.CumulativeGeneratedCoins,
			})
		}
		c.window = refilled
	}

	c.height = newHeight
	if newHeight == 0 {
		c.topHash = types.Hash32{}
		c.alreadyGenerated = 0
	} else if bi, ok := c.store.BlockInfoByHeight(newHeight - 1); ok {
		c.topHash = types.Hash32(bi.Hash)
		c.alreadyGenerated = bi.CumulativeGeneratedCoins
	}
	c.hardFork = params.ActiveHardFork(schedule, c.height)
	return nil
}

// RandomXVM returns (creating and caching if necessary) the VM keyed
// by seedHash.
func (c *Cache) RandomXVM(seedHash types.Hash32, factory func(types.Hash32) rules.RandomXVM) rules.RandomXVM {
	return c.rx.get(seedHash, factory)
}
