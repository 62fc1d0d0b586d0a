package types

import "github.com/cuprate-go/cuprated/params"

// Context is the immutable snapshot handed to every validator. It is
// produced and refreshed exclusively by the context cache and is safe
// to share across readers: updates are published by wholesale
// replacement, never mutated in place.
type Context struct {
	ChainHeight uint64
	TopHash Hash32

	HardFork params.HardFork

	NextDifficulty uint64

	// MedianWeightForReward is the median of the short-term window,
	// used by the piecewise reward formula.
	MedianWeightForReward uint64
	// EffectiveMedianForLongTermWeight is the already-smoothed median
	// used to bound the inflation-limiting long-term weight.
	EffectiveMedianForLongTermWeight uint64

	AlreadyGeneratedCoins uint64

	// RecentTimestamps is the last TimestampCheckWindow block
	// timestamps, oldest first, used for the header timestamp rule's
	// median-of-window bound.
	RecentTimestamps []uint64

	// SeedHash is the RandomX seed currently in effect.
	SeedHash Hash32
	// NextSeedHash is precomputed so VMs can be warmed ahead of the
	// seed-epoch boundary.
	NextSeedHash Hash32
}

// Hash32 is the plain 32-byte array shape of common.Hash; the two
// convert directly, as node and consensus/context do.
type Hash32 = [32]byte

// NewBlockData is the delta a successful commit applies to the context
// cache.
type NewBlockData struct {
	BlockHash Hash32
	Height uint64
	Timestamp uint64
	Weight uint64
	LongTermWeight uint64
	GeneratedCoins uint64
	Vote params.HardFork
	CumulativeDiff CumulativeDifficulty
}
