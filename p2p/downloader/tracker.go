// Package downloader implements the parallel, multi-peer,
// back-pressured block download pipeline: chain-entry discovery,
// batch fetch, off-path parsing, strict-height-order delivery. The
// queueing/retry idiom uses a bounded-retry queue plus a dedicated
// dispatch goroutine over a channel.
package downloader

import (
	"fmt"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/p2p"
)

var dlLogger = log.NewModuleLogger(log.ModuleDownloader)

// chainEntrySegment is one contiguous list of block hashes claimed by
// some peer, with the invariant that entry k+1 begins with (and then
// skips) the last hash of entry k.
type chainEntrySegment struct {
	hashes []common.Hash
	startHeight uint64
}

// ChainTracker holds the deque of chain entries discovered so far and
// hands out work to batch fetchers.
type ChainTracker struct {
	genesis common.Hash
	entries []chainEntrySegment

	// highestSeenHeight is the height implied by the last entry's last
	// hash, used by ShouldAskForNextChainEntry.
	highestSeenHeight uint64
	totalClaimedDiff uint64
}

// NewChainTracker seeds the tracker with the first chain entry a peer
// returned for our local history.
func NewChainTracker(genesis common.Hash, first p2p.ChainEntry) (*ChainTracker, error) {
	if len(first.Hashes) == 0 {
		return nil, fmt.Errorf("downloader: first chain entry is empty")
	}
	t := &ChainTracker{genesis: genesis}
	t.entries = append(t.entries, chainEntrySegment{hashes: first.Hashes, startHeight: first.StartHeight})
	t.highestSeenHeight = first.StartHeight + uint64(len(first.Hashes)) - 1
	t.totalClaimedDiff = first.ClaimedCumulativeDiff
	return t, nil
}

// AddChainEntry appends a new entry once its first hash is verified to
// equal the tracker's current highest-seen hash (the overlap contract
// chain entries maintain); the overlapping hash is then skipped.
func (t *ChainTracker) AddChainEntry(entry p2p.ChainEntry) error {
	if len(entry.Hashes) < 2 {
		return fmt.Errorf("downloader: chain entry too short to extend")
	}
	last := t.entries[len(t.entries)-1]
	tipHash := last.hashes[len(last.hashes)-1]
	if entry.Hashes[0] != tipHash {
		return fmt.Errorf("downloader: chain entry does not overlap current tip")
	}
	seg := chainEntrySegment{hashes: entry.Hashes[1:], startHeight: t.highestSeenHeight + 1}
	t.entries = append(t.entries, seg)
	t.highestSeenHeight += uint64(len(seg.hashes))
	if entry.ClaimedCumulativeDiff > t.totalClaimedDiff {
		t.totalClaimedDiff = entry.ClaimedCumulativeDiff
	}
	return nil
}

// SimpleHistory returns (top, genesis), the minimal locator used to
// request the next chain entry.
func (t *ChainTracker) SimpleHistory() []common.Hash {
	if len(t.entries) == 0 {
		return []common.Hash{t.genesis}
	}
	last := t.entries[len(t.entries)-1]
	return []common.Hash{last.hashes[len(last.hashes)-1], t.genesis}
}

// HighestSeenHeight is the height of the last hash in the tracker.
func (t *ChainTracker) HighestSeenHeight() uint64 { return t.highestSeenHeight }

// ClaimedCumulativeDifficulty is the best peer-claimed cumulative
// difficulty seen so far, used by the manager to decide whether
// downloading this chain is even worthwhile before spending bandwidth.
func (t *ChainTracker) ClaimedCumulativeDifficulty() uint64 { return t.totalClaimedDiff }

// BlocksToGet returns up to max hashes from the front of the front entry,
// respecting the peer's pruning seed — a peer only serves blocks it
// has. The returned
// hashes are NOT removed from the tracker; PopFront must be called
// once the batch is durably handed to a fetcher, so a failed dispatch
// can retry against the same front-of-queue hashes.
func (t *ChainTracker) BlocksToGet(seed p2p.PruningSeed, max int) []common.Hash {
	if len(t.entries) == 0 {
		return nil
	}
	front := t.entries[0]
	if !seed.Stores(front.startHeight, t.highestSeenHeight) {
		return nil
	}
	n := max
	if n > len(front.hashes) {
		n = len(front.hashes)
	}
	return append([]common.Hash(nil), front.hashes[:n]...)
}

// PopFront removes n hashes from the front entry, advancing to the
// next entry once the front is exhausted. Must be called with exactly
// the count actually dispatched in a BlocksToGet call.
func (t *ChainTracker) PopFront(n int) {
	for n > 0 && len(t.entries) > 0 {
		front := &t.entries[0]
		if n < len(front.hashes) {
			front.hashes = front.hashes[n:]
			front.startHeight += uint64(n)
			return
		}
		n -= len(front.hashes)
		t.entries = t.entries[1:]
	}
}

// ShouldAskForNextChainEntry reports whether a peer advertising seed
// is expected to know the block after the current highest-seen height
// — i.e. whether it's worth spending a round trip asking it to extend
// the tracker.
func (t *ChainTracker) ShouldAskForNextChainEntry(seed p2p.PruningSeed) bool {
	return seed.Stores(t.highestSeenHeight+1, t.highestSeenHeight+1)
}

// Remaining returns how many unclaimed hashes the tracker still holds.
func (t *ChainTracker) Remaining() int {
	n := 0
	for _, e := range t.entries {
		n += len(e.hashes)
	}
	return n
}
