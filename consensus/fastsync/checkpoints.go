// Package fastsync implements the optional hash-checkpoint
// accelerator: an embedded, ordered list of BLAKE2b hashes, each
// covering BatchLen consecutive block hashes starting from genesis.
package fastsync

import (
	"golang.org/x/crypto/blake2b"

	"github.com/cuprate-go/cuprated/common"
)

// BatchLen is FAST_SYNC_BATCH_LEN: the number of consecutive
// block hashes whose concatenation is hashed into one checkpoint
// entry.
const BatchLen = 512

// Checkpoints is the embedded, ordered list of per-batch hashes.
type Checkpoints struct {
	hashes []common.Hash
}

// New wraps a precomputed checkpoint list (typically compiled in via
// go:embed in cmd/cuprated, kept abstract here since the artifact
// itself is a network-specific data file, not logic).
func New(hashes []common.Hash) *Checkpoints {
	return &Checkpoints{hashes: hashes}
}

// TopHeight is the highest height fast-sync can short-circuit below.
func (c *Checkpoints) TopHeight() uint64 {
	return uint64(len(c.hashes)) * BatchLen
}

// HashBatch computes the checkpoint hash for one batch of consecutive
// block hashes, in order.
func HashBatch(blockHashes []common.Hash) common.Hash {
	h, _ := blake2b.New256(nil)
	for _, bh := range blockHashes {
		h.Write(bh[:])
	}
	return common.BytesToHash(h.Sum(nil))
}

// Verify reports whether the batch starting at startHeight (which
// must be a multiple of BatchLen) matches the embedded checkpoint,
// letting the verifier skip PoW and signature checks for that
// batch while all structural checks still run.
func (c *Checkpoints) Verify(startHeight uint64, batchHashes []common.Hash) bool {
	if startHeight%BatchLen != 0 {
		return false
	}
	idx := startHeight / BatchLen
	if idx >= uint64(len(c.hashes)) {
		return false
	}
	if len(batchHashes) != BatchLen {
		return false
	}
	return HashBatch(batchHashes) == c.hashes[idx]
}
