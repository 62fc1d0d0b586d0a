// Package types holds the data model shared across the storage,
// consensus, context and manager layers. Field shapes follow a
// Header/Body/Td/Receipts-style split into narrow,
// independently-cacheable records, generalized from an Ethereum-style
// header+body+td model to Monero's block+derived-fields model.
package types

import (
	"math/big"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
)

// Block is the canonical serialized block plus the fields the rest of
// the system needs without re-parsing it.
type Block struct {
	// Blob is the canonical wire serialization; storage must round
	// trip it unchanged.
	Blob []byte

	PrevHash common.Hash
	Height uint64
	Hash common.Hash
	PoWHash common.Hash
	Nonce uint32
	Timestamp uint64
	HFVote params.HardFork // version signalled in the header
	HFVersion params.HardFork // version actually enforced for this block

	Weight uint64
	LongTermWeight uint64
	CumulativeDiff CumulativeDifficulty
	GeneratedCoins uint64 // this block's miner reward
	MinerTxHash common.Hash
	TxHashes []common.Hash
}

// CumulativeDifficulty is a 128-bit value split as two 64-bit halves
// for storage, matching Monero's on-disk
// representation. Arithmetic goes through uint256
// rather than a hand-rolled 128-bit adder.
type CumulativeDifficulty struct {
	Lo uint64
	Hi uint64
}

// BlockInfo is the per-height main-chain record. It is what storage
// actually persists per height; Block carries strictly more (the
// blob, tx hashes) which lives in a separate table (block_blobs).
type BlockInfo struct {
	Hash common.Hash
	Timestamp uint64
	Weight uint64
	LongTermWeight uint64
	CumulativeDiff CumulativeDifficulty
	// CumulativeGeneratedCoins is the running total of coins emitted
	// up to and including this block.
	CumulativeGeneratedCoins uint64
	MinerReward uint64
	PoWHash common.Hash
	HFVersion params.HardFork
}

// BigInt widens the two-uint64-halves on-disk form into an
// arbitrary-precision value for arithmetic (difficulty deltas and
// the per-height cumulative-difficulty equality check).
func (cd CumulativeDifficulty) BigInt() *big.Int {
	v := new(big.Int).SetUint64(cd.Hi)
	v.Lsh(v, 64)
	v.Or(v, new(big.Int).SetUint64(cd.Lo))
	return v
}

// CumulativeDiffBigInt returns this block's cumulative difficulty as
// a big.Int for callers that need arbitrary-precision math (mostly
// tests).
func (bi BlockInfo) CumulativeDiffBigInt() *big.Int {
	return bi.CumulativeDiff.BigInt()
}

func CumulativeDifficultyFromBigInt(v *big.Int) CumulativeDifficulty {
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(v, mask).Uint64()
	hi := new(big.Int).Rsh(v, 64).Uint64()
	return CumulativeDifficulty{Lo: lo, Hi: hi}
}
