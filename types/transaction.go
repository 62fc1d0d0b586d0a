package types

import "github.com/cuprate-go/cuprated/common"

// RingMember is one element of an input's ring: the global output
// index being referenced, resolved at verification time from the
// outputs table.
type RingMember struct {
	GlobalIndex uint64
}

// Input is one parsed transaction input, either the single Gen(height)
// input a miner tx must have, or a ring-signed key-image spend.
type Input struct {
	IsCoinbase bool
	GenHeight uint64 // valid only if IsCoinbase
	KeyImage common.Hash
	Ring []RingMember
	Amount uint64 // pre-RingCT pre-mix amount, 0 for RingCT inputs
}

// Output is one parsed transaction output.
type Output struct {
	PubKey common.Hash
	Amount uint64 // pre-RingCT amount-indexed outputs only
	Commitment *common.Hash
	UnlockTime uint64
}

// RCTType enumerates RingCT signature variants.
type RCTType uint8

const (
	// RCTTypeNone marks a pre-RingCT (version 1) transaction.
	RCTTypeNone RCTType = iota
	RCTTypeNull
	RCTTypeFull
	RCTTypeSimple
	RCTTypeBulletproof
	RCTTypeBulletproof2
	RCTTypeCLSAG
	RCTTypeBulletproofPlus
)

// Transaction is a verified transaction: the canonical blob plus a
// parsed view sufficient to re-run input/ring/commitment checks
// without re-parsing.
type Transaction struct {
	Blob []byte
	Hash common.Hash
	PrunedHash common.Hash
	PrunableHash common.Hash

	Weight uint64
	Fee uint64
	UnlockTime uint64
	Version uint8
	RCTType RCTType

	Inputs []Input
	Outputs []Output
}

// IsCoinbase reports whether this is a miner (coinbase) transaction:
// exactly one Gen(height) input, per "Miner tx".
func (t *Transaction) IsCoinbase() bool {
	return len(t.Inputs) == 1 && t.Inputs[0].IsCoinbase
}

// KeyImages returns the set of key images this transaction spends,
// used to maintain the main-chain key-image set on commit and pop.
func (t *Transaction) KeyImages() []common.Hash {
	out := make([]common.Hash, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		if !in.IsCoinbase {
			out = append(out, in.KeyImage)
		}
	}
	return out
}
