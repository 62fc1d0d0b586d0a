package types

import "github.com/cuprate-go/cuprated/common"

// OutputOnChain is the resolved form of a ring member or a fresh
// output: public key, optional commitment (present for RingCT
// outputs), unlock time, height and owning tx hash.
type OutputOnChain struct {
	PubKey common.Hash
	Commitment *common.Hash
	UnlockTime uint64
	Height uint64
	TxHash common.Hash
}

// AmountOutputID addresses a pre-RingCT output: amount-indexed, i.e.
// the Nth output of that exact amount ever created.
type AmountOutputID struct {
	Amount uint64
	Index uint64
}

// GlobalOutputID addresses a RingCT output by its monotonically
// increasing global index.
type GlobalOutputID uint64
