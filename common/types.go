package common

import "encoding/hex"

// Hash is a 32-byte Monero hash (block id, tx id, key image, output
// public key component). Kept as a fixed array rather than a slice,
// so it is directly usable as a map key everywhere the storage and
// context layers need one (table keys, the alt-chain hash index, the
// key-image set).
type Hash [32]byte

// String renders the hash the way Monero tooling prints it: lowercase
// hex, no prefix.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

func (h Hash) IsZero() bool {
	return h == Hash{}
}

func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(h[32-len(b):], b)
	return h
}

// ChainID opaquely tags the rows belonging to one alt chain. Zero is
// reserved to mean "not an alt chain" (i.e. main); ChainIDs are minted
// starting at 1.
type ChainID uint64

const MainChainID ChainID = 0

// Chain identifies which chain a block or index entry belongs to:
// either the canonical main chain, or one alt chain by ChainID.
type Chain struct {
	ID ChainID
}

func (c Chain) IsMain() bool { return c.ID == MainChainID }

var MainChain = Chain{ID: MainChainID}

func AltChain(id ChainID) Chain {
	if id == MainChainID {
		panic("common: AltChain called with the reserved main ChainID")
	}
	return Chain{ID: id}
}
