package types

import "github.com/cuprate-go/cuprated/common"

// AltBlock is a staged (not-yet-main) block, keyed by (ChainID,
// height) with a secondary hash index.
type AltBlock struct {
	Block Block
	// Txs are the transactions belonging to this alt block, staged
	// alongside it so a later promotion doesn't need to re-fetch them
	// from the network.
	Txs []Transaction
}

// AltChainInfo is the per-ChainID ancestry record: parent chain (main or another alt) and the common-ancestor
// height on that parent. Walking these links reconstructs the
// ancestry forest.
type AltChainInfo struct {
	ID common.ChainID
	ParentChain common.Chain
	CommonAncestorHeight uint64
}

// AltBlockLocation is the value stored in the hash -> (ChainID,
// height) secondary index, letting arrival of a child block find
// its parent across chains in O(1).
type AltBlockLocation struct {
	Chain common.Chain
	Height uint64
}
