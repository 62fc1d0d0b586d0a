package chain

import (
	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/types"
)

// The types below are the read/write request/response shapes the
// manager, context cache and verifier issue across the reader-pool
// and writer channels: one variant struct per request, dispatched
// through ReaderPool.Do / Writer.Submit's type switch.

// ReadRequest is the closed set of read operations the reader pool
// accepts.
type ReadRequest interface{ isReadRequest() }

type ReqChainHeight struct{}
type ReqFindBlock struct{ Hash common.Hash }
type ReqBlockInfo struct{ Height uint64 }
type ReqBlockInfoByHash struct{ Hash common.Hash }
type ReqBlockHash struct {
	Height uint64
	Chain common.Chain
}
type ReqBlockHashInRange struct{ Lo, Hi uint64 }
type ReqGeneratedCoins struct{ Height uint64 }
type ReqOutputs struct{ Amounts map[uint64][]uint64 }
type ReqNumOutputsWithAmount struct{ Amounts []uint64 }
type ReqKeyImagesSpent struct{ Images []common.Hash }
type ReqAltChainInfo struct{ ID common.ChainID }

func (ReqChainHeight) isReadRequest() {}
func (ReqFindBlock) isReadRequest() {}
func (ReqBlockInfo) isReadRequest() {}
func (ReqBlockInfoByHash) isReadRequest() {}
func (ReqBlockHash) isReadRequest() {}
func (ReqBlockHashInRange) isReadRequest() {}
func (ReqGeneratedCoins) isReadRequest() {}
func (ReqOutputs) isReadRequest() {}
func (ReqNumOutputsWithAmount) isReadRequest() {}
func (ReqKeyImagesSpent) isReadRequest() {}
func (ReqAltChainInfo) isReadRequest() {}

// WriteRequest is the closed set of write operations the single
// writer accepts.
type WriteRequest interface{ isWriteRequest() }

type ReqWriteBlock struct {
	Block types.Block
	Txs []types.Transaction
	Info types.BlockInfo
}

type ReqWriteAltBlock struct {
	Chain common.Chain
	Block types.Block
	Txs []types.Transaction
	Info types.BlockInfo
}

type ReqPopBlocks struct{ N uint64 }
type ReqFlushAltBlocks struct{ Chain common.Chain }
type ReqSetAltChainInfo struct{ Info types.AltChainInfo }

func (ReqWriteBlock) isWriteRequest() {}
func (ReqWriteAltBlock) isWriteRequest() {}
func (ReqPopBlocks) isWriteRequest() {}
func (ReqFlushAltBlocks) isWriteRequest() {}
func (ReqSetAltChainInfo) isWriteRequest() {}
