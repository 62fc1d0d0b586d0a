// Package chain is the blockchain-specific typed layer over storage/kv.
// It owns both the canonical chain tables and the alt-chain staging
// tables, and exposes the read/write request types the context
// cache, verifier and manager compose into reorgs. Table naming and
// the height/hash dual-indexing scheme (read by (hash,height), the
// canonical hash by height, the header number by hash) is generalized
// from an Ethereum-style header+body+receipt split to Monero's
// block_info/block_blob/tx_*/output/key_image tables.
package chain

// Table is a stable textual table name.
type Table string

const (
	TableBlockInfos Table = "block_infos" // height -> BlockInfo
	TableBlockBlobs Table = "block_blobs" // height -> bytes
	TableBlockHeights Table = "block_heights" // hash -> height

	TableTxIDs Table = "tx_ids" // hash -> id
	TableTxBlobs Table = "tx_blobs" // hash -> bytes
	TableTxHeights Table = "tx_heights" // hash -> height
	TableTxOutputs Table = "tx_outputs" // hash -> [](amount,index), pre-RCT outputs this tx wrote
	TableTxUnlockTimes Table = "tx_unlock_times" // hash -> unlock_time
	TableTxKeyImages Table = "tx_key_images" // hash -> []key_image, this tx's spent inputs

	TableOutputs Table = "outputs" // (amount,index) -> OutputOnChain, pre-RCT
	TableRCTOutputs Table = "rct_outputs" // global index -> OutputOnChain
	TableNumOutputs Table = "num_outputs" // amount -> count, pre-RCT

	TableKeyImages Table = "key_images" // set

	TablePrunedTxBlobs Table = "pruned_tx_blobs"
	TablePrunableTxBlobs Table = "prunable_tx_blobs"
	TablePrunableHashes Table = "prunable_hashes"

	TableAltBlockHeights Table = "alt_block_heights" // hash -> (ChainID,height)
	TableAltBlocksInfo Table = "alt_blocks_info" // (ChainID,height) -> BlockInfo
	TableAltBlockBlobs Table = "alt_block_blobs" // (ChainID,height) -> bytes
	TableAltTxBlobs Table = "alt_transaction_blobs"
	TableAltTxInfos Table = "alt_transaction_infos"
	TableAltChainInfos Table = "alt_chain_infos" // ChainID -> parent/common ancestor

	// TableMeta stores small singleton values: database version tag,
	// chain height, top hash, next alt-chain ID.
	TableMeta Table = "meta"
)

var allTables = []Table{
	TableBlockInfos, TableBlockBlobs, TableBlockHeights,
	TableTxIDs, TableTxBlobs, TableTxHeights, TableTxOutputs, TableTxUnlockTimes, TableTxKeyImages,
	TableOutputs, TableRCTOutputs, TableNumOutputs,
	TableKeyImages,
	TablePrunedTxBlobs, TablePrunableTxBlobs, TablePrunableHashes,
	TableAltBlockHeights, TableAltBlocksInfo, TableAltBlockBlobs, TableAltTxBlobs, TableAltTxInfos, TableAltChainInfos,
	TableMeta,
}

const databaseVersion = 1

var metaKeyVersion = []byte("version")
var metaKeyChainHeight = []byte("chain_height")
var metaKeyTopHash = []byte("top_hash")
var metaKeyNextChainID = []byte("next_chain_id")
