package chain

import (
	"encoding/binary"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

func heightKey(h uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, h)
	return b
}

func decodeHeightKey(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func hashKey(h common.Hash) []byte { return h[:] }

func chainHeightKey(id common.ChainID, height uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], uint64(id))
	binary.BigEndian.PutUint64(b[8:], height)
	return b
}

func chainIDKey(id common.ChainID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(id))
	return b
}

func amountIndexKey(amount, index uint64) []byte {
	b := make([]byte, 16)
	binary.BigEndian.PutUint64(b[:8], amount)
	binary.BigEndian.PutUint64(b[8:], index)
	return b
}

func globalIndexKey(idx types.GlobalOutputID) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(idx))
	return b
}

// encodeBlockInfo / decodeBlockInfo implement a flat, fixed-layout
// binary row for BlockInfo: cumulative
// difficulty split into two 64-bit halves exactly as spec prescribes
// for on-disk storage, not via a general-purpose codec — there is
// exactly one row shape here, so a hand-rolled fixed encoding is both
// simpler and cheaper than RLP/gob for something this narrow and
// hot-path-read on every validation.
func encodeBlockInfo(bi types.BlockInfo) []byte {
	b := make([]byte, 32+8+8+8+8+8+8+8+32+1)
	off := 0
	copy(b[off:off+32], bi.Hash[:])
	off += 32
	binary.BigEndian.PutUint64(b[off:], bi.Timestamp)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.Weight)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.LongTermWeight)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.CumulativeDiff.Lo)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.CumulativeDiff.Hi)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.CumulativeGeneratedCoins)
	off += 8
	binary.BigEndian.PutUint64(b[off:], bi.MinerReward)
	off += 8
	copy(b[off:off+32], bi.PoWHash[:])
	off += 32
	b[off] = byte(bi.HFVersion)
	return b
}

func decodeBlockInfo(b []byte) types.BlockInfo {
	var bi types.BlockInfo
	off := 0
	copy(bi.Hash[:], b[off:off+32])
	off += 32
	bi.Timestamp = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.Weight = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.LongTermWeight = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.CumulativeDiff.Lo = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.CumulativeDiff.Hi = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.CumulativeGeneratedCoins = binary.BigEndian.Uint64(b[off:])
	off += 8
	bi.MinerReward = binary.BigEndian.Uint64(b[off:])
	off += 8
	copy(bi.PoWHash[:], b[off:off+32])
	off += 32
	bi.HFVersion = params.HardFork(b[off])
	return bi
}

func encodeOutput(o types.OutputOnChain) []byte {
	hasCommit := byte(0)
	if o.Commitment != nil {
		hasCommit = 1
	}
	b := make([]byte, 32+8+8+32+1+32)
	off := 0
	copy(b[off:off+32], o.PubKey[:])
	off += 32
	binary.BigEndian.PutUint64(b[off:], o.UnlockTime)
	off += 8
	binary.BigEndian.PutUint64(b[off:], o.Height)
	off += 8
	copy(b[off:off+32], o.TxHash[:])
	off += 32
	b[off] = hasCommit
	off++
	if o.Commitment != nil {
		copy(b[off:off+32], o.Commitment[:])
	}
	return b
}

func decodeOutput(b []byte) types.OutputOnChain {
	var o types.OutputOnChain
	off := 0
	copy(o.PubKey[:], b[off:off+32])
	off += 32
	o.UnlockTime = binary.BigEndian.Uint64(b[off:])
	off += 8
	o.Height = binary.BigEndian.Uint64(b[off:])
	off += 8
	copy(o.TxHash[:], b[off:off+32])
	off += 32
	hasCommit := b[off]
	off++
	if hasCommit == 1 {
		var c common.Hash
		copy(c[:], b[off:off+32])
		o.Commitment = &c
	}
	return o
}

func encodeAltChainInfo(info types.AltChainInfo) []byte {
	b := make([]byte, 1+8+8)
	isAlt := byte(0)
	if !info.ParentChain.IsMain() {
		isAlt = 1
	}
	b[0] = isAlt
	binary.BigEndian.PutUint64(b[1:9], uint64(info.ParentChain.ID))
	binary.BigEndian.PutUint64(b[9:17], info.CommonAncestorHeight)
	return b
}

func decodeAltChainInfo(id common.ChainID, b []byte) types.AltChainInfo {
	isAlt := b[0]
	parentID := common.ChainID(binary.BigEndian.Uint64(b[1:9]))
	ancestor := binary.BigEndian.Uint64(b[9:17])
	parent := common.MainChain
	if isAlt == 1 {
		parent = common.AltChain(parentID)
	}
	return types.AltChainInfo{ID: id, ParentChain: parent, CommonAncestorHeight: ancestor}
}

func encodeAltLocation(loc types.AltBlockLocation) []byte {
	b := make([]byte, 1+8+8)
	isAlt := byte(0)
	if !loc.Chain.IsMain() {
		isAlt = 1
	}
	b[0] = isAlt
	binary.BigEndian.PutUint64(b[1:9], uint64(loc.Chain.ID))
	binary.BigEndian.PutUint64(b[9:17], loc.Height)
	return b
}

func decodeAltLocation(b []byte) types.AltBlockLocation {
	isAlt := b[0]
	id := common.ChainID(binary.BigEndian.Uint64(b[1:9]))
	height := binary.BigEndian.Uint64(b[9:17])
	c := common.MainChain
	if isAlt == 1 {
		c = common.AltChain(id)
	}
	return types.AltBlockLocation{Chain: c, Height: height}
}

func encodeUint64(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

func decodeUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

// encodeHashes / decodeHashes pack a tx's spent key images as a flat
// run of 32-byte hashes, so unwinding a pop can recover exactly which
// key_images rows to delete without re-parsing the tx blob.
func encodeHashes(hashes []common.Hash) []byte {
	b := make([]byte, 32*len(hashes))
	for i, h := range hashes {
		copy(b[i*32:], h[:])
	}
	return b
}

func decodeHashes(b []byte) []common.Hash {
	out := make([]common.Hash, len(b)/32)
	for i := range out {
		copy(out[i][:], b[i*32:(i+1)*32])
	}
	return out
}

// amountIndexEntry is one pre-RCT output's (amount, index) pair, as
// assigned in the outputs/num_outputs tables.
type amountIndexEntry struct {
	Amount uint64
	Index uint64
}

// encodeAmountIndexEntries / decodeAmountIndexEntries pack a tx's
// pre-RCT output (amount,index) pairs so a pop can delete the right
// outputs rows and roll num_outputs back to its pre-write value.
func encodeAmountIndexEntries(entries []amountIndexEntry) []byte {
	b := make([]byte, 16*len(entries))
	for i, e := range entries {
		binary.BigEndian.PutUint64(b[i*16:], e.Amount)
		binary.BigEndian.PutUint64(b[i*16+8:], e.Index)
	}
	return b
}

func decodeAmountIndexEntries(b []byte) []amountIndexEntry {
	out := make([]amountIndexEntry, len(b)/16)
	for i := range out {
		out[i].Amount = binary.BigEndian.Uint64(b[i*16:])
		out[i].Index = binary.BigEndian.Uint64(b[i*16+8:])
	}
	return out
}
