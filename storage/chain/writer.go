package chain

import (
	"fmt"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/storage/kv"
	"github.com/cuprate-go/cuprated/types"
)

// WriteBlock commits a validated main-chain block, its transactions
// and their outputs/key-images in one backend batch.
// Callers hold the single-writer token (writer.go's Writer) before
// calling this; Store itself only guards the height/top-hash
// singletons, not cross-table atomicity — that's the backend batch's
// job.
func (s *Store) WriteBlock(block types.Block, txs []types.Transaction, info types.BlockInfo) error {
	b := s.db.NewBatch()

	if err := s.blockInfos.putBatch(b, heightKey(block.Height), encodeBlockInfo(info)); err != nil {
		return err
	}
	if err := s.blockBlobs.putBatch(b, heightKey(block.Height), block.Blob); err != nil {
		return err
	}
	if err := s.blockHeights.putBatch(b, hashKey(block.Hash), heightKey(block.Height)); err != nil {
		return err
	}

	for i := range txs {
		tx := &txs[i]
		if err := s.writeTransaction(b, block.Height, tx); err != nil {
			return err
		}
	}

	if err := s.meta.putBatch(b, metaKeyChainHeight, encodeUint64(block.Height+1)); err != nil {
		return err
	}
	if err := s.meta.putBatch(b, metaKeyTopHash, block.Hash[:]); err != nil {
		return err
	}

	if err := b.Write(); err != nil {
		if err == kv.ErrResizeNeeded {
			return s.growAndRetry(func() error { return s.WriteBlock(block, txs, info) })
		}
		return err
	}

	s.mu.Lock()
	s.chainHeight = block.Height + 1
	s.topHash = block.Hash
	s.mu.Unlock()
	return nil
}

func (s *Store) writeTransaction(b kv.Batch, height uint64, tx *types.Transaction) error {
	if err := s.txHeights.putBatch(b, hashKey(tx.Hash), heightKey(height)); err != nil {
		return err
	}
	if err := s.txBlobs.putBatch(b, hashKey(tx.Hash), tx.Blob); err != nil {
		return err
	}
	if err := s.txUnlockTimes.putBatch(b, hashKey(tx.Hash), encodeUint64(tx.UnlockTime)); err != nil {
		return err
	}
	var images []common.Hash
	for _, in := range tx.Inputs {
		if in.IsCoinbase {
			continue
		}
		if err := s.keyImages.putBatch(b, hashKey(in.KeyImage), []byte{1}); err != nil {
			return err
		}
		images = append(images, in.KeyImage)
	}
	if len(images) > 0 {
		if err := s.txKeyImages.putBatch(b, hashKey(tx.Hash), encodeHashes(images)); err != nil {
			return err
		}
	}
	var preRCT []amountIndexEntry
	for i, out := range tx.Outputs {
		onChain := types.OutputOnChain{
			PubKey: out.PubKey,
			UnlockTime: tx.UnlockTime,
			Height: height,
			TxHash: tx.Hash,
		}
		if out.Commitment != nil {
			c := *out.Commitment
			onChain.Commitment = &c
		}
		if tx.RCTType != types.RCTTypeNone {
			idx := types.GlobalOutputID(height)<<32 | types.GlobalOutputID(i)
			if err := s.rctOutputs.putBatch(b, globalIndexKey(idx), encodeOutput(onChain)); err != nil {
				return err
			}
			continue
		}
		cur := s.numOutputs.mustCount(out.Amount)
		if err := s.outputs.putBatch(b, amountIndexKey(out.Amount, cur), encodeOutput(onChain)); err != nil {
			return err
		}
		if err := s.numOutputs.putBatch(b, encodeUint64(out.Amount), encodeUint64(cur+1)); err != nil {
			return err
		}
		preRCT = append(preRCT, amountIndexEntry{Amount: out.Amount, Index: cur})
	}
	if len(preRCT) > 0 {
		if err := s.txOutputs.putBatch(b, hashKey(tx.Hash), encodeAmountIndexEntries(preRCT)); err != nil {
			return err
		}
	}
	return nil
}

func (n *namespaced) mustCount(amount uint64) uint64 {
	v, err := n.Get(encodeUint64(amount))
	if err != nil {
		return 0
	}
	return decodeUint64(v)
}

// WriteAltBlock stages a block on a non-main ChainId without touching
// the canonical tables.
func (s *Store) WriteAltBlock(c common.Chain, block types.Block, txs []types.Transaction, info types.BlockInfo) error {
	if c.IsMain() {
		return fmt.Errorf("chain: WriteAltBlock called with the main chain")
	}
	b := s.db.NewBatch()
	ck := chainHeightKey(c.ID, block.Height)
	if err := s.altBlocksInfo.putBatch(b, ck, encodeBlockInfo(info)); err != nil {
		return err
	}
	if err := s.altBlockBlobs.putBatch(b, ck, block.Blob); err != nil {
		return err
	}
	loc := types.AltBlockLocation{Chain: c, Height: block.Height}
	if err := s.altBlockHeights.putBatch(b, hashKey(block.Hash), encodeAltLocation(loc)); err != nil {
		return err
	}
	for i := range txs {
		tx := &txs[i]
		if err := s.altTxBlobs.putBatch(b, hashKey(tx.Hash), tx.Blob); err != nil {
			return err
		}
	}
	if err := b.Write(); err != nil {
		if err == kv.ErrResizeNeeded {
			return s.growAndRetry(func() error { return s.WriteAltBlock(c, block, txs, info) })
		}
		return err
	}
	return nil
}

// SetAltChainInfo records (or updates) a ChainId's parent/ancestor
// link.
func (s *Store) SetAltChainInfo(info types.AltChainInfo) error {
	return s.altChainInfos.Put(chainIDKey(info.ID), encodeAltChainInfo(info))
}

// PopBlocks removes the top n main-chain blocks and their
// transactions/outputs/key-images in one batch, leaving chainHeight
// decremented by n. Callers are responsible for
// re-homing the popped range under a freshly minted ChainId if they
// want it preserved as an alt chain.
func (s *Store) PopBlocks(n uint64) ([]types.Block, error) {
	s.mu.RLock()
	height := s.chainHeight
	s.mu.RUnlock()
	if n > height {
		return nil, fmt.Errorf("chain: cannot pop %d blocks from height %d", n, height)
	}

	b := s.db.NewBatch()
	popped := make([]types.Block, 0, n)
	numOutputsFloor := make(map[uint64]uint64)

	for h := height - 1; h >= height-n; h-- {
		bi, ok := s.BlockInfoByHeight(h)
		if !ok {
			return nil, fmt.Errorf("chain: missing block info at height %d during pop", h)
		}
		blob, err := s.blockBlobs.Get(heightKey(h))
		if err != nil {
			return nil, err
		}
		popped = append(popped, types.Block{Hash: bi.Hash, Height: h, Blob: blob})

		if err := s.unwindHeightTxs(b, h, numOutputsFloor); err != nil {
			return nil, err
		}
		// RingCT output rows are keyed height<<32|i, so every row written
		// at h shares the first four bytes of its key.
		rit := s.db.NewIterator(s.rctOutputs.key(globalIndexKey(types.GlobalOutputID(h) << 32)[:4]))
		for rit.Next() {
			if err := b.Delete(rit.Key()); err != nil {
				rit.Release()
				return nil, err
			}
		}
		rit.Release()
		if err := s.blockInfos.delBatch(b, heightKey(h)); err != nil {
			return nil, err
		}
		if err := s.blockBlobs.delBatch(b, heightKey(h)); err != nil {
			return nil, err
		}
		if err := s.blockHeights.delBatch(b, hashKey(bi.Hash)); err != nil {
			return nil, err
		}
		if h == 0 {
			break
		}
	}

	for amount, floor := range numOutputsFloor {
		if err := s.numOutputs.putBatch(b, encodeUint64(amount), encodeUint64(floor)); err != nil {
			return nil, err
		}
	}

	newHeight := height - n
	if err := s.meta.putBatch(b, metaKeyChainHeight, encodeUint64(newHeight)); err != nil {
		return nil, err
	}
	var newTop common.Hash
	if newHeight > 0 {
		if bi, ok := s.BlockInfoByHeight(newHeight - 1); ok {
			newTop = bi.Hash
		}
	}
	if err := s.meta.putBatch(b, metaKeyTopHash, newTop[:]); err != nil {
		return nil, err
	}

	if err := b.Write(); err != nil {
		if err == kv.ErrResizeNeeded {
			if err := s.growAndRetry(func() error { return nil }); err != nil {
				return nil, err
			}
			return s.PopBlocks(n)
		}
		return nil, err
	}

	s.mu.Lock()
	s.chainHeight = newHeight
	s.topHash = newTop
	s.mu.Unlock()

	return popped, nil
}

// unwindHeightTxs deletes every tx committed at height, along with
// the key images it spent and the pre-RCT outputs it wrote. Each
// popped output's (amount, index) lowers numOutputsFloor[amount] to
// that index if it is the smallest seen so far in this pop, so the
// caller can roll num_outputs back to its pre-write value once every
// height in the pop has been unwound.
func (s *Store) unwindHeightTxs(b kv.Batch, height uint64, numOutputsFloor map[uint64]uint64) error {
	it := s.txHeights.NewIterator()
	defer it.Release()
	for it.Next() {
		if decodeUint64(it.Value()) != height {
			continue
		}
		hash := s.txHeights.strip(it.Key())

		if v, err := s.txKeyImages.Get(hash); err == nil {
			for _, ki := range decodeHashes(v) {
				if err := s.keyImages.delBatch(b, hashKey(ki)); err != nil {
					return err
				}
			}
			if err := s.txKeyImages.delBatch(b, hash); err != nil {
				return err
			}
		} else if err != kv.ErrNotFound {
			return err
		}

		if v, err := s.txOutputs.Get(hash); err == nil {
			for _, e := range decodeAmountIndexEntries(v) {
				if err := s.outputs.delBatch(b, amountIndexKey(e.Amount, e.Index)); err != nil {
					return err
				}
				if floor, ok := numOutputsFloor[e.Amount]; !ok || e.Index < floor {
					numOutputsFloor[e.Amount] = e.Index
				}
			}
			if err := s.txOutputs.delBatch(b, hash); err != nil {
				return err
			}
		} else if err != kv.ErrNotFound {
			return err
		}

		if err := s.txBlobs.delBatch(b, hash); err != nil {
			return err
		}
		if err := s.txUnlockTimes.delBatch(b, hash); err != nil {
			return err
		}
		if err := s.txHeights.delBatch(b, hash); err != nil {
			return err
		}
	}
	return it.Error()
}

// FlushAltBlocks discards every block staged under c (info, blob and
// hash-index rows) and c's chain info; the manager calls it once a
// reorg has promoted c to main. Staged transaction blobs are kept.
func (s *Store) FlushAltBlocks(c common.Chain) error {
	if c.IsMain() {
		return fmt.Errorf("chain: FlushAltBlocks called with the main chain")
	}
	b := s.db.NewBatch()
	it := s.altBlocksInfo.NewIterator()
	defer it.Release()
	prefix := chainIDKey(c.ID)
	for it.Next() {
		k := s.altBlocksInfo.strip(it.Key())
		if len(k) < 8 || string(k[:8]) != string(prefix) {
			continue
		}
		if err := s.altBlocksInfo.delBatch(b, k); err != nil {
			return err
		}
		if err := s.altBlockBlobs.delBatch(b, k); err != nil {
			return err
		}
		if err := s.altBlockHeights.delBatch(b, hashKey(decodeBlockInfo(it.Value()).Hash)); err != nil {
			return err
		}
	}
	if err := it.Error(); err != nil {
		return err
	}
	if err := s.altChainInfos.delBatch(b, chainIDKey(c.ID)); err != nil {
		return err
	}
	return b.Write()
}

// writeJob pairs one WriteRequest with the channel its result is
// delivered on.
type writeJob struct {
	req WriteRequest
	resp chan writeResult
}

type writeResult struct {
	val interface{}
	err error
}

// Writer serializes all mutating access to a Store through a single
// goroutine. Reads never
// pass through Writer; they go straight to Store or through
// ReaderPool, which is why writes never block readers.
type Writer struct {
	store *Store
	jobs chan writeJob
	done chan struct{}
}

// NewWriter starts the writer goroutine. queueDepth bounds how many
// write requests may be buffered ahead of the manager before Submit
// blocks, giving the manager's batching layer
// explicit back-pressure.
func NewWriter(store *Store, queueDepth int) *Writer {
	w := &Writer{store: store, jobs: make(chan writeJob, queueDepth), done: make(chan struct{})}
	go w.run()
	return w
}

func (w *Writer) run() {
	defer close(w.done)
	for job := range w.jobs {
		val, err := w.dispatch(job.req)
		job.resp <- writeResult{val: val, err: err}
	}
}

func (w *Writer) dispatch(req WriteRequest) (interface{}, error) {
	switch r := req.(type) {
	case ReqWriteBlock:
		return nil, w.store.WriteBlock(r.Block, r.Txs, r.Info)
	case ReqWriteAltBlock:
		return nil, w.store.WriteAltBlock(r.Chain, r.Block, r.Txs, r.Info)
	case ReqPopBlocks:
		return w.store.PopBlocks(r.N)
	case ReqFlushAltBlocks:
		return nil, w.store.FlushAltBlocks(r.Chain)
	case ReqSetAltChainInfo:
		return nil, w.store.SetAltChainInfo(r.Info)
	default:
		return nil, fmt.Errorf("chain: unknown write request %T", req)
	}
}

// Submit enqueues req and blocks until the writer goroutine has
// processed it, returning its result.
func (w *Writer) Submit(req WriteRequest) (interface{}, error) {
	resp := make(chan writeResult, 1)
	w.jobs <- writeJob{req: req, resp: resp}
	r := <-resp
	return r.val, r.err
}

// Close stops accepting new writes and waits for the goroutine to
// drain whatever is already queued.
func (w *Writer) Close() {
	close(w.jobs)
	<-w.done
}

// growAndRetry is invoked when a batch write fails with
// kv.ErrResizeNeeded. If the backend implements kv.Resizer it calls
// Resize(0), leaving the new size to the backend, and replays the
// write once; otherwise it returns kv.ErrResizeNeeded. None of the
// storage/kv backends implements kv.Resizer.
func (s *Store) growAndRetry(write func() error) error {
	r, ok := s.db.(kv.Resizer)
	if !ok {
		return kv.ErrResizeNeeded
	}
	storeLogger.Warn("storage backend hit its size ceiling, growing", "table", "chain")
	if err := r.Resize(0); err != nil {
		return err
	}
	return write()
}
