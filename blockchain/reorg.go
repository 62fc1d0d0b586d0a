package blockchain

import (
	"context"
	"fmt"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/consensus/verify"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/storage/chain"
	"github.com/cuprate-go/cuprated/types"
)

// altAncestorEntry pairs one staged alt block's BlockInfo with where it
// actually lives (ChainId, height), since a nested branch's ancestry
// can cross several ChainIds before reaching main.
type altAncestorEntry struct {
	chain common.Chain
	height uint64
	info types.BlockInfo
}

// handleAlt runs alt algorithm: stage B under the right
// ChainId, verify it against an ephemeral alt-chain context, persist
// it to alt storage, then check whether it just overtook main.
func (m *Manager) handleAlt(block types.Block, txs []types.Transaction, parentChain common.Chain, parentHeight uint64) (AddBlockOutcome, error) {
	mainHeight, _ := m.d.Store.ChainHeight()

	var ancestry []altAncestorEntry
	var ancestorHeight uint64
	var parentCumDiff types.CumulativeDifficulty
	if parentChain.IsMain() {
		ancestorHeight = parentHeight
		bi, ok := m.d.Store.BlockInfoByHeight(parentHeight)
		if !ok {
			return 0, fmt.Errorf("blockchain: missing main block info at height %d", parentHeight)
		}
		parentCumDiff = bi.CumulativeDiff
	} else {
		var err error
		ancestry, ancestorHeight, err = m.collectAltAncestry(parentChain, parentHeight)
		if err != nil {
			return 0, err
		}
		bi, ok := m.d.Store.AltBlockInfo(parentChain.ID, parentHeight)
		if !ok {
			return 0, fmt.Errorf("blockchain: missing alt block info for chain %d height %d", parentChain.ID, parentHeight)
		}
		parentCumDiff = bi.CumulativeDiff
	}

	if mainHeight > 0 && ancestorHeight+m.d.NetParams.ReorgDepth < mainHeight {
		return 0, fmt.Errorf("blockchain: alt branch diverges too far behind the main tip (ancestor %d, main %d), refusing to stage it", ancestorHeight, mainHeight)
	}

	targetChain, err := m.resolveAltTarget(parentChain, parentHeight)
	if err != nil {
		return 0, err
	}

	altCtx := m.d.AltBuilder.Build(parentChain, parentHeight, ancestryInfos(ancestry), m.d.Schedule)

	prepared := verify.PrepareBatch([]types.Block{block}, [][]types.Transaction{txs}, []params.HardFork{altCtx.HardFork},
		m.vmFactory(), m.d.CryptoNight)[0]

	if err := m.d.Verifier.VerifyPrepared(context.Background(), prepared, altCtx, parentCumDiff, nil); err != nil {
		m.reportInvalid(block, err)
		return 0, fmt.Errorf("blockchain: invalid alt block: %w", err)
	}

	info := m.buildBlockInfo(block, altCtx)
	if _, err := m.d.Writer.Submit(chain.ReqWriteAltBlock{Chain: targetChain, Block: block, Txs: txs, Info: info}); err != nil {
		return 0, fmt.Errorf("blockchain: alt commit failed: %w", err)
	}
	mgrLogger.Info("staged alt block", "chain", targetChain.ID, "height", block.Height, "hash", block.Hash)

	var mainBeats bool
	if mainHeight > 0 {
		if mainTip, ok := m.d.Store.BlockInfoByHeight(mainHeight - 1); ok {
			mainBeats = mainTip.CumulativeDiffBigInt().Cmp(block.CumulativeDiff.BigInt()) >= 0
		}
	}
	if mainHeight == 0 || !mainBeats {
		return m.reorg(targetChain, block.Height)
	}
	return OnAlt, nil
}

func ancestryInfos(entries []altAncestorEntry) []types.BlockInfo {
	if len(entries) == 0 {
		return nil
	}
	out := make([]types.BlockInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	return out
}

// resolveAltTarget decides whether B extends the alt chain that owns
// (parentChain, parentHeight) in place, or branches a fresh ChainId off
// it.
func (m *Manager) resolveAltTarget(parentChain common.Chain, parentHeight uint64) (common.Chain, error) {
	if parentChain.IsMain() {
		id := m.d.Store.AllocateChainID()
		info := types.AltChainInfo{ID: id, ParentChain: common.MainChain, CommonAncestorHeight: parentHeight}
		if _, err := m.d.Writer.Submit(chain.ReqSetAltChainInfo{Info: info}); err != nil {
			return common.Chain{}, err
		}
		return common.AltChain(id), nil
	}

	if _, taken := m.d.Store.AltBlockInfo(parentChain.ID, parentHeight+1); taken {
		id := m.d.Store.AllocateChainID()
		info := types.AltChainInfo{ID: id, ParentChain: parentChain, CommonAncestorHeight: parentHeight}
		if _, err := m.d.Writer.Submit(chain.ReqSetAltChainInfo{Info: info}); err != nil {
			return common.Chain{}, err
		}
		return common.AltChain(id), nil
	}
	return parentChain, nil
}

// collectAltAncestry walks the child-to-parent ChainId links from
// (c, height) back to the main chain, returning the staged alt blocks
// ordered from one past the common ancestor up to and including
// height, plus that common-ancestor height on main.
func (m *Manager) collectAltAncestry(c common.Chain, height uint64) ([]altAncestorEntry, uint64, error) {
	type segment struct {
		chain common.Chain
		from, to uint64
	}
	var segments []segment

	curChain, curTop := c, height
	for {
		info, ok := m.d.Store.AltChainInfo(curChain.ID)
		if !ok {
			return nil, 0, fmt.Errorf("blockchain: missing alt chain info for chain %d", curChain.ID)
		}
		segments = append([]segment{{chain: curChain, from: info.CommonAncestorHeight + 1, to: curTop}}, segments...)
		if info.ParentChain.IsMain() {
			ancestry := make([]altAncestorEntry, 0, height-info.CommonAncestorHeight)
			for _, seg := range segments {
				for h := seg.from; h <= seg.to; h++ {
					bi, ok := m.d.Store.AltBlockInfo(seg.chain.ID, h)
					if !ok {
						return nil, 0, fmt.Errorf("blockchain: missing staged alt block for chain %d height %d", seg.chain.ID, h)
					}
					ancestry = append(ancestry, altAncestorEntry{chain: seg.chain, height: h, info: bi})
				}
			}
			return ancestry, info.CommonAncestorHeight, nil
		}
		curChain, curTop = info.ParentChain, info.CommonAncestorHeight
	}
}

// reorg promotes targetChain to main. Given the alt
// chain's tip height, it pops the divergent main suffix, re-homes it
// under a fresh ChainId, then replays the alt ancestry through the
// ordinary extend-main path so each block is re-verified under a
// freshly rebuilt context. A failure partway through restores the
// original main tail rather than leaving a half-applied reorg.
func (m *Manager) reorg(targetChain common.Chain, tipHeight uint64) (AddBlockOutcome, error) {
	ancestry, divergeHeight, err := m.collectAltAncestry(targetChain, tipHeight)
	if err != nil {
		return 0, err
	}

	mainHeight, _ := m.d.Store.ChainHeight()
	popN := mainHeight - divergeHeight

	capturedBlocks, capturedTxs, capturedInfos, err := m.captureMainSuffix(divergeHeight, mainHeight)
	if err != nil {
		return 0, fmt.Errorf("blockchain: failed to capture main suffix before reorg: %w", err)
	}

	if popN > 0 {
		if _, err := m.d.Writer.Submit(chain.ReqPopBlocks{N: popN}); err != nil {
			return 0, fmt.Errorf("blockchain: reorg pop failed: %w", err)
		}
		if err := m.d.CtxCache.ApplyPop(popN, m.d.Schedule); err != nil {
			return 0, fmt.Errorf("blockchain: reorg context pop failed: %w", err)
		}
	}

	if len(capturedBlocks) > 0 {
		formerMainChainID := m.d.Store.AllocateChainID()
		if _, err := m.d.Writer.Submit(chain.ReqSetAltChainInfo{Info: types.AltChainInfo{
					ID: formerMainChainID, ParentChain: common.MainChain, CommonAncestorHeight: divergeHeight,
		}}); err != nil {
			m.rollbackReorg(capturedBlocks, capturedTxs, divergeHeight)
			return 0, err
		}
		for i, b := range capturedBlocks {
			if _, err := m.d.Writer.Submit(chain.ReqWriteAltBlock{
					Chain: common.AltChain(formerMainChainID), Block: b, Txs: capturedTxs[i], Info: capturedInfos[i],
			}); err != nil {
				m.rollbackReorg(capturedBlocks, capturedTxs, divergeHeight)
				return 0, err
			}
		}
	}

	for _, e := range ancestry {
		block, txs, err := m.loadAltBlockAndTxs(e.chain, e.height)
		if err != nil {
			m.rollbackReorg(capturedBlocks, capturedTxs, divergeHeight)
			return 0, fmt.Errorf("blockchain: reorg replay could not load staged block at chain %d height %d: %w", e.chain.ID, e.height, err)
		}
		if outcome, err := m.extendMain(block, txs); err != nil || outcome != OnMain {
			m.rollbackReorg(capturedBlocks, capturedTxs, divergeHeight)
			return 0, fmt.Errorf("blockchain: reorg replay rejected block at height %d, rolled back: %w", e.height, err)
		}
	}

	if err := m.flushAlt(targetChain); err != nil {
		mgrLogger.Warn("failed to flush promoted alt chain staging", "chain", targetChain.ID, "err", err)
	}
	mgrLogger.Info("reorg complete", "new_height", tipHeight+1, "diverged_at", divergeHeight)
	return OnMain, nil
}

func (m *Manager) flushAlt(c common.Chain) error {
	_, err := m.d.Writer.Submit(chain.ReqFlushAltBlocks{Chain: c})
	return err
}

// rollbackReorg restores the captured original main suffix after a
// failed replay.
func (m *Manager) rollbackReorg(blocks []types.Block, txs [][]types.Transaction, divergeHeight uint64) {
	curHeight, _ := m.d.Store.ChainHeight()
	if curHeight > divergeHeight {
		if _, err := m.d.Writer.Submit(chain.ReqPopBlocks{N: curHeight - divergeHeight}); err != nil {
			mgrLogger.Crit("reorg rollback failed to pop partially-replayed alt blocks", "err", err)
			return
		}
		if err := m.d.CtxCache.ApplyPop(curHeight-divergeHeight, m.d.Schedule); err != nil {
			mgrLogger.Crit("reorg rollback failed to rewind context cache", "err", err)
			return
		}
	}
	for i, b := range blocks {
		if outcome, err := m.extendMain(b, txs[i]); err != nil || outcome != OnMain {
			mgrLogger.Crit("reorg rollback failed to restore original main chain", "height", b.Height, "err", err)
			return
		}
	}
}

// captureMainSuffix reads the blob-level state of [from, to) before a
// pop discards it, along with each height's committed BlockInfo, so
// the suffix can be re-homed as an alt chain afterward without having
// to recompute the miner reward/cumulative supply from scratch.
func (m *Manager) captureMainSuffix(from, to uint64) ([]types.Block, [][]types.Transaction, []types.BlockInfo, error) {
	blocks := make([]types.Block, 0, to-from)
	txsOut := make([][]types.Transaction, 0, to-from)
	infos := make([]types.BlockInfo, 0, to-from)
	for h := from; h < to; h++ {
		blob, ok := m.d.Store.BlockBlob(h)
		if !ok {
			return nil, nil, nil, fmt.Errorf("blockchain: missing block blob at height %d", h)
		}
		block, err := m.d.Parser.ParseBlock(blob)
		if err != nil {
			return nil, nil, nil, err
		}
		info, ok := m.d.Store.BlockInfoByHeight(h)
		if !ok {
			return nil, nil, nil, fmt.Errorf("blockchain: missing block info at height %d", h)
		}
		txs := make([]types.Transaction, 0, len(block.TxHashes))
		for _, hash := range block.TxHashes {
			txBlob, ok := m.d.Store.TxBlob(hash)
			if !ok {
				return nil, nil, nil, fmt.Errorf("blockchain: missing tx blob %s at height %d", hash, h)
			}
			tx, err := m.d.Parser.ParseTransaction(txBlob)
			if err != nil {
				return nil, nil, nil, err
			}
			txs = append(txs, tx)
		}
		blocks = append(blocks, block)
		txsOut = append(txsOut, txs)
		infos = append(infos, info)
	}
	return blocks, txsOut, infos, nil
}

// loadAltBlockAndTxs reconstructs a staged alt block from storage for
// reorg replay.
func (m *Manager) loadAltBlockAndTxs(c common.Chain, height uint64) (types.Block, []types.Transaction, error) {
	blob, ok := m.d.Store.AltBlockBlob(c, height)
	if !ok {
		return types.Block{}, nil, fmt.Errorf("blockchain: missing staged alt block blob for chain %d height %d", c.ID, height)
	}
	block, err := m.d.Parser.ParseBlock(blob)
	if err != nil {
		return types.Block{}, nil, err
	}
	txs := make([]types.Transaction, 0, len(block.TxHashes))
	for _, hash := range block.TxHashes {
		txBlob, ok := m.d.Store.AltTxBlob(hash)
		if !ok {
			return types.Block{}, nil, fmt.Errorf("blockchain: missing staged alt tx blob %s", hash)
		}
		tx, err := m.d.Parser.ParseTransaction(txBlob)
		if err != nil {
			return types.Block{}, nil, err
		}
		txs = append(txs, tx)
	}
	return block, txs, nil
}
