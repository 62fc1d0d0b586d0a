// Package blockchain implements the single-writer manager that owns
// all chain-mutating state: parent classification, the reorg kernel,
// and the main-chain/alt-chain commit paths. One goroutine selects
// over a batch channel and a command channel and is the sole mutator
// of chain state (one owning goroutine, typed request/response
// structs, no shared mutable state touched outside it).
package blockchain

import (
	"context"
	"fmt"

	cctx "github.com/cuprate-go/cuprated/consensus/context"
	"github.com/cuprate-go/cuprated/consensus/rules"
	"github.com/cuprate-go/cuprated/consensus/verify"
	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/mempool"
	"github.com/cuprate-go/cuprated/p2p"
	"github.com/cuprate-go/cuprated/p2p/downloader"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/storage/chain"
	"github.com/cuprate-go/cuprated/types"
)

var mgrLogger = log.NewModuleLogger(log.ModuleBlockchain)

// AddBlockOutcome is the manager's verdict for one submitted block.
// Invalid is reported as an error instead of a fourth enum value so
// the caller is forced to inspect it.
type AddBlockOutcome int

const (
	OnMain AddBlockOutcome = iota
	OnAlt
	AlreadyKnown
)

func (o AddBlockOutcome) String() string {
	switch o {
	case OnMain:
		return "OnMain"
	case OnAlt:
		return "OnAlt"
	case AlreadyKnown:
		return "AlreadyKnown"
	default:
		return "Unknown"
	}
}

// BlockTxParser turns a raw blob into the manager's structured view.
// Concrete Monero wire parsing is out of scope for this package; the manager only
// needs something that satisfies this seam, mirroring how
// rules.RandomXVM/CryptoNightHasher/RingSignatureVerifier abstract the
// actual crypto primitives elsewhere in this tree.
type BlockTxParser interface {
	ParseBlock(blob []byte) (types.Block, error)
	ParseTransaction(blob []byte) (types.Transaction, error)
}

// Deps bundles everything the manager needs but does not own the
// lifecycle of.
type Deps struct {
	Store *chain.Store
	Writer *chain.Writer
	CtxCache *cctx.Cache
	AltBuilder *cctx.AltChainContextBuilder
	Verifier *verify.Verifier
	Parser BlockTxParser
	TxPool mempool.Source
	Broadcast p2p.BroadcastPublisher
	Ban p2p.MisbehaviorReporter
	NetParams *params.NetworkParams
	Schedule []params.ForkActivation

	// CryptoNight/RandomXFactory supply the actual PoW hash functions.
	CryptoNight rules.CryptoNightHasher
	RandomXFactory func(types.Hash32) rules.RandomXVM
}

// Manager is the single owner of the storage write capability. All exported
// methods are safe to call from any goroutine; each blocks until its
// request has been processed by the manager's single internal task.
type Manager struct {
	d Deps
	handling *handlingSet

	batches chan batchDelivery
	commands chan command
	closed chan struct{}
}

type batchDelivery struct {
	startHeight uint64
	blocks []downloader.PreparedBlock
}

type command struct {
	op func(*Manager) (interface{}, error)
	resp chan commandResult
}

type commandResult struct {
	val interface{}
	err error
}

func New(d Deps) *Manager {
	m := &Manager{
		d: d,
		handling: newHandlingSet(),
		batches: make(chan batchDelivery, 64),
		commands: make(chan command, 16),
		closed: make(chan struct{}),
	}
	go m.run()
	return m
}

// Close stops accepting new work once everything already queued
// drains.
func (m *Manager) Close() {
	close(m.commands)
	<-m.closed
}

// run is the manager's single task: it multiplexes batches from the
// downloader and commands from the P2P/RPC surface, exactly as 
// specifies, never touching storage from any other goroutine.
func (m *Manager) run() {
	defer close(m.closed)
	batches := m.batches
	for {
		select {
		case b, ok := <-batches:
			if !ok {
				batches = nil
				continue
			}
			m.handleBatch(b)
		case c, ok := <-m.commands:
			if !ok {
				for {
					select {
					case b, ok := <-batches:
						if !ok {
							return
						}
						m.handleBatch(b)
					default:
						return
					}
				}
			}
			val, err := c.op(m)
			c.resp <- commandResult{val: val, err: err}
		}
	}
}

// DeliverBatch implements downloader.Sink: the downloader hands
// strictly height-ordered batches to the manager's queue, which the
// run loop drains one block at a time through AddBlock's classify
// path.
func (m *Manager) DeliverBatch(startHeight uint64, blocks []downloader.PreparedBlock) {
	m.batches <- batchDelivery{startHeight: startHeight, blocks: blocks}
}

func (m *Manager) handleBatch(b batchDelivery) {
	for _, pb := range b.blocks {
		block, err := m.d.Parser.ParseBlock(pb.BlockBlob)
		if err != nil {
			mgrLogger.Warn("unparseable block in delivered batch", "height", pb.Height, "err", err)
			return
		}
		txs := make([]types.Transaction, 0, len(pb.TxBlobs))
		parseFailed := false
		for _, txBlob := range pb.TxBlobs {
			tx, err := m.d.Parser.ParseTransaction(txBlob)
			if err != nil {
				mgrLogger.Warn("unparseable tx in delivered batch", "height", pb.Height, "err", err)
				parseFailed = true
				break
			}
			txs = append(txs, tx)
		}
		if parseFailed {
			return
		}
		if _, err := m.addBlock(block, txs); err != nil {
			mgrLogger.Warn("rejected block from batch", "height", pb.Height, "hash", pb.Hash, "err", err)
			return
		}
	}
}

// submit runs op on the manager's single task and waits for the
// result, giving every exported method the same "one task owns
// mutation" guarantee as the batch path.
func (m *Manager) submit(op func(*Manager) (interface{}, error)) (interface{}, error) {
	resp := make(chan commandResult, 1)
	m.commands <- command{op: op, resp: resp}
	r := <-resp
	return r.val, r.err
}

// AddBlock is the manager's external entry point for a single block.
// Safe to call concurrently; de-duplication and serialization happen
// inside the manager's task.
func (m *Manager) AddBlock(block types.Block, txs []types.Transaction) (AddBlockOutcome, error) {
	val, err := m.submit(func(m *Manager) (interface{}, error) {
			return m.addBlock(block, txs)
	})
	if err != nil {
		return 0, err
	}
	return val.(AddBlockOutcome), nil
}

// addBlock runs on the manager's task only.
func (m *Manager) addBlock(block types.Block, txs []types.Transaction) (AddBlockOutcome, error) {
	if !m.handling.claim(block.Hash) {
		return AlreadyKnown, nil
	}
	defer m.handling.release(block.Hash)

	if _, _, ok := m.d.Store.FindBlock(block.Hash); ok {
		return AlreadyKnown, nil
	}

	height, topHash := m.d.Store.ChainHeight()

	// classify parent
	if block.PrevHash == topHash && block.Height == height {
		return m.extendMain(block, txs)
	}

	parentChain, parentHeight, found := m.d.Store.FindBlock(block.PrevHash)
	if !found {
		mgrLogger.Debug("orphan block rejected", "hash", block.Hash, "prev", block.PrevHash)
		return 0, fmt.Errorf("blockchain: orphan block, unknown parent %s", block.PrevHash)
	}

	return m.handleAlt(block, txs, parentChain, parentHeight)
}

// extendMain runs extend-main algorithm.
func (m *Manager) extendMain(block types.Block, txs []types.Transaction) (AddBlockOutcome, error) {
	snap := m.d.CtxCache.Snapshot()
	prevDiff, prevOK := m.previousCumulativeDiff(block.Height)
	if !prevOK {
		return 0, fmt.Errorf("blockchain: missing previous block info at height %d", block.Height-1)
	}

	prepared := verify.PrepareBatch([]types.Block{block}, [][]types.Transaction{txs}, []params.HardFork{snap.HardFork},
		m.vmFactory(), m.d.CryptoNight)[0]

	if err := m.d.Verifier.VerifyPrepared(context.Background(), prepared, snap, prevDiff, nil); err != nil {
		m.reportInvalid(block, err)
		return 0, fmt.Errorf("blockchain: invalid block: %w", err)
	}

	info := m.buildBlockInfo(block, snap)
	if _, err := m.d.Writer.Submit(chain.ReqWriteBlock{Block: block, Txs: txs, Info: info}); err != nil {
		return 0, fmt.Errorf("blockchain: commit failed: %w", err)
	}

	m.d.CtxCache.ApplyNewBlock(types.NewBlockData{
			BlockHash: types.Hash32(block.Hash),
			Height: block.Height,
			Timestamp: block.Timestamp,
			Weight: block.Weight,
			LongTermWeight: block.LongTermWeight,
			GeneratedCoins: info.MinerReward,
			Vote: block.HFVote,
			CumulativeDiff: block.CumulativeDiff,
		}, m.d.Schedule)

	for _, tx := range txs {
		m.d.TxPool.Remove(tx.Hash)
	}
	m.d.Broadcast.PublishBlock(block.Blob, block.Height)
	mgrLogger.Info("extended main chain", "height", block.Height, "hash", block.Hash)
	return OnMain, nil
}

// buildBlockInfo derives the per-height record committed alongside a
// verified block; the miner reward is recomputed here (rather than
// trusted from the wire) since VerifyPrepared already proved it's the
// one true value consistent with the context.
func (m *Manager) buildBlockInfo(block types.Block, snap types.Context) types.BlockInfo {
	base := rules.BaseReward(snap.AlreadyGeneratedCoins)
	num, den := rules.PenaltyFactor(block.Weight, snap.MedianWeightForReward)
	reward := rules.ApplyPenalty(base, num, den)
	return types.BlockInfo{
		Hash: block.Hash,
		Timestamp: block.Timestamp,
		Weight: block.Weight,
		LongTermWeight: block.LongTermWeight,
		CumulativeDiff: block.CumulativeDiff,
		CumulativeGeneratedCoins: snap.AlreadyGeneratedCoins + reward,
		MinerReward: reward,
		PoWHash: block.PoWHash,
		HFVersion: block.HFVersion,
	}
}

// previousCumulativeDiff resolves the cumulative difficulty of the
// block immediately before height on main (genesis has none).
func (m *Manager) previousCumulativeDiff(height uint64) (types.CumulativeDifficulty, bool) {
	if height == 0 {
		return types.CumulativeDifficulty{}, true
	}
	bi, ok := m.d.Store.BlockInfoByHeight(height - 1)
	if !ok {
		return types.CumulativeDifficulty{}, false
	}
	return bi.CumulativeDiff, true
}

func (m *Manager) vmFactory() func(params.HardFork, types.Block) rules.RandomXVM {
	return func(hf params.HardFork, b types.Block) rules.RandomXVM {
		if hf < params.RandomXActivationFork {
			return nil
		}
		seedHeight := rules.SeedHeight(b.Height, m.d.NetParams)
		seed, ok := m.d.Store.BlockInfoByHeight(seedHeight)
		var seedHash types.Hash32
		if ok {
			seedHash = types.Hash32(seed.Hash)
		}
		return m.d.CtxCache.RandomXVM(seedHash, m.d.RandomXFactory)
	}
}

func (m *Manager) reportInvalid(block types.Block, err error) {
	reason := err.Error()
	if ce, ok := err.(*rules.ConsensusError); ok {
		reason = ce.Reason.String()
	}
	mgrLogger.Warn("rejected invalid block", "height", block.Height, "hash", block.Hash, "reason", reason)
}
