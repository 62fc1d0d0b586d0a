// Package verify composes consensus/rules, consensus/context and
// storage reads into a single verdict for a block or a batch, using a
// worker-pool shape to parallelize the CPU-bound part off the network
// task.
package verify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/consensus/fastsync"
	"github.com/cuprate-go/cuprated/consensus/rules"
	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

var verifyLogger = log.NewModuleLogger(log.ModuleConsensus)

// OutputResolver is the narrow read surface needed to resolve ring
// members and check the main chain's spent key images.
type OutputResolver interface {
	Outputs(req map[uint64][]uint64) map[uint64]map[uint64]types.OutputOnChain
	KeyImagesSpent(images []common.Hash) bool
}

// Prepared is one block's batch-prepared form: headers parsed, PoW
// hash precomputed, tx verification data precomputed.
type Prepared struct {
	Block types.Block
	Txs []types.Transaction
	PoWHash common.Hash
	Fee uint64
}

// PrepareBatch parses headers, computes PoW hashes in parallel, and
// assembles the fee totals a batch of up to N sequential blocks needs
// before contextual verification. blocks/txs
// must be index-aligned. vm/cn supply the actual hash function.
func PrepareBatch(blocks []types.Block, txs [][]types.Transaction, hf []params.HardFork, vmFor func(params.HardFork, types.Block) rules.RandomXVM, cn rules.CryptoNightHasher) []Prepared {
	out := make([]Prepared, len(blocks))
	var wg sync.WaitGroup
	for i := range blocks {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := blocks[i]
			var fee uint64
			for _, tx := range txs[i] {
				fee += tx.Fee
			}
			powHash := rules.ComputePoWHash(hf[i], b.Blob, vmFor(hf[i], b), cn)
			out[i] = Prepared{Block: b, Txs: txs[i], PoWHash: powHash, Fee: fee}
		}()
	}
	wg.Wait()
	return out
}

// Verifier runs the contextual, per-block checks.
type Verifier struct {
	np *params.NetworkParams
	store OutputResolver
	sigCheck rules.RingSignatureVerifier
	fsync *fastsync.Checkpoints
}

func New(np *params.NetworkParams, store OutputResolver, sigCheck rules.RingSignatureVerifier, fsync *fastsync.Checkpoints) *Verifier {
	return &Verifier{np: np, store: store, sigCheck: sigCheck, fsync: fsync}
}

// VerifyPrepared runs header rules, the PoW threshold check, miner-tx
// rules, then per-tx semantic and ring/signature checks, against ctx
// (which may be a real main-chain snapshot or an alt-chain overlay
// from consensus/context.AltChainContextBuilder — the verifier doesn't
// care which). fastSyncBatch, when non-nil, is the contiguous batch of
// hashes this block belongs to, checked against the embedded
// checkpoint to short-circuit PoW and signature checks.
func (v *Verifier) VerifyPrepared(ctx2 context.Context, p Prepared, snap types.Context, prevCumulativeDiff types.CumulativeDifficulty, fastSyncBatch []common.Hash) error {
	select {
	case <-ctx2.Done():
		return ctx2.Err()
	default:
	}

	skip := v.fsync != nil && fastSyncBatch != nil &&
	p.Block.Height < v.fsync.TopHeight() &&
	v.fsync.Verify(p.Block.Height-(p.Block.Height%fastsync.BatchLen), fastSyncBatch)

	hc := rules.HeaderContext{
		HardFork: snap.HardFork,
		MedianWeightShortTerm: snap.MedianWeightForReward,
		MedianTimestamps: snap.RecentTimestamps,
		Now: time.Now().Unix(),
	}
	if err := rules.CheckHeader(&p.Block, hc, v.np); err != nil {
		return fmt.Errorf("header: %w", err)
	}

	if !skip {
		if err := rules.CheckProofOfWork(p.PoWHash, snap.NextDifficulty); err != nil {
			return fmt.Errorf("pow: %w", err)
		}
	} else {
		verifyLogger.Debug("fast-sync short-circuit applied", "height", p.Block.Height)
	}

	blockDifficulty := p.Block.CumulativeDiff.BigInt()
	blockDifficulty.Sub(blockDifficulty, prevCumulativeDiff.BigInt())
	if !blockDifficulty.IsUint64() || blockDifficulty.Uint64() != snap.NextDifficulty {
		verifyLogger.Debug("difficulty mismatch", "height", p.Block.Height)
		return fmt.Errorf("difficulty: %w", rules.Err(rules.ReasonBadDifficulty, ""))
	}

	var minerTx *types.Transaction
	for i := range p.Txs {
		if p.Txs[i].IsCoinbase() {
			minerTx = &p.Txs[i]
			break
		}
	}
	if minerTx == nil {
		return fmt.Errorf("miner tx: %w", rules.Err(rules.ReasonBadMinerTxInputs, "no coinbase transaction present"))
	}
	mc := rules.MinerTxContext{
		Height: p.Block.Height,
		HardFork: snap.HardFork,
		AlreadyGeneratedCoins: snap.AlreadyGeneratedCoins,
		Weight: p.Block.Weight,
		MedianWeight: snap.MedianWeightForReward,
		Fees: p.Fee,
	}
	if err := rules.CheckMinerTx(minerTx, mc); err != nil {
		return fmt.Errorf("miner tx: %w", err)
	}

	ringLookups := make(map[uint64][]uint64)
	for i := range p.Txs {
		tx := &p.Txs[i]
		if tx.IsCoinbase() {
			continue
		}
		for _, in := range tx.Inputs {
			amt := in.Amount
			for _, rm := range in.Ring {
				ringLookups[amt] = append(ringLookups[amt], rm.GlobalIndex)
			}
		}
	}
	resolved := v.store.Outputs(ringLookups)

	blockKeyImages := make(map[common.Hash]struct{})
	for i := range p.Txs {
		tx := &p.Txs[i]
		if tx.IsCoinbase() {
			continue
		}
		tc := rules.TxContext{HardFork: snap.HardFork, Height: p.Block.Height, KeyImagesSpent: v.store.KeyImagesSpent}
		if err := rules.CheckTransaction(tx, tc); err != nil {
			return fmt.Errorf("tx %s: %w", tx.Hash, err)
		}
		for _, in := range tx.Inputs {
			if in.IsCoinbase {
				continue
			}
			if _, dup := blockKeyImages[in.KeyImage]; dup {
				return fmt.Errorf("tx %s: %w", tx.Hash, rules.Err(rules.ReasonDuplicateKeyImageInBlock, ""))
			}
			blockKeyImages[in.KeyImage] = struct{}{}
		}

		var inputSum uint64
		for _, in := range tx.Inputs {
			inputSum += in.Amount
		}
		if err := rules.CheckAmountBalance(tx, inputSum, snap.HardFork); err != nil {
			return fmt.Errorf("tx %s: %w", tx.Hash, err)
		}

		if !skip {
			now := time.Now().Unix()
			rings := make([][]types.OutputOnChain, len(tx.Inputs))
			for j, in := range tx.Inputs {
				ring := make([]types.OutputOnChain, 0, len(in.Ring))
				for _, rm := range in.Ring {
					o, ok := resolved[in.Amount][rm.GlobalIndex]
					if !ok {
						return &rules.MissingRingMemberError{Amount: in.Amount, Index: rm.GlobalIndex}
					}
					if err := rules.CheckUnlockTime(o.UnlockTime, p.Block.Height, now); err != nil {
						return fmt.Errorf("tx %s: %w", tx.Hash, err)
					}
					ring = append(ring, o)
				}
				rings[j] = ring
			}
			if err := rules.CheckSignatures(tx, rings, v.sigCheck); err != nil {
				return fmt.Errorf("tx %s: %w", tx.Hash, err)
			}
		}
	}

	return nil
}
