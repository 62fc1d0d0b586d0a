package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/consensus/rules"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

type fakeOutputResolver struct {
	outputs map[uint64]map[uint64]types.OutputOnChain
	spent map[common.Hash]struct{}
}

func (f fakeOutputResolver) Outputs(req map[uint64][]uint64) map[uint64]map[uint64]types.OutputOnChain {
	if f.outputs == nil {
		return map[uint64]map[uint64]types.OutputOnChain{}
	}
	return f.outputs
}

func (f fakeOutputResolver) KeyImagesSpent(images []common.Hash) bool {
	for _, ki := range images {
		if _, ok := f.spent[ki]; ok {
			return true
		}
	}
	return false
}

type passSignatures struct{}

func (passSignatures) VerifyPreRCT(tx *types.Transaction, inputIdx int, ringKeys []types.OutputOnChain) error {
	return nil
}
func (passSignatures) VerifyRCT(tx *types.Transaction, rctType types.RCTType, rings [][]types.OutputOnChain) error {
	return nil
}

func minerTxFor(height uint64, reward uint64) types.Transaction {
	return types.Transaction{
		Version: 1,
		UnlockTime: height + params.MinerTxUnlockDelay,
		Inputs: []types.Input{{IsCoinbase: true, GenHeight: height}},
		Outputs: []types.Output{{Amount: reward}},
	}
}

func TestVerifyPreparedAcceptsWellFormedBlock(t *testing.T) {
	v := New(params.DefaultMainnetParams(), fakeOutputResolver{}, passSignatures{}, nil)

	snap := types.Context{
		HardFork: params.HF1,
		NextDifficulty: 1,
		MedianWeightForReward: 0,
		AlreadyGeneratedCoins: 0,
	}
	base := rules.BaseReward(snap.AlreadyGeneratedCoins)
	num, den := rules.PenaltyFactor(0, snap.MedianWeightForReward)
	reward := rules.ApplyPenalty(base, num, den)

	block := types.Block{
		Height: 100,
		HFVersion: params.HF1,
		Timestamp: 1000,
	}
	prevDiff := types.CumulativeDifficulty{}
	block.CumulativeDiff = types.CumulativeDifficultyFromBigInt(prevDiff.BigInt())
	block.CumulativeDiff.Lo += snap.NextDifficulty

	p := Prepared{
		Block: block,
		Txs: []types.Transaction{minerTxFor(block.Height, reward)},
		PoWHash: [32]byte{}, // all-zero hash always clears a positive-difficulty target
		Fee: 0,
	}

	err := v.VerifyPrepared(context.Background(), p, snap, prevDiff, nil)
	require.NoError(t, err)
}

func TestVerifyPreparedAcceptsDecayedRewardWithFees(t *testing.T) {
	v := New(params.DefaultMainnetParams(), fakeOutputResolver{}, passSignatures{}, nil)

	snap := types.Context{
		HardFork: params.HF1,
		NextDifficulty: 1,
		MedianWeightForReward: 0,
		AlreadyGeneratedCoins: 1 << 62, // well into the decay curve, nowhere near the tail
	}
	const fees = uint64(12345)
	base := rules.BaseReward(snap.AlreadyGeneratedCoins)
	require.Less(t, base, rules.BaseReward(0), "reward must have decayed below the zero-generated base reward")
	num, den := rules.PenaltyFactor(0, snap.MedianWeightForReward)
	reward := rules.ApplyPenalty(base, num, den) + fees

	block := types.Block{
		Height: 500000,
		HFVersion: params.HF1,
		Timestamp: 1000,
	}
	prevDiff := types.CumulativeDifficulty{}
	block.CumulativeDiff = types.CumulativeDifficultyFromBigInt(prevDiff.BigInt())
	block.CumulativeDiff.Lo += snap.NextDifficulty

	p := Prepared{
		Block: block,
		Txs: []types.Transaction{minerTxFor(block.Height, reward)},
		PoWHash: [32]byte{},
		Fee: fees,
	}

	err := v.VerifyPrepared(context.Background(), p, snap, prevDiff, nil)
	require.NoError(t, err)
}

func TestVerifyPreparedRejectsMissingMinerTx(t *testing.T) {
	v := New(params.DefaultMainnetParams(), fakeOutputResolver{}, passSignatures{}, nil)

	snap := types.Context{HardFork: params.HF1, NextDifficulty: 1}
	block := types.Block{Height: 1, HFVersion: params.HF1}
	block.CumulativeDiff.Lo = snap.NextDifficulty

	p := Prepared{Block: block, Txs: nil}

	err := v.VerifyPrepared(context.Background(), p, snap, types.CumulativeDifficulty{}, nil)
	require.Error(t, err)
}

func TestVerifyPreparedRejectsWrongHardFork(t *testing.T) {
	v := New(params.DefaultMainnetParams(), fakeOutputResolver{}, passSignatures{}, nil)

	snap := types.Context{HardFork: params.HF2, NextDifficulty: 1}
	block := types.Block{Height: 1, HFVersion: params.HF1}
	p := Prepared{Block: block, Txs: []types.Transaction{minerTxFor(1, 0)}}

	err := v.VerifyPrepared(context.Background(), p, snap, types.CumulativeDifficulty{}, nil)
	require.Error(t, err)
}
