package rules

import (
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

// moneySupply bounds Monero's total emission: base_reward decays as a
// function of already-generated coins, per the piecewise formula
// referenced in "Miner tx". Matches Monero's emission curve
// constant (2^64 atomic units is the nominal full supply before tail
// emission).
const moneySupply = ^uint64(0)

// baseRewardRatioShift is how quickly the reward curve decays:
// base_reward = (moneySupply - alreadyGenerated) >> shift.
const baseRewardRatioShift = 20 // 2^20, Monero's mainnet emission speed factor

// tailEmissionReward is the fixed minimum reward once the decaying
// curve drops below it (Monero's permanent "tail emission").
const tailEmissionReward = 600000000000 // 0.6 XMR in atomic units

// BaseReward computes the pre-penalty block reward for the given
// already-generated-coins total.
func BaseReward(alreadyGenerated uint64) uint64 {
	if alreadyGenerated >= moneySupply {
		return tailEmissionReward
	}
	r := (moneySupply - alreadyGenerated) >> baseRewardRatioShift
	if r < tailEmissionReward {
		return tailEmissionReward
	}
	return r
}

// PenaltyFactor scales the base reward down when a block's weight
// exceeds the median, and up to (but never past) the 2x-median weight
// cap. Below the median, the factor is 1 (no penalty); Monero never
// rewards oversize blocks extra for being large.
func PenaltyFactor(weight, median uint64) (num, den uint64) {
	if median == 0 || weight <= median {
		return 1, 1
	}
	// penalty = ((2*median - weight) / median)^2, clamped at 0 for
	// weight >= 2*median (which CheckHeader already rejects).
	if weight >= 2*median {
		return 0, 1
	}
	diff := 2*median - weight
	return diff * diff, median * median
}

// ApplyPenalty scales reward by the penalty fraction, rounding down.
func ApplyPenalty(reward, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return reward * num / den
}

// MinerTxContext is the subset of the block/context a miner-tx check
// needs.
type MinerTxContext struct {
	Height uint64
	HardFork params.HardFork
	AlreadyGeneratedCoins uint64
	Weight uint64
	MedianWeight uint64
	Fees uint64
}

// CheckMinerTx enforces "Miner tx": exactly one Gen(height)
// input, version/unlock-time/RCT-type per fork, and the exact
// piecewise reward balance.
func CheckMinerTx(tx *types.Transaction, mc MinerTxContext) error {
	if len(tx.Inputs) != 1 || !tx.Inputs[0].IsCoinbase || tx.Inputs[0].GenHeight != mc.Height {
		return Err(ReasonBadMinerTxInputs, "")
	}
	if tx.UnlockTime != mc.Height+params.MinerTxUnlockDelay {
		return Err(ReasonBadMinerTxUnlockTime, "")
	}

	wantVersion := uint8(1)
	if mc.HardFork >= params.RingCTTypeNullMinerTxFork {
		wantVersion = 2
	}
	if tx.Version != wantVersion {
		return Err(ReasonBadMinerTxVersion, "")
	}

	if mc.HardFork >= params.RingCTTypeNullMinerTxFork && tx.RCTType != types.RCTTypeNull {
		return Err(ReasonBadMinerTxRCTType, "")
	}

	base := BaseReward(mc.AlreadyGeneratedCoins)
	num, den := PenaltyFactor(mc.Weight, mc.MedianWeight)
	reward := ApplyPenalty(base, num, den) + mc.Fees

	var sumOutputs uint64
	for _, o := range tx.Outputs {
		sumOutputs += o.Amount
	}
	// From RingCT, plaintext output amounts are zeroed (hidden in the
	// commitment); the generated-coins field on BlockInfo is what
	// carries the true emitted amount in that regime instead of
	// re-summing plaintext amounts.
	if mc.HardFork < params.RingCTActivationFork && sumOutputs != reward {
		return Err(ReasonBadMinerTxReward, "")
	}
	return nil
}
