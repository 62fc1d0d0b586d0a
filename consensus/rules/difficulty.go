package rules

import (
	"sort"

	"github.com/holiman/uint256"

	"github.com/cuprate-go/cuprated/params"
)

// TimestampDifficultyPoint is one entry of the sliding window consumed
// by NextDifficulty: the block's timestamp and its cumulative
// difficulty.
type TimestampDifficultyPoint struct {
	Timestamp uint64
	CumulativeDiff uint256Pair
}

// uint256Pair mirrors types.CumulativeDifficulty's two-uint64-halves
// storage shape without importing package types here (rules stays
// leaf-level); consensus/context converts on the way in.
type uint256Pair struct {
	Lo, Hi uint64
}

func NewUint256Pair(lo, hi uint64) uint256Pair { return uint256Pair{Lo: lo, Hi: hi} }

func (p uint256Pair) toUint256() *uint256.Int {
	v := new(uint256.Int).SetUint64(p.Hi)
	v.Lsh(v, 64)
	lo := new(uint256.Int).SetUint64(p.Lo)
	v.Or(v, lo)
	return v
}

// NextDifficulty computes the difficulty the block following window
// must satisfy, per exact windowed formula: a lag-15 window of
// 720 timestamps/cumulative-difficulties, with the 60 most extreme
// timestamps trimmed before averaging the remainder.
//
// next_difficulty = (cum_diff[tip-lag] - cum_diff[tip-lag-window]) * target_seconds / sum_of_timestamp_diffs_after_trim
//
// window must be ordered oldest-first and already be exactly the
// lagged slice the caller wants (the context cache is responsible for
// windowing by height; this function only does the arithmetic).
func NextDifficulty(window []TimestampDifficultyPoint, np *params.NetworkParams) uint64 {
	if np.FixedDifficulty != 0 {
		return np.FixedDifficulty
	}
	if len(window) < 2 {
		return 1
	}

	timestamps := make([]uint64, len(window))
	for i, p := range window {
		timestamps[i] = p.Timestamp
	}
	trimmed := trimExtremes(timestamps, np.DifficultyCut)
	if len(trimmed) < 2 {
		return 1
	}

	timeSpan := trimmed[len(trimmed)-1] - trimmed[0]
	if timeSpan == 0 {
		timeSpan = 1
	}

	diffDelta := new(uint256.Int).Sub(
		window[len(window)-1].CumulativeDiff.toUint256(),
		window[0].CumulativeDiff.toUint256(),
	)

	target := uint256.NewInt(uint64(np.DifficultyTargetSeconds))
	num := new(uint256.Int).Mul(diffDelta, target)
	den := uint256.NewInt(timeSpan)
	result := new(uint256.Int).Div(num, den)
	if !result.IsUint64() {
		return ^uint64(0)
	}
	return result.Uint64()
}

// trimExtremes drops the cut/2 smallest and cut/2 largest timestamps
//, matching Monero's
// next_difficulty_64 implementation.
func trimExtremes(timestamps []uint64, cut int) []uint64 {
	if cut == 0 || len(timestamps) <= cut {
		sorted := append([]uint64(nil), timestamps...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		return sorted
	}
	sorted := append([]uint64(nil), timestamps...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	half := cut / 2
	return sorted[half: len(sorted)-(cut-half)]
}

// CheckDifficulty reports a bad-difficulty ConsensusError when the
// block's claimed difficulty (implied by its cumulative diff delta)
// doesn't match the window-derived expectation.
func CheckDifficulty(claimed, expected uint64) error {
	if claimed != expected {
		return Err(ReasonBadDifficulty, "")
	}
	return nil
}
