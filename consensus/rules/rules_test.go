package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

func TestCheckProofOfWork(t *testing.T) {
	// An all-zero hash always beats any positive difficulty.
	var zero common.Hash
	require.NoError(t, CheckProofOfWork(zero, 1_000_000))

	// An all-0xff hash (maximal value) fails against any difficulty > 1.
	var max common.Hash
	for i := range max {
		max[i] = 0xff
	}
	assert.Error(t, CheckProofOfWork(max, 2))

	assert.Error(t, CheckProofOfWork(zero, 0))
}

func TestNextDifficultyFixedOverride(t *testing.T) {
	np := params.DefaultRegtestParams()
	got := NextDifficulty(nil, np)
	assert.Equal(t, np.FixedDifficulty, got)
}

func TestNextDifficultyPositiveForSteadyWindow(t *testing.T) {
	np := params.DefaultMainnetParams()
	window := make([]TimestampDifficultyPoint, 0, 10)
	for i := 0; i < 10; i++ {
		window = append(window, TimestampDifficultyPoint{
				Timestamp: uint64(1000 + i*120),
				CumulativeDiff: NewUint256Pair(uint64((i+1)*1000), 0),
		})
	}
	got := NextDifficulty(window, np)
	assert.Greater(t, got, uint64(0))
}

func TestBaseRewardDecaysTowardsTailEmission(t *testing.T) {
	early := BaseReward(0)
	late := BaseReward(^uint64(0) - (1 << 30))
	assert.Greater(t, early, late)
	assert.GreaterOrEqual(t, late, uint64(tailEmissionReward))
}

func TestPenaltyFactorNoPenaltyBelowMedian(t *testing.T) {
	num, den := PenaltyFactor(50, 100)
	assert.Equal(t, uint64(1), num)
	assert.Equal(t, uint64(1), den)
}

func TestPenaltyFactorZeroAtDoubleMedian(t *testing.T) {
	num, _ := PenaltyFactor(200, 100)
	assert.Equal(t, uint64(0), num)
}

func TestCheckHeaderRejectsFutureTimestamp(t *testing.T) {
	np := params.DefaultMainnetParams()
	hc := HeaderContext{HardFork: params.HF1, Now: 1000}
	b := &types.Block{
		HFVersion: params.HF1,
		Timestamp: uint64(1000 + np.BlockFutureTimeLimitSeconds + 1),
	}
	assert.Error(t, CheckHeader(b, hc, np))
}

func TestCheckHeaderAcceptsValidHeader(t *testing.T) {
	np := params.DefaultMainnetParams()
	hc := HeaderContext{HardFork: params.HF1, Now: 1000, MedianWeightShortTerm: 1000}
	b := &types.Block{HFVersion: params.HF1, Timestamp: 1000, Weight: 500}
	assert.NoError(t, CheckHeader(b, hc, np))
}
