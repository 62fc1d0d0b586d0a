package rules

import (
	"github.com/holiman/uint256"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
)

// RandomXVM is the narrow interface consensus/context's VM cache
// exposes to the rule layer. CalculateHash is expensive; callers
// amortize VM construction via the LRU in consensus/context.
type RandomXVM interface {
	CalculateHash(input []byte) common.Hash
}

// CryptoNightHasher computes a pre-RandomX PoW hash for the given
// fork. Left as an interface since the
// exact CryptoNight variant selection is a pure function of fork and
// the algorithm itself is out of scope.
type CryptoNightHasher interface {
	Hash(fork params.HardFork, blob []byte) common.Hash
}

// ComputePoWHash dispatches to RandomX or CryptoNight depending on
// whether hf has reached the RandomX activation fork.
func ComputePoWHash(hf params.HardFork, blob []byte, vm RandomXVM, cn CryptoNightHasher) common.Hash {
	if hf >= params.RandomXActivationFork {
		return vm.CalculateHash(blob)
	}
	return cn.Hash(hf, blob)
}

// CheckProofOfWork verifies the standard Monero comparison on 256-bit
// integers: powHash * difficulty < 2^256.
// Equivalently (and how Monero actually computes it to avoid a
// 512-bit intermediate): interpreting powHash little-endian as a
// 256-bit integer, powHash < 2^256 / difficulty.
func CheckProofOfWork(powHash common.Hash, difficulty uint64) error {
	if difficulty == 0 {
		return Err(ReasonBadDifficulty, "difficulty must be positive")
	}

	hashInt := littleEndianToUint256(powHash)
	diff := uint256.NewInt(difficulty)

	// target = floor((2^256 - 1) / difficulty); hashInt must be <= target.
	maxVal := new(uint256.Int).Not(uint256.NewInt(0)) // 2^256 - 1
	target := new(uint256.Int).Div(maxVal, diff)

	if hashInt.Cmp(target) > 0 {
		return Err(ReasonBadPoW, "")
	}
	return nil
}

func littleEndianToUint256(h common.Hash) *uint256.Int {
	var reversed [32]byte
	for i := range h {
		reversed[i] = h[31-i]
	}
	return new(uint256.Int).SetBytes(reversed[:])
}

// SeedHeight returns the height whose block hash is the RandomX seed
// for the block at height `height`: the latest height that is a
// multiple of the seed epoch, minus the lag.
func SeedHeight(height uint64, np *params.NetworkParams) uint64 {
	epoch := np.SeedHashEpoch
	lag := np.SeedHashLag
	if height < lag {
		return 0
	}
	base := (height - lag) / epoch * epoch
	return base
}
