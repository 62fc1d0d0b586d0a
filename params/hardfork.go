// Package params holds the hard-fork schedule and the few
// network-wide constants the consensus and context layers are
// parameterized by: a package-level config value, read through plain
// functions, overridable from test code.
package params

// HardFork is a numbered protocol version, scheduled to activate at a
// fixed height. Mirrors Monero's actual fork numbering.
type HardFork uint8

const (
	HF1 HardFork = iota + 1
	HF2
	HF3
	HF4 // RingCT introduced
	HF5
	HF6 // absolute ring member offsets made mandatory, unique offsets required
	HF7
	HF8
	HF9
	HF10
	HF11
	HF12 // RingCT type Null mandatory, RCT v2 miner tx
	HF13
	HF14
	HF15 // RandomX activation
	HF16
)

// RandomXActivationFork is the fork at which PoW switches from the
// CryptoNight family to RandomX.
const RandomXActivationFork = HF15

// RingCTActivationFork is the fork from which every transaction must
// be RingCT.
const RingCTActivationFork = HF4

// RingCTTypeNullMinerTxFork is the fork from which the miner
// transaction's RCT type must be Null and its version must match v2.
const RingCTTypeNullMinerTxFork = HF12

// AbsoluteOffsetsFork is the fork from which ring member offsets are
// absolute (not relative) and must be unique.
const AbsoluteOffsetsFork = HF6

// MinerTxUnlockDelay is added to the block height to get a miner
// transaction's unlock_time.
const MinerTxUnlockDelay = 60

// Network distinguishes chain-wide constants (genesis, seed epoch,
// fixed-difficulty regtest mode) without needing a second binary.
type Network uint8

const (
	Mainnet Network = iota
	Testnet
	Regtest
)

// NetworkParams bundles the per-network constants the context cache
// and consensus rules read from. Grounded on fork.HardForkConfig's
// "one struct of knobs, package var + accessor" shape, generalized to
// carry everything a HardFork-parameterized rule needs instead of a
// single block number.
type NetworkParams struct {
	Network Network

	// DifficultyWindow / lag / cut implement sliding window:
	// N=720 timestamps, lag 15, cut 60 (trim 60 extremes).
	DifficultyWindow int
	DifficultyLag int
	DifficultyCut int
	// DifficultyTargetSeconds is the desired average block time.
	DifficultyTargetSeconds int64

	// ShortTermWeightWindow bounds the per-block weight check.
	ShortTermWeightWindow int
	// LongTermWeightWindow is the large lookback for the smoothed,
	// inflation-bounding long-term weight: 100,000 blocks.
	LongTermWeightWindow int

	// TimestampCheckWindow is the number of historical timestamps
	// whose median is the lower timestamp bound.
	TimestampCheckWindow int
	// BlockFutureTimeLimit is how far into the future (relative to
	// "now") a block's timestamp may be.
	BlockFutureTimeLimitSeconds int64

	// SeedHashEpoch / SeedHashLag determine the RandomX seed hash:
	// seed hash = block hash at the latest height that is a multiple
	// of the epoch, minus the lag.
	SeedHashEpoch uint64
	SeedHashLag uint64

	// RandomXVMCacheSize is the LRU size for "small LRU of
	// RandomX VMs (default 2)".
	RandomXVMCacheSize int

	// ReorgDepth bounds alt-chain staging: the manager refuses to stage
	// an alt block whose branch's common ancestor is more than this
	// many blocks behind the current main tip. Alt chains already
	// staged are not evicted when the main tip later moves past it.
	ReorgDepth uint64

	// FixedDifficulty, when non-zero, short-circuits the difficulty
	// calculation for regtest-style test nets.
	FixedDifficulty uint64
}

// DefaultMainnetParams returns the production constants named in
// spec /.
func DefaultMainnetParams() *NetworkParams {
	return &NetworkParams{
		Network: Mainnet,
		DifficultyWindow: 720,
		DifficultyLag: 15,
		DifficultyCut: 60,
		DifficultyTargetSeconds: 120,
		ShortTermWeightWindow: 100,
		LongTermWeightWindow: 100_000,
		TimestampCheckWindow: 60,
		BlockFutureTimeLimitSeconds: 60 * 60,
		SeedHashEpoch: 2048,
		SeedHashLag: 64,
		RandomXVMCacheSize: 2,
		ReorgDepth: 20,
	}
}

// DefaultRegtestParams mirrors mainnet but with a fixed difficulty, so
// NextDifficulty returns FixedDifficulty instead of reading the window.
func DefaultRegtestParams() *NetworkParams {
	p := DefaultMainnetParams()
	p.Network = Regtest
	p.FixedDifficulty = 1
	return p
}

// ActiveHardFork returns the hard fork in effect at the given height
// for the given schedule. Schedule must be sorted ascending by
// ActivationHeight; height 0 always resolves to the first entry.
func ActiveHardFork(schedule []ForkActivation, height uint64) HardFork {
	active := schedule[0].Fork
	for _, a := range schedule {
		if height < a.ActivationHeight {
			break
		}
		active = a.Fork
	}
	return active
}

// ForkActivation pairs a hard fork with the height it takes effect at.
type ForkActivation struct {
	Fork HardFork
	ActivationHeight uint64
}

// MainnetForkSchedule is illustrative: real activation heights are an
// operational concern outside this document's scope. node.Open and
// the tests use this one schedule for every network; there is no
// separate compressed schedule.
var MainnetForkSchedule = []ForkActivation{
	{Fork: HF1, ActivationHeight: 0},
	{Fork: HF4, ActivationHeight: 1_009_827},
	{Fork: HF6, ActivationHeight: 1_057_027},
	{Fork: HF12, ActivationHeight: 1_685_555},
	{Fork: HF15, ActivationHeight: 1_978_433},
}
