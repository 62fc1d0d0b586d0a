package context

import (
	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

// AltChainContextBuilder constructs ephemeral contexts for validating
// a block against an alt branch. It never mutates the shared Cache;
// every Build call works against a private, unpublished scratch copy
// of the window so concurrent main-chain validation is unaffected.
//
// Fast path: clone the main context and pop in-memory. Slow path:
// rebuild from storage for the alt ancestry up to the window size.
type AltChainContextBuilder struct {
	main *Cache
}

func NewAltChainContextBuilder(main *Cache) *AltChainContextBuilder {
	return &AltChainContextBuilder{main: main}
}

// Build returns the context a block extending (prevChain, prevHeight)
// would have seen had that chain been main. altAncestry must be the
// ordered list of alt BlockInfo from one past the common ancestor up
// to and including prevHeight (empty when prevChain is main) — the
// manager assembles this by walking alt_chain_infos/alt_blocks_info,
// keeping the ancestry-walk concern out of this package.
func (b *AltChainContextBuilder) Build(prevChain common.Chain, prevHeight uint64, altAncestry []types.BlockInfo, schedule []params.ForkActivation) types.Context {
	b.main.mu.RLock()
	baseWindow := append([]windowEntry(nil), b.main.window...)
	baseHeight := b.main.height
	b.main.mu.RUnlock()

	if prevChain.IsMain() && len(altAncestry) == 0 && prevHeight+1 == baseHeight {
		// Already the tip: fast path degenerates to the main snapshot.
		return b.main.Snapshot()
	}

	// The common-ancestor height on main is prevHeight when prevChain
	// is main itself (fast path: just pop down to prevHeight), or
	// prevHeight-len(altAncestry) when prevChain is an alt chain whose
	// tip is prevHeight (slow path: pop to the ancestor, then overlay).
	ancestorHeight := prevHeight
	if !prevChain.IsMain() {
		ancestorHeight = prevHeight - uint64(len(altAncestry))
	}

	scratch := &Cache{np: b.main.np, store: b.main.store, rx: b.main.rx}
	cut := len(baseWindow)
	for cut > 0 && baseWindow[cut-1].height > ancestorHeight {
		cut--
	}
	scratch.window = append([]windowEntry(nil), baseWindow[:cut]...)
	scratch.height = ancestorHeight + 1
	if len(scratch.window) > 0 {
		scratch.alreadyGenerated = scratch.window[len(scratch.window)-1].generatedCoins
	}
	scratch.hardFork = params.ActiveHardFork(schedule, scratch.height)

	// Overlay the alt ancestry on top, exactly like the manager
	// applies NewBlockData after a real commit.
	for _, bi := range altAncestry {
		scratch.alreadyGenerated = bi.CumulativeGeneratedCoins
		scratch.window = append(scratch.window, windowEntry{
				height: scratch.height,
				timestamp: bi.Timestamp,
				weight: bi.Weight,
				longTermWeight: bi.LongTermWeight,
				cumulativeDiff: bi.CumulativeDiff,
				hfVote: bi.HFVersion,
				generatedCoins: scratch.alreadyGenerated,
		})
		if over := len(scratch.window) - scratch.np.LongTermWeightWindow; over > 0 {
			scratch.window = scratch.window[over:]
		}
		scratch.height++
		scratch.hardFork = params.ActiveHardFork(schedule, scratch.height)
	}

	return scratch.Snapshot()
}
