package rules

import (
	"sort"

	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

// HeaderContext is the narrow slice of types.Context a header check
// needs, kept separate from the full Context so unit tests can build
// one without standing up the whole cache.
type HeaderContext struct {
	HardFork params.HardFork
	MedianTimestamps []uint64 // last TimestampCheckWindow timestamps, oldest first
	MedianWeightShortTerm uint64
	Now int64
}

// CheckHeader validates version, timestamp and weight.
func CheckHeader(b *types.Block, hc HeaderContext, np *params.NetworkParams) error {
	if b.HFVersion != hc.HardFork {
		return Err(ReasonBadVersion, "")
	}

	if len(hc.MedianTimestamps) > 0 {
		med := medianUint64(hc.MedianTimestamps)
		if b.Timestamp < med {
			return Err(ReasonBadTimestamp, "below median of last window")
		}
	}
	if int64(b.Timestamp) > hc.Now+np.BlockFutureTimeLimitSeconds {
		return Err(ReasonBadTimestamp, "too far in the future")
	}

	if hc.MedianWeightShortTerm > 0 && b.Weight > 2*hc.MedianWeightShortTerm {
		return Err(ReasonBadWeight, "")
	}

	return nil
}

// medianUint64 returns the median of a small window; TimestampCheckWindow
// is 60, so a copy-and-sort is cheap relative to a running
// order-statistics structure.
func medianUint64(vals []uint64) uint64 {
	cp := append([]uint64(nil), vals...)
	sort.Slice(cp, func(i, j int) bool { return cp[i] < cp[j] })
	n := len(cp)
	if n%2 == 1 {
		return cp[n/2]
	}
	return (cp[n/2-1] + cp[n/2]) / 2
}
