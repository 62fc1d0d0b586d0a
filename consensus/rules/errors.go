// Package rules holds the pure, hard-fork-parameterized validators.
// No rule in this package touches storage or mutates state; every
// rule is a total function from (block/tx, context) to either Ok or a
// typed ConsensusError, composed by consensus/verify into a single
// verdict per block.
package rules

import "fmt"

// Reason enumerates why a rule rejected a block or transaction. Kept as a small closed enum rather than raw
// strings so the verifier and the manager's peer-misbehavior reporting
// can switch on it without string matching.
type Reason int

const (
	ReasonBadTimestamp Reason = iota
	ReasonBadWeight
	ReasonBadVersion
	ReasonBadPoW
	ReasonBadDifficulty
	ReasonBadMinerTxInputs
	ReasonBadMinerTxUnlockTime
	ReasonBadMinerTxVersion
	ReasonBadMinerTxRCTType
	ReasonBadMinerTxReward
	ReasonEmptyInputs
	ReasonDuplicateKeyImageInBlock
	ReasonKeyImageAlreadySpent
	ReasonRelativeRingOffsets
	ReasonDuplicateRingOffsets
	ReasonBadRingSize
	ReasonBadRCTType
	ReasonBadUnlockTime
	ReasonAmountsDoNotBalance
	ReasonMissingRingMember
	ReasonBadRingSignature
	ReasonBadRangeProof
)

func (r Reason) String() string {
	switch r {
	case ReasonBadTimestamp:
		return "timestamp outside allowed window"
	case ReasonBadWeight:
		return "block weight exceeds 2x short-term median"
	case ReasonBadVersion:
		return "header version does not match hard fork schedule"
	case ReasonBadPoW:
		return "PoW hash does not meet difficulty threshold"
	case ReasonBadDifficulty:
		return "declared difficulty does not match computed difficulty"
	case ReasonBadMinerTxInputs:
		return "miner tx does not have exactly one Gen(height) input"
	case ReasonBadMinerTxUnlockTime:
		return "miner tx unlock_time != height + 60"
	case ReasonBadMinerTxVersion:
		return "miner tx version does not match hard fork"
	case ReasonBadMinerTxRCTType:
		return "miner tx RCT type must be Null from fork 12"
	case ReasonBadMinerTxReward:
		return "miner tx output sum does not match base_reward*penalty+fees"
	case ReasonEmptyInputs:
		return "transaction has no inputs"
	case ReasonDuplicateKeyImageInBlock:
		return "duplicate key image within the same block"
	case ReasonKeyImageAlreadySpent:
		return "key image already spent on the main chain"
	case ReasonRelativeRingOffsets:
		return "ring member offsets must be absolute from this fork"
	case ReasonDuplicateRingOffsets:
		return "duplicate ring member offsets"
	case ReasonBadRingSize:
		return "ring size not allowed at this fork"
	case ReasonBadRCTType:
		return "RCT type not allowed at this fork"
	case ReasonBadUnlockTime:
		return "output still locked"
	case ReasonAmountsDoNotBalance:
		return "input/output amounts do not balance"
	case ReasonMissingRingMember:
		return "ring member could not be resolved from the output database"
	case ReasonBadRingSignature:
		return "ring/MLSAG/CLSAG signature verification failed"
	case ReasonBadRangeProof:
		return "range proof verification failed"
	default:
		return "unknown consensus violation"
	}
}

// ConsensusError is returned by a rule function when a protocol rule
// is violated.
type ConsensusError struct {
	Reason Reason
	Detail string
}

func (e *ConsensusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("consensus: %s", e.Reason)
	}
	return fmt.Sprintf("consensus: %s: %s", e.Reason, e.Detail)
}

func Err(reason Reason, detail string) error {
	return &ConsensusError{Reason: reason, Detail: detail}
}

// StructuralError is returned for malformed bytes/field ranges found
// while parsing, distinct from a consensus-rule violation even though
// both result in a ban.
type StructuralError struct {
	Detail string
}

func (e *StructuralError) Error() string { return fmt.Sprintf("structural: %s", e.Detail) }

func StructErr(detail string) error { return &StructuralError{Detail: detail} }

// MissingRingMemberError is contextual-missing, not a ban.
type MissingRingMemberError struct {
	Amount uint64
	Index uint64
}

func (e *MissingRingMemberError) Error() string {
	return fmt.Sprintf("missing ring member: amount=%d index=%d", e.Amount, e.Index)
}
