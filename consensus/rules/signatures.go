package rules

import (
	"github.com/cuprate-go/cuprated/types"
)

// RingSignatureVerifier abstracts the actual cryptography (legacy ring
// signatures, MLSAG, CLSAG, range proofs): this package only needs to
// know when each must be invoked and what it returns, not how the
// algorithm works. consensus/verify supplies the real implementation;
// tests supply a stub.
type RingSignatureVerifier interface {
	// VerifyPreRCT checks a legacy ring signature against resolved
	// ring-member public keys.
	VerifyPreRCT(tx *types.Transaction, inputIdx int, ringKeys []types.OutputOnChain) error

	// VerifyRCT checks range proofs and MLSAG/CLSAG as a function of
	// RCT type, given every ring member's resolved output and
	// commitment.
	VerifyRCT(tx *types.Transaction, rctType types.RCTType, rings [][]types.OutputOnChain) error
}

// CheckSignatures resolves every input's ring members (already done by
// the caller and passed in as rings, keyed parallel to tx.Inputs) and
// dispatches to the pre-RCT or RCT verifier.
func CheckSignatures(tx *types.Transaction, rings [][]types.OutputOnChain, v RingSignatureVerifier) error {
	if len(rings) != len(tx.Inputs) {
		return StructErr("ring count does not match input count")
	}
	if tx.RCTType == types.RCTTypeNone {
		for i, in := range tx.Inputs {
			if in.IsCoinbase {
				continue
			}
			if err := v.VerifyPreRCT(tx, i, rings[i]); err != nil {
				return Err(ReasonBadRingSignature, err.Error())
			}
		}
		return nil
	}
	if err := v.VerifyRCT(tx, tx.RCTType, rings); err != nil {
		return Err(ReasonBadRangeProof, err.Error())
	}
	return nil
}
