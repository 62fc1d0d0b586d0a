// Package mempool specifies only the narrow interface (lookup and
// removal) the blockchain manager consumes from the transaction pool. Dandelion routing itself — stem/fluff, the
// Dandelion pool — is out of scope; this package exists purely so
// blockchain.Manager.AddBlock has something concrete to accept instead
// of a raw blob.
package mempool

import "github.com/cuprate-go/cuprated/types"

// TxVerificationData is the pre-parsed, hash/weight/fee-annotated view
// of a transaction the mempool hands the manager when a block
// references it by hash instead of carrying the full blob. It is exactly a
// types.Transaction; the type alias exists so call sites read as
// "the mempool's view of a tx" rather than an unqualified type.
type TxVerificationData = types.Transaction

// Source is implemented by the mempool to let the manager resolve a
// block's referenced-by-hash transactions without a round trip to the
// peer that announced the block.
type Source interface {
	// Lookup returns the verification data for hash if the pool still
	// holds it (it may have been evicted or already included in a
	// competing block).
	Lookup(hash [32]byte) (TxVerificationData, bool)
	// Remove drops hash from the pool, called by the manager after a
	// block including it commits.
	Remove(hash [32]byte)
}
