// Package p2p specifies the narrow external interfaces the core
// depends on but does not implement. Only the request/response shapes and the
// misbehavior-reporting contract live here — wire framing, handshake,
// and address-book/NAT/Dandelion routing are someone else's package.
package p2p

import "github.com/cuprate-go/cuprated/common"

// PeerID opaquely identifies a connected peer; the transport owns what
// it actually means (socket address, onion service id).
type PeerID uint64

// PruningSeed is a peer's advertised subset of block ranges it stores
// and can serve.
type PruningSeed uint32

// Stores reports whether the peer advertising this seed can serve the
// block at height, using Monero's standard pruning-seed encoding: seed
// 0 means "stores everything".
func (s PruningSeed) Stores(height, blockchainHeight uint64) bool {
	if s == 0 {
		return true
	}
	const logStripes = 3
	stripes := uint32(1) << logStripes
	seedStripe := uint32(s) >> logStripes
	if seedStripe == 0 || seedStripe > stripes {
		return true
	}
	const tip = 5500 // blocks near the tip are kept by every pruned peer
	if blockchainHeight > 0 && height+tip >= blockchainHeight {
		return true
	}
	blockStripe := uint32((height/((blockchainHeight+uint64(stripes)-1)/uint64(stripes)))%uint64(stripes)) + 1
	return blockStripe == seedStripe
}

// ChainEntry is what a peer returns for a "fetch chain entry" request.
type ChainEntry struct {
	Hashes []common.Hash
	StartHeight uint64
	TotalClaimedHeight uint64
	ClaimedCumulativeDiff uint64
}

// ObjectsResponse is what a peer returns for a "fetch objects" request.
type ObjectsResponse struct {
	BlockBlobs [][]byte
	TxBlobs [][][]byte
}

// Client is the narrow outbound surface the downloader needs from one
// connected peer.
type Client interface {
	ID() PeerID
	PruningSeed() PruningSeed
	// RequestChainEntry asks for a chain entry given a short history
	// (top + genesis + exponentially-spaced locators).
	RequestChainEntry(history []common.Hash) (ChainEntry, error)
	// RequestObjects asks for block blobs + tx blobs for the given hashes.
	RequestObjects(hashes []common.Hash) (ObjectsResponse, error)
}

// Severity bands a misbehavior report, from a minor protocol nit up
// to a ban-worthy consensus violation.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

// MisbehaviorReporter is the manager's and downloader's only way to
// affect peer standing; banning/scoring itself lives in the P2P
// address-book, out of scope here.
type MisbehaviorReporter interface {
	ReportBan(peer PeerID, severity Severity, reason string)
}

// BroadcastPublisher is the publish channel for newly accepted blocks.
type BroadcastPublisher interface {
	PublishBlock(blob []byte, height uint64)
}
