package downloader

import (
	"context"
	"fmt"
	"sync"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/p2p"
)

// PreparedBlock is a fetched batch entry after local validation: the
// raw blobs plus the hash/height the tracker expected, so the manager
// never has to re-derive them.
type PreparedBlock struct {
	Height uint64
	Hash common.Hash
	PrevHash common.Hash
	BlockBlob []byte
	TxBlobs [][]byte
}

// BlockParser turns a raw block blob into its hash/prev-hash/height so
// a fetched batch can be validated against what the tracker expected
// before it is trusted.
type BlockParser func(blob []byte) (hash, prevHash common.Hash, height uint64, err error)

const maxAttemptsPerPeer = 3

// Fetcher drives one peer's batch-download loop: pull hashes from the
// tracker, request objects, validate, hand complete batches to the
// ready queue, and escalate persistently failing peers to the
// misbehavior reporter.
type Fetcher struct {
	peer p2p.Client
	tracker *ChainTracker
	queue *ReadyQueue
	parse BlockParser
	ban p2p.MisbehaviorReporter

	mu sync.Mutex
	attempts map[common.Hash]int
}

func NewFetcher(peer p2p.Client, tracker *ChainTracker, queue *ReadyQueue, parse BlockParser, ban p2p.MisbehaviorReporter) *Fetcher {
	return &Fetcher{peer: peer, tracker: tracker, queue: queue, parse: parse, ban: ban, attempts: make(map[common.Hash]int)}
}

// FetchOnce pulls one batch from the tracker (if the buffer has room
// and the peer's pruning seed covers the front of the queue),
// requests it, validates it, and pushes it to the ready queue. It
// returns (false, nil) when there is currently nothing this peer can
// usefully do, not an error — callers loop until the tracker is
// drained.
func (f *Fetcher) FetchOnce(ctx context.Context, batchSize int) (bool, error) {
	if !f.queue.HasRoom() {
		return false, nil
	}
	hashes := f.tracker.BlocksToGet(f.peer.PruningSeed(), batchSize)
	if len(hashes) == 0 {
		return false, nil
	}

	resp, err := f.peer.RequestObjects(hashes)
	if err != nil {
		f.recordFailure(hashes[0], fmt.Sprintf("request failed: %v", err))
		return false, err
	}
	if len(resp.BlockBlobs) != len(hashes) {
		f.recordFailure(hashes[0], "peer returned wrong block count")
		return false, fmt.Errorf("downloader: expected %d blocks, got %d", len(hashes), len(resp.BlockBlobs))
	}

	startHeight := f.tracker.entries[0].startHeight
	blocks := make([]PreparedBlock, len(hashes))
	size := 0
	for i, blob := range resp.BlockBlobs {
		hash, prevHash, height, err := f.parse(blob)
		if err != nil {
			f.recordFailure(hashes[i], fmt.Sprintf("unparseable block blob: %v", err))
			return false, err
		}
		if hash != hashes[i] {
			f.recordFailure(hashes[i], "returned block hash does not match requested hash")
			return false, fmt.Errorf("downloader: hash mismatch at offset %d", i)
		}
		if height != startHeight+uint64(i) {
			f.recordFailure(hashes[i], "returned block height does not match chain entry position")
			return false, fmt.Errorf("downloader: height mismatch at offset %d", i)
		}
		if i > 0 && prevHash != blocks[i-1].Hash {
			f.recordFailure(hashes[i], "returned block does not chain to previous block in batch")
			return false, fmt.Errorf("downloader: prev-hash mismatch at offset %d", i)
		}
		var txBlobs [][]byte
		if i < len(resp.TxBlobs) {
			txBlobs = resp.TxBlobs[i]
		}
		blocks[i] = PreparedBlock{Height: height, Hash: hash, PrevHash: prevHash, BlockBlob: blob, TxBlobs: txBlobs}
		size += len(blob)
		for _, tb := range txBlobs {
			size += len(tb)
		}
	}

	f.tracker.PopFront(len(hashes))
	f.queue.Push(&readyBatch{startHeight: startHeight, blocks: blocks, byteSize: size})
	f.clearAttempts(hashes)
	return true, nil
}

func (f *Fetcher) recordFailure(first common.Hash, reason string) {
	f.mu.Lock()
	f.attempts[first]++
	n := f.attempts[first]
	f.mu.Unlock()

	dlLogger.Warn("batch fetch failed", "peer", f.peer.ID(), "reason", reason, "attempt", n)
	if n >= maxAttemptsPerPeer {
		f.ban.ReportBan(f.peer.ID(), p2p.SeverityHigh, reason)
	}
}

func (f *Fetcher) clearAttempts(hashes []common.Hash) {
	if len(hashes) == 0 {
		return
	}
	f.mu.Lock()
	delete(f.attempts, hashes[0])
	f.mu.Unlock()
}
