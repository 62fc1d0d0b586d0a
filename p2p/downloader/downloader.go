package downloader

import (
	"context"
	"sync"
	"time"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/p2p"
)

// Config bounds one download run's resource usage.
type Config struct {
	MaxConcurrentPeers int
	BatchSize int
	BufferBudgetBytes int
}

// Sink is how the downloader hands strictly-ordered, ready batches
// back to whatever drives the blockchain manager (kept as an interface
// so blockchain.Manager doesn't need to import this package just to
// accept its output, avoiding an import cycle).
type Sink interface {
	DeliverBatch(startHeight uint64, blocks []PreparedBlock)
}

// Downloader owns one in-flight chain-sync run: a tracker, a ready
// queue, and one Fetcher goroutine per participating peer. The
// per-peer goroutine over a shared tracker/queue is adapted from a
// single-peer skeleton request/fulfil loop; the pruning-seed-aware
// blocksToGet selection has no equivalent upstream and needed its own
// loop.
type Downloader struct {
	cfg Config
	tracker *ChainTracker
	queue *ReadyQueue
	parse BlockParser
	ban p2p.MisbehaviorReporter
	sink Sink
}

func New(cfg Config, genesis common.Hash, first p2p.ChainEntry, parse BlockParser, ban p2p.MisbehaviorReporter, sink Sink) (*Downloader, error) {
	tracker, err := NewChainTracker(genesis, first)
	if err != nil {
		return nil, err
	}
	return &Downloader{
		cfg: cfg,
		tracker: tracker,
		queue: NewReadyQueue(first.StartHeight, cfg.BufferBudgetBytes),
		parse: parse,
		ban: ban,
		sink: sink,
	}, nil
}

// Run drives the pipeline against peers until ctx is cancelled or the
// tracker is fully drained and delivered. Peers are polled for more
// chain entries as the tracker's tip advances.
func (d *Downloader) Run(ctx context.Context, peers []p2p.Client) error {
	var wg sync.WaitGroup
	for _, peer := range peers {
		peer := peer
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.driveFetcher(ctx, peer)
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-done:
			d.drainReady()
			return nil
		case <-ticker.C:
			d.drainReady()
			if d.tracker.Remaining() == 0 && d.queue.Len() == 0 {
				return nil
			}
		}
	}
}

func (d *Downloader) driveFetcher(ctx context.Context, peer p2p.Client) {
	f := NewFetcher(peer, d.tracker, d.queue, d.parse, d.ban)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if d.tracker.ShouldAskForNextChainEntry(peer.PruningSeed()) {
			entry, err := peer.RequestChainEntry(d.tracker.SimpleHistory())
			if err == nil {
				_ = d.tracker.AddChainEntry(entry)
			}
		}
		got, err := f.FetchOnce(ctx, d.cfg.BatchSize)
		if err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if !got {
			if d.tracker.Remaining() == 0 {
				return
			}
			time.Sleep(20 * time.Millisecond)
		}
	}
}

func (d *Downloader) drainReady() {
	for {
		b := d.queue.PopReady()
		if b == nil {
			return
		}
		d.sink.DeliverBatch(b.startHeight, b.blocks)
	}
}
