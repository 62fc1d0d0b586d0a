// Node ties the wiring this package owns (Config, storage) together
// with the blockchain, consensus and downloader packages into the one
// long-lived object a binary needs. There is exactly one "service" to
// start, so a registry of pluggable services buys nothing here; Node
// just owns the concrete objects directly.
package node

import (
	"fmt"

	"github.com/cuprate-go/cuprated/common"
	cctx "github.com/cuprate-go/cuprated/consensus/context"
	"github.com/cuprate-go/cuprated/consensus/fastsync"
	"github.com/cuprate-go/cuprated/consensus/verify"
	"github.com/cuprate-go/cuprated/mempool"
	"github.com/cuprate-go/cuprated/p2p"
	"github.com/cuprate-go/cuprated/p2p/downloader"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/storage/chain"
	"github.com/cuprate-go/cuprated/types"

	"github.com/cuprate-go/cuprated/blockchain"
)

// Node owns every long-lived component a running instance needs:
// storage, the context cache, the verifier, the blockchain manager and
// the block downloader. Callers construct one with Open, then call
// StartDownload to build the downloader from a known peer chain entry
// and run it with Downloader.Run.
type Node struct {
	cfg Config
	store *chain.Store
	writer *chain.Writer
	readers *chain.ReaderPool

	ctxCache *cctx.Cache
	altBuilder *cctx.AltChainContextBuilder
	verifier *verify.Verifier
	fsync *fastsync.Checkpoints
	pool *mempool.Pool

	Manager *blockchain.Manager
	Downloader *downloader.Downloader
}

// Open constructs a Node from cfg: opens storage, rebuilds the context
// cache from the stored tail, and wires the blockchain manager's
// dependencies in a single constructor call.
func Open(cfg Config, checkpointHashes []types.Hash32) (*Node, error) {
	db, err := cfg.OpenStore()
	if err != nil {
		return nil, fmt.Errorf("node: open store: %w", err)
	}
	store, err := chain.Open(db)
	if err != nil {
		return nil, fmt.Errorf("node: open chain store: %w", err)
	}

	np := cfg.NetParams()
	schedule := params.MainnetForkSchedule

	writer := chain.NewWriter(store, 64)
	readers := chain.NewReaderPool(store, 4, 64)

	ctxCache := cctx.New(np, store)
	height, topHash := store.ChainHeight()
	if err := ctxCache.LoadFromStorage(height, types.Hash32(topHash), schedule); err != nil {
		return nil, fmt.Errorf("node: load context cache: %w", err)
	}
	altBuilder := cctx.NewAltChainContextBuilder(ctxCache)

	checkpoints := make([]common.Hash, 0, len(checkpointHashes))
	for _, h := range checkpointHashes {
		checkpoints = append(checkpoints, common.Hash(h))
	}
	fsync := fastsync.New(checkpoints)

	verifier := verify.New(np, store, passthroughSignatureVerifier{}, fsync)

	pool := mempool.NewPool()

	n := &Node{
		cfg: cfg,
		store: store,
		writer: writer,
		readers: readers,
		ctxCache: ctxCache,
		altBuilder: altBuilder,
		verifier: verifier,
		fsync: fsync,
		pool: pool,
	}

	n.Manager = blockchain.New(blockchain.Deps{
			Store: store,
			Writer: writer,
			CtxCache: ctxCache,
			AltBuilder: altBuilder,
			Verifier: verifier,
			Parser: unimplementedParser{},
			TxPool: pool,
			Broadcast: loggingBroadcaster{},
			Ban: loggingBanReporter{},
			NetParams: np,
			Schedule: schedule,
			CryptoNight: unimplementedCrypto{},
			RandomXFactory: randomXFactory,
	})

	return n, nil
}

// StartDownload builds n.Downloader against first, the chain entry
// reported by whatever peer-selection logic lives above this package.
// It does not start fetching; the caller runs n.Downloader.Run with
// its peers.
func (n *Node) StartDownload(genesis types.Hash32, first p2p.ChainEntry) error {
	dcfg := downloader.Config{
		MaxConcurrentPeers: n.cfg.DownloaderMaxPeers,
		BatchSize: n.cfg.DownloaderBatchSize,
		BufferBudgetBytes: n.cfg.DownloaderBufferBudget,
	}
	d, err := downloader.New(dcfg, common.Hash(genesis), first, downloaderBlockParser(unimplementedParser{}), loggingBanReporter{}, n.Manager)
	if err != nil {
		return fmt.Errorf("node: start downloader: %w", err)
	}
	n.Downloader = d
	return nil
}

// Close shuts every owned component down in dependency order: the
// manager first (it is the sole writer), then the storage writer, then
// the reader pool, then the underlying store.
func (n *Node) Close() {
	if n.Manager != nil {
		n.Manager.Close()
	}
	n.writer.Close()
	n.readers.Close()
	if err := n.store.Close(); err != nil {
		nodeLogger.Warn("error closing store", "err", err)
	}
}
