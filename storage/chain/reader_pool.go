package chain

import (
	"fmt"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/types"
)

// readJob pairs one ReadRequest with the channel its result is
// delivered on, the same request/response-channel idiom Writer uses,
// kept as a separate pool since reads fan out across many goroutines
// while writes serialize through exactly one.
type readJob struct {
	req ReadRequest
	resp chan readResult
}

type readResult struct {
	val interface{}
	err error
}

// ReaderPool dispatches ReadRequests against a Store across a fixed
// worker count: a bounded worker-goroutine pool reading from one
// shared jobs channel.
type ReaderPool struct {
	store *Store
	jobs chan readJob
	quit chan struct{}
}

// NewReaderPool starts workers goroutines pulling from a shared job
// queue of depth queueDepth.
func NewReaderPool(store *Store, workers, queueDepth int) *ReaderPool {
	if workers < 1 {
		workers = 1
	}
	p := &ReaderPool{store: store, jobs: make(chan readJob, queueDepth), quit: make(chan struct{})}
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *ReaderPool) worker() {
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			val, err := p.dispatch(job.req)
			job.resp <- readResult{val: val, err: err}
		case <-p.quit:
			return
		}
	}
}

func (p *ReaderPool) dispatch(req ReadRequest) (interface{}, error) {
	s := p.store
	switch r := req.(type) {
	case ReqChainHeight:
		height, top := s.ChainHeight()
		return types.Context{ChainHeight: height, TopHash: top}, nil
	case ReqFindBlock:
		c, h, ok := s.FindBlock(r.Hash)
		if !ok {
			return nil, fmt.Errorf("chain: block %s not found", r.Hash)
		}
		return BlockLocation{Chain: c, Height: h}, nil
	case ReqBlockInfo:
		bi, ok := s.BlockInfoByHeight(r.Height)
		if !ok {
			return nil, fmt.Errorf("chain: no block at height %d", r.Height)
		}
		return bi, nil
	case ReqBlockInfoByHash:
		bi, height, ok := s.BlockInfoByHash(r.Hash)
		if !ok {
			return nil, fmt.Errorf("chain: block %s not found", r.Hash)
		}
		return blockInfoAtHeight{bi, height}, nil
	case ReqBlockHash:
		h, ok := s.BlockHash(r.Height, r.Chain)
		if !ok {
			return nil, fmt.Errorf("chain: no block at height %d", r.Height)
		}
		return h, nil
	case ReqBlockHashInRange:
		return s.BlockHashInRange(r.Lo, r.Hi), nil
	case ReqGeneratedCoins:
		coins, ok := s.GeneratedCoins(r.Height)
		if !ok {
			return nil, fmt.Errorf("chain: no block at height %d", r.Height)
		}
		return coins, nil
	case ReqOutputs:
		return s.Outputs(r.Amounts), nil
	case ReqNumOutputsWithAmount:
		return s.NumberOutputsWithAmount(r.Amounts), nil
	case ReqKeyImagesSpent:
		return s.KeyImagesSpent(r.Images), nil
	case ReqAltChainInfo:
		info, ok := s.AltChainInfo(r.ID)
		if !ok {
			return nil, fmt.Errorf("chain: no alt chain info for %d", r.ID)
		}
		return info, nil
	default:
		return nil, fmt.Errorf("chain: unknown read request %T", req)
	}
}

// BlockLocation pairs a resolved chain with a height, returned by
// ReqFindBlock.
type BlockLocation struct {
	Chain common.Chain
	Height uint64
}

// blockInfoAtHeight pairs a BlockInfo with the height it was resolved
// at, returned by ReqBlockInfoByHash since the caller supplied only a
// hash.
type blockInfoAtHeight struct {
	Info types.BlockInfo
	Height uint64
}

// Do submits req to the pool and blocks for its result.
func (p *ReaderPool) Do(req ReadRequest) (interface{}, error) {
	resp := make(chan readResult, 1)
	p.jobs <- readJob{req: req, resp: resp}
	r := <-resp
	return r.val, r.err
}

// Close stops all workers. In-flight Do calls whose job was already
// pulled off the queue still complete; calls made after Close panic,
// matching close-of-closed-channel semantics on purpose — callers must
// not submit after shutdown.
func (p *ReaderPool) Close() {
	close(p.quit)
	close(p.jobs)
}
