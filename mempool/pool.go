package mempool

import "sync"

// Pool is a minimal in-memory holding pool satisfying Source. It
// stores whatever verification data transaction relay hands it and
// lets the manager look it up or drop it again; stem/fluff Dandelion
// routing and eviction policy are out of scope and not implemented
// here. It is a sync.RWMutex-guarded map keyed by hash, with no
// on-disk journal since this pool has no persistence requirement.
type Pool struct {
	mu sync.RWMutex
	txs map[[32]byte]TxVerificationData
}

func NewPool() *Pool {
	return &Pool{txs: make(map[[32]byte]TxVerificationData)}
}

// Add makes tx available to a later Lookup, e.g. once relay has
// validated it enough to be worth holding.
func (p *Pool) Add(hash [32]byte, tx TxVerificationData) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.txs[hash] = tx
}

func (p *Pool) Lookup(hash [32]byte) (TxVerificationData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	tx, ok := p.txs[hash]
	return tx, ok
}

func (p *Pool) Remove(hash [32]byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.txs, hash)
}

var _ Source = (*Pool)(nil)
