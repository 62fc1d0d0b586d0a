package chain

import (
	"hash"
	"hash/fnv"
	"sync"

	"github.com/cuprate-go/cuprated/common"
	"github.com/steakknife/bloomfilter"
)

// keyImageFilter is a probabilistic pre-check in front of the
// key_images table: a negative answer is certain, a positive answer
// still needs the table to confirm. Sized generously since a false
// positive only costs one extra KV read, never a correctness bug.
type keyImageFilter struct {
	mu sync.Mutex
	bf *bloomfilter.Filter
}

const (
	keyImageFilterMaxElements = 50_000_000
	keyImageFilterFalsePositiveProb = 1e-5
)

func newKeyImageFilter() *keyImageFilter {
	bf, err := bloomfilter.NewOptimal(keyImageFilterMaxElements, keyImageFilterFalsePositiveProb)
	if err != nil {
		// Only returns an error for a degenerate max-elements/prob pair,
		// both constants above; a failure here means they were edited wrong.
		panic(err)
	}
	return &keyImageFilter{bf: bf}
}

func keyImageHash(ki common.Hash) hash.Hash64 {
	h := fnv.New64a()
	h.Write(ki[:])
	return h
}

func (f *keyImageFilter) add(ki common.Hash) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bf.Add(keyImageHash(ki))
}

// maybeSpent reports false only when ki is definitely absent.
func (f *keyImageFilter) maybeSpent(ki common.Hash) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bf.Contains(keyImageHash(ki))
}

// warmKeyImageFilter populates f from every row currently in the
// key_images table, run once at startup.
func warmKeyImageFilter(s *Store, f *keyImageFilter) error {
	it := s.keyImages.NewIterator()
	defer it.Release()
	for it.Next() {
		var ki common.Hash
		copy(ki[:], s.keyImages.strip(it.Key()))
		f.add(ki)
	}
	return it.Error()
}
