package blockchain

import (
	"gopkg.in/fatih/set.v0"

	"github.com/cuprate-go/cuprated/common"
)

// handlingSet is the set of block hashes currently being verified, so
// a second copy of the same block arriving from another peer while
// the first is still in flight is rejected immediately instead of
// racing it through the verifier twice. set.New() gives a
// mutex-guarded Set for free rather than hand-rolling one over a
// map+sync.Mutex.
type handlingSet struct {
	s *set.Set
}

func newHandlingSet() *handlingSet {
	return &handlingSet{s: set.New()}
}

// claim adds hash to the set and reports whether it was newly added;
// false means some other goroutine already owns this hash.
func (h *handlingSet) claim(hash common.Hash) bool {
	if h.s.Has(hash) {
		return false
	}
	h.s.Add(hash)
	return true
}

func (h *handlingSet) release(hash common.Hash) {
	h.s.Remove(hash)
}
