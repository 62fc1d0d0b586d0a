package blockchain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/storage/chain"
	"github.com/cuprate-go/cuprated/storage/kv"
	"github.com/cuprate-go/cuprated/types"
)

func newTestStore(t *testing.T) *chain.Store {
	t.Helper()
	store, err := chain.Open(kv.NewMemoryDB())
	require.NoError(t, err)
	return store
}

func TestAddBlockOutcomeString(t *testing.T) {
	require.Equal(t, "OnMain", OnMain.String())
	require.Equal(t, "OnAlt", OnAlt.String())
	require.Equal(t, "AlreadyKnown", AlreadyKnown.String())
	require.Equal(t, "Unknown", AddBlockOutcome(99).String())
}

func TestAddBlockRejectsOrphan(t *testing.T) {
	store := newTestStore(t)
	m := New(Deps{Store: store})
	defer m.Close()

	block := types.Block{
		Hash: common.Hash{1},
		PrevHash: common.Hash{0xff}, // unknown parent
		Height: 5,
	}

	_, err := m.AddBlock(block, nil)
	require.Error(t, err)
}

func TestAddBlockDeduplicatesInFlight(t *testing.T) {
	store := newTestStore(t)
	m := New(Deps{Store: store})
	defer m.Close()

	hash := common.Hash{7}
	require.True(t, m.handling.claim(hash))
	defer m.handling.release(hash)

	block := types.Block{Hash: hash, PrevHash: common.Hash{0xaa}, Height: 3}

	outcome, err := m.AddBlock(block, nil)
	require.NoError(t, err)
	require.Equal(t, AlreadyKnown, outcome)
}

func TestAddBlockWaitsOnManagerTask(t *testing.T) {
	// Sanity check that AddBlock blocks on the manager's single task
	// rather than racing storage from the caller's goroutine.
	store := newTestStore(t)
	m := New(Deps{Store: store})
	defer m.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = m.AddBlock(types.Block{Hash: common.Hash{9}, PrevHash: common.Hash{0xbb}, Height: 1}, nil)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AddBlock did not return")
	}
}
