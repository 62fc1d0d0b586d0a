package downloader

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/p2p"
)

func hashN(n byte) common.Hash {
	var h common.Hash
	h[0] = n
	return h
}

func TestChainTrackerBlocksToGetAndPopFront(t *testing.T) {
	first := p2p.ChainEntry{
		Hashes: []common.Hash{hashN(1), hashN(2), hashN(3)},
		StartHeight: 10,
	}
	tr, err := NewChainTracker(hashN(0), first)
	require.NoError(t, err)
	require.Equal(t, uint64(12), tr.HighestSeenHeight())

	got := tr.BlocksToGet(p2p.PruningSeed(0), 2)
	require.Equal(t, []common.Hash{hashN(1), hashN(2)}, got)
	tr.PopFront(2)
	require.Equal(t, 1, tr.Remaining())

	got = tr.BlocksToGet(p2p.PruningSeed(0), 5)
	require.Equal(t, []common.Hash{hashN(3)}, got)
	tr.PopFront(1)
	require.Equal(t, 0, tr.Remaining())
}

func TestChainTrackerAddChainEntryRejectsNonOverlapping(t *testing.T) {
	first := p2p.ChainEntry{Hashes: []common.Hash{hashN(1), hashN(2)}, StartHeight: 0}
	tr, err := NewChainTracker(hashN(0), first)
	require.NoError(t, err)

	err = tr.AddChainEntry(p2p.ChainEntry{Hashes: []common.Hash{hashN(9), hashN(10)}})
	require.Error(t, err)

	err = tr.AddChainEntry(p2p.ChainEntry{Hashes: []common.Hash{hashN(2), hashN(3)}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), tr.HighestSeenHeight())
}

func TestReadyQueueDeliversStrictlyInOrder(t *testing.T) {
	q := NewReadyQueue(100, 1<<20)
	require.Nil(t, q.PopReady())

	q.Push(&readyBatch{startHeight: 102, blocks: []PreparedBlock{{}, {}}})
	q.Push(&readyBatch{startHeight: 100, blocks: []PreparedBlock{{}, {}}})

	b := q.PopReady()
	require.NotNil(t, b)
	require.Equal(t, uint64(100), b.startHeight)

	b = q.PopReady()
	require.NotNil(t, b)
	require.Equal(t, uint64(102), b.startHeight)
}

func TestReadyQueueBackPressure(t *testing.T) {
	q := NewReadyQueue(0, 10)
	require.True(t, q.HasRoom())
	q.Push(&readyBatch{startHeight: 0, blocks: []PreparedBlock{{}}, byteSize: 20})
	require.False(t, q.HasRoom())
	q.PopReady()
	require.True(t, q.HasRoom())
}
