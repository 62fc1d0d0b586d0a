package context

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/types"
)

type fakeStore struct {
	infos map[uint64]types.BlockInfo
}

func (f *fakeStore) BlockInfoByHeight(h uint64) (types.BlockInfo, bool) {
	bi, ok := f.infos[h]
	return bi, ok
}

func newFakeStore() *fakeStore { return &fakeStore{infos: map[uint64]types.BlockInfo{}} }

func (f *fakeStore) put(h uint64, bi types.BlockInfo) { f.infos[h] = bi }

func TestCacheApplyNewBlockAdvancesHeight(t *testing.T) {
	np := params.DefaultRegtestParams()
	store := newFakeStore()
	c := New(np, store)
	require.NoError(t, c.LoadFromStorage(0, types.Hash32{}, params.MainnetForkSchedule))

	d := types.NewBlockData{
		BlockHash: [32]byte{1},
		Height: 0,
		Timestamp: 1000,
		Weight: 100,
		GeneratedCoins: 600000000000,
		Vote: params.HF1,
	}
	c.ApplyNewBlock(d, params.MainnetForkSchedule)

	snap := c.Snapshot()
	assert.Equal(t, uint64(1), snap.ChainHeight)
	assert.Equal(t, common.Hash(d.BlockHash).String(), common.Hash(snap.TopHash).String())
	assert.Equal(t, d.GeneratedCoins, snap.AlreadyGeneratedCoins)
}

func TestCachePopReversesApply(t *testing.T) {
	np := params.DefaultRegtestParams()
	store := newFakeStore()
	c := New(np, store)
	require.NoError(t, c.LoadFromStorage(0, types.Hash32{}, params.MainnetForkSchedule))

	for i := uint64(0); i < 5; i++ {
		bi := types.BlockInfo{
			Hash: common.Hash{byte(i + 1)},
			Timestamp: 1000 + i*120,
			Weight: 100,
			CumulativeGeneratedCoins: 600000000000 * (i + 1),
		}
		store.put(i, bi)
		c.ApplyNewBlock(types.NewBlockData{
				BlockHash: types.Hash32(bi.Hash),
				Height: i,
				Timestamp: bi.Timestamp,
				Weight: bi.Weight,
				GeneratedCoins: 600000000000,
				Vote: params.HF1,
			}, params.MainnetForkSchedule)
	}

	require.Equal(t, uint64(5), c.Snapshot().ChainHeight)
	require.NoError(t, c.ApplyPop(2, params.MainnetForkSchedule))
	snap := c.Snapshot()
	assert.Equal(t, uint64(3), snap.ChainHeight)
}
