package chain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/storage/kv"
	"github.com/cuprate-go/cuprated/types"
)

func blockWithTx(height uint64, keyImage common.Hash, amount uint64) (types.Block, []types.Transaction, types.BlockInfo) {
	hash := common.Hash{byte(height + 1)}
	tx := types.Transaction{
		Hash: common.Hash{byte(height + 100)},
		Inputs: []types.Input{{KeyImage: keyImage, Ring: []types.RingMember{{GlobalIndex: 0}}}},
		Outputs: []types.Output{{Amount: amount}},
	}
	block := types.Block{Hash: hash, Height: height, MinerTxHash: common.Hash{}, TxHashes: []common.Hash{tx.Hash}}
	info := types.BlockInfo{Hash: hash}
	return block, []types.Transaction{tx}, info
}

func TestPopBlocksRemovesKeyImagesAndReconcilesNumOutputs(t *testing.T) {
	s, err := Open(kv.NewMemoryDB())
	require.NoError(t, err)

	ki1 := common.Hash{0xa1}
	ki2 := common.Hash{0xa2}
	const amount = uint64(1000)

	block0, txs0, info0 := blockWithTx(0, ki1, amount)
	require.NoError(t, s.WriteBlock(block0, txs0, info0))
	block1, txs1, info1 := blockWithTx(1, ki2, amount)
	require.NoError(t, s.WriteBlock(block1, txs1, info1))

	require.True(t, s.KeyImagesSpent([]common.Hash{ki1}))
	require.True(t, s.KeyImagesSpent([]common.Hash{ki2}))
	counts := s.NumberOutputsWithAmount([]uint64{amount})
	require.Equal(t, uint64(2), counts[amount])

	popped, err := s.PopBlocks(1)
	require.NoError(t, err)
	require.Len(t, popped, 1)
	require.Equal(t, uint64(1), popped[0].Height)

	require.False(t, s.KeyImagesSpent([]common.Hash{ki2}), "popped block's key image must no longer be spent")
	require.True(t, s.KeyImagesSpent([]common.Hash{ki1}), "retained block's key image must still be spent")

	counts = s.NumberOutputsWithAmount([]uint64{amount})
	require.Equal(t, uint64(1), counts[amount], "num_outputs must be rolled back to the retained block's count")
}
