package chain

import (
	"fmt"
	"sync"

	"github.com/cuprate-go/cuprated/common"
	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/storage/kv"
	"github.com/cuprate-go/cuprated/types"
)

var storeLogger = log.NewModuleLogger(log.ModuleStorage)

// Store is the synchronous blockchain-typed layer over one kv.Database.
// It is intentionally backend-agnostic — LevelDB, Badger or the
// in-memory test backend are all plain kv.Database values — so the
// manager never depends on the concrete backend.
//
// Store itself does not serialize writers; that's Writer's job
// (writer.go). Store is safe for concurrent reads, and safe for a
// single concurrent writer serialized externally.
type Store struct {
	db kv.Database

	blockInfos *namespaced
	blockBlobs *namespaced
	blockHeights *namespaced

	txIDs *namespaced
	txBlobs *namespaced
	txHeights *namespaced
	txOutputs *namespaced
	txUnlockTimes *namespaced
	txKeyImages *namespaced

	outputs *namespaced
	rctOutputs *namespaced
	numOutputs *namespaced

	keyImages *namespaced

	altBlockHeights *namespaced
	altBlocksInfo *namespaced
	altBlockBlobs *namespaced
	altTxBlobs *namespaced
	altTxInfos *namespaced
	altChainInfos *namespaced

	meta *namespaced

	mu sync.RWMutex
	chainHeight uint64
	topHash common.Hash
	nextChainID common.ChainID
}

// Open wraps db with the typed table layer, reading (or initializing)
// the meta table's chain-height/top-hash/next-ChainID singletons.
func Open(db kv.Database) (*Store, error) {
	s := &Store{
		db: db,
		blockInfos: newTable(db, TableBlockInfos),
		blockBlobs: newTable(db, TableBlockBlobs),
		blockHeights: newTable(db, TableBlockHeights),
		txIDs: newTable(db, TableTxIDs),
		txBlobs: newTable(db, TableTxBlobs),
		txHeights: newTable(db, TableTxHeights),
		txOutputs: newTable(db, TableTxOutputs),
		txUnlockTimes: newTable(db, TableTxUnlockTimes),
		txKeyImages: newTable(db, TableTxKeyImages),
		outputs: newTable(db, TableOutputs),
		rctOutputs: newTable(db, TableRCTOutputs),
		numOutputs: newTable(db, TableNumOutputs),
		keyImages: newTable(db, TableKeyImages),
		altBlockHeights: newTable(db, TableAltBlockHeights),
		altBlocksInfo: newTable(db, TableAltBlocksInfo),
		altBlockBlobs: newTable(db, TableAltBlockBlobs),
		altTxBlobs: newTable(db, TableAltTxBlobs),
		altTxInfos: newTable(db, TableAltTxInfos),
		altChainInfos: newTable(db, TableAltChainInfos),
		meta: newTable(db, TableMeta),
		nextChainID: 1,
	}

	if err := s.loadOrInitMeta(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadOrInitMeta() error {
	if v, err := s.meta.Get(metaKeyVersion); err == nil {
		if decodeUint64(v) != databaseVersion {
			return fmt.Errorf("chain: database version mismatch: got %d want %d", decodeUint64(v), databaseVersion)
		}
	} else if err == kv.ErrNotFound {
		if err := s.meta.Put(metaKeyVersion, encodeUint64(databaseVersion)); err != nil {
			return err
		}
	} else {
		return err
	}

	if v, err := s.meta.Get(metaKeyChainHeight); err == nil {
		s.chainHeight = decodeUint64(v)
	} else if err != kv.ErrNotFound {
		return err
	}

	if v, err := s.meta.Get(metaKeyTopHash); err == nil {
		s.topHash = common.BytesToHash(v)
	} else if err != kv.ErrNotFound {
		return err
	}

	if v, err := s.meta.Get(metaKeyNextChainID); err == nil {
		s.nextChainID = common.ChainID(decodeUint64(v))
	} else if err != kv.ErrNotFound {
		return err
	}

	return nil
}

func (s *Store) Close() error { return s.db.Close() }

// ---- Reads ----

// ChainHeight returns (height, top_hash).
func (s *Store) ChainHeight() (uint64, common.Hash) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chainHeight, s.topHash
}

// FindBlock resolves a hash to (Chain, height) across main and every
// alt chain.
func (s *Store) FindBlock(hash common.Hash) (common.Chain, uint64, bool) {
	if hb, err := s.blockHeights.Get(hashKey(hash)); err == nil {
		return common.MainChain, decodeUint64(hb), true
	}
	if lb, err := s.altBlockHeights.Get(hashKey(hash)); err == nil {
		loc := decodeAltLocation(lb)
		return loc.Chain, loc.Height, true
	}
	return common.Chain{}, 0, false
}

// BlockInfoByHeight reads the main-chain BlockInfo at height.
func (s *Store) BlockInfoByHeight(height uint64) (types.BlockInfo, bool) {
	v, err := s.blockInfos.Get(heightKey(height))
	if err != nil {
		return types.BlockInfo{}, false
	}
	return decodeBlockInfo(v), true
}

// BlockInfoByHash resolves the hash through block_heights, then reads
// the info row.
func (s *Store) BlockInfoByHash(hash common.Hash) (types.BlockInfo, uint64, bool) {
	hb, err := s.blockHeights.Get(hashKey(hash))
	if err != nil {
		return types.BlockInfo{}, 0, false
	}
	height := decodeUint64(hb)
	bi, ok := s.BlockInfoByHeight(height)
	return bi, height, ok
}

// BlockHash returns the block hash at height on the given chain.
func (s *Store) BlockHash(height uint64, c common.Chain) (common.Hash, bool) {
	if c.IsMain() {
		bi, ok := s.BlockInfoByHeight(height)
		return bi.Hash, ok
	}
	v, err := s.altBlocksInfo.Get(chainHeightKey(c.ID, height))
	if err != nil {
		return common.Hash{}, false
	}
	return decodeBlockInfo(v).Hash, true
}

// BlockHashInRange returns the main-chain hashes for [lo, hi).
func (s *Store) BlockHashInRange(lo, hi uint64) []common.Hash {
	out := make([]common.Hash, 0, hi-lo)
	for h := lo; h < hi; h++ {
		bi, ok := s.BlockInfoByHeight(h)
		if !ok {
			break
		}
		out = append(out, bi.Hash)
	}
	return out
}

// BlockBlob returns the canonical serialized block at height, needed
// by the manager to re-home a popped main-chain suffix under a fresh
// ChainId during a reorg.
func (s *Store) BlockBlob(height uint64) ([]byte, bool) {
	v, err := s.blockBlobs.Get(heightKey(height))
	if err != nil {
		return nil, false
	}
	return v, true
}

// TxBlob returns the canonical serialized transaction for hash, used
// alongside BlockBlob to re-home a popped block's transactions.
func (s *Store) TxBlob(hash common.Hash) ([]byte, bool) {
	v, err := s.txBlobs.Get(hashKey(hash))
	if err != nil {
		return nil, false
	}
	return v, true
}

// AltBlockBlob returns the canonical serialized block staged at
// (c, height), used to replay a winning alt branch through the normal
// extend-main path during a reorg.
func (s *Store) AltBlockBlob(c common.Chain, height uint64) ([]byte, bool) {
	v, err := s.altBlockBlobs.Get(chainHeightKey(c.ID, height))
	if err != nil {
		return nil, false
	}
	return v, true
}

// AltTxBlob returns a staged transaction blob by hash.
func (s *Store) AltTxBlob(hash common.Hash) ([]byte, bool) {
	v, err := s.altTxBlobs.Get(hashKey(hash))
	if err != nil {
		return nil, false
	}
	return v, true
}

// GeneratedCoins returns the cumulative coin supply as of height.
func (s *Store) GeneratedCoins(height uint64) (uint64, bool) {
	bi, ok := s.BlockInfoByHeight(height)
	if !ok {
		return 0, false
	}
	return bi.CumulativeGeneratedCoins, true
}

// Outputs resolves a set of (amount, {index}) lookups in one batch
//, amortizing storage round trips the way 
// describes for ring-member resolution.
func (s *Store) Outputs(req map[uint64][]uint64) map[uint64]map[uint64]types.OutputOnChain {
	out := make(map[uint64]map[uint64]types.OutputOnChain, len(req))
	for amount, indices := range req {
		m := make(map[uint64]types.OutputOnChain, len(indices))
		for _, idx := range indices {
			var v []byte
			var err error
			if amount == 0 {
				// RingCT outputs are addressed purely by global index.
				v, err = s.rctOutputs.Get(globalIndexKey(types.GlobalOutputID(idx)))
			} else {
				v, err = s.outputs.Get(amountIndexKey(amount, idx))
			}
			if err != nil {
				continue
			}
			m[idx] = decodeOutput(v)
		}
		out[amount] = m
	}
	return out
}

// NumberOutputsWithAmount returns, per requested pre-RCT amount, how
// many outputs of that amount exist.
func (s *Store) NumberOutputsWithAmount(amounts []uint64) map[uint64]uint64 {
	out := make(map[uint64]uint64, len(amounts))
	for _, a := range amounts {
		v, err := s.numOutputs.Get(encodeUint64(a))
		if err != nil {
			out[a] = 0
			continue
		}
		out[a] = decodeUint64(v)
	}
	return out
}

// KeyImagesSpent reports whether any key image in the set is already
// spent on the main chain.
func (s *Store) KeyImagesSpent(images []common.Hash) bool {
	for _, ki := range images {
		if ok, _ := s.keyImages.Has(hashKey(ki)); ok {
			return true
		}
	}
	return false
}

// AltChainInfo reads a ChainID's ancestry record.
func (s *Store) AltChainInfo(id common.ChainID) (types.AltChainInfo, bool) {
	v, err := s.altChainInfos.Get(chainIDKey(id))
	if err != nil {
		return types.AltChainInfo{}, false
	}
	return decodeAltChainInfo(id, v), true
}

// AltBlockInfo reads one staged alt block's header-derived fields.
func (s *Store) AltBlockInfo(id common.ChainID, height uint64) (types.BlockInfo, bool) {
	v, err := s.altBlocksInfo.Get(chainHeightKey(id, height))
	if err != nil {
		return types.BlockInfo{}, false
	}
	return decodeBlockInfo(v), true
}

// AllocateChainID mints a fresh, never-before-used ChainID.
func (s *Store) AllocateChainID() common.ChainID {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextChainID
	s.nextChainID++
	return id
}
