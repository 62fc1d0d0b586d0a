// Package node holds the process-wide configuration surface and the
// small amount of path/database-opening glue a running instance needs.
// It owns no P2P server or RPC module registry — those are out of
// scope — it is purely "turn a Config into an opened Store plus the
// sizing knobs the rest of the wiring needs".
package node

import (
	"os"
	"path/filepath"

	"github.com/naoina/toml"
	"github.com/pbnjay/memory"
	"github.com/pkg/errors"

	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/storage/kv"
)

// Config is the node's full configuration surface: data
// directory, DB backend selection, DB sizing, downloader tuning,
// alt-chain staging depth, RandomX VM cache size and network selection. A
// flat struct of toml-tagged fields plus a package-level
// DefaultConfig.
type Config struct {
	DataDir string `toml:",omitempty"`

	DBType kv.DBType `toml:"DBType"`
	DBCacheSizeMB int `toml:"DBCacheSizeMB"`
	DBHandles int `toml:"DBHandles"`

	Network params.Network `toml:"Network"`

	DownloaderMaxPeers int `toml:"DownloaderMaxPeers"`
	DownloaderBatchSize int `toml:"DownloaderBatchSize"`
	DownloaderBufferBudget int `toml:"DownloaderBufferBudget"`

	ReorgDepth uint64 `toml:"ReorgDepth"`
	RandomXVMCacheSize int `toml:"RandomXVMCacheSize"`
}

// DefaultConfig mirrors mainnet defaults, sized for a mid-range machine; cache
// sizing is adjusted against installed RAM in WithMemoryDefaults.
var DefaultConfig = Config{
	DataDir: DefaultDataDir(),
	DBType: kv.LevelDB,
	DBCacheSizeMB: 768,
	DBHandles: 1024,
	Network: params.Mainnet,
	DownloaderMaxPeers: 8,
	DownloaderBatchSize: 20,
	DownloaderBufferBudget: 256 << 20,
	ReorgDepth: 20,
	RandomXVMCacheSize: 2,
}

// WithMemoryDefaults scales the DB cache size to the machine's
// installed RAM using github.com/pbnjay/memory, instead of requiring
// the operator to pass a RAM size flag by hand.
func (c Config) WithMemoryDefaults() Config {
	total := memory.TotalMemory()
	if total == 0 {
		return c
	}
	const bytesPerMB = 1 << 20
	budget := int(total / bytesPerMB / 8) // devote roughly 1/8th of RAM to the DB cache
	if budget > c.DBCacheSizeMB {
		c.DBCacheSizeMB = budget
	}
	return c
}

// NetParams resolves the concrete consensus constants for c.Network.
func (c Config) NetParams() *params.NetworkParams {
	var np *params.NetworkParams
	switch c.Network {
	case params.Regtest:
		np = params.DefaultRegtestParams()
	default:
		np = params.DefaultMainnetParams()
	}
	np.ReorgDepth = c.ReorgDepth
	np.RandomXVMCacheSize = c.RandomXVMCacheSize
	return np
}

// resolvePath joins name onto the data directory: an absolute
// path is returned unchanged, and an empty DataDir means ephemeral
// (in-memory) storage.
func (c Config) resolvePath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	if c.DataDir == "" {
		return ""
	}
	return filepath.Join(c.DataDir, name)
}

// OpenStore opens the chain database named by c.DBType under c.DataDir
// (or an ephemeral in-memory database if DataDir is empty), switching
// over the configured backend (LevelDB, Badger or an in-memory store).
func (c Config) OpenStore() (kv.Database, error) {
	if c.DataDir == "" {
		return kv.NewMemoryDB(), nil
	}
	if err := os.MkdirAll(c.DataDir, 0o700); err != nil {
		return nil, err
	}
	switch c.DBType {
	case kv.Badger:
		return kv.OpenBadger(c.resolvePath("chaindata"))
	case kv.Memory:
		return kv.NewMemoryDB(), nil
	case kv.LevelDB:
		return kv.OpenLevelDB(c.resolvePath("chaindata"), c.DBCacheSizeMB, c.DBHandles)
	default:
		return nil, errors.New("node: unknown database type")
	}
}

// LoadTOML reads a Config from path, overlaying it onto DefaultConfig.
func LoadTOML(path string) (Config, error) {
	cfg := DefaultConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
