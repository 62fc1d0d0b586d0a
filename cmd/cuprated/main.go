// cuprated is the node binary: it parses flags and an optional config
// file into a node.Config, opens storage, wires the blockchain
// manager through node.Open, optionally starts the Prometheus
// exporter, and runs until the process receives a termination signal.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"

	"github.com/cuprate-go/cuprated/log"
	"github.com/cuprate-go/cuprated/node"
	"github.com/cuprate-go/cuprated/params"
	"github.com/cuprate-go/cuprated/storage/kv"
)

var logger = log.NewModuleLogger(log.ModuleNode)

var (
	dataDirFlag = cli.StringFlag{
		Name: "datadir",
		Usage: "Data directory for the chain database",
		Value: node.DefaultConfig.DataDir,
	}
	dbTypeFlag = cli.StringFlag{
		Name: "dbtype",
		Usage: `Chain storage database type ("leveldb", "badger", "memory")`,
		Value: string(node.DefaultConfig.DBType),
	}
	networkFlag = cli.StringFlag{
		Name: "network",
		Usage: `Network to join ("mainnet", "regtest")`,
		Value: networkName(node.DefaultConfig.Network),
	}
	configFlag = cli.StringFlag{
		Name: "config",
		Usage: "TOML configuration file overlaid onto the built-in defaults",
	}
	metricsAddrFlag = cli.StringFlag{
		Name: "metrics.addr",
		Usage: "Address the Prometheus exporter listens on",
		Value: ":9100",
	}
	metricsEnabledFlag = cli.BoolFlag{
		Name: "metrics",
		Usage: "Enable the Prometheus exporter",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "cuprated"
	app.Usage = "Monero consensus and chain-sync node"
	app.Flags = []cli.Flag{
		dataDirFlag,
		dbTypeFlag,
		networkFlag,
		configFlag,
		metricsAddrFlag,
		metricsEnabledFlag,
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		logger.Error("fatal error", "err", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg := node.DefaultConfig
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := node.LoadTOML(path)
		if err != nil {
			return fmt.Errorf("cuprated: load config: %w", err)
		}
		cfg = loaded
	}
	if ctx.IsSet(dataDirFlag.Name) {
		cfg.DataDir = ctx.String(dataDirFlag.Name)
	}
	if ctx.IsSet(dbTypeFlag.Name) {
		cfg.DBType = kv.DBType(ctx.String(dbTypeFlag.Name))
	}
	if ctx.IsSet(networkFlag.Name) {
		cfg.Network = parseNetwork(ctx.String(networkFlag.Name))
	}
	cfg = cfg.WithMemoryDefaults()

	n, err := node.Open(cfg, nil)
	if err != nil {
		return fmt.Errorf("cuprated: open node: %w", err)
	}
	defer n.Close()

	if ctx.Bool(metricsEnabledFlag.Name) {
		logger.Info("enabling metrics collection")
		node.ServeMetrics(ctx.String(metricsAddrFlag.Name))
	}

	logger.Info("cuprated started", "datadir", cfg.DataDir, "network", cfg.Network)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	return nil
}

func networkName(n params.Network) string {
	switch n {
	case params.Regtest:
		return "regtest"
	case params.Testnet:
		return "testnet"
	default:
		return "mainnet"
	}
}

func parseNetwork(s string) params.Network {
	switch s {
	case "regtest":
		return params.Regtest
	case "testnet":
		return params.Testnet
	default:
		return params.Mainnet
	}
}
