// Command lknode is the node daemon of spec §6.5: it wires config, the
// persistent store, the chain/state/miner orchestrator, and the public
// WebSocket API together and runs until interrupted. Command-per-file
// layout and urfave/cli/v2 scaffolding follow cmd/toskey's.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/config"
	"github.com/lk-network/lkchain/internal/flags"
	"github.com/lk-network/lkchain/log"
	"github.com/lk-network/lkchain/node"
	"github.com/lk-network/lkchain/p2p"
	"github.com/lk-network/lkchain/store"
	"github.com/lk-network/lkchain/wsapi"
)

var gitCommit = ""
var gitDate = ""

var (
	configFlag = &cli.StringFlag{
		Name:     "config",
		Usage:    "path to the node's TOML configuration file",
		Required: true,
		Category: flags.NodeCategory,
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "this node's base58 address, used as coinbase and Kademlia identity",
		Required: true,
		Category: flags.NodeCategory,
	}
	mineFlag = &cli.BoolFlag{
		Name:     "mine",
		Usage:    "start mining immediately once the node is ready",
		Category: flags.MinerCategory,
	}
)

func main() {
	app := flags.NewApp(gitCommit, gitDate, "the lkchain node daemon")
	app.Flags = []cli.Flag{configFlag, addressFlag, mineFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lknode:", err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	thisAddress, err := common.AddressFromBase58(ctx.String(addressFlag.Name))
	if err != nil {
		return fmt.Errorf("lknode: invalid --address: %w", err)
	}

	mode := store.OpenDefault
	if cfg.Database.Clean {
		mode = store.OpenClear
	}
	s, err := store.Open(cfg.Database.Path, mode)
	if err != nil {
		return err
	}
	defer s.Close()

	core, err := node.New(cfg, s, thisAddress)
	if err != nil {
		return err
	}
	defer core.Stop()

	// The bucket table is constructed and ready to answer LOOKUP/HANDSHAKE
	// once a transport layer drives it; no accept loop runs here (spec
	// §6.4 is supplemental in this build, see DESIGN.md).
	table := p2p.NewTable(thisAddress)
	for _, addr := range cfg.Nodes {
		log.Info("lknode: configured peer", "endpoint", addr)
	}
	_ = table

	if ctx.Bool(mineFlag.Name) {
		if err := core.StartMining(); err != nil {
			return err
		}
		log.Info("lknode: mining started")
	}

	server := wsapi.New(core)
	go func() {
		if err := server.ListenAndServe(cfg.WSAddr); err != nil {
			log.Error("lknode: wsapi server stopped", "err", err)
		}
	}()

	log.Info("lknode: ready", "address", thisAddress.String(), "ws_addr", cfg.WSAddr)
	waitForSignal()
	log.Info("lknode: shutting down")
	return nil
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}
