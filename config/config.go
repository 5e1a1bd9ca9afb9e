// Package config loads the node's TOML configuration file, the on-disk
// shape mirroring the base::PropertyTree-driven config reads of
// original_source/src/node/main.cpp, generalized to the keys this node
// actually needs.
package config

import (
	"os"

	"github.com/naoina/toml"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/lkerrors"
)

type DatabaseConfig struct {
	Path  string `toml:"path"`
	Clean bool   `toml:"clean"`
}

type NetConfig struct {
	ListenAddr string `toml:"listen_addr"`
	PublicPort int    `toml:"public_port"`
}

type MinerConfig struct {
	Threads int `toml:"threads"`
}

type GenesisConfig struct {
	Address string `toml:"address"`
	Amount  uint64 `toml:"amount"`
}

type Config struct {
	Database DatabaseConfig `toml:"database"`
	Net      NetConfig      `toml:"net"`
	Miner    MinerConfig    `toml:"miner"`
	Genesis  GenesisConfig  `toml:"genesis"`
	Nodes    []string       `toml:"nodes"`
	KeyFile  string         `toml:"key_file"`
	WSAddr   string         `toml:"ws_addr"`
}

// Default mirrors reasonable values a fresh node starts from before any
// config file is applied.
func Default() Config {
	return Config{
		Database: DatabaseConfig{Path: "./db"},
		Net:      NetConfig{ListenAddr: "0.0.0.0", PublicPort: 20203},
		Miner:    MinerConfig{Threads: 0},
		Genesis:  GenesisConfig{Amount: 0xFFFFFFFF},
		WSAddr:   "127.0.0.1:20204",
	}
}

func Load(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, lkerrors.Wrap(lkerrors.InaccessibleFile, "config: open", err)
	}
	defer f.Close()
	if err := toml.NewDecoder(f).Decode(&cfg); err != nil {
		return cfg, lkerrors.Wrap(lkerrors.ParsingError, "config: decode", err)
	}
	return cfg, nil
}

func (c Config) GenesisAddress() (common.Address, error) {
	if c.Genesis.Address == "" {
		return common.Address{}, lkerrors.New(lkerrors.InvalidArgument, "config: genesis.address is required")
	}
	return common.AddressFromBase58(c.Genesis.Address)
}
