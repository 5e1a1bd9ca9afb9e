package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/lk-network/lkchain/keystore"
)

var (
	outDirFlag = &cli.StringFlag{
		Name:  "out",
		Usage: "directory to write the new keyfile into",
		Value: ".",
	}
	passphraseFileFlag = &cli.StringFlag{
		Name:  "passwordfile",
		Usage: "file containing the keyfile's encryption passphrase",
	}
)

var commandGenerate = &cli.Command{
	Name:      "generate",
	Usage:     "generate a new keypair and write it to an encrypted keyfile",
	ArgsUsage: " ",
	Flags:     []cli.Flag{outDirFlag, passphraseFileFlag},
	Action: func(ctx *cli.Context) error {
		key, err := keystore.NewKey()
		if err != nil {
			return fail(err)
		}
		passphrase, err := readPassphrase(ctx.String(passphraseFileFlag.Name))
		if err != nil {
			return fail(err)
		}
		dir := ctx.String(outDirFlag.Name)
		path, err := keystore.StoreKey(dir, key, passphrase)
		if err != nil {
			return fail(err)
		}
		fmt.Println("Address:", key.Address.String())
		fmt.Println("Keyfile:", filepath.Clean(path))
		return nil
	},
}

func readPassphrase(file string) (string, error) {
	if file == "" {
		return "", nil
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", fmt.Errorf("read password file: %w", err)
	}
	return trimNewline(string(data)), nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

func fail(err error) error {
	return cli.Exit(err.Error(), 1)
}
