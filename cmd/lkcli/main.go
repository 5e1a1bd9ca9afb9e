// Command lkcli is the operator CLI of spec §6.5: generate (write a
// keyfile), get_balance, transfer, and a connectivity test probe, driven
// over wsapi's WebSocket protocol. Exit codes: 0 on success, 1 on any
// handled error, matching cmd/toskey's command-per-file layout.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/lk-network/lkchain/internal/flags"
)

var gitCommit = ""
var gitDate = ""

func main() {
	app := flags.NewApp(gitCommit, gitDate, "the lkchain operator CLI")
	app.Commands = []*cli.Command{
		commandGenerate,
		commandGetBalance,
		commandTransfer,
		commandTest,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "lkcli:", err)
		os.Exit(1)
	}
}
