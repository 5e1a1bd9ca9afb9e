package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var (
	hostFlag = &cli.StringFlag{
		Name:     "host",
		Usage:    "host:port of the node's WebSocket API",
		Required: true,
	}
	addressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "base58 address to query",
		Required: true,
	}
)

var commandGetBalance = &cli.Command{
	Name:  "get_balance",
	Usage: "query an account's balance over the WebSocket API",
	Flags: []cli.Flag{hostFlag, addressFlag},
	Action: func(ctx *cli.Context) error {
		c, err := dial(ctx.String(hostFlag.Name))
		if err != nil {
			return fail(err)
		}
		defer c.Close()

		var info struct {
			Address string `json:"address"`
			Balance string `json:"balance"`
			Nonce   uint64 `json:"nonce"`
		}
		err = c.Call("account_info", map[string]string{"address": ctx.String(addressFlag.Name)}, &info)
		if err != nil {
			return fail(err)
		}
		fmt.Println("Address:", info.Address)
		fmt.Println("Balance:", info.Balance)
		fmt.Println("Nonce:", info.Nonce)
		return nil
	},
}
