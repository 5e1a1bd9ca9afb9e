package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/lk-network/lkchain/common"
	"github.com/lk-network/lkchain/core/types"
	"github.com/lk-network/lkchain/keystore"
)

var (
	toFlag = &cli.StringFlag{
		Name:     "to",
		Usage:    "base58 address of the recipient",
		Required: true,
	}
	amountFlag = &cli.StringFlag{
		Name:     "amount",
		Usage:    "amount to transfer, as a base-10 decimal string",
		Required: true,
	}
	feeFlag = &cli.Uint64Flag{
		Name:  "fee",
		Usage: "fee offered to the miner",
	}
	keyfileFlag = &cli.StringFlag{
		Name:     "keys",
		Usage:    "path to the sender's encrypted keyfile",
		Required: true,
	}
)

var commandTransfer = &cli.Command{
	Name:  "transfer",
	Usage: "sign and submit a transfer, waiting for its terminal status",
	Flags: []cli.Flag{hostFlag, toFlag, amountFlag, feeFlag, keyfileFlag, passphraseFileFlag},
	Action: func(ctx *cli.Context) error {
		passphrase, err := readPassphrase(ctx.String(passphraseFileFlag.Name))
		if err != nil {
			return fail(err)
		}
		key, err := keystore.LoadKey(ctx.String(keyfileFlag.Name), passphrase)
		if err != nil {
			return fail(err)
		}

		to, err := common.AddressFromBase58(ctx.String(toFlag.Name))
		if err != nil {
			return fail(fmt.Errorf("invalid --to: %w", err))
		}
		amount, err := decimalToBalance(ctx.String(amountFlag.Name))
		if err != nil {
			return fail(err)
		}

		tx, err := types.NewTransactionBuilder().
			SetFrom(key.Address).
			SetTo(to).
			SetAmount(amount).
			SetFee(ctx.Uint64(feeFlag.Name)).
			SetTimestamp(time.Now().Unix()).
			SetData(nil).
			Build()
		if err != nil {
			return fail(err)
		}
		if err := tx.SignWith(key.PrivateKey); err != nil {
			return fail(err)
		}

		c, err := dial(ctx.String(hostFlag.Name))
		if err != nil {
			return fail(err)
		}
		defer c.Close()

		args := map[string]interface{}{
			"from":      tx.From.String(),
			"to":        tx.To.String(),
			"amount":    tx.Amount.String(),
			"fee":       tx.Fee,
			"timestamp": tx.Timestamp,
			"data":      base64.StdEncoding.EncodeToString(tx.Data),
			"sign":      base64.StdEncoding.EncodeToString(tx.Sign[:]),
		}
		updates, err := c.Subscribe("push_transaction", args)
		if err != nil {
			return fail(err)
		}

		hash := tx.Hash()
		fmt.Println("Transaction:", base64.StdEncoding.EncodeToString(hash[:]))
		for resp := range updates {
			if resp.Status != "success" {
				return fail(fmt.Errorf("server error: %s", string(resp.Result)))
			}
			var status struct {
				StatusCode string `json:"status_code"`
				Message    string `json:"message"`
			}
			if err := decodeResult(resp.Result, &status); err != nil {
				return fail(err)
			}
			fmt.Println("Status:", status.StatusCode, status.Message)
			if status.StatusCode != "Pending" {
				return nil
			}
		}
		return fail(fmt.Errorf("connection closed before a terminal status arrived"))
	},
}

func decimalToBalance(s string) (common.Balance, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return common.Balance{}, fmt.Errorf("invalid decimal amount: %q", s)
	}
	return common.BalanceFromBig(n.Bytes()), nil
}

func decodeResult(raw json.RawMessage, out interface{}) error {
	return json.Unmarshal(raw, out)
}
