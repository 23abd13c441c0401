package main

import (
	"strings"

	"rentalchain/rpc"
)

func (c *cli) runRental(args []string) int {
	fs := newFlagSet("rental", c.stderr)
	assets := fs.String("asset", "", "ADDR:ID")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	contracts, ids, err := parseAssets(*assets)
	if err != nil {
		return c.fail("%v", err)
	}
	results := make([]rpc.RentalResult, 0, len(contracts))
	for i := range contracts {
		var record rpc.RentalResult
		params := map[string]string{"contract": contracts[i].Hex(), "tokenId": ids[i].String()}
		if err := c.call("rentals_getRental", params, &record); err != nil {
			return c.fail("rentals_getRental: %v", err)
		}
		results = append(results, record)
	}
	if len(results) == 1 {
		return c.printJSON(results[0])
	}
	return c.printJSON(results)
}

func (c *cli) runNonces(args []string) int {
	fs := newFlagSet("nonces", c.stderr)
	assets := fs.String("asset", "", "ADDR:ID")
	signer := fs.String("signer", "", "signer address")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	contracts, ids, err := parseAssets(*assets)
	if err != nil {
		return c.fail("%v", err)
	}
	addr, err := parseAddress(strings.TrimSpace(*signer))
	if err != nil {
		return c.fail("--signer: %v", err)
	}
	indexes, err := c.currentIndexes(contracts[0], ids[0], addr)
	if err != nil {
		return c.fail("rentals_getNonces: %v", err)
	}
	return c.printJSON(map[string]interface{}{"indexes": decimals(indexes[:])})
}

func (c *cli) runParams(args []string) int {
	fs := newFlagSet("params", c.stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	_, params, err := c.domain()
	if err != nil {
		return c.fail("rentals_getParams: %v", err)
	}
	return c.printJSON(params)
}

func (c *cli) runReceipts(args []string) int {
	fs := newFlagSet("receipts", c.stderr)
	height := fs.Uint64("height", 0, "block height")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	var receipts []rpc.ReceiptResult
	if err := c.call("chain_getReceipts", map[string]uint64{"height": *height}, &receipts); err != nil {
		return c.fail("chain_getReceipts: %v", err)
	}
	return c.printJSON(receipts)
}
