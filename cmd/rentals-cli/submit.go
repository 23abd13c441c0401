package main

import (
	"errors"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"rentalchain/core/types"
	"rentalchain/crypto"
	"rentalchain/native/asset"
	"rentalchain/native/metatx"
	"rentalchain/native/rentals"
	"rentalchain/native/token"
	"rentalchain/rpc"
)

var errInvalidFingerprint = errors.New("fingerprint must be 32 bytes of hex")

func (c *cli) nextNonce(addr common.Address) (uint64, error) {
	var nonce uint64
	err := c.call("chain_getNonce", map[string]string{"address": addr.Hex()}, &nonce)
	return nonce, err
}

// submitEngine authorizes data against the engine and sends it through method
// with the remaining params.
func (c *cli) submitEngine(key *crypto.PrivateKey, method string, data []byte, params map[string]interface{}) int {
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	nonce, err := c.nextNonce(key.Address())
	if err != nil {
		return c.fail("fetch nonce: %v", err)
	}
	auth, err := rpc.Authorize(domain.ChainID, nonce, domain.VerifyingContract, data, key.PrivateKey)
	if err != nil {
		return c.fail("authorize call: %v", err)
	}
	params["call"] = auth
	var receipt rpc.ReceiptResult
	if err := c.call(method, params, &receipt); err != nil {
		return c.fail("%s: %v", method, err)
	}
	return c.printJSON(receipt)
}

// sendCall signs a call to any hosted contract and submits it.
func (c *cli) sendCall(key *crypto.PrivateKey, to common.Address, data []byte) int {
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	nonce, err := c.nextNonce(key.Address())
	if err != nil {
		return c.fail("fetch nonce: %v", err)
	}
	call := &types.Call{ChainID: domain.ChainID, Nonce: nonce, To: to, Data: data}
	if err := call.Sign(key.PrivateKey); err != nil {
		return c.fail("sign call: %v", err)
	}
	var receipt rpc.ReceiptResult
	if err := c.call("chain_sendCall", rpc.NewCallJSON(call), &receipt); err != nil {
		return c.fail("chain_sendCall: %v", err)
	}
	return c.printJSON(receipt)
}

func decodeFingerprint(value string) ([32]byte, error) {
	var out [32]byte
	if strings.TrimSpace(value) == "" {
		return out, nil
	}
	raw, err := hexutil.Decode(value)
	if err != nil || len(raw) != 32 {
		return out, errInvalidFingerprint
	}
	copy(out[:], raw)
	return out, nil
}

func (c *cli) runAcceptListing(args []string) int {
	fs := newFlagSet("accept-listing", c.stderr)
	var keyPath, listingPath, operator, index, days, fingerprint string
	fs.StringVar(&keyPath, "key", "", "tenant keystore")
	fs.StringVar(&listingPath, "listing", "", "signed listing JSON file")
	fs.StringVar(&operator, "operator", "", "operator to install for the rental")
	fs.StringVar(&index, "index", "0", "pricing tier")
	fs.StringVar(&days, "days", "", "rental days")
	fs.StringVar(&fingerprint, "fingerprint", "", "optional 0x-prefixed composite fingerprint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	var raw rpc.ListingJSON
	if err := readJSONFile(listingPath, &raw); err != nil {
		return c.fail("read listing: %v", err)
	}
	listing, err := raw.Listing()
	if err != nil {
		return c.fail("listing: %v", err)
	}
	op, err := parseAddress(operator)
	if err != nil {
		return c.fail("--operator: %v", err)
	}
	tier, err := parseUint(index)
	if err != nil {
		return c.fail("--index: %v", err)
	}
	rentalDays, err := parseUint(days)
	if err != nil {
		return c.fail("--days: %v", err)
	}
	fp, err := decodeFingerprint(fingerprint)
	if err != nil {
		return c.fail("--fingerprint: %v", err)
	}
	data, err := rentals.PackAcceptListing(listing, op, tier, rentalDays, fp)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.submitEngine(key, "rentals_acceptListing", data, map[string]interface{}{
		"listing":     raw,
		"operator":    op.Hex(),
		"index":       tier.String(),
		"rentalDays":  rentalDays.String(),
		"fingerprint": common.Hash(fp),
	})
}

func (c *cli) runAcceptOffer(args []string) int {
	fs := newFlagSet("accept-offer", c.stderr)
	keyPath := fs.String("key", "", "lessor keystore")
	offerPath := fs.String("offer", "", "signed offer JSON file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	offer, err := c.readOffer(*offerPath)
	if err != nil {
		return c.fail("read offer: %v", err)
	}
	data, err := rentals.PackAcceptOffer(offer)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.submitEngine(key, "rentals_acceptOffer", data, map[string]interface{}{
		"offer": rpc.NewOfferJSON(offer),
	})
}

// runTransferIn settles an offer by moving the asset into the engine with
// the encoded offer as transfer payload.
func (c *cli) runTransferIn(args []string) int {
	fs := newFlagSet("transfer-in", c.stderr)
	keyPath := fs.String("key", "", "lessor keystore")
	offerPath := fs.String("offer", "", "signed offer JSON file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	offer, err := c.readOffer(*offerPath)
	if err != nil {
		return c.fail("read offer: %v", err)
	}
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	payload, err := rentals.EncodeOfferPayload(offer)
	if err != nil {
		return c.fail("encode offer: %v", err)
	}
	data, err := asset.PackSafeTransferFrom(key.Address(), domain.VerifyingContract, offer.TokenID, payload)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.sendCall(key, offer.ContractAddress, data)
}

func (c *cli) runClaim(args []string) int {
	fs := newFlagSet("claim", c.stderr)
	keyPath := fs.String("key", "", "lessor keystore")
	assets := fs.String("asset", "", "ADDR:ID pairs separated by commas")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	contracts, ids, err := parseAssets(*assets)
	if err != nil {
		return c.fail("%v", err)
	}
	data, err := rentals.PackClaim(contracts, ids)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.submitEngine(key, "rentals_claim", data, map[string]interface{}{
		"contracts": hexes(contracts),
		"tokenIds":  decimals(ids),
	})
}

func (c *cli) runSetOperator(args []string) int {
	fs := newFlagSet("set-operator", c.stderr)
	keyPath := fs.String("key", "", "keystore of the party holding the delegation gate")
	assets := fs.String("asset", "", "ADDR:ID pairs separated by commas")
	operator := fs.String("operator", "", "operator for every listed asset")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	contracts, ids, err := parseAssets(*assets)
	if err != nil {
		return c.fail("%v", err)
	}
	op, err := parseAddress(*operator)
	if err != nil {
		return c.fail("--operator: %v", err)
	}
	operators := make([]common.Address, len(contracts))
	for i := range operators {
		operators[i] = op
	}
	data, err := rentals.PackSetUpdateOperator(contracts, ids, operators)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.submitEngine(key, "rentals_setUpdateOperator", data, map[string]interface{}{
		"contracts": hexes(contracts),
		"tokenIds":  decimals(ids),
		"operators": hexes(operators),
	})
}

func (c *cli) runBumpNonce(args []string) int {
	fs := newFlagSet("bump-nonce", c.stderr)
	keyPath := fs.String("key", "", "keystore")
	scope := fs.String("scope", "signer", "contract, signer or asset")
	assets := fs.String("asset", "", "ADDR:ID for the asset scope")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	switch strings.ToLower(strings.TrimSpace(*scope)) {
	case "contract":
		data, err := rentals.PackBumpContractNonce()
		if err != nil {
			return c.fail("pack call: %v", err)
		}
		return c.submitEngine(key, "rentals_bumpContractNonce", data, map[string]interface{}{})
	case "signer":
		data, err := rentals.PackBumpSignerNonce()
		if err != nil {
			return c.fail("pack call: %v", err)
		}
		return c.submitEngine(key, "rentals_bumpSignerNonce", data, map[string]interface{}{})
	case "asset":
		contracts, ids, err := parseAssets(*assets)
		if err != nil {
			return c.fail("%v", err)
		}
		if len(contracts) != 1 {
			return c.fail("asset scope takes exactly one ADDR:ID")
		}
		data, err := rentals.PackBumpAssetNonce(contracts[0], ids[0])
		if err != nil {
			return c.fail("pack call: %v", err)
		}
		return c.submitEngine(key, "rentals_bumpAssetNonce", data, map[string]interface{}{
			"contract": contracts[0].Hex(),
			"tokenId":  ids[0].String(),
		})
	default:
		return c.fail("unknown scope %q", *scope)
	}
}

func (c *cli) runApprove(args []string) int {
	fs := newFlagSet("approve", c.stderr)
	keyPath := fs.String("key", "", "tenant keystore")
	tokenStr := fs.String("token", "", "payment token contract")
	amountStr := fs.String("amount", "", "allowance granted to the engine")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	tokenAddr, err := parseAddress(*tokenStr)
	if err != nil {
		return c.fail("--token: %v", err)
	}
	amount, err := parseUint(*amountStr)
	if err != nil {
		return c.fail("--amount: %v", err)
	}
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	data, err := token.PackApprove(domain.VerifyingContract, amount)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.sendCall(key, tokenAddr, data)
}

// runRelay has the holder of --signer-key authorize data as a meta
// transaction and submits it with --key paying for the outer call.
func (c *cli) runRelay(args []string) int {
	fs := newFlagSet("relay", c.stderr)
	keyPath := fs.String("key", "", "relayer keystore")
	signerPath := fs.String("signer-key", "", "keystore of the user the call executes for")
	dataHex := fs.String("data", "", "0x-prefixed engine call data")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	relayer, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	signer, err := c.loadKey(*signerPath)
	if err != nil {
		return c.fail("load signer key: %v", err)
	}
	functionData, err := hexutil.Decode(*dataHex)
	if err != nil {
		return c.fail("--data: %v", err)
	}
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	var nonceStr string
	if err := c.call("metatx_getNonce", map[string]string{"address": signer.Address().Hex()}, &nonceStr); err != nil {
		return c.fail("metatx_getNonce: %v", err)
	}
	nonce, err := parseUint(nonceStr)
	if err != nil {
		return c.fail("relay nonce: %v", err)
	}
	relay := metatx.NewRelay(domain.VerifyingContract, domain.ChainID, nil, nil)
	digest, err := relay.Hash(nonce, signer.Address(), functionData)
	if err != nil {
		return c.fail("hash meta transaction: %v", err)
	}
	sig, err := crypto.SignDigest(digest, signer.PrivateKey)
	if err != nil {
		return c.fail("sign meta transaction: %v", err)
	}
	data, err := rentals.PackExecuteMetaTransaction(signer.Address(), functionData, sig)
	if err != nil {
		return c.fail("pack call: %v", err)
	}
	return c.submitEngine(relayer, "rentals_executeMetaTransaction", data, map[string]interface{}{
		"user":         signer.Address().Hex(),
		"functionData": hexutil.Bytes(functionData),
		"signature":    hexutil.Bytes(sig),
	})
}

func (c *cli) runSendCall(args []string) int {
	fs := newFlagSet("send-call", c.stderr)
	keyPath := fs.String("key", "", "keystore")
	toStr := fs.String("to", "", "target contract")
	dataHex := fs.String("data", "", "0x-prefixed call data")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(*keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	to, err := parseAddress(*toStr)
	if err != nil {
		return c.fail("--to: %v", err)
	}
	data, err := hexutil.Decode(*dataHex)
	if err != nil {
		return c.fail("--data: %v", err)
	}
	return c.sendCall(key, to, data)
}

func hexes(addrs []common.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Hex()
	}
	return out
}

func decimals(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}
