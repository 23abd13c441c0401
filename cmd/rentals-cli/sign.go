package main

import (
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"rentalchain/crypto"
	"rentalchain/native/rentals"
	"rentalchain/rpc"
)

func (c *cli) runKeygen(args []string) int {
	fs := newFlagSet("keygen", c.stderr)
	out := fs.String("out", "", "keystore file to write")
	light := fs.Bool("light", false, "use light scrypt parameters (development only)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*out) == "" {
		return c.fail("--out is required")
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return c.fail("generate key: %v", err)
	}
	if err := crypto.SaveToKeystore(*out, key, os.Getenv(keyPassEnv), *light); err != nil {
		return c.fail("write keystore: %v", err)
	}
	return c.printJSON(map[string]string{
		"keystore": *out,
		"address":  key.Address().Hex(),
		"bech32":   crypto.FromCommon(key.Address()).String(),
	})
}

func (c *cli) runAddress(args []string) int {
	fs := newFlagSet("address", c.stderr)
	keyPath := fs.String("key", "", "keystore file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if strings.TrimSpace(*keyPath) == "" {
		return c.fail("--key is required")
	}
	addr, err := crypto.KeystoreAddress(*keyPath)
	if err != nil {
		return c.fail("read keystore: %v", err)
	}
	return c.printJSON(map[string]string{
		"address": addr.Hex(),
		"bech32":  crypto.FromCommon(addr).String(),
	})
}

// currentIndexes fetches the nonce tuple signer must sign for the asset.
func (c *cli) currentIndexes(contract common.Address, tokenID *big.Int, signer common.Address) ([3]*big.Int, error) {
	var nonces rpc.NoncesResult
	params := map[string]string{"contract": contract.Hex(), "tokenId": tokenID.String(), "signer": signer.Hex()}
	if err := c.call("rentals_getNonces", params, &nonces); err != nil {
		return [3]*big.Int{}, err
	}
	var out [3]*big.Int
	for i, raw := range nonces.Indexes {
		v, err := parseUint(raw)
		if err != nil {
			return out, err
		}
		out[i] = v
	}
	return out, nil
}

func (c *cli) runSignListing(args []string) int {
	fs := newFlagSet("sign-listing", c.stderr)
	var (
		keyPath, contractStr, tokenStr, expires string
		prices, maxDays, minDays, target        string
	)
	fs.StringVar(&keyPath, "key", "", "lessor keystore")
	fs.StringVar(&contractStr, "contract", "", "asset contract")
	fs.StringVar(&tokenStr, "token-id", "", "asset token id")
	fs.StringVar(&expires, "expires", "+72h", "expiration as +duration or unix seconds")
	fs.StringVar(&prices, "price", "", "comma separated price per day for each tier")
	fs.StringVar(&maxDays, "max-days", "", "comma separated maximum days for each tier")
	fs.StringVar(&minDays, "min-days", "", "comma separated minimum days for each tier")
	fs.StringVar(&target, "target", "", "optional address allowed to accept")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	listing := &rentals.Listing{Signer: key.Address()}
	if listing.ContractAddress, err = parseAddress(contractStr); err != nil {
		return c.fail("--contract: %v", err)
	}
	if listing.TokenID, err = parseUint(tokenStr); err != nil {
		return c.fail("--token-id: %v", err)
	}
	if listing.Expiration, err = parseExpiry(expires, c.now()); err != nil {
		return c.fail("--expires: %v", err)
	}
	if listing.PricePerDay, err = parseUintList(prices); err != nil {
		return c.fail("--price: %v", err)
	}
	if listing.MaxDays, err = parseUintList(maxDays); err != nil {
		return c.fail("--max-days: %v", err)
	}
	if listing.MinDays, err = parseUintList(minDays); err != nil {
		return c.fail("--min-days: %v", err)
	}
	if strings.TrimSpace(target) != "" {
		if listing.Target, err = parseAddress(target); err != nil {
			return c.fail("--target: %v", err)
		}
	}
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	if listing.Indexes, err = c.currentIndexes(listing.ContractAddress, listing.TokenID, listing.Signer); err != nil {
		return c.fail("fetch nonces: %v", err)
	}
	if err := rentals.SignListing(domain, listing, key.PrivateKey); err != nil {
		return c.fail("sign listing: %v", err)
	}
	return c.printJSON(rpc.NewListingJSON(listing))
}

func (c *cli) runSignOffer(args []string) int {
	fs := newFlagSet("sign-offer", c.stderr)
	var (
		keyPath, contractStr, tokenStr, expires string
		price, days, operator, fingerprint      string
	)
	fs.StringVar(&keyPath, "key", "", "tenant keystore")
	fs.StringVar(&contractStr, "contract", "", "asset contract")
	fs.StringVar(&tokenStr, "token-id", "", "asset token id")
	fs.StringVar(&expires, "expires", "+72h", "expiration as +duration or unix seconds")
	fs.StringVar(&price, "price", "", "price per day")
	fs.StringVar(&days, "days", "", "rental days")
	fs.StringVar(&operator, "operator", "", "operator to install for the rental")
	fs.StringVar(&fingerprint, "fingerprint", "", "optional 0x-prefixed composite fingerprint")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	key, err := c.loadKey(keyPath)
	if err != nil {
		return c.fail("load key: %v", err)
	}
	offer := &rentals.Offer{Signer: key.Address()}
	if offer.ContractAddress, err = parseAddress(contractStr); err != nil {
		return c.fail("--contract: %v", err)
	}
	if offer.TokenID, err = parseUint(tokenStr); err != nil {
		return c.fail("--token-id: %v", err)
	}
	if offer.Expiration, err = parseExpiry(expires, c.now()); err != nil {
		return c.fail("--expires: %v", err)
	}
	if offer.PricePerDay, err = parseUint(price); err != nil {
		return c.fail("--price: %v", err)
	}
	if offer.RentalDays, err = parseUint(days); err != nil {
		return c.fail("--days: %v", err)
	}
	if offer.Operator, err = parseAddress(operator); err != nil {
		return c.fail("--operator: %v", err)
	}
	if offer.Fingerprint, err = decodeFingerprint(fingerprint); err != nil {
		return c.fail("--fingerprint: %v", err)
	}
	domain, _, err := c.domain()
	if err != nil {
		return c.fail("fetch domain: %v", err)
	}
	if offer.Indexes, err = c.currentIndexes(offer.ContractAddress, offer.TokenID, offer.Signer); err != nil {
		return c.fail("fetch nonces: %v", err)
	}
	if err := rentals.SignOffer(domain, offer, key.PrivateKey); err != nil {
		return c.fail("sign offer: %v", err)
	}
	return c.printJSON(rpc.NewOfferJSON(offer))
}

func (c *cli) readOffer(path string) (*rentals.Offer, error) {
	var raw rpc.OfferJSON
	if err := readJSONFile(path, &raw); err != nil {
		return nil, err
	}
	return raw.Offer()
}

func (c *cli) runEncodeOffer(args []string) int {
	fs := newFlagSet("encode-offer", c.stderr)
	offerPath := fs.String("offer", "", "signed offer JSON file")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	offer, err := c.readOffer(*offerPath)
	if err != nil {
		return c.fail("read offer: %v", err)
	}
	payload, err := rentals.EncodeOfferPayload(offer)
	if err != nil {
		return c.fail("encode offer: %v", err)
	}
	return c.printJSON(map[string]string{"payload": hexutil.Encode(payload)})
}
