package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/cmd/internal/passphrase"
	"rentalchain/crypto"
	"rentalchain/native/rentals"
	"rentalchain/rpc"
)

const (
	rpcURLEnv     = "RENTALS_RPC_URL"
	rpcTokenEnv   = "RENTALS_RPC_TOKEN"
	keyPassEnv    = "RENTALS_KEY_PASS"
	defaultRPCURL = "http://127.0.0.1:8545"
)

// cli carries the dependencies every subcommand shares.
type cli struct {
	client  *rpc.Client
	stdout  io.Writer
	stderr  io.Writer
	now     func() time.Time
	loadKey func(path string) (*crypto.PrivateKey, error)
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	endpoint := strings.TrimSpace(os.Getenv(rpcURLEnv))
	if endpoint == "" {
		endpoint = defaultRPCURL
	}
	args, endpoint, err := applyGlobalFlags(args, endpoint)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	c := &cli{
		client:  rpc.NewClient(endpoint, os.Getenv(rpcTokenEnv)),
		stdout:  stdout,
		stderr:  stderr,
		now:     time.Now,
		loadKey: loadKeystore,
	}
	return c.dispatch(args)
}

func (c *cli) dispatch(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
	commands := map[string]func([]string) int{
		"keygen":         c.runKeygen,
		"address":        c.runAddress,
		"sign-listing":   c.runSignListing,
		"sign-offer":     c.runSignOffer,
		"encode-offer":   c.runEncodeOffer,
		"accept-listing": c.runAcceptListing,
		"accept-offer":   c.runAcceptOffer,
		"transfer-in":    c.runTransferIn,
		"claim":          c.runClaim,
		"set-operator":   c.runSetOperator,
		"bump-nonce":     c.runBumpNonce,
		"approve":        c.runApprove,
		"relay":          c.runRelay,
		"send-call":      c.runSendCall,
		"rental":         c.runRental,
		"nonces":         c.runNonces,
		"params":         c.runParams,
		"receipts":       c.runReceipts,
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(c.stderr, "Unknown command: %s\n", args[0])
		fmt.Fprintln(c.stderr, usage())
		return 1
	}
	return cmd(args[1:])
}

func usage() string {
	return strings.TrimSpace(`
Usage: rentals-cli [--rpc URL] <command> [flags]

Keys:
  keygen          --out PATH
  address         --key PATH

Signing (offline except for nonce lookups):
  sign-listing    --key PATH --contract ADDR --token-id N --expires +72h --price 10[,..] --max-days 30[,..] --min-days 1[,..] [--target ADDR]
  sign-offer      --key PATH --contract ADDR --token-id N --expires +72h --price N --days N --operator ADDR [--fingerprint HASH]
  encode-offer    --offer FILE

Calls:
  accept-listing  --key PATH --listing FILE --operator ADDR --days N [--index N] [--fingerprint HASH]
  accept-offer    --key PATH --offer FILE
  transfer-in     --key PATH --offer FILE
  claim           --key PATH --asset ADDR:ID[,ADDR:ID..]
  set-operator    --key PATH --asset ADDR:ID --operator ADDR
  bump-nonce      --key PATH --scope contract|signer|asset [--asset ADDR:ID]
  approve         --key PATH --token ADDR --amount N
  relay           --key PATH --signer-key PATH --data HEX
  send-call       --key PATH --to ADDR --data HEX

Queries:
  rental          --asset ADDR:ID
  nonces          --asset ADDR:ID --signer ADDR
  params
  receipts        --height N

Environment: RENTALS_RPC_URL, RENTALS_RPC_TOKEN, RENTALS_KEY_PASS`)
}

func applyGlobalFlags(args []string, endpoint string) ([]string, string, error) {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--rpc" {
			if i+1 >= len(args) {
				return nil, "", fmt.Errorf("missing value for --rpc")
			}
			endpoint = args[i+1]
			i++
			continue
		}
		if strings.HasPrefix(arg, "--rpc=") {
			endpoint = strings.TrimPrefix(arg, "--rpc=")
			continue
		}
		out = append(out, arg)
	}
	return out, endpoint, nil
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

// loadKeystore opens a v3 keystore, taking the passphrase from
// RENTALS_KEY_PASS or RENTALS_KEY_PASS_FILE.
func loadKeystore(path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("--key is required")
	}
	return passphrase.Unlock(path, passphrase.NewSource(keyPassEnv, "signing keystore"))
}

func (c *cli) fail(format string, args ...interface{}) int {
	fmt.Fprintf(c.stderr, "Error: "+format+"\n", args...)
	return 1
}

func (c *cli) printJSON(v interface{}) int {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return c.fail("encode output: %v", err)
	}
	return 0
}

func (c *cli) call(method string, params, out interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return c.client.Call(ctx, method, params, out)
}

// domain reads the engine address and chain id the node signs for.
func (c *cli) domain() (rentals.Domain, rpc.ParamsResult, error) {
	var params rpc.ParamsResult
	if err := c.call("rentals_getParams", nil, &params); err != nil {
		return rentals.Domain{}, params, err
	}
	chainID, ok := new(big.Int).SetString(params.ChainID, 10)
	if !ok {
		return rentals.Domain{}, params, fmt.Errorf("node reported invalid chain id %q", params.ChainID)
	}
	return rentals.Domain{ChainID: chainID, VerifyingContract: common.HexToAddress(params.Address)}, params, nil
}

func parseAddress(value string) (common.Address, error) {
	addr, err := crypto.ParseAddress(value)
	if err != nil {
		return common.Address{}, err
	}
	return addr.Common(), nil
}

func parseUint(value string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(value), 0)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid unsigned integer %q", value)
	}
	return v, nil
}

func parseUintList(value string) ([]*big.Int, error) {
	parts := strings.Split(value, ",")
	out := make([]*big.Int, 0, len(parts))
	for _, part := range parts {
		v, err := parseUint(part)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// parseAssets reads ADDR:ID pairs separated by commas.
func parseAssets(value string) ([]common.Address, []*big.Int, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil, fmt.Errorf("--asset is required")
	}
	var (
		contracts []common.Address
		ids       []*big.Int
	)
	for _, pair := range strings.Split(value, ",") {
		idx := strings.LastIndex(pair, ":")
		if idx <= 0 {
			return nil, nil, fmt.Errorf("asset %q must be ADDR:ID", pair)
		}
		addr, err := parseAddress(pair[:idx])
		if err != nil {
			return nil, nil, err
		}
		id, err := parseUint(pair[idx+1:])
		if err != nil {
			return nil, nil, err
		}
		contracts = append(contracts, addr)
		ids = append(ids, id)
	}
	return contracts, ids, nil
}

// parseExpiry accepts "+duration" relative to now or a unix timestamp.
func parseExpiry(value string, now time.Time) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if strings.HasPrefix(value, "+") {
		d, err := time.ParseDuration(strings.TrimPrefix(value, "+"))
		if err != nil {
			return nil, fmt.Errorf("invalid expiry %q: %w", value, err)
		}
		return big.NewInt(now.Add(d).Unix()), nil
	}
	return parseUint(value)
}

func readJSONFile(path string, out interface{}) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("file path required")
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
