package rpc

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentalchain/core"
	"rentalchain/core/types"
	"rentalchain/native/asset"
	"rentalchain/native/rentals"
	"rentalchain/native/token"
	"rentalchain/storage"
)

const testAuthToken = "rpc-test-token"

var (
	testChainID   = big.NewInt(4242)
	rentalsAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	landAddr      = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	collectorAddr = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	operatorAddr  = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

type account struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newAccount(t *testing.T) account {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return account{key: key, addr: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

type fixture struct {
	t      *testing.T
	now    time.Time
	node   *core.Node
	server *Server
	http   *httptest.Server
	client *Client
	owner  account
	lessor account
	tenant account
}

func newFixture(t *testing.T, cfg ServerConfig) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	f := &fixture{
		t:      t,
		now:    time.Unix(1_700_000_000, 0),
		owner:  newAccount(t),
		lessor: newAccount(t),
		tenant: newAccount(t),
	}
	genesis := core.Genesis{
		ChainID:      testChainID,
		Rentals:      rentalsAddr,
		Owner:        f.owner.addr,
		Token:        tokenAddr,
		TokenMinter:  f.owner.addr,
		FeeCollector: collectorAddr,
		Fee:          100_000,
		Assets:       []core.GenesisAsset{{Address: landAddr, Kind: core.AssetKindRegistry, Minter: f.owner.addr}},
	}
	node, err := core.NewNode(db, genesis, core.WithClock(func() time.Time { return f.now }))
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	f.node = node
	if cfg.AuthToken == "" {
		cfg.AuthToken = testAuthToken
	}
	f.server = NewServer(node, cfg)
	f.http = httptest.NewServer(f.server.Handler())
	t.Cleanup(f.http.Close)
	f.client = NewClient(f.http.URL, cfg.AuthToken)
	return f
}

func (f *fixture) exec(from account, to common.Address, data []byte, packErr error) {
	f.t.Helper()
	if packErr != nil {
		f.t.Fatalf("pack: %v", packErr)
	}
	nonce, err := f.node.Chain().Nonce(from.addr)
	if err != nil {
		f.t.Fatalf("nonce: %v", err)
	}
	call := &types.Call{ChainID: testChainID, Nonce: nonce, To: to, Data: data}
	if err := call.Sign(from.key); err != nil {
		f.t.Fatalf("sign: %v", err)
	}
	if _, err := f.node.Chain().Execute(call); err != nil {
		f.t.Fatalf("execute: %v", err)
	}
}

// setup funds the tenant and hands land 1 to the lessor.
func (f *fixture) setup() {
	f.t.Helper()
	data, err := token.PackMint(f.tenant.addr, big.NewInt(10_000))
	f.exec(f.owner, tokenAddr, data, err)
	data, err = token.PackApprove(rentalsAddr, big.NewInt(10_000))
	f.exec(f.tenant, tokenAddr, data, err)
	data, err = asset.PackMint(f.lessor.addr, big.NewInt(1))
	f.exec(f.owner, landAddr, data, err)
	data, err = asset.PackSetApprovalForAll(rentalsAddr, true)
	f.exec(f.lessor, landAddr, data, err)
}

func (f *fixture) listing() *rentals.Listing {
	f.t.Helper()
	l := &rentals.Listing{
		Signer:          f.lessor.addr,
		ContractAddress: landAddr,
		TokenID:         big.NewInt(1),
		Expiration:      big.NewInt(f.now.Unix() + rentals.SecondsPerDay),
		Indexes:         [3]*big.Int{big.NewInt(0), big.NewInt(0), big.NewInt(0)},
		PricePerDay:     []*big.Int{big.NewInt(10)},
		MaxDays:         []*big.Int{big.NewInt(30)},
		MinDays:         []*big.Int{big.NewInt(1)},
	}
	if err := rentals.SignListing(f.node.Engine().Domain(), l, f.lessor.key); err != nil {
		f.t.Fatalf("sign listing: %v", err)
	}
	return l
}

// authorize signs the engine call packed in data for from at its next nonce.
func (f *fixture) authorize(from account, data []byte, packErr error) CallAuth {
	f.t.Helper()
	if packErr != nil {
		f.t.Fatalf("pack: %v", packErr)
	}
	var nonce uint64
	if err := f.client.Call(context.Background(), "chain_getNonce", addressParams{Address: from.addr.Hex()}, &nonce); err != nil {
		f.t.Fatalf("chain_getNonce: %v", err)
	}
	auth, err := Authorize(testChainID, nonce, rentalsAddr, data, from.key)
	if err != nil {
		f.t.Fatalf("authorize: %v", err)
	}
	return auth
}
