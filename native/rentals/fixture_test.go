package rentals

import (
	"crypto/ecdsa"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentalchain/core/events"
	"rentalchain/core/state"
	"rentalchain/native/asset"
	"rentalchain/native/token"
	"rentalchain/storage"
	"rentalchain/storage/trie"
)

const (
	day       = int64(SecondsPerDay)
	startTime = 1_700_000_000
)

var (
	chainID      = big.NewInt(1337)
	engineAddr   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	tokenAddr    = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	landAddr     = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	estateAddr   = common.HexToAddress("0x00000000000000000000000000000000000000a3")
	ownerAddr    = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	collector    = common.HexToAddress("0x00000000000000000000000000000000000000b2")
	operatorAddr = common.HexToAddress("0x00000000000000000000000000000000000000b3")
)

type testCollab struct {
	assets map[common.Address]Asset
	tokens map[common.Address]PaymentToken
}

func (c *testCollab) Asset(addr common.Address) (Asset, bool) {
	a, ok := c.assets[addr]
	return a, ok
}

func (c *testCollab) PaymentToken(addr common.Address) (PaymentToken, bool) {
	tok, ok := c.tokens[addr]
	return tok, ok
}

type party struct {
	key  *ecdsa.PrivateKey
	addr common.Address
}

func newParty(t *testing.T) party {
	t.Helper()
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return party{key: key, addr: ethcrypto.PubkeyToAddress(key.PublicKey)}
}

type fixture struct {
	t      *testing.T
	now    int64
	store  *state.Manager
	engine *Engine
	token  *token.Token
	land   *asset.Registry
	estate *asset.Composite
	collab *testCollab
	rec    *events.Recorder
	lessor party
	tenant party
}

func newFixture(t *testing.T, fee uint64) *fixture {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.Open(db, common.Hash{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	f := &fixture{
		t:      t,
		now:    startTime,
		store:  state.NewManager(tr),
		rec:    &events.Recorder{},
		lessor: newParty(t),
		tenant: newParty(t),
	}
	f.engine = NewEngine(engineAddr, chainID)
	f.engine.SetState(f.store)
	f.engine.SetEmitter(f.rec)
	f.engine.SetNowFunc(func() int64 { return f.now })

	f.token = token.New(tokenAddr, ownerAddr, f.store)
	f.land = asset.NewRegistry(landAddr, ownerAddr, f.store)
	f.estate = asset.NewComposite(estateAddr, ownerAddr, f.store)
	receivers := func(addr common.Address) (asset.Receiver, bool) {
		if addr == engineAddr {
			return f.engine, true
		}
		return nil, false
	}
	f.land.SetReceivers(receivers)
	f.estate.SetReceivers(receivers)
	f.collab = &testCollab{
		assets: map[common.Address]Asset{landAddr: f.land, estateAddr: f.estate},
		tokens: map[common.Address]PaymentToken{tokenAddr: f.token},
	}
	f.engine.SetCollaborators(f.collab)
	if err := f.engine.Initialize(ownerAddr, tokenAddr, collector, fee); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	f.fund(f.tenant.addr, 1_000_000)
	f.mintLand(f.lessor.addr, 1)
	return f
}

func (f *fixture) fund(holder common.Address, amount int64) {
	f.t.Helper()
	if err := f.token.Mint(ownerAddr, holder, big.NewInt(amount)); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := f.token.Approve(holder, engineAddr, new(big.Int).Lsh(big.NewInt(1), 128)); err != nil {
		f.t.Fatalf("approve: %v", err)
	}
}

func (f *fixture) mintLand(to common.Address, id int64) {
	f.t.Helper()
	if err := f.land.Mint(ownerAddr, to, big.NewInt(id)); err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	if err := f.land.SetApprovalForAll(to, engineAddr, true); err != nil {
		f.t.Fatalf("set approval for all: %v", err)
	}
}

func (f *fixture) nonces(contract common.Address, id int64, signer common.Address) [3]*big.Int {
	f.t.Helper()
	n, err := f.engine.Nonces(contract, big.NewInt(id), signer)
	if err != nil {
		f.t.Fatalf("nonces: %v", err)
	}
	return n.Tuple()
}

// listing returns a signed single-tier listing of land id at 100 per day for
// 1 to 30 days.
func (f *fixture) listing(signer party, id int64) *Listing {
	f.t.Helper()
	l := &Listing{
		Signer:          signer.addr,
		ContractAddress: landAddr,
		TokenID:         big.NewInt(id),
		Expiration:      big.NewInt(f.now + day),
		Indexes:         f.nonces(landAddr, id, signer.addr),
		PricePerDay:     []*big.Int{big.NewInt(100)},
		MaxDays:         []*big.Int{big.NewInt(30)},
		MinDays:         []*big.Int{big.NewInt(1)},
	}
	f.signListing(signer, l)
	return l
}

func (f *fixture) signListing(signer party, l *Listing) {
	f.t.Helper()
	if err := SignListing(f.engine.Domain(), l, signer.key); err != nil {
		f.t.Fatalf("sign listing: %v", err)
	}
}

// offer returns a signed offer for land id.
func (f *fixture) offer(signer party, contract common.Address, id, days, price int64) *Offer {
	f.t.Helper()
	o := &Offer{
		Signer:          signer.addr,
		ContractAddress: contract,
		TokenID:         big.NewInt(id),
		Expiration:      big.NewInt(f.now + day),
		Indexes:         f.nonces(contract, id, signer.addr),
		PricePerDay:     big.NewInt(price),
		RentalDays:      big.NewInt(days),
		Operator:        operatorAddr,
	}
	f.signOffer(signer, o)
	return o
}

func (f *fixture) signOffer(signer party, o *Offer) {
	f.t.Helper()
	if err := SignOffer(f.engine.Domain(), o, signer.key); err != nil {
		f.t.Fatalf("sign offer: %v", err)
	}
}

func (f *fixture) acceptListing(caller common.Address, l *Listing, days int64) error {
	return f.engine.AcceptListing(caller, l, operatorAddr, big.NewInt(0), big.NewInt(days), [32]byte{})
}

func (f *fixture) rental(contract common.Address, id int64) *Rental {
	f.t.Helper()
	r, err := f.engine.Rental(contract, big.NewInt(id))
	if err != nil {
		f.t.Fatalf("rental: %v", err)
	}
	return r
}

func (f *fixture) balance(holder common.Address) int64 {
	f.t.Helper()
	b, err := f.token.BalanceOf(holder)
	if err != nil {
		f.t.Fatalf("balance of: %v", err)
	}
	return b.Int64()
}

func (f *fixture) ownerOf(reg interface {
	OwnerOf(*big.Int) (common.Address, error)
}, id int64) common.Address {
	f.t.Helper()
	owner, err := reg.OwnerOf(big.NewInt(id))
	if err != nil {
		f.t.Fatalf("owner of: %v", err)
	}
	return owner
}

func (f *fixture) operatorOf(id int64) common.Address {
	f.t.Helper()
	op, err := f.land.UpdateOperator(big.NewInt(id))
	if err != nil {
		f.t.Fatalf("update operator: %v", err)
	}
	return op
}

func (f *fixture) isRented(contract common.Address, id int64) bool {
	f.t.Helper()
	rented, err := f.engine.IsRented(contract, big.NewInt(id))
	if err != nil {
		f.t.Fatalf("is rented: %v", err)
	}
	return rented
}
