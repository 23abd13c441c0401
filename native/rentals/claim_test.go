package rentals

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestClaimRoundTrip(t *testing.T) {
	f := newFixture(t, 0)
	if err := f.acceptListing(f.tenant.addr, f.listing(f.lessor, 1), 1); err != nil {
		t.Fatalf("accept listing: %v", err)
	}

	claim := func(caller common.Address) error {
		return f.engine.Claim(caller, []common.Address{landAddr}, []*big.Int{big.NewInt(1)})
	}
	if err := claim(f.lessor.addr); !errors.Is(err, ErrCurrentlyRented) {
		t.Fatalf("claim: expected %v, got %v", ErrCurrentlyRented, err)
	}

	f.now += 2 * day
	if err := claim(f.tenant.addr); !errors.Is(err, ErrNotLessor) {
		t.Fatalf("claim: expected %v, got %v", ErrNotLessor, err)
	}
	if err := claim(f.lessor.addr); err != nil {
		t.Fatalf("claim: %v", err)
	}

	if got := f.ownerOf(f.land, 1); got != f.lessor.addr {
		t.Fatalf("unexpected owner: got %v want %v", got, f.lessor.addr)
	}
	r := f.rental(landAddr, 1)
	if got := r.Lessor; got != (common.Address{}) {
		t.Fatalf("unexpected lessor: got %v want %v", got, common.Address{})
	}
	if got := r.Tenant; got != (common.Address{}) {
		t.Fatalf("unexpected tenant: got %v want %v", got, common.Address{})
	}
	if got := r.EndDate.Sign(); got != 0 {
		t.Fatalf("expected zero end date, got %d", got)
	}
	claimed := f.rec.OfType(EventTypeAssetClaimed)
	if len(claimed) != 1 {
		t.Fatalf("expected 1 claim event, got %d", len(claimed))
	}
	if got := claimed[0].Attr("lessor"); got != f.lessor.addr.Hex() {
		t.Fatalf("unexpected lessor attribute: got %v want %v", got, f.lessor.addr.Hex())
	}

	// the asset changes hands and is rented out by its new owner
	newLessor := newParty(t)
	if err := f.land.TransferFrom(f.lessor.addr, f.lessor.addr, newLessor.addr, big.NewInt(1)); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	if err := f.land.SetApprovalForAll(newLessor.addr, engineAddr, true); err != nil {
		t.Fatalf("set approval for all: %v", err)
	}
	if err := f.acceptListing(f.tenant.addr, f.listing(newLessor, 1), 1); err != nil {
		t.Fatalf("accept listing: %v", err)
	}
	if got := f.rental(landAddr, 1).Lessor; got != newLessor.addr {
		t.Fatalf("unexpected lessor: got %v want %v", got, newLessor.addr)
	}
}

func TestClaimBatch(t *testing.T) {
	f := newFixture(t, 0)
	f.mintLand(f.lessor.addr, 2)
	if err := f.acceptListing(f.tenant.addr, f.listing(f.lessor, 1), 1); err != nil {
		t.Fatalf("accept listing: %v", err)
	}
	if err := f.acceptListing(f.tenant.addr, f.listing(f.lessor, 2), 5); err != nil {
		t.Fatalf("accept listing: %v", err)
	}

	if err := f.engine.Claim(f.lessor.addr, nil, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := f.engine.Claim(f.lessor.addr, []common.Address{landAddr}, nil); !errors.Is(err, ErrLengthMismatch) {
		t.Fatalf("claim: expected %v, got %v", ErrLengthMismatch, err)
	}

	f.now += 2 * day
	contracts := []common.Address{landAddr, landAddr}
	ids := []*big.Int{big.NewInt(1), big.NewInt(2)}
	if err := f.engine.Claim(f.lessor.addr, contracts, ids); !errors.Is(err, ErrCurrentlyRented) {
		t.Fatalf("claim: expected %v, got %v", ErrCurrentlyRented, err)
	}
	if got := f.ownerOf(f.land, 1); got != engineAddr {
		t.Fatalf("unexpected owner: got %v want %v", got, engineAddr)
	}
	if got := f.rental(landAddr, 1).Lessor; got != f.lessor.addr {
		t.Fatalf("unexpected lessor: got %v want %v", got, f.lessor.addr)
	}
	if got := len(f.rec.OfType(EventTypeAssetClaimed)); got != 0 {
		t.Fatalf("expected no asset claimed events, got %d", got)
	}

	f.now += 4 * day
	if err := f.engine.Claim(f.lessor.addr, contracts, ids); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if got := len(f.rec.OfType(EventTypeAssetClaimed)); got != 2 {
		t.Fatalf("expected 2 asset claimed events, got %d", got)
	}
}

func TestClaimNeverRentedAsset(t *testing.T) {
	f := newFixture(t, 0)
	err := f.engine.Claim(f.lessor.addr, []common.Address{landAddr}, []*big.Int{big.NewInt(1)})
	if !errors.Is(err, ErrNotLessor) {
		t.Fatalf("expected %v, got %v", ErrNotLessor, err)
	}
	if got := CategoryOf(err); got != CategoryCustody {
		t.Fatalf("unexpected category: got %v want %v", got, CategoryCustody)
	}
}
