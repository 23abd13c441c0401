package asset

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/core/state"
	"rentalchain/storage"
	"rentalchain/storage/trie"
)

var (
	registryAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	minter       = common.HexToAddress("0x00000000000000000000000000000000000000b1")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000c2")
	vault        = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func newStore(t *testing.T) *state.Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.Open(db, common.Hash{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return state.NewManager(tr)
}

type hookFunc func(assetContract, operator, from common.Address, tokenID *big.Int, data []byte) ([4]byte, error)

func (f hookFunc) OnERC721Received(assetContract, operator, from common.Address, tokenID *big.Int, data []byte) ([4]byte, error) {
	return f(assetContract, operator, from, tokenID, data)
}

func TestTransferRequiresOwnerOrOperator(t *testing.T) {
	reg := NewRegistry(registryAddr, minter, newStore(t))
	id := big.NewInt(7)
	if err := reg.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.Mint(minter, bob, id); !errors.Is(err, ErrTokenExists) {
		t.Fatalf("mint: expected %v, got %v", ErrTokenExists, err)
	}

	if err := reg.TransferFrom(bob, alice, bob, id); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("transfer from: expected %v, got %v", ErrNotAuthorized, err)
	}
	if err := reg.SetApprovalForAll(alice, bob, true); err != nil {
		t.Fatalf("set approval for all: %v", err)
	}
	if err := reg.TransferFrom(bob, bob, alice, id); !errors.Is(err, ErrWrongFrom) {
		t.Fatalf("transfer from: expected %v, got %v", ErrWrongFrom, err)
	}
	if err := reg.TransferFrom(bob, alice, bob, id); err != nil {
		t.Fatalf("transfer from: %v", err)
	}

	owner, err := reg.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != bob {
		t.Fatalf("unexpected owner: got %v want %v", owner, bob)
	}
}

func TestTransferClearsUpdateOperator(t *testing.T) {
	reg := NewRegistry(registryAddr, minter, newStore(t))
	id := big.NewInt(1)
	if err := reg.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := reg.SetUpdateOperator(alice, id, bob); err != nil {
		t.Fatalf("set update operator: %v", err)
	}
	op, err := reg.UpdateOperator(id)
	if err != nil {
		t.Fatalf("update operator: %v", err)
	}
	if op != bob {
		t.Fatalf("unexpected op: got %v want %v", op, bob)
	}

	if err := reg.TransferFrom(alice, alice, vault, id); err != nil {
		t.Fatalf("transfer from: %v", err)
	}
	op, err = reg.UpdateOperator(id)
	if err != nil {
		t.Fatalf("update operator: %v", err)
	}
	if op != (common.Address{}) {
		t.Fatalf("unexpected op: got %v want %v", op, common.Address{})
	}
}

func TestSafeTransferInvokesReceiver(t *testing.T) {
	reg := NewRegistry(registryAddr, minter, newStore(t))
	id := big.NewInt(3)
	if err := reg.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}

	var gotData []byte
	var gotFrom common.Address
	reg.SetReceivers(func(addr common.Address) (Receiver, bool) {
		if addr != vault {
			return nil, false
		}
		return hookFunc(func(assetContract, operator, from common.Address, tokenID *big.Int, data []byte) ([4]byte, error) {
			if assetContract != registryAddr {
				t.Errorf("unexpected asset contract: got %v want %v", assetContract, registryAddr)
			}
			gotFrom, gotData = from, data
			return ERC721ReceivedSelector, nil
		}), true
	})

	if err := reg.SafeTransferFrom(alice, alice, vault, id, []byte{0x01}); err != nil {
		t.Fatalf("safe transfer from: %v", err)
	}
	if gotFrom != alice {
		t.Fatalf("unexpected hook from: got %v want %v", gotFrom, alice)
	}
	if !bytes.Equal(gotData, []byte{0x01}) {
		t.Fatalf("unexpected hook data: %x", gotData)
	}

	// plain accounts have no hook
	if err := reg.SetApprovalForAll(vault, alice, true); err != nil {
		t.Fatalf("set approval for all: %v", err)
	}
	if err := reg.SafeTransferFrom(alice, vault, bob, id, nil); err != nil {
		t.Fatalf("safe transfer from: %v", err)
	}
}

func TestSafeTransferRevertsWhenReceiverFails(t *testing.T) {
	reg := NewRegistry(registryAddr, minter, newStore(t))
	id := big.NewInt(4)
	if err := reg.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	hookErr := errors.New("rejected")
	reg.SetReceivers(func(addr common.Address) (Receiver, bool) {
		return hookFunc(func(common.Address, common.Address, common.Address, *big.Int, []byte) ([4]byte, error) {
			return [4]byte{}, hookErr
		}), true
	})

	if err := reg.SafeTransferFrom(alice, alice, vault, id, nil); !errors.Is(err, hookErr) {
		t.Fatalf("safe transfer from: expected %v, got %v", hookErr, err)
	}
	owner, err := reg.OwnerOf(id)
	if err != nil {
		t.Fatalf("owner of: %v", err)
	}
	if owner != alice {
		t.Fatalf("unexpected owner: got %v want %v", owner, alice)
	}

	reg.SetReceivers(func(addr common.Address) (Receiver, bool) {
		return hookFunc(func(common.Address, common.Address, common.Address, *big.Int, []byte) ([4]byte, error) {
			return [4]byte{0xde, 0xad, 0xbe, 0xef}, nil
		}), true
	})
	if err := reg.SafeTransferFrom(alice, alice, vault, id, nil); !errors.Is(err, ErrUnsafeRecipient) {
		t.Fatalf("safe transfer from: expected %v, got %v", ErrUnsafeRecipient, err)
	}
}

func TestCompositeFingerprintTracksLands(t *testing.T) {
	estate := NewComposite(registryAddr, minter, newStore(t))
	id := big.NewInt(10)
	if err := estate.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !estate.SupportsInterface(InterfaceFingerprint) || !estate.SupportsInterface(InterfaceERC721) {
		t.Fatalf("composite must advertise fingerprint and ERC721 interfaces")
	}
	if NewRegistry(registryAddr, minter, nil).SupportsInterface(InterfaceFingerprint) {
		t.Fatalf("plain registry must not advertise fingerprint interface")
	}

	if err := estate.AddLand(alice, id, big.NewInt(200)); err != nil {
		t.Fatalf("add land: %v", err)
	}
	if err := estate.AddLand(alice, id, big.NewInt(100)); err != nil {
		t.Fatalf("add land: %v", err)
	}
	if err := estate.AddLand(alice, id, big.NewInt(100)); !errors.Is(err, ErrLandOwned) {
		t.Fatalf("add land: expected %v, got %v", ErrLandOwned, err)
	}

	fp, err := estate.Fingerprint(id)
	if err != nil {
		t.Fatalf("fingerprint: %v", err)
	}
	ok, err := estate.VerifyFingerprint(id, fp[:])
	if err != nil {
		t.Fatalf("verify fingerprint: %v", err)
	}
	if !ok {
		t.Fatalf("expected fingerprint to verify")
	}

	if err := estate.RemoveLand(alice, id, big.NewInt(200)); err != nil {
		t.Fatalf("remove land: %v", err)
	}
	ok, err = estate.VerifyFingerprint(id, fp[:])
	if err != nil {
		t.Fatalf("verify fingerprint: %v", err)
	}
	if ok {
		t.Fatalf("expected stale fingerprint to fail after removing a land")
	}
}

func TestCompositeLandOperators(t *testing.T) {
	estate := NewComposite(registryAddr, minter, newStore(t))
	id := big.NewInt(11)
	if err := estate.Mint(minter, alice, id); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := estate.AddLand(alice, id, big.NewInt(1)); err != nil {
		t.Fatalf("add land: %v", err)
	}
	if err := estate.AddLand(alice, id, big.NewInt(2)); err != nil {
		t.Fatalf("add land: %v", err)
	}

	if err := estate.SetManyLandUpdateOperator(bob, id, []*big.Int{big.NewInt(1)}, bob); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("set many land update operator: expected %v, got %v", ErrNotAuthorized, err)
	}
	if err := estate.SetManyLandUpdateOperator(alice, id, []*big.Int{big.NewInt(3)}, bob); !errors.Is(err, ErrLandNotInEstate) {
		t.Fatalf("set many land update operator: expected %v, got %v", ErrLandNotInEstate, err)
	}
	if err := estate.SetManyLandUpdateOperator(alice, id, []*big.Int{big.NewInt(1), big.NewInt(2)}, bob); err != nil {
		t.Fatalf("set many land update operator: %v", err)
	}

	op, err := estate.LandUpdateOperator(big.NewInt(2))
	if err != nil {
		t.Fatalf("land update operator: %v", err)
	}
	if op != bob {
		t.Fatalf("unexpected op: got %v want %v", op, bob)
	}
}
