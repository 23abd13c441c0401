package metatx

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"rentalchain/core/events"
	"rentalchain/core/state"
	"rentalchain/storage"
	"rentalchain/storage/trie"
)

var (
	hostAddr    = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	relayerAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")
)

type call struct {
	from common.Address
	data []byte
}

type recordingHost struct {
	store *state.Manager
	calls []call
	err   error
}

func (h *recordingHost) Dispatch(from common.Address, data []byte) error {
	h.calls = append(h.calls, call{from: from, data: append([]byte(nil), data...)})
	if err := h.store.KVPut([]byte("host/touched"), uint64(len(h.calls))); err != nil {
		return err
	}
	return h.err
}

type silentErr struct{}

func (silentErr) Error() string { return "" }

func newTestRelay(t *testing.T) (*Relay, *recordingHost, *events.Recorder) {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.Open(db, common.Hash{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := state.NewManager(tr)
	host := &recordingHost{store: store}
	rec := &events.Recorder{}
	relay := NewRelay(hostAddr, big.NewInt(1337), store, host)
	relay.SetEmitter(rec)
	return relay, host, rec
}

func TestExecuteAppendsSignerAndBumpsNonce(t *testing.T) {
	relay, host, rec := newTestRelay(t)
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)
	payload := []byte{0xca, 0xfe, 0xba, 0xbe, 0x01}

	for i := 0; i < 2; i++ {
		sig, err := relay.Sign(payload, key)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if err := relay.Execute(relayerAddr, from, payload, sig); err != nil {
			t.Fatalf("execute: %v", err)
		}
	}

	if len(host.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(host.calls))
	}
	if got := host.calls[0].from; got != hostAddr {
		t.Fatalf("expected self call from host, got %v", got)
	}
	want := append(append([]byte(nil), payload...), from.Bytes()...)
	if !bytes.Equal(host.calls[0].data, want) {
		t.Fatalf("expected signer appended to call data, got %x", host.calls[0].data)
	}

	nonce, err := relay.Nonce(from)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if got := nonce.Int64(); got != 2 {
		t.Fatalf("expected nonce 2, got %d", got)
	}

	executed := rec.OfType(EventTypeExecuted)
	if len(executed) != 2 {
		t.Fatalf("expected 2 executed events, got %d", len(executed))
	}
	if got := executed[1].Attr("nonce"); got != "1" {
		t.Fatalf("unexpected nonce attribute: got %v want %v", got, "1")
	}
	if got := executed[0].Attr("userAddress"); got != from.Hex() {
		t.Fatalf("unexpected userAddress attribute: got %v want %v", got, from.Hex())
	}
}

func TestExecuteRejectsBadSignatures(t *testing.T) {
	relay, host, _ := newTestRelay(t)
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	sig, err := relay.Sign(payload, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if err := relay.Execute(relayerAddr, from, []byte{0x09}, sig); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("execute: expected %v, got %v", ErrSignerMismatch, err)
	}
	if err := relay.Execute(relayerAddr, from, payload, sig[:10]); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("execute: expected %v, got %v", ErrSignerMismatch, err)
	}
	if err := relay.Execute(relayerAddr, common.Address{}, payload, sig); !errors.Is(err, ErrInvalidSigner) {
		t.Fatalf("execute: expected %v, got %v", ErrInvalidSigner, err)
	}

	other, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	if err := relay.Execute(relayerAddr, ethcrypto.PubkeyToAddress(other.PublicKey), payload, sig); !errors.Is(err, ErrSignerMismatch) {
		t.Fatalf("execute: expected %v, got %v", ErrSignerMismatch, err)
	}
	if got := len(host.calls); got != 0 {
		t.Fatalf("expected no calls, got %d", got)
	}
}

func TestExecuteRevertsOnInnerFailure(t *testing.T) {
	relay, host, rec := newTestRelay(t)
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)
	payload := []byte{0x01, 0x02, 0x03, 0x04}
	root := host.store.Root()

	inner := errors.New("rentals: NOT_LESSOR")
	host.err = inner
	sig, err := relay.Sign(payload, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if got := relay.Execute(relayerAddr, from, payload, sig); got != inner {
		t.Fatalf("expected inner error verbatim, got %v", got)
	}
	if got := host.store.Root(); got != root {
		t.Fatalf("expected state reverted, root %s want %s", got.Hex(), root.Hex())
	}

	host.err = silentErr{}
	if got := relay.Execute(relayerAddr, from, payload, sig); got != ErrReverted {
		t.Fatalf("expected %v for silent failure, got %v", ErrReverted, got)
	}

	nonce, err := relay.Nonce(from)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if got := nonce.Sign(); got != 0 {
		t.Fatalf("expected zero nonce, got %d", got)
	}
	if got := len(rec.OfType(EventTypeExecuted)); got != 0 {
		t.Fatalf("expected no executed events, got %d", got)
	}

	host.err = nil
	if err := relay.Execute(relayerAddr, from, payload, sig); err != nil {
		t.Fatalf("execute: %v", err)
	}
}

func TestHashBindsDomain(t *testing.T) {
	relay, _, _ := newTestRelay(t)
	other := NewRelay(relayerAddr, big.NewInt(1337), relay.store, relay.target)
	from := common.HexToAddress("0x01")

	a, err := relay.Hash(big.NewInt(0), from, []byte{1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := other.Hash(big.NewInt(0), from, []byte{1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if b == a {
		t.Fatalf("expected hash to depend on verifying contract")
	}
	c, err := relay.Hash(big.NewInt(1), from, []byte{1})
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if c == a {
		t.Fatalf("expected hash to depend on nonce")
	}
}

func TestExecuteWithoutState(t *testing.T) {
	relay := NewRelay(hostAddr, big.NewInt(1), nil, nil)
	if err := relay.Execute(relayerAddr, hostAddr, nil, nil); !errors.Is(err, ErrNilState) {
		t.Fatalf("execute: expected %v, got %v", ErrNilState, err)
	}
}

func TestNoncesAreScopedToHost(t *testing.T) {
	relay, _, _ := newTestRelay(t)
	sibling := NewRelay(relayerAddr, big.NewInt(1337), relay.store, &recordingHost{store: relay.store.(*state.Manager)})
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	from := ethcrypto.PubkeyToAddress(key.PublicKey)
	payload := []byte{0x01, 0x02, 0x03, 0x04}

	sig, err := relay.Sign(payload, key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := relay.Execute(relayerAddr, from, payload, sig); err != nil {
		t.Fatalf("execute: %v", err)
	}

	nonce, err := sibling.Nonce(from)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce.Sign() != 0 {
		t.Fatalf("expected sibling relay nonce untouched, got %s", nonce)
	}
	nonce, err = relay.Nonce(from)
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	if nonce.Int64() != 1 {
		t.Fatalf("expected nonce 1, got %s", nonce)
	}
}
