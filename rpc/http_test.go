package rpc

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"rentalchain/native/rentals"
)

func asRPCError(t *testing.T, err error) *RPCError {
	t.Helper()
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) {
		t.Fatalf("expected rpc error, got %v", err)
	}
	return rpcErr
}

func revertID(t *testing.T, rpcErr *RPCError) string {
	t.Helper()
	data, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected error data %#v", rpcErr.Data)
	}
	id, _ := data["id"].(string)
	return id
}

func TestClientSourceUsesRemoteAddress(t *testing.T) {
	server := NewServer(nil, ServerConfig{})
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	if source := server.clientSource(req); source != "10.0.0.5" {
		t.Fatalf("expected remote address, got %q", source)
	}
}

func TestHandleRejectsMalformedRequests(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"empty", "", http.StatusBadRequest},
		{"garbage", "{not json", http.StatusBadRequest},
		{"version", `{"jsonrpc":"1.0","method":"chain_blockNumber","id":1}`, http.StatusBadRequest},
		{"no method", `{"jsonrpc":"2.0","id":1}`, http.StatusBadRequest},
		{"unknown method", `{"jsonrpc":"2.0","method":"nope","id":1}`, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := http.Post(f.http.URL, "application/json", strings.NewReader(tc.body))
			if err != nil {
				t.Fatalf("post: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			if resp.Header.Get(requestIDHeader) == "" {
				t.Fatalf("expected request id header")
			}
		})
	}
}

func TestMutatingMethodsRequireBearerToken(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	anon := NewClient(f.http.URL, "")
	err := anon.Call(context.Background(), "rentals_bumpSignerNonce", callOnlyParams{}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", rpcErr)
	}

	wrong := NewClient(f.http.URL, "not-the-token")
	err = wrong.Call(context.Background(), "rentals_bumpSignerNonce", callOnlyParams{}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeUnauthorized {
		t.Fatalf("expected unauthorized, got %+v", rpcErr)
	}

	// reads stay open
	var height uint64
	if err := anon.Call(context.Background(), "chain_blockNumber", nil, &height); err != nil {
		t.Fatalf("chain_blockNumber: %v", err)
	}
}

func TestAcceptListingOverRPC(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	f.setup()
	ctx := context.Background()

	listing := f.listing()
	days := big.NewInt(3)
	var fingerprint [32]byte
	data, err := rentals.PackAcceptListing(listing, operatorAddr, big.NewInt(0), days, fingerprint)
	params := acceptListingParams{
		Call:       f.authorize(f.tenant, data, err),
		Listing:    NewListingJSON(listing),
		Operator:   operatorAddr.Hex(),
		Index:      "0",
		RentalDays: days.String(),
	}
	var receipt ReceiptResult
	if err := f.client.Call(ctx, "rentals_acceptListing", params, &receipt); err != nil {
		t.Fatalf("rentals_acceptListing: %v", err)
	}
	if receipt.Status != "success" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	rented := false
	for _, evt := range receipt.Events {
		if evt.Type == rentals.EventTypeAssetRented {
			rented = true
		}
	}
	if !rented {
		t.Fatalf("expected asset rented event in %+v", receipt.Events)
	}

	var record RentalResult
	if err := f.client.Call(ctx, "rentals_getRental", assetParams{Contract: landAddr.Hex(), TokenID: "1"}, &record); err != nil {
		t.Fatalf("rentals_getRental: %v", err)
	}
	if !record.IsRented || record.Tenant != f.tenant.addr.Hex() || record.Lessor != f.lessor.addr.Hex() {
		t.Fatalf("unexpected rental %+v", record)
	}
	wantEnd := f.now.Unix() + 3*rentals.SecondsPerDay
	if record.EndDate != big.NewInt(wantEnd).String() {
		t.Fatalf("expected end date %d, got %s", wantEnd, record.EndDate)
	}

	var balance string
	if err := f.client.Call(ctx, "token_balanceOf", addressParams{Address: f.lessor.addr.Hex()}, &balance); err != nil {
		t.Fatalf("token_balanceOf: %v", err)
	}
	if balance != "27" {
		t.Fatalf("expected lessor share 27, got %s", balance)
	}
	if err := f.client.Call(ctx, "token_balanceOf", addressParams{Address: collectorAddr.Hex()}, &balance); err != nil {
		t.Fatalf("token_balanceOf: %v", err)
	}
	if balance != "3" {
		t.Fatalf("expected collector share 3, got %s", balance)
	}

	var owner string
	if err := f.client.Call(ctx, "asset_ownerOf", assetParams{Contract: landAddr.Hex(), TokenID: "1"}, &owner); err != nil {
		t.Fatalf("asset_ownerOf: %v", err)
	}
	if owner != rentalsAddr.Hex() {
		t.Fatalf("expected engine custody, got %s", owner)
	}

	var nonces NoncesResult
	err = f.client.Call(ctx, "rentals_getNonces", noncesParams{Contract: landAddr.Hex(), TokenID: "1", Signer: f.lessor.addr.Hex()}, &nonces)
	if err != nil {
		t.Fatalf("rentals_getNonces: %v", err)
	}
	if nonces.Asset != "1" || nonces.Indexes[rentals.NonceAsset] != "1" {
		t.Fatalf("expected asset nonce bump, got %+v", nonces)
	}

	var allowed bool
	err = f.client.Call(ctx, "rentals_canDelegate", canDelegateParams{Contract: landAddr.Hex(), TokenID: "1", Caller: f.tenant.addr.Hex()}, &allowed)
	if err != nil || !allowed {
		t.Fatalf("expected tenant to hold the delegation gate, got %v %v", allowed, err)
	}
}

func TestRevertedCallCarriesErrorID(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	f.setup()
	ctx := context.Background()

	contracts := []common.Address{landAddr}
	ids := []*big.Int{big.NewInt(1)}
	data, err := rentals.PackClaim(contracts, ids)
	params := claimParams{
		Call:      f.authorize(f.tenant, data, err),
		Contracts: []string{landAddr.Hex()},
		TokenIDs:  []string{"1"},
	}
	err = f.client.Call(ctx, "rentals_claim", params, nil)
	rpcErr := asRPCError(t, err)
	if rpcErr.Code != codeReverted {
		t.Fatalf("expected revert code, got %+v", rpcErr)
	}
	if id := revertID(t, rpcErr); id != "NOT_LESSOR" {
		t.Fatalf("expected NOT_LESSOR, got %q", id)
	}

	// the failed call consumed the tenant's nonce, so replaying it is rejected
	err = f.client.Call(ctx, "rentals_claim", params, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeCallRejected {
		t.Fatalf("expected rejected replay, got %+v", rpcErr)
	}
}

func TestTamperedParamsDoNotMatchAuthorization(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	data, err := rentals.PackBumpAssetNonce(landAddr, big.NewInt(1))
	params := bumpAssetNonceParams{
		Call:     f.authorize(f.lessor, data, err),
		Contract: landAddr.Hex(),
		TokenID:  "2",
	}
	err = f.client.Call(ctx, "rentals_bumpAssetNonce", params, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeCallRejected {
		t.Fatalf("expected sender mismatch rejection, got %+v", rpcErr)
	}

	params.TokenID = "1"
	params.Call = f.authorize(f.lessor, data, nil)
	var receipt ReceiptResult
	if err := f.client.Call(ctx, "rentals_bumpAssetNonce", params, &receipt); err != nil {
		t.Fatalf("rentals_bumpAssetNonce: %v", err)
	}
	if len(receipt.Events) != 1 || receipt.Events[0].Type != rentals.EventTypeAssetNonceUpdated {
		t.Fatalf("unexpected events %+v", receipt.Events)
	}
}

func TestInvalidParamsAreRejected(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	err := f.client.Call(ctx, "rentals_isRented", assetParams{Contract: "not-an-address", TokenID: "1"}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", rpcErr)
	}
	err = f.client.Call(ctx, "rentals_isRented", assetParams{Contract: landAddr.Hex(), TokenID: "-1"}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected invalid params, got %+v", rpcErr)
	}
	err = f.client.Call(ctx, "rentals_isRented", map[string]string{"contract": landAddr.Hex(), "tokenId": "1", "extra": "x"}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected unknown fields to be rejected, got %+v", rpcErr)
	}
	err = f.client.Call(ctx, "chain_getBlock", heightParams{Height: 99}, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeInvalidParams {
		t.Fatalf("expected missing block, got %+v", rpcErr)
	}
}

func TestRateLimitThrottlesMutatingMethods(t *testing.T) {
	f := newFixture(t, ServerConfig{RateLimit: 0.001, RateBurst: 1})
	ctx := context.Background()

	data, err := rentals.PackBumpSignerNonce()
	params := callOnlyParams{Call: f.authorize(f.lessor, data, err)}
	if err := f.client.Call(ctx, "rentals_bumpSignerNonce", params, nil); err != nil {
		t.Fatalf("first bump: %v", err)
	}
	params.Call = f.authorize(f.lessor, data, nil)
	err = f.client.Call(ctx, "rentals_bumpSignerNonce", params, nil)
	if rpcErr := asRPCError(t, err); rpcErr.Code != codeRateLimited {
		t.Fatalf("expected rate limit, got %+v", rpcErr)
	}
}

func TestParamsAndHashes(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	var params ParamsResult
	if err := f.client.Call(ctx, "rentals_getParams", nil, &params); err != nil {
		t.Fatalf("rentals_getParams: %v", err)
	}
	if params.Fee != 100_000 || params.Owner != f.owner.addr.Hex() || params.ChainID != testChainID.String() {
		t.Fatalf("unexpected params %+v", params)
	}

	listing := f.listing()
	want, err := rentals.HashListing(f.node.Engine().Domain(), listing)
	if err != nil {
		t.Fatalf("hash listing: %v", err)
	}
	var got hashResult
	if err := f.client.Call(ctx, "rentals_hashListing", hashListingParams{Listing: NewListingJSON(listing)}, &got); err != nil {
		t.Fatalf("rentals_hashListing: %v", err)
	}
	if got.Hash != want || got.Signer != f.lessor.addr.Hex() {
		t.Fatalf("unexpected hash result %+v", got)
	}
}

func TestSendCallAppliesSignedCall(t *testing.T) {
	f := newFixture(t, ServerConfig{})
	ctx := context.Background()

	data, err := rentals.ABI().Pack("setFee", big.NewInt(50_000))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	auth := f.authorize(f.owner, data, nil)
	call, err := auth.call(testChainID, rentalsAddr, data)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	var receipt ReceiptResult
	if err := f.client.Call(ctx, "chain_sendCall", NewCallJSON(call), &receipt); err != nil {
		t.Fatalf("chain_sendCall: %v", err)
	}
	var params ParamsResult
	if err := f.client.Call(ctx, "rentals_getParams", nil, &params); err != nil {
		t.Fatalf("rentals_getParams: %v", err)
	}
	if params.Fee != 50_000 {
		t.Fatalf("expected fee 50000, got %d", params.Fee)
	}

	var receipts []ReceiptResult
	if err := f.client.Call(ctx, "chain_getReceipts", heightParams{Height: receipt.Height}, &receipts); err != nil {
		t.Fatalf("chain_getReceipts: %v", err)
	}
	if len(receipts) != 1 || receipts[0].CallHash != receipt.CallHash {
		t.Fatalf("unexpected receipts %+v", receipts)
	}
}
