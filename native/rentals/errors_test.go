package rentals

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorTaxonomy(t *testing.T) {
	cases := []struct {
		err      error
		id       string
		category Category
	}{
		{ErrSignatureMismatch, "SIGNATURE_MISMATCH", CategoryAuthorization},
		{fmt.Errorf("%w: invalid length", ErrSignatureMismatch), "SIGNATURE_MISMATCH", CategoryAuthorization},
		{ErrSignerNonceMismatch, "SIGNER_NONCE_MISMATCH", CategoryReplay},
		{ErrExpiredSignature, "EXPIRED_SIGNATURE", CategoryTemporal},
		{ErrDaysNotInRange, "DAYS_NOT_IN_RANGE", CategoryRange},
		{fmt.Errorf("settle: %w", ErrAssetTransferredUnsafely), "ASSET_TRANSFERRED_UNSAFELY", CategoryCustody},
		{ErrReentrantCall, "REENTRANT_CALL", CategoryReentrancy},
		{errors.New("insufficient balance"), "", CategoryInternal},
	}
	for _, tc := range cases {
		if got := ErrorID(tc.err); got != tc.id {
			t.Fatalf("%v: id %q, want %q", tc.err, got, tc.id)
		}
		if got := CategoryOf(tc.err); got != tc.category {
			t.Fatalf("%v: category %q, want %q", tc.err, got, tc.category)
		}
	}
	if got := CategoryOf(nil); got != "" {
		t.Fatalf("expected empty category for nil, got %q", got)
	}
}
