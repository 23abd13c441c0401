package rentals

import (
	"errors"
	"strings"
)

const errPrefix = "rentals: "

var (
	// ErrSignatureMismatch indicates the recovered signer differs from the signer named in the message.
	ErrSignatureMismatch = errors.New("rentals: SIGNATURE_MISMATCH")
	// ErrCallerCannotBeSigner indicates a signer attempted to act as their own counterpart.
	ErrCallerCannotBeSigner = errors.New("rentals: CALLER_CANNOT_BE_SIGNER")
	// ErrTargetMismatch indicates the listing is restricted to a different redeemer.
	ErrTargetMismatch = errors.New("rentals: TARGET_MISMATCH")
	ErrNotOwner       = errors.New("rentals: NOT_OWNER")

	ErrContractNonceMismatch = errors.New("rentals: CONTRACT_NONCE_MISMATCH")
	ErrSignerNonceMismatch   = errors.New("rentals: SIGNER_NONCE_MISMATCH")
	ErrAssetNonceMismatch    = errors.New("rentals: ASSET_NONCE_MISMATCH")

	// ErrExpiredSignature indicates the message expiration is in the past.
	ErrExpiredSignature = errors.New("rentals: EXPIRED_SIGNATURE")
	// ErrCurrentlyRented indicates the asset is inside an active rental period.
	ErrCurrentlyRented = errors.New("rentals: CURRENTLY_RENTED")
	// ErrCannotSetUpdateOperator indicates the caller may not change the delegate in the current phase.
	ErrCannotSetUpdateOperator = errors.New("rentals: CANNOT_SET_UPDATE_OPERATOR")

	ErrLengthMismatch          = errors.New("rentals: LENGTH_MISMATCH")
	ErrIndexOutOfBounds        = errors.New("rentals: INDEX_OUT_OF_BOUNDS")
	ErrMinDaysIsZero           = errors.New("rentals: MIN_DAYS_IS_ZERO")
	ErrMaxDaysLowerThanMinDays = errors.New("rentals: MAX_DAYS_LOWER_THAN_MIN_DAYS")
	ErrDaysNotInRange          = errors.New("rentals: DAYS_NOT_IN_RANGE")
	ErrRentalDaysIsZero        = errors.New("rentals: RENTAL_DAYS_IS_ZERO")
	// ErrInvalidFee indicates a fee above 1,000,000 parts per million.
	ErrInvalidFee = errors.New("rentals: INVALID_FEE")
	// ErrArithmeticOverflow indicates a price or end date that does not fit in 256 bits.
	ErrArithmeticOverflow = errors.New("rentals: ARITHMETIC_OVERFLOW")

	// ErrAssetTransferredUnsafely indicates the engine holds the asset without a recorded lessor.
	ErrAssetTransferredUnsafely = errors.New("rentals: ASSET_TRANSFERRED_UNSAFELY")
	ErrNotOriginalOwner         = errors.New("rentals: NOT_ORIGINAL_OWNER")
	ErrNotLessor                = errors.New("rentals: NOT_LESSOR")
	// ErrAssetMismatch indicates a transfer-in payload names a different asset than the one received.
	ErrAssetMismatch        = errors.New("rentals: ASSET_MISMATCH")
	ErrInvalidFingerprint   = errors.New("rentals: INVALID_FINGERPRINT")
	ErrOperatorNotSupported = errors.New("rentals: OPERATOR_NOT_SUPPORTED")
	// ErrUnknownAsset indicates the asset contract is not registered with the host.
	ErrUnknownAsset = errors.New("rentals: UNKNOWN_ASSET")
	// ErrTokenNotConfigured indicates a paid rental was attempted before the payment token was set.
	ErrTokenNotConfigured = errors.New("rentals: TOKEN_NOT_CONFIGURED")

	// ErrReentrantCall indicates a guarded entry point was re-entered mid-call.
	ErrReentrantCall = errors.New("rentals: REENTRANT_CALL")

	ErrAlreadyInitialized = errors.New("rentals: ALREADY_INITIALIZED")
	ErrNilState           = errors.New("rentals: STATE_NOT_CONFIGURED")
	// ErrInvalidCall indicates call data that could not be decoded against the engine ABI.
	ErrInvalidCall = errors.New("rentals: INVALID_CALL")
)

// Category groups errors by the kind of check that rejected the call.
type Category string

const (
	CategoryAuthorization Category = "authorization"
	CategoryReplay        Category = "replay"
	CategoryTemporal      Category = "temporal"
	CategoryRange         Category = "range"
	CategoryCustody       Category = "custody"
	CategoryReentrancy    Category = "reentrancy"
	CategoryInternal      Category = "internal"
)

var categories = []struct {
	category Category
	errs     []error
}{
	{CategoryAuthorization, []error{ErrSignatureMismatch, ErrCallerCannotBeSigner, ErrTargetMismatch, ErrNotOwner}},
	{CategoryReplay, []error{ErrContractNonceMismatch, ErrSignerNonceMismatch, ErrAssetNonceMismatch}},
	{CategoryTemporal, []error{ErrExpiredSignature, ErrCurrentlyRented, ErrCannotSetUpdateOperator}},
	{CategoryRange, []error{ErrLengthMismatch, ErrIndexOutOfBounds, ErrMinDaysIsZero, ErrMaxDaysLowerThanMinDays,
		ErrDaysNotInRange, ErrRentalDaysIsZero, ErrInvalidFee, ErrArithmeticOverflow}},
	{CategoryCustody, []error{ErrAssetTransferredUnsafely, ErrNotOriginalOwner, ErrNotLessor, ErrAssetMismatch,
		ErrInvalidFingerprint, ErrOperatorNotSupported, ErrUnknownAsset, ErrTokenNotConfigured}},
	{CategoryReentrancy, []error{ErrReentrantCall}},
}

// CategoryOf reports the taxonomy bucket for err. Errors that did not
// originate from a rentals check map to CategoryInternal.
func CategoryOf(err error) Category {
	if err == nil {
		return ""
	}
	for _, group := range categories {
		for _, target := range group.errs {
			if errors.Is(err, target) {
				return group.category
			}
		}
	}
	return CategoryInternal
}

// ErrorID returns the stable identifier of a rentals error, for example
// "SIGNATURE_MISMATCH". Errors raised by collaborators return "".
func ErrorID(err error) string {
	for err != nil {
		msg := err.Error()
		if strings.HasPrefix(msg, errPrefix) && !strings.Contains(msg[len(errPrefix):], ":") {
			return strings.TrimPrefix(msg, errPrefix)
		}
		err = errors.Unwrap(err)
	}
	return ""
}
