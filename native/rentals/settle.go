package rentals

import (
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"rentalchain/core/types"
	"rentalchain/observability/logging"
)

// Settlement entry paths, used in metrics and logs.
const (
	PathListing  = "listing"
	PathOffer    = "offer"
	PathTransfer = "transfer"
)

type rentParams struct {
	path        string
	lessor      common.Address
	tenant      common.Address
	contract    common.Address
	tokenID     *big.Int
	fingerprint []byte
	pricePerDay *big.Int
	rentalDays  *big.Int
	operator    common.Address
	signature   []byte
	// sender is reported in the settlement event.
	sender common.Address
	// transferIn is set when the asset arrived through the receiver hook, so
	// custody has already moved to the engine.
	transferIn bool
}

// AcceptListing rents the listed asset to caller using the pricing tier at
// index for rentalDays days.
func (e *Engine) AcceptListing(caller common.Address, listing *Listing, operator common.Address, index, rentalDays *big.Int, fingerprint [32]byte) error {
	return e.guarded("acceptListing", func() error {
		if listing == nil {
			return fmt.Errorf("%w: listing required", ErrInvalidCall)
		}
		tier, err := e.checkListing(caller, listing, index, rentalDays)
		if err != nil {
			return err
		}
		return e.rent(rentParams{
			path:        PathListing,
			lessor:      listing.Signer,
			tenant:      caller,
			contract:    listing.ContractAddress,
			tokenID:     cloneBig(listing.TokenID),
			fingerprint: fingerprint[:],
			pricePerDay: cloneBig(listing.PricePerDay[tier]),
			rentalDays:  cloneBig(rentalDays),
			operator:    operator,
			signature:   listing.Signature,
			sender:      caller,
		})
	})
}

// AcceptOffer rents caller's asset to the tenant that signed offer.
func (e *Engine) AcceptOffer(caller common.Address, offer *Offer) error {
	return e.guarded("acceptOffer", func() error {
		if offer == nil {
			return fmt.Errorf("%w: offer required", ErrInvalidCall)
		}
		return e.acceptOffer(caller, caller, offer, false)
	})
}

// OnERC721Received is the receiver hook assets call after a safe transfer
// into the engine. A non-empty payload must be an ABI-encoded Offer for the
// transferred asset; the sender of the asset becomes the lessor. An empty
// payload is accepted without settlement.
func (e *Engine) OnERC721Received(assetContract, operator, from common.Address, tokenID *big.Int, data []byte) ([4]byte, error) {
	if len(data) == 0 {
		return ERC721ReceivedSelector, nil
	}
	err := e.guarded("onERC721Received", func() error {
		offer, err := DecodeOfferPayload(data)
		if err != nil {
			return err
		}
		if offer.ContractAddress != assetContract || cloneBig(offer.TokenID).Cmp(cloneBig(tokenID)) != 0 {
			return ErrAssetMismatch
		}
		asset, err := e.asset(assetContract)
		if err != nil {
			return err
		}
		owner, err := asset.OwnerOf(tokenID)
		if err != nil {
			return err
		}
		if owner != e.address {
			return ErrAssetMismatch
		}
		return e.acceptOffer(from, operator, offer, true)
	})
	if err != nil {
		return [4]byte{}, err
	}
	return ERC721ReceivedSelector, nil
}

func (e *Engine) acceptOffer(lessor, sender common.Address, offer *Offer, transferIn bool) error {
	if err := e.checkOffer(lessor, offer); err != nil {
		return err
	}
	path := PathOffer
	if transferIn {
		path = PathTransfer
	}
	return e.rent(rentParams{
		path:        path,
		lessor:      lessor,
		tenant:      offer.Signer,
		contract:    offer.ContractAddress,
		tokenID:     cloneBig(offer.TokenID),
		fingerprint: offer.Fingerprint[:],
		pricePerDay: cloneBig(offer.PricePerDay),
		rentalDays:  cloneBig(offer.RentalDays),
		operator:    offer.Operator,
		signature:   offer.Signature,
		sender:      sender,
		transferIn:  transferIn,
	})
}

func (e *Engine) checkListing(caller common.Address, l *Listing, index, rentalDays *big.Int) (int, error) {
	if caller == l.Signer {
		return 0, ErrCallerCannotBeSigner
	}
	if l.Target != (common.Address{}) && l.Target != caller {
		return 0, ErrTargetMismatch
	}
	if len(l.PricePerDay) != len(l.MaxDays) || len(l.PricePerDay) != len(l.MinDays) {
		return 0, ErrLengthMismatch
	}
	idx := cloneBig(index)
	if idx.Sign() < 0 || idx.Cmp(big.NewInt(int64(len(l.PricePerDay)))) >= 0 {
		return 0, ErrIndexOutOfBounds
	}
	tier := int(idx.Int64())
	minDays, maxDays, days := cloneBig(l.MinDays[tier]), cloneBig(l.MaxDays[tier]), cloneBig(rentalDays)
	if minDays.Sign() == 0 {
		return 0, ErrMinDaysIsZero
	}
	if maxDays.Cmp(minDays) < 0 {
		return 0, ErrMaxDaysLowerThanMinDays
	}
	if days.Cmp(minDays) < 0 || days.Cmp(maxDays) > 0 {
		return 0, ErrDaysNotInRange
	}
	if err := e.checkExpiration(l.Expiration); err != nil {
		return 0, err
	}
	signer, err := RecoverListingSigner(e.domain, l)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if signer != l.Signer {
		return 0, ErrSignatureMismatch
	}
	if err := e.verifyNonces(l.Indexes, l.Signer, l.ContractAddress, l.TokenID); err != nil {
		return 0, err
	}
	return tier, nil
}

func (e *Engine) checkOffer(lessor common.Address, o *Offer) error {
	if lessor == o.Signer {
		return ErrCallerCannotBeSigner
	}
	if cloneBig(o.RentalDays).Sign() == 0 {
		return ErrRentalDaysIsZero
	}
	if err := e.checkExpiration(o.Expiration); err != nil {
		return err
	}
	signer, err := RecoverOfferSigner(e.domain, o)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignatureMismatch, err)
	}
	if signer != o.Signer {
		return ErrSignatureMismatch
	}
	return e.verifyNonces(o.Indexes, o.Signer, o.ContractAddress, o.TokenID)
}

// checkExpiration accepts messages up to and including the expiration second.
func (e *Engine) checkExpiration(expiration *big.Int) error {
	if big.NewInt(e.now()).Cmp(cloneBig(expiration)) > 0 {
		return ErrExpiredSignature
	}
	return nil
}

func toU256(v *big.Int) (*uint256.Int, error) {
	out, overflow := uint256.FromBig(cloneBig(v))
	if overflow || v != nil && v.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	return out, nil
}

func (e *Engine) rent(p rentParams) error {
	asset, err := e.asset(p.contract)
	if err != nil {
		return err
	}

	if verifier, declared := fingerprintVerifier(asset); declared {
		if verifier == nil {
			return ErrInvalidFingerprint
		}
		ok, err := verifier.VerifyFingerprint(p.tokenID, p.fingerprint)
		if err != nil {
			return err
		}
		if !ok {
			return ErrInvalidFingerprint
		}
	}

	record, err := e.Rental(p.contract, p.tokenID)
	if err != nil {
		return err
	}
	custodied := false
	if !p.transferIn {
		owner, err := asset.OwnerOf(p.tokenID)
		if err != nil {
			return err
		}
		custodied = owner == e.address
	}
	if custodied && record.Lessor == (common.Address{}) {
		return ErrAssetTransferredUnsafely
	}

	rented := e.active(record)
	extension := rented && record.Lessor == p.lessor && record.Tenant == p.tenant
	if rented && !extension {
		return ErrCurrentlyRented
	}

	if custodied {
		if record.Lessor != p.lessor {
			return ErrNotOriginalOwner
		}
	} else {
		record.Lessor = p.lessor
		if err := e.putRental(p.contract, p.tokenID, record); err != nil {
			return err
		}
	}

	pending := make([]*types.Event, 0, 3)
	for _, signer := range []common.Address{p.lessor, p.tenant} {
		evt, err := e.bumpAssetNonce(p.contract, p.tokenID, signer, p.sender)
		if err != nil {
			return err
		}
		pending = append(pending, evt)
	}

	days, err := toU256(p.rentalDays)
	if err != nil {
		return err
	}
	span, overflow := new(uint256.Int).MulOverflow(days, uint256.NewInt(SecondsPerDay))
	if overflow {
		return ErrArithmeticOverflow
	}
	start := uint256.NewInt(uint64(e.now()))
	if extension {
		if start, err = toU256(record.EndDate); err != nil {
			return err
		}
	}
	endDate, overflow := new(uint256.Int).AddOverflow(start, span)
	if overflow {
		return ErrArithmeticOverflow
	}

	if err := e.collectPayment(p, days); err != nil {
		return err
	}

	if !custodied && !p.transferIn {
		if err := asset.SafeTransferFrom(e.address, p.lessor, e.address, p.tokenID, nil); err != nil {
			return err
		}
	}

	record.Tenant = p.tenant
	record.EndDate = endDate.ToBig()
	if err := e.putRental(p.contract, p.tokenID, record); err != nil {
		return err
	}
	operatable, ok := asset.(Operatable)
	if !ok {
		return ErrOperatorNotSupported
	}
	if err := operatable.SetUpdateOperator(e.address, p.tokenID, p.operator); err != nil {
		return err
	}

	for _, evt := range pending {
		e.emit(evt)
	}
	e.emit(newAssetRentedEvent(rentedEvent{
		Contract:    p.contract,
		TokenID:     p.tokenID,
		Lessor:      p.lessor,
		Tenant:      p.tenant,
		Operator:    p.operator,
		RentalDays:  p.rentalDays,
		PricePerDay: p.pricePerDay,
		EndDate:     record.EndDate,
		Extension:   extension,
		Sender:      p.sender,
		Signature:   p.signature,
	}))
	e.metrics.ObserveSettlement(p.path, extension)
	e.logger.Info("rental settled",
		slog.String("path", p.path),
		slog.String("contract", p.contract.Hex()),
		slog.String("token_id", p.tokenID.String()),
		slog.String("lessor", p.lessor.Hex()),
		slog.String("tenant", p.tenant.Hex()),
		slog.Bool("extension", extension),
		slog.String("end_date", record.EndDate.String()),
		slog.String("signature", logging.ShortHex(common.Bytes2Hex(p.signature))))
	return nil
}

// collectPayment pulls pricePerDay*days from the tenant and splits it between
// the lessor and the fee collector. Zero shares are not transferred.
func (e *Engine) collectPayment(p rentParams, days *uint256.Int) error {
	price, err := toU256(p.pricePerDay)
	if err != nil {
		return err
	}
	if price.IsZero() {
		return nil
	}
	params, err := e.Params()
	if err != nil {
		return err
	}
	if e.collab == nil || params.Token == (common.Address{}) {
		return ErrTokenNotConfigured
	}
	token, ok := e.collab.PaymentToken(params.Token)
	if !ok || token == nil {
		return ErrTokenNotConfigured
	}

	total, overflow := new(uint256.Int).MulOverflow(price, days)
	if overflow {
		return ErrArithmeticOverflow
	}
	scaled, overflow := new(uint256.Int).MulOverflow(total, uint256.NewInt(params.Fee))
	if overflow {
		return ErrArithmeticOverflow
	}
	collectorShare := new(uint256.Int).Div(scaled, uint256.NewInt(MaxFee))
	lessorShare := new(uint256.Int).Sub(total, collectorShare)

	if !lessorShare.IsZero() {
		if err := token.TransferFrom(e.address, p.tenant, p.lessor, lessorShare.ToBig()); err != nil {
			return err
		}
	}
	if !collectorShare.IsZero() {
		if err := token.TransferFrom(e.address, p.tenant, params.FeeCollector, collectorShare.ToBig()); err != nil {
			return err
		}
	}
	e.metrics.ObservePayment(toFloat(lessorShare), toFloat(collectorShare))
	return nil
}

func toFloat(v *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
