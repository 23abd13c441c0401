package rentals

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SecondsPerDay converts rental days into the end-date offset.
const SecondsPerDay = 86400

// MaxFee is the fee ceiling expressed in parts per million (100%).
const MaxFee = 1_000_000

// Nonce tuple positions shared by listings and offers.
const (
	NonceContract = iota
	NonceSigner
	NonceAsset
)

// Listing is a lessor-signed menu of rental terms for one asset. PricePerDay,
// MaxDays and MinDays are parallel arrays, one entry per pricing tier.
type Listing struct {
	Signer          common.Address
	ContractAddress common.Address
	TokenID         *big.Int
	Expiration      *big.Int
	Indexes         [3]*big.Int
	PricePerDay     []*big.Int
	MaxDays         []*big.Int
	MinDays         []*big.Int
	// Target restricts redemption to one address when non-zero.
	Target    common.Address
	Signature []byte
}

// Offer is a tenant-signed proposal for a single rental.
type Offer struct {
	Signer          common.Address
	ContractAddress common.Address
	TokenID         *big.Int
	Expiration      *big.Int
	Indexes         [3]*big.Int
	PricePerDay     *big.Int
	RentalDays      *big.Int
	Operator        common.Address
	Fingerprint     [32]byte
	Signature       []byte
}

// Rental is the ledger record kept per (contract, token id). A zero Lessor
// means the engine has no record of the asset.
type Rental struct {
	Lessor  common.Address
	Tenant  common.Address
	EndDate *big.Int
}

// Copy returns a deep copy to avoid callers mutating shared pointers.
func (r *Rental) Copy() *Rental {
	if r == nil {
		return nil
	}
	clone := *r
	clone.EndDate = cloneBig(r.EndDate)
	return &clone
}

// Params holds the administrator-controlled configuration.
type Params struct {
	Owner        common.Address
	Token        common.Address
	FeeCollector common.Address
	Fee          uint64
	Initialized  bool
}

// Nonces is a read-only snapshot of the three replay counters for one signer
// and asset.
type Nonces struct {
	Contract *big.Int
	Signer   *big.Int
	Asset    *big.Int
}

// Tuple returns the nonces in the order carried by signed messages.
func (n Nonces) Tuple() [3]*big.Int {
	return [3]*big.Int{cloneBig(n.Contract), cloneBig(n.Signer), cloneBig(n.Asset)}
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
