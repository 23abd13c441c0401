package asset

import (
	"bytes"
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	ErrLandNotInEstate = errors.New("asset: land is not part of the estate")
	ErrLandOwned       = errors.New("asset: land already belongs to an estate")
)

// Composite is an estate-style asset whose tokens aggregate sub-parcels
// ("lands"). Its fingerprint changes whenever the set of lands changes, so a
// signed offer can pin the exact composition being rented.
type Composite struct {
	*Registry
}

// NewComposite creates a composite registry deployed at address.
func NewComposite(address, minter common.Address, store Storage) *Composite {
	return &Composite{Registry: NewRegistry(address, minter, store)}
}

// SupportsInterface adds the fingerprint capability to the base interfaces.
func (c *Composite) SupportsInterface(id [4]byte) bool {
	return id == InterfaceFingerprint || c.Registry.SupportsInterface(id)
}

// Lands returns the sub-parcels of tokenID in ascending order.
func (c *Composite) Lands(tokenID *big.Int) ([]*big.Int, error) {
	var lands []*big.Int
	if _, err := c.store.KVGet(c.key("lands", tokenWord(tokenID)), &lands); err != nil {
		return nil, err
	}
	sort.Slice(lands, func(i, j int) bool { return lands[i].Cmp(lands[j]) < 0 })
	return lands, nil
}

func (c *Composite) putLands(tokenID *big.Int, lands []*big.Int) error {
	return c.store.KVPut(c.key("lands", tokenWord(tokenID)), lands)
}

func (c *Composite) landParent(landID *big.Int) (*big.Int, bool, error) {
	parent := new(big.Int)
	ok, err := c.store.KVGet(c.key("land-parent", tokenWord(landID)), parent)
	return parent, ok, err
}

// AddLand attaches landID to tokenID. Only an authorized caller of tokenID may
// change its composition.
func (c *Composite) AddLand(caller common.Address, tokenID, landID *big.Int) error {
	if _, err := c.authorize(caller, tokenID); err != nil {
		return err
	}
	if _, ok, err := c.landParent(landID); err != nil {
		return err
	} else if ok {
		return ErrLandOwned
	}
	lands, err := c.Lands(tokenID)
	if err != nil {
		return err
	}
	lands = append(lands, new(big.Int).Set(landID))
	if err := c.putLands(tokenID, lands); err != nil {
		return err
	}
	return c.store.KVPut(c.key("land-parent", tokenWord(landID)), new(big.Int).Set(tokenID))
}

// RemoveLand detaches landID from tokenID.
func (c *Composite) RemoveLand(caller common.Address, tokenID, landID *big.Int) error {
	if _, err := c.authorize(caller, tokenID); err != nil {
		return err
	}
	if err := c.requireLand(tokenID, landID); err != nil {
		return err
	}
	lands, err := c.Lands(tokenID)
	if err != nil {
		return err
	}
	kept := lands[:0]
	for _, land := range lands {
		if land.Cmp(landID) != 0 {
			kept = append(kept, land)
		}
	}
	if err := c.putLands(tokenID, kept); err != nil {
		return err
	}
	if err := c.store.KVDelete(c.key("land-parent", tokenWord(landID))); err != nil {
		return err
	}
	return c.store.KVDelete(c.key("land-operator", tokenWord(landID)))
}

func (c *Composite) requireLand(tokenID, landID *big.Int) error {
	parent, ok, err := c.landParent(landID)
	if err != nil {
		return err
	}
	if !ok || parent.Cmp(tokenID) != 0 {
		return ErrLandNotInEstate
	}
	return nil
}

// Fingerprint is keccak256(tokenId || sorted land ids), each a 32-byte word.
func (c *Composite) Fingerprint(tokenID *big.Int) ([32]byte, error) {
	if _, err := c.OwnerOf(tokenID); err != nil {
		return [32]byte{}, err
	}
	lands, err := c.Lands(tokenID)
	if err != nil {
		return [32]byte{}, err
	}
	words := make([][]byte, 0, len(lands)+1)
	words = append(words, tokenWord(tokenID))
	for _, land := range lands {
		words = append(words, tokenWord(land))
	}
	return ethcrypto.Keccak256Hash(words...), nil
}

// VerifyFingerprint reports whether fingerprint matches the current
// composition of tokenID.
func (c *Composite) VerifyFingerprint(tokenID *big.Int, fingerprint []byte) (bool, error) {
	current, err := c.Fingerprint(tokenID)
	if err != nil {
		return false, err
	}
	return bytes.Equal(current[:], fingerprint), nil
}

// SetManyLandUpdateOperator delegates the given lands of tokenID to operator.
func (c *Composite) SetManyLandUpdateOperator(caller common.Address, tokenID *big.Int, landIDs []*big.Int, operator common.Address) error {
	if _, err := c.authorize(caller, tokenID); err != nil {
		return err
	}
	for _, landID := range landIDs {
		if err := c.requireLand(tokenID, landID); err != nil {
			return err
		}
		if err := c.store.KVPut(c.key("land-operator", tokenWord(landID)), operator); err != nil {
			return err
		}
	}
	return nil
}

// LandUpdateOperator returns the delegate of a single land.
func (c *Composite) LandUpdateOperator(landID *big.Int) (common.Address, error) {
	var operator common.Address
	if _, err := c.store.KVGet(c.key("land-operator", tokenWord(landID)), &operator); err != nil {
		return common.Address{}, err
	}
	return operator, nil
}
