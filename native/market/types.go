package market

import (
	"fmt"
	"math/big"

	"escrowd/core/types"
)

// ListingStatus tracks the lifecycle of a catalog listing. Cancelled and
// Expired are terminal; a listing never reactivates.
type ListingStatus uint8

const (
	ListingActive ListingStatus = iota
	ListingSoldOut
	ListingExpired
	ListingCancelled
)

// Valid reports whether the status value is within the supported range.
func (s ListingStatus) Valid() bool {
	switch s {
	case ListingActive, ListingSoldOut, ListingExpired, ListingCancelled:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase status name.
func (s ListingStatus) String() string {
	switch s {
	case ListingActive:
		return "active"
	case ListingSoldOut:
		return "sold_out"
	case ListingExpired:
		return "expired"
	case ListingCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// PurchaseStatus tracks the settlement state of a purchase. Delivered and
// Refunded are terminal; Disputed is the only state with an admin-only exit.
type PurchaseStatus uint8

const (
	PurchasePending PurchaseStatus = iota
	PurchaseShipped
	PurchaseDelivered
	PurchaseDisputed
	PurchaseRefunded
)

// Valid reports whether the status value is within the supported range.
func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchasePending, PurchaseShipped, PurchaseDelivered, PurchaseDisputed, PurchaseRefunded:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase status name.
func (s PurchaseStatus) String() string {
	switch s {
	case PurchasePending:
		return "pending"
	case PurchaseShipped:
		return "shipped"
	case PurchaseDelivered:
		return "delivered"
	case PurchaseDisputed:
		return "disputed"
	case PurchaseRefunded:
		return "refunded"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Listing is a priced inventory entry owned by its seller. Status and
// inventory are mutated only by the purchase flow or the owner.
type Listing struct {
	ID        uint64
	Owner     types.Address
	Price     *big.Int
	Inventory uint64
	CreatedAt int64
	ExpiresAt int64
	Status    ListingStatus
}

// Clone returns a deep copy of the listing.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	clone := *l
	if l.Price != nil {
		clone.Price = new(big.Int).Set(l.Price)
	} else {
		clone.Price = big.NewInt(0)
	}
	return &clone
}

// Purchase records a single buyer/seller escrow created from a listing. It is
// never deleted; terminal records remain queryable.
type Purchase struct {
	ID           uint64
	ListingID    uint64
	Buyer        types.Address
	Seller       types.Address
	UnitPrice    *big.Int
	Quantity     uint64
	Status       PurchaseStatus
	PurchaseTime int64
	DeliveryTime int64
}

// Clone returns a deep copy of the purchase.
func (p *Purchase) Clone() *Purchase {
	if p == nil {
		return nil
	}
	clone := *p
	if p.UnitPrice != nil {
		clone.UnitPrice = new(big.Int).Set(p.UnitPrice)
	} else {
		clone.UnitPrice = big.NewInt(0)
	}
	return &clone
}

// Total returns the gross purchase value, UnitPrice * Quantity.
func (p *Purchase) Total() *big.Int {
	if p == nil || p.UnitPrice == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(p.UnitPrice, new(big.Int).SetUint64(p.Quantity))
}

// SanitizeListing validates and normalises a listing record, returning a
// cloned instance with a non-nil price. The original value is not mutated.
func SanitizeListing(l *Listing) (*Listing, error) {
	if l == nil {
		return nil, fmt.Errorf("market: nil listing")
	}
	clone := l.Clone()
	if clone.Price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid listing status: %d", clone.Status)
	}
	return clone, nil
}

// SanitizePurchase validates and normalises a purchase record.
func SanitizePurchase(p *Purchase) (*Purchase, error) {
	if p == nil {
		return nil, fmt.Errorf("market: nil purchase")
	}
	clone := p.Clone()
	if clone.UnitPrice.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if clone.Quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("market: invalid purchase status: %d", clone.Status)
	}
	return clone, nil
}
