package market

import (
	"fmt"
	"math/big"

	"escrowd/core/types"
)

var (
	listingPrefix  = []byte("market/listing/")
	purchasePrefix = []byte("market/purchase/")
)

const (
	listingSeqCounter  = "market/listing-seq"
	purchaseSeqCounter = "market/purchase-seq"
)

func listingKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", listingPrefix, id))
}

func purchaseKey(id uint64) []byte {
	return []byte(fmt.Sprintf("%s%d", purchasePrefix, id))
}

// Stored mirrors keep every integer unsigned so the records stay
// RLP-encodable; logical timestamps are never negative.
type storedListing struct {
	ID        uint64
	Owner     types.Address
	Price     *big.Int
	Inventory uint64
	CreatedAt uint64
	ExpiresAt uint64
	Status    uint8
}

type storedPurchase struct {
	ID           uint64
	ListingID    uint64
	Buyer        types.Address
	Seller       types.Address
	UnitPrice    *big.Int
	Quantity     uint64
	Status       uint8
	PurchaseTime uint64
	DeliveryTime uint64
}

func toStoredListing(l *Listing) *storedListing {
	return &storedListing{
		ID:        l.ID,
		Owner:     l.Owner,
		Price:     l.Price,
		Inventory: l.Inventory,
		CreatedAt: uint64(l.CreatedAt),
		ExpiresAt: uint64(l.ExpiresAt),
		Status:    uint8(l.Status),
	}
}

func fromStoredListing(s *storedListing) *Listing {
	return &Listing{
		ID:        s.ID,
		Owner:     s.Owner,
		Price:     s.Price,
		Inventory: s.Inventory,
		CreatedAt: int64(s.CreatedAt),
		ExpiresAt: int64(s.ExpiresAt),
		Status:    ListingStatus(s.Status),
	}
}

func toStoredPurchase(p *Purchase) *storedPurchase {
	return &storedPurchase{
		ID:           p.ID,
		ListingID:    p.ListingID,
		Buyer:        p.Buyer,
		Seller:       p.Seller,
		UnitPrice:    p.UnitPrice,
		Quantity:     p.Quantity,
		Status:       uint8(p.Status),
		PurchaseTime: uint64(p.PurchaseTime),
		DeliveryTime: uint64(p.DeliveryTime),
	}
}

func fromStoredPurchase(s *storedPurchase) *Purchase {
	return &Purchase{
		ID:           s.ID,
		ListingID:    s.ListingID,
		Buyer:        s.Buyer,
		Seller:       s.Seller,
		UnitPrice:    s.UnitPrice,
		Quantity:     s.Quantity,
		Status:       PurchaseStatus(s.Status),
		PurchaseTime: int64(s.PurchaseTime),
		DeliveryTime: int64(s.DeliveryTime),
	}
}

func (e *Engine) putListing(l *Listing) error {
	sanitized, err := SanitizeListing(l)
	if err != nil {
		return err
	}
	return e.state.KVPut(listingKey(sanitized.ID), toStoredListing(sanitized))
}

func (e *Engine) getListing(id uint64) (*Listing, bool, error) {
	stored := new(storedListing)
	ok, err := e.state.KVGet(listingKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromStoredListing(stored), true, nil
}

func (e *Engine) putPurchase(p *Purchase) error {
	sanitized, err := SanitizePurchase(p)
	if err != nil {
		return err
	}
	return e.state.KVPut(purchaseKey(sanitized.ID), toStoredPurchase(sanitized))
}

func (e *Engine) getPurchase(id uint64) (*Purchase, bool, error) {
	stored := new(storedPurchase)
	ok, err := e.state.KVGet(purchaseKey(id), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromStoredPurchase(stored), true, nil
}
