package market

import (
	"errors"
	"math/big"
	"testing"
)

func TestPurchaseTotal(t *testing.T) {
	purchase := &Purchase{UnitPrice: big.NewInt(500), Quantity: 3}
	if got := purchase.Total(); got.Cmp(big.NewInt(1_500)) != 0 {
		t.Fatalf("expected 1500, got %s", got)
	}
	var nilPurchase *Purchase
	if got := nilPurchase.Total(); got.Sign() != 0 {
		t.Fatalf("nil purchase must total zero, got %s", got)
	}
}

func TestListingCloneIsDeep(t *testing.T) {
	listing := &Listing{ID: 1, Price: big.NewInt(100), Inventory: 5, Status: ListingActive}
	clone := listing.Clone()
	clone.Price.SetInt64(999)
	clone.Inventory = 1
	if listing.Price.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("clone shares price storage with the original")
	}
	if listing.Inventory != 5 {
		t.Fatal("clone mutated the original inventory")
	}
}

func TestSanitizeListing(t *testing.T) {
	if _, err := SanitizeListing(nil); err == nil {
		t.Fatal("nil listing must be rejected")
	}
	if _, err := SanitizeListing(&Listing{Price: big.NewInt(0)}); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
	if _, err := SanitizeListing(&Listing{Price: big.NewInt(10), Status: ListingStatus(42)}); err == nil {
		t.Fatal("out-of-range status must be rejected")
	}
	sanitized, err := SanitizeListing(&Listing{Price: big.NewInt(10), Status: ListingActive})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.Price.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("price altered: %s", sanitized.Price)
	}
}

func TestSanitizePurchase(t *testing.T) {
	if _, err := SanitizePurchase(&Purchase{UnitPrice: big.NewInt(10), Quantity: 0}); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := SanitizePurchase(&Purchase{UnitPrice: big.NewInt(10), Quantity: 1, Status: PurchaseStatus(42)}); err == nil {
		t.Fatal("out-of-range status must be rejected")
	}
	if _, err := SanitizePurchase(&Purchase{UnitPrice: big.NewInt(10), Quantity: 1, Status: PurchaseShipped}); err != nil {
		t.Fatalf("sanitize: %v", err)
	}
}

func TestStatusStrings(t *testing.T) {
	if ListingSoldOut.String() != "sold_out" {
		t.Fatalf("unexpected listing status string %q", ListingSoldOut.String())
	}
	if PurchaseDisputed.String() != "disputed" {
		t.Fatalf("unexpected purchase status string %q", PurchaseDisputed.String())
	}
	if ListingStatus(42).Valid() {
		t.Fatal("invalid status reported valid")
	}
}
