package market

import (
	"encoding/hex"
	"strconv"

	"escrowd/core/types"
)

const (
	EventTypeListingCreated    = "market.listing.created"
	EventTypeListingUpdated    = "market.listing.updated"
	EventTypeListingCancelled  = "market.listing.cancelled"
	EventTypePurchaseCreated   = "market.purchase.created"
	EventTypePurchaseShipped   = "market.purchase.shipped"
	EventTypePurchaseDelivered = "market.purchase.delivered"
	EventTypePurchaseDisputed  = "market.purchase.disputed"
	EventTypePurchaseRefunded  = "market.purchase.refunded"
	EventTypePurchaseResolved  = "market.purchase.resolved"
)

func newListingEvent(eventType string, l *Listing) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(l.ID, 10)
	attrs["owner"] = hex.EncodeToString(l.Owner[:])
	if l.Price != nil {
		attrs["price"] = l.Price.String()
	}
	attrs["inventory"] = strconv.FormatUint(l.Inventory, 10)
	attrs["expiresAt"] = strconv.FormatInt(l.ExpiresAt, 10)
	attrs["status"] = l.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

func newPurchaseEvent(eventType string, p *Purchase) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = strconv.FormatUint(p.ID, 10)
	attrs["listingId"] = strconv.FormatUint(p.ListingID, 10)
	attrs["buyer"] = hex.EncodeToString(p.Buyer[:])
	attrs["seller"] = hex.EncodeToString(p.Seller[:])
	if p.UnitPrice != nil {
		attrs["unitPrice"] = p.UnitPrice.String()
	}
	attrs["quantity"] = strconv.FormatUint(p.Quantity, 10)
	attrs["total"] = p.Total().String()
	attrs["status"] = p.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewListingCreatedEvent returns the canonical payload for a new listing.
func NewListingCreatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCreated, l)
}

// NewListingUpdatedEvent returns the payload emitted on owner updates.
func NewListingUpdatedEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingUpdated, l)
}

// NewListingCancelledEvent returns the payload emitted on cancellation.
func NewListingCancelledEvent(l *Listing) *types.Event {
	return newListingEvent(EventTypeListingCancelled, l)
}

// NewPurchaseCreatedEvent returns the payload for a freshly locked purchase.
func NewPurchaseCreatedEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseCreated, p)
}

// NewPurchaseShippedEvent returns the payload for a shipment mark.
func NewPurchaseShippedEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseShipped, p)
}

// NewPurchaseDeliveredEvent returns the payload for a confirmed delivery.
func NewPurchaseDeliveredEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseDelivered, p)
}

// NewPurchaseDisputedEvent returns the payload for a buyer dispute.
func NewPurchaseDisputedEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseDisputed, p)
}

// NewPurchaseRefundedEvent returns the payload for a dispute refund.
func NewPurchaseRefundedEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseRefunded, p)
}

// NewPurchaseResolvedEvent returns the payload emitted when an admin settles
// a dispute, regardless of direction.
func NewPurchaseResolvedEvent(p *Purchase) *types.Event {
	return newPurchaseEvent(EventTypePurchaseResolved, p)
}
