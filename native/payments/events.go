package payments

import (
	"encoding/hex"
	"strconv"
	"strings"

	"escrowd/core/types"
)

const (
	EventTypePaymentCreated   = "payments.created"
	EventTypePaymentCompleted = "payments.completed"
	EventTypePaymentDisputed  = "payments.disputed"
	EventTypePaymentRefunded  = "payments.refunded"
	EventTypePaymentResolved  = "payments.resolved"
)

func newPaymentEvent(eventType string, p *Payment, outcome string) *types.Event {
	attrs := make(map[string]string)
	if p == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = p.ID
	attrs["buyer"] = hex.EncodeToString(p.Buyer[:])
	attrs["seller"] = hex.EncodeToString(p.Seller[:])
	attrs["asset"] = p.Asset
	if p.Amount != nil {
		attrs["amount"] = p.Amount.String()
	}
	if p.FeeAmount != nil {
		attrs["fee"] = p.FeeAmount.String()
	}
	attrs["status"] = p.Status.String()
	attrs["createdAt"] = strconv.FormatInt(p.CreatedAt, 10)
	if strings.TrimSpace(outcome) != "" {
		attrs["outcome"] = outcome
	}
	return &types.Event{Type: eventType, Attributes: attrs}
}

// NewCreatedEvent returns the canonical payload for a newly escrowed payment.
func NewCreatedEvent(p *Payment) *types.Event {
	return newPaymentEvent(EventTypePaymentCreated, p, "")
}

// NewCompletedEvent returns the payload for a buyer-confirmed settlement.
func NewCompletedEvent(p *Payment) *types.Event {
	return newPaymentEvent(EventTypePaymentCompleted, p, "")
}

// NewDisputedEvent returns the payload for a refund request.
func NewDisputedEvent(p *Payment) *types.Event {
	return newPaymentEvent(EventTypePaymentDisputed, p, "")
}

// NewRefundedEvent returns the payload for a full refund.
func NewRefundedEvent(p *Payment) *types.Event {
	return newPaymentEvent(EventTypePaymentRefunded, p, "")
}

// NewResolvedEvent returns the payload for an admin arbitration outcome.
func NewResolvedEvent(p *Payment, outcome string) *types.Event {
	return newPaymentEvent(EventTypePaymentResolved, p, outcome)
}
