package payments

import (
	"fmt"
	"math/big"
	"strings"

	"escrowd/core/types"
)

// AssetNative is the canonical symbol for the chain's native denomination.
// It is always accepted; fungible assets must be on the admin allow-list.
const AssetNative = "NATIVE"

// PaymentStatus tracks the push-settlement lifecycle. Completed, Refunded and
// Resolved are terminal.
type PaymentStatus uint8

const (
	PaymentPending PaymentStatus = iota
	PaymentCompleted
	PaymentDisputed
	PaymentRefunded
	PaymentResolved
)

// Valid reports whether the status value is within the supported range.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentCompleted, PaymentDisputed, PaymentRefunded, PaymentResolved:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status permits no further transition.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PaymentCompleted, PaymentRefunded, PaymentResolved:
		return true
	default:
		return false
	}
}

// String returns the canonical lowercase status name.
func (s PaymentStatus) String() string {
	switch s {
	case PaymentPending:
		return "pending"
	case PaymentCompleted:
		return "completed"
	case PaymentDisputed:
		return "disputed"
	case PaymentRefunded:
		return "refunded"
	case PaymentResolved:
		return "resolved"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Payment is a single escrowed transfer with a caller-chosen identifier. The
// buyer deposits amount plus fee at creation; settlement pushes funds
// directly to the recipient rather than crediting a withdrawable balance.
type Payment struct {
	ID          string
	Buyer       types.Address
	Seller      types.Address
	Amount      *big.Int
	FeeAmount   *big.Int
	Asset       string
	Status      PaymentStatus
	CreatedAt   int64
	CompletedAt int64
	Note        string
}

// Clone returns a deep copy of the payment.
func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	clone := *p
	if p.Amount != nil {
		clone.Amount = new(big.Int).Set(p.Amount)
	} else {
		clone.Amount = big.NewInt(0)
	}
	if p.FeeAmount != nil {
		clone.FeeAmount = new(big.Int).Set(p.FeeAmount)
	} else {
		clone.FeeAmount = big.NewInt(0)
	}
	return &clone
}

// Deposit returns the total custody amount, Amount + FeeAmount.
func (p *Payment) Deposit() *big.Int {
	total := big.NewInt(0)
	if p == nil {
		return total
	}
	if p.Amount != nil {
		total.Add(total, p.Amount)
	}
	if p.FeeAmount != nil {
		total.Add(total, p.FeeAmount)
	}
	return total
}

// NormalizeID canonicalises a caller-chosen payment identifier.
func NormalizeID(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", ErrInvalidID
	}
	return trimmed, nil
}

// NormalizeAsset canonicalises an asset symbol, mapping the empty string to
// the native denomination.
func NormalizeAsset(symbol string) string {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return AssetNative
	}
	return trimmed
}

// SanitizePayment validates and normalises a payment record, returning a
// cloned instance. The original value is not mutated.
func SanitizePayment(p *Payment) (*Payment, error) {
	if p == nil {
		return nil, fmt.Errorf("payments: nil payment")
	}
	clone := p.Clone()
	id, err := NormalizeID(clone.ID)
	if err != nil {
		return nil, err
	}
	clone.ID = id
	clone.Asset = NormalizeAsset(clone.Asset)
	if clone.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if clone.FeeAmount.Sign() < 0 {
		return nil, fmt.Errorf("payments: negative fee")
	}
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("payments: invalid status: %d", clone.Status)
	}
	return clone, nil
}
