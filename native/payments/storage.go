package payments

import (
	"fmt"
	"math/big"

	"escrowd/core/types"
)

// HistoryCap bounds the per-account payment history lists. The lists are
// append-only audit data, so a full list rejects new payments rather than
// evicting older entries.
const HistoryCap = 1024

var (
	paymentPrefix       = []byte("payments/payment/")
	buyerHistoryPrefix  = []byte("payments/history/buyer/")
	sellerHistoryPrefix = []byte("payments/history/seller/")
)

func paymentStorageKey(id string) []byte {
	return []byte(fmt.Sprintf("%s%s", paymentPrefix, id))
}

func buyerHistoryKey(addr types.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", buyerHistoryPrefix, addr))
}

func sellerHistoryKey(addr types.Address) []byte {
	return []byte(fmt.Sprintf("%s%x", sellerHistoryPrefix, addr))
}

// storedPayment mirrors Payment with unsigned timestamps for RLP.
type storedPayment struct {
	ID          string
	Buyer       types.Address
	Seller      types.Address
	Amount      *big.Int
	FeeAmount   *big.Int
	Asset       string
	Status      uint8
	CreatedAt   uint64
	CompletedAt uint64
	Note        string
}

func toStoredPayment(p *Payment) *storedPayment {
	return &storedPayment{
		ID:          p.ID,
		Buyer:       p.Buyer,
		Seller:      p.Seller,
		Amount:      p.Amount,
		FeeAmount:   p.FeeAmount,
		Asset:       p.Asset,
		Status:      uint8(p.Status),
		CreatedAt:   uint64(p.CreatedAt),
		CompletedAt: uint64(p.CompletedAt),
		Note:        p.Note,
	}
}

func fromStoredPayment(s *storedPayment) *Payment {
	return &Payment{
		ID:          s.ID,
		Buyer:       s.Buyer,
		Seller:      s.Seller,
		Amount:      s.Amount,
		FeeAmount:   s.FeeAmount,
		Asset:       s.Asset,
		Status:      PaymentStatus(s.Status),
		CreatedAt:   int64(s.CreatedAt),
		CompletedAt: int64(s.CompletedAt),
		Note:        s.Note,
	}
}

func (e *Engine) putPayment(p *Payment) error {
	sanitized, err := SanitizePayment(p)
	if err != nil {
		return err
	}
	return e.state.KVPut(paymentStorageKey(sanitized.ID), toStoredPayment(sanitized))
}

func (e *Engine) getPayment(id string) (*Payment, bool, error) {
	normalized, err := NormalizeID(id)
	if err != nil {
		return nil, false, err
	}
	stored := new(storedPayment)
	ok, err := e.state.KVGet(paymentStorageKey(normalized), stored)
	if err != nil || !ok {
		return nil, false, err
	}
	return fromStoredPayment(stored), true, nil
}

func (e *Engine) history(key []byte) ([]string, error) {
	var ids []string
	if _, err := e.state.KVGet(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}
