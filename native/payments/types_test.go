package payments

import (
	"errors"
	"math/big"
	"testing"
)

func TestNormalizeID(t *testing.T) {
	if _, err := NormalizeID("   "); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	id, err := NormalizeID("  pay-1  ")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if id != "pay-1" {
		t.Fatalf("expected trimmed id, got %q", id)
	}
}

func TestNormalizeAsset(t *testing.T) {
	if got := NormalizeAsset(""); got != AssetNative {
		t.Fatalf("empty asset must resolve to native, got %q", got)
	}
	if got := NormalizeAsset(" usdc "); got != "USDC" {
		t.Fatalf("expected USDC, got %q", got)
	}
}

func TestDepositSumsAmountAndFee(t *testing.T) {
	payment := &Payment{Amount: big.NewInt(1_000), FeeAmount: big.NewInt(25)}
	if got := payment.Deposit(); got.Cmp(big.NewInt(1_025)) != 0 {
		t.Fatalf("expected 1025, got %s", got)
	}
	var nilPayment *Payment
	if got := nilPayment.Deposit(); got.Sign() != 0 {
		t.Fatalf("nil payment must deposit zero, got %s", got)
	}
}

func TestStatusTerminal(t *testing.T) {
	terminal := []PaymentStatus{PaymentCompleted, PaymentRefunded, PaymentResolved}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Fatalf("%v should be terminal", s)
		}
	}
	open := []PaymentStatus{PaymentPending, PaymentDisputed}
	for _, s := range open {
		if s.Terminal() {
			t.Fatalf("%v should not be terminal", s)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	payment := &Payment{ID: "pay-1", Amount: big.NewInt(100), FeeAmount: big.NewInt(2)}
	clone := payment.Clone()
	clone.Amount.SetInt64(999)
	if payment.Amount.Cmp(big.NewInt(100)) != 0 {
		t.Fatal("clone shares amount storage with the original")
	}
}

func TestSanitizePayment(t *testing.T) {
	if _, err := SanitizePayment(nil); err == nil {
		t.Fatal("nil payment must be rejected")
	}
	if _, err := SanitizePayment(&Payment{ID: "p", Amount: big.NewInt(0)}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	sanitized, err := SanitizePayment(&Payment{ID: " p ", Amount: big.NewInt(10), Asset: "usdc"})
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if sanitized.ID != "p" || sanitized.Asset != "USDC" {
		t.Fatalf("normalization failed: %q %q", sanitized.ID, sanitized.Asset)
	}
}
