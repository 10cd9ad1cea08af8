package fees

import (
	"errors"
	"math/big"
)

// BpsDenominator is the basis-point scale: 10_000 bps equals 100%.
const BpsDenominator = 10_000

// MaxPlatformFeeBps caps the configurable platform rate at 10%.
const MaxPlatformFeeBps uint32 = 1_000

var (
	ErrNilAmount      = errors.New("fees: nil amount")
	ErrNegativeAmount = errors.New("fees: amount must not be negative")
	ErrBpsOutOfRange  = errors.New("fees: bps out of range")
)

// Split is the result of applying a fee rate to a gross amount. The fee is
// floored so rounding dust always stays with the payer side, never the
// platform: Fee + Proceeds == gross exactly.
type Split struct {
	Fee      *big.Int
	Proceeds *big.Int
}

// Quote computes the platform fee and seller proceeds for a gross amount at
// the supplied rate. Pure function; big.Int arithmetic keeps the multiply
// widened so no overflow path exists.
func Quote(amount *big.Int, rateBps uint32) (Split, error) {
	if amount == nil {
		return Split{}, ErrNilAmount
	}
	if amount.Sign() < 0 {
		return Split{}, ErrNegativeAmount
	}
	if rateBps > BpsDenominator {
		return Split{}, ErrBpsOutOfRange
	}
	fee := new(big.Int).Mul(amount, new(big.Int).SetUint64(uint64(rateBps)))
	fee.Div(fee, big.NewInt(BpsDenominator))
	proceeds := new(big.Int).Sub(amount, fee)
	return Split{Fee: fee, Proceeds: proceeds}, nil
}

// ValidatePlatformRate bounds admin-configured rates to the platform maximum.
func ValidatePlatformRate(rateBps uint32) error {
	if rateBps > MaxPlatformFeeBps {
		return ErrBpsOutOfRange
	}
	return nil
}
