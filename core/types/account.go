package types

import "math/big"

// Address identifies an account. Addresses arrive from the hosting
// environment already authenticated; the settlement engines only compare
// them for role checks.
type Address = [20]byte

// Account holds the spendable funds for a single address. BalanceNative is
// the chain's native denomination; Balances carries registered fungible
// assets keyed by their canonical symbol.
type Account struct {
	Nonce         uint64
	BalanceNative *big.Int
	Balances      map[string]*big.Int
}

// Normalize returns the account with all balance fields non-nil so callers
// can do arithmetic without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{BalanceNative: big.NewInt(0), Balances: make(map[string]*big.Int)}
	}
	if a.BalanceNative == nil {
		a.BalanceNative = big.NewInt(0)
	}
	if a.Balances == nil {
		a.Balances = make(map[string]*big.Int)
	}
	return a
}

// AssetBalance returns the balance held for the supplied asset symbol. The
// returned value is a copy.
func (a *Account) AssetBalance(asset string) *big.Int {
	if a == nil || a.Balances == nil {
		return big.NewInt(0)
	}
	if bal, ok := a.Balances[asset]; ok && bal != nil {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return (&Account{}).Normalize()
	}
	clone := &Account{
		Nonce:         a.Nonce,
		BalanceNative: big.NewInt(0),
		Balances:      make(map[string]*big.Int, len(a.Balances)),
	}
	if a.BalanceNative != nil {
		clone.BalanceNative = new(big.Int).Set(a.BalanceNative)
	}
	for asset, bal := range a.Balances {
		if bal == nil {
			clone.Balances[asset] = big.NewInt(0)
			continue
		}
		clone.Balances[asset] = new(big.Int).Set(bal)
	}
	return clone
}
