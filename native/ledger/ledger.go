package ledger

import (
	"errors"
	"fmt"
	"math/big"

	"escrowd/core/types"
)

// VaultModule names the custody account family shared by the marketplace
// settlement flow: purchase deposits land here and withdrawals pay out of it.
const VaultModule = "settlement"

var (
	ErrNilState          = errors.New("ledger: state not configured")
	ErrInvalidAmount     = errors.New("ledger: amount must be positive")
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")
	ErrNothingToWithdraw = errors.New("ledger: nothing to withdraw")
	ErrNotAuthorized     = errors.New("ledger: caller is not the platform admin")
	ErrSelfTransfer      = errors.New("ledger: transfer from and to must differ")
)

var (
	balancePrefix  = []byte("ledger/balance/")
	platformKeyRaw = []byte("ledger/platform")
)

func balanceKey(account types.Address) []byte {
	buf := make([]byte, 0, len(balancePrefix)+len(account))
	buf = append(buf, balancePrefix...)
	buf = append(buf, account[:]...)
	return buf
}

type ledgerState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	GetAccount(addr types.Address) (*types.Account, error)
	PutAccount(addr types.Address, account *types.Account) error
	VaultAddress(module, asset string) (types.Address, error)
}

// AdminView gates the platform accumulator withdrawal.
type AdminView interface {
	RequireAdmin(caller types.Address) error
}

// Engine maintains the pull-based withdrawable balances for sellers and the
// platform fee accumulator. Deposited funds sit in the settlement vault
// until withdrawn or refunded; ledger entries only record the claim.
type Engine struct {
	state ledgerState
	admin AdminView
}

// NewEngine creates a ledger engine. State and admin view are wired by the
// caller before use.
func NewEngine() *Engine {
	return &Engine{}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state ledgerState) { e.state = state }

// SetAdminView configures the admin gate used for platform withdrawals.
func (e *Engine) SetAdminView(view AdminView) { e.admin = view }

func (e *Engine) withState() (ledgerState, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.state, nil
}

func (e *Engine) vault() (types.Address, error) {
	state, err := e.withState()
	if err != nil {
		return types.Address{}, err
	}
	return state.VaultAddress(VaultModule, "")
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (e *Engine) transferNative(from, to types.Address, amount *big.Int) error {
	state, err := e.withState()
	if err != nil {
		return err
	}
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("ledger: negative transfer amount")
	}
	if from == to {
		// Debiting and crediting the same account through two copies would
		// let the credit survive the debit.
		return ErrSelfTransfer
	}
	fromAcc, err := state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := state.GetAccount(to)
	if err != nil {
		return err
	}
	if fromAcc.BalanceNative.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.BalanceNative = new(big.Int).Sub(fromAcc.BalanceNative, amt)
	toAcc.BalanceNative = new(big.Int).Add(toAcc.BalanceNative, amt)
	if err := state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return state.PutAccount(to, toAcc)
}

// Deposit locks funds from the payer into the settlement vault. The market
// engine calls this before any purchase record is written so a rejected
// transfer leaves no trace.
func (e *Engine) Deposit(from types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	vault, err := e.vault()
	if err != nil {
		return err
	}
	return e.transferNative(from, vault, amount)
}

// PayoutRefund returns vault custody funds directly to the recipient,
// bypassing the withdrawable balance. Used for dispute refunds.
func (e *Engine) PayoutRefund(to types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	vault, err := e.vault()
	if err != nil {
		return err
	}
	return e.transferNative(vault, to, amount)
}

// Balance returns the withdrawable balance recorded for an account.
func (e *Engine) Balance(account types.Address) (*big.Int, error) {
	state, err := e.withState()
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	ok, err := state.KVGet(balanceKey(account), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Credit adds proceeds to an account's withdrawable balance. Repeated credits
// accumulate; nothing is ever overwritten.
func (e *Engine) Credit(account types.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	state, err := e.withState()
	if err != nil {
		return err
	}
	balance, err := e.Balance(account)
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return state.KVPut(balanceKey(account), balance)
}

// Withdraw pays out the full withdrawable balance for an account. The stored
// balance is zeroed before the outbound transfer is initiated; if the payout
// fails the balance is written back so the claim survives.
func (e *Engine) Withdraw(account types.Address) (*big.Int, error) {
	state, err := e.withState()
	if err != nil {
		return nil, err
	}
	balance, err := e.Balance(account)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := state.KVPut(balanceKey(account), big.NewInt(0)); err != nil {
		return nil, err
	}
	vault, err := e.vault()
	if err != nil {
		return nil, err
	}
	if err := e.transferNative(vault, account, balance); err != nil {
		if restoreErr := state.KVPut(balanceKey(account), balance); restoreErr != nil {
			return nil, fmt.Errorf("ledger: payout failed (%v) and balance restore failed: %w", err, restoreErr)
		}
		return nil, err
	}
	return balance, nil
}

// PlatformBalance returns the accumulated platform fees pending withdrawal.
func (e *Engine) PlatformBalance() (*big.Int, error) {
	state, err := e.withState()
	if err != nil {
		return nil, err
	}
	balance := new(big.Int)
	ok, err := state.KVGet(platformKeyRaw, balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// CreditPlatform adds a settled fee to the platform accumulator.
func (e *Engine) CreditPlatform(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if amount.Sign() == 0 {
		return nil
	}
	state, err := e.withState()
	if err != nil {
		return err
	}
	balance, err := e.PlatformBalance()
	if err != nil {
		return err
	}
	balance.Add(balance, amount)
	return state.KVPut(platformKeyRaw, balance)
}

// WithdrawPlatform pays the accumulated fees out to the platform admin. The
// same zero-then-restore-on-failure ordering as Withdraw applies.
func (e *Engine) WithdrawPlatform(caller types.Address) (*big.Int, error) {
	if e == nil || e.admin == nil {
		return nil, ErrNotAuthorized
	}
	if err := e.admin.RequireAdmin(caller); err != nil {
		return nil, ErrNotAuthorized
	}
	state, err := e.withState()
	if err != nil {
		return nil, err
	}
	balance, err := e.PlatformBalance()
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, ErrNothingToWithdraw
	}
	if err := state.KVPut(platformKeyRaw, big.NewInt(0)); err != nil {
		return nil, err
	}
	vault, err := e.vault()
	if err != nil {
		return nil, err
	}
	if err := e.transferNative(vault, caller, balance); err != nil {
		if restoreErr := state.KVPut(platformKeyRaw, balance); restoreErr != nil {
			return nil, fmt.Errorf("ledger: payout failed (%v) and balance restore failed: %w", err, restoreErr)
		}
		return nil, err
	}
	return balance, nil
}
