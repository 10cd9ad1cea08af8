package payments

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"escrowd/core/events"
	"escrowd/core/types"
	"escrowd/native/common"
	"escrowd/native/fees"
)

const moduleName = "payments"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVHas(key []byte) (bool, error)
	GetAccount(addr types.Address) (*types.Account, error)
	PutAccount(addr types.Address, account *types.Account) error
	VaultAddress(module, asset string) (types.Address, error)
}

type platformView interface {
	FeeBps() (uint32, error)
	Treasury() (types.Address, error)
	RequireAdmin(caller types.Address) error
	IsAssetSupported(symbol string) (bool, error)
}

type paymentEvent struct {
	evt *types.Event
}

func (e paymentEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e paymentEvent) Event() *types.Event { return e.evt }

// Engine drives the generic escrow payment state machine. Unlike the
// marketplace flow it supports registered fungible assets and settles by
// pushing funds to the recipient the moment a transition completes.
type Engine struct {
	state    engineState
	platform platformView
	emitter  events.Emitter
	pauses   common.PauseView
	nowFn    func() int64
}

// NewEngine creates a payments engine with a no-op emitter.
func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetPlatform configures the fee, treasury, admin and allow-list views.
func (e *Engine) SetPlatform(view platformView) { e.platform = view }

// SetPauses configures the module pause switches.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetEmitter configures the event emitter. Passing nil resets to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the logical clock, primarily for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(paymentEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return ErrNilState
	}
	if e.platform == nil {
		return fmt.Errorf("payments: platform view not configured")
	}
	return common.Guard(e.pauses, moduleName)
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

// transferAsset moves funds between accounts in the payment's denomination.
func (e *Engine) transferAsset(from, to types.Address, asset string, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	if amt.Sign() < 0 {
		return fmt.Errorf("payments: negative transfer amount")
	}
	if from == to {
		// Debiting and crediting the same account through two copies would
		// let the credit survive the debit.
		return ErrSelfTransfer
	}
	fromAcc, err := e.state.GetAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := e.state.GetAccount(to)
	if err != nil {
		return err
	}
	if asset == AssetNative {
		if fromAcc.BalanceNative.Cmp(amt) < 0 {
			return ErrInsufficientBal
		}
		fromAcc.BalanceNative = new(big.Int).Sub(fromAcc.BalanceNative, amt)
		toAcc.BalanceNative = new(big.Int).Add(toAcc.BalanceNative, amt)
	} else {
		fromBal := fromAcc.AssetBalance(asset)
		if fromBal.Cmp(amt) < 0 {
			return ErrInsufficientBal
		}
		fromAcc.Balances[asset] = fromBal.Sub(fromBal, amt)
		toBal := toAcc.AssetBalance(asset)
		toAcc.Balances[asset] = toBal.Add(toBal, amt)
	}
	if err := e.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return e.state.PutAccount(to, toAcc)
}

func (e *Engine) vault(asset string) (types.Address, error) {
	return e.state.VaultAddress(moduleName, asset)
}

func (e *Engine) treasury() (types.Address, error) {
	treasury, err := e.platform.Treasury()
	if err != nil {
		return types.Address{}, err
	}
	if treasury == (types.Address{}) {
		return types.Address{}, ErrNilTreasury
	}
	return treasury, nil
}

// Create escrows a new payment under a caller-chosen identifier. The buyer
// deposits amount plus fee in a single combined transfer; a rejected deposit
// leaves no record behind. The identifier is registered in both parties'
// bounded history lists.
func (e *Engine) Create(buyer types.Address, id string, seller types.Address, amount *big.Int, asset, note string) (*Payment, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	normalizedID, err := NormalizeID(id)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	normalizedAsset := NormalizeAsset(asset)
	if normalizedAsset != AssetNative {
		supported, err := e.platform.IsAssetSupported(normalizedAsset)
		if err != nil {
			return nil, err
		}
		if !supported {
			return nil, ErrUnsupportedAsset
		}
	}
	vault, err := e.vault(normalizedAsset)
	if err != nil {
		return nil, err
	}
	if buyer == vault || seller == vault {
		return nil, ErrInvalidParty
	}
	exists, err := e.state.KVHas(paymentStorageKey(normalizedID))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}
	buyerIDs, err := e.history(buyerHistoryKey(buyer))
	if err != nil {
		return nil, err
	}
	sellerIDs, err := e.history(sellerHistoryKey(seller))
	if err != nil {
		return nil, err
	}
	if len(buyerIDs) >= HistoryCap || len(sellerIDs) >= HistoryCap {
		return nil, ErrHistoryFull
	}
	rateBps, err := e.platform.FeeBps()
	if err != nil {
		return nil, err
	}
	split, err := fees.Quote(amount, rateBps)
	if err != nil {
		return nil, err
	}
	payment := &Payment{
		ID:        normalizedID,
		Buyer:     buyer,
		Seller:    seller,
		Amount:    new(big.Int).Set(amount),
		FeeAmount: split.Fee,
		Asset:     normalizedAsset,
		Status:    PaymentPending,
		CreatedAt: e.now(),
		Note:      strings.TrimSpace(note),
	}
	if err := e.transferAsset(buyer, vault, normalizedAsset, payment.Deposit()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	if err := e.putPayment(payment); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(buyerHistoryKey(buyer), append(buyerIDs, normalizedID)); err != nil {
		return nil, err
	}
	if err := e.state.KVPut(sellerHistoryKey(seller), append(sellerIDs, normalizedID)); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(payment))
	return payment.Clone(), nil
}

// Get returns a copy of the stored payment.
func (e *Engine) Get(id string) (*Payment, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	payment, ok, err := e.getPayment(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return payment.Clone(), true, nil
}

// BuyerHistory lists the payment ids created by an account as buyer.
func (e *Engine) BuyerHistory(addr types.Address) ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.history(buyerHistoryKey(addr))
}

// SellerHistory lists the payment ids naming an account as seller.
func (e *Engine) SellerHistory(addr types.Address) ([]string, error) {
	if e == nil || e.state == nil {
		return nil, ErrNilState
	}
	return e.history(sellerHistoryKey(addr))
}

// ConfirmDelivery releases the payment: the escrowed amount goes to the
// seller and the fee to the treasury, both in the same operation. Requires a
// pending payment and the buyer as caller.
func (e *Engine) ConfirmDelivery(caller types.Address, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	payment, ok, err := e.getPayment(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if payment.Buyer != caller {
		return ErrNotAuthorized
	}
	if payment.Status != PaymentPending {
		return ErrInvalidState
	}
	vault, err := e.vault(payment.Asset)
	if err != nil {
		return err
	}
	if err := e.transferAsset(vault, payment.Seller, payment.Asset, payment.Amount); err != nil {
		return err
	}
	if payment.FeeAmount.Sign() > 0 {
		treasury, err := e.treasury()
		if err != nil {
			return err
		}
		if err := e.transferAsset(vault, treasury, payment.Asset, payment.FeeAmount); err != nil {
			return err
		}
	}
	payment.Status = PaymentCompleted
	payment.CompletedAt = e.now()
	if err := e.putPayment(payment); err != nil {
		return err
	}
	e.emit(NewCompletedEvent(payment))
	return nil
}

// RequestRefund flags a pending payment as disputed, storing the buyer's
// reason as the payment note. Resolution then requires the seller, or an
// admin ruling.
func (e *Engine) RequestRefund(caller types.Address, id, reason string) error {
	if err := e.ready(); err != nil {
		return err
	}
	payment, ok, err := e.getPayment(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if payment.Buyer != caller {
		return ErrNotAuthorized
	}
	if payment.Status != PaymentPending {
		return ErrInvalidState
	}
	payment.Status = PaymentDisputed
	payment.Note = strings.TrimSpace(reason)
	if err := e.putPayment(payment); err != nil {
		return err
	}
	e.emit(NewDisputedEvent(payment))
	return nil
}

// ProcessRefund returns the full deposit, fee included, to the buyer. The
// seller can concede directly, or an admin can short-circuit arbitration.
// A pre-arbitration refund never retains the platform fee; only admin
// rulings in the seller's favour do.
func (e *Engine) ProcessRefund(caller types.Address, id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	payment, ok, err := e.getPayment(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if payment.Seller != caller {
		if err := e.platform.RequireAdmin(caller); err != nil {
			return ErrNotAuthorized
		}
	}
	if payment.Status != PaymentPending && payment.Status != PaymentDisputed {
		return ErrInvalidState
	}
	vault, err := e.vault(payment.Asset)
	if err != nil {
		return err
	}
	if err := e.transferAsset(vault, payment.Buyer, payment.Asset, payment.Deposit()); err != nil {
		return fmt.Errorf("%w: %v", ErrRefundFailed, err)
	}
	payment.Status = PaymentRefunded
	if err := e.putPayment(payment); err != nil {
		return err
	}
	e.emit(NewRefundedEvent(payment))
	return nil
}

// ResolveDispute settles a disputed payment by admin ruling. Favouring the
// buyer refunds the full deposit including the fee; favouring the seller
// applies the standard split of amount to seller and fee to treasury.
func (e *Engine) ResolveDispute(caller types.Address, id string, favorBuyer bool, note string) error {
	if err := e.ready(); err != nil {
		return err
	}
	payment, ok, err := e.getPayment(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	if err := e.platform.RequireAdmin(caller); err != nil {
		return ErrNotAuthorized
	}
	if payment.Status != PaymentDisputed {
		return ErrInvalidState
	}
	vault, err := e.vault(payment.Asset)
	if err != nil {
		return err
	}
	outcome := "release"
	if favorBuyer {
		outcome = "refund"
		if err := e.transferAsset(vault, payment.Buyer, payment.Asset, payment.Deposit()); err != nil {
			return fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
	} else {
		if err := e.transferAsset(vault, payment.Seller, payment.Asset, payment.Amount); err != nil {
			return err
		}
		if payment.FeeAmount.Sign() > 0 {
			treasury, err := e.treasury()
			if err != nil {
				return err
			}
			if err := e.transferAsset(vault, treasury, payment.Asset, payment.FeeAmount); err != nil {
				return err
			}
		}
	}
	payment.Status = PaymentResolved
	payment.CompletedAt = e.now()
	if trimmed := strings.TrimSpace(note); trimmed != "" {
		payment.Note = trimmed
	}
	if err := e.putPayment(payment); err != nil {
		return err
	}
	e.emit(NewResolvedEvent(payment, outcome))
	return nil
}
