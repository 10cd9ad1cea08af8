package market

import (
	"fmt"
	"math/big"
	"time"

	"escrowd/core/events"
	"escrowd/core/types"
	"escrowd/native/common"
	"escrowd/native/fees"
)

const moduleName = "market"

type engineState interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	IncrementCounter(name string) (uint64, error)
}

// settlementLedger is the slice of the balance ledger the purchase flow
// needs: custody deposits, dispute refunds, and settlement credits.
type settlementLedger interface {
	Deposit(from types.Address, amount *big.Int) error
	PayoutRefund(to types.Address, amount *big.Int) error
	Credit(account types.Address, amount *big.Int) error
	CreditPlatform(amount *big.Int) error
}

type platformView interface {
	FeeBps() (uint32, error)
	RequireAdmin(caller types.Address) error
}

type marketEvent struct {
	evt *types.Event
}

func (e marketEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e marketEvent) Event() *types.Event { return e.evt }

// Engine drives the listing store and the purchase settlement state machine.
// Deposited funds move through the settlement ledger; the engine itself only
// sequences validations, transfers and record writes.
type Engine struct {
	state          engineState
	ledger         settlementLedger
	platform       platformView
	emitter        events.Emitter
	pauses         common.PauseView
	nowFn          func() int64
	strictShipping bool
}

// NewEngine creates a market engine with a no-op emitter and strict
// Pending-to-Shipped transition checking.
func NewEngine() *Engine {
	return &Engine{
		emitter:        events.NoopEmitter{},
		nowFn:          func() int64 { return time.Now().Unix() },
		strictShipping: true,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger configures the balance ledger receiving settlement credits.
func (e *Engine) SetLedger(ledger settlementLedger) { e.ledger = ledger }

// SetPlatform configures the fee-rate and admin views.
func (e *Engine) SetPlatform(view platformView) { e.platform = view }

// SetPauses configures the module pause switches.
func (e *Engine) SetPauses(p common.PauseView) { e.pauses = p }

// SetStrictShipping toggles the hardened Pending-only shipment rule. Lenient
// mode accepts a shipment mark from any prior status for compatibility with
// call sequences the original contract permitted.
func (e *Engine) SetStrictShipping(strict bool) { e.strictShipping = strict }

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
	e.emitter.Emit(marketEvent{evt: event})
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
	if e.ledger == nil || e.platform == nil {
		return fmt.Errorf("market: ledger or platform view not configured")
	}
	return common.Guard(e.pauses, moduleName)
}

// CreateListing validates and persists a new active listing owned by the
// caller, assigning it a strictly increasing identifier.
func (e *Engine) CreateListing(owner types.Address, price *big.Int, inventory uint64, duration int64) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if inventory == 0 {
		return nil, ErrInvalidInventory
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	now := e.now()
	id, err := e.state.IncrementCounter(listingSeqCounter)
	if err != nil {
		return nil, err
	}
	listing := &Listing{
		ID:        id,
		Owner:     owner,
		Price:     new(big.Int).Set(price),
		Inventory: inventory,
		CreatedAt: now,
		ExpiresAt: now + duration,
		Status:    ListingActive,
	}
	if err := e.putListing(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingCreatedEvent(listing))
	return listing.Clone(), nil
}

// UpdateListing lets the owner re-price, re-stock and extend a listing. The
// status is left untouched; a sold-out or cancelled listing does not
// reactivate through an update, while extending the deadline revives a
// deadline-expired one.
func (e *Engine) UpdateListing(caller types.Address, id uint64, price *big.Int, inventory uint64, duration int64) (*Listing, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if price == nil || price.Sign() <= 0 {
		return nil, ErrInvalidPrice
	}
	if inventory == 0 {
		return nil, ErrInvalidInventory
	}
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	listing, ok, err := e.getListing(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	if listing.Owner != caller {
		return nil, ErrNotAuthorized
	}
	listing.Price = new(big.Int).Set(price)
	listing.Inventory = inventory
	listing.ExpiresAt = e.now() + duration
	if err := e.putListing(listing); err != nil {
		return nil, err
	}
	e.emit(NewListingUpdatedEvent(listing))
	return listing.Clone(), nil
}

// CancelListing terminally cancels a listing. The owner may cancel at any
// point, including after sell-out or expiry.
func (e *Engine) CancelListing(caller types.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	listing, ok, err := e.getListing(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrListingNotFound
	}
	if listing.Owner != caller {
		return ErrNotAuthorized
	}
	listing.Status = ListingCancelled
	if err := e.putListing(listing); err != nil {
		return err
	}
	e.emit(NewListingCancelledEvent(listing))
	return nil
}

// GetListing returns a copy of the stored listing. A live listing past its
// deadline is reported as expired; the stored record is never rewritten on a
// read, so the owner can still extend it.
func (e *Engine) GetListing(id uint64) (*Listing, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	listing, ok, err := e.getListing(id)
	if err != nil || !ok {
		return nil, false, err
	}
	clone := listing.Clone()
	if clone.Status == ListingActive && clone.ExpiresAt <= e.now() {
		clone.Status = ListingExpired
	}
	return clone, true, nil
}

// IsListingActive reports whether the listing can currently be purchased.
func (e *Engine) IsListingActive(id uint64) (bool, error) {
	listing, ok, err := e.GetListing(id)
	if err != nil || !ok {
		return false, err
	}
	return listing.Status == ListingActive && listing.ExpiresAt > e.now(), nil
}

// Purchase locks price*quantity of the buyer's funds into settlement custody
// and creates a pending purchase record. The transfer happens before any
// record write so a rejected payment leaves the listing untouched.
func (e *Engine) Purchase(buyer types.Address, listingID, quantity uint64) (*Purchase, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	listing, ok, err := e.getListing(listingID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrListingNotFound
	}
	now := e.now()
	if listing.ExpiresAt <= now {
		return nil, ErrListingExpired
	}
	if listing.Status != ListingActive {
		return nil, ErrListingInactive
	}
	if quantity == 0 {
		return nil, ErrInvalidQuantity
	}
	if listing.Inventory < quantity {
		return nil, ErrInsufficientInventory
	}
	total := new(big.Int).Mul(listing.Price, new(big.Int).SetUint64(quantity))
	if err := e.ledger.Deposit(buyer, total); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}
	id, err := e.state.IncrementCounter(purchaseSeqCounter)
	if err != nil {
		return nil, err
	}
	purchase := &Purchase{
		ID:           id,
		ListingID:    listing.ID,
		Buyer:        buyer,
		Seller:       listing.Owner,
		UnitPrice:    new(big.Int).Set(listing.Price),
		Quantity:     quantity,
		Status:       PurchasePending,
		PurchaseTime: now,
	}
	if err := e.putPurchase(purchase); err != nil {
		return nil, err
	}
	listing.Inventory -= quantity
	if listing.Inventory == 0 {
		listing.Status = ListingSoldOut
	}
	if err := e.putListing(listing); err != nil {
		return nil, err
	}
	e.emit(NewPurchaseCreatedEvent(purchase))
	return purchase.Clone(), nil
}

// GetPurchase returns a copy of the stored purchase record.
func (e *Engine) GetPurchase(id uint64) (*Purchase, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, ErrNilState
	}
	purchase, ok, err := e.getPurchase(id)
	if err != nil || !ok {
		return nil, false, err
	}
	return purchase.Clone(), true, nil
}

// MarkShipped records the seller's shipment. In strict mode only a pending
// purchase can be marked; lenient mode mirrors the original contract, which
// accepted the mark from any status.
func (e *Engine) MarkShipped(caller types.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	purchase, ok, err := e.getPurchase(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPurchaseNotFound
	}
	if purchase.Seller != caller {
		return ErrNotAuthorized
	}
	if e.strictShipping && purchase.Status != PurchasePending {
		return ErrInvalidState
	}
	purchase.Status = PurchaseShipped
	if err := e.putPurchase(purchase); err != nil {
		return err
	}
	e.emit(NewPurchaseShippedEvent(purchase))
	return nil
}

// ConfirmDelivery settles the purchase in the seller's favour: the fee split
// is computed on the gross total, seller proceeds are credited to the
// withdrawable ledger and the fee accrues to the platform accumulator. The
// operation is deliberately not idempotent.
func (e *Engine) ConfirmDelivery(caller types.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	purchase, ok, err := e.getPurchase(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPurchaseNotFound
	}
	if purchase.Buyer != caller {
		return ErrNotAuthorized
	}
	switch purchase.Status {
	case PurchaseDelivered:
		return ErrAlreadyConfirmed
	case PurchaseDisputed:
		return ErrPurchaseDisputed
	case PurchaseRefunded:
		return ErrAlreadyRefunded
	case PurchasePending, PurchaseShipped:
	default:
		return ErrInvalidState
	}
	if err := e.settle(purchase); err != nil {
		return err
	}
	e.emit(NewPurchaseDeliveredEvent(purchase))
	return nil
}

// FileDispute pauses settlement until an admin arbitrates. Only the buyer may
// dispute, and only before delivery is confirmed.
func (e *Engine) FileDispute(caller types.Address, id uint64) error {
	if err := e.ready(); err != nil {
		return err
	}
	purchase, ok, err := e.getPurchase(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPurchaseNotFound
	}
	if purchase.Buyer != caller {
		return ErrNotAuthorized
	}
	if purchase.Status != PurchasePending && purchase.Status != PurchaseShipped {
		return ErrInvalidState
	}
	purchase.Status = PurchaseDisputed
	if err := e.putPurchase(purchase); err != nil {
		return err
	}
	e.emit(NewPurchaseDisputedEvent(purchase))
	return nil
}

// ResolveDispute arbitrates a disputed purchase. Refunding the buyer returns
// the full gross amount with no fee; ruling for the seller follows the exact
// settlement path of ConfirmDelivery, fee included.
func (e *Engine) ResolveDispute(caller types.Address, id uint64, refundBuyer bool) error {
	if err := e.ready(); err != nil {
		return err
	}
	purchase, ok, err := e.getPurchase(id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPurchaseNotFound
	}
	if err := e.platform.RequireAdmin(caller); err != nil {
		return ErrNotAuthorized
	}
	if purchase.Status != PurchaseDisputed {
		return ErrInvalidState
	}
	if refundBuyer {
		total := purchase.Total()
		if err := e.ledger.PayoutRefund(purchase.Buyer, total); err != nil {
			return fmt.Errorf("%w: %v", ErrRefundFailed, err)
		}
		purchase.Status = PurchaseRefunded
		if err := e.putPurchase(purchase); err != nil {
			return err
		}
		e.emit(NewPurchaseRefundedEvent(purchase))
		e.emit(NewPurchaseResolvedEvent(purchase))
		return nil
	}
	if err := e.settle(purchase); err != nil {
		return err
	}
	e.emit(NewPurchaseDeliveredEvent(purchase))
	e.emit(NewPurchaseResolvedEvent(purchase))
	return nil
}

// settle applies the fee split for a purchase and marks it delivered. Callers
// have already verified the transition is allowed.
func (e *Engine) settle(purchase *Purchase) error {
	rateBps, err := e.platform.FeeBps()
	if err != nil {
		return err
	}
	split, err := fees.Quote(purchase.Total(), rateBps)
	if err != nil {
		return err
	}
	if split.Proceeds.Sign() > 0 {
		if err := e.ledger.Credit(purchase.Seller, split.Proceeds); err != nil {
			return err
		}
	}
	if err := e.ledger.CreditPlatform(split.Fee); err != nil {
		return err
	}
	purchase.Status = PurchaseDelivered
	purchase.DeliveryTime = e.now()
	return e.putPurchase(purchase)
}
