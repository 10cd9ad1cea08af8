package payments

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"escrowd/core/types"
	"escrowd/state"
	"escrowd/storage"
)

type mockPlatform struct {
	feeBps   uint32
	treasury types.Address
	admin    types.Address
	assets   map[string]bool
}

func (m *mockPlatform) FeeBps() (uint32, error) { return m.feeBps, nil }

func (m *mockPlatform) Treasury() (types.Address, error) { return m.treasury, nil }

func (m *mockPlatform) RequireAdmin(caller types.Address) error {
	if caller != m.admin {
		return errors.New("not admin")
	}
	return nil
}

func (m *mockPlatform) IsAssetSupported(symbol string) (bool, error) {
	return m.assets[symbol], nil
}

func newTestAddress(fill byte) types.Address {
	var addr types.Address
	copy(addr[:], bytes.Repeat([]byte{fill}, len(addr)))
	return addr
}

func newTestEngine(t *testing.T) (*Engine, *state.Manager, *mockPlatform) {
	t.Helper()
	manager := state.NewManager(storage.NewMemDB())
	platform := &mockPlatform{
		feeBps:   250,
		treasury: newTestAddress(0xFE),
		admin:    newTestAddress(0xAD),
		assets:   map[string]bool{"USDC": true},
	}
	engine := NewEngine()
	engine.SetState(manager)
	engine.SetPlatform(platform)
	engine.SetNowFunc(func() int64 { return 1_700_000_000 })
	return engine, manager, platform
}

func fundNative(t *testing.T, manager *state.Manager, addr types.Address, amount int64) {
	t.Helper()
	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	account.BalanceNative = big.NewInt(amount)
	if err := manager.PutAccount(addr, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func fundAsset(t *testing.T, manager *state.Manager, addr types.Address, asset string, amount int64) {
	t.Helper()
	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	account.Balances[asset] = big.NewInt(amount)
	if err := manager.PutAccount(addr, account); err != nil {
		t.Fatalf("put account: %v", err)
	}
}

func nativeBalance(t *testing.T, manager *state.Manager, addr types.Address) *big.Int {
	t.Helper()
	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.BalanceNative
}

func assetBalance(t *testing.T, manager *state.Manager, addr types.Address, asset string) *big.Int {
	t.Helper()
	account, err := manager.GetAccount(addr)
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	return account.AssetBalance(asset)
}

func TestCreateValidation(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 10_000)

	if _, err := engine.Create(buyer, "  ", seller, big.NewInt(100), "", ""); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := engine.Create(buyer, "pay-1", seller, nil, "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for nil amount, got %v", err)
	}
	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(0), "", ""); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero amount, got %v", err)
	}
	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(100), "DOGE", ""); !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected ErrUnsupportedAsset, got %v", err)
	}
}

func TestCreateEscrowsDepositPlusFee(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	payment, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", "headphones")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if payment.Asset != AssetNative {
		t.Fatalf("empty asset should default to native, got %q", payment.Asset)
	}
	// 1000 at 250 bps escrows 1025 total.
	if payment.FeeAmount.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected fee 25, got %s", payment.FeeAmount)
	}
	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(975)) != 0 {
		t.Fatalf("expected buyer balance 975 after deposit, got %s", got)
	}

	vault, err := manager.VaultAddress("payments", AssetNative)
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}
	if got := nativeBalance(t, manager, vault); got.Cmp(big.NewInt(1_025)) != 0 {
		t.Fatalf("expected vault custody 1025, got %s", got)
	}

	buyerIDs, err := engine.BuyerHistory(buyer)
	if err != nil {
		t.Fatalf("buyer history: %v", err)
	}
	sellerIDs, err := engine.SellerHistory(seller)
	if err != nil {
		t.Fatalf("seller history: %v", err)
	}
	if len(buyerIDs) != 1 || buyerIDs[0] != "pay-1" {
		t.Fatalf("unexpected buyer history %v", buyerIDs)
	}
	if len(sellerIDs) != 1 || sellerIDs[0] != "pay-1" {
		t.Fatalf("unexpected seller history %v", sellerIDs)
	}
}

func TestCreateDuplicateID(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 10_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(100), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(100), "", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
	// Identifier normalization must catch padded duplicates too.
	if _, err := engine.Create(buyer, "  pay-1  ", seller, big.NewInt(100), "", ""); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for padded id, got %v", err)
	}
}

func TestCreateInsufficientFunds(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 1_000)

	// Deposit is amount plus fee, so exactly 1000 cannot cover 1000+25.
	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); !errors.Is(err, ErrPaymentFailed) {
		t.Fatalf("expected ErrPaymentFailed, got %v", err)
	}
	if _, ok, err := engine.Get("pay-1"); err != nil || ok {
		t.Fatalf("failed create must leave no record: ok=%v err=%v", ok, err)
	}
	ids, err := engine.BuyerHistory(buyer)
	if err != nil {
		t.Fatalf("buyer history: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("failed create must leave no history, got %v", ids)
	}
}

func TestConfirmDeliveryReleasesFunds(t *testing.T) {
	engine, manager, platform := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.ConfirmDelivery(seller, "pay-1"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("seller must not confirm, got %v", err)
	}
	if err := engine.ConfirmDelivery(buyer, "pay-1"); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}

	if got := nativeBalance(t, manager, seller); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected seller 1000, got %s", got)
	}
	if got := nativeBalance(t, manager, platform.treasury); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected treasury 25, got %s", got)
	}

	payment, ok, err := engine.Get("pay-1")
	if err != nil || !ok {
		t.Fatalf("get: ok=%v err=%v", ok, err)
	}
	if payment.Status != PaymentCompleted {
		t.Fatalf("expected completed, got %v", payment.Status)
	}
	if payment.CompletedAt == 0 {
		t.Fatal("completion timestamp not set")
	}
	if err := engine.ConfirmDelivery(buyer, "pay-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double confirm, got %v", err)
	}
}

func TestSellerRefundReturnsFee(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.ProcessRefund(newTestAddress(0x03), "pay-1"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger refund must fail, got %v", err)
	}
	if err := engine.ProcessRefund(seller, "pay-1"); err != nil {
		t.Fatalf("process refund: %v", err)
	}

	// The buyer gets the full deposit back, fee included.
	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("expected buyer made whole at 2000, got %s", got)
	}
	payment, _, err := engine.Get("pay-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != PaymentRefunded {
		t.Fatalf("expected refunded, got %v", payment.Status)
	}
	if err := engine.ProcessRefund(seller, "pay-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on double refund, got %v", err)
	}
}

func TestRequestRefundRecordsDispute(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.RequestRefund(seller, "pay-1", "never arrived"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("seller must not open a refund request, got %v", err)
	}
	if err := engine.RequestRefund(buyer, "pay-1", "  never arrived  "); err != nil {
		t.Fatalf("request refund: %v", err)
	}

	payment, _, err := engine.Get("pay-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != PaymentDisputed {
		t.Fatalf("expected disputed, got %v", payment.Status)
	}
	if payment.Note != "never arrived" {
		t.Fatalf("reason not recorded: %q", payment.Note)
	}
	if err := engine.ConfirmDelivery(buyer, "pay-1"); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("disputed payment must block confirmation, got %v", err)
	}
}

func TestResolveDisputeFavorBuyer(t *testing.T) {
	engine, manager, platform := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.ResolveDispute(platform.admin, "pay-1", true, ""); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("resolution requires a dispute, got %v", err)
	}
	if err := engine.RequestRefund(buyer, "pay-1", "wrong item"); err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if err := engine.ResolveDispute(seller, "pay-1", true, ""); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("only the admin rules, got %v", err)
	}
	if err := engine.ResolveDispute(platform.admin, "pay-1", true, "buyer evidence accepted"); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("expected full refund to 2000, got %s", got)
	}
	if got := nativeBalance(t, manager, platform.treasury); got.Sign() != 0 {
		t.Fatalf("buyer ruling must not pay the treasury, got %s", got)
	}
	payment, _, err := engine.Get("pay-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payment.Status != PaymentResolved {
		t.Fatalf("expected resolved, got %v", payment.Status)
	}
	if payment.Note != "buyer evidence accepted" {
		t.Fatalf("ruling note not recorded: %q", payment.Note)
	}
}

func TestResolveDisputeFavorSellerRetainsFee(t *testing.T) {
	engine, manager, platform := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 2_000)

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(1_000), "", ""); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := engine.RequestRefund(buyer, "pay-1", "changed my mind"); err != nil {
		t.Fatalf("request refund: %v", err)
	}
	if err := engine.ResolveDispute(platform.admin, "pay-1", false, ""); err != nil {
		t.Fatalf("resolve dispute: %v", err)
	}

	if got := nativeBalance(t, manager, seller); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected seller 1000, got %s", got)
	}
	if got := nativeBalance(t, manager, platform.treasury); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("seller ruling retains the fee, got %s", got)
	}
	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(975)) != 0 {
		t.Fatalf("expected buyer left at 975, got %s", got)
	}
}

func TestTokenAssetFlow(t *testing.T) {
	engine, manager, platform := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundAsset(t, manager, buyer, "USDC", 2_000)

	payment, err := engine.Create(buyer, "pay-usdc", seller, big.NewInt(1_000), "usdc", "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if payment.Asset != "USDC" {
		t.Fatalf("asset symbol not normalized: %q", payment.Asset)
	}
	if err := engine.ConfirmDelivery(buyer, "pay-usdc"); err != nil {
		t.Fatalf("confirm delivery: %v", err)
	}

	if got := assetBalance(t, manager, seller, "USDC"); got.Cmp(big.NewInt(1_000)) != 0 {
		t.Fatalf("expected seller 1000 USDC, got %s", got)
	}
	if got := assetBalance(t, manager, platform.treasury, "USDC"); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("expected treasury 25 USDC, got %s", got)
	}
	if got := assetBalance(t, manager, buyer, "USDC"); got.Cmp(big.NewInt(975)) != 0 {
		t.Fatalf("expected buyer 975 USDC, got %s", got)
	}
}

func TestPerAssetVaultsAreIsolated(t *testing.T) {
	_, manager, _ := newTestEngine(t)
	native, err := manager.VaultAddress("payments", AssetNative)
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}
	usdc, err := manager.VaultAddress("payments", "USDC")
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}
	if native == usdc {
		t.Fatal("asset vaults must not collide")
	}
}

func TestHistoryCapRejectsNewPayments(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	seller := newTestAddress(0x02)
	fundNative(t, manager, buyer, 10_000)

	full := make([]string, HistoryCap)
	for i := range full {
		full[i] = "old"
	}
	if err := manager.KVPut(buyerHistoryKey(buyer), full); err != nil {
		t.Fatalf("seed history: %v", err)
	}

	if _, err := engine.Create(buyer, "pay-1", seller, big.NewInt(100), "", ""); !errors.Is(err, ErrHistoryFull) {
		t.Fatalf("expected ErrHistoryFull, got %v", err)
	}
	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(10_000)) != 0 {
		t.Fatalf("rejected payment must not move funds, got %s", got)
	}
}

func TestCreateRejectsVaultCounterparty(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	buyer := newTestAddress(0x01)
	fundNative(t, manager, buyer, 2_000)
	vault, err := manager.VaultAddress(moduleName, AssetNative)
	if err != nil {
		t.Fatalf("vault address: %v", err)
	}

	if _, err := engine.Create(buyer, "pay-1", vault, big.NewInt(1_000), "", ""); !errors.Is(err, ErrInvalidParty) {
		t.Fatalf("vault seller: expected ErrInvalidParty, got %v", err)
	}
	if _, err := engine.Create(vault, "pay-2", buyer, big.NewInt(1_000), "", ""); !errors.Is(err, ErrInvalidParty) {
		t.Fatalf("vault buyer: expected ErrInvalidParty, got %v", err)
	}
	if got := nativeBalance(t, manager, buyer); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("rejected payment must not move funds, got %s", got)
	}
	if _, ok, err := engine.Get("pay-1"); err != nil || ok {
		t.Fatalf("rejected payment must leave no record, ok=%v err=%v", ok, err)
	}
}

func TestTransferAssetRejectsSelfTransfer(t *testing.T) {
	engine, manager, _ := newTestEngine(t)
	addr := newTestAddress(0x01)
	fundNative(t, manager, addr, 2_000)

	if err := engine.transferAsset(addr, addr, AssetNative, big.NewInt(1_000)); !errors.Is(err, ErrSelfTransfer) {
		t.Fatalf("expected ErrSelfTransfer, got %v", err)
	}
	if got := nativeBalance(t, manager, addr); got.Cmp(big.NewInt(2_000)) != 0 {
		t.Fatalf("self transfer must not change the balance, got %s", got)
	}
}
