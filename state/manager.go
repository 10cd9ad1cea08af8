package state

import (
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"escrowd/core/types"
	"escrowd/storage"
)

// Manager provides typed access to settlement state stored in a key-value
// backend. Keys are keccak digests of prefixed byte strings; values are
// RLP-encoded records.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	accountPrefix = []byte("account/")
	counterPrefix = []byte("counter/")
	paramPrefix   = []byte("param/")
	vaultPrefix   = []byte("vault/")
)

var errNilManager = errors.New("state: manager not configured")

func accountKey(addr types.Address) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func counterKey(name string) []byte {
	return ethcrypto.Keccak256(append(append([]byte{}, counterPrefix...), name...))
}

func paramKey(name string) []byte {
	return ethcrypto.Keccak256(append(append([]byte{}, paramPrefix...), name...))
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// storedAccount mirrors types.Account with the asset map flattened into a
// sorted slice, since RLP cannot encode maps.
type storedAccount struct {
	Nonce         uint64
	BalanceNative *big.Int
	Assets        []storedAssetBalance
}

type storedAssetBalance struct {
	Symbol string
	Amount *big.Int
}

// GetAccount loads the account stored for addr. A missing account resolves to
// a zero-balance account rather than an error.
func (m *Manager) GetAccount(addr types.Address) (*types.Account, error) {
	if m == nil || m.db == nil {
		return nil, errNilManager
	}
	raw, err := m.db.Get(accountKey(addr))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return (&types.Account{}).Normalize(), nil
	}
	if err != nil {
		return nil, err
	}
	stored := new(storedAccount)
	if err := rlp.DecodeBytes(raw, stored); err != nil {
		return nil, fmt.Errorf("state: decode account: %w", err)
	}
	account := &types.Account{
		Nonce:         stored.Nonce,
		BalanceNative: stored.BalanceNative,
		Balances:      make(map[string]*big.Int, len(stored.Assets)),
	}
	for _, entry := range stored.Assets {
		account.Balances[entry.Symbol] = entry.Amount
	}
	return account.Normalize(), nil
}

// PutAccount persists the account for addr.
func (m *Manager) PutAccount(addr types.Address, account *types.Account) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	account = account.Normalize()
	stored := &storedAccount{
		Nonce:         account.Nonce,
		BalanceNative: account.BalanceNative,
		Assets:        make([]storedAssetBalance, 0, len(account.Balances)),
	}
	symbols := make([]string, 0, len(account.Balances))
	for symbol := range account.Balances {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)
	for _, symbol := range symbols {
		amount := account.Balances[symbol]
		if amount == nil {
			amount = big.NewInt(0)
		}
		if amount.Sign() < 0 {
			return fmt.Errorf("state: negative balance for asset %s", symbol)
		}
		stored.Assets = append(stored.Assets, storedAssetBalance{Symbol: symbol, Amount: amount})
	}
	if stored.BalanceNative == nil {
		stored.BalanceNative = big.NewInt(0)
	}
	if stored.BalanceNative.Sign() < 0 {
		return fmt.Errorf("state: negative native balance")
	}
	encoded, err := rlp.EncodeToBytes(stored)
	if err != nil {
		return fmt.Errorf("state: encode account: %w", err)
	}
	return m.db.Put(accountKey(addr), encoded)
}

// Counter returns the current value of a named strictly-increasing counter.
func (m *Manager) Counter(name string) (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilManager
	}
	raw, err := m.db.Get(counterKey(name))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var value uint64
	if err := rlp.DecodeBytes(raw, &value); err != nil {
		return 0, fmt.Errorf("state: decode counter %s: %w", name, err)
	}
	return value, nil
}

// IncrementCounter advances the named counter and returns the new value. The
// first call returns 1 so zero stays available as an invalid id.
func (m *Manager) IncrementCounter(name string) (uint64, error) {
	current, err := m.Counter(name)
	if err != nil {
		return 0, err
	}
	next := current + 1
	encoded, err := rlp.EncodeToBytes(next)
	if err != nil {
		return 0, fmt.Errorf("state: encode counter %s: %w", name, err)
	}
	if err := m.db.Put(counterKey(name), encoded); err != nil {
		return 0, err
	}
	return next, nil
}

// ParamStoreSet stores a raw parameter value under the canonical key.
func (m *Manager) ParamStoreSet(name string, value []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("state: params key must not be empty")
	}
	return m.db.Put(paramKey(trimmed), append([]byte(nil), value...))
}

// ParamStoreGet loads a raw parameter value. The boolean reports presence.
func (m *Manager) ParamStoreGet(name string) ([]byte, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errNilManager
	}
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, false, fmt.Errorf("state: params key must not be empty")
	}
	raw, err := m.db.Get(paramKey(trimmed))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// KVPut RLP-encodes value under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode value: %w", err)
	}
	return m.db.Put(kvKey(key), encoded)
}

// KVGet decodes the stored value into out. The boolean reports presence.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	raw, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode value: %w", err)
	}
	return true, nil
}

// KVHas reports whether a value exists for the hashed key.
func (m *Manager) KVHas(key []byte) (bool, error) {
	if m == nil || m.db == nil {
		return false, errNilManager
	}
	return m.db.Has(kvKey(key))
}

// KVDelete removes the value stored under the hashed key.
func (m *Manager) KVDelete(key []byte) error {
	if m == nil || m.db == nil {
		return errNilManager
	}
	return m.db.Delete(kvKey(key))
}

// VaultAddress derives the deterministic custody address used by a module to
// hold funds for the supplied asset. The address is the trailing twenty bytes
// of a keccak digest, so it has no known private key.
func (m *Manager) VaultAddress(module, asset string) (types.Address, error) {
	var addr types.Address
	trimmedModule := strings.TrimSpace(module)
	if trimmedModule == "" {
		return addr, fmt.Errorf("state: vault module must not be empty")
	}
	seed := make([]byte, 0, len(vaultPrefix)+len(trimmedModule)+1+len(asset))
	seed = append(seed, vaultPrefix...)
	seed = append(seed, trimmedModule...)
	seed = append(seed, '/')
	seed = append(seed, strings.TrimSpace(asset)...)
	digest := ethcrypto.Keccak256(seed)
	copy(addr[:], digest[12:])
	return addr, nil
}
