package params

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"escrowd/core/types"
	"escrowd/native/fees"
)

var (
	ErrNotAuthorized = errors.New("params: caller is not the platform admin")
	ErrAdminUnset    = errors.New("params: admin not initialised")
	ErrInvalidAsset  = errors.New("params: invalid asset symbol")
)

// StoreState captures the subset of state manager capabilities required by
// the parameter helpers.
type StoreState interface {
	ParamStoreSet(name string, value []byte) error
	ParamStoreGet(name string) ([]byte, bool, error)
}

// Store provides typed accessors for the admin-controlled platform
// parameters. Every mutating method is gated on the configured admin
// identity; a mismatch leaves state untouched.
type Store struct {
	state StoreState
}

// NewStore constructs a parameter store wrapper using the supplied state
// backend.
func NewStore(state StoreState) *Store {
	return &Store{state: state}
}

func (s *Store) withState() (StoreState, error) {
	if s == nil || s.state == nil {
		return nil, fmt.Errorf("params: state not configured")
	}
	return s.state, nil
}

func (s *Store) getJSON(key string, out interface{}) (bool, error) {
	state, err := s.withState()
	if err != nil {
		return false, err
	}
	raw, ok, err := state.ParamStoreGet(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("params: decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Store) setJSON(key string, value interface{}) error {
	state, err := s.withState()
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("params: encode %s: %w", key, err)
	}
	return state.ParamStoreSet(key, encoded)
}

// Admin returns the configured platform admin address.
func (s *Store) Admin() (types.Address, error) {
	var addr types.Address
	var encoded string
	ok, err := s.getJSON(KeyAdmin, &encoded)
	if err != nil {
		return addr, err
	}
	if !ok {
		return addr, ErrAdminUnset
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != len(addr) {
		return addr, fmt.Errorf("params: corrupt admin entry")
	}
	copy(addr[:], raw)
	return addr, nil
}

// RequireAdmin verifies the caller is the configured admin.
func (s *Store) RequireAdmin(caller types.Address) error {
	admin, err := s.Admin()
	if err != nil {
		return err
	}
	if admin != caller {
		return ErrNotAuthorized
	}
	return nil
}

// InitializeAdmin sets the admin identity once. Subsequent changes go through
// TransferAdmin.
func (s *Store) InitializeAdmin(admin types.Address) error {
	if _, err := s.Admin(); err == nil {
		return fmt.Errorf("params: admin already initialised")
	} else if !errors.Is(err, ErrAdminUnset) {
		return err
	}
	return s.setJSON(KeyAdmin, hex.EncodeToString(admin[:]))
}

// TransferAdmin hands platform control to a new address.
func (s *Store) TransferAdmin(caller, next types.Address) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if next == (types.Address{}) {
		return fmt.Errorf("params: admin must not be the zero address")
	}
	return s.setJSON(KeyAdmin, hex.EncodeToString(next[:]))
}

// FeeBps returns the platform fee rate in basis points. Unset resolves to
// zero.
func (s *Store) FeeBps() (uint32, error) {
	var rate uint32
	if _, err := s.getJSON(KeyFeeBps, &rate); err != nil {
		return 0, err
	}
	return rate, nil
}

// SetFeeBps updates the platform fee rate, bounded by the fee engine's
// platform maximum.
func (s *Store) SetFeeBps(caller types.Address, rateBps uint32) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if err := fees.ValidatePlatformRate(rateBps); err != nil {
		return err
	}
	return s.setJSON(KeyFeeBps, rateBps)
}

// Treasury returns the address receiving platform fees on push settlements.
func (s *Store) Treasury() (types.Address, error) {
	var addr types.Address
	var encoded string
	ok, err := s.getJSON(KeyTreasury, &encoded)
	if err != nil || !ok {
		return addr, err
	}
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != len(addr) {
		return addr, fmt.Errorf("params: corrupt treasury entry")
	}
	copy(addr[:], raw)
	return addr, nil
}

// SetTreasury updates the treasury address.
func (s *Store) SetTreasury(caller, treasury types.Address) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if treasury == (types.Address{}) {
		return fmt.Errorf("params: treasury must not be the zero address")
	}
	return s.setJSON(KeyTreasury, hex.EncodeToString(treasury[:]))
}

// EscrowTimeout returns the configured dispute-escalation window measured in
// logical clock ticks. Unset resolves to zero (no timeout).
func (s *Store) EscrowTimeout() (int64, error) {
	var timeout int64
	if _, err := s.getJSON(KeyEscrowTimeout, &timeout); err != nil {
		return 0, err
	}
	return timeout, nil
}

// SetEscrowTimeout updates the escrow timeout.
func (s *Store) SetEscrowTimeout(caller types.Address, timeout int64) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	if timeout < 0 {
		return fmt.Errorf("params: timeout must not be negative")
	}
	return s.setJSON(KeyEscrowTimeout, timeout)
}

// NormalizeAsset canonicalises a fungible asset symbol.
func NormalizeAsset(symbol string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(symbol))
	if trimmed == "" {
		return "", ErrInvalidAsset
	}
	return trimmed, nil
}

// SupportedAssets lists the admin-approved fungible asset symbols in sorted
// order.
func (s *Store) SupportedAssets() ([]string, error) {
	var assets []string
	if _, err := s.getJSON(KeySupportedAssets, &assets); err != nil {
		return nil, err
	}
	sort.Strings(assets)
	return assets, nil
}

// IsAssetSupported reports whether the symbol is on the allow-list.
func (s *Store) IsAssetSupported(symbol string) (bool, error) {
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return false, err
	}
	assets, err := s.SupportedAssets()
	if err != nil {
		return false, err
	}
	for _, asset := range assets {
		if asset == normalized {
			return true, nil
		}
	}
	return false, nil
}

// AddSupportedAsset adds a fungible asset symbol to the allow-list.
func (s *Store) AddSupportedAsset(caller types.Address, symbol string) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	assets, err := s.SupportedAssets()
	if err != nil {
		return err
	}
	for _, asset := range assets {
		if asset == normalized {
			return nil
		}
	}
	assets = append(assets, normalized)
	sort.Strings(assets)
	return s.setJSON(KeySupportedAssets, assets)
}

// RemoveSupportedAsset drops a fungible asset symbol from the allow-list.
// Existing payments denominated in the asset are unaffected; only new
// payments are rejected.
func (s *Store) RemoveSupportedAsset(caller types.Address, symbol string) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(symbol)
	if err != nil {
		return err
	}
	assets, err := s.SupportedAssets()
	if err != nil {
		return err
	}
	filtered := assets[:0]
	for _, asset := range assets {
		if asset != normalized {
			filtered = append(filtered, asset)
		}
	}
	return s.setJSON(KeySupportedAssets, filtered)
}

// Pauses loads the per-module pause switches.
func (s *Store) Pauses() (map[string]bool, error) {
	paused := make(map[string]bool)
	if _, err := s.getJSON(KeyPauses, &paused); err != nil {
		return nil, err
	}
	return paused, nil
}

// SetPaused toggles the pause switch for a module.
func (s *Store) SetPaused(caller types.Address, module string, paused bool) error {
	if err := s.RequireAdmin(caller); err != nil {
		return err
	}
	current, err := s.Pauses()
	if err != nil {
		return err
	}
	trimmed := strings.ToLower(strings.TrimSpace(module))
	if trimmed == "" {
		return fmt.Errorf("params: module name required")
	}
	current[trimmed] = paused
	return s.setJSON(KeyPauses, current)
}

// PauseView adapts the stored pauses to the native/common guard interface.
func (s *Store) PauseView() PauseView {
	return PauseView{store: s}
}

// PauseView reads pause switches straight from state so toggles apply without
// restarts.
type PauseView struct {
	store *Store
}

// IsPaused implements common.PauseView.
func (v PauseView) IsPaused(module string) bool {
	if v.store == nil {
		return false
	}
	paused, err := v.store.Pauses()
	if err != nil {
		return false
	}
	return paused[strings.ToLower(strings.TrimSpace(module))]
}
