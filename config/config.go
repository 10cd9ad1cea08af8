package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"escrowd/core/types"
	"escrowd/native/fees"
)

type Config struct {
	ListenAddress      string   `toml:"ListenAddress"`
	DataDir            string   `toml:"DataDir"`
	NetworkName        string   `toml:"NetworkName"`
	Environment        string   `toml:"Environment"`
	FeeBps             uint32   `toml:"FeeBps"`
	AdminAddress       string   `toml:"AdminAddress"`
	TreasuryAddress    string   `toml:"TreasuryAddress"`
	EscrowTimeout      int64    `toml:"EscrowTimeout"`
	SupportedAssets    []string `toml:"SupportedAssets"`
	StrictShipping     bool     `toml:"StrictShipping"`
	RateLimitPerMinute float64  `toml:"RateLimitPerMinute"`
	RateLimitBurst     int      `toml:"RateLimitBurst"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./escrowd-data"
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "escrowd-local"
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 600
	}
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.SupportedAssets == nil {
		cfg.SupportedAssets = []string{}
	}
}

// Validate rejects configurations the daemon cannot safely start with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil config")
	}
	if err := fees.ValidatePlatformRate(cfg.FeeBps); err != nil {
		return fmt.Errorf("config: FeeBps: %w", err)
	}
	if strings.TrimSpace(cfg.AdminAddress) != "" {
		if _, err := ParseAddress(cfg.AdminAddress); err != nil {
			return fmt.Errorf("config: AdminAddress: %w", err)
		}
	}
	if strings.TrimSpace(cfg.TreasuryAddress) != "" {
		if _, err := ParseAddress(cfg.TreasuryAddress); err != nil {
			return fmt.Errorf("config: TreasuryAddress: %w", err)
		}
	}
	if cfg.EscrowTimeout < 0 {
		return fmt.Errorf("config: EscrowTimeout must not be negative")
	}
	return nil
}

// ParseAddress decodes a 20-byte hex address, with or without a 0x prefix.
func ParseAddress(value string) (types.Address, error) {
	var addr types.Address
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	if len(raw) != len(addr) {
		return addr, fmt.Errorf("address must be %d bytes", len(addr))
	}
	copy(addr[:], raw)
	return addr, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		StrictShipping: true,
	}
	applyDefaults(cfg)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	if err := toml.NewEncoder(file).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
