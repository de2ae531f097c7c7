package assets

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// AssetConfig is one entry of the asset table file
type AssetConfig struct {
	Symbol        string `yaml:"symbol"`
	Name          string `yaml:"name"`
	LedgerAssetID uint64 `yaml:"ledger_asset_id"`
	Decimals      uint8  `yaml:"decimals"`
}

// Config is the full asset table
type Config struct {
	Assets []AssetConfig `yaml:"assets"`
}

// DefaultConfig is the testnet table used when no file is configured
func DefaultConfig() Config {
	return Config{Assets: []AssetConfig{
		{Symbol: "ALGO", Name: "Algorand", LedgerAssetID: 0, Decimals: 6},
		{Symbol: "USDC", Name: "USD Coin", LedgerAssetID: 10458941, Decimals: 6},
		{Symbol: "EURC", Name: "Euro Coin", LedgerAssetID: 227855942, Decimals: 6},
		{Symbol: "BRZ", Name: "Brazilian Digital Token", LedgerAssetID: 227855943, Decimals: 6},
		{Symbol: "INR", Name: "Indian Rupee Token", LedgerAssetID: 227855944, Decimals: 6},
	}}
}

// LoadConfig reads the asset table from a YAML file. An empty path yields DefaultConfig.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read asset table %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse asset table %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnvOverrides replaces ledger asset ids from <SYMBOL>_ASSET_ID variables, e.g. USDC_ASSET_ID.
// The native asset is never overridden.
func (c Config) ApplyEnvOverrides(lookup func(string) (string, bool)) (Config, error) {
	out := Config{Assets: make([]AssetConfig, len(c.Assets))}
	copy(out.Assets, c.Assets)

	for i, a := range out.Assets {
		if a.LedgerAssetID == 0 {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(a.Symbol)) + "_ASSET_ID"
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
		if err != nil || id == 0 {
			return Config{}, fmt.Errorf("invalid %s=%q: must be a positive integer", key, raw)
		}
		out.Assets[i].LedgerAssetID = id
	}
	return out, nil
}
