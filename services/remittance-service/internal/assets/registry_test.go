package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
)

func TestRegistry_Resolve(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	tests := []struct {
		name     string
		symbol   string
		wantID   uint64
		native   bool
		notFound bool
	}{
		{name: "native", symbol: "ALGO", wantID: 0, native: true},
		{name: "stablecoin", symbol: "USDC", wantID: 10458941},
		{name: "lower case", symbol: " eurc ", wantID: 227855942},
		{name: "unknown", symbol: "XYZ", notFound: true},
		{name: "empty", symbol: "", notFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := r.Resolve(tt.symbol)
			if tt.notFound {
				assert.ErrorIs(t, err, errs.ErrUnsupportedAsset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, a.LedgerAssetID)
			assert.Equal(t, uint8(6), a.Decimals)
			assert.Equal(t, tt.native, r.IsNative(a))
		})
	}
}

func TestRegistry_ByLedgerID(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	a, err := r.ByLedgerID(227855943)
	require.NoError(t, err)
	assert.Equal(t, "BRZ", a.Symbol)

	_, err = r.ByLedgerID(1)
	assert.ErrorIs(t, err, errs.ErrUnsupportedAsset)
}

func TestRegistry_List(t *testing.T) {
	r, err := NewRegistry(DefaultConfig())
	require.NoError(t, err)

	list := r.List()
	require.Len(t, list, 5)
	assert.Equal(t, "ALGO", list[0].Symbol)
	assert.Equal(t, "USDC", list[4].Symbol)

	list[0].Symbol = "MUTATED"
	assert.Equal(t, "ALGO", r.List()[0].Symbol)
}

func TestNewRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "empty", cfg: Config{}},
		{name: "duplicate symbol", cfg: Config{Assets: []AssetConfig{
			{Symbol: "USDC", LedgerAssetID: 1, Decimals: 6},
			{Symbol: "usdc", LedgerAssetID: 2, Decimals: 6},
		}}},
		{name: "duplicate id", cfg: Config{Assets: []AssetConfig{
			{Symbol: "USDC", LedgerAssetID: 1, Decimals: 6},
			{Symbol: "EURC", LedgerAssetID: 1, Decimals: 6},
		}}},
		{name: "missing symbol", cfg: Config{Assets: []AssetConfig{{LedgerAssetID: 1}}}},
		{name: "too many decimals", cfg: Config{Assets: []AssetConfig{{Symbol: "BIG", LedgerAssetID: 1, Decimals: 20}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.yaml")
	content := `assets:
  - symbol: ALGO
    name: Algorand
    ledger_asset_id: 0
    decimals: 6
  - symbol: USDC
    name: USD Coin
    ledger_asset_id: 31566704
    decimals: 6
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.Len(t, cfg.Assets, 2)
	assert.Equal(t, uint64(31566704), cfg.Assets[1].LedgerAssetID)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	cfg, err = LoadConfig("")
	require.NoError(t, err)
	assert.Len(t, cfg.Assets, 5)
}

func TestApplyEnvOverrides(t *testing.T) {
	env := map[string]string{"USDC_ASSET_ID": "31566704", "ALGO_ASSET_ID": "99"}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	base := DefaultConfig()
	cfg, err := base.ApplyEnvOverrides(lookup)
	require.NoError(t, err)

	r, err := NewRegistry(cfg)
	require.NoError(t, err)

	usdc, err := r.Resolve("USDC")
	require.NoError(t, err)
	assert.Equal(t, uint64(31566704), usdc.LedgerAssetID)

	algo, err := r.Resolve("ALGO")
	require.NoError(t, err)
	assert.True(t, r.IsNative(algo))

	// the input table is not modified
	assert.Equal(t, uint64(10458941), base.Assets[1].LedgerAssetID)

	env["USDC_ASSET_ID"] = "abc"
	_, err = base.ApplyEnvOverrides(lookup)
	assert.Error(t, err)
}
