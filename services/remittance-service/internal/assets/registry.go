package assets

import (
	"fmt"
	"sort"
	"strings"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
)

// maxDecimals keeps 10^decimals within uint64
const maxDecimals = 19

// Asset is an immutable registry entry. LedgerAssetID 0 denotes the native currency.
type Asset struct {
	Symbol        string `json:"symbol"`
	Name          string `json:"name"`
	LedgerAssetID uint64 `json:"ledgerAssetId"`
	Decimals      uint8  `json:"decimals"`
}

// Registry resolves symbols to assets. It is built once and never mutated, so it is safe for concurrent use.
type Registry struct {
	bySymbol map[string]Asset
	byID     map[uint64]Asset
	sorted   []Asset
}

// NewRegistry validates cfg and builds the lookup tables
func NewRegistry(cfg Config) (*Registry, error) {
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("asset table is empty")
	}

	r := &Registry{
		bySymbol: make(map[string]Asset, len(cfg.Assets)),
		byID:     make(map[uint64]Asset, len(cfg.Assets)),
	}

	for _, ac := range cfg.Assets {
		symbol := normalizeSymbol(ac.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("asset with ledger id %d has no symbol", ac.LedgerAssetID)
		}
		if ac.Decimals > maxDecimals {
			return nil, fmt.Errorf("asset %s: decimals %d exceeds %d", symbol, ac.Decimals, maxDecimals)
		}
		if _, dup := r.bySymbol[symbol]; dup {
			return nil, fmt.Errorf("duplicate asset symbol %s", symbol)
		}
		if prev, dup := r.byID[ac.LedgerAssetID]; dup {
			return nil, fmt.Errorf("assets %s and %s share ledger id %d", prev.Symbol, symbol, ac.LedgerAssetID)
		}

		a := Asset{Symbol: symbol, Name: ac.Name, LedgerAssetID: ac.LedgerAssetID, Decimals: ac.Decimals}
		r.bySymbol[symbol] = a
		r.byID[a.LedgerAssetID] = a
		r.sorted = append(r.sorted, a)
	}

	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].Symbol < r.sorted[j].Symbol })
	return r, nil
}

// Resolve looks up an asset by symbol, case-insensitively
func (r *Registry) Resolve(symbol string) (Asset, error) {
	a, ok := r.bySymbol[normalizeSymbol(symbol)]
	if !ok {
		return Asset{}, fmt.Errorf("%w: %q", errs.ErrUnsupportedAsset, symbol)
	}
	return a, nil
}

// ByLedgerID looks up an asset by its on-ledger id
func (r *Registry) ByLedgerID(id uint64) (Asset, error) {
	a, ok := r.byID[id]
	if !ok {
		return Asset{}, fmt.Errorf("%w: ledger asset id %d", errs.ErrUnsupportedAsset, id)
	}
	return a, nil
}

// IsNative reports whether the asset is the ledger's native currency
func (r *Registry) IsNative(a Asset) bool {
	return a.LedgerAssetID == 0
}

// List returns all assets sorted by symbol
func (r *Registry) List() []Asset {
	out := make([]Asset, len(r.sorted))
	copy(out, r.sorted)
	return out
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
