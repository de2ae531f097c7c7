package ledger

import (
	"context"
	"errors"

	"github.com/algorand/go-algorand-sdk/v2/types"
)

var (
	// ErrTransient covers failures where the request may not have reached the ledger or the node could not answer.
	ErrTransient = errors.New("ledger temporarily unavailable")
	// ErrRejected means the node received and refused the request.
	ErrRejected = errors.New("ledger rejected request")
	// ErrNotFound means the node has no record of the requested object.
	ErrNotFound = errors.New("ledger object not found")
)

// NetworkParams are the fee and validity parameters embedded into a new transaction
type NetworkParams struct {
	Fee         uint64
	FlatFee     bool
	MinFee      uint64
	FirstValid  uint64
	LastValid   uint64
	GenesisID   string
	GenesisHash []byte
}

// SuggestedParams converts to the SDK's parameter type
func (p NetworkParams) SuggestedParams() types.SuggestedParams {
	return types.SuggestedParams{
		Fee:             types.MicroAlgos(p.Fee),
		FlatFee:         p.FlatFee,
		MinFee:          p.MinFee,
		FirstRoundValid: types.Round(p.FirstValid),
		LastRoundValid:  types.Round(p.LastValid),
		GenesisID:       p.GenesisID,
		GenesisHash:     p.GenesisHash,
	}
}

// PendingInfo is one observation of a submitted transaction.
// IncludedRound > 0 means committed; a non-empty PoolError means the node dropped it.
type PendingInfo struct {
	IncludedRound uint64
	PoolError     string
}

// Included reports whether the transaction was committed in a block
func (p PendingInfo) Included() bool {
	return p.IncludedRound > 0
}

// Rejected reports whether the node explicitly dropped the transaction
func (p PendingInfo) Rejected() bool {
	return p.PoolError != ""
}

// AssetHolding is an account's balance of one asset
type AssetHolding struct {
	AssetID uint64
	Amount  uint64
	Frozen  bool
}

// AccountInfo is the subset of account state the service reads
type AccountInfo struct {
	Address      string
	NativeAmount uint64
	MinBalance   uint64
	Assets       []AssetHolding
}

// Holding returns the holding for assetID; the native currency uses id 0
func (a AccountInfo) Holding(assetID uint64) (AssetHolding, bool) {
	if assetID == 0 {
		return AssetHolding{AssetID: 0, Amount: a.NativeAmount}, true
	}
	for _, h := range a.Assets {
		if h.AssetID == assetID {
			return h, true
		}
	}
	return AssetHolding{}, false
}

// Client is the ledger RPC surface. Errors wrap ErrTransient, ErrRejected or ErrNotFound.
type Client interface {
	SuggestedParams(ctx context.Context) (NetworkParams, error)
	SubmitRaw(ctx context.Context, signed []byte) (string, error)
	PendingInfo(ctx context.Context, txID string) (PendingInfo, error)
	AccountInfo(ctx context.Context, address string) (AccountInfo, error)
}

// HealthChecker is implemented by clients that can probe node health
type HealthChecker interface {
	Health(ctx context.Context) error
}
