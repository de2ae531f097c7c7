package ledger

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/client/v2/algod"
)

// ErrDuplicate wraps ErrRejected when the node already holds the same signed transaction
var ErrDuplicate = errors.New("transaction already known to ledger")

var httpStatusPattern = regexp.MustCompile(`HTTP (\d{3})`)

// AlgodConfig holds algod connection settings
type AlgodConfig struct {
	Address string
	Token   string
	Timeout time.Duration
}

// AlgodClient implements Client over the algod REST API
type AlgodClient struct {
	client  *algod.Client
	timeout time.Duration
}

// NewAlgodClient creates a client for the node at cfg.Address
func NewAlgodClient(cfg AlgodConfig) (*AlgodClient, error) {
	c, err := algod.MakeClient(cfg.Address, cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create algod client: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &AlgodClient{client: c, timeout: timeout}, nil
}

func (c *AlgodClient) SuggestedParams(ctx context.Context) (NetworkParams, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	sp, err := c.client.SuggestedParams().Do(ctx)
	if err != nil {
		return NetworkParams{}, classify("suggested params", err)
	}
	return NetworkParams{
		Fee:         uint64(sp.Fee),
		FlatFee:     sp.FlatFee,
		MinFee:      sp.MinFee,
		FirstValid:  uint64(sp.FirstRoundValid),
		LastValid:   uint64(sp.LastRoundValid),
		GenesisID:   sp.GenesisID,
		GenesisHash: sp.GenesisHash,
	}, nil
}

func (c *AlgodClient) SubmitRaw(ctx context.Context, signed []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	txID, err := c.client.SendRawTransaction(signed).Do(ctx)
	if err != nil {
		return "", classify("send raw transaction", err)
	}
	return txID, nil
}

func (c *AlgodClient) PendingInfo(ctx context.Context, txID string) (PendingInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	info, _, err := c.client.PendingTransactionInformation(txID).Do(ctx)
	if err != nil {
		return PendingInfo{}, classify("pending transaction information", err)
	}
	return PendingInfo{IncludedRound: info.ConfirmedRound, PoolError: info.PoolError}, nil
}

func (c *AlgodClient) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	acct, err := c.client.AccountInformation(address).Do(ctx)
	if err != nil {
		return AccountInfo{}, classify("account information", err)
	}

	out := AccountInfo{
		Address:      acct.Address,
		NativeAmount: acct.Amount,
		MinBalance:   acct.MinBalance,
		Assets:       make([]AssetHolding, 0, len(acct.Assets)),
	}
	for _, h := range acct.Assets {
		out.Assets = append(out.Assets, AssetHolding{AssetID: h.AssetId, Amount: h.Amount, Frozen: h.IsFrozen})
	}
	return out, nil
}

func (c *AlgodClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.client.HealthCheck().Do(ctx); err != nil {
		return classify("health check", err)
	}
	return nil
}

// classify maps an SDK error onto ErrTransient, ErrRejected (optionally ErrDuplicate) or ErrNotFound.
// The SDK reports HTTP failures as "HTTP <code>: <body>"; anything without a status never got an answer.
func classify(op string, err error) error {
	code, ok := httpStatus(err)
	if !ok {
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	}

	switch {
	case code == 404:
		return fmt.Errorf("%s: %w: %w", op, ErrNotFound, err)
	case code == 400 && isDuplicate(err):
		return fmt.Errorf("%s: %w: %w: %w", op, ErrRejected, ErrDuplicate, err)
	case code == 401 || code == 403 || code == 429 || code >= 500:
		return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
	case code >= 400:
		return fmt.Errorf("%s: %w: %w", op, ErrRejected, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrTransient, err)
}

func httpStatus(err error) (int, bool) {
	m := httpStatusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	code, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return code, true
}

func isDuplicate(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already in ledger") || strings.Contains(msg, "already in pool")
}
