package service

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/algorand/go-algorand-sdk/v2/encoding/msgpack"
	"github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/assets"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/repository"
	"github.com/13507-IN/HorizonPay/shared/pkg/metrics"
)

const usdcID = 10458941

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) SuggestedParams(ctx context.Context) (ledger.NetworkParams, error) {
	args := m.Called(ctx)
	return args.Get(0).(ledger.NetworkParams), args.Error(1)
}

func (m *MockLedger) SubmitRaw(ctx context.Context, signed []byte) (string, error) {
	args := m.Called(ctx, signed)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) PendingInfo(ctx context.Context, txID string) (ledger.PendingInfo, error) {
	args := m.Called(ctx, txID)
	return args.Get(0).(ledger.PendingInfo), args.Error(1)
}

func (m *MockLedger) AccountInfo(ctx context.Context, address string) (ledger.AccountInfo, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(ledger.AccountInfo), args.Error(1)
}

type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Track(ctx context.Context, txID string, maxRounds int, pollDelay time.Duration) (*models.TransactionRecord, error) {
	args := m.Called(ctx, txID, maxRounds, pollDelay)
	rec, _ := args.Get(0).(*models.TransactionRecord)
	return rec, args.Error(1)
}

// recordingPublisher keeps every published status in order
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.TransactionStatus
}

func (p *recordingPublisher) PublishStatusChanged(ctx context.Context, rec *models.TransactionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, rec.Status)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statuses() []models.TransactionStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.TransactionStatus(nil), p.events...)
}

// fakeSigner signs with a fixed non-zero signature; the ledger mock never verifies it
type fakeSigner struct {
	mutate func(txn *types.Transaction)
}

func (s fakeSigner) Sign(ctx context.Context, txns ...*UnsignedInstruction) ([][]byte, error) {
	out := make([][]byte, 0, len(txns))
	for _, u := range txns {
		txn := u.Txn
		if s.mutate != nil {
			s.mutate(&txn)
		}
		var sig types.Signature
		copy(sig[:], bytes.Repeat([]byte{0xAB}, len(sig)))
		out = append(out, msgpack.Encode(types.SignedTxn{Sig: sig, Txn: txn}))
	}
	return out, nil
}

func testAddress(seed byte) string {
	var a types.Address
	for i := range a {
		a[i] = seed
	}
	return a.String()
}

func testRegistry(t *testing.T) *assets.Registry {
	t.Helper()
	r, err := assets.NewRegistry(assets.DefaultConfig())
	require.NoError(t, err)
	return r
}

func testParams() ledger.NetworkParams {
	return ledger.NetworkParams{
		Fee:         1000,
		FlatFee:     true,
		MinFee:      1000,
		FirstValid:  1000,
		LastValid:   2000,
		GenesisID:   "testnet-v1.0",
		GenesisHash: bytes.Repeat([]byte{7}, 32),
	}
}

func testMetrics() *metrics.Metrics {
	return metrics.NewMetrics("remittance", prometheus.NewRegistry())
}

func nullLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

func seedRecord(t *testing.T, store *repository.MemoryStore, txID, sender, recipient string, status models.TransactionStatus, at time.Time) *models.TransactionRecord {
	t.Helper()
	rec := &models.TransactionRecord{
		ID:               "id-" + txID,
		TxID:             txID,
		SenderAddress:    sender,
		RecipientAddress: recipient,
		Symbol:           "USDC",
		LedgerAssetID:    usdcID,
		Decimals:         6,
		AmountBaseUnits:  10500000,
		Status:           status,
		InitiatedAt:      at,
		UpdatedAt:        at,
	}
	_, created, err := store.Upsert(context.Background(), rec)
	require.NoError(t, err)
	require.True(t, created)
	return rec
}

// signedFor builds and signs a transfer, returning the decoded instruction
func signedFor(t *testing.T, registry *assets.Registry, req TransferRequest) *SignedInstruction {
	t.Helper()
	u, err := NewTransactionBuilder(registry, 0).Build(req, testParams())
	require.NoError(t, err)
	blobs, err := fakeSigner{}.Sign(context.Background(), u)
	require.NoError(t, err)
	signed, err := DecodeSignedInstruction(blobs[0], registry)
	require.NoError(t, err)
	return signed
}
