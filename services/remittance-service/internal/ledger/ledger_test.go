package ledger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) SuggestedParams(ctx context.Context) (NetworkParams, error) {
	args := m.Called(ctx)
	return args.Get(0).(NetworkParams), args.Error(1)
}

func (m *MockClient) SubmitRaw(ctx context.Context, signed []byte) (string, error) {
	args := m.Called(ctx, signed)
	return args.String(0), args.Error(1)
}

func (m *MockClient) PendingInfo(ctx context.Context, txID string) (PendingInfo, error) {
	args := m.Called(ctx, txID)
	return args.Get(0).(PendingInfo), args.Error(1)
}

func (m *MockClient) AccountInfo(ctx context.Context, address string) (AccountInfo, error) {
	args := m.Called(ctx, address)
	return args.Get(0).(AccountInfo), args.Error(1)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		rejected  bool
		duplicate bool
		notFound  bool
	}{
		{name: "network", err: &url.Error{Op: "Post", URL: "http://node", Err: errors.New("connection refused")}, transient: true},
		{name: "deadline", err: context.DeadlineExceeded, transient: true},
		{name: "overspend", err: errors.New("HTTP 400: TransactionPool.Remember: transaction XYZ: overspend"), rejected: true},
		{name: "already in ledger", err: errors.New("HTTP 400: TransactionPool.Remember: transaction already in ledger: XYZ"), rejected: true, duplicate: true},
		{name: "unknown txn", err: errors.New("HTTP 404: txn does not exist"), notFound: true},
		{name: "server error", err: errors.New("HTTP 500: internal"), transient: true},
		{name: "throttled", err: errors.New("HTTP 429: slow down"), transient: true},
		{name: "bad token", err: errors.New("HTTP 401: invalid api token"), transient: true},
		{name: "other client error", err: errors.New("HTTP 413: too large"), rejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify("op", tt.err)
			assert.Equal(t, tt.transient, errors.Is(err, ErrTransient))
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRejected))
			assert.Equal(t, tt.duplicate, errors.Is(err, ErrDuplicate))
			assert.Equal(t, tt.notFound, errors.Is(err, ErrNotFound))
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestPendingInfo(t *testing.T) {
	assert.True(t, PendingInfo{IncludedRound: 5}.Included())
	assert.False(t, PendingInfo{}.Included())
	assert.True(t, PendingInfo{PoolError: "overspend"}.Rejected())
	assert.False(t, PendingInfo{}.Rejected())
}

func TestAccountInfo_Holding(t *testing.T) {
	acct := AccountInfo{NativeAmount: 5_000_000, Assets: []AssetHolding{{AssetID: 10458941, Amount: 42}}}

	h, ok := acct.Holding(0)
	require.True(t, ok)
	assert.Equal(t, uint64(5_000_000), h.Amount)

	h, ok = acct.Holding(10458941)
	require.True(t, ok)
	assert.Equal(t, uint64(42), h.Amount)

	_, ok = acct.Holding(1)
	assert.False(t, ok)
}

func TestNetworkParams_SuggestedParams(t *testing.T) {
	gh := make([]byte, 32)
	p := NetworkParams{Fee: 1000, FlatFee: true, MinFee: 1000, FirstValid: 10, LastValid: 1010, GenesisID: "testnet-v1.0", GenesisHash: gh}
	sp := p.SuggestedParams()

	assert.Equal(t, uint64(1000), uint64(sp.Fee))
	assert.True(t, sp.FlatFee)
	assert.Equal(t, uint64(10), uint64(sp.FirstRoundValid))
	assert.Equal(t, uint64(1010), uint64(sp.LastRoundValid))
	assert.Equal(t, "testnet-v1.0", sp.GenesisID)
	assert.Equal(t, gh, sp.GenesisHash)
}

func TestBreakerClient_OpensOnTransientFailures(t *testing.T) {
	log, _ := test.NewNullLogger()
	inner := new(MockClient)
	transient := fmt.Errorf("%w: connection refused", ErrTransient)
	inner.On("PendingInfo", mock.Anything, "TX").Return(PendingInfo{}, transient).Times(3)

	var states []float64
	b := NewBreakerClient(inner, BreakerConfig{ConsecutiveFailures: 3, OpenTimeout: time.Minute}, log, func(name string, state float64) {
		states = append(states, state)
	})

	for i := 0; i < 3; i++ {
		_, err := b.PendingInfo(context.Background(), "TX")
		assert.ErrorIs(t, err, ErrTransient)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())
	assert.Equal(t, []float64{2}, states)

	// open breaker fails fast without calling the node
	_, err := b.PendingInfo(context.Background(), "TX")
	assert.ErrorIs(t, err, ErrTransient)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	inner.AssertNumberOfCalls(t, "PendingInfo", 3)
}

func TestBreakerClient_RejectionsKeepBreakerClosed(t *testing.T) {
	log, _ := test.NewNullLogger()
	inner := new(MockClient)
	rejected := fmt.Errorf("%w: overspend", ErrRejected)
	inner.On("SubmitRaw", mock.Anything, []byte("blob")).Return("", rejected)

	b := NewBreakerClient(inner, BreakerConfig{ConsecutiveFailures: 2}, log, nil)
	for i := 0; i < 5; i++ {
		_, err := b.SubmitRaw(context.Background(), []byte("blob"))
		assert.ErrorIs(t, err, ErrRejected)
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())
	inner.AssertNumberOfCalls(t, "SubmitRaw", 5)
}

func TestBreakerClient_PassesResults(t *testing.T) {
	log, _ := test.NewNullLogger()
	inner := new(MockClient)
	inner.On("SuggestedParams", mock.Anything).Return(NetworkParams{Fee: 1000}, nil)
	inner.On("SubmitRaw", mock.Anything, []byte("blob")).Return("TXID", nil)
	inner.On("AccountInfo", mock.Anything, "ADDR").Return(AccountInfo{NativeAmount: 7}, nil)

	b := NewBreakerClient(inner, BreakerConfig{}, log, nil)

	p, err := b.SuggestedParams(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), p.Fee)

	id, err := b.SubmitRaw(context.Background(), []byte("blob"))
	require.NoError(t, err)
	assert.Equal(t, "TXID", id)

	acct, err := b.AccountInfo(context.Background(), "ADDR")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), acct.NativeAmount)

	assert.NoError(t, b.Health(context.Background()))
	inner.AssertExpectations(t)
}
