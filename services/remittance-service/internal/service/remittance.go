package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/address"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/assets"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
)

// Signer is the external wallet. It receives unsigned instructions and returns one signed blob
// per instruction. Keys never reach this service.
type Signer interface {
	Sign(ctx context.Context, txns ...*UnsignedInstruction) ([][]byte, error)
}

// SendInput is a transfer request together with the wallet-signed transaction for it
type SendInput struct {
	TransferRequest
	SignedTxn           []byte
	WaitForConfirmation bool
}

type SendResult struct {
	TxID      string                    `json:"txId"`
	Record    *models.TransactionRecord `json:"transaction"`
	Duplicate bool                      `json:"duplicate"`
}

// Balance is an account's holding of one registered asset
type Balance struct {
	Address         string `json:"address"`
	Symbol          string `json:"symbol"`
	LedgerAssetID   uint64 `json:"ledgerAssetId"`
	Amount          string `json:"amount"`
	AmountBaseUnits uint64 `json:"amountBaseUnits"`
	OptedIn         bool   `json:"optedIn"`
}

type RemittanceConfig struct {
	TrackAfterSubmit bool
	SubmitMaxRounds  int
	SubmitPollDelay  time.Duration
}

type RemittanceService interface {
	Assets() []assets.Asset
	BuildTransfer(ctx context.Context, req TransferRequest) (*UnsignedInstruction, error)
	Send(ctx context.Context, in SendInput) (*SendResult, error)
	History(ctx context.Context, q ListQuery) (*HistoryPage, error)
	GetTransaction(ctx context.Context, caller, txID string) (*HistoryEntry, error)
	RefreshStatus(ctx context.Context, caller, txID string) (*HistoryEntry, error)
	Stats(ctx context.Context, caller string) (*models.ParticipantStats, error)
	Balance(ctx context.Context, addr, symbol string) (*Balance, error)
}

type remittanceService struct {
	registry *assets.Registry
	ledger   ledger.Client
	builder  *TransactionBuilder
	gateway  *SubmissionGateway
	tracker  StatusTracker
	history  *HistoryReconciler
	cfg      RemittanceConfig
	log      logrus.FieldLogger
}

func NewRemittanceService(
	registry *assets.Registry,
	client ledger.Client,
	builder *TransactionBuilder,
	gateway *SubmissionGateway,
	tracker StatusTracker,
	history *HistoryReconciler,
	cfg RemittanceConfig,
	log logrus.FieldLogger,
) RemittanceService {
	if cfg.SubmitMaxRounds <= 0 {
		cfg.SubmitMaxRounds = 10
	}
	return &remittanceService{
		registry: registry,
		ledger:   client,
		builder:  builder,
		gateway:  gateway,
		tracker:  tracker,
		history:  history,
		cfg:      cfg,
		log:      log,
	}
}

func (s *remittanceService) Assets() []assets.Asset {
	return s.registry.List()
}

func (s *remittanceService) BuildTransfer(ctx context.Context, req TransferRequest) (*UnsignedInstruction, error) {
	// Reject bad input before spending a round trip on params
	if _, err := s.builder.Validate(req); err != nil {
		return nil, err
	}

	params, err := s.ledger.SuggestedParams(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: suggested params: %v", errs.ErrLedgerUnavailable, err)
	}
	return s.builder.Build(req, params)
}

// Send validates the request, checks the signed transaction matches it and submits it.
// With confirmation tracking enabled the record is polled within the submit budget; a
// cancelled or inconclusive poll still returns the pending record.
func (s *remittanceService) Send(ctx context.Context, in SendInput) (*SendResult, error) {
	v, err := s.builder.Validate(in.TransferRequest)
	if err != nil {
		return nil, err
	}

	signed, err := DecodeSignedInstruction(in.SignedTxn, s.registry)
	if err != nil {
		return nil, err
	}
	if err := signed.Matches(v); err != nil {
		return nil, err
	}

	submitted, err := s.gateway.Submit(ctx, signed)
	if err != nil {
		return nil, err
	}

	result := &SendResult{TxID: submitted.TxID, Record: submitted.Record, Duplicate: submitted.Duplicate}
	if !in.WaitForConfirmation && !s.cfg.TrackAfterSubmit {
		return result, nil
	}

	tracked, err := s.tracker.Track(ctx, submitted.TxID, s.cfg.SubmitMaxRounds, s.cfg.SubmitPollDelay)
	switch {
	case err == nil, errors.Is(err, errs.ErrConfirmationExpired):
		if tracked != nil {
			result.Record = tracked
		}
	default:
		s.log.WithError(err).WithField("tx_id", submitted.TxID).Info("confirmation tracking did not finish, returning pending record")
	}
	return result, nil
}

func (s *remittanceService) History(ctx context.Context, q ListQuery) (*HistoryPage, error) {
	q.Participant = address.Normalize(q.Participant)
	if err := address.Validate(q.Participant); err != nil {
		return nil, err
	}
	return s.history.List(ctx, q)
}

func (s *remittanceService) GetTransaction(ctx context.Context, caller, txID string) (*HistoryEntry, error) {
	return s.history.Get(ctx, address.Normalize(caller), txID)
}

// RefreshStatus re-checks a record the caller took part in. An expired outcome is returned
// together with errs.ErrConfirmationExpired.
func (s *remittanceService) RefreshStatus(ctx context.Context, caller, txID string) (*HistoryEntry, error) {
	caller = address.Normalize(caller)
	if _, err := s.history.Get(ctx, caller, txID); err != nil {
		return nil, err
	}

	rec, err := s.history.Refresh(ctx, txID)
	if rec == nil {
		return nil, err
	}
	entry := annotate(rec, caller)
	return &entry, err
}

func (s *remittanceService) Stats(ctx context.Context, caller string) (*models.ParticipantStats, error) {
	return s.history.Stats(ctx, address.Normalize(caller))
}

func (s *remittanceService) Balance(ctx context.Context, addr, symbol string) (*Balance, error) {
	addr = address.Normalize(addr)
	if err := address.Validate(addr); err != nil {
		return nil, err
	}
	asset, err := s.registry.Resolve(symbol)
	if err != nil {
		return nil, err
	}

	info, err := s.ledger.AccountInfo(ctx, addr)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("%w: account %s: %v", errs.ErrLedgerUnavailable, addr, err)
	}

	holding, optedIn := info.Holding(asset.LedgerAssetID)
	return &Balance{
		Address:         addr,
		Symbol:          asset.Symbol,
		LedgerAssetID:   asset.LedgerAssetID,
		Amount:          models.BaseUnitsToDisplay(holding.Amount, asset.Decimals).String(),
		AmountBaseUnits: holding.Amount,
		OptedIn:         optedIn,
	}, nil
}

// AmountFromString parses a display amount as an exact decimal
func AmountFromString(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", errs.ErrInvalidAmount, s)
	}
	return d, nil
}
