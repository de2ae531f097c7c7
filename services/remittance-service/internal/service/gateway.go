package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/pubsub"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/repository"
	"github.com/13507-IN/HorizonPay/shared/pkg/helpers"
	"github.com/13507-IN/HorizonPay/shared/pkg/metrics"
)

// SubmitResult is the outcome of handing a signed transaction to the ledger
type SubmitResult struct {
	TxID      string
	Record    *models.TransactionRecord
	Duplicate bool
}

// SubmissionGateway submits signed transactions and creates their pending records.
// Resubmitting the same signed bytes never creates a second record.
type SubmissionGateway struct {
	ledger    ledger.Client
	store     repository.TransactionStore
	publisher pubsub.StatusPublisher
	ids       *helpers.IDGenerator
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewSubmissionGateway(
	client ledger.Client,
	store repository.TransactionStore,
	publisher pubsub.StatusPublisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
) *SubmissionGateway {
	return &SubmissionGateway{
		ledger:    client,
		store:     store,
		publisher: publisher,
		ids:       helpers.NewIDGenerator(),
		metrics:   m,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (g *SubmissionGateway) Submit(ctx context.Context, signed *SignedInstruction) (*SubmitResult, error) {
	log := g.log.WithField("tx_id", signed.TxID)

	existing, err := g.store.FindByTxID(ctx, signed.TxID)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup before submit: %v", errs.ErrPersistence, err)
	}
	if existing != nil {
		g.observe("duplicate")
		log.Info("signed transaction already recorded, skipping submission")
		return &SubmitResult{TxID: existing.TxID, Record: existing, Duplicate: true}, nil
	}

	// The record is keyed on the id derived from the signed bytes, the same key the lookup above uses.
	txID := signed.TxID
	ledgerTxID, err := g.ledger.SubmitRaw(ctx, signed.Blob)
	switch {
	case err == nil:
		if ledgerTxID != txID {
			log.WithField("ledger_tx_id", ledgerTxID).Warn("ledger returned a different transaction id, keeping the signed id")
		}
	case errors.Is(err, ledger.ErrDuplicate):
		log.Info("ledger already holds this transaction, recording it")
	case errors.Is(err, ledger.ErrRejected):
		g.observe("rejected")
		log.WithError(err).Warn("ledger rejected transaction")
		return nil, fmt.Errorf("%w: %v", errs.ErrRejectedByLedger, err)
	default:
		g.observe("retryable")
		log.WithError(err).Warn("submission did not reach the ledger")
		return nil, fmt.Errorf("%w: %v", errs.ErrRetryableSubmission, err)
	}

	now := g.now()
	rec := &models.TransactionRecord{
		ID:               g.ids.GenerateUUID(),
		TxID:             txID,
		SenderAddress:    signed.SenderAddress,
		RecipientAddress: signed.RecipientAddress,
		Symbol:           signed.Asset.Symbol,
		LedgerAssetID:    signed.Asset.LedgerAssetID,
		Decimals:         signed.Asset.Decimals,
		AmountBaseUnits:  signed.AmountBaseUnits,
		Note:             signed.Note,
		Status:           models.StatusPending,
		InitiatedAt:      now,
		UpdatedAt:        now,
	}

	stored, created, err := g.store.Upsert(ctx, rec)
	if err != nil {
		// The ledger accepted the transaction; resubmitting the same bytes will recreate the record.
		log.WithError(err).Error("failed to record submitted transaction")
		return nil, fmt.Errorf("%w: record submitted transaction %s: %v", errs.ErrPersistence, txID, err)
	}

	if created {
		g.observe("accepted")
		if err := g.publisher.PublishStatusChanged(ctx, stored); err != nil {
			log.WithError(err).Warn("failed to publish status event")
		}
	} else {
		g.observe("duplicate")
	}

	log.WithFields(logrus.Fields{
		"sender": stored.SenderAddress,
		"symbol": stored.Symbol,
		"amount": stored.AmountBaseUnits,
	}).Info("transaction submitted")

	return &SubmitResult{TxID: stored.TxID, Record: stored, Duplicate: !created}, nil
}

func (g *SubmissionGateway) observe(outcome string) {
	if g.metrics != nil {
		g.metrics.Submissions.WithLabelValues(outcome).Inc()
	}
}
