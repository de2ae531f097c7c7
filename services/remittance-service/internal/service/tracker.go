package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/ledger"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/lock"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/pubsub"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/repository"
	"github.com/13507-IN/HorizonPay/shared/pkg/metrics"
)

// StatusTracker polls the ledger until a record reaches a terminal observation or the budget runs out
type StatusTracker interface {
	Track(ctx context.Context, txID string, maxRounds int, pollDelay time.Duration) (*models.TransactionRecord, error)
}

// TrackerConfig shapes the delay between polls. A Multiplier of 1 keeps every wait at pollDelay.
type TrackerConfig struct {
	Multiplier   float64
	MaxPollDelay time.Duration
}

type ConfirmationTracker struct {
	ledger    ledger.Client
	store     repository.TransactionStore
	locker    lock.Locker
	publisher pubsub.StatusPublisher
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
	cfg       TrackerConfig
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

func NewConfirmationTracker(
	client ledger.Client,
	store repository.TransactionStore,
	locker lock.Locker,
	publisher pubsub.StatusPublisher,
	m *metrics.Metrics,
	log logrus.FieldLogger,
	cfg TrackerConfig,
) *ConfirmationTracker {
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 1
	}
	return &ConfirmationTracker{
		ledger:    client,
		store:     store,
		locker:    locker,
		publisher: publisher,
		metrics:   m,
		log:       log,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepContext,
	}
}

// Track polls txID at most maxRounds times. The returned error is ctx.Err() when the caller
// cancels (nothing is written), errs.ErrRefreshInProgress when another tracker holds the
// record, and errs.ErrConfirmationExpired alongside the expired record when the budget runs out.
func (t *ConfirmationTracker) Track(ctx context.Context, txID string, maxRounds int, pollDelay time.Duration) (*models.TransactionRecord, error) {
	if maxRounds < 1 {
		maxRounds = 1
	}
	log := t.log.WithField("tx_id", txID)

	handle, acquired, err := t.locker.TryLock(ctx, txID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("failed to lock transaction %s: %w", txID, err)
	}
	if !acquired {
		return nil, errs.ErrRefreshInProgress
	}
	defer func() {
		if err := handle.Unlock(context.WithoutCancel(ctx)); err != nil {
			log.WithError(err).Warn("failed to release tracking lock")
		}
	}()

	rec, err := t.store.FindByTxID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", errs.ErrPersistence, txID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrTransactionNotFound, txID)
	}
	if rec.Status.IsFinal() {
		return rec, nil
	}

	delays := t.newBackOff(pollDelay)
	for round := 1; ; round++ {
		info, pollErr := t.ledger.PendingInfo(ctx, txID)
		if t.metrics != nil {
			t.metrics.ConfirmationPolls.Inc()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			log.WithField("round", round).Info("tracking cancelled")
			return rec, ctxErr
		}

		switch {
		case pollErr == nil && info.Included():
			return t.transition(ctx, rec, confirmedUpdate(info.IncludedRound, t.now()))
		case pollErr == nil && info.Rejected():
			return t.transition(ctx, rec, failedUpdate(info.PoolError, t.now()))
		case pollErr != nil && !errors.Is(pollErr, ledger.ErrTransient) && !errors.Is(pollErr, ledger.ErrNotFound):
			return rec, fmt.Errorf("failed to poll transaction %s: %w", txID, pollErr)
		case pollErr != nil:
			log.WithError(pollErr).WithField("round", round).Debug("transaction not visible yet")
		}

		if round >= maxRounds {
			break
		}
		if err := t.sleep(ctx, delays.NextBackOff()); err != nil {
			log.WithField("round", round).Info("tracking cancelled")
			return rec, err
		}
	}

	log.WithField("rounds", maxRounds).Info("confirmation not observed within budget")
	if rec.Status == models.StatusExpired {
		return rec, errs.ErrConfirmationExpired
	}
	expired, err := t.transition(ctx, rec, models.StatusUpdate{Status: models.StatusExpired, UpdatedAt: t.now()})
	if err != nil {
		return expired, err
	}
	if expired.Status == models.StatusExpired {
		return expired, errs.ErrConfirmationExpired
	}
	return expired, nil
}

// transition applies update with compare-and-set. When another writer got there first the
// stored record is returned unchanged.
func (t *ConfirmationTracker) transition(ctx context.Context, rec *models.TransactionRecord, update models.StatusUpdate) (*models.TransactionRecord, error) {
	log := t.log.WithFields(logrus.Fields{"tx_id": rec.TxID, "from": rec.Status, "to": update.Status})

	applied, err := t.store.CompareAndSetStatus(ctx, rec.TxID, models.SourcesFor(update.Status), update)
	if err != nil {
		return rec, fmt.Errorf("%w: set status of %s: %v", errs.ErrPersistence, rec.TxID, err)
	}
	if !applied {
		log.Warn("status changed concurrently, keeping stored value")
		current, err := t.store.FindByTxID(ctx, rec.TxID)
		if err != nil {
			return rec, fmt.Errorf("%w: reload %s: %v", errs.ErrPersistence, rec.TxID, err)
		}
		if current == nil {
			return rec, fmt.Errorf("%w: %s", errs.ErrTransactionNotFound, rec.TxID)
		}
		return current, nil
	}

	updated := *rec
	updated.Status = update.Status
	updated.ConfirmedRound = update.ConfirmedRound
	updated.ConfirmedAt = update.ConfirmedAt
	updated.FailureReason = update.FailureReason
	updated.UpdatedAt = update.UpdatedAt

	if t.metrics != nil {
		t.metrics.TrackingOutcomes.WithLabelValues(string(update.Status)).Inc()
	}
	if err := t.publisher.PublishStatusChanged(ctx, &updated); err != nil {
		log.WithError(err).Warn("failed to publish status event")
	}
	log.Info("transaction status updated")
	return &updated, nil
}

func (t *ConfirmationTracker) newBackOff(pollDelay time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = pollDelay
	b.RandomizationFactor = 0
	b.Multiplier = t.cfg.Multiplier
	b.MaxInterval = t.cfg.MaxPollDelay
	if b.MaxInterval < pollDelay {
		b.MaxInterval = pollDelay
	}
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func confirmedUpdate(round uint64, now time.Time) models.StatusUpdate {
	return models.StatusUpdate{
		Status:         models.StatusConfirmed,
		ConfirmedRound: &round,
		ConfirmedAt:    &now,
		UpdatedAt:      now,
	}
}

func failedUpdate(reason string, now time.Time) models.StatusUpdate {
	return models.StatusUpdate{
		Status:        models.StatusFailed,
		FailureReason: &reason,
		UpdatedAt:     now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
