package service

import (
	"context"
	"fmt"
	"time"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/repository"
)

type HistoryConfig struct {
	DefaultLimit     int
	MaxLimit         int
	RefreshMaxRounds int
	RefreshPollDelay time.Duration
}

// ListQuery selects one page of a participant's records
type ListQuery struct {
	Participant string
	Status      *models.TransactionStatus
	Limit       int
	Offset      int
}

// HistoryEntry is a record annotated for the participant viewing it
type HistoryEntry struct {
	*models.TransactionRecord
	Direction models.Direction `json:"direction"`
	Amount    string           `json:"amount"`
	Note      string           `json:"note,omitempty"`
}

type HistoryPage struct {
	Records []HistoryEntry `json:"transactions"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
	HasMore bool           `json:"hasMore"`
}

// HistoryReconciler serves participant history and re-checks unresolved records on demand
type HistoryReconciler struct {
	store   repository.TransactionStore
	tracker StatusTracker
	cfg     HistoryConfig
}

func NewHistoryReconciler(store repository.TransactionStore, tracker StatusTracker, cfg HistoryConfig) *HistoryReconciler {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 20
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}
	if cfg.RefreshMaxRounds <= 0 {
		cfg.RefreshMaxRounds = 3
	}
	return &HistoryReconciler{store: store, tracker: tracker, cfg: cfg}
}

func (h *HistoryReconciler) List(ctx context.Context, q ListQuery) (*HistoryPage, error) {
	limit := q.Limit
	switch {
	case limit <= 0:
		limit = h.cfg.DefaultLimit
	case limit > h.cfg.MaxLimit:
		limit = h.cfg.MaxLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	records, total, err := h.store.QueryByParticipant(ctx, models.ParticipantQuery{
		Address: q.Participant,
		Status:  q.Status,
		Limit:   limit,
		Offset:  offset,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query history: %v", errs.ErrPersistence, err)
	}

	page := &HistoryPage{
		Records: make([]HistoryEntry, 0, len(records)),
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}
	for _, rec := range records {
		page.Records = append(page.Records, annotate(rec, q.Participant))
	}
	page.HasMore = offset+len(page.Records) < total
	return page, nil
}

// Get returns one record if participant sent or received it
func (h *HistoryReconciler) Get(ctx context.Context, participant, txID string) (*HistoryEntry, error) {
	rec, err := h.find(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !rec.IsParticipant(participant) {
		return nil, errs.ErrForbidden
	}
	entry := annotate(rec, participant)
	return &entry, nil
}

// Refresh re-polls a pending or expired record with the refresh budget. Final records are
// returned without touching the ledger.
func (h *HistoryReconciler) Refresh(ctx context.Context, txID string) (*models.TransactionRecord, error) {
	rec, err := h.find(ctx, txID)
	if err != nil {
		return nil, err
	}
	if rec.Status.IsFinal() {
		return rec, nil
	}
	return h.tracker.Track(ctx, txID, h.cfg.RefreshMaxRounds, h.cfg.RefreshPollDelay)
}

func (h *HistoryReconciler) Stats(ctx context.Context, participant string) (*models.ParticipantStats, error) {
	stats, err := h.store.CountByParticipant(ctx, participant)
	if err != nil {
		return nil, fmt.Errorf("%w: count history: %v", errs.ErrPersistence, err)
	}
	return stats, nil
}

func (h *HistoryReconciler) find(ctx context.Context, txID string) (*models.TransactionRecord, error) {
	rec, err := h.store.FindByTxID(ctx, txID)
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", errs.ErrPersistence, txID, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrTransactionNotFound, txID)
	}
	return rec, nil
}

func annotate(rec *models.TransactionRecord, participant string) HistoryEntry {
	return HistoryEntry{
		TransactionRecord: rec,
		Direction:         rec.DirectionFor(participant),
		Amount:            rec.AmountDisplay().String(),
		Note:              string(rec.Note),
	}
}
