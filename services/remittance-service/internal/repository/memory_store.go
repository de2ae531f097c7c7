package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
)

// MemoryStore is a process-local TransactionStore for development and tests.
// Records are copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu     sync.RWMutex
	byTxID map[string]*models.TransactionRecord
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byTxID: make(map[string]*models.TransactionRecord)}
}

func (s *MemoryStore) Upsert(ctx context.Context, rec *models.TransactionRecord) (*models.TransactionRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTxID[rec.TxID]; ok {
		return clone(existing), false, nil
	}
	s.byTxID[rec.TxID] = clone(rec)
	return clone(rec), true, nil
}

func (s *MemoryStore) FindByTxID(ctx context.Context, txID string) (*models.TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byTxID[txID]
	if !ok {
		return nil, nil
	}
	return clone(rec), nil
}

func (s *MemoryStore) QueryByParticipant(ctx context.Context, q models.ParticipantQuery) ([]*models.TransactionRecord, int, error) {
	s.mu.RLock()
	var matched []*models.TransactionRecord
	for _, rec := range s.byTxID {
		if !rec.IsParticipant(q.Address) {
			continue
		}
		if q.Status != nil && rec.Status != *q.Status {
			continue
		}
		matched = append(matched, clone(rec))
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].InitiatedAt.Equal(matched[j].InitiatedAt) {
			return matched[i].InitiatedAt.After(matched[j].InitiatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	total := len(matched)
	records := []*models.TransactionRecord{}
	if q.Limit <= 0 || q.Offset >= total {
		return records, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return append(records, matched[q.Offset:end]...), total, nil
}

func (s *MemoryStore) CompareAndSetStatus(ctx context.Context, txID string, from []models.TransactionStatus, update models.StatusUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byTxID[txID]
	if !ok {
		return false, nil
	}

	matches := false
	for _, st := range from {
		if rec.Status == st {
			matches = true
			break
		}
	}
	if !matches {
		return false, nil
	}

	rec.Status = update.Status
	rec.ConfirmedRound = copyUint64(update.ConfirmedRound)
	rec.ConfirmedAt = copyTime(update.ConfirmedAt)
	rec.FailureReason = copyString(update.FailureReason)
	rec.UpdatedAt = update.UpdatedAt
	return true, nil
}

func (s *MemoryStore) CountByParticipant(ctx context.Context, address string) (*models.ParticipantStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.ParticipantStats{ByStatus: map[models.TransactionStatus]int{}}
	for _, rec := range s.byTxID {
		if !rec.IsParticipant(address) {
			continue
		}
		stats.Total++
		stats.ByStatus[rec.Status]++
		if rec.SenderAddress == address {
			stats.Sent++
		}
		if rec.RecipientAddress == address {
			stats.Received++
		}
	}
	return stats, nil
}

func clone(rec *models.TransactionRecord) *models.TransactionRecord {
	c := *rec
	if rec.Note != nil {
		c.Note = append([]byte(nil), rec.Note...)
	}
	c.ConfirmedRound = copyUint64(rec.ConfirmedRound)
	c.ConfirmedAt = copyTime(rec.ConfirmedAt)
	c.FailureReason = copyString(rec.FailureReason)
	return &c
}

func copyUint64(v *uint64) *uint64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
