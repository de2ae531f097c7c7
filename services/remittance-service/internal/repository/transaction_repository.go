package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
)

const transactionColumns = `id, tx_id, sender_address, recipient_address, symbol, ledger_asset_id, decimals,
		amount_base_units, note, status, failure_reason, initiated_at, confirmed_at, confirmed_round, updated_at`

type transactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository returns the MySQL-backed store
func NewTransactionRepository(db *sql.DB) TransactionStore {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Upsert(ctx context.Context, rec *models.TransactionRecord) (*models.TransactionRecord, bool, error) {
	query := `
		INSERT INTO remittance_transactions (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE id = id
	`
	result, err := r.db.ExecContext(ctx, query,
		rec.ID, rec.TxID, rec.SenderAddress, rec.RecipientAddress, rec.Symbol,
		rec.LedgerAssetID, rec.Decimals, rec.AmountBaseUnits, nullBytes(rec.Note),
		string(rec.Status), rec.FailureReason, rec.InitiatedAt.UTC(), utcPtr(rec.ConfirmedAt),
		rec.ConfirmedRound, rec.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("failed to upsert transaction: %w: %w", errs.ErrPersistence, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("failed to read upsert result: %w: %w", errs.ErrPersistence, err)
	}
	if affected == 1 {
		return rec, true, nil
	}

	existing, err := r.FindByTxID(ctx, rec.TxID)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		return nil, false, fmt.Errorf("failed to upsert transaction %s: %w: row neither inserted nor found", rec.TxID, errs.ErrPersistence)
	}
	return existing, false, nil
}

func (r *transactionRepository) FindByTxID(ctx context.Context, txID string) (*models.TransactionRecord, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM remittance_transactions
		WHERE tx_id = ?
	`
	rec, err := scanTransaction(r.db.QueryRowContext(ctx, query, txID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w: %w", errs.ErrPersistence, err)
	}
	return rec, nil
}

func (r *transactionRepository) QueryByParticipant(ctx context.Context, q models.ParticipantQuery) ([]*models.TransactionRecord, int, error) {
	where := "(sender_address = ? OR recipient_address = ?)"
	args := []interface{}{q.Address, q.Address}
	if q.Status != nil {
		where += " AND status = ?"
		args = append(args, string(*q.Status))
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM remittance_transactions WHERE " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w: %w", errs.ErrPersistence, err)
	}

	records := []*models.TransactionRecord{}
	if q.Limit <= 0 || q.Offset >= total {
		return records, total, nil
	}

	listQuery := "SELECT " + transactionColumns + " FROM remittance_transactions WHERE " + where +
		" ORDER BY initiated_at DESC, id DESC LIMIT ? OFFSET ?"
	rows, err := r.db.QueryContext(ctx, listQuery, append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list transactions: %w: %w", errs.ErrPersistence, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan transaction: %w: %w", errs.ErrPersistence, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate transactions: %w: %w", errs.ErrPersistence, err)
	}

	return records, total, nil
}

func (r *transactionRepository) CompareAndSetStatus(ctx context.Context, txID string, from []models.TransactionStatus, update models.StatusUpdate) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	query := `
		UPDATE remittance_transactions
		SET status = ?, confirmed_round = ?, confirmed_at = ?, failure_reason = ?, updated_at = ?
		WHERE tx_id = ? AND status IN (` + placeholders + `)
	`
	args := []interface{}{
		string(update.Status), update.ConfirmedRound, utcPtr(update.ConfirmedAt), update.FailureReason,
		update.UpdatedAt.UTC(), txID,
	}
	for _, s := range from {
		args = append(args, string(s))
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w: %w", errs.ErrPersistence, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w: %w", errs.ErrPersistence, err)
	}
	return affected == 1, nil
}

func (r *transactionRepository) CountByParticipant(ctx context.Context, address string) (*models.ParticipantStats, error) {
	query := `
		SELECT status, COUNT(*), SUM(sender_address = ?), SUM(recipient_address = ?)
		FROM remittance_transactions
		WHERE sender_address = ? OR recipient_address = ?
		GROUP BY status
	`
	rows, err := r.db.QueryContext(ctx, query, address, address, address, address)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w: %w", errs.ErrPersistence, err)
	}
	defer rows.Close()

	stats := &models.ParticipantStats{ByStatus: map[models.TransactionStatus]int{}}
	for rows.Next() {
		var status string
		var count, sent, received int
		if err := rows.Scan(&status, &count, &sent, &received); err != nil {
			return nil, fmt.Errorf("failed to scan transaction counts: %w: %w", errs.ErrPersistence, err)
		}
		stats.ByStatus[models.TransactionStatus(status)] = count
		stats.Total += count
		stats.Sent += sent
		stats.Received += received
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction counts: %w: %w", errs.ErrPersistence, err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.TransactionRecord, error) {
	var (
		rec           models.TransactionRecord
		txID          sql.NullString
		status        string
		failureReason sql.NullString
		confirmedAt   sql.NullTime
		round         sql.Null[uint64]
	)

	err := row.Scan(
		&rec.ID, &txID, &rec.SenderAddress, &rec.RecipientAddress, &rec.Symbol, &rec.LedgerAssetID,
		&rec.Decimals, &rec.AmountBaseUnits, &rec.Note, &status, &failureReason, &rec.InitiatedAt,
		&confirmedAt, &round, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rec.TxID = txID.String
	rec.Status = models.TransactionStatus(status)
	if failureReason.Valid {
		rec.FailureReason = &failureReason.String
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		rec.ConfirmedAt = &t
	}
	if round.Valid {
		v := round.V
		rec.ConfirmedRound = &v
	}
	return &rec, nil
}

func nullBytes(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return b
}

func utcPtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}
