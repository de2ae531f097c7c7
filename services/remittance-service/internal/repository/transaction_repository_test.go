package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/errs"
	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
)

var columns = []string{
	"id", "tx_id", "sender_address", "recipient_address", "symbol", "ledger_asset_id", "decimals",
	"amount_base_units", "note", "status", "failure_reason", "initiated_at", "confirmed_at", "confirmed_round", "updated_at",
}

func sampleRecord() *models.TransactionRecord {
	now := time.Date(2024, 10, 29, 12, 0, 0, 0, time.UTC)
	return &models.TransactionRecord{
		ID:               "550e8400-e29b-41d4-a716-446655440000",
		TxID:             "TXID1",
		SenderAddress:    "SENDER",
		RecipientAddress: "RECIPIENT",
		Symbol:           "USDC",
		LedgerAssetID:    10458941,
		Decimals:         6,
		AmountBaseUnits:  10500000,
		Note:             []byte("rent"),
		Status:           models.StatusPending,
		InitiatedAt:      now,
		UpdatedAt:        now,
	}
}

func TestUpsert(t *testing.T) {
	tests := []struct {
		name        string
		setupMock   func(sqlmock.Sqlmock)
		expectError bool
		wantCreated bool
		wantID      string
	}{
		{
			name: "inserted",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO remittance_transactions`).
					WithArgs(
						"550e8400-e29b-41d4-a716-446655440000", "TXID1", "SENDER", "RECIPIENT", "USDC",
						int64(10458941), int64(6), int64(10500000), []byte("rent"), "pending",
						nil, sqlmock.AnyArg(), nil, nil, sqlmock.AnyArg(),
					).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantCreated: true,
			wantID:      "550e8400-e29b-41d4-a716-446655440000",
		},
		{
			name: "duplicate returns stored record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO remittance_transactions`).
					WillReturnResult(sqlmock.NewResult(0, 0))
				mock.ExpectQuery(`FROM remittance_transactions\s+WHERE tx_id = \?`).
					WithArgs("TXID1").
					WillReturnRows(sqlmock.NewRows(columns).AddRow(
						"existing-id", "TXID1", "SENDER", "RECIPIENT", "USDC", 10458941, 6, 10500000, nil, "pending",
						nil, time.Now(), nil, nil, time.Now(),
					))
			},
			wantCreated: false,
			wantID:      "existing-id",
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO remittance_transactions`).
					WillReturnError(sql.ErrConnDone)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewTransactionRepository(db)

			tt.setupMock(mock)

			rec, created, err := repo.Upsert(context.Background(), sampleRecord())
			if tt.expectError {
				assert.ErrorIs(t, err, errs.ErrPersistence)
				assert.ErrorIs(t, err, sql.ErrConnDone)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantCreated, created)
				assert.Equal(t, tt.wantID, rec.ID)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestFindByTxID(t *testing.T) {
	confirmedAt := time.Date(2024, 10, 29, 12, 0, 5, 0, time.UTC)

	tests := []struct {
		name        string
		setupMock   func(sqlmock.Sqlmock)
		expectNil   bool
		expectError bool
	}{
		{
			name: "confirmed record",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM remittance_transactions`).
					WithArgs("TXID1").
					WillReturnRows(sqlmock.NewRows(columns).AddRow(
						"id-1", "TXID1", "SENDER", "RECIPIENT", "ALGO", 0, 6, 2500000, []byte("hi"), "confirmed",
						nil, confirmedAt.Add(-5*time.Second), confirmedAt, uint64(41000000), confirmedAt,
					))
			},
		},
		{
			name: "not found",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM remittance_transactions`).
					WithArgs("TXID1").
					WillReturnError(sql.ErrNoRows)
			},
			expectNil: true,
		},
		{
			name: "database error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`FROM remittance_transactions`).
					WillReturnError(sql.ErrConnDone)
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewTransactionRepository(db)

			tt.setupMock(mock)

			rec, err := repo.FindByTxID(context.Background(), "TXID1")
			switch {
			case tt.expectError:
				assert.ErrorIs(t, err, errs.ErrPersistence)
			case tt.expectNil:
				assert.NoError(t, err)
				assert.Nil(t, rec)
			default:
				require.NoError(t, err)
				require.NotNil(t, rec)
				assert.Equal(t, models.StatusConfirmed, rec.Status)
				assert.Equal(t, "2.5", rec.AmountDisplay().String())
				require.NotNil(t, rec.ConfirmedRound)
				assert.Equal(t, uint64(41000000), *rec.ConfirmedRound)
				require.NotNil(t, rec.ConfirmedAt)
				assert.True(t, confirmedAt.Equal(*rec.ConfirmedAt))
				assert.Nil(t, rec.FailureReason)
				assert.Equal(t, []byte("hi"), rec.Note)
			}

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestQueryByParticipant(t *testing.T) {
	pending := models.StatusPending

	tests := []struct {
		name        string
		query       models.ParticipantQuery
		setupMock   func(sqlmock.Sqlmock)
		expectedLen int
		total       int
	}{
		{
			name:  "page with status filter",
			query: models.ParticipantQuery{Address: "ME", Status: &pending, Limit: 2, Offset: 0},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM remittance_transactions WHERE (sender_address = ? OR recipient_address = ?) AND status = ?`)).
					WithArgs("ME", "ME", "pending").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
				mock.ExpectQuery(`ORDER BY initiated_at DESC, id DESC LIMIT \? OFFSET \?`).
					WithArgs("ME", "ME", "pending", 2, 0).
					WillReturnRows(sqlmock.NewRows(columns).
						AddRow("id-3", "TX3", "ME", "YOU", "USDC", 10458941, 6, 1, nil, "pending", nil, time.Now(), nil, nil, time.Now()).
						AddRow("id-2", "TX2", "YOU", "ME", "USDC", 10458941, 6, 2, nil, "pending", nil, time.Now(), nil, nil, time.Now()))
			},
			expectedLen: 2,
			total:       3,
		},
		{
			name:  "offset past total skips list query",
			query: models.ParticipantQuery{Address: "ME", Limit: 20, Offset: 5},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM remittance_transactions WHERE (sender_address = ? OR recipient_address = ?)`)).
					WithArgs("ME", "ME").
					WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
			},
			expectedLen: 0,
			total:       5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewTransactionRepository(db)

			tt.setupMock(mock)

			records, total, err := repo.QueryByParticipant(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Len(t, records, tt.expectedLen)
			assert.Equal(t, tt.total, total)
			assert.NotNil(t, records)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCompareAndSetStatus(t *testing.T) {
	round := uint64(41000000)
	at := time.Now()

	tests := []struct {
		name      string
		from      []models.TransactionStatus
		setupMock func(sqlmock.Sqlmock)
		wantOK    bool
	}{
		{
			name: "applied",
			from: []models.TransactionStatus{models.StatusPending, models.StatusExpired},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`WHERE tx_id = ? AND status IN (?, ?)`)).
					WithArgs("confirmed", int64(round), sqlmock.AnyArg(), nil, sqlmock.AnyArg(), "TXID1", "pending", "expired").
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
			wantOK: true,
		},
		{
			name: "status already moved",
			from: []models.TransactionStatus{models.StatusPending},
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`WHERE tx_id = ? AND status IN (?)`)).
					WillReturnResult(sqlmock.NewResult(0, 0))
			},
			wantOK: false,
		},
		{
			name:      "no source statuses",
			from:      nil,
			setupMock: func(mock sqlmock.Sqlmock) {},
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer db.Close()
			repo := NewTransactionRepository(db)

			tt.setupMock(mock)

			ok, err := repo.CompareAndSetStatus(context.Background(), "TXID1", tt.from, models.StatusUpdate{
				Status:         models.StatusConfirmed,
				ConfirmedRound: &round,
				ConfirmedAt:    &at,
				UpdatedAt:      at,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.wantOK, ok)

			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCountByParticipant(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewTransactionRepository(db)

	mock.ExpectQuery(`GROUP BY status`).
		WithArgs("ME", "ME", "ME", "ME").
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "sent", "received"}).
			AddRow("confirmed", 3, "2", "1").
			AddRow("pending", 1, "1", "0"))

	stats, err := repo.CountByParticipant(context.Background(), "ME")
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Sent)
	assert.Equal(t, 1, stats.Received)
	assert.Equal(t, 3, stats.ByStatus[models.StatusConfirmed])
	assert.NoError(t, mock.ExpectationsWereMet())
}
