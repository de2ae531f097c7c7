package repository

import (
	"context"
	"embed"

	"github.com/13507-IN/HorizonPay/services/remittance-service/internal/models"
	"github.com/13507-IN/HorizonPay/shared/pkg/db"
)

// Migrations holds the schema for the MySQL store, applied with db.Migrate(conn, Migrations, "migrations")
//
//go:embed migrations/*.sql
var Migrations embed.FS

// TableName is the MySQL table backing the store
const TableName = "remittance_transactions"

// TransactionStore persists transaction records. Implementations must make Upsert
// insert-if-absent on TxID and CompareAndSetStatus atomic.
type TransactionStore interface {
	// Upsert inserts rec unless a record with the same TxID exists. It returns the stored
	// record and whether this call created it.
	Upsert(ctx context.Context, rec *models.TransactionRecord) (*models.TransactionRecord, bool, error)
	// FindByTxID returns nil, nil when no record exists.
	FindByTxID(ctx context.Context, txID string) (*models.TransactionRecord, error)
	// QueryByParticipant returns a page ordered by InitiatedAt descending and the total match count.
	QueryByParticipant(ctx context.Context, q models.ParticipantQuery) ([]*models.TransactionRecord, int, error)
	// CompareAndSetStatus applies update only while the stored status is one of from.
	CompareAndSetStatus(ctx context.Context, txID string, from []models.TransactionStatus, update models.StatusUpdate) (bool, error)
	CountByParticipant(ctx context.Context, address string) (*models.ParticipantStats, error)
}

// ExpectedSchema is checked at boot by the schema guard
var ExpectedSchema = db.TableSchema{
	Name: TableName,
	Columns: []db.ColumnType{
		{Name: "id", DataType: "char", Nullable: false},
		{Name: "tx_id", DataType: "varchar", Nullable: true},
		{Name: "sender_address", DataType: "char", Nullable: false},
		{Name: "recipient_address", DataType: "char", Nullable: false},
		{Name: "symbol", DataType: "varchar", Nullable: false},
		{Name: "ledger_asset_id", DataType: "bigint", Nullable: false},
		{Name: "decimals", DataType: "tinyint", Nullable: false},
		{Name: "amount_base_units", DataType: "bigint", Nullable: false},
		{Name: "note", DataType: "varbinary", Nullable: true},
		{Name: "status", DataType: "varchar", Nullable: false},
		{Name: "failure_reason", DataType: "varchar", Nullable: true},
		{Name: "initiated_at", DataType: "datetime", Nullable: false},
		{Name: "confirmed_at", DataType: "datetime", Nullable: true},
		{Name: "confirmed_round", DataType: "bigint", Nullable: true},
		{Name: "updated_at", DataType: "datetime", Nullable: false},
	},
	Unique: []string{"tx_id"},
}
