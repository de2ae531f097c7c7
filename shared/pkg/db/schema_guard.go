package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrSchemaMismatch wraps every problem reported by SchemaGuard
var ErrSchemaMismatch = errors.New("schema mismatch")

// ColumnType is one expected column. DataType is the base type without length, e.g. "varchar".
type ColumnType struct {
	Name     string
	DataType string
	Nullable bool
}

// TableSchema is the part of a table the service relies on.
// Unique lists columns that must carry a single-column unique index.
type TableSchema struct {
	Name    string
	Columns []ColumnType
	Unique  []string
}

// SchemaGuard compares a live MySQL schema with what the code expects, so a drifted
// database fails at boot instead of on the first write
type SchemaGuard struct {
	db *sql.DB
}

func NewSchemaGuard(db *sql.DB) *SchemaGuard {
	return &SchemaGuard{db: db}
}

// ValidateTable reports all column and index problems of one table at once
func (sg *SchemaGuard) ValidateTable(ctx context.Context, schema TableSchema) error {
	actual, err := sg.columns(ctx, schema.Name)
	if err != nil {
		return err
	}
	if len(actual) == 0 {
		return fmt.Errorf("%w: table %s does not exist or has no columns", ErrSchemaMismatch, schema.Name)
	}

	var problems []error
	for _, want := range schema.Columns {
		got, ok := actual[want.Name]
		switch {
		case !ok:
			problems = append(problems, fmt.Errorf("missing column %s", want.Name))
		case !matchesDataType(got.DataType, want.DataType):
			problems = append(problems, fmt.Errorf("column %s has type %s, expected %s", want.Name, got.DataType, want.DataType))
		case got.Nullable != want.Nullable:
			problems = append(problems, fmt.Errorf("column %s nullable=%t, expected %t", want.Name, got.Nullable, want.Nullable))
		}
	}

	if len(schema.Unique) > 0 {
		unique, err := sg.uniqueColumns(ctx, schema.Name)
		if err != nil {
			return err
		}
		for _, col := range schema.Unique {
			if !unique[col] {
				problems = append(problems, fmt.Errorf("column %s has no unique index", col))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: table %s: %w", ErrSchemaMismatch, schema.Name, errors.Join(problems...))
	}
	return nil
}

func (sg *SchemaGuard) columns(ctx context.Context, table string) (map[string]ColumnType, error) {
	rows, err := sg.db.QueryContext(ctx, `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query columns of %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]ColumnType)
	for rows.Next() {
		var name, dataType, nullable string
		if err := rows.Scan(&name, &dataType, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		out[name] = ColumnType{Name: name, DataType: dataType, Nullable: nullable == "YES"}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read column info: %w", err)
	}
	return out, nil
}

// uniqueColumns returns the columns covered by a single-column unique index
func (sg *SchemaGuard) uniqueColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := sg.db.QueryContext(ctx, `
		SELECT MIN(COLUMN_NAME)
		FROM INFORMATION_SCHEMA.STATISTICS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ? AND NON_UNIQUE = 0
		GROUP BY INDEX_NAME
		HAVING COUNT(*) = 1
	`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes of %s: %w", table, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan index info: %w", err)
		}
		out[col] = true
	}
	return out, rows.Err()
}

// matchesDataType compares base types, so varchar matches varchar(64)
func matchesDataType(actual, expected string) bool {
	actual = strings.ToLower(actual)
	expected = strings.ToLower(expected)
	return actual == expected || strings.HasPrefix(actual, expected+"(")
}
