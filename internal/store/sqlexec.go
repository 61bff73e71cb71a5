package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SQLExecutor runs guarded statements against any database/sql backend.
// Postgres and DuckDB differ only in how the *sql.DB is opened.
type SQLExecutor struct {
	db      *sql.DB
	timeout time.Duration
}

func NewSQLExecutor(db *sql.DB, timeout time.Duration) *SQLExecutor {
	return &SQLExecutor{db: db, timeout: timeout}
}

func (e *SQLExecutor) Execute(ctx context.Context, request Request) (Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	started := time.Now()
	rows, err := e.db.QueryContext(ctx, request.SQL)
	if err != nil {
		return Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return Result{}, fmt.Errorf("read result columns: %w", err)
	}

	result := Result{Columns: columns}
	for rows.Next() {
		if request.MaxRows > 0 && len(result.Rows) >= request.MaxRows {
			result.Truncated = true
			break
		}
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return Result{}, fmt.Errorf("scan result row: %w", err)
		}
		for i, value := range values {
			if raw, ok := value.([]byte); ok {
				values[i] = string(raw)
			}
		}
		result.Rows = append(result.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return Result{}, fmt.Errorf("iterate result rows: %w", err)
	}
	result.Duration = time.Since(started)
	return result, nil
}
