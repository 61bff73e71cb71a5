package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/crickql/crickql/internal/schema"
)

func newSQLMock(t *testing.T) (*Provider, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewProvider(db, Config{Dialect: "PostgreSQL", SampleRows: 2}), mock
}

func expectColumns(mock sqlmock.Sqlmock) {
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("players", "id", "bigint").
			AddRow("players", "name", "text").
			AddRow("teams", "id", "bigint").
			AddRow("teams", "name", "text"))
}

func TestSnapshotBuildsDescriptor(t *testing.T) {
	provider, mock := newSQLMock(t)
	expectColumns(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "players" LIMIT 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Rinku Singh"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "teams" LIMIT 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(int64(1), "Punjab Kings"))

	snap, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Dialect != "PostgreSQL" {
		t.Fatalf("Dialect = %q", snap.Dialect)
	}
	if len(snap.Tables) != 2 {
		t.Fatalf("len(Tables) = %d", len(snap.Tables))
	}
	if snap.Tables[0].Name != "players" || len(snap.Tables[0].Columns) != 2 {
		t.Fatalf("players table = %+v", snap.Tables[0])
	}
	if len(snap.Tables[0].SampleRows) != 1 || snap.Tables[0].SampleRows[0][1] != "Rinku Singh" {
		t.Fatalf("players samples = %v", snap.Tables[0].SampleRows)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSnapshotToleratesSampleFailure(t *testing.T) {
	provider, mock := newSQLMock(t)
	expectColumns(mock)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "players" LIMIT 2`)).
		WillReturnError(errors.New("permission denied"))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "teams" LIMIT 2`)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(int64(1), "Punjab Kings"))

	snap, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Tables[0].SampleRows) != 0 {
		t.Fatalf("players samples = %v, want none", snap.Tables[0].SampleRows)
	}
	if len(snap.Tables[1].SampleRows) != 1 {
		t.Fatalf("teams samples = %v", snap.Tables[1].SampleRows)
	}
}

func TestSnapshotUsesConfiguredSchemaName(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	provider := NewProvider(db, Config{Dialect: "DuckDB", SchemaName: "main"})

	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("main").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}).
			AddRow("matches", "id", "BIGINT"))

	snap, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.Dialect != "DuckDB" || len(snap.Tables) != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestSnapshotEmptySchemaReturnsErrNoTables(t *testing.T) {
	provider, mock := newSQLMock(t)
	mock.ExpectQuery(regexp.QuoteMeta(columnsQuery)).
		WithArgs("public").
		WillReturnRows(sqlmock.NewRows([]string{"table_name", "column_name", "data_type"}))

	_, err := provider.Snapshot(context.Background())
	if !errors.Is(err, schema.ErrNoTables) {
		t.Fatalf("error = %v, want ErrNoTables", err)
	}
}
