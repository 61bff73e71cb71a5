package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/crickql/crickql/internal/schema"
)

type Config struct {
	Dialect string
	// SchemaName selects the information_schema namespace to introspect.
	// Defaults to "public"; DuckDB databases use "main".
	SchemaName string
	SampleRows int
}

// Provider introspects a database through information_schema and samples a
// few rows per table for grounding context. It works against any backend
// that implements the standard, which covers both Postgres and DuckDB.
type Provider struct {
	db         *sql.DB
	dialect    string
	schemaName string
	samples    int
}

func NewProvider(db *sql.DB, cfg Config) *Provider {
	dialect := cfg.Dialect
	if dialect == "" {
		dialect = "PostgreSQL"
	}
	schemaName := cfg.SchemaName
	if schemaName == "" {
		schemaName = "public"
	}
	samples := cfg.SampleRows
	if samples < 0 {
		samples = 0
	}
	return &Provider{db: db, dialect: dialect, schemaName: schemaName, samples: samples}
}

const columnsQuery = `
SELECT table_name, column_name, data_type
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

func (p *Provider) Snapshot(ctx context.Context) (schema.Descriptor, error) {
	rows, err := p.db.QueryContext(ctx, columnsQuery, p.schemaName)
	if err != nil {
		return schema.Descriptor{}, fmt.Errorf("introspect columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []schema.Table
	index := map[string]int{}
	for rows.Next() {
		var tableName, columnName, dataType string
		if err := rows.Scan(&tableName, &columnName, &dataType); err != nil {
			return schema.Descriptor{}, fmt.Errorf("scan column row: %w", err)
		}
		i, ok := index[tableName]
		if !ok {
			i = len(tables)
			index[tableName] = i
			tables = append(tables, schema.Table{Name: tableName})
		}
		tables[i].Columns = append(tables[i].Columns, schema.Column{Name: columnName, DataType: dataType})
	}
	if err := rows.Err(); err != nil {
		return schema.Descriptor{}, fmt.Errorf("iterate column rows: %w", err)
	}
	if len(tables) == 0 {
		return schema.Descriptor{}, schema.ErrNoTables
	}

	if p.samples > 0 {
		for i := range tables {
			samples, err := p.sampleTable(ctx, tables[i].Name)
			if err != nil {
				// Sampling is best effort: an unreadable table still keeps
				// its column listing in the descriptor.
				continue
			}
			tables[i].SampleRows = samples
		}
	}

	return schema.Descriptor{
		Dialect:   p.dialect,
		Tables:    tables,
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (p *Provider) sampleTable(ctx context.Context, tableName string) ([][]string, error) {
	query := fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, quoteIdent(tableName), p.samples)
	rows, err := p.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sample table %q: %w", tableName, err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sample columns for %q: %w", tableName, err)
	}

	var samples [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		targets := make([]any, len(columns))
		for i := range values {
			targets[i] = &values[i]
		}
		if err := rows.Scan(targets...); err != nil {
			return nil, fmt.Errorf("scan sample row: %w", err)
		}
		samples = append(samples, renderValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sample rows: %w", err)
	}
	return samples, nil
}

func renderValues(values []any) []string {
	rendered := make([]string, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case nil:
			rendered[i] = "NULL"
		case []byte:
			rendered[i] = string(typed)
		case time.Time:
			rendered[i] = typed.Format("2006-01-02")
		default:
			rendered[i] = fmt.Sprint(typed)
		}
	}
	return rendered
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
