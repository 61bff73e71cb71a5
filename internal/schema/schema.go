package schema

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var ErrNoTables = errors.New("schema: store exposes no tables")

type Column struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type Table struct {
	Name       string     `json:"name"`
	Columns    []Column   `json:"columns"`
	SampleRows [][]string `json:"sample_rows,omitempty"`
}

// Descriptor is an immutable snapshot of the store's relational structure.
// It is safe to share across concurrent requests; nothing mutates it after
// the provider returns it.
type Descriptor struct {
	Dialect   string    `json:"dialect"`
	Tables    []Table   `json:"tables"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Provider interface {
	Snapshot(ctx context.Context) (Descriptor, error)
}

// PromptText renders the descriptor into the table-info block embedded in
// generation prompts: one CREATE TABLE statement per table followed by a
// commented sample-row section. Output is deterministic for a given
// descriptor so prompt caching stays effective.
func (d Descriptor) PromptText() string {
	tables := make([]Table, len(d.Tables))
	copy(tables, d.Tables)
	sort.Slice(tables, func(i, j int) bool { return tables[i].Name < tables[j].Name })

	var b strings.Builder
	for i, table := range tables {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("CREATE TABLE ")
		b.WriteString(table.Name)
		b.WriteString(" (\n")
		for j, column := range table.Columns {
			b.WriteString("\t")
			b.WriteString(column.Name)
			b.WriteString(" ")
			b.WriteString(column.DataType)
			if j < len(table.Columns)-1 {
				b.WriteString(",")
			}
			b.WriteString("\n")
		}
		b.WriteString(")")

		if len(table.SampleRows) == 0 {
			continue
		}
		b.WriteString("\n\n/*\n")
		fmt.Fprintf(&b, "%d rows from %s:\n", len(table.SampleRows), table.Name)
		names := make([]string, 0, len(table.Columns))
		for _, column := range table.Columns {
			names = append(names, column.Name)
		}
		b.WriteString(strings.Join(names, "\t"))
		b.WriteString("\n")
		for _, row := range table.SampleRows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
		b.WriteString("*/")
	}
	return b.String()
}

// TableNames returns the table names in sorted order.
func (d Descriptor) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.Name)
	}
	sort.Strings(names)
	return names
}
