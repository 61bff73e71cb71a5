package api

import (
	"net/http"
	"time"

	"github.com/crickql/crickql/internal/observability"
)

type schemaColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type"`
}

type schemaTable struct {
	Name       string         `json:"name"`
	Columns    []schemaColumn `json:"columns"`
	SampleRows [][]string     `json:"sample_rows,omitempty"`
}

type schemaResponse struct {
	Dialect   string        `json:"dialect"`
	Tables    []schemaTable `json:"tables"`
	FetchedAt time.Time     `json:"fetched_at"`
}

func handleGetSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}

	descriptor, err := deps.Schema.Snapshot(r.Context())
	if err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "failed to load schema descriptor", true, map[string]any{"details": err.Error()})
		return
	}

	tables := make([]schemaTable, 0, len(descriptor.Tables))
	for _, table := range descriptor.Tables {
		columns := make([]schemaColumn, 0, len(table.Columns))
		for _, column := range table.Columns {
			columns = append(columns, schemaColumn{Name: column.Name, DataType: column.DataType})
		}
		tables = append(tables, schemaTable{
			Name:       table.Name,
			Columns:    columns,
			SampleRows: table.SampleRows,
		})
	}
	writeJSON(w, http.StatusOK, schemaResponse{
		Dialect:   descriptor.Dialect,
		Tables:    tables,
		FetchedAt: descriptor.FetchedAt,
	})
}

func handleRefreshSchema(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Schema == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "SCHEMA_NOT_CONFIGURED", "schema source is not configured", false, nil)
		return
	}

	deps.Schema.Invalidate()
	observability.ObserveSchemaRefresh()
	if _, err := deps.Schema.Snapshot(r.Context()); err != nil {
		writeError(r.Context(), w, http.StatusInternalServerError, "SCHEMA_ERROR", "failed to reload schema descriptor", true, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "refreshed"})
}
