package store

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Request struct {
	SQL string
	// MaxRows is a hard backstop on rows read from the store, independent
	// of any LIMIT inside the statement. Zero means unbounded.
	MaxRows int
}

type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
	Duration  time.Duration
}

type Executor interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// Serialize renders the result as the plain text forwarded to answer
// synthesis: a header line, one line per row, and an explicit empty-set
// marker so the model can explain "no data" instead of hallucinating.
func (r Result) Serialize() string {
	if len(r.Rows) == 0 {
		return "(no rows)"
	}
	var b strings.Builder
	b.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		b.WriteString("\n")
		cells := make([]string, len(row))
		for i, value := range row {
			cells[i] = formatValue(value)
		}
		b.WriteString(strings.Join(cells, " | "))
	}
	if r.Truncated {
		fmt.Fprintf(&b, "\n... (result truncated at %d rows)", len(r.Rows))
	}
	return b.String()
}

func formatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format("2006-01-02")
	default:
		return fmt.Sprint(typed)
	}
}
