package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyResponse = errors.New("llm: model returned an empty response")

	// ErrMalformedQueryOutput marks a model response that is not a valid
	// query object. Callers use it to tell apart "the model produced
	// garbage" from transport failures when deciding whether to retry.
	ErrMalformedQueryOutput = errors.New("llm: model response is not a valid query object")
)

// QueryOutput is the structured result of a SQL-synthesis call: a single
// syntactically valid SQL statement. Structural validation (non-empty query)
// happens at parse time; semantic validation belongs to the execution guard.
type QueryOutput struct {
	Query string `json:"query"`
}

// Client is the language model capability used by the pipeline stages.
type Client interface {
	// Generate returns free-form text for a prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateQuery returns a structurally validated QueryOutput. A
	// malformed model response is an error; the caller decides whether to
	// retry.
	GenerateQuery(ctx context.Context, prompt string) (QueryOutput, error)
	// Model is the model identifier the client is bound to.
	Model() string
}

// ParseQueryOutput decodes a raw model response into a QueryOutput. Models
// occasionally wrap JSON in markdown fences despite instructions, so fences
// are stripped before decoding.
func ParseQueryOutput(raw string) (QueryOutput, error) {
	cleaned := stripMarkdownFence(raw)
	if cleaned == "" {
		return QueryOutput{}, ErrEmptyResponse
	}

	var out QueryOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return QueryOutput{}, fmt.Errorf("%w: %v", ErrMalformedQueryOutput, err)
	}
	out.Query = strings.TrimSpace(out.Query)
	if out.Query == "" {
		return QueryOutput{}, fmt.Errorf("%w: empty query field", ErrMalformedQueryOutput)
	}
	return out, nil
}

func stripMarkdownFence(value string) string {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}
