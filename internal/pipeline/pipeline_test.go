package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/crickql/crickql/internal/grounding"
	"github.com/crickql/crickql/internal/llm"
	"github.com/crickql/crickql/internal/schema"
	"github.com/crickql/crickql/internal/store"
)

type generation struct {
	text string
	err  error
}

type queryResult struct {
	out llm.QueryOutput
	err error
}

// scriptedClient replays canned model responses in call order and records
// the prompts it was given.
type scriptedClient struct {
	model           string
	generations     []generation
	queries         []queryResult
	generatePrompts []string
	queryPrompts    []string
}

func (c *scriptedClient) Generate(_ context.Context, prompt string) (string, error) {
	c.generatePrompts = append(c.generatePrompts, prompt)
	if len(c.generations) == 0 {
		return "", errors.New("scripted client: no generation left")
	}
	next := c.generations[0]
	c.generations = c.generations[1:]
	return next.text, next.err
}

func (c *scriptedClient) GenerateQuery(_ context.Context, prompt string) (llm.QueryOutput, error) {
	c.queryPrompts = append(c.queryPrompts, prompt)
	if len(c.queries) == 0 {
		return llm.QueryOutput{}, errors.New("scripted client: no query result left")
	}
	next := c.queries[0]
	c.queries = c.queries[1:]
	return next.out, next.err
}

func (c *scriptedClient) Model() string { return c.model }

type fakeExecutor struct {
	result   store.Result
	err      error
	requests []store.Request
}

func (e *fakeExecutor) Execute(_ context.Context, request store.Request) (store.Result, error) {
	e.requests = append(e.requests, request)
	if e.err != nil {
		return store.Result{}, e.err
	}
	return e.result, nil
}

type staticSchema struct {
	descriptor schema.Descriptor
	err        error
}

func (s staticSchema) Snapshot(context.Context) (schema.Descriptor, error) {
	return s.descriptor, s.err
}

func testDescriptor() schema.Descriptor {
	return schema.Descriptor{
		Dialect: "postgresql",
		Tables: []schema.Table{
			{Name: "players", Columns: []schema.Column{{Name: "id", DataType: "integer"}, {Name: "name", DataType: "text"}}},
			{Name: "player_matches", Columns: []schema.Column{{Name: "player_id", DataType: "integer"}, {Name: "sixes", DataType: "integer"}}},
		},
		FetchedAt: time.Now(),
	}
}

func testPipeline(t *testing.T, executor store.Executor) *Pipeline {
	t.Helper()
	policy, err := grounding.NewPolicy(30)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(staticSchema{descriptor: testDescriptor()}, policy, executor, logger, Config{
		RowCeiling:    10,
		MaxResultRows: 1000,
	})
}

func TestRunAnswersQuestion(t *testing.T) {
	client := &scriptedClient{
		model: "gemini-2.0-flash",
		generations: []generation{
			{text: "- Count the sixes hit by the player named Rinku Singh in season 2023."},
			{text: "Rinku Singh hit 29 sixes in IPL 2023."},
		},
		queries: []queryResult{
			{out: llm.QueryOutput{Query: "SELECT SUM(sixes) FROM player_matches;"}},
		},
	}
	executor := &fakeExecutor{
		result: store.Result{Columns: []string{"sum"}, Rows: [][]any{{int64(29)}}},
	}

	state, err := testPipeline(t, executor).Run(context.Background(), client, "How many sixes did Rinku Singh hit in IPL 2023?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Status != StatusAnswered {
		t.Fatalf("Status = %q", state.Status)
	}
	if state.ExpandedQuestion == "" || state.Answer == "" {
		t.Fatalf("state = %+v", state)
	}
	if state.Query != "SELECT SUM(sixes) FROM player_matches" {
		t.Fatalf("Query = %q, trailing semicolon should be stripped", state.Query)
	}
	if state.Result != "sum\n29" {
		t.Fatalf("Result = %q", state.Result)
	}

	if len(executor.requests) != 1 {
		t.Fatalf("executor calls = %d", len(executor.requests))
	}
	if executor.requests[0].MaxRows != 1000 {
		t.Fatalf("MaxRows = %d", executor.requests[0].MaxRows)
	}

	if len(client.generatePrompts) != 2 {
		t.Fatalf("generate calls = %d", len(client.generatePrompts))
	}
	if !strings.Contains(client.generatePrompts[0], "How many sixes did Rinku Singh hit") {
		t.Fatal("expansion prompt should carry the raw question")
	}
	if !strings.Contains(client.queryPrompts[0], "Count the sixes hit by the player") {
		t.Fatal("synthesis prompt should carry the expanded question")
	}
	if !strings.Contains(client.queryPrompts[0], "player_matches") {
		t.Fatal("synthesis prompt should carry the table info")
	}
	if !strings.Contains(client.generatePrompts[1], "sum\n29") {
		t.Fatal("answer prompt should carry the serialized result")
	}
}

func TestRunRejectsMutatingQuery(t *testing.T) {
	client := &scriptedClient{
		model:       "gemini-2.0-flash",
		generations: []generation{{text: "- Remove all matches."}},
		queries:     []queryResult{{out: llm.QueryOutput{Query: "DROP TABLE matches"}}},
	}
	executor := &fakeExecutor{}

	state, err := testPipeline(t, executor).Run(context.Background(), client, "delete everything")
	var stageErr *Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if stageErr.Stage != StageExecute || stageErr.Kind != KindGuardViolation {
		t.Fatalf("stage = %q kind = %q", stageErr.Stage, stageErr.Kind)
	}
	var violation *store.GuardViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("error = %v, want wrapped GuardViolationError", err)
	}
	if state.Status != StatusFailed {
		t.Fatalf("Status = %q", state.Status)
	}
	if len(executor.requests) != 0 {
		t.Fatal("rejected query must never reach the executor")
	}
	if state.Answer != "" {
		t.Fatalf("Answer = %q, want empty", state.Answer)
	}
}

func TestRunSchemaLoadFailureReportsSchemaStage(t *testing.T) {
	client := &scriptedClient{model: "gemini-2.0-flash"}
	executor := &fakeExecutor{}
	policy, err := grounding.NewPolicy(30)
	if err != nil {
		t.Fatalf("NewPolicy() error = %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	pipeline := New(staticSchema{err: errors.New("store unavailable")}, policy, executor, logger, Config{
		RowCeiling:    10,
		MaxResultRows: 1000,
	})

	state, err := pipeline.Run(context.Background(), client, "who won in 2016?")
	var stageErr *Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if stageErr.Stage != StageSchema || stageErr.Kind != KindExecution {
		t.Fatalf("stage = %q kind = %q", stageErr.Stage, stageErr.Kind)
	}
	if state.Status != StatusFailed {
		t.Fatalf("Status = %q", state.Status)
	}
	if len(client.generatePrompts) != 0 || len(client.queryPrompts) != 0 || len(executor.requests) != 0 {
		t.Fatal("no stage may run when the schema descriptor cannot be loaded")
	}
}

func TestRunExpansionFailureShortCircuits(t *testing.T) {
	client := &scriptedClient{
		model:       "gemini-2.0-flash",
		generations: []generation{{err: errors.New("upstream unavailable")}},
	}
	executor := &fakeExecutor{}

	state, err := testPipeline(t, executor).Run(context.Background(), client, "who won in 2016?")
	var stageErr *Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if stageErr.Stage != StageExpand || stageErr.Kind != KindGeneration {
		t.Fatalf("stage = %q kind = %q", stageErr.Stage, stageErr.Kind)
	}
	if state.Query != "" || state.Result != "" || state.Answer != "" {
		t.Fatalf("downstream fields must stay empty, state = %+v", state)
	}
	if len(client.queryPrompts) != 0 || len(executor.requests) != 0 {
		t.Fatal("downstream stages must not run after an expansion failure")
	}
}

func TestRunRetriesMalformedQueryOutputOnce(t *testing.T) {
	client := &scriptedClient{
		model: "llama-3.3-70b-versatile",
		generations: []generation{
			{text: "- List the winner of season 2016."},
			{text: "Sunrisers Hyderabad won IPL 2016."},
		},
		queries: []queryResult{
			{err: llm.ErrMalformedQueryOutput},
			{out: llm.QueryOutput{Query: "SELECT name FROM teams"}},
		},
	}
	executor := &fakeExecutor{result: store.Result{Columns: []string{"name"}, Rows: [][]any{{"Sunrisers Hyderabad"}}}}

	state, err := testPipeline(t, executor).Run(context.Background(), client, "who won in 2016?")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if state.Status != StatusAnswered {
		t.Fatalf("Status = %q", state.Status)
	}
	if len(client.queryPrompts) != 2 {
		t.Fatalf("query calls = %d, want 2", len(client.queryPrompts))
	}
}

func TestRunStructuredOutputFailureAfterRetry(t *testing.T) {
	client := &scriptedClient{
		model:       "llama-3.3-70b-versatile",
		generations: []generation{{text: "- List the winner of season 2016."}},
		queries: []queryResult{
			{err: llm.ErrMalformedQueryOutput},
			{err: llm.ErrMalformedQueryOutput},
		},
	}
	executor := &fakeExecutor{}

	_, err := testPipeline(t, executor).Run(context.Background(), client, "who won in 2016?")
	var stageErr *Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if stageErr.Stage != StageSynthesize || stageErr.Kind != KindStructuredOutput {
		t.Fatalf("stage = %q kind = %q", stageErr.Stage, stageErr.Kind)
	}
	if len(client.queryPrompts) != 2 {
		t.Fatalf("query calls = %d, want exactly one retry", len(client.queryPrompts))
	}
}

func TestRunTransportFailureIsNotRetried(t *testing.T) {
	client := &scriptedClient{
		model:       "gemini-2.0-flash",
		generations: []generation{{text: "- List the winner of season 2016."}},
		queries:     []queryResult{{err: errors.New("connection reset")}},
	}
	executor := &fakeExecutor{}

	_, err := testPipeline(t, executor).Run(context.Background(), client, "who won in 2016?")
	var stageErr *Error
	if !errors.As(err, &stageErr) {
		t.Fatalf("error = %v, want *Error", err)
	}
	if stageErr.Kind != KindGeneration {
		t.Fatalf("kind = %q", stageErr.Kind)
	}
	if len(client.queryPrompts) != 1 {
		t.Fatalf("query calls = %d, want 1", len(client.queryPrompts))
	}
}

func TestRunForwardsExecutionErrorToAnswerStage(t *testing.T) {
	client := &scriptedClient{
		model: "gemini-2.0-flash",
		generations: []generation{
			{text: "- Count sixes for a column that does not exist."},
			{text: "The query could not be executed because the column does not exist."},
		},
		queries: []queryResult{{out: llm.QueryOutput{Query: "SELECT missing FROM player_matches"}}},
	}
	executor := &fakeExecutor{err: errors.New(`column "missing" does not exist`)}

	state, err := testPipeline(t, executor).Run(context.Background(), client, "how many sixes?")
	if err != nil {
		t.Fatalf("Run() error = %v, execution errors should not abort the run", err)
	}
	if state.Status != StatusAnswered {
		t.Fatalf("Status = %q", state.Status)
	}
	if !strings.HasPrefix(state.Result, "Error:") {
		t.Fatalf("Result = %q", state.Result)
	}
	if !strings.Contains(client.generatePrompts[1], `column "missing" does not exist`) {
		t.Fatal("answer prompt should carry the execution error")
	}
}
