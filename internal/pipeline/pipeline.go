// Package pipeline runs a question through the four stages that turn
// natural language into an answer: question expansion, SQL synthesis,
// guarded execution, and answer synthesis.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/crickql/crickql/internal/grounding"
	"github.com/crickql/crickql/internal/llm"
	"github.com/crickql/crickql/internal/observability"
	"github.com/crickql/crickql/internal/prompt"
	"github.com/crickql/crickql/internal/schema"
	"github.com/crickql/crickql/internal/store"
)

type Config struct {
	// RowCeiling is the soft limit the synthesis prompt instructs the model
	// to respect unless the question explicitly asks for more.
	RowCeiling int
	// MaxResultRows is the hard backstop applied at execution regardless of
	// what the generated statement asks for.
	MaxResultRows int
}

type Pipeline struct {
	schema   schema.Provider
	policy   *grounding.Policy
	executor store.Executor
	logger   *slog.Logger
	cfg      Config
}

func New(provider schema.Provider, policy *grounding.Policy, executor store.Executor, logger *slog.Logger, cfg Config) *Pipeline {
	return &Pipeline{
		schema:   provider,
		policy:   policy,
		executor: executor,
		logger:   logger,
		cfg:      cfg,
	}
}

// Run drives a question through all four stages with the given model
// client. A failed run returns the partially filled state together with a
// typed *Error; callers use the state for diagnostics and the error for
// classification.
func (p *Pipeline) Run(ctx context.Context, client llm.Client, question string) (State, error) {
	state := NewState(question)
	observability.ObserveQuestion()

	descriptor, err := p.schema.Snapshot(ctx)
	if err != nil {
		return state, p.failStage(&state, StageSchema, KindExecution, fmt.Errorf("load schema descriptor: %w", err))
	}
	tableInfo := descriptor.PromptText()

	if err := p.expand(ctx, client, tableInfo, &state); err != nil {
		return state, err
	}
	if err := p.synthesize(ctx, client, descriptor.Dialect, tableInfo, &state); err != nil {
		return state, err
	}
	if err := p.execute(ctx, &state); err != nil {
		return state, err
	}
	if err := p.answer(ctx, client, &state); err != nil {
		return state, err
	}

	observability.ObserveAnswered()
	return state, nil
}

func (p *Pipeline) expand(ctx context.Context, client llm.Client, tableInfo string, state *State) error {
	promptText, err := prompt.Render(prompt.ExpandQuestionV1, map[string]any{
		"Rules":     p.policy.ExpansionRules(),
		"TableInfo": tableInfo,
		"Question":  state.Question,
	})
	if err != nil {
		return p.failStage(state, StageExpand, KindGeneration, err)
	}

	started := time.Now()
	expanded, err := client.Generate(ctx, promptText)
	observability.ObserveModelCall(string(StageExpand), client.Model(), time.Since(started))
	if err != nil {
		return p.failStage(state, StageExpand, KindGeneration, err)
	}

	state.ExpandedQuestion = expanded
	state.Status = StatusExpanded
	return nil
}

func (p *Pipeline) synthesize(ctx context.Context, client llm.Client, dialect, tableInfo string, state *State) error {
	promptText, err := prompt.Render(prompt.SynthesizeSQLV1, map[string]any{
		"Dialect":          dialect,
		"RowCeiling":       p.cfg.RowCeiling,
		"Rules":            p.policy.SynthesisRules(),
		"Examples":         p.policy.SynthesisExamples(),
		"TableInfo":        tableInfo,
		"ExpandedQuestion": state.ExpandedQuestion,
	})
	if err != nil {
		return p.failStage(state, StageSynthesize, KindGeneration, err)
	}

	started := time.Now()
	out, err := client.GenerateQuery(ctx, promptText)
	if isStructuredOutputError(err) {
		// One retry: malformed output is usually transient model noise,
		// while transport failures are not worth a blind second call.
		p.logger.Warn("query synthesis returned malformed output, retrying",
			slog.String("model", client.Model()),
			slog.String("error", err.Error()),
		)
		out, err = client.GenerateQuery(ctx, promptText)
	}
	observability.ObserveModelCall(string(StageSynthesize), client.Model(), time.Since(started))
	if err != nil {
		kind := KindGeneration
		if isStructuredOutputError(err) {
			kind = KindStructuredOutput
		}
		return p.failStage(state, StageSynthesize, kind, err)
	}

	state.Query = out.Query
	state.Status = StatusQueried
	return nil
}

func (p *Pipeline) execute(ctx context.Context, state *State) error {
	normalized, err := store.Guard(state.Query)
	if err != nil {
		observability.ObserveGuardRejection()
		return p.failStage(state, StageExecute, KindGuardViolation, err)
	}
	state.Query = normalized

	result, err := p.executor.Execute(ctx, store.Request{SQL: normalized, MaxRows: p.cfg.MaxResultRows})
	if err != nil {
		// Execution errors flow into the result text instead of aborting:
		// the answer stage explains what went wrong to the user, mirroring
		// how a failed query reads in an interactive session.
		observability.ObserveStageFailure(string(StageExecute), string(KindExecution))
		p.logger.Warn("query execution failed",
			slog.String("query", normalized),
			slog.String("error", err.Error()),
		)
		state.Result = "Error: " + err.Error()
	} else {
		observability.ObserveQueryExecution(result.Duration)
		state.Result = result.Serialize()
	}
	state.Status = StatusExecuted
	return nil
}

func (p *Pipeline) answer(ctx context.Context, client llm.Client, state *State) error {
	promptText, err := prompt.Render(prompt.AnswerV1, map[string]any{
		"Question": state.Question,
		"Query":    state.Query,
		"Result":   state.Result,
	})
	if err != nil {
		return p.failStage(state, StageAnswer, KindGeneration, err)
	}

	started := time.Now()
	answer, err := client.Generate(ctx, promptText)
	observability.ObserveModelCall(string(StageAnswer), client.Model(), time.Since(started))
	if err != nil {
		return p.failStage(state, StageAnswer, KindGeneration, err)
	}

	state.Answer = answer
	state.Status = StatusAnswered
	return nil
}

func (p *Pipeline) failStage(state *State, stage Stage, kind FailureKind, err error) error {
	state.Status = StatusFailed
	observability.ObserveStageFailure(string(stage), string(kind))
	return &Error{Stage: stage, Kind: kind, Err: err}
}

func isStructuredOutputError(err error) bool {
	return errors.Is(err, llm.ErrMalformedQueryOutput) || errors.Is(err, llm.ErrEmptyResponse)
}
