// Package orchestrator validates incoming requests, resolves the model
// client, and hands the question to the pipeline.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/crickql/crickql/internal/llm"
	"github.com/crickql/crickql/internal/pipeline"
)

// Resolution is the externally visible outcome of a question: the final
// answer plus the intermediate artifacts for transparency and debugging.
type Resolution struct {
	Answer           string
	ExpandedQuestion string
	Query            string
	Result           string
	Model            string
}

// Runner is the pipeline capability the orchestrator drives. It is an
// interface so request handling can be tested without model calls.
type Runner interface {
	Run(ctx context.Context, client llm.Client, question string) (pipeline.State, error)
}

type Orchestrator struct {
	pipeline Runner
	registry *llm.Registry
	logger   *slog.Logger
	// defaultModel is used when the request does not name a model.
	defaultModel string
}

func New(p Runner, registry *llm.Registry, logger *slog.Logger, defaultModel string) (*Orchestrator, error) {
	if _, ok := registry.Client(defaultModel); !ok {
		return nil, fmt.Errorf("default model %q has no route", defaultModel)
	}
	return &Orchestrator{
		pipeline:     p,
		registry:     registry,
		logger:       logger,
		defaultModel: defaultModel,
	}, nil
}

func (o *Orchestrator) Models() []string {
	return o.registry.Models()
}

func (o *Orchestrator) DefaultModel() string {
	return o.defaultModel
}

// Resolve answers a question with the named model. An empty model selects
// the default. Validation failures surface as *pipeline.Error with
// KindValidation before any model or store call happens.
func (o *Orchestrator) Resolve(ctx context.Context, question, model string) (Resolution, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Resolution{}, &pipeline.Error{
			Stage: pipeline.StageValidate,
			Kind:  pipeline.KindValidation,
			Err:   fmt.Errorf("question must not be empty"),
		}
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = o.defaultModel
	}
	client, ok := o.registry.Client(model)
	if !ok {
		return Resolution{}, &pipeline.Error{
			Stage: pipeline.StageValidate,
			Kind:  pipeline.KindValidation,
			Err:   fmt.Errorf("model %q is not supported", model),
		}
	}

	o.logger.Info("resolving question",
		slog.String("model", model),
		slog.Int("question_length", len(question)),
	)

	state, err := o.pipeline.Run(ctx, client, question)
	if err != nil {
		return Resolution{}, err
	}

	return Resolution{
		Answer:           state.Answer,
		ExpandedQuestion: state.ExpandedQuestion,
		Query:            state.Query,
		Result:           state.Result,
		Model:            model,
	}, nil
}
