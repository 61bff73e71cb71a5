package pipeline

import "fmt"

type Stage string

const (
	StageValidate   Stage = "validate"
	StageSchema     Stage = "schema"
	StageExpand     Stage = "expand"
	StageSynthesize Stage = "synthesize"
	StageExecute    Stage = "execute"
	StageAnswer     Stage = "answer"
)

type FailureKind string

const (
	KindValidation       FailureKind = "validation"
	KindGeneration       FailureKind = "generation"
	KindStructuredOutput FailureKind = "structured_output"
	KindExecution        FailureKind = "execution"
	KindGuardViolation   FailureKind = "guard_violation"
)

// Error is the typed failure a pipeline run surfaces: which stage broke,
// what kind of failure it was, and the underlying cause.
type Error struct {
	Stage Stage
	Kind  FailureKind
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("pipeline stage %s failed (%s): %v", e.Stage, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
