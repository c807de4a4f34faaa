package evaluator

import (
	"context"
	"errors"

	"github.com/jnfrati/replq/internal/models"
)

// Evaluator runs one chunk of source text and returns whatever the runtime
// printed for it. Implementations must tolerate sequential, one-at-a-time
// invocation; nothing else is guaranteed by callers.
type Evaluator interface {
	Evaluate(ctx context.Context, code string) ([]byte, error)
}

// Func adapts a plain function into an Evaluator.
type Func func(ctx context.Context, code string) ([]byte, error)

func (f Func) Evaluate(ctx context.Context, code string) ([]byte, error) {
	return f(ctx, code)
}

type evaluatorRuntime uint

const (
	EvaluatorRuntime_NodeJS evaluatorRuntime = iota
)

func NewEvaluator(runtime evaluatorRuntime, manifest *models.SessionManifestV1) (Evaluator, error) {
	switch runtime {
	case EvaluatorRuntime_NodeJS:
		return newNodeEvaluator(manifest)
	default:
		return nil, errors.New("evaluator runtime not supported")
	}
}
