// Package cel evaluates a policy's optional supplemental CEL condition
// against a fixed, narrow environment: action, domain, secretId, now.
package cel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/secretgate/secretgate/internal/domain/policy"
)

// maxExpressionLength bounds the size of a policy's condition string.
const maxExpressionLength = 1024

// maxCostBudget bounds CEL runtime cost to prevent cost-exhaustion DoS.
const maxCostBudget = 100_000

// maxNestingDepth bounds parenthesis/bracket nesting depth.
const maxNestingDepth = 50

// evalTimeout bounds a single evaluation's wall-clock time.
const evalTimeout = 5 * time.Second

// interruptCheckFreq is how often (in comprehension iterations) context
// cancellation is checked.
const interruptCheckFreq = 100

// newEnvironment builds the one fixed CEL environment every policy
// condition is checked against. Narrower than a general-purpose rule
// engine's environment on purpose: a policy condition may only narrow
// an already-approved decision, never introduce new variables to
// reason about.
func newEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("action", cel.StringType),
		cel.Variable("domain", cel.StringType),
		cel.Variable("secretId", cel.StringType),
		cel.Variable("now", cel.TimestampType),
	)
}

// Evaluator compiles and evaluates CEL policy conditions, caching
// compiled programs by expression text since the same policy is
// evaluated on every matching tool call.
type Evaluator struct {
	env *cel.Env

	mu       sync.Mutex
	compiled map[string]cel.Program
}

// NewEvaluator creates an Evaluator with the fixed policy-condition
// environment.
func NewEvaluator() (*Evaluator, error) {
	env, err := newEnvironment()
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}
	return &Evaluator{env: env, compiled: make(map[string]cel.Program)}, nil
}

func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks that expr is syntactically valid, within
// the length and nesting limits, and compiles under the fixed
// environment. Used at config load time so a malformed condition is
// rejected before any tool call can reach it.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	_, err := e.compile(expr)
	if err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

func (e *Evaluator) compile(expr string) (cel.Program, error) {
	e.mu.Lock()
	if prg, ok := e.compiled[expr]; ok {
		e.mu.Unlock()
		return prg, nil
	}
	e.mu.Unlock()

	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return nil, errors.New("condition must evaluate to a boolean")
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}

	e.mu.Lock()
	e.compiled[expr] = prg
	e.mu.Unlock()
	return prg, nil
}

// Evaluate implements policy.ConditionEvaluator: compiles (or reuses a
// cached compilation of) condition and runs it against the resolved
// secretId/action/domain triple and the current time.
func (e *Evaluator) Evaluate(ctx context.Context, condition, secretID, action, domain string) (bool, error) {
	if len(condition) > maxExpressionLength {
		return false, fmt.Errorf("expression too long: %d characters (max %d)", len(condition), maxExpressionLength)
	}
	if err := validateNesting(condition); err != nil {
		return false, err
	}

	prg, err := e.compile(condition)
	if err != nil {
		return false, err
	}

	vars := map[string]interface{}{
		"action":   action,
		"domain":   domain,
		"secretId": secretID,
		"now":      time.Now().UTC(),
	}

	evalCtx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	result, _, evalErr := prg.ContextEval(evalCtx, vars)
	if evalErr != nil {
		return false, fmt.Errorf("evaluation failed: %w", evalErr)
	}

	boolResult, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return boolResult, nil
}

// Compile-time interface check.
var _ policy.ConditionEvaluator = (*Evaluator)(nil)
