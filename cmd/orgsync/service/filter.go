package service

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/lyzr/orgsync/common/models"
)

// FilterEvaluator evaluates CEL expressions over ledger entries, e.g.
// `status == "FAILED" && extension == "aws_organized"`.
// Variables: id, root_id, extension, migration_type, status, message, params.
type FilterEvaluator struct {
	env   *cel.Env
	cache map[string]cel.Program
	mu    sync.RWMutex
}

// FilterError reports an expression that does not compile or does not yield a boolean
type FilterError struct {
	Expr string
	Err  error
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid filter %q: %v", e.Expr, e.Err)
}

func (e *FilterError) Unwrap() error {
	return e.Err
}

// NewFilterEvaluator creates an evaluator with a compiled-program cache
func NewFilterEvaluator() (*FilterEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("id", cel.StringType),
		cel.Variable("root_id", cel.StringType),
		cel.Variable("extension", cel.StringType),
		cel.Variable("migration_type", cel.StringType),
		cel.Variable("status", cel.StringType),
		cel.Variable("message", cel.StringType),
		cel.Variable("params", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}
	return &FilterEvaluator{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Compile checks an expression and caches its program
func (f *FilterEvaluator) Compile(expr string) error {
	_, err := f.program(expr)
	return err
}

// Match reports whether the migration satisfies expr. An empty expression matches everything.
func (f *FilterEvaluator) Match(expr string, m *models.Migration) (bool, error) {
	if strings.TrimSpace(expr) == "" {
		return true, nil
	}
	prg, err := f.program(expr)
	if err != nil {
		return false, err
	}

	params, err := changeParams(m.Change)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]interface{}{
		"id":             m.ID,
		"root_id":        m.RootID,
		"extension":      string(m.Extension),
		"migration_type": string(m.Type),
		"status":         string(m.Status),
		"message":        m.Message,
		"params":         params,
	})
	if err != nil {
		return false, fmt.Errorf("CEL evaluation error: %w", err)
	}

	result, ok := out.Value().(bool)
	if !ok {
		return false, &FilterError{Expr: expr, Err: fmt.Errorf("expression did not return boolean, got %T", out.Value())}
	}
	return result, nil
}

// CacheSize returns the number of cached expressions
func (f *FilterEvaluator) CacheSize() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.cache)
}

func (f *FilterEvaluator) program(expr string) (cel.Program, error) {
	f.mu.RLock()
	prg, exists := f.cache[expr]
	f.mu.RUnlock()
	if exists {
		return prg, nil
	}

	ast, issues := f.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, &FilterError{Expr: expr, Err: issues.Err()}
	}
	prg, err := f.env.Program(ast)
	if err != nil {
		return nil, &FilterError{Expr: expr, Err: err}
	}

	f.mu.Lock()
	f.cache[expr] = prg
	f.mu.Unlock()
	return prg, nil
}

// changeParams exposes the migration parameters under their ledger keys
func changeParams(change models.Change) (map[string]interface{}, error) {
	params := map[string]interface{}{}
	if change == nil {
		return params, nil
	}
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("encode params: %w", err)
	}
	if err := json.Unmarshal(data, &params); err != nil {
		return nil, fmt.Errorf("decode params: %w", err)
	}
	return params, nil
}
