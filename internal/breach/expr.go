package breach

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/opensource-finance/harrier/internal/domain"
)

// ExprFilter is a compiled CEL predicate over transformed breach events.
// Available variables: provider, market, rule_set, rule_type, action
// (strings; rule_type is the short code, action the display label) and
// hour (UTC hour of day). Compiled once per query, evaluated per event.
type ExprFilter struct {
	source  string
	program cel.Program
}

// exprEnv builds the CEL environment for breach expressions.
func exprEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("provider", cel.StringType),
		cel.Variable("market", cel.StringType),
		cel.Variable("rule_set", cel.StringType),
		cel.Variable("rule_type", cel.StringType),
		cel.Variable("action", cel.StringType),
		cel.Variable("hour", cel.IntType),
	)
}

// CompileExpr compiles a filter expression. Compile failures are
// validation errors for the caller.
func CompileExpr(source string) (*ExprFilter, error) {
	if source == "" {
		return nil, fmt.Errorf("%w: filter expression is empty", domain.ErrInvalidInput)
	}

	env, err := exprEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to create expression environment: %w", err)
	}

	ast, iss := env.Compile(source)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("%w: bad filter expression: %v", domain.ErrInvalidInput, iss.Err())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("%w: bad filter expression: %v", domain.ErrInvalidInput, err)
	}

	return &ExprFilter{source: source, program: program}, nil
}

// Source returns the original expression text.
func (f *ExprFilter) Source() string { return f.source }

// Match evaluates the predicate against one event. Non-boolean results
// and evaluation failures return an error.
func (f *ExprFilter) Match(ev domain.TransformedBreachEvent) (bool, error) {
	out, _, err := f.program.Eval(map[string]any{
		"provider":  ev.Provider,
		"market":    string(ev.Market),
		"rule_set":  ev.RuleSetName,
		"rule_type": ev.RuleType.ShortCode(),
		"action":    ev.Action,
		"hour":      int64(eventHour(ev)),
	})
	if err != nil {
		return false, fmt.Errorf("expression evaluation failed: %w", err)
	}

	matched, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%w: filter expression must return a boolean", domain.ErrInvalidInput)
	}
	return matched, nil
}

// FilterByExpr keeps events matching the compiled predicate. Events
// whose evaluation errors are excluded rather than failing the query.
// A nil filter is a no-op.
func FilterByExpr(events []domain.TransformedBreachEvent, f *ExprFilter) []domain.TransformedBreachEvent {
	if f == nil {
		return events
	}
	out := make([]domain.TransformedBreachEvent, 0, len(events))
	for _, ev := range events {
		matched, err := f.Match(ev)
		if err != nil || !matched {
			continue
		}
		out = append(out, ev)
	}
	return out
}
