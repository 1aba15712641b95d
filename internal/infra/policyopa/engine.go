// Package policyopa evaluates certificate issuance against a rego policy.
// Operators supply rules over the snapshot about to be signed: devices,
// standards and derived counts. The expected document is
// data.wipetrace.issuance.result = {"allow": bool, "deny": [{code, message}]}.
package policyopa

import (
	"context"
	"encoding/json"
	"errors"

	"wipetrace/internal/usecase"

	"github.com/open-policy-agent/opa/rego"
)

const defaultQuery = "data.wipetrace.issuance.result"

type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngineFromPath loads and compiles the policy at startup so evaluation is
// a pure in-memory call on the request path.
func NewEngineFromPath(ctx context.Context, policyPath string) (*Engine, error) {
	r := rego.New(
		rego.Query(defaultQuery),
		rego.StrictBuiltinErrors(true),
		rego.Load([]string{policyPath}, nil),
	)
	prepared, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, err
	}
	return &Engine{query: prepared}, nil
}

func (e *Engine) Evaluate(ctx context.Context, input usecase.PolicyInput) (usecase.PolicyDecision, error) {
	if e == nil {
		return usecase.PolicyDecision{}, errors.New("policy engine is nil")
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return usecase.PolicyDecision{}, err
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return usecase.PolicyDecision{}, errors.New("empty policy result")
	}
	return decodeDecision(results[0].Expressions[0].Value)
}

func decodeDecision(value any) (usecase.PolicyDecision, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return usecase.PolicyDecision{}, err
	}
	var decision usecase.PolicyDecision
	if err := json.Unmarshal(raw, &decision); err != nil {
		return usecase.PolicyDecision{}, err
	}
	return decision, nil
}

var _ usecase.IssuancePolicy = (*Engine)(nil)
