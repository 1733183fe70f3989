package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const originQuery = "data.gemwallet.session_origin.exempt"

// Default Rego policy: only the first-party dashboard origin is exempt from
// session lifecycle enforcement.
const defaultRegoPolicy = `package gemwallet.session_origin

default exempt = false

exempt if {
	input.origin == "dashboard"
}
`

// OPAEvaluator evaluates origin-exemption policy using OPA Rego.
type OPAEvaluator struct {
	prepared rego.PreparedEvalQuery
}

// NewOPAEvaluator returns an OPA-based origin policy evaluator. policySource
// overrides the default Rego module when non-empty; it must define
// gemwallet.session_origin.exempt.
func NewOPAEvaluator(policySource string) (*OPAEvaluator, error) {
	if policySource == "" {
		policySource = defaultRegoPolicy
	}
	modules := map[string]string{"policy_0.rego": policySource}
	compiler, err := ast.CompileModules(modules)
	if err != nil {
		return nil, fmt.Errorf("compile origin policy: %w", err)
	}
	prepared, err := rego.New(
		rego.Query(originQuery),
		rego.Compiler(compiler),
	).PrepareForEval(context.Background())
	if err != nil {
		return nil, fmt.Errorf("prepare origin policy: %w", err)
	}
	return &OPAEvaluator{prepared: prepared}, nil
}

// Exempt evaluates the origin policy for the given origin.
// On evaluation failure it returns false: unknown origins are enforced.
func (e *OPAEvaluator) Exempt(ctx context.Context, origin string) (bool, error) {
	input := map[string]interface{}{
		"origin": origin,
	}
	rs, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		log.Printf("policy: origin evaluation failed: %v", err)
		return false, fmt.Errorf("eval origin policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, fmt.Errorf("origin policy query returned no result")
	}
	exempt, ok := rs[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("origin policy returned non-boolean result")
	}
	return exempt, nil
}

// HealthCheck verifies that the in-process OPA Rego engine can evaluate the
// prepared policy. Returns nil on success.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	if _, err := e.Exempt(ctx, "dashboard"); err != nil {
		return err
	}
	return nil
}
