package engine

import "context"

// Evaluator decides origin policy using OPA or other engines.
type Evaluator interface {
	// Exempt reports whether sessions presented from the given origin bypass
	// session lifecycle enforcement. The decision is made here and nowhere else.
	Exempt(ctx context.Context, origin string) (bool, error)
}
