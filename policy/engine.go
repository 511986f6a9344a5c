package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine is the OPA policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.dial_policy.result"),
		rego.Module("dial_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// DialInput is what the dial policy sees.
type DialInput struct {
	To        string   `json:"to"`
	From      string   `json:"from"`
	Region    string   `json:"region,omitempty"`
	Blocklist []string `json:"blocklist"`
}

// Evaluate checks whether a number may be dialed.
// Returns: decision (allow, block), reason (optional), error
func (e *Engine) Evaluate(ctx context.Context, input DialInput) (string, string, error) {
	if input.Blocklist == nil {
		input.Blocklist = []string{}
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, "default", nil
	}

	switch val := results[0].Expressions[0].Value.(type) {
	case string:
		return val, "", nil
	case map[string]interface{}:
		decision, _ := val["decision"].(string)
		reason, _ := val["reason"].(string)
		if decision == "" {
			decision = DecisionAllow
		}
		return decision, reason, nil
	}

	return DecisionAllow, "unexpected return type", nil
}

// DefaultPolicy only allows E.164 numbers that are not on the blocklist.
const DefaultPolicy = `
package dial_policy

default decision = "allow"
default reason = ""

valid_number {
	regex.match("^[+][1-9][0-9]{7,14}$", input.to)
}

blocked {
	input.blocklist[_] == input.to
}

decision = "block" {
	not valid_number
}

decision = "block" {
	blocked
}

reason = "invalid_number" {
	not valid_number
}

reason = "blocklisted" {
	valid_number
	blocked
}

result = {"decision": decision, "reason": reason}
`
