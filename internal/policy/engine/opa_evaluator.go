package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/open-policy-agent/opa/v1/rego"
)

const decisionQuery = "data.collab.session.decision"

// DefaultLoginPolicy blocks disabled and suspended roles and caps service
// accounts at five-minute access tokens.
const DefaultLoginPolicy = `package collab.session

default allow := true
default access_ttl_seconds := 0
default reason := ""

blocked_roles := {"disabled", "suspended"}

allow := false if {
	blocked_roles[input.principal.role]
}

reason := "role not permitted to sign in" if {
	blocked_roles[input.principal.role]
}

access_ttl_seconds := 300 if {
	input.principal.role == "service"
}

decision := {
	"allow": allow,
	"access_ttl_seconds": access_ttl_seconds,
	"reason": reason,
}
`

// OPAEvaluator evaluates the login policy with an in-process OPA engine. The
// query is prepared once; EvaluateLogin is safe for concurrent use.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles module, which must define data.collab.session.decision.
// An empty module uses DefaultLoginPolicy.
func NewOPAEvaluator(ctx context.Context, module string) (*OPAEvaluator, error) {
	if module == "" {
		module = DefaultLoginPolicy
	}
	q, err := rego.New(
		rego.Query(decisionQuery),
		rego.Module("login.rego", module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile login policy: %w", err)
	}
	return &OPAEvaluator{query: q}, nil
}

// NewOPAEvaluatorFromFile loads the policy from path, or the default when path is empty.
func NewOPAEvaluatorFromFile(ctx context.Context, path string) (*OPAEvaluator, error) {
	if path == "" {
		return NewOPAEvaluator(ctx, "")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read login policy: %w", err)
	}
	return NewOPAEvaluator(ctx, string(b))
}

// HealthCheck evaluates the prepared policy against a minimal input.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	_, err := e.EvaluateLogin(ctx, LoginInput{SubjectID: "healthcheck", Role: "member", Now: time.Now()})
	return err
}

// EvaluateLogin returns an error when the policy does not produce a decision;
// callers must not treat that as an allow.
func (e *OPAEvaluator) EvaluateLogin(ctx context.Context, in LoginInput) (Decision, error) {
	input := map[string]interface{}{
		"principal": map[string]interface{}{
			"subject_id": in.SubjectID,
			"role":       in.Role,
		},
		"device": in.Device,
		"time":   in.Now.UTC().Format(time.RFC3339),
	}
	rs, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return Decision{}, fmt.Errorf("eval login policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return Decision{}, fmt.Errorf("login policy returned no decision")
	}
	obj, ok := rs[0].Expressions[0].Value.(map[string]interface{})
	if !ok {
		return Decision{}, fmt.Errorf("login policy decision is %T, want object", rs[0].Expressions[0].Value)
	}
	allow, ok := obj["allow"].(bool)
	if !ok {
		return Decision{}, fmt.Errorf("login policy decision has no boolean allow")
	}
	out := Decision{Allow: allow}
	if secs := toInt64(obj["access_ttl_seconds"]); secs > 0 {
		out.AccessTTL = time.Duration(secs) * time.Second
	}
	if r, ok := obj["reason"].(string); ok {
		out.Reason = r
	}
	return out, nil
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0
		}
		return i
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return 0
	}
}
