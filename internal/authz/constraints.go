package authz

import (
	"context"
	"encoding/json"
	"fmt"
)

type constraintRequest struct {
	Principal string `json:"principal"`
	Action    string `json:"action"`
	Resource  string `json:"resource"`
}

type constraintResponse struct {
	Decision    string   `json:"decision"`
	Residuals   []string `json:"residuals"`
	Explanation string   `json:"explanation"`
}

// QueryConstraints asks the PDP which residual constraints apply to an
// action, without supplying concrete context values. Unlike Decide it has
// nothing to enforce, so every failure surfaces as an error instead of
// resolving through the fail-open/fail-closed policy.
func (c *Client) QueryConstraints(ctx context.Context, action string) (ConstraintResult, error) {
	if c.cfg.ConstraintEndpoint == "" {
		return ConstraintResult{}, fmt.Errorf("constraint endpoint not configured")
	}

	ids := buildConstraintIdentifiers(c.cfg.namespace(), c.cfg.Principal, action)

	body, err := c.post(ctx, c.cfg.ConstraintEndpoint, constraintRequest{
		Principal: ids.Principal,
		Action:    ids.Action,
		Resource:  ids.Resource,
	})
	if err != nil {
		return ConstraintResult{}, fmt.Errorf("constraint query: %w", err)
	}

	var parsed constraintResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ConstraintResult{}, fmt.Errorf("malformed constraint response: %w", err)
	}

	// Residual expressions are opaque policy text; they pass through
	// verbatim for rendering.
	return ConstraintResult{
		Decision:    parsed.Decision,
		Residuals:   parsed.Residuals,
		Explanation: parsed.Explanation,
	}, nil
}
