package enforce

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openclaw/openclaw/internal/authz"
)

// Outcome is the result of enforcing one tool invocation: either blocked
// with a reason, or cleared to proceed with possibly rewritten parameters.
type Outcome struct {
	Blocked    bool
	Reason     string
	Parameters map[string]any
	// BlockedBy names what produced a blocked outcome: "policy" for a PDP
	// deny, an interceptor name for an interceptor block.
	BlockedBy string
}

// Block builds a blocked outcome attributed to the policy decision.
func Block(reason string) Outcome {
	if reason == "" {
		reason = "blocked by policy"
	}
	return Outcome{Blocked: true, Reason: reason, BlockedBy: "policy"}
}

// Proceed builds a proceed outcome carrying the final parameters.
func Proceed(params map[string]any) Outcome {
	return Outcome{Parameters: params}
}

// SessionContext identifies the caller on whose behalf a tool runs.
type SessionContext struct {
	ActorID    string
	SessionKey string
}

// DecisionClient is the point-decision surface the hook consumes.
type DecisionClient interface {
	Decide(ctx context.Context, ids authz.Identifiers) authz.Decision
}

// Hook is the single enforcement entry point invoked before every tool
// execution. It sequences the PDP decision, then the interceptor chain, and
// merges parameter patches the interceptors request. It holds no mutable
// state; concurrent invocations are independent.
type Hook struct {
	cfg          authz.Config
	enabled      bool
	client       DecisionClient
	interceptors []Interceptor
}

// NewHook builds an enforcement hook. The PDP check runs only when enabled
// is true, an endpoint is configured, and a client is supplied; the
// interceptor chain always runs.
func NewHook(cfg authz.Config, enabled bool, client DecisionClient, interceptors ...Interceptor) *Hook {
	return &Hook{
		cfg:          cfg,
		enabled:      enabled,
		client:       client,
		interceptors: interceptors,
	}
}

// Enforce authorizes one tool invocation. A panic anywhere below resolves to
// a blocked outcome: the absence of a decision is never permission.
func (h *Hook) Enforce(ctx context.Context, action string, params map[string]any, callID string, session SessionContext) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("enforcement panicked, blocking", "tool", action, "panic", r)
			out = Block(fmt.Sprintf("authorization check failed unexpectedly: %v", r))
		}
	}()

	current := cloneParams(params)

	if h.decisionConfigured() {
		ids := authz.BuildIdentifiers(h.cfg.Namespace, authz.ActionRequest{
			ActorID:    session.ActorID,
			SessionKey: session.SessionKey,
			Action:     action,
			Parameters: current,
			CallID:     callID,
		})
		decision := h.client.Decide(ctx, ids)
		if !decision.Allowed {
			slog.Info("tool invocation denied", "tool", action, "call_id", callID, "reason", decision.Reason)
			return Block(decision.Reason)
		}
		slog.Debug("tool invocation allowed", "tool", action, "call_id", callID, "policies", decision.MatchedPolicyIDs)
	}

	for _, interceptor := range h.interceptors {
		result, err := runInterceptor(ctx, interceptor, action, cloneParams(current))
		if err != nil {
			// Auxiliary interceptors may deny or adjust parameters but
			// must never crash the pipeline; a failing one is a no-op.
			slog.Warn("interceptor failed, skipping", "interceptor", interceptor.Name(), "tool", action, "error", err)
			continue
		}
		if result.Block {
			slog.Info("tool invocation blocked by interceptor", "interceptor", interceptor.Name(), "tool", action, "reason", result.Reason)
			blocked := Block(result.Reason)
			blocked.BlockedBy = interceptor.Name()
			return blocked
		}
		for key, value := range result.Patch {
			current[key] = value
		}
	}

	return Proceed(current)
}

func (h *Hook) decisionConfigured() bool {
	return h.enabled && h.client != nil && h.cfg.Endpoint != ""
}

func runInterceptor(ctx context.Context, interceptor Interceptor, action string, params map[string]any) (result InterceptResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interceptor panicked: %v", r)
		}
	}()
	return interceptor.Intercept(ctx, action, params)
}

func cloneParams(params map[string]any) map[string]any {
	clone := make(map[string]any, len(params))
	for key, value := range params {
		clone[key] = value
	}
	return clone
}
