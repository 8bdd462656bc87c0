package enforce

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openclaw/openclaw/internal/audit"
	"github.com/openclaw/openclaw/internal/metrics"
	"github.com/openclaw/openclaw/internal/tools"
)

// ToolGuard bridges the enforcement hook into the tool registry. It decodes
// the invocation arguments, runs the hook, and re-encodes any parameter
// rewrites the hook produced. Decisions are appended to the audit trail and
// the metrics recorder best-effort; neither failure changes the verdict.
func ToolGuard(hook *Hook, auditor *audit.Writer, recorder *metrics.DecisionMetrics) tools.Guard {
	return func(ctx context.Context, name, argsJSON string) (tools.GuardResult, error) {
		meta := tools.InvocationFromContext(ctx)

		callID := meta.ToolCallID
		if callID == "" {
			callID = uuid.NewString()
		}

		params, parsed := decodeParams(argsJSON)
		started := time.Now()
		outcome := hook.Enforce(ctx, name, params, callID, SessionContext{
			ActorID:    meta.AgentID,
			SessionKey: meta.SessionKey,
		})
		elapsed := time.Since(started)

		if outcome.Blocked {
			eventType := audit.EventAuthzDeny
			metricOutcome := metrics.OutcomeDenied
			if outcome.BlockedBy != "" && outcome.BlockedBy != "policy" {
				eventType = audit.EventInterceptorBlock
				metricOutcome = metrics.OutcomeInterceptorBlock
			}
			recordDecision(recorder, elapsed, metricOutcome)
			appendEvent(auditor, audit.Event{
				Time:   time.Now().UTC(),
				Type:   eventType,
				CallID: callID,
				Tool:   name,
				Result: outcome.Reason,
			})
			return tools.GuardResult{Action: tools.GuardDeny, Message: outcome.Reason}, nil
		}

		recordDecision(recorder, elapsed, metrics.OutcomeAllowed)
		appendEvent(auditor, audit.Event{
			Time:   time.Now().UTC(),
			Type:   audit.EventAuthzAllow,
			CallID: callID,
			Tool:   name,
		})

		// Only rewrite arguments that round-trip through JSON; unparsable
		// originals pass through untouched.
		rewritten := ""
		if parsed {
			if encoded, err := json.Marshal(outcome.Parameters); err == nil {
				rewritten = string(encoded)
			}
		}
		return tools.GuardResult{Action: tools.GuardAllow, ArgsJSON: rewritten}, nil
	}
}

// decodeParams parses invocation arguments defensively: malformed or empty
// JSON yields an empty mapping rather than an error, so the identifier
// builder still produces a schema-complete request.
func decodeParams(argsJSON string) (map[string]any, bool) {
	params := map[string]any{}
	trimmed := strings.TrimSpace(argsJSON)
	if trimmed == "" {
		return params, true
	}
	if err := json.Unmarshal([]byte(trimmed), &params); err != nil {
		slog.Debug("failed to parse tool arguments for enforcement", "error", err)
		return map[string]any{}, false
	}
	return params, true
}

func recordDecision(recorder *metrics.DecisionMetrics, elapsed time.Duration, outcome string) {
	if recorder == nil {
		return
	}
	if _, err := recorder.RecordDecision(elapsed, outcome); err != nil {
		slog.Warn("failed to record decision metrics", "outcome", outcome, "error", err)
	}
}

func appendEvent(auditor *audit.Writer, event audit.Event) {
	if auditor == nil {
		return
	}
	if err := auditor.Append(event); err != nil {
		slog.Warn("failed to append audit event", "type", event.Type, "tool", event.Tool, "error", err)
	}
}
