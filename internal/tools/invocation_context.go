package tools

import (
	"context"
	"strings"
)

type invocationContextKey struct{}

// InvocationContext carries caller identity for tool execution. The
// enforcement guard reads it to derive the authorization principal and the
// call correlation id.
type InvocationContext struct {
	AgentID    string
	SessionKey string
	ToolCallID string
}

// WithInvocationContext stores invocation metadata in context for tools.
func WithInvocationContext(ctx context.Context, meta InvocationContext) context.Context {
	return context.WithValue(ctx, invocationContextKey{}, meta)
}

// InvocationFromContext reads invocation metadata from context.
func InvocationFromContext(ctx context.Context) InvocationContext {
	v := ctx.Value(invocationContextKey{})
	meta, ok := v.(InvocationContext)
	if !ok {
		return InvocationContext{}
	}
	meta.AgentID = strings.TrimSpace(meta.AgentID)
	meta.SessionKey = strings.TrimSpace(meta.SessionKey)
	meta.ToolCallID = strings.TrimSpace(meta.ToolCallID)
	return meta
}
