package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// Tool represents an executable tool
// Eino tools implement ToolInfo + InvokableRun

type Tool interface {
	Info(ctx context.Context) (*schema.ToolInfo, error)
	InvokableRun(ctx context.Context, args string, opts ...tool.Option) (string, error)
}

// GuardAction is a guard's verdict on a tool invocation.
type GuardAction string

const (
	GuardAllow GuardAction = "allow"
	GuardDeny  GuardAction = "deny"
)

// GuardResult carries the guard verdict. When ArgsJSON is non-empty on an
// allow, it replaces the invocation arguments before the tool runs.
type GuardResult struct {
	Action   GuardAction
	Message  string
	ArgsJSON string
}

// Guard decides whether a named tool may run with the given argument JSON.
type Guard func(ctx context.Context, name, argsJSON string) (GuardResult, error)

// Registry manages tools by name and consults an optional guard before
// executing any of them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	guard Guard
}

// NewRegistry creates a new registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to registry
func (r *Registry) Register(t Tool) error {
	info, err := t.Info(context.Background())
	if err != nil {
		return err
	}
	if info == nil || info.Name == "" {
		return fmt.Errorf("tool info missing name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[info.Name]; exists {
		return fmt.Errorf("tool already registered: %s", info.Name)
	}
	r.tools[info.Name] = t
	return nil
}

// SetGuard installs the guard consulted before every Execute call.
func (r *Registry) SetGuard(guard Guard) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.guard = guard
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t, ok
}

// List returns all tools
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		result = append(result, t)
	}
	return result
}

// Execute runs a registered tool, consulting the guard first. A denied
// invocation returns an error carrying the guard's reason; the tool itself
// never runs. An allowed invocation runs with the guard's rewritten
// arguments when it supplied any.
func (r *Registry) Execute(ctx context.Context, name, argsJSON string) (string, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	r.mu.RLock()
	guard := r.guard
	r.mu.RUnlock()

	if guard != nil {
		result, err := guard(ctx, name, argsJSON)
		if err != nil {
			return "", fmt.Errorf("tool guard: %w", err)
		}
		switch result.Action {
		case GuardAllow:
			if result.ArgsJSON != "" {
				argsJSON = result.ArgsJSON
			}
		case GuardDeny:
			message := result.Message
			if message == "" {
				message = "blocked by policy"
			}
			return "", fmt.Errorf("tool %s blocked: %s", name, message)
		default:
			return "", fmt.Errorf("unknown guard action: %s", result.Action)
		}
	}

	return t.InvokableRun(ctx, argsJSON)
}
