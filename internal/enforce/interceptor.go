package enforce

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// Interceptor inspects a tool invocation after the authorization decision and
// before the tool runs. An interceptor may block with a reason or return a
// partial parameter patch; it must not mutate the parameters it receives.
type Interceptor interface {
	Name() string
	Intercept(ctx context.Context, action string, params map[string]any) (InterceptResult, error)
}

// InterceptResult is one interceptor's verdict. Block terminates the chain;
// otherwise Patch is merged shallowly over the current parameters.
type InterceptResult struct {
	Block  bool
	Reason string
	Patch  map[string]any
}

// destructivePatterns match shell commands that destroy data or the host.
var destructivePatterns = []*regexp.Regexp{
	// rm with force/recursive targeting root or home
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	regexp.MustCompile(`(?i)\brm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+~`),
	regexp.MustCompile(`(?i)\bsudo\s+rm\s+(-[a-z]*r[a-z]*\s+-[a-z]*f[a-z]*|-[a-z]*f[a-z]*\s+-[a-z]*r[a-z]*|-[a-z]*rf[a-z]*|-[a-z]*fr[a-z]*)\s+/\s*$`),
	regexp.MustCompile(`(?i)--no-preserve-root`),
	regexp.MustCompile(`(?i)\bmkfs\b`),
	regexp.MustCompile(`(?i)\bdd\s+if=`),
	// fork bomb
	regexp.MustCompile(`:\(\)\s*\{.*\|.*&\s*\}\s*;`),
	regexp.MustCompile(`(?i)\bformat\s+[a-z]:`),
	regexp.MustCompile(`(?i)\bdel\s+/[a-z]\s+/[a-z]\s+/[a-z]`),
}

// DestructiveCommandInterceptor blocks shell commands matching known
// destructive patterns regardless of what the PDP decided.
type DestructiveCommandInterceptor struct{}

func (DestructiveCommandInterceptor) Name() string { return "destructive_command" }

func (DestructiveCommandInterceptor) Intercept(_ context.Context, _ string, params map[string]any) (InterceptResult, error) {
	command, _ := params["command"].(string)
	if command == "" {
		return InterceptResult{}, nil
	}
	for _, pattern := range destructivePatterns {
		if pattern.MatchString(command) {
			return InterceptResult{
				Block:  true,
				Reason: fmt.Sprintf("blocked destructive command matching pattern: %s", pattern.String()),
			}, nil
		}
	}
	return InterceptResult{}, nil
}

// WorkspaceInterceptor confines file and shell parameters to the workspace.
// It blocks path parameters that escape the workspace and patches an absent
// working_dir for shell invocations so commands run inside the workspace.
type WorkspaceInterceptor struct {
	Workspace string
	Restrict  bool
}

func (WorkspaceInterceptor) Name() string { return "workspace" }

func (w WorkspaceInterceptor) Intercept(_ context.Context, _ string, params map[string]any) (InterceptResult, error) {
	if w.Workspace == "" {
		return InterceptResult{}, nil
	}

	if w.Restrict {
		for _, key := range []string{"path", "file_path", "working_dir"} {
			raw, ok := params[key].(string)
			if !ok || raw == "" {
				continue
			}
			if err := ensureInWorkspace(raw, w.Workspace); err != nil {
				return InterceptResult{Block: true, Reason: err.Error()}, nil
			}
		}
	}

	if _, hasCommand := params["command"]; hasCommand {
		if workingDir, _ := params["working_dir"].(string); workingDir == "" {
			return InterceptResult{Patch: map[string]any{"working_dir": w.Workspace}}, nil
		}
	}

	return InterceptResult{}, nil
}

// ensureInWorkspace checks that path stays inside the workspace boundary.
func ensureInWorkspace(path, workspace string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	absPath = filepath.Clean(absPath)
	cleanWorkspace := filepath.Clean(workspace)

	if !strings.HasPrefix(absPath, cleanWorkspace+string(filepath.Separator)) && absPath != cleanWorkspace {
		return fmt.Errorf("access denied: path %q is outside workspace %q", absPath, cleanWorkspace)
	}
	return nil
}
