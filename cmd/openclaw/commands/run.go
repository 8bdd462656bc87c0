package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/internal/audit"
	"github.com/openclaw/openclaw/internal/authz"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/enforce"
	"github.com/openclaw/openclaw/internal/metrics"
	"github.com/openclaw/openclaw/internal/tools"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <tool> [args-json]",
		Short: "Execute a tool under policy enforcement",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runTool,
	}
}

func runTool(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	toolName := args[0]
	argsJSON := "{}"
	if len(args) > 1 {
		argsJSON = args[1]
	}

	client := authz.NewClient(cfg.AuthzClientConfig())

	registry, err := buildRegistry(cfg, client)
	if err != nil {
		return err
	}

	hook := enforce.NewHook(
		cfg.AuthzClientConfig(),
		cfg.Authz.Enabled,
		client,
		enforce.DestructiveCommandInterceptor{},
		enforce.WorkspaceInterceptor{
			Workspace: cfg.WorkspacePath(),
			Restrict:  cfg.Tools.Exec.RestrictToWorkspace,
		},
	)
	registry.SetGuard(enforce.ToolGuard(
		hook,
		audit.NewWriter(cfg.WorkspacePath()),
		metrics.NewDecisionMetrics(cfg.WorkspacePath()),
	))

	ctx = tools.WithInvocationContext(ctx, tools.InvocationContext{
		AgentID:    cfg.Agent.ID,
		ToolCallID: uuid.NewString(),
	})

	result, err := registry.Execute(ctx, toolName, argsJSON)
	if err != nil {
		return err
	}

	fmt.Println(result)
	return nil
}

func buildRegistry(cfg *config.Config, client *authz.Client) (*tools.Registry, error) {
	registry := tools.NewRegistry()

	readTool, err := tools.NewReadFileTool()
	if err != nil {
		return nil, fmt.Errorf("failed to create read_file tool: %w", err)
	}
	writeTool, err := tools.NewWriteFileTool()
	if err != nil {
		return nil, fmt.Errorf("failed to create write_file tool: %w", err)
	}
	listTool, err := tools.NewListDirTool()
	if err != nil {
		return nil, fmt.Errorf("failed to create list_dir tool: %w", err)
	}
	editTool, err := tools.NewEditFileTool()
	if err != nil {
		return nil, fmt.Errorf("failed to create edit_file tool: %w", err)
	}
	execTool, err := tools.NewExecTool(cfg.Tools.Exec.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create exec tool: %w", err)
	}
	constraintsTool, err := tools.NewQueryConstraintsTool(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create query_constraints tool: %w", err)
	}

	for _, t := range []tools.Tool{readTool, writeTool, listTool, editTool, execTool, constraintsTool} {
		if err := registry.Register(t); err != nil {
			return nil, fmt.Errorf("failed to register tool: %w", err)
		}
	}

	return registry, nil
}
