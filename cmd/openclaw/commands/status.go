package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/internal/authz"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/metrics"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show OpenClaw configuration status",
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	fmt.Println("=== OpenClaw Status ===")
	fmt.Println()

	fmt.Printf("Config: %s\n", config.ConfigPath())
	if _, err := os.Stat(config.ConfigPath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found (run 'openclaw init')")
	}

	fmt.Printf("\nWorkspace: %s\n", cfg.WorkspacePath())
	if _, err := os.Stat(cfg.WorkspacePath()); err == nil {
		fmt.Println("  Status: OK")
	} else {
		fmt.Println("  Status: Not found")
	}

	fmt.Printf("\nAgent: %s\n", cfg.Agent.ID)

	fmt.Println("\nAuthorization:")
	if cfg.Authz.Enabled {
		fmt.Println("  Enforcement: enabled")
	} else {
		fmt.Println("  Enforcement: disabled")
	}
	fmt.Printf("  Endpoint: %s\n", cfg.Authz.Endpoint)
	fmt.Printf("  Constraint endpoint: %s\n", cfg.Authz.ConstraintEndpoint)
	fmt.Printf("  Timeout: %dms\n", cfg.Authz.TimeoutMs)
	failureMode := "fail-closed"
	if cfg.Authz.FailOpen {
		failureMode = "fail-open"
	}
	fmt.Printf("  Failure mode: %s\n", failureMode)
	fmt.Printf("  Namespace: %s\n", cfg.Authz.Namespace)

	if cfg.Authz.Enabled {
		client := authz.NewClient(cfg.AuthzClientConfig())
		healthCtx, cancel := context.WithTimeout(commandContext(cmd), 5*time.Second)
		defer cancel()
		if err := client.Health(healthCtx); err != nil {
			fmt.Printf("  PDP health: unreachable (%v)\n", err)
		} else {
			fmt.Println("  PDP health: OK")
		}
	}

	fmt.Println("\nDecisions:")
	snap, err := metrics.ReadDecisionSnapshot(cfg.WorkspacePath())
	if err != nil {
		fmt.Printf("  Status: unavailable (%v)\n", err)
	} else if !snap.HasData() {
		fmt.Println("  Status: no decisions recorded yet")
	} else {
		fmt.Printf("  Total: %d (allowed=%d, denied=%d, interceptor_blocks=%d)\n",
			snap.Decisions.Total, snap.Decisions.Allowed, snap.Decisions.Denied, snap.Decisions.InterceptorBlocks)
		fmt.Printf("  Latency: avg=%.1fms, max=%dms, p95~%dms\n",
			snap.Decisions.AvgLatencyMs(), snap.Decisions.MaxLatencyMs, snap.Decisions.P95ProxyLatencyMs)
	}

	fmt.Println("\nTools:")
	fmt.Println("  read_file: ready")
	fmt.Println("  write_file: ready")
	fmt.Println("  edit_file: ready")
	fmt.Println("  list_dir: ready")
	fmt.Printf("  exec: ready (timeout=%ds, restrict_to_workspace=%v)\n", cfg.Tools.Exec.Timeout, cfg.Tools.Exec.RestrictToWorkspace)
	fmt.Println("  query_constraints: ready")

	return nil
}
