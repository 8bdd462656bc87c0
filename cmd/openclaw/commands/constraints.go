package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openclaw/openclaw/internal/authz"
	"github.com/openclaw/openclaw/internal/config"
	"github.com/openclaw/openclaw/internal/tools"
)

func NewConstraintsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "constraints <action>",
		Short: "Show policy constraints that apply to a tool action",
		Long:  `Queries the policy decision point for the residual constraints on an action (read, write, edit or bash).`,
		Args:  cobra.ExactArgs(1),
		RunE:  runConstraints,
	}
}

func runConstraints(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client := authz.NewClient(cfg.AuthzClientConfig())

	advisory, err := tools.NewQueryConstraintsTool(client)
	if err != nil {
		return fmt.Errorf("failed to create constraint query tool: %w", err)
	}

	input, err := json.Marshal(map[string]string{"action": args[0]})
	if err != nil {
		return err
	}

	raw, err := advisory.InvokableRun(commandContext(cmd), string(input))
	if err != nil {
		return err
	}

	var out tools.QueryConstraintsOutput
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return fmt.Errorf("failed to parse constraint query output: %w", err)
	}

	fmt.Printf("Action: %s\n", out.Action)
	fmt.Printf("Decision: %s\n", out.Decision)
	fmt.Printf("Constraints: %d\n", out.ConstraintCount)
	fmt.Println()
	fmt.Println(out.Constraints)
	if out.Explanation != "" {
		fmt.Println()
		fmt.Printf("Explanation: %s\n", out.Explanation)
	}

	return nil
}
