package tools

import (
	"context"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
)

// ExecInput parameters for exec tool
type ExecInput struct {
	Command    string `json:"command" jsonschema:"required,description=Shell command to execute"`
	WorkingDir string `json:"working_dir" jsonschema:"description=Working directory for the command"`
}

// ExecOutput result of exec tool
type ExecOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// execToolImpl runs commands as-is. Command safety and workspace confinement
// are the enforcement hook's job; by the time a command reaches this tool it
// has already been authorized.
type execToolImpl struct {
	timeout time.Duration
}

func (e *execToolImpl) execute(ctx context.Context, input *ExecInput) (*ExecOutput, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var cmd *exec.Cmd
	if runtime.GOOS == "windows" {
		cmd = exec.CommandContext(timeoutCtx, "cmd", "/C", input.Command)
	} else {
		cmd = exec.CommandContext(timeoutCtx, "sh", "-c", input.Command)
	}

	if input.WorkingDir != "" {
		cmd.Dir = input.WorkingDir
	}

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return &ExecOutput{
				Stderr:   err.Error(),
				ExitCode: 1,
			}, nil
		}
	}

	return &ExecOutput{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: exitCode,
	}, nil
}

// NewExecTool creates the exec tool
func NewExecTool(timeoutSec int) (tool.InvokableTool, error) {
	if timeoutSec <= 0 {
		timeoutSec = 60
	}
	impl := &execToolImpl{timeout: time.Duration(timeoutSec) * time.Second}
	return utils.InferTool("exec", "Execute a shell command", impl.execute)
}
