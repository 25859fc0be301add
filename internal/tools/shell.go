package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/weave-logic-ai/clawft/internal/permissions"
	"github.com/weave-logic-ai/clawft/internal/security"
)

// ExecTool implements the exec_shell tool, gated by a security.CommandPolicy.
type ExecTool struct {
	workingDir string
	timeout time.Duration
	policy *security.CommandPolicy
	restrict bool
}

// NewExecTool creates an exec_shell tool bound to policy.
func NewExecTool(workingDir string, restrict bool, policy *security.CommandPolicy, timeout time.Duration) *ExecTool {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &ExecTool{workingDir: workingDir, timeout: timeout, policy: policy, restrict: restrict}
}

func (t *ExecTool) Name() string { return "exec_shell" }
func (t *ExecTool) Description() string { return "Execute a shell command and return its output" }
func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{
				"type": "string",
				"description": "The shell command to execute",
			},
			"working_dir": map[string]interface{}{
				"type": "string",
				"description": "Optional working directory for the command",
			},
		},
		"required": []string{"command"},
	}
}

// RequiredPermissionLevel gates exec_shell to at least LevelUser, as
// defense-in-depth alongside tool_access (zero_trust's empty tool_access
// already excludes it).
func (t *ExecTool) RequiredPermissionLevel() permissions.Level { return permissions.LevelUser }

func (t *ExecTool) RequiredCustomPermissions() map[string]interface{} { return nil }

func (t *ExecTool) Execute(ctx context.Context, callID string, args map[string]interface{}) *ToolResult {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult(callID, "command is required")
	}

	if t.policy != nil {
		if err := t.policy.Check(command); err != nil {
			var polErr *security.PolicyError
			if errors.As(err, &polErr) {
				return ErrorResult(callID, fmt.Sprintf("command denied by policy: %s", polErr.Error()))
			}
			return ErrorResult(callID, fmt.Sprintf("command denied by policy: %v", err))
		}
	}

	cwd := ToolWorkspaceFromCtx(ctx)
	if cwd == "" {
		cwd = t.workingDir
	}
	if wd, _ := args["working_dir"].(string); wd != "" {
		if t.restrict {
			resolved, err := resolvePath(wd, t.workingDir, true)
			if err != nil {
				return ErrorResult(callID, err.Error())
			}
			cwd = resolved
		} else {
			cwd = wd
		}
	}

	return t.executeOnHost(ctx, callID, command, cwd)
}

func (t *ExecTool) executeOnHost(ctx context.Context, callID, command, cwd string) *ToolResult {
	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = cwd

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var result string
	if stdout.Len() > 0 {
		result = stdout.String()
	}
	if stderr.Len() > 0 {
		if result != "" {
			result += "\n"
		}
		result += "STDERR:\n" + stderr.String()
	}

	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return ErrorResult(callID, fmt.Sprintf("command timed out after %s", t.timeout))
		}
		if result == "" {
			result = err.Error()
		}
		return ErrorResult(callID, result)
	}

	if result == "" {
		result = "(command completed with no output)"
	}
	return SilentResult(callID, result)
}

// resolvePath confines wd to baseDir when restrict is true, rejecting any
// path that escapes it via "..".
func resolvePath(wd, baseDir string, restrict bool) (string, error) {
	joined := wd
	if !filepath.IsAbs(wd) {
		joined = filepath.Join(baseDir, wd)
	}
	clean := filepath.Clean(joined)
	if restrict {
		rel, err := filepath.Rel(baseDir, clean)
		if err != nil || rel == ".." || (len(rel) >= 2 && rel[:2] == "..") {
			return "", fmt.Errorf("working_dir %q escapes workspace", wd)
		}
	}
	return clean, nil
}
