// Package tools implements the tool registry: dispatch-time tool
// lookup and execution behind a 6-step gate, and the tool-offering policy
// that decides what a model is told it can call.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/weave-logic-ai/clawft/internal/permissions"
	"github.com/weave-logic-ai/clawft/internal/providers"
)

// Tool is the capability every built-in tool implements.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
	Execute(ctx context.Context, callID string, args map[string]interface{}) *ToolResult

	// RequiredPermissionLevel is the minimum permissions.Level a caller must
	// hold to dispatch this tool.
	RequiredPermissionLevel() permissions.Level
	// RequiredCustomPermissions lists custom_permissions keys whose value
	// must deep-equal the caller's CustomPermissions entry for that key.
	RequiredCustomPermissions() map[string]interface{}
}

// maxResultBytes is the 64KiB truncation ceiling on a tool's ForLLM
// content, protecting the context budget from a single runaway tool call.
const maxResultBytes = 64 * 1024

// Registry holds every built-in tool, keyed by name. MCP-style names take
// the form "{server}__{tool}"; the registry treats the
// whole string as an opaque key, so namespacing a tool is just choosing
// its registered name — no separate routing layer is needed since no MCP
// servers are wired in this build.
type Registry struct {
	mu sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns every registered tool name, sorted for deterministic
// ordering (useful for tests and stable tool-offering output).
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderDefs returns every registered tool as a provider-facing
// definition, unfiltered. Callers needing a permission-filtered set should
// use PolicyEngine.FilterTools instead.
func (r *Registry) ProviderDefs() []providers.ToolDefinition {
	names := r.List()
	defs := make([]providers.ToolDefinition, 0, len(names))
	for _, name := range names {
		t, _ := r.Get(name)
		defs = append(defs, ToProviderDef(t))
	}
	return defs
}

func ToProviderDef(t Tool) providers.ToolDefinition {
	return providers.ToolDefinition{
		Type: "function",
		Function: providers.ToolFunctionSchema{
			Name: t.Name(),
			Description: t.Description(),
			Parameters: t.Parameters(),
		},
	}
}

// Dispatch runs the 6-step dispatch gate and invokes the tool:
// 1. resolve the requested name (MCP-namespaced or plain) to a registry key
// 2. look the tool up, erroring if unknown
// 3. re-check tool_access/tool_denylist even if the model was offered the
// tool earlier in the turn, since permissions can change between
// assembly and dispatch in a long-running session
// 4. level gate: perm.Level must be >= the tool's required permission level
// 5. custom-permission gate: every key the tool requires must deep-equal
// the caller's CustomPermissions entry for that key
// 6. parse the raw JSON arguments, execute, and truncate the result to
// maxResultBytes before it re-enters the context
func (r *Registry) Dispatch(ctx context.Context, perm permissions.UserPermissions, callID, name string, rawArgs json.RawMessage) *ToolResult {
	resolved := resolveToolName(name)

	tool, ok := r.Get(resolved)
	if !ok {
		return ErrorResult(callID, fmt.Sprintf("unknown tool %q", name))
	}

	if !permissions.MatchesToolAccess(perm.ToolAccess, resolved) {
		return ErrorResult(callID, fmt.Sprintf("tool %q not permitted", resolved))
	}
	if permissions.MatchesToolAccess(perm.ToolDenylist, resolved) {
		return ErrorResult(callID, fmt.Sprintf("tool %q denied", resolved))
	}
	if perm.Level < tool.RequiredPermissionLevel() {
		return ErrorResult(callID, fmt.Sprintf("tool %q requires permission level %d, caller has %d", resolved, tool.RequiredPermissionLevel(), perm.Level))
	}
	for key, want := range tool.RequiredCustomPermissions() {
		got, ok := perm.CustomPermissions[key]
		if !ok || !reflect.DeepEqual(got, want) {
			return ErrorResult(callID, fmt.Sprintf("tool %q requires custom permission %q", resolved, key))
		}
	}

	var args map[string]interface{}
	if len(rawArgs) > 0 {
		if err := json.Unmarshal(rawArgs, &args); err != nil {
			return ErrorResult(callID, fmt.Sprintf("invalid arguments: %v", err))
		}
	}

	result := tool.Execute(ctx, callID, args)
	if result == nil {
		result = ErrorResult(callID, "tool returned no result")
	}

	if len(result.ForLLM) > maxResultBytes {
		result.ForLLM = result.ForLLM[:maxResultBytes] + "\n[truncated: result exceeded 64KiB]"
	}
	return result
}

// resolveToolName strips nothing from an "{server}__{tool}" name — the
// registry key IS the namespaced name — but accepts a bare tool name too,
// so built-ins registered without a server prefix keep working.
func resolveToolName(name string) string {
	return strings.TrimSpace(name)
}
