package tools

import (
	"log/slog"

	"github.com/weave-logic-ai/clawft/internal/permissions"
	"github.com/weave-logic-ai/clawft/internal/providers"
)

// PolicyEngine filters the tool set OFFERED to a model, driven by the
// resolved UserPermissions' tool_access/tool_denylist globs. This is
// distinct from the Registry's dispatch gate: offering decides what
// the model is told it can call; the gate re-checks at call time in case
// permissions changed mid-turn.
type PolicyEngine struct{}

func NewPolicyEngine() *PolicyEngine { return &PolicyEngine{} }

// FilterTools returns the provider-facing tool definitions a model with
// perm may be offered.
func (pe *PolicyEngine) FilterTools(registry *Registry, perm permissions.UserPermissions, providerName string) []providers.ToolDefinition {
	all := registry.List()
	var allowed []string
	for _, name := range all {
		if !permissions.MatchesToolAccess(perm.ToolAccess, name) {
			continue
		}
		if permissions.MatchesToolAccess(perm.ToolDenylist, name) {
			continue
		}
		allowed = append(allowed, name)
	}

	defs := make([]providers.ToolDefinition, 0, len(allowed))
	for _, name := range allowed {
		if tool, ok := registry.Get(name); ok {
			defs = append(defs, ToProviderDef(tool))
		}
	}

	slog.Debug("tool offering filtered", "provider", providerName, "total_tools", len(all), "offered", len(defs))
	return providers.CleanToolSchemas(defs, providerName)
}
