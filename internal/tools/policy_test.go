package tools

import (
	"testing"

	"github.com/weave-logic-ai/clawft/internal/permissions"
)

func TestFilterTools_AllowsOnlyPermitted(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})
	r.Register(bigResultTool{})

	pe := NewPolicyEngine()
	perm := permissions.UserPermissions{ToolAccess: []string{"echo"}}
	defs := pe.FilterTools(r, perm, "openai")

	if len(defs) != 1 || defs[0].Function.Name != "echo" {
		t.Errorf("FilterTools = %+v, want only echo", defs)
	}
}

func TestFilterTools_DenylistOverridesAccess(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	pe := NewPolicyEngine()
	perm := permissions.UserPermissions{ToolAccess: []string{"*"}, ToolDenylist: []string{"echo"}}
	defs := pe.FilterTools(r, perm, "openai")

	if len(defs) != 0 {
		t.Errorf("expected denylist to exclude echo, got %+v", defs)
	}
}

func TestFilterTools_EmptyToolAccessDeniesAll(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool{})

	pe := NewPolicyEngine()
	defs := pe.FilterTools(r, permissions.UserPermissions{}, "openai")
	if len(defs) != 0 {
		t.Errorf("expected empty tool_access to permit nothing, got %+v", defs)
	}
}
