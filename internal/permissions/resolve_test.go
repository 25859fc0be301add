package permissions

import (
	"testing"

	"github.com/weave-logic-ai/clawft/internal/config"
)

func TestResolve_CLILocalDefaultsToAdmin(t *testing.T) {
	cfg := &config.Config{}
	got := Resolve(cfg, CLILocalSenderID, "cli")
	if got.Level != LevelAdmin {
		t.Errorf("cli local sender: level = %v, want admin", got.Level)
	}
	if len(got.ToolAccess) != 1 || got.ToolAccess[0] != "*" {
		t.Errorf("cli local sender: tool_access = %v, want [*]", got.ToolAccess)
	}
}

func TestResolve_UnknownChannelIsZeroTrust(t *testing.T) {
	cfg := &config.Config{}
	got := Resolve(cfg, "stranger", "telegram")
	if got.Level != LevelZeroTrust {
		t.Errorf("unknown channel sender: level = %v, want zero_trust", got.Level)
	}
	if len(got.ToolAccess) != 0 {
		t.Errorf("zero_trust must deny all tools by default, got %v", got.ToolAccess)
	}
}

func TestResolve_AllowFromGrantsUserLevel(t *testing.T) {
	cfg := &config.Config{
		Channels: map[string]config.ChannelConfig{
			"telegram": {AllowFrom: []string{"alice"}},
		},
	}
	got := Resolve(cfg, "alice", "telegram")
	if got.Level != LevelUser {
		t.Errorf("allowed sender: level = %v, want user", got.Level)
	}

	notAllowed := Resolve(cfg, "mallory", "telegram")
	if notAllowed.Level != LevelZeroTrust {
		t.Errorf("disallowed sender on restricted channel: level = %v, want zero_trust", notAllowed.Level)
	}
}

func TestResolve_UserOverrideWins(t *testing.T) {
	dailyBudget := 12.5
	cfg := &config.Config{
		Permissions: config.PermissionsConfig{
			Users: map[string]config.PermissionOverride{
				"bob": {CostBudgetDailyUSD: &dailyBudget},
			},
		},
	}
	got := Resolve(cfg, "bob", "cli")
	if got.CostBudgetDailyUSD != dailyBudget {
		t.Errorf("user override not applied: got %v, want %v", got.CostBudgetDailyUSD, dailyBudget)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	cfg := &config.Config{}
	a := Resolve(cfg, "someone", "cli")
	b := Resolve(cfg, "someone", "cli")
	if a.Level != b.Level || a.MaxTier != b.MaxTier {
		t.Errorf("Resolve not deterministic: %+v vs %+v", a, b)
	}
}

func TestSanitizeGlobs_DropsAmbiguousPatterns(t *testing.T) {
	got := sanitizeGlobs([]string{"*", "mcp_server__*", "*__delete", "a*b*c", "*mid*dle*"}, "someone")
	want := []string{"*", "mcp_server__*", "*__delete"}
	if len(got) != len(want) {
		t.Fatalf("sanitizeGlobs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sanitizeGlobs[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMatchesToolAccess(t *testing.T) {
	tests := []struct {
		name   string
		access []string
		tool   string
		want   bool
	}{
		{"wildcard allows all", []string{"*"}, "exec_shell", true},
		{"exact match", []string{"web_fetch"}, "web_fetch", true},
		{"no match", []string{"web_fetch"}, "exec_shell", false},
		{"empty denies all", []string{}, "web_fetch", false},
		{"prefix glob", []string{"mcp_server__*"}, "mcp_server__list", true},
		{"suffix glob", []string{"*__delete"}, "mcp_server__delete", true},
		{"prefix glob no match", []string{"mcp_server__*"}, "other__list", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MatchesToolAccess(tt.access, tt.tool); got != tt.want {
				t.Errorf("MatchesToolAccess(%v, %q) = %v, want %v", tt.access, tt.tool, got, tt.want)
			}
		})
	}
}
