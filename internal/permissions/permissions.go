// Package permissions implements the permission resolver: deriving an
// effective UserPermissions from layered configuration for a given
// (sender_id, channel) pair.
package permissions

// Level is the coarse trust level assigned to a sender.
type Level int

const (
	LevelZeroTrust Level = 0
	LevelUser Level = 1
	LevelAdmin Level = 2
)

// UserPermissions is the capability matrix that gates routing and tool
// dispatch for one turn.
type UserPermissions struct {
	Level Level `json:"level"`

	MaxTier string `json:"max_tier"`

	ModelAccess []string `json:"model_access"`
	ModelDenylist []string `json:"model_denylist"`

	// ToolAccess is private-by-default: an empty slice denies every tool.
	// "*" means all tools.
	ToolAccess []string `json:"tool_access"`
	ToolDenylist []string `json:"tool_denylist"`

	MaxContextTokens int `json:"max_context_tokens"`
	MaxOutputTokens int `json:"max_output_tokens"`

	RateLimit int `json:"rate_limit"` // requests/minute, 0 = unlimited

	StreamingAllowed bool `json:"streaming_allowed"`
	EscalationAllowed bool `json:"escalation_allowed"`
	EscalationThreshold float64 `json:"escalation_threshold"`

	ModelOverride bool `json:"model_override"`

	CostBudgetDailyUSD float64 `json:"cost_budget_daily_usd"` // 0 = unlimited
	CostBudgetMonthlyUSD float64 `json:"cost_budget_monthly_usd"` // 0 = unlimited

	// CustomPermissions is forwarded verbatim to tools.
	CustomPermissions map[string]interface{} `json:"custom_permissions"`
}

// defaultsForLevel returns the built-in baseline permissions for a level
// before any config override is merged in. zero_trust gets an empty
// tool_access and max_tier "free".
func defaultsForLevel(level Level) UserPermissions {
	switch level {
		case LevelAdmin:
			return UserPermissions{
				Level: LevelAdmin,
				MaxTier: "premium",
				ModelAccess: []string{"*"},
				ToolAccess: []string{"*"},
				MaxContextTokens: 128000,
				MaxOutputTokens: 8192,
				RateLimit: 0,
				StreamingAllowed: true,
				EscalationAllowed: true,
				EscalationThreshold: 0.5,
				ModelOverride: true,
				CustomPermissions: map[string]interface{}{},
			}
		case LevelUser:
			return UserPermissions{
				Level: LevelUser,
				MaxTier: "standard",
				ModelAccess: []string{"*"},
				ToolAccess: []string{},
				MaxContextTokens: 32000,
				MaxOutputTokens: 4096,
				RateLimit: 30,
				StreamingAllowed: true,
				EscalationAllowed: true,
				EscalationThreshold: 0.6,
				CustomPermissions: map[string]interface{}{},
			}
		default: // LevelZeroTrust
			return UserPermissions{
				Level: LevelZeroTrust,
				MaxTier: "free",
				ModelAccess: []string{"*"},
				ToolAccess: []string{},
				MaxContextTokens: 8000,
				MaxOutputTokens: 1024,
				RateLimit: 5,
				StreamingAllowed: false,
				EscalationAllowed: false,
				EscalationThreshold: 1.0,
				CustomPermissions: map[string]interface{}{},
			}
	}
}
