// Package config loads and represents clawft's process-wide configuration
// snapshot. A Config value is immutable once returned from Load; reload
// (see Watch) produces a brand new *Config and swaps it atomically — in
// flight turns keep using the snapshot they started with.
package config

import "time"

// Config is the root configuration object, parsed from JSON5 with env
// overrides layered on top. Both snake_case and camelCase keys are accepted
// on the wire (see config_load.go); unknown keys are retained in PassThrough.
type Config struct {
	Agents AgentsConfig `json:"agents"`
	Routing RoutingConfig `json:"routing"`
	Tools ToolsConfig `json:"tools"`
	Providers map[string]ProviderConfig `json:"providers"`
	Channels map[string]ChannelConfig `json:"channels"`
	Permissions PermissionsConfig `json:"permissions"`
	Costs CostsConfig `json:"costs"`

	// PassThrough holds the whole top-level map as parsed from the config
	// file, unknown keys included. It is tagged json:"-", so Save does not
	// write it back out.
	PassThrough map[string]interface{} `json:"-"`
}

// AgentsConfig holds the defaults applied to every agent turn.
type AgentsConfig struct {
	Defaults AgentDefaults `json:"defaults"`
}

type AgentDefaults struct {
	Model string `json:"model"`
	MaxTokens int `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	MaxToolIterations int `json:"max_tool_iterations"`
	MemoryWindow int `json:"memory_window"`
	Workspace string `json:"workspace"`
}

// RoutingConfig describes the tiered router's static configuration.
type RoutingConfig struct {
	Mode string `json:"mode"` // "tiered" (only supported mode — baseline is rule-based, see Non-goals)
	Tiers []TierConfig `json:"tiers"`
	SelectionStrategy string `json:"selection_strategy"` // preference_order | round_robin | lowest_cost | random
	FallbackModel string `json:"fallback_model"`
	Escalation EscalationConfig `json:"escalation"`
	MaxRetries int `json:"max_retries"`
	BaseDelay time.Duration `json:"base_delay"`
	MaxDelay time.Duration `json:"max_delay"`
	JitterFraction float64 `json:"jitter_fraction"`
}

type TierConfig struct {
	Name string `json:"name"`
	Models []string `json:"models"`
	ComplexityMin float64 `json:"complexity_min"`
	ComplexityMax float64 `json:"complexity_max"`
	CostPer1kTokens float64 `json:"cost_per_1k_tokens"`
	MaxContextTokens int `json:"max_context_tokens"`
}

type EscalationConfig struct {
	MaxEscalationTiers int `json:"max_escalation_tiers"`
}

// ToolsConfig configures the security policies owned by specific tools.
type ToolsConfig struct {
	RestrictToWorkspace bool `json:"restrict_to_workspace"`
	Exec ExecConfig `json:"exec"`
	CommandPolicy CommandPolicyConfig `json:"command_policy"`
	URLPolicy URLPolicyConfig `json:"url_policy"`
}

type ExecConfig struct {
	Timeout time.Duration `json:"timeout"`
}

type CommandPolicyConfig struct {
	Mode string `json:"mode"` // "allowlist" (default) | "denylist"
	Allowlist []string `json:"allowlist"`
	Denylist []string `json:"denylist"`
}

type URLPolicyConfig struct {
	Enabled bool `json:"enabled"`
	AllowedDomains []string `json:"allowed_domains"`
	BlockedDomains []string `json:"blocked_domains"`
	AllowPrivate bool `json:"allow_private"`
}

// ProviderConfig names the env var holding the API key rather than the key
// itself, so config files never carry secrets.
type ProviderConfig struct {
	APIKeyEnv string `json:"api_key_env"`
	APIBase string `json:"api_base,omitempty"`
	ExtraHeaders map[string]string `json:"extra_headers,omitempty"`
}

// ChannelConfig configures a single inbound channel collaborator. clawft's
// core only consumes AllowFrom/Level for permission resolution;
// wire-protocol fields (bot tokens etc.) belong to the channel collaborator,
// out of the core's scope
type ChannelConfig struct {
	AllowFrom []string `json:"allow_from"`
	Level int `json:"level,omitempty"`
}

// PermissionsConfig is the raw, unresolved permission configuration layered
// by internal/permissions.Resolve.
type PermissionsConfig struct {
	Levels map[string]PermissionOverride `json:"levels"` // "0","1","2" -> override
	Channels map[string]PermissionOverride `json:"channels"`
	Users map[string]PermissionOverride `json:"users"`
}

// PermissionOverride is a partial UserPermissions patch applied during
// layered merge. Pointer/nil-slice fields distinguish "not set" from "set to
// zero value" so merge semantics (scalars overwrite, sequences replace, maps
// deep-merge) can be applied correctly.
type PermissionOverride struct {
	Level *int `json:"level,omitempty"`
	MaxTier *string `json:"max_tier,omitempty"`
	ModelAccess []string `json:"model_access,omitempty"`
	ModelDenylist []string `json:"model_denylist,omitempty"`
	ToolAccess []string `json:"tool_access,omitempty"`
	ToolDenylist []string `json:"tool_denylist,omitempty"`
	MaxContextTokens *int `json:"max_context_tokens,omitempty"`
	MaxOutputTokens *int `json:"max_output_tokens,omitempty"`
	RateLimit *int `json:"rate_limit,omitempty"`
	StreamingAllowed *bool `json:"streaming_allowed,omitempty"`
	EscalationAllowed *bool `json:"escalation_allowed,omitempty"`
	EscalationThreshold *float64 `json:"escalation_threshold,omitempty"`
	ModelOverride *bool `json:"model_override,omitempty"`
	CostBudgetDailyUSD *float64 `json:"cost_budget_daily_usd,omitempty"`
	CostBudgetMonthlyUSD *float64 `json:"cost_budget_monthly_usd,omitempty"`
	CustomPermissions map[string]interface{} `json:"custom_permissions,omitempty"`
}

// CostsConfig configures the global budget ceiling and persistence cadence
// for the cost tracker.
type CostsConfig struct {
	GlobalDailyLimitUSD float64 `json:"global_daily_limit_usd"`
	ResetHourUTC int `json:"reset_hour_utc"`
	PersistInterval time.Duration `json:"persist_interval"`
	StatePath string `json:"state_path"`
}
