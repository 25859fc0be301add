// Package protocol defines the wire-level types shared across channels,
// the Agent Loop, and the tool dispatch gate. ProtocolVersion is bumped whenever one of these shapes changes
// in a backward-incompatible way.
package protocol

import "encoding/json"

const ProtocolVersion = 1

// UserPermissions mirrors internal/permissions.UserPermissions for wire
// transport; the Agent Loop works with the internal type directly and
// only crosses into this shape at a process boundary (e.g. a future RPC
// transport), keeping the wire and domain representations separate.
type UserPermissions struct {
	Level string `json:"level"`
	MaxTier string `json:"max_tier,omitempty"`
	ModelAccess []string `json:"model_access,omitempty"`
	ModelDenylist []string `json:"model_denylist,omitempty"`
	ToolAccess []string `json:"tool_access,omitempty"`
	ToolDenylist []string `json:"tool_denylist,omitempty"`
	MaxContextTokens int `json:"max_context_tokens,omitempty"`
	MaxOutputTokens int `json:"max_output_tokens,omitempty"`
	RateLimit int `json:"rate_limit,omitempty"`
	StreamingAllowed bool `json:"streaming_allowed"`
	EscalationAllowed bool `json:"escalation_allowed"`
	EscalationThreshold float64 `json:"escalation_threshold,omitempty"`
	ModelOverride string `json:"model_override,omitempty"`
	CostBudgetDailyUSD float64 `json:"cost_budget_daily_usd,omitempty"`
	CostBudgetMonthlyUSD float64 `json:"cost_budget_monthly_usd,omitempty"`
	CustomPermissions map[string]string `json:"custom_permissions,omitempty"`
}

// AuthContext ties a request to its sender, channel, and resolved
// permissions. It is server-populated only and is never decoded from JSON.
// The Agent Loop does not build a ChatRequest: it resolves a
// permissions.UserPermissions and passes it to tools.Registry.Dispatch,
// which always runs its permission checks and has no bypass for a missing
// AuthContext.
type AuthContext struct {
	SenderID string `json:"sender_id"`
	Channel string `json:"channel"`
	Permissions UserPermissions `json:"permissions"`
}

// Message is one turn in a ChatRequest's message sequence.
type Message struct {
	Role string `json:"role"`
	Content string `json:"content"`
	ToolCallID string `json:"tool_call_id,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// ChatRequest is the internal pipeline input. AuthContext is never
// populated from external JSON: UnmarshalJSON below decodes into a shadow
// type that has no auth_context field at all, so an attacker-supplied
// "auth_context" key is silently discarded rather than trusted.
type ChatRequest struct {
	Model string `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Tools []json.RawMessage `json:"tools,omitempty"`
	MaxTokens int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	AuthContext *AuthContext `json:"-"`
}

// chatRequestWire is ChatRequest's external JSON shape — deliberately
// missing AuthContext so deserializing an inbound payload can never set it.
type chatRequestWire struct {
	Model string `json:"model,omitempty"`
	Messages []Message `json:"messages"`
	Tools []json.RawMessage `json:"tools,omitempty"`
	MaxTokens int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

func (r *ChatRequest) UnmarshalJSON(data []byte) error {
	var wire chatRequestWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.Model = wire.Model
	r.Messages = wire.Messages
	r.Tools = wire.Tools
	r.MaxTokens = wire.MaxTokens
	r.Temperature = wire.Temperature
	r.AuthContext = nil
	return nil
}

func (r ChatRequest) MarshalJSON() ([]byte, error) {
	return json.Marshal(chatRequestWire{
		Model: r.Model,
		Messages: r.Messages,
		Tools: r.Tools,
		MaxTokens: r.MaxTokens,
		Temperature: r.Temperature,
	})
}
