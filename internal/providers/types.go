// Package providers implements the transport adapter: converting a
// selected routing decision into an OpenAI-compatible JSON request,
// invoking the provider's HTTP transport, and parsing the JSON response
// back into internal types.
package providers

import "context"

// Provider is the capability set every LLM backend must implement.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error)
	DefaultModel() string
	Name() string
}

// ChatRequest is the transport adapter's input.
type ChatRequest struct {
	Messages []Message `json:"messages"`
	Tools []ToolDefinition `json:"tools,omitempty"`
	Model string `json:"model,omitempty"`
	MaxTokens int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// ChatResponse is the transport adapter's output, already converted from the OpenAI-shaped
// wire JSON (choices[0].message.{content,tool_calls}, usage).
type ChatResponse struct {
	Content string `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	FinishReason string `json:"finish_reason"` // "stop", "tool_calls", "length"
	Usage *Usage `json:"usage,omitempty"`

	// Thinking and RawAssistantContent carry provider-specific extended-
	// reasoning passthrough: Anthropic's extended
	// thinking blocks must be echoed back verbatim on the next turn to
	// keep the signature valid. Providers that don't support this leave
	// both empty.
	Thinking string `json:"thinking,omitempty"`
	RawAssistantContent string `json:"-"`
}

// StreamChunk is one piece of a streaming response.
type StreamChunk struct {
	Content string `json:"content,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Done bool `json:"done,omitempty"`
}

// ImageContent is a base64-encoded image for vision-capable models.
type ImageContent struct {
	MimeType string `json:"mime_type"`
	Data string `json:"data"`
}

// Message is one conversation turn.
type Message struct {
	Role string `json:"role"` // system, user, assistant, tool
	Content string `json:"content"`
	Images []ImageContent `json:"images,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	// RawAssistantContent can hold the provider's native content-block
	// representation (e.g. Anthropic thinking blocks). No adapter in this
	// package reads it when building a request, so it is not resubmitted.
	RawAssistantContent string `json:"-"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID string `json:"id"`
	Name string `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`

	// Metadata carries provider-specific passthrough data (e.g. Anthropic's
	// thought_signature) parsed from the response; Registry.Dispatch does not
	// receive it.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToolDefinition describes a tool available to the model.
type ToolDefinition struct {
	Type string `json:"type"` // "function"
	Function ToolFunctionSchema `json:"function"`
}

type ToolFunctionSchema struct {
	Name string `json:"name"`
	Description string `json:"description"`
	Parameters map[string]interface{} `json:"parameters"`
}

// Usage tracks token consumption, including optional reasoning/thinking
// tokens.
type Usage struct {
	PromptTokens int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens int `json:"total_tokens"`
	CacheCreationTokens int `json:"cache_creation_input_tokens,omitempty"`
	CacheReadTokens int `json:"cache_read_input_tokens,omitempty"`
	ThinkingTokens int `json:"thinking_tokens,omitempty"`
}

// Option keys accepted in ChatRequest.Options, forwarded to the provider
// that understands them and ignored by others.
const (
	OptMaxTokens = "max_tokens"
	OptTemperature = "temperature"
	OptThinkingLevel = "thinking_level"
	OptReasoningEffort = "reasoning_effort"
	OptEnableThinking = "enable_thinking"
	OptThinkingBudget = "thinking_budget"
)

// ThinkingCapable is implemented by providers that support extended
// reasoning/thinking, letting callers probe capability without a type
// switch over concrete provider types.
type ThinkingCapable interface {
	SupportsThinking() bool
}
