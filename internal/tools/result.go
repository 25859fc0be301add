package tools

import "github.com/weave-logic-ai/clawft/internal/providers"

// ToolResult is the unified return type from tool execution, carrying a
// ForLLM/ForUser split so a tool can show the model different text than it
// shows the human.
type ToolResult struct {
	CallID string `json:"call_id"`
	ForLLM string `json:"for_llm"` // content sent back to the model
	ForUser string `json:"for_user,omitempty"` // content surfaced to the human, if any
	Silent bool `json:"silent"` // suppress the ForUser message
	IsError bool `json:"is_error"`
	Async bool `json:"async"`
	Err error `json:"-"`

	// Usage holds token usage from tools that make their own internal LLM
	// calls, so the agent loop can fold it into the turn's cost accounting.
	Usage *providers.Usage `json:"-"`
	Provider string `json:"-"`
	Model string `json:"-"`
}

func NewResult(callID, forLLM string) *ToolResult {
	return &ToolResult{CallID: callID, ForLLM: forLLM}
}

func SilentResult(callID, forLLM string) *ToolResult {
	return &ToolResult{CallID: callID, ForLLM: forLLM, Silent: true}
}

func ErrorResult(callID, message string) *ToolResult {
	return &ToolResult{CallID: callID, ForLLM: message, IsError: true}
}

func UserResult(callID, content string) *ToolResult {
	return &ToolResult{CallID: callID, ForLLM: content, ForUser: content}
}

func AsyncResult(callID, message string) *ToolResult {
	return &ToolResult{CallID: callID, ForLLM: message, Async: true}
}

func (r *ToolResult) WithError(err error) *ToolResult {
	r.Err = err
	return r
}

// Content returns the text that represents this result on the wire, per
// ToolResult.content field.
func (r *ToolResult) Content() string {
	return r.ForLLM
}
