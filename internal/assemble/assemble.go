// Package assemble implements the context assembler: building the
// ordered message list handed to the transport, clamped to a token budget.
// Pure and idempotent.
package assemble

// Message mirrors pkg/protocol.Message's shape locally so this package has
// no dependency on the wire-level protocol package (kept pure/leaf).
type Message struct {
	Role string
	Content string
	ToolCallID string
	ToolCalls []ToolCall
}

type ToolCall struct {
	ID string
	Name string
	Arguments map[string]interface{}
}

// MemorySnippet is one result from the MemoryStore collaborator.
type MemorySnippet struct {
	Text string
}

// Estimator counts tokens for a string. Default is byte-length/4.
type Estimator func(s string) int

// DefaultEstimator implements the byte-length/4 heuristic.
func DefaultEstimator(s string) int {
	return (len(s) + 3) / 4
}

// Input is everything Assemble needs to build one turn's message list.
type Input struct {
	SystemPrompt string
	MemorySnippets []MemorySnippet
	SessionTail []Message // oldest first
	CurrentTurn Message
	ContextBudget int // tokens, from RoutingDecision.ContextTokenLimit
	Estimator Estimator
}

// Assemble builds [system_prompt,...memory_snippets,...session_tail,
// current_user_message], clamping to ContextBudget by dropping the oldest
// session entries first. The system prompt and current turn are never
// dropped. Assemble is pure: calling it twice on an unchanged Input
// produces an identical result.
func Assemble(in Input) []Message {
	estimate := in.Estimator
	if estimate == nil {
		estimate = DefaultEstimator
	}

	var out []Message
	used := 0

	if in.SystemPrompt != "" {
		out = append(out, Message{Role: "system", Content: in.SystemPrompt})
		used += estimate(in.SystemPrompt)
	}

	for _, m := range in.MemorySnippets {
		out = append(out, Message{Role: "system", Content: m.Text})
		used += estimate(m.Text)
	}

	currentCost := estimate(in.CurrentTurn.Content)
	budget := in.ContextBudget
	if budget <= 0 {
		budget = 1 << 30 // effectively unbounded when unset
	}

	// Reserve room for the current turn, then fit as much session tail as
	// possible, newest first, then reverse back to chronological order.
	reserved := used + currentCost
	tailBudget := budget - reserved

	var kept []Message
	for i := len(in.SessionTail) - 1; i >= 0; i-- {
		m := in.SessionTail[i]
		cost := estimate(m.Content)
		if tailBudget-cost < 0 {
			break
		}
		tailBudget -= cost
		kept = append(kept, m)
	}
	for i := len(kept) - 1; i >= 0; i-- {
		out = append(out, kept[i])
	}

	out = append(out, in.CurrentTurn)
	return out
}

// AppendToolResult appends a tool-role continuation message during the
// agent loop.
func AppendToolResult(messages []Message, toolCallID, content string, isError bool) []Message {
	c := content
	if isError {
		c = "[error] " + c
	}
	return append(messages, Message{Role: "tool", Content: c, ToolCallID: toolCallID})
}
