package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicProvider talks to the Anthropic Messages API, adding extended-
// thinking passthrough on top of the shared Provider contract.
type AnthropicProvider struct {
	name string
	apiKey string
	apiBase string
	defaultModel string
	extraHeaders map[string]string
	httpClient *http.Client
	retry RetryConfig
	thinkingBudget int // 0 disables extended thinking
}

// NewAnthropicProvider constructs a Provider for the Anthropic Messages API.
// thinkingBudget, if non-zero, enables extended thinking with that token
// budget.
func NewAnthropicProvider(apiKey, apiBase, defaultModel string, extraHeaders map[string]string, thinkingBudget int) *AnthropicProvider {
	if apiBase == "" {
		apiBase = "https://api.anthropic.com/v1"
	}
	return &AnthropicProvider{
		name: "anthropic",
		apiKey: apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: DefaultRetryConfig(),
		thinkingBudget: thinkingBudget,
	}
}

func (p *AnthropicProvider) Name() string { return p.name }
func (p *AnthropicProvider) DefaultModel() string { return p.defaultModel }

// SupportsThinking implements ThinkingCapable.
func (p *AnthropicProvider) SupportsThinking() bool { return p.thinkingBudget > 0 }

type anthropicRequestBody struct {
	Model string `json:"model"`
	System string `json:"system,omitempty"`
	Messages []anthropicMessage `json:"messages"`
	Tools []anthropicTool `json:"tools,omitempty"`
	MaxTokens int `json:"max_tokens"`
	Thinking *anthropicThinking `json:"thinking,omitempty"`
	Stream bool `json:"stream,omitempty"`
}

type anthropicThinking struct {
	Type string `json:"type"` // "enabled"
	BudgetTokens int `json:"budget_tokens"`
}

type anthropicMessage struct {
	Role string `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type string `json:"type"` // text, tool_use, tool_result, thinking
	Text string `json:"text,omitempty"`
	ID string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
	Input map[string]interface{} `json:"input,omitempty"`
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content string `json:"content,omitempty"`
	IsError bool `json:"is_error,omitempty"`
	Thinking string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type anthropicTool struct {
	Name string `json:"name"`
	Description string `json:"description"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicResponseBody struct {
	Content []anthropicContentBlock `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage struct {
		InputTokens int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
		CacheReadInputTokens int `json:"cache_read_input_tokens"`
	} `json:"usage"`
}

func (p *AnthropicProvider) buildRequestBody(req ChatRequest, stream bool) anthropicRequestBody {
	var system string
	msgs := make([]anthropicMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = m.Content
			continue
		}
		role := m.Role
		if role == "tool" {
			role = "user"
			msgs = append(msgs, anthropicMessage{Role: role, Content: []anthropicContentBlock{
				{Type: "tool_result", ToolUseID: m.ToolCallID, Content: m.Content},
			}})
			continue
		}
		blocks := []anthropicContentBlock{}
		if m.Content != "" {
			blocks = append(blocks, anthropicContentBlock{Type: "text", Text: m.Content})
		}
		for _, tc := range m.ToolCalls {
			blocks = append(blocks, anthropicContentBlock{Type: "tool_use", ID: tc.ID, Name: tc.Name, Input: tc.Arguments})
		}
		msgs = append(msgs, anthropicMessage{Role: role, Content: blocks})
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	tools := make([]anthropicTool, len(req.Tools))
	for i, t := range req.Tools {
		cleaned := CleanSchemaForProvider(t.Function.Parameters, "anthropic")
		tools[i] = anthropicTool{Name: t.Function.Name, Description: t.Function.Description, InputSchema: cleaned}
	}

	var thinking *anthropicThinking
	if p.thinkingBudget > 0 {
		thinking = &anthropicThinking{Type: "enabled", BudgetTokens: p.thinkingBudget}
	}

	return anthropicRequestBody{
		Model: model,
		System: system,
		Messages: msgs,
		Tools: tools,
		MaxTokens: maxTokens,
		Thinking: thinking,
		Stream: stream,
	}
}

func (p *AnthropicProvider) doRequest(ctx context.Context, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")
	for k, v := range p.extraHeaders {
		httpReq.Header.Set(k, v)
	}

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &HTTPError{Kind: ErrTimeout, Status: 0}
		}
		return nil, &HTTPError{Kind: ErrNetwork, Status: 0, Body: err.Error()}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPError{Kind: classifyStatus(resp.StatusCode), Status: resp.StatusCode, Body: string(data), RetryAfter: retryAfter}
	}
	return resp, nil
}

// Chat implements Provider.Chat.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var result *ChatResponse
	body := p.buildRequestBody(req, false)
	err := RetryDo(ctx, p.retry, func(ctx context.Context) error {
		resp, err := p.doRequest(ctx, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		parsed, err := p.parseResponse(resp)
		if err != nil {
			return err
		}
		result = parsed
		return nil
	})
	return result, err
}

func (p *AnthropicProvider) parseResponse(resp *http.Response) (*ChatResponse, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var parsed anthropicResponseBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &HTTPError{Kind: ErrInvalidResponse, Body: string(data)}
	}

	var textBuf strings.Builder
	var thinkingBuf strings.Builder
	var toolCalls []ToolCall
	for _, block := range parsed.Content {
		switch block.Type {
			case "text":
				textBuf.WriteString(block.Text)
			case "thinking":
				thinkingBuf.WriteString(block.Thinking)
			case "tool_use":
				meta := map[string]interface{}{}
				if block.Signature != "" {
					meta["thought_signature"] = block.Signature
				}
				toolCalls = append(toolCalls, ToolCall{ID: block.ID, Name: block.Name, Arguments: block.Input, Metadata: meta})
		}
	}

	rawContent, _ := json.Marshal(parsed.Content)

	return &ChatResponse{
		Content: textBuf.String(),
		ToolCalls: toolCalls,
		FinishReason: parsed.StopReason,
		Thinking: thinkingBuf.String(),
		RawAssistantContent: string(rawContent),
		Usage: &Usage{
			PromptTokens: parsed.Usage.InputTokens,
			CompletionTokens: parsed.Usage.OutputTokens,
			TotalTokens: parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
			CacheCreationTokens: parsed.Usage.CacheCreationInputTokens,
			CacheReadTokens: parsed.Usage.CacheReadInputTokens,
		},
	}, nil
}

// ChatStream implements Provider.ChatStream via Anthropic's SSE event stream.
func (p *AnthropicProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	body := p.buildRequestBody(req, true)
	resp, err := p.doRequest(ctx, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var textBuf, thinkingBuf strings.Builder
	var finishReason string

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		var evt struct {
			Type string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
				Thinking string `json:"thinking"`
				StopReason string `json:"stop_reason"`
			} `json:"delta"`
		}
		if err := json.Unmarshal([]byte(payload), &evt); err != nil {
			continue
		}
		switch evt.Type {
			case "content_block_delta":
				if evt.Delta.Text != "" {
					textBuf.WriteString(evt.Delta.Text)
					onChunk(StreamChunk{Content: evt.Delta.Text})
				}
				if evt.Delta.Thinking != "" {
					thinkingBuf.WriteString(evt.Delta.Thinking)
					onChunk(StreamChunk{Thinking: evt.Delta.Thinking})
				}
			case "message_delta":
				if evt.Delta.StopReason != "" {
					finishReason = evt.Delta.StopReason
				}
		}
	}
	onChunk(StreamChunk{Done: true})

	return &ChatResponse{
		Content: textBuf.String(),
		Thinking: thinkingBuf.String(),
		FinishReason: finishReason,
	}, scanner.Err()
}
