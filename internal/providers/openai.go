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

// OpenAIProvider talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	name string
	apiKey string
	apiBase string
	defaultModel string
	extraHeaders map[string]string
	httpClient *http.Client
	retry RetryConfig
}

// NewOpenAIProvider constructs a Provider for an OpenAI-compatible backend.
// name is the provider identifier used in "provider/model" strings and
// logging (e.g. "openai", "dashscope").
func NewOpenAIProvider(name, apiKey, apiBase, defaultModel string, extraHeaders map[string]string) *OpenAIProvider {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		name: name,
		apiKey: apiKey,
		apiBase: strings.TrimRight(apiBase, "/"),
		defaultModel: defaultModel,
		extraHeaders: extraHeaders,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry: DefaultRetryConfig(),
	}
}

func (p *OpenAIProvider) Name() string { return p.name }
func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

type openaiRequestBody struct {
	Model string `json:"model"`
	Messages []openaiMessage `json:"messages"`
	Tools []ToolDefinition `json:"tools,omitempty"`
	MaxTokens int `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	Stream bool `json:"stream,omitempty"`
}

type openaiMessage struct {
	Role string `json:"role"`
	Content string `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type openaiResponseBody struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

func (p *OpenAIProvider) buildRequestBody(req ChatRequest, stream bool) openaiRequestBody {
	msgs := make([]openaiMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openaiMessage{Role: m.Role, Content: m.Content, ToolCalls: m.ToolCalls, ToolCallID: m.ToolCallID}
	}
	model := req.Model
	if model == "" {
		model = p.defaultModel
	}
	return openaiRequestBody{
		Model: model,
		Messages: msgs,
		Tools: CleanToolSchemas(req.Tools, p.name),
		MaxTokens: req.MaxTokens,
		Temperature: req.Temperature,
		Stream: stream,
	}
}

func (p *OpenAIProvider) doRequest(ctx context.Context, body interface{}, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
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
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		kind := classifyStatus(resp.StatusCode)
		retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &HTTPError{Kind: kind, Status: resp.StatusCode, Body: string(body), RetryAfter: retryAfter}
	}
	return resp, nil
}

func classifyStatus(status int) ErrKind {
	switch {
		case status == 401 || status == 403:
			return ErrAuth
		case status == 429:
			return ErrRateLimited
		case status >= 500:
			return ErrServerError
		default:
			return ErrInvalidResponse
	}
}

// Chat implements Provider.Chat.
func (p *OpenAIProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	var result *ChatResponse
	body := p.buildRequestBody(req, false)
	err := RetryDo(ctx, p.retry, func(ctx context.Context) error {
		resp, err := p.doRequest(ctx, body, false)
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

func (p *OpenAIProvider) parseResponse(resp *http.Response) (*ChatResponse, error) {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	var parsed openaiResponseBody
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &HTTPError{Kind: ErrInvalidResponse, Body: string(data)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &HTTPError{Kind: ErrInvalidResponse, Body: "no choices in response"}
	}
	choice := parsed.Choices[0]
	return &ChatResponse{
		Content: choice.Message.Content,
		ToolCalls: choice.Message.ToolCalls,
		FinishReason: choice.FinishReason,
		Usage: &Usage{
			PromptTokens: parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens: parsed.Usage.TotalTokens,
		},
	}, nil
}

// ChatStream implements Provider.ChatStream via SSE "data: "-prefixed chunks.
func (p *OpenAIProvider) ChatStream(ctx context.Context, req ChatRequest, onChunk func(StreamChunk)) (*ChatResponse, error) {
	body := p.buildRequestBody(req, true)
	resp, err := p.doRequest(ctx, body, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var contentBuf strings.Builder
	var finishReason string
	var toolCalls []ToolCall

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			break
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
					ToolCalls []ToolCall `json:"tool_calls"`
				} `json:"delta"`
				FinishReason string `json:"finish_reason"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue
		}
		for _, c := range chunk.Choices {
			if c.Delta.Content != "" {
				contentBuf.WriteString(c.Delta.Content)
				onChunk(StreamChunk{Content: c.Delta.Content})
			}
			if len(c.Delta.ToolCalls) > 0 {
				toolCalls = append(toolCalls, c.Delta.ToolCalls...)
			}
			if c.FinishReason != "" {
				finishReason = c.FinishReason
			}
		}
	}
	onChunk(StreamChunk{Done: true})

	return &ChatResponse{
		Content: contentBuf.String(),
		ToolCalls: toolCalls,
		FinishReason: finishReason,
	}, scanner.Err()
}
