// Package agent implements the agent loop: classify, route, assemble,
// call the transport, parse the response, dispatch any requested tools, and
// repeat until the model stops calling tools or max_tool_iterations is hit.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/weave-logic-ai/clawft/internal/assemble"
	"github.com/weave-logic-ai/clawft/internal/classify"
	"github.com/weave-logic-ai/clawft/internal/config"
	"github.com/weave-logic-ai/clawft/internal/costs"
	"github.com/weave-logic-ai/clawft/internal/permissions"
	"github.com/weave-logic-ai/clawft/internal/providers"
	"github.com/weave-logic-ai/clawft/internal/router"
	"github.com/weave-logic-ai/clawft/internal/store"
	"github.com/weave-logic-ai/clawft/internal/tools"
)

// ProviderResolver returns the Provider implementation backing a provider
// name (as found in a "provider/model" routing decision), and whether it's
// configured in this process.
type ProviderResolver func(name string) (providers.Provider, bool)

// Loop runs the classify→route→assemble→transport→parse→dispatch cycle for
// one agent. A single Loop instance is shared across all sessions; per-
// session mutexes keep one
// session's turns strictly ordered while unrelated sessions run
// concurrently, bounded by a worker-pool semaphore.
type Loop struct {
	id string
	cfg *config.Config
	resolveProvider ProviderResolver
	router *router.Router
	registry *tools.Registry
	toolPolicy *tools.PolicyEngine
	sessions store.SessionStore
	costs *costs.Tracker
	maxIterations int
	memoryWindow int
	systemPrompt string

	sessionLocks sync.Map // sessionKey -> *sync.Mutex
	sem chan struct{} // cross-session worker-pool bound
}

// LoopConfig configures a new Loop.
type LoopConfig struct {
	ID string
	Config *config.Config
	ResolveProvider ProviderResolver
	Router *router.Router
	Registry *tools.Registry
	ToolPolicy *tools.PolicyEngine
	Sessions store.SessionStore
	Costs *costs.Tracker
	SystemPrompt string
	MaxConcurrency int // cross-session worker-pool size, default 8
}

func NewLoop(cfg LoopConfig) *Loop {
	maxIter := cfg.Config.Agents.Defaults.MaxToolIterations
	if maxIter <= 0 {
		maxIter = 20
	}
	memWindow := cfg.Config.Agents.Defaults.MemoryWindow
	if memWindow <= 0 {
		memWindow = 40
	}
	conc := cfg.MaxConcurrency
	if conc <= 0 {
		conc = 8
	}
	return &Loop{
		id: cfg.ID,
		cfg: cfg.Config,
		resolveProvider: cfg.ResolveProvider,
		router: cfg.Router,
		registry: cfg.Registry,
		toolPolicy: cfg.ToolPolicy,
		sessions: cfg.Sessions,
		costs: cfg.Costs,
		maxIterations: maxIter,
		memoryWindow: memWindow,
		systemPrompt: cfg.SystemPrompt,
		sem: make(chan struct{}, conc),
	}
}

// RunRequest is one inbound turn.
type RunRequest struct {
	SessionKey string
	SenderID string
	Channel string
	ChatID string
	Content string
	Stream bool
	OnChunk func(providers.StreamChunk)
}

// RunResult is the outcome of a completed turn.
type RunResult struct {
	Content string
	RunID string
	Iterations int
	Usage providers.Usage
	Decision router.RoutingDecision
	// Cancelled is set when the turn stopped because ctx was cancelled
	// mid-loop rather than finishing normally or failing.
	Cancelled bool
}

// Run serializes execution per SessionKey while allowing
// distinct sessions to run concurrently, bounded by the Loop's worker pool.
func (l *Loop) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	lockV, _ := l.sessionLocks.LoadOrStore(req.SessionKey, &sync.Mutex{})
	lock := lockV.(*sync.Mutex)

	select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
	}
	defer func() { <-l.sem }()

	lock.Lock()
	defer lock.Unlock()

	return l.runLoop(ctx, req)
}

func (l *Loop) runLoop(ctx context.Context, req RunRequest) (*RunResult, error) {
	runID := uuid.New().String()

	perm := permissions.Resolve(l.cfg, req.SenderID, req.Channel)

	history, err := l.sessions.LoadTail(ctx, req.SessionKey, l.memoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load session tail: %w", err)
	}

	profile := classify.Classify(req.Content, l.registry.List())

	routeReq := router.Request{
		SenderID: req.SenderID,
		AssembledTokens: 0,
		RequestedMaxTokens: l.cfg.Agents.Defaults.MaxTokens,
	}

	excluded := map[string]bool{}
	var decision router.RoutingDecision
	var provider providers.Provider

	for attempt := 0; attempt <= l.cfg.Routing.MaxRetries; attempt++ {
		decision = l.router.Route(routeReq, profile, perm, excluded)
		if decision.Err != nil {
			return nil, fmt.Errorf("routing: %s: %w", decision.Reason, decision.Err)
		}
		p, ok := l.resolveProvider(decision.Provider)
		if !ok {
			excluded[decision.Model] = true
			continue
		}
		provider = p
		break
	}
	if provider == nil {
		return nil, fmt.Errorf("routing: no provider available for sender %s", req.SenderID)
	}

	currentTurn := assemble.Message{Role: "user", Content: req.Content}
	messages := assemble.Assemble(assemble.Input{
		SystemPrompt: l.systemPrompt,
		SessionTail: history,
		CurrentTurn: currentTurn,
		ContextBudget: decision.ContextTokenLimit,
	})

	toolDefs := l.toolPolicy.FilterTools(l.registry, perm, provider.Name())

	var totalUsage providers.Usage
	var finalContent string
	iteration := 0
	reachedLimit := false
	failoverAttempts := 0

	for iteration < l.maxIterations {
		iteration++

		chatReq := providers.ChatRequest{
			Messages: toProviderMessages(messages),
			Tools: toolDefs,
			Model: decision.Model,
			MaxTokens: decision.MaxTokens,
			Temperature: l.cfg.Agents.Defaults.Temperature,
		}

		resp, err := l.callProvider(ctx, provider, chatReq, req.Stream, req.OnChunk)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return &RunResult{RunID: runID, Iterations: iteration, Usage: totalUsage, Decision: decision, Cancelled: true}, nil
			}
			if providers.Retryable(err) && failoverAttempts < l.cfg.Routing.MaxRetries {
				failoverAttempts++
				excluded[decision.Model] = true
				next := l.router.Route(routeReq, profile, perm, excluded)
				if next.Err == nil {
					if p, ok := l.resolveProvider(next.Provider); ok {
						l.failoverBackoff(ctx, failoverAttempts-1)
						if ctx.Err() != nil {
							return &RunResult{RunID: runID, Iterations: iteration, Usage: totalUsage, Decision: decision, Cancelled: true}, nil
						}
						decision = next
						provider = p
						toolDefs = l.toolPolicy.FilterTools(l.registry, perm, provider.Name())
						iteration--
						continue
					}
				}
			}
			return nil, fmt.Errorf("transport call (iteration %d): %w", iteration, err)
		}

		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
			totalUsage.ThinkingTokens += resp.Usage.ThinkingTokens
		}

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			break
		}

		assistantMsg := assemble.Message{
			Role: "assistant",
			Content: resp.Content,
			ToolCalls: toAssembleToolCalls(resp.ToolCalls),
		}
		messages = append(messages, assistantMsg)

		results := l.dispatchTools(ctx, perm, resp.ToolCalls)
		for _, tr := range results {
			messages = assemble.AppendToolResult(messages, tr.CallID, tr.ForLLM, tr.IsError)
		}

		if ctx.Err() != nil {
			return &RunResult{RunID: runID, Iterations: iteration, Usage: totalUsage, Decision: decision, Cancelled: true}, nil
		}

		if iteration == l.maxIterations {
			reachedLimit = true
		}
	}

	if reachedLimit {
		messages = append(messages, assemble.Message{
			Role: "system",
			Content: "tool iteration limit reached; respond with your best answer using the information gathered so far, without calling further tools.",
		})
		finalReq := providers.ChatRequest{
			Messages: toProviderMessages(messages),
			Model: decision.Model,
			MaxTokens: decision.MaxTokens,
			Temperature: l.cfg.Agents.Defaults.Temperature,
		}
		resp, err := l.callProvider(ctx, provider, finalReq, req.Stream, req.OnChunk)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return &RunResult{RunID: runID, Iterations: iteration, Usage: totalUsage, Decision: decision, Cancelled: true}, nil
			}
			return nil, fmt.Errorf("final completion after max tool iterations: %w", err)
		}
		if resp.Usage != nil {
			totalUsage.PromptTokens += resp.Usage.PromptTokens
			totalUsage.CompletionTokens += resp.Usage.CompletionTokens
			totalUsage.TotalTokens += resp.Usage.TotalTokens
			totalUsage.ThinkingTokens += resp.Usage.ThinkingTokens
		}
		finalContent = resp.Content
		iteration++
	}

	costUSD := decision.CostEstimateUSD
	if l.costs != nil {
		l.costs.RecordActual(req.SenderID, decision.Model, totalUsage.PromptTokens, totalUsage.CompletionTokens, costUSD)
	}

	if err := l.sessions.Append(ctx, req.SessionKey, currentTurn); err != nil {
		slog.Warn("failed to persist user turn", "session", req.SessionKey, "error", err)
	}
	if err := l.sessions.Append(ctx, req.SessionKey, assemble.Message{Role: "assistant", Content: finalContent}); err != nil {
		slog.Warn("failed to persist assistant turn", "session", req.SessionKey, "error", err)
	}

	return &RunResult{
		Content: finalContent,
		RunID: runID,
		Iterations: iteration,
		Usage: totalUsage,
		Decision: decision,
	}, nil
}

// failoverBackoff sleeps an exponentially increasing, jittered delay before
// a mid-turn failover retry, bounded by the routing config's max_delay.
// Returns early if ctx is cancelled during the wait.
func (l *Loop) failoverBackoff(ctx context.Context, attempt int) {
	cfg := l.cfg.Routing
	base := float64(cfg.BaseDelay) * math.Pow(2, float64(attempt))
	if maxDelay := float64(cfg.MaxDelay); maxDelay > 0 && base > maxDelay {
		base = maxDelay
	}
	jitter := base * cfg.JitterFraction * (rand.Float64()*2 - 1)
	d := time.Duration(base + jitter)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
		case <-ctx.Done():
		case <-timer.C:
	}
}

func (l *Loop) callProvider(ctx context.Context, provider providers.Provider, req providers.ChatRequest, stream bool, onChunk func(providers.StreamChunk)) (*providers.ChatResponse, error) {
	if stream && onChunk != nil {
		return provider.ChatStream(ctx, req, onChunk)
	}
	return provider.Chat(ctx, req)
}

// dispatchTools runs every requested tool call concurrently (one errgroup
// goroutine per call, with no concurrency limit set), then returns results
// in the original call order so the
// resulting message sequence is deterministic.
func (l *Loop) dispatchTools(ctx context.Context, perm permissions.UserPermissions, calls []providers.ToolCall) []*tools.ToolResult {
	results := make([]*tools.ToolResult, len(calls))

	if len(calls) == 1 {
		tc := calls[0]
		results[0] = l.runOneTool(ctx, perm, tc)
		return results
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, tc := range calls {
		i, tc := i, tc
		g.Go(func() error {
			results[i] = l.runOneTool(gctx, perm, tc)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (l *Loop) runOneTool(ctx context.Context, perm permissions.UserPermissions, tc providers.ToolCall) *tools.ToolResult {
	if ctx.Err() != nil {
		return tools.ErrorResult(tc.ID, "cancelled: tool call skipped")
	}
	argsJSON, err := json.Marshal(tc.Arguments)
	if err != nil {
		return tools.ErrorResult(tc.ID, fmt.Sprintf("marshal tool arguments: %v", err))
	}
	slog.Info("tool dispatch", "agent", l.id, "tool", tc.Name, "args_len", len(argsJSON))
	start := time.Now()
	result := l.registry.Dispatch(ctx, perm, tc.ID, tc.Name, argsJSON)
	slog.Debug("tool dispatch complete", "agent", l.id, "tool", tc.Name, "duration", time.Since(start), "is_error", result.IsError)
	return result
}

func toProviderMessages(msgs []assemble.Message) []providers.Message {
	out := make([]providers.Message, len(msgs))
	for i, m := range msgs {
		out[i] = providers.Message{
			Role: m.Role,
			Content: m.Content,
			ToolCallID: m.ToolCallID,
			ToolCalls: toProviderToolCalls(m.ToolCalls),
		}
	}
	return out
}

func toProviderToolCalls(calls []assemble.ToolCall) []providers.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]providers.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = providers.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}

func toAssembleToolCalls(calls []providers.ToolCall) []assemble.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]assemble.ToolCall, len(calls))
	for i, c := range calls {
		out[i] = assemble.ToolCall{ID: c.ID, Name: c.Name, Arguments: c.Arguments}
	}
	return out
}
