// Package router implements the tiered router: selecting a
// (provider, model, tier) from task complexity, user permissions, cost
// budget, and rate limits, with escalation and failover.
package router

import (
	"fmt"
	"sort"
	"strings"

	"github.com/weave-logic-ai/clawft/internal/classify"
	"github.com/weave-logic-ai/clawft/internal/config"
	"github.com/weave-logic-ai/clawft/internal/costs"
	"github.com/weave-logic-ai/clawft/internal/permissions"
)

// ModelTier is a named group of provider/model pairs with an associated
// complexity range and cost, ordered cheapest to most expensive.
type ModelTier struct {
	Name string
	Models []string
	ComplexityMin float64
	ComplexityMax float64
	CostPer1kTokens float64
	MaxContextTokens int
	Rank int // index into the tiers sorted by CostPer1kTokens, cheapest = 0
}

func (t ModelTier) contains(complexity float64) bool {
	return complexity >= t.ComplexityMin && complexity <= t.ComplexityMax
}

// RoutingDecision is the router's output, consumed by the transport adapter.
type RoutingDecision struct {
	Provider string
	Model string
	Reason string
	Tier string
	CostEstimateUSD float64
	Escalated bool
	BudgetConstrained bool
	MaxTokens int
	ContextTokenLimit int
	// Err is set for terminal, non-dispatchable decisions (rate_limited,
	// budget_exhausted); Reason still carries the machine-readable kind.
	Err error
}

// Request is the subset of ChatRequest/permission/cost state the router
// needs; kept separate from pkg/protocol.ChatRequest so this package has no
// dependency on the wire-level type.
type Request struct {
	SenderID string
	ExplicitModel string // request.model, if the caller asked for one
	AssembledTokens int // tokens already in the assembled context
	RequestedMaxTokens int // request.max_tokens, if set (0 = unset)
}

// ProviderAvailable reports whether a provider has a configured API key at
// startup — used by the "preference_order" selection strategy.
type ProviderAvailable func(provider string) bool

// Router selects (provider, model, tier) 7-step decision
// order, re-entrant for failover.
type Router struct {
	tiers []ModelTier
	selectionStrategy string
	fallbackModel string
	maxEscalationTiers int
	providerAvailable ProviderAvailable
	costs *costs.Tracker
	rateLimiter *costs.RateLimiter
	roundRobin map[string]int // tier name -> next index, for round_robin strategy
}

// New builds a Router from RoutingConfig. providerAvailable reports which
// providers have a configured API key; models are namespaced
// "provider/model" and providerOf extracts the provider name from them.
func New(cfg config.RoutingConfig, providerAvailable ProviderAvailable, tracker *costs.Tracker, limiter *costs.RateLimiter) *Router {
	tiers := make([]ModelTier, 0, len(cfg.Tiers))
	for i, t := range cfg.Tiers {
		tiers = append(tiers, ModelTier{
			Name: t.Name,
			Models: t.Models,
			ComplexityMin: t.ComplexityMin,
			ComplexityMax: t.ComplexityMax,
			CostPer1kTokens: t.CostPer1kTokens,
			MaxContextTokens: t.MaxContextTokens,
			Rank: i,
		})
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i].CostPer1kTokens < tiers[j].CostPer1kTokens })
	for i := range tiers {
		tiers[i].Rank = i
	}
	return &Router{
		tiers: tiers,
		selectionStrategy: cfg.SelectionStrategy,
		fallbackModel: cfg.FallbackModel,
		maxEscalationTiers: cfg.Escalation.MaxEscalationTiers,
		providerAvailable: providerAvailable,
		costs: tracker,
		rateLimiter: limiter,
		roundRobin: map[string]int{},
	}
}

// Route implements the full 7-step decision order. excludeModels lists
// (provider,model) pairs already tried this turn (failover re-entry,
// "Failover").
func (r *Router) Route(req Request, profile classify.TaskProfile, perm permissions.UserPermissions, excludeModels map[string]bool) RoutingDecision {
	// 1. Rate-limit check.
	if !r.rateLimiter.TryConsume(req.SenderID, perm.RateLimit) {
		return RoutingDecision{Reason: "rate_limited", Err: fmt.Errorf("rate limit exceeded for sender %s", req.SenderID)}
	}

	// 2. Manual override.
	if perm.ModelOverride && req.ExplicitModel != "" {
		if r.modelAllowed(req.ExplicitModel, perm) {
			if tier, ok := r.tierForModel(req.ExplicitModel); ok && r.tierRankAllowed(tier, perm.MaxTier) {
				return r.finalize(tier, req.ExplicitModel, "manual_override", false, false, req, perm)
			}
		}
	}

	// 3. Filter allowed tiers.
	allowed := r.allowedTiers(perm.MaxTier)
	if len(allowed) == 0 {
		return RoutingDecision{Reason: "no_tier_allowed", Err: fmt.Errorf("no tier allowed for max_tier=%s", perm.MaxTier)}
	}

	// 4. Select candidate tier by complexity, with escalation fallback.
	candidate, escalated := r.selectTier(allowed, profile.Complexity, perm)
	if candidate == nil {
		return RoutingDecision{Reason: "no_candidate_tier", Err: fmt.Errorf("no candidate tier for complexity %.2f", profile.Complexity)}
	}

	// 5. Budget check, walking down to cheaper tiers.
	tier, budgetConstrained, ok := r.budgetWalk(*candidate, allowed, req, perm)
	if !ok {
		if r.fallbackModel != "" {
			if t, ok := r.tierForModel(r.fallbackModel); ok {
				return r.finalize(t, r.fallbackModel, "fallback_model", escalated, true, req, perm)
			}
		}
		return RoutingDecision{Reason: "budget_exhausted", BudgetConstrained: true, Err: fmt.Errorf("no tier fits budget for sender %s", req.SenderID)}
	}

	// 6. Select model inside the tier.
	model, ok := r.selectModel(tier, perm, excludeModels)
	if !ok {
		if r.fallbackModel != "" {
			if t, ok := r.tierForModel(r.fallbackModel); ok {
				return r.finalize(t, r.fallbackModel, "fallback_model", escalated, budgetConstrained, req, perm)
			}
		}
		return RoutingDecision{Reason: "no_model_available", Err: fmt.Errorf("no model available in tier %s", tier.Name)}
	}

	return r.finalize(tier, model, routeReason(escalated, budgetConstrained), escalated, budgetConstrained, req, perm)
}

func routeReason(escalated, budgetConstrained bool) string {
	switch {
		case escalated:
			return "escalated"
		case budgetConstrained:
			return "budget_constrained"
		default:
			return "tiered"
	}
}

// finalize applies step 7 (clamp request parameters) and returns the
// terminal dispatch decision.
func (r *Router) finalize(tier ModelTier, model, reason string, escalated, budgetConstrained bool, req Request, perm permissions.UserPermissions) RoutingDecision {
	maxTokens := perm.MaxOutputTokens
	if req.RequestedMaxTokens > 0 && req.RequestedMaxTokens < maxTokens {
		maxTokens = req.RequestedMaxTokens
	}
	contextLimit := tier.MaxContextTokens
	if perm.MaxContextTokens > 0 && perm.MaxContextTokens < contextLimit {
		contextLimit = perm.MaxContextTokens
	}
	estTokens := req.AssembledTokens + maxTokens
	costEstimate := tier.CostPer1kTokens * float64(estTokens) / 1000.0

	if r.costs != nil {
		r.costs.RecordEstimate(req.SenderID, tier.Name, estTokens)
	}

	provider := providerOf(model)
	return RoutingDecision{
		Provider: provider,
		Model: model,
		Reason: reason,
		Tier: tier.Name,
		CostEstimateUSD: costEstimate,
		Escalated: escalated,
		BudgetConstrained: budgetConstrained,
		MaxTokens: maxTokens,
		ContextTokenLimit: contextLimit,
	}
}

// providerOf extracts the provider name from a "provider/model" string,
// falling back to the whole string when there's no separator (teacher's
// model-naming convention, c.f. internal/providers).
func providerOf(model string) string {
	if idx := strings.IndexByte(model, '/'); idx >= 0 {
		return model[:idx]
	}
	return model
}

func (r *Router) allowedTiers(maxTier string) []ModelTier {
	maxRank := r.rankOf(maxTier)
	out := make([]ModelTier, 0, len(r.tiers))
	for _, t := range r.tiers {
		if t.Rank <= maxRank {
			out = append(out, t)
		}
	}
	return out
}

func (r *Router) rankOf(tierName string) int {
	for _, t := range r.tiers {
		if t.Name == tierName {
			return t.Rank
		}
	}
	if len(r.tiers) == 0 {
		return -1
	}
	return len(r.tiers) - 1 // unknown tier name: treat as "allow everything" rather than lock out
}

func (r *Router) tierRankAllowed(tier ModelTier, maxTier string) bool {
	return tier.Rank <= r.rankOf(maxTier)
}

func (r *Router) tierForModel(model string) (ModelTier, bool) {
	for _, t := range r.tiers {
		for _, m := range t.Models {
			if m == model {
				return t, true
			}
		}
	}
	return ModelTier{}, false
}

func (r *Router) modelAllowed(model string, perm permissions.UserPermissions) bool {
	for _, d := range perm.ModelDenylist {
		if permissions.MatchesModelGlob(d, model) {
			return false
		}
	}
	if len(perm.ModelAccess) == 0 {
		return true
	}
	for _, a := range perm.ModelAccess {
		if permissions.MatchesModelGlob(a, model) {
			return true
		}
	}
	return false
}

// selectTier picks the highest-quality (most expensive, i.e. highest Rank)
// allowed tier whose complexity_range contains profile.complexity. If none
// contains it, applies escalation (promote one tier above max_tier, capped)
// or falls back to the highest allowed tier.
func (r *Router) selectTier(allowed []ModelTier, complexity float64, perm permissions.UserPermissions) (*ModelTier, bool) {
	var best *ModelTier
	for i := range allowed {
		t := allowed[i]
		if !t.contains(complexity) {
			continue
		}
		if best == nil || t.Rank > best.Rank {
			best = &allowed[i]
		}
	}
	if best != nil {
		return best, false
	}

	if perm.EscalationAllowed && complexity > perm.EscalationThreshold {
		maxRank := allowed[len(allowed)-1].Rank
		for tiers := 1; tiers <= r.maxEscalationTiers; tiers++ {
			targetRank := maxRank + tiers
			for i := range r.tiers {
				if r.tiers[i].Rank == targetRank {
					t := r.tiers[i]
					return &t, true
				}
			}
		}
	}

	if len(allowed) == 0 {
		return nil, false
	}
	// Fall back to the highest allowed tier (degraded handling).
	highest := allowed[0]
	for _, t := range allowed {
		if t.Rank > highest.Rank {
			highest = t
		}
	}
	return &highest, false
}

// budgetWalk walks from candidate down to progressively cheaper allowed
// tiers until the estimated cost fits both daily and monthly remaining
// budget.
func (r *Router) budgetWalk(candidate ModelTier, allowed []ModelTier, req Request, perm permissions.UserPermissions) (ModelTier, bool, bool) {
	sorted := append([]ModelTier(nil), allowed...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	constrained := false
	started := false
	for _, t := range sorted {
		if !started {
			if t.Rank != candidate.Rank {
				continue
			}
			started = true
		}
		estTokens := req.AssembledTokens + perm.MaxOutputTokens
		estimate := t.CostPer1kTokens * float64(estTokens) / 1000.0
		overDaily := r.costs.CheckDailyBudget(req.SenderID, perm.CostBudgetDailyUSD, estimate)
		overMonthly := r.costs.CheckMonthlyBudget(req.SenderID, perm.CostBudgetMonthlyUSD, estimate)
		if !overDaily && !overMonthly {
			return t, constrained, true
		}
		constrained = true
	}
	return ModelTier{}, constrained, false
}

// selectModel picks a model inside tier per the configured selection
// strategy, excluding any already-tried (provider,model) pairs from a
// failover re-entry, and applying the model_access/model_denylist filters.
func (r *Router) selectModel(tier ModelTier, perm permissions.UserPermissions, excludeModels map[string]bool) (string, bool) {
	candidates := make([]string, 0, len(tier.Models))
	for _, m := range tier.Models {
		if !r.modelAllowed(m, perm) {
			continue
		}
		if excludeModels != nil && excludeModels[m] {
			continue
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return "", false
	}

	switch r.selectionStrategy {
		case "round_robin":
			idx := r.roundRobin[tier.Name] % len(candidates)
			r.roundRobin[tier.Name]++
			return candidates[idx], true
		case "lowest_cost":
			return candidates[0], true // tier.Models configured cheapest-first by convention
		case "random":
			// Deterministic "random": named seeded counter per tier, same shape
			// as round_robin, ("round_robin/random use named
			// seeded counters per tier to keep tests reproducible").
			idx := r.roundRobin["random:"+tier.Name] % len(candidates)
			r.roundRobin["random:"+tier.Name]++
			return candidates[idx], true
		default: // preference_order
			for _, m := range candidates {
				if r.providerAvailable == nil || r.providerAvailable(providerOf(m)) {
					return m, true
				}
			}
			return candidates[0], true
	}
}
