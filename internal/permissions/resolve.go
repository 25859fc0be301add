package permissions

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/weave-logic-ai/clawft/internal/config"
)

// CLILocalSenderID is the sender_id the CLI channel always uses → level 2 unless explicitly
// overridden").
const CLILocalSenderID = "local"

// Resolve derives the effective UserPermissions for (senderID, channel) by
// merging, in order (later wins at leaf): built-in level default, global
// config permissions.<level>, permissions.channels.<channel>,
// permissions.users.<sender_id>. Pure and side-effect-free — called once at
// the start of each turn.
func Resolve(cfg *config.Config, senderID, channel string) UserPermissions {
	level := assignLevel(cfg, senderID, channel)
	eff := defaultsForLevel(level)

	if ov, ok := cfg.Permissions.Levels[strconv.Itoa(int(level))]; ok {
		applyOverride(&eff, ov)
	}
	// Workspace-level config has no separate representation here beyond the
	// global config snapshot itself — clawft runs single-workspace per
	// process, so step 3 of merge order is a no-op identity
	// layer (there is nothing more specific than the global config until a
	// channel override is applied).
	if ov, ok := cfg.Permissions.Channels[channel]; ok {
		applyOverride(&eff, ov)
	}
	if ov, ok := cfg.Permissions.Users[senderID]; ok {
		applyOverride(&eff, ov)
	}

	eff.ToolAccess = sanitizeGlobs(eff.ToolAccess, senderID)
	return eff
}

// assignLevel implements level-assignment rules, evaluated
// before any field-override merging.
func assignLevel(cfg *config.Config, senderID, channel string) Level {
	if senderID == CLILocalSenderID {
		if ov, ok := cfg.Permissions.Users[senderID]; ok && ov.Level != nil {
			return Level(*ov.Level)
		}
		return LevelAdmin
	}

	if ov, ok := cfg.Permissions.Users[senderID]; ok && ov.Level != nil {
		return Level(*ov.Level)
	}

	ch, hasChannel := cfg.Channels[channel]
	if hasChannel {
		if len(ch.AllowFrom) == 0 || contains(ch.AllowFrom, senderID) {
			if ch.Level != 0 {
				return Level(ch.Level)
			}
			return LevelUser
		}
	}

	return LevelZeroTrust
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

// applyOverride merges a PermissionOverride into eff: scalars overwrite,
// sequences replace (never concatenate), maps deep-merge. Unset (nil)
// fields leave eff unchanged.
func applyOverride(eff *UserPermissions, ov config.PermissionOverride) {
	if ov.Level != nil {
		eff.Level = Level(*ov.Level)
	}
	if ov.MaxTier != nil {
		eff.MaxTier = *ov.MaxTier
	}
	if ov.ModelAccess != nil {
		eff.ModelAccess = ov.ModelAccess
	}
	if ov.ModelDenylist != nil {
		eff.ModelDenylist = ov.ModelDenylist
	}
	if ov.ToolAccess != nil {
		eff.ToolAccess = ov.ToolAccess
	}
	if ov.ToolDenylist != nil {
		eff.ToolDenylist = ov.ToolDenylist
	}
	if ov.MaxContextTokens != nil {
		eff.MaxContextTokens = *ov.MaxContextTokens
	}
	if ov.MaxOutputTokens != nil {
		eff.MaxOutputTokens = *ov.MaxOutputTokens
	}
	if ov.RateLimit != nil {
		eff.RateLimit = *ov.RateLimit
	}
	if ov.StreamingAllowed != nil {
		eff.StreamingAllowed = *ov.StreamingAllowed
	}
	if ov.EscalationAllowed != nil {
		eff.EscalationAllowed = *ov.EscalationAllowed
	}
	if ov.EscalationThreshold != nil {
		eff.EscalationThreshold = *ov.EscalationThreshold
	}
	if ov.ModelOverride != nil {
		eff.ModelOverride = *ov.ModelOverride
	}
	if ov.CostBudgetDailyUSD != nil {
		eff.CostBudgetDailyUSD = *ov.CostBudgetDailyUSD
	}
	if ov.CostBudgetMonthlyUSD != nil {
		eff.CostBudgetMonthlyUSD = *ov.CostBudgetMonthlyUSD
	}
	if ov.CustomPermissions != nil {
		if eff.CustomPermissions == nil {
			eff.CustomPermissions = map[string]interface{}{}
		}
		for k, v := range ov.CustomPermissions {
			eff.CustomPermissions[k] = v
		}
	}
}

// sanitizeGlobs implements resolution of the tool_access
// glob Open Question: a single leading or trailing "*" is a valid
// prefix/suffix glob (e.g. "mcp_server__*", "*__delete"); anything more
// exotic (more than one "*", or "*" in the middle flanked by other
// wildcards) is rejected as ambiguous and dropped entirely, the safe
// failure mode for a private-by-default allowlist.
func sanitizeGlobs(entries []string, senderID string) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e == "*" || strings.Count(e, "*") <= 1 {
			out = append(out, e)
			continue
		}
		slog.Warn("ambiguous tool_access glob pattern dropped", "pattern", e, "sender_id", senderID)
	}
	return out
}

// MatchesToolAccess reports whether name is permitted by the tool_access
// list: "*" allows everything; entries are matched exactly, or as a
// prefix/suffix glob when they contain exactly one "*".
func MatchesToolAccess(toolAccess []string, name string) bool {
	for _, pattern := range toolAccess {
		if pattern == "*" {
			return true
		}
		if matchGlob(pattern, name) {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) bool {
	if pattern == name {
		return true
	}
	if strings.Count(pattern, "*") != 1 {
		return false
	}
	idx := strings.IndexByte(pattern, '*')
	prefix, suffix := pattern[:idx], pattern[idx+1:]
	return strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix)
}

// MatchesModelGlob reports whether model matches a model_access/
// model_denylist entry, supporting "*.suffix"-style wildcard matching in
// addition to exact and full-wildcard "*" matches.
func MatchesModelGlob(pattern, model string) bool {
	if pattern == "*" || pattern == model {
		return true
	}
	return matchGlob(pattern, model)
}
