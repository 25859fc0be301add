package config

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/titanous/json5"
)

// Default returns the built-in configuration used when no config file is
// present.
func Default() *Config {
	return &Config{
		Agents: AgentsConfig{Defaults: AgentDefaults{
			Model: "",
			MaxTokens: 4096,
			Temperature: 0.7,
			MaxToolIterations: 8,
			MemoryWindow: 20,
			Workspace: ".",
		}},
		Routing: RoutingConfig{
			Mode: "tiered",
			Tiers: []TierConfig{
				{Name: "free", Models: []string{}, ComplexityMin: 0.0, ComplexityMax: 0.3, CostPer1kTokens: 0.0, MaxContextTokens: 8000},
				{Name: "standard", Models: []string{}, ComplexityMin: 0.0, ComplexityMax: 0.6, CostPer1kTokens: 0.001, MaxContextTokens: 32000},
				{Name: "premium", Models: []string{}, ComplexityMin: 0.3, ComplexityMax: 1.0, CostPer1kTokens: 0.01, MaxContextTokens: 128000},
			},
			SelectionStrategy: "preference_order",
			Escalation: EscalationConfig{MaxEscalationTiers: 1},
			MaxRetries: 3,
			BaseDelay: time.Second,
			MaxDelay: 30 * time.Second,
			JitterFraction: 0.25,
		},
		Tools: ToolsConfig{
			RestrictToWorkspace: true,
			Exec: ExecConfig{Timeout: 60 * time.Second},
			CommandPolicy: CommandPolicyConfig{
				Mode: "allowlist",
				Allowlist: DefaultAllowlist(),
			},
			URLPolicy: URLPolicyConfig{Enabled: true},
		},
		Providers: map[string]ProviderConfig{},
		Channels: map[string]ChannelConfig{},
		Permissions: PermissionsConfig{
			Levels: map[string]PermissionOverride{},
			Channels: map[string]PermissionOverride{},
			Users: map[string]PermissionOverride{},
		},
		Costs: CostsConfig{
			ResetHourUTC: 0,
			PersistInterval: 30 * time.Second,
			StatePath: "costs.json",
		},
	}
}

// DefaultAllowlist is the default read-only command basename set used by
// an allowlist-mode CommandPolicy.
func DefaultAllowlist() []string {
	return []string{
		"echo", "cat", "ls", "pwd", "head", "tail", "wc", "grep", "find",
		"sort", "uniq", "diff", "date", "env", "true", "false", "test",
	}
}

// Load reads a JSON5 config file, applies env-var overrides, and fills in
// defaults for anything unset. Returns Default() unmodified if path doesn't
// exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	raw := map[string]interface{}{}
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	normalized := normalizeKeys(raw)

	normalizedData, err := json.Marshal(normalized)
	if err != nil {
		return nil, fmt.Errorf("re-marshal config %s: %w", path, err)
	}
	if err := json.Unmarshal(normalizedData, cfg); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.PassThrough = raw

	applyEnvOverrides(cfg)
	return cfg, nil
}

// normalizeKeys accepts both snake_case and camelCase keys by rewriting
// every map key that contains an upper-case letter from camelCase to
// snake_case (the form the struct tags above use). It recurses into every
// nested map and list, so keys inside free-form maps (users, providers,
// extra_headers, ...) are rewritten too; keys with no upper-case letter are
// left unchanged.
func normalizeKeys(v interface{}) interface{} {
	switch val := v.(type) {
		case map[string]interface{}:
			out := make(map[string]interface{}, len(val))
			for k, sub := range val {
				out[camelToSnake(k)] = normalizeKeys(sub)
			}
			return out
		case []interface{}:
			out := make([]interface{}, len(val))
			for i, sub := range val {
				out[i] = normalizeKeys(sub)
			}
			return out
		default:
			return v
	}
}

func camelToSnake(s string) string {
	if !strings.ContainsAny(s, "ABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		return s
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r - 'A' + 'a')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// applyEnvOverrides layers CLAWFT_* environment variables over the parsed
// config. Provider API keys are intentionally env-only (ProviderConfig
// carries only the env var *name*, never a secret) — this mirrors the
// teacher's secrets-from-env-only convention.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLAWFT_ROUTING_FALLBACK_MODEL"); v != "" {
		cfg.Routing.FallbackModel = v
	}
	if v := os.Getenv("CLAWFT_ROUTING_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Routing.MaxRetries = n
		}
	}
	if v := os.Getenv("CLAWFT_COSTS_GLOBAL_DAILY_LIMIT_USD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Costs.GlobalDailyLimitUSD = f
		}
	}
	if v := os.Getenv("CLAWFT_TOOLS_URL_POLICY_ALLOW_PRIVATE"); v != "" {
		cfg.Tools.URLPolicy.AllowPrivate = v == "1" || v == "true"
	}
	if v := os.Getenv("CLAWFT_CONFIG_WORKSPACE"); v != "" {
		cfg.Agents.Defaults.Workspace = v
	}
}

// Save writes cfg back to path as indented JSON, 0600-permissioned since it
// may carry channel allowlists and custom permission data.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", " ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// Hash returns a stable content hash of cfg, used to detect whether a
// reload actually changed anything before swapping the snapshot.
func Hash(cfg *Config) (string, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}

// ExpandHome expands a leading "~" in path to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Watch reloads the config file on change, replacing the snapshot returned
// by Load with an atomically-swapped new one. onChange is invoked with the new snapshot; callers are
// expected to publish it via an atomic.Pointer[Config] or equivalent.
func Watch(path string, onChange func(*Config)) (func() error, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch config dir %s: %w", dir, err)
	}

	go func() {
		for {
			select {
				case ev, ok := <-watcher.Events:
					if !ok {
						return
					}
					if filepath.Clean(ev.Name) != filepath.Clean(path) {
						continue
					}
					if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					cfg, err := Load(path)
					if err != nil {
						slog.Warn("config reload failed, keeping previous snapshot", "path", path, "error", err)
						continue
					}
					onChange(cfg)
				case err, ok := <-watcher.Errors:
					if !ok {
						return
					}
					slog.Warn("config watcher error", "error", err)
			}
		}
	}()

	return watcher.Close, nil
}
