package cmd

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/weave-logic-ai/clawft/internal/agent"
	"github.com/weave-logic-ai/clawft/internal/config"
	"github.com/weave-logic-ai/clawft/internal/costs"
	"github.com/weave-logic-ai/clawft/internal/permissions"
	"github.com/weave-logic-ai/clawft/internal/providers"
	"github.com/weave-logic-ai/clawft/internal/router"
	"github.com/weave-logic-ai/clawft/internal/security"
	"github.com/weave-logic-ai/clawft/internal/sessions"
	"github.com/weave-logic-ai/clawft/internal/store"
	"github.com/weave-logic-ai/clawft/internal/tools"
)

func chatCmd() *cobra.Command {
	var (
		agentName string
		message string
		sessionKey string
	)

	cmd := &cobra.Command{
		Use: "chat",
		Short: "Chat with an agent interactively or send a one-shot message",
		Long: `Chat with an agent through the local CLI channel.

		Examples:
		clawft chat # Interactive REPL
		clawft chat --name coder # Chat with agent "coder"
		clawft chat -m "What time is it?" # One-shot message
		clawft chat -s my-session # Continue a session`,
		Run: func(cmd *cobra.Command, args []string) {
			runChat(agentName, message, sessionKey)
		},
	}

	cmd.Flags().StringVarP(&agentName, "name", "n", "default", "agent id")
	cmd.Flags().StringVarP(&message, "message", "m", "", "one-shot message (omit for interactive mode)")
	cmd.Flags().StringVarP(&sessionKey, "session", "s", "", "session key (default: auto-generated)")

	return cmd
}

func runChat(agentName, message, sessionKey string) {
	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if sessionKey == "" {
		sessionKey = sessions.BuildSessionKey(agentName, "cli", sessions.PeerDirect, "local")
	}

	loop := bootstrapChatLoop(cfg, agentName)

	chatFn := func(msg string) (string, error) {
		result, err := loop.Run(context.Background(), agent.RunRequest{
			SessionKey: sessionKey,
			SenderID: permissions.CLILocalSenderID,
			Channel: "cli",
			ChatID: "local",
			Content: msg,
		})
		if err != nil {
			return "", err
		}
		if result.Cancelled {
			return "[cancelled]", nil
		}
		return result.Content, nil
	}

	if message != "" {
		resp, err := chatFn(message)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(resp)
		return
	}

	fmt.Fprintf(os.Stderr, "\nclawft — Interactive Chat\n")
	fmt.Fprintf(os.Stderr, "Agent: %s\n", agentName)
	fmt.Fprintf(os.Stderr, "Session: %s\n", sessionKey)
	fmt.Fprintf(os.Stderr, "Type \"exit\" to quit, \"/new\" for new session\n\n")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		select {
			case <-ctx.Done():
				fmt.Fprintln(os.Stderr, "\nGoodbye!")
				return
			default:
		}

		fmt.Fprint(os.Stderr, "You: ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Fprintln(os.Stderr, "Goodbye!")
			return
		}
		if input == "/new" {
			sessionKey = sessions.BuildSessionKey(agentName, "cli", sessions.PeerDirect, uuid.NewString()[:8])
			fmt.Fprintf(os.Stderr, "New session: %s\n\n", sessionKey)
			continue
		}

		resp, err := chatFn(input)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
			continue
		}
		fmt.Printf("\n%s\n\n", resp)
	}
}

// bootstrapChatLoop wires a minimal standalone Agent Loop for CLI usage:
// every provider configured in cfg.Providers, the exec_shell/web_fetch
// tools behind their security policies, an in-memory session store (no
// sqlite path needed for a throwaway REPL), and the cost tracker/rate
// limiter that feed the router's budget checks.
func bootstrapChatLoop(cfg *config.Config, agentName string) *agent.Loop {
	workspace := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	if workspace == "" {
		workspace = "."
	}
	os.MkdirAll(workspace, 0755)

	providerInstances := map[string]providers.Provider{}
	for name, pc := range cfg.Providers {
		apiKey := os.Getenv(pc.APIKeyEnv)
		if apiKey == "" {
			slog.Warn("provider configured without an API key", "provider", name, "env", pc.APIKeyEnv)
			continue
		}
		switch name {
			case "anthropic":
				providerInstances[name] = providers.NewAnthropicProvider(apiKey, pc.APIBase, "", pc.ExtraHeaders, 0)
			default:
				providerInstances[name] = providers.NewOpenAIProvider(name, apiKey, pc.APIBase, "", pc.ExtraHeaders)
		}
	}
	resolveProvider := func(name string) (providers.Provider, bool) {
		p, ok := providerInstances[name]
		return p, ok
	}
	providerAvailable := func(name string) bool {
		_, ok := providerInstances[name]
		return ok
	}

	costsTracker := costs.NewTracker(cfg.Costs.StatePath, cfg.Costs.ResetHourUTC, cfg.Costs.GlobalDailyLimitUSD)
	if err := costsTracker.LoadAll(); err != nil {
		slog.Warn("failed to load cost state", "error", err)
	}
	rateLimiter := costs.NewRateLimiter(0)

	r := router.New(cfg.Routing, providerAvailable, costsTracker, rateLimiter)

	cmdPolicy := security.NewCommandPolicy(
		security.CommandPolicyMode(cfg.Tools.CommandPolicy.Mode),
		cfg.Tools.CommandPolicy.Allowlist,
		cfg.Tools.CommandPolicy.Denylist,
	)
	urlPolicy := security.NewUrlPolicy(
		cfg.Tools.URLPolicy.Enabled,
		cfg.Tools.URLPolicy.AllowedDomains,
		cfg.Tools.URLPolicy.BlockedDomains,
		cfg.Tools.URLPolicy.AllowPrivate,
	)

	registry := tools.NewRegistry()
	registry.Register(tools.NewExecTool(workspace, cfg.Tools.RestrictToWorkspace, cmdPolicy, cfg.Tools.Exec.Timeout))
	registry.Register(tools.NewWebFetchTool(0, urlPolicy))

	sessStore := store.NewMemorySessionStore()

	return agent.NewLoop(agent.LoopConfig{
		ID: agentName,
		Config: cfg,
		ResolveProvider: resolveProvider,
		Router: r,
		Registry: registry,
		ToolPolicy: tools.NewPolicyEngine(),
		Sessions: sessStore,
		Costs: costsTracker,
		SystemPrompt: fmt.Sprintf("You are %s, an AI agent with access to shell and web-fetch tools.", agentName),
	})
}
