package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"

	"github.com/spf13/cobra"

	"github.com/weave-logic-ai/clawft/internal/config"
	"github.com/weave-logic-ai/clawft/pkg/protocol"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use: "doctor",
		Short: "Check system environment and configuration health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("clawft doctor")
	fmt.Printf(" Version: %s (protocol %d)\n", Version, protocol.ProtocolVersion)
	fmt.Printf(" OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf(" Go: %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf(" Config: %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (NOT FOUND, using defaults)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf(" Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println(" Providers:")
	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		fmt.Println(" (none configured)")
	}
	for _, name := range names {
		p := cfg.Providers[name]
		apiKey := os.Getenv(p.APIKeyEnv)
		status := "(not configured)"
		if apiKey != "" {
			status = fmt.Sprintf("key set via %s", p.APIKeyEnv)
		} else if p.APIKeyEnv != "" {
			status = fmt.Sprintf("MISSING env var %s", p.APIKeyEnv)
		}
		fmt.Printf(" %-16s %s\n", name+":", status)
	}

	fmt.Println()
	fmt.Println(" Routing tiers:")
	for _, tier := range cfg.Routing.Tiers {
		fmt.Printf(" %-12s models=%v complexity=[%.2f,%.2f]\n", tier.Name+":", tier.Models, tier.ComplexityMin, tier.ComplexityMax)
	}

	fmt.Println()
	fmt.Println(" External tools:")
	checkBinary("git")
	checkBinary("curl")

	fmt.Println()
	ws := config.ExpandHome(cfg.Agents.Defaults.Workspace)
	fmt.Printf(" Workspace: %s", ws)
	if _, err := os.Stat(ws); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf(" %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf(" %-12s %s\n", name+":", path)
	}
}
