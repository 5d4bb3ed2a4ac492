package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/lawdesk/kioskd/internal/config"
	"github.com/spf13/cobra"
)

var validateDump bool

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long:  `Validate the kioskd configuration file for syntax and semantic errors.`,
	RunE:  runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateDump, "dump", false, "Dump the effective configuration")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}

	fmt.Fprintf(os.Stdout, "✅ Configuration is valid: %s\n", configPath)

	if validateDump {
		dumpConfig(cfg)
	}

	return nil
}

// dumpConfig prints the effective configuration summary
func dumpConfig(cfg *config.Config) {
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Println()
	cyan.Println("EFFECTIVE CONFIGURATION")
	fmt.Println()

	fmt.Printf("Server:    %s:%d (metrics :%d)\n", cfg.Server.BindAddress, cfg.Server.HTTPPort, cfg.Server.MetricsPort)
	fmt.Printf("Storage:   %s\n", cfg.Storage.Type)
	if cfg.Storage.Type == "redis" {
		fmt.Printf("Redis:     %s:%d db=%d\n", cfg.Storage.Redis.Host, cfg.Storage.Redis.Port, cfg.Storage.Redis.DB)
	}
	fmt.Printf("Logging:   level=%s format=%s\n", cfg.Logging.Level, cfg.Logging.Format)
	fmt.Println()

	fmt.Printf("Quota:     %d free pages/day, %s per extra page\n", cfg.Quota.FreePagesPerDay, cfg.Quota.PricePerPage)
	fmt.Printf("Retention: %d days, sweep at %s\n", cfg.Quota.RetentionDays, cfg.Quota.SweepTime)
	fmt.Println()

	roleNames := make([]string, 0, len(cfg.Roles))
	for name := range cfg.Roles {
		roleNames = append(roleNames, name)
	}
	sort.Strings(roleNames)

	fmt.Println("Roles:")
	for _, name := range roleNames {
		role := cfg.Roles[name]
		fmt.Printf("  %-12s limit=%dm milestones=%v\n", name, role.LimitMinutes, role.Milestones)
	}
	fmt.Println()

	fmt.Printf("Roster:    %d member(s), cache %d/%s\n",
		len(cfg.Directory.Members), cfg.Directory.CacheSize, cfg.Directory.CacheTTL)
	for _, m := range cfg.Directory.Members {
		fmt.Printf("  %-10s %-25s role=%s\n", m.Registration, m.Name, m.Role)
	}
}
