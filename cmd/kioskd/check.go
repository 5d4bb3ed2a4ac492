package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/fatih/color"
	"github.com/lawdesk/kioskd/internal/config"
	"github.com/lawdesk/kioskd/internal/session"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	checkUsedPages int64
	checkRole      string
	checkElapsed   string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check billing and session math interactively",
	Long:  `Check what kioskd would charge or report, without touching live state.`,
}

var checkQuotaCmd = &cobra.Command{
	Use:   "quota [flags] PAGES",
	Short: "Check the billing split for a print request",
	Long:  `Check how a print request would split into free and billed pages.`,
	Example: `  kioskd -c config.yaml check quota 25
  kioskd check quota --used 15 10`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckQuota,
}

var checkSessionCmd = &cobra.Command{
	Use:   "session [flags]",
	Short: "Check the session countdown at a given elapsed time",
	Long:  `Check elapsed/remaining formatting and pending notifications for a role.`,
	Example: `  kioskd check session --role primary --elapsed 95m
  kioskd check session --role assistant --elapsed 2h5m`,
	RunE: runCheckSession,
}

func init() {
	checkQuotaCmd.Flags().Int64Var(&checkUsedPages, "used", 0, "Pages already consumed today")

	checkSessionCmd.Flags().StringVar(&checkRole, "role", "primary", "Role to simulate")
	checkSessionCmd.Flags().StringVar(&checkElapsed, "elapsed", "0s", "Elapsed session time (Go duration)")

	checkCmd.AddCommand(checkQuotaCmd)
	checkCmd.AddCommand(checkSessionCmd)
	rootCmd.AddCommand(checkCmd)
}

func runCheckQuota(cmd *cobra.Command, args []string) error {
	requested, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid page count: %s", args[0])
	}
	if requested < 0 {
		return fmt.Errorf("page count must not be negative: %d", requested)
	}
	if checkUsedPages < 0 {
		return fmt.Errorf("used pages must not be negative: %d", checkUsedPages)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	freeRemaining := cfg.Quota.FreePagesPerDay - checkUsedPages
	if freeRemaining < 0 {
		freeRemaining = 0
	}

	free := requested
	if free > freeRemaining {
		free = freeRemaining
	}
	billed := requested - free
	cost := decimal.NewFromInt(billed).Mul(cfg.Quota.Price()).Round(2)

	printQuotaResult(cfg, requested, free, billed, cost)

	return nil
}

func runCheckSession(cmd *cobra.Command, args []string) error {
	elapsed, err := time.ParseDuration(checkElapsed)
	if err != nil {
		return fmt.Errorf("invalid elapsed duration: %s", checkElapsed)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	limits, ok := cfg.Roles[checkRole]
	if !ok {
		return fmt.Errorf("unknown role: %s", checkRole)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	// Replay the session against a fixed clock.
	clock := &session.TestClock{CurrentTime: time.Now()}
	store := session.NewStore(clock, logger)

	sess, err := store.Create(session.Profile{
		Registration: "CHECK",
		Name:         "check",
		Role:         checkRole,
	}, limits.LimitMinutes, limits.Milestones)
	if err != nil {
		return err
	}

	clock.Advance(elapsed)

	// Drain the notification backlog one poll at a time, like a kiosk
	// polling repeatedly.
	var notifications []string
	status := session.Poll(sess, clock.Now())
	for status.Notification != "" {
		notifications = append(notifications, status.Notification)
		status = session.Poll(sess, clock.Now())
	}

	printSessionResult(checkRole, limits, status, notifications)

	return nil
}

// printQuotaResult prints the billing split with colors
func printQuotaResult(cfg *config.Config, requested, free, billed int64, cost decimal.Decimal) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("PRINT BILLING CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Daily free quota: %d pages\n", cfg.Quota.FreePagesPerDay)
	fmt.Printf("Already used:     %d pages\n", checkUsedPages)
	fmt.Printf("Requested:        %d pages\n", requested)
	fmt.Println()

	green.Printf("Free:   %d pages\n", free)
	if billed > 0 {
		yellow.Printf("Billed: %d pages × %s = R$ %s\n", billed, cfg.Quota.PricePerPage, cost.StringFixed(2))
	} else {
		fmt.Println("Billed: 0 pages")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// printSessionResult prints the session countdown with colors
func printSessionResult(role string, limits config.RoleLimits, status session.Status, notifications []string) {
	cyan := color.New(color.FgCyan, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("SESSION COUNTDOWN CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	fmt.Printf("Role:      %s (limit %d minutes)\n", role, limits.LimitMinutes)
	fmt.Printf("Elapsed:   %s\n", status.Elapsed)
	fmt.Printf("Remaining: %s\n", status.Remaining)
	fmt.Println()

	if status.ForcedLogout {
		red.Println("Forced logout: the time budget is exhausted")
	} else if len(notifications) > 0 {
		yellow.Printf("Notifications due (%d):\n", len(notifications))
		for _, n := range notifications {
			fmt.Printf("  - %s\n", n)
		}
	} else {
		fmt.Println("No notifications due")
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}
