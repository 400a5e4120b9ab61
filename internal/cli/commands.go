// Package cli defines the wheelbot command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alanyoungcy/wheelbot/internal/app"
	"github.com/alanyoungcy/wheelbot/internal/config"
	"github.com/alanyoungcy/wheelbot/internal/markethours"
	"github.com/alanyoungcy/wheelbot/internal/scheduler"
)

const defaultConfigPath = "config.toml"

type rootFlags struct {
	configPath    string
	continuous    bool
	checkInterval int
	maxRuns       int
	logLevel      string
	logToFile     bool
	dryRun        bool
	freshStart    bool
	stratLog      bool
}

// NewRootCmd creates the root command. Without subcommands it runs the
// strategy once, or continuously with --continuous.
func NewRootCmd() *cobra.Command {
	f := &rootFlags{}

	rootCmd := &cobra.Command{
		Use:   "wheelbot",
		Short: "Options wheel strategy bot",
		Long: `wheelbot sells cash-secured puts on a watchlist, sells covered calls on
assigned shares, and repeats. By default it runs one pass and exits; with
--continuous it runs up to four passes per trading day during market hours.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, f)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&f.configPath, "config", defaultConfigPath, "Configuration file path (skipped if the default is missing)")
	pf.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")

	fl := rootCmd.Flags()
	fl.BoolVar(&f.continuous, "continuous", false, "Run continuously, executing on a schedule during market hours")
	fl.IntVar(&f.checkInterval, "check-interval", 0, "Minutes between scheduler checks")
	fl.IntVar(&f.maxRuns, "max-runs-per-day", 0, "Executions per trading day (1-4)")
	fl.BoolVar(&f.logToFile, "log-to-file", false, "Also write logs to the journal directory")
	fl.BoolVar(&f.dryRun, "dry-run", false, "Log orders instead of submitting them")
	fl.BoolVar(&f.freshStart, "fresh-start", false, "Liquidate all positions before the first pass")
	fl.BoolVar(&f.stratLog, "strat-log", false, "Write a JSON strategy journal for every pass")

	rootCmd.AddCommand(newMarketHoursCmd(f))
	rootCmd.AddCommand(newTestNotifyCmd(f))
	return rootCmd
}

// configPath returns the --config value, or "" when the default file is
// absent so defaults and the environment alone can drive the bot.
func configPath(cmd *cobra.Command, f *rootFlags) string {
	if !cmd.Flags().Changed("config") {
		if _, err := os.Stat(f.configPath); errors.Is(err, os.ErrNotExist) {
			return ""
		}
	}
	return f.configPath
}

// loadConfig reads the file, applies flag overrides and validates.
func loadConfig(cmd *cobra.Command, f *rootFlags) (*config.Config, error) {
	cfg, err := config.Load(configPath(cmd, f))
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, f, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyFlags overrides cfg with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, f *rootFlags, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("continuous") {
		cfg.Scheduler.Continuous = f.continuous
	}
	if changed("check-interval") {
		cfg.Scheduler.CheckIntervalMinutes = f.checkInterval
	}
	if changed("max-runs-per-day") {
		cfg.Scheduler.MaxRunsPerDay = f.maxRuns
	}
	if changed("dry-run") {
		cfg.Strategy.DryRun = f.dryRun
	}
	if changed("fresh-start") {
		cfg.Strategy.FreshStart = f.freshStart
	}
	if changed("strat-log") {
		cfg.Journal.Enabled = f.stratLog
	}
}

func run(ctx context.Context, cfg *config.Config, f *rootFlags) error {
	logDir := ""
	if f.logToFile {
		logDir = cfg.Journal.Dir
	}
	logger, closeLog, err := newLogger(cfg.LogLevel, logDir, time.Now())
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("wheelbot starting",
		slog.String("mode", cfg.Mode),
		slog.Any("config", config.RedactedConfig(cfg)),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("application exited with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("wheelbot stopped")
	return nil
}

// newMarketHoursCmd prints the exchange clock status.
func newMarketHoursCmd(f *rootFlags) *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "market-hours",
		Short: "Show market hours status and the execution schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd, f))
			if err != nil {
				return err
			}
			clock, err := markethours.NewClock(cfg.Closures())
			if err != nil {
				return err
			}
			now := time.Now()
			if at != "" {
				now, err = time.ParseInLocation("2006-01-02 15:04", at, clock.Location())
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			printMarketHours(cmd.OutOrStdout(), clock, now, cfg.Scheduler.MaxRunsPerDay)
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", `Evaluate at this exchange time ("2006-01-02 15:04")`)
	return cmd
}

func printMarketHours(w io.Writer, clock *markethours.Clock, now time.Time, maxRuns int) {
	st := clock.Status(now)
	fmt.Fprintf(w, "Time (ET):          %s\n", st.Now.Format("2006-01-02 15:04:05 MST (Monday)"))
	fmt.Fprintf(w, "Trading day:        %t\n", st.IsTradingDay)
	fmt.Fprintf(w, "Phase:              %s\n", st.Phase)
	fmt.Fprintf(w, "Market open:        %t\n", st.IsMarketOpen)
	fmt.Fprintf(w, "Can trade options:  %t\n", st.CanTradeOptions)
	if !st.IsMarketOpen {
		fmt.Fprintf(w, "Next open:          %s\n", st.NextOpen.Format("2006-01-02 15:04 MST"))
		fmt.Fprintf(w, "Time until open:    %s\n", st.UntilOpen.Round(time.Minute))
	}
	fmt.Fprintf(w, "Execution hours:    %v (max %d runs/day)\n", scheduler.TargetHours(maxRuns), maxRuns)
}

// newTestNotifyCmd sends a test message through every configured sender.
func newTestNotifyCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "test-notify",
		Short: "Send a test notification to the configured channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath(cmd, f))
			if err != nil {
				return err
			}
			cfg.Notify.Enabled = true
			logger, closeLog, err := newLogger(cfg.LogLevel, "", time.Now())
			if err != nil {
				return err
			}
			defer closeLog()

			n := app.NewNotifier(cfg, logger)
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := n.NotifyAll(ctx, "Test notification", "wheelbot notifications are working."); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Test notification sent.")
			return nil
		},
	}
}
