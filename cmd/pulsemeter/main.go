// Package main provides the CLI entrypoint for pulsemeter.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pulsemeter-lab/pulsemeter/internal/config"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/rollup"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage"
	"github.com/pulsemeter-lab/pulsemeter/internal/core/storage/sqlite"
	"github.com/pulsemeter-lab/pulsemeter/internal/export"
	"github.com/pulsemeter-lab/pulsemeter/internal/platform"
	"github.com/pulsemeter-lab/pulsemeter/internal/projection"
	"github.com/pulsemeter-lab/pulsemeter/internal/recorder"
)

const defaultExportLimit = 96 // 15-minute slots in a day

var (
	configPath string

	statsSince string

	aggGranularity string
	aggLimit       int
	aggToday       bool

	exportFormat string
	exportOut    string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "pulsemeter",
		Short:         "Local keyboard and mouse activity recorder",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to configuration file")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newAggregatesCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newTimerCmd())

	return rootCmd
}

// loadConfig resolves --config, falling back to the default config path when
// a file exists there. Defaults plus environment apply either way.
func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		candidate := config.DefaultConfigPath()
		if _, err := os.Stat(candidate); err == nil {
			path = candidate
		}
	}
	return config.Load(path)
}

// openServices opens the store for the one-shot query commands. The caller
// must Close the store.
func openServices() (*sqlite.Store, *projection.Service, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := sqlite.Open(cfg.Database.Path, cfg.Database.BusyTimeout())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, projection.NewService(store, store, time.Local), nil
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Record input activity until interrupted",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}
}

func runRunCmd(_ *cobra.Command, _ []string) error {
	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("Loaded config", "database", cfg.Database.Path)

	// 2. Build the pipeline around the OS input hook
	rec, err := recorder.New(cfg, platform.NewSource())
	if err != nil {
		return err
	}

	// 3. Run until a signal arrives
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	if err := rec.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("Shutdown complete")
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show event counts",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&statsSince, "since", "", "window as a duration, e.g. 24h (default: all time)")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	store, svc, err := openServices()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	ctx := context.Background()
	counts := svc.TotalCounts(ctx)
	label := "all time"
	if statsSince != "" {
		window, err := time.ParseDuration(statsSince)
		if err != nil {
			return fmt.Errorf("invalid --since value: %w", err)
		}
		counts = svc.CountsSince(ctx, time.Now().Add(-window).Unix())
		label = "last " + statsSince
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Window:   %s\n", label)
	fmt.Fprintf(out, "Keyboard: %d\n", counts.Keyboard)
	fmt.Fprintf(out, "Mouse:    %d\n", counts.Mouse)
	fmt.Fprintf(out, "Score:    %d\n", counts.Score())
	return nil
}

func newAggregatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "aggregates",
		Short: "Show pre-aggregated activity buckets",
		Args:  cobra.NoArgs,
		RunE:  runAggregatesCmd,
	}
	cmd.Flags().StringVar(&aggGranularity, "granularity", string(rollup.Daily), granularityUsage())
	cmd.Flags().IntVar(&aggLimit, "limit", 30, "maximum buckets to show")
	cmd.Flags().BoolVar(&aggToday, "today", false, "restrict to today's buckets (15min/30min only)")
	return cmd
}

func runAggregatesCmd(cmd *cobra.Command, _ []string) error {
	g := rollup.Granularity(aggGranularity)
	if !g.Valid() {
		return fmt.Errorf("unknown granularity %q (%s)", aggGranularity, granularityUsage())
	}
	if aggToday && !g.Fine() {
		return fmt.Errorf("--today requires granularity %s or %s", rollup.FifteenMinute, rollup.ThirtyMinute)
	}

	store, svc, err := openServices()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	ctx := context.Background()
	var buckets []rollup.Bucket
	if aggToday {
		buckets = svc.TodayAggregates(ctx, g, aggLimit)
	} else {
		buckets = svc.Aggregates(ctx, g, aggLimit)
	}

	out := cmd.OutOrStdout()
	if len(buckets) == 0 {
		fmt.Fprintln(out, "No aggregates yet. Run `pulsemeter run` to record activity.")
		return nil
	}
	fmt.Fprintf(out, "%-22s %10s %10s %10s\n", "PERIOD", "KEYBOARD", "MOUSE", "SCORE")
	for _, b := range buckets {
		fmt.Fprintf(out, "%-22s %10d %10d %10d\n", b.Period, b.Keyboard, b.Mouse, b.Score)
	}
	return nil
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export today's 15-minute buckets",
		Args:  cobra.NoArgs,
		RunE:  runExportCmd,
	}
	cmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	cmd.Flags().StringVar(&exportOut, "out", "", "output file (default: stdout for csv, activity.xlsx for xlsx)")
	return cmd
}

func runExportCmd(cmd *cobra.Command, _ []string) error {
	store, svc, err := openServices()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	buckets := svc.TodayAggregates(context.Background(), rollup.FifteenMinute, defaultExportLimit)

	switch strings.ToLower(exportFormat) {
	case "csv":
		if exportOut == "" {
			return export.WriteCSV(cmd.OutOrStdout(), buckets)
		}
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close() //nolint:errcheck
		if err := export.WriteCSV(f, buckets); err != nil {
			return err
		}
		return f.Close()
	case "xlsx":
		path := exportOut
		if path == "" {
			path = "activity.xlsx"
		}
		if err := export.WriteXLSX(path, buckets); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d buckets)\n", path, len(buckets))
		return nil
	default:
		return fmt.Errorf("unknown format %q (csv or xlsx)", exportFormat)
	}
}

func newTimerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer",
		Short: "Manage countdown timers",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "add <minutes>",
			Short: "Add a timer",
			Args:  cobra.ExactArgs(1),
			RunE:  runTimerAddCmd,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List timers",
			Args:  cobra.NoArgs,
			RunE:  runTimerListCmd,
		},
		&cobra.Command{
			Use:   "rm <id>",
			Short: "Delete a timer",
			Args:  cobra.ExactArgs(1),
			RunE:  runTimerRmCmd,
		},
	)
	return cmd
}

func openTimers() (*sqlite.Store, *projection.TimerService, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := sqlite.Open(cfg.Database.Path, cfg.Database.BusyTimeout())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	return store, projection.NewTimerService(store), nil
}

func runTimerAddCmd(cmd *cobra.Command, args []string) error {
	minutes, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid minutes %q: %w", args[0], err)
	}

	store, timers, err := openTimers()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	id, err := timers.Add(context.Background(), minutes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added timer %d (%d min)\n", id, minutes)
	return nil
}

func runTimerListCmd(cmd *cobra.Command, _ []string) error {
	store, timers, err := openTimers()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	list, err := timers.List(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(list) == 0 {
		fmt.Fprintln(out, "No timers.")
		return nil
	}
	fmt.Fprintf(out, "%-6s %-8s %s\n", "ID", "MINUTES", "CREATED")
	for _, t := range list {
		fmt.Fprintf(out, "%-6d %-8d %s\n", t.ID, t.Minutes, time.Unix(t.CreatedAt, 0).Format(time.RFC3339))
	}
	return nil
}

func runTimerRmCmd(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timer id %q: %w", args[0], err)
	}

	store, timers, err := openTimers()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	if err := timers.Remove(context.Background(), id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("timer %d does not exist", id)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted timer %d\n", id)
	return nil
}

func granularityUsage() string {
	names := make([]string, 0, len(rollup.All()))
	for _, g := range rollup.All() {
		names = append(names, string(g))
	}
	return "one of " + strings.Join(names, ", ")
}
