package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"foodvote/internal/bank/source"
	"foodvote/internal/builder"
	"foodvote/internal/menu"
	"foodvote/internal/platform/config"
	"foodvote/internal/platform/logger"
)

type buildFlags struct {
	daysBefore  int
	daysAfter   int
	out         string
	compress    bool
	dryRun      bool
	jsonOutput  bool
	concurrency int
}

// newRootCmd builds the command tree. Output goes to cmd.OutOrStdout so
// tests can capture it.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "foodvote-builder",
		Short:         "Grow and publish the food registry snapshot",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newBuildCmd(), newInspectCmd())
	return root
}

func newBuildCmd() *cobra.Command {
	var f buildFlags
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Fetch dining menus around today and merge them into the registry",
		Long: `Loads the current snapshot (or starts a new registry), fetches every
date in the window concurrently, merges them in date order and publishes
the new snapshot. Food IDs already assigned never change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("days-before") {
				f.daysBefore = cfg.Menu.DaysBefore
			}
			if !cmd.Flags().Changed("days-after") {
				f.daysAfter = cfg.Menu.DaysAfter
			}
			log := logger.NewWithWriter(cmd.ErrOrStderr(), cfg.Log)
			return runBuild(cmd, cfg, f, log)
		},
	}
	cmd.Flags().IntVar(&f.daysBefore, "days-before", 7, "days before today to fetch (default from MENU_DAYS_BEFORE)")
	cmd.Flags().IntVar(&f.daysAfter, "days-after", 7, "days after today to fetch (default from MENU_DAYS_AFTER)")
	cmd.Flags().StringVar(&f.out, "out", "", "write the snapshot to this file instead of the configured bank source")
	cmd.Flags().BoolVar(&f.compress, "compress", false, "zstd-compress the snapshot (default from BANK_COMPRESS)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "build and validate without publishing")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "print the report as JSON")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 4, "dates fetched in parallel")
	return cmd
}

func runBuild(cmd *cobra.Command, cfg config.Config, f buildFlags, log *slog.Logger) error {
	store, err := targetStore(cfg.Bank, f.out)
	if err != nil {
		return err
	}

	opts := []menu.Option{
		menu.WithRateLimit(cfg.Menu.RatePerSecond, cfg.Menu.Burst),
		menu.WithLogger(log),
	}
	if cfg.Menu.Endpoint != "" {
		opts = append(opts, menu.WithEndpoint(cfg.Menu.Endpoint))
	}
	feed := menu.NewClient(cfg.Menu.Timeout, opts...)

	b, err := builder.New(feed, store,
		builder.WithLogger(log),
		builder.WithConcurrency(f.concurrency),
	)
	if err != nil {
		return err
	}

	report, err := b.Run(cmd.Context(), builder.Options{
		DaysBefore: f.daysBefore,
		DaysAfter:  f.daysAfter,
		Compress:   f.compress || cfg.Bank.Compress,
		DryRun:     f.dryRun,
	})
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	if f.jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(cmd.OutOrStdout(), store.Describe(), report)
	return nil
}

func targetStore(cfg config.BankConfig, out string) (source.Store, error) {
	if out != "" {
		return source.NewFile(out), nil
	}
	switch cfg.Source {
	case config.SourceFile:
		return source.NewFile(cfg.Path), nil
	case config.SourceObject:
		return source.NewObject(source.ObjectConfig{
			Endpoint:  cfg.Object.Endpoint,
			AccessKey: cfg.Object.AccessKey,
			SecretKey: cfg.Object.SecretKey,
			Bucket:    cfg.Object.Bucket,
			Key:       cfg.Object.Key,
			UseTLS:    cfg.Object.UseTLS,
		})
	default:
		return nil, fmt.Errorf("bank source %q cannot be published to; use --out", cfg.Source)
	}
}

func printReport(w io.Writer, target string, r *builder.Report) {
	fmt.Fprintf(w, "Target:          %s\n", target)
	fmt.Fprintf(w, "Dates fetched:   %d\n", len(r.DatesOK))
	if len(r.DatesFailed) > 0 {
		fmt.Fprintf(w, "Dates failed:    %s\n", strings.Join(r.DatesFailed, ", "))
	}
	fmt.Fprintf(w, "New foods:       %d\n", r.NewFoods)
	fmt.Fprintf(w, "New locations:   %d\n", r.NewLocations)
	fmt.Fprintf(w, "Total foods:     %d\n", r.TotalFoods)
	fmt.Fprintf(w, "Total locations: %d\n", r.TotalLocations)
	fmt.Fprintf(w, "Snapshot:        %d bytes, checksum %s\n", r.Bytes, r.Checksum)
	if r.Published {
		fmt.Fprintln(w, "Published:       yes")
	} else {
		fmt.Fprintln(w, "Published:       no (dry run)")
	}
}
