package cli

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/edgerunner0x01/violette/internal/config"
	"github.com/edgerunner0x01/violette/internal/engine"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/scan"
	"github.com/edgerunner0x01/violette/internal/store"
	"github.com/edgerunner0x01/violette/internal/targets"
)

var (
	scanThreads int
	scanTimeout int
	scanDBPath  string
	scanFresh   bool
	scanQuick   bool
	scanExclude string
)

var scanCmd = &cobra.Command{
	Use:   "scan <cidr>",
	Short: "Scan a network range",
	Long: `Scan every address of a CIDR range with bounded concurrency and
persist results per host. Hosts scanned within the last 24 hours are
skipped unless --fresh is given.

Examples:
  violette scan 192.168.1.0/24
  violette scan 10.0.0.0/16 --threads 50 --quick
  violette scan 10.0.0.0/30 --exclude 10.0.0.1 --db results.db`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().IntVar(&scanThreads, "threads", scan.DefaultWorkers, "concurrent host scans")
	scanCmd.Flags().IntVar(&scanTimeout, "timeout", int(scan.DefaultHostTimeout.Seconds()), "per-host timeout in seconds")
	scanCmd.Flags().StringVar(&scanDBPath, "db", "violette.db", "path to the results database")
	scanCmd.Flags().BoolVar(&scanFresh, "fresh", false, "discard prior results and rescan everything")
	scanCmd.Flags().BoolVar(&scanQuick, "quick", false, "quick scan: common ports only, no OS detection")
	scanCmd.Flags().StringVar(&scanExclude, "exclude", "", "comma-separated addresses or CIDRs to skip")
	rootCmd.AddCommand(scanCmd)
}

// scanSettings are the effective scan parameters: a flag the user set
// wins, otherwise the loaded config applies.
type scanSettings struct {
	threads     int
	hostTimeout time.Duration
	dbPath      string
	quick       bool
	exclude     []string
	freshWindow time.Duration
}

func resolveScanSettings(fl *pflag.FlagSet, cfg *config.Config) scanSettings {
	settings := scanSettings{
		threads:     scanThreads,
		hostTimeout: time.Duration(scanTimeout) * time.Second,
		dbPath:      scanDBPath,
		quick:       scanQuick,
		exclude:     splitExclude(scanExclude),
		freshWindow: cfg.Scanning.FreshWindow,
	}
	if !fl.Changed("threads") {
		settings.threads = cfg.Scanning.Workers
	}
	if !fl.Changed("timeout") {
		settings.hostTimeout = cfg.Scanning.HostTimeout
	}
	if !fl.Changed("db") {
		settings.dbPath = cfg.Database.Path
	}
	if !fl.Changed("quick") {
		settings.quick = cfg.Scanning.Quick
	}
	if !fl.Changed("exclude") {
		settings.exclude = cfg.Scanning.Exclude
	}
	return settings
}

func runScan(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	settings := resolveScanSettings(cmd.Flags(), loadConfig())

	set, err := targets.New(args[0], settings.exclude)
	if err != nil {
		return err
	}

	st, err := store.Open(settings.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scanFresh {
		if err := st.Reset(ctx); err != nil {
			return err
		}
		logging.Info("previous results cleared", "db", settings.dbPath)
	}

	reg := metrics.NewRegistry()
	scheduler := scan.NewScheduler(
		engine.NewNmapEngine(engine.NewResolver()),
		st, nil, reg,
		scan.Config{
			Workers:     settings.threads,
			HostTimeout: settings.hostTimeout,
			Quick:       settings.quick,
			Fresh:       scanFresh,
			FreshWindow: settings.freshWindow,
		})

	summary, err := scheduler.Run(ctx, set)
	if err != nil {
		return err
	}

	fmt.Printf("\nRun %s (%s)\n", summary.RunID, summary.State)
	fmt.Printf("  targets:   %d\n", summary.Targets)
	fmt.Printf("  completed: %d\n", summary.Completed)
	fmt.Printf("  failed:    %d\n", summary.Failed)
	fmt.Printf("  timed out: %d\n", summary.TimedOut)
	fmt.Printf("  skipped:   %d (recently scanned)\n", summary.Skipped)
	fmt.Printf("  duration:  %.1fs\n", summary.Duration)
	return nil
}

func splitExclude(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
