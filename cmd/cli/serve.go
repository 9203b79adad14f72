package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/edgerunner0x01/violette/internal/config"
	"github.com/edgerunner0x01/violette/internal/engine"
	"github.com/edgerunner0x01/violette/internal/events"
	"github.com/edgerunner0x01/violette/internal/logging"
	"github.com/edgerunner0x01/violette/internal/metrics"
	"github.com/edgerunner0x01/violette/internal/scan"
	"github.com/edgerunner0x01/violette/internal/store"
	"github.com/edgerunner0x01/violette/internal/targets"
	"github.com/edgerunner0x01/violette/internal/web"
)

var (
	serveDBPath  string
	serveListen  string
	serveTarget  string
	serveThreads int
	serveTimeout int
	serveQuick   bool
	serveExclude string
	serveRescan  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve live scan results over HTTP",
	Long: `Serve stored results and a live event stream. With --target, a scan
of that range runs while serving so observers watch results arrive; with
--rescan, the scan repeats on a cron schedule.

Examples:
  violette serve --db results.db
  violette serve --target 192.168.1.0/24 --listen :9000
  violette serve --target 10.0.0.0/24 --rescan "0 */6 * * *"`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveDBPath, "db", "violette.db", "path to the results database")
	serveCmd.Flags().StringVar(&serveListen, "listen", ":8080", "listen address")
	serveCmd.Flags().StringVar(&serveTarget, "target", "", "CIDR range to scan while serving")
	serveCmd.Flags().IntVar(&serveThreads, "threads", scan.DefaultWorkers, "concurrent host scans")
	serveCmd.Flags().IntVar(&serveTimeout, "timeout", int(scan.DefaultHostTimeout.Seconds()), "per-host timeout in seconds")
	serveCmd.Flags().BoolVar(&serveQuick, "quick", false, "quick scan: common ports only, no OS detection")
	serveCmd.Flags().StringVar(&serveExclude, "exclude", "", "comma-separated addresses or CIDRs to skip")
	serveCmd.Flags().StringVar(&serveRescan, "rescan", "", "cron schedule for repeating the --target scan")
	rootCmd.AddCommand(serveCmd)
}

// serveSettings are the effective serve parameters, merged the same way
// as scanSettings: flags over config.
type serveSettings struct {
	dbPath      string
	threads     int
	hostTimeout time.Duration
	quick       bool
	exclude     []string
	freshWindow time.Duration
	server      web.Options
}

func resolveServeSettings(fl *pflag.FlagSet, cfg *config.Config) serveSettings {
	settings := serveSettings{
		dbPath:      serveDBPath,
		threads:     serveThreads,
		hostTimeout: time.Duration(serveTimeout) * time.Second,
		quick:       serveQuick,
		exclude:     splitExclude(serveExclude),
		freshWindow: cfg.Scanning.FreshWindow,
		server: web.Options{
			Addr:         serveListen,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}
	if !fl.Changed("db") {
		settings.dbPath = cfg.Database.Path
	}
	if !fl.Changed("listen") {
		settings.server.Addr = cfg.Server.Listen
	}
	if !fl.Changed("threads") {
		settings.threads = cfg.Scanning.Workers
	}
	if !fl.Changed("timeout") {
		settings.hostTimeout = cfg.Scanning.HostTimeout
	}
	if !fl.Changed("quick") {
		settings.quick = cfg.Scanning.Quick
	}
	if !fl.Changed("exclude") {
		settings.exclude = cfg.Scanning.Exclude
	}
	return settings
}

func runServe(cmd *cobra.Command, _ []string) error {
	cmd.SilenceUsage = true

	settings := resolveServeSettings(cmd.Flags(), loadConfig())

	var set *targets.Set
	if serveTarget != "" {
		var err error
		set, err = targets.New(serveTarget, settings.exclude)
		if err != nil {
			return err
		}
	}

	st, err := store.Open(settings.dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry()
	bus := events.NewBus(reg)
	defer bus.Close()

	if set != nil {
		scheduler := scan.NewScheduler(
			engine.NewNmapEngine(engine.NewResolver()),
			st, bus, reg,
			scan.Config{
				Workers:     settings.threads,
				HostTimeout: settings.hostTimeout,
				Quick:       settings.quick,
				FreshWindow: settings.freshWindow,
			})

		runOnce := func() {
			if _, err := scheduler.Run(ctx, set); err != nil {
				logging.Error("scan run failed", "target", serveTarget, "error", err)
			}
		}
		go runOnce()

		if serveRescan != "" {
			c := cron.New()
			if _, err := c.AddFunc(serveRescan, runOnce); err != nil {
				return err
			}
			c.Start()
			defer c.Stop()
			logging.Info("rescan scheduled", "cron", serveRescan, "target", serveTarget)
		}
	}

	return web.NewServer(settings.server, st, bus, reg).Start(ctx)
}
