// Package cli implements the violette command tree: scanning a range,
// serving live results, and reporting or exporting stored results.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edgerunner0x01/violette/internal/config"
	"github.com/edgerunner0x01/violette/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

// Build information - set by ldflags during build.
var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "violette",
	Short: "Live network range scanner",
	Long: `Violette scans a network range with bounded concurrency, persists
per-host results to SQLite, and streams incremental updates to live
observers while the scan is still running.`,
	Version: getVersion(),
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	if err := viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose")); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to bind verbose flag: %v\n", err)
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("VIOLETTE")

	setConfigDefaults()

	if err := viper.ReadInConfig(); err == nil {
		if verbose {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	initLogging()
}

func setConfigDefaults() {
	viper.SetDefault("database.path", config.DefaultDatabasePath)

	viper.SetDefault("scanning.workers", config.DefaultWorkers)
	viper.SetDefault("scanning.host_timeout", config.DefaultHostTimeout)
	viper.SetDefault("scanning.fresh_window", config.DefaultFreshWindow)

	viper.SetDefault("server.listen", config.DefaultListenAddress)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.output", "stdout")
}

func getVersion() string {
	return fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime)
}

// SetVersion sets the version information (called from main).
func SetVersion(v, c, bt string) {
	version = v
	commit = c
	buildTime = bt
	rootCmd.Version = getVersion()
}

// loadConfig resolves the effective configuration: file values when a
// config file is present, defaults otherwise.
func loadConfig() *config.Config {
	if path := viper.ConfigFileUsed(); path != "" {
		cfg, err := config.Load(path)
		if err == nil {
			return cfg
		}
		fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
	}
	return config.Default()
}

// initLogging initializes structured logging based on configuration.
func initLogging() {
	cfg := loadConfig()

	logConfig := cfg.Logging
	if verbose {
		logConfig.Level = logging.LevelDebug
		logConfig.AddSource = true
	}

	logger, err := logging.New(logConfig)
	if err != nil {
		logger = logging.NewDefault()
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logging: %v\n", err)
	}
	logging.SetDefault(logger)
}
