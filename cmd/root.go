// Package cmd implements the BazarKhoj command-line interface: the API
// server plus terminal search tools over the same aggregation engine.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/text/language"

	"github.com/bazarkhoj/bazarkhoj/internal/aggregator"
	"github.com/bazarkhoj/bazarkhoj/internal/config"
	"github.com/bazarkhoj/bazarkhoj/internal/logger"
	"github.com/bazarkhoj/bazarkhoj/internal/metrics"
	"github.com/bazarkhoj/bazarkhoj/internal/normalize"
	"github.com/bazarkhoj/bazarkhoj/internal/sources"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// debug enables debug mode for all commands.
	debug bool

	rootCmd = &cobra.Command{
		Use:   "bazarkhoj",
		Short: "Cross-marketplace product price search",
		Long: `BazarKhoj searches South Asian marketplaces (Daraz, Jeevee) concurrently
and ranks the combined results by price.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to viper.
	_ = godotenv.Load()

	// Parse flags early so --config and --debug apply before config load.
	_ = rootCmd.ParseFlags(os.Args[1:])

	if err := initConfig(); err != nil {
		return fmt.Errorf("failed to initialize configuration: %w", err)
	}

	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("bazarkhoj version %s\n", appVersion())
		},
	})

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(searchCommand())
	rootCmd.AddCommand(compareCommand())
	rootCmd.AddCommand(sourcesCommand())
}

// initConfig wires viper: env vars first, then an optional config file.
// Typed defaults are applied by config.Load.
func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
	}

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Config file is optional; env vars and defaults cover everything.
	_ = viper.ReadInConfig()

	if debug {
		viper.Set("app.debug", true)
		viper.Set("logger.level", "debug")
		viper.Set("logger.encoding", "console")
	}
	return nil
}

func appVersion() string {
	if v := viper.GetString("app.version"); v != "" {
		return v
	}
	return "dev"
}

// deps holds the shared dependency graph built by every subcommand.
type deps struct {
	cfg          *config.Config
	log          logger.Interface
	registry     *sources.Registry
	aggregator   *aggregator.Aggregator
	metrics      *metrics.Metrics
	promRegistry *prometheus.Registry
}

func newDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.Logger.Level,
		Encoding:    cfg.Logger.Encoding,
		Development: cfg.App.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	registry := sources.NewRegistry(
		sources.NewDaraz(sources.DarazConfig{
			BaseURLs:  cfg.Daraz.BaseURLs,
			UserAgent: cfg.Daraz.UserAgent,
			Timeout:   cfg.Daraz.Timeout,
		}, log),
		sources.NewJeevee(sources.JeeveeConfig{
			APIURL:     cfg.Jeevee.APIURL,
			WebsiteURL: cfg.Jeevee.WebsiteURL,
			UserAgent:  cfg.Jeevee.UserAgent,
			Timeout:    cfg.Jeevee.Timeout,
		}, log),
	)

	promRegistry := prometheus.NewRegistry()
	m := metrics.New(promRegistry)

	agg := aggregator.New(
		registry,
		normalize.New(language.English),
		log,
		m,
		aggregator.Config{SourceTimeout: cfg.Aggregator.SourceTimeout},
	)

	return &deps{
		cfg:          cfg,
		log:          log,
		registry:     registry,
		aggregator:   agg,
		metrics:      m,
		promRegistry: promRegistry,
	}, nil
}
