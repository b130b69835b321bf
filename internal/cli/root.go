package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/dispatch/internal/control"
	"github.com/vietddude/dispatch/internal/core/config"
	"github.com/vietddude/dispatch/internal/core/domain"
)

var (
	cfgPath string
	isDebug bool

	flagInput        string
	flagOutput       string
	flagErrorsOutput string
	flagRPS          int
	flagMaxAttempts  int
	flagMaxInFlight  int
	flagEndpoints    []string
	flagAPIKey       string
	flagPort         int
)

var rootCmd = &cobra.Command{
	Use:   "dispatcher",
	Short: "Rate-limited batch request dispatcher",
	Long: `Dispatcher reads newline-delimited JSON requests, sends each one to a chat
completion API at a fixed rate, retries transient failures with exponential
backoff and appends every outcome to a results or errors log.`,
	Run: runDispatch,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&flagInput, "input", "i", "", "input JSONL file")
	rootCmd.PersistentFlags().StringVarP(&flagOutput, "output", "o", "", "results JSONL file")
	rootCmd.PersistentFlags().StringVar(&flagErrorsOutput, "errors-output", "", "errors JSONL file")

	rootCmd.Flags().IntVar(&flagRPS, "rps", 0, "requests per second")
	rootCmd.Flags().IntVar(&flagMaxAttempts, "max-attempts", 0, "attempts per request, including the first")
	rootCmd.Flags().IntVar(&flagMaxInFlight, "max-in-flight", 0, "maximum concurrent upstream calls")
	rootCmd.Flags().StringArrayVar(&flagEndpoints, "endpoint", nil, "endpoint URL, repeatable (replaces configured endpoints)")
	rootCmd.Flags().StringVar(&flagAPIKey, "api-key", "", "API key for endpoints given with --endpoint")
	rootCmd.Flags().IntVar(&flagPort, "port", 0, "health and metrics port (0 = disabled)")
}

// loadConfig reads the config file and applies flag overrides. A missing
// file is only an error when --config was given explicitly.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = &config.AppConfig{}
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Dispatch.Input = flagInput
	}
	if flags.Changed("output") {
		cfg.Dispatch.Output = flagOutput
	}
	if flags.Changed("errors-output") {
		cfg.Dispatch.ErrorsOutput = flagErrorsOutput
	}
	if flags.Changed("rps") {
		cfg.Dispatch.RequestsPerSecond = flagRPS
	}
	if flags.Changed("max-attempts") {
		cfg.Dispatch.MaxAttempts = flagMaxAttempts
	}
	if flags.Changed("max-in-flight") {
		cfg.Dispatch.MaxInFlight = flagMaxInFlight
	}
	if flags.Changed("port") {
		cfg.Server.Port = flagPort
	}
	if len(flagEndpoints) > 0 {
		cfg.Endpoints = cfg.Endpoints[:0]
		for i, url := range flagEndpoints {
			cfg.Endpoints = append(cfg.Endpoints, config.EndpointConfig{
				Name:   fmt.Sprintf("endpoint-%d", i),
				URL:    url,
				APIKey: flagAPIKey,
			})
		}
	}

	cfg.ApplyDefaults()
	return cfg, nil
}

func setupLogging(cfg *config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

func runDispatch(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	// Load Configuration
	cfg, err := loadConfig(cmd)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewRunner(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize dispatcher", "error", err)
		os.Exit(1)
	}

	counters, err := app.Run(ctx)
	if closeErr := app.Close(); closeErr != nil {
		slog.Warn("Error during shutdown", "error", closeErr)
	}
	if err != nil {
		slog.Error("Dispatch failed", "error", err)
		os.Exit(1)
	}

	printSummary(counters)
}

func printSummary(c domain.Counters) {
	slog.Info("Total tasks started", "count", c.Started)
	slog.Info("Total tasks in progress", "count", c.InProgress)
	slog.Info("Total tasks succeeded", "count", c.Succeeded)
	slog.Info("Total tasks failed", "count", c.Failed)
	slog.Info("Total rate limit errors", "count", c.RateLimited)
	slog.Info("Total API errors", "count", c.APIErrors)
	slog.Info("Total other errors", "count", c.OtherErrors)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STARTED\tIN PROGRESS\tSUCCEEDED\tFAILED\tRATE LIMITED\tAPI ERRORS\tOTHER ERRORS")
	_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		c.Started, c.InProgress, c.Succeeded, c.Failed, c.RateLimited, c.APIErrors, c.OtherErrors)
	_ = w.Flush()
}
