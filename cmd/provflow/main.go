package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"provflow/database"
	"provflow/domain/provisioning"
	"provflow/infrastructure/apiclient"
	"provflow/infrastructure/config"
	"provflow/logging"
	"provflow/platform/retry"
)

var version = "dev"

// app carries what every subcommand needs once the root command has loaded configuration.
type app struct {
	configPath string
	cfg        *config.AppConfig
	logger     *logging.Logger
}

func main() {
	loadEnvironment()

	a := &app{}
	root := &cobra.Command{
		Use:          "provflow",
		Short:        "Provision payment soundbox devices end to end",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initialize()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("CONFIG_FILE"), "YAML configuration file")

	root.AddCommand(newRunCmd(a))
	root.AddCommand(newWatchToastCmd(a))
	root.AddCommand(newProvisionCmd(a))
	root.AddCommand(newNotifyCmd(a))
	root.AddCommand(newRegistryCmd(a))
	root.AddCommand(newServeCmd(a))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadEnvironment() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "No .env file found, using environment variables")
	}
}

func (a *app) initialize() error {
	cfg, err := config.LoadFile(a.configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	a.cfg = cfg
	a.logger = initializeLogging(cfg)
	return nil
}

func initializeLogging(cfg *config.AppConfig) *logging.Logger {
	logger := logging.NewLogger(cfg.Logging)
	logging.SetDefault(logger)

	logger.Info("Application starting",
		"version", version,
		"environment", cfg.Environment,
		"log_level", cfg.Logging.Level,
		"log_format", cfg.Logging.Format,
		"db_path", cfg.Database.Path,
	)
	return logger
}

func initializeDatabase(cfg *config.AppConfig, logger *logging.Logger) (*database.Database, error) {
	db, err := database.New(*cfg.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return db, nil
}

// apiOptions returns the shared HTTP client settings for baseURL.
func (a *app) apiOptions(baseURL string) apiclient.Options {
	api := a.cfg.API
	return apiclient.Options{
		BaseURL:   baseURL,
		UserAgent: api.UserAgent,
		Timeout:   api.Timeout,
		Retry: retry.Policy{
			MaxAttempts: max(api.MaxRetries, 1),
			Backoff:     retry.Linear(api.RetryDelay),
		},
	}
}

func (a *app) dpsClient() *apiclient.DPSClient {
	opts := a.apiOptions(a.cfg.API.DPSBaseURL)
	if a.cfg.API.DPSToken != "" {
		opts.Auth = apiclient.AuthBearer
		opts.Secret = a.cfg.API.DPSToken
	}
	return apiclient.NewDPSClient(apiclient.NewClient(opts))
}

func (a *app) ipnClient() *apiclient.IPNClient {
	keys := make(map[provisioning.Scheme]string)
	for _, scheme := range provisioning.AllSchemes() {
		keys[scheme] = a.cfg.API.KeyFor(scheme)
	}
	return apiclient.NewIPNClient(a.apiOptions(a.cfg.API.IPNURL), keys)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func elapsedSince(start time.Time) time.Duration {
	return time.Since(start).Round(time.Millisecond)
}
