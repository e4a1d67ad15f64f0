// Package cmd defines and implements the CLI commands for the distrocat executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/distro-catalog/internal/api"
	"github.com/JakeFAU/distro-catalog/internal/app"
	"github.com/JakeFAU/distro-catalog/internal/catalog"
	"github.com/JakeFAU/distro-catalog/internal/config"
	"github.com/JakeFAU/distro-catalog/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use, so tests can
// inject a fake.
type App interface {
	Close()
	Logger() *zap.Logger
	Config() config.Config
	Catalog() api.CatalogService
	Crawl(ctx context.Context, limit int, force bool) ([]catalog.Record, error)
}

// loadConfig and newApp are variables so tests can replace them.
var (
	loadConfig = config.Load

	newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
		a, err := app.New(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return a, nil
	}

	newLogger = logging.New
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "distrocat",
		Short: "Builds and serves a catalog of Linux distributions.",
		Long: `distrocat crawls the DistroWatch popularity ranking and the detail page
of every ranked distribution, keeps the result in a TTL cache, and serves it
over a read-only JSON API.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Runs before every subcommand: load config, build the app and
		// stash it in the command context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := newLogger(cfg.Logging.Development)
			if err != nil {
				return err
			}
			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				_ = appInstance.Logger().Sync()
				appInstance.Close()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./distrocat.yaml)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newCacheCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command
// context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
