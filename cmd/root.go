// Package cmd defines and implements the CLI commands for the staticgen executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/staticgen/internal/app"
	"github.com/JakeFAU/staticgen/internal/config"
	"github.com/JakeFAU/staticgen/internal/emit"
	"github.com/JakeFAU/staticgen/internal/metrics"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const (
	appKey    appKeyType = "app"
	configKey appKeyType = "config"
)

// App defines the application interface that commands use.
// Tests inject a fake through newApp.
type App interface {
	Close()
	GetLogger() *zap.Logger
	Generate(ctx context.Context) (emit.Manifest, error)
}

// newApp is the application factory. It is a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config) (App, error) {
	return app.NewApp(ctx, cfg)
}

type rootFlags struct {
	configFile  string
	metricsFile string
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "staticgen",
		Short: "Pre-render a server bundle into a static site.",
		Long: `staticgen loads the server entrypoint of a built bundle, crawls it
through a virtual origin that serves public files and bundle assets, and
writes every captured page alongside the rest of the bundle.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(flags.configFile)
			if err != nil {
				return err
			}
			if flags.metricsFile != "" {
				cfg.Metrics.Textfile = flags.metricsFile
			}
			if cmd.Annotations["needs-app"] != "true" {
				cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
				return nil
			}

			appInstance, err := newApp(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			ctx := context.WithValue(cmd.Context(), configKey, cfg)
			cmd.SetContext(context.WithValue(ctx, appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file; STATICGEN_* environment variables override it")
	cmd.PersistentFlags().StringVar(&flags.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile after the run")

	cmd.AddCommand(newGenerateCmd())
	cmd.AddCommand(newTypesCmd())
	return cmd
}

// withCleanup wraps a RunE so the application is closed and the metrics
// textfile is written even when run fails; cobra skips post-run hooks after a
// RunE error.
func withCleanup(run func(*cobra.Command, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		defer func() {
			if ferr := finish(cmd.Context()); ferr != nil {
				err = errors.Join(err, ferr)
			}
		}()
		return run(cmd, args)
	}
}

func finish(ctx context.Context) error {
	if appInstance, ok := ctx.Value(appKey).(App); ok && appInstance != nil {
		appInstance.Close()
	}
	cfg, err := resolveConfig(ctx)
	if err != nil || cfg.Metrics.Textfile == "" {
		return nil
	}
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func resolveConfig(ctx context.Context) (config.Config, error) {
	cfg, ok := ctx.Value(configKey).(config.Config)
	if !ok {
		return config.Config{}, errors.New("configuration not loaded")
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "staticgen: %v\n", err)
		os.Exit(1)
	}
}
