package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/kbo-game-crawler/internal/api"
	"github.com/JakeFAU/kbo-game-crawler/internal/config"
	"github.com/JakeFAU/kbo-game-crawler/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use, so tests can inject a fake.
type App interface {
	Operations() api.Operations
	Logger() *zap.Logger
	Run(ctx context.Context) error
	Close()
}

// newApp is the application factory. Tests replace it.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	app, err := server.Build(ctx, &cfg)
	if err != nil {
		return nil, err
	}
	return app, nil
}

// NewRootCmd creates and configures the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "kbo-crawler",
		Short: "Crawls KBO schedules, box scores, comments and standings.",
		Long: `kbo-crawler scrapes the club site and the league site, reconciles what it
finds against the stored games and rankings, and serves the same operations over HTTP.`,
		SilenceUsage: true,

		// Build the application once flags are parsed, before the subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				appInstance.Close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars prefixed KBO_ override it)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newStandingsCmd())
	return cmd
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
