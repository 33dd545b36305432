/*
main.go - Application entry point

PURPOSE:
  The abacus command: serves the asset register over HTTP and exposes the
  same operations for scripting (import, export, verify, resync).

CONFIGURATION:
  Flags override ABACUS_* environment variables, which override the
  optional YAML file. See config/config.go for every key.

  --config     Config file (default: ./abacus.yaml, ~/.config/abacus/config.yaml)
  --db         SQLite database path (":memory:" for a throwaway register)
  --log-level  debug, info, warn, error
  --log-format text, json

EXAMPLES:
  abacus serve --db ./books.db
  abacus import assets.xlsx
  abacus export --year 2025 report.xlsx
  abacus verify

SEE ALSO:
  - serve.go: HTTP server with graceful shutdown
  - api/server.go: Router configuration
*/
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/abacus/asset-engine/config"
	"github.com/abacus/asset-engine/depreciation"
	"github.com/abacus/asset-engine/store/sqlite"
)

var (
	cfgFile string
	version = "dev"
	v       = viper.New()

	rootCmd = &cobra.Command{
		Use:   "abacus",
		Short: "Fixed-asset register with straight-line depreciation",
		Long: `abacus tracks fixed assets and keeps a year-by-year depreciation
schedule for each one, always consistent with the asset record.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./abacus.yaml or $HOME/.config/abacus/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")

	_ = v.BindPFlag("database.path", rootCmd.PersistentFlags().Lookup("db"))
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(templateCmd())
	rootCmd.AddCommand(assetsCmd())
	rootCmd.AddCommand(scheduleCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(resyncCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(versionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// =============================================================================
// APPLICATION WIRING
// =============================================================================

type app struct {
	cfg      *config.Config
	log      *logrus.Logger
	store    *sqlite.Store
	registry *depreciation.Registry
}

// openApp loads configuration and opens the register. Callers must Close.
func openApp() (*app, error) {
	cfg, err := config.LoadWith(v, cfgFile)
	if err != nil {
		return nil, err
	}
	log := config.NewLogger(cfg.Log)

	store, err := sqlite.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Database.Path, err)
	}
	log.WithField("path", cfg.Database.Path).Debug("database opened")

	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		registry: depreciation.NewRegistry(store, depreciation.WithLogger(log)),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Error("failed to close database")
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "abacus", version)
		},
	}
}
