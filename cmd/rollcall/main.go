// Package main provides the rollcall CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/matsen/rollcall/internal/bot"
	"github.com/matsen/rollcall/internal/config"
	"github.com/matsen/rollcall/internal/localstore"
	"github.com/matsen/rollcall/internal/sheets"
	"github.com/matsen/rollcall/internal/standing"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	verbose     bool

	logger *zap.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rollcall",
	Short: "Attendance standing bot for Slack",
	Long: `rollcall turns an attendance spreadsheet into member standings.

It reads absence ("x") and tardy ("t") marks from a sheet, explains each
member's marks in a note on their score cell, and answers standing queries
from Slack. It also posts scheduled announcements and lists calendar events.

Configuration is read from $XDG_CONFIG_HOME/rollcall/config.yml (or --config),
with overrides from the environment and a .env file.
All commands output JSON by default; use --human for readable output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.Version = Version
}

func setup(cmd *cobra.Command, args []string) error {
	// Load .env file if present (for SLACK_BOT_TOKEN etc.)
	_ = godotenv.Load()

	zcfg := zap.NewProductionConfig()
	if verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	l, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	logger = l
	return nil
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	cfg, err := config.Load(configPath, os.Getenv)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// tabularStore is a spreadsheet backend that may hold resources.
type tabularStore interface {
	bot.TabularStore
	Close() error
}

type sheetsStore struct{ *sheets.Client }

func (sheetsStore) Close() error { return nil }

// mustOpenStore opens the configured spreadsheet backend, exits on error.
// The caller is responsible for calling Close() on the returned store.
func mustOpenStore(ctx context.Context, cfg *config.Config) tabularStore {
	if cfg.Store == config.StoreLocal {
		db, err := localstore.OpenDB(cfg.LocalDB)
		if err != nil {
			exitWithError(ExitError, "opening local store: %v", err)
		}
		return db
	}

	opts := []sheets.ClientOption{
		sheets.WithLimiter(rate.NewLimiter(rate.Limit(cfg.Sheets.RequestsPerSecond), cfg.Sheets.RequestBurst)),
		sheets.WithLogger(logger.Named("sheets")),
	}
	if cfg.Sheets.Credentials != "" {
		opts = append(opts, sheets.WithCredentialsFile(cfg.Sheets.Credentials))
	}
	client, err := sheets.NewClient(ctx, cfg.Sheets.SpreadsheetID, opts...)
	if err != nil {
		exitWithError(ExitConfigError, "creating sheets client: %v", err)
	}
	return sheetsStore{client}
}

// newRefresher builds a refresher over store with a fresh directory.
func newRefresher(cfg *config.Config, store bot.TabularStore) *bot.Refresher {
	dir := standing.NewDirectory(standing.DirectoryConfig{
		Evaluator: standing.NewEvaluator(cfg.Standing.Threshold),
		Base:      cfg.Sheets.NoteBase,
		SheetID:   cfg.Sheets.NoteSheetID,
		Logger:    logger.Named("standing"),
	})
	return bot.NewRefresher(store, dir, bot.RefresherConfig{
		AttendanceRange: cfg.Sheets.AttendanceRange,
		RosterRange:     cfg.Sheets.RosterRange,
		NoteBase:        cfg.Sheets.NoteBase,
		WriteTimeout:    cfg.Sheets.WriteTimeout,
	}, logger.Named("refresh"))
}

// mustValidate exits with ExitConfigError when a validation fails.
func mustValidate(err error) {
	if err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
}
