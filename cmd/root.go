// Package cmd is the dealrefresher command line.
package cmd

import (
	"fmt"
	"os"

	"sjsage522/dealrefresher/config"
	"sjsage522/dealrefresher/logger"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "dealrefresher",
	Short: "Discovers grocery promotions and serves the cached deals",
	Long: "dealrefresher crawls product detail pages of a grocery store, starting from the\n" +
		"items you order often, keeps a cache of products on sale and serves it over HTTP.",
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("env-file", ".env", "Path to a .env file (ignored when missing)")
	rootCmd.PersistentFlags().String("db-driver", "", "Cache store driver: sqlite, postgres (default from $DB_DRIVER)")
	rootCmd.PersistentFlags().String("db-path", "", "SQLite database file (default from $DB_PATH)")
}

func initConfig() {
	if path, _ := rootCmd.PersistentFlags().GetString("env-file"); path != "" {
		// a missing file is fine, the environment may already be set
		_ = godotenv.Load(path)
	}

	logger.Init()

	cfg = config.LoadConfig()
	if v, _ := rootCmd.PersistentFlags().GetString("db-driver"); v != "" {
		cfg.DBDriver = v
	}
	if v, _ := rootCmd.PersistentFlags().GetString("db-path"); v != "" {
		cfg.DBPath = v
	}
}
