package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursetape/internal/config"
	"github.com/abhisek/coursetape/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "coursetape",
	Short: "Sequential audio courses in the terminal",
	Long:  "Coursetape — a terminal audio-course player with strict lesson ordering and synced listening progress.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides COURSETAPE_DB env var)")
	rootCmd.PersistentFlags().String("user", "", "User ID to track progress under (overrides COURSETAPE_USER_ID)")

	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig merges the config file/env settings with command flags;
// flags win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	if u, _ := cmd.Flags().GetString("user"); u != "" {
		cfg.UserID = u
	}
	return cfg, nil
}

// newLogger builds the process logger from the configured mode.
func newLogger(cfg config.Config) *logging.Logger {
	log, err := logging.New(cfg.LogMode)
	if err != nil {
		return logging.Nop()
	}
	return log
}
