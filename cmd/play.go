package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursetape/internal/app"
	"github.com/abhisek/coursetape/internal/engine"
)

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Open the course player",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runApp(cmd)
	},
}

// runApp opens a session and launches the TUI.
func runApp(cmd *cobra.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	defer log.Sync()

	session, err := engine.Open(cmd.Context(), cfg, log)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	return app.Run(session)
}
