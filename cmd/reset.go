package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/coursetape/internal/engine"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Erase listening progress for the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Printf("Erase all progress for user %q? [y/N] ", cfg.UserID)
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(strings.ToLower(answer)) != "y" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		log := newLogger(cfg)
		defer log.Sync()

		session, err := engine.Open(cmd.Context(), cfg, log)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}
		defer session.Close()

		if err := session.ResetProgress(cmd.Context()); err != nil {
			return fmt.Errorf("reset progress: %w", err)
		}
		fmt.Println("Progress erased.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolP("force", "f", false, "Skip the confirmation prompt")
}
