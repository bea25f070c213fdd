package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create <directive>",
	Short: "Create a run and print its id",
	Long:  "Creates a new pipeline run for the given research directive. All stages start pending; nothing runs until triggered.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCreate,
}

func init() {
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	directive := strings.TrimSpace(strings.Join(args, " "))
	if directive == "" {
		return fmt.Errorf("directive must not be empty")
	}
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	runID, err := s.api.CreateRun(cmd.Context(), directive)
	if err != nil {
		return fmt.Errorf("creating run: %w", err)
	}
	s.log.Info("Run %s created", runID)
	fmt.Fprintln(cmd.OutOrStdout(), runID)
	return nil
}
