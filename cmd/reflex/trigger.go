package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

var triggerCmd = &cobra.Command{
	Use:   "trigger <run-id> <stage|baseline>",
	Short: "Start a stage (or the baseline) on the server",
	Long:  "Fetches the current state, checks that the stage is eligible to run, and asks the server to start it. The command returns without waiting for the stage to finish.",
	Args:  cobra.ExactArgs(2),
	RunE:  runTrigger,
}

var triggerForce bool

func init() {
	triggerCmd.Flags().BoolVar(&triggerForce, "force", false, "Skip the local eligibility check")
	rootCmd.AddCommand(triggerCmd)
}

func runTrigger(cmd *cobra.Command, args []string) error {
	runID := args[0]
	key, ok := pipeline.ParseStageKey(args[1])
	if !ok {
		return fmt.Errorf("unknown stage %q (want baseline or one of %v)", args[1], pipeline.Order)
	}
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if !triggerForce {
		snap, err := s.api.FetchState(cmd.Context(), runID)
		if err != nil {
			return fmt.Errorf("fetching state: %w", err)
		}
		if !pipeline.IsEligible(key, snap) {
			return fmt.Errorf("%s is not eligible to run (status %s)", key.Label(), snap.Result(key).Status)
		}
	}
	if err := s.api.Trigger(cmd.Context(), runID, key); err != nil {
		s.log.Error("Trigger %s failed: %v", key.Label(), err)
		return fmt.Errorf("triggering %s: %w", key, err)
	}
	s.log.Info("Triggered %s on run %s", key.Label(), runID)
	fmt.Fprintf(cmd.OutOrStdout(), "triggered %s\n", key)
	return nil
}
