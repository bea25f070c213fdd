package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/render"
)

var stateCmd = &cobra.Command{
	Use:   "state <run-id>",
	Short: "Print the current state of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runState,
}

var stateJSON bool

func init() {
	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "Print the raw snapshot as JSON")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	snap, err := s.api.FetchState(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("fetching state: %w", err)
	}
	if stateJSON {
		encoded, err := json.MarshalIndent(snap, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding state: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
		return nil
	}
	printBoard(cmd.OutOrStdout(), snap)
	return nil
}

func printBoard(w io.Writer, snap *pipeline.Snapshot) {
	fmt.Fprintln(w, render.Summary(snap))
	for _, line := range render.Lines(render.Project(snap)) {
		fmt.Fprintln(w, line)
	}
}
