package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/kingrea/reflex-console/internal/pipeline"
)

var editCmd = &cobra.Command{
	Use:   "edit <run-id> <stage> --file data.json",
	Short: "Replace a stage's output with hand-edited JSON",
	Long:  "Sends replacement output for a pipeline stage. The server resets every later stage; the change shows up on the next state fetch.",
	Args:  cobra.ExactArgs(2),
	RunE:  runEdit,
}

var editFile string

func init() {
	editCmd.Flags().StringVarP(&editFile, "file", "f", "", "JSON file with the new stage data (- for stdin)")
	_ = editCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	runID := args[0]
	key, ok := pipeline.ParseStageKey(args[1])
	if !ok || !key.IsStage() {
		return fmt.Errorf("unknown stage %q (want one of %v)", args[1], pipeline.Order)
	}
	data, err := readEditData(cmd.InOrStdin())
	if err != nil {
		return err
	}
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if err := s.api.UpdateStage(cmd.Context(), runID, key, data); err != nil {
		return fmt.Errorf("updating %s: %w", key, err)
	}
	s.log.Info("Updated %s on run %s", key.Label(), runID)
	fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", key)
	return nil
}

func readEditData(stdin io.Reader) (json.RawMessage, error) {
	var (
		raw []byte
		err error
	)
	if editFile == "-" {
		raw, err = io.ReadAll(stdin)
	} else {
		raw, err = os.ReadFile(editFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", editFile, err)
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("%s does not contain valid JSON", editFile)
	}
	return json.RawMessage(raw), nil
}
