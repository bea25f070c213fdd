// cmd/reflex/main.go
//
// This is the entry point for the REFLEX console.
// Running `reflex` with no subcommand opens the TUI in the current directory;
// the subcommands drive the same server from scripts.

package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kingrea/reflex-console/internal/config"
	"github.com/kingrea/reflex-console/internal/tui"
)

var (
	apiBase      string
	projectDir   string
	pollInterval time.Duration
	apiTimeout   time.Duration
	logLevel     string
	attachRun    string
)

var rootCmd = &cobra.Command{
	Use:           "reflex",
	Short:         "Terminal console for the REFLEX reasoning pipeline",
	Long:          "reflex creates pipeline runs on a REFLEX server, advances them one stage at a time and shows each stage's output as the server produces it.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runTUI,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiBase, "api", "", "REFLEX server base URL (overrides config and REFLEX_API_BASE)")
	rootCmd.PersistentFlags().StringVar(&projectDir, "project", ".", "Directory holding the .reflex folder")
	rootCmd.PersistentFlags().DurationVar(&pollInterval, "poll", 0, "State poll interval (e.g. 2s)")
	rootCmd.PersistentFlags().DurationVar(&apiTimeout, "timeout", 0, "Per-request timeout for server calls (e.g. 30s)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error")
	rootCmd.Flags().StringVar(&attachRun, "run", "", "Attach to an existing run instead of starting a new one")
}

func runTUI(cmd *cobra.Command, _ []string) error {
	if err := config.InitReflexDir(projectDir); err != nil {
		return fmt.Errorf("initializing .reflex directory: %w", err)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := tui.NewApp(cfg, tui.WithRunID(attachRun), tui.WithContext(cmd.Context()))
	if err != nil {
		return err
	}
	// Run blocks until the user quits
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
