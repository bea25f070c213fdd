package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kingrea/reflex-console/internal/pipeline"
	"github.com/kingrea/reflex-console/internal/poller"
	"github.com/kingrea/reflex-console/internal/store"
)

var watchCmd = &cobra.Command{
	Use:   "watch <run-id>",
	Short: "Poll a run and print the board after every update",
	Long:  "Polls the run's state on the configured interval and prints the board after each successful fetch. Failed fetches are reported and polling continues.",
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

var watchUntilDone bool

func init() {
	watchCmd.Flags().BoolVar(&watchUntilDone, "until-done", false, "Exit once the final evaluation stage has completed or failed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	st := store.New()
	st.SetRunID(args[0])
	out := cmd.OutOrStdout()
	p := poller.New(s.api, st,
		poller.WithInterval(s.cfg.PollInterval()),
		poller.OnUpdate(func(snap *pipeline.Snapshot) {
			printBoard(out, snap)
			fmt.Fprintln(out)
			if watchUntilDone && snap.Result(pipeline.Evaluation).Status.Terminal() {
				cancel()
			}
		}),
		poller.OnError(s.log.Sink("poll")),
	)
	s.log.Info("Watching run %s on %s every %s", args[0], s.api.BaseURL(), p.Interval())
	p.Start(ctx)
	<-ctx.Done()
	if p.Running() {
		p.Stop()
	}
	s.log.Debug("Stopped watching run %s", args[0])
	return nil
}
