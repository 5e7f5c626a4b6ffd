package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	natsadapter "github.com/couchcryptid/quake-alert-service/internal/adapter/nats"
	"github.com/couchcryptid/quake-alert-service/internal/alert"
)

var pollCmd = &cobra.Command{
	Use:     "poll",
	Short:   "Check once for new nearby earthquakes",
	GroupID: "alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		notifier, closeFn, err := buildNotifier(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		alerts, err := alert.NewPoller(api, notifier, state, logger, nil).Poll(ctx)
		if err != nil {
			return explainPollError(err)
		}
		if len(alerts) == 0 && !jsonOutput {
			fmt.Fprintln(cmd.OutOrStdout(), "No new earthquakes nearby.")
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Poll on an interval and alert on new nearby earthquakes",
	GroupID: "alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			return errors.New("--interval must be positive")
		}

		ctx := cmd.Context()

		notifier, closeFn, err := buildNotifier(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer closeFn()

		if !jsonOutput {
			fmt.Fprintf(cmd.ErrOrStderr(), "Watching every %s. Press Ctrl-C to stop.\n", interval)
		}
		if err := alert.NewPoller(api, notifier, state, logger, nil).Run(ctx, interval); err != nil {
			return explainPollError(err)
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().Duration("interval", 5*time.Minute, "poll interval")
}

// buildNotifier returns the terminal notifier plus NATS when --nats-url is set.
func buildNotifier(w io.Writer) (alert.Notifier, func(), error) {
	tn := newTerminalNotifier(w, jsonOutput, shouldUseColor(os.Stdout))
	if natsURL == "" {
		return tn, func() {}, nil
	}
	n, err := natsadapter.NewNotifier(natsURL, natsSubject)
	if err != nil {
		return nil, nil, err
	}
	return alert.Notifiers{tn, n}, func() { _ = n.Close() }, nil
}

func explainPollError(err error) error {
	if errors.Is(err, alert.ErrNoLocation) {
		return errors.New("no location set; run: quakectl location set --lat <lat> --lon <lon> [--radius km]")
	}
	return err
}
