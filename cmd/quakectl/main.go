// Command quakectl is the alert client: it stores a home location, polls the
// quake service for nearby earthquakes, and notifies on new ones.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-alert-service/internal/client"
	"github.com/couchcryptid/quake-alert-service/internal/clientstate"
)

var (
	serverURL   string
	statePath   string
	natsURL     string
	natsSubject string
	jsonOutput  bool
	verbose     bool

	api    *client.Client
	state  *clientstate.File
	logger *slog.Logger
)

func defaultServer() string {
	if s := os.Getenv("QUAKE_SERVER"); s != "" {
		return s
	}
	return "http://localhost:8080"
}

var rootCmd = &cobra.Command{
	Use:           "quakectl",
	Short:         "Earthquake alert client for the quake service",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

		if statePath == "" {
			p, err := clientstate.DefaultPath()
			if err != nil {
				return fmt.Errorf("resolve state path: %w", err)
			}
			statePath = p
		}
		state = clientstate.Open(statePath)
		api = client.New(serverURL, nil)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", defaultServer(), "quake service base URL (env QUAKE_SERVER)")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "", "state file (default $XDG_CONFIG_HOME/quake-alert/state.toml)")
	rootCmd.PersistentFlags().StringVar(&natsURL, "nats-url", "", "also publish alerts to this NATS server")
	rootCmd.PersistentFlags().StringVar(&natsSubject, "nats-subject", "quake.alerts", "NATS subject for alerts")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	rootCmd.AddGroup(
		&cobra.Group{ID: "alerts", Title: "Alerts:"},
		&cobra.Group{ID: "data", Title: "Earthquake data:"},
	)

	rootCmd.AddCommand(locationCmd)
	rootCmd.AddCommand(pollCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(ledgerCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
}

func main() {
	// Ctrl-C cancels whatever request or poll is in flight.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
