package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"

	"github.com/couchcryptid/quake-alert-service/internal/alert"
)

const (
	ansiReset  = "\033[0m"
	ansiBold   = "\033[1m"
	ansiRed    = "\033[31m"
	ansiYellow = "\033[33m"
)

// shouldUseColor respects NO_COLOR, CLICOLOR_FORCE, CLICOLOR, and TTY detection.
func shouldUseColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")) == "1" {
		return true
	}
	if strings.TrimSpace(os.Getenv("CLICOLOR")) == "0" {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// terminalNotifier prints alerts to the terminal, one line each, or as JSON
// lines when asJSON is set.
type terminalNotifier struct {
	mu     sync.Mutex
	w      io.Writer
	asJSON bool
	color  bool
}

func newTerminalNotifier(w io.Writer, asJSON, color bool) *terminalNotifier {
	return &terminalNotifier{w: w, asJSON: asJSON, color: color}
}

func (t *terminalNotifier) Notify(_ context.Context, alerts []alert.Alert) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.asJSON {
		enc := json.NewEncoder(t.w)
		for _, a := range alerts {
			if err := enc.Encode(a); err != nil {
				return fmt.Errorf("write alert: %w", err)
			}
		}
		return nil
	}

	for _, a := range alerts {
		if _, err := fmt.Fprintln(t.w, t.format(a)); err != nil {
			return fmt.Errorf("write alert: %w", err)
		}
	}
	return nil
}

func (t *terminalNotifier) format(a alert.Alert) string {
	label := "EARTHQUAKE"
	if a.Urgent {
		label = "STRONG EARTHQUAKE"
	}
	line := fmt.Sprintf("%s M%.1f, %s km away: %s (%s, depth %s km)",
		label, a.Magnitude, formatFloat(a.DistanceKm), a.RegionLabel, displayTime(a.Earthquake), formatFloat(a.DepthKm))
	if a.TsunamiPotential != nil {
		line += ". " + *a.TsunamiPotential
	}
	if !t.color {
		return line
	}
	if a.Urgent {
		return ansiBold + ansiRed + line + ansiReset
	}
	return ansiYellow + line + ansiReset
}
