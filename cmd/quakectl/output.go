package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// displayTime prefers the upstream local time string and falls back to UTC.
func displayTime(eq domain.Earthquake) string {
	if eq.DisplayTime != "" {
		return eq.DisplayTime
	}
	return eq.OccurredTime().Format("2006-01-02 15:04:05 UTC")
}

func printEarthquake(w io.Writer, eq domain.Earthquake) {
	fmt.Fprintf(w, "ID:         %s\n", eq.ID)
	fmt.Fprintf(w, "Time:       %s\n", displayTime(eq))
	fmt.Fprintf(w, "Magnitude:  %.1f\n", eq.Magnitude)
	fmt.Fprintf(w, "Depth:      %s km\n", formatFloat(eq.DepthKm))
	fmt.Fprintf(w, "Location:   %s, %s\n", formatFloat(eq.Latitude), formatFloat(eq.Longitude))
	fmt.Fprintf(w, "Region:     %s\n", eq.RegionLabel)
	if eq.TsunamiPotential != nil {
		fmt.Fprintf(w, "Tsunami:    %s\n", *eq.TsunamiPotential)
	}
	if eq.FeltReport != nil {
		fmt.Fprintf(w, "Felt:       %s\n", *eq.FeltReport)
	}
	if eq.ShakemapURL != nil {
		fmt.Fprintf(w, "Shakemap:   %s\n", *eq.ShakemapURL)
	}
}

func printEarthquakeTable(w io.Writer, quakes []domain.Earthquake, total, offset int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tMAG\tDEPTH\tLAT\tLON\tREGION")
	for _, eq := range quakes {
		fmt.Fprintf(tw, "%s\t%.1f\t%s km\t%s\t%s\t%s\n",
			displayTime(eq), eq.Magnitude, formatFloat(eq.DepthKm),
			formatFloat(eq.Latitude), formatFloat(eq.Longitude), eq.RegionLabel)
	}
	tw.Flush()
	if len(quakes) > 0 {
		fmt.Fprintf(w, "\nShowing %d-%d of %d\n", offset+1, offset+len(quakes), total)
	} else {
		fmt.Fprintf(w, "\nNo earthquakes (total %d)\n", total)
	}
}

func printStats(w io.Writer, s domain.Stats) {
	fmt.Fprintf(w, "Total:      %d\n", s.Total)
	fmt.Fprintf(w, "Today:      %d\n", s.TodayCount)
	if s.Strongest != nil {
		fmt.Fprintf(w, "Strongest:  M%.1f %s (%s)\n", s.Strongest.Magnitude, s.Strongest.RegionLabel, displayTime(*s.Strongest))
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MAGNITUDE\tCOUNT")
	for _, b := range s.ByMagnitude {
		fmt.Fprintf(tw, "%s\t%d\n", b.Range, b.Count)
	}
	tw.Flush()
}
