package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

var latestCmd = &cobra.Command{
	Use:     "latest",
	Short:   "Show the most recent earthquake",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		eq, err := api.Latest(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), eq)
		}
		printEarthquake(cmd.OutOrStdout(), eq)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show catalogue statistics",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := api.Stats(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), stats)
		}
		printStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List earthquakes, newest first",
	GroupID: "data",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")
		since, _ := cmd.Flags().GetString("since")

		filter := domain.QueryFilter{Limit: limit, Offset: offset}
		if cmd.Flags().Changed("min-mag") {
			v, _ := cmd.Flags().GetFloat64("min-mag")
			filter.MinMagnitude = &v
		}
		if cmd.Flags().Changed("max-mag") {
			v, _ := cmd.Flags().GetFloat64("max-mag")
			filter.MaxMagnitude = &v
		}
		if since != "" {
			ms, err := parseSince(since, time.Now())
			if err != nil {
				return err
			}
			filter.Since = ms
		}

		page, err := api.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), page.Earthquakes)
		}
		printEarthquakeTable(cmd.OutOrStdout(), page.Earthquakes, page.Total, page.Offset)
		return nil
	},
}

func init() {
	listCmd.Flags().Int("limit", 20, "maximum number of earthquakes to return")
	listCmd.Flags().Int("offset", 0, "offset for pagination")
	listCmd.Flags().Float64("min-mag", 0, "minimum magnitude")
	listCmd.Flags().Float64("max-mag", 0, "maximum magnitude")
	listCmd.Flags().String("since", "", `lower time bound: "today", a duration such as 24h or 7d, or RFC 3339`)
}

// parseSince turns a --since value into epoch milliseconds. "today" is local
// midnight; "Nd" is N days.
func parseSince(s string, now time.Time) (int64, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "today":
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).UnixMilli(), nil
	case strings.HasSuffix(s, "d"):
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || days <= 0 {
			return 0, fmt.Errorf("invalid --since %q", s)
		}
		return now.AddDate(0, 0, -days).UnixMilli(), nil
	}
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return now.Add(-d).UnixMilli(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UnixMilli(), nil
	}
	return 0, fmt.Errorf("invalid --since %q", s)
}

var getCmd = &cobra.Command{
	Use:     "get <id>",
	Short:   "Show one earthquake by id",
	GroupID: "data",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eq, err := api.ByID(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), eq)
		}
		printEarthquake(cmd.OutOrStdout(), eq)
		return nil
	},
}
