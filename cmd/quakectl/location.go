package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/quake-alert-service/internal/adapter/mapbox"
	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// placeLookup is the subset of the geocoder used by the location commands.
type placeLookup interface {
	Forward(ctx context.Context, query string) (mapbox.Place, error)
	Reverse(ctx context.Context, lat, lon float64) (mapbox.Place, error)
}

// placeName names the place at (lat, lon), or returns "" when geocoding is
// unavailable or fails. The name is informational only.
func placeName(ctx context.Context, geo placeLookup, lat, lon float64) string {
	if geo == nil {
		return ""
	}
	p, err := geo.Reverse(ctx, lat, lon)
	if err != nil {
		logger.Debug("reverse geocode failed", "error", err)
		return ""
	}
	return p.FullName
}

// newGeocoder returns nil when MAPBOX_TOKEN is unset.
func newGeocoder() placeLookup {
	token := os.Getenv("MAPBOX_TOKEN")
	if token == "" {
		return nil
	}
	return mapbox.NewClient(token, "id", 10*time.Second, logger)
}

// resolveLocation builds the location from --place or --lat/--lon.
func resolveLocation(cmd *cobra.Command, geo placeLookup) (domain.UserLocation, string, error) {
	radius, _ := cmd.Flags().GetFloat64("radius")
	place, _ := cmd.Flags().GetString("place")
	hasCoords := cmd.Flags().Changed("lat") || cmd.Flags().Changed("lon")

	switch {
	case place != "" && hasCoords:
		return domain.UserLocation{}, "", errors.New("use either --place or --lat/--lon, not both")
	case place != "":
		if geo == nil {
			return domain.UserLocation{}, "", errors.New("--place needs MAPBOX_TOKEN to be set")
		}
		p, err := geo.Forward(cmd.Context(), place)
		if err != nil {
			return domain.UserLocation{}, "", fmt.Errorf("look up %q: %w", place, err)
		}
		return domain.UserLocation{Latitude: p.Latitude, Longitude: p.Longitude, RadiusKm: radius}, p.FullName, nil
	case cmd.Flags().Changed("lat") && cmd.Flags().Changed("lon"):
		lat, _ := cmd.Flags().GetFloat64("lat")
		lon, _ := cmd.Flags().GetFloat64("lon")
		return domain.UserLocation{Latitude: lat, Longitude: lon, RadiusKm: radius}, placeName(cmd.Context(), geo, lat, lon), nil
	default:
		return domain.UserLocation{}, "", errors.New("set --lat and --lon, or --place")
	}
}

var locationCmd = &cobra.Command{
	Use:     "location",
	Short:   "Manage the alert location",
	GroupID: "alerts",
}

var locationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Set the alert location and radius",
	RunE: func(cmd *cobra.Command, args []string) error {
		loc, name, err := resolveLocation(cmd, newGeocoder())
		if err != nil {
			return err
		}
		if err := state.SetLocation(loc); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), loc)
		}
		if name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved %s.\n", name)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Location set to %s, %s within %s km.\n",
			formatFloat(loc.Latitude), formatFloat(loc.Longitude), formatFloat(loc.RadiusKm))
		fmt.Fprintln(cmd.OutOrStdout(), "The next poll records a baseline and raises no alerts.")
		return nil
	},
}

var locationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the alert location",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := state.Load()
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), st.Location)
		}
		if st.Location == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No location set. Run: quakectl location set --lat <lat> --lon <lon>")
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Latitude:   %s\n", formatFloat(st.Location.Latitude))
		fmt.Fprintf(cmd.OutOrStdout(), "Longitude:  %s\n", formatFloat(st.Location.Longitude))
		fmt.Fprintf(cmd.OutOrStdout(), "Radius:     %s km\n", formatFloat(st.Location.RadiusKm))
		if name := placeName(cmd.Context(), newGeocoder(), st.Location.Latitude, st.Location.Longitude); name != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "Near:       %s\n", name)
		}
		if !st.LastPollAt.IsZero() {
			fmt.Fprintf(cmd.OutOrStdout(), "Last poll:  %s\n", st.LastPollAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var locationClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the alert location",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := state.ClearLocation(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Location cleared.")
		return nil
	},
}

func init() {
	locationSetCmd.Flags().Float64("lat", 0, "latitude in degrees (-90 to 90)")
	locationSetCmd.Flags().Float64("lon", 0, "longitude in degrees (-180 to 180)")
	locationSetCmd.Flags().Float64("radius", 100, "alert radius in km")
	locationSetCmd.Flags().String("place", "", "place name to geocode instead of --lat/--lon (needs MAPBOX_TOKEN)")

	locationCmd.AddCommand(locationSetCmd)
	locationCmd.AddCommand(locationShowCmd)
	locationCmd.AddCommand(locationClearCmd)
}
