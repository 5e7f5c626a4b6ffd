package postgres

import (
	"database/sql"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanEarthquake scans a single row into a domain.Earthquake.
// The row must contain columns in the order defined by earthquakeColumns.
func scanEarthquake(row scannable) (domain.Earthquake, error) {
	var eq domain.Earthquake
	var tsunami, felt, shakemap sql.NullString

	err := row.Scan(
		&eq.ID,
		&eq.OccurredAt,
		&eq.DisplayTime,
		&eq.Magnitude,
		&eq.DepthKm,
		&eq.Latitude,
		&eq.Longitude,
		&eq.RegionLabel,
		&tsunami,
		&felt,
		&shakemap,
		&eq.RecordedAt,
	)
	if err != nil {
		return domain.Earthquake{}, err
	}

	eq.TsunamiPotential = stringPtr(tsunami)
	eq.FeltReport = stringPtr(felt)
	eq.ShakemapURL = stringPtr(shakemap)
	return eq, nil
}

// scanEarthquakeWithTotal scans a row that has a leading total_count column.
func scanEarthquakeWithTotal(rows *sql.Rows) (domain.Earthquake, int, error) {
	var eq domain.Earthquake
	var total int
	var tsunami, felt, shakemap sql.NullString

	err := rows.Scan(
		&total,
		&eq.ID,
		&eq.OccurredAt,
		&eq.DisplayTime,
		&eq.Magnitude,
		&eq.DepthKm,
		&eq.Latitude,
		&eq.Longitude,
		&eq.RegionLabel,
		&tsunami,
		&felt,
		&shakemap,
		&eq.RecordedAt,
	)
	if err != nil {
		return domain.Earthquake{}, 0, err
	}

	eq.TsunamiPotential = stringPtr(tsunami)
	eq.FeltReport = stringPtr(felt)
	eq.ShakemapURL = stringPtr(shakemap)
	return eq, total, nil
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
