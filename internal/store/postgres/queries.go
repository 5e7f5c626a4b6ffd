package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// earthquakeColumns is the column list used for SELECT statements on the earthquakes table.
const earthquakeColumns = `id, occurred_at, display_time, magnitude, depth_km, latitude, longitude,
	region, tsunami_potential, felt_report, shakemap_url, recorded_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queryUpsertEarthquake inserts or replaces a row. recorded_at is only written
// on insert; optional columns keep their stored value when the new one is NULL.
func queryUpsertEarthquake(ctx context.Context, db executor, eq domain.Earthquake, recordedAt int64) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO earthquakes (
			id, occurred_at, display_time, magnitude, depth_km, latitude, longitude,
			region, tsunami_potential, felt_report, shakemap_url, recorded_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			occurred_at = EXCLUDED.occurred_at,
			display_time = EXCLUDED.display_time,
			magnitude = EXCLUDED.magnitude,
			depth_km = EXCLUDED.depth_km,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			region = EXCLUDED.region,
			tsunami_potential = COALESCE(EXCLUDED.tsunami_potential, earthquakes.tsunami_potential),
			felt_report = COALESCE(EXCLUDED.felt_report, earthquakes.felt_report),
			shakemap_url = COALESCE(EXCLUDED.shakemap_url, earthquakes.shakemap_url)`,
		eq.ID,
		eq.OccurredAt,
		eq.DisplayTime,
		eq.Magnitude,
		eq.DepthKm,
		eq.Latitude,
		eq.Longitude,
		eq.RegionLabel,
		nullStringPtr(eq.TsunamiPotential),
		nullStringPtr(eq.FeltReport),
		nullStringPtr(eq.ShakemapURL),
		recordedAt,
	)
	return err
}

func queryGetEarthquake(ctx context.Context, db executor, id string) (domain.Earthquake, error) {
	row := db.QueryRowContext(ctx, `SELECT `+earthquakeColumns+` FROM earthquakes WHERE id = $1`, id)
	return scanEarthquake(row)
}

func queryListEarthquakes(ctx context.Context, db executor, filter domain.QueryFilter) ([]domain.Earthquake, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if filter.MinMagnitude != nil {
		whereClauses = append(whereClauses, "magnitude >= "+nextArg())
		args = append(args, *filter.MinMagnitude)
	}
	if filter.MaxMagnitude != nil {
		whereClauses = append(whereClauses, "magnitude <= "+nextArg())
		args = append(args, *filter.MaxMagnitude)
	}
	if filter.Since > 0 {
		whereClauses = append(whereClauses, "occurred_at >= "+nextArg())
		args = append(args, filter.Since)
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}
	whereArgs := len(args)

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + earthquakeColumns +
		" FROM earthquakes" + whereSQL + " ORDER BY occurred_at DESC, id ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list earthquakes: %w", err)
	}
	defer rows.Close()

	quakes := []domain.Earthquake{}
	var total int
	for rows.Next() {
		eq, t, err := scanEarthquakeWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan earthquakes: %w", err)
		}
		total = t
		quakes = append(quakes, eq)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("scan earthquakes: %w", err)
	}

	// A page past the end has no rows to carry the window count.
	if len(quakes) == 0 && filter.Offset > 0 {
		err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM earthquakes"+whereSQL, args[:whereArgs]...).Scan(&total)
		if err != nil {
			return nil, 0, fmt.Errorf("count earthquakes: %w", err)
		}
	}

	return quakes, total, nil
}

func queryInsertFetchLog(ctx context.Context, db executor, entry domain.FetchLog) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO fetch_logs (id, source, status, message, records, at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID,
		entry.SourceName,
		string(entry.Status),
		entry.Message,
		entry.Records,
		entry.At,
	)
	return err
}
