// Package snapshot periodically exports the full earthquake store as JSONL.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/observability"
	"github.com/couchcryptid/quake-alert-service/internal/store"
)

// Destination receives a complete JSONL snapshot.
type Destination interface {
	Write(ctx context.Context, data []byte) error
}

// ExportJSONL writes every stored earthquake to w, one JSON object per line,
// newest first. It returns the number of records written.
func ExportJSONL(ctx context.Context, st store.Store, w io.Writer) (int, error) {
	quakes, _, err := st.QueryAll(ctx, domain.QueryFilter{})
	if err != nil {
		return 0, fmt.Errorf("list earthquakes: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, eq := range quakes {
		if err := enc.Encode(eq); err != nil {
			return 0, fmt.Errorf("encode earthquake %s: %w", eq.ID, err)
		}
	}
	return len(quakes), nil
}

// Exporter writes a snapshot to its destination on every tick.
type Exporter struct {
	store    store.Store
	dest     Destination
	interval time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewExporter creates an Exporter. A nil clock uses real time.
func NewExporter(st store.Store, dest Destination, interval time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Exporter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Exporter{
		store:    st,
		dest:     dest,
		interval: interval,
		clock:    clock,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run exports on every tick until ctx is cancelled. The first export happens
// one interval after start, when the first ingestion cycle has had time to
// fill the store.
func (e *Exporter) Run(ctx context.Context) error {
	e.logger.Info("snapshot exporter started", "interval", e.interval)
	ticker := e.clock.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			if err := e.ExportOnce(ctx); err != nil {
				e.logger.Warn("snapshot failed", "error", err)
			}
		}
	}
}

// ExportOnce writes one snapshot.
func (e *Exporter) ExportOnce(ctx context.Context) error {
	var buf bytes.Buffer
	n, err := ExportJSONL(ctx, e.store, &buf)
	if err != nil {
		e.metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return err
	}
	if err := e.dest.Write(ctx, buf.Bytes()); err != nil {
		e.metrics.SnapshotsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("write snapshot: %w", err)
	}
	e.metrics.SnapshotsTotal.WithLabelValues("success").Inc()
	e.logger.Info("snapshot written", "records", n, "bytes", buf.Len())
	return nil
}
