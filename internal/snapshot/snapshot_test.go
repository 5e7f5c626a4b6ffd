package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/observability"
	"github.com/couchcryptid/quake-alert-service/internal/store/memory"
)

var t0 = time.Date(2024, 1, 15, 3, 0, 0, 0, time.UTC)

type memDest struct {
	mu     sync.Mutex
	writes [][]byte
	err    error
}

func (d *memDest) Write(_ context.Context, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.writes = append(d.writes, append([]byte(nil), data...))
	return nil
}

func (d *memDest) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.writes)
}

func seeded(t *testing.T) *memory.Store {
	t.Helper()
	st := memory.New(clockwork.NewFakeClockAt(t0))
	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, st.Upsert(context.Background(), domain.Earthquake{
			ID:         id,
			OccurredAt: t0.Add(time.Duration(i) * time.Hour).UnixMilli(),
			Magnitude:  4 + float64(i),
		}))
	}
	return st
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestExportJSONL(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), seeded(t), &buf)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var ids []string
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var eq domain.Earthquake
		require.NoError(t, json.Unmarshal(sc.Bytes(), &eq))
		ids = append(ids, eq.ID)
	}
	assert.Equal(t, []string{"new", "mid", "old"}, ids)
}

func TestExportJSONL_Empty(t *testing.T) {
	var buf bytes.Buffer
	n, err := ExportJSONL(context.Background(), memory.New(nil), &buf)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, buf.Len())
}

func TestExportOnce_Metrics(t *testing.T) {
	metrics := observability.NewMetricsForTesting()
	dest := &memDest{}
	e := NewExporter(seeded(t), dest, time.Hour, nil, discardLogger(), metrics)

	require.NoError(t, e.ExportOnce(context.Background()))
	assert.Equal(t, 1, dest.count())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("success")), 0)

	dest.err = errors.New("access denied")
	err := e.ExportOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.SnapshotsTotal.WithLabelValues("error")), 0)
}

func TestRun_ExportsOnTick(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	dest := &memDest{}
	e := NewExporter(seeded(t), dest, time.Hour, clock, discardLogger(), observability.NewMetricsForTesting())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Zero(t, dest.count(), "no export before the first tick")

	clock.Advance(time.Hour)
	require.Eventually(t, func() bool { return dest.count() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
