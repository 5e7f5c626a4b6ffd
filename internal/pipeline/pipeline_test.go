package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/observability"
	"github.com/couchcryptid/quake-alert-service/internal/pipeline"
	"github.com/couchcryptid/quake-alert-service/internal/store/memory"
)

// --- mocks ---

type stubSource struct {
	name      string
	bulletins []domain.Bulletin
	err       error
	gate      chan struct{} // when set, Fetch waits for it or ctx
	calls     atomic.Int32
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) Fetch(ctx context.Context) ([]domain.Bulletin, error) {
	s.calls.Add(1)
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, &domain.UpstreamUnavailableError{Source: s.name, Err: ctx.Err()}
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.bulletins, nil
}

// flakyStore fails every Upsert after the first okUpserts calls.
type flakyStore struct {
	*memory.Store
	okUpserts int32
	upserts   atomic.Int32
}

func (f *flakyStore) Upsert(ctx context.Context, eq domain.Earthquake) error {
	if f.upserts.Add(1) > f.okUpserts {
		return &domain.StoreUnavailableError{Op: "upsert", Err: errors.New("connection reset")}
	}
	return f.Store.Upsert(ctx, eq)
}

type recordingPublisher struct {
	mu      sync.Mutex
	batches map[string][]domain.Earthquake
	err     error
}

func (r *recordingPublisher) PublishBatch(_ context.Context, source string, quakes []domain.Earthquake) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.batches == nil {
		r.batches = make(map[string][]domain.Earthquake)
	}
	r.batches[source] = append(r.batches[source], quakes...)
	return r.err
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newPipeline(sources []pipeline.Source, st *memory.Store, metrics *observability.Metrics, opts ...pipeline.Option) *pipeline.Pipeline {
	return pipeline.New(sources, domain.NewNormalizer("https://data.bmkg.go.id"), st, discardLogger(), metrics, opts...)
}

// --- tests ---

func TestRunCycle_AllSourcesSucceed(t *testing.T) {
	st := memory.New(clockwork.NewFakeClockAt(t0))
	metrics := newTestMetrics()
	sources := []pipeline.Source{
		&stubSource{name: "autogempa", bulletins: bulletins(domain.ShapeLatest, scenarioRecord())},
		&stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent,
			scenarioRecord(),
			rawRecord("2024-01-01T01:00:00", "-7.0,110.0", "5.1", "20 km"),
		)},
		&stubSource{name: "gempadirasakan", bulletins: bulletins(domain.ShapeFelt,
			rawRecord("2024-01-01T02:00:00", "-8.0,115.0", "3.4", "5 km"),
		)},
	}

	logs := newPipeline(sources, st, metrics).RunCycle(context.Background())

	require.Len(t, logs, 3)
	for i, name := range []string{"autogempa", "gempaterkini", "gempadirasakan"} {
		assert.Equal(t, name, logs[i].SourceName)
		assert.Equal(t, domain.FetchSuccess, logs[i].Status, logs[i].Message)
	}
	assert.Equal(t, 2, logs[1].Records)
	assert.Equal(t, 3, st.Len(), "the event reported by two feeds collapses to one row")
	assert.Len(t, st.FetchLogs(), 3)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.UpsertsTotal), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.CyclesInFlight), 0)
}

func TestRunCycle_ScenarioRecordStored(t *testing.T) {
	st := memory.New(clockwork.NewFakeClockAt(t0))
	src := &stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent, scenarioRecord())}

	newPipeline([]pipeline.Source{src}, st, newTestMetrics()).RunCycle(context.Background())

	rows, total, err := st.QueryAll(context.Background(), domain.QueryFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	eq := rows[0]
	assert.InDelta(t, 5.5, eq.Magnitude, 1e-9)
	assert.InDelta(t, 10.0, eq.DepthKm, 1e-9)
	assert.InDelta(t, -6.2, eq.Latitude, 1e-9)
	assert.InDelta(t, 106.8, eq.Longitude, 1e-9)
	assert.Equal(t, t0.UnixMilli(), eq.RecordedAt)
}

func TestRunCycle_SourceFailureIsolated(t *testing.T) {
	st := memory.New(nil)
	metrics := newTestMetrics()
	sources := []pipeline.Source{
		&stubSource{name: "autogempa", err: &domain.UpstreamUnavailableError{Source: "autogempa", Err: errors.New("status 503")}},
		&stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent, scenarioRecord())},
	}

	logs := newPipeline(sources, st, metrics).RunCycle(context.Background())

	require.Len(t, logs, 2)
	assert.Equal(t, domain.FetchError, logs[0].Status)
	assert.Contains(t, logs[0].Message, "status 503")
	assert.Equal(t, domain.FetchSuccess, logs[1].Status)
	assert.Equal(t, 1, st.Len())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchesTotal.WithLabelValues("autogempa", "error")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchesTotal.WithLabelValues("gempaterkini", "success")), 0)
}

func TestRunCycle_SlowSourceDoesNotBlockOthers(t *testing.T) {
	st := memory.New(nil)
	slow := &stubSource{name: "slow", gate: make(chan struct{})}
	fast := &stubSource{name: "fast", bulletins: bulletins(domain.ShapeRecent, scenarioRecord())}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	logs := newPipeline([]pipeline.Source{slow, fast}, st, newTestMetrics()).RunCycle(ctx)

	require.Len(t, logs, 2)
	assert.Equal(t, domain.FetchError, logs[0].Status)
	assert.Equal(t, domain.FetchSuccess, logs[1].Status)
	assert.Equal(t, 1, st.Len())
}

func TestRunCycle_MalformedRecordIsolated(t *testing.T) {
	st := memory.New(nil)
	metrics := newTestMetrics()
	src := &stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent,
		rawRecord("2024-01-01T01:00:00", "-7.0,110.0", "5.1", "20 km"),
		rawRecord("2024-01-01T02:00:00", "not,coords", "5.0", "10 km"),
		rawRecord("2024-01-01T03:00:00", "-8.0,115.0", "11.5", "10 km"),
		scenarioRecord(),
	)}

	logs := newPipeline([]pipeline.Source{src}, st, metrics).RunCycle(context.Background())

	require.Len(t, logs, 1)
	assert.Equal(t, domain.FetchSuccess, logs[0].Status)
	assert.Equal(t, 2, logs[0].Records)
	assert.Contains(t, logs[0].Message, "rejected 2 malformed")
	assert.Equal(t, 2, st.Len())
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.NormalizeErrors.WithLabelValues("gempaterkini")), 0)
}

func TestRunCycle_StoreFailureStopsSource(t *testing.T) {
	st := &flakyStore{Store: memory.New(nil), okUpserts: 1}
	src := &stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent,
		scenarioRecord(),
		rawRecord("2024-01-01T01:00:00", "-7.0,110.0", "5.1", "20 km"),
		rawRecord("2024-01-01T02:00:00", "-8.0,115.0", "5.2", "10 km"),
	)}

	p := pipeline.New([]pipeline.Source{src}, domain.NewNormalizer(""), st, discardLogger(), newTestMetrics())
	logs := p.RunCycle(context.Background())

	require.Len(t, logs, 1)
	assert.Equal(t, domain.FetchError, logs[0].Status)
	assert.Equal(t, 1, logs[0].Records)
	assert.Contains(t, logs[0].Message, "store failure")
	assert.Equal(t, int32(2), st.upserts.Load(), "no further upserts after the first failure")
}

func TestRunCycle_Idempotent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	sources := []pipeline.Source{
		&stubSource{name: "autogempa", bulletins: bulletins(domain.ShapeLatest, scenarioRecord())},
		&stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent,
			scenarioRecord(),
			rawRecord("2024-01-01T01:00:00", "-7.0,110.0", "5.1", "20 km"),
		)},
	}

	once := memory.New(clock)
	newPipeline(sources, once, newTestMetrics()).RunCycle(context.Background())
	onceRows, _, err := once.QueryAll(context.Background(), domain.QueryFilter{})
	require.NoError(t, err)

	twice := memory.New(clock)
	p := newPipeline(sources, twice, newTestMetrics())
	p.RunCycle(context.Background())
	clock.Advance(5 * time.Minute)
	p.RunCycle(context.Background())
	twiceRows, _, err := twice.QueryAll(context.Background(), domain.QueryFilter{})
	require.NoError(t, err)

	if diff := cmp.Diff(onceRows, twiceRows); diff != "" {
		t.Fatalf("second cycle changed the store (-once +twice):\n%s", diff)
	}
}

func TestRunCycle_PublishesUpserted(t *testing.T) {
	pub := &recordingPublisher{}
	src := &stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent,
		scenarioRecord(),
		rawRecord("2024-01-01T02:00:00", "bad", "5.0", "10 km"),
	)}

	newPipeline([]pipeline.Source{src}, memory.New(nil), newTestMetrics(), pipeline.WithPublisher(pub)).
		RunCycle(context.Background())

	require.Len(t, pub.batches["gempaterkini"], 1)
	assert.Equal(t, "2024-01-01T00_00_00Z_-6.2_106.8", pub.batches["gempaterkini"][0].ID)
}

func TestRunCycle_PublishFailureDoesNotFailCycle(t *testing.T) {
	metrics := newTestMetrics()
	pub := &recordingPublisher{err: errors.New("kafka down")}
	src := &stubSource{name: "gempaterkini", bulletins: bulletins(domain.ShapeRecent, scenarioRecord())}

	logs := newPipeline([]pipeline.Source{src}, memory.New(nil), metrics, pipeline.WithPublisher(pub)).
		RunCycle(context.Background())

	assert.Equal(t, domain.FetchSuccess, logs[0].Status)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PublishErrors), 0)
}

func TestCheckReadiness(t *testing.T) {
	p := newPipeline([]pipeline.Source{&stubSource{name: "autogempa", err: errors.New("down")}}, memory.New(nil), newTestMetrics())

	require.Error(t, p.CheckReadiness(context.Background()))
	p.RunCycle(context.Background())
	assert.NoError(t, p.CheckReadiness(context.Background()), "a failed fetch still reaches the store via its fetch log")
}

func TestRun_TicksAndStops(t *testing.T) {
	clock := clockwork.NewFakeClock()
	metrics := newTestMetrics()
	src := &stubSource{name: "autogempa", bulletins: bulletins(domain.ShapeLatest, scenarioRecord())}
	p := newPipeline([]pipeline.Source{src}, memory.New(clock), metrics,
		pipeline.WithClock(clock), pipeline.WithInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.PipelineRunning), 0)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestRun_OverlappingCycles(t *testing.T) {
	clock := clockwork.NewFakeClock()
	metrics := newTestMetrics()
	src := &stubSource{name: "slow", gate: make(chan struct{}), bulletins: bulletins(domain.ShapeLatest, scenarioRecord())}
	st := memory.New(clock)
	p := newPipeline([]pipeline.Source{src}, st, metrics, pipeline.WithClock(clock), pipeline.WithInterval(time.Minute))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	require.Eventually(t, func() bool { return src.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return src.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.CyclesInFlight), 0)

	close(src.gate)
	require.Eventually(t, func() bool { return testutil.ToFloat64(metrics.CyclesInFlight) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, st.Len())

	cancel()
	require.NoError(t, <-done)
}

// --- helpers ---

func rawRecord(dateTime, coords, magnitude, depth string) domain.RawRecord {
	return domain.RawRecord{
		DateTime:    dateTime,
		Coordinates: coords,
		Magnitude:   magnitude,
		Kedalaman:   depth,
		Wilayah:     "test region",
	}
}

func scenarioRecord() domain.RawRecord {
	return rawRecord("2024-01-01T00:00:00", "-6.2,106.8", "5.5", "10 km")
}

func bulletins(shape domain.FeedShape, records ...domain.RawRecord) []domain.Bulletin {
	out := make([]domain.Bulletin, len(records))
	for i, r := range records {
		out[i] = domain.Bulletin{Shape: shape, Index: i, Record: r}
	}
	return out
}
