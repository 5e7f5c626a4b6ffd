package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/observability"
	"github.com/couchcryptid/quake-alert-service/internal/store"
)

// Source fetches one upstream feed. Whole-feed failures are returned as an
// error; per-record decode failures ride on the individual bulletins.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Bulletin, error)
}

// Normalizer converts one bulletin into a canonical earthquake.
type Normalizer interface {
	Normalize(b domain.Bulletin) (domain.Earthquake, error)
}

// Publisher forwards the earthquakes a source upserted during a cycle.
type Publisher interface {
	PublishBatch(ctx context.Context, source string, quakes []domain.Earthquake) error
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPublisher publishes every upserted batch. Publish failures never fail a cycle.
func WithPublisher(pub Publisher) Option {
	return func(p *Pipeline) { p.publisher = pub }
}

// WithClock overrides the scheduler clock.
func WithClock(c clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = c }
}

// WithInterval sets the scheduler tick. The default is five minutes.
func WithInterval(d time.Duration) Option {
	return func(p *Pipeline) { p.interval = d }
}

// Pipeline orchestrates the fetch-normalize-upsert cycle across sources.
type Pipeline struct {
	sources    []Source
	normalizer Normalizer
	store      store.Store
	publisher  Publisher
	logger     *slog.Logger
	metrics    *observability.Metrics
	clock      clockwork.Clock
	interval   time.Duration
	ready      atomic.Bool
	inFlight   sync.WaitGroup
}

// New creates a Pipeline over the given sources and store.
func New(sources []Source, n Normalizer, st store.Store, logger *slog.Logger, metrics *observability.Metrics, opts ...Option) *Pipeline {
	p := &Pipeline{
		sources:    sources,
		normalizer: n,
		store:      st,
		logger:     logger,
		metrics:    metrics,
		clock:      clockwork.NewRealClock(),
		interval:   5 * time.Minute,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckReadiness returns nil once a cycle has reached the store,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no ingestion cycle has reached the store yet")
	}
	return nil
}

// Run triggers a cycle immediately and then on every tick until ctx is
// cancelled. A tick that fires while an earlier cycle is still running starts
// another cycle alongside it; upserts are idempotent per id so overlapping
// cycles converge. Run waits for in-flight cycles before returning.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "interval", p.interval, "sources", len(p.sources))
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	p.startCycle(ctx)
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			p.inFlight.Wait()
			return nil
		case <-ticker.Chan():
			p.startCycle(ctx)
		}
	}
}

func (p *Pipeline) startCycle(ctx context.Context) {
	p.inFlight.Add(1)
	go func() {
		defer p.inFlight.Done()
		p.RunCycle(ctx)
	}()
}

// RunCycle fetches every source concurrently and returns one FetchLog per
// source, in source order. It never fails as a whole: a source that errors
// is recorded in its own log entry and the others proceed.
func (p *Pipeline) RunCycle(ctx context.Context) []domain.FetchLog {
	start := p.clock.Now()
	p.metrics.CyclesInFlight.Inc()
	defer p.metrics.CyclesInFlight.Dec()

	logs := make([]domain.FetchLog, len(p.sources))
	var wg sync.WaitGroup
	for i, src := range p.sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logs[i] = p.ingestSource(ctx, src)
		}()
	}
	wg.Wait()

	appended := 0
	for _, entry := range logs {
		if err := p.store.AppendFetchLog(ctx, entry); err != nil {
			p.logger.Error("append fetch log failed", "source", entry.SourceName, "error", err)
			continue
		}
		appended++
	}
	if appended > 0 {
		p.ready.Store(true)
	}

	duration := p.clock.Since(start)
	p.metrics.CycleDuration.Observe(duration.Seconds())
	p.logger.Info("ingestion cycle complete", "sources", len(logs), "duration", duration)
	return logs
}
