package pipeline

import (
	"context"
	"fmt"

	"github.com/couchcryptid/quake-alert-service/internal/domain"
)

// ingestSource runs fetch, normalize, and upsert for one source and reports
// the outcome as a FetchLog. Malformed records are skipped; a store failure
// stops this source only.
func (p *Pipeline) ingestSource(ctx context.Context, src Source) domain.FetchLog {
	name := src.Name()

	bulletins, err := src.Fetch(ctx)
	if err != nil {
		p.logger.Warn("fetch failed", "source", name, "error", err)
		p.metrics.FetchesTotal.WithLabelValues(name, string(domain.FetchError)).Inc()
		return domain.NewFetchLog(name, domain.FetchError, err.Error(), 0)
	}

	upserted := make([]domain.Earthquake, 0, len(bulletins))
	rejected := 0
	for _, b := range bulletins {
		eq, err := p.normalizer.Normalize(b)
		if err != nil {
			p.logger.Warn("record rejected", "source", name, "index", b.Index, "error", err)
			p.metrics.NormalizeErrors.WithLabelValues(name).Inc()
			rejected++
			continue
		}
		p.metrics.RecordsNormalized.WithLabelValues(name).Inc()

		if err := p.store.Upsert(ctx, eq); err != nil {
			p.logger.Error("upsert failed", "source", name, "record_id", eq.ID, "error", err)
			p.metrics.FetchesTotal.WithLabelValues(name, string(domain.FetchError)).Inc()
			p.publish(ctx, name, upserted)
			return domain.NewFetchLog(name, domain.FetchError,
				fmt.Sprintf("stored %d of %d records before store failure: %v", len(upserted), len(bulletins), err),
				len(upserted))
		}
		p.metrics.UpsertsTotal.Inc()
		upserted = append(upserted, eq)
	}

	p.publish(ctx, name, upserted)
	p.metrics.FetchesTotal.WithLabelValues(name, string(domain.FetchSuccess)).Inc()
	p.logger.Debug("source ingested", "source", name, "stored", len(upserted), "rejected", rejected)

	msg := fmt.Sprintf("stored %d records", len(upserted))
	if rejected > 0 {
		msg += fmt.Sprintf(", rejected %d malformed", rejected)
	}
	return domain.NewFetchLog(name, domain.FetchSuccess, msg, len(upserted))
}

func (p *Pipeline) publish(ctx context.Context, source string, quakes []domain.Earthquake) {
	if p.publisher == nil || len(quakes) == 0 {
		return
	}
	if err := p.publisher.PublishBatch(ctx, source, quakes); err != nil {
		p.logger.Warn("publish failed", "source", source, "count", len(quakes), "error", err)
		p.metrics.PublishErrors.Inc()
	}
}
