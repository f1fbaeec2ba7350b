// Package retention implements time-based purge of spans and their index
// entries, using a snowflake-derived cutoff so the expensive part of the
// work (dropping arbitrarily old data) reduces to two range operations.
package retention

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
)

// ErrCutoffOutOfRange is returned when the retention duration exceeds what
// the snowflake epoch can represent as a cutoff id. It wraps
// store.ErrUnexpected.
var ErrCutoffOutOfRange = fmt.Errorf("retention: cutoff duration out of range: %w", store.ErrUnexpected)

// Purger deletes spans and index entries older than a configured
// duration. Span keys are always deleted before index keys in the same
// pass: a concurrent query may then observe index entries pointing at an
// already-deleted span, which is safe because a span fetch for a missing
// id returns empty rather than erroring. The reverse order would instead
// leave unreferenced span blobs, which is worse.
type Purger struct {
	store   store.Store
	metrics *obs.Metrics
}

// New returns a Purger operating against s.
func New(s store.Store, metrics *obs.Metrics) *Purger {
	return &Purger{store: s, metrics: metrics}
}

// PurgeSpans deletes every span and index entry whose span id is older
// than duration d, idempotently and re-runnably.
func (p *Purger) PurgeSpans(ctx context.Context, d time.Duration) error {
	start := time.Now()
	defer func() { p.metrics.ObservePurge(time.Since(start)) }()

	cutoff, ok := snowflake.FromDuration(d)
	if !ok {
		return ErrCutoffOutOfRange
	}

	spanFrom := store.SpanKey(0)
	spanTo := store.SpanKey(cutoff)
	if err := p.store.DeleteRange(ctx, spanFrom, spanTo); err != nil {
		return fmt.Errorf("retention: delete span range: %w", err)
	}

	return p.purgeStaleIndexes(ctx, cutoff)
}

// purgeStaleIndexes scans every Index key, and batches deletes for entries
// whose span-id suffix is older than cutoff, flushing whenever the batch
// grows large to bound transaction size.
func (p *Purger) purgeStaleIndexes(ctx context.Context, cutoff uint64) error {
	from := []byte{byte(store.SubspaceTelemetry), byte(store.TagIndex)}
	to := []byte{byte(store.SubspaceTelemetry), byte(store.TagIndex) + 1}

	var batch store.Batch
	var spanDeletesInBatch, indexDeletesInBatch int

	flush := func() error {
		if batch.Len() == 0 {
			return nil
		}
		if err := p.store.Write(ctx, &batch); err != nil {
			return fmt.Errorf("retention: flush index delete batch: %w", err)
		}
		p.metrics.RecordPurgeBatch(spanDeletesInBatch, indexDeletesInBatch)
		batch.Reset()
		spanDeletesInBatch, indexDeletesInBatch = 0, 0
		return nil
	}

	var scanErr error
	err := p.store.Iterate(ctx, store.IterateParams{
		FromKey:   from,
		ToKey:     to,
		Ascending: true,
		NoValues:  true,
	}, func(key, _ []byte) (bool, error) {
		valueLen := len(key) - 2 - 8
		if valueLen < 0 {
			return true, nil
		}
		spanID, err := store.SpanIDFromIndexKey(key, valueLen)
		if err != nil {
			return true, nil
		}
		if spanID >= cutoff {
			return true, nil
		}

		batch.Clear(append([]byte(nil), key...))
		indexDeletesInBatch++
		if batch.IsLarge() {
			if err := flush(); err != nil {
				scanErr = err
				return false, err
			}
		}
		return true, nil
	})
	if err != nil {
		return err
	}
	if scanErr != nil {
		return scanErr
	}
	return flush()
}

// PurgeAll runs PurgeSpans for each duration concurrently via an errgroup,
// useful when multiple independent retention windows (e.g. per tenant
// tier) need to run against the same store without serializing.
func (p *Purger) PurgeAll(ctx context.Context, durations []time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, d := range durations {
		d := d
		g.Go(func() error {
			return p.PurgeSpans(ctx, d)
		})
	}
	return g.Wait()
}
