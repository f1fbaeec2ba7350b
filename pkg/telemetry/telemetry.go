// Package telemetry wires the aggregator, query, retention and undelete
// components over a single store.Store into the span query contract
// described in §6 of the design this module follows: get_span,
// get_raw_span, query_spans, purge_spans, hold_undelete, list_deleted.
// GetSpan, GetRawSpan, QuerySpans, PurgeSpans, PurgeAll and ListDeleted
// each open an OpenTelemetry span named after themselves, so tracing this
// process surfaces fetch, query, purge and list latency without extra
// call-site instrumentation. Events, Run, Close, HoldUndelete and Write
// open no span, and the aggregator's commits are not traced.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/aggregator"
	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
	"github.com/kadirpekel/spanstore/pkg/telemetry/query"
	"github.com/kadirpekel/spanstore/pkg/telemetry/retention"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
	"github.com/kadirpekel/spanstore/pkg/telemetry/undelete"
)

const tracerName = "github.com/kadirpekel/spanstore/pkg/telemetry"

// Config assembles every tunable the store's collaborators expose.
type Config struct {
	Aggregator aggregator.Config
	Undelete   undelete.Policy
	Metrics    *obs.Metrics
}

// Store is the span telemetry store's public surface: ingestion via its
// embedded aggregator, plus query, purge and undelete-reservation
// operations, all over one store.Store backend.
type Store struct {
	backend      store.Store
	aggregator   *aggregator.Aggregator
	purger       *retention.Purger
	reservations *undelete.Reservations
	metrics      *obs.Metrics
}

// New returns a Store layering every telemetry component over backend.
// Call Run in its own goroutine to start the aggregator consuming events.
func New(backend store.Store, cfg Config) *Store {
	return &Store{
		backend:      backend,
		aggregator:   aggregator.New(backend, cfg.Aggregator),
		purger:       retention.New(backend, cfg.Metrics),
		reservations: undelete.New(backend, cfg.Undelete, cfg.Metrics),
		metrics:      cfg.Metrics,
	}
}

// Events returns the channel producers send events on.
func (s *Store) Events() chan<- events.Event {
	return s.aggregator.Events()
}

// Run drives the aggregator until ctx is cancelled. Callers run this in its
// own goroutine; it never returns an error.
func (s *Store) Run(ctx context.Context) {
	s.aggregator.Run(ctx)
}

// Close releases the backend's resources.
func (s *Store) Close() error {
	return s.backend.Close()
}

// GetSpan returns the decoded event list for spanID, or an empty slice if
// no span with that id was ever committed.
func (s *Store) GetSpan(ctx context.Context, spanID uint64) ([]events.Event, error) {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.GetSpan")
	defer span.End()
	span.SetAttributes(attribute.Int64("span_id", int64(spanID)))

	raw, ok, err := s.backend.GetValue(ctx, store.SpanKey(spanID))
	if err != nil {
		return nil, recordErr(span, store.AddLocation(err))
	}
	if !ok {
		return nil, nil
	}
	evts, err := events.DeserializeEvents(raw)
	if err != nil {
		return nil, recordErr(span, store.AddLocation(err))
	}
	return evts, nil
}

// GetRawSpan returns the undecoded blob stored under spanID, or
// (nil, false) if no such span was committed.
func (s *Store) GetRawSpan(ctx context.Context, spanID uint64) ([]byte, bool, error) {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.GetRawSpan")
	defer span.End()
	span.SetAttributes(attribute.Int64("span_id", int64(spanID)))

	raw, ok, err := s.backend.GetValue(ctx, store.SpanKey(spanID))
	if err != nil {
		return nil, false, recordErr(span, store.AddLocation(err))
	}
	return raw, ok, nil
}

// QuerySpans evaluates predicates' conjunction, bounded by [fromSpanID,
// toSpanID] (zero means unbounded on that side), and returns matching span
// ids in descending order.
func (s *Store) QuerySpans(ctx context.Context, predicates []query.Predicate, fromSpanID, toSpanID uint64) ([]uint64, error) {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.QuerySpans")
	defer span.End()
	span.SetAttributes(attribute.Int("predicate_count", len(predicates)))

	ids, err := query.QuerySpans(ctx, s.backend, predicates, query.Window{From: fromSpanID, To: toSpanID}, s.metrics)
	if err != nil {
		return nil, recordErr(span, store.AddLocation(err))
	}
	span.SetAttributes(attribute.Int("result_count", len(ids)))
	return ids, nil
}

// PurgeSpans deletes every span and index entry older than duration d.
// Idempotent and safe to re-run.
func (s *Store) PurgeSpans(ctx context.Context, d time.Duration) error {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.PurgeSpans")
	defer span.End()

	if err := s.purger.PurgeSpans(ctx, d); err != nil {
		return recordErr(span, store.AddLocation(err))
	}
	return nil
}

// PurgeAll runs PurgeSpans for every duration concurrently.
func (s *Store) PurgeAll(ctx context.Context, durations []time.Duration) error {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.PurgeAll")
	defer span.End()

	if err := s.purger.PurgeAll(ctx, durations); err != nil {
		return recordErr(span, store.AddLocation(err))
	}
	return nil
}

// HoldUndelete reserves hash against expiry-by-deletion for the configured
// retention window, adding the reservation write to batch. Callers commit
// batch via their own store.Write call.
func (s *Store) HoldUndelete(batch *store.Batch, accountID uint32, collection uint8, hash []byte, size uint32) {
	s.reservations.HoldUndelete(batch, accountID, collection, hash, size)
}

// Write atomically commits batch to the backend. Callers building a batch
// via HoldUndelete (typically alongside the blob delete it accompanies) use
// this to commit it.
func (s *Store) Write(ctx context.Context, batch *store.Batch) error {
	if err := s.backend.Write(ctx, batch); err != nil {
		return store.AddLocation(err)
	}
	return nil
}

// ListDeleted returns every live blob-hash reservation for accountID.
func (s *Store) ListDeleted(ctx context.Context, accountID uint32) ([]undelete.DeletedBlob, error) {
	ctx, span := obs.Tracer(tracerName).Start(ctx, "telemetry.ListDeleted")
	defer span.End()

	out, err := s.reservations.ListDeleted(ctx, accountID)
	if err != nil {
		return nil, recordErr(span, store.AddLocation(err))
	}
	return out, nil
}

func recordErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
