// Package aggregator runs the single-consumer span aggregator: it holds
// open spans in memory, appends non-terminal events, and on span-end emits
// one atomic batch containing the span blob plus its index entries.
package aggregator

import (
	"context"
	"encoding/binary"
	"log/slog"
	"time"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
)

// MaxEvents is the most events held in memory for a single open span.
// Events past this cap are dropped silently: bounded memory is the harder
// requirement than completeness for a span that never closes cleanly.
const MaxEvents = 2048

// Config tunes the aggregator's flush behavior.
type Config struct {
	// ChannelSize bounds the in-process event channel the aggregator reads
	// from; producers block (or the caller's send select falls back) once
	// it fills.
	ChannelSize int

	// FlushEveryBatch controls when the accumulated write batch is sent to
	// the store. True flushes after every channel receive batch, which
	// keeps data visible promptly. False, the zero value (setDefaults does
	// not change it), defers the flush until the batch crosses
	// store.LargeBatchThreshold or Run exits, trading visibility latency
	// for fewer round trips under sustained load. cmd/spanstore sets it
	// true.
	FlushEveryBatch bool

	Metrics *obs.Metrics
}

func (c *Config) setDefaults() {
	if c.ChannelSize == 0 {
		c.ChannelSize = 4096
	}
}

// openSpan is one span's in-memory buffer. The span-start event is kept
// separately from body so MaxEvents bounds only the body list, matching
// the persisted shape: start + up to MaxEvents body events + end.
type openSpan struct {
	start *events.Event
	body  []events.Event
}

// Aggregator is the single-consumer worker described in package docs. The
// open-span table is owned exclusively by the goroutine running Run and is
// never accessed concurrently, so it needs no lock.
type Aggregator struct {
	store  store.Store
	cfg    Config
	in     chan events.Event
	logger *slog.Logger

	openSpans map[uint64]*openSpan
	batch     store.Batch
}

// New returns an Aggregator writing committed spans to s.
func New(s store.Store, cfg Config) *Aggregator {
	cfg.setDefaults()
	return &Aggregator{
		store:     s,
		cfg:       cfg,
		in:        make(chan events.Event, cfg.ChannelSize),
		logger:    obs.GetLogger(),
		openSpans: make(map[uint64]*openSpan),
	}
}

// Events returns the channel producers send events on. Producers must emit
// a matching span-end for every span-start they open; an unmatched
// span-start leaks buffer capacity until process restart.
func (a *Aggregator) Events() chan<- events.Event {
	return a.in
}

// Run consumes events until ctx is cancelled or the channel is closed,
// draining and flushing on either exit path. It never returns an error:
// store failures are logged and the batch in flight is discarded, per the
// aggregator's "never surface errors upward" policy.
func (a *Aggregator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			a.drainPending()
			a.flush(context.WithoutCancel(ctx))
			return

		case evt, ok := <-a.in:
			if !ok {
				a.flush(context.WithoutCancel(ctx))
				return
			}
			a.ingest(evt)
			a.drainPending()
			if a.cfg.FlushEveryBatch || a.batch.IsLarge() {
				a.flush(ctx)
			}
		}
	}
}

// drainPending folds in any additional events already queued in the
// channel without blocking, so one Run iteration processes a full
// "received batch" before deciding whether to flush.
func (a *Aggregator) drainPending() {
	for {
		select {
		case evt, ok := <-a.in:
			if !ok {
				return
			}
			a.ingest(evt)
		default:
			return
		}
	}
}

func (a *Aggregator) ingest(evt events.Event) {
	spanID, ok := evt.HasSpanID()
	if !ok {
		a.cfg.Metrics.RecordEventsDropped("no_span_id", 1)
		return
	}

	if evt.Type.IsSpanEnd() {
		open := a.openSpans[spanID]
		delete(a.openSpans, spanID)
		a.commit(spanID, flatten(open, evt))
		a.cfg.Metrics.SetOpenSpans(len(a.openSpans))
		return
	}

	open, exists := a.openSpans[spanID]
	if !exists {
		open = &openSpan{}
		a.openSpans[spanID] = open
	}

	if evt.Type.IsSpanStart() && open.start == nil {
		open.start = &evt
		a.cfg.Metrics.SetOpenSpans(len(a.openSpans))
		return
	}

	if len(open.body) >= MaxEvents {
		a.cfg.Metrics.RecordEventsDropped("buffer_full", 1)
		return
	}
	open.body = append(open.body, evt)
	a.cfg.Metrics.SetOpenSpans(len(a.openSpans))
}

// flatten assembles a closing span's full event list: span-start (if any),
// the capped body buffer, then the span-end event.
func flatten(open *openSpan, end events.Event) []events.Event {
	n := 1
	if open != nil {
		n += len(open.body)
		if open.start != nil {
			n++
		}
	}
	full := make([]events.Event, 0, n)
	if open != nil && open.start != nil {
		full = append(full, *open.start)
	}
	if open != nil {
		full = append(full, open.body...)
	}
	full = append(full, end)
	return full
}

// commit extracts indexable attributes from a closing span's full event
// list and, if and only if it carries at least one queue id, adds the span
// blob and its index entries to the pending batch.
func (a *Aggregator) commit(spanID uint64, fullList []events.Event) {
	queueIDs := map[uint64]struct{}{}
	addresses := map[string]struct{}{}
	var startType events.Type
	haveStart := false

	for _, e := range fullList {
		if e.Type.IsSpanStart() && !haveStart {
			startType = e.Type
			haveStart = true
		}
		for _, attr := range e.Attrs {
			switch attr.Key {
			case events.KeyQueueID:
				if attr.Value.Kind == events.KindUInt {
					queueIDs[attr.Value.UInt] = struct{}{}
				}
			case events.KeyFrom, events.KeyDomain, events.KeyHostname:
				collectAddressValue(attr.Value, addresses)
			case events.KeyTo:
				collectAddressValue(attr.Value, addresses)
			case events.KeyRemoteIP:
				if attr.Value.Kind == events.KindIPv4 || attr.Value.Kind == events.KindIPv6 {
					addresses[attr.Value.IP.String()] = struct{}{}
				}
			}
		}
	}

	if len(queueIDs) == 0 {
		return
	}

	blob := events.SerializeEvents(fullList)
	a.batch.Set(store.SpanKey(spanID), blob)

	if haveStart {
		var typeBytes [2]byte
		binary.BigEndian.PutUint16(typeBytes[:], startType.Code())
		a.batch.Set(store.IndexKey(typeBytes[:], spanID), nil)
	}

	for qid := range queueIDs {
		var qidBytes [8]byte
		binary.BigEndian.PutUint64(qidBytes[:], qid)
		a.batch.Set(store.IndexKey(qidBytes[:], spanID), nil)
	}

	for addr := range addresses {
		a.batch.Set(store.IndexKey([]byte(addr), spanID), nil)
	}

	a.cfg.Metrics.RecordSpanCommitted("queue_id_set")
}

// collectAddressValue appends val's string content to addresses, expanding
// a KindArray value (the To attribute may repeat) into each element.
func collectAddressValue(val events.Value, addresses map[string]struct{}) {
	switch val.Kind {
	case events.KindString:
		if val.Str != "" {
			addresses[val.Str] = struct{}{}
		}
	case events.KindArray:
		for _, elem := range val.Array {
			collectAddressValue(elem, addresses)
		}
	}
}

func (a *Aggregator) flush(ctx context.Context) {
	if a.batch.Len() == 0 {
		return
	}
	start := time.Now()
	if err := a.store.Write(ctx, &a.batch); err != nil {
		a.logger.Error("aggregator: batch write failed, dropping batch", "error", err, "ops", a.batch.Len())
		a.batch.Reset()
		return
	}
	a.cfg.Metrics.ObserveFlush(time.Since(start))
	a.batch.Reset()
}
