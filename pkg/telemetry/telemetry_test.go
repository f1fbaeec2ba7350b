package telemetry_test

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/spanstore/pkg/telemetry"
	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
	"github.com/kadirpekel/spanstore/pkg/telemetry/query"
	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store/badgerstore"
	"github.com/kadirpekel/spanstore/pkg/telemetry/undelete"
)

func newTestBackend(t *testing.T) *badgerstore.Store {
	opts := badger.DefaultOptions("")
	opts.SyncWrites = false
	dir := t.TempDir()
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return badgerstore.New(db)
}

func startEvt(spanID uint64, typ events.Type, attrs ...events.Attribute) events.Event {
	return events.Event{Type: typ, SpanID: events.WithSpanID(spanID), Timestamp: time.Unix(0, 0), Attrs: attrs}
}

// ingestSync pushes evts through s's channel and synchronously drains them
// with a throwaway aggregator run, bypassing the goroutine/channel timing a
// live Run loop would otherwise require in a test.
func ingestSync(t *testing.T, s *telemetry.Store, evts []events.Event) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	for _, e := range evts {
		s.Events() <- e
	}
	// Give the single-consumer goroutine a chance to consume the channel
	// before tearing it down; on ctx cancellation Run also drains whatever
	// is still queued and flushes the pending batch before returning.
	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done
}

func TestStore_S1_SingleSpanQueryAndFetch(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{})

	ingestSync(t, s, []events.Event{
		startEvt(5, events.TypeSpanStart),
		startEvt(5, events.TypeSmtpMailFrom,
			events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(42)},
			events.Attribute{Key: events.KeyFrom, Value: events.StringValue("a@x")},
		),
		startEvt(5, events.TypeSpanEnd),
	})

	ctx := context.Background()

	ids, err := s.QuerySpans(ctx, []query.Predicate{query.QueueId(42)}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, ids)

	ids, err = s.QuerySpans(ctx, []query.Predicate{query.Keywords(`"a@x"`)}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{5}, ids)

	evts, err := s.GetSpan(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, evts, 3)
	assert.Equal(t, events.TypeSpanStart, evts[0].Type)
	assert.Equal(t, events.TypeSpanEnd, evts[2].Type)
}

func TestStore_S2_DescendingOrder(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{})

	ingestSync(t, s, []events.Event{
		startEvt(10, events.TypeSpanStart),
		startEvt(10, events.TypeQueueMessage, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(7)}),
		startEvt(10, events.TypeSpanEnd),
		startEvt(11, events.TypeSpanStart),
		startEvt(11, events.TypeQueueMessage, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(7)}),
		startEvt(11, events.TypeSpanEnd),
	})

	ids, err := s.QuerySpans(context.Background(), []query.Predicate{query.QueueId(7)}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{11, 10}, ids)
}

func TestStore_S3_MultiPredicateIntersection(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{})

	ingestSync(t, s, []events.Event{
		startEvt(20, events.TypeSpanStart),
		startEvt(20, events.TypeSmtpMailFrom,
			events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(7)},
			events.Attribute{Key: events.KeyFrom, Value: events.StringValue("a@x")},
		),
		startEvt(20, events.TypeSpanEnd),
		startEvt(21, events.TypeSpanStart),
		startEvt(21, events.TypeSmtpMailFrom,
			events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(7)},
			events.Attribute{Key: events.KeyFrom, Value: events.StringValue("b@y")},
		),
		startEvt(21, events.TypeSpanEnd),
	})

	ctx := context.Background()
	ids, err := s.QuerySpans(ctx, []query.Predicate{query.QueueId(7), query.Keywords(`"a@x"`)}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{20}, ids)

	ids, err = s.QuerySpans(ctx, []query.Predicate{query.QueueId(7), query.Keywords(`"c@z"`)}, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_S4_BodyEventsCappedAtMaxEvents(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{})

	evts := make([]events.Event, 0, 3002)
	evts = append(evts, startEvt(30, events.TypeSpanStart))
	for i := 0; i < 3000; i++ {
		evts = append(evts, startEvt(30, events.TypeQueueMessage,
			events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(9)}))
	}
	evts = append(evts, startEvt(30, events.TypeSpanEnd))
	ingestSync(t, s, evts)

	got, err := s.GetSpan(context.Background(), 30)
	require.NoError(t, err)
	assert.Len(t, got, aggregatorMaxEventsPlusEnds)
}

// aggregatorMaxEventsPlusEnds mirrors aggregator.MaxEvents+2 (start+end)
// as a literal.
const aggregatorMaxEventsPlusEnds = 2048 + 2

func TestStore_S5_PurgeSpans(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{})

	gen, err := snowflake.New(1)
	require.NoError(t, err)

	oldID := gen.Next()
	time.Sleep(200 * time.Millisecond)
	newID := gen.Next()

	ingestSync(t, s, []events.Event{
		startEvt(oldID, events.TypeSpanStart),
		startEvt(oldID, events.TypeQueueMessage, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(1)}),
		startEvt(oldID, events.TypeSpanEnd),
		startEvt(newID, events.TypeSpanStart),
		startEvt(newID, events.TypeQueueMessage, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(1)}),
		startEvt(newID, events.TypeSpanEnd),
	})

	ctx := context.Background()
	require.NoError(t, s.PurgeSpans(ctx, 100*time.Millisecond))

	got, err := s.GetSpan(ctx, oldID)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.GetSpan(ctx, newID)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestStore_S6_HoldUndeleteListDeleted(t *testing.T) {
	backend := newTestBackend(t)
	s := telemetry.New(backend, telemetry.Config{
		Undelete: undelete.Policy{Enabled: true, Retention: 2 * time.Second},
	})

	ctx := context.Background()
	var batch store.Batch
	s.HoldUndelete(&batch, 3, 3, []byte("blob-hash"), 4096)
	require.NoError(t, s.Write(ctx, &batch))

	out, err := s.ListDeleted(ctx, 3)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, uint32(4096), out[0].Size)
	assert.Equal(t, uint8(3), out[0].Collection)
	assert.Equal(t, []byte("blob-hash"), out[0].Hash)

	time.Sleep(3 * time.Second)
	out, err = s.ListDeleted(ctx, 3)
	require.NoError(t, err)
	assert.Empty(t, out)
}
