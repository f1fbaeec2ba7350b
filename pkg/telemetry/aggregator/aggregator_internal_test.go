package aggregator

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store/badgerstore"
)

func newTestStore(t *testing.T) *badgerstore.Store {
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

func TestAggregator_CommitsSpanWithQueueID(t *testing.T) {
	s := newTestStore(t)
	a := New(s, Config{FlushEveryBatch: true})
	ctx := context.Background()

	a.ingest(startEvt(5, events.TypeSpanStart))
	a.ingest(startEvt(5, events.TypeSmtpMailFrom, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(42)}, ))
	a.ingest(startEvt(5, events.TypeSpanEnd))
	a.flush(ctx)

	v, ok, err := s.GetValue(ctx, store.SpanKey(5))
	require.NoError(t, err)
	require.True(t, ok)

	evts, err := events.DeserializeEvents(v)
	require.NoError(t, err)
	assert.Len(t, evts, 3)

	_, ok = a.openSpans[5]
	assert.False(t, ok)
}

func TestAggregator_DropsSpanWithNoQueueID(t *testing.T) {
	s := newTestStore(t)
	a := New(s, Config{FlushEveryBatch: true})
	ctx := context.Background()

	a.ingest(startEvt(6, events.TypeSpanStart))
	a.ingest(startEvt(6, events.TypeSpanEnd))
	a.flush(ctx)

	_, ok, err := s.GetValue(ctx, store.SpanKey(6))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAggregator_IgnoresEventsWithoutSpanID(t *testing.T) {
	s := newTestStore(t)
	a := New(s, Config{})

	a.ingest(events.Event{Type: events.TypeSmtpConnect, Timestamp: time.Unix(0, 0)})
	assert.Empty(t, a.openSpans)
}

func TestAggregator_CapsBodyBufferAtMaxEvents(t *testing.T) {
	s := newTestStore(t)
	a := New(s, Config{FlushEveryBatch: true})
	ctx := context.Background()

	a.ingest(startEvt(30, events.TypeSpanStart))
	for i := 0; i < 3000; i++ {
		a.ingest(startEvt(30, events.TypeSmtpMailFrom, events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(7)}))
	}
	a.ingest(startEvt(30, events.TypeSpanEnd))
	a.flush(ctx)

	v, ok, err := s.GetValue(ctx, store.SpanKey(30))
	require.NoError(t, err)
	require.True(t, ok)

	evts, err := events.DeserializeEvents(v)
	require.NoError(t, err)
	// span-start + MaxEvents body events + span-end
	assert.Len(t, evts, MaxEvents+2)
}

func TestAggregator_ExpandsToAddressArray(t *testing.T) {
	s := newTestStore(t)
	a := New(s, Config{FlushEveryBatch: true})
	ctx := context.Background()

	a.ingest(startEvt(8, events.TypeSpanStart))
	a.ingest(startEvt(8, events.TypeSmtpRcptTo,
		events.Attribute{Key: events.KeyQueueID, Value: events.UIntValue(1)},
		events.Attribute{Key: events.KeyTo, Value: events.ArrayValue([]events.Value{
			events.StringValue("a@x"), events.StringValue("b@y"),
		})},
	))
	a.ingest(startEvt(8, events.TypeSpanEnd))
	a.flush(ctx)

	var count int
	err := s.Iterate(ctx, store.IterateParams{
		FromKey: store.IndexPrefix([]byte("a@x")),
		ToKey:   append(store.IndexPrefix([]byte("a@x")), 0xff),
		Ascending: true,
		NoValues:  true,
	}, func(key, value []byte) (bool, error) {
		count++
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
