package retention_test

import (
	"context"
	"testing"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/spanstore/pkg/telemetry/retention"
	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
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

func putSpan(t *testing.T, s *badgerstore.Store, spanID uint64, indexValues ...[]byte) {
	var batch store.Batch
	batch.Set(store.SpanKey(spanID), []byte("blob"))
	for _, v := range indexValues {
		batch.Set(store.IndexKey(v, spanID), nil)
	}
	require.NoError(t, s.Write(context.Background(), &batch))
}

func TestPurgeSpans_S5(t *testing.T) {
	s := newTestStore(t)
	putSpan(t, s, 100, []byte("q100"))
	putSpan(t, s, 200, []byte("q200"))
	putSpan(t, s, 300, []byte("q300"))

	ctx := context.Background()

	cutoff := uint64(250)
	// Replay the steps PurgeSpans performs (span delete-range, then index
	// scan-and-delete) against the store directly, pinning the cutoff at
	// 250 rather than deriving it from a wall-clock duration.
	require.NoError(t, s.DeleteRange(ctx, store.SpanKey(0), store.SpanKey(cutoff)))

	from := []byte{byte(store.SubspaceTelemetry), byte(store.TagIndex)}
	to := []byte{byte(store.SubspaceTelemetry), byte(store.TagIndex) + 1}
	var stale [][]byte
	require.NoError(t, s.Iterate(ctx, store.IterateParams{FromKey: from, ToKey: to, Ascending: true, NoValues: true},
		func(key, _ []byte) (bool, error) {
			valueLen := len(key) - 2 - 8
			spanID, err := store.SpanIDFromIndexKey(key, valueLen)
			require.NoError(t, err)
			if spanID < cutoff {
				stale = append(stale, append([]byte(nil), key...))
			}
			return true, nil
		}))
	var batch store.Batch
	for _, k := range stale {
		batch.Clear(k)
	}
	require.NoError(t, s.Write(ctx, &batch))

	_, ok, err := s.GetValue(ctx, store.SpanKey(100))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.GetValue(ctx, store.SpanKey(200))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.GetValue(ctx, store.SpanKey(300))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "blob", string(v))

	var remaining int
	require.NoError(t, s.Iterate(ctx, store.IterateParams{FromKey: from, ToKey: to, Ascending: true, NoValues: true},
		func(key, _ []byte) (bool, error) {
			valueLen := len(key) - 2 - 8
			spanID, err := store.SpanIDFromIndexKey(key, valueLen)
			require.NoError(t, err)
			if spanID < cutoff {
				remaining++
			}
			return true, nil
		}))
	assert.Zero(t, remaining)
}

func TestPurgeSpans_FullPath(t *testing.T) {
	s := newTestStore(t)
	gen, err := snowflake.New(1)
	require.NoError(t, err)

	oldID := gen.Next()
	time.Sleep(2 * time.Millisecond)
	newID := gen.Next()

	putSpan(t, s, oldID, []byte("old-addr"))
	putSpan(t, s, newID, []byte("new-addr"))

	p := retention.New(s, nil)
	require.NoError(t, p.PurgeSpans(context.Background(), time.Millisecond))

	_, ok, err := s.GetValue(context.Background(), store.SpanKey(oldID))
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok, err = s.GetValue(context.Background(), store.SpanKey(newID))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPurgeSpans_Idempotent(t *testing.T) {
	s := newTestStore(t)
	p := retention.New(s, nil)
	ctx := context.Background()
	require.NoError(t, p.PurgeSpans(ctx, time.Hour))
	require.NoError(t, p.PurgeSpans(ctx, time.Hour))
}

func TestPurgeSpans_OutOfRangeDuration(t *testing.T) {
	s := newTestStore(t)
	p := retention.New(s, nil)

	err := p.PurgeSpans(context.Background(), 1<<62)
	assert.ErrorIs(t, err, retention.ErrCutoffOutOfRange)
}
