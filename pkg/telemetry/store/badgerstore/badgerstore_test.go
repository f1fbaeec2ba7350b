package badgerstore_test

import (
	"context"
	"testing"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store/badgerstore"
)

func runWithBadger(t *testing.T, test func(t *testing.T, s *badgerstore.Store)) {
	opts := badger.DefaultOptions("")
	opts.SyncWrites = false
	dir := t.TempDir()
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, db.Close())
	}()

	test(t, badgerstore.New(db))
}

func TestWriteAndGetValue(t *testing.T) {
	runWithBadger(t, func(t *testing.T, s *badgerstore.Store) {
		ctx := context.Background()
		var batch store.Batch
		batch.Set([]byte("a"), []byte("1"))
		batch.Set([]byte("b"), []byte("2"))
		require.NoError(t, s.Write(ctx, &batch))

		v, ok, err := s.GetValue(ctx, []byte("a"))
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "1", string(v))

		_, ok, err = s.GetValue(ctx, []byte("missing"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestIterate_Ascending(t *testing.T) {
	runWithBadger(t, func(t *testing.T, s *badgerstore.Store) {
		ctx := context.Background()
		var batch store.Batch
		for _, k := range []string{"k1", "k2", "k3", "k4"} {
			batch.Set([]byte(k), []byte(k))
		}
		require.NoError(t, s.Write(ctx, &batch))

		var got []string
		err := s.Iterate(ctx, store.IterateParams{
			FromKey:   []byte("k2"),
			ToKey:     []byte("k4"),
			Ascending: true,
		}, func(key, value []byte) (bool, error) {
			got = append(got, string(key))
			return true, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"k2", "k3"}, got)
	})
}

func TestIterate_StopsEarly(t *testing.T) {
	runWithBadger(t, func(t *testing.T, s *badgerstore.Store) {
		ctx := context.Background()
		var batch store.Batch
		for _, k := range []string{"a", "b", "c"} {
			batch.Set([]byte(k), []byte(k))
		}
		require.NoError(t, s.Write(ctx, &batch))

		var got []string
		err := s.Iterate(ctx, store.IterateParams{Ascending: true}, func(key, value []byte) (bool, error) {
			got = append(got, string(key))
			return len(got) < 2, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, got)
	})
}

func TestDeleteRange(t *testing.T) {
	runWithBadger(t, func(t *testing.T, s *badgerstore.Store) {
		ctx := context.Background()
		var batch store.Batch
		for _, k := range []string{"k1", "k2", "k3", "k4"} {
			batch.Set([]byte(k), []byte(k))
		}
		require.NoError(t, s.Write(ctx, &batch))

		require.NoError(t, s.DeleteRange(ctx, []byte("k2"), []byte("k4")))

		_, ok, err := s.GetValue(ctx, []byte("k1"))
		require.NoError(t, err)
		assert.True(t, ok)

		_, ok, err = s.GetValue(ctx, []byte("k2"))
		require.NoError(t, err)
		assert.False(t, ok)

		_, ok, err = s.GetValue(ctx, []byte("k4"))
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestWrite_Delete(t *testing.T) {
	runWithBadger(t, func(t *testing.T, s *badgerstore.Store) {
		ctx := context.Background()
		var batch store.Batch
		batch.Set([]byte("x"), []byte("1"))
		require.NoError(t, s.Write(ctx, &batch))

		batch.Reset()
		batch.Clear([]byte("x"))
		require.NoError(t, s.Write(ctx, &batch))

		_, ok, err := s.GetValue(ctx, []byte("x"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
