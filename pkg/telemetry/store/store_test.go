package store_test

import (
	"testing"

	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanKey_RoundTrip(t *testing.T) {
	key := store.SpanKey(42)
	id, err := store.SpanIDFromSpanKey(key)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
}

func TestIndexKey_Ordering(t *testing.T) {
	a := store.IndexKey([]byte("queue"), 10)
	b := store.IndexKey([]byte("queue"), 300)
	assert.Less(t, string(a), string(b))
}

func TestIndexKey_SpanIDFromSuffix(t *testing.T) {
	value := []byte("a@example.com")
	key := store.IndexKey(value, 99)
	id, err := store.SpanIDFromIndexKey(key, len(value))
	require.NoError(t, err)
	assert.Equal(t, uint64(99), id)
}

func TestIndexPrefix_IsPrefixOfIndexKey(t *testing.T) {
	value := []byte("foo")
	prefix := store.IndexPrefix(value)
	key := store.IndexKey(value, 7)
	assert.Equal(t, string(prefix), string(key[:len(prefix)]))
}

func TestReserveKey_ExpiryRoundTrip(t *testing.T) {
	hash := make([]byte, store.BlobHashLen)
	key := store.ReserveKey(5, hash, 1700000000)
	expiry, err := store.ExpiryFromReserveKey(key, len(hash))
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000), expiry)
}

func TestReserveAccountPrefix_IsPrefixOfReserveKey(t *testing.T) {
	hash := make([]byte, store.BlobHashLen)
	prefix := store.ReserveAccountPrefix(3)
	key := store.ReserveKey(3, hash, 1)
	assert.Equal(t, string(prefix), string(key[:len(prefix)]))
}

func TestBatch_SetClearLen(t *testing.T) {
	var b store.Batch
	b.Set([]byte("a"), []byte("1"))
	b.Clear([]byte("b"))
	assert.Equal(t, 2, b.Len())
	assert.False(t, b.IsLarge())

	ops := b.Ops()
	require.Len(t, ops, 2)
	assert.False(t, ops[0].Delete)
	assert.True(t, ops[1].Delete)

	b.Reset()
	assert.Equal(t, 0, b.Len())
}

func TestBatch_IsLarge(t *testing.T) {
	var b store.Batch
	for i := 0; i < store.LargeBatchThreshold; i++ {
		b.Set([]byte{byte(i)}, nil)
	}
	assert.True(t, b.IsLarge())
}
