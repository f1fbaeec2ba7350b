package keycodec_test

import (
	"testing"

	"github.com/kadirpekel/spanstore/pkg/telemetry/keycodec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializer_RoundTrip(t *testing.T) {
	key := keycodec.New(13).
		WriteU8(7).
		WriteU32(42).
		WriteU64(1234567890).
		Finalize()

	require.Len(t, key, 1+4+8)
	assert.Equal(t, uint8(7), key[0])

	u32, err := keycodec.ReadU32(key, 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u32)

	u64, err := keycodec.ReadU64(key, 5)
	require.NoError(t, err)
	assert.Equal(t, uint64(1234567890), u64)
}

func TestSerializer_Ordering(t *testing.T) {
	// Big-endian encoding must preserve numeric ordering lexicographically.
	a := keycodec.New(8).WriteU64(10).Finalize()
	b := keycodec.New(8).WriteU64(300).Finalize()
	assert.True(t, string(a) < string(b), "expected lexicographic order to follow numeric order")
}

func TestReadU32_CorruptKey(t *testing.T) {
	_, err := keycodec.ReadU32([]byte{1, 2, 3}, 0)
	assert.ErrorIs(t, err, keycodec.ErrCorruptKey)
}

func TestReadU64_CorruptKey(t *testing.T) {
	_, err := keycodec.ReadU64([]byte{1, 2, 3, 4, 5, 6, 7}, 0)
	assert.ErrorIs(t, err, keycodec.ErrCorruptKey)

	_, err = keycodec.ReadU64([]byte{1, 2, 3, 4, 5, 6, 7, 8}, -1)
	assert.ErrorIs(t, err, keycodec.ErrCorruptKey)
}

func TestWriteBytes_Append(t *testing.T) {
	key := keycodec.New(0).WriteU64(5).WriteBytes([]byte("hello")).Finalize()
	u64, err := keycodec.ReadU64(key, 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), u64)
	assert.Equal(t, "hello", string(key[8:]))
}
