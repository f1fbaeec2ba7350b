package snowflake_test

import (
	"testing"
	"time"

	"github.com/kadirpekel/spanstore/pkg/telemetry/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Monotone(t *testing.T) {
	gen, err := snowflake.New(1)
	require.NoError(t, err)

	var prev uint64
	for i := 0; i < 10_000; i++ {
		id := gen.Next()
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestNew_InvalidNode(t *testing.T) {
	_, err := snowflake.New(1 << 10)
	assert.Error(t, err)
}

func TestFromDuration(t *testing.T) {
	gen, err := snowflake.New(3)
	require.NoError(t, err)

	before := gen.Next()
	time.Sleep(5 * time.Millisecond)
	cutoff, ok := snowflake.FromDuration(2 * time.Millisecond)
	require.True(t, ok)
	after := gen.Next()

	assert.Less(t, before, cutoff)
	assert.Greater(t, after, cutoff)
}

func TestFromDuration_OutOfRange(t *testing.T) {
	_, ok := snowflake.FromDuration(24 * 365 * 200 * time.Hour)
	assert.False(t, ok)
}

func TestTimestamp_RoundTrips(t *testing.T) {
	gen, err := snowflake.New(5)
	require.NoError(t, err)

	before := time.Now().UnixMilli()
	id := gen.Next()
	after := time.Now().UnixMilli()

	ts := snowflake.Timestamp(id)
	assert.GreaterOrEqual(t, ts, before)
	assert.LessOrEqual(t, ts, after)
}
