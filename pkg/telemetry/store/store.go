// Package store defines the ordered key-value contract the telemetry
// components are built against, plus the byte-level subspace/tag layout
// every component uses to carve up that key space. Concrete backends
// (see pkg/telemetry/store/badgerstore) implement Store; everything above
// this package only ever sees Store.
package store

import (
	"context"
	"fmt"
)

// Subspace is the outermost one-byte prefix tag, carving the key space into
// disjoint regions.
type Subspace byte

const (
	SubspaceTelemetry Subspace = 0x01
	SubspaceBlobs     Subspace = 0x02
)

// Tag is the second-level one-byte discriminator within a subspace.
type Tag byte

const (
	TagSpan    Tag = 0x01
	TagIndex   Tag = 0x02
	TagReserve Tag = 0x01 // scoped to SubspaceBlobs; numbering restarts per subspace
)

// BlobHashLen is the fixed width of a blob hash as carried in a reservation
// key (see §6 of the persisted layout).
const BlobHashLen = 32

// ErrNotFound names the absent-key condition. GetValue does not return it:
// absence is reported through GetValue's ok result instead.
var ErrNotFound = fmt.Errorf("store: key not found")

// IterateParams bounds a range scan. FromKey/ToKey form a half-open
// interval [FromKey, ToKey) when Ascending is true; callers that want an
// inclusive upper bound append a single 0xff byte (or increment the last
// byte) to ToKey, following the fixed-width key codec's convention.
type IterateParams struct {
	FromKey   []byte
	ToKey     []byte
	Ascending bool
	// NoValues hints that the backend may skip fetching values, since many
	// scans here (index lookups) only need keys.
	NoValues bool
}

// VisitFunc is called once per matched entry. Returning false stops the
// iteration early without an error.
type VisitFunc func(key, value []byte) (bool, error)

// Op is a single mutation within a Batch.
type Op struct {
	Delete bool
	Key    []byte
	Value  []byte // ignored when Delete is true
}

// Batch accumulates a sequence of set/clear operations applied atomically
// by Write. Zero value is ready to use.
type Batch struct {
	ops []Op
}

// Set appends a set operation.
func (b *Batch) Set(key, value []byte) {
	b.ops = append(b.ops, Op{Key: key, Value: value})
}

// Clear appends a delete operation for a single key.
func (b *Batch) Clear(key []byte) {
	b.ops = append(b.ops, Op{Delete: true, Key: key})
}

// Len returns the number of accumulated operations.
func (b *Batch) Len() int { return len(b.ops) }

// Ops exposes the accumulated operations for backends to apply.
func (b *Batch) Ops() []Op { return b.ops }

// Reset empties the batch so it can be reused across commits.
func (b *Batch) Reset() { b.ops = b.ops[:0] }

// LargeBatchThreshold is the number of accumulated operations at which
// retention considers a batch "large" and flushes early, bounding
// transaction size during a purge over many stale spans. Mirrors the
// original implementation's BatchBuilder::is_large_batch threshold.
const LargeBatchThreshold = 1000

// IsLarge reports whether b has accumulated enough operations to warrant
// an early flush.
func (b *Batch) IsLarge() bool { return len(b.ops) >= LargeBatchThreshold }

// Decoder turns a raw stored value into a typed result. GetDecoded returns
// the zero value and ok=false when the key is absent, without invoking
// decode.
type Decoder[T any] func(value []byte) (T, error)

// Store is the ordered key-value contract every telemetry component is
// built against. Implementations must provide lexicographic ordering on
// raw keys and durability on Write's return.
type Store interface {
	// Iterate performs a range scan per params, invoking visit for each
	// matched entry until visit returns false, the range is exhausted, or
	// an error occurs.
	Iterate(ctx context.Context, params IterateParams, visit VisitFunc) error

	// Write atomically applies every operation in batch.
	Write(ctx context.Context, batch *Batch) error

	// GetValue fetches a single key's raw value. ok is false when the key
	// is absent. GetDecoded layers a Decoder on top of it.
	GetValue(ctx context.Context, key []byte) ([]byte, bool, error)

	// DeleteRange deletes every key in the half-open interval [from, to).
	DeleteRange(ctx context.Context, from, to []byte) error

	// Close releases any resources held by the backend.
	Close() error
}

// GetDecoded is a convenience wrapper around Store.GetValue that applies a
// Decoder, kept as a free function since Go methods cannot be generic.
func GetDecoded[T any](ctx context.Context, s Store, key []byte, decode Decoder[T]) (T, bool, error) {
	var zero T
	raw, ok, err := s.GetValue(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	v, err := decode(raw)
	if err != nil {
		return zero, true, err
	}
	return v, true, nil
}
