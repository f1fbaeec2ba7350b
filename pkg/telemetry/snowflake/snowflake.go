// Package snowflake generates monotone 64-bit span identifiers that double
// as a time cursor for retention: the identifier's high bits are a
// millisecond timestamp, so a range scan over identifiers is a range scan
// over time.
package snowflake

import (
	"fmt"
	"sync"
	"time"
)

const (
	timestampBits = 42
	nodeBits      = 10
	sequenceBits  = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// Epoch is the reference point (ms since Unix epoch) for the 42-bit
// timestamp field. Chosen as a recent epoch so the field does not wrap for
// ~139 years from this date.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

// Generator produces monotone IDs for a single node.
//
// Safe for concurrent use; Next serializes access with a mutex and blocks
// briefly if the 12-bit sequence counter overflows within one millisecond.
type Generator struct {
	mu       sync.Mutex
	node     uint64
	lastMs   int64
	sequence uint64
	now      func() int64 // overridable for tests
}

// New returns a Generator for the given node id (0..1023).
func New(node uint64) (*Generator, error) {
	if node > maxNode {
		return nil, fmt.Errorf("snowflake: node id %d exceeds max %d", node, maxNode)
	}
	return &Generator{
		node: node,
		now:  func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// Next returns a new id, blocking briefly if the sequence counter overflows
// within the same millisecond.
func (g *Generator) Next() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	ms := g.now()
	if ms < g.lastMs {
		// Clock moved backwards; pin to the last observed millisecond so
		// ids stay monotone rather than going backwards.
		ms = g.lastMs
	}

	if ms == g.lastMs {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			// Sequence exhausted for this millisecond; spin until the
			// clock advances.
			for ms <= g.lastMs {
				ms = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastMs = ms

	return assemble(ms, g.node, g.sequence)
}

// FromDuration returns the id corresponding to now-d with zero node and
// sequence, suitable as a retention cutoff: any id less than this value was
// minted strictly before now-d. Returns false if d is larger than the span
// between Epoch and now.
func FromDuration(d time.Duration) (uint64, bool) {
	return fromDurationAt(time.Now().UnixMilli(), d)
}

func fromDurationAt(nowMs int64, d time.Duration) (uint64, bool) {
	target := nowMs - d.Milliseconds()
	rel := target - Epoch
	if rel < 0 {
		return 0, false
	}
	return assemble(target, 0, 0), true
}

func assemble(ms int64, node, sequence uint64) uint64 {
	rel := uint64(ms - Epoch)
	return (rel << timestampShift) | (node << nodeShift) | sequence
}

// Timestamp extracts the millisecond timestamp embedded in id.
func Timestamp(id uint64) int64 {
	rel := id >> timestampShift
	return int64(rel) + Epoch
}
