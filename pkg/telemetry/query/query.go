// Package query answers multi-predicate span lookups over the index
// entries the aggregator writes: each predicate contributes a range scan
// over Index keys, and results are combined by set intersection across
// predicates, then returned newest-first.
package query

import (
	"context"
	"encoding/binary"
	"sort"
	"strings"
	"time"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
)

// Predicate is a single query term. Exactly one of the constructor
// functions below should be used to build one; the zero value matches
// nothing.
type Predicate struct {
	valueLen int // exact-length check; -1 disables it (bare keyword prefix)
	prefix   []byte
}

// EventType matches spans whose span-start event carries code, via the
// index key written for the span-start type.
func EventType(code uint16) Predicate {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], code)
	return Predicate{prefix: b[:], valueLen: 2}
}

// QueueId matches spans carrying id as one of their queue ids.
func QueueId(id uint64) Predicate {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], id)
	return Predicate{prefix: b[:], valueLen: 8}
}

// Keywords matches spans by an address-like index value. A quoted string
// ("exact text") requires the index value to be exactly that text; a bare
// string performs a prefix match with no length check — preserved as
// observed from the source design, which leaves unresolved whether this
// asymmetry is intentional.
func Keywords(text string) Predicate {
	if len(text) >= 2 && strings.HasPrefix(text, `"`) && strings.HasSuffix(text, `"`) {
		inner := text[1 : len(text)-1]
		return Predicate{prefix: []byte(inner), valueLen: len(inner)}
	}
	return Predicate{prefix: []byte(text), valueLen: -1}
}

// Window bounds a query's result span ids; zero on either side means
// unbounded on that side.
type Window struct {
	From uint64
	To   uint64
}

// collector is the polymorphic accumulator described in the package
// design: a single-predicate query never needs deduplication (the index
// is unique per value/span-id pair), so it stays a plain ordered
// sequence; a multi-predicate query needs set intersection, so it
// promotes to a set after the first predicate.
type collector struct {
	isSet bool
	seq   []uint64       // used when !isSet
	set   map[uint64]bool // used when isSet
}

func newEmptyCollector() *collector {
	return &collector{}
}

func (c *collector) addSequence(ids []uint64) {
	c.seq = ids
}

func (c *collector) intersectWith(ids []uint64) {
	if !c.isSet {
		// First promotion to set: seed from the existing sequence (or, if
		// this is the very first predicate, from ids themselves).
		c.isSet = true
		seed := c.seq
		c.set = make(map[uint64]bool, len(seed))
		if seed == nil {
			for _, id := range ids {
				c.set[id] = true
			}
			return
		}
		for _, id := range seed {
			c.set[id] = true
		}
		c.seq = nil
	}

	next := make(map[uint64]bool, len(c.set))
	incoming := make(map[uint64]bool, len(ids))
	for _, id := range ids {
		incoming[id] = true
	}
	for id := range c.set {
		if incoming[id] {
			next[id] = true
		}
	}
	c.set = next
}

func (c *collector) result() []uint64 {
	var out []uint64
	if c.isSet {
		out = make([]uint64, 0, len(c.set))
		for id := range c.set {
			out = append(out, id)
		}
	} else {
		out = append(out, c.seq...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] > out[j] })
	return out
}

// QuerySpans evaluates predicates' conjunction and returns matching span
// ids in descending order. An empty predicate list returns an empty
// result. window bounds span ids on both ends; zero means unbounded on
// that side.
func QuerySpans(ctx context.Context, s store.Store, predicates []Predicate, window Window, metrics *obs.Metrics) ([]uint64, error) {
	start := time.Now()
	result, err := querySpans(ctx, s, predicates, window)
	if err != nil {
		return nil, err
	}
	metrics.RecordQuery(time.Since(start), len(result))
	return result, nil
}

func querySpans(ctx context.Context, s store.Store, predicates []Predicate, window Window) ([]uint64, error) {
	if len(predicates) == 0 {
		return nil, nil
	}

	c := newEmptyCollector()
	for i, p := range predicates {
		ids, err := scanPredicate(ctx, s, p, window)
		if err != nil {
			return nil, err
		}
		if i == 0 && len(predicates) == 1 {
			c.addSequence(ids)
			continue
		}
		c.intersectWith(ids)
		if len(c.set) == 0 {
			return nil, nil
		}
	}
	return c.result(), nil
}

// scanPredicate range-scans Index keys for p's value prefix, applies the
// exact-length check (when enabled) and the span-id window, and returns
// the matching span ids in ascending order (index-scan locality; callers
// reverse as needed — QuerySpans does this once in the collector).
func scanPredicate(ctx context.Context, s store.Store, p Predicate, window Window) ([]uint64, error) {
	from := store.IndexPrefix(p.prefix)
	to := indexUpperBound(from)

	var ids []uint64
	err := s.Iterate(ctx, store.IterateParams{
		FromKey:   from,
		ToKey:     to,
		Ascending: true,
		NoValues:  true,
	}, func(key, _ []byte) (bool, error) {
		valueLen := len(key) - 2 - 8
		if valueLen < 0 {
			return true, nil
		}
		if p.valueLen >= 0 && valueLen != p.valueLen {
			return true, nil
		}
		spanID, err := store.SpanIDFromIndexKey(key, valueLen)
		if err != nil {
			return true, nil
		}
		if window.From != 0 && spanID < window.From {
			return true, nil
		}
		if window.To != 0 && spanID > window.To {
			return true, nil
		}
		ids = append(ids, spanID)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// indexUpperBound builds an exclusive upper bound for a range scan over
// every Index key sharing prefix, regardless of the trailing 8-byte span
// id suffix's content. A single appended 0xff byte is not enough: an index
// key whose suffix happens to start with 0xff would compare equal-then-
// longer against "prefix + 0xff" and be wrongly treated as >= the bound,
// silently excluding it from the scan. Appending one more 0xff byte than
// the widest possible suffix (8 bytes) guarantees the bound compares
// strictly greater than any real key sharing prefix.
func indexUpperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix)+9)
	copy(out, prefix)
	for i := len(prefix); i < len(out); i++ {
		out[i] = 0xff
	}
	return out
}
