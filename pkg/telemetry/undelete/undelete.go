// Package undelete maintains blob-hash reservations that extend a
// referenced blob's lifetime past deletion for a retention window, and
// lists the reservations still live for a given account.
package undelete

import (
	"context"
	"fmt"
	"time"

	"github.com/kadirpekel/spanstore/pkg/obs"
	"github.com/kadirpekel/spanstore/pkg/telemetry/store"
)

// reservationValueLen is the schema sentinel for a reservation value:
// size (u32) + deleted_at (u64) + collection (u8).
const reservationValueLen = 4 + 8 + 1

// Policy configures whether hold_undelete actually reserves blobs. The
// zero value disables reservations entirely, matching "no enterprise
// retention policy configured" from the source design.
type Policy struct {
	Enabled   bool
	Retention time.Duration
}

// DeletedBlob is one live reservation returned by ListDeleted.
type DeletedBlob struct {
	Hash        []byte
	Size        uint32
	Collection  uint8
	DeletedAt   time.Time
	ExpiresAt   time.Time
}

// Reservations manages blob-hash reservations over a store.Store.
type Reservations struct {
	store   store.Store
	policy  Policy
	metrics *obs.Metrics
	now     func() time.Time
}

// New returns a Reservations manager governed by policy.
func New(s store.Store, policy Policy, metrics *obs.Metrics) *Reservations {
	return &Reservations{store: s, policy: policy, metrics: metrics, now: time.Now}
}

// HoldUndelete adds a reservation for hash to batch, extending its
// lifetime by the configured retention window from now. It is a silent
// no-op when no retention policy is configured, matching the source
// design's "enterprise feature" gating.
func (r *Reservations) HoldUndelete(batch *store.Batch, accountID uint32, collection uint8, hash []byte, size uint32) {
	if !r.policy.Enabled {
		r.metrics.RecordHoldUndelete(false)
		return
	}

	now := r.now()
	until := uint64(now.Add(r.policy.Retention).Unix())

	value := make([]byte, 0, reservationValueLen)
	value = append(value,
		byte(size>>24), byte(size>>16), byte(size>>8), byte(size))
	deletedAt := uint64(now.Unix())
	value = append(value,
		byte(deletedAt>>56), byte(deletedAt>>48), byte(deletedAt>>40), byte(deletedAt>>32),
		byte(deletedAt>>24), byte(deletedAt>>16), byte(deletedAt>>8), byte(deletedAt))
	value = append(value, collection)

	batch.Set(store.ReserveKey(accountID, hash, until), value)
	r.metrics.RecordHoldUndelete(true)
}

// ListDeleted returns every live reservation for accountID: entries whose
// value doesn't match the 13-byte schema, or whose expiry has already
// passed, are silently skipped rather than retained. A key too short to
// extract its expiry suffix is the only hard error here — the original
// this behavior is grounded on treats a value-length mismatch as
// schema-evolution tolerance, not corruption.
func (r *Reservations) ListDeleted(ctx context.Context, accountID uint32) ([]DeletedBlob, error) {
	r.metrics.RecordListDeleted()

	prefix := store.ReserveAccountPrefix(accountID)
	to := reserveUpperBound(prefix)

	now := r.now()
	var out []DeletedBlob

	err := r.store.Iterate(ctx, store.IterateParams{
		FromKey:   prefix,
		ToKey:     to,
		Ascending: true,
	}, func(key, value []byte) (bool, error) {
		hashLen := len(key) - len(prefix) - 8
		if hashLen < 0 {
			return false, store.ErrCorruptKey
		}
		expiry, err := store.ExpiryFromReserveKey(key, hashLen)
		if err != nil {
			return false, fmt.Errorf("undelete: %w", err)
		}

		// A value-length mismatch is treated as "not retained" rather than
		// a hard error: the ground-truth original (enterprise/undelete.rs
		// list_deleted) skips entries whose value doesn't match the
		// expected schema width instead of failing the call, leaving room
		// for forward-compatible schema evolution. Only a malformed key
		// (unable to extract the hash/expiry) is a hard error.
		if len(value) != reservationValueLen {
			return true, nil
		}

		expiresAt := time.Unix(int64(expiry), 0)
		if !expiresAt.After(now) {
			return true, nil
		}

		size := uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3])
		var deletedAt uint64
		for i := 0; i < 8; i++ {
			deletedAt = deletedAt<<8 | uint64(value[4+i])
		}
		collection := value[12]
		hash := append([]byte(nil), key[len(prefix):len(prefix)+hashLen]...)

		out = append(out, DeletedBlob{
			Hash:       hash,
			Size:       size,
			Collection: collection,
			DeletedAt:  time.Unix(int64(deletedAt), 0),
			ExpiresAt:  expiresAt,
		})
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// reserveUpperBound builds an exclusive upper bound for a range scan over
// every reservation key sharing prefix, wide enough to exceed any real key
// regardless of its hash/until suffix content (see query.indexUpperBound
// for why appending a single 0xff byte is not sufficient).
func reserveUpperBound(prefix []byte) []byte {
	suffixWidth := store.BlobHashLen + 8
	out := make([]byte, len(prefix)+suffixWidth+1)
	copy(out, prefix)
	for i := len(prefix); i < len(out); i++ {
		out[i] = 0xff
	}
	return out
}
