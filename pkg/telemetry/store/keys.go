package store

import (
	"github.com/kadirpekel/spanstore/pkg/telemetry/keycodec"
)

// SpanKey builds the key under which a span's serialized event list is
// stored: [Telemetry][Span][span_id BE].
func SpanKey(spanID uint64) []byte {
	return keycodec.New(10).
		WriteU8(uint8(SubspaceTelemetry)).
		WriteU8(uint8(TagSpan)).
		WriteU64(spanID).
		Finalize()
}

// IndexKey builds an index key: [Telemetry][Index][value][span_id BE].
// value is the raw attribute-value bytes (a big-endian u16 type code, a
// big-endian u64 queue id, or raw utf-8 address/ip bytes, per the commit
// rules in pkg/telemetry/aggregator).
func IndexKey(value []byte, spanID uint64) []byte {
	return keycodec.New(2 + len(value) + 8).
		WriteU8(uint8(SubspaceTelemetry)).
		WriteU8(uint8(TagIndex)).
		WriteBytes(value).
		WriteU64(spanID).
		Finalize()
}

// IndexPrefix builds the portion of an index key up to and including
// value, for use as a range-scan bound; the span id suffix is supplied by
// the caller as a window ([from,to]) on top of this prefix.
func IndexPrefix(value []byte) []byte {
	return keycodec.New(2 + len(value)).
		WriteU8(uint8(SubspaceTelemetry)).
		WriteU8(uint8(TagIndex)).
		WriteBytes(value).
		Finalize()
}

// SpanIDFromIndexKey extracts the trailing 8-byte span id from an index
// key given the length of the encoded value portion.
func SpanIDFromIndexKey(key []byte, valueLen int) (uint64, error) {
	return keycodec.ReadU64(key, 2+valueLen)
}

// SpanIDFromSpanKey extracts the span id from a span key.
func SpanIDFromSpanKey(key []byte) (uint64, error) {
	return keycodec.ReadU64(key, 2)
}

// ReserveKey builds a blob reservation key:
// [Blobs][Reserve][account_id BE u32][hash][until BE u64].
func ReserveKey(accountID uint32, hash []byte, until uint64) []byte {
	return keycodec.New(2+4+len(hash)+8).
		WriteU8(uint8(SubspaceBlobs)).
		WriteU8(uint8(TagReserve)).
		WriteU32(accountID).
		WriteBytes(hash).
		WriteU64(until).
		Finalize()
}

// ReserveAccountPrefix builds the prefix shared by every reservation key
// for accountID, for use as a range-scan lower bound.
func ReserveAccountPrefix(accountID uint32) []byte {
	return keycodec.New(6).
		WriteU8(uint8(SubspaceBlobs)).
		WriteU8(uint8(TagReserve)).
		WriteU32(accountID).
		Finalize()
}

// ExpiryFromReserveKey extracts the trailing 8-byte expiry timestamp from a
// reservation key of the given hash length.
func ExpiryFromReserveKey(key []byte, hashLen int) (uint64, error) {
	return keycodec.ReadU64(key, 2+4+hashLen)
}
