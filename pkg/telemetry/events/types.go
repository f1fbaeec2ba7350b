// Package events defines the structured event taxonomy produced by mail
// server collaborators (SMTP/IMAP/JMAP listeners, the queue, delivery,
// auth, and security subsystems) and the self-describing binary encoding
// used to persist a span's event list as a single blob.
package events

import (
	"fmt"
	"net"
	"time"
)

// Type is the event's u16 taxonomy code. Span membership is delimited by
// TypeSpanStart/TypeSpanEnd; every other type is a body event.
type Type uint16

// The taxonomy below is a representative subset of the mail server's event
// families (see SPEC_FULL.md's SUPPLEMENTED FEATURES): enough event kinds
// to exercise every indexable attribute in §4.4 without enumerating the
// full production taxonomy.
const (
	TypeSpanStart Type = iota
	TypeSpanEnd

	TypeSmtpConnect
	TypeSmtpMailFrom
	TypeSmtpRcptTo
	TypeSmtpDisconnect

	TypeQueueMessage
	TypeQueueRescheduled
	TypeQueueRateLimitExceeded

	TypeDeliveryAttempt
	TypeDeliverySuccess
	TypeDeliveryFailure

	TypeAuthSuccess
	TypeAuthFailed

	TypeMailAuthSpf
	TypeMailAuthDkim
	TypeMailAuthDmarc

	TypeSecurityBruteForce
	TypeSecurityIpBlocked
)

var typeNames = map[Type]string{
	TypeSpanStart:              "span.start",
	TypeSpanEnd:                "span.end",
	TypeSmtpConnect:            "smtp.connect",
	TypeSmtpMailFrom:           "smtp.mail_from",
	TypeSmtpRcptTo:             "smtp.rcpt_to",
	TypeSmtpDisconnect:         "smtp.disconnect",
	TypeQueueMessage:           "queue.message",
	TypeQueueRescheduled:       "queue.rescheduled",
	TypeQueueRateLimitExceeded: "queue.rate_limit_exceeded",
	TypeDeliveryAttempt:        "delivery.attempt",
	TypeDeliverySuccess:        "delivery.success",
	TypeDeliveryFailure:        "delivery.failure",
	TypeAuthSuccess:            "auth.success",
	TypeAuthFailed:             "auth.failed",
	TypeMailAuthSpf:            "mailauth.spf",
	TypeMailAuthDkim:           "mailauth.dkim",
	TypeMailAuthDmarc:          "mailauth.dmarc",
	TypeSecurityBruteForce:     "security.brute_force",
	TypeSecurityIpBlocked:      "security.ip_blocked",
}

// String returns the event type's dotted name, or a numeric fallback for
// codes outside this taxonomy (forward compatibility: the wire format
// allows unknown codes to round-trip even if this process doesn't know
// their name).
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("type(%d)", uint16(t))
}

// Code returns the u16 wire code.
func (t Type) Code() uint16 { return uint16(t) }

// IsSpanEnd reports whether t closes a span.
func (t Type) IsSpanEnd() bool { return t == TypeSpanEnd }

// IsSpanStart reports whether t opens a span.
func (t Type) IsSpanStart() bool { return t == TypeSpanStart }

// DefaultTypes returns every event type named in this taxonomy, in no
// particular order, as an allowlist of span-membership types. The
// aggregator does not consult it: it buffers events of any type code.
func DefaultTypes() []Type {
	out := make([]Type, 0, len(typeNames))
	for t := range typeNames {
		out = append(out, t)
	}
	return out
}

// Key identifies a typed attribute attached to an event. Only a handful of
// keys are indexable (see pkg/telemetry/aggregator); the rest are carried
// for context but never promoted to an index entry.
type Key uint8

const (
	KeyQueueID Key = iota
	KeyFrom
	KeyTo
	KeyDomain
	KeyHostname
	KeyRemoteIP
	KeyReason
	KeyMessageID
	KeySize
)

var keyNames = map[Key]string{
	KeyQueueID:   "queue_id",
	KeyFrom:      "from",
	KeyTo:        "to",
	KeyDomain:    "domain",
	KeyHostname:  "hostname",
	KeyRemoteIP:  "remote_ip",
	KeyReason:    "reason",
	KeyMessageID: "message_id",
	KeySize:      "size",
}

// String returns the key's name, or a numeric fallback for unknown keys.
func (k Key) String() string {
	if name, ok := keyNames[k]; ok {
		return name
	}
	return fmt.Sprintf("key(%d)", uint8(k))
}

// Kind identifies which field of Value is populated.
type Kind uint8

const (
	KindString Kind = iota
	KindUInt
	KindInt
	KindIPv4
	KindIPv6
	KindArray
)

// Value is a tagged union of the attribute value types the wire format
// supports. New kinds append new tags; old decoders must fail closed on
// unknown kinds rather than guess.
type Value struct {
	Kind  Kind
	Str   string
	UInt  uint64
	Int   int64
	IP    net.IP  // 4 bytes for KindIPv4, 16 for KindIPv6
	Array []Value // only for KindArray
}

// StringValue returns a string-kind Value.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// UIntValue returns a uint-kind Value.
func UIntValue(v uint64) Value { return Value{Kind: KindUInt, UInt: v} }

// IntValue returns an int-kind Value.
func IntValue(v int64) Value { return Value{Kind: KindInt, Int: v} }

// IPv4Value returns an IPv4-kind Value.
func IPv4Value(ip net.IP) Value { return Value{Kind: KindIPv4, IP: ip.To4()} }

// IPv6Value returns an IPv6-kind Value.
func IPv6Value(ip net.IP) Value { return Value{Kind: KindIPv6, IP: ip.To16()} }

// ArrayValue returns an array-kind Value.
func ArrayValue(vs []Value) Value { return Value{Kind: KindArray, Array: vs} }

// Attribute is a single typed key/value pair on an event. Events carry a
// slice rather than a map because the same key (notably To) may legitimately
// repeat.
type Attribute struct {
	Key   Key
	Value Value
}

// Event is one entry in a span's event list.
type Event struct {
	Type      Type
	SpanID    *uint64
	Timestamp time.Time
	Attrs     []Attribute
}

// HasSpanID reports whether the event carries a span id, and returns it.
func (e Event) HasSpanID() (uint64, bool) {
	if e.SpanID == nil {
		return 0, false
	}
	return *e.SpanID, true
}

// WithSpanID returns a copy of id as a *uint64, for building Event literals.
func WithSpanID(id uint64) *uint64 {
	return &id
}
