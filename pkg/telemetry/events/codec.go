package events

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

func unixMilli(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ErrCorruptValue is returned when a span blob is truncated or carries a
// value kind this decoder doesn't understand.
var ErrCorruptValue = fmt.Errorf("events: corrupt value")

// SerializeEvents concatenates the encoded form of each event in order. The
// resulting bytes are exactly what is stored as a span blob's value.
func SerializeEvents(evts []Event) []byte {
	var buf []byte
	for _, e := range evts {
		buf = appendEvent(buf, e)
	}
	return buf
}

// DeserializeEvents reverses SerializeEvents, decoding every event in the
// blob. Any truncation or unknown tag fails the whole call with
// ErrCorruptValue rather than returning a partial list, since a partially
// decoded span can silently defeat the query engine's correctness.
func DeserializeEvents(data []byte) ([]Event, error) {
	var out []Event
	off := 0
	for off < len(data) {
		e, n, err := readEvent(data[off:])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		off += n
	}
	return out, nil
}

func appendEvent(buf []byte, e Event) []byte {
	var tmp [8]byte

	binary.BigEndian.PutUint16(tmp[:2], e.Type.Code())
	buf = append(buf, tmp[:2]...)

	if id, ok := e.HasSpanID(); ok {
		buf = append(buf, 1)
		binary.BigEndian.PutUint64(tmp[:8], id)
		buf = append(buf, tmp[:8]...)
	} else {
		buf = append(buf, 0)
	}

	binary.BigEndian.PutUint64(tmp[:8], uint64(e.Timestamp.UnixMilli()))
	buf = append(buf, tmp[:8]...)

	binary.BigEndian.PutUint16(tmp[:2], uint16(len(e.Attrs)))
	buf = append(buf, tmp[:2]...)

	for _, a := range e.Attrs {
		buf = append(buf, byte(a.Key))
		buf = appendValue(buf, a.Value)
	}

	return buf
}

func readEvent(data []byte) (Event, int, error) {
	off := 0
	if len(data) < 2 {
		return Event{}, 0, ErrCorruptValue
	}
	typ := Type(binary.BigEndian.Uint16(data[off:]))
	off += 2

	if off >= len(data) {
		return Event{}, 0, ErrCorruptValue
	}
	hasSpan := data[off]
	off++

	var spanID *uint64
	if hasSpan == 1 {
		if off+8 > len(data) {
			return Event{}, 0, ErrCorruptValue
		}
		id := binary.BigEndian.Uint64(data[off:])
		spanID = &id
		off += 8
	} else if hasSpan != 0 {
		return Event{}, 0, ErrCorruptValue
	}

	if off+8 > len(data) {
		return Event{}, 0, ErrCorruptValue
	}
	ts := int64(binary.BigEndian.Uint64(data[off:]))
	off += 8

	if off+2 > len(data) {
		return Event{}, 0, ErrCorruptValue
	}
	n := int(binary.BigEndian.Uint16(data[off:]))
	off += 2

	attrs := make([]Attribute, 0, n)
	for i := 0; i < n; i++ {
		if off >= len(data) {
			return Event{}, 0, ErrCorruptValue
		}
		key := Key(data[off])
		off++

		val, consumed, err := readValue(data[off:])
		if err != nil {
			return Event{}, 0, err
		}
		off += consumed

		attrs = append(attrs, Attribute{Key: key, Value: val})
	}

	return Event{
		Type:      typ,
		SpanID:    spanID,
		Timestamp: unixMilli(ts),
		Attrs:     attrs,
	}, off, nil
}

func appendValue(buf []byte, v Value) []byte {
	buf = append(buf, byte(v.Kind))
	var tmp [8]byte

	switch v.Kind {
	case KindString:
		binary.BigEndian.PutUint32(tmp[:4], uint32(len(v.Str)))
		buf = append(buf, tmp[:4]...)
		buf = append(buf, v.Str...)
	case KindUInt:
		binary.BigEndian.PutUint64(tmp[:8], v.UInt)
		buf = append(buf, tmp[:8]...)
	case KindInt:
		binary.BigEndian.PutUint64(tmp[:8], uint64(v.Int))
		buf = append(buf, tmp[:8]...)
	case KindIPv4:
		ip := v.IP.To4()
		buf = append(buf, ip...)
	case KindIPv6:
		ip := v.IP.To16()
		buf = append(buf, ip...)
	case KindArray:
		binary.BigEndian.PutUint16(tmp[:2], uint16(len(v.Array)))
		buf = append(buf, tmp[:2]...)
		for _, elem := range v.Array {
			buf = appendValue(buf, elem)
		}
	}
	return buf
}

func readValue(data []byte) (Value, int, error) {
	if len(data) < 1 {
		return Value{}, 0, ErrCorruptValue
	}
	kind := Kind(data[0])
	off := 1

	switch kind {
	case KindString:
		if off+4 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		n := int(binary.BigEndian.Uint32(data[off:]))
		off += 4
		if off+n > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		s := string(data[off : off+n])
		off += n
		return StringValue(s), off, nil

	case KindUInt:
		if off+8 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		u := binary.BigEndian.Uint64(data[off:])
		off += 8
		return UIntValue(u), off, nil

	case KindInt:
		if off+8 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		i := int64(binary.BigEndian.Uint64(data[off:]))
		off += 8
		return IntValue(i), off, nil

	case KindIPv4:
		if off+4 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		ip := net.IP(append([]byte(nil), data[off:off+4]...))
		off += 4
		return IPv4Value(ip), off, nil

	case KindIPv6:
		if off+16 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		ip := net.IP(append([]byte(nil), data[off:off+16]...))
		off += 16
		return IPv6Value(ip), off, nil

	case KindArray:
		if off+2 > len(data) {
			return Value{}, 0, ErrCorruptValue
		}
		n := int(binary.BigEndian.Uint16(data[off:]))
		off += 2
		elems := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			elem, consumed, err := readValue(data[off:])
			if err != nil {
				return Value{}, 0, err
			}
			elems = append(elems, elem)
			off += consumed
		}
		return ArrayValue(elems), off, nil

	default:
		return Value{}, 0, ErrCorruptValue
	}
}
