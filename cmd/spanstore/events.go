package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/kadirpekel/spanstore/pkg/telemetry/events"
)

// wireEvent is the CLI's newline-delimited JSON wire format for events, one
// per line, fed to serve/ingest on stdin or from a file. This format is CLI
// glue only — pkg/telemetry/events never imports encoding/json, since the
// persisted encoding is the binary codec in events.SerializeEvents.
type wireEvent struct {
	Type      uint16          `json:"type"`
	SpanID    *uint64         `json:"span_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Attrs     []wireAttribute `json:"attrs,omitempty"`
}

type wireAttribute struct {
	Key   uint8  `json:"key"`
	Kind  uint8  `json:"kind"`
	Str   string `json:"str,omitempty"`
	UInt  uint64 `json:"uint,omitempty"`
	Int   int64  `json:"int,omitempty"`
	IP    string `json:"ip,omitempty"`
}

func (w wireEvent) toEvent() (events.Event, error) {
	attrs := make([]events.Attribute, 0, len(w.Attrs))
	for _, a := range w.Attrs {
		v, err := a.toValue()
		if err != nil {
			return events.Event{}, err
		}
		attrs = append(attrs, events.Attribute{Key: events.Key(a.Key), Value: v})
	}
	return events.Event{
		Type:      events.Type(w.Type),
		SpanID:    w.SpanID,
		Timestamp: w.Timestamp,
		Attrs:     attrs,
	}, nil
}

func (a wireAttribute) toValue() (events.Value, error) {
	switch events.Kind(a.Kind) {
	case events.KindString:
		return events.StringValue(a.Str), nil
	case events.KindUInt:
		return events.UIntValue(a.UInt), nil
	case events.KindInt:
		return events.IntValue(a.Int), nil
	case events.KindIPv4:
		ip := net.ParseIP(a.IP)
		if ip == nil {
			return events.Value{}, fmt.Errorf("invalid ipv4 %q", a.IP)
		}
		return events.IPv4Value(ip), nil
	case events.KindIPv6:
		ip := net.ParseIP(a.IP)
		if ip == nil {
			return events.Value{}, fmt.Errorf("invalid ipv6 %q", a.IP)
		}
		return events.IPv6Value(ip), nil
	default:
		return events.Value{}, fmt.Errorf("unsupported attribute kind %d in CLI wire format", a.Kind)
	}
}

// readEvents decodes one wireEvent per line from r, calling emit for each.
// Blank lines are skipped. Decoding stops at the first malformed line.
func readEvents(r io.Reader, emit func(events.Event) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := scanner.Bytes()
		if len(text) == 0 {
			continue
		}
		var w wireEvent
		if err := json.Unmarshal(text, &w); err != nil {
			return fmt.Errorf("line %d: decode event: %w", line, err)
		}
		evt, err := w.toEvent()
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := emit(evt); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	return scanner.Err()
}
