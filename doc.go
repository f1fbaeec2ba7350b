// Package spanstore is the root of a span telemetry store: it ingests a
// structured event stream from a mail server's SMTP/queue/delivery/auth
// subsystems, groups events into spans keyed by span id, and persists
// completed spans that carry a queue id as indexed blobs in an embedded
// ordered KV store.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/spanstore/cmd/spanstore@latest
//
// Write a config file:
//
//	badger_dir: .spanstore/data
//	snowflake:
//	  allocator: static
//	  node_id: 0
//	retention:
//	  span_max_age: 720h
//
// Feed it a stream of NDJSON events and query what landed:
//
//	spanstore serve --config spanstore.yaml < events.ndjson
//	spanstore query --config spanstore.yaml --queue-id 42
//
// # Using as a Go library
//
//	import "github.com/kadirpekel/spanstore/pkg/telemetry"
//
// pkg/telemetry.Store is the single entry point: Events() for ingestion,
// QuerySpans/GetSpan for lookups, PurgeSpans for retention, HoldUndelete/
// ListDeleted for the blob-undelete facet. Everything underneath —
// pkg/telemetry/keycodec, snowflake, events, aggregator, query, retention,
// undelete, store — is composable on its own against the store.Store
// contract.
//
// # Scope
//
// This module owns ingestion, aggregation, indexing, querying and
// retention of spans. It does not implement SMTP/IMAP/JMAP listeners, mail
// parsing, or an HTTP API — those are a mail server's concern, not a
// telemetry store's; cmd/spanstore's serve/ingest subcommands read an
// already-structured event stream from stdin or a file rather than
// terminating any network protocol themselves.
package spanstore
