// Package store defines the [Store] interface for shared rate limit counter
// backends and provides implementations:
//
//   - [MemoryStore]: fast, in-process counters that are lost on restart.
//   - [SQLiteStore]: persistent counters backed by a SQLite database.
//   - [InstrumentedStore]: wraps any Store with OpenTelemetry spans and metrics.
//
// A Redis backend lives in the store/redis subpackage.
//
// A Store exposes exactly two atomic operations, IncrementAndPeek and Peek.
// Counters are keyed by opaque strings chosen by the caller and expire after
// the TTL given on increment. Custom backends can be created by implementing
// the [Store] interface; failures should be reported with [Unavailable].
package store
