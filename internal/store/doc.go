// Package store provides SQLite-backed durable storage for imported combat
// logs and the reports produced from them.
//
// The store holds:
//   - Fights: one row per imported log, identified by a UUIDv7 and unique
//     by content digest
//   - Events: the normalized event sequence of each fight
//   - Reports: canonical JSON analysis reports keyed by run id
//
// # Critical Patterns
//
// Content-Addressed Imports
//   - UNIQUE(digest) on fights
//   - Importing the same event sequence twice returns the existing fight
//
// Deterministic Reads
//   - Events are always read ORDER BY ts ASC, seq ASC, the order replay
//     requires
//   - Fight and report listings break ties on id COLLATE BINARY
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events and reports cascade with their fight
//
// Digests are computed with internal/canon: canonical JSON and SHA-256 with
// domain separation.
package store
