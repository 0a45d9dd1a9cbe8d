// Package store provides SQLite-backed durable storage for lastclick.
//
// The store holds four tables:
//   - events: raw behavioral events, the input of last-click attribution
//   - orders: de-duplicated purchases, unique by fingerprint
//   - products: canonical catalog items, unique by business key
//   - order_products: junction rows, unique by (order_id, product_id)
//
// # Single Writer
//
// Ingestion runs go through WithWriter, which wraps every lookup and insert of
// a run in one transaction begun with BEGIN IMMEDIATE. SQLite grants that lock
// to one connection at a time, so two runs against the same file serialize:
// the second run waits (up to busy_timeout) and then observes everything the
// first one committed. A run either lands all three entity kinds or none.
//
// The UNIQUE constraints are a backstop. A write that violates one returns an
// error matching ErrConstraint.
//
// # Deterministic Reads
//
// Paginated reads order by (event_timestamp ASC, id ASC) so a page is stable
// across calls.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
