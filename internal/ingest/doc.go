// Package ingest turns fetched purchase records into de-duplicated orders,
// canonical products and quantity-merged junction rows, and writes exactly the
// new rows to storage.
//
// A run moves one batch through five states:
//
//	FETCHED → MAPPED → DEDUPED → RECONCILED → PERSISTED
//
// Every arrow except the last is a pure function of its input:
//   - Mapper.Map builds one Triple per record and fingerprints the order.
//   - Dedupe drops triples whose order fingerprint is already stored or was
//     already seen earlier in the batch (first occurrence wins).
//   - Reconcile resolves each speculative product against a ProductIndex
//     seeded from storage, redirects junction rows to the canonical product
//     and merges rows that end up sharing (order, product).
//
// The final arrow writes Products, then Orders, then OrderProducts through a
// store.Writer, inside one transaction that holds the store's write lock.
//
// # Idempotence
//
// Re-running a batch that was already persisted yields no new triples after
// Dedupe and performs zero writes.
//
// # Single Writer
//
// Reconcile threads one ProductIndex through the batch in input order, so it
// must never be run concurrently on the same index. Across processes the
// store serializes writer runs; see package store.
package ingest
