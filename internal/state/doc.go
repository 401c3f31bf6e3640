// Package state provides the SQLite-backed run ledger.
//
// The ledger stores:
//   - One row per mirror run with final counts
//   - One row per page per run with its content fingerprint
//
// Fingerprints make resume possible: a page whose raw body hashes to the
// same value as the last recorded crawl is skipped instead of re-exported.
//
// Design decision: We use SQLite (via modernc.org/sqlite) because:
// 1. No external dependencies - the ledger is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. A mirror run writes at most a few thousand rows
// 4. WAL mode keeps reads cheap while a run is writing
package state
