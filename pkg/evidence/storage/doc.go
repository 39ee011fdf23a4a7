// Package storage provides evidence storage backends.
//
//   - SQLiteStorage: durable single-node storage (WAL mode, indexed on the
//     common filter columns)
//   - MemoryStorage: process-local storage for tests and ephemeral runs
//
// Both sort newest first by default and honor Limit and Offset.
package storage
