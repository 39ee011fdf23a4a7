// Package store provides policy stores for the arbitration engine.
//
// Every store implements arbiter.PolicyStore for the engine and Writer for
// policy management. Reads return copies, so callers may modify what they
// get back.
//
//   - MemoryStore keeps policies in process.
//   - FileStore reads YAML or JSON documents and can reload them on change.
//   - SQLStore keeps policies in a SQL database (sqlite by default).
//   - GitSync keeps a FileStore directory in step with a git branch.
//
// A store that cannot answer returns an error, which the engine turns into
// a fail-closed verdict.
package store
