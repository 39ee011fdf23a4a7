// Package evidence records an audit trail of policy evaluations.
//
// Every evaluation that reaches the engine through the gateway produces one
// Record: the verdict, the winning policy and reason, the drift statistics
// and the evidence entries the detectors emitted. Prompt text is never
// stored; a record carries its SHA-256 and length so an auditor holding the
// original can prove which text was judged.
//
// # Layers
//
//  1. recorder builds records and writes them asynchronously
//  2. storage persists them (memory or SQLite)
//  3. query validates filters, export renders JSON or CSV
//  4. retention prunes by age and count on a cron schedule
//
// # Usage
//
//	store, err := storage.NewSQLiteStorage(&storage.SQLiteConfig{Path: "data/evidence.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	rec.Record(ctx, recorder.Entry{
//	    RequestID: requestID,
//	    Direction: arbiter.DirectionIngress,
//	    Scope:     scope,
//	    Text:      prompt,
//	    Result:    result,
//	})
package evidence
