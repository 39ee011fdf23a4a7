// Package recorder turns evaluation results into evidence records and
// writes them to storage in the background.
//
// Record never blocks on storage: entries go onto a buffered channel that a
// single worker drains. When the buffer is full the entry is dropped and
// counted. Close drains whatever is still queued.
//
//	rec := recorder.NewRecorder(store, recorder.DefaultConfig())
//	defer rec.Close()
//
//	_ = rec.Record(ctx, recorder.Entry{RequestID: id, Direction: arbiter.DirectionIngress, Text: prompt, Result: res})
package recorder
