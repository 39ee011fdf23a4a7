// Package export renders evidence records as JSON or CSV.
//
// Both exporters have a slice form (Export) and a channel form
// (ExportStream) that consumes Storage.QueryStream without holding the whole
// result in memory.
package export
