// Package query validates evidence queries and parses the time bounds the
// CLI and HTTP API accept.
package query
