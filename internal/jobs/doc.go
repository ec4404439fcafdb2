// Package jobs tracks dubbing requests in a SQLite store: status
// transitions, correlation ids for the transport layer, and the failed
// segment indices of partial dubs.
package jobs
