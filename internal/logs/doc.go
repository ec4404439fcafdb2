// Package logs provides bounded-memory log file tailing for the CLI and the
// daemon's control socket.
//
// A negative offset means "the last N lines", which is how `redub logs`
// starts; follow mode resumes from the returned offset and polls until new
// lines arrive or the context is cancelled.
package logs
