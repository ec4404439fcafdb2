// Package transport implements the wire protocol between the daemon and its
// offload workers: multipart envelopes (a JSON header frame plus binary
// payload frames) over a push/subscribe socket pair, with request
// correlation, retry and circuit breaking, and timeout sweeping for
// responses that never arrive.
package transport
