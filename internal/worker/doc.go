// Package worker implements the offload worker process: it listens for
// request envelopes on the push endpoint, dispatches each request to the
// service that handles its type, and publishes results and events to every
// subscriber connection.
package worker
