// Package daemon ties the offload services together into a long-running
// process: it owns the single-instance lock, recovers jobs a previous run
// left in flight, starts the worker server and speech-model lifecycle, and
// answers status queries from the control socket.
package daemon
