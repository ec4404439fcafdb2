// Package deps verifies the external binaries the worker shells out to.
//
// The model lifecycle manager and the daemon preflight both consult these
// checks so a missing tool is reported immediately instead of surfacing as a
// confusing mid-job failure.
package deps
