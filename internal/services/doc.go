// Package services holds the error taxonomy and request-scoped context
// helpers shared by the transport layer, the dubbing pipeline, and the
// external service clients in subpackages.
//
// Every failure is tagged with one of the exported sentinel errors via Wrap
// so callers can classify with errors.Is without string matching. Context
// helpers carry job, stage, speaker, and correlation identifiers for
// structured logging.
package services
