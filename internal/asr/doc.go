// Package asr runs WhisperX transcription with word-level timestamps.
//
// The forced aligner depends on these timestamps to map synthesized audio
// back onto original segment boundaries, so OutputFormat is always JSON and
// word timing is never optional here.
package asr
