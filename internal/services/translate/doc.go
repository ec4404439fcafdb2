// Package translate is the chat-completions translation client used by the
// dubbing pipeline, one call per speaker.
package translate
