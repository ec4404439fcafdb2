// Package language provides unified language code normalization and mapping.
//
// All language-related conversions (ISO 639-1, ISO 639-2, display names,
// target-language list cleanup) are consolidated here so the translator,
// transcription, and synthesis packages agree on one canonical form.
package language
