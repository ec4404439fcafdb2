// Package media wraps the ffmpeg and ffprobe invocations the dubbing
// pipeline depends on: duration probing, slice extraction, tempo
// adjustment, silence generation, and concatenation.
//
// Every operation takes a context and normalizes output to mono 16kHz PCM
// WAV so slices from different stages can be concatenated without
// resampling. A custom Runner can be injected for tests.
package media
