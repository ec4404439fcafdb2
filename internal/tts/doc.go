// Package tts manages speech-synthesis backends: the model lifecycle state
// machine that verifies a backend is actually usable before anything waits
// on it, and the engine wrappers that serialize calls into non-reentrant
// native synthesis instances.
package tts
