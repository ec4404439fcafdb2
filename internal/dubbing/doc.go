// Package dubbing implements the multi-speaker dubbing pipeline: transcript
// segments are grouped per speaker, translated and synthesized once per
// speaker as continuous utterances, then re-sliced back to the original
// segment boundaries via forced alignment and reassembled in chronological
// order with the original inter-segment silences.
package dubbing
