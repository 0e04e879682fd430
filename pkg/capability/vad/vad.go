// Package vad defines the Detector contract for voice activity detection
// backends.
//
// VAD is synchronous by design: Detect returns immediately, making it
// suitable as the gate in front of the audio buffer. Detectors are stateful —
// smoothing windows, hysteresis counters — and offer ResetState to clear that
// state between utterances.
//
// Implementations must tolerate calls from multiple sessions' monitor loops;
// callers serialize per session, and implementations may synchronise
// internally on top of that.
package vad

import (
	"github.com/voxway/voxway/pkg/capability"
)

// WindowSamples is the fixed analysis window most detectors require at
// 16 kHz. The audio pipeline is responsible for chunking client audio into
// windows of this many samples.
const WindowSamples = 512

// Detector is the abstraction over any voice activity detection backend.
type Detector interface {
	capability.Lifecycle

	// Detect reports whether chunk contains speech above the configured
	// probability threshold. chunk is raw little-endian 16-bit PCM of the
	// window size the implementation requires.
	Detect(chunk []byte) (bool, error)

	// ResetState clears accumulated detection state without closing the
	// detector.
	ResetState()
}
