// Package tts defines the Provider contract for text-to-speech backends.
//
// The orchestrator calls SynthesizeStream once per sentence, so providers are
// sized for short inputs and quick first-chunk latency rather than long-form
// narration. Multiple sentences of the same turn may be synthesised
// concurrently.
//
// Implementations must be safe for concurrent use.
package tts

import (
	"context"

	"github.com/voxway/voxway/pkg/capability"
	"github.com/voxway/voxway/pkg/media"
)

// Provider is the abstraction over any speech synthesis backend.
type Provider interface {
	capability.Lifecycle

	// SynthesizeStream synthesises text and returns a read-only channel
	// emitting audio chunks of the provider's declared format, terminated by
	// one Final sentinel chunk. Empty input yields the sentinel only. The
	// channel is closed by the implementation when synthesis finishes or ctx
	// is cancelled; callers must drain it.
	//
	// A non-nil error is returned only when the stream cannot be started,
	// after the provider's retry budget is exhausted.
	SynthesizeStream(ctx context.Context, text media.TextData) (<-chan media.AudioData, error)
}
