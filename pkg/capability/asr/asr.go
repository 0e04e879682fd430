// Package asr defines the Provider contract for automatic speech recognition
// backends.
//
// An ASR provider receives a complete drained utterance segment (not a live
// stream) and returns its transcript. Calls may be long; implementations must
// honour context cancellation. The returned text may contain engine-specific
// tag markers such as "<|en|>" — the audio pipeline strips those before the
// transcript reaches the orchestrator, so providers need not clean their
// output.
//
// Implementations must be safe for concurrent use: segments from different
// sessions may be recognised in parallel.
package asr

import (
	"context"

	"github.com/voxway/voxway/pkg/capability"
	"github.com/voxway/voxway/pkg/media"
)

// Provider is the abstraction over any speech recognition backend.
type Provider interface {
	capability.Lifecycle

	// Recognize transcribes one audio segment and returns the recognised
	// text, which may be empty when the segment contains no intelligible
	// speech. A non-nil error means the segment could not be processed at
	// all; callers decide whether to retry or to advance the turn with an
	// empty transcript.
	Recognize(ctx context.Context, audio media.AudioData) (string, error)
}
