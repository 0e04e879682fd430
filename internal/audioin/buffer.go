// Package audioin converts a session's continuous raw audio stream into
// discrete final transcripts.
//
// The pipeline is: VAD gates each incoming chunk ([Pipeline.ProcessChunk]),
// speech chunks accumulate in a bounded [Buffer], a monitor loop periodically
// asks the segment detector ([Decide]) whether the current utterance should
// be cut, and a drained segment is recognised by the ASR driver, which emits
// one final transcript per utterance through the pipeline's result callback.
package audioin

import (
	"log/slog"
	"sync"
	"time"

	"github.com/voxway/voxway/pkg/media"
)

// MaxBufferBytes bounds the total buffered speech per session. When an append
// would exceed it, the buffer is cleared first: correctness beats completeness
// when the session is starved of ASR throughput.
const MaxBufferBytes = 10 << 20

// Buffer is a mutex-protected append-only queue of speech-only audio chunks
// plus the timestamp of the most recent speech. One Buffer exists per
// session's pipeline.
type Buffer struct {
	mu         sync.Mutex
	chunks     [][]byte
	size       int
	lastSpeech time.Time

	now func() time.Time // test seam
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer {
	return &Buffer{now: time.Now}
}

// Append adds a speech chunk and stamps it as the latest speech time. If the
// post-append size would exceed MaxBufferBytes the buffer is cleared before
// the new chunk is kept, and a warning is logged.
func (b *Buffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size+len(chunk) > MaxBufferBytes {
		slog.Warn("audio buffer overflow, dropping buffered speech",
			"buffered_bytes", b.size, "chunk_bytes", len(chunk))
		b.chunks = nil
		b.size = 0
	}
	b.chunks = append(b.chunks, chunk)
	b.size += len(chunk)
	b.lastSpeech = b.now()
}

// Drain atomically removes and concatenates all buffered chunks.
func (b *Buffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.size == 0 {
		b.chunks = nil
		return nil
	}
	out := make([]byte, 0, b.size)
	for _, c := range b.chunks {
		out = append(out, c...)
	}
	b.chunks = nil
	b.size = 0
	return out
}

// DurationSeconds returns the buffered audio length in seconds, assuming the
// default PCM stream parameters.
func (b *Buffer) DurationSeconds() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.size) / media.BytesPerSecond
}

// IsEmpty reports whether no speech is buffered.
func (b *Buffer) IsEmpty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size == 0
}

// LastSpeechTime returns when speech last arrived. The zero time means no
// speech has been buffered yet.
func (b *Buffer) LastSpeechTime() time.Time {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSpeech
}

// snapshot returns the buffered duration and last speech time under one lock
// acquisition, for the segment detector.
func (b *Buffer) snapshot() (duration float64, lastSpeech time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return float64(b.size) / media.BytesPerSecond, b.lastSpeech
}
