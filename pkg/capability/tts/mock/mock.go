// Package mock provides a test double for the tts.Provider interface.
//
// Use Provider to feed controlled audio chunks to consumers and to verify
// which sentences the orchestrator handed to synthesis.
//
// Example:
//
//	p := &mock.Provider{
//	    SynthesizeChunks: [][]byte{[]byte("audio1"), []byte("audio2")},
//	}
//	ch, _ := p.SynthesizeStream(ctx, media.TextData{Text: "Hello."})
package mock

import (
	"context"
	"sync"

	"github.com/voxway/voxway/pkg/capability/tts"
	"github.com/voxway/voxway/pkg/media"
)

// SynthesizeStreamCall records a single invocation of SynthesizeStream.
type SynthesizeStreamCall struct {
	// Ctx is the context passed to SynthesizeStream.
	Ctx context.Context
	// Text is the TextData passed to SynthesizeStream.
	Text media.TextData
}

// Provider is a mock implementation of tts.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// SynthesizeChunks is the sequence of audio byte slices emitted on the
	// channel returned by SynthesizeStream, followed by one Final sentinel.
	SynthesizeChunks [][]byte

	// Format is the declared format of emitted chunks. Defaults to
	// media.FormatMP3 when empty.
	Format media.Format

	// SynthesizeErr, if non-nil, is returned as the error from
	// SynthesizeStream instead of starting a channel.
	SynthesizeErr error

	// SetupErr, if non-nil, is returned by Setup.
	SetupErr error

	// --- Call records (read after test) ---

	// SynthesizeStreamCalls records every invocation of SynthesizeStream in order.
	SynthesizeStreamCalls []SynthesizeStreamCall

	// SetupCount and CloseCount track lifecycle invocations.
	SetupCount int
	CloseCount int
}

// SynthesizeStream implements tts.Provider. It records the call and emits the
// configured chunks followed by a final sentinel.
func (p *Provider) SynthesizeStream(ctx context.Context, text media.TextData) (<-chan media.AudioData, error) {
	p.mu.Lock()
	p.SynthesizeStreamCalls = append(p.SynthesizeStreamCalls, SynthesizeStreamCall{Ctx: ctx, Text: text})
	err := p.SynthesizeErr
	chunks := make([][]byte, len(p.SynthesizeChunks))
	copy(chunks, p.SynthesizeChunks)
	format := p.Format
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if format == "" {
		format = media.FormatMP3
	}

	ch := make(chan media.AudioData, len(chunks)+1)
	go func() {
		defer close(ch)
		if text.Text != "" {
			for _, c := range chunks {
				select {
				case ch <- media.AudioData{Data: c, Format: format}:
				case <-ctx.Done():
					return
				}
			}
		}
		select {
		case ch <- media.AudioData{Format: format, Final: true}:
		case <-ctx.Done():
		}
	}()
	return ch, nil
}

// Setup implements capability.Lifecycle.
func (p *Provider) Setup(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SetupCount++
	return p.SetupErr
}

// Close implements capability.Lifecycle.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CloseCount++
	return nil
}

// Compile-time assertion that Provider satisfies tts.Provider.
var _ tts.Provider = (*Provider)(nil)
