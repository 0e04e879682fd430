// Package mock provides a test double for the asr.Provider interface.
//
// Use Provider to return scripted transcripts from the audio pipeline's ASR
// driver without a live recognition backend. Results are consumed in order;
// once the script is exhausted, Result is returned for every further call.
package mock

import (
	"context"
	"sync"

	"github.com/voxway/voxway/pkg/capability/asr"
	"github.com/voxway/voxway/pkg/media"
)

// RecognizeCall records a single invocation of Recognize.
type RecognizeCall struct {
	// Ctx is the context passed to Recognize.
	Ctx context.Context
	// Audio is the AudioData passed to Recognize.
	Audio media.AudioData
}

// Provider is a mock implementation of asr.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Results is an optional script of transcripts returned by successive
	// Recognize calls. When exhausted (or empty), Result is returned.
	Results []string

	// Result is the fallback transcript returned by Recognize.
	Result string

	// RecognizeErr, if non-nil, is returned as the error from Recognize.
	RecognizeErr error

	// SetupErr, if non-nil, is returned by Setup.
	SetupErr error

	// --- Call records (read after test) ---

	// RecognizeCalls records every invocation of Recognize in order.
	RecognizeCalls []RecognizeCall

	// SetupCount and CloseCount track lifecycle invocations.
	SetupCount int
	CloseCount int
}

// Recognize implements asr.Provider.
func (p *Provider) Recognize(ctx context.Context, audio media.AudioData) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := len(p.RecognizeCalls)
	p.RecognizeCalls = append(p.RecognizeCalls, RecognizeCall{Ctx: ctx, Audio: audio})
	if p.RecognizeErr != nil {
		return "", p.RecognizeErr
	}
	if n < len(p.Results) {
		return p.Results[n], nil
	}
	return p.Result, nil
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

// Compile-time assertion that Provider satisfies asr.Provider.
var _ asr.Provider = (*Provider)(nil)
