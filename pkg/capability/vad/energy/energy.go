// Package energy provides an RMS-energy voice activity detector. It is a
// lightweight, no-dependency default suited to close-mic input; swap in a
// model-based detector for far-field or noisy environments.
package energy

import (
	"context"
	"math"
	"sync"

	"github.com/voxway/voxway/pkg/capability/vad"
)

const (
	// DefaultThreshold is the normalized RMS level above which a window
	// counts as speech. Tuned for 16-bit PCM close-mic input.
	DefaultThreshold = 0.015

	// defaultMinConfirm is the number of consecutive above-threshold windows
	// required before reporting speech. Filters out clicks and echo-onset
	// pops; at 512 samples per window this is roughly 100 ms.
	defaultMinConfirm = 3

	// defaultHangover is the number of below-threshold windows still
	// reported as speech after a confirmed run, bridging short intra-word
	// pauses.
	defaultHangover = 8
)

// Option is a functional option for the Detector.
type Option func(*Detector)

// WithThreshold sets the RMS speech threshold in the normalized [0, 1] range.
func WithThreshold(t float64) Option {
	return func(d *Detector) {
		if t > 0 {
			d.threshold = t
		}
	}
}

// WithMinConfirm sets how many consecutive speech windows confirm speech.
func WithMinConfirm(n int) Option {
	return func(d *Detector) {
		if n > 0 {
			d.minConfirm = n
		}
	}
}

// WithHangover sets how many silent windows after speech still count as
// speech.
func WithHangover(n int) Option {
	return func(d *Detector) {
		if n >= 0 {
			d.hangover = n
		}
	}
}

// Detector implements vad.Detector using windowed RMS energy with a
// confirmation run-in and a hangover tail. Safe for concurrent use; the
// per-window state is guarded because multiple sessions' monitor loops may
// share the process-wide instance.
type Detector struct {
	threshold  float64
	minConfirm int
	hangover   int

	mu          sync.Mutex
	aboveRun    int
	hangLeft    int
	lastRMS     float64
}

// New creates a Detector with the given options.
func New(opts ...Option) *Detector {
	d := &Detector{
		threshold:  DefaultThreshold,
		minConfirm: defaultMinConfirm,
		hangover:   defaultHangover,
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Setup implements capability.Lifecycle. The detector needs no warm-up.
func (d *Detector) Setup(context.Context) error { return nil }

// Close implements capability.Lifecycle.
func (d *Detector) Close() error { return nil }

// Detect reports whether the window contains speech. The input should be one
// analysis window ([vad.WindowSamples] samples of 16-bit mono PCM); callers
// chunk accordingly.
func (d *Detector) Detect(chunk []byte) (bool, error) {
	rms := rms16(chunk)

	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastRMS = rms

	if rms > d.threshold {
		d.aboveRun++
		if d.aboveRun >= d.minConfirm {
			d.hangLeft = d.hangover
			return true, nil
		}
		return false, nil
	}

	d.aboveRun = 0
	if d.hangLeft > 0 {
		d.hangLeft--
		return true, nil
	}
	return false, nil
}

// ResetState clears the confirmation and hangover counters, used when an
// utterance is handed off so the next one starts cold.
func (d *Detector) ResetState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aboveRun = 0
	d.hangLeft = 0
}

// LastRMS returns the RMS of the last processed window, for threshold tuning.
func (d *Detector) LastRMS() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastRMS
}

// rms16 computes the normalized RMS of little-endian 16-bit PCM.
func rms16(chunk []byte) float64 {
	if len(chunk) < 2 {
		return 0
	}
	var sum float64
	n := 0
	for i := 0; i+1 < len(chunk); i += 2 {
		sample := int16(chunk[i]) | int16(chunk[i+1])<<8
		f := float64(sample) / 32768.0
		sum += f * f
		n++
	}
	return math.Sqrt(sum / float64(n))
}

var _ vad.Detector = (*Detector)(nil)
