// Package mock provides a test double for the vad.Detector interface.
//
// By default every chunk is classified as speech; set Speech to false to
// classify everything as silence, or provide a Script for per-chunk control.
package mock

import (
	"context"
	"sync"

	"github.com/voxway/voxway/pkg/capability/vad"
)

// Detector is a mock implementation of vad.Detector.
type Detector struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Script is an optional sequence of per-call results. When exhausted
	// (or empty), Speech is returned.
	Script []bool

	// Speech is the fallback classification. The zero value means silence.
	Speech bool

	// DetectErr, if non-nil, is returned as the error from Detect.
	DetectErr error

	// SetupErr, if non-nil, is returned by Setup.
	SetupErr error

	// --- Call records (read after test) ---

	// Chunks records a copy of every chunk passed to Detect, in order.
	Chunks [][]byte

	// ResetCount, SetupCount and CloseCount track invocations.
	ResetCount int
	SetupCount int
	CloseCount int
}

// Detect implements vad.Detector.
func (d *Detector) Detect(chunk []byte) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := len(d.Chunks)
	cp := make([]byte, len(chunk))
	copy(cp, chunk)
	d.Chunks = append(d.Chunks, cp)
	if d.DetectErr != nil {
		return false, d.DetectErr
	}
	if n < len(d.Script) {
		return d.Script[n], nil
	}
	return d.Speech, nil
}

// ResetState implements vad.Detector.
func (d *Detector) ResetState() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ResetCount++
}

// Setup implements capability.Lifecycle.
func (d *Detector) Setup(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.SetupCount++
	return d.SetupErr
}

// Close implements capability.Lifecycle.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CloseCount++
	return nil
}

// Compile-time assertion that Detector satisfies vad.Detector.
var _ vad.Detector = (*Detector)(nil)
