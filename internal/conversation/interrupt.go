package conversation

import "sync"

// interrupt tracks barge-in state for one session. It carries two related
// facts:
//
//   - the live flag: once tripped, no further response output belonging to
//     the in-flight turn may be sent. Producers observe it either by polling
//     IsSet at chunk boundaries or by selecting on the Done channel.
//   - the history bit: whether an interruption happened since the last
//     completed turn, which drives the utterance-concatenation rule.
//
// Rearm starts a new assistant turn by replacing the Done channel; channel
// close is the cross-goroutine signal, so in-flight producers holding the
// old channel still see their own turn's trip.
type interrupt struct {
	mu   sync.Mutex
	done chan struct{}
	set  bool
	was  bool
}

func newInterrupt() *interrupt {
	return &interrupt{done: make(chan struct{})}
}

// Trip sets the flag and the history bit. It reports the rising edge: true
// only for the call that actually flipped the flag.
func (i *interrupt) Trip() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.set {
		return false
	}
	i.set = true
	i.was = true
	close(i.done)
	return true
}

// IsSet reports the live flag.
func (i *interrupt) IsSet() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.set
}

// Done returns the channel closed when the current turn is interrupted.
// Callers must capture it at turn start; Rearm replaces it.
func (i *interrupt) Done() <-chan struct{} {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}

// Was reports whether an interruption happened since the last ClearWas.
func (i *interrupt) Was() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.was
}

// ClearWas resets the history bit only.
func (i *interrupt) ClearWas() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.was = false
}

// Rearm clears the live flag for a new assistant turn.
func (i *interrupt) Rearm() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.set {
		i.set = false
		i.done = make(chan struct{})
	}
}
