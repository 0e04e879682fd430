package audioin

import "time"

// Segment cut thresholds. A segment is cut as final after SilenceTimeout of
// quiet (if at least MinSegment of audio accumulated) or immediately on a
// client end signal; it is cut as non-final once MaxBufferDuration of audio
// is pending so long utterances reach ASR incrementally.
const (
	SilenceTimeout    = 1 * time.Second
	MaxBufferDuration = 5 * time.Second
	MinSegment        = 300 * time.Millisecond
)

// Decision is the segment detector's verdict for the current buffer state.
type Decision struct {
	// Process reports whether the buffer should be drained and recognised.
	Process bool

	// Final marks the segment as the end of the utterance.
	Final bool

	// Reason names the rule that matched: "client_signal", "silence_timeout",
	// "max_buffer", or "waiting".
	Reason string
}

// Decide is the segment detector: a pure function of the buffered duration,
// the last speech timestamp, and the client end flag. Rules are evaluated in
// order and the first match wins.
func Decide(duration float64, lastSpeech time.Time, clientEnded bool, now time.Time) Decision {
	if clientEnded {
		return Decision{Process: true, Final: true, Reason: "client_signal"}
	}
	if !lastSpeech.IsZero() &&
		now.Sub(lastSpeech) >= SilenceTimeout &&
		duration >= MinSegment.Seconds() {
		return Decision{Process: true, Final: true, Reason: "silence_timeout"}
	}
	if duration >= MaxBufferDuration.Seconds() {
		return Decision{Process: true, Final: false, Reason: "max_buffer"}
	}
	return Decision{Reason: "waiting"}
}
