package audioin

import (
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		duration    float64
		lastSpeech  time.Time
		clientEnded bool
		wantProcess bool
		wantFinal   bool
		wantReason  string
	}{
		{
			name:        "client signal always cuts final",
			duration:    0,
			clientEnded: true,
			wantProcess: true,
			wantFinal:   true,
			wantReason:  "client_signal",
		},
		{
			name:        "silence timeout with enough audio",
			duration:    1.0,
			lastSpeech:  now.Add(-2 * time.Second),
			wantProcess: true,
			wantFinal:   true,
			wantReason:  "silence_timeout",
		},
		{
			name:       "silence timeout but segment too short",
			duration:   0.1,
			lastSpeech: now.Add(-2 * time.Second),
			wantReason: "waiting",
		},
		{
			name:       "speech still recent",
			duration:   1.0,
			lastSpeech: now.Add(-200 * time.Millisecond),
			wantReason: "waiting",
		},
		{
			name:        "max buffer cuts non-final",
			duration:    5.5,
			lastSpeech:  now.Add(-100 * time.Millisecond),
			wantProcess: true,
			wantFinal:   false,
			wantReason:  "max_buffer",
		},
		{
			name:       "no speech seen yet",
			duration:   0,
			wantReason: "waiting",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := Decide(tt.duration, tt.lastSpeech, tt.clientEnded, now)
			if d.Process != tt.wantProcess {
				t.Errorf("Process = %v, want %v", d.Process, tt.wantProcess)
			}
			if d.Final != tt.wantFinal {
				t.Errorf("Final = %v, want %v", d.Final, tt.wantFinal)
			}
			if d.Reason != tt.wantReason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.wantReason)
			}
		})
	}
}
