package audioin

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/pkg/capability"
	asrmock "github.com/voxway/voxway/pkg/capability/asr/mock"
	vadmock "github.com/voxway/voxway/pkg/capability/vad/mock"
	"github.com/voxway/voxway/pkg/media"
)

// resultSink collects pipeline results under a lock.
type resultSink struct {
	mu      sync.Mutex
	results []media.TextData
}

func (s *resultSink) collect(r media.TextData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
}

func (s *resultSink) all() []media.TextData {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]media.TextData, len(s.results))
	copy(out, s.results)
	return out
}

func (s *resultSink) finals() []media.TextData {
	var out []media.TextData
	for _, r := range s.all() {
		if r.Final {
			out = append(out, r)
		}
	}
	return out
}

func newPipelineRegistry(t *testing.T, det *vadmock.Detector, rec *asrmock.Provider) *modules.Registry {
	t.Helper()
	reg := modules.NewRegistry()
	if det != nil {
		if err := reg.Register(capability.RoleVAD, "mock", det); err != nil {
			t.Fatalf("register vad: %v", err)
		}
	}
	if rec != nil {
		if err := reg.Register(capability.RoleASR, "mock", rec); err != nil {
			t.Fatalf("register asr: %v", err)
		}
	}
	return reg
}

func waitForResults(t *testing.T, sink *resultSink, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(sink.finals()) >= n {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d final results, have %v", n, sink.all())
}

func TestPipeline_SpeechEndEmitsFinalTranscript(t *testing.T) {
	t.Parallel()
	det := &vadmock.Detector{Speech: true}
	rec := &asrmock.Provider{Result: "hello world"}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, det, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	p.ProcessChunk([]byte{1, 2, 3, 4})
	p.SignalSpeechEnd()

	waitForResults(t, sink, 1)
	p.Stop()

	finals := sink.finals()
	if len(finals) != 1 {
		t.Fatalf("got %d final results, want 1", len(finals))
	}
	if finals[0].Text != "hello world" {
		t.Errorf("transcript = %q, want %q", finals[0].Text, "hello world")
	}
	if len(rec.RecognizeCalls) != 1 {
		t.Errorf("expected 1 ASR call, got %d", len(rec.RecognizeCalls))
	}
}

func TestPipeline_SpecialTokensStripped(t *testing.T) {
	t.Parallel()
	det := &vadmock.Detector{Speech: true}
	rec := &asrmock.Provider{Result: "<|en|> hello there <|endoftext|>"}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, det, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	p.ProcessChunk([]byte{1, 2})
	p.SignalSpeechEnd()

	waitForResults(t, sink, 1)
	if got := sink.finals()[0].Text; got != "hello there" {
		t.Errorf("transcript = %q, want %q", got, "hello there")
	}
}

func TestPipeline_SilenceNeverReachesASR(t *testing.T) {
	t.Parallel()
	det := &vadmock.Detector{Speech: false}
	rec := &asrmock.Provider{Result: "should not appear"}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, det, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	p.ProcessChunk([]byte{1, 2, 3, 4})
	p.SignalSpeechEnd()

	waitForResults(t, sink, 1)
	p.Stop()

	if got := sink.finals()[0].Text; got != "" {
		t.Errorf("transcript = %q, want empty for a silent utterance", got)
	}
	if len(rec.RecognizeCalls) != 0 {
		t.Errorf("ASR called %d times for silence, want 0", len(rec.RecognizeCalls))
	}
}

func TestPipeline_ASRFailureStillAdvancesTurn(t *testing.T) {
	t.Parallel()
	det := &vadmock.Detector{Speech: true}
	rec := &asrmock.Provider{RecognizeErr: errors.New("backend down")}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, det, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	p.ProcessChunk([]byte{1, 2})
	p.SignalSpeechEnd()

	// A failed utterance still closes with an empty final so the
	// orchestrator resets its state.
	waitForResults(t, sink, 1)
	if got := sink.finals()[0].Text; got != "" {
		t.Errorf("transcript = %q, want empty after ASR failure", got)
	}
}

func TestPipeline_LongUtteranceSegments(t *testing.T) {
	t.Parallel()
	det := &vadmock.Detector{Speech: true}
	rec := &asrmock.Provider{Results: []string{"part one", "part two"}}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, det, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	// More than MaxBufferDuration of audio forces an intermediate cut on the
	// next monitor tick.
	big := make([]byte, int(MaxBufferDuration.Seconds()*media.BytesPerSecond)+media.BytesPerSecond)
	p.ProcessChunk(big)

	// Give the monitor loop time to cut and recognise the first segment.
	time.Sleep(3 * CheckInterval)

	p.ProcessChunk([]byte{1, 2, 3, 4})
	p.SignalSpeechEnd()

	waitForResults(t, sink, 1)
	p.Stop()

	finals := sink.finals()
	if len(finals) != 1 {
		t.Fatalf("got %d final results, want 1", len(finals))
	}
	if got := finals[0].Text; got != "part one part two" {
		t.Errorf("joined transcript = %q, want %q", got, "part one part two")
	}
	if len(rec.RecognizeCalls) != 2 {
		t.Errorf("expected 2 ASR calls, got %d", len(rec.RecognizeCalls))
	}
}

func TestPipeline_NoVADDropsAudio(t *testing.T) {
	t.Parallel()
	rec := &asrmock.Provider{Result: "x"}
	sink := &resultSink{}

	p := New("sess-1", newPipelineRegistry(t, nil, rec), nil, sink.collect)
	p.Start()
	defer p.Stop()

	p.ProcessChunk([]byte{1, 2})
	p.SignalSpeechEnd()

	waitForResults(t, sink, 1)
	p.Stop()

	if got := sink.finals()[0].Text; got != "" {
		t.Errorf("transcript = %q, want empty when no VAD is registered", got)
	}
	if len(rec.RecognizeCalls) != 0 {
		t.Errorf("ASR called %d times without VAD, want 0", len(rec.RecognizeCalls))
	}
}

func TestPipeline_StartStopIdempotent(t *testing.T) {
	t.Parallel()
	p := New("sess-1", modules.NewRegistry(), nil, func(media.TextData) {})
	p.Start()
	p.Start()
	p.Stop()
	p.Stop()
}
