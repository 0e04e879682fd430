package audioin

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/internal/observe"
	"github.com/voxway/voxway/internal/resilience"
	"github.com/voxway/voxway/pkg/media"
)

// CheckInterval is how often the monitor loop reassesses the buffer between
// explicit end signals.
const CheckInterval = 200 * time.Millisecond

// specialTokens matches engine-specific tag markers such as "<|en|>" that
// some ASR backends embed in their output.
var specialTokens = regexp.MustCompile(`<\|.*?\|>`)

// ResultFunc receives each final (or, internally accumulated, intermediate)
// utterance transcript. It is called from the monitor goroutine.
type ResultFunc func(media.TextData)

// Pipeline is one session's audio input pipeline. Chunks enter through
// ProcessChunk, transcripts leave through the result callback.
//
// The monitor loop and the receive loop touch shared state (buffer, segment
// list) under the buffer's lock and the pipeline's own mutex; an atomic
// in-flight guard keeps ASR calls for the same session from overlapping.
type Pipeline struct {
	sessionID string
	registry  *modules.Registry
	result    ResultFunc
	metrics   *observe.Metrics

	buf       *Buffer
	breaker   *resilience.Breaker
	speechEnd chan struct{}

	mu       sync.Mutex
	segments []string

	processing atomic.Bool
	vadWarned  atomic.Bool

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Pipeline for one session. result must be non-nil; metrics may
// be nil in tests.
func New(sessionID string, registry *modules.Registry, metrics *observe.Metrics, result ResultFunc) *Pipeline {
	return &Pipeline{
		sessionID: sessionID,
		registry:  registry,
		result:    result,
		metrics:   metrics,
		buf:       NewBuffer(),
		breaker:   resilience.NewBreaker(resilience.BreakerConfig{Name: "asr"}),
		speechEnd: make(chan struct{}, 1),
	}
}

// Start launches the monitor loop. It is a no-op when already started.
func (p *Pipeline) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.monitorLoop(ctx)
}

// Stop cancels the monitor loop, waits for it to exit, and releases the
// buffer. Stop is idempotent.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.buf.Drain()
}

// ProcessChunk runs VAD on one client audio chunk and buffers it when it
// contains speech. Chunks of size zero are a no-op. Without a registered VAD
// the chunk is dropped and a warning is logged once per session.
func (p *Pipeline) ProcessChunk(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	detector, err := p.registry.VAD()
	if err != nil {
		if p.vadWarned.CompareAndSwap(false, true) {
			slog.Warn("no VAD registered, dropping audio", "session_id", p.sessionID)
		}
		return
	}
	speech, err := detector.Detect(chunk)
	if err != nil {
		slog.Warn("VAD error, dropping chunk", "session_id", p.sessionID, "err", err)
		return
	}
	if speech {
		p.buf.Append(chunk)
	}
}

// SignalSpeechEnd delivers the client's end-of-speech signal to the monitor
// loop. Duplicate signals coalesce, so back-to-back CLIENT_SPEECH_END frames
// behave the same as one.
func (p *Pipeline) SignalSpeechEnd() {
	select {
	case p.speechEnd <- struct{}{}:
	default:
	}
}

// monitorLoop wakes on a tick or a speech-end signal and cuts segments when
// the detector says to.
func (p *Pipeline) monitorLoop(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(CheckInterval)
	defer ticker.Stop()

	for {
		clientEnded := false
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-p.speechEnd:
			clientEnded = true
		}
		p.checkAndProcess(ctx, clientEnded)
	}
}

// checkAndProcess runs the segment detector and, when it fires, drains the
// buffer and recognises the segment. The in-flight guard keeps one ASR call
// per session; when set, this wake simply returns and the next tick retries.
func (p *Pipeline) checkAndProcess(ctx context.Context, clientEnded bool) {
	if !p.processing.CompareAndSwap(false, true) {
		return
	}
	defer p.processing.Store(false)

	duration, lastSpeech := p.buf.snapshot()
	d := Decide(duration, lastSpeech, clientEnded, time.Now())
	if !d.Process {
		return
	}

	segment := p.buf.Drain()
	if len(segment) == 0 && !d.Final {
		return
	}
	slog.Debug("cutting segment",
		"session_id", p.sessionID, "reason", d.Reason,
		"bytes", len(segment), "final", d.Final)
	p.recognize(ctx, segment, d.Final)
}

// recognize drives ASR over one drained segment, cleans the transcript, and
// emits the joined utterance text when the segment is final.
func (p *Pipeline) recognize(ctx context.Context, segment []byte, final bool) {
	text, err := p.callASR(ctx, segment)
	if err != nil {
		if final {
			// Still advance the turn so the orchestrator resets its state.
			slog.Warn("ASR failed on final segment", "session_id", p.sessionID, "err", err)
			p.emitFinal()
			return
		}
		slog.Warn("ASR failed on intermediate segment", "session_id", p.sessionID, "err", err)
		return
	}

	text = strings.TrimSpace(specialTokens.ReplaceAllString(text, ""))

	p.mu.Lock()
	if text != "" {
		p.segments = append(p.segments, text)
	}
	p.mu.Unlock()

	if final {
		p.emitFinal()
	}
}

// emitFinal joins the accumulated transcript segments, emits one final
// result (even when empty), and clears the segment list.
func (p *Pipeline) emitFinal() {
	p.mu.Lock()
	joined := strings.Join(p.segments, " ")
	p.segments = nil
	p.mu.Unlock()
	p.result(media.TextData{Text: joined, Final: true})
}

// callASR invokes the registered recognition backend behind the breaker.
func (p *Pipeline) callASR(ctx context.Context, segment []byte) (string, error) {
	if len(segment) == 0 {
		return "", nil
	}
	provider, err := p.registry.ASR()
	if err != nil {
		return "", err
	}
	audio := media.AudioData{
		Data:       segment,
		Format:     media.FormatPCM,
		SampleRate: media.DefaultSampleRate,
	}
	var text string
	start := time.Now()
	err = p.breaker.Do(func() error {
		var rerr error
		text, rerr = provider.Recognize(ctx, audio)
		return rerr
	})
	if p.metrics != nil {
		p.metrics.ObserveASR(ctx, time.Since(start), err)
	}
	return text, err
}
