// Package conversation implements the per-session dialogue orchestrator: it
// owns the turn context and barge-in state, receives utterance transcripts
// from the audio pipeline (or synthesized ones from text input), drives a
// streaming LLM call, splits the stream into sentences, and fans each
// sentence out to TTS — delivering all server-bound events through the send
// callback supplied by the protocol server.
package conversation

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/voxway/voxway/internal/audioin"
	"github.com/voxway/voxway/internal/modules"
	"github.com/voxway/voxway/internal/observe"
	"github.com/voxway/voxway/pkg/capability/tts"
	"github.com/voxway/voxway/pkg/media"
	"github.com/voxway/voxway/pkg/protocol"
)

// llmFailureMessage is the generic text surfaced to the client when the LLM
// fails after its retry budget. Backend details stay in the server log.
const llmFailureMessage = "the assistant is temporarily unavailable, please try again"

// SendFunc delivers one event to the session's client. Implementations must
// be safe to call from any goroutine; delivery failures are logged and
// swallowed by the protocol server and never propagate back here.
type SendFunc func(protocol.StreamEvent)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithConcatOnInterrupt controls the barge-in recovery rule: when true (the
// default), an interrupting utterance is concatenated onto the previous one
// before it reaches the LLM.
func WithConcatOnInterrupt(on bool) Option {
	return func(o *Orchestrator) { o.concatOnInterrupt = on }
}

// WithMetrics attaches metric instruments. Absent in most unit tests.
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// Orchestrator is one session's conversation driver. All exported methods
// are safe for concurrent use; inputs arrive from the connection's receive
// loop while the audio pipeline's monitor loop delivers transcripts.
type Orchestrator struct {
	sessionID string
	registry  *modules.Registry
	send      SendFunc
	metrics   *observe.Metrics

	pipeline  *audioin.Pipeline
	interrupt *interrupt

	concatOnInterrupt bool

	mu           sync.Mutex
	lastUserText string

	ctx    context.Context
	cancel context.CancelFunc

	// wg tracks the turn goroutine and its sentence tasks so tests can
	// synchronise on turn completion.
	wg sync.WaitGroup

	stopOnce sync.Once
}

// New creates an Orchestrator for one session. The audio pipeline is created
// here and wired back through OnInputResult.
func New(sessionID string, registry *modules.Registry, send SendFunc, opts ...Option) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		sessionID:         sessionID,
		registry:          registry,
		send:              send,
		interrupt:         newInterrupt(),
		concatOnInterrupt: true,
		ctx:               ctx,
		cancel:            cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.pipeline = audioin.New(sessionID, registry, o.metrics, o.OnInputResult)
	return o
}

// Start launches the audio pipeline's monitor loop.
func (o *Orchestrator) Start() {
	o.pipeline.Start()
}

// Stop cancels the session context, stops the audio pipeline, and returns
// promptly: in-flight LLM/TTS streams observe the cancellation and drain on
// their own. Stop is idempotent.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() {
		o.cancel()
		o.pipeline.Stop()
		slog.Info("orchestrator stopped", "session_id", o.sessionID)
	})
}

// Wait blocks until all turn goroutines have finished. Primarily useful in
// tests after cancelling or completing a turn.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// HandleAudio processes one client audio chunk. Audio arriving while the
// interrupt flag is clear means the user is speaking over the assistant (or
// opening a new utterance): the flag's rising edge is the sole signal that
// cuts off the previous turn's in-flight streams.
func (o *Orchestrator) HandleAudio(chunk []byte) {
	if o.interrupt.Trip() {
		slog.Debug("barge-in detected", "session_id", o.sessionID)
		if o.metrics != nil {
			o.metrics.Interruptions.Add(o.ctx, 1)
		}
	}
	o.pipeline.ProcessChunk(chunk)
}

// HandleSpeechEnd forwards the client's end-of-speech signal to the audio
// pipeline. Idempotent: duplicate signals coalesce.
func (o *Orchestrator) HandleSpeechEnd() {
	o.pipeline.SignalSpeechEnd()
}

// HandleTextInput treats typed text like a completed utterance: whitespace
// is normalized and an equivalent final transcript result is synthesized,
// unifying the two input modes. Text input does not trip the interrupt flag.
func (o *Orchestrator) HandleTextInput(text string) {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		// No LLM call and no outbound events for empty input.
		return
	}
	o.OnInputResult(media.TextData{Text: text, Final: true})
}

// OnInputResult is the single entry point for utterance completion, called
// by the audio pipeline's monitor loop and by HandleTextInput. Only final
// results act; an empty final clears the interruption record and returns so
// the next utterance starts from a clean turn state.
func (o *Orchestrator) OnInputResult(result media.TextData) {
	if !result.Final {
		return
	}
	if result.Text == "" {
		o.interrupt.ClearWas()
		return
	}

	effective := result.Text
	o.mu.Lock()
	if o.concatOnInterrupt && o.interrupt.Was() && o.lastUserText != "" {
		// Barge-in recovery: the interrupting utterance continues the
		// previous one.
		effective = o.lastUserText + " " + result.Text
		slog.Info("concatenating interrupted utterance",
			"session_id", o.sessionID, "text", effective)
	}
	o.lastUserText = effective
	o.mu.Unlock()

	o.interrupt.ClearWas()
	o.interrupt.Rearm()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.runTurn(effective)
	}()
}

// runTurn executes one turn: LLM stream → sentence splitter → per-sentence
// TTS tasks, or plain text forwarding when no TTS is registered.
func (o *Orchestrator) runTurn(userText string) {
	ctx, span := observe.StartSpan(o.ctx, "conversation.turn")
	defer span.End()
	start := time.Now()

	// Capture this turn's interrupt channel before any streaming begins;
	// Rearm for the next turn replaces it.
	interrupted := o.interrupt.Done()

	turnCtx, cancelTurn := context.WithCancel(ctx)
	defer cancelTurn()
	go func() {
		select {
		case <-interrupted:
			// Cut the upstream LLM/TTS requests loose; consumers below
			// stop at their next chunk boundary anyway.
			cancelTurn()
		case <-turnCtx.Done():
		}
	}()

	llmProv, err := o.registry.LLM()
	if err != nil {
		slog.Error("no LLM registered, dropping turn", "session_id", o.sessionID, "err", err)
		o.sendError(llmFailureMessage)
		return
	}
	ttsProv, ttsErr := o.registry.TTS()

	input := media.TextData{Text: userText, Final: true}
	stream, err := llmProv.ChatStream(turnCtx, input, o.sessionID)
	if o.metrics != nil {
		defer func() { o.metrics.ObserveLLM(ctx, time.Since(start), err) }()
	}
	if err != nil {
		slog.Error("LLM stream failed", "session_id", o.sessionID, "err", err)
		o.sendError(llmFailureMessage)
		return
	}

	if ttsErr == nil {
		o.streamWithTTS(turnCtx, interrupted, stream, ttsProv)
	} else {
		o.streamTextOnly(interrupted, stream)
	}
	if o.metrics != nil {
		o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}
}

// streamWithTTS consumes the LLM stream, cutting it into sentences and
// spawning one background send task per sentence. Audio of consecutive
// sentences may interleave on the wire; each sentence's text event strictly
// precedes its own audio.
func (o *Orchestrator) streamWithTTS(ctx context.Context, interrupted <-chan struct{}, stream <-chan media.TextData, ttsProv tts.Provider) {
	var splitter Splitter
	cut := false

	for chunk := range stream {
		if o.isInterrupted(interrupted) {
			cut = true
			go drainText(stream)
			break
		}
		if chunk.Text == "" {
			continue
		}
		splitter.Append(chunk.Text)
		for {
			sentence, ok := splitter.Next()
			if !ok {
				break
			}
			o.spawnSentence(ctx, interrupted, ttsProv, sentence, false)
		}
	}
	if cut {
		return
	}

	if remaining := splitter.Remaining(); remaining != "" {
		o.spawnSentence(ctx, interrupted, ttsProv, remaining, true)
		return
	}
	// Nothing buffered: still close the turn with an empty final text event.
	o.sendText("", true)
}

// streamTextOnly forwards LLM chunks directly as non-final text events and
// closes the turn with an empty final.
func (o *Orchestrator) streamTextOnly(interrupted <-chan struct{}, stream <-chan media.TextData) {
	for chunk := range stream {
		if o.isInterrupted(interrupted) {
			go drainText(stream)
			return
		}
		if chunk.Text == "" {
			continue
		}
		o.sendText(chunk.Text, false)
	}
	if o.isInterrupted(interrupted) {
		return
	}
	o.sendText("", true)
}

// spawnSentence runs sendSentence in a tracked background task so synthesis
// of sentence N does not delay splitting sentence N+1.
func (o *Orchestrator) spawnSentence(ctx context.Context, interrupted <-chan struct{}, ttsProv tts.Provider, sentence string, final bool) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.sendSentence(ctx, interrupted, ttsProv, sentence, final)
	}()
}

// sendSentence delivers one sentence: its text event first, then its
// synthesized audio chunks. The interrupt flag is honoured at every chunk
// boundary; once it is set nothing further belonging to this turn goes out.
// A TTS failure drops only this sentence's audio — its text already went
// out and the turn continues.
func (o *Orchestrator) sendSentence(ctx context.Context, interrupted <-chan struct{}, ttsProv tts.Provider, sentence string, final bool) {
	if o.isInterrupted(interrupted) {
		return
	}
	o.sendText(sentence, final)

	start := time.Now()
	audioCh, err := ttsProv.SynthesizeStream(ctx, media.TextData{Text: sentence, Final: final})
	if err != nil {
		slog.Warn("TTS failed, dropping sentence audio",
			"session_id", o.sessionID, "err", err)
		if o.metrics != nil {
			o.metrics.ObserveTTS(ctx, time.Since(start), err)
		}
		return
	}
	for chunk := range audioCh {
		if o.isInterrupted(interrupted) {
			go drainAudio(audioCh)
			return
		}
		if len(chunk.Data) == 0 && !chunk.Final {
			continue
		}
		ev, err := protocol.NewAudioResponse(chunk.Data, string(chunk.Format), chunk.Final)
		if err != nil {
			slog.Warn("encode audio response", "session_id", o.sessionID, "err", err)
			continue
		}
		o.send(ev)
	}
	if o.metrics != nil {
		o.metrics.ObserveTTS(ctx, time.Since(start), nil)
	}
}

// isInterrupted polls the captured interrupt channel.
func (o *Orchestrator) isInterrupted(interrupted <-chan struct{}) bool {
	select {
	case <-interrupted:
		return true
	default:
		return false
	}
}

func (o *Orchestrator) sendText(text string, final bool) {
	ev, err := protocol.NewTextResponse(text, final)
	if err != nil {
		slog.Warn("encode text response", "session_id", o.sessionID, "err", err)
		return
	}
	o.send(ev)
}

func (o *Orchestrator) sendError(msg string) {
	ev, err := protocol.NewError(msg)
	if err != nil {
		return
	}
	o.send(ev)
}

// drainText discards the rest of an abandoned LLM stream so the provider's
// goroutine is not left blocked.
func drainText(ch <-chan media.TextData) {
	for range ch {
	}
}

// drainAudio discards the rest of an abandoned TTS stream.
func drainAudio(ch <-chan media.AudioData) {
	for range ch {
	}
}
