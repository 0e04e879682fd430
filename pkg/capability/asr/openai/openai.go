// Package openai provides a speech recognition adapter backed by the OpenAI
// audio transcription API (Whisper family).
package openai

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/voxway/voxway/internal/resilience"
	"github.com/voxway/voxway/pkg/capability/asr"
	"github.com/voxway/voxway/pkg/media"
)

const retryBase = 300 * time.Millisecond

// config holds optional configuration for the provider.
type config struct {
	baseURL  string
	model    string
	language string
	timeout  time.Duration
	retries  int
}

// Option is a functional option for Provider.
type Option func(*config)

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithModel sets the transcription model. Defaults to whisper-1.
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithLanguage hints the spoken language as an ISO-639-1 code, improving
// accuracy and latency on short segments.
func WithLanguage(lang string) Option {
	return func(c *config) { c.language = lang }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// WithRetries overrides the per-call retry budget.
func WithRetries(n int) Option {
	return func(c *config) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// Provider implements asr.Provider using the OpenAI transcription API.
type Provider struct {
	client   oai.Client
	model    string
	language string
	retries  int
}

// New constructs an OpenAI ASR Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{
		model:   string(oai.AudioModelWhisper1),
		retries: resilience.MaxRetries,
	}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{
			Timeout: cfg.timeout,
		}))
	}

	return &Provider{
		client:   oai.NewClient(reqOpts...),
		model:    cfg.model,
		language: cfg.language,
		retries:  cfg.retries,
	}, nil
}

// Setup implements capability.Lifecycle.
func (p *Provider) Setup(context.Context) error { return nil }

// Close implements capability.Lifecycle.
func (p *Provider) Close() error { return nil }

// Recognize implements asr.Provider. Raw PCM input is wrapped in a WAV
// container before upload; WAV input passes through untouched.
func (p *Provider) Recognize(ctx context.Context, audio media.AudioData) (string, error) {
	if len(audio.Data) == 0 {
		return "", nil
	}

	payload := audio.Data
	if audio.Format == media.FormatPCM || audio.Format == "" {
		rate := audio.SampleRate
		if rate == 0 {
			rate = media.DefaultSampleRate
		}
		payload = wrapWAV(audio.Data, rate)
	}

	var text string
	err := resilience.Retry(ctx, "openai.transcribe", p.retries, resilience.LinearBackoff(retryBase), func(ctx context.Context) error {
		params := oai.AudioTranscriptionNewParams{
			File:  oai.File(bytes.NewReader(payload), "audio.wav", "audio/wav"),
			Model: oai.AudioModel(p.model),
		}
		if p.language != "" {
			params.Language = oai.String(p.language)
		}
		resp, err := p.client.Audio.Transcriptions.New(ctx, params)
		if err != nil {
			return fmt.Errorf("openai: transcribe: %w", err)
		}
		text = strings.TrimSpace(resp.Text)
		return nil
	})
	if err != nil {
		return "", err
	}
	return text, nil
}

// wrapWAV prefixes little-endian 16-bit mono PCM with a canonical 44-byte
// RIFF/WAVE header.
func wrapWAV(pcm []byte, sampleRate int) []byte {
	const (
		channels      = 1
		bitsPerSample = 16
	)
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := bytes.NewBuffer(make([]byte, 0, 44+len(pcm)))
	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(channels))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

var _ asr.Provider = (*Provider)(nil)
