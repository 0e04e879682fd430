// Package media defines the transient value types exchanged between the
// voxway pipeline stages: raw audio payloads with a declared sample format
// and incremental text fragments with a final marker.
//
// Values in this package carry no identity and are safe to copy. The audio
// byte slices they wrap are not copied; callers hand ownership to the
// consumer when passing an AudioData downstream.
package media

// Format identifies the encoding of an audio payload.
type Format string

const (
	// FormatPCM is raw little-endian 16-bit PCM. This is the assumed format
	// for client audio frames: 16 kHz, mono, 16-bit unless negotiated.
	FormatPCM Format = "pcm"

	// FormatMP3 is MPEG-1 Audio Layer III, typically produced by TTS backends.
	FormatMP3 Format = "mp3"

	// FormatWAV is RIFF WAVE with a PCM payload.
	FormatWAV Format = "wav"
)

// Default PCM stream parameters. BytesPerSecond is the product of the three
// and is what the audio pipeline uses to convert buffered bytes to seconds.
const (
	DefaultSampleRate  = 16000
	DefaultChannels    = 1
	DefaultSampleWidth = 2 // bytes per sample (16-bit)

	BytesPerSecond = DefaultSampleRate * DefaultChannels * DefaultSampleWidth
)

// AudioData is one chunk of audio moving through the pipeline: client input
// on its way to ASR, or synthesised output on its way to the client.
type AudioData struct {
	// Data is the encoded audio payload. May be empty on a final sentinel.
	Data []byte

	// Format declares how Data is encoded.
	Format Format

	// SampleRate is the sample rate in Hz. Zero means DefaultSampleRate.
	SampleRate int

	// Final marks the last chunk of a synthesis stream.
	Final bool
}

// Duration returns the playback length of d in seconds, assuming raw PCM at
// the default stream parameters. Non-PCM payloads return 0.
func (d AudioData) Duration() float64 {
	if d.Format != FormatPCM {
		return 0
	}
	return float64(len(d.Data)) / BytesPerSecond
}

// TextData is one fragment of text moving through the pipeline: a transcript,
// an LLM chunk, or a sentence handed to TTS.
type TextData struct {
	// Text is the fragment content. May be empty on a final sentinel.
	Text string

	// Final marks the end of the stream this fragment belongs to: the last
	// transcript of an utterance, or the trailing sentinel of an LLM stream.
	Final bool
}
