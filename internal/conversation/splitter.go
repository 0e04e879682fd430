package conversation

import (
	"strings"
	"unicode/utf8"
)

// sentenceDelims are the characters at which streamed LLM text is cut into
// sentences for TTS hand-off. Both ASCII and CJK punctuation count.
const sentenceDelims = ",。!?;、,.!?;"

// Splitter accumulates streamed text fragments and yields complete sentences
// as soon as a delimiter appears. It is not safe for concurrent use; each
// turn owns its own Splitter.
type Splitter struct {
	buf string
}

// Append adds one streamed fragment to the rolling buffer.
func (s *Splitter) Append(text string) {
	s.buf += text
}

// Next returns the first complete sentence — everything up to and including
// the first delimiter — and reports whether one was found. The remainder
// stays buffered.
func (s *Splitter) Next() (string, bool) {
	idx := strings.IndexAny(s.buf, sentenceDelims)
	if idx < 0 {
		return "", false
	}
	_, width := utf8.DecodeRuneInString(s.buf[idx:])
	sentence := s.buf[:idx+width]
	s.buf = s.buf[idx+width:]
	return sentence, true
}

// Remaining returns whatever is buffered after the last delimiter and clears
// the buffer. Called once when the LLM stream ends.
func (s *Splitter) Remaining() string {
	rest := s.buf
	s.buf = ""
	return rest
}

// Clear drops any buffered text.
func (s *Splitter) Clear() {
	s.buf = ""
}
