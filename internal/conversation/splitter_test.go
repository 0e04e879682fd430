package conversation

import (
	"testing"
)

func TestSplitter_Next(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		fragments []string
		want      []string
		remaining string
	}{
		{
			name:      "single sentence with period",
			fragments: []string{"Hello world."},
			want:      []string{"Hello world."},
		},
		{
			name:      "delimiter splits mid fragment",
			fragments: []string{"Hello, how are you"},
			want:      []string{"Hello,"},
			remaining: " how are you",
		},
		{
			name:      "sentence assembled across fragments",
			fragments: []string{"Hel", "lo wor", "ld. And"},
			want:      []string{"Hello world."},
			remaining: " And",
		},
		{
			name:      "multiple sentences in one fragment",
			fragments: []string{"One. Two! Three?"},
			want:      []string{"One.", " Two!", " Three?"},
		},
		{
			name:      "cjk delimiters",
			fragments: []string{"你好。很高兴认识你!"},
			want:      []string{"你好。", "很高兴认识你!"},
		},
		{
			name:      "no delimiter buffers everything",
			fragments: []string{"no punctuation here"},
			want:      nil,
			remaining: "no punctuation here",
		},
		{
			name:      "semicolon and comma variants",
			fragments: []string{"a;b、c"},
			want:      []string{"a;", "b、"},
			remaining: "c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var s Splitter
			var got []string
			for _, f := range tt.fragments {
				s.Append(f)
				for {
					sentence, ok := s.Next()
					if !ok {
						break
					}
					got = append(got, sentence)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sentences %q, want %d %q", len(got), got, len(tt.want), tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("sentence %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if rest := s.Remaining(); rest != tt.remaining {
				t.Errorf("Remaining() = %q, want %q", rest, tt.remaining)
			}
		})
	}
}

func TestSplitter_RemainingClearsBuffer(t *testing.T) {
	t.Parallel()
	var s Splitter
	s.Append("leftover")
	if got := s.Remaining(); got != "leftover" {
		t.Fatalf("Remaining() = %q, want %q", got, "leftover")
	}
	if got := s.Remaining(); got != "" {
		t.Errorf("second Remaining() = %q, want empty", got)
	}
}

func TestSplitter_Clear(t *testing.T) {
	t.Parallel()
	var s Splitter
	s.Append("buffered text")
	s.Clear()
	if _, ok := s.Next(); ok {
		t.Error("Next() found a sentence after Clear")
	}
	if got := s.Remaining(); got != "" {
		t.Errorf("Remaining() = %q after Clear, want empty", got)
	}
}
