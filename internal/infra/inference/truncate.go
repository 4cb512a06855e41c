package inference

import (
	"log/slog"
	"strings"
	"unicode"

	"github.com/pkoukk/tiktoken-go"
)

// Truncator caps prompts at a token budget. It returns the text to send and
// its token count.
type Truncator interface {
	Truncate(text string) (string, int)
}

// Encoder is the subset of a BPE tokenizer used for truncation.
type Encoder interface {
	Encode(text string) []int
	Decode(tokens []int) string
}

type tiktokenEncoder struct {
	enc *tiktoken.Tiktoken
}

func (e tiktokenEncoder) Encode(text string) []int {
	return e.enc.Encode(text, nil, nil)
}

func (e tiktokenEncoder) Decode(tokens []int) string {
	return e.enc.Decode(tokens)
}

// NewEncoder resolves a tiktoken encoding for the model, then for the named
// encoding.
func NewEncoder(model, encoding string) (Encoder, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding(encoding)
		if err != nil {
			return nil, err
		}
	}
	return tiktokenEncoder{enc: enc}, nil
}

// NewTruncator builds the truncator for a run. When BPE ranks cannot be
// loaded it counts whitespace-separated words instead.
func NewTruncator(model, encoding string, maxTokens int, enabled bool, logger *slog.Logger) Truncator {
	limit := maxTokens
	if !enabled {
		limit = 0
	}
	enc, err := NewEncoder(model, encoding)
	if err != nil {
		logger.Warn("tokenizer unavailable, counting words instead", "model", model, "encoding", encoding, "error", err)
		return WordTruncator{MaxTokens: limit}
	}
	return TokenTruncator{Encoder: enc, MaxTokens: limit}
}

// TokenTruncator keeps the leading MaxTokens BPE tokens. A zero MaxTokens
// only counts.
type TokenTruncator struct {
	Encoder   Encoder
	MaxTokens int
}

func (t TokenTruncator) Truncate(text string) (string, int) {
	tokens := t.Encoder.Encode(text)
	if t.MaxTokens <= 0 || len(tokens) <= t.MaxTokens {
		return text, len(tokens)
	}
	return t.Encoder.Decode(tokens[:t.MaxTokens]), t.MaxTokens
}

// WordTruncator keeps the leading MaxTokens words and the original spacing
// between them.
type WordTruncator struct {
	MaxTokens int
}

func (t WordTruncator) Truncate(text string) (string, int) {
	words := 0
	inWord := false
	for i, r := range text {
		if unicode.IsSpace(r) {
			inWord = false
			continue
		}
		if inWord {
			continue
		}
		inWord = true
		words++
		if t.MaxTokens > 0 && words > t.MaxTokens {
			return strings.TrimRightFunc(text[:i], unicode.IsSpace), t.MaxTokens
		}
	}
	return text, words
}
