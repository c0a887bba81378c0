package textnorm

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// Segmenter splits prose into sentences with the Punkt English model.
type Segmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

func NewSegmenter() (*Segmenter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}
	return &Segmenter{tokenizer: tokenizer}, nil
}

// Sentences returns the trimmed, non-empty sentences of text.
func (s *Segmenter) Sentences(text string) []string {
	var out []string
	for _, sent := range s.tokenizer.Tokenize(text) {
		t := strings.TrimSpace(sent.Text)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// Lead returns the first n sentences of text joined by a single space.
func (s *Segmenter) Lead(text string, n int) string {
	sents := s.Sentences(text)
	if n > 0 && len(sents) > n {
		sents = sents[:n]
	}
	return strings.Join(sents, " ")
}
