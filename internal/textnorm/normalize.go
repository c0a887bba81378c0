// Package textnorm turns raw review text into the token streams the feature
// extractors consume.
package textnorm

import (
	"strings"
	"unicode"
)

// Options controls which normalization steps run. The zero value only
// tokenizes on whitespace; use DefaultOptions for the full pipeline.
type Options struct {
	Lowercase        bool `mapstructure:"lowercase" json:"lowercase" yaml:"lowercase"`
	StripHTML        bool `mapstructure:"strip_html" json:"strip_html" yaml:"strip_html"`
	StripPunctuation bool `mapstructure:"strip_punctuation" json:"strip_punctuation" yaml:"strip_punctuation"`
	RemoveStopWords  bool `mapstructure:"remove_stop_words" json:"remove_stop_words" yaml:"remove_stop_words"`
	MinTokenLength   int  `mapstructure:"min_token_length" json:"min_token_length" yaml:"min_token_length"`
	// ExtraStopWords are removed in addition to the built-in English list.
	ExtraStopWords []string `mapstructure:"extra_stop_words" json:"extra_stop_words,omitempty" yaml:"extra_stop_words,omitempty"`
}

func DefaultOptions() Options {
	return Options{
		Lowercase:        true,
		StripHTML:        true,
		StripPunctuation: true,
		RemoveStopWords:  true,
		MinTokenLength:   2,
	}
}

// Normalizer is safe for concurrent use once built.
type Normalizer struct {
	opts Options
	stop map[string]struct{}
}

func New(opts Options) *Normalizer {
	n := &Normalizer{opts: opts}
	if opts.RemoveStopWords {
		n.stop = make(map[string]struct{}, len(englishStopWords)+len(opts.ExtraStopWords))
		for _, w := range englishStopWords {
			n.stop[w] = struct{}{}
		}
		for _, w := range opts.ExtraStopWords {
			n.stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
		}
	}
	return n
}

func (n *Normalizer) Options() Options { return n.opts }

// Clean applies the character-level steps (markup, case, punctuation) and
// collapses whitespace. Stop words are left in place.
func (n *Normalizer) Clean(text string) string {
	if n.opts.StripHTML {
		text = StripHTML(text)
	}
	if n.opts.Lowercase {
		text = strings.ToLower(text)
	}
	if n.opts.StripPunctuation {
		text = stripPunctuation(text)
	}
	return strings.Join(strings.Fields(text), " ")
}

// Tokens returns the normalized token stream for text.
func (n *Normalizer) Tokens(text string) []string {
	fields := strings.Fields(n.Clean(text))
	out := fields[:0]
	for _, f := range fields {
		if len([]rune(f)) < n.opts.MinTokenLength {
			continue
		}
		if n.IsStopWord(f) {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (n *Normalizer) IsStopWord(token string) bool {
	if n.stop == nil {
		return false
	}
	_, ok := n.stop[token]
	return ok
}

// stripPunctuation drops apostrophes so contractions stay one token and
// turns every other non-alphanumeric rune into a space.
func stripPunctuation(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '\'':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return b.String()
}
