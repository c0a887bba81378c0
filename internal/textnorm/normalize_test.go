package textnorm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens(t *testing.T) {
	n := New(DefaultOptions())

	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"positive example", "great movie loved it", []string{"great", "movie", "loved"}},
		{"negative example", "terrible waste of time", []string{"terrible", "waste", "time"}},
		{"html and case", "A <b>GREAT</b> film.<br /><br />Loved it!", []string{"great", "film", "loved"}},
		{"contractions", "I don't think it's good", []string{"dont", "think", "good"}},
		{"entities", "Tom &amp; Jerry", []string{"tom", "jerry"}},
		{"negation kept", "not good, never again", []string{"not", "good", "never"}},
		{"empty", "   ", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Tokens(tt.in))
		})
	}
}

func TestTokensMinLength(t *testing.T) {
	opts := DefaultOptions()
	opts.RemoveStopWords = false
	opts.MinTokenLength = 4
	n := New(opts)
	assert.Equal(t, []string{"great", "movie", "loved"}, n.Tokens("great movie loved it"))
}

func TestExtraStopWords(t *testing.T) {
	opts := DefaultOptions()
	opts.ExtraStopWords = []string{" Movie "}
	n := New(opts)
	assert.Equal(t, []string{"great", "loved"}, n.Tokens("great movie loved it"))
	assert.True(t, n.IsStopWord("movie"))
}

func TestZeroOptionsOnlySplits(t *testing.T) {
	n := New(Options{})
	assert.Equal(t, []string{"Great", "Movie!"}, n.Tokens("  Great   Movie! "))
	assert.False(t, n.IsStopWord("the"))
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "plain", StripHTML("plain"))
	assert.Equal(t, "one  two", StripHTML("one<br/><br />two"))
	assert.Equal(t, "kept", StripHTML("<script>var x = 1;</script>kept"))
	assert.Equal(t, "a < b", StripHTML("a &lt; b"))
}

func TestSegmenter(t *testing.T) {
	s, err := NewSegmenter()
	require.NoError(t, err)

	got := s.Sentences("The plot was thin. The acting, however, was superb.")
	assert.Equal(t, []string{"The plot was thin.", "The acting, however, was superb."}, got)
	assert.Empty(t, s.Sentences("   "))
	assert.Equal(t, "The plot was thin.", s.Lead("The plot was thin. The acting, however, was superb.", 1))
}
