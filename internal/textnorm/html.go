package textnorm

import (
	"strings"

	"golang.org/x/net/html"
)

var skippedElements = map[string]bool{
	"script": true,
	"style":  true,
}

// StripHTML removes markup and decodes entities. Review dumps use <br /> as
// the paragraph separator, so every tag boundary becomes a space.
func StripHTML(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}

	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or malformed input; either way keep what was decoded.
			return strings.TrimSpace(b.String())
		case html.StartTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if skippedElements[string(name)] && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
