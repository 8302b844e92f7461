package catalog

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// SameHTML reports whether two product descriptions render the same. The
// storefront re-serializes body_html on save, so whitespace between tags,
// attribute quoting, entity spelling and comments are not differences.
func SameHTML(a, b string) bool {
	if a == b {
		return true
	}
	return normalizeHTML(a) == normalizeHTML(b)
}

// normalizeHTML re-serializes a fragment token by token with runs of
// whitespace collapsed and whitespace-only text dropped
func normalizeHTML(s string) string {
	var sb strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if !errors.Is(z.Err(), io.EOF) {
				// Unparseable input only matches itself.
				return s
			}
			return sb.String()
		}

		tok := z.Token()
		switch tt {
		case html.TextToken:
			if text := strings.Join(strings.Fields(tok.Data), " "); text != "" {
				sb.WriteString(html.EscapeString(text))
			}
		case html.StartTagToken, html.SelfClosingTagToken:
			tok.Type = html.StartTagToken
			sb.WriteString(tok.String())
		case html.EndTagToken:
			sb.WriteString(tok.String())
		}
	}
}
