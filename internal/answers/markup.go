package answers

import (
	"strings"

	"golang.org/x/net/html"
)

// PlainText strips markup, decodes entities and collapses whitespace, so
// "<p>Step&nbsp;one</p>" and "Step one" compare equal.
func PlainText(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.Join(strings.Fields(s), " ")
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			if isBlockTag(string(name)) {
				b.WriteByte(' ')
			}
		}
	}
}

func isBlockTag(name string) bool {
	switch name {
	case "p", "div", "br", "li", "ul", "ol", "tr", "td", "th", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

// SequenceEqual reports whether a and b hold the same items in the same
// order once markup is ignored.
func SequenceEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] && PlainText(a[i]) != PlainText(b[i]) {
			return false
		}
	}
	return true
}
