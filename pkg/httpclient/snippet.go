package httpclient

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxSnippetLen = 512

// Snippet condenses an error response body for log lines and error messages.
// HTML pages (proxy and gateway errors) are reduced to their title and
// heading text; anything else is trimmed and truncated.
func Snippet(body []byte, contentType string) string {
	if looksLikeHTML(body, contentType) {
		if text := htmlSummary(body); text != "" {
			return truncate(text)
		}
	}
	s := strings.TrimSpace(string(body))
	if s == "" {
		return "<empty>"
	}
	return truncate(s)
}

func looksLikeHTML(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := bytes.ToLower(bytes.TrimSpace(body))
	if len(head) > 64 {
		head = head[:64]
	}
	return bytes.HasPrefix(head, []byte("<!doctype html")) || bytes.HasPrefix(head, []byte("<html"))
}

func htmlSummary(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	heading := strings.TrimSpace(doc.Find("h1").First().Text())

	switch {
	case title != "" && heading != "" && !strings.EqualFold(title, heading):
		return title + ": " + heading
	case title != "":
		return title
	case heading != "":
		return heading
	default:
		return strings.Join(strings.Fields(doc.Find("body").Text()), " ")
	}
}

func truncate(s string) string {
	if len(s) > maxSnippetLen {
		return s[:maxSnippetLen] + "..."
	}
	return s
}
