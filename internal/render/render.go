package render

import (
	"net/http"
	"rssgen/internal/model"
	"strings"
	"time"
)

const (
	stubDescription     = "Failed to generate RSS Feed from the provided URL."
	stubItemTitle       = "Error"
	stubItemDescription = "Could not parse content from the page."
)

var (
	replacer = strings.NewReplacer(
		"<",
		"&lt;",
		">",
		"&gt;",
		"&",
		"&amp;",
		"'",
		"&apos;",
		"\"",
		"&quot;",
	)
)

// Escape makes text safe to embed as XML character data. It must be applied
// exactly once per field.
func Escape(text string) string {
	if text == "" {
		return ""
	}

	return replacer.Replace(text)
}

// Render serializes doc as an RSS 2.0 document. Every field is escaped here,
// callers pass raw text.
func Render(doc model.FeedDocument) string {
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>`)
	writeElement(&b, "title", doc.Title)
	writeElement(&b, "link", doc.Link)
	writeElement(&b, "description", doc.Description)

	for _, entry := range doc.Entries {
		b.WriteString("<item>")
		writeElement(&b, "title", entry.Title)
		writeElement(&b, "link", entry.Link)
		writeElement(&b, "description", entry.Description)
		writeElement(&b, "pubDate", entry.PubDate)
		b.WriteString("</item>")
	}

	b.WriteString("</channel></rss>")

	return b.String()
}

// Stub renders the document served when nothing could be extracted from url.
func Stub(url string, now time.Time) string {
	return Render(model.FeedDocument{
		Title:       "Could not generate RSS for " + url,
		Link:        url,
		Description: stubDescription,
		Entries: []model.FeedEntry{
			{
				Title:       stubItemTitle,
				Link:        url,
				Description: stubItemDescription,
				PubDate:     HTTPDate(now),
			},
		},
	})
}

// HTTPDate formats t the way HTTP headers and RSS readers expect,
// e.g. "Mon, 02 Jan 2006 15:04:05 GMT".
func HTTPDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

func writeElement(b *strings.Builder, name, text string) {
	b.WriteString("<")
	b.WriteString(name)
	b.WriteString(">")
	b.WriteString(Escape(text))
	b.WriteString("</")
	b.WriteString(name)
	b.WriteString(">")
}
