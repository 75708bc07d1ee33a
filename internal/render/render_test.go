package render

import (
	"encoding/xml"
	"errors"
	"io"
	"rssgen/internal/model"
	"strings"
	"testing"
	"time"
)

func TestEscape(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"plain", "plain"},
		{"a < b", "a &lt; b"},
		{"a > b", "a &gt; b"},
		{"Tom & Jerry", "Tom &amp; Jerry"},
		{`it's "quoted"`, "it&apos;s &quot;quoted&quot;"},
		{"한국어 뉴스 & 날씨", "한국어 뉴스 &amp; 날씨"},
		{"&amp;", "&amp;amp;"},
	}
	for _, tc := range cases {
		if got := Escape(tc.in); got != tc.want {
			t.Fatalf("Escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEscapeLeavesNoRawSpecials(t *testing.T) {
	out := Escape(`<tag attr='x' other="y">&</tag>`)
	for _, c := range []string{"<", ">", "'", `"`} {
		if strings.Contains(out, c) {
			t.Fatalf("raw %q left in %q", c, out)
		}
	}
	if strings.Contains(strings.NewReplacer("&lt;", "", "&gt;", "", "&amp;", "", "&apos;", "", "&quot;", "").Replace(out), "&") {
		t.Fatalf("raw & left in %q", out)
	}
}

func TestRenderSpecExample(t *testing.T) {
	out := Render(model.FeedDocument{
		Title:       "Feed",
		Link:        "http://x/",
		Description: "Desc",
		Entries:     []model.FeedEntry{{Title: "A", Link: "http://x/a"}},
	})

	want := `<item><title>A</title><link>http://x/a</link><description></description><pubDate></pubDate></item>`
	if !strings.Contains(out, want) {
		t.Fatalf("expected %s in %s", want, out)
	}
	if !strings.HasPrefix(out, `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel><title>Feed</title><link>http://x/</link><description>Desc</description>`) {
		t.Fatalf("unexpected prefix: %s", out)
	}
	if !strings.HasSuffix(out, "</channel></rss>") {
		t.Fatalf("unexpected suffix: %s", out)
	}
}

func TestRenderEscapesEveryField(t *testing.T) {
	out := Render(model.FeedDocument{
		Title:       "a<b",
		Link:        "http://x/?a=1&b=2",
		Description: `"d"`,
		Entries: []model.FeedEntry{{
			Title:       "t&t",
			Link:        "http://x/?q=<>",
			Description: "it's",
			PubDate:     "<now>",
		}},
	})

	for _, want := range []string{
		"<title>a&lt;b</title>",
		"<link>http://x/?a=1&amp;b=2</link>",
		"<description>&quot;d&quot;</description>",
		"<title>t&amp;t</title>",
		"<link>http://x/?q=&lt;&gt;</link>",
		"<description>it&apos;s</description>",
		"<pubDate>&lt;now&gt;</pubDate>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
	assertWellFormed(t, out)
}

func TestStub(t *testing.T) {
	now := time.Date(2024, 3, 5, 10, 11, 12, 0, time.UTC)
	out := Stub("http://bad.example/?a=1&b=2", now)

	assertWellFormed(t, out)
	if strings.Count(out, "<item>") != 1 {
		t.Fatalf("expected exactly one item: %s", out)
	}
	for _, want := range []string{
		"<title>Could not generate RSS for http://bad.example/?a=1&amp;b=2</title>",
		"<description>Failed to generate RSS Feed from the provided URL.</description>",
		"<item><title>Error</title><link>http://bad.example/?a=1&amp;b=2</link><description>Could not parse content from the page.</description><pubDate>Tue, 05 Mar 2024 10:11:12 GMT</pubDate></item>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestInspect(t *testing.T) {
	out := Render(model.FeedDocument{
		Title: "Inspected",
		Link:  "http://x/",
		Entries: []model.FeedEntry{
			{Title: "one", Link: "http://x/1", PubDate: "Tue, 05 Mar 2024 10:11:12 GMT"},
			{Title: "two", Link: "http://x/2", PubDate: "Tue, 05 Mar 2024 10:11:12 GMT"},
		},
	})

	summary, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if summary.Title != "Inspected" || summary.Items != 2 || summary.LinkedItems != 2 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
}

func TestInspectCountsEveryItem(t *testing.T) {
	date := "Tue, 05 Mar 2024 10:11:12 GMT"
	out := Render(model.FeedDocument{
		Title: "Nested",
		Link:  "http://x/",
		Entries: []model.FeedEntry{
			{Title: "outer", Link: "http://x/a", PubDate: date},
			{Title: "inner", Link: "http://x/a", PubDate: date},
			{Title: "unlinked", PubDate: date},
		},
	})

	summary, err := Inspect(out)
	if err != nil {
		t.Fatalf("Inspect error: %v", err)
	}
	if summary.Items != 3 {
		t.Fatalf("expected all 3 items counted, got %+v", summary)
	}
	if summary.LinkedItems != 1 {
		t.Fatalf("expected 1 distinct linked item, got %+v", summary)
	}
}

func TestInspectRejectsGarbage(t *testing.T) {
	if _, err := Inspect("<rss><channel>"); err == nil {
		t.Fatalf("expected inspect error")
	}
}

func assertWellFormed(t *testing.T, doc string) {
	t.Helper()

	dec := xml.NewDecoder(strings.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.Fatalf("malformed xml: %v\n%s", err, doc)
		}
	}
}
