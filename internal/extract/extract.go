// Package extract turns an HTML page into a short list of feed entries by
// looking for article-like blocks.
package extract

import (
	"fmt"
	"net/url"
	"rssgen/internal/model"
	"rssgen/internal/render"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-shiori/dom"
	"github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

const (
	descriptionLimit = 200
	truncationMarker = "..."

	defaultEntryTitle    = "No Title"
	defaultFallbackTitle = "RSS Feed"
)

var (
	candidateSelector = cascadia.MustCompile("article, main, .content")
	headingSelector   = cascadia.MustCompile("h1, h2, h3")
	linkSelector      = cascadia.MustCompile("a[href]")
	paragraphSelector = cascadia.MustCompile("p")
	titleSelector     = cascadia.MustCompile("title")
	metaDescSelector  = cascadia.MustCompile(`meta[name="description"]`)
)

// Page is a parsed HTML document together with its source text.
type Page struct {
	doc *html.Node
	raw string
}

func Parse(src string) (*Page, error) {
	doc, err := html.Parse(strings.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	return &Page{doc: doc, raw: src}, nil
}

// Title is the trimmed text of the first <title> element, or "".
func (p *Page) Title() string {
	node := cascadia.Query(p.doc, titleSelector)
	if node == nil {
		return ""
	}

	return strings.TrimSpace(dom.TextContent(node))
}

// MetaDescription is the content of <meta name="description">, or "".
func (p *Page) MetaDescription() string {
	node := cascadia.Query(p.doc, metaDescSelector)
	if node == nil {
		return ""
	}

	return dom.GetAttribute(node, "content")
}

type Extractor struct {
	// Now is read once per produced entry.
	Now func() time.Time
	// ReadabilityFallback lets the synthesized entry of a page with no
	// description and no paragraphs borrow the readability excerpt.
	ReadabilityFallback bool
}

func New(readabilityFallback bool) *Extractor {
	return &Extractor{
		Now:                 time.Now,
		ReadabilityFallback: readabilityFallback,
	}
}

// FromHTML parses src and returns its entries. A page that cannot be parsed
// yields nothing.
func (e *Extractor) FromHTML(src, baseURL string) []model.FeedEntry {
	page, err := Parse(src)
	if err != nil {
		return nil
	}

	return e.Entries(page, baseURL)
}

// Entries returns at most model.MaxEntries entries in document order. When no
// block qualifies a single entry pointing at baseURL is synthesized.
func (e *Extractor) Entries(page *Page, baseURL string) []model.FeedEntry {
	base, baseErr := url.Parse(baseURL)

	entries := make([]model.FeedEntry, 0, model.MaxEntries)

	for _, block := range cascadia.QueryAll(page.doc, candidateSelector) {
		if len(entries) >= model.MaxEntries {
			break
		}

		title := firstText(block, headingSelector)
		if title == "" {
			title = page.Title()
		}
		if title == "" {
			title = defaultEntryTitle
		}

		description := truncate(firstText(block, paragraphSelector))
		pubDate := render.HTTPDate(e.now())

		anchor := cascadia.Query(block, linkSelector)
		if anchor == nil || baseErr != nil {
			continue
		}

		link, ok := resolve(base, dom.GetAttribute(anchor, "href"))
		if !ok {
			continue
		}

		entries = append(entries, model.FeedEntry{
			Title:       title,
			Link:        link,
			Description: description,
			PubDate:     pubDate,
		})
	}

	if len(entries) > 0 {
		return entries
	}

	return []model.FeedEntry{e.fallback(page, baseURL)}
}

func (e *Extractor) fallback(page *Page, baseURL string) model.FeedEntry {
	title := page.Title()
	if title == "" {
		title = defaultFallbackTitle
	}

	description := page.MetaDescription()
	if description == "" {
		paragraph := cascadia.Query(page.doc, paragraphSelector)
		if paragraph == nil && e.ReadabilityFallback {
			description = e.readabilityExcerpt(page, baseURL)
		}
		if description == "" {
			description = truncate(firstText(page.doc, paragraphSelector))
		}
	}

	return model.FeedEntry{
		Title:       title,
		Link:        baseURL,
		Description: description,
		PubDate:     render.HTTPDate(e.now()),
	}
}

func (e *Extractor) readabilityExcerpt(page *Page, baseURL string) string {
	pageURL, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}

	article, err := readability.FromReader(strings.NewReader(page.raw), pageURL)
	if err != nil {
		return ""
	}

	excerpt := strings.TrimSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = strings.TrimSpace(article.TextContent)
	}
	if excerpt == "" {
		return ""
	}

	return truncate(excerpt)
}

func (e *Extractor) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}

	return e.Now()
}

func firstText(root *html.Node, sel cascadia.Selector) string {
	node := cascadia.Query(root, sel)
	if node == nil {
		return ""
	}

	return strings.TrimSpace(dom.TextContent(node))
}

// truncate keeps the first descriptionLimit characters and always appends
// the marker, even to short or empty text.
func truncate(text string) string {
	runes := []rune(text)
	if len(runes) > descriptionLimit {
		runes = runes[:descriptionLimit]
	}

	return string(runes) + truncationMarker
}

func resolve(base *url.URL, href string) (string, bool) {
	if href == "" {
		return "", false
	}

	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}

	return base.ResolveReference(ref).String(), true
}
