// Package converter turns any URL into an RSS 2.0 document. Conversion
// degrades through three tiers and always yields renderable XML.
package converter

import (
	"context"
	"rssgen/internal/extract"
	"rssgen/internal/model"
	"rssgen/internal/render"
	"time"

	"golang.org/x/exp/slog"
)

const (
	htmlFeedTitle       = "RSS Feed from HTML"
	htmlFeedDescription = "Generated from HTML content"
)

type FeedSource interface {
	Fetch(ctx context.Context, url string) (model.FeedDocument, error)
}

type PageSource interface {
	Fetch(ctx context.Context, url string) (string, error)
}

type EntryExtractor interface {
	Entries(page *extract.Page, baseURL string) []model.FeedEntry
}

type tier int

const (
	tierFeed tier = iota
	tierHTML
	tierStub
)

func (t tier) String() string {
	switch t {
	case tierFeed:
		return "feed"
	case tierHTML:
		return "html"
	default:
		return "stub"
	}
}

// Result is a converted document and the tier that produced it.
type Result struct {
	XML  string
	Tier string
}

type Converter struct {
	feeds     FeedSource
	pages     PageSource
	extractor EntryExtractor
	now       func() time.Time
	logger    *slog.Logger
}

func New(feeds FeedSource, pages PageSource, extractor EntryExtractor, logger *slog.Logger) *Converter {
	return &Converter{
		feeds:     feeds,
		pages:     pages,
		extractor: extractor,
		now:       time.Now,
		logger:    logger,
	}
}

// Convert never fails; see ConvertDetailed.
func (c *Converter) Convert(ctx context.Context, url string) string {
	return c.ConvertDetailed(ctx, url).XML
}

// ConvertDetailed tries each tier once, in order, and stops at the first that
// produces a document. The stub tier cannot fail.
func (c *Converter) ConvertDetailed(ctx context.Context, url string) Result {
	for t := tierFeed; ; t++ {
		var (
			xml string
			err error
		)

		switch t {
		case tierFeed:
			xml, err = c.fromFeed(ctx, url)
		case tierHTML:
			xml, err = c.fromHTML(ctx, url)
		default:
			return Result{XML: render.Stub(url, c.now()), Tier: t.String()}
		}

		if err == nil {
			c.logger.Debug("feed generated", slog.String("url", url), slog.String("tier", t.String()))
			return Result{XML: xml, Tier: t.String()}
		}

		c.logger.Warn("conversion tier failed",
			slog.String("url", url),
			slog.String("tier", t.String()),
			slog.String("err", err.Error()),
		)
	}
}

func (c *Converter) fromFeed(ctx context.Context, url string) (string, error) {
	doc, err := c.feeds.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	return render.Render(doc), nil
}

func (c *Converter) fromHTML(ctx context.Context, url string) (string, error) {
	body, err := c.pages.Fetch(ctx, url)
	if err != nil {
		return "", err
	}

	page, err := extract.Parse(body)
	if err != nil {
		return "", err
	}

	title := page.Title()
	if title == "" {
		title = htmlFeedTitle
	}

	description := page.MetaDescription()
	if description == "" {
		description = htmlFeedDescription
	}

	return render.Render(model.FeedDocument{
		Title:       title,
		Link:        url,
		Description: description,
		Entries:     c.extractor.Entries(page, url),
	}), nil
}
