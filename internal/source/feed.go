package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"rssgen/internal/model"
	"strings"

	"github.com/go-shiori/dom"
	"github.com/mmcdole/gofeed"
	"github.com/samber/lo"
	"golang.org/x/net/html"
)

const (
	defaultFeedTitle       = "RSS Feed"
	defaultFeedDescription = "Generated RSS Feed"
	defaultItemTitle       = "No title"
)

var ErrFeedParse = errors.New("not a parsable feed")

// FeedSource reads RSS, Atom and JSON feeds.
type FeedSource struct {
	client    *http.Client
	userAgent string
}

func NewFeedSource(client *http.Client, userAgent string) *FeedSource {
	return &FeedSource{
		client:    client,
		userAgent: userAgent,
	}
}

func (s *FeedSource) Fetch(ctx context.Context, url string) (model.FeedDocument, error) {
	feed, err := s.loadFeed(ctx, url)

	if err != nil {
		return model.FeedDocument{}, fmt.Errorf("%w: %s: %v", ErrFeedParse, url, err)
	}

	items := feed.Items
	if len(items) > model.MaxEntries {
		items = items[:model.MaxEntries]
	}

	return model.FeedDocument{
		Title:       lo.Ternary(feed.Title != "", feed.Title, defaultFeedTitle),
		Link:        lo.Ternary(feed.Link != "", feed.Link, url),
		Description: lo.Ternary(feed.Description != "", feed.Description, defaultFeedDescription),
		Entries: lo.Map(items, func(item *gofeed.Item, _ int) model.FeedEntry {
			content := itemContent(feed.FeedType, item)
			published, _ := lo.Coalesce(item.Published, item.Updated)

			return model.FeedEntry{
				Title:       lo.Ternary(item.Title != "", item.Title, defaultItemTitle),
				Link:        item.Link,
				Description: snippet(content),
				PubDate:     published,
			}
		}),
	}, nil
}

func (s *FeedSource) loadFeed(ctx context.Context, url string) (*gofeed.Feed, error) {
	parser := gofeed.NewParser()
	parser.Client = s.client
	if s.userAgent != "" {
		parser.UserAgent = s.userAgent
	}

	return parser.ParseURLWithContext(url, ctx)
}

// itemContent picks the text a snippet is cut from: the description of RSS
// items and the full content of Atom entries, each falling back to the other.
func itemContent(feedType string, item *gofeed.Item) string {
	if feedType == "atom" {
		content, _ := lo.Coalesce(item.Content, item.Description)
		return content
	}

	content, _ := lo.Coalesce(item.Description, item.Content)
	return content
}

// snippet reduces markup to its trimmed plain text.
func snippet(content string) string {
	if content == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return strings.TrimSpace(content)
	}

	return strings.TrimSpace(dom.TextContent(doc))
}
