package render

import (
	"fmt"

	"github.com/SlyMarbo/rss"
	"github.com/mmcdole/gofeed"
)

// Summary describes a rendered document as a feed reader would see it.
type Summary struct {
	Title string
	// Items counts every <item> element.
	Items int
	// LinkedItems counts items a reader keeps: those with a link, one per
	// distinct link.
	LinkedItems int
}

// Inspect reads back a rendered document.
func Inspect(xml string) (Summary, error) {
	feed, err := rss.Parse([]byte(xml))
	if err != nil {
		return Summary{}, fmt.Errorf("inspect rendered feed: %w", err)
	}

	all, err := gofeed.NewParser().ParseString(xml)
	if err != nil {
		return Summary{}, fmt.Errorf("count rendered items: %w", err)
	}

	return Summary{
		Title:       feed.Title,
		Items:       len(all.Items),
		LinkedItems: len(feed.Items),
	}, nil
}
