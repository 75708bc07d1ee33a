package model

import (
	"errors"
	"strings"
	"time"
)

// MaxEntries bounds the number of items in one generated document.
const MaxEntries = 5

var (
	ErrRecordNotFound      = errors.New("feed record not found")
	ErrDuplicateIdentifier = errors.New("feed identifier already exists")
)

type FeedEntry struct {
	Title       string
	Link        string
	Description string
	PubDate     string // as sourced on the feed path, HTTP-date on the html path
}

type FeedDocument struct {
	Title       string
	Link        string
	Description string
	Entries     []FeedEntry
}

type FeedRecord struct {
	Key         int64 // storage key, never exposed
	ID          string
	OriginalURL string
	RenderedXML string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// FeedURL is where the document of feed id is served below base.
func FeedURL(base, id string) string {
	return strings.TrimRight(base, "/") + "/rss/" + id + ".xml"
}
