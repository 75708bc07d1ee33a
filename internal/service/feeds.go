// Package service owns the lifecycle of generated feeds: it converts source
// URLs and keeps the resulting documents in the record store.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"rssgen/internal/model"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

var ErrInvalidInput = errors.New("invalid input")

type FeedStore interface {
	Create(ctx context.Context, record model.FeedRecord) (model.FeedRecord, error)
	FindByID(ctx context.Context, id string) (model.FeedRecord, error)
	UpdateByKey(ctx context.Context, key int64, renderedXML string, updatedAt time.Time) (model.FeedRecord, error)
	DeleteByID(ctx context.Context, id string) (model.FeedRecord, error)
}

type Converter interface {
	Convert(ctx context.Context, url string) string
}

// Announcer is told about every feed that was created or refreshed.
type Announcer interface {
	Announce(ctx context.Context, record model.FeedRecord) error
}

type Feeds struct {
	store     FeedStore
	converter Converter
	announcer Announcer
	logger    *slog.Logger

	newID func() string
	now   func() time.Time
}

func New(store FeedStore, converter Converter, logger *slog.Logger) *Feeds {
	return &Feeds{
		store:     store,
		converter: converter,
		logger:    logger,
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// WithAnnouncer registers a for create and refresh notifications.
func (f *Feeds) WithAnnouncer(a Announcer) *Feeds {
	f.announcer = a
	return f
}

func (f *Feeds) Create(ctx context.Context, sourceURL string) (model.FeedRecord, error) {
	if err := ValidateURL(sourceURL); err != nil {
		return model.FeedRecord{}, err
	}

	id := f.newID()
	xml := f.converter.Convert(ctx, sourceURL)
	now := f.timestamp()

	record, err := f.store.Create(ctx, model.FeedRecord{
		ID:          id,
		OriginalURL: sourceURL,
		RenderedXML: xml,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return model.FeedRecord{}, fmt.Errorf("save feed %s: %w", id, err)
	}

	f.logger.Info("feed created", slog.String("feed_id", record.ID), slog.String("url", sourceURL))
	f.announce(ctx, record)

	return record, nil
}

func (f *Feeds) Refresh(ctx context.Context, id string) (model.FeedRecord, error) {
	if err := ValidateID(id); err != nil {
		return model.FeedRecord{}, err
	}

	existing, err := f.store.FindByID(ctx, id)
	if err != nil {
		return model.FeedRecord{}, fmt.Errorf("find feed %s: %w", id, err)
	}

	xml := f.converter.Convert(ctx, existing.OriginalURL)

	record, err := f.store.UpdateByKey(ctx, existing.Key, xml, f.timestamp())
	if err != nil {
		return model.FeedRecord{}, fmt.Errorf("update feed %s: %w", id, err)
	}

	f.logger.Info("feed refreshed", slog.String("feed_id", record.ID), slog.String("url", record.OriginalURL))
	f.announce(ctx, record)

	return record, nil
}

func (f *Feeds) Delete(ctx context.Context, id string) (model.FeedRecord, error) {
	if err := ValidateID(id); err != nil {
		return model.FeedRecord{}, err
	}

	record, err := f.store.DeleteByID(ctx, id)
	if err != nil {
		return model.FeedRecord{}, fmt.Errorf("delete feed %s: %w", id, err)
	}

	f.logger.Info("feed deleted", slog.String("feed_id", record.ID))

	return record, nil
}

// Read returns the stored record; its RenderedXML is served verbatim.
func (f *Feeds) Read(ctx context.Context, id string) (model.FeedRecord, error) {
	if err := ValidateID(id); err != nil {
		return model.FeedRecord{}, err
	}

	record, err := f.store.FindByID(ctx, id)
	if err != nil {
		return model.FeedRecord{}, fmt.Errorf("read feed %s: %w", id, err)
	}

	return record, nil
}

func (f *Feeds) announce(ctx context.Context, record model.FeedRecord) {
	if f.announcer == nil {
		return
	}

	if err := f.announcer.Announce(ctx, record); err != nil {
		f.logger.Error("announce failed", slog.String("feed_id", record.ID), slog.String("err", err.Error()))
	}
}

// timestamp is truncated to what every supported database can store.
func (f *Feeds) timestamp() time.Time {
	return f.now().UTC().Truncate(time.Microsecond)
}

// ValidateURL accepts absolute http and https URLs only.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}

	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return fmt.Errorf("%w: invalid url: %v", ErrInvalidInput, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: unsupported scheme: %s", ErrInvalidInput, u.Scheme)
	}

	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}

	return nil
}

// ValidateID rejects identifiers that could not have been minted here.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: feed id is required", ErrInvalidInput)
	}

	if len(id) > 64 || strings.ContainsAny(id, "/?#% \t\n") {
		return fmt.Errorf("%w: malformed feed id", ErrInvalidInput)
	}

	return nil
}
