package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"rssgen/internal/model"
	"rssgen/internal/service"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"golang.org/x/exp/slog"
)

type FeedAPI struct {
	feeds     FeedService
	publicURL string
	logger    *slog.Logger
}

func NewFeedAPI(feeds FeedService, publicURL string, logger *slog.Logger) *FeedAPI {
	return &FeedAPI{
		feeds:     feeds,
		publicURL: publicURL,
		logger:    logger,
	}
}

func (a *FeedAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	action, _ := ShiftPath(r.URL.Path)

	var handle http.HandlerFunc
	switch action {
	case "generate-rss":
		handle = a.Generate
	case "update-feed":
		handle = a.Update
	case "delete-feed":
		handle = a.Delete
	default:
		Error(w, http.StatusNotFound, "not found", fmt.Errorf("api action %q does not exist", action))
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		Error(w, http.StatusMethodNotAllowed, "method not allowed", fmt.Errorf("%s is not supported for %s", r.Method, action))
		return
	}

	handle(w, r)
}

func (a *FeedAPI) Generate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL *string `json:"url"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.URL == nil {
		Error(w, http.StatusBadRequest, "url is required", service.ErrInvalidInput)
		return
	}

	record, err := a.feeds.Create(r.Context(), *req.URL)
	if err != nil {
		a.returnErr(r.Context(), w, "could not generate feed", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		FeedID    string    `json:"feedId"`
		RSSURL    string    `json:"rssUrl"`
		UpdatedAt time.Time `json:"updatedAt"`
	}{
		FeedID:    record.ID,
		RSSURL:    model.FeedURL(a.baseURL(r), record.ID),
		UpdatedAt: record.UpdatedAt,
	})
}

func (a *FeedAPI) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := a.feedID(w, r)
	if !ok {
		return
	}

	record, err := a.feeds.Refresh(r.Context(), id)
	if err != nil {
		a.returnErr(r.Context(), w, "could not update feed", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success     bool   `json:"success"`
		FeedID      string `json:"feedId"`
		OriginalURL string `json:"originalUrl"`
	}{
		Success:     true,
		FeedID:      record.ID,
		OriginalURL: record.OriginalURL,
	})
}

func (a *FeedAPI) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := a.feedID(w, r)
	if !ok {
		return
	}

	record, err := a.feeds.Delete(r.Context(), id)
	if err != nil {
		a.returnErr(r.Context(), w, "could not delete feed", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		FeedID  string `json:"feedId"`
	}{
		Success: true,
		FeedID:  record.ID,
	})
}

func (a *FeedAPI) feedID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		FeedID *string `json:"feedId"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body", err)
		return "", false
	}
	if req.FeedID == nil {
		Error(w, http.StatusBadRequest, "feedId is required", service.ErrInvalidInput)
		return "", false
	}

	return *req.FeedID, true
}

// baseURL prefers the configured public address over the request origin.
func (a *FeedAPI) baseURL(r *http.Request) string {
	if a.publicURL != "" {
		return a.publicURL
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host
}

func (a *FeedAPI) returnErr(_ context.Context, w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		Error(w, http.StatusBadRequest, message, err)
	case errors.Is(err, model.ErrRecordNotFound):
		Error(w, http.StatusNotFound, message, err)
	default:
		a.logger.Error(message, slog.String("err", err.Error()))
		Error(w, http.StatusInternalServerError, message, err)
	}
}

// decodeBody rejects bodies that are not a JSON object; a field of the wrong
// type surfaces as a decode error.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", service.ErrInvalidInput, err)
	}

	return nil
}

// DocumentHandler serves stored documents at /rss/{id} and /rss/{id}.xml.
type DocumentHandler struct {
	feeds       FeedService
	cacheMaxAge time.Duration
	logger      *slog.Logger
}

func NewDocumentHandler(feeds FeedService, cacheMaxAge time.Duration, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		feeds:       feeds,
		cacheMaxAge: cacheMaxAge,
		logger:      logger,
	}
}

func (d *DocumentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name, rest := ShiftPath(r.URL.Path)
	if name == "" || rest != "/" {
		notFound(w)
		return
	}

	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		Error(w, http.StatusMethodNotAllowed, "method not allowed", fmt.Errorf("%s is not supported for feeds", r.Method))
		return
	}

	id := strings.TrimSuffix(name, ".xml")

	record, err := d.feeds.Read(r.Context(), id)
	switch {
	case errors.Is(err, model.ErrRecordNotFound), errors.Is(err, service.ErrInvalidInput):
		notFound(w)
		return
	case err != nil:
		d.logger.Error("could not read feed", slog.String("feed_id", id), slog.String("err", err.Error()))
		Error(w, http.StatusInternalServerError, "could not read feed", err)
		return
	}

	modified := record.UpdatedAt.UTC().Truncate(time.Second)

	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", int(d.cacheMaxAge.Seconds())))
	w.Header().Set("Last-Modified", modified.Format(http.TimeFormat))

	if notModified(r, modified) {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write([]byte(record.RenderedXML))
}

func notModified(r *http.Request, modified time.Time) bool {
	since := r.Header.Get("If-Modified-Since")
	if since == "" {
		return false
	}

	t, err := dateparse.ParseIn(since, time.UTC)
	if err != nil {
		return false
	}

	return !modified.After(t)
}

func notFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("Not Found"))
}
