// Package server exposes the feed lifecycle over HTTP and serves the stored
// documents.
package server

import (
	"context"
	"fmt"
	"net/http"
	"rssgen/internal/model"
	"time"

	"golang.org/x/exp/slog"
)

type FeedService interface {
	Create(ctx context.Context, sourceURL string) (model.FeedRecord, error)
	Refresh(ctx context.Context, id string) (model.FeedRecord, error)
	Delete(ctx context.Context, id string) (model.FeedRecord, error)
	Read(ctx context.Context, id string) (model.FeedRecord, error)
}

type Server struct {
	apis   map[string]http.Handler
	logger *slog.Logger
}

// NewServer routes /api to the lifecycle endpoints and /rss to the documents.
// An empty publicURL makes feed links relative to the request origin.
func NewServer(feeds FeedService, publicURL string, cacheMaxAge time.Duration, logger *slog.Logger) *Server {
	return &Server{
		apis: map[string]http.Handler{
			"api": NewFeedAPI(feeds, publicURL, logger),
			"rss": NewDocumentHandler(feeds, cacheMaxAge, logger),
		},
		logger: logger,
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	originalPath := r.URL.Path
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

	head, tail := ShiftPath(r.URL.Path)
	switch api, ok := s.apis[head]; {
	case head == "":
		if r.Method != http.MethodGet {
			Error(rec, http.StatusMethodNotAllowed, "method not allowed", fmt.Errorf("%s / is not supported", r.Method))
			break
		}
		Index(rec)
	case !ok:
		Error(rec, http.StatusNotFound, "not found", fmt.Errorf("%s is not a valid path", r.URL.Path))
	default:
		r.URL.Path = tail
		api.ServeHTTP(rec, r)
	}

	s.logger.Info("request served",
		slog.String("method", r.Method),
		slog.String("path", originalPath),
		slog.Int("status", rec.status),
	)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
