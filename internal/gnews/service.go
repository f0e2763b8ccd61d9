package gnews

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	searchPath    = "/search"
	headlinesPath = "/top-headlines"
)

// Getter performs one idempotent upstream read. *Client implements it.
type Getter interface {
	Get(ctx context.Context, path string, params url.Values) (json.RawMessage, error)
}

// Service exposes the search and top-headlines operations.
type Service struct {
	upstream Getter
	metadata MetadataFunc
	logger   *slog.Logger
}

// NewService wires the operations to an upstream getter and to the source of
// per-call metadata the API key is read from.
func NewService(upstream Getter, metadata MetadataFunc, logger *slog.Logger) *Service {
	if metadata == nil {
		metadata = func(context.Context) http.Header { return nil }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{upstream: upstream, metadata: metadata, logger: logger}
}

// Search runs a keyword search.
func (s *Service) Search(ctx context.Context, p SearchParams) (json.RawMessage, error) {
	key, err := ResolveKey(s.metadata(ctx))
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	params := p.Values(key)
	s.logger.Debug("calling /search",
		"q", p.Query,
		"max", params.Get("max"),
		"page", params.Get("page"),
		"lang", params.Get("lang"),
		"country", params.Get("country"),
	)
	return s.upstream.Get(ctx, searchPath, params)
}

// TopHeadlines fetches the current headlines of a category.
func (s *Service) TopHeadlines(ctx context.Context, p HeadlinesParams) (json.RawMessage, error) {
	key, err := ResolveKey(s.metadata(ctx))
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	params := p.Values(key)
	s.logger.Debug("calling /top-headlines",
		"category", params.Get("category"),
		"max", params.Get("max"),
		"page", params.Get("page"),
		"lang", params.Get("lang"),
		"country", params.Get("country"),
	)
	return s.upstream.Get(ctx, headlinesPath, params)
}
