// Package fetch retrieves book records from the OpenLibrary search page
// and turns the result list into storable records.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/archivelab/bookhaven/internal/auth"
	"github.com/archivelab/bookhaven/internal/records"
	"github.com/archivelab/bookhaven/internal/txlog"
)

const (
	defaultBaseURL = "https://openlibrary.org"
	defaultTimeout = 10 * time.Second
	// The search page serves a reduced markup to clients without a
	// browser user agent.
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
)

var (
	ErrMissingTxLog = errors.New("fetch: transaction log writer is required")
	ErrEmptyQuery   = errors.New("fetch: search query is required")
	// ErrUpstream wraps any transport or non-200 failure from the book
	// source so callers can map it to a gateway error.
	ErrUpstream = errors.New("fetch: upstream request failed")
)

// ServiceConfig carries the dependencies for NewService. HTTPClient and
// BaseURL exist for tests; zero values hit the real OpenLibrary.
type ServiceConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	TxLog      *txlog.Writer
	Clock      func() time.Time
	Logger     *zap.Logger
}

// Service performs online book searches. Each search appends one
// SEARCH_ONLINE log line regardless of how many records come back.
type Service struct {
	baseURL string
	client  *http.Client
	txlog   *txlog.Writer
	clock   func() time.Time
	logger  *zap.Logger
}

// NewService validates the configuration and returns a ready Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.TxLog == nil {
		return nil, ErrMissingTxLog
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		baseURL: baseURL,
		client:  client,
		txlog:   cfg.TxLog,
		clock:   clock,
		logger:  logger,
	}, nil
}

// SearchURL renders the search page URL for the given query.
func (s *Service) SearchURL(query string) string {
	return fmt.Sprintf("%s/search?q=%s", s.baseURL, url.QueryEscape(query))
}

// Search fetches the search result page for query, parses it into records
// stamped with the actor's provenance, and logs the search. The fetched
// records are returned, not stored; storing them is a separate, explicit
// user action.
func (s *Service) Search(ctx context.Context, actor auth.Session, query string) ([]*records.Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if err := s.txlog.LogSearchOnline(actor.Username, query); err != nil {
		s.logger.Warn("transaction log append failed", zap.Error(err))
	}

	searchURL := s.SearchURL(query)
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	request.Header.Set("User-Agent", browserUserAgent)

	response, err := s.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		io.Copy(io.Discard, response.Body)
		return nil, fmt.Errorf("%w: status %d from %s", ErrUpstream, response.StatusCode, searchURL)
	}

	results, err := parseSearchResults(response.Body, s.clock().UnixMilli(), actor.Username, searchURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	s.logger.Info("online search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}
