// HTTP implementation of [PlaylistSource]
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/blue-creative/db-rb/internal/models"
	"github.com/blue-creative/db-rb/internal/parsers"
	"github.com/blue-creative/db-rb/internal/shared"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "http://localhost:8080"
	defaultPageSize = 50
	maxPages        = 1000
)

// APIService reads playlists from a JSON listing service using a bearer token obtained elsewhere.
//
// Pages are expected in the common paging shape: an "items" array (entries may nest the track
// under "track") and a "next" URL that is null on the last page.
type APIService struct {
	baseURL    string
	token      string
	pageSize   int
	httpClient *http.Client
	limiter    *rate.Limiter
}

// APIOpts configures an [APIService].
type APIOpts struct {
	BaseURL    string
	Token      string
	PageSize   int
	RateLimit  float64 // requests per second, 0 for unlimited
	HTTPClient *http.Client
}

// NewAPIService creates a new playlist source for the listing service at opts.BaseURL.
func NewAPIService(opts APIOpts) *APIService {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}

	return &APIService{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		token:      opts.Token,
		pageSize:   opts.PageSize,
		httpClient: opts.HTTPClient,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// FromConfig builds an APIService from the [shared.SourceConfig], reading the token from the
// environment variable it names.
func FromConfig(cfg shared.SourceConfig, getenv func(string) string) *APIService {
	var token string
	if cfg.TokenEnv != "" && getenv != nil {
		token = getenv(cfg.TokenEnv)
	}
	return NewAPIService(APIOpts{
		BaseURL:   cfg.BaseURL,
		Token:     token,
		PageSize:  cfg.PageSize,
		RateLimit: cfg.RateLimit,
	})
}

func (a *APIService) Name() string {
	if u, err := url.Parse(a.baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return a.baseURL
}

// page is the paging envelope. Entries are left raw for the JSON parser.
type page struct {
	Next *string `json:"next"`
}

// Entries fetches every page of the playlist and parses the entries with the JSON document parser.
func (a *APIService) Entries(ctx context.Context, playlistID string) (*parsers.Result, error) {
	playlistID = strings.TrimSpace(playlistID)
	if playlistID == "" {
		return nil, fmt.Errorf("%w: playlist id", shared.ErrMissingArgument)
	}

	source := a.Name() + "/" + playlistID
	result := &parsers.Result{Format: parsers.FormatJSON, Source: source, Records: []*models.RawTrackRecord{}, Warnings: []parsers.Warning{}}

	next := fmt.Sprintf("%s/playlists/%s/tracks?limit=%d&offset=0", a.baseURL, url.PathEscape(playlistID), a.pageSize)
	for pages := 0; next != ""; pages++ {
		if pages >= maxPages {
			return nil, fmt.Errorf("%w: more than %d pages", shared.ErrAPIRequest, maxPages)
		}

		body, err := a.get(ctx, next)
		if err != nil {
			return nil, err
		}

		// a bare array is a single, unpaged listing
		var env page
		_ = json.Unmarshal(body, &env)

		res, err := parsers.Parse(body, parsers.FormatJSON, source)
		if err != nil {
			return nil, err
		}

		// entry numbers continue across pages
		offset := len(result.Records) + len(result.Warnings)
		for _, r := range res.Records {
			r.Line += offset
			result.Records = append(result.Records, r)
		}
		for _, w := range res.Warnings {
			w.Line += offset
			result.Warnings = append(result.Warnings, w)
		}

		next = ""
		if env.Next != nil {
			next = *env.Next
		}
	}

	return result, nil
}

// get performs an authenticated GET request and returns the body of a 2xx response.
func (a *APIService) get(ctx context.Context, target string) ([]byte, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, target)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d", shared.ErrAPIRequest, resp.StatusCode)
	}
	return body, nil
}
