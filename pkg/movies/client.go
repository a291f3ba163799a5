package movies

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// Movie is a search candidate returned by the metadata provider.
type Movie struct {
	ID       int64   `json:"id"`
	Title    string  `json:"title"`
	Year     string  `json:"year"`
	Overview string  `json:"overview"`
	Rating   float64 `json:"rating"`
}

// Detail is a full movie record including the credited director.
type Detail struct {
	Movie
	Director string   `json:"director"`
	Genres   []string `json:"genres"`
	Runtime  int      `json:"runtime"`
}

// SearchParams narrows a title search. Only Query is required.
type SearchParams struct {
	Query    string `json:"query"`
	Year     string `json:"year,omitempty"`
	Region   string `json:"region,omitempty"`
	Language string `json:"language,omitempty"`
}

// Client calls a TMDB-style movie metadata API. Responses are optionally
// cached in Redis so repeated title lookups skip the provider.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	cache      *redis.Client
	cacheTTL   time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (tests, proxies).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithCache enables Redis response caching with the given TTL.
func WithCache(cache *redis.Client, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = cache
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// NewClient constructs a metadata client. An empty API key yields an
// unconfigured client; callers must check Configured before use.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		cacheTTL:   6 * time.Hour,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Configured reports whether the provider credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != ""
}

// Search returns candidate titles matching the params.
func (c *Client) Search(ctx context.Context, params SearchParams) ([]Movie, error) {
	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("search query required")
	}
	values := url.Values{}
	values.Set("query", query)
	values.Set("api_key", c.apiKey)
	if params.Year != "" {
		values.Set("year", params.Year)
	}
	if params.Region != "" {
		values.Set("region", params.Region)
	}
	if params.Language != "" {
		values.Set("language", params.Language)
	}
	cacheKey := "cinechat:movies:search:" + strings.ToLower(query) + ":" + params.Year + ":" + params.Region + ":" + params.Language

	var resp searchResponse
	if c.cachedJSON(ctx, cacheKey, &resp) {
		return moviesFromResults(resp.Results), nil
	}
	if err := c.doJSON(ctx, "/search/movie?"+values.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("movie search: %w", err)
	}
	c.storeJSON(ctx, cacheKey, resp)
	return moviesFromResults(resp.Results), nil
}

// Details fetches the full record for a movie, including credits, and
// resolves the credited director.
func (c *Client) Details(ctx context.Context, id int64) (Detail, error) {
	cacheKey := fmt.Sprintf("cinechat:movies:detail:%d", id)

	var resp detailResponse
	if !c.cachedJSON(ctx, cacheKey, &resp) {
		values := url.Values{}
		values.Set("api_key", c.apiKey)
		values.Set("append_to_response", "credits")
		if err := c.doJSON(ctx, fmt.Sprintf("/movie/%d?%s", id, values.Encode()), &resp); err != nil {
			return Detail{}, fmt.Errorf("movie details: %w", err)
		}
		c.storeJSON(ctx, cacheKey, resp)
	}

	detail := Detail{
		Movie:   movieFromResult(resp.movieResult),
		Runtime: resp.Runtime,
	}
	for _, genre := range resp.Genres {
		detail.Genres = append(detail.Genres, genre.Name)
	}
	for _, member := range resp.Credits.Crew {
		if member.Job == "Director" {
			detail.Director = member.Name
			break
		}
	}
	return detail, nil
}

func (c *Client) doJSON(ctx context.Context, pathAndQuery string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+pathAndQuery, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp apiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.StatusMessage != "" {
			return fmt.Errorf("metadata api error: %s", errResp.StatusMessage)
		}
		return fmt.Errorf("metadata api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// cachedJSON loads a cached response into out. Cache failures only log;
// the provider call proceeds as if uncached.
func (c *Client) cachedJSON(ctx context.Context, key string, out any) bool {
	if c.cache == nil {
		return false
	}
	raw, err := c.cache.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.Debug("movie cache read failed", "key", key, "err", err)
		}
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (c *Client) storeJSON(ctx context.Context, key string, value any) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, raw, c.cacheTTL).Err(); err != nil {
		slog.Debug("movie cache write failed", "key", key, "err", err)
	}
}

func moviesFromResults(results []movieResult) []Movie {
	res := make([]Movie, 0, len(results))
	for _, r := range results {
		res = append(res, movieFromResult(r))
	}
	return res
}

func movieFromResult(r movieResult) Movie {
	year := ""
	if len(r.ReleaseDate) >= 4 {
		year = r.ReleaseDate[:4]
	}
	return Movie{
		ID:       r.ID,
		Title:    r.Title,
		Year:     year,
		Overview: r.Overview,
		Rating:   r.VoteAverage,
	}
}

// TMDB response types.

type apiErrorResponse struct {
	StatusMessage string `json:"status_message"`
}

type movieResult struct {
	ID          int64   `json:"id"`
	Title       string  `json:"title"`
	ReleaseDate string  `json:"release_date"`
	Overview    string  `json:"overview"`
	VoteAverage float64 `json:"vote_average"`
}

type searchResponse struct {
	Results []movieResult `json:"results"`
}

type detailResponse struct {
	movieResult
	Runtime int `json:"runtime"`
	Genres  []struct {
		Name string `json:"name"`
	} `json:"genres"`
	Credits struct {
		Crew []struct {
			Name string `json:"name"`
			Job  string `json:"job"`
		} `json:"crew"`
	} `json:"credits"`
}
