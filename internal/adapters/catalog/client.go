// Package catalog is the outbound client for the TMDB movie catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/okian/movierank/internal/domain/model"
	"github.com/okian/movierank/pkg/logger"
	"github.com/okian/movierank/pkg/metrics"
)

const (
	defaultBaseURL   = "https://api.themoviedb.org/3"
	defaultImageBase = "https://image.tmdb.org/t/p/w500"
	defaultTimeout   = 10 * time.Second

	defaultRatePerSecond = 20
	defaultBurst         = 5

	defaultBreakerMinRequests  = 10
	defaultBreakerFailureRatio = 0.6
	defaultBreakerTimeout      = time.Minute
	breakerHalfOpenRequests    = 3
	breakerInterval            = time.Minute

	breakerName  = "tmdb"
	maxErrorBody = 512
	maxBodyBytes = 4 << 20

	nanosecondsPerMillisecond = 1e6
)

// Catalog looks movies up in the external catalog.
type Catalog interface {
	// SearchByTitle returns candidates matching query.
	// Returns ErrEmptyQuery without a network call when query is blank.
	SearchByTitle(ctx context.Context, query string) ([]model.CatalogResult, error)

	// FetchByID returns the details used to create a record.
	FetchByID(ctx context.Context, id int64) (model.CatalogMovie, error)
}

// Cache holds raw 2xx response bodies keyed by request (without the key).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Client is a Catalog backed by the TMDB v3 HTTP API.
type Client struct {
	baseURL    string
	imageBase  string
	apiKey     string
	httpClient *http.Client
	timeout    time.Duration

	ratePerSecond float64
	burst         int
	limiter       *rate.Limiter

	breakerMinRequests  uint32
	breakerFailureRatio float64
	breakerTimeout      time.Duration
	breaker             *gobreaker.CircuitBreaker[[]byte]

	cache  Cache
	logger logger.Logger
}

var _ Catalog = (*Client)(nil)

type searchResponse struct {
	Results []struct {
		ID          int64  `json:"id"`
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
		Overview    string `json:"overview"`
		PosterPath  string `json:"poster_path"`
	} `json:"results"`
}

type movieResponse struct {
	ID            int64  `json:"id"`
	OriginalTitle string `json:"original_title"`
	ReleaseDate   string `json:"release_date"`
	Overview      string `json:"overview"`
	PosterPath    string `json:"poster_path"`
}

// New creates a catalog client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:             defaultBaseURL,
		imageBase:           defaultImageBase,
		timeout:             defaultTimeout,
		ratePerSecond:       defaultRatePerSecond,
		burst:               defaultBurst,
		breakerMinRequests:  defaultBreakerMinRequests,
		breakerFailureRatio: defaultBreakerFailureRatio,
		breakerTimeout:      defaultBreakerTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logger.Named("catalog")
	}
	// Copy so a shared client (http.DefaultClient) keeps its own timeout.
	hc := http.Client{}
	if c.httpClient != nil {
		hc = *c.httpClient
	}
	hc.Timeout = c.timeout
	c.httpClient = &hc
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	c.limiter = rate.NewLimiter(rate.Limit(c.ratePerSecond), c.burst)
	c.breaker = c.newBreaker()

	metrics.UpdateCircuitBreakerState(breakerName, stateToFloat(gobreaker.StateClosed))
	return c
}

func (c *Client) newBreaker() *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: breakerHalfOpenRequests,
		Interval:    breakerInterval,
		Timeout:     c.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < c.breakerMinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= c.breakerFailureRatio
		},
		// A 4xx is the caller's problem, not a sign the catalog is down.
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var ue *UpstreamError
			return errors.As(err, &ue) && ue.Status < http.StatusInternalServerError
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn(context.Background(), "circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", stateToString(from)),
				logger.String("to", stateToString(to)),
			)
			metrics.UpdateCircuitBreakerState(name, stateToFloat(to))
			metrics.RecordCircuitBreakerTransition(name, stateToString(from), stateToString(to))
		},
	})
}

// SearchByTitle implements Catalog.
func (c *Client) SearchByTitle(ctx context.Context, query string) ([]model.CatalogResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	body, err := c.get(ctx, "search", "/search/movie", url.Values{"query": {query}})
	if err != nil {
		return nil, fmt.Errorf("catalog search %q: %w", query, err)
	}

	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("catalog search %q: %w: %v", query, ErrMalformedResponse, err)
	}

	out := make([]model.CatalogResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		out = append(out, model.CatalogResult{
			ID:          r.ID,
			Title:       r.Title,
			ReleaseDate: r.ReleaseDate,
			Overview:    r.Overview,
			PosterPath:  r.PosterPath,
		})
	}
	return out, nil
}

// FetchByID implements Catalog.
func (c *Client) FetchByID(ctx context.Context, id int64) (model.CatalogMovie, error) {
	path := "/movie/" + strconv.FormatInt(id, 10)
	body, err := c.get(ctx, "fetch", path, nil)
	if err != nil {
		return model.CatalogMovie{}, fmt.Errorf("catalog fetch %d: %w", id, err)
	}

	var resp movieResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return model.CatalogMovie{}, fmt.Errorf("catalog fetch %d: %w: %v", id, ErrMalformedResponse, err)
	}
	if resp.OriginalTitle == "" {
		return model.CatalogMovie{}, fmt.Errorf("catalog fetch %d: %w: missing original_title", id, ErrMalformedResponse)
	}

	m := model.CatalogMovie{
		ID:          id,
		Title:       resp.OriginalTitle,
		Year:        model.YearFromDate(resp.ReleaseDate),
		Description: resp.Overview,
	}
	if resp.PosterPath != "" {
		m.PosterURL = c.imageBase + resp.PosterPath
	}
	return m, nil
}

// get paces, guards and performs one GET, returning the raw body of a 2xx reply.
// Cached bodies skip the limiter and the breaker.
func (c *Client) get(ctx context.Context, op, path string, params url.Values) ([]byte, error) {
	start := time.Now()

	key := path
	if len(params) > 0 {
		key += "?" + params.Encode()
	}
	if c.cache != nil {
		if body, ok := c.cache.Get(ctx, key); ok {
			c.record(op, "cache_hit", start)
			return body, nil
		}
	}

	if err := c.wait(ctx); err != nil {
		c.record(op, "rejected", start)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.record(op, "error", start)
		return nil, fmt.Errorf("build url: %w", err)
	}
	q := url.Values{}
	for k, v := range params {
		q[k] = v
	}
	q.Set("api_key", c.apiKey)
	u.RawQuery = q.Encode()

	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, u)
	})
	if err != nil {
		var ue *UpstreamError
		switch {
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			c.record(op, "rejected", start)
			c.logger.Warn(ctx, "catalog request rejected by circuit breaker", logger.String("url", redact(u)))
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		case errors.As(err, &ue):
			c.record(op, "upstream_error", start)
			c.logger.Warn(ctx, "catalog returned error status",
				logger.String("url", redact(u)),
				logger.Int("status", ue.Status),
			)
			return nil, err
		default:
			c.record(op, "unavailable", start)
			c.logger.Error(ctx, "catalog request failed", logger.String("url", redact(u)), logger.Error(err))
			return nil, err
		}
	}

	c.record(op, "ok", start)
	c.logger.Debug(ctx, "catalog request", logger.String("url", redact(u)))
	if c.cache != nil {
		c.cache.Set(ctx, key, body)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, scrub(err, c.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg := string(body)
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &UpstreamError{Status: resp.StatusCode, Body: msg}
	}
	return body, nil
}

func (c *Client) wait(ctx context.Context) error {
	start := time.Now()
	err := c.limiter.Wait(ctx)
	metrics.RecordCatalogRateLimitWait(float64(time.Since(start).Nanoseconds()) / nanosecondsPerMillisecond)
	return err
}

func (c *Client) record(op, outcome string, start time.Time) {
	metrics.RecordCatalogRequest(op, outcome, float64(time.Since(start).Nanoseconds())/nanosecondsPerMillisecond)
}

// State returns the breaker state as a string for stats output.
func (c *Client) State() string {
	return stateToString(c.breaker.State())
}

// redact renders u for logs with the credential masked.
func redact(u *url.URL) string {
	cp := *u
	q := cp.Query()
	if q.Has("api_key") {
		q.Set("api_key", "REDACTED")
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// scrub removes the key from transport errors, which embed the request URL.
func scrub(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	return strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
