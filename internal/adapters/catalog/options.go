package catalog

import (
	"net/http"
	"time"

	"github.com/okian/movierank/pkg/logger"
)

// Option applies a configuration option to the Client.
type Option func(*Client)

// WithBaseURL sets the catalog API root, e.g. https://api.themoviedb.org/3.
func WithBaseURL(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.baseURL = base
		}
	}
}

// WithImageBase sets the prefix joined with poster paths.
func WithImageBase(base string) Option {
	return func(c *Client) {
		if base != "" {
			c.imageBase = base
		}
	}
}

// WithAPIKey sets the credential sent as the api_key query parameter.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient sets the HTTP client. The client uses a copy with the
// WithTimeout value; hc itself is not modified.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds every outbound request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRateLimit paces outbound calls to perSecond with the given burst.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 && burst > 0 {
			c.ratePerSecond = perSecond
			c.burst = burst
		}
	}
}

// WithBreaker tunes the circuit breaker. It opens once at least minRequests
// were seen in the window and the failure ratio reaches failureRatio, and
// stays open for openTimeout.
func WithBreaker(minRequests uint32, failureRatio float64, openTimeout time.Duration) Option {
	return func(c *Client) {
		if minRequests > 0 {
			c.breakerMinRequests = minRequests
		}
		if failureRatio > 0 && failureRatio <= 1 {
			c.breakerFailureRatio = failureRatio
		}
		if openTimeout > 0 {
			c.breakerTimeout = openTimeout
		}
	}
}

// WithLogger sets a custom logger for the client.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithCache serves repeated lookups from c. Only successful bodies are stored.
func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}
