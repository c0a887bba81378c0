// Package tmdb looks up posters, trailers, details and trending titles for
// catalog items on The Movie Database, keyed by IMDb id.
package tmdb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"cinematch/internal/models"
)

const (
	DefaultBaseURL      = "https://api.themoviedb.org/3"
	DefaultImageBaseURL = "https://image.tmdb.org/t/p/w500"
	youTubeURL          = "https://youtu.be/"
	castLimit           = 5
)

type Config struct {
	APIKey            string
	BaseURL           string
	ImageBaseURL      string
	Timeout           time.Duration
	RequestsPerSecond float64
	MaxRetries        int
	// RetryBaseDelay doubles on every retry.
	RetryBaseDelay time.Duration
}

type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]byte]

	mu  sync.Mutex
	ids map[string]int
}

// New builds a client. An empty API key is a configuration error.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: tmdb.api_key (or TMDB_API_KEY) is not set", models.ErrConfiguration)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.ImageBaseURL == "" {
		cfg.ImageBaseURL = DefaultImageBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 4
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 500 * time.Millisecond
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "tmdb-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A missing title is an answer, not an outage.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, models.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warnf("WARN: circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		cb:      cb,
		ids:     make(map[string]int),
	}, nil
}

func retryable(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// get fetches path (relative to BaseURL) and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.cfg.APIKey)
	reqURL := c.cfg.BaseURL + path + "?" + params.Encode()

	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.fetch(ctx, reqURL, path)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode tmdb %s: %w", path, err)
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, reqURL, path string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.cfg.RetryBaseDelay * time.Duration(1<<uint(attempt-1))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("tmdb %s: %w", path, stripURL(err))
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read tmdb %s: %w", path, err)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("tmdb %s: %w", path, models.ErrNotFound)
		case resp.StatusCode == http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: tmdb rejected the api key", models.ErrConfiguration)
		case retryable(resp.StatusCode):
			lastErr = fmt.Errorf("tmdb %s failed with status %d", path, resp.StatusCode)
			log.Debugf("tmdb %s: status %d, attempt %d/%d", path, resp.StatusCode, attempt+1, c.cfg.MaxRetries+1)
		default:
			return nil, fmt.Errorf("tmdb %s failed with status %d: %s", path, resp.StatusCode, truncate(body, 200))
		}
	}
	return nil, lastErr
}

// stripURL drops the request URL, which carries the api key, from transport
// errors.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}

// FindID resolves an IMDb id to a TMDB movie id. Results are cached for the
// life of the client.
func (c *Client) FindID(ctx context.Context, imdbID string) (int, error) {
	imdbID = strings.TrimSpace(imdbID)
	if imdbID == "" {
		return 0, fmt.Errorf("%w: movie has no IMDb id", models.ErrNotFound)
	}
	c.mu.Lock()
	id, ok := c.ids[imdbID]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	var res struct {
		MovieResults []struct {
			ID int `json:"id"`
		} `json:"movie_results"`
	}
	if err := c.get(ctx, "/find/"+url.PathEscape(imdbID), url.Values{"external_source": {"imdb_id"}}, &res); err != nil {
		return 0, err
	}
	if len(res.MovieResults) == 0 {
		return 0, fmt.Errorf("imdb id %s: %w", imdbID, models.ErrNotFound)
	}
	id = res.MovieResults[0].ID
	c.mu.Lock()
	c.ids[imdbID] = id
	c.mu.Unlock()
	return id, nil
}

// ImageURL turns a TMDB image path into an absolute URL. Empty paths stay
// empty.
func (c *Client) ImageURL(path string) string {
	if path == "" {
		return ""
	}
	return c.cfg.ImageBaseURL + path
}
