// Package gateway is the typed client for the storefront REST API.
//
// Every authenticated call goes through one retry protocol: when a request
// carrying an access token is rejected with 401, the client asks its
// TokenSource to refresh and repeats the request exactly once with the new
// token. A failed refresh surfaces as ErrLoginRequired.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"buynow/internal/metrics"
)

const (
	defaultTimeout = 10 * time.Second
	cachePrefix    = "buynow:api:"
)

// TokenSource supplies bearer tokens and refreshes them on rejection.
type TokenSource interface {
	// AccessToken returns the current access token, or "" when anonymous.
	AccessToken() string

	// Refresh obtains a new access token after rejected was refused by the
	// server. It reports whether a usable token is now available.
	Refresh(ctx context.Context, rejected string) bool
}

// Client calls the backend REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zerolog.Logger

	tokens  TokenSource
	limiter *rate.Limiter

	redis    *redis.Client
	cacheTTL time.Duration
}

// NewClient constructs a client. A non-positive timeout uses the default.
func NewClient(baseURL string, timeout time.Duration, logger *zerolog.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// UseTokens attaches the session that supplies and refreshes tokens.
func (c *Client) UseTokens(tokens TokenSource) {
	c.tokens = tokens
}

// UseRateLimit throttles outgoing requests. A non-positive rate disables it.
func (c *Client) UseRateLimit(perSecond float64, burst int) {
	if perSecond <= 0 {
		c.limiter = nil
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
}

// UseRedisCache configures optional Redis caching for the store listing.
func (c *Client) UseRedisCache(redisClient *redis.Client, ttl time.Duration) {
	c.redis = redisClient
	c.cacheTTL = ttl
}

type request struct {
	op     string
	method string
	path   string
	query  url.Values
	body   any
	auth   bool
}

// call runs r under the retry-after-refresh protocol and decodes a 2xx body
// into out. Empty and 204 bodies leave out untouched. Non-2xx responses are
// returned as *APIError.
func (c *Client) call(ctx context.Context, r request, out any) error {
	var token string
	if r.auth && c.tokens != nil {
		token = c.tokens.AccessToken()
	}

	status, body, err := c.send(ctx, r, token)
	if err != nil {
		return err
	}

	if status == http.StatusUnauthorized && token != "" && c.tokens != nil {
		c.logger.Info().Str("op", r.op).Msg("access token rejected, refreshing")
		if !c.tokens.Refresh(ctx, token) {
			c.logger.Warn().Str("op", r.op).Msg("token refresh failed, login required")
			return fmt.Errorf("%s: %w", r.op, ErrLoginRequired)
		}
		status, body, err = c.send(ctx, r, c.tokens.AccessToken())
		if err != nil {
			return err
		}
	}

	if status < 200 || status >= 300 {
		apiErr := newAPIError(status, body)
		c.logger.Warn().
			Str("op", r.op).
			Int("status", status).
			Str("code", apiErr.Code).
			Str("message", apiErr.Message).
			Msg("api request rejected")
		return apiErr
	}

	if out == nil || status == http.StatusNoContent || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		c.logger.Error().Err(err).Str("op", r.op).Msg("decode response")
		return fmt.Errorf("%s: decode response: %w", r.op, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, r request, token string) (int, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, fmt.Errorf("%s: rate limit: %w", r.op, err)
		}
	}

	var body io.Reader = http.NoBody
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return 0, nil, fmt.Errorf("%s: encode request: %w", r.op, err)
		}
		body = bytes.NewReader(data)
	}

	endpoint := c.baseURL + r.path
	if len(r.query) > 0 {
		endpoint += "?" + r.query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, r.method, endpoint, body)
	if err != nil {
		return 0, nil, fmt.Errorf("%s: %w", r.op, err)
	}

	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveRequest(r.op, "error", time.Since(start))
		c.logger.Error().Err(err).
			Str("op", r.op).
			Str("method", r.method).
			Str("path", r.path).
			Str("request_id", requestID).
			Msg("api request failed")
		return 0, nil, fmt.Errorf("%s: %w", r.op, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(r.op, "error", elapsed)
		c.logger.Error().Err(err).Str("op", r.op).Str("request_id", requestID).Msg("read response")
		return 0, nil, fmt.Errorf("%s: read response: %w", r.op, err)
	}

	metrics.ObserveRequest(r.op, statusClass(resp.StatusCode), elapsed)
	c.logger.Debug().
		Str("op", r.op).
		Str("method", r.method).
		Str("path", r.path).
		Int("status", resp.StatusCode).
		Int64("duration_ms", elapsed.Milliseconds()).
		Str("request_id", requestID).
		Msg("api request")
	return resp.StatusCode, data, nil
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

func (c *Client) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.cacheTTL <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, cachePrefix+key).Bytes()
	if err != nil {
		metrics.IncCache("miss")
		return false
	}
	if err := json.Unmarshal(val, out); err != nil {
		metrics.IncCache("miss")
		return false
	}
	metrics.IncCache("hit")
	return true
}

func (c *Client) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, cachePrefix+key, data, c.cacheTTL).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func timeQuery(hour int, category string) url.Values {
	q := url.Values{}
	q.Set("time", fmt.Sprint(hour))
	if category != "" {
		q.Set("store_category", category)
	}
	return q
}
