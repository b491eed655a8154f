// Package rest provides core functions for network requests to the
// oracle, hedger and market-data HTTP endpoints.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

type Client struct {
	baseUrl string
	timeout mo.Option[time.Duration]
	headers map[string]string
	http    *resty.Client
	logger  zerolog.Logger
}

// ClientInterface defines the contract for REST API calls
type ClientInterface interface {
	Get(ctx context.Context, path string, result any, opts ...RequestOption) error
	Post(ctx context.Context, path string, body any, result any, opts ...RequestOption) error
}

type Config struct {
	// BaseUrl is prefixed to every request path
	BaseUrl string
	// Timeout is the timeout for network requests
	// If none is provided, no timeout will be enforced
	Timeout time.Duration
	// Headers are sent with every request
	Headers map[string]string
	// Logger receives one debug line per request
	// If none is provided, nothing is logged
	Logger *zerolog.Logger
}

// New creates a new client instance with the
// provided configuration.
func New(c Config) *Client {
	var timeout mo.Option[time.Duration]
	if c.Timeout != 0 {
		timeout = mo.Some(c.Timeout)
	}

	logger := zerolog.Nop()
	if c.Logger != nil {
		logger = *c.Logger
	}

	r := resty.
		New().
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	return &Client{
		baseUrl: c.BaseUrl,
		timeout: timeout,
		headers: c.Headers,
		http:    r,
		logger:  logger,
	}
}

func (c *Client) BaseUrl() string {
	return c.baseUrl
}

/*//////////////////////////////////////////////////////////////
                        REQUEST OPTIONS
//////////////////////////////////////////////////////////////*/

// RequestOption is a functional option for a single request
type RequestOption func(*requestConfig)

type requestConfig struct {
	headers map[string]string
	query   map[string]string
}

// WithHeader sets a header on the request
func WithHeader(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.headers == nil {
			cfg.headers = make(map[string]string)
		}
		cfg.headers[key] = value
	}
}

// WithBearer sets the Authorization header to a bearer token
func WithBearer(token string) RequestOption {
	return WithHeader("Authorization", "Bearer "+token)
}

// WithQuery adds a query parameter to the request
func WithQuery(key, value string) RequestOption {
	return func(cfg *requestConfig) {
		if cfg.query == nil {
			cfg.query = make(map[string]string)
		}
		cfg.query[key] = value
	}
}

/*//////////////////////////////////////////////////////////////
                            REQUESTS
//////////////////////////////////////////////////////////////*/

// Get sends a GET request to the specified path and decodes the JSON
// response into result.
func (c *Client) Get(
	ctx context.Context,
	path string,
	result any,
	opts ...RequestOption,
) error {
	return c.do(ctx, http.MethodGet, path, nil, result, opts)
}

// Post sends a POST request to the specified path with the provided body.
func (c *Client) Post(
	ctx context.Context,
	path string,
	body any,
	result any,
	opts ...RequestOption,
) error {
	return c.do(ctx, http.MethodPost, path, body, result, opts)
}

func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body any,
	result any,
	opts []RequestOption,
) error {
	var cfg requestConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	url := c.baseUrl + path

	// Apply timeout to context if specified
	if timeout, ok := c.timeout.Get(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	requestID := uuid.NewString()
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("X-Request-Id", requestID).
		SetHeaders(c.headers).
		SetHeaders(cfg.headers).
		SetQueryParams(cfg.query)

	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	resp, err := req.Execute(method, url)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	c.logger.Debug().
		Str("method", method).
		Str("url", url).
		Str("request_id", requestID).
		Int("status", resp.StatusCode()).
		Dur("elapsed", time.Since(start)).
		Msg("rest request")

	if err := handleException(resp); err != nil {
		return err
	}

	if result == nil || len(resp.Body()) == 0 {
		return nil
	}

	if err := json.Unmarshal(resp.Body(), result); err != nil {
		return &DecodeError{
			StatusCode: int64(resp.StatusCode()),
			Body:       string(resp.Body()),
			Err:        err,
		}
	}

	return nil
}
