// Package muon fetches oracle-signed attestations from a Muon gateway and
// formats them into the tuples the protocol contracts accept.
package muon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/rest"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// Config for initializing the Muon client
type Config struct {
	// BaseURL of the gateway, e.g. https://polygon-testnet-oracle.rasa.capital/v1/
	// If none is provided, the testnet gateway is used
	BaseURL string
	// App is the Muon app every query is issued under
	// If none is provided, "symmio" is used
	App     string
	Timeout time.Duration
	Logger  *zerolog.Logger
	// Rest overrides the HTTP client, mainly for tests
	Rest rest.ClientInterface
}

type Client struct {
	rest   rest.ClientInterface
	app    string
	logger zerolog.Logger
}

func New(cfg Config) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = constants.MUON_TESTNET_URL
	}

	app := cfg.App
	if app == "" {
		app = constants.MUON_APP
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}

	restClient := cfg.Rest
	if restClient == nil {
		restClient = rest.New(rest.Config{
			BaseUrl: baseURL,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		})
	}

	return &Client{
		rest:   restClient,
		app:    app,
		logger: logger,
	}
}

// Param is one `params[key]=value` query entry. Gateways are sensitive to
// parameter order, so params are kept as an ordered list.
type Param struct {
	Key   string
	Value string
}

func P(key string, value any) Param {
	return Param{Key: key, Value: fmt.Sprint(value)}
}

// Query renders the request path for method and params, relative to the
// gateway base URL.
func (c *Client) Query(method string, params []Param) string {
	var b strings.Builder
	b.WriteString("?app=")
	b.WriteString(url.QueryEscape(c.app))
	b.WriteString("&method=")
	b.WriteString(url.QueryEscape(method))
	for _, p := range params {
		b.WriteString("&params%5B")
		b.WriteString(url.QueryEscape(p.Key))
		b.WriteString("%5D=")
		b.WriteString(url.QueryEscape(p.Value))
	}
	return b.String()
}

// Fetch issues one oracle query and returns the raw successful response.
func (c *Client) Fetch(ctx context.Context, method string, params ...Param) (*Response, error) {
	op := "muon." + method
	path := c.Query(method, params)

	c.logger.Debug().Str("method", method).Str("query", path).Msg("muon request")

	var body json.RawMessage
	if err := c.rest.Get(ctx, path, &body); err != nil {
		var decodeErr *rest.DecodeError
		if errors.As(err, &decodeErr) {
			return nil, errs.Wrap(errs.MalformedResponse, op, err)
		}
		return nil, errs.Wrap(errs.OracleUnavailable, op, err)
	}

	if len(body) == 0 || !gjson.ValidBytes(body) {
		return nil, errs.New(errs.MalformedResponse, op, "empty or invalid response body")
	}

	res := gjson.ParseBytes(body)
	if !res.Get("success").Bool() {
		payload := res.Get("error").Raw
		if payload == "" {
			payload = res.Raw
		}
		return nil, errs.New(errs.OracleRejected, op, payload)
	}

	return &Response{Method: method, body: res}, nil
}
