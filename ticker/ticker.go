// Package ticker reads spot prices from the Binance public API.
package ticker

import (
	"context"
	"fmt"
	"strings"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/rest"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const PATH_TICKER_PRICE = "/api/v3/ticker/price"

type Config struct {
	// BaseURL defaults to https://api.binance.com
	BaseURL string
	Logger  *zerolog.Logger
	// Rest overrides the transport, mostly for tests
	Rest rest.ClientInterface
}

type Client struct {
	rest rest.ClientInterface
}

type tickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
}

func New(cfg Config) *Client {
	client := cfg.Rest
	if client == nil {
		baseURL := cfg.BaseURL
		if baseURL == "" {
			baseURL = constants.BINANCE_API_URL
		}
		client = rest.New(rest.Config{
			BaseUrl: strings.TrimRight(baseURL, "/"),
			Logger:  cfg.Logger,
		})
	}
	return &Client{rest: client}
}

// Price returns the last traded price of symbol, e.g. XRPUSDT.
func (c *Client) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	op := "ticker.price"
	if symbol == "" {
		return decimal.Zero, fmt.Errorf("%s: symbol is required", op)
	}

	var res tickerPrice
	if err := c.rest.Get(ctx, PATH_TICKER_PRICE, &res, rest.WithQuery("symbol", strings.ToUpper(symbol))); err != nil {
		return decimal.Zero, fmt.Errorf("%s %s: %w", op, symbol, err)
	}
	if res.Price.Sign() <= 0 {
		return decimal.Zero, errs.Newf(errs.MalformedResponse, op, "no price for %s", symbol)
	}
	return res.Price, nil
}
