// Package hedger talks to a solver's instant-trading HTTP API: SIWE login,
// locked margin parameters, instant open/close and quote confirmation.
package hedger

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/banky/go-symmio/constants"
	"github.com/banky/go-symmio/errs"
	"github.com/banky/go-symmio/rest"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
	"github.com/tidwall/gjson"
)

// Config for initializing the hedger client
type Config struct {
	// BaseURL of the solver, e.g. https://base-hedger82.rasa.capital
	BaseURL string
	// AccountAddress is the sub-account trading through the solver
	AccountAddress common.Address
	// PrivateKey signs the login message. Only Login needs it.
	PrivateKey *ecdsa.PrivateKey
	ChainID    *big.Int
	// Domain and Origin of the SIWE login
	// If none are provided, localhost and http://localhost:3000 are used
	Domain string
	Origin string
	// SessionLifetime is the requested expiry of the access token
	// If none is provided, 2h30m is used
	SessionLifetime time.Duration
	Timeout         time.Duration
	Logger          *zerolog.Logger
	// Rest overrides the HTTP client, mainly for tests
	Rest rest.ClientInterface
}

type Client struct {
	rest            rest.ClientInterface
	baseURL         string
	account         common.Address
	privateKey      mo.Option[*ecdsa.PrivateKey]
	chainID         *big.Int
	domain          string
	origin          string
	sessionLifetime time.Duration
	logger          zerolog.Logger
	now             func() time.Time
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" && cfg.Rest == nil {
		return nil, errs.Missing("HEDGER_URL")
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")

	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(constants.INSTANT_CHAIN_ID)
	}

	domain := cfg.Domain
	if domain == "" {
		domain = constants.SIWE_DOMAIN
	}
	origin := cfg.Origin
	if origin == "" {
		origin = constants.SIWE_ORIGIN
	}
	lifetime := cfg.SessionLifetime
	if lifetime == 0 {
		lifetime = constants.DEFAULT_SESSION_LIFETIME
	}

	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "hedger").Logger()
	}

	restClient := cfg.Rest
	if restClient == nil {
		restClient = rest.New(rest.Config{
			BaseUrl: baseURL,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		})
	}

	var key mo.Option[*ecdsa.PrivateKey]
	if cfg.PrivateKey != nil {
		key = mo.Some(cfg.PrivateKey)
	}

	return &Client{
		rest:            restClient,
		baseURL:         baseURL,
		account:         cfg.AccountAddress,
		privateKey:      key,
		chainID:         chainID,
		domain:          domain,
		origin:          origin,
		sessionLifetime: lifetime,
		logger:          logger,
		now:             time.Now,
	}, nil
}

func (c *Client) Account() common.Address {
	return c.account
}

// Signer is the wallet address that signs the login message.
func (c *Client) Signer() (common.Address, bool) {
	key, ok := c.privateKey.Get()
	if !ok {
		return common.Address{}, false
	}
	return crypto.PubkeyToAddress(key.PublicKey), true
}

// getJSON issues a GET and parses the body with gjson.
func (c *Client) getJSON(ctx context.Context, op string, path string, opts ...rest.RequestOption) (gjson.Result, error) {
	var body json.RawMessage
	if err := c.rest.Get(ctx, path, &body, opts...); err != nil {
		return gjson.Result{}, wrapRestError(op, err)
	}
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return gjson.Result{}, errs.New(errs.MalformedResponse, op, "empty or invalid response body")
	}
	return gjson.ParseBytes(body), nil
}

// postJSON issues a POST and parses the (possibly empty) body with gjson.
func (c *Client) postJSON(
	ctx context.Context,
	op string,
	path string,
	payload any,
	opts ...rest.RequestOption,
) (gjson.Result, error) {
	var body json.RawMessage
	if err := c.rest.Post(ctx, path, payload, &body, opts...); err != nil {
		return gjson.Result{}, wrapRestError(op, err)
	}
	if len(body) == 0 {
		return gjson.Result{}, nil
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, errs.New(errs.MalformedResponse, op, "invalid response body")
	}
	return gjson.ParseBytes(body), nil
}

func wrapRestError(op string, err error) error {
	var decodeErr *rest.DecodeError
	if errors.As(err, &decodeErr) {
		return errs.Wrap(errs.MalformedResponse, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
